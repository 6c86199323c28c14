package internal

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/Eyevinn/h264-sei-tools/internal/nalu"
	"github.com/Eyevinn/h264-sei-tools/internal/rewrite"
	"github.com/Eyevinn/h264-sei-tools/internal/sei"
)

// NewPolicy returns the insertion policy named by o.Policy.
func NewPolicy(o Options, timestamps []uint64) (rewrite.Policy, error) {
	switch o.Policy {
	case PolicyPerFrame, "":
		return rewrite.PerFrame{Timestamps: timestamps, Format: o.Format}, nil
	case PolicyAfterPS:
		return rewrite.AfterParameterSets{Timestamps: timestamps, Format: o.Format}, nil
	case PolicyAtStart:
		ts := o.Stamp
		if !o.HasStamp {
			if len(timestamps) == 0 {
				return nil, fmt.Errorf("no timestamp to insert at start")
			}
			ts = timestamps[0]
		}
		return rewrite.AtStart{Payload: sei.NewTimestampPayload(o.Format, ts)}, nil
	}
	return nil, fmt.Errorf("unknown insertion policy %q", o.Policy)
}

// Inject replaces the SEI units of the input with timestamp SEI units.
func Inject(ctx context.Context, l *zap.SugaredLogger, w io.Writer, f io.Reader, o Options) error {
	var timestamps []uint64
	if !(o.Policy == PolicyAtStart && o.HasStamp) {
		var err error
		if timestamps, err = LoadTimestamps(l, o); err != nil {
			return err
		}
		if len(timestamps) == 0 {
			return fmt.Errorf("no timestamps to inject")
		}
	}
	p, err := NewPolicy(o, timestamps)
	if err != nil {
		return err
	}
	return rewriteStream(ctx, l, w, f, o, p, len(timestamps))
}

// Convert changes the framing of the input. With a stamp it also replaces all
// SEI units by one timestamp SEI at the start. Without one every NAL unit is kept.
func Convert(ctx context.Context, l *zap.SugaredLogger, w io.Writer, f io.Reader, o Options) error {
	if o.HasStamp {
		o.Policy = PolicyAtStart
		p, err := NewPolicy(o, nil)
		if err != nil {
			return err
		}
		return rewriteStream(ctx, l, w, f, o, p, 1)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("reading input %w", err)
	}
	units, scanErr := nalu.Scan(data, o.Framing)
	if scanErr != nil {
		if !o.BestEffort {
			return fmt.Errorf("scanning input %w", scanErr)
		}
		l.Warnw("input truncated, converting the complete NAL units", "err", scanErr)
	}
	out := make([]byte, 0, len(data)+4*len(units))
	for _, u := range units {
		if out, err = nalu.AppendNALU(out, o.OutputFraming, u.Bytes(data)); err != nil {
			return err
		}
	}
	dw, tw, closeFn, err := OpenOutput(o.OutPutTo, w)
	if err != nil {
		return err
	}
	if _, err := dw.Write(out); err != nil {
		_ = closeFn()
		return fmt.Errorf("writing output %w", err)
	}
	stats := rewrite.Stats{NALUnits: len(units), Truncated: scanErr != nil}
	for _, u := range units {
		if u.IsFrame {
			stats.Frames++
		}
	}
	jp := &JsonPrinter{W: tw, Indent: o.Indent}
	jp.Print(stats, o.ShowStatistics)
	if err := closeFn(); err != nil {
		return err
	}
	return jp.Error()
}

func rewriteStream(ctx context.Context, l *zap.SugaredLogger, w io.Writer, f io.Reader, o Options, p rewrite.Policy, nrTimestamps int) error {
	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("reading input %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := rewrite.Rewrite(data, rewrite.Options{
		InputFraming:  o.Framing,
		OutputFraming: o.OutputFraming,
		BestEffort:    o.BestEffort,
	}, p)
	if err != nil {
		return err
	}
	logRewrite(l, o, res, nrTimestamps)

	dw, tw, closeFn, err := OpenOutput(o.OutPutTo, w)
	if err != nil {
		return err
	}
	if _, err := dw.Write(res.Data); err != nil {
		_ = closeFn()
		return fmt.Errorf("writing output %w", err)
	}
	jp := &JsonPrinter{W: tw, Indent: o.Indent}
	jp.Print(res.Stats, o.ShowStatistics)
	if err := closeFn(); err != nil {
		return err
	}
	return jp.Error()
}

func logRewrite(l *zap.SugaredLogger, o Options, res rewrite.Result, nrTimestamps int) {
	for _, span := range res.Discarded {
		l.Warnw("bytes outside any NAL unit dropped", "offset", span.Offset, "length", span.Length)
	}
	if res.Stats.Truncated {
		l.Warnw("input truncated, rewrote the complete NAL units only")
	}
	if res.Stats.UnsafeSimple > 0 {
		l.Warnw("simple timestamp SEIs emulate a start code, use the extended format",
			"count", res.Stats.UnsafeSimple)
	}
	if (o.Policy == PolicyPerFrame || o.Policy == "") && nrTimestamps < res.Stats.Frames {
		l.Warnw("fewer timestamps than frames", "timestamps", nrTimestamps, "frames", res.Stats.Frames)
	}
	l.Infow("rewrote stream",
		"nalUnits", res.Stats.NALUnits,
		"frames", res.Stats.Frames,
		"droppedSEI", res.Stats.DroppedSEI,
		"insertedSEI", res.Stats.InsertedSEI)
}

// BuildSEI prints the SEI NAL unit for o.Stamp in o.Format.
func BuildSEI(ctx context.Context, l *zap.SugaredLogger, w io.Writer, f io.Reader, o Options) error {
	jp := &JsonPrinter{W: w, Indent: o.Indent}
	jp.PrintSEI(o.Format, o.Stamp, true)
	if o.Format == sei.FormatSimple && !sei.SimpleTimestampIsSafe(o.Stamp) {
		l.Warnw("simple timestamp SEI emulates a start code", "timestamp", o.Stamp)
	}
	return jp.Error()
}
