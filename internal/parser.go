package internal

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Eyevinn/mp4ff/avc"
	mp4ffsei "github.com/Eyevinn/mp4ff/sei"
	"go.uber.org/zap"

	"github.com/Eyevinn/h264-sei-tools/internal/nalu"
	"github.com/Eyevinn/h264-sei-tools/internal/sei"
)

const rawHexLen = 32

// ListNALUs prints every NAL unit of an H.264 elementary stream, the timestamps
// carried by SEI units, a summary and timestamp statistics.
func ListNALUs(ctx context.Context, l *zap.SugaredLogger, w io.Writer, f io.Reader, o Options) error {
	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("reading input %w", err)
	}
	jp := &JsonPrinter{W: w, Indent: o.Indent}
	summary := StreamSummary{Framing: o.Framing.String()}
	var stats TimestampStatistics
	var sps *avc.SPS

	s := nalu.NewScanner(data, o.Framing)
dataLoop:
	for {
		select {
		case <-ctx.Done():
			break dataLoop
		default:
		}

		u, ok := s.Next()
		if !ok {
			break
		}
		payload := u.Bytes(data)
		summary.NALUnits++
		nd := NaluData{Offset: u.Offset, Type: u.Type.String(), Len: u.Length}
		switch {
		case u.Type == avc.NALU_SPS:
			if parsed, err := avc.ParseSPSNALUnit(payload, false); err == nil {
				sps = parsed
			} else {
				l.Debugw("cannot parse SPS", "offset", u.Offset, "err", err)
			}
		case u.Type == avc.NALU_SEI:
			summary.SEIUnits++
			if ts, ok := DescribeSEI(&nd, payload, sps, o); ok {
				summary.TimestampSEIs++
				stats.TimeStamps = append(stats.TimeStamps, ts)
			}
		case u.IsFrame:
			summary.Frames++
			if sliceType, err := avc.GetSliceTypeFromNALU(payload); err == nil {
				nd.ImgType = fmt.Sprintf("[%s]", sliceType)
			}
		}
		jp.Print(nd, o.ShowNALU)

		// Keep looping if MaxNrPictures equals 0
		if o.MaxNrPictures > 0 && summary.Frames >= o.MaxNrPictures {
			break dataLoop
		}
	}

	if err := s.Err(); err != nil {
		l.Warnw("stream ends inside a NAL unit", "err", err)
		summary.Truncated = true
	}
	summary.Discarded = s.Discarded()
	for _, span := range summary.Discarded {
		l.Warnw("bytes outside any NAL unit", "offset", span.Offset, "length", span.Length)
	}

	jp.Print(summary, true)
	jp.PrintStatistics(stats, o.ShowStatistics)
	return jp.Error()
}

// DescribeSEI fills in nd for an SEI NAL unit and returns its timestamp if it
// carries one. Other SEI messages are decoded with sps, which may be nil.
func DescribeSEI(nd *NaluData, payload []byte, sps *avc.SPS, o Options) (uint64, bool) {
	if o.ShowRaw {
		raw := payload
		if len(raw) > rawHexLen {
			raw = raw[:rawHexLen]
		}
		nd.Raw = hex.EncodeToString(raw)
	}

	ts, format, err := sei.ExtractTimestamp(payload)
	if err == nil {
		nd.Timestamp = &ts
		nd.Format = format.String()
		return ts, true
	}
	if errors.Is(err, sei.ErrUnknownUUID) {
		if ud, err := sei.ParseUserData(payload); err == nil {
			nd.Data = fmt.Sprintf("user data %s, %d bytes", ud.UUID, len(ud.Data))
			return 0, false
		}
	}

	msgs, err := avc.ParseSEINalu(payload, sps)
	if err != nil {
		nd.Data = "unparsable SEI"
		return 0, false
	}
	seiTexts := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		t := mp4ffsei.SEIType(msg.Type())
		if o.ShowSEIDetails {
			seiTexts = append(seiTexts, msg.String())
		} else {
			seiTexts = append(seiTexts, fmt.Sprintf("msg %s", t))
		}
	}
	nd.Data = strings.Join(seiTexts, ", ")
	return 0, false
}
