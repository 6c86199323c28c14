// Package rewrite strips SEI NAL units from an H.264 stream and inserts new ones.
//
// All non-SEI NAL units are copied in their original order. The output uses the
// requested framing whatever the input framing was, so a rewrite can also convert
// Annex-B to length-prefixed and back.
package rewrite

import (
	"math"

	"github.com/Eyevinn/mp4ff/avc"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/Eyevinn/h264-sei-tools/internal/nalu"
	"github.com/Eyevinn/h264-sei-tools/internal/sei"
)

// Insertion places a new SEI NAL unit in front of original unit Before.
// Before at or past len(units) appends it after the last unit.
type Insertion struct {
	Before  int
	Payload sei.Payload
}

// Policy decides where SEI NAL units go.
type Policy interface {
	Plan(units []nalu.NALUnit) []Insertion
}

// AtStart inserts one SEI NAL unit at the very start of the stream.
type AtStart struct {
	Payload sei.Payload
}

func (p AtStart) Plan(units []nalu.NALUnit) []Insertion {
	return []Insertion{{Before: 0, Payload: p.Payload}}
}

// PerFrame inserts one timestamp SEI in front of every frame NAL unit, consuming
// Timestamps in order. Frames after the last timestamp get none.
type PerFrame struct {
	Timestamps []uint64
	Format     sei.Format
}

func (p PerFrame) Plan(units []nalu.NALUnit) []Insertion {
	var ins []Insertion
	next := 0
	for i, u := range units {
		if next >= len(p.Timestamps) {
			break
		}
		if u.IsFrame {
			ins = append(ins, Insertion{Before: i, Payload: sei.NewTimestampPayload(p.Format, p.Timestamps[next])})
			next++
		}
	}
	return ins
}

// AfterParameterSets inserts one timestamp SEI right after every PPS that
// directly follows an SPS, consuming Timestamps in order.
type AfterParameterSets struct {
	Timestamps []uint64
	Format     sei.Format
}

func (p AfterParameterSets) Plan(units []nalu.NALUnit) []Insertion {
	var ins []Insertion
	next := 0
	lastWasSPS := false
	for i, u := range units {
		switch {
		case u.Type == avc.NALU_SPS:
			lastWasSPS = true
			continue
		case lastWasSPS && u.Type == avc.NALU_PPS && next < len(p.Timestamps):
			ins = append(ins, Insertion{Before: i + 1, Payload: sei.NewTimestampPayload(p.Format, p.Timestamps[next])})
			next++
		}
		lastWasSPS = false
	}
	return ins
}

type Options struct {
	InputFraming  nalu.Framing
	OutputFraming nalu.Framing
	// BestEffort rewrites the units found before a truncated length field
	// instead of failing.
	BestEffort bool
}

type Stats struct {
	NALUnits     int  `json:"nalUnits"`
	Frames       int  `json:"frames"`
	DroppedSEI   int  `json:"droppedSEI"`
	InsertedSEI  int  `json:"insertedSEI"`
	UnsafeSimple int  `json:"unsafeSimpleSEI,omitempty"`
	Truncated    bool `json:"truncated,omitempty"`
}

type Result struct {
	Data      []byte
	Stats     Stats
	Discarded []nalu.Span
}

// Rewrite scans buf, plans insertions with p and writes the new stream.
func Rewrite(buf []byte, o Options, p Policy) (Result, error) {
	s := nalu.NewScanner(buf, o.InputFraming)
	var units []nalu.NALUnit
	for {
		u, ok := s.Next()
		if !ok {
			break
		}
		units = append(units, u)
	}
	truncated := false
	if err := s.Err(); err != nil {
		if !o.BestEffort {
			return Result{}, errors.Wrap(err, "scanning input")
		}
		truncated = true
	}

	var ins []Insertion
	if p != nil {
		ins = p.Plan(units)
	}
	data, stats, err := Apply(buf, units, o.OutputFraming, ins)
	if err != nil {
		return Result{}, err
	}
	stats.Truncated = truncated
	return Result{Data: data, Stats: stats, Discarded: s.Discarded()}, nil
}

// Apply writes units of buf without their SEI NAL units plus the insertions.
func Apply(buf []byte, units []nalu.NALUnit, out nalu.Framing, ins []Insertion) ([]byte, Stats, error) {
	ins = append([]Insertion(nil), ins...)
	slices.SortStableFunc(ins, func(a, b Insertion) int {
		switch {
		case a.Before < b.Before:
			return -1
		case a.Before > b.Before:
			return 1
		}
		return 0
	})

	var stats Stats
	dst := make([]byte, 0, len(buf)+len(ins)*(sei.SimpleTimestampLen+8))
	var err error
	k := 0
	insert := func(limit int) error {
		for ; k < len(ins) && ins[k].Before <= limit; k++ {
			if ts, ok := ins[k].Payload.(sei.SimpleTimestamp); ok && out == nalu.AnnexB && !sei.SimpleTimestampIsSafe(ts.TimestampUs) {
				stats.UnsafeSimple++
			}
			if dst, err = nalu.AppendNALU(dst, out, ins[k].Payload.NALU()); err != nil {
				return err
			}
			stats.InsertedSEI++
		}
		return nil
	}

	for i, u := range units {
		if err := insert(i); err != nil {
			return nil, stats, err
		}
		stats.NALUnits++
		if u.Type == avc.NALU_SEI {
			stats.DroppedSEI++
			continue
		}
		if u.IsFrame {
			stats.Frames++
		}
		if dst, err = nalu.AppendNALU(dst, out, u.Bytes(buf)); err != nil {
			return nil, stats, err
		}
	}
	if err := insert(math.MaxInt); err != nil {
		return nil, stats, err
	}
	return dst, stats, nil
}
