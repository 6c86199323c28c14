// Package nalu finds NAL units in H.264 elementary streams.
//
// Two framings are supported. Annex-B streams separate NAL units by 00 00 01 or
// 00 00 00 01 start codes. Length-prefixed (AVCC) streams put a 4-byte big-endian
// length in front of every NAL unit. A buffer always uses one of them, chosen by
// the caller.
package nalu

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/Eyevinn/mp4ff/avc"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// Framing is the NAL unit delimiting convention of a byte stream.
type Framing int

const (
	AnnexB Framing = iota
	LengthPrefixed
)

const lengthFieldSize = 4

var (
	ErrTruncatedStream = errors.New("truncated stream")
	ErrNALUTooLarge    = errors.New("NAL unit too large for length prefix")
)

var frameTypes = []avc.NaluType{avc.NALU_NON_IDR, avc.NALU_IDR}

func (f Framing) String() string {
	switch f {
	case AnnexB:
		return "annexb"
	case LengthPrefixed:
		return "avcc"
	default:
		return "unknown"
	}
}

// ParseFraming accepts "annexb" and "avcc" (alias "length-prefixed").
func ParseFraming(s string) (Framing, error) {
	switch strings.ToLower(s) {
	case "annexb", "annex-b":
		return AnnexB, nil
	case "avcc", "length-prefixed":
		return LengthPrefixed, nil
	}
	return 0, errors.Errorf("unknown framing %q", s)
}

// NALUnit locates one NAL unit payload inside a scanned buffer.
// Offset and Length exclude the start code or length prefix.
type NALUnit struct {
	Offset  int
	Length  int
	Type    avc.NaluType
	IsFrame bool
}

func newNALUnit(buf []byte, offset, length int) NALUnit {
	t := avc.GetNaluType(buf[offset])
	return NALUnit{
		Offset:  offset,
		Length:  length,
		Type:    t,
		IsFrame: IsFrameType(t),
	}
}

// Bytes returns the payload of u in buf, the buffer u was scanned from.
func (u NALUnit) Bytes(buf []byte) []byte {
	return buf[u.Offset : u.Offset+u.Length]
}

// IsFrameType is true for coded slices of non-IDR and IDR pictures.
func IsFrameType(t avc.NaluType) bool {
	return slices.Contains(frameTypes, t)
}

// AppendNALU appends payload framed as f to dst.
func AppendNALU(dst []byte, f Framing, payload []byte) ([]byte, error) {
	switch f {
	case AnnexB:
		dst = append(dst, 0x00, 0x00, 0x00, 0x01)
	case LengthPrefixed:
		if uint64(len(payload)) > math.MaxUint32 {
			return dst, errors.Wrapf(ErrNALUTooLarge, "%d bytes", len(payload))
		}
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(payload)))
	default:
		return dst, errors.Errorf("unknown framing %d", f)
	}
	return append(dst, payload...), nil
}
