package nalu

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Span is a byte range of the scanned buffer that belongs to no NAL unit.
type Span struct {
	Offset int `json:"offset"`
	Length int `json:"length"`
}

// Scanner walks a buffer and returns its NAL units in ascending offset order.
// The buffer must not change while it is scanned. Reset restarts the scan.
//
// Bytes before the first start code and a tail too short to hold a verifiable
// start code (Annex-B) or a length field plus payload (length-prefixed) are not
// returned as NAL units; they are recorded in Discarded instead.
type Scanner struct {
	buf       []byte
	framing   Framing
	pos       int
	err       error
	discarded []Span
}

func NewScanner(buf []byte, f Framing) *Scanner {
	return &Scanner{buf: buf, framing: f}
}

// Next returns the next NAL unit. It returns false at the end of the buffer or
// on a truncated length-prefixed stream; Err tells them apart.
func (s *Scanner) Next() (NALUnit, bool) {
	if s.err != nil {
		return NALUnit{}, false
	}
	if s.framing == LengthPrefixed {
		return s.nextLengthPrefixed()
	}
	return s.nextAnnexB()
}

// Err returns ErrTruncatedStream (wrapped) if a declared length ran past the buffer.
func (s *Scanner) Err() error {
	return s.err
}

// Discarded returns the byte ranges skipped so far.
func (s *Scanner) Discarded() []Span {
	return s.discarded
}

// Reset rewinds the scanner to the start of the buffer.
func (s *Scanner) Reset() {
	s.pos = 0
	s.err = nil
	s.discarded = nil
}

func (s *Scanner) nextAnnexB() (NALUnit, bool) {
	n := len(s.buf)
	for s.pos+4 < n {
		codeLen := startCodeLen(s.buf, s.pos)
		if codeLen == 0 {
			s.discard(s.pos, 1)
			s.pos++
			continue
		}
		start := s.pos + codeLen
		next := nextStartCode(s.buf, start)
		s.pos = next
		if next > start {
			return newNALUnit(s.buf, start, next-start), true
		}
	}
	s.discardTail()
	return NALUnit{}, false
}

func (s *Scanner) nextLengthPrefixed() (NALUnit, bool) {
	n := len(s.buf)
	for s.pos+lengthFieldSize <= n {
		length := binary.BigEndian.Uint32(s.buf[s.pos:])
		start := s.pos + lengthFieldSize
		if uint64(length) > uint64(n-start) {
			s.err = errors.Wrapf(ErrTruncatedStream, "NAL unit at offset %d declares %d bytes, %d left",
				s.pos, length, n-start)
			return NALUnit{}, false
		}
		s.pos = start + int(length)
		if length > 0 {
			return newNALUnit(s.buf, start, int(length)), true
		}
	}
	s.discardTail()
	return NALUnit{}, false
}

func (s *Scanner) discardTail() {
	if s.pos < len(s.buf) {
		s.discard(s.pos, len(s.buf)-s.pos)
		s.pos = len(s.buf)
	}
}

func (s *Scanner) discard(offset, length int) {
	if k := len(s.discarded); k > 0 {
		last := &s.discarded[k-1]
		if last.Offset+last.Length == offset {
			last.Length += length
			return
		}
	}
	s.discarded = append(s.discarded, Span{Offset: offset, Length: length})
}

// startCodeLen returns 3 or 4 for a start code at pos, or 0.
// At least one byte must follow the candidate position + 2 for it to count.
func startCodeLen(buf []byte, pos int) int {
	if pos+3 >= len(buf) {
		return 0
	}
	if buf[pos] != 0 || buf[pos+1] != 0 {
		return 0
	}
	if buf[pos+2] == 1 {
		return 3
	}
	if buf[pos+2] == 0 && buf[pos+3] == 1 {
		return 4
	}
	return 0
}

func nextStartCode(buf []byte, from int) int {
	for i := from; i+3 < len(buf); i++ {
		if startCodeLen(buf, i) > 0 {
			return i
		}
	}
	return len(buf)
}

// Scan returns all NAL units of buf. On a truncated length-prefixed stream it
// returns the units found before the bad length field together with the error.
func Scan(buf []byte, f Framing) ([]NALUnit, error) {
	s := NewScanner(buf, f)
	var units []NALUnit
	for {
		u, ok := s.Next()
		if !ok {
			break
		}
		units = append(units, u)
	}
	return units, s.Err()
}
