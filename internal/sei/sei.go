// Package sei builds and parses the timestamp-carrying SEI NAL units.
//
// Two wire formats exist. The simple format is a fixed 12-byte NAL unit
//
//	06 01 08 <8 bytes big-endian timestamp> 80
//
// whose timestamp bytes are NOT emulation-prevented. A timestamp containing
// 00 00 0x (x <= 3) therefore produces a NAL unit that breaks a later Annex-B scan
// of the same stream. The format is kept for existing consumers; use the
// extended format for anything new.
//
// The extended format is a user_data_unregistered SEI message
//
//	06 rbsp(05 <size> <16-byte uuid> <data>) 80
//
// tagged with TimestampUUID when it carries an 8-byte big-endian timestamp.
package sei

import (
	"bytes"
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Eyevinn/h264-sei-tools/internal/rbsp"
)

const (
	NaluTypeSEI                     = 6
	PayloadTypeSimpleTimestamp      = 1
	PayloadTypeUserDataUnregistered = 5

	// SimpleTimestampLen is the full length of a simple-format SEI NAL unit.
	SimpleTimestampLen = 12
	timestampLen       = 8
	uuidLen            = 16
)

// TimestampUUID spells "ROSBAG-TIMESTAMP" in ASCII.
var TimestampUUID = uuid.UUID{
	0x52, 0x4F, 0x53, 0x42,
	0x41, 0x47, 0x2D, 0x54,
	0x49, 0x4D, 0x45, 0x53,
	0x54, 0x41, 0x4D, 0x50,
}

var (
	ErrNotSEI        = errors.New("not an SEI NAL unit")
	ErrNotRecognized = errors.New("SEI payload not recognized")
	ErrUnknownUUID   = errors.Wrap(ErrNotRecognized, "unrecognized user data tag")
	ErrMalformedSize = errors.Wrap(ErrNotRecognized, "malformed payload size")
)

// Format tells which wire format a timestamp SEI uses.
type Format int

const (
	FormatSimple Format = iota
	FormatExtended
)

func (f Format) String() string {
	switch f {
	case FormatSimple:
		return "simple"
	case FormatExtended:
		return "extended"
	default:
		return "unknown"
	}
}

// ParseFormat maps "simple" and "extended" to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "simple":
		return FormatSimple, nil
	case "extended":
		return FormatExtended, nil
	}
	return 0, errors.Errorf("unknown SEI format %q", s)
}

// Payload is one of SimpleTimestamp or TaggedUserData.
type Payload interface {
	// NALU returns the complete SEI NAL unit without start code or length prefix.
	NALU() []byte
}

// SimpleTimestamp is the fixed-shape payload carrying a microsecond timestamp.
type SimpleTimestamp struct {
	TimestampUs uint64
}

func (s SimpleTimestamp) NALU() []byte {
	return BuildSimple(s.TimestampUs)
}

// TaggedUserData is a user_data_unregistered payload identified by UUID.
type TaggedUserData struct {
	UUID uuid.UUID
	Data []byte
}

func (d TaggedUserData) NALU() []byte {
	return BuildUserData(d.UUID, d.Data)
}

// Timestamp returns the timestamp carried by d, if d is a timestamp payload.
func (d TaggedUserData) Timestamp() (uint64, bool) {
	if d.UUID != TimestampUUID || len(d.Data) < timestampLen {
		return 0, false
	}
	return binary.BigEndian.Uint64(d.Data), true
}

// NewTimestampPayload returns the payload for ts in format f.
func NewTimestampPayload(f Format, ts uint64) Payload {
	if f == FormatExtended {
		return TaggedUserData{UUID: TimestampUUID, Data: TimestampBytes(ts)}
	}
	return SimpleTimestamp{TimestampUs: ts}
}

// TimestampBytes returns ts as 8 big-endian bytes.
func TimestampBytes(ts uint64) []byte {
	b := make([]byte, timestampLen)
	binary.BigEndian.PutUint64(b, ts)
	return b
}

// BuildSimple returns the simple-format SEI NAL unit for ts.
func BuildSimple(ts uint64) []byte {
	nalu := make([]byte, 0, SimpleTimestampLen)
	nalu = append(nalu, NaluTypeSEI, PayloadTypeSimpleTimestamp, timestampLen)
	nalu = binary.BigEndian.AppendUint64(nalu, ts)
	return append(nalu, rbsp.StopByte)
}

// ParseSimple returns the timestamp of a simple-format SEI NAL unit.
// ok is false if nalu is not one, which is different from a zero timestamp.
func ParseSimple(nalu []byte) (ts uint64, ok bool) {
	if len(nalu) < SimpleTimestampLen {
		return 0, false
	}
	if nalu[0]&0x1f != NaluTypeSEI {
		return 0, false
	}
	if nalu[1] != PayloadTypeSimpleTimestamp || nalu[2] != timestampLen {
		return 0, false
	}
	return binary.BigEndian.Uint64(nalu[3 : 3+timestampLen]), true
}

// SimpleTimestampIsSafe reports whether the simple-format NAL unit for ts can be
// placed in an Annex-B stream without emulating a start code.
func SimpleTimestampIsSafe(ts uint64) bool {
	return !rbsp.HasStartCodeEmulation(BuildSimple(ts))
}

// BuildUserData returns a user_data_unregistered SEI NAL unit tagged with id.
func BuildUserData(id uuid.UUID, data []byte) []byte {
	size := uuidLen + len(data)
	payload := make([]byte, 0, 2+size/255+size)
	payload = append(payload, PayloadTypeUserDataUnregistered)
	for ; size >= 255; size -= 255 {
		payload = append(payload, 0xff)
	}
	payload = append(payload, byte(size))
	payload = append(payload, id[:]...)
	payload = append(payload, data...)

	ebsp := rbsp.Encode(payload)
	nalu := make([]byte, 0, len(ebsp)+2)
	nalu = append(nalu, NaluTypeSEI)
	nalu = append(nalu, ebsp...)
	return append(nalu, rbsp.StopByte)
}

// BuildTimestamp returns the extended-format SEI NAL unit for ts.
func BuildTimestamp(ts uint64) []byte {
	return BuildUserData(TimestampUUID, TimestampBytes(ts))
}

// userDataPayload returns the decoded payload after the size field and the declared size.
func userDataPayload(nalu []byte) ([]byte, int, error) {
	if len(nalu) == 0 || nalu[0]&0x1f != NaluTypeSEI {
		return nil, 0, ErrNotSEI
	}
	payload := rbsp.DecodePayload(nalu[1:])
	if len(payload) == 0 || payload[0] != PayloadTypeUserDataUnregistered {
		return nil, 0, ErrNotRecognized
	}
	pos := 1
	size := 0
	for pos < len(payload) && payload[pos] == 0xff {
		size += 255
		pos++
	}
	if pos >= len(payload) {
		return nil, 0, errors.Wrapf(ErrMalformedSize, "size field runs to end after %d bytes", pos-1)
	}
	size += int(payload[pos])
	pos++
	return payload[pos:], size, nil
}

// ParseTimestamp returns the timestamp of an extended-format SEI NAL unit.
// A well-formed user data SEI with another tag gives ErrUnknownUUID.
func ParseTimestamp(nalu []byte) (uint64, error) {
	body, _, err := userDataPayload(nalu)
	if err != nil {
		return 0, err
	}
	if len(body) < uuidLen+timestampLen {
		return 0, errors.Wrapf(ErrNotRecognized, "%d bytes is too short for a timestamp", len(body))
	}
	if !bytes.Equal(body[:uuidLen], TimestampUUID[:]) {
		return 0, ErrUnknownUUID
	}
	return binary.BigEndian.Uint64(body[uuidLen : uuidLen+timestampLen]), nil
}

// ParseUserData decodes a user_data_unregistered SEI NAL unit with any tag.
// The data is bounded by the declared payload size.
func ParseUserData(nalu []byte) (TaggedUserData, error) {
	body, size, err := userDataPayload(nalu)
	if err != nil {
		return TaggedUserData{}, err
	}
	if size < uuidLen || size > len(body) {
		return TaggedUserData{}, errors.Wrapf(ErrMalformedSize, "declared %d bytes, have %d", size, len(body))
	}
	var d TaggedUserData
	copy(d.UUID[:], body[:uuidLen])
	d.Data = append([]byte{}, body[uuidLen:size]...)
	return d, nil
}

// ExtractTimestamp tries the extended format first and then the simple one.
func ExtractTimestamp(nalu []byte) (uint64, Format, error) {
	if len(nalu) == 0 || nalu[0]&0x1f != NaluTypeSEI {
		return 0, 0, ErrNotSEI
	}
	ts, err := ParseTimestamp(nalu)
	if err == nil {
		return ts, FormatExtended, nil
	}
	if ts, ok := ParseSimple(nalu); ok {
		return ts, FormatSimple, nil
	}
	if errors.Is(err, ErrUnknownUUID) {
		return 0, 0, err
	}
	return 0, 0, ErrNotRecognized
}

// Decode returns the payload variant of an SEI NAL unit.
func Decode(nalu []byte) (Payload, error) {
	if ts, ok := ParseSimple(nalu); ok {
		return SimpleTimestamp{TimestampUs: ts}, nil
	}
	return ParseUserData(nalu)
}
