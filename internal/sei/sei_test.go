package sei

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/Eyevinn/mp4ff/avc"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var timestampValues = []uint64{
	0,
	1,
	1000000,
	1751959747173000,
	0x0000000100000000, // contains 00 00 01
	0x0100000300000002,
	math.MaxUint64,
}

func TestBuildSimple(t *testing.T) {
	got := BuildSimple(1000000)
	want := []byte{0x06, 0x01, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00, 0x0f, 0x42, 0x40, 0x80}
	require.Equal(t, want, got)
	require.Len(t, got, SimpleTimestampLen)
}

func TestSimpleRoundTrip(t *testing.T) {
	for _, ts := range timestampValues {
		got, ok := ParseSimple(BuildSimple(ts))
		require.True(t, ok, "ts %d", ts)
		require.Equal(t, ts, got)
	}
}

func TestParseSimpleRejects(t *testing.T) {
	testCases := []struct {
		name string
		nalu []byte
	}{
		{"empty", nil},
		{"too short", []byte{0x06, 0x01, 0x08, 0x00, 0x00}},
		{"not SEI", []byte{0x65, 0x01, 0x08, 0, 0, 0, 0, 0, 0, 0, 1, 0x80}},
		{"wrong payload type", []byte{0x06, 0x05, 0x08, 0, 0, 0, 0, 0, 0, 0, 1, 0x80}},
		{"wrong payload size", []byte{0x06, 0x01, 0x09, 0, 0, 0, 0, 0, 0, 0, 1, 0x80}},
		{"extended format", BuildTimestamp(5)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ts, ok := ParseSimple(tc.nalu)
			require.False(t, ok)
			require.Equal(t, uint64(0), ts)
		})
	}
}

func TestZeroIsNotAbsent(t *testing.T) {
	ts, ok := ParseSimple(BuildSimple(0))
	require.True(t, ok)
	require.Equal(t, uint64(0), ts)

	_, ok = ParseSimple([]byte{0x65, 0x88, 0x84})
	require.False(t, ok)

	ts, f, err := ExtractTimestamp(BuildTimestamp(0))
	require.NoError(t, err)
	require.Equal(t, FormatExtended, f)
	require.Equal(t, uint64(0), ts)
}

func TestSimpleTimestampIsSafe(t *testing.T) {
	require.True(t, SimpleTimestampIsSafe(1751959747173000))
	require.False(t, SimpleTimestampIsSafe(0))
	require.False(t, SimpleTimestampIsSafe(0x0000000100000000))
	require.True(t, SimpleTimestampIsSafe(0x1111111111111111))
}

func TestBuildTimestamp(t *testing.T) {
	nalu := BuildTimestamp(0x1122334455667788)
	want := []byte{0x06, 0x05, 0x18}
	want = append(want, []byte("ROSBAG-TIMESTAMP")...)
	want = append(want, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x80)
	require.Equal(t, want, nalu)
}

func TestExtendedRoundTrip(t *testing.T) {
	for _, ts := range timestampValues {
		nalu := BuildTimestamp(ts)
		requireEscaped(t, nalu)
		got, err := ParseTimestamp(nalu)
		require.NoError(t, err)
		require.Equal(t, ts, got)
	}
}

func TestExtendedWithForbiddenRuns(t *testing.T) {
	ts := uint64(0x0000000000000000)
	data := append(TimestampBytes(ts), 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x03)
	nalu := BuildUserData(TimestampUUID, data)
	requireEscaped(t, nalu)

	got, err := ParseTimestamp(nalu)
	require.NoError(t, err)
	require.Equal(t, ts, got)

	d, err := ParseUserData(nalu)
	require.NoError(t, err)
	require.Equal(t, TimestampUUID, d.UUID)
	require.Equal(t, data, d.Data)
}

func TestLargeUserDataSize(t *testing.T) {
	data := bytes.Repeat([]byte{0xab}, 600)
	nalu := BuildUserData(TimestampUUID, data)
	// 616 = 255 + 255 + 106
	require.Equal(t, []byte{0x06, 0x05, 0xff, 0xff, 106}, nalu[:5])

	d, err := ParseUserData(nalu)
	require.NoError(t, err)
	require.Equal(t, data, d.Data)

	ts, ok := d.Timestamp()
	require.True(t, ok)
	require.Equal(t, uint64(0xabababababababab), ts)
}

func TestSizeOf255(t *testing.T) {
	data := bytes.Repeat([]byte{0x11}, 255-16)
	nalu := BuildUserData(TimestampUUID, data)
	require.Equal(t, []byte{0x06, 0x05, 0xff, 0x00}, nalu[:4])
	d, err := ParseUserData(nalu)
	require.NoError(t, err)
	require.Len(t, d.Data, 255-16)
}

func TestParseTimestampErrors(t *testing.T) {
	otherUUID := uuid.MustParse("dc45e9bd-e6d9-48b7-962c-d820d923eeef")

	testCases := []struct {
		name    string
		nalu    []byte
		wantErr error
	}{
		{"empty", nil, ErrNotSEI},
		{"slice", []byte{0x65, 0x05, 0x18}, ErrNotSEI},
		{"simple format", BuildSimple(42), ErrNotRecognized},
		{"other uuid", BuildUserData(otherUUID, TimestampBytes(42)), ErrUnknownUUID},
		{"short body", BuildUserData(TimestampUUID, []byte{1, 2, 3}), ErrNotRecognized},
		{"unterminated size", []byte{0x06, 0x05, 0xff, 0xff}, ErrMalformedSize},
		{"only header", []byte{0x06}, ErrNotRecognized},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ts, err := ParseTimestamp(tc.nalu)
			require.Error(t, err)
			require.True(t, errors.Is(err, tc.wantErr), "got %v", err)
			require.Equal(t, uint64(0), ts)
		})
	}
}

func TestUnknownUUIDIsNotRecognized(t *testing.T) {
	require.True(t, errors.Is(ErrUnknownUUID, ErrNotRecognized))
	require.True(t, errors.Is(ErrMalformedSize, ErrNotRecognized))
	require.False(t, errors.Is(ErrNotSEI, ErrNotRecognized))
}

func TestExtractTimestamp(t *testing.T) {
	otherUUID := uuid.MustParse("dc45e9bd-e6d9-48b7-962c-d820d923eeef")

	testCases := []struct {
		name       string
		nalu       []byte
		wantTS     uint64
		wantFormat Format
		wantErr    error
	}{
		{"simple", BuildSimple(1751959747173000), 1751959747173000, FormatSimple, nil},
		{"extended", BuildTimestamp(1751959747173000), 1751959747173000, FormatExtended, nil},
		{"other uuid", BuildUserData(otherUUID, TimestampBytes(3)), 0, 0, ErrUnknownUUID},
		{"pic timing", []byte{0x06, 0x01, 0x02, 0x10, 0x20, 0x80}, 0, 0, ErrNotRecognized},
		{"not SEI", []byte{0x67, 0x42}, 0, 0, ErrNotSEI},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ts, f, err := ExtractTimestamp(tc.nalu)
			if tc.wantErr != nil {
				require.True(t, errors.Is(err, tc.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantTS, ts)
			require.Equal(t, tc.wantFormat, f)
		})
	}
}

func TestDecode(t *testing.T) {
	p, err := Decode(BuildSimple(7))
	require.NoError(t, err)
	require.Equal(t, SimpleTimestamp{TimestampUs: 7}, p)
	require.Equal(t, BuildSimple(7), p.NALU())

	p, err = Decode(BuildTimestamp(7))
	require.NoError(t, err)
	d, ok := p.(TaggedUserData)
	require.True(t, ok)
	ts, ok := d.Timestamp()
	require.True(t, ok)
	require.Equal(t, uint64(7), ts)
	require.Equal(t, BuildTimestamp(7), p.NALU())
}

func TestNewTimestampPayload(t *testing.T) {
	require.Equal(t, BuildSimple(9), NewTimestampPayload(FormatSimple, 9).NALU())
	require.Equal(t, BuildTimestamp(9), NewTimestampPayload(FormatExtended, 9).NALU())
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("extended")
	require.NoError(t, err)
	require.Equal(t, FormatExtended, f)
	require.Equal(t, "extended", f.String())
	_, err = ParseFormat("fancy")
	require.Error(t, err)
}

// The extended format is a standard user_data_unregistered message, so a generic
// SEI parser must accept it.
func TestExtendedIsStandardSEI(t *testing.T) {
	nalu := BuildTimestamp(1751959747173000)
	require.Equal(t, avc.NALU_SEI, avc.GetNaluType(nalu[0]))
	msgs, err := avc.ParseSEINalu(nalu, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, uint(PayloadTypeUserDataUnregistered), msgs[0].Type())
}

// requireEscaped fails if nalu holds 00 00 followed by 00, 01 or 02.
// A 03 after two zeros is an emulation prevention byte.
func requireEscaped(t *testing.T, nalu []byte) {
	t.Helper()
	zeros := 0
	for i, b := range nalu {
		if zeros >= 2 && b <= 0x02 {
			t.Fatalf("unescaped 00 00 %02x at %d in % x", b, i-2, nalu)
		}
		switch {
		case zeros >= 2 && b == 0x03:
			zeros = 0
		case b == 0x00:
			zeros++
		default:
			zeros = 0
		}
	}
}
