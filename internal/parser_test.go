package internal

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Eyevinn/h264-sei-tools/internal/nalu"
	"github.com/Eyevinn/h264-sei-tools/internal/sei"
)

var (
	update = flag.Bool("update", false, "update the golden files of this test")
)

var (
	sps     = []byte{0x67, 0xaa}
	pps     = []byte{0x68, 0xbb}
	idr     = []byte{0x65, 0xcc}
	nonIDR  = []byte{0x41, 0xdd}
	oldSEI  = []byte{0x06, 0xc8, 0x01, 0xee, 0x80}
	safeTS  = uint64(1751959747173000)
	safeTS2 = uint64(1751959747206333)
)

func annexB(nalus ...[]byte) []byte {
	var out []byte
	for _, n := range nalus {
		out = append(out, 0, 0, 0, 1)
		out = append(out, n...)
	}
	return out
}

func avcc(nalus ...[]byte) []byte {
	var out []byte
	for _, n := range nalus {
		out = append(out, byte(len(n)>>24), byte(len(n)>>16), byte(len(n)>>8), byte(len(n)))
		out = append(out, n...)
	}
	return out
}

func jsonLines(t *testing.T, s string) []string {
	t.Helper()
	return strings.Split(strings.TrimSpace(s), "\n")
}

func TestBuildSEI(t *testing.T) {
	cases := []struct {
		name                 string
		options              Options
		expected_output_file string
	}{
		{"simple", Options{Format: sei.FormatSimple, Stamp: 1000000}, "testdata/golden_build_simple.txt"},
		{"extended_indented", Options{Format: sei.FormatExtended, Stamp: safeTS, Indent: true}, "testdata/golden_build_extended.txt"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			buf := bytes.Buffer{}
			err := BuildSEI(context.TODO(), zaptest.NewLogger(t).Sugar(), &buf, nil, c.options)
			require.NoError(t, err)
			compareUpdateGolden(t, buf.String(), c.expected_output_file, *update)
		})
	}
}

func TestListNALUs(t *testing.T) {
	in := append([]byte{0xff, 0xfe}, annexB(sps, pps, sei.BuildSimple(safeTS), idr, sei.BuildTimestamp(safeTS2), nonIDR)...)
	buf := bytes.Buffer{}
	o := CreateFullOptions(0)
	err := ListNALUs(context.TODO(), zaptest.NewLogger(t).Sugar(), &buf, bytes.NewReader(in), o)
	require.NoError(t, err)

	lines := jsonLines(t, buf.String())
	require.Len(t, lines, 8)
	nds := make([]NaluData, 6)
	for i := range nds {
		require.NoError(t, json.Unmarshal([]byte(lines[i]), &nds[i]))
	}
	require.Equal(t, 6, nds[0].Offset)
	require.Equal(t, safeTS, *nds[2].Timestamp)
	require.Equal(t, "simple", nds[2].Format)
	require.Equal(t, "06010800063965ea641a8880", nds[2].Raw)
	require.Equal(t, safeTS2, *nds[4].Timestamp)
	require.Equal(t, "extended", nds[4].Format)
	require.Equal(t, hex.EncodeToString(sei.BuildTimestamp(safeTS2)), nds[4].Raw)
	require.Nil(t, nds[3].Timestamp)

	var summary StreamSummary
	require.NoError(t, json.Unmarshal([]byte(lines[6]), &summary))
	require.Equal(t, StreamSummary{
		Framing:       "annexb",
		NALUnits:      6,
		Frames:        2,
		SEIUnits:      2,
		TimestampSEIs: 2,
		Discarded:     []nalu.Span{{Offset: 0, Length: 2}},
	}, summary)

	var stats TimestampStatistics
	require.NoError(t, json.Unmarshal([]byte(lines[7]), &stats))
	require.Equal(t, 2, stats.Count)
	require.Equal(t, int64(33333), stats.AvgStep)
	require.Equal(t, 30.0, stats.FrameRate)
	require.Empty(t, stats.Errors)
}

func TestListNALUsLengthPrefixed(t *testing.T) {
	in := avcc(sps, pps, oldSEI, idr, nonIDR, nonIDR)
	in = append(in, 0, 0, 0, 9, 0x41)
	buf := bytes.Buffer{}
	o := Options{Framing: nalu.LengthPrefixed, MaxNrPictures: 2}
	err := ListNALUs(context.TODO(), zaptest.NewLogger(t).Sugar(), &buf, bytes.NewReader(in), o)
	require.NoError(t, err)

	lines := jsonLines(t, buf.String())
	require.Len(t, lines, 1)
	var summary StreamSummary
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &summary))
	require.Equal(t, StreamSummary{Framing: "avcc", NALUnits: 5, Frames: 2, SEIUnits: 1}, summary)
}

func TestListNALUsTruncated(t *testing.T) {
	in := avcc(sps, idr)
	in = append(in, 0, 0, 0, 9, 0x41)
	buf := bytes.Buffer{}
	o := Options{Framing: nalu.LengthPrefixed}
	err := ListNALUs(context.TODO(), zaptest.NewLogger(t).Sugar(), &buf, bytes.NewReader(in), o)
	require.NoError(t, err)
	var summary StreamSummary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &summary))
	require.True(t, summary.Truncated)
	require.Equal(t, 2, summary.NALUnits)
}

func TestExecuteListFile(t *testing.T) {
	buf := bytes.Buffer{}
	o := Options{Framing: nalu.AnnexB, ShowStatistics: true}
	err := Execute(&buf, zaptest.NewLogger(t).Sugar(), o, "testdata/timestamps.h264", ListNALUs)
	require.NoError(t, err)
	lines := jsonLines(t, buf.String())
	require.Len(t, lines, 2)
	var stats TimestampStatistics
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &stats))
	require.Equal(t, 3, stats.Count)
	require.Equal(t, safeTS, stats.First)
	require.Equal(t, 30.0, stats.FrameRate)

	err = Execute(&buf, zaptest.NewLogger(t).Sugar(), o, "testdata/missing.h264", ListNALUs)
	require.Error(t, err)
}

func getExpectedOutput(t *testing.T, file string) string {
	t.Helper()
	expected_output, err := os.ReadFile(file)
	require.NoError(t, err)
	expected_output_str := strings.ReplaceAll(string(expected_output), "\r\n", "\n")
	return expected_output_str
}

func compareUpdateGolden(t *testing.T, actual string, goldenFile string, update bool) {
	t.Helper()
	if update {
		err := os.WriteFile(goldenFile, []byte(actual), 0644)
		require.NoError(t, err)
	} else {
		expected := getExpectedOutput(t, goldenFile)
		require.Equal(t, expected, actual, "should produce expected output")
	}
}

// TestMain is to set flags for tests. In particular, the update flag to update golden files.
func TestMain(m *testing.M) {
	flag.Parse()
	os.Exit(m.Run())
}
