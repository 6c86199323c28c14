package internal

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

var imageExtensions = []string{".jpg", ".png"}

// ReadTimestamps reads one timestamp per line. Values are seconds unless micros
// is set. Empty lines and lines starting with # are skipped.
func ReadTimestamps(r io.Reader, micros bool) ([]uint64, error) {
	var timestamps []uint64
	scanner := bufio.NewScanner(r)
	lineNr := 0
	for scanner.Scan() {
		lineNr++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if micros {
			v, err := strconv.ParseUint(line, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNr, err)
			}
			timestamps = append(timestamps, v)
			continue
		}
		secs, err := parseSeconds(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNr, err)
		}
		timestamps = append(timestamps, SecondsToMicros(secs))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading timestamps %w", err)
	}
	return timestamps, nil
}

func parseSeconds(s string) (float64, error) {
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0, fmt.Errorf("bad timestamp %s", s)
	}
	return secs, nil
}

func SecondsToMicros(secs float64) uint64 {
	return uint64(math.Round(secs * 1e6))
}

// GenerateTimestamps returns count timestamps starting at start seconds, fps apart.
func GenerateTimestamps(start, fps float64, count int) []uint64 {
	if fps <= 0 || count <= 0 {
		return nil
	}
	timestamps := make([]uint64, count)
	for i := range timestamps {
		timestamps[i] = SecondsToMicros(start + float64(i)/fps)
	}
	return timestamps
}

// TimestampsFromImages takes timestamps from image file names like
// image_0001_1751959747.173.jpg, in file name order.
func TimestampsFromImages(l *zap.SugaredLogger, dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading image directory %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !slices.Contains(imageExtensions, filepath.Ext(e.Name())) {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)

	timestamps := make([]uint64, 0, len(names))
	for _, name := range names {
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		i := strings.LastIndexByte(stem, '_')
		if i < 0 {
			l.Warnw("no timestamp in image name", "file", name)
			continue
		}
		secs, err := parseSeconds(stem[i+1:])
		if err != nil {
			l.Warnw("cannot parse timestamp from image name", "file", name, "err", err)
			continue
		}
		timestamps = append(timestamps, SecondsToMicros(secs))
	}
	l.Infow("timestamps from images", "dir", dir, "count", len(timestamps))
	return timestamps, nil
}

// LoadTimestamps returns the timestamps selected by o: a timestamp file, an
// image directory or a generated sequence, in that order of preference.
func LoadTimestamps(l *zap.SugaredLogger, o Options) ([]uint64, error) {
	switch {
	case o.TimestampFile != "":
		fh, err := os.Open(o.TimestampFile)
		if err != nil {
			return nil, fmt.Errorf("opening timestamp file %w", err)
		}
		defer fh.Close()
		return ReadTimestamps(fh, o.Micros)
	case o.ImagesDir != "":
		return TimestampsFromImages(l, o.ImagesDir)
	default:
		return GenerateTimestamps(o.Start, o.FPS, o.Count), nil
	}
}
