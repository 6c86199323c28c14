package internal

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Eyevinn/h264-sei-tools/internal/nalu"
	"github.com/Eyevinn/h264-sei-tools/internal/sei"
)

type Options struct {
	Framing        nalu.Framing
	OutputFraming  nalu.Framing
	Format         sei.Format
	Policy         string
	MaxNrPictures  int
	Indent         bool
	ShowNALU       bool
	ShowSEIDetails bool
	ShowRaw        bool
	ShowStatistics bool
	TS             bool
	BestEffort     bool
	TimestampFile  string
	ImagesDir      string
	Micros         bool
	FPS            float64
	Count          int
	Start          float64
	Stamp          uint64
	HasStamp       bool
	OutPutTo       string
}

const (
	PolicyPerFrame = "frame"
	PolicyAtStart  = "start"
	PolicyAfterPS  = "ps"
)

func CreateFullOptions(max int) Options {
	return Options{MaxNrPictures: max, ShowNALU: true, ShowSEIDetails: true, ShowRaw: true, ShowStatistics: true}
}

type RunableFunc func(ctx context.Context, l *zap.SugaredLogger, w io.Writer, f io.Reader, o Options) error

func RemoveFileIfExists(file string) error {
	_, err := os.Stat(file)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return os.Remove(file)
}

func OpenFileAndAppend(file string) (*os.File, error) {
	fo, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating output file %w", err)
	}

	return fo, nil
}

// OpenOutput returns where to write the stream and where to write the report.
// With outPutTo "-" the stream goes to w and the report to stderr.
func OpenOutput(outPutTo string, w io.Writer) (data io.Writer, text io.Writer, closeFn func() error, err error) {
	if outPutTo == "" || outPutTo == "-" {
		return w, os.Stderr, func() error { return nil }, nil
	}
	if err := RemoveFileIfExists(outPutTo); err != nil {
		return nil, nil, nil, err
	}
	file, err := OpenFileAndAppend(outPutTo)
	if err != nil {
		return nil, nil, nil, err
	}
	return file, w, file.Close, nil
}

func Execute(w io.Writer, l *zap.SugaredLogger, o Options, inFile string, function RunableFunc) error {
	// Create a cancellable context in case you want to stop reading packets/data any time you want
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(ch)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()

	var f io.Reader
	if inFile == "-" {
		f = os.Stdin
	} else {
		fh, err := os.Open(inFile)
		if err != nil {
			return fmt.Errorf("opening input %w", err)
		}
		f = fh
		defer fh.Close()
	}

	return function(ctx, l, w, f, o)
}
