package main

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Eyevinn/h264-sei-tools/internal"
)

func addOutputFlags(fs *pflag.FlagSet, a *app) {
	fs.StringVarP(&a.opts.OutPutTo, "output", "o", "-", "output file (- for stdout, the report then goes to stderr)")
	fs.StringVar(&a.outputFraming, "output-framing", "", "output framing: annexb or avcc (default same as input)")
	fs.BoolVar(&a.opts.BestEffort, "best-effort", false, "write the complete NAL units of a truncated input")
	fs.BoolVar(&a.opts.ShowStatistics, "statistics", true, "print rewrite statistics")
}

func newInjectCmd(a *app, w io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inject [file]",
		Short: "replace the SEI units of a stream by timestamp SEI units",
		Long: `inject drops all SEI NAL units and inserts timestamp SEIs according to --policy:
  frame  one timestamp in front of every frame, in order
  ps     one timestamp after every PPS that follows an SPS
  start  one timestamp (--stamp or the first one) at the start of the stream
Timestamps come from --timestamps, --images or are generated with --fps, --count and --start.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.opts.HasStamp = cmd.Flags().Changed("stamp")
			return internal.Execute(w, a.log, a.opts, inFile(args), internal.Inject)
		},
	}
	fs := cmd.Flags()
	addOutputFlags(fs, a)
	fs.StringVar(&a.opts.Policy, "policy", internal.PolicyPerFrame, "insertion policy: frame, ps or start")
	fs.StringVar(&a.opts.TimestampFile, "timestamps", "", "file with one timestamp per line in seconds")
	fs.BoolVar(&a.opts.Micros, "micros", false, "timestamps in the file are integer microseconds")
	fs.StringVar(&a.opts.ImagesDir, "images", "", "directory of image_<nr>_<seconds>.jpg/png files to take timestamps from")
	fs.Float64Var(&a.opts.FPS, "fps", 30, "frame rate of generated timestamps")
	fs.IntVar(&a.opts.Count, "count", 300, "number of generated timestamps")
	fs.Float64Var(&a.opts.Start, "start", 0, "first generated timestamp in seconds")
	fs.Uint64Var(&a.opts.Stamp, "stamp", 0, "timestamp in microseconds for --policy start")
	return cmd
}
