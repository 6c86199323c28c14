package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/Eyevinn/h264-sei-tools/internal"
	"github.com/Eyevinn/h264-sei-tools/internal/avc"
)

func newListCmd(a *app, w io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [file]",
		Short: "list NAL units, SEI timestamps and timestamp statistics",
		Long: `list prints one JSON line per NAL unit with the timestamp of every timestamp SEI,
then a summary and timestamp statistics. With --ts the input is an MPEG-TS file and
one line per H.264 PES packet is printed. Use - or no file for stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := internal.ListNALUs
			if a.opts.TS {
				f = avc.ListTS
			}
			return internal.Execute(w, a.log, a.opts, inFile(args), f)
		},
	}
	fs := cmd.Flags()
	fs.IntVar(&a.opts.MaxNrPictures, "max", 0, "max nr pictures to parse (0 for all)")
	fs.BoolVar(&a.opts.ShowNALU, "nalu", true, "print NAL units")
	fs.BoolVar(&a.opts.ShowSEIDetails, "sei", false, "print details of other SEI messages")
	fs.BoolVar(&a.opts.ShowRaw, "raw", false, "print hex of the first 32 bytes of SEI units")
	fs.BoolVar(&a.opts.ShowStatistics, "statistics", true, "print timestamp statistics")
	fs.BoolVar(&a.opts.TS, "ts", false, "input is an MPEG-TS file")
	return cmd
}
