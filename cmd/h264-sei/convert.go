package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/Eyevinn/h264-sei-tools/internal"
	"github.com/Eyevinn/h264-sei-tools/internal/nalu"
)

func newConvertCmd(a *app, w io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert [file]",
		Short: "change the framing of a stream",
		Long: `convert rewrites a stream with --output-framing (default the other framing),
keeping every NAL unit.
With --stamp all SEI units are dropped and one timestamp SEI is put first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.opts.HasStamp = cmd.Flags().Changed("stamp")
			if a.outputFraming == "" && a.cfg.OutputFraming == "" {
				a.opts.OutputFraming = otherFraming(a.opts.Framing)
			}
			return internal.Execute(w, a.log, a.opts, inFile(args), internal.Convert)
		},
	}
	fs := cmd.Flags()
	addOutputFlags(fs, a)
	fs.Uint64Var(&a.opts.Stamp, "stamp", 0, "timestamp in microseconds to put first")
	return cmd
}

func otherFraming(f nalu.Framing) nalu.Framing {
	if f == nalu.AnnexB {
		return nalu.LengthPrefixed
	}
	return nalu.AnnexB
}
