package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Eyevinn/h264-sei-tools/internal"
)

func newBuildCmd(a *app, w io.Writer) *cobra.Command {
	var seconds bool
	cmd := &cobra.Command{
		Use:   "build TIMESTAMP",
		Short: "print the SEI NAL unit for a timestamp in microseconds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if seconds {
				secs, err := strconv.ParseFloat(args[0], 64)
				if err != nil || secs < 0 {
					return fmt.Errorf("bad timestamp %q", args[0])
				}
				a.opts.Stamp = internal.SecondsToMicros(secs)
			} else {
				ts, err := strconv.ParseUint(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("bad timestamp %q %w", args[0], err)
				}
				a.opts.Stamp = ts
			}
			a.opts.HasStamp = true
			return internal.BuildSEI(context.Background(), a.log, w, nil, a.opts)
		},
	}
	cmd.Flags().BoolVar(&seconds, "seconds", false, "TIMESTAMP is in seconds")
	return cmd
}
