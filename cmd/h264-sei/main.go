package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Eyevinn/h264-sei-tools/internal"
)

var usg = `%s reads and writes microsecond timestamps carried in H.264 SEI NAL units.

Streams are raw H.264 in Annex-B (start codes) or AVCC (4-byte length prefix) framing.
Defaults for the common options can be set with H264SEI_FRAMING, H264SEI_OUTPUT_FRAMING,
H264SEI_FORMAT, H264SEI_LOG_LEVEL and H264SEI_INDENT.
`

// app carries the state shared by all subcommands.
type app struct {
	cfg           internal.Config
	opts          internal.Options
	log           *zap.SugaredLogger
	framing       string
	outputFraming string
	format        string
	logLevel      string
}

func newRootCmd(w io.Writer) (*cobra.Command, error) {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}

	rootCmd := &cobra.Command{
		Use:           "h264-sei",
		Short:         "read and write timestamp SEI NAL units in H.264 streams",
		Long:          fmt.Sprintf(usg, "h264-sei"),
		Version:       internal.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	rootCmd.SetOut(w)
	addCommonFlags(rootCmd.PersistentFlags(), a)

	rootCmd.AddCommand(newListCmd(a, w))
	rootCmd.AddCommand(newInjectCmd(a, w))
	rootCmd.AddCommand(newConvertCmd(a, w))
	rootCmd.AddCommand(newBuildCmd(a, w))
	return rootCmd, nil
}

func addCommonFlags(fs *pflag.FlagSet, a *app) {
	fs.StringVar(&a.framing, "framing", a.cfg.Framing, "input framing: annexb or avcc")
	fs.StringVar(&a.format, "format", a.cfg.Format, "SEI format: simple or extended")
	fs.StringVar(&a.logLevel, "log-level", a.cfg.LogLevel, "log level: debug, info, warn or error")
	fs.BoolVar(&a.opts.Indent, "indent", a.cfg.Indent, "indent JSON output")
}

// setup turns flag values into Options and creates the logger.
func (a *app) setup() error {
	cfg := a.cfg
	cfg.Framing = a.framing
	cfg.Format = a.format
	if a.outputFraming != "" {
		cfg.OutputFraming = a.outputFraming
	}
	o, err := cfg.Options()
	if err != nil {
		return err
	}
	// The other options are bound to flags
	a.opts.Framing = o.Framing
	a.opts.OutputFraming = o.OutputFraming
	a.opts.Format = o.Format
	if a.log == nil {
		if a.log, err = internal.NewLogger(a.logLevel); err != nil {
			return err
		}
	}
	return nil
}

// inFile returns the input file argument, or - for stdin.
func inFile(args []string) string {
	if len(args) == 0 {
		return "-"
	}
	return args[0]
}

func main() {
	rootCmd, err := newRootCmd(os.Stdout)
	if err != nil {
		log.Fatal(err)
	}
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
