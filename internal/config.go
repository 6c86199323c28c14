package internal

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"

	"github.com/Eyevinn/h264-sei-tools/internal/nalu"
	"github.com/Eyevinn/h264-sei-tools/internal/sei"
)

// Config holds defaults read from H264SEI_* environment variables.
// Command line flags override them.
type Config struct {
	Framing       string `required:"true" default:"annexb"`
	OutputFraming string `split_words:"true"`
	Format        string `required:"true" default:"simple"`
	LogLevel      string `split_words:"true" default:"info"`
	Indent        bool   `default:"false"`
}

func LoadConfig() (Config, error) {
	var c Config
	if err := envconfig.Process("h264sei", &c); err != nil {
		return Config{}, fmt.Errorf("reading environment %w", err)
	}
	return c, nil
}

// Options returns the Options with the configured defaults.
// An empty OutputFraming means the same framing as the input.
func (c Config) Options() (Options, error) {
	var o Options
	var err error
	if o.Framing, err = nalu.ParseFraming(c.Framing); err != nil {
		return o, err
	}
	o.OutputFraming = o.Framing
	if c.OutputFraming != "" {
		if o.OutputFraming, err = nalu.ParseFraming(c.OutputFraming); err != nil {
			return o, err
		}
	}
	if o.Format, err = sei.ParseFormat(c.Format); err != nil {
		return o, err
	}
	o.Indent = c.Indent
	return o, nil
}
