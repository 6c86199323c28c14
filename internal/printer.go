package internal

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Eyevinn/h264-sei-tools/internal/sei"
)

type JsonPrinter struct {
	W        io.Writer
	Indent   bool
	AccError error
}

func (p *JsonPrinter) Print(data any, show bool) {
	if !show {
		return
	}
	var out []byte
	var err error
	if p.AccError != nil {
		return
	}
	if p.Indent {
		out, err = json.MarshalIndent(data, "", "  ")
	} else {
		out, err = json.Marshal(data)
	}
	if err != nil {
		p.AccError = err
		return
	}
	_, p.AccError = fmt.Fprintln(p.W, string(out))
}

func (p *JsonPrinter) Error() error {
	return p.AccError
}

type SEIInfo struct {
	Format     string `json:"format"`
	Timestamp  uint64 `json:"timestamp"`
	Hex        string `json:"hex"`
	Length     int    `json:"length"`
	AnnexBSafe bool   `json:"annexBSafe"`
}

// PrintSEI prints the SEI NAL unit carrying ts in format f.
func (p *JsonPrinter) PrintSEI(f sei.Format, ts uint64, show bool) {
	nalu := sei.NewTimestampPayload(f, ts).NALU()
	info := SEIInfo{
		Format:     f.String(),
		Timestamp:  ts,
		Hex:        hex.EncodeToString(nalu),
		Length:     len(nalu),
		AnnexBSafe: f == sei.FormatExtended || sei.SimpleTimestampIsSafe(ts),
	}
	p.Print(info, show)
}
