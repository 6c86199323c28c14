package internal

import "github.com/Eyevinn/h264-sei-tools/internal/nalu"

// NaluFrameData is one PES packet of an H.264 PID in a transport stream.
type NaluFrameData struct {
	PID     uint16     `json:"pid"`
	RAI     bool       `json:"rai"`
	PTS     int64      `json:"pts"`
	DTS     int64      `json:"dts,omitempty"`
	ImgType string     `json:"imgType,omitempty"`
	NALUS   []NaluData `json:"nalus,omitempty"`
}

// NaluData is one NAL unit. Offset is only set for elementary stream input.
type NaluData struct {
	Offset    int     `json:"offset,omitempty"`
	Type      string  `json:"type"`
	Len       int     `json:"len"`
	ImgType   string  `json:"imgType,omitempty"`
	Timestamp *uint64 `json:"timestamp,omitempty"`
	Format    string  `json:"format,omitempty"`
	Data      string  `json:"data,omitempty"`
	Raw       string  `json:"raw,omitempty"`
}

// StreamSummary closes a listing.
type StreamSummary struct {
	Framing       string      `json:"framing"`
	NALUnits      int         `json:"nalUnits"`
	Frames        int         `json:"frames"`
	SEIUnits      int         `json:"seiUnits"`
	TimestampSEIs int         `json:"timestampSEIs"`
	Truncated     bool        `json:"truncated,omitempty"`
	Discarded     []nalu.Span `json:"discarded,omitempty"`
}
