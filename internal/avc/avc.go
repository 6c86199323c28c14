// Package avc lists the timestamp SEIs of H.264 video carried in MPEG-TS.
package avc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Eyevinn/mp4ff/avc"
	"github.com/asticode/go-astits"
	"go.uber.org/zap"

	"github.com/Eyevinn/h264-sei-tools/internal"
	"github.com/Eyevinn/h264-sei-tools/internal/nalu"
)

const PacketSize = 188

// AvcPS tracks the active SPS of one PID and its timestamp statistics.
type AvcPS struct {
	spss       map[uint32]*avc.SPS
	Statistics internal.TimestampStatistics
}

func (a *AvcPS) getSPS() *avc.SPS {
	for _, sps := range a.spss {
		return sps
	}
	return nil
}

func (a *AvcPS) setSPS(data []byte) error {
	if a.spss == nil {
		a.spss = make(map[uint32]*avc.SPS, 1)
	}
	sps, err := avc.ParseSPSNALUnit(data, true)
	if err != nil {
		return err
	}
	a.spss[sps.ParameterID] = sps
	if len(a.spss) > 1 {
		return fmt.Errorf("more than one SPS")
	}
	return nil
}

// ListTS demuxes a transport stream and lists the NAL units of every H.264 PES
// packet together with its PTS and the SEI timestamps it carries.
func ListTS(ctx context.Context, l *zap.SugaredLogger, w io.Writer, f io.Reader, o internal.Options) error {
	rd := bufio.NewReaderSize(f, 1000*PacketSize)
	dmx := astits.NewDemuxer(ctx, rd)
	h264PIDs := make(map[uint16]bool)
	avcPSs := make(map[uint16]*AvcPS)
	var pids []uint16
	nrPics := 0
	jp := &internal.JsonPrinter{W: w, Indent: o.Indent}
dataLoop:
	for {
		// Check if context was cancelled
		select {
		case <-ctx.Done():
			break dataLoop
		default:
		}

		d, err := dmx.NextData()
		if err != nil {
			if errors.Is(err, astits.ErrNoMorePackets) {
				break dataLoop
			}
			return fmt.Errorf("reading next data %w", err)
		}

		if d.PMT != nil {
			for _, es := range d.PMT.ElementaryStreams {
				if es.StreamType == astits.StreamTypeH264Video && !h264PIDs[es.ElementaryPID] {
					h264PIDs[es.ElementaryPID] = true
					l.Debugw("found H.264 stream", "pid", es.ElementaryPID)
				}
			}
			continue
		}
		if d.PES == nil || !h264PIDs[d.PID] {
			continue
		}

		ps := avcPSs[d.PID]
		if ps == nil {
			ps = &AvcPS{Statistics: internal.TimestampStatistics{Pid: d.PID}}
			avcPSs[d.PID] = ps
			pids = append(pids, d.PID)
		}
		if err := ParseAVCPES(l, jp, d, ps, o); err != nil {
			return err
		}
		nrPics++

		// Keep looping if MaxNrPictures equals 0
		if o.MaxNrPictures > 0 && nrPics >= o.MaxNrPictures {
			break dataLoop
		}
	}

	if len(h264PIDs) == 0 {
		l.Warnw("no H.264 stream found")
	}
	for _, pid := range pids {
		jp.PrintStatistics(avcPSs[pid].Statistics, o.ShowStatistics)
	}
	return jp.Error()
}

// ParseAVCPES lists one PES packet and adds its SEI timestamps to ps.
func ParseAVCPES(l *zap.SugaredLogger, jp *internal.JsonPrinter, d *astits.DemuxerData, ps *AvcPS, o internal.Options) error {
	pes := d.PES
	if pes.Header == nil || pes.Header.OptionalHeader == nil || pes.Header.OptionalHeader.PTS == nil {
		return fmt.Errorf("no PTS in PES on PID %d", d.PID)
	}
	nfd := internal.NaluFrameData{PID: d.PID}
	pts := *pes.Header.OptionalHeader.PTS
	nfd.PTS = pts.Base
	if fp := d.FirstPacket; fp != nil && fp.AdaptationField != nil {
		nfd.RAI = fp.AdaptationField.RandomAccessIndicator
	}
	if dts := pes.Header.OptionalHeader.DTS; dts != nil {
		nfd.DTS = dts.Base
	}

	data := pes.Data
	units, err := nalu.Scan(data, nalu.AnnexB)
	if err != nil {
		return err
	}
	for _, u := range units {
		payload := u.Bytes(data)
		nd := internal.NaluData{Type: u.Type.String(), Len: u.Length}
		switch {
		case u.Type == avc.NALU_SPS:
			if err := ps.setSPS(payload); err != nil {
				l.Debugw("cannot set SPS", "pid", d.PID, "err", err)
			}
		case u.Type == avc.NALU_SEI:
			if ts, ok := internal.DescribeSEI(&nd, payload, ps.getSPS(), o); ok {
				ps.Statistics.TimeStamps = append(ps.Statistics.TimeStamps, ts)
			}
		case u.IsFrame:
			if sliceType, err := avc.GetSliceTypeFromNALU(payload); err == nil {
				nfd.ImgType = fmt.Sprintf("[%s]", sliceType)
			}
		}
		nfd.NALUS = append(nfd.NALUS, nd)
	}

	jp.Print(nfd, o.ShowNALU)
	return jp.Error()
}
