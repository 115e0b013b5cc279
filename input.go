// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/cnotch/av1parser/av/format/annexb"
	"github.com/cnotch/av1parser/av/format/ivf"
	"github.com/cnotch/av1parser/av/format/rtp"
	"github.com/cnotch/av1parser/config"
	"github.com/cnotch/av1parser/decoder"
	"github.com/cnotch/xlog"
)

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// packetReader 按输入格式读取解析器的输入包
type packetReader interface {
	ReadPacket() (*decoder.Packet, error)
}

// chunkReader 把 OBU 流按固定大小切块，OBU 可以跨块
type chunkReader struct {
	r    io.Reader
	size int
}

func (cr *chunkReader) ReadPacket() (*decoder.Packet, error) {
	buf := make([]byte, cr.size)
	n, err := io.ReadFull(cr.r, buf)
	if n > 0 {
		return &decoder.Packet{Data: buf[:n]}, nil
	}
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return nil, err
}

// parse 读取全部输入，交给解析器，最后结束码流
func parse(dec *decoder.Decoder, r io.Reader, format string, logger *xlog.Logger) (err error) {
	defer func() {
		dec.WritePacket(&decoder.Packet{EOS: true})
	}()

	if format == config.FormatRTP {
		return parseRTP(dec, r, logger)
	}

	var pr packetReader
	switch format {
	case config.FormatOBU:
		pr = &chunkReader{r: r, size: config.ReadBufferSize()}
	case config.FormatAnnexB:
		pr = annexb.NewReader(r)
	case config.FormatIVF:
		ir, err := ivf.NewReader(r)
		if err != nil {
			return err
		}
		logger.Infof("ivf %s %dx%d, timebase %d/%d, %d frames",
			ir.Header.FourCC[:], ir.Header.Width, ir.Header.Height,
			ir.Header.TimebaseNum, ir.Header.TimebaseDen, ir.Header.Frames)
		pr = ir
	default:
		return fmt.Errorf("unknown input format: %s", format)
	}

	for {
		pkt, err := pr.ReadPacket()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err = dec.WritePacket(pkt); err != nil {
			return err
		}
	}
}

// parseRTP interleaved RTP/RTCP 包经 Demuxer 重组后写入解析器
func parseRTP(dec *decoder.Decoder, r io.Reader, logger *xlog.Logger) error {
	w := &errWriter{w: dec}
	demuxer := rtp.NewDemuxer(rtp.ClockRate, w, logger)

	br := bufio.NewReader(r)
	for {
		p, err := rtp.ReadPacket(br, rtp.DefaultChannelConfig)
		if err == io.EOF {
			break
		}
		if err != nil {
			demuxer.Close()
			return err
		}
		demuxer.WriteRtpPacket(p)
	}

	// Close 等待所有包处理完
	demuxer.Close()
	return w.err
}

// errWriter 记录第一个无法继续的错误，之后丢弃输入
type errWriter struct {
	w   rtp.FrameWriter
	err error
}

func (sw *errWriter) WritePacket(pkt *decoder.Packet) error {
	if sw.err != nil {
		return sw.err
	}
	sw.err = sw.w.WritePacket(pkt)
	return sw.err
}
