// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ivf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cnotch/av1parser/decoder"
)

// ivf 文件头，共 32 字节，小端
// 	Signature	4Byte	'DKIF'
// 	Version		2Byte	0
// 	HeaderSize	2Byte	32
// 	FourCC		4Byte	'AV01'
// 	Width		2Byte
// 	Height		2Byte
// 	TimebaseDen	4Byte
// 	TimebaseNum	4Byte
// 	Frames		4Byte
// 	Unused		4Byte
const (
	HeaderSize      = 32
	FrameHeaderSize = 12 // size(4Byte) + pts(8Byte)
	// MaxFrameSize 单帧上限，防止损坏的文件导致超大分配
	MaxFrameSize = 256 * 1024 * 1024
)

// FourCCAV1 AV1 的 FourCC
var FourCCAV1 = [4]byte{'A', 'V', '0', '1'}

// 错误定义
var (
	ErrSignature = errors.New("ivf: signature must is 'DKIF'")
	ErrFourCC    = errors.New("ivf: fourcc is not 'AV01'")
	ErrTimebase  = errors.New("ivf: invalid timebase")
)

// Header ivf 文件头
type Header struct {
	FourCC      [4]byte
	Width       uint16
	Height      uint16
	TimebaseDen uint32
	TimebaseNum uint32
	Frames      uint32
}

// Duration 时间戳 pts 对应的纳秒数
func (h *Header) Duration(pts int64) int64 {
	return pts * int64(h.TimebaseNum) * int64(time.Second) / int64(h.TimebaseDen)
}

func (h *Header) unmarshal(b []byte) error {
	if string(b[:4]) != "DKIF" {
		return ErrSignature
	}
	copy(h.FourCC[:], b[8:12])
	h.Width = binary.LittleEndian.Uint16(b[12:])
	h.Height = binary.LittleEndian.Uint16(b[14:])
	h.TimebaseDen = binary.LittleEndian.Uint32(b[16:])
	h.TimebaseNum = binary.LittleEndian.Uint32(b[20:])
	h.Frames = binary.LittleEndian.Uint32(b[24:])
	if h.FourCC != FourCCAV1 {
		return ErrFourCC
	}
	if h.TimebaseDen == 0 || h.TimebaseNum == 0 {
		return ErrTimebase
	}
	return nil
}

func (h *Header) marshal(b []byte) {
	copy(b, "DKIF")
	binary.LittleEndian.PutUint16(b[4:], 0)
	binary.LittleEndian.PutUint16(b[6:], HeaderSize)
	copy(b[8:], h.FourCC[:])
	binary.LittleEndian.PutUint16(b[12:], h.Width)
	binary.LittleEndian.PutUint16(b[14:], h.Height)
	binary.LittleEndian.PutUint32(b[16:], h.TimebaseDen)
	binary.LittleEndian.PutUint32(b[20:], h.TimebaseNum)
	binary.LittleEndian.PutUint32(b[24:], h.Frames)
}

// Frame ivf 帧，数据为一个完整的时间单元
type Frame struct {
	PTS  int64 // 以 timebase 为单位
	Data []byte
}

// Reader ivf Reader
type Reader struct {
	r      io.Reader
	Header Header
}

// NewReader 读取并验证文件头
func NewReader(r io.Reader) (*Reader, error) {
	reader := &Reader{r: r}

	var b [HeaderSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return nil, err
	}
	if err := reader.Header.unmarshal(b[:]); err != nil {
		return nil, err
	}

	// 头长度大于 32 时跳过扩展部分
	if size := int64(binary.LittleEndian.Uint16(b[6:])); size > HeaderSize {
		if _, err := io.CopyN(io.Discard, r, size-HeaderSize); err != nil {
			return nil, err
		}
	}
	return reader, nil
}

// ReadFrame 读取下一帧，结束时返回 io.EOF
func (r *Reader) ReadFrame() (*Frame, error) {
	var b [FrameHeaderSize]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return nil, err
	}

	size := binary.LittleEndian.Uint32(b[:])
	if size > MaxFrameSize {
		return nil, fmt.Errorf("ivf: frame size %d too large", size)
	}
	frame := &Frame{
		PTS:  int64(binary.LittleEndian.Uint64(b[4:])),
		Data: make([]byte, size),
	}
	if _, err := io.ReadFull(r.r, frame.Data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return frame, nil
}

// ReadPacket 读取下一帧并转换成解析器的输入包
func (r *Reader) ReadPacket() (*decoder.Packet, error) {
	frame, err := r.ReadFrame()
	if err != nil {
		return nil, err
	}
	return &decoder.Packet{
		Data:     frame.Data,
		PTS:      r.Header.Duration(frame.PTS),
		PTSValid: true,
		Complete: true,
	}, nil
}

// Writer ivf Writer
type Writer struct {
	w io.Writer
}

// NewWriter 写入文件头
func NewWriter(w io.Writer, h *Header) (*Writer, error) {
	var b [HeaderSize]byte
	h.marshal(b[:])
	if _, err := w.Write(b[:]); err != nil {
		return nil, err
	}
	return &Writer{w: w}, nil
}

// WriteFrame 写入一帧
func (w *Writer) WriteFrame(frame *Frame) error {
	var b [FrameHeaderSize]byte
	binary.LittleEndian.PutUint32(b[:], uint32(len(frame.Data)))
	binary.LittleEndian.PutUint64(b[4:], uint64(frame.PTS))
	if _, err := w.w.Write(b[:]); err != nil {
		return err
	}
	_, err := w.w.Write(frame.Data)
	return err
}
