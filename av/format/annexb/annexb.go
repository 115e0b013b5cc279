// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package annexb 读取 Annex-B 格式的 AV1 码流。
//
//	temporal_unit( temporal_unit_size )
//	    frame_unit( frame_unit_size )
//	        obu_length + OBU
//
// ReadPacket 去掉时间单元和帧单元的长度，输出 obu_length 前缀的 OBU 序列。
package annexb

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/cnotch/av1parser/decoder"
	"github.com/pion/rtp/codecs/av1/obu"
)

const maxLeb128Size = 8

// MaxTemporalUnitSize 单个时间单元上限
const MaxTemporalUnitSize = 256 * 1024 * 1024

// ErrFrameUnit 帧单元长度超出时间单元
var ErrFrameUnit = errors.New("annexb: frame unit exceeds temporal unit")

// Reader Annex-B 时间单元读取器
type Reader struct {
	r *bufio.Reader
}

// NewReader .
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

func (r *Reader) readLeb128() (uint, error) {
	peek, err := r.r.Peek(maxLeb128Size)
	if len(peek) == 0 {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}
	v, n, err := obu.ReadLeb128(peek)
	if err != nil {
		return 0, io.ErrUnexpectedEOF
	}
	r.r.Discard(int(n))
	return v, nil
}

// ReadTemporalUnit 读取一个完整的 temporal_unit，不含长度
func (r *Reader) ReadTemporalUnit() ([]byte, error) {
	size, err := r.readLeb128()
	if err != nil {
		return nil, err
	}
	if size > MaxTemporalUnitSize {
		return nil, fmt.Errorf("annexb: temporal unit size %d too large", size)
	}

	tu := make([]byte, size)
	if _, err = io.ReadFull(r.r, tu); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return tu, nil
}

// OBUs 拼接时间单元中所有帧单元的内容
func OBUs(tu []byte) ([]byte, error) {
	out := make([]byte, 0, len(tu))
	for len(tu) > 0 {
		size, n, err := obu.ReadLeb128(tu)
		if err != nil {
			return nil, fmt.Errorf("annexb: frame unit size: %w", err)
		}
		tu = tu[n:]
		if uint(len(tu)) < size {
			return nil, ErrFrameUnit
		}
		out = append(out, tu[:size]...)
		tu = tu[size:]
	}
	return out, nil
}

// ReadPacket 读取下一个时间单元并转换成解析器的输入包
func (r *Reader) ReadPacket() (*decoder.Packet, error) {
	tu, err := r.ReadTemporalUnit()
	if err != nil {
		return nil, err
	}
	data, err := OBUs(tu)
	if err != nil {
		return nil, err
	}
	return &decoder.Packet{Data: data, Complete: true}, nil
}

// Write 把 obu_length 前缀的 OBU 按帧单元分组后写成一个时间单元
func Write(w io.Writer, frameUnits ...[]byte) error {
	var tu []byte
	for _, fu := range frameUnits {
		tu = append(tu, obu.WriteToLeb128(uint(len(fu)))...)
		tu = append(tu, fu...)
	}
	if _, err := w.Write(obu.WriteToLeb128(uint(len(tu)))); err != nil {
		return err
	}
	_, err := w.Write(tu)
	return err
}
