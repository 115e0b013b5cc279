// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stats

import (
	"sync/atomic"
)

// DecodeSample 解码统计采样
type DecodeSample struct {
	OBUs      int64 `json:"obus"`      // 已解析的 OBU
	Bytes     int64 `json:"bytes"`     // 输入字节
	Sequences int64 `json:"sequences"` // 新的或变化的序列头
	Decoded   int64 `json:"decoded"`   // 提交客户端解码的帧
	Skipped   int64 `json:"skipped"`   // 客户端跳过的帧
	Shown     int64 `json:"shown"`     // 输出显示的帧
	Dropped   int64 `json:"dropped"`   // 因错误丢弃的帧
	Errors    int64 `json:"errors"`    // 解析错误
}

func (ds *DecodeSample) clone() DecodeSample {
	return DecodeSample{
		OBUs:      atomic.LoadInt64(&ds.OBUs),
		Bytes:     atomic.LoadInt64(&ds.Bytes),
		Sequences: atomic.LoadInt64(&ds.Sequences),
		Decoded:   atomic.LoadInt64(&ds.Decoded),
		Skipped:   atomic.LoadInt64(&ds.Skipped),
		Shown:     atomic.LoadInt64(&ds.Shown),
		Dropped:   atomic.LoadInt64(&ds.Dropped),
		Errors:    atomic.LoadInt64(&ds.Errors),
	}
}

// Add 采样累加
func (ds *DecodeSample) Add(s DecodeSample) {
	ds.OBUs += s.OBUs
	ds.Bytes += s.Bytes
	ds.Sequences += s.Sequences
	ds.Decoded += s.Decoded
	ds.Skipped += s.Skipped
	ds.Shown += s.Shown
	ds.Dropped += s.Dropped
	ds.Errors += s.Errors
}

// DecodeStats 解码计数，并发安全。
// 有 parent 时计数同时累加到 parent 上。
type DecodeStats struct {
	parent *DecodeStats
	sample DecodeSample
}

// Total 进程内所有解码器的合计
var Total = NewDecodeStats(nil)

// NewDecodeStats 创建解码统计
func NewDecodeStats(parent *DecodeStats) *DecodeStats {
	return &DecodeStats{parent: parent}
}

// AddOBU 增加一个 OBU 及其字节数
func (s *DecodeStats) AddOBU(size int) {
	for p := s; p != nil; p = p.parent {
		atomic.AddInt64(&p.sample.OBUs, 1)
		atomic.AddInt64(&p.sample.Bytes, int64(size))
	}
}

// AddSequence 增加序列计数
func (s *DecodeStats) AddSequence() {
	for p := s; p != nil; p = p.parent {
		atomic.AddInt64(&p.sample.Sequences, 1)
	}
}

// AddDecoded 增加解码帧
func (s *DecodeStats) AddDecoded() {
	for p := s; p != nil; p = p.parent {
		atomic.AddInt64(&p.sample.Decoded, 1)
	}
}

// AddSkipped 增加跳过帧
func (s *DecodeStats) AddSkipped() {
	for p := s; p != nil; p = p.parent {
		atomic.AddInt64(&p.sample.Skipped, 1)
	}
}

// AddShown 增加显示帧
func (s *DecodeStats) AddShown() {
	for p := s; p != nil; p = p.parent {
		atomic.AddInt64(&p.sample.Shown, 1)
	}
}

// AddDropped 增加丢弃帧
func (s *DecodeStats) AddDropped() {
	for p := s; p != nil; p = p.parent {
		atomic.AddInt64(&p.sample.Dropped, 1)
	}
}

// AddError 增加错误
func (s *DecodeStats) AddError() {
	for p := s; p != nil; p = p.parent {
		atomic.AddInt64(&p.sample.Errors, 1)
	}
}

// GetSample 获取当前时点采样
func (s *DecodeStats) GetSample() DecodeSample {
	return s.sample.clone()
}
