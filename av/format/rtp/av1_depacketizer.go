// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rtp

import (
	"github.com/cnotch/av1parser/decoder"
	"github.com/pion/rtp/codecs"
)

// FrameWriter 接收重组后的时间单元，*decoder.Decoder 实现了该接口
type FrameWriter interface {
	WritePacket(pkt *decoder.Packet) error
}

type av1Depacketizer struct {
	dp        codecs.AV1Depacketizer
	w         FrameWriter
	syncClock SyncClock

	unit      []byte // 当前时间单元的 OBU(low overhead 格式)
	timestamp uint32
	started   bool

	seqValid bool
	lastSeq  uint16
	seenTs   bool

	dropping bool   // 丢包后丢弃同一时间单元的剩余分片
	lostTs   uint32 // 丢包所在时间单元的时间戳
	lost     bool   // 下一个输出的时间单元标记为不连续
}

// NewAV1Depacketizer 实例化 AV1 时间单元提取器
func NewAV1Depacketizer(clockRate int, w FrameWriter) Depacketizer {
	av1dp := &av1Depacketizer{w: w}
	av1dp.syncClock.Init(clockRate)
	return av1dp
}

func (av1dp *av1Depacketizer) Control(basePts *int64, p *Packet) error {
	if ok := av1dp.syncClock.Decode(p.Data); ok {
		if *basePts == 0 {
			*basePts = av1dp.syncClock.NTPTime
		}
	}
	return nil
}

func (av1dp *av1Depacketizer) Depacketize(basePts int64, p *Packet) (err error) {
	payload := p.Payload()
	if len(payload) == 0 {
		return
	}

	if !av1dp.seenTs {
		av1dp.seenTs = true
		if !av1dp.syncClock.Synced() {
			av1dp.syncClock.RTPTime = p.Timestamp
		}
	}

	if av1dp.seqValid && p.SequenceNumber != av1dp.lastSeq+1 {
		av1dp.loss(p.Timestamp)
	}
	av1dp.seqValid = true
	av1dp.lastSeq = p.SequenceNumber

	if av1dp.dropping {
		if p.Timestamp == av1dp.lostTs {
			return
		}
		av1dp.dropping = false
	}

	// 丢失了 marker 包，时间戳变化时输出上一个时间单元
	if av1dp.started && p.Timestamp != av1dp.timestamp {
		if err = av1dp.flush(basePts); err != nil {
			return
		}
	}

	obus, err := av1dp.dp.Unmarshal(payload)
	if err != nil {
		av1dp.loss(p.Timestamp)
		return
	}
	if !av1dp.started {
		av1dp.started = true
		av1dp.timestamp = p.Timestamp
	}
	av1dp.unit = append(av1dp.unit, obus...)

	if av1dp.dp.IsPartitionTail(p.Marker, payload) {
		err = av1dp.flush(basePts)
	}
	return
}

// loss 丢弃当前时间单元和分片状态
func (av1dp *av1Depacketizer) loss(ts uint32) {
	av1dp.dp = codecs.AV1Depacketizer{}
	av1dp.unit = nil
	av1dp.started = false
	av1dp.dropping = true
	av1dp.lostTs = ts
	av1dp.lost = true
}

// Flush 输出缺少 marker 的最后一个时间单元
func (av1dp *av1Depacketizer) Flush(basePts int64) error {
	return av1dp.flush(basePts)
}

func (av1dp *av1Depacketizer) flush(basePts int64) error {
	if !av1dp.started {
		return nil
	}

	pkt := &decoder.Packet{
		Data:          av1dp.unit,
		PTS:           av1dp.pts(basePts, av1dp.timestamp),
		PTSValid:      true,
		Discontinuity: av1dp.lost,
		Complete:      true,
	}
	av1dp.unit = nil
	av1dp.started = false
	av1dp.lost = false
	return av1dp.w.WritePacket(pkt)
}

func (av1dp *av1Depacketizer) pts(basePts int64, ts uint32) int64 {
	if !av1dp.syncClock.Synced() {
		return av1dp.syncClock.RelativeNtp(ts)
	}
	return av1dp.syncClock.AbsoluteNtp(ts) - basePts
}
