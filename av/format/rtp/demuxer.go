// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rtp

import (
	"runtime/debug"
	"sync/atomic"

	"github.com/cnotch/queue"
	"github.com/cnotch/xlog"
)

// Depacketizer 解包器
type Depacketizer interface {
	Control(basePts *int64, p *Packet) error
	Depacketize(basePts int64, p *Packet) error
	// Flush 输出未完成的数据
	Flush(basePts int64) error
}

// eosPacket 关闭时入列，之前的包都处理完后 routine 退出
var eosPacket = &Packet{Channel: ChannelCount}

// Demuxer 在独立的 routine 中把 RTP 包重组成 AV1 时间单元
type Demuxer struct {
	closed    atomic.Bool
	recvQueue *queue.SyncQueue
	vdp       Depacketizer
	logger    *xlog.Logger
	done      chan struct{}
}

var _ PacketWriter = (*Demuxer)(nil)

// NewDemuxer 创建 rtp.Packet 解封装处理器，时间单元写入 fw。
func NewDemuxer(clockRate int, fw FrameWriter, logger *xlog.Logger) *Demuxer {
	demuxer := &Demuxer{
		recvQueue: queue.NewSyncQueue(),
		vdp:       NewAV1Depacketizer(clockRate, fw),
		logger:    logger,
		done:      make(chan struct{}),
	}

	go demuxer.process()
	return demuxer
}

func (demuxer *Demuxer) process() {
	defer func() {
		defer func() { // 避免 handler 再 panic
			recover()
		}()

		if r := recover(); r != nil {
			demuxer.logger.Errorf("rtp demuxer routine panic；r = %v \n %s", r, debug.Stack())
		}

		// 尽早通知GC，回收内存
		demuxer.recvQueue.Reset()
		close(demuxer.done)
	}()

	var basePts int64
	for {
		p := demuxer.recvQueue.Pop()
		if p == nil {
			demuxer.logger.Warn("rtp demuxer: receive nil packet")
			continue
		}

		packet := p.(*Packet)
		if packet == eosPacket {
			if err := demuxer.vdp.Flush(basePts); err != nil {
				demuxer.logger.Errorf("rtp demuxer: flush error :%s", err.Error())
			}
			return
		}

		var err error
		switch packet.Channel {
		case ChannelVideo:
			err = demuxer.vdp.Depacketize(basePts, packet)
		case ChannelVideoControl:
			err = demuxer.vdp.Control(&basePts, packet)
		}

		if err != nil {
			demuxer.logger.Errorf("rtp demuxer: depacketize rtp packet error :%s", err.Error())
		}
	}
}

// Close 处理完已入列的包后停止，等待 routine 退出
func (demuxer *Demuxer) Close() error {
	if demuxer.closed.Swap(true) {
		return nil
	}

	demuxer.recvQueue.Push(eosPacket)
	<-demuxer.done
	return nil
}

// WriteRtpPacket 入列 RTP 包
func (demuxer *Demuxer) WriteRtpPacket(packet *Packet) error {
	if demuxer.closed.Load() {
		return ErrClosed
	}
	demuxer.recvQueue.Push(packet)
	return nil
}
