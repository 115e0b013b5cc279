// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rtp

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"

	"github.com/pion/rtp"
)

const (
	// TransferPrefix interleaved 传输时 RTP 包的前缀
	TransferPrefix = byte(0x24) // $
)

// 通道类型，AV1 只有视频
const (
	ChannelVideo        = iota // 视频通道
	ChannelVideoControl        // 视频控制通道(RTCP)
	ChannelCount
)

// DefaultChannelConfig interleaved channel 0 为 RTP，1 为 RTCP
var DefaultChannelConfig = []int{0, 1}

// ChannelName 通道名
func ChannelName(channel int) string {
	switch channel {
	case ChannelVideo:
		return "video"
	case ChannelVideoControl:
		return "video control"
	}
	return "unknow"
}

// 错误定义
var (
	ErrPrefix  = errors.New("RTP Pack must start with `$`")
	ErrChannel = errors.New("RTP Packet illegal channel")
	ErrClosed  = errors.New("rtp demuxer is closed")
)

// Packet RTP 数据包
type Packet struct {
	Channel    byte   // 通道
	Data       []byte // 完整的 RTP/RTCP 数据
	rtp.Header        // 视频通道的 RTP 头

	payload []byte
}

// NewPacket 由 RTP 包创建视频通道 Packet
func NewPacket(p *rtp.Packet) (*Packet, error) {
	data, err := p.Marshal()
	if err != nil {
		return nil, err
	}
	return &Packet{
		Channel: ChannelVideo,
		Data:    data,
		Header:  p.Header,
		payload: p.Payload,
	}, nil
}

// PacketWriter 包装 WriteRtpPacket 方法的接口
type PacketWriter interface {
	WriteRtpPacket(packet *Packet) error
}

// ReadPacket 从 interleaved 流中读取一个包。
// channelConfig 的下标为通道类型，值为流中的 channel 号
func ReadPacket(r *bufio.Reader, channelConfig []int) (*Packet, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	if prefix[0] != TransferPrefix {
		return nil, ErrPrefix
	}

	channel := int(prefix[1])
	data := make([]byte, binary.BigEndian.Uint16(prefix[2:]))
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}

	for i, v := range channelConfig {
		if v != channel {
			continue
		}
		p := &Packet{Channel: byte(i), Data: data}
		if p.Channel == ChannelVideo {
			var rp rtp.Packet
			if err := rp.Unmarshal(data); err != nil {
				return nil, err
			}
			p.Header = rp.Header
			p.payload = rp.Payload
		}
		return p, nil
	}
	return nil, ErrChannel
}

// Write 按 interleaved 格式输出到 w
func (p *Packet) Write(w io.Writer, channelConfig []int) error {
	if p.Channel >= ChannelCount {
		return errors.New("unknow pack type")
	}

	ch := channelConfig[p.Channel]
	if ch < 0 || ch > 255 { // 未订阅
		return nil
	}

	var prefix [4]byte
	prefix[0] = TransferPrefix
	prefix[1] = byte(ch)
	binary.BigEndian.PutUint16(prefix[2:], uint16(len(p.Data)))

	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err := w.Write(p.Data)
	return err
}

// Size 包在 interleaved 流中的大小
func (p *Packet) Size() int {
	return len(p.Data) + 4
}

// Payload RTP 载荷，控制通道返回 nil
func (p *Packet) Payload() []byte {
	if p.Channel == ChannelVideo {
		return p.payload
	}
	return nil
}
