// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rtp

import (
	"encoding/binary"
	"time"
)

const (
	jan1970 = 0x83aa7e80
	// ClockRate AV1 的 RTP 时钟频率
	ClockRate = 90000
	rtcpSR    = 200
)

// SyncClock 根据 RTCP SR 把 RTP 时间戳换算成纳秒
type SyncClock struct {
	// SR 中的 NTP 时间，转换成 Unix 纳秒；未收到 SR 时为 0
	NTPTime int64
	// 与 NTPTime 对应的 RTP 时间戳
	RTPTime     uint32
	RTPTimeUnit float64 // 每个 RTP 时间单位的纳秒数
}

// Init 初始化时钟频率
func (sc *SyncClock) Init(clockRate int) {
	sc.RTPTimeUnit = float64(time.Second) / float64(clockRate)
}

// Synced 是否收到过 SR
func (sc *SyncClock) Synced() bool { return sc.NTPTime != 0 }

// LocalTime 本地时间
func (sc *SyncClock) LocalTime() time.Time {
	return time.Unix(0, sc.NTPTime).In(time.Local)
}

// Decode 解析 RTCP SR，其他类型返回 false
func (sc *SyncClock) Decode(data []byte) (ok bool) {
	if len(data) >= 20 && data[1] == rtcpSR {
		msw := binary.BigEndian.Uint32(data[8:])
		lsw := binary.BigEndian.Uint32(data[12:])
		sc.RTPTime = binary.BigEndian.Uint32(data[16:])
		sc.NTPTime = int64(msw-jan1970)*int64(time.Second) + (int64(lsw)*1000_000_000)>>32
		ok = true
	}
	return
}

// RelativeNtp rtptime 相对 RTPTime 的纳秒数，处理 32 位回绕
func (sc *SyncClock) RelativeNtp(rtptime uint32) int64 {
	diff := int64(int32(rtptime - sc.RTPTime))
	return int64(float64(diff) * sc.RTPTimeUnit)
}

// AbsoluteNtp .
func (sc *SyncClock) AbsoluteNtp(rtptime uint32) int64 {
	return sc.NTPTime + sc.RelativeNtp(rtptime)
}
