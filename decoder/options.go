// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decoder

import (
	"github.com/cnotch/av1parser/av/codec/av1"
	"github.com/cnotch/av1parser/stats"
	"github.com/cnotch/xlog"
)

// Option 配置 Decoder 的选项接口
type Option interface {
	apply(*Decoder)
}

// optionFunc 包装函数以便它满足 Option 接口
type optionFunc func(*Decoder)

func (f optionFunc) apply(d *Decoder) {
	f(d)
}

// Logger 日志选项
func Logger(logger *xlog.Logger) Option {
	return optionFunc(func(d *Decoder) {
		if logger != nil {
			d.logger = logger
		}
	})
}

// AnnexB 码流使用 Annex-B 长度前缀格式
func AnnexB(annexB bool) Option {
	return optionFunc(func(d *Decoder) {
		d.annexB = annexB
	})
}

// ConformancePolicy 一致性检查失败时的处理策略
func ConformancePolicy(policy av1.Policy) Option {
	return optionFunc(func(d *Decoder) {
		d.policy = policy
	})
}

// OperatingPoint 客户端未实现 OperatingPointSelector 时使用的操作点
func OperatingPoint(op int) Option {
	return optionFunc(func(d *Decoder) {
		d.operatingPoint = op
	})
}

// OutputAllLayers 输出所有空域层
func OutputAllLayers(all bool) Option {
	return optionFunc(func(d *Decoder) {
		d.outputAllLayers = all
	})
}

// Stats 解码统计
func Stats(s *stats.DecodeStats) Option {
	return optionFunc(func(d *Decoder) {
		if s != nil {
			d.stats = s
		}
	})
}
