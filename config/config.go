// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"flag"
	"path/filepath"
	"strings"
)

// 输入格式
const (
	FormatOBU    = "obu"    // low overhead OBU 流
	FormatAnnexB = "annexb" // Annex-B 长度前缀格式
	FormatIVF    = "ivf"
	FormatRTP    = "rtp" // interleaved RTP/RTCP 包
)

// config 解析器配置
type config struct {
	Input          string    `json:"input,omitempty"`  // 输入文件，- 表示标准输入
	Format         string    `json:"format,omitempty"` // 输入格式，空时根据扩展名判断
	OperatingPoint int       `json:"operating_point"`  // 选择的 operating point
	AllLayers      bool      `json:"all_layers"`       // 输出所有空间层
	Policy         string    `json:"policy"`           // 一致性检查策略 warn|strict
	StatsInterval  int       `json:"stats_interval"`   // 统计日志间隔(秒)，0 不输出
	StatsFile      string    `json:"stats_file"`       // 结束时写入 JSON 统计报告，- 为标准输出
	Log            LogConfig `json:"log"`              // 日志配置
}

func (c *config) initFlags() {
	flag.StringVar(&c.Input, "input", "", "Set the AV1 stream to parse, '-' for stdin")
	flag.StringVar(&c.Format, "format", "",
		"Set the input format (obu|annexb|ivf|rtp), detected from the file extension if empty")
	flag.IntVar(&c.OperatingPoint, "op", 0, "Set the operating point to decode")
	flag.BoolVar(&c.AllLayers, "all-layers", false,
		"Determines if all spatial layers of a temporal unit should be output")
	flag.StringVar(&c.Policy, "policy", "warn",
		"Set the conformance policy (warn|strict)")
	flag.IntVar(&c.StatsInterval, "stats", 5,
		"Set the interval in seconds of the stats log, 0 to disable")
	flag.StringVar(&c.StatsFile, "stats-file", "",
		"Set the file to write the final JSON stats report to, '-' for stdout")

	// 初始化日志配置
	c.Log.initFlags()
}

// detectFormat 根据扩展名判断输入格式
func detectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ivf":
		return FormatIVF
	case ".rtp":
		return FormatRTP
	case ".annexb":
		return FormatAnnexB
	}
	return FormatOBU
}

func validFormat(format string) bool {
	switch format {
	case FormatOBU, FormatAnnexB, FormatIVF, FormatRTP:
		return true
	}
	return false
}
