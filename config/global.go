// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cnotch/av1parser/av/codec/av1"
	cfg "github.com/cnotch/loader"
	"github.com/cnotch/xlog"
)

// 程序名
const (
	Vendor  = "CAOHONGJU"
	Name    = "av1parser"
	Version = "V1.0.0"
)

var (
	globalC *config
	policy  av1.Policy
)

// InitConfig 初始化 Config
func InitConfig() {
	exe, err := os.Executable()
	if err != nil {
		xlog.Panic(err.Error())
	}

	configPath := filepath.Join(filepath.Dir(exe), Name+".conf")

	globalC = new(config)
	globalC.initFlags()

	// 创建或加载配置文件
	if err := cfg.Load(globalC,
		&cfg.JSONLoader{Path: configPath, CreatedIfNonExsit: true},
		&cfg.EnvLoader{Prefix: strings.ToUpper(Name)},
		&cfg.FlagLoader{}); err != nil {
		// 异常，直接退出
		xlog.Panic(err.Error())
	}

	// 没有 -input 时使用第一个参数
	if globalC.Input == "" && flag.NArg() > 0 {
		globalC.Input = flag.Arg(0)
	}

	if err = globalC.validate(); err != nil {
		xlog.Panic(err.Error())
	}

	// 初始化日志
	globalC.Log.initLogger()
}

func (c *config) validate() (err error) {
	if c.Input == "" {
		return fmt.Errorf("%s: no input, usage: %s [options] <file>", Name, Name)
	}
	if c.Format == "" {
		c.Format = detectFormat(c.Input)
	}
	c.Format = strings.ToLower(c.Format)
	if !validFormat(c.Format) {
		return fmt.Errorf("%s: unknown input format: %s", Name, c.Format)
	}
	if c.OperatingPoint < 0 {
		return fmt.Errorf("%s: invalid operating point: %d", Name, c.OperatingPoint)
	}
	policy, err = av1.ParsePolicy(c.Policy)
	return
}

// Input 输入文件
func Input() string {
	if globalC == nil {
		return ""
	}
	return globalC.Input
}

// Format 输入格式
func Format() string {
	if globalC == nil {
		return FormatOBU
	}
	return globalC.Format
}

// AnnexB 输入是否为 Annex-B 格式
func AnnexB() bool {
	return Format() == FormatAnnexB
}

// OperatingPoint 选择的 operating point
func OperatingPoint() int {
	if globalC == nil {
		return 0
	}
	return globalC.OperatingPoint
}

// OutputAllLayers 是否输出所有空间层
func OutputAllLayers() bool {
	if globalC == nil {
		return false
	}
	return globalC.AllLayers
}

// Policy 一致性检查策略
func Policy() av1.Policy {
	return policy
}

// StatsInterval 统计日志间隔，0 表示不输出
func StatsInterval() time.Duration {
	if globalC == nil || globalC.StatsInterval <= 0 {
		return 0
	}
	return time.Duration(globalC.StatsInterval) * time.Second
}

// StatsFile 统计报告文件，空表示不输出
func StatsFile() string {
	if globalC == nil {
		return ""
	}
	return globalC.StatsFile
}

// ReadBufferSize 读取 OBU 流时每个包的大小
func ReadBufferSize() int {
	return 64 * 1024
}
