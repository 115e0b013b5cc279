// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"os"

	"github.com/cnotch/av1parser/config"
	"github.com/cnotch/av1parser/decoder"
	"github.com/cnotch/av1parser/stats"
	"github.com/cnotch/av1parser/utils"
	"github.com/cnotch/scheduler"
	"github.com/cnotch/xlog"
)

func main() {
	// 初始化配置
	config.InitConfig()
	// 初始化全局计划任务
	scheduler.SetPanicHandler(func(job *scheduler.ManagedJob, r interface{}) {
		xlog.Errorf("scheduler task panic. tag: %v, recover: %v", job.Tag, r)
	})

	logger := xlog.L().With(xlog.Fields(xlog.F("input", config.Input())))
	dec := decoder.New(newLogClient(logger),
		decoder.Logger(logger.With(xlog.Fields(xlog.F("codec", "av1")))),
		decoder.AnnexB(config.AnnexB()),
		decoder.ConformancePolicy(config.Policy()),
		decoder.OperatingPoint(config.OperatingPoint()),
		decoder.OutputAllLayers(config.OutputAllLayers()))

	if interval := config.StatsInterval(); interval > 0 {
		scheduler.PeriodFunc(interval, interval, func() {
			logReport(logger, stats.Measure(dec.Stats()))
		}, "The task of logging decode stats")
	}

	in, err := openInput(config.Input())
	if err != nil {
		logger.Errorf("open input failed: %v", err)
		os.Exit(1)
	}
	defer in.Close()

	err = parse(dec, in, config.Format(), logger)
	report := stats.Measure(dec.Stats())
	logReport(logger, report)
	if path := config.StatsFile(); path != "" {
		if werr := utils.EncodeJSONFile(path, &report); werr != nil {
			logger.Errorf("write stats report failed: %v", werr)
		}
	}
	if err != nil {
		logger.Errorf("parse failed: %v", err)
		in.Close()
		os.Exit(1)
	}
}

func logReport(logger *xlog.Logger, r stats.Report) {
	d := &r.Decode
	logger.Infof("obus %d (%d bytes), sequences %d, decoded %d, skipped %d, shown %d, dropped %d, errors %d, %.1f fps, cpu %.1f%%, heap %dKB",
		d.OBUs, d.Bytes, d.Sequences, d.Decoded, d.Skipped, d.Shown, d.Dropped, d.Errors,
		r.FPS, r.Proc.CPU, r.Heap.Inuse)
}
