// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stats

import (
	"runtime"
	"time"

	"github.com/kelindar/process"
)

// 创建时间
var (
	StartingTime = time.Now()
)

// Proc 进程信息统计
type Proc struct {
	CPU    float64 `json:"cpu"`    // cpu使用情况
	Priv   int32   `json:"priv"`   // 私有内存 KB
	Virt   int32   `json:"virt"`   // 虚拟内存 KB
	Uptime int32   `json:"uptime"` // 运行时间 S
}

// Heap 运行是堆信息
type Heap struct {
	Inuse   int32 `json:"inuse"`   // KB MemStats.HeapInuse
	Alloc   int32 `json:"alloc"`   // KB MemStats.HeapAlloc
	Objects int32 `json:"objects"` // = MemStats.HeapObjects
	NumGC   int32 `json:"numgc"`
}

// Report 周期日志输出的统计快照
type Report struct {
	Decode DecodeSample `json:"decode"`
	Proc   Proc         `json:"proc"`
	Heap   Heap         `json:"heap"`
	// 每秒显示帧数，按 Uptime 平均
	FPS float64 `json:"fps"`
}

// MeasureRuntime 获取运行时信息。
func MeasureRuntime() (p Proc) {
	defer func() { recover() }()

	p.Uptime = int32(time.Now().Sub(StartingTime).Seconds())
	var memoryPriv, memoryVirtual int64
	var cpu float64
	process.ProcUsage(&cpu, &memoryPriv, &memoryVirtual)
	p.CPU = cpu
	p.Priv = toKB(uint64(memoryPriv))
	p.Virt = toKB(uint64(memoryVirtual))
	return
}

// MeasureHeap 获取堆信息
func MeasureHeap() Heap {
	var memory runtime.MemStats
	runtime.ReadMemStats(&memory)
	return Heap{
		Inuse:   toKB(memory.HeapInuse),
		Alloc:   toKB(memory.HeapAlloc),
		Objects: int32(memory.HeapObjects),
		NumGC:   int32(memory.NumGC),
	}
}

// Measure 采集 ds 和进程的统计
func Measure(ds *DecodeStats) Report {
	r := Report{
		Decode: ds.GetSample(),
		Proc:   MeasureRuntime(),
		Heap:   MeasureHeap(),
	}
	if r.Proc.Uptime > 0 {
		r.FPS = float64(r.Decode.Shown) / float64(r.Proc.Uptime)
	}
	return r
}

// Converts the memory in bytes to KBs, otherwise it would overflow our int32
func toKB(v uint64) int32 {
	return int32(v / 1024)
}
