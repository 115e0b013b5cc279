// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decoder

import (
	"errors"

	"github.com/cnotch/av1parser/av/codec/av1"
	"github.com/cnotch/queue"
)

// MaxLayers 一个时域单元内最多等待输出的图像数
const MaxLayers = av1.MaxSpatialLayers

// ErrOutputOverflow 输出队列溢出，不能通过丢帧恢复
var ErrOutputOverflow = errors.New("decoder: output queue overflow")

// outputEntry 等待输出的图像，持有一个缓冲引用
type outputEntry struct {
	id       int
	showable bool
	pts      ptsEntry
}

// outputQueue 按解码顺序输出图像。
// 输出所有层时每层保留一个，否则只保留时域单元内最后一个。
type outputQueue struct {
	pool      *PicturePool
	allLayers bool
	pending   queue.Queue
}

// push 入列，失败时调用方仍持有 e 的引用
func (q *outputQueue) push(e *outputEntry) error {
	if !q.allLayers {
		if old, ok := q.pop(); ok {
			q.pool.Release(old.id)
		}
		q.pending.Push(e)
		return nil
	}

	if q.pending.Len() >= MaxLayers {
		return ErrOutputOverflow
	}
	q.pending.Push(e)
	return nil
}

func (q *outputQueue) len() int { return q.pending.Len() }

func (q *outputQueue) pop() (*outputEntry, bool) {
	v, ok := q.pending.Pop()
	if !ok {
		return nil, false
	}
	return v.(*outputEntry), true
}

// drain 依次输出并释放引用
func (q *outputQueue) drain(display func(e *outputEntry)) {
	for {
		e, ok := q.pop()
		if !ok {
			return
		}
		display(e)
		q.pool.Release(e.id)
	}
}

// reset 不输出，直接释放所有引用
func (q *outputQueue) reset() {
	for {
		e, ok := q.pop()
		if !ok {
			break
		}
		q.pool.Release(e.id)
	}
	q.pending.Reset()
}
