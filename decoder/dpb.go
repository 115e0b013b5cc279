// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decoder

import (
	"github.com/cnotch/av1parser/av/codec/av1"
)

const emptySlot = -1

// dpb 8 个参考槽位持有的图像缓冲
type dpb struct {
	pool  *PicturePool
	slots [av1.NumRefFrames]int
}

func newDPB(pool *PicturePool) *dpb {
	d := &dpb{pool: pool}
	for i := range d.slots {
		d.slots[i] = emptySlot
	}
	return d
}

// update 将 id 放入 refresh 指定的槽位，原缓冲减少引用
func (d *dpb) update(refresh uint8, id int) error {
	for i := range d.slots {
		if refresh&(1<<uint(i)) == 0 {
			continue
		}
		// 先加后减，同一缓冲刷新到原槽位时不会被提前回收
		if err := d.pool.AddRef(id); err != nil {
			return err
		}
		if old := d.slots[i]; old != emptySlot {
			if err := d.pool.Release(old); err != nil {
				return err
			}
		}
		d.slots[i] = id
	}
	return nil
}

func (d *dpb) slot(i int) int { return d.slots[i] }

// picIdx 各槽位的缓冲索引
func (d *dpb) picIdx() [av1.NumRefFrames]int { return d.slots }

// flush 释放所有槽位
func (d *dpb) flush() {
	for i, id := range d.slots {
		if id != emptySlot {
			d.pool.Release(id)
			d.slots[i] = emptySlot
		}
	}
}
