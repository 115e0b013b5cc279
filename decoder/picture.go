// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decoder

import (
	"errors"
	"fmt"
)

// ErrInvalidPicture 访问了不存在或已释放的图像缓冲
var ErrInvalidPicture = errors.New("decoder: invalid picture index")

type picture struct {
	buf  PictureBuffer
	refs int
}

// PicturePool 图像缓冲池。
// 缓冲按整数索引管理，引用计数大于 0 时不会被再次分配。
type PicturePool struct {
	alloc    func() (PictureBuffer, error)
	release  func(PictureBuffer)
	pictures []picture
	free     []int
}

// NewPicturePool 创建缓冲池，alloc 在没有空闲缓冲时调用
func NewPicturePool(alloc func() (PictureBuffer, error), release func(PictureBuffer)) *PicturePool {
	return &PicturePool{
		alloc:   alloc,
		release: release,
	}
}

// Acquire 取得一个空闲缓冲，引用计数为 1
func (p *PicturePool) Acquire() (int, error) {
	if n := len(p.free); n > 0 {
		id := p.free[n-1]
		p.free = p.free[:n-1]
		p.pictures[id].refs = 1
		return id, nil
	}

	buf, err := p.alloc()
	if err != nil {
		return -1, fmt.Errorf("decoder: alloc picture buffer: %w", err)
	}
	p.pictures = append(p.pictures, picture{buf: buf, refs: 1})
	return len(p.pictures) - 1, nil
}

func (p *PicturePool) get(id int) (*picture, error) {
	if id < 0 || id >= len(p.pictures) || p.pictures[id].refs <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPicture, id)
	}
	return &p.pictures[id], nil
}

// AddRef 增加引用
func (p *PicturePool) AddRef(id int) error {
	pic, err := p.get(id)
	if err != nil {
		return err
	}
	pic.refs++
	return nil
}

// Release 减少引用，归零时缓冲回到空闲列表
func (p *PicturePool) Release(id int) error {
	pic, err := p.get(id)
	if err != nil {
		return err
	}
	pic.refs--
	if pic.refs == 0 {
		p.free = append(p.free, id)
		if p.release != nil {
			p.release(pic.buf)
		}
	}
	return nil
}

// RefCount 当前引用计数，越界返回 0
func (p *PicturePool) RefCount(id int) int {
	if id < 0 || id >= len(p.pictures) {
		return 0
	}
	return p.pictures[id].refs
}

// Buffer 客户端缓冲，未被引用时返回 nil
func (p *PicturePool) Buffer(id int) PictureBuffer {
	pic, err := p.get(id)
	if err != nil {
		return nil
	}
	return pic.buf
}

// Len 已分配的缓冲数
func (p *PicturePool) Len() int { return len(p.pictures) }

// InUse 引用计数大于 0 的缓冲数
func (p *PicturePool) InUse() int { return len(p.pictures) - len(p.free) }
