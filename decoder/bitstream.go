// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decoder

// Packet 输入的码流包
type Packet struct {
	Data          []byte
	PTS           int64
	PTSValid      bool
	EOS           bool // 处理完本包后结束码流
	Discontinuity bool // 丢弃之前未完成的数据
	// Complete 包内是完整的帧，末尾不完整的 OBU 不再等待后续数据
	Complete bool
}

const (
	maxQueuedPTS  = 16
	minBufferGrow = 2 * 1024 * 1024
)

type ptsEntry struct {
	valid         bool
	pts           int64
	pos           int64 // 收到 PTS 时已接收的字节数
	discontinuity bool
}

// ptsQueue 等待匹配的时间戳，满了覆盖最旧的
type ptsQueue struct {
	entries [maxQueuedPTS]ptsEntry
	next    int
}

func (q *ptsQueue) push(pts, pos int64, discontinuity bool) {
	q.entries[q.next] = ptsEntry{
		valid:         true,
		pts:           pts,
		pos:           pos,
		discontinuity: discontinuity,
	}
	q.next = (q.next + 1) % maxQueuedPTS
}

// match 取出在帧起始位置之前收到的时间戳，多个时取最新的
func (q *ptsQueue) match(frameStart int64) (e ptsEntry) {
	ndx := q.next
	for k := 0; k < maxQueuedPTS; k++ {
		p := &q.entries[ndx]
		if p.valid && p.pos <= frameStart {
			e = *p
			p.valid = false
		}
		ndx = (ndx + 1) % maxQueuedPTS
	}
	return
}

func (q *ptsQueue) reset() {
	*q = ptsQueue{}
}

// growBuffer 保证 buf 还能追加 need 字节，每次至少扩大 minBufferGrow
func growBuffer(buf []byte, need int) []byte {
	if cap(buf)-len(buf) >= need {
		return buf
	}
	grow := need
	if grow < minBufferGrow {
		grow = minBufferGrow
	}
	nb := make([]byte, len(buf), cap(buf)+grow)
	copy(nb, buf)
	return nb
}

// bitstream 跨包累积的未解析数据
type bitstream struct {
	buf []byte
	off int   // 已解析到的位置
	pos int64 // buf[off] 在整个码流中的位置
}

func (b *bitstream) append(data []byte) {
	if b.off > 0 {
		n := copy(b.buf, b.buf[b.off:])
		b.buf = b.buf[:n]
		b.off = 0
	}
	b.buf = growBuffer(b.buf, len(data))
	b.buf = append(b.buf, data...)
}

// end 已接收的总字节数
func (b *bitstream) end() int64 { return b.pos + int64(len(b.buf)-b.off) }

func (b *bitstream) bytes() []byte { return b.buf[b.off:] }

func (b *bitstream) consume(n int) {
	b.off += n
	b.pos += int64(n)
}

// discard 丢弃所有未解析数据
func (b *bitstream) discard() {
	b.consume(len(b.buf) - b.off)
}

// skipZeros 跳过帧之间填充的 0 字节
func (b *bitstream) skipZeros() {
	data, n := b.bytes(), 0
	for n < len(data) && data[n] == 0 {
		n++
	}
	if n > 0 {
		b.consume(n)
	}
}
