// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bits

import "errors"

const uintBitsCount = int(32 << (^uint(0) >> 63))

// ErrOutOfRange 读取超出缓冲区末尾时 panic 的值
var ErrOutOfRange = errors.New("bits: read past the end of buffer")

// Reader MSB-first bit reader.
type Reader struct {
	buf    []byte
	offset int // bit base
}

// NewReader retruns a new Reader.
func NewReader(buf []byte) *Reader {
	return &Reader{
		buf: buf,
	}
}

// Reset resets the reader to read from buf.
func (r *Reader) Reset(buf []byte) {
	r.buf = buf
	r.offset = 0
}

func (r *Reader) need(n int) {
	if r.offset+n > len(r.buf)<<3 {
		panic(ErrOutOfRange)
	}
}

// Skip skip n bits.
func (r *Reader) Skip(n int) {
	if n <= 0 {
		return
	}
	r.need(n)
	r.offset += n
}

// Peek peek the uint64 of n bits.
func (r *Reader) Peek(n int) uint64 {
	clone := *r
	return clone.readUint64(n, 64)
}

// Read read the uint32 of n bits, f(n) in AV1 syntax tables.
func (r *Reader) Read(n int) uint32 {
	return uint32(r.readUint64(n, 32))
}

// ReadBit read a bit.
func (r *Reader) ReadBit() uint8 {
	r.need(1)

	tmp := (r.buf[r.offset>>3] >> (7 - r.offset&0x7)) & 1
	r.offset++
	return tmp
}

// ByteAlign skips to the next byte boundary.
func (r *Reader) ByteAlign() {
	if rem := r.offset & 0x7; rem != 0 {
		r.Skip(8 - rem)
	}
}

// IsByteAligned reports whether the cursor is on a byte boundary.
func (r *Reader) IsByteAligned() bool { return r.offset&0x7 == 0 }

// ==== shortcut methods

// ReadBool read one bit bool.
func (r *Reader) ReadBool() bool { return bool(r.ReadBit() == 1) }

// ReadUint read the uint of n bits.
func (r *Reader) ReadUint(n int) uint { return uint(r.readUint64(n, uintBitsCount)) }

// ReadUint8 read the uint8 of n bits.
func (r *Reader) ReadUint8(n int) uint8 { return uint8(r.readUint64(n, 8)) }

// ReadUint16 read the uint16 of n bits.
func (r *Reader) ReadUint16(n int) uint16 { return uint16(r.readUint64(n, 16)) }

// ReadUint32 read the uint32 of n bits.
func (r *Reader) ReadUint32(n int) uint32 { return uint32(r.readUint64(n, 32)) }

// ReadUint64 read the uint64 of n bits.
func (r *Reader) ReadUint64(n int) uint64 { return r.readUint64(n, 64) }

// ReadInt read the int of n bits.
func (r *Reader) ReadInt(n int) int { return int(r.readUint64(n, uintBitsCount)) }

// ReadInt8 read the int8 of n bits.
func (r *Reader) ReadInt8(n int) int8 { return int8(r.readUint64(n, 8)) }

// ReadInt16 read the int16 of n bits.
func (r *Reader) ReadInt16(n int) int16 { return int16(r.readUint64(n, 16)) }

// ReadInt32 read the int32 of n bits.
func (r *Reader) ReadInt32(n int) int32 { return int32(r.readUint64(n, 32)) }

// Offset returns the offset of bits.
func (r *Reader) Offset() int {
	return r.offset
}

// BytesConsumed returns the number of bytes touched so far, counting a partial byte.
func (r *Reader) BytesConsumed() int {
	return (r.offset + 7) >> 3
}

// BitsLeft returns the number of left bits.
func (r *Reader) BitsLeft() int {
	return len(r.buf)<<3 - r.offset
}

// BytesLeft returns the left byte slice.
func (r *Reader) BytesLeft() []byte {
	return r.buf[r.offset>>3:]
}

var bitsMask = [9]byte{
	0x00,
	0x01, 0x03, 0x07, 0x0f,
	0x1f, 0x3f, 0x7f, 0xff,
}

// readUint64 read the uint64 of n bits.
func (r *Reader) readUint64(n, max int) uint64 {
	if n <= 0 || n > max {
		return 0
	}

	r.need(n)

	idx := r.offset >> 3
	validBits := 8 - r.offset&0x7
	r.offset += n

	var tmp uint64
	for n >= validBits {
		n -= validBits
		tmp |= uint64(r.buf[idx]&bitsMask[validBits]) << n
		idx++
		validBits = 8
	}

	if n > 0 {
		tmp |= uint64((r.buf[idx] >> (validBits - n)) & bitsMask[n])
	}
	return tmp
}
