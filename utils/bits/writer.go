// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bits

import (
	"bytes"
	mbits "math/bits"

	"github.com/icza/bitio"
)

// Writer MSB-first bit writer, the encoding counterpart of Reader.
// It is used to build test streams; write errors are sticky and
// reported by Err.
type Writer struct {
	buf bytes.Buffer
	w   *bitio.Writer
	n   int
}

// NewWriter returns a new Writer.
func NewWriter() *Writer {
	bw := &Writer{}
	bw.w = bitio.NewWriter(&bw.buf)
	return bw
}

// WriteBits writes the n lowest bits of v.
func (bw *Writer) WriteBits(v uint64, n int) {
	if n <= 0 {
		return
	}
	bw.w.TryWriteBits(v, uint8(n))
	bw.n += n
}

// WriteBool writes one bit.
func (bw *Writer) WriteBool(b bool) {
	bw.w.TryWriteBool(b)
	bw.n++
}

// WriteFlag writes 0 or 1 as one bit.
func (bw *Writer) WriteFlag(v int) { bw.WriteBool(v != 0) }

// WriteUvlc writes a uvlc() value.
func (bw *Writer) WriteUvlc(v uint32) {
	x := uint64(v) + 1
	leadingZeros := mbits.Len64(x) - 1
	bw.WriteBits(0, leadingZeros)
	bw.WriteBool(true)
	bw.WriteBits(x-(1<<uint(leadingZeros)), leadingZeros)
}

// WriteNs writes v as ns(n).
func (bw *Writer) WriteNs(n, v int) {
	if n <= 1 {
		return
	}
	w := FloorLog2(n) + 1
	m := (1 << uint(w)) - n
	if v < m {
		bw.WriteBits(uint64(v), w-1)
		return
	}
	t := v + m
	bw.WriteBits(uint64(t>>1), w-1)
	bw.WriteBits(uint64(t&1), 1)
}

// WriteSu writes v as su(n).
func (bw *Writer) WriteSu(v, n int) {
	bw.WriteBits(uint64(v)&(1<<uint(n)-1), n)
}

// WriteLe writes v as le(n).
func (bw *Writer) WriteLe(v uint32, n int) {
	for i := 0; i < n; i++ {
		bw.WriteBits(uint64(v>>uint(i*8))&0xff, 8)
	}
}

// WriteSubexpFin writes v in [0, n) with the subexponential code of parameter k.
func (bw *Writer) WriteSubexpFin(n, k, v int) {
	i, mk := 0, 0
	for {
		b := k
		if i != 0 {
			b = k + i - 1
		}
		a := 1 << uint(b)
		if n <= mk+3*a {
			bw.WriteNs(n-mk, v-mk)
			return
		}
		if v < mk+a {
			bw.WriteBool(false)
			bw.WriteBits(uint64(v-mk), b)
			return
		}
		bw.WriteBool(true)
		i++
		mk += a
	}
}

// WriteRefSubexpFin writes v in [0, n) recentered around ref.
func (bw *Writer) WriteRefSubexpFin(n, k, ref, v int) {
	bw.WriteSubexpFin(n, k, RecenterFinite(n, ref, v))
}

// WriteSignedRefSubexpFin writes v in [-(n-1), n-1] recentered around ref.
func (bw *Writer) WriteSignedRefSubexpFin(n, k, ref, v int) {
	bw.WriteRefSubexpFin((n<<1)-1, k, ref+n-1, v+n-1)
}

// ByteAlign pads zero bits up to the next byte boundary.
func (bw *Writer) ByteAlign() {
	if rem := bw.n & 0x7; rem != 0 {
		bw.WriteBits(0, 8-rem)
	}
}

// TrailingBits writes trailing_bits(): a one bit and zero padding.
func (bw *Writer) TrailingBits() {
	bw.WriteBool(true)
	bw.ByteAlign()
}

// Len returns the number of bits written.
func (bw *Writer) Len() int { return bw.n }

// Err returns the first write error, if any.
func (bw *Writer) Err() error { return bw.w.TryError }

// Bytes aligns the writer and returns the written bytes.
func (bw *Writer) Bytes() []byte {
	bw.ByteAlign()
	return bw.buf.Bytes()
}
