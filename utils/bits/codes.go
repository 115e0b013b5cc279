// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bits

// AV1 语法描述符（uvlc/ns/su/le）和子指数码

// UvlcInvalid 前导零超过 31 个时 ReadUvlc 返回的哨兵值
const UvlcInvalid = uint32(0xFFFFFFFF)

// ReadUvlc reads a uvlc() variable length unsigned value.
// It returns UvlcInvalid when the prefix has 32 or more leading zeros.
func (r *Reader) ReadUvlc() uint32 {
	leadingZeros := 0
	for r.ReadBit() == 0 {
		leadingZeros++
	}
	if leadingZeros >= 32 {
		return UvlcInvalid
	}

	value := uint64(r.Read(leadingZeros))
	return uint32(value + (1 << uint(leadingZeros)) - 1)
}

// ReadNs reads a ns(n) quasi uniform value in [0, n).
func (r *Reader) ReadNs(n int) int {
	if n <= 1 {
		return 0
	}
	w := FloorLog2(n) + 1
	m := (1 << uint(w)) - n
	v := int(r.Read(w - 1))
	if v < m {
		return v
	}
	extraBit := int(r.ReadBit())
	return (v << 1) - m + extraBit
}

// ReadSu reads a su(n) two's complement signed value of n bits.
func (r *Reader) ReadSu(n int) int {
	value := int(r.Read(n))
	signMask := 1 << uint(n-1)
	if value&signMask != 0 {
		value -= 2 * signMask
	}
	return value
}

// ReadSignedBits reads a sign bit followed by bits magnitude bits, su(1+bits).
func (r *Reader) ReadSignedBits(bits int) int {
	return r.ReadSu(bits + 1)
}

// ReadDeltaQ reads delta_coded ? su(1+6) : 0.
func (r *Reader) ReadDeltaQ() int {
	if r.ReadBool() {
		return r.ReadSignedBits(6)
	}
	return 0
}

// ReadLe reads a le(n) little-endian value of n bytes.
func (r *Reader) ReadLe(n int) uint32 {
	var t uint32
	for i := 0; i < n; i++ {
		t |= uint32(r.ReadUint8(8)) << uint(i*8)
	}
	return t
}

// ReadSubexpFin reads a subexponential coded value in [0, n) with parameter k.
func (r *Reader) ReadSubexpFin(n, k int) int {
	i, mk := 0, 0
	for {
		b := k
		if i != 0 {
			b = k + i - 1
		}
		a := 1 << uint(b)
		if n <= mk+3*a {
			return r.ReadNs(n-mk) + mk
		}
		if !r.ReadBool() {
			return int(r.Read(b)) + mk
		}
		i++
		mk += a
	}
}

// ReadRefSubexpFin reads a subexponential coded value in [0, n) recentered around ref.
func (r *Reader) ReadRefSubexpFin(n, k, ref int) int {
	return InverseRecenterFinite(n, ref, r.ReadSubexpFin(n, k))
}

// ReadSignedRefSubexpFin reads a value in [-(n-1), n-1] recentered around ref.
func (r *Reader) ReadSignedRefSubexpFin(n, k, ref int) int {
	ref += n - 1
	scaledN := (n << 1) - 1
	return r.ReadRefSubexpFin(scaledN, k, ref) - n + 1
}

// InverseRecenter maps v back around the reference r.
func InverseRecenter(r, v int) int {
	switch {
	case v > 2*r:
		return v
	case v&1 != 0:
		return r - ((v + 1) >> 1)
	default:
		return r + (v >> 1)
	}
}

// InverseRecenterFinite is InverseRecenter over the finite range [0, n).
func InverseRecenterFinite(n, r, v int) int {
	if (r << 1) <= n {
		return InverseRecenter(r, v)
	}
	return n - 1 - InverseRecenter(n-1-r, v)
}

// Recenter is the inverse of InverseRecenter.
func Recenter(r, v int) int {
	switch {
	case v > 2*r:
		return v
	case v >= r:
		return (v - r) << 1
	default:
		return ((r - v) << 1) - 1
	}
}

// RecenterFinite is the inverse of InverseRecenterFinite.
func RecenterFinite(n, r, v int) int {
	if (r << 1) <= n {
		return Recenter(r, v)
	}
	return Recenter(n-1-r, n-1-v)
}

// FloorLog2 returns floor(log2(x)) for x > 0, and -1 for x == 0.
func FloorLog2(x int) int {
	s := -1
	for x > 0 {
		x >>= 1
		s++
	}
	return s
}

// CeilLog2 returns ceil(log2(x)), 0 for x < 2.
func CeilLog2(x int) int {
	if x < 2 {
		return 0
	}
	i, p := 1, 2
	for p < x {
		i++
		p <<= 1
	}
	return i
}

// TileLog2 returns the smallest k such that blkSize << k >= target.
func TileLog2(blkSize, target int) int {
	k := 0
	for (blkSize << uint(k)) < target {
		k++
	}
	return k
}
