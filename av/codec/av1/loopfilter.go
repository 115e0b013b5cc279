// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package av1

import (
	"github.com/cnotch/av1parser/utils/bits"
)

// LoopFilterParams loop_filter_params()
type LoopFilterParams struct {
	Level        [4]uint8
	Sharpness    uint8
	DeltaEnabled bool
	DeltaUpdate  bool
	// 位 i 表示 RefDeltas[i] 在本帧更新
	UpdateRefDelta  uint8
	UpdateModeDelta uint8
	// 从主参考帧载入或取默认值，再由本帧增量覆盖
	RefDeltas  [TotalRefsPerFrame]int8
	ModeDeltas [2]int8
}

// setDefaults is the loop filter part of setup_past_independence().
func (lf *LoopFilterParams) setDefaults() {
	lf.DeltaEnabled = true
	lf.RefDeltas = defaultLoopFilterRefDeltas
	lf.ModeDeltas = [2]int8{}
}

// decode parses the syntax on top of the deltas already loaded into lf.
func (lf *LoopFilterParams) decode(r *bits.Reader, numPlanes int, disabled bool) {
	lf.Level = [4]uint8{}
	lf.Sharpness = 0
	lf.DeltaUpdate = false
	lf.UpdateRefDelta = 0
	lf.UpdateModeDelta = 0

	if disabled {
		lf.RefDeltas = defaultLoopFilterRefDeltas
		lf.ModeDeltas = [2]int8{}
		return
	}

	lf.Level[0] = r.ReadUint8(6)
	lf.Level[1] = r.ReadUint8(6)
	if numPlanes > 1 && (lf.Level[0] != 0 || lf.Level[1] != 0) {
		lf.Level[2] = r.ReadUint8(6)
		lf.Level[3] = r.ReadUint8(6)
	}
	lf.Sharpness = r.ReadUint8(3)

	lf.DeltaEnabled = r.ReadBool()
	if !lf.DeltaEnabled {
		return
	}
	lf.DeltaUpdate = r.ReadBool()
	if !lf.DeltaUpdate {
		return
	}

	for i := 0; i < TotalRefsPerFrame; i++ {
		if r.ReadBool() {
			lf.UpdateRefDelta |= 1 << uint(i)
			lf.RefDeltas[i] = int8(r.ReadSignedBits(6))
		}
	}
	for i := 0; i < 2; i++ {
		if r.ReadBool() {
			lf.UpdateModeDelta |= 1 << uint(i)
			lf.ModeDeltas[i] = int8(r.ReadSignedBits(6))
		}
	}
}

// CdefParams cdef_params()
type CdefParams struct {
	Damping       uint8 // cdef_damping_minus_3 + 3
	Bits          uint8
	YPriStrength  [8]uint8
	YSecStrength  [8]uint8
	UVPriStrength [8]uint8
	UVSecStrength [8]uint8
}

func (c *CdefParams) decode(r *bits.Reader, numPlanes int, disabled bool) {
	*c = CdefParams{Damping: 3}
	if disabled {
		return
	}

	c.Damping = r.ReadUint8(2) + 3
	c.Bits = r.ReadUint8(2)
	for i := 0; i < 1<<c.Bits; i++ {
		c.YPriStrength[i] = r.ReadUint8(4)
		c.YSecStrength[i] = secStrength(r.ReadUint8(2))
		if numPlanes > 1 {
			c.UVPriStrength[i] = r.ReadUint8(4)
			c.UVSecStrength[i] = secStrength(r.ReadUint8(2))
		}
	}
}

func secStrength(v uint8) uint8 {
	if v == 3 {
		return 4
	}
	return v
}

// LoopRestorationParams lr_params()
type LoopRestorationParams struct {
	Type         [MaxPlanes]uint8  // FrameRestorationType
	Size         [MaxPlanes]uint32 // LoopRestorationSize, 0 when unused
	UnitShift    uint8
	UVShift      uint8
	UsesLr       bool
	UsesChromaLr bool
}

func (lr *LoopRestorationParams) decode(r *bits.Reader, sh *SequenceHeader, disabled bool) {
	*lr = LoopRestorationParams{}
	if disabled {
		return
	}

	cc := &sh.ColorConfig
	for i := 0; i < cc.NumPlanes(); i++ {
		lr.Type[i] = remapLrType[r.ReadUint8(2)]
		if lr.Type[i] != RestoreNone {
			lr.UsesLr = true
			if i > 0 {
				lr.UsesChromaLr = true
			}
		}
	}
	if !lr.UsesLr {
		return
	}

	if sh.Use128x128Superblock {
		lr.UnitShift = r.ReadUint8(1) + 1
	} else {
		lr.UnitShift = r.ReadUint8(1)
		if lr.UnitShift != 0 {
			lr.UnitShift += r.ReadUint8(1) // lr_unit_extra_shift
		}
	}
	lr.Size[0] = RestorationTileSizeMax >> (2 - lr.UnitShift)

	if cc.SubsamplingX != 0 && cc.SubsamplingY != 0 && lr.UsesChromaLr {
		lr.UVShift = r.ReadUint8(1)
	}
	lr.Size[1] = lr.Size[0] >> lr.UVShift
	lr.Size[2] = lr.Size[0] >> lr.UVShift
}
