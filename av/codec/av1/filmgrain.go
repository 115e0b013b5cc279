// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package av1

import (
	"github.com/cnotch/av1parser/utils/bits"
)

// FilmGrainParams film_grain_params()
type FilmGrainParams struct {
	ApplyGrain            bool
	GrainSeed             uint16
	UpdateGrain           bool
	FilmGrainParamsRefIdx uint8
	NumYPoints            uint8
	PointYValue           [MaxNumYPoints]uint8
	PointYScaling         [MaxNumYPoints]uint8
	ChromaScalingFromLuma bool
	NumCbPoints           uint8
	PointCbValue          [MaxNumCbCrPoints]uint8
	PointCbScaling        [MaxNumCbCrPoints]uint8
	NumCrPoints           uint8
	PointCrValue          [MaxNumCbCrPoints]uint8
	PointCrScaling        [MaxNumCbCrPoints]uint8
	GrainScalingMinus8    uint8
	ArCoeffLag            uint8
	ArCoeffsYPlus128      [MaxNumPosLuma]uint8
	ArCoeffsCbPlus128     [MaxNumPosChroma]uint8
	ArCoeffsCrPlus128     [MaxNumPosChroma]uint8
	ArCoeffShiftMinus6    uint8
	GrainScaleShift       uint8
	CbMult                uint8
	CbLumaMult            uint8
	CbOffset              uint16
	CrMult                uint8
	CrLumaMult            uint8
	CrOffset              uint16
	OverlapFlag           bool
	ClipToRestrictedRange bool
}

// decodeFilmGrain film_grain_params(); frame type, show flags and
// ref_frame_idx must already be set.
func (fh *FrameHeader) decodeFilmGrain(r *bits.Reader, ctx *FrameContext) {
	fg := &fh.FilmGrain
	*fg = FilmGrainParams{}

	sh := ctx.Sequence
	if !sh.FilmGrainParamsPresent || (!fh.ShowFrame && !fh.ShowableFrame) {
		return
	}

	fg.ApplyGrain = r.ReadBool()
	if !fg.ApplyGrain {
		return
	}
	fg.GrainSeed = r.ReadUint16(16)

	fg.UpdateGrain = true
	if fh.FrameType == InterFrame {
		fg.UpdateGrain = r.ReadBool()
	}

	if !fg.UpdateGrain {
		idx := r.ReadUint8(3)
		referenced := false
		for _, i := range fh.RefFrameIdx {
			if i == idx {
				referenced = true
				break
			}
		}
		if !referenced {
			ctx.Checker.violation("film_grain_params_ref_idx %d is not one of ref_frame_idx", idx)
		}

		slot := &ctx.Refs.Frames[idx]
		if !slot.Populated {
			throwf(ErrRefUnavailable, "film grain reference slot %d is empty", idx)
		}

		seed := fg.GrainSeed
		*fg = slot.FilmGrain
		fg.GrainSeed = seed
		fg.UpdateGrain = false
		fg.FilmGrainParamsRefIdx = idx
		return
	}

	fg.decodeParams(r, &sh.ColorConfig, ctx.Checker)
}

func (fg *FilmGrainParams) decodeParams(r *bits.Reader, cc *ColorConfig, chk *Checker) {
	fg.NumYPoints = r.ReadUint8(4)
	if fg.NumYPoints > MaxNumYPoints {
		throwf(ErrCorrupt, "num_y_points %d", fg.NumYPoints)
	}
	for i := 0; i < int(fg.NumYPoints); i++ {
		fg.PointYValue[i] = r.ReadUint8(8)
		fg.PointYScaling[i] = r.ReadUint8(8)
		if i > 0 && fg.PointYValue[i] <= fg.PointYValue[i-1] {
			chk.violation("point_y_value not increasing at %d", i)
		}
	}

	if !cc.MonoChrome {
		fg.ChromaScalingFromLuma = r.ReadBool()
	}

	if cc.MonoChrome || fg.ChromaScalingFromLuma ||
		(cc.SubsamplingX == 1 && cc.SubsamplingY == 1 && fg.NumYPoints == 0) {
		fg.NumCbPoints = 0
		fg.NumCrPoints = 0
	} else {
		fg.NumCbPoints = readScalingPoints(r, fg.PointCbValue[:], fg.PointCbScaling[:], "cb", chk)
		fg.NumCrPoints = readScalingPoints(r, fg.PointCrValue[:], fg.PointCrScaling[:], "cr", chk)
	}

	fg.GrainScalingMinus8 = r.ReadUint8(2)
	fg.ArCoeffLag = r.ReadUint8(2)
	numPosLuma := 2 * int(fg.ArCoeffLag) * (int(fg.ArCoeffLag) + 1)
	numPosChroma := numPosLuma
	if fg.NumYPoints > 0 {
		numPosChroma = numPosLuma + 1
		for i := 0; i < numPosLuma; i++ {
			fg.ArCoeffsYPlus128[i] = r.ReadUint8(8)
		}
	}
	if fg.ChromaScalingFromLuma || fg.NumCbPoints > 0 {
		for i := 0; i < numPosChroma; i++ {
			fg.ArCoeffsCbPlus128[i] = r.ReadUint8(8)
		}
	}
	if fg.ChromaScalingFromLuma || fg.NumCrPoints > 0 {
		for i := 0; i < numPosChroma; i++ {
			fg.ArCoeffsCrPlus128[i] = r.ReadUint8(8)
		}
	}

	fg.ArCoeffShiftMinus6 = r.ReadUint8(2)
	fg.GrainScaleShift = r.ReadUint8(2)
	if fg.NumCbPoints > 0 {
		fg.CbMult = r.ReadUint8(8)
		fg.CbLumaMult = r.ReadUint8(8)
		fg.CbOffset = r.ReadUint16(9)
	}
	if fg.NumCrPoints > 0 {
		fg.CrMult = r.ReadUint8(8)
		fg.CrLumaMult = r.ReadUint8(8)
		fg.CrOffset = r.ReadUint16(9)
	}
	fg.OverlapFlag = r.ReadBool()
	fg.ClipToRestrictedRange = r.ReadBool()
}

func readScalingPoints(r *bits.Reader, values, scaling []uint8, plane string, chk *Checker) uint8 {
	n := r.ReadUint8(4)
	if int(n) > len(values) {
		throwf(ErrCorrupt, "num_%s_points %d", plane, n)
	}
	for i := 0; i < int(n); i++ {
		values[i] = r.ReadUint8(8)
		scaling[i] = r.ReadUint8(8)
		if i > 0 && values[i] <= values[i-1] {
			chk.violation("point_%s_value not increasing at %d", plane, i)
		}
	}
	return n
}
