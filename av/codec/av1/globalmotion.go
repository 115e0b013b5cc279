// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package av1

import (
	"github.com/cnotch/av1parser/utils/bits"
)

// GlobalMotionParams global_motion_params()，按参考帧名称索引（LastFrame..AltrefFrame）
type GlobalMotionParams struct {
	Type   [TotalRefsPerFrame]uint8
	Params [TotalRefsPerFrame][6]int32
}

// DefaultGlobalMotion returns identity models for every reference.
func DefaultGlobalMotion() GlobalMotionParams {
	var gm GlobalMotionParams
	gm.reset()
	return gm
}

func (gm *GlobalMotionParams) reset() {
	for ref := range gm.Params {
		gm.Type[ref] = GmIdentity
		for i := range gm.Params[ref] {
			if i%3 == 2 {
				gm.Params[ref][i] = 1 << WarpedModelPrecBits
			} else {
				gm.Params[ref][i] = 0
			}
		}
	}
}

// decode reads the models of LAST..ALTREF relative to prev, the models of
// the primary reference frame (defaults when there is none).
func (gm *GlobalMotionParams) decode(r *bits.Reader, prev *GlobalMotionParams, allowHighPrecisionMv bool) {
	gm.reset()

	for ref := LastFrame; ref <= AltrefFrame; ref++ {
		typ := uint8(GmIdentity)
		if r.ReadBool() { // is_global
			if r.ReadBool() { // is_rot_zoom
				typ = GmRotzoom
			} else if r.ReadBool() { // is_translation
				typ = GmTranslation
			} else {
				typ = GmAffine
			}
		}
		gm.Type[ref] = typ

		if typ >= GmRotzoom {
			gm.readParam(r, prev, typ, ref, 2, allowHighPrecisionMv)
			gm.readParam(r, prev, typ, ref, 3, allowHighPrecisionMv)
			if typ == GmAffine {
				gm.readParam(r, prev, typ, ref, 4, allowHighPrecisionMv)
				gm.readParam(r, prev, typ, ref, 5, allowHighPrecisionMv)
			} else {
				gm.Params[ref][4] = -gm.Params[ref][3]
				gm.Params[ref][5] = gm.Params[ref][2]
			}
		}
		if typ >= GmTranslation {
			gm.readParam(r, prev, typ, ref, 0, allowHighPrecisionMv)
			gm.readParam(r, prev, typ, ref, 1, allowHighPrecisionMv)
		}
	}
}

// read_global_param()
func (gm *GlobalMotionParams) readParam(r *bits.Reader, prev *GlobalMotionParams, typ uint8, ref, idx int, allowHighPrecisionMv bool) {
	absBits := GmAbsAlphaBits
	precBits := GmAlphaPrecBits
	if idx < 2 {
		if typ == GmTranslation {
			hp := 0
			if !allowHighPrecisionMv {
				hp = 1
			}
			absBits = GmAbsTransOnlyBits - hp
			precBits = GmTransOnlyPrecBits - hp
		} else {
			absBits = GmAbsTransBits
			precBits = GmTransPrecBits
		}
	}

	precDiff := uint(WarpedModelPrecBits - precBits)
	round, sub := 0, 0
	if idx%3 == 2 {
		round = 1 << WarpedModelPrecBits
		sub = 1 << uint(precBits)
	}
	mx := 1 << uint(absBits)
	ref0 := (int(prev.Params[ref][idx]) >> precDiff) - sub
	v := r.ReadSignedRefSubexpFin(mx+1, SubexpFinK, ref0)
	gm.Params[ref][idx] = int32((v << precDiff) + round)
}
