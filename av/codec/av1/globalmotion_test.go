// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package av1

import (
	"testing"

	"github.com/cnotch/av1parser/utils/bits"
	"github.com/stretchr/testify/assert"
)

func TestGlobalMotionDecode(t *testing.T) {
	w := bits.NewWriter()
	for ref := LastFrame; ref <= AltrefFrame; ref++ {
		switch ref {
		case LastFrame: // translation, no high precision
			w.WriteBool(true)
			w.WriteBool(false)
			w.WriteBool(true)
			w.WriteSignedRefSubexpFin((1<<8)+1, SubexpFinK, 0, 5)
			w.WriteSignedRefSubexpFin((1<<8)+1, SubexpFinK, 0, -3)
		case AltrefFrame: // rotzoom
			w.WriteBool(true)
			w.WriteBool(true)
			w.WriteSignedRefSubexpFin((1<<12)+1, SubexpFinK, 0, 100)
			w.WriteSignedRefSubexpFin((1<<12)+1, SubexpFinK, 0, -50)
			w.WriteSignedRefSubexpFin((1<<12)+1, SubexpFinK, 0, 7)
			w.WriteSignedRefSubexpFin((1<<12)+1, SubexpFinK, 0, 0)
		default:
			w.WriteBool(false)
		}
	}
	w.ByteAlign()

	prev := DefaultGlobalMotion()
	var gm GlobalMotionParams
	gm.decode(bits.NewReader(w.Bytes()), &prev, false)

	assert.Equal(t, uint8(GmTranslation), gm.Type[LastFrame])
	assert.Equal(t, [6]int32{5 << 14, -3 << 14, 1 << 16, 0, 0, 1 << 16}, gm.Params[LastFrame])

	assert.Equal(t, uint8(GmRotzoom), gm.Type[AltrefFrame])
	assert.Equal(t, [6]int32{7 << 10, 0, 200 + 1<<16, -100, 100, 200 + 1<<16}, gm.Params[AltrefFrame])

	for ref := Last2Frame; ref < AltrefFrame; ref++ {
		assert.Equal(t, uint8(GmIdentity), gm.Type[ref])
		assert.Equal(t, prev.Params[ref], gm.Params[ref])
	}
}

func TestGlobalMotionRelativeToPrevious(t *testing.T) {
	prev := DefaultGlobalMotion()
	prev.Type[GoldenFrame] = GmTranslation
	prev.Params[GoldenFrame][0] = 40 << 13 // 精度 precBits = 3
	prev.Params[GoldenFrame][1] = -8 << 13

	w := bits.NewWriter()
	for ref := LastFrame; ref <= AltrefFrame; ref++ {
		if ref != GoldenFrame {
			w.WriteBool(false)
			continue
		}
		w.WriteBool(true)
		w.WriteBool(false)
		w.WriteBool(true)
		w.WriteSignedRefSubexpFin((1<<9)+1, SubexpFinK, 40, 41)
		w.WriteSignedRefSubexpFin((1<<9)+1, SubexpFinK, -8, -8)
	}
	w.ByteAlign()

	var gm GlobalMotionParams
	gm.decode(bits.NewReader(w.Bytes()), &prev, true)
	assert.Equal(t, int32(41<<13), gm.Params[GoldenFrame][0])
	assert.Equal(t, int32(-8<<13), gm.Params[GoldenFrame][1])
}
