// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package av1

import (
	"testing"

	"github.com/cnotch/av1parser/utils/bits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeLossless(t *testing.T) {
	altQ := func(delta int16) SegmentationParams {
		var seg SegmentationParams
		seg.Enabled = true
		seg.FeatureEnabled[3][SegLvlAltQ] = true
		seg.FeatureData[3][SegLvlAltQ] = delta
		return seg
	}

	tests := []struct {
		name         string
		q            QuantizationParams
		seg          SegmentationParams
		upscaled     uint32
		coded, all   bool
		losslessSeg3 bool
		losslessSeg0 bool
	}{
		{"zero q", QuantizationParams{}, SegmentationParams{}, 64, true, true, true, true},
		{"zero q superres", QuantizationParams{}, SegmentationParams{}, 96, true, false, true, true},
		{"base q", QuantizationParams{BaseQIdx: 1}, SegmentationParams{}, 64, false, false, false, false},
		{"dc delta", QuantizationParams{DeltaQYDc: -1}, SegmentationParams{}, 64, false, false, false, false},
		{"one lossless segment", QuantizationParams{BaseQIdx: 20}, altQ(-20), 64, false, false, true, false},
		{"clamped to zero", QuantizationParams{BaseQIdx: 20}, altQ(-100), 64, false, false, true, false},
		{"segment raises q", QuantizationParams{}, altQ(5), 64, false, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, seg := tt.q, tt.seg
			got := ComputeLossless(&q, &seg, 64, tt.upscaled)
			assert.Equal(t, tt.coded, got.CodedLossless)
			assert.Equal(t, tt.all, got.AllLossless)
			assert.Equal(t, tt.losslessSeg3, got.Segments[3])
			assert.Equal(t, tt.losslessSeg0, got.Segments[0])

			// 只读参数，重复计算结果不变
			assert.Equal(t, got, ComputeLossless(&q, &seg, 64, tt.upscaled))
			assert.Equal(t, tt.q, q)
			assert.Equal(t, tt.seg, seg)
		})
	}
}

func decodeSegmentation(data []byte, prev *SegmentationFeatures, chk *Checker) (seg SegmentationParams, err error) {
	defer catch("segmentation", &err)
	seg.decode(bits.NewReader(data), prev, chk)
	return
}

func TestSegmentationDecode(t *testing.T) {
	w := bits.NewWriter()
	w.WriteBool(true) // segmentation_enabled
	for i := 0; i < MaxSegments; i++ {
		for j := 0; j < SegLvlMax; j++ {
			switch {
			case i == 0 && j == SegLvlAltQ:
				w.WriteBool(true)
				w.WriteSu(-256, 9)
			case i == 2 && j == SegLvlRefFrame:
				w.WriteBool(true)
				w.WriteBits(1, 3)
			default:
				w.WriteBool(false)
			}
		}
	}
	w.ByteAlign()
	data := w.Bytes()

	t.Run("warn", func(t *testing.T) {
		seg, err := decodeSegmentation(data, nil, &Checker{Policy: PolicyWarn})
		require.NoError(t, err)
		assert.True(t, seg.UpdateMap)
		assert.True(t, seg.UpdateData)
		assert.Equal(t, int16(-255), seg.FeatureData[0][SegLvlAltQ])
		assert.Equal(t, int16(1), seg.FeatureData[2][SegLvlRefFrame])
		assert.Equal(t, uint8(2), seg.LastActiveSegID)
		assert.True(t, seg.SegIDPreSkip)
		assert.True(t, seg.FeatureActive(0, SegLvlAltQ))
		assert.False(t, seg.FeatureActive(1, SegLvlAltQ))
	})

	t.Run("strict", func(t *testing.T) {
		_, err := decodeSegmentation(data, nil, &Checker{Policy: PolicyStrict})
		assert.ErrorIs(t, err, ErrConformance)
	})

	t.Run("keep previous features", func(t *testing.T) {
		var prev SegmentationFeatures
		prev.FeatureEnabled[4][SegLvlAltQ] = true
		prev.FeatureData[4][SegLvlAltQ] = 12

		// enabled, update_map = 0, update_data = 0
		seg, err := decodeSegmentation([]byte{0x80}, &prev, nil)
		require.NoError(t, err)
		assert.False(t, seg.UpdateMap)
		assert.False(t, seg.UpdateData)
		assert.Equal(t, prev, seg.SegmentationFeatures)
		assert.Equal(t, uint8(4), seg.LastActiveSegID)
	})
}

func TestQuantizationDecode(t *testing.T) {
	w := bits.NewWriter()
	w.WriteBits(100, 8) // base_q_idx
	w.WriteBool(true)   // delta_coded
	w.WriteSu(-3, 7)    // delta_q_y_dc
	w.WriteBool(true)   // diff_uv_delta
	w.WriteBool(false)  // u dc
	w.WriteBool(true)
	w.WriteSu(4, 7) // u ac
	w.WriteBool(true)
	w.WriteSu(-5, 7)   // v dc
	w.WriteBool(false) // v ac
	w.WriteBool(true)  // using_qmatrix
	w.WriteBits(1, 4)
	w.WriteBits(2, 4)
	w.WriteBits(3, 4)
	w.ByteAlign()

	cc := &ColorConfig{BitDepth: 8, SubsamplingX: 1, SubsamplingY: 1, SeparateUvDeltaQ: true}
	var q QuantizationParams
	q.decode(bits.NewReader(w.Bytes()), cc)

	assert.Equal(t, QuantizationParams{
		BaseQIdx:     100,
		DeltaQYDc:    -3,
		DiffUvDelta:  true,
		DeltaQUAc:    4,
		DeltaQVDc:    -5,
		UsingQmatrix: true,
		QmY:          1,
		QmU:          2,
		QmV:          3,
	}, q)
}
