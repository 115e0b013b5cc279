// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package av1_test

import (
	"testing"

	"github.com/cnotch/av1parser/av/codec/av1"
	"github.com/cnotch/av1parser/av/codec/av1/av1test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceHeaderDecode(t *testing.T) {
	seq := av1test.Sequence{
		Width:          1920,
		Height:         1080,
		OrderHintBits:  7,
		FrameIDNumbers: true,
		EnableCdef:     true,
		FilmGrain:      true,
	}

	var sh av1.SequenceHeader
	require.NoError(t, sh.Decode(seq.Payload()))

	assert.Equal(t, uint8(0), sh.SeqProfile)
	assert.False(t, sh.StillPicture)
	assert.Equal(t, 1, sh.OperatingPointsCnt)
	assert.Equal(t, uint8(8), sh.OperatingPoints[0].SeqLevelIdx)
	assert.Equal(t, uint8(10), sh.OperatingPoints[0].InitialDisplayDelay)
	assert.Equal(t, uint32(1920), sh.MaxFrameWidth)
	assert.Equal(t, uint32(1080), sh.MaxFrameHeight)
	assert.Equal(t, 11, sh.FrameWidthBits)
	assert.True(t, sh.FrameIDNumbersPresent)
	assert.Equal(t, av1test.DeltaFrameIDLength, sh.DeltaFrameIDLength)
	assert.Equal(t, av1test.FrameIDLength, sh.FrameIDLength)
	assert.True(t, sh.EnableOrderHint)
	assert.Equal(t, 7, sh.OrderHintBits)
	assert.Equal(t, uint8(0), sh.SeqForceScreenContentTools)
	assert.True(t, sh.EnableCdef)
	assert.False(t, sh.EnableRestoration)
	assert.True(t, sh.FilmGrainParamsPresent)
	assert.Equal(t, uint8(8), sh.ColorConfig.BitDepth)
	assert.Equal(t, 3, sh.ColorConfig.NumPlanes())
	assert.Equal(t, av1.ChromaFormat420, sh.ChromaFormat())
	assert.Equal(t, float64(0), sh.FrameRate())
}

func TestSequenceHeaderVariants(t *testing.T) {
	tests := []struct {
		name  string
		seq   av1test.Sequence
		check func(t *testing.T, sh *av1.SequenceHeader)
	}{
		{"profile 1", av1test.Sequence{Profile: 1, Width: 640, Height: 480}, func(t *testing.T, sh *av1.SequenceHeader) {
			assert.Equal(t, av1.ChromaFormat444, sh.ChromaFormat())
			assert.False(t, sh.EnableOrderHint)
			assert.Equal(t, 0, sh.OrderHintBits)
		}},
		{"profile 2", av1test.Sequence{Profile: 2, Width: 640, Height: 480}, func(t *testing.T, sh *av1.SequenceHeader) {
			assert.Equal(t, av1.ChromaFormat422, sh.ChromaFormat())
		}},
		{"reduced still", av1test.Sequence{Width: 320, Height: 240, ReducedStill: true}, func(t *testing.T, sh *av1.SequenceHeader) {
			assert.True(t, sh.StillPicture)
			assert.True(t, sh.ReducedStillPictureHeader)
			assert.Equal(t, 1, sh.OperatingPointsCnt)
			assert.Equal(t, uint8(av1.SelectScreenContent), sh.SeqForceScreenContentTools)
			assert.Equal(t, uint8(av1.SelectIntegerMv), sh.SeqForceIntegerMv)
		}},
		{"operating points", av1test.Sequence{Width: 640, Height: 480, OperatingPoints: []uint16{0x103, 0x101}}, func(t *testing.T, sh *av1.SequenceHeader) {
			assert.Equal(t, 2, sh.OperatingPointsCnt)
			assert.Equal(t, uint16(0x103), sh.OperatingPoints[0].Idc)
			assert.Equal(t, uint16(0x101), sh.OperatingPoints[1].Idc)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sh av1.SequenceHeader
			require.NoError(t, sh.Decode(tt.seq.Payload()))
			tt.check(t, &sh)
		})
	}
}

func TestSequenceHeaderErrors(t *testing.T) {
	good := (&av1test.Sequence{Width: 1280, Height: 720, OrderHintBits: 7}).Payload()

	badTrailing := append([]byte(nil), good...)
	badTrailing[len(badTrailing)-1] = 0

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, av1.ErrTruncated},
		{"cut", good[:3], av1.ErrTruncated},
		{"profile 3", []byte{0x60, 0, 0, 0}, av1.ErrUnsupported},
		{"reduced without still", []byte{0x08, 0, 0, 0}, av1.ErrCorrupt},
		{"reserved level", []byte{0x00, 0x00, 0x00, 0xC0}, av1.ErrCorrupt},
		{"trailing bits", badTrailing, av1.ErrCorrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sh av1.SequenceHeader
			assert.ErrorIs(t, sh.Decode(tt.data), tt.want)
		})
	}
}

func TestSequenceParser(t *testing.T) {
	a := (&av1test.Sequence{Width: 1280, Height: 720, OrderHintBits: 7}).Payload()
	b := (&av1test.Sequence{Width: 1920, Height: 1080, OrderHintBits: 7}).Payload()
	layers := (&av1test.Sequence{Width: 1280, Height: 720, OrderHintBits: 7,
		OperatingPoints: []uint16{0x0103, 0x0101}}).Payload()

	var p av1.SequenceParser
	assert.Nil(t, p.Active())

	first, changed, err := p.Parse(a)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Same(t, first, p.Active())

	again, changed, err := p.Parse(a)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Same(t, again, p.Active())
	assert.Equal(t, first.SeqID, again.SeqID)

	// 只改变 operating point 参数不算序列变化
	layered, changed, err := p.Parse(layers)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Same(t, layered, p.Active())
	assert.Equal(t, first.SeqID, layered.SeqID)
	assert.Equal(t, 2, layered.OperatingPointsCnt)
	assert.Equal(t, uint16(0x0103), layered.OperatingPoints[0].Idc)
	assert.False(t, layered.IsDifferentFrom(first))

	second, changed, err := p.Parse(b)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Greater(t, second.SeqID, first.SeqID)
	assert.True(t, second.IsDifferentFrom(first))
	assert.False(t, first.IsDifferentFrom(again))
	assert.True(t, first.IsDifferentFrom(nil))

	_, _, err = p.Parse(a[:2])
	assert.Error(t, err)
	assert.Same(t, second, p.Active())
	assert.Equal(t, first.SeqID+1, second.SeqID)

	p.Reset()
	assert.Nil(t, p.Active())
}
