// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package av1_test

import (
	"testing"

	"github.com/cnotch/av1parser/av/codec/av1"
	"github.com/cnotch/av1parser/av/codec/av1/av1test"
	"github.com/cnotch/av1parser/utils/bits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type headerParser struct {
	seq  *av1test.Sequence
	sh   *av1.SequenceHeader
	refs av1.RefState
	fh   av1.FrameHeader
	chk  *av1.Checker
}

func newHeaderParser(t *testing.T, seq av1test.Sequence, policy av1.Policy) *headerParser {
	p := &headerParser{
		seq: &seq,
		sh:  new(av1.SequenceHeader),
		chk: &av1.Checker{Policy: policy},
	}
	require.NoError(t, p.sh.Decode(seq.Payload()))
	return p
}

// parse decodes the frame header and runs the reference update on success.
func (p *headerParser) parse(f av1test.Frame) error {
	r := bits.NewReader(f.HeaderPayload(p.seq))
	ctx := av1.FrameContext{Sequence: p.sh, Refs: &p.refs, Checker: p.chk}
	if err := p.fh.Decode(r, &ctx); err != nil {
		return err
	}
	p.refs.Update(&p.fh, p.sh)
	return nil
}

var (
	seqVGA = av1test.Sequence{Width: 640, Height: 480, OrderHintBits: 7, EnableCdef: true}
	key    = av1test.Frame{Type: av1.KeyFrame, Show: true, BaseQIdx: 60}
)

func interFrame(hint uint8, refresh uint8, refs ...uint8) av1test.Frame {
	f := av1test.Frame{Type: av1.InterFrame, Show: true, OrderHint: hint, Refresh: refresh, BaseQIdx: 60}
	copy(f.RefFrameIdx[:], refs)
	return f
}

func TestFrameHeaderKeyFrame(t *testing.T) {
	p := newHeaderParser(t, seqVGA, av1.PolicyStrict)
	require.NoError(t, p.parse(key))

	fh := &p.fh
	assert.Equal(t, av1.KeyFrame, fh.FrameType)
	assert.True(t, fh.FrameIsIntra)
	assert.True(t, fh.ShowFrame)
	assert.False(t, fh.ShowableFrame)
	assert.True(t, fh.ErrorResilientMode)
	assert.Equal(t, uint8(av1.PrimaryRefNone), fh.PrimaryRefFrame)
	assert.Equal(t, uint8(0xFF), fh.RefreshFrameFlags)
	assert.True(t, fh.IsReferenced())
	assert.Equal(t, uint32(640), fh.Size.FrameWidth)
	assert.Equal(t, uint32(480), fh.Size.FrameHeight)
	assert.Equal(t, uint32(640), fh.Size.UpscaledWidth)
	assert.Equal(t, uint32(160), fh.Size.MiCols)
	assert.Equal(t, uint32(120), fh.Size.MiRows)
	assert.Equal(t, 1, fh.TileInfo.NumTiles())
	assert.Equal(t, uint8(60), fh.Quantization.BaseQIdx)
	assert.False(t, fh.Lossless.CodedLossless)
	assert.Equal(t, uint8(av1.TxModeLargest), fh.TxMode)
	assert.Equal(t, av1.DefaultGlobalMotion(), fh.GlobalMotion)

	for i, slot := range p.refs.Frames {
		assert.True(t, slot.Populated, "slot %d", i)
		assert.True(t, slot.Valid, "slot %d", i)
		assert.Equal(t, av1.KeyFrame, slot.FrameType)
	}
}

func TestFrameHeaderLossless(t *testing.T) {
	p := newHeaderParser(t, seqVGA, av1.PolicyStrict)
	f := key
	f.BaseQIdx = 0
	require.NoError(t, p.parse(f))
	assert.True(t, p.fh.Lossless.CodedLossless)
	assert.True(t, p.fh.Lossless.AllLossless)
	assert.Equal(t, uint8(av1.TxModeOnly4x4), p.fh.TxMode)
}

func TestFrameHeaderInterFrame(t *testing.T) {
	p := newHeaderParser(t, seqVGA, av1.PolicyStrict)
	require.NoError(t, p.parse(key))
	require.NoError(t, p.parse(interFrame(1, 0x02, 0, 0, 0, 0, 0, 0, 0)))

	fh := &p.fh
	assert.Equal(t, av1.InterFrame, fh.FrameType)
	assert.False(t, fh.FrameIsIntra)
	assert.False(t, fh.ErrorResilientMode)
	assert.True(t, fh.ShowableFrame)
	assert.Equal(t, uint8(1), fh.OrderHint)
	assert.Equal(t, uint8(0), fh.PrimaryRefFrame)
	assert.Equal(t, uint8(av1.FilterSwitchable), fh.InterpolationFilter)
	assert.Equal(t, -1, fh.RefFrameSignBias[av1.LastFrame])
	assert.Equal(t, uint32(640), fh.Size.FrameWidth)

	assert.Equal(t, uint8(1), p.refs.Frames[1].OrderHint)
	assert.Equal(t, av1.InterFrame, p.refs.Frames[1].FrameType)
	assert.Equal(t, uint8(0), p.refs.Frames[2].OrderHint)
}

func TestFrameHeaderSizeOverride(t *testing.T) {
	p := newHeaderParser(t, seqVGA, av1.PolicyStrict)
	require.NoError(t, p.parse(key))

	f := interFrame(1, 0x01)
	f.SizeOverride = true
	f.Width, f.Height = 320, 240
	require.NoError(t, p.parse(f))
	assert.True(t, p.fh.Size.FrameSizeOverride)
	assert.Equal(t, uint32(320), p.fh.Size.FrameWidth)
	assert.Equal(t, uint32(240), p.fh.Size.RenderHeight)
	assert.Equal(t, uint32(80), p.fh.Size.MiCols)
}

func TestFrameHeaderShortSignaling(t *testing.T) {
	p := newHeaderParser(t, seqVGA, av1.PolicyStrict)
	require.NoError(t, p.parse(key))
	require.NoError(t, p.parse(interFrame(8, 0x02)))
	hidden := interFrame(4, 0x04)
	hidden.Show, hidden.Showable = false, true
	require.NoError(t, p.parse(hidden))

	hints := p.refs.OrderHints()
	assert.Equal(t, [av1.NumRefFrames]int{0, 8, 4, 0, 0, 0, 0, 0}, hints)

	f := interFrame(5, 0)
	f.ShortSignaling = true
	f.LastIdx, f.GoldIdx = 2, 0
	require.NoError(t, p.parse(f))

	want := av1.SetFrameRefs(2, 0, 5, hints, 7)
	for i, idx := range want {
		assert.Equal(t, uint8(idx), p.fh.RefFrameIdx[i], "ref %d", i)
	}
	assert.Equal(t, uint8(1), p.fh.RefFrameIdx[av1.AltrefFrame-av1.LastFrame])
	assert.Equal(t, 3, p.fh.RefFrameSignBias[av1.AltrefFrame])
	assert.Equal(t, -1, p.fh.RefFrameSignBias[av1.LastFrame])
	assert.False(t, p.fh.IsReferenced())
}

func TestFrameHeaderSkipMode(t *testing.T) {
	p := newHeaderParser(t, seqVGA, av1.PolicyStrict)
	require.NoError(t, p.parse(key))
	require.NoError(t, p.parse(interFrame(8, 0x02)))

	f := interFrame(4, 0, 0, 1)
	f.ReferenceSelect = true
	f.SkipModeAllowed = true
	f.SkipModePresent = true
	require.NoError(t, p.parse(f))
	assert.True(t, p.fh.ReferenceSelect)
	assert.True(t, p.fh.SkipModePresent)
	assert.Equal(t, [2]uint8{av1.LastFrame, av1.Last2Frame}, p.fh.SkipModeFrame)
}

func TestFrameHeaderRefUnavailable(t *testing.T) {
	p := newHeaderParser(t, seqVGA, av1.PolicyWarn)
	err := p.parse(interFrame(1, 0x01))
	assert.ErrorIs(t, err, av1.ErrRefUnavailable)

	var fh av1.FrameHeader
	err = fh.Decode(bits.NewReader([]byte{0}), &av1.FrameContext{Refs: &p.refs})
	assert.ErrorIs(t, err, av1.ErrRefUnavailable)
}

func TestFrameHeaderTruncated(t *testing.T) {
	p := newHeaderParser(t, seqVGA, av1.PolicyWarn)
	payload := key.HeaderPayload(p.seq)

	ctx := av1.FrameContext{Sequence: p.sh, Refs: &p.refs}
	err := p.fh.Decode(bits.NewReader(payload[:2]), &ctx)
	assert.ErrorIs(t, err, av1.ErrTruncated)
}

func TestFrameHeaderShowExisting(t *testing.T) {
	p := newHeaderParser(t, seqVGA, av1.PolicyStrict)

	t.Run("empty slot", func(t *testing.T) {
		err := p.parse(av1test.Frame{ShowExisting: true, FrameToShow: 3})
		assert.ErrorIs(t, err, av1.ErrRefUnavailable)
	})

	require.NoError(t, p.parse(key))
	hidden := interFrame(3, 0x04)
	hidden.Show, hidden.Showable = false, true
	require.NoError(t, p.parse(hidden))

	t.Run("inter frame", func(t *testing.T) {
		before := p.refs
		require.NoError(t, p.parse(av1test.Frame{ShowExisting: true, FrameToShow: 2}))
		assert.True(t, p.fh.ShowExistingFrame)
		assert.True(t, p.fh.ShowFrame)
		assert.Equal(t, uint8(2), p.fh.FrameToShowMapIdx)
		assert.Equal(t, av1.InterFrame, p.fh.FrameType)
		assert.Equal(t, uint8(0), p.fh.RefreshFrameFlags)
		assert.Equal(t, before, p.refs)
	})

	t.Run("not showable", func(t *testing.T) {
		err := p.parse(av1test.Frame{ShowExisting: true, FrameToShow: 0})
		assert.ErrorIs(t, err, av1.ErrConformance)
	})
}

func TestFrameHeaderShowExistingKeyFrame(t *testing.T) {
	p := newHeaderParser(t, seqVGA, av1.PolicyStrict)
	require.NoError(t, p.parse(key))

	hiddenKey := av1test.Frame{Type: av1.KeyFrame, Showable: true, OrderHint: 9, Refresh: 0x01, BaseQIdx: 60}
	require.NoError(t, p.parse(hiddenKey))
	assert.False(t, p.fh.ShowFrame)
	assert.True(t, p.fh.ShowableFrame)
	assert.Equal(t, uint8(0), p.refs.Frames[1].OrderHint)

	require.NoError(t, p.parse(av1test.Frame{ShowExisting: true, FrameToShow: 0}))
	assert.Equal(t, av1.KeyFrame, p.fh.FrameType)
	assert.True(t, p.fh.FrameIsIntra)
	assert.False(t, p.fh.ShowableFrame)
	assert.Equal(t, uint8(0xFF), p.fh.RefreshFrameFlags)
	assert.Equal(t, uint8(9), p.fh.OrderHint)
	assert.Equal(t, uint32(640), p.fh.Size.FrameWidth)

	// 所有槽位都被重新显示的关键帧刷新，且不可再次显示
	for i, slot := range p.refs.Frames {
		assert.Equal(t, uint8(9), slot.OrderHint, "slot %d", i)
		assert.False(t, slot.Showable, "slot %d", i)
	}
}

func TestFrameHeaderFrameIDs(t *testing.T) {
	seq := seqVGA
	seq.FrameIDNumbers = true

	keyWithID := key
	keyWithID.FrameID = 10

	t.Run("matching", func(t *testing.T) {
		p := newHeaderParser(t, seq, av1.PolicyStrict)
		require.NoError(t, p.parse(keyWithID))
		assert.Equal(t, uint32(10), p.fh.CurrentFrameID)

		f := interFrame(1, 0x01)
		f.FrameID = 11
		for i := range f.DeltaFrameIDs {
			f.DeltaFrameIDs[i] = 1
		}
		require.NoError(t, p.parse(f))
		assert.Equal(t, uint32(11), p.fh.CurrentFrameID)
		assert.Equal(t, uint32(10), p.fh.ExpectedFrameID[0])
		assert.Equal(t, uint32(11), p.refs.Frames[0].FrameID)
	})

	t.Run("expected id mismatch", func(t *testing.T) {
		p := newHeaderParser(t, seq, av1.PolicyStrict)
		require.NoError(t, p.parse(keyWithID))

		f := interFrame(1, 0x01)
		f.FrameID = 11
		for i := range f.DeltaFrameIDs {
			f.DeltaFrameIDs[i] = 2
		}
		assert.ErrorIs(t, p.parse(f), av1.ErrConformance)
	})

	t.Run("display id mismatch", func(t *testing.T) {
		p := newHeaderParser(t, seq, av1.PolicyStrict)
		require.NoError(t, p.parse(keyWithID))
		hidden := interFrame(1, 0x02)
		hidden.Show, hidden.Showable = false, true
		hidden.FrameID = 11
		for i := range hidden.DeltaFrameIDs {
			hidden.DeltaFrameIDs[i] = 1
		}
		require.NoError(t, p.parse(hidden))

		require.NoError(t, p.parse(av1test.Frame{ShowExisting: true, FrameToShow: 1, DisplayFrameID: 11}))
		err := p.parse(av1test.Frame{ShowExisting: true, FrameToShow: 1, DisplayFrameID: 12})
		assert.ErrorIs(t, err, av1.ErrConformance)
	})

	t.Run("warn keeps going", func(t *testing.T) {
		p := newHeaderParser(t, seq, av1.PolicyWarn)
		require.NoError(t, p.parse(keyWithID))
		f := interFrame(1, 0x01)
		f.FrameID = 11
		for i := range f.DeltaFrameIDs {
			f.DeltaFrameIDs[i] = 2
		}
		require.NoError(t, p.parse(f))
		assert.Equal(t, uint32(9), p.fh.ExpectedFrameID[0])
	})
}

func TestFrameHeaderErrorResilientOrderHints(t *testing.T) {
	er := interFrame(2, 0x01)
	er.ErrorResilient = true
	er.RefOrderHints[7] = 3

	// 与槽位不一致的 ref_order_hint 只是让槽位失效，两种策略都接受
	for _, policy := range []av1.Policy{av1.PolicyWarn, av1.PolicyStrict} {
		t.Run(policy.String(), func(t *testing.T) {
			p := newHeaderParser(t, seqVGA, policy)
			require.NoError(t, p.parse(key))
			require.NoError(t, p.parse(er))
			assert.True(t, p.fh.ErrorResilientMode)
			assert.Equal(t, uint8(av1.PrimaryRefNone), p.fh.PrimaryRefFrame)
			assert.Equal(t, uint8(3), p.fh.RefOrderHint[7])
			assert.False(t, p.refs.Frames[7].Valid)
			assert.Equal(t, uint8(3), p.refs.Frames[7].OrderHint)
			assert.True(t, p.refs.Frames[6].Valid)
		})
	}

	t.Run("invalid slot referenced", func(t *testing.T) {
		p := newHeaderParser(t, seqVGA, av1.PolicyWarn)
		require.NoError(t, p.parse(key))
		require.NoError(t, p.parse(er))
		f := interFrame(3, 0x01, 7)
		assert.ErrorIs(t, p.parse(f), av1.ErrRefUnavailable)
	})
}

func TestFrameHeaderFilmGrain(t *testing.T) {
	seq := seqVGA
	seq.FilmGrain = true

	grainKey := key
	grainKey.FilmGrain = av1test.FilmGrain{Apply: true, Seed: 100, ScalingY: 40}

	t.Run("params", func(t *testing.T) {
		p := newHeaderParser(t, seq, av1.PolicyStrict)
		require.NoError(t, p.parse(grainKey))
		fg := p.fh.FilmGrain
		assert.True(t, fg.ApplyGrain)
		assert.True(t, fg.UpdateGrain)
		assert.Equal(t, uint16(100), fg.GrainSeed)
		assert.Equal(t, uint8(1), fg.NumYPoints)
		assert.Equal(t, uint8(40), fg.PointYScaling[0])
		assert.Equal(t, fg, p.refs.Frames[4].FilmGrain)
	})

	t.Run("load from reference", func(t *testing.T) {
		p := newHeaderParser(t, seq, av1.PolicyStrict)
		require.NoError(t, p.parse(grainKey))

		f := interFrame(1, 0x01)
		f.FilmGrain = av1test.FilmGrain{Apply: true, Seed: 7, RefIdx: 0}
		require.NoError(t, p.parse(f))
		fg := p.fh.FilmGrain
		assert.False(t, fg.UpdateGrain)
		assert.Equal(t, uint16(7), fg.GrainSeed)
		assert.Equal(t, uint8(40), fg.PointYScaling[0])
		assert.Equal(t, uint8(0), fg.FilmGrainParamsRefIdx)
	})

	t.Run("reference not used by frame", func(t *testing.T) {
		f := interFrame(1, 0x01)
		f.FilmGrain = av1test.FilmGrain{Apply: true, Seed: 7, RefIdx: 5}

		strict := newHeaderParser(t, seq, av1.PolicyStrict)
		require.NoError(t, strict.parse(grainKey))
		assert.ErrorIs(t, strict.parse(f), av1.ErrConformance)

		warn := newHeaderParser(t, seq, av1.PolicyWarn)
		require.NoError(t, warn.parse(grainKey))
		require.NoError(t, warn.parse(f))
		assert.Equal(t, uint8(40), warn.fh.FilmGrain.PointYScaling[0])
	})

	t.Run("hidden frame carries none", func(t *testing.T) {
		p := newHeaderParser(t, seq, av1.PolicyStrict)
		require.NoError(t, p.parse(grainKey))
		f := interFrame(1, 0x01)
		f.Show = false
		require.NoError(t, p.parse(f))
		assert.Equal(t, av1.FilmGrainParams{}, p.fh.FilmGrain)
	})
}

func TestFrameHeaderReducedStill(t *testing.T) {
	p := newHeaderParser(t, av1test.Sequence{Width: 320, Height: 240, ReducedStill: true}, av1.PolicyStrict)
	require.NoError(t, p.parse(av1test.Frame{BaseQIdx: 30}))
	assert.Equal(t, av1.KeyFrame, p.fh.FrameType)
	assert.True(t, p.fh.ShowFrame)
	assert.True(t, p.fh.DisableFrameEndUpdateCdf)
	assert.Equal(t, uint32(320), p.fh.Size.FrameWidth)
}

func TestFrameHeaderReuse(t *testing.T) {
	p := newHeaderParser(t, seqVGA, av1.PolicyStrict)
	require.NoError(t, p.parse(key))
	f := interFrame(1, 0x01)
	f.ReferenceSelect = true
	require.NoError(t, p.parse(f))
	require.True(t, p.fh.ReferenceSelect)

	// 上一帧的字段不会残留
	require.NoError(t, p.parse(key))
	assert.False(t, p.fh.ReferenceSelect)
	assert.Equal(t, [av1.RefsPerFrame]uint8{}, p.fh.RefFrameIdx)
}
