// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package annexb

import (
	"bytes"
	"io"
	"testing"

	"github.com/cnotch/av1parser/av/codec/av1"
	"github.com/cnotch/av1parser/av/codec/av1/av1test"
	"github.com/cnotch/av1parser/decoder"
	"github.com/cnotch/av1parser/stats"
	"github.com/pion/rtp/codecs/av1/obu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func annexBOBU(typ obu.Type, payload []byte) []byte {
	return av1.WriteOBU(av1.OBUHeader{Type: typ}, payload, true)
}

func TestReadPacket(t *testing.T) {
	seq := av1test.Sequence{Width: 352, Height: 288, OrderHintBits: 7}
	key := av1test.Frame{Type: av1.KeyFrame, Show: true, BaseQIdx: 30}
	inter := av1test.Frame{Type: av1.InterFrame, Show: true, OrderHint: 1, Refresh: 0x01, BaseQIdx: 30}

	td := annexBOBU(av1.OBUTemporalDelimiter, nil)
	tu0 := [][]byte{
		av1test.Join(td, annexBOBU(av1.OBUSequenceHeader, seq.Payload()), annexBOBU(av1.OBUFrame, key.FramePayload(&seq))),
	}
	tu1 := [][]byte{
		av1test.Join(td, annexBOBU(av1.OBUFrame, inter.FramePayload(&seq))),
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, tu0...))
	require.NoError(t, Write(&buf, tu1...))

	var decoded int
	dec := decoder.New(decoder.ClientFunc{
		DecodePictureFunc: func(pd *decoder.PictureData) bool {
			decoded++
			return true
		},
	}, decoder.AnnexB(true), decoder.Stats(stats.NewDecodeStats(nil)))

	r := NewReader(&buf)
	var packets int
	for {
		pkt, err := r.ReadPacket()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.True(t, pkt.Complete)
		packets++
		require.NoError(t, dec.WritePacket(pkt))
	}

	assert.Equal(t, 2, packets)
	assert.Equal(t, 2, decoded)
	assert.Equal(t, int64(0), dec.Stats().GetSample().Errors)
}

func TestOBUs(t *testing.T) {
	tests := []struct {
		name string
		tu   []byte
		want []byte
		err  bool
	}{
		{"empty", nil, []byte{}, false},
		{"two frame units", []byte{2, 0xA, 0xB, 1, 0xC}, []byte{0xA, 0xB, 0xC}, false},
		{"frame unit too long", []byte{3, 0xA}, nil, true},
		{"bad leb128", []byte{0x80}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := OBUs(tt.tu)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadTemporalUnitTruncated(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{5, 1, 2}))
	_, err := r.ReadTemporalUnit()
	assert.Equal(t, io.ErrUnexpectedEOF, err)

	r = NewReader(bytes.NewReader([]byte{0x80, 0x80}))
	_, err = r.ReadTemporalUnit()
	assert.Equal(t, io.ErrUnexpectedEOF, err)

	r = NewReader(bytes.NewReader(nil))
	_, err = r.ReadTemporalUnit()
	assert.Equal(t, io.EOF, err)
}
