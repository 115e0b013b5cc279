// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package av1

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type obuCase struct {
	header  OBUHeader
	payload []byte
}

var obuCases = []obuCase{
	{OBUHeader{Type: OBUTemporalDelimiter}, nil},
	{OBUHeader{Type: OBUSequenceHeader}, []byte{0x00, 0x00, 0x00, 0x02}},
	{OBUHeader{Type: OBUFrame, ExtensionFlag: true, TemporalID: 2, SpatialID: 1}, bytes.Repeat([]byte{0x5A}, 200)},
	{OBUHeader{Type: OBUTileGroup}, bytes.Repeat([]byte{0x01}, 17000)},
	{OBUHeader{Type: OBUMetadata, ExtensionFlag: true, TemporalID: 7, SpatialID: 3}, []byte{0x01, 0x02}},
	{OBUHeader{Type: OBUPadding}, []byte{0, 0, 0}},
}

func TestOBUFraming(t *testing.T) {
	for _, annexB := range []bool{false, true} {
		name := "low overhead"
		if annexB {
			name = "annexb"
		}
		t.Run(name, func(t *testing.T) {
			var stream []byte
			for _, c := range obuCases {
				stream = append(stream, WriteOBU(c.header, c.payload, annexB)...)
			}

			obus, err := SplitOBUs(stream, annexB)
			require.NoError(t, err)
			require.Len(t, obus, len(obuCases))

			data := stream
			for i, o := range obus {
				want := obuCases[i].header
				want.HasSizeField = !annexB
				assert.Equal(t, want, o.Header)
				assert.Equal(t, len(obuCases[i].payload), o.PayloadSize)
				assert.True(t, bytes.Equal(obuCases[i].payload, o.Payload(data)))
				data = data[o.Size:]
			}
			assert.Empty(t, data)

			// 相同输入总是得到相同的切分
			again, err := SplitOBUs(stream, annexB)
			require.NoError(t, err)
			assert.Equal(t, obus, again)
		})
	}
}

func TestReadOBUAnnexBWithSizeField(t *testing.T) {
	h := OBUHeader{Type: OBUFrameHeader, HasSizeField: true}
	unit := WriteOBU(h, []byte{1, 2, 3}, true)

	o, err := ReadOBU(unit, true)
	require.NoError(t, err)
	assert.True(t, o.Header.HasSizeField)
	assert.Equal(t, 3, o.PayloadSize)
	assert.Equal(t, len(unit), o.Size)
	assert.Equal(t, []byte{1, 2, 3}, o.Payload(unit))
}

func TestReadOBUErrors(t *testing.T) {
	frame := WriteOBU(OBUHeader{Type: OBUFrame}, []byte{1, 2, 3, 4}, false)

	tests := []struct {
		name   string
		data   []byte
		annexB bool
		want   error
	}{
		{"empty", nil, false, ErrTruncated},
		{"payload cut", frame[:len(frame)-1], false, ErrTruncated},
		{"size missing", frame[:1], false, ErrTruncated},
		{"no size field", []byte{0x30, 0x00}, false, ErrUnsupported},
		{"reserved type", []byte{0x4A, 0x00}, false, ErrUnknownOBU},
		{"type zero", []byte{0x02, 0x00}, false, ErrUnknownOBU},
		{"reserved bit", []byte{0x33, 0x00}, false, ErrCorrupt},
		{"extension reserved bits", []byte{0x36, 0x21, 0x00}, false, ErrCorrupt},
		{"leb128 unterminated", []byte{0x32, 0x80, 0x80}, false, ErrTruncated},
		{"leb128 too long", append([]byte{0x32}, bytes.Repeat([]byte{0x80}, 9)...), false, ErrCorrupt},
		{"obu_length past end", []byte{0x05, 0x08, 0x00}, true, ErrTruncated},
		{"obu_length smaller than header", []byte{0x01, 0x0C, 0x00}, true, ErrCorrupt},
		{"obu_length zero", []byte{0x00, 0x30}, true, ErrCorrupt},
		{"obu_size exceeds obu_length", []byte{0x03, 0x32, 0x05, 0x00}, true, ErrCorrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadOBU(tt.data, tt.annexB)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestInOperatingPoint(t *testing.T) {
	tests := []struct {
		name string
		h    OBUHeader
		idc  uint16
		want bool
	}{
		{"idc zero", OBUHeader{Type: OBUFrame, ExtensionFlag: true, TemporalID: 3}, 0, true},
		{"no extension", OBUHeader{Type: OBUFrame}, 0x0101, true},
		{"in layer", OBUHeader{Type: OBUFrame, ExtensionFlag: true, TemporalID: 1, SpatialID: 0}, 0x0103, true},
		{"temporal out", OBUHeader{Type: OBUFrame, ExtensionFlag: true, TemporalID: 2, SpatialID: 0}, 0x0103, false},
		{"spatial out", OBUHeader{Type: OBUTileGroup, ExtensionFlag: true, TemporalID: 0, SpatialID: 1}, 0x0101, false},
		{"sequence header kept", OBUHeader{Type: OBUSequenceHeader, ExtensionFlag: true, TemporalID: 5}, 0x0101, true},
		{"padding kept", OBUHeader{Type: OBUPadding, ExtensionFlag: true, SpatialID: 3}, 0x0101, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.h.InOperatingPoint(tt.idc))
		})
	}
}
