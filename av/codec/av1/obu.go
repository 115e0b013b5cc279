// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package av1

import (
	"errors"
	"fmt"
	"math"

	"github.com/pion/rtp/codecs/av1/obu"
)

// OBU 类型
const (
	OBUSequenceHeader       = obu.OBUSequenceHeader
	OBUTemporalDelimiter    = obu.OBUTemporalDelimiter
	OBUFrameHeader          = obu.OBUFrameHeader
	OBUTileGroup            = obu.OBUTileGroup
	OBUMetadata             = obu.OBUMetadata
	OBUFrame                = obu.OBUFrame
	OBURedundantFrameHeader = obu.OBURedundantFrameHeader
	OBUTileList             = obu.OBUTileList
	OBUPadding              = obu.OBUPadding
)

const maxLeb128Bytes = 8

// OBUHeader obu_header()
type OBUHeader struct {
	Type          obu.Type
	ExtensionFlag bool
	HasSizeField  bool
	TemporalID    uint8
	SpatialID     uint8
}

// InOperatingPoint reports whether the OBU belongs to the operating point
// described by idc. Sequence headers, temporal delimiters and padding
// always belong to it.
func (h *OBUHeader) InOperatingPoint(idc uint16) bool {
	if idc == 0 || !h.ExtensionFlag {
		return true
	}
	switch h.Type {
	case OBUSequenceHeader, OBUTemporalDelimiter, OBUPadding:
		return true
	}
	inTemporalLayer := (idc >> h.TemporalID) & 1
	inSpatialLayer := (idc >> (h.SpatialID + 8)) & 1
	return inTemporalLayer != 0 && inSpatialLayer != 0
}

// OBU locates one open bitstream unit inside a buffer.
type OBU struct {
	Header      OBUHeader
	HeaderSize  int // bytes before the payload, size fields included
	PayloadSize int
	Size        int // total bytes consumed from the buffer
}

// Payload returns the payload bytes of the unit inside data.
func (o *OBU) Payload(data []byte) []byte {
	return data[o.HeaderSize : o.HeaderSize+o.PayloadSize]
}

// IsValidOBUType reports whether t is one of the defined OBU types.
func IsValidOBUType(t obu.Type) bool {
	return (t >= OBUSequenceHeader && t <= OBUTileList) || t == OBUPadding
}

func readSize(data []byte) (uint32, int, error) {
	buf := data
	if len(buf) > maxLeb128Bytes {
		buf = buf[:maxLeb128Bytes]
	}
	v, n, err := obu.ReadLeb128(buf)
	if err != nil {
		if len(buf) < maxLeb128Bytes {
			return 0, 0, fmt.Errorf("%w: leb128", ErrTruncated)
		}
		return 0, 0, fmt.Errorf("%w: leb128 longer than %d bytes", ErrCorrupt, maxLeb128Bytes)
	}
	if uint64(v) > math.MaxUint32 {
		return 0, 0, fmt.Errorf("%w: leb128 value overflow", ErrCorrupt)
	}
	return uint32(v), int(n), nil
}

// ReadOBU parses the header and size of the OBU at the start of data.
// With annexB the unit is prefixed by its obu_length, otherwise the
// obu_size field is mandatory.
func ReadOBU(data []byte, annexB bool) (o OBU, err error) {
	if len(data) == 0 {
		return o, fmt.Errorf("%w: empty obu", ErrTruncated)
	}

	pos := 0
	var obuLength uint32
	if annexB {
		var n int
		if obuLength, n, err = readSize(data); err != nil {
			return
		}
		pos = n
	}

	h, err := obu.ParseOBUHeader(data[pos:])
	if err != nil {
		if errors.Is(err, obu.ErrShortHeader) {
			return o, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		return o, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if !IsValidOBUType(h.Type) {
		return o, fmt.Errorf("%w: %d", ErrUnknownOBU, h.Type)
	}
	// 保留位必须为 0
	if h.Reserved1Bit {
		return o, fmt.Errorf("%w: obu_reserved_1bit is set", ErrCorrupt)
	}
	if h.ExtensionHeader != nil && h.ExtensionHeader.Reserved3Bits != 0 {
		return o, fmt.Errorf("%w: extension_header_reserved_3bits is %d", ErrCorrupt, h.ExtensionHeader.Reserved3Bits)
	}

	o.Header = OBUHeader{
		Type:         h.Type,
		HasSizeField: h.HasSizeField,
	}
	if h.ExtensionHeader != nil {
		o.Header.ExtensionFlag = true
		o.Header.TemporalID = h.ExtensionHeader.TemporalID
		o.Header.SpatialID = h.ExtensionHeader.SpatialID
	}

	hdrLen := h.Size()
	o.HeaderSize = pos + hdrLen
	if annexB {
		if int(obuLength) < hdrLen {
			return o, fmt.Errorf("%w: obu_length %d smaller than header", ErrCorrupt, obuLength)
		}
		o.PayloadSize = int(obuLength) - hdrLen
		o.Size = pos + int(obuLength)
		if h.HasSizeField {
			sz, n, err := readSize(data[o.HeaderSize:])
			if err != nil {
				return o, err
			}
			o.HeaderSize += n
			o.PayloadSize = int(sz)
			if o.HeaderSize+o.PayloadSize > o.Size {
				return o, fmt.Errorf("%w: obu_size exceeds obu_length", ErrCorrupt)
			}
		}
	} else {
		if !h.HasSizeField {
			return o, fmt.Errorf("%w: obu_has_size_field is required", ErrUnsupported)
		}
		sz, n, err := readSize(data[o.HeaderSize:])
		if err != nil {
			return o, err
		}
		o.HeaderSize += n
		o.PayloadSize = int(sz)
		o.Size = o.HeaderSize + o.PayloadSize
	}

	if o.Size > len(data) {
		return o, fmt.Errorf("%w: obu needs %d bytes, %d left", ErrTruncated, o.Size, len(data))
	}
	return o, nil
}

// SplitOBUs returns every OBU in data, which must hold whole units only.
func SplitOBUs(data []byte, annexB bool) ([]OBU, error) {
	var obus []OBU
	for len(data) > 0 {
		o, err := ReadOBU(data, annexB)
		if err != nil {
			return obus, err
		}
		obus = append(obus, o)
		data = data[o.Size:]
	}
	return obus, nil
}

// WriteOBU serializes one OBU. In low overhead format the size field is
// always written.
func WriteOBU(h OBUHeader, payload []byte, annexB bool) []byte {
	ph := obu.Header{
		Type:         h.Type,
		HasSizeField: h.HasSizeField || !annexB,
	}
	if h.ExtensionFlag {
		ph.ExtensionHeader = &obu.ExtensionHeader{
			TemporalID: h.TemporalID,
			SpatialID:  h.SpatialID,
		}
	}

	unit := ph.Marshal()
	if ph.HasSizeField {
		unit = append(unit, obu.WriteToLeb128(uint(len(payload)))...)
	}
	unit = append(unit, payload...)

	if !annexB {
		return unit
	}
	return append(obu.WriteToLeb128(uint(len(unit))), unit...)
}
