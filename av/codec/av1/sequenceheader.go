// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package av1

import (
	"fmt"

	"github.com/cnotch/av1parser/utils/bits"
)

// TimingInfo timing_info()
type TimingInfo struct {
	NumUnitsInDisplayTick uint32
	TimeScale             uint32
	EqualPictureInterval  bool
	NumTicksPerPicture    uint32 // num_ticks_per_picture_minus_1 + 1
}

// DecoderModelInfo decoder_model_info()
type DecoderModelInfo struct {
	BufferDelayLength           uint8 // buffer_delay_length_minus_1 + 1
	NumUnitsInDecodingTick      uint32
	BufferRemovalTimeLength     uint8 // buffer_removal_time_length_minus_1 + 1
	FramePresentationTimeLength uint8 // frame_presentation_time_length_minus_1 + 1
}

// OperatingPoint 操作点参数
type OperatingPoint struct {
	Idc                        uint16 // operating_point_idc，低 8 位时域层，高 4 位空域层
	SeqLevelIdx                uint8
	SeqTier                    uint8
	DecoderModelPresent        bool
	DecoderBufferDelay         uint32
	EncoderBufferDelay         uint32
	LowDelayModeFlag           bool
	InitialDisplayDelayPresent bool
	InitialDisplayDelay        uint8 // initial_display_delay_minus_1 + 1, 10 if absent
}

// ColorConfig color_config()
type ColorConfig struct {
	BitDepth                uint8
	MonoChrome              bool
	ColorDescriptionPresent bool
	ColorPrimaries          uint8
	TransferCharacteristics uint8
	MatrixCoefficients      uint8
	ColorRange              bool
	SubsamplingX            uint8
	SubsamplingY            uint8
	ChromaSamplePosition    uint8
	SeparateUvDeltaQ        bool
}

// NumPlanes returns 1 for monochrome streams, 3 otherwise.
func (c *ColorConfig) NumPlanes() int {
	if c.MonoChrome {
		return 1
	}
	return MaxPlanes
}

// SequenceHeader sequence_header_obu()
type SequenceHeader struct {
	// SeqID 由 SequenceParser 分配的单调递增序号，不参与比较
	SeqID uint32

	SeqProfile                uint8
	StillPicture              bool
	ReducedStillPictureHeader bool

	TimingInfoPresent          bool
	TimingInfo                 TimingInfo
	DecoderModelInfoPresent    bool
	DecoderModelInfo           DecoderModelInfo
	InitialDisplayDelayPresent bool
	OperatingPointsCnt         int // operating_points_cnt_minus_1 + 1
	OperatingPoints            [MaxOperatingPoints]OperatingPoint

	FrameWidthBits  int // frame_width_bits_minus_1 + 1
	FrameHeightBits int // frame_height_bits_minus_1 + 1
	MaxFrameWidth   uint32
	MaxFrameHeight  uint32

	// frame_id_numbers_present_flag
	// 为 1 时帧头携带 frame id，用于检测参考帧是否有效
	FrameIDNumbersPresent bool
	DeltaFrameIDLength    int // delta_frame_id_length_minus_2 + 2
	FrameIDLength         int // additional_frame_id_length_minus_1 + DeltaFrameIDLength + 1

	Use128x128Superblock     bool
	EnableFilterIntra        bool
	EnableIntraEdgeFilter    bool
	EnableInterintraCompound bool
	EnableMaskedCompound     bool
	EnableWarpedMotion       bool
	EnableDualFilter         bool
	EnableOrderHint          bool
	EnableJntComp            bool
	EnableRefFrameMvs        bool

	SeqForceScreenContentTools uint8 // SelectScreenContent when chosen per frame
	SeqForceIntegerMv          uint8 // SelectIntegerMv when chosen per frame
	OrderHintBits              int

	EnableSuperres    bool
	EnableCdef        bool
	EnableRestoration bool

	ColorConfig            ColorConfig
	FilmGrainParamsPresent bool
}

// Decode 从 OBU 载荷中解码序列头
func (sh *SequenceHeader) Decode(data []byte) (err error) {
	defer catch("sequence header", &err)

	if len(data) == 0 {
		return fmt.Errorf("sequence header: %w", ErrTruncated)
	}

	r := bits.NewReader(data)
	sh.decode(r)
	return
}

func (sh *SequenceHeader) decode(r *bits.Reader) {
	*sh = SequenceHeader{SeqID: sh.SeqID}

	sh.SeqProfile = r.ReadUint8(3)
	if sh.SeqProfile > 2 {
		throwf(ErrUnsupported, "seq_profile %d", sh.SeqProfile)
	}

	sh.StillPicture = r.ReadBool()
	sh.ReducedStillPictureHeader = r.ReadBool()
	if !sh.StillPicture && sh.ReducedStillPictureHeader {
		throwf(ErrCorrupt, "reduced_still_picture_header without still_picture")
	}

	if sh.ReducedStillPictureHeader {
		sh.OperatingPointsCnt = 1
		op := &sh.OperatingPoints[0]
		op.SeqLevelIdx = r.ReadUint8(5)
		if op.SeqLevelIdx > 7 {
			throwf(ErrUnsupported, "still picture seq_level_idx %d", op.SeqLevelIdx)
		}
		op.InitialDisplayDelay = 10
	} else {
		sh.TimingInfoPresent = r.ReadBool()
		if sh.TimingInfoPresent {
			sh.TimingInfo.decode(r)
			sh.DecoderModelInfoPresent = r.ReadBool()
			if sh.DecoderModelInfoPresent {
				sh.DecoderModelInfo.decode(r)
			}
		}

		sh.InitialDisplayDelayPresent = r.ReadBool()
		sh.OperatingPointsCnt = r.ReadInt(5) + 1
		for i := 0; i < sh.OperatingPointsCnt; i++ {
			sh.decodeOperatingPoint(r, &sh.OperatingPoints[i])
		}
	}

	sh.FrameWidthBits = r.ReadInt(4) + 1
	sh.FrameHeightBits = r.ReadInt(4) + 1
	sh.MaxFrameWidth = r.ReadUint32(sh.FrameWidthBits) + 1
	sh.MaxFrameHeight = r.ReadUint32(sh.FrameHeightBits) + 1

	if !sh.ReducedStillPictureHeader {
		sh.FrameIDNumbersPresent = r.ReadBool()
	}
	if sh.FrameIDNumbersPresent {
		sh.DeltaFrameIDLength = r.ReadInt(4) + 2
		sh.FrameIDLength = r.ReadInt(3) + sh.DeltaFrameIDLength + 1
		if sh.FrameIDLength > 16 {
			throwf(ErrCorrupt, "frame id length %d", sh.FrameIDLength)
		}
	}

	sh.Use128x128Superblock = r.ReadBool()
	sh.EnableFilterIntra = r.ReadBool()
	sh.EnableIntraEdgeFilter = r.ReadBool()

	if sh.ReducedStillPictureHeader {
		sh.SeqForceScreenContentTools = SelectScreenContent
		sh.SeqForceIntegerMv = SelectIntegerMv
	} else {
		sh.EnableInterintraCompound = r.ReadBool()
		sh.EnableMaskedCompound = r.ReadBool()
		sh.EnableWarpedMotion = r.ReadBool()
		sh.EnableDualFilter = r.ReadBool()
		sh.EnableOrderHint = r.ReadBool()
		if sh.EnableOrderHint {
			sh.EnableJntComp = r.ReadBool()
			sh.EnableRefFrameMvs = r.ReadBool()
		}

		// seq_choose_screen_content_tools
		if r.ReadBool() {
			sh.SeqForceScreenContentTools = SelectScreenContent
		} else {
			sh.SeqForceScreenContentTools = r.ReadBit()
		}

		if sh.SeqForceScreenContentTools > 0 {
			// seq_choose_integer_mv
			if r.ReadBool() {
				sh.SeqForceIntegerMv = SelectIntegerMv
			} else {
				sh.SeqForceIntegerMv = r.ReadBit()
			}
		} else {
			sh.SeqForceIntegerMv = SelectIntegerMv
		}

		if sh.EnableOrderHint {
			sh.OrderHintBits = r.ReadInt(3) + 1
		}
	}

	sh.EnableSuperres = r.ReadBool()
	sh.EnableCdef = r.ReadBool()
	sh.EnableRestoration = r.ReadBool()
	sh.ColorConfig.decode(r, sh.SeqProfile)
	sh.FilmGrainParamsPresent = r.ReadBool()

	// trailing_bits
	if r.BitsLeft() > 0 && r.ReadBit() != 1 {
		throwf(ErrCorrupt, "sequence header trailing bits")
	}
}

func (ti *TimingInfo) decode(r *bits.Reader) {
	ti.NumUnitsInDisplayTick = r.ReadUint32(32)
	ti.TimeScale = r.ReadUint32(32)
	ti.EqualPictureInterval = r.ReadBool()
	if ti.EqualPictureInterval {
		ti.NumTicksPerPicture = r.ReadUvlc() + 1
	}
}

func (dm *DecoderModelInfo) decode(r *bits.Reader) {
	dm.BufferDelayLength = r.ReadUint8(5) + 1
	dm.NumUnitsInDecodingTick = r.ReadUint32(32)
	dm.BufferRemovalTimeLength = r.ReadUint8(5) + 1
	dm.FramePresentationTimeLength = r.ReadUint8(5) + 1
}

func (sh *SequenceHeader) decodeOperatingPoint(r *bits.Reader, op *OperatingPoint) {
	op.Idc = r.ReadUint16(12)
	op.SeqLevelIdx = r.ReadUint8(5)
	if op.SeqLevelIdx > 23 && op.SeqLevelIdx != 31 {
		throwf(ErrCorrupt, "seq_level_idx %d", op.SeqLevelIdx)
	}
	if op.SeqLevelIdx > 7 {
		op.SeqTier = r.ReadBit()
	}

	if sh.DecoderModelInfoPresent {
		op.DecoderModelPresent = r.ReadBool()
		if op.DecoderModelPresent {
			n := int(sh.DecoderModelInfo.BufferDelayLength)
			op.DecoderBufferDelay = r.ReadUint32(n)
			op.EncoderBufferDelay = r.ReadUint32(n)
			op.LowDelayModeFlag = r.ReadBool()
		}
	}

	op.InitialDisplayDelay = 10
	if sh.InitialDisplayDelayPresent {
		op.InitialDisplayDelayPresent = r.ReadBool()
		if op.InitialDisplayDelayPresent {
			op.InitialDisplayDelay = r.ReadUint8(4) + 1
		}
	}
}

func (c *ColorConfig) decode(r *bits.Reader, profile uint8) {
	highBitdepth := r.ReadBool()
	switch {
	case profile == 2 && highBitdepth:
		c.BitDepth = 10
		if r.ReadBool() { // twelve_bit
			c.BitDepth = 12
		}
	case highBitdepth:
		c.BitDepth = 10
	default:
		c.BitDepth = 8
	}

	if profile != 1 {
		c.MonoChrome = r.ReadBool()
	}

	c.ColorDescriptionPresent = r.ReadBool()
	if c.ColorDescriptionPresent {
		c.ColorPrimaries = r.ReadUint8(8)
		c.TransferCharacteristics = r.ReadUint8(8)
		c.MatrixCoefficients = r.ReadUint8(8)
	} else {
		c.ColorPrimaries = CpUnspecified
		c.TransferCharacteristics = TcUnspecified
		c.MatrixCoefficients = McUnspecified
	}

	if c.MonoChrome {
		c.ColorRange = r.ReadBool()
		c.SubsamplingX, c.SubsamplingY = 1, 1
		c.ChromaSamplePosition = CspUnknown
		c.SeparateUvDeltaQ = false
		return
	}

	if c.ColorPrimaries == CpBT709 &&
		c.TransferCharacteristics == TcSRGB &&
		c.MatrixCoefficients == McIdentity {
		c.ColorRange = true
		c.SubsamplingX, c.SubsamplingY = 0, 0
	} else {
		c.ColorRange = r.ReadBool()
		switch profile {
		case 0:
			c.SubsamplingX, c.SubsamplingY = 1, 1
		case 1:
			c.SubsamplingX, c.SubsamplingY = 0, 0
		default:
			if c.BitDepth == 12 {
				c.SubsamplingX = r.ReadBit()
				if c.SubsamplingX != 0 {
					c.SubsamplingY = r.ReadBit()
				}
			} else {
				c.SubsamplingX, c.SubsamplingY = 1, 0
			}
		}
		if c.SubsamplingX != 0 && c.SubsamplingY != 0 {
			c.ChromaSamplePosition = r.ReadUint8(2)
		}
	}
	c.SeparateUvDeltaQ = r.ReadBool()
}

// IsDifferentFrom reports whether other differs in anything that affects
// decoding. Timing info, the decoder model and the operating point
// parameters are not compared. A nil other is always different.
func (sh *SequenceHeader) IsDifferentFrom(other *SequenceHeader) bool {
	if other == nil {
		return true
	}
	return sh.decodingParams() != other.decodingParams()
}

// decodingParams 去掉不影响解码会话的字段
func (sh *SequenceHeader) decodingParams() SequenceHeader {
	p := *sh
	p.SeqID = 0
	p.TimingInfoPresent, p.TimingInfo = false, TimingInfo{}
	p.DecoderModelInfoPresent, p.DecoderModelInfo = false, DecoderModelInfo{}
	p.InitialDisplayDelayPresent = false
	p.OperatingPointsCnt, p.OperatingPoints = 0, [MaxOperatingPoints]OperatingPoint{}
	return p
}

// ChromaFormat returns the chroma format reported to the decode client.
func (sh *SequenceHeader) ChromaFormat() int {
	c := &sh.ColorConfig
	switch {
	case c.MonoChrome:
		return ChromaFormatMonochrome
	case c.SubsamplingX == 1 && c.SubsamplingY == 1:
		return ChromaFormat420
	case c.SubsamplingX == 0 && c.SubsamplingY == 0:
		return ChromaFormat444
	}
	return ChromaFormat422
}

// FrameRate returns the frame rate when the timing info carries one, else 0.
func (sh *SequenceHeader) FrameRate() float64 {
	ti := &sh.TimingInfo
	if !sh.TimingInfoPresent || ti.NumUnitsInDisplayTick == 0 {
		return 0
	}
	ticks := uint64(ti.NumUnitsInDisplayTick)
	if ti.EqualPictureInterval {
		ticks *= uint64(ti.NumTicksPerPicture)
	}
	return float64(ti.TimeScale) / float64(ticks)
}

// SequenceParser 解析序列头并检测序列变化
type SequenceParser struct {
	nextSeqID uint32
	active    *SequenceHeader
}

// Active returns the sequence header in use, nil before the first one.
func (p *SequenceParser) Active() *SequenceHeader { return p.active }

// Parse decodes a sequence header OBU payload and makes it the active one.
// changed is set for the first header and whenever the new header differs
// from the active one in a decoding parameter; otherwise the new header
// keeps the SeqID of the sequence it repeats.
func (p *SequenceParser) Parse(data []byte) (sh *SequenceHeader, changed bool, err error) {
	sh = new(SequenceHeader)
	if err = sh.Decode(data); err != nil {
		return nil, false, err
	}

	if !sh.IsDifferentFrom(p.active) {
		sh.SeqID = p.active.SeqID
		p.active = sh
		return sh, false, nil
	}
	sh.SeqID = p.nextSeqID
	p.nextSeqID++
	p.active = sh
	return sh, true, nil
}

// Reset forgets the active sequence header.
func (p *SequenceParser) Reset() { p.active = nil }
