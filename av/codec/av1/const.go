// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package av1

/**
 * Section 3 – Symbols and abbreviated terms in
 * AV1 Bitstream & Decoding Process Specification
 */
const (
	RefsPerFrame           = 7
	TotalRefsPerFrame      = 8
	NumRefFrames           = 8
	MaxSegments            = 8
	SegLvlMax              = 8
	SegLvlAltQ             = 0
	SegLvlRefFrame         = 5
	MaxLoopFilter          = 63
	MaxOperatingPoints     = 32
	MaxTileCols            = 64
	MaxTileRows            = 64
	MaxTileWidth           = 4096
	MaxTileArea            = 4096 * 2304
	MaxTiles               = 512
	MaxSpatialLayers       = 4
	PrimaryRefNone         = 7
	SuperresNum            = 8
	SuperresDenomMin       = 9
	SuperresDenomBits      = 3
	RestorationTileSizeMax = 256
	MaxPlanes              = 3
	SelectScreenContent    = 2
	SelectIntegerMv        = 2
	MaxNumYPoints          = 14
	MaxNumCbCrPoints       = 10
	MaxNumPosLuma          = 24
	MaxNumPosChroma        = 25
)

// Global motion
const (
	WarpedModelPrecBits = 16
	GmAbsAlphaBits      = 12
	GmAlphaPrecBits     = 15
	GmAbsTransOnlyBits  = 9
	GmTransOnlyPrecBits = 3
	GmAbsTransBits      = 12
	GmTransPrecBits     = 6
	SubexpFinK          = 3
)

// FrameType frame_type
type FrameType uint8

// frame_type values
const (
	KeyFrame       FrameType = 0
	InterFrame     FrameType = 1
	IntraOnlyFrame FrameType = 2
	SwitchFrame    FrameType = 3
)

func (t FrameType) String() string {
	switch t {
	case KeyFrame:
		return "KEY_FRAME"
	case InterFrame:
		return "INTER_FRAME"
	case IntraOnlyFrame:
		return "INTRA_ONLY_FRAME"
	case SwitchFrame:
		return "SWITCH_FRAME"
	}
	return "UNKNOWN"
}

// Reference frame names, index into OrderHints and GlobalMotion arrays.
const (
	IntraFrame   = 0
	LastFrame    = 1
	Last2Frame   = 2
	Last3Frame   = 3
	GoldenFrame  = 4
	BwdrefFrame  = 5
	Altref2Frame = 6
	AltrefFrame  = 7
)

// interpolation_filter
const (
	FilterEightTap       = 0
	FilterEightTapSmooth = 1
	FilterEightTapSharp  = 2
	FilterBilinear       = 3
	FilterSwitchable     = 4
)

// TxMode
const (
	TxModeOnly4x4 = 0
	TxModeLargest = 1
	TxModeSelect  = 2
)

// FrameRestorationType
const (
	RestoreNone       = 0
	RestoreWiener     = 1
	RestoreSgrproj    = 2
	RestoreSwitchable = 3
)

var remapLrType = [4]uint8{RestoreNone, RestoreSwitchable, RestoreWiener, RestoreSgrproj}

// Global motion model types
const (
	GmIdentity    = 0
	GmTranslation = 1
	GmRotzoom     = 2
	GmAffine      = 3
)

// Color primaries, transfer characteristics and matrix coefficients
const (
	CpBT709       = 1
	CpUnspecified = 2
	TcUnspecified = 2
	TcSRGB        = 13
	McIdentity    = 0
	McUnspecified = 2
	CspUnknown    = 0
)

// Chroma formats reported to the decode client
const (
	ChromaFormatMonochrome = 0
	ChromaFormat420        = 1
	ChromaFormat422        = 2
	ChromaFormat444        = 3
)

var (
	segmentationFeatureBits   = [SegLvlMax]int{8, 6, 6, 6, 6, 3, 0, 0}
	segmentationFeatureSigned = [SegLvlMax]bool{true, true, true, true, true, false, false, false}
	segmentationFeatureMax    = [SegLvlMax]int{255, MaxLoopFilter, MaxLoopFilter, MaxLoopFilter, MaxLoopFilter, 7, 0, 0}
)

// 默认的环路滤波参考帧增量
var defaultLoopFilterRefDeltas = [TotalRefsPerFrame]int8{1, 0, 0, 0, -1, 0, -1, -1}
