// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decoder

import (
	"github.com/cnotch/av1parser/av/codec/av1"
)

// 解码客户端所需的最少表面数：8 个参考帧 + 当前帧
const (
	MinNumDecodeSurfaces = av1.NumRefFrames + 1
	MinNumDPBSlots       = av1.NumRefFrames + 1
)

// PictureBuffer 客户端分配的图像缓冲，解析器只持有不访问
type PictureBuffer interface{}

// SequenceInfo 序列信息，在序列开始或序列参数变化时交给客户端
type SequenceInfo struct {
	Codec                   string
	ChromaFormat            int
	MaxWidth                uint32 // 取偶
	MaxHeight               uint32
	CodedWidth              uint32 // upscaled width
	CodedHeight             uint32
	DisplayWidth            uint32 // render size
	DisplayHeight           uint32
	BitDepthLumaMinus8      uint8
	BitDepthChromaMinus8    uint8
	FrameRate               float64
	ColorPrimaries          uint8
	TransferCharacteristics uint8
	MatrixCoefficients      uint8
	MinNumDecodeSurfaces    int
	MinNumDPBSlots          int
	HasFilmGrain            bool
}

// SlotInfo 参考槽位（或当前帧的 setup 槽位）的保存状态
type SlotInfo struct {
	FrameType                FrameType
	OrderHint                uint8
	SavedOrderHints          [av1.TotalRefsPerFrame]uint8
	SignBiasMask             uint8 // bit i 置位表示参考 i 在当前帧之后
	DisableFrameEndUpdateCdf bool
	SegmentationEnabled      bool
}

// FrameType 帧类型别名，方便客户端使用
type FrameType = av1.FrameType

// PictureData 交给 Client.DecodePicture 的一帧数据
type PictureData struct {
	PicIdx            int // 当前帧缓冲在池中的索引
	Buffer            PictureBuffer
	NeedsSessionReset bool
	IntraPic          bool

	Sequence *av1.SequenceHeader
	Header   *av1.FrameHeader // 仅在回调期间有效

	// Bitstream 帧的 OBU 数据，Tile 偏移相对它计算
	Bitstream   []byte
	NumTiles    int
	TileOffsets []uint32
	TileSizes   []uint32

	// 8 个参考槽位对应的缓冲索引，-1 表示空
	RefPicIdx   [av1.NumRefFrames]int
	RefFrameIdx [av1.RefsPerFrame]int
	SetupSlot   SlotInfo
	DPBSlots    [av1.NumRefFrames]SlotInfo

	GlobalMotion av1.GlobalMotionParams
}

// DisplayInfo 交给 Client.DisplayPicture 的输出信息
type DisplayInfo struct {
	PicIdx   int
	Buffer   PictureBuffer
	PTS      int64
	PTSValid bool
	// Discontinuity 该 PTS 之前发生过不连续
	Discontinuity bool
	// Evict 不可再显示的帧，客户端显示后可以立即回收
	Evict bool
}

// Client 解码客户端（通常是硬件解码器）
type Client interface {
	// BeginSequence 返回客户端可用的最大解码表面数，0 表示失败
	BeginSequence(info *SequenceInfo) int
	AllocPictureBuffer() (PictureBuffer, error)
	// DecodePicture 返回 false 表示该帧被跳过
	DecodePicture(pd *PictureData) bool
	DisplayPicture(di *DisplayInfo) bool
	// UpdatePictureParameters 每个新的或变化的序列头调用一次，
	// 返回的 token 由解析器保存
	UpdatePictureParameters(sh *av1.SequenceHeader) (token interface{}, err error)
}

// OperatingPointSelector 客户端可选实现，为分层码流选择操作点
type OperatingPointSelector interface {
	SelectOperatingPoint(sh *av1.SequenceHeader) (op int, outputAllLayers bool)
}

// BufferReleaser 客户端可选实现，缓冲引用计数归零时通知
type BufferReleaser interface {
	ReleasePictureBuffer(buf PictureBuffer)
}

// ClientFunc 分解后的回调集合，未设置的回调使用默认行为
type ClientFunc struct {
	BeginSequenceFunc           func(info *SequenceInfo) int
	AllocPictureBufferFunc      func() (PictureBuffer, error)
	DecodePictureFunc           func(pd *PictureData) bool
	DisplayPictureFunc          func(di *DisplayInfo) bool
	UpdatePictureParametersFunc func(sh *av1.SequenceHeader) (interface{}, error)
}

var _ Client = ClientFunc{}

// BeginSequence implements Client.
func (c ClientFunc) BeginSequence(info *SequenceInfo) int {
	if c.BeginSequenceFunc == nil {
		return info.MinNumDecodeSurfaces
	}
	return c.BeginSequenceFunc(info)
}

// AllocPictureBuffer implements Client.
func (c ClientFunc) AllocPictureBuffer() (PictureBuffer, error) {
	if c.AllocPictureBufferFunc == nil {
		return struct{}{}, nil
	}
	return c.AllocPictureBufferFunc()
}

// DecodePicture implements Client.
func (c ClientFunc) DecodePicture(pd *PictureData) bool {
	if c.DecodePictureFunc == nil {
		return true
	}
	return c.DecodePictureFunc(pd)
}

// DisplayPicture implements Client.
func (c ClientFunc) DisplayPicture(di *DisplayInfo) bool {
	if c.DisplayPictureFunc == nil {
		return true
	}
	return c.DisplayPictureFunc(di)
}

// UpdatePictureParameters implements Client.
func (c ClientFunc) UpdatePictureParameters(sh *av1.SequenceHeader) (interface{}, error) {
	if c.UpdatePictureParametersFunc == nil {
		return nil, nil
	}
	return c.UpdatePictureParametersFunc(sh)
}
