// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package av1

import (
	"github.com/cnotch/av1parser/utils/bits"
)

// FrameSize 帧尺寸、超分辨率和渲染尺寸
type FrameSize struct {
	// parsed
	FrameSizeOverride           bool
	UseSuperres                 bool
	CodedDenom                  uint8
	RenderAndFrameSizeDifferent bool
	FoundRef                    int8 // index of the found_ref reference, -1 when none

	// derived
	FrameWidth    uint32 // 超分辨率缩小后的编码宽度
	FrameHeight   uint32
	UpscaledWidth uint32
	RenderWidth   uint32
	RenderHeight  uint32
	SuperresDenom uint32
	MiCols        uint32
	MiRows        uint32
}

// frame_size()
func (fs *FrameSize) decodeFrameSize(r *bits.Reader, sh *SequenceHeader) {
	if fs.FrameSizeOverride {
		fs.FrameWidth = r.ReadUint32(sh.FrameWidthBits) + 1
		fs.FrameHeight = r.ReadUint32(sh.FrameHeightBits) + 1
	} else {
		fs.FrameWidth = sh.MaxFrameWidth
		fs.FrameHeight = sh.MaxFrameHeight
	}
	fs.decodeSuperres(r, sh)
}

// superres_params() followed by compute_image_size()
func (fs *FrameSize) decodeSuperres(r *bits.Reader, sh *SequenceHeader) {
	fs.UseSuperres = false
	fs.CodedDenom = 0
	if sh.EnableSuperres {
		fs.UseSuperres = r.ReadBool()
	}

	fs.SuperresDenom = SuperresNum
	if fs.UseSuperres {
		fs.CodedDenom = r.ReadUint8(SuperresDenomBits)
		fs.SuperresDenom = uint32(fs.CodedDenom) + SuperresDenomMin
	}

	fs.UpscaledWidth = fs.FrameWidth
	fs.FrameWidth = (fs.UpscaledWidth*SuperresNum + fs.SuperresDenom/2) / fs.SuperresDenom
	fs.computeImageSize()
}

func (fs *FrameSize) computeImageSize() {
	fs.MiCols = 2 * ((fs.FrameWidth + 7) >> 3)
	fs.MiRows = 2 * ((fs.FrameHeight + 7) >> 3)
}

// render_size()
func (fs *FrameSize) decodeRenderSize(r *bits.Reader) {
	fs.RenderAndFrameSizeDifferent = r.ReadBool()
	if fs.RenderAndFrameSizeDifferent {
		fs.RenderWidth = r.ReadUint32(16) + 1
		fs.RenderHeight = r.ReadUint32(16) + 1
	} else {
		fs.RenderWidth = fs.UpscaledWidth
		fs.RenderHeight = fs.FrameHeight
	}
}

// decode reads frame_size() and render_size().
func (fs *FrameSize) decode(r *bits.Reader, sh *SequenceHeader) {
	fs.FoundRef = -1
	fs.decodeFrameSize(r, sh)
	fs.decodeRenderSize(r)
}

// decodeWithRefs frame_size_with_refs(); refs are the slots selected by
// ref_frame_idx.
func (fs *FrameSize) decodeWithRefs(r *bits.Reader, sh *SequenceHeader, refs [RefsPerFrame]*RefFrame) {
	fs.FoundRef = -1
	for i := 0; i < RefsPerFrame; i++ {
		if !r.ReadBool() {
			continue
		}

		ref := refs[i]
		fs.FoundRef = int8(i)
		fs.UpscaledWidth = ref.UpscaledWidth
		fs.FrameWidth = fs.UpscaledWidth
		fs.FrameHeight = ref.FrameHeight
		fs.RenderWidth = ref.RenderWidth
		fs.RenderHeight = ref.RenderHeight
		break
	}

	if fs.FoundRef < 0 {
		fs.decodeFrameSize(r, sh)
		fs.decodeRenderSize(r)
		return
	}
	fs.decodeSuperres(r, sh)
}
