// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package av1

// RefFrame 参考帧槽位保存的状态
type RefFrame struct {
	Populated bool // 槽位已被解码帧填充
	Valid     bool // RefValid

	FrameID         uint32
	FrameType       FrameType
	Showable        bool
	OrderHint       uint8
	SavedOrderHints [TotalRefsPerFrame]uint8
	// RelativeDist(SavedOrderHints[i], OrderHint)，负值表示参考帧在前
	SavedSignBias [TotalRefsPerFrame]int

	UpscaledWidth uint32
	FrameWidth    uint32
	FrameHeight   uint32
	RenderWidth   uint32
	RenderHeight  uint32
	MiCols        uint32
	MiRows        uint32
	BitDepth      uint8
	SubsamplingX  uint8
	SubsamplingY  uint8

	LoopFilterRefDeltas  [TotalRefsPerFrame]int8
	LoopFilterModeDeltas [2]int8
	SegmentationEnabled  bool
	Segmentation         SegmentationFeatures
	GlobalMotion         GlobalMotionParams
	FilmGrain            FilmGrainParams

	PrimaryRefFrame          uint8
	BaseQIdx                 uint8
	DisableFrameEndUpdateCdf bool
}

// RefState the eight reference slots seen by the frame header parser.
type RefState struct {
	Frames [NumRefFrames]RefFrame
}

// Reset empties every slot.
func (s *RefState) Reset() {
	*s = RefState{}
}

// Update runs the reference frame update process for a completed frame:
// every slot whose bit is set in refresh_frame_flags receives the state of fh.
func (s *RefState) Update(fh *FrameHeader, sh *SequenceHeader) {
	if fh.RefreshFrameFlags == 0 {
		return
	}

	snapshot := RefFrame{
		Populated:       true,
		Valid:           true,
		FrameID:         fh.CurrentFrameID,
		FrameType:       fh.FrameType,
		Showable:        fh.ShowableFrame,
		OrderHint:       fh.OrderHint,
		SavedOrderHints: fh.OrderHints,
		SavedSignBias:   fh.RefFrameSignBias,

		UpscaledWidth: fh.Size.UpscaledWidth,
		FrameWidth:    fh.Size.FrameWidth,
		FrameHeight:   fh.Size.FrameHeight,
		RenderWidth:   fh.Size.RenderWidth,
		RenderHeight:  fh.Size.RenderHeight,
		MiCols:        fh.Size.MiCols,
		MiRows:        fh.Size.MiRows,
		BitDepth:      sh.ColorConfig.BitDepth,
		SubsamplingX:  sh.ColorConfig.SubsamplingX,
		SubsamplingY:  sh.ColorConfig.SubsamplingY,

		LoopFilterRefDeltas:  fh.LoopFilter.RefDeltas,
		LoopFilterModeDeltas: fh.LoopFilter.ModeDeltas,
		SegmentationEnabled:  fh.Segmentation.Enabled,
		Segmentation:         fh.Segmentation.SegmentationFeatures,
		GlobalMotion:         fh.GlobalMotion,
		FilmGrain:            fh.FilmGrain,

		PrimaryRefFrame:          fh.PrimaryRefFrame,
		BaseQIdx:                 fh.Quantization.BaseQIdx,
		DisableFrameEndUpdateCdf: fh.DisableFrameEndUpdateCdf,
	}

	for i := 0; i < NumRefFrames; i++ {
		if fh.RefreshFrameFlags&(1<<uint(i)) != 0 {
			s.Frames[i] = snapshot
		}
	}
}

// OrderHints returns RefOrderHint[] of all slots.
func (s *RefState) OrderHints() (hints [NumRefFrames]int) {
	for i := range s.Frames {
		hints[i] = int(s.Frames[i].OrderHint)
	}
	return
}

// RelativeDist get_relative_dist(): the signed circular distance a - b of
// two order hints of the given bit width. bits == 0 means order hints are
// disabled and the distance is always 0.
func RelativeDist(a, b, bits int) int {
	if bits <= 0 {
		return 0
	}
	diff := a - b
	m := 1 << uint(bits-1)
	return (diff & (m - 1)) - (diff & m)
}

// RelativeDist uses the order hint settings of the sequence.
func (sh *SequenceHeader) RelativeDist(a, b int) int {
	if !sh.EnableOrderHint {
		return 0
	}
	return RelativeDist(a, b, sh.OrderHintBits)
}

// 短信令参考帧推导时第二阶段的填充顺序
var refFrameList = [RefsPerFrame - 2]int{
	Last2Frame, Last3Frame, BwdrefFrame, Altref2Frame, AltrefFrame,
}

// SetFrameRefs derives ref_frame_idx[] for frame_refs_short_signaling from
// the explicit LAST and GOLDEN slots, the current order hint and the order
// hints of the eight slots. Every entry of the result is a valid slot index.
func SetFrameRefs(lastIdx, goldIdx, orderHint int, refOrderHints [NumRefFrames]int, bits int) (refFrameIdx [RefsPerFrame]int) {
	for i := range refFrameIdx {
		refFrameIdx[i] = -1
	}
	refFrameIdx[LastFrame-LastFrame] = lastIdx
	refFrameIdx[GoldenFrame-LastFrame] = goldIdx

	var usedFrame [NumRefFrames]bool
	usedFrame[lastIdx] = true
	usedFrame[goldIdx] = true

	curFrameHint := 1 << uint(bits-1)
	var shifted [NumRefFrames]int
	for i := range shifted {
		shifted[i] = curFrameHint + RelativeDist(refOrderHints[i], orderHint, bits)
	}

	// latest backward -> ALTREF
	ref, hint := -1, 0
	for i := 0; i < NumRefFrames; i++ {
		h := shifted[i]
		if !usedFrame[i] && h >= curFrameHint && (ref < 0 || h >= hint) {
			ref, hint = i, h
		}
	}
	if ref >= 0 {
		refFrameIdx[AltrefFrame-LastFrame] = ref
		usedFrame[ref] = true
	}

	// earliest backward -> BWDREF, then ALTREF2
	for _, name := range [2]int{BwdrefFrame, Altref2Frame} {
		ref, hint = -1, 0
		for i := 0; i < NumRefFrames; i++ {
			h := shifted[i]
			if !usedFrame[i] && h >= curFrameHint && (ref < 0 || h < hint) {
				ref, hint = i, h
			}
		}
		if ref >= 0 {
			refFrameIdx[name-LastFrame] = ref
			usedFrame[ref] = true
		}
	}

	// remaining references: latest forward first
	for _, name := range refFrameList {
		if refFrameIdx[name-LastFrame] >= 0 {
			continue
		}
		ref, hint = -1, 0
		for i := 0; i < NumRefFrames; i++ {
			h := shifted[i]
			if !usedFrame[i] && h < curFrameHint && (ref < 0 || h >= hint) {
				ref, hint = i, h
			}
		}
		if ref >= 0 {
			refFrameIdx[name-LastFrame] = ref
			usedFrame[ref] = true
		}
	}

	// anything left gets the earliest slot overall
	ref, hint = -1, 0
	for i := 0; i < NumRefFrames; i++ {
		h := shifted[i]
		if ref < 0 || h < hint {
			ref, hint = i, h
		}
	}
	for i := range refFrameIdx {
		if refFrameIdx[i] < 0 {
			refFrameIdx[i] = ref
		}
	}
	return
}

// IsSkipModeAllowed finds the two references used by skip mode. refHints
// are the order hints of the seven references of the current frame. It
// returns false when no suitable forward reference exists.
func IsSkipModeAllowed(orderHint int, refHints [RefsPerFrame]int, bits int) (skipModeFrame [2]int, allowed bool) {
	forwardIdx, backwardIdx := -1, -1
	forwardHint, backwardHint := 0, 0

	for i, refHint := range refHints {
		dist := RelativeDist(refHint, orderHint, bits)
		if dist < 0 {
			if forwardIdx < 0 || RelativeDist(refHint, forwardHint, bits) > 0 {
				forwardIdx, forwardHint = i, refHint
			}
		} else if dist > 0 {
			if backwardIdx < 0 || RelativeDist(refHint, backwardHint, bits) < 0 {
				backwardIdx, backwardHint = i, refHint
			}
		}
	}

	if forwardIdx < 0 {
		return
	}

	if backwardIdx >= 0 {
		skipModeFrame[0] = LastFrame + min(forwardIdx, backwardIdx)
		skipModeFrame[1] = LastFrame + max(forwardIdx, backwardIdx)
		return skipModeFrame, true
	}

	secondForwardIdx, secondForwardHint := -1, 0
	for i, refHint := range refHints {
		if RelativeDist(refHint, forwardHint, bits) < 0 {
			if secondForwardIdx < 0 || RelativeDist(refHint, secondForwardHint, bits) > 0 {
				secondForwardIdx, secondForwardHint = i, refHint
			}
		}
	}
	if secondForwardIdx < 0 {
		return
	}

	skipModeFrame[0] = LastFrame + min(forwardIdx, secondForwardIdx)
	skipModeFrame[1] = LastFrame + max(forwardIdx, secondForwardIdx)
	return skipModeFrame, true
}
