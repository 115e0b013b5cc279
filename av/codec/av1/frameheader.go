// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package av1

import (
	"fmt"

	"github.com/cnotch/av1parser/utils/bits"
)

const allFrames = 0xFF

// FrameContext 解析帧头所需的外部状态
type FrameContext struct {
	Sequence   *SequenceHeader
	Refs       *RefState
	TemporalID uint8
	SpatialID  uint8
	Checker    *Checker
}

// FrameHeader uncompressed_header()
//
// One FrameHeader is reused for every frame of a stream. Decode clears it
// first, so a field that is absent from the bitstream always holds the value
// derived for the current frame and never the previous frame's.
type FrameHeader struct {
	// parsed
	ShowExistingFrame        bool
	FrameToShowMapIdx        uint8
	FramePresentationTime    uint32
	DisplayFrameID           uint32
	FrameType                FrameType
	ShowFrame                bool
	ShowableFrame            bool
	ErrorResilientMode       bool
	DisableCdfUpdate         bool
	AllowScreenContentTools  bool
	ForceIntegerMv           bool
	CurrentFrameID           uint32
	OrderHint                uint8
	PrimaryRefFrame          uint8
	BufferRemovalTimePresent bool
	BufferRemovalTime        [MaxOperatingPoints]uint32
	RefreshFrameFlags        uint8
	RefOrderHint             [NumRefFrames]uint8 // error resilient mode only
	AllowIntrabc             bool
	FrameRefsShortSignaling  bool
	LastFrameIdx             uint8
	GoldFrameIdx             uint8
	RefFrameIdx              [RefsPerFrame]uint8
	AllowHighPrecisionMv     bool
	IsFilterSwitchable       bool
	InterpolationFilter      uint8
	IsMotionModeSwitchable   bool
	UseRefFrameMvs           bool
	DisableFrameEndUpdateCdf bool
	TxModeSelect             bool
	ReferenceSelect          bool
	SkipModePresent          bool
	AllowWarpedMotion        bool
	ReducedTxSet             bool

	Size            FrameSize
	TileInfo        TileInfo
	Quantization    QuantizationParams
	Segmentation    SegmentationParams
	Delta           DeltaParams
	LoopFilter      LoopFilterParams
	Cdef            CdefParams
	LoopRestoration LoopRestorationParams
	GlobalMotion    GlobalMotionParams
	FilmGrain       FilmGrainParams

	// derived
	TemporalID      uint8
	SpatialID       uint8
	FrameIsIntra    bool
	ExpectedFrameID [RefsPerFrame]uint32
	// 按参考帧名称索引，IntraFrame 项恒为 0
	OrderHints [TotalRefsPerFrame]uint8
	// RelativeDist(OrderHints[i], OrderHint)，负值为前向参考
	RefFrameSignBias [TotalRefsPerFrame]int
	TxMode           uint8
	SkipModeFrame    [2]uint8
	Lossless         Lossless
}

// Decode parses uncompressed_header() from r. The reader is left after the
// last header bit; trailing or alignment bits are the caller's business.
// Frame id and error resilient order hint handling may invalidate slots
// of ctx.Refs, as the reference process requires.
func (fh *FrameHeader) Decode(r *bits.Reader, ctx *FrameContext) (err error) {
	defer catch("frame header", &err)

	if ctx.Sequence == nil {
		return fmt.Errorf("frame header: %w: no sequence header", ErrRefUnavailable)
	}

	prevFrameID := fh.CurrentFrameID
	*fh = FrameHeader{
		CurrentFrameID: prevFrameID,
		TemporalID:     ctx.TemporalID,
		SpatialID:      ctx.SpatialID,
	}
	fh.decode(r, ctx)
	return
}

func (fh *FrameHeader) decode(r *bits.Reader, ctx *FrameContext) {
	sh := ctx.Sequence
	refs := ctx.Refs
	chk := ctx.Checker

	if sh.ReducedStillPictureHeader {
		fh.FrameType = KeyFrame
		fh.FrameIsIntra = true
		fh.ShowFrame = true
		fh.ShowableFrame = false
		fh.ErrorResilientMode = true
	} else {
		fh.ShowExistingFrame = r.ReadBool()
		if fh.ShowExistingFrame {
			fh.decodeShowExisting(r, ctx)
			return
		}

		fh.FrameType = FrameType(r.ReadUint8(2))
		fh.FrameIsIntra = fh.FrameType == IntraOnlyFrame || fh.FrameType == KeyFrame
		fh.ShowFrame = r.ReadBool()
		if fh.ShowFrame {
			fh.decodeTemporalPointInfo(r, sh)
			fh.ShowableFrame = fh.FrameType != KeyFrame
		} else {
			fh.ShowableFrame = r.ReadBool()
		}

		if fh.FrameType == SwitchFrame || (fh.FrameType == KeyFrame && fh.ShowFrame) {
			fh.ErrorResilientMode = true
		} else {
			fh.ErrorResilientMode = r.ReadBool()
		}
	}

	if fh.FrameType == KeyFrame && fh.ShowFrame {
		for i := range refs.Frames {
			refs.Frames[i].Valid = false
			refs.Frames[i].OrderHint = 0
		}
		// OrderHints[LAST..ALTREF] stay zero
	}

	fh.DisableCdfUpdate = r.ReadBool()
	if sh.SeqForceScreenContentTools == SelectScreenContent {
		fh.AllowScreenContentTools = r.ReadBool()
	} else {
		fh.AllowScreenContentTools = sh.SeqForceScreenContentTools != 0
	}
	if fh.AllowScreenContentTools {
		if sh.SeqForceIntegerMv == SelectIntegerMv {
			fh.ForceIntegerMv = r.ReadBool()
		} else {
			fh.ForceIntegerMv = sh.SeqForceIntegerMv != 0
		}
	}
	if fh.FrameIsIntra {
		fh.ForceIntegerMv = true
	}

	if sh.FrameIDNumbersPresent {
		prevFrameID := fh.CurrentFrameID
		fh.CurrentFrameID = r.ReadUint32(sh.FrameIDLength)
		fh.checkFrameID(prevFrameID, sh, chk)
		fh.markRefFrames(sh, refs)
	} else {
		fh.CurrentFrameID = 0
	}

	switch {
	case fh.FrameType == SwitchFrame:
		fh.Size.FrameSizeOverride = true
	case sh.ReducedStillPictureHeader:
		fh.Size.FrameSizeOverride = false
	default:
		fh.Size.FrameSizeOverride = r.ReadBool()
	}

	fh.OrderHint = r.ReadUint8(sh.OrderHintBits)
	if fh.FrameIsIntra || fh.ErrorResilientMode {
		fh.PrimaryRefFrame = PrimaryRefNone
	} else {
		fh.PrimaryRefFrame = r.ReadUint8(3)
	}

	if sh.DecoderModelInfoPresent {
		fh.decodeBufferRemovalTimes(r, sh)
	}

	if fh.FrameType == SwitchFrame || (fh.FrameType == KeyFrame && fh.ShowFrame) {
		fh.RefreshFrameFlags = allFrames
	} else {
		fh.RefreshFrameFlags = r.ReadUint8(8)
	}
	if fh.FrameType == IntraOnlyFrame && fh.RefreshFrameFlags == allFrames {
		chk.violation("intra only frame refreshes all slots")
	}

	if (!fh.FrameIsIntra || fh.RefreshFrameFlags != allFrames) &&
		fh.ErrorResilientMode && sh.EnableOrderHint {
		for i := 0; i < NumRefFrames; i++ {
			fh.RefOrderHint[i] = r.ReadUint8(sh.OrderHintBits)
			slot := &refs.Frames[i]
			if fh.RefOrderHint[i] != slot.OrderHint || !slot.Valid {
				// 错误恢复信号，不是一致性错误
				if slot.Valid {
					chk.logger().Debugf("av1: ref_order_hint[%d] %d differs from slot order hint %d, slot invalidated",
						i, fh.RefOrderHint[i], slot.OrderHint)
				}
				slot.Valid = false
				slot.OrderHint = fh.RefOrderHint[i]
			}
		}
	}

	if fh.FrameIsIntra {
		fh.Size.decode(r, sh)
		if fh.AllowScreenContentTools && fh.Size.UpscaledWidth == fh.Size.FrameWidth {
			fh.AllowIntrabc = r.ReadBool()
		}
	} else {
		fh.decodeInterRefs(r, ctx)
	}

	if sh.ReducedStillPictureHeader || fh.DisableCdfUpdate {
		fh.DisableFrameEndUpdateCdf = true
	} else {
		fh.DisableFrameEndUpdateCdf = r.ReadBool()
	}

	// setup_past_independence() or load_previous()
	var prev *RefFrame
	if fh.PrimaryRefFrame == PrimaryRefNone {
		fh.LoopFilter.setDefaults()
	} else {
		prev = &refs.Frames[fh.RefFrameIdx[fh.PrimaryRefFrame]]
		fh.LoopFilter.DeltaEnabled = true
		fh.LoopFilter.RefDeltas = prev.LoopFilterRefDeltas
		fh.LoopFilter.ModeDeltas = prev.LoopFilterModeDeltas
	}

	fh.TileInfo.decode(r, sh, fh.Size.MiCols, fh.Size.MiRows, chk)
	fh.Quantization.decode(r, &sh.ColorConfig)
	if prev != nil {
		fh.Segmentation.decode(r, &prev.Segmentation, chk)
	} else {
		fh.Segmentation.decode(r, nil, chk)
	}
	fh.Delta.decode(r, fh.Quantization.BaseQIdx, fh.AllowIntrabc)

	fh.Lossless = ComputeLossless(&fh.Quantization, &fh.Segmentation, fh.Size.FrameWidth, fh.Size.UpscaledWidth)

	numPlanes := sh.ColorConfig.NumPlanes()
	fh.LoopFilter.decode(r, numPlanes, fh.Lossless.CodedLossless || fh.AllowIntrabc)
	fh.Cdef.decode(r, numPlanes, fh.Lossless.CodedLossless || fh.AllowIntrabc || !sh.EnableCdef)
	fh.LoopRestoration.decode(r, sh, fh.Lossless.AllLossless || fh.AllowIntrabc || !sh.EnableRestoration)

	// read_tx_mode()
	if fh.Lossless.CodedLossless {
		fh.TxMode = TxModeOnly4x4
	} else {
		fh.TxModeSelect = r.ReadBool()
		if fh.TxModeSelect {
			fh.TxMode = TxModeSelect
		} else {
			fh.TxMode = TxModeLargest
		}
	}

	if !fh.FrameIsIntra {
		fh.ReferenceSelect = r.ReadBool()
	}

	fh.decodeSkipMode(r, ctx)

	if !fh.FrameIsIntra && !fh.ErrorResilientMode && sh.EnableWarpedMotion {
		fh.AllowWarpedMotion = r.ReadBool()
	}
	fh.ReducedTxSet = r.ReadBool()

	if fh.FrameIsIntra {
		fh.GlobalMotion.reset()
	} else {
		prevGm := DefaultGlobalMotion()
		if prev != nil {
			prevGm = prev.GlobalMotion
		}
		fh.GlobalMotion.decode(r, &prevGm, fh.AllowHighPrecisionMv)
	}

	fh.decodeFilmGrain(r, ctx)
}

// show_existing_frame == 1
func (fh *FrameHeader) decodeShowExisting(r *bits.Reader, ctx *FrameContext) {
	sh := ctx.Sequence
	fh.FrameToShowMapIdx = r.ReadUint8(3)
	fh.decodeTemporalPointInfo(r, sh)
	if sh.FrameIDNumbersPresent {
		fh.DisplayFrameID = r.ReadUint32(sh.FrameIDLength)
	}

	slot := &ctx.Refs.Frames[fh.FrameToShowMapIdx]
	if !slot.Populated {
		throwf(ErrRefUnavailable, "frame_to_show_map_idx %d has not been decoded", fh.FrameToShowMapIdx)
	}
	if sh.FrameIDNumbersPresent && (fh.DisplayFrameID != slot.FrameID || !slot.Valid) {
		ctx.Checker.violation("display_frame_id %d does not match slot %d frame id %d",
			fh.DisplayFrameID, fh.FrameToShowMapIdx, slot.FrameID)
	}
	if !slot.Showable {
		ctx.Checker.violation("slot %d is not showable", fh.FrameToShowMapIdx)
	}

	fh.ShowFrame = true
	fh.FrameType = slot.FrameType
	fh.ShowableFrame = slot.Showable
	fh.RefreshFrameFlags = 0
	if sh.FilmGrainParamsPresent {
		fh.FilmGrain = slot.FilmGrain
	}

	if fh.FrameType == KeyFrame {
		// 重新显示的关键帧刷新全部槽位
		fh.RefreshFrameFlags = allFrames
		fh.ShowableFrame = false
		fh.loadReference(slot)
	}
}

// loadReference is the reference frame loading process used when a key
// frame is shown again.
func (fh *FrameHeader) loadReference(slot *RefFrame) {
	fh.FrameIsIntra = true
	fh.CurrentFrameID = slot.FrameID
	fh.OrderHint = slot.OrderHint
	fh.OrderHints = slot.SavedOrderHints
	fh.RefFrameSignBias = slot.SavedSignBias
	fh.Size = FrameSize{
		FoundRef:      -1,
		FrameWidth:    slot.FrameWidth,
		FrameHeight:   slot.FrameHeight,
		UpscaledWidth: slot.UpscaledWidth,
		RenderWidth:   slot.RenderWidth,
		RenderHeight:  slot.RenderHeight,
		SuperresDenom: SuperresNum,
		MiCols:        slot.MiCols,
		MiRows:        slot.MiRows,
	}
	fh.LoopFilter.RefDeltas = slot.LoopFilterRefDeltas
	fh.LoopFilter.ModeDeltas = slot.LoopFilterModeDeltas
	fh.Segmentation.Enabled = slot.SegmentationEnabled
	fh.Segmentation.SegmentationFeatures = slot.Segmentation
	fh.GlobalMotion = slot.GlobalMotion
	fh.FilmGrain = slot.FilmGrain
	fh.PrimaryRefFrame = slot.PrimaryRefFrame
	fh.Quantization.BaseQIdx = slot.BaseQIdx
	fh.DisableFrameEndUpdateCdf = slot.DisableFrameEndUpdateCdf
}

// temporal_point_info()
func (fh *FrameHeader) decodeTemporalPointInfo(r *bits.Reader, sh *SequenceHeader) {
	if sh.DecoderModelInfoPresent && !sh.TimingInfo.EqualPictureInterval {
		fh.FramePresentationTime = r.ReadUint32(int(sh.DecoderModelInfo.FramePresentationTimeLength))
	}
}

func (fh *FrameHeader) decodeBufferRemovalTimes(r *bits.Reader, sh *SequenceHeader) {
	fh.BufferRemovalTimePresent = r.ReadBool()
	if !fh.BufferRemovalTimePresent {
		return
	}

	n := int(sh.DecoderModelInfo.BufferRemovalTimeLength)
	for opNum := 0; opNum < sh.OperatingPointsCnt; opNum++ {
		op := &sh.OperatingPoints[opNum]
		if !op.DecoderModelPresent {
			continue
		}
		idc := op.Idc
		inTemporalLayer := (idc>>fh.TemporalID)&1 != 0
		inSpatialLayer := (idc>>(fh.SpatialID+8))&1 != 0
		if idc == 0 || (inTemporalLayer && inSpatialLayer) {
			fh.BufferRemovalTime[opNum] = r.ReadUint32(n)
		}
	}
}

func (fh *FrameHeader) checkFrameID(prevFrameID uint32, sh *SequenceHeader, chk *Checker) {
	if fh.FrameType == KeyFrame && fh.ShowFrame {
		return
	}

	idLen := uint(sh.FrameIDLength)
	var diff uint32
	if fh.CurrentFrameID > prevFrameID {
		diff = fh.CurrentFrameID - prevFrameID
	} else {
		diff = (1 << idLen) + fh.CurrentFrameID - prevFrameID
	}
	if fh.CurrentFrameID == prevFrameID || diff >= 1<<(idLen-1) {
		chk.violation("current_frame_id %d too far from previous %d", fh.CurrentFrameID, prevFrameID)
	}
}

// mark_ref_frames()
func (fh *FrameHeader) markRefFrames(sh *SequenceHeader, refs *RefState) {
	idLen := uint(sh.FrameIDLength)
	diffLen := uint(sh.DeltaFrameIDLength)
	cur := fh.CurrentFrameID

	for i := range refs.Frames {
		slot := &refs.Frames[i]
		if fh.FrameType == KeyFrame && fh.ShowFrame {
			slot.Valid = false
			continue
		}
		if cur > 1<<diffLen {
			if slot.FrameID > cur || slot.FrameID < cur-(1<<diffLen) {
				slot.Valid = false
			}
		} else if slot.FrameID > cur && slot.FrameID < (1<<idLen)+cur-(1<<diffLen) {
			slot.Valid = false
		}
	}
}

// decodeInterRefs reads the reference selection, frame size and motion
// vector settings of an inter or switch frame.
func (fh *FrameHeader) decodeInterRefs(r *bits.Reader, ctx *FrameContext) {
	sh := ctx.Sequence
	refs := ctx.Refs

	if sh.EnableOrderHint {
		fh.FrameRefsShortSignaling = r.ReadBool()
	}
	if fh.FrameRefsShortSignaling {
		fh.LastFrameIdx = r.ReadUint8(3)
		fh.GoldFrameIdx = r.ReadUint8(3)

		curFrameHint := 1 << uint(sh.OrderHintBits-1)
		for _, idx := range [2]uint8{fh.LastFrameIdx, fh.GoldFrameIdx} {
			if curFrameHint+sh.RelativeDist(int(refs.Frames[idx].OrderHint), int(fh.OrderHint)) >= curFrameHint {
				ctx.Checker.violation("short signaled reference slot %d is not a forward reference", idx)
			}
		}

		derived := SetFrameRefs(int(fh.LastFrameIdx), int(fh.GoldFrameIdx), int(fh.OrderHint), refs.OrderHints(), sh.OrderHintBits)
		for i, idx := range derived {
			fh.RefFrameIdx[i] = uint8(idx)
		}
	}

	for i := 0; i < RefsPerFrame; i++ {
		if !fh.FrameRefsShortSignaling {
			fh.RefFrameIdx[i] = r.ReadUint8(3)
		}
		if sh.FrameIDNumbersPresent {
			idLen := uint(sh.FrameIDLength)
			deltaFrameID := r.ReadUint32(sh.DeltaFrameIDLength) + 1
			fh.ExpectedFrameID[i] = (fh.CurrentFrameID + (1 << idLen) - deltaFrameID) % (1 << idLen)
		}
	}

	var selected [RefsPerFrame]*RefFrame
	for i, idx := range fh.RefFrameIdx {
		slot := &refs.Frames[idx]
		if !slot.Populated || !slot.Valid {
			throwf(ErrRefUnavailable, "ref_frame_idx[%d] = %d", i, idx)
		}
		if sh.FrameIDNumbersPresent && fh.ExpectedFrameID[i] != slot.FrameID {
			ctx.Checker.violation("ref_frame_idx[%d] expected frame id %d, slot has %d",
				i, fh.ExpectedFrameID[i], slot.FrameID)
		}
		selected[i] = slot
	}

	if fh.Size.FrameSizeOverride && !fh.ErrorResilientMode {
		fh.Size.decodeWithRefs(r, sh, selected)
	} else {
		fh.Size.decode(r, sh)
	}

	if !fh.ForceIntegerMv {
		fh.AllowHighPrecisionMv = r.ReadBool()
	}

	// read_interpolation_filter()
	fh.IsFilterSwitchable = r.ReadBool()
	if fh.IsFilterSwitchable {
		fh.InterpolationFilter = FilterSwitchable
	} else {
		fh.InterpolationFilter = r.ReadUint8(2)
	}
	fh.IsMotionModeSwitchable = r.ReadBool()

	if !fh.ErrorResilientMode && sh.EnableRefFrameMvs {
		fh.UseRefFrameMvs = r.ReadBool()
	}

	for i := 0; i < RefsPerFrame; i++ {
		name := LastFrame + i
		hint := selected[i].OrderHint
		fh.OrderHints[name] = hint
		fh.RefFrameSignBias[name] = sh.RelativeDist(int(hint), int(fh.OrderHint))
	}
}

// skip_mode_params()
func (fh *FrameHeader) decodeSkipMode(r *bits.Reader, ctx *FrameContext) {
	sh := ctx.Sequence
	if fh.FrameIsIntra || !fh.ReferenceSelect || !sh.EnableOrderHint {
		return
	}

	var refHints [RefsPerFrame]int
	for i, idx := range fh.RefFrameIdx {
		refHints[i] = int(ctx.Refs.Frames[idx].OrderHint)
	}
	frames, allowed := IsSkipModeAllowed(int(fh.OrderHint), refHints, sh.OrderHintBits)
	if !allowed {
		return
	}
	fh.SkipModeFrame = [2]uint8{uint8(frames[0]), uint8(frames[1])}
	fh.SkipModePresent = r.ReadBool()
}

// IsReferenced reports whether the frame is stored in at least one slot.
func (fh *FrameHeader) IsReferenced() bool { return fh.RefreshFrameFlags != 0 }
