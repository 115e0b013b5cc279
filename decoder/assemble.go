// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decoder

import (
	"fmt"

	"github.com/cnotch/av1parser/av/codec/av1"
	"github.com/cnotch/xlog"
)

// sequenceInfo 由当前序列头和帧尺寸生成序列信息
func (d *Decoder) sequenceInfo() SequenceInfo {
	sh, size := d.sh, &d.fh.Size
	cc := &sh.ColorConfig
	return SequenceInfo{
		Codec:                   "AV1",
		ChromaFormat:            sh.ChromaFormat(),
		MaxWidth:                (sh.MaxFrameWidth + 1) &^ 1,
		MaxHeight:               (sh.MaxFrameHeight + 1) &^ 1,
		CodedWidth:              size.UpscaledWidth,
		CodedHeight:             size.FrameHeight,
		DisplayWidth:            size.RenderWidth,
		DisplayHeight:           size.RenderHeight,
		BitDepthLumaMinus8:      cc.BitDepth - 8,
		BitDepthChromaMinus8:    cc.BitDepth - 8,
		FrameRate:               sh.FrameRate(),
		ColorPrimaries:          cc.ColorPrimaries,
		TransferCharacteristics: cc.TransferCharacteristics,
		MatrixCoefficients:      cc.MatrixCoefficients,
		MinNumDecodeSurfaces:    MinNumDecodeSurfaces,
		MinNumDPBSlots:          MinNumDPBSlots,
		HasFilmGrain:            sh.FilmGrainParamsPresent,
	}
}

// signBiasMask bit i 置位表示参考 i 在当前帧之后
func signBiasMask(bias *[av1.TotalRefsPerFrame]int) (mask uint8) {
	for i := av1.LastFrame; i < av1.TotalRefsPerFrame; i++ {
		if bias[i] > 0 {
			mask |= 1 << uint(i)
		}
	}
	return
}

// beginPicture 必要时开始新序列，然后为当前帧分配缓冲并填充 PictureData
func (d *Decoder) beginPicture() (int, error) {
	reset := d.spsChanged || d.surfaces == 0
	if reset {
		info := d.sequenceInfo()
		n := d.client.BeginSequence(&info)
		if n <= 0 {
			return emptySlot, ErrBeginSequence
		}
		d.logger.Infof("begin sequence %dx%d, max %dx%d, %d surfaces",
			info.CodedWidth, info.CodedHeight, info.MaxWidth, info.MaxHeight, n)
		d.seqInfo = info
		d.surfaces = n
		d.spsChanged = false
	}

	id, err := d.pool.Acquire()
	if err != nil {
		return emptySlot, err
	}

	fh := &d.fh
	pd := &d.pd
	*pd = PictureData{
		PicIdx:            id,
		Buffer:            d.pool.Buffer(id),
		NeedsSessionReset: reset,
		IntraPic:          fh.FrameType == av1.KeyFrame,
		Sequence:          d.sh,
		Header:            fh,
		Bitstream:         d.frameData,
		NumTiles:          d.tiles.Count,
		TileOffsets:       d.tiles.Offsets[:d.tiles.Count],
		TileSizes:         d.tiles.Sizes[:d.tiles.Count],
		RefPicIdx:         d.dpb.picIdx(),
		GlobalMotion:      fh.GlobalMotion,
	}
	for i, idx := range fh.RefFrameIdx {
		pd.RefFrameIdx[i] = int(idx)
	}

	pd.SetupSlot = SlotInfo{
		FrameType:                fh.FrameType,
		OrderHint:                fh.OrderHint,
		SavedOrderHints:          fh.OrderHints,
		SignBiasMask:             signBiasMask(&fh.RefFrameSignBias),
		DisableFrameEndUpdateCdf: fh.DisableFrameEndUpdateCdf,
		SegmentationEnabled:      fh.Segmentation.Enabled,
	}
	for i := range d.refs.Frames {
		slot := &d.refs.Frames[i]
		pd.DPBSlots[i] = SlotInfo{
			FrameType:                slot.FrameType,
			OrderHint:                slot.OrderHint,
			SavedOrderHints:          slot.SavedOrderHints,
			SignBiasMask:             signBiasMask(&slot.SavedSignBias),
			DisableFrameEndUpdateCdf: slot.DisableFrameEndUpdateCdf,
			SegmentationEnabled:      slot.SegmentationEnabled,
		}
	}
	return id, nil
}

// endPicture 最后一个 tile group 解析完成，交给客户端解码
func (d *Decoder) endPicture() error {
	id, err := d.beginPicture()
	if err != nil {
		return fmt.Errorf("begin picture: %w", err)
	}
	frameNum := d.frameNum
	d.frameNum++

	skipped := !d.client.DecodePicture(&d.pd)
	if skipped {
		d.stats.AddSkipped()
		d.logger.Warnf("frame %d skipped by client", frameNum)
	} else {
		d.stats.AddDecoded()
	}
	if d.logger.LevelEnabled(xlog.DebugLevel) {
		d.logger.Debugf("frame %d: %s show %t hint %d refresh %#02x tiles %d buffer %d",
			frameNum, d.fh.FrameType, d.fh.ShowFrame, d.fh.OrderHint,
			d.fh.RefreshFrameFlags, d.tiles.Count, id)
	}

	// 参考帧更新
	d.refs.Update(&d.fh, d.sh)
	if err = d.dpb.update(d.fh.RefreshFrameFlags, id); err != nil {
		d.pool.Release(id)
		return err
	}

	if d.fh.ShowFrame && !skipped {
		// 引用转移给输出队列
		return d.queueOutput(id, d.fh.ShowableFrame)
	}
	d.pool.Release(id)
	return nil
}

// showExistingFrame 输出已解码的参考帧，不需要解码
func (d *Decoder) showExistingFrame() error {
	idx := int(d.fh.FrameToShowMapIdx)
	id := d.dpb.slot(idx)
	if id == emptySlot {
		return fmt.Errorf("%w: slot %d has no picture", av1.ErrRefUnavailable, idx)
	}
	d.frameNum++

	if d.fh.FrameType == av1.KeyFrame {
		// 重新显示关键帧，所有槽位都指向它
		d.refs.Update(&d.fh, d.sh)
		if err := d.dpb.update(d.fh.RefreshFrameFlags, id); err != nil {
			return err
		}
	}

	if err := d.pool.AddRef(id); err != nil {
		return err
	}
	return d.queueOutput(id, d.fh.ShowableFrame)
}

// queueOutput 入列输出队列，调用方的引用转移给队列
func (d *Decoder) queueOutput(id int, showable bool) error {
	e := &outputEntry{
		id:       id,
		showable: showable,
		pts:      d.pts.match(d.frameStart),
	}
	if err := d.output.push(e); err != nil {
		d.pool.Release(id)
		return err
	}
	return nil
}
