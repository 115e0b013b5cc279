// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package av1

import (
	"github.com/cnotch/av1parser/utils/bits"
)

// QuantizationParams quantization_params()
type QuantizationParams struct {
	BaseQIdx     uint8
	DeltaQYDc    int8
	DiffUvDelta  bool
	DeltaQUDc    int8
	DeltaQUAc    int8
	DeltaQVDc    int8
	DeltaQVAc    int8
	UsingQmatrix bool
	QmY          uint8
	QmU          uint8
	QmV          uint8
}

func (q *QuantizationParams) decode(r *bits.Reader, cc *ColorConfig) {
	*q = QuantizationParams{}
	q.BaseQIdx = r.ReadUint8(8)
	q.DeltaQYDc = int8(r.ReadDeltaQ())

	if cc.NumPlanes() > 1 {
		if cc.SeparateUvDeltaQ {
			q.DiffUvDelta = r.ReadBool()
		}
		q.DeltaQUDc = int8(r.ReadDeltaQ())
		q.DeltaQUAc = int8(r.ReadDeltaQ())
		if q.DiffUvDelta {
			q.DeltaQVDc = int8(r.ReadDeltaQ())
			q.DeltaQVAc = int8(r.ReadDeltaQ())
		} else {
			q.DeltaQVDc = q.DeltaQUDc
			q.DeltaQVAc = q.DeltaQUAc
		}
	}

	q.UsingQmatrix = r.ReadBool()
	if q.UsingQmatrix {
		q.QmY = r.ReadUint8(4)
		q.QmU = r.ReadUint8(4)
		if !cc.SeparateUvDeltaQ {
			q.QmV = q.QmU
		} else {
			q.QmV = r.ReadUint8(4)
		}
	}
}

// QIndex returns get_qindex(1, segmentID): the base index adjusted by the
// segment's alternative quantizer and clamped to [0, 255].
func (q *QuantizationParams) QIndex(seg *SegmentationParams, segmentID int) int {
	qindex := int(q.BaseQIdx)
	if seg.FeatureActive(segmentID, SegLvlAltQ) {
		qindex += int(seg.FeatureData[segmentID][SegLvlAltQ])
	}
	return clamp(qindex, 0, 255)
}

// SegmentationFeatures 分段特征表，随参考帧保存
type SegmentationFeatures struct {
	FeatureEnabled [MaxSegments][SegLvlMax]bool
	FeatureData    [MaxSegments][SegLvlMax]int16
}

// SegmentationParams segmentation_params()
type SegmentationParams struct {
	Enabled        bool
	UpdateMap      bool
	TemporalUpdate bool
	UpdateData     bool
	SegmentationFeatures

	// derived
	SegIDPreSkip    bool
	LastActiveSegID uint8
}

// FeatureActive seg_feature_active_idx()
func (s *SegmentationParams) FeatureActive(segmentID, feature int) bool {
	return s.Enabled && s.FeatureEnabled[segmentID][feature]
}

// decode parses the segmentation syntax. prev holds the features of the
// primary reference frame, nil when primary_ref_frame is none.
func (s *SegmentationParams) decode(r *bits.Reader, prev *SegmentationFeatures, chk *Checker) {
	*s = SegmentationParams{}
	s.Enabled = r.ReadBool()

	if s.Enabled {
		if prev == nil {
			s.UpdateMap = true
			s.TemporalUpdate = false
			s.UpdateData = true
		} else {
			s.UpdateMap = r.ReadBool()
			if s.UpdateMap {
				s.TemporalUpdate = r.ReadBool()
			}
			s.UpdateData = r.ReadBool()
		}

		if s.UpdateData {
			s.decodeFeatures(r, chk)
		} else if prev != nil {
			s.SegmentationFeatures = *prev
		}
	}

	for i := 0; i < MaxSegments; i++ {
		for j := 0; j < SegLvlMax; j++ {
			if s.FeatureEnabled[i][j] {
				s.LastActiveSegID = uint8(i)
				if j >= SegLvlRefFrame {
					s.SegIDPreSkip = true
				}
			}
		}
	}
}

func (s *SegmentationParams) decodeFeatures(r *bits.Reader, chk *Checker) {
	for i := 0; i < MaxSegments; i++ {
		for j := 0; j < SegLvlMax; j++ {
			enabled := r.ReadBool()
			s.FeatureEnabled[i][j] = enabled
			if !enabled {
				s.FeatureData[i][j] = 0
				continue
			}

			n := segmentationFeatureBits[j]
			limit := segmentationFeatureMax[j]
			var v, clipped int
			if segmentationFeatureSigned[j] {
				v = r.ReadSu(1 + n)
				clipped = clamp(v, -limit, limit)
			} else {
				v = r.ReadInt(n)
				clipped = clamp(v, 0, limit)
			}
			if v != clipped {
				chk.violation("segment %d feature %d value %d out of range", i, j, v)
			}
			s.FeatureData[i][j] = int16(clipped)
		}
	}
}

// DeltaParams delta_q_params() and delta_lf_params()
type DeltaParams struct {
	DeltaQPresent  bool
	DeltaQRes      uint8 // log2
	DeltaLfPresent bool
	DeltaLfRes     uint8 // log2
	DeltaLfMulti   bool
}

func (d *DeltaParams) decode(r *bits.Reader, baseQIdx uint8, allowIntrabc bool) {
	*d = DeltaParams{}
	if baseQIdx > 0 {
		d.DeltaQPresent = r.ReadBool()
	}
	if !d.DeltaQPresent {
		return
	}
	d.DeltaQRes = r.ReadUint8(2)

	if !allowIntrabc {
		d.DeltaLfPresent = r.ReadBool()
	}
	if d.DeltaLfPresent {
		d.DeltaLfRes = r.ReadUint8(2)
		d.DeltaLfMulti = r.ReadBool()
	}
}

// Lossless 无损标志
type Lossless struct {
	Segments      [MaxSegments]bool // LosslessArray
	CodedLossless bool
	AllLossless   bool
}

// ComputeLossless derives the per segment lossless flags, CodedLossless and
// AllLossless. It only reads its arguments.
func ComputeLossless(q *QuantizationParams, seg *SegmentationParams, frameWidth, upscaledWidth uint32) Lossless {
	var l Lossless
	l.CodedLossless = true
	for id := 0; id < MaxSegments; id++ {
		qindex := q.QIndex(seg, id)
		l.Segments[id] = qindex == 0 &&
			q.DeltaQYDc == 0 &&
			q.DeltaQUAc == 0 && q.DeltaQUDc == 0 &&
			q.DeltaQVAc == 0 && q.DeltaQVDc == 0
		if !l.Segments[id] {
			l.CodedLossless = false
		}
	}
	l.AllLossless = l.CodedLossless && frameWidth == upscaledWidth
	return l
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
