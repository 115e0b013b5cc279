// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package av1test builds small AV1 OBU streams for tests.
//
// Only the syntax the parser tests need is covered: no timing info, no
// screen content tools, no segmentation, single operating point unless
// set, frame size equal to the sequence maximum unless overridden.
package av1test

import (
	"github.com/cnotch/av1parser/av/codec/av1"
	"github.com/cnotch/av1parser/utils/bits"
	"github.com/pion/rtp/codecs/av1/obu"
)

// Frame id widths written when Sequence.FrameIDNumbers is set.
const (
	DeltaFrameIDLength = 7
	FrameIDLength      = 15
)

// Sequence describes a sequence header.
type Sequence struct {
	Profile           uint8
	Width             uint32
	Height            uint32
	OrderHintBits     int // 0 disables order hints
	FrameIDNumbers    bool
	EnableSuperres    bool
	EnableCdef        bool
	EnableRestoration bool
	FilmGrain         bool
	ReducedStill      bool
	OperatingPoints   []uint16 // operating_point_idc values, one point with idc 0 when empty
}

// Payload returns the sequence_header_obu() payload.
func (s *Sequence) Payload() []byte {
	w := bits.NewWriter()
	w.WriteBits(uint64(s.Profile), 3)
	w.WriteBool(s.ReducedStill) // still_picture
	w.WriteBool(s.ReducedStill)

	if s.ReducedStill {
		w.WriteBits(0, 5) // seq_level_idx
	} else {
		w.WriteBool(false) // timing_info_present_flag
		w.WriteBool(false) // initial_display_delay_present_flag
		ops := s.OperatingPoints
		if len(ops) == 0 {
			ops = []uint16{0}
		}
		w.WriteBits(uint64(len(ops)-1), 5)
		for _, idc := range ops {
			w.WriteBits(uint64(idc), 12)
			w.WriteBits(8, 5) // seq_level_idx 4.0
			w.WriteBool(false)
		}
	}

	wb := bitLen(s.Width - 1)
	hb := bitLen(s.Height - 1)
	w.WriteBits(uint64(wb-1), 4)
	w.WriteBits(uint64(hb-1), 4)
	w.WriteBits(uint64(s.Width-1), wb)
	w.WriteBits(uint64(s.Height-1), hb)

	if !s.ReducedStill {
		w.WriteBool(s.FrameIDNumbers)
	}
	if s.FrameIDNumbers {
		w.WriteBits(DeltaFrameIDLength-2, 4)
		w.WriteBits(FrameIDLength-DeltaFrameIDLength-1, 3)
	}

	w.WriteBool(false) // use_128x128_superblock
	w.WriteBool(false) // enable_filter_intra
	w.WriteBool(false) // enable_intra_edge_filter

	if !s.ReducedStill {
		w.WriteBool(false) // enable_interintra_compound
		w.WriteBool(false) // enable_masked_compound
		w.WriteBool(false) // enable_warped_motion
		w.WriteBool(false) // enable_dual_filter
		w.WriteBool(s.OrderHintBits > 0)
		if s.OrderHintBits > 0 {
			w.WriteBool(false) // enable_jnt_comp
			w.WriteBool(false) // enable_ref_frame_mvs
		}
		w.WriteBool(false) // seq_choose_screen_content_tools
		w.WriteBool(false) // seq_force_screen_content_tools
		if s.OrderHintBits > 0 {
			w.WriteBits(uint64(s.OrderHintBits-1), 3)
		}
	}

	w.WriteBool(s.EnableSuperres)
	w.WriteBool(s.EnableCdef)
	w.WriteBool(s.EnableRestoration)

	// color_config(): 8 bit 4:2:0, no description
	w.WriteBool(false) // high_bitdepth
	if s.Profile != 1 {
		w.WriteBool(false) // mono_chrome
	}
	w.WriteBool(false) // color_description_present_flag
	w.WriteBool(false) // color_range
	if s.Profile == 0 {
		w.WriteBits(0, 2) // chroma_sample_position
	}
	w.WriteBool(false) // separate_uv_delta_q

	w.WriteBool(s.FilmGrain)
	w.TrailingBits()
	return w.Bytes()
}

// OBU returns the sequence header as a low overhead OBU.
func (s *Sequence) OBU() []byte {
	return OBU(av1.OBUSequenceHeader, s.Payload())
}

// FilmGrain film_grain_params() written by Frame.
type FilmGrain struct {
	Apply       bool
	Seed        uint16
	UpdateGrain bool // only coded for inter frames, implied otherwise
	RefIdx      uint8
	ScalingY    uint8 // scaling of the single luma point
}

// Frame describes one frame header and its tiles.
type Frame struct {
	ShowExisting bool
	FrameToShow  uint8

	Type           av1.FrameType
	Show           bool
	Showable       bool // only coded when !Show
	ErrorResilient bool // only coded when not implied
	FrameID        uint32
	DisplayFrameID uint32
	OrderHint      uint8
	PrimaryRef     uint8 // coded for non intra, non error resilient frames
	Refresh        uint8 // coded unless implied
	RefOrderHints  [av1.NumRefFrames]uint8
	SizeOverride   bool
	Width, Height  uint32

	// RenderWidth and RenderHeight are coded when non zero
	RenderWidth, RenderHeight uint32

	ShortSignaling  bool
	LastIdx         uint8
	GoldIdx         uint8
	RefFrameIdx     [av1.RefsPerFrame]uint8
	DeltaFrameIDs   [av1.RefsPerFrame]uint32 // delta_frame_id_minus_1 + 1
	BaseQIdx        uint8
	ReferenceSelect bool
	SkipModeAllowed bool // the writer cannot derive it
	SkipModePresent bool

	TileColsLog2 int
	TileRowsLog2 int
	Tiles        [][]byte // filled with default tiles up to the tile count

	FilmGrain FilmGrain
}

func (f *Frame) frameIsIntra() bool {
	return f.Type == av1.KeyFrame || f.Type == av1.IntraOnlyFrame
}

func (f *Frame) refreshImplied() bool {
	return f.Type == av1.SwitchFrame || (f.Type == av1.KeyFrame && f.Show)
}

func (f *Frame) refresh() uint8 {
	if f.refreshImplied() {
		return 0xFF
	}
	return f.Refresh
}

func (f *Frame) errorResilient() bool {
	return f.refreshImplied() || f.ErrorResilient
}

func (f *Frame) size(s *Sequence) (uint32, uint32) {
	if f.SizeOverride || f.Type == av1.SwitchFrame {
		return f.Width, f.Height
	}
	return s.Width, s.Height
}

// HeaderPayload returns a frame_header_obu() payload.
func (f *Frame) HeaderPayload(s *Sequence) []byte {
	w := bits.NewWriter()
	f.writeHeader(w, s)
	w.TrailingBits()
	return w.Bytes()
}

// FramePayload returns a frame_obu() payload: the header and one tile group
// holding every tile.
func (f *Frame) FramePayload(s *Sequence) []byte {
	w := bits.NewWriter()
	f.writeHeader(w, s)
	w.ByteAlign()
	f.writeTileGroup(w, s, 0, -1, false)
	return w.Bytes()
}

// TileGroupPayload returns a tile_group_obu() payload for tiles start..end.
func (f *Frame) TileGroupPayload(s *Sequence, start, end int) []byte {
	w := bits.NewWriter()
	f.writeTileGroup(w, s, start, end, true)
	return w.Bytes()
}

// FrameOBU returns FramePayload wrapped in an OBU_FRAME.
func (f *Frame) FrameOBU(s *Sequence) []byte {
	return OBU(av1.OBUFrame, f.FramePayload(s))
}

// HeaderOBU returns HeaderPayload wrapped in an OBU_FRAME_HEADER.
func (f *Frame) HeaderOBU(s *Sequence) []byte {
	return OBU(av1.OBUFrameHeader, f.HeaderPayload(s))
}

// NumTiles returns the tile count the frame header describes.
func (f *Frame) NumTiles(s *Sequence) int {
	g := f.tileGeometry(s)
	return g.cols * g.rows
}

func (f *Frame) writeHeader(w *bits.Writer, s *Sequence) {
	if s.ReducedStill {
		f.Type = av1.KeyFrame
		f.Show = true
	} else {
		w.WriteBool(f.ShowExisting)
		if f.ShowExisting {
			w.WriteBits(uint64(f.FrameToShow), 3)
			if s.FrameIDNumbers {
				w.WriteBits(uint64(f.DisplayFrameID), FrameIDLength)
			}
			return
		}

		w.WriteBits(uint64(f.Type), 2)
		w.WriteBool(f.Show)
		if !f.Show {
			w.WriteBool(f.Showable)
		}
		if !f.refreshImplied() {
			w.WriteBool(f.ErrorResilient)
		}
	}

	w.WriteBool(false) // disable_cdf_update
	if s.ReducedStill {
		w.WriteBool(false) // allow_screen_content_tools, selected per frame
	}
	if s.FrameIDNumbers {
		w.WriteBits(uint64(f.FrameID), FrameIDLength)
	}
	if f.Type != av1.SwitchFrame && !s.ReducedStill {
		w.WriteBool(f.SizeOverride)
	}
	w.WriteBits(uint64(f.OrderHint), s.OrderHintBits)
	if !f.frameIsIntra() && !f.errorResilient() {
		w.WriteBits(uint64(f.PrimaryRef), 3)
	}

	if !f.refreshImplied() {
		w.WriteBits(uint64(f.Refresh), 8)
	}
	if (!f.frameIsIntra() || f.refresh() != 0xFF) && f.errorResilient() && s.OrderHintBits > 0 {
		for _, hint := range f.RefOrderHints {
			w.WriteBits(uint64(hint), s.OrderHintBits)
		}
	}

	if f.frameIsIntra() {
		f.writeFrameSize(w, s)
	} else {
		if s.OrderHintBits > 0 {
			w.WriteBool(f.ShortSignaling)
		}
		if f.ShortSignaling {
			w.WriteBits(uint64(f.LastIdx), 3)
			w.WriteBits(uint64(f.GoldIdx), 3)
		}
		for i := 0; i < av1.RefsPerFrame; i++ {
			if !f.ShortSignaling {
				w.WriteBits(uint64(f.RefFrameIdx[i]), 3)
			}
			if s.FrameIDNumbers {
				w.WriteBits(uint64(f.DeltaFrameIDs[i]-1), DeltaFrameIDLength)
			}
		}
		if f.SizeOverride && !f.errorResilient() {
			w.WriteBool(false) // found_ref for every reference
			for i := 1; i < av1.RefsPerFrame; i++ {
				w.WriteBool(false)
			}
		}
		f.writeFrameSize(w, s)
		w.WriteBool(false) // allow_high_precision_mv
		w.WriteBool(true)  // is_filter_switchable
		w.WriteBool(false) // is_motion_mode_switchable
	}

	if !s.ReducedStill {
		w.WriteBool(false) // disable_frame_end_update_cdf
	}

	f.writeTileInfo(w, s)

	// quantization_params()
	w.WriteBits(uint64(f.BaseQIdx), 8)
	w.WriteBool(false) // DeltaQYDc
	w.WriteBool(false) // DeltaQUDc
	w.WriteBool(false) // DeltaQUAc
	w.WriteBool(false) // using_qmatrix

	w.WriteBool(false) // segmentation_enabled
	if f.BaseQIdx > 0 {
		w.WriteBool(false) // delta_q_present
	}

	codedLossless := f.BaseQIdx == 0
	if !codedLossless {
		w.WriteBits(0, 6) // loop_filter_level[0]
		w.WriteBits(0, 6) // loop_filter_level[1]
		w.WriteBits(0, 3) // loop_filter_sharpness
		w.WriteBool(false)
		if s.EnableCdef {
			w.WriteBits(0, 2) // cdef_damping_minus_3
			w.WriteBits(0, 2) // cdef_bits
			w.WriteBits(0, 4)
			w.WriteBits(0, 2)
			w.WriteBits(0, 4)
			w.WriteBits(0, 2)
		}
		if s.EnableRestoration {
			w.WriteBits(0, 6) // lr_type of three planes
		}
		w.WriteBool(false) // tx_mode_select
	}

	if !f.frameIsIntra() {
		w.WriteBool(f.ReferenceSelect)
		if f.ReferenceSelect && s.OrderHintBits > 0 && f.SkipModeAllowed {
			w.WriteBool(f.SkipModePresent)
		}
	}
	w.WriteBool(false) // reduced_tx_set

	if !f.frameIsIntra() {
		w.WriteBits(0, av1.RefsPerFrame) // is_global
	}

	f.writeFilmGrain(w, s)
}

func (f *Frame) writeFrameSize(w *bits.Writer, s *Sequence) {
	if f.SizeOverride || f.Type == av1.SwitchFrame {
		w.WriteBits(uint64(f.Width-1), bitLen(s.Width-1))
		w.WriteBits(uint64(f.Height-1), bitLen(s.Height-1))
	}
	if s.EnableSuperres {
		w.WriteBool(false) // use_superres
	}
	render := f.RenderWidth > 0 && f.RenderHeight > 0
	w.WriteBool(render) // render_and_frame_size_different
	if render {
		w.WriteBits(uint64(f.RenderWidth-1), 16)
		w.WriteBits(uint64(f.RenderHeight-1), 16)
	}
}

type tileGeometry struct {
	sbCols, sbRows     int
	maxColsLog2        int
	minColsLog2        int
	maxRowsLog2        int
	minTilesLog2       int
	colsLog2, rowsLog2 int
	cols, rows         int
}

func (f *Frame) tileGeometry(s *Sequence) (g tileGeometry) {
	width, height := f.size(s)
	miCols := 2 * ((int(width) + 7) >> 3)
	miRows := 2 * ((int(height) + 7) >> 3)
	g.sbCols = (miCols + 15) >> 4
	g.sbRows = (miRows + 15) >> 4
	g.minColsLog2 = bits.TileLog2(av1.MaxTileWidth>>6, g.sbCols)
	g.maxColsLog2 = bits.TileLog2(1, min(g.sbCols, av1.MaxTileCols))
	g.maxRowsLog2 = bits.TileLog2(1, min(g.sbRows, av1.MaxTileRows))
	g.minTilesLog2 = max(g.minColsLog2, bits.TileLog2(av1.MaxTileArea>>12, g.sbRows*g.sbCols))

	g.colsLog2 = max(g.minColsLog2, min(f.TileColsLog2, g.maxColsLog2))
	minRowsLog2 := max(g.minTilesLog2-g.colsLog2, 0)
	g.rowsLog2 = max(minRowsLog2, min(f.TileRowsLog2, g.maxRowsLog2))

	tileWidth := (g.sbCols + (1 << uint(g.colsLog2)) - 1) >> uint(g.colsLog2)
	tileHeight := (g.sbRows + (1 << uint(g.rowsLog2)) - 1) >> uint(g.rowsLog2)
	g.cols = (g.sbCols + tileWidth - 1) / tileWidth
	g.rows = (g.sbRows + tileHeight - 1) / tileHeight
	return
}

func (f *Frame) writeTileInfo(w *bits.Writer, s *Sequence) {
	g := f.tileGeometry(s)
	w.WriteBool(true) // uniform_tile_spacing_flag

	writeIncrements(w, g.minColsLog2, g.colsLog2, g.maxColsLog2)
	writeIncrements(w, max(g.minTilesLog2-g.colsLog2, 0), g.rowsLog2, g.maxRowsLog2)

	if g.colsLog2 > 0 || g.rowsLog2 > 0 {
		w.WriteBits(0, g.colsLog2+g.rowsLog2) // context_update_tile_id
		w.WriteBits(3, 2)                     // tile_size_bytes_minus_1
	}
}

// writeIncrements writes the increment_tile_*_log2 flags moving from lo to v.
func writeIncrements(w *bits.Writer, lo, v, hi int) {
	for log2 := lo; log2 < hi; log2++ {
		inc := log2 < v
		w.WriteBool(inc)
		if !inc {
			break
		}
	}
}

func (f *Frame) writeFilmGrain(w *bits.Writer, s *Sequence) {
	if !s.FilmGrain || (!f.Show && !f.Showable) {
		return
	}
	fg := &f.FilmGrain
	w.WriteBool(fg.Apply)
	if !fg.Apply {
		return
	}
	w.WriteBits(uint64(fg.Seed), 16)
	update := true
	if f.Type == av1.InterFrame {
		update = fg.UpdateGrain
		w.WriteBool(update)
	}
	if !update {
		w.WriteBits(uint64(fg.RefIdx), 3)
		return
	}

	w.WriteBits(1, 4)                   // num_y_points
	w.WriteBits(0, 8)                   // point_y_value
	w.WriteBits(uint64(fg.ScalingY), 8) // point_y_scaling
	w.WriteBool(false)                  // chroma_scaling_from_luma
	w.WriteBits(0, 4)                   // num_cb_points
	w.WriteBits(0, 4)                   // num_cr_points
	w.WriteBits(0, 2)                   // grain_scaling_minus_8
	w.WriteBits(0, 2)                   // ar_coeff_lag
	w.WriteBits(0, 2)                   // ar_coeff_shift_minus_6
	w.WriteBits(0, 2)                   // grain_scale_shift
	w.WriteBool(false)                  // overlap_flag
	w.WriteBool(false)                  // clip_to_restricted_range
}

func (f *Frame) tiles(n int) [][]byte {
	tiles := make([][]byte, n)
	for i := range tiles {
		if i < len(f.Tiles) {
			tiles[i] = f.Tiles[i]
		} else {
			tiles[i] = []byte{byte(i), 0xA5, 0x5A, byte(i)}
		}
	}
	return tiles
}

// writeTileGroup writes the tile group header and tiles start..end, end < 0
// meaning the last tile. explicit selects tile_start_and_end_present_flag.
func (f *Frame) writeTileGroup(w *bits.Writer, s *Sequence, start, end int, explicit bool) {
	g := f.tileGeometry(s)
	numTiles := g.cols * g.rows
	if end < 0 {
		end = numTiles - 1
	}
	if numTiles > 1 {
		w.WriteBool(explicit)
		if explicit {
			n := g.colsLog2 + g.rowsLog2
			w.WriteBits(uint64(start), n)
			w.WriteBits(uint64(end), n)
		}
	}
	w.ByteAlign()

	tiles := f.tiles(numTiles)
	for i := start; i <= end; i++ {
		if i != end {
			w.WriteLe(uint32(len(tiles[i])-1), 4)
		}
		for _, b := range tiles[i] {
			w.WriteBits(uint64(b), 8)
		}
	}
}

// TemporalDelimiter returns an OBU_TEMPORAL_DELIMITER.
func TemporalDelimiter() []byte {
	return OBU(av1.OBUTemporalDelimiter, nil)
}

// OBU wraps payload in a low overhead OBU with a size field.
func OBU(typ obu.Type, payload []byte) []byte {
	return av1.WriteOBU(av1.OBUHeader{Type: typ, HasSizeField: true}, payload, false)
}

// Join concatenates OBUs.
func Join(units ...[]byte) []byte {
	var out []byte
	for _, u := range units {
		out = append(out, u...)
	}
	return out
}

func bitLen(v uint32) int {
	n := 1
	for v >>= 1; v > 0; v >>= 1 {
		n++
	}
	return n
}
