// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package av1

import (
	"github.com/cnotch/av1parser/utils/bits"
)

// TileInfo tile_info()
type TileInfo struct {
	UniformTileSpacing  bool
	TileCols            int
	TileRows            int
	TileColsLog2        int
	TileRowsLog2        int
	MiColStarts         [MaxTileCols + 1]uint32
	MiRowStarts         [MaxTileRows + 1]uint32
	WidthInSbs          [MaxTileCols]uint32 // width_in_sbs_minus_1 + 1, also set for uniform spacing
	HeightInSbs         [MaxTileRows]uint32
	ContextUpdateTileID uint32
	TileSizeBytes       int // tile_size_bytes_minus_1 + 1
}

// NumTiles returns TileCols * TileRows.
func (ti *TileInfo) NumTiles() int { return ti.TileCols * ti.TileRows }

func (ti *TileInfo) decode(r *bits.Reader, sh *SequenceHeader, miCols, miRows uint32, chk *Checker) {
	*ti = TileInfo{}

	var sbCols, sbRows, sbShift int
	if sh.Use128x128Superblock {
		sbCols = int(miCols+31) >> 5
		sbRows = int(miRows+31) >> 5
		sbShift = 5
	} else {
		sbCols = int(miCols+15) >> 4
		sbRows = int(miRows+15) >> 4
		sbShift = 4
	}
	sbSize := sbShift + 2
	maxTileWidthSb := MaxTileWidth >> uint(sbSize)
	maxTileAreaSb := MaxTileArea >> uint(2*sbSize)
	minLog2TileCols := bits.TileLog2(maxTileWidthSb, sbCols)
	maxLog2TileCols := bits.TileLog2(1, min(sbCols, MaxTileCols))
	maxLog2TileRows := bits.TileLog2(1, min(sbRows, MaxTileRows))
	minLog2Tiles := max(minLog2TileCols, bits.TileLog2(maxTileAreaSb, sbRows*sbCols))

	ti.UniformTileSpacing = r.ReadBool()
	if ti.UniformTileSpacing {
		ti.TileColsLog2 = minLog2TileCols
		for ti.TileColsLog2 < maxLog2TileCols && r.ReadBool() {
			ti.TileColsLog2++
		}
		tileWidthSb := (sbCols + (1 << uint(ti.TileColsLog2)) - 1) >> uint(ti.TileColsLog2)
		ti.TileCols = uniformStarts(ti.MiColStarts[:], ti.WidthInSbs[:], sbCols, tileWidthSb, sbShift, miCols)

		minLog2TileRows := max(minLog2Tiles-ti.TileColsLog2, 0)
		ti.TileRowsLog2 = minLog2TileRows
		for ti.TileRowsLog2 < maxLog2TileRows && r.ReadBool() {
			ti.TileRowsLog2++
		}
		tileHeightSb := (sbRows + (1 << uint(ti.TileRowsLog2)) - 1) >> uint(ti.TileRowsLog2)
		ti.TileRows = uniformStarts(ti.MiRowStarts[:], ti.HeightInSbs[:], sbRows, tileHeightSb, sbShift, miRows)
	} else {
		widestTileSb := 0
		startSb, i := 0, 0
		for ; startSb < sbCols; i++ {
			if i >= MaxTileCols {
				throwf(ErrCorrupt, "more than %d tile columns", MaxTileCols)
			}
			ti.MiColStarts[i] = uint32(startSb << uint(sbShift))
			maxWidth := min(sbCols-startSb, maxTileWidthSb)
			sizeSb := r.ReadNs(maxWidth) + 1
			ti.WidthInSbs[i] = uint32(sizeSb)
			widestTileSb = max(sizeSb, widestTileSb)
			startSb += sizeSb
		}
		ti.MiColStarts[i] = miCols
		ti.TileCols = i
		ti.TileColsLog2 = bits.TileLog2(1, ti.TileCols)

		if minLog2Tiles > 0 {
			maxTileAreaSb = (sbRows * sbCols) >> uint(minLog2Tiles+1)
		} else {
			maxTileAreaSb = sbRows * sbCols
		}
		maxTileHeightSb := max(maxTileAreaSb/widestTileSb, 1)

		startSb, i = 0, 0
		for ; startSb < sbRows; i++ {
			if i >= MaxTileRows {
				throwf(ErrCorrupt, "more than %d tile rows", MaxTileRows)
			}
			ti.MiRowStarts[i] = uint32(startSb << uint(sbShift))
			maxHeight := min(sbRows-startSb, maxTileHeightSb)
			sizeSb := r.ReadNs(maxHeight) + 1
			ti.HeightInSbs[i] = uint32(sizeSb)
			startSb += sizeSb
		}
		ti.MiRowStarts[i] = miRows
		ti.TileRows = i
		ti.TileRowsLog2 = bits.TileLog2(1, ti.TileRows)
	}

	if ti.NumTiles() > MaxTiles {
		throwf(ErrUnsupported, "%d tiles", ti.NumTiles())
	}

	if ti.TileColsLog2 > 0 || ti.TileRowsLog2 > 0 {
		ti.ContextUpdateTileID = r.ReadUint32(ti.TileRowsLog2 + ti.TileColsLog2)
		if int(ti.ContextUpdateTileID) >= ti.NumTiles() {
			chk.violation("context_update_tile_id %d >= %d tiles", ti.ContextUpdateTileID, ti.NumTiles())
		}
		ti.TileSizeBytes = r.ReadInt(2) + 1
	} else {
		ti.TileSizeBytes = 4
	}
}

// uniformStarts fills the tile start positions for uniform spacing and
// returns the tile count.
func uniformStarts(starts, sizes []uint32, sbCount, tileSizeSb, sbShift int, miCount uint32) int {
	i := 0
	for startSb := 0; startSb < sbCount; startSb += tileSizeSb {
		if i >= len(sizes) {
			throwf(ErrCorrupt, "more than %d uniform tiles", len(sizes))
		}
		starts[i] = uint32(startSb << uint(sbShift))
		sizes[i] = uint32(min(tileSizeSb, sbCount-startSb))
		i++
	}
	starts[i] = miCount
	return i
}
