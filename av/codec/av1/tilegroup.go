// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package av1

import (
	"fmt"

	"github.com/cnotch/av1parser/utils/bits"
)

// TileList 一帧所有 tile 在帧码流缓冲中的位置
type TileList struct {
	Offsets [MaxTiles]uint32
	Sizes   [MaxTiles]uint32
	Count   int
}

// Reset forgets the tiles of the previous frame.
func (tl *TileList) Reset() { tl.Count = 0 }

// TileGroup tile_group_obu() header
type TileGroup struct {
	StartAndEndPresent bool
	Start              int // tg_start
	End                int // tg_end
}

// Decode parses a tile group payload and appends its tiles to tiles.
// baseOffset is the position of data inside the frame bitstream buffer.
// isFrame is set when the tile group is the tail of an OBU_FRAME. It
// returns true when the group holds the last tile of the frame.
func (tg *TileGroup) Decode(data []byte, ti *TileInfo, isFrame bool, baseOffset uint32, tiles *TileList) (last bool, err error) {
	defer catch("tile group", &err)

	*tg = TileGroup{}
	numTiles := ti.NumTiles()
	if numTiles == 0 {
		return false, fmt.Errorf("tile group: %w: no tile info", ErrCorrupt)
	}

	r := bits.NewReader(data)
	if numTiles > 1 {
		tg.StartAndEndPresent = r.ReadBool()
	}
	if isFrame && tg.StartAndEndPresent {
		throwf(ErrCorrupt, "tile_start_and_end_present_flag set in OBU_FRAME")
	}

	if numTiles == 1 || !tg.StartAndEndPresent {
		tg.Start = 0
		tg.End = numTiles - 1
	} else {
		n := ti.TileColsLog2 + ti.TileRowsLog2
		tg.Start = r.ReadInt(n)
		tg.End = r.ReadInt(n)
	}
	if tg.End < tg.Start || tg.End >= numTiles {
		throwf(ErrCorrupt, "tile group %d..%d of %d tiles", tg.Start, tg.End, numTiles)
	}
	if tg.Start != tiles.Count {
		throwf(ErrCorrupt, "tile group starts at %d, %d tiles seen", tg.Start, tiles.Count)
	}

	r.ByteAlign()
	for tileNum := tg.Start; tileNum <= tg.End; tileNum++ {
		if tiles.Count >= MaxTiles {
			throwf(ErrUnsupported, "more than %d tiles", MaxTiles)
		}

		var size int
		if tileNum == tg.End {
			size = len(data) - r.Offset()>>3
			if size <= 0 {
				throw(fmt.Errorf("tile %d: %w", tileNum, ErrTruncated))
			}
		} else {
			size = int(r.ReadLe(ti.TileSizeBytes)) + 1
		}

		tiles.Offsets[tiles.Count] = baseOffset + uint32(r.Offset()>>3)
		tiles.Sizes[tiles.Count] = uint32(size)
		tiles.Count++
		r.Skip(size * 8)
	}

	return tg.End == numTiles-1, nil
}
