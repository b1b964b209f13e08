package raster

import "image"

// TilePlan is a row/column grid that splits one raster into tiles, each
// within a Format's dimension and pixel ceilings.
type TilePlan struct {
	Cols  int
	Rows  int
	TileW int
	TileH int
}

// Count returns the number of tiles in the plan.
func (p TilePlan) Count() int {
	return p.Cols * p.Rows
}

// Rect returns the pixel rectangle of the tile at (row, col), 0-based,
// clamped to the source bounds. Edge tiles may be smaller than TileW by
// TileH.
func (p TilePlan) Rect(row, col, width, height int) image.Rectangle {
	x0 := col * p.TileW
	y0 := row * p.TileH
	x1 := min(x0+p.TileW, width)
	y1 := min(y0+p.TileH, height)
	return image.Rect(x0, y0, x1, y1)
}

// PlanTiles computes the tile grid for a width by height raster under the
// Format's ceilings. Column and row counts start at the minimum forced by
// the dimension ceiling; while a tile still exceeds the pixel ceiling,
// the axis with the larger tile side gains one more division. The tile
// area shrinks strictly each round, so the loop terminates.
func PlanTiles(width, height int, f Format) TilePlan {
	if width <= 0 || height <= 0 {
		return TilePlan{Cols: 1, Rows: 1, TileW: width, TileH: height}
	}

	cols := ceilDiv(width, f.MaxDim)
	rows := ceilDiv(height, f.MaxDim)
	tileW := ceilDiv(width, cols)
	tileH := ceilDiv(height, rows)

	for int64(tileW)*int64(tileH) > f.MaxPixels {
		if tileW >= tileH {
			cols++
		} else {
			rows++
		}
		tileW = ceilDiv(width, cols)
		tileH = ceilDiv(height, rows)
	}

	return TilePlan{Cols: cols, Rows: rows, TileW: tileW, TileH: tileH}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
