package compositor

import (
	"fmt"

	"github.com/dunamismax/rasterflow/internal/geometry"
	"github.com/dunamismax/rasterflow/internal/raster"
)

// CollageLayout describes a grid of equally sized cells. Tiles fill the grid
// row by row and are fitted into their cell without distortion.
type CollageLayout struct {
	Columns    int
	CellWidth  int
	CellHeight int
	Gap        int
	Background raster.Color
}

// Size returns the canvas size needed for n tiles.
func (l CollageLayout) Size(n int) (w, h int) {
	rows := (n + l.Columns - 1) / l.Columns
	cols := min(n, l.Columns)
	w = cols*l.CellWidth + (cols+1)*l.Gap
	h = rows*l.CellHeight + (rows+1)*l.Gap
	return w, h
}

func Collage(tiles []raster.Buffer, l CollageLayout) (raster.Buffer, error) {
	if len(tiles) == 0 {
		return raster.Buffer{}, fmt.Errorf("%w: collage needs at least one tile", raster.ErrInvalidParameter)
	}
	if l.Columns < 1 || l.CellWidth < 1 || l.CellHeight < 1 || l.Gap < 0 {
		return raster.Buffer{}, fmt.Errorf("%w: invalid collage layout %+v", raster.ErrInvalidParameter, l)
	}

	w, h := l.Size(len(tiles))
	canvas, err := raster.Filled(w, h, l.Background)
	if err != nil {
		return raster.Buffer{}, err
	}
	pix := canvas.Clone()

	for i, tile := range tiles {
		cell, err := geometry.Resize(tile, l.CellWidth, l.CellHeight, geometry.FitPreserveAspect)
		if err != nil {
			return raster.Buffer{}, fmt.Errorf("tile %d: %w", i, err)
		}
		ox := l.Gap + (i%l.Columns)*(l.CellWidth+l.Gap)
		oy := l.Gap + (i/l.Columns)*(l.CellHeight+l.Gap)

		for y := 0; y < l.CellHeight; y++ {
			for x := 0; x < l.CellWidth; x++ {
				c := cell.At(x, y)
				if c.A == 0 {
					continue
				}
				o := canvas.Offset(ox+x, oy+y)
				blendOver(pix[o:o+4], c, float64(c.A)/255)
			}
		}
	}
	return raster.New(w, h, pix)
}
