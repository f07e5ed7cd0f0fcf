// Package downsample reduces full-resolution frames to a small grid of cell
// averages (box filter).
package downsample

import (
	"errors"
	"fmt"

	"github.com/coreman2200/arcaluminis/internal/capture"
	"github.com/coreman2200/arcaluminis/internal/zone"
)

// SmallFrame is a Cols x Rows grid of average colors, row-major.
type SmallFrame struct {
	Cols  int
	Rows  int
	Cells []zone.Color
	Seq   uint64
}

func (s *SmallFrame) At(col, row int) zone.Color { return s.Cells[row*s.Cols+col] }

var ErrNoFrame = errors.New("downsample: no frame")

// Downsample averages f into a cols x rows grid. Pixel (x,y) belongs to cell
// (x*cols/w, y*rows/h), so every pixel lands in exactly one cell even when the
// frame size is not a multiple of the grid; cells differ in size by at most one
// pixel per axis. A grid larger than the frame is clamped to the frame size.
// The result depends only on the pixels and the grid, so it is bit-identical
// across calls.
func Downsample(f *capture.Frame, cols, rows int) (*SmallFrame, error) {
	if f == nil || f.Image == nil {
		return nil, ErrNoFrame
	}
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("downsample: grid must be positive, got %dx%d", cols, rows)
	}
	img := f.Image
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("downsample: empty frame %dx%d", w, h)
	}
	if cols > w {
		cols = w
	}
	if rows > h {
		rows = h
	}

	type acc struct{ r, g, b, n uint64 }
	sums := make([]acc, cols*rows)

	for y := 0; y < h; y++ {
		cy := y * rows / h
		row := sums[cy*cols : (cy+1)*cols]
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		pix := img.Pix[off : off+w*4]
		for x := 0; x < w; x++ {
			a := &row[x*cols/w]
			p := pix[x*4 : x*4+4]
			a.r += uint64(p[0])
			a.g += uint64(p[1])
			a.b += uint64(p[2])
			a.n++
		}
	}

	out := &SmallFrame{Cols: cols, Rows: rows, Cells: make([]zone.Color, len(sums)), Seq: f.Seq}
	for i, a := range sums {
		d := float64(a.n) * 255
		out.Cells[i] = zone.Color{R: float64(a.r) / d, G: float64(a.g) / d, B: float64(a.b) / d}
	}
	return out, nil
}
