package zone

import (
	"errors"
	"fmt"
	"math"
)

// Rect is a region in normalized screen coordinates; (0,0) is top-left.
type Rect struct {
	MinX float64 `yaml:"min_x" json:"min_x"`
	MinY float64 `yaml:"min_y" json:"min_y"`
	MaxX float64 `yaml:"max_x" json:"max_x"`
	MaxY float64 `yaml:"max_y" json:"max_y"`
}

func (r Rect) String() string {
	return fmt.Sprintf("[%.3f,%.3f]-[%.3f,%.3f]", r.MinX, r.MinY, r.MaxX, r.MaxY)
}

// Layout maps screen regions to keyboard zones. Zone i drives hardware zone i.
type Layout struct {
	Zones []Rect
}

var ErrEmptyLayout = errors.New("layout has no zones")

// RectError reports a zone whose region is not a valid normalized rectangle.
type RectError struct {
	Index  int
	Rect   Rect
	Reason string
}

func (e *RectError) Error() string {
	return fmt.Sprintf("zone %d %s: %s", e.Index, e.Rect, e.Reason)
}

func (l Layout) Count() int { return len(l.Zones) }

func (l Layout) Clone() Layout {
	zs := make([]Rect, len(l.Zones))
	copy(zs, l.Zones)
	return Layout{Zones: zs}
}

// Validate rejects empty layouts and regions outside [0,1] or with no area.
func (l Layout) Validate() error {
	if len(l.Zones) == 0 {
		return ErrEmptyLayout
	}
	for i, r := range l.Zones {
		for _, v := range []float64{r.MinX, r.MinY, r.MaxX, r.MaxY} {
			if math.IsNaN(v) || v < 0 || v > 1 {
				return &RectError{Index: i, Rect: r, Reason: "coordinates must be normalized to 0..1"}
			}
		}
		if r.MinX >= r.MaxX || r.MinY >= r.MaxY {
			return &RectError{Index: i, Rect: r, Reason: "min must be below max on both axes"}
		}
	}
	return nil
}

// Columns splits the screen into n full-height strips, left to right.
func Columns(n int) Layout {
	return Grid(n, 1)
}

// Grid splits the screen into cols*rows cells in row-major order starting top-left.
func Grid(cols, rows int) Layout {
	if cols <= 0 || rows <= 0 {
		return Layout{}
	}
	l := Layout{Zones: make([]Rect, 0, cols*rows)}
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			l.Zones = append(l.Zones, Rect{
				MinX: float64(x) / float64(cols),
				MinY: float64(y) / float64(rows),
				MaxX: float64(x+1) / float64(cols),
				MaxY: float64(y+1) / float64(rows),
			})
		}
	}
	return l
}
