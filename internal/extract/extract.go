// Package extract computes one representative color per keyboard zone from a
// downsampled frame.
package extract

import (
	"fmt"
	"math"
	"strings"

	"github.com/coreman2200/arcaluminis/internal/downsample"
	"github.com/coreman2200/arcaluminis/internal/zone"
)

// Weighting selects how cells inside a zone are averaged.
type Weighting int

const (
	// WeightAuto averages straight, or by luminance when a correction curve is set.
	WeightAuto Weighting = iota
	WeightStraight
	WeightLuminance
)

func (w Weighting) String() string {
	switch w {
	case WeightAuto:
		return "auto"
	case WeightStraight:
		return "straight"
	case WeightLuminance:
		return "luminance"
	default:
		return fmt.Sprintf("weighting(%d)", int(w))
	}
}

func ParseWeighting(s string) (Weighting, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return WeightAuto, nil
	case "straight", "mean":
		return WeightStraight, nil
	case "luminance", "luma":
		return WeightLuminance, nil
	}
	return WeightAuto, fmt.Errorf("unknown weighting %q", s)
}

// Extractor is stateless; Extract may be called from any goroutine.
type Extractor struct {
	Weighting Weighting
	Curve     *zone.Curve
}

func New(w Weighting, curve *zone.Curve) *Extractor {
	return &Extractor{Weighting: w, Curve: curve}
}

func (e *Extractor) luminance() bool {
	switch e.Weighting {
	case WeightLuminance:
		return true
	case WeightAuto:
		return e.Curve != nil
	}
	return false
}

// Extract returns one color per zone of l, in layout order. Cells cut by a
// zone edge count in proportion to the part of them inside the zone, so
// neighbouring zones share such a cell instead of both taking all of it.
// Channels are clamped to 0..1 before the optional curve is applied.
func (e *Extractor) Extract(sf *downsample.SmallFrame, l zone.Layout) zone.Vector {
	out := make(zone.Vector, l.Count())
	lum := e.luminance()
	for i, r := range l.Zones {
		out[i] = e.Curve.Apply(average(sf, r, lum).Clamped())
	}
	return out
}

// CellSpan maps a normalized rect onto the half-open cell ranges
// [c0,c1) x [r0,r1) it touches. Every zone touches at least one cell.
func CellSpan(r zone.Rect, cols, rows int) (c0, c1, r0, r1 int) {
	c0, c1 = span(r.MinX, r.MaxX, cols)
	r0, r1 = span(r.MinY, r.MaxY, rows)
	return
}

func span(lo, hi float64, n int) (int, int) {
	a := int(math.Floor(lo * float64(n)))
	b := int(math.Ceil(hi * float64(n)))
	if a < 0 {
		a = 0
	}
	if a > n-1 {
		a = n - 1
	}
	if b > n {
		b = n
	}
	if b <= a {
		b = a + 1
	}
	return a, b
}

// Coverage is the fraction of cell i (of n) that lies within [lo,hi).
func Coverage(i, n int, lo, hi float64) float64 {
	a := math.Max(lo*float64(n), float64(i))
	b := math.Min(hi*float64(n), float64(i+1))
	if b <= a {
		return 0
	}
	return b - a
}

// average is the area-weighted mean of the cells under r. With lum set, each
// cell also counts by its luminance so small highlights are not washed out by
// dark surroundings; a zone with no luminance falls back to the plain mean.
func average(sf *downsample.SmallFrame, r zone.Rect, lum bool) zone.Color {
	c0, c1, r0, r1 := CellSpan(r, sf.Cols, sf.Rows)
	var red, g, b, wsum float64
	for y := r0; y < r1; y++ {
		wy := Coverage(y, sf.Rows, r.MinY, r.MaxY)
		for x := c0; x < c1; x++ {
			w := wy * Coverage(x, sf.Cols, r.MinX, r.MaxX)
			c := sf.At(x, y)
			if lum {
				w *= c.Luminance()
			}
			red += c.R * w
			g += c.G * w
			b += c.B * w
			wsum += w
		}
	}
	if wsum <= 0 {
		if lum {
			return average(sf, r, false)
		}
		// rect thinner than float precision
		return sf.At(c0, r0)
	}
	return zone.Color{R: red / wsum, G: g / wsum, B: b / wsum}
}
