package capture

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
)

type PatternKind string

const (
	// PatternSolid fills the frame with the first color.
	PatternSolid PatternKind = "solid"
	// PatternBands splits the frame into one vertical band per color, left to right.
	PatternBands PatternKind = "bands"
	// PatternChannels cycles full red, green and blue, one per capture.
	PatternChannels PatternKind = "rgb_channels"
	// PatternSweep moves a white column across a black frame, one step per capture.
	PatternSweep PatternKind = "sweep"
)

// Pattern is a synthetic frame source for headless runs and hardware checks.
// Every capture allocates a fresh image.
type Pattern struct {
	Kind   PatternKind
	Width  int
	Height int
	Colors []color.RGBA

	mu   sync.Mutex
	step int
	seq  uint64
}

func NewPattern(kind PatternKind, width, height int, colors ...color.RGBA) (*Pattern, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("pattern size must be positive, got %dx%d", width, height)
	}
	switch kind {
	case PatternSolid, PatternBands:
		if len(colors) == 0 {
			return nil, fmt.Errorf("pattern %q needs at least one color", kind)
		}
	case PatternChannels, PatternSweep:
	default:
		return nil, fmt.Errorf("unknown pattern %q", kind)
	}
	return &Pattern{Kind: kind, Width: width, Height: height, Colors: colors}, nil
}

func (p *Pattern) Capture(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	step := p.step
	p.step++
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	switch p.Kind {
	case PatternSolid:
		FillBands(img, p.Colors[:1]...)
	case PatternBands:
		FillBands(img, p.Colors...)
	case PatternChannels:
		c := color.RGBA{A: 255}
		switch step % 3 {
		case 0:
			c.R = 255
		case 1:
			c.G = 255
		case 2:
			c.B = 255
		}
		FillBands(img, c)
	case PatternSweep:
		FillBands(img, color.RGBA{A: 255})
		bar := p.Width / 16
		if bar < 1 {
			bar = 1
		}
		x0 := (step * bar) % p.Width
		white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
		for y := 0; y < p.Height; y++ {
			for x := x0; x < x0+bar && x < p.Width; x++ {
				img.SetRGBA(x, y, white)
			}
		}
	}
	return NewFrame(img, seq), nil
}

// FillBands paints img as len(colors) equal-width vertical bands, left to right.
// Columns that do not divide evenly go to the band they fall in proportionally.
func FillBands(img *image.RGBA, colors ...color.RGBA) {
	if len(colors) == 0 {
		return
	}
	b := img.Bounds()
	w := b.Dx()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(b.Min.X+x, y, colors[x*len(colors)/w])
		}
	}
}
