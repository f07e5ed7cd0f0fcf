package capture

import (
	"context"
	"image"
	"time"
)

type PixelFormat int

const (
	FormatRGBA PixelFormat = iota
)

func (p PixelFormat) String() string {
	switch p {
	case FormatRGBA:
		return "rgba"
	default:
		return "unknown"
	}
}

// Frame is one full-resolution screen capture. A Frame is never modified after
// the grabber returns it; downstream stages only read it.
type Frame struct {
	Image     *image.RGBA
	Width     int
	Height    int
	Format    PixelFormat
	Seq       uint64
	Timestamp time.Time
}

// NewFrame wraps img, taking width and height from its bounds.
func NewFrame(img *image.RGBA, seq uint64) *Frame {
	b := img.Bounds()
	return &Frame{
		Image:     img,
		Width:     b.Dx(),
		Height:    b.Dy(),
		Format:    FormatRGBA,
		Seq:       seq,
		Timestamp: time.Now(),
	}
}

// Grabber acquires frames from a display or another frame source.
type Grabber interface {
	Capture(ctx context.Context) (*Frame, error)
}

// GrabberFunc adapts a function to Grabber.
type GrabberFunc func(ctx context.Context) (*Frame, error)

func (f GrabberFunc) Capture(ctx context.Context) (*Frame, error) { return f(ctx) }
