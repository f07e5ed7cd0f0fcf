package capture

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/kbinani/screenshot"
)

// Display captures one active monitor.
type Display struct {
	Index int
	seq   atomic.Uint64
}

func NewDisplay(index int) *Display { return &Display{Index: index} }

func (d *Display) Capture(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, FatalError(ErrNoDisplay)
	}
	if d.Index < 0 || d.Index >= n {
		return nil, FatalError(fmt.Errorf("display %d of %d: %w", d.Index, n, ErrNoDisplay))
	}
	bounds := screenshot.GetDisplayBounds(d.Index)
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, TransientError(fmt.Errorf("capturing display %d: %w", d.Index, err))
	}
	if img.Bounds().Empty() {
		return nil, TransientError(fmt.Errorf("display %d returned an empty image", d.Index))
	}
	return NewFrame(img, d.seq.Add(1)), nil
}
