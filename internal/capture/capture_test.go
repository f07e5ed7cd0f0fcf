package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidFrame(c color.RGBA) *Frame {
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	FillBands(img, c)
	return NewFrame(img, 1)
}

func fastRetry(maxRetries int) RetryConfig {
	return RetryConfig{MaxRetries: maxRetries, RetryDelay: time.Millisecond, MaxRetryDelay: 2 * time.Millisecond, Timeout: 100 * time.Millisecond}
}

func countRetries(r *Retrying) *int {
	n := new(int)
	r.OnRetry = func(int, error) { *n++ }
	return n
}

func TestRetryingRecoversFromTransient(t *testing.T) {
	f := solidFrame(color.RGBA{R: 255, A: 255})
	s := NewScript(
		Step{Err: TransientError(errors.New("busy"))},
		Step{Err: TransientError(errors.New("busy"))},
		Step{Frame: f},
	)
	r := NewRetrying(s, fastRetry(3), zerolog.Nop())
	var seen []int
	r.OnRetry = func(attempt int, err error) { seen = append(seen, attempt) }

	got, err := r.Capture(context.Background())
	require.NoError(t, err)
	assert.Same(t, f, got)
	assert.Equal(t, 3, s.Calls())
	assert.Equal(t, []int{1, 2}, seen)
}

func TestRetryingEscalatesAfterBound(t *testing.T) {
	s := NewScript(Step{Err: TransientError(errors.New("busy"))})
	r := NewRetrying(s, fastRetry(2), zerolog.Nop())

	got, err := r.Capture(context.Background())
	assert.Nil(t, got)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.Equal(t, 3, s.Calls())
}

func TestRetryingTreatsUnclassifiedAsTransient(t *testing.T) {
	f := solidFrame(color.RGBA{A: 255})
	s := NewScript(Step{Err: errors.New("flaky")}, Step{Frame: f})
	r := NewRetrying(s, fastRetry(1), zerolog.Nop())

	got, err := r.Capture(context.Background())
	require.NoError(t, err)
	assert.Same(t, f, got)
}

func TestRetryingFatalIsImmediate(t *testing.T) {
	s := NewScript(Step{Err: FatalError(ErrNoDisplay)})
	r := NewRetrying(s, fastRetry(5), zerolog.Nop())
	retries := countRetries(r)

	_, err := r.Capture(context.Background())
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.True(t, errors.Is(err, ErrNoDisplay))
	assert.Equal(t, 1, s.Calls())
	assert.Zero(t, *retries)
}

func TestRetryingTimeoutIsTransient(t *testing.T) {
	f := solidFrame(color.RGBA{A: 255})
	s := NewScript(Step{Frame: f, Delay: time.Second}, Step{Frame: f})
	cfg := fastRetry(1)
	cfg.Timeout = 20 * time.Millisecond
	r := NewRetrying(s, cfg, zerolog.Nop())
	retries := countRetries(r)

	start := time.Now()
	got, err := r.Capture(context.Background())
	require.NoError(t, err)
	assert.Same(t, f, got)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, 1, *retries)
}

// slowGrabber ignores ctx, like a screen API that cannot be interrupted, and
// tracks how many of its calls overlap.
type slowGrabber struct {
	delay  time.Duration
	frame  *Frame
	err    error
	active atomic.Int32
	peak   atomic.Int32
	calls  atomic.Int32
}

func (g *slowGrabber) Capture(ctx context.Context) (*Frame, error) {
	g.calls.Add(1)
	n := g.active.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(g.delay)
	g.active.Add(-1)
	return g.frame, g.err
}

func TestRetryingKeepsOneCallOutstanding(t *testing.T) {
	g := &slowGrabber{delay: 40 * time.Millisecond, err: TransientError(errors.New("slow"))}
	cfg := fastRetry(5)
	cfg.Timeout = 10 * time.Millisecond
	r := NewRetrying(g, cfg, zerolog.Nop())

	_, err := r.Capture(context.Background())
	assert.True(t, IsFatal(err))
	assert.Equal(t, int32(1), g.peak.Load())
	assert.Equal(t, int32(0), g.active.Load(), "a capture is still running after giving up")
}

func TestRetryingTakesLateFrame(t *testing.T) {
	f := solidFrame(color.RGBA{G: 255, A: 255})
	g := &slowGrabber{delay: 25 * time.Millisecond, frame: f}
	cfg := fastRetry(3)
	cfg.Timeout = 15 * time.Millisecond
	r := NewRetrying(g, cfg, zerolog.Nop())
	retries := countRetries(r)

	got, err := r.Capture(context.Background())
	require.NoError(t, err)
	assert.Same(t, f, got)
	assert.Equal(t, int32(1), g.calls.Load())
	assert.Equal(t, 1, *retries)
}

func TestRetryingHonoursCancel(t *testing.T) {
	s := NewScript(Step{Err: TransientError(errors.New("busy"))})
	cfg := fastRetry(100)
	cfg.RetryDelay = time.Second
	cfg.MaxRetryDelay = time.Second
	r := NewRetrying(s, cfg, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Capture(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, IsFatal(err))
}

func TestRetryingRejectsNilFrame(t *testing.T) {
	g := GrabberFunc(func(ctx context.Context) (*Frame, error) { return nil, nil })
	_, err := NewRetrying(g, fastRetry(1), zerolog.Nop()).Capture(context.Background())
	assert.True(t, IsFatal(err))
	assert.True(t, errors.Is(err, ErrNoFrame))
}

func TestBackoffSchedule(t *testing.T) {
	cfg := RetryConfig{RetryDelay: time.Second, MaxRetryDelay: 30 * time.Second}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second}
	for i, w := range want {
		assert.Equal(t, w, backoff(i+1, cfg), "attempt %d", i+1)
	}
}

func TestErrorKinds(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(TransientError(ErrTimeout)))
	assert.False(t, IsTransient(FatalError(ErrNoDisplay)))
	assert.Equal(t, "capture (fatal): no active display", FatalError(ErrNoDisplay).Error())
	assert.Equal(t, "transient", Transient.String())
}

func TestPatternBandsSplitsFrame(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	p, err := NewPattern(PatternBands, 10, 2, red, blue)
	require.NoError(t, err)

	f, err := p.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, f.Width)
	assert.Equal(t, 2, f.Height)
	assert.Equal(t, FormatRGBA, f.Format)
	assert.Equal(t, red, f.Image.RGBAAt(4, 1))
	assert.Equal(t, blue, f.Image.RGBAAt(5, 0))
}

func TestPatternChannelsCycle(t *testing.T) {
	p, err := NewPattern(PatternChannels, 2, 2)
	require.NoError(t, err)
	want := []color.RGBA{{R: 255, A: 255}, {G: 255, A: 255}, {B: 255, A: 255}, {R: 255, A: 255}}
	var prev *Frame
	for i, w := range want {
		f, err := p.Capture(context.Background())
		require.NoError(t, err)
		assert.Equal(t, w, f.Image.RGBAAt(1, 1), "step %d", i)
		assert.Equal(t, uint64(i+1), f.Seq)
		if prev != nil {
			assert.NotSame(t, prev.Image, f.Image)
		}
		prev = f
	}
}

func TestPatternSweepMoves(t *testing.T) {
	p, err := NewPattern(PatternSweep, 32, 1)
	require.NoError(t, err)
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}

	f0, _ := p.Capture(context.Background())
	f1, _ := p.Capture(context.Background())
	assert.Equal(t, white, f0.Image.RGBAAt(0, 0))
	assert.NotEqual(t, white, f0.Image.RGBAAt(2, 0))
	assert.Equal(t, white, f1.Image.RGBAAt(2, 0))
}

func TestPatternRejectsBadInput(t *testing.T) {
	_, err := NewPattern(PatternSolid, 4, 4)
	assert.Error(t, err)
	_, err = NewPattern("plaid", 4, 4)
	assert.Error(t, err)
	_, err = NewPattern(PatternSweep, 0, 4)
	assert.Error(t, err)
}
