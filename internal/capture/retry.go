package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig bounds how hard Retrying tries before giving up.
type RetryConfig struct {
	MaxRetries    int           // retries after the first attempt
	RetryDelay    time.Duration // first backoff delay, doubled each retry
	MaxRetryDelay time.Duration // backoff cap
	Timeout       time.Duration // per-attempt bound; 0 disables
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		RetryDelay:    5 * time.Millisecond,
		MaxRetryDelay: 50 * time.Millisecond,
		Timeout:       250 * time.Millisecond,
	}
}

func (c RetryConfig) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.RetryDelay < 0 || c.MaxRetryDelay < 0 || c.Timeout < 0 {
		return errors.New("retry delays and timeout must not be negative")
	}
	return nil
}

// Retrying wraps a Grabber with bounded retries and a per-attempt timeout.
// Transient failures are retried with exponential backoff; once MaxRetries is
// exceeded the last failure is returned as Fatal. Fatal failures and context
// cancellation are returned immediately.
//
// At most one grabber call is outstanding at any time. A call that overruns
// its timeout is cancelled but not abandoned: the next attempt collects it
// (taking a late frame if it produced one) before starting another.
type Retrying struct {
	g   Grabber
	cfg RetryConfig
	log zerolog.Logger

	mu      sync.Mutex
	pending *call

	// OnRetry, if set, is called before each backoff sleep.
	OnRetry func(attempt int, err error)
}

type result struct {
	f   *Frame
	err error
}

type call struct {
	res    chan result
	cancel context.CancelFunc
}

func NewRetrying(g Grabber, cfg RetryConfig, log zerolog.Logger) *Retrying {
	return &Retrying{g: g, cfg: cfg, log: log}
}

// Capture is safe for concurrent use; calls are serialized.
func (r *Retrying) Capture(ctx context.Context) (*Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for attempt := 0; ; attempt++ {
		f, err := r.attempt(ctx)
		if err == nil {
			if f == nil || f.Image == nil {
				return nil, FatalError(ErrNoFrame)
			}
			return f, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !IsTransient(err) {
			return nil, err
		}
		if attempt >= r.cfg.MaxRetries {
			r.settle(ctx)
			return nil, FatalError(fmt.Errorf("max retries exceeded (%d attempts): %w", attempt+1, err))
		}

		if r.OnRetry != nil {
			r.OnRetry(attempt+1, err)
		}
		delay := backoff(attempt+1, r.cfg)
		r.log.Debug().Err(err).Int("attempt", attempt+1).Int("max_retries", r.cfg.MaxRetries).
			Dur("delay", delay).Msg("capture failed; retrying")

		if delay <= 0 {
			continue
		}
		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		}
	}
}

// attempt runs one capture bounded by cfg.Timeout, counting the time spent
// collecting an overrun call from the previous attempt.
func (r *Retrying) attempt(ctx context.Context) (*Frame, error) {
	if r.cfg.Timeout <= 0 {
		return r.g.Capture(ctx)
	}
	t := time.NewTimer(r.cfg.Timeout)
	defer t.Stop()

	if r.pending != nil {
		res, err := r.await(ctx, t.C)
		if err != nil {
			return nil, err
		}
		// A call we cancelled has nothing to offer; anything else is its answer.
		if res.err == nil || !isCancel(res.err) {
			return res.f, res.err
		}
	}

	actx, cancel := context.WithCancel(ctx)
	c := &call{res: make(chan result, 1), cancel: cancel}
	go func() {
		f, err := r.g.Capture(actx)
		c.res <- result{f, err}
	}()
	r.pending = c

	res, err := r.await(ctx, t.C)
	if err != nil {
		return nil, err
	}
	if res.err != nil && errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, TransientError(ErrTimeout)
	}
	return res.f, res.err
}

// await waits for the outstanding call. On timeout or cancellation the call is
// asked to stop but stays outstanding.
func (r *Retrying) await(ctx context.Context, timeout <-chan time.Time) (result, error) {
	c := r.pending
	select {
	case res := <-c.res:
		c.cancel()
		r.pending = nil
		return res, nil
	case <-timeout:
		c.cancel()
		return result{}, TransientError(ErrTimeout)
	case <-ctx.Done():
		c.cancel()
		return result{}, ctx.Err()
	}
}

// settle waits for an overrun call to return so that nothing is still
// capturing once Capture has given up.
func (r *Retrying) settle(ctx context.Context) {
	c := r.pending
	if c == nil {
		return
	}
	c.cancel()
	select {
	case <-c.res:
		r.pending = nil
	case <-ctx.Done():
	}
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// backoff is RetryDelay * 2^(attempt-1), capped at MaxRetryDelay.
func backoff(attempt int, cfg RetryConfig) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 30 {
		attempt = 30
	}
	d := cfg.RetryDelay * time.Duration(1<<uint(attempt-1))
	if cfg.MaxRetryDelay > 0 && d > cfg.MaxRetryDelay {
		d = cfg.MaxRetryDelay
	}
	return d
}
