package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/coreman2200/arcaluminis/internal/capture"
	"github.com/coreman2200/arcaluminis/internal/downsample"
	"github.com/coreman2200/arcaluminis/internal/extract"
	"github.com/coreman2200/arcaluminis/internal/sink"
	"github.com/coreman2200/arcaluminis/internal/smooth"
	"github.com/coreman2200/arcaluminis/internal/zone"
)

// run is one Start..Idle cycle: three stages joined by single-slot mailboxes.
type run struct {
	e   *Engine
	cfg Config
	log zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	stopping atomic.Bool
	failOnce sync.Once
	err      error

	frames  *mailbox[*capture.Frame]
	vectors *mailbox[zone.Vector]

	settled chan struct{}
}

func newRun(e *Engine, cfg Config) *run {
	ctx, cancel := context.WithCancel(context.Background())
	return &run{
		e:       e,
		cfg:     cfg,
		log:     e.log,
		ctx:     ctx,
		cancel:  cancel,
		frames:  newMailbox[*capture.Frame](),
		vectors: newMailbox[zone.Vector](),
		settled: make(chan struct{}),
	}
}

// stop asks the capture stage to finish; frames already captured still flow
// through to the sink.
func (r *run) stop() {
	r.stopping.Store(true)
	r.cancel()
}

func (r *run) stopRequested() bool { return r.stopping.Load() }

// fail records the first fatal error and ends the run.
func (r *run) fail(err error) {
	r.failOnce.Do(func() {
		r.err = err
		r.cancel()
	})
}

func (r *run) failed() bool { return r.ctx.Err() != nil && !r.stopping.Load() }

func (r *run) exec() {
	defer r.cancel()
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); r.captureStage() }()
	go func() { defer wg.Done(); r.processStage() }()
	go func() { defer wg.Done(); r.dispatchStage() }()
	wg.Wait()
}

func (r *run) captureStage() {
	defer r.frames.Close()
	log := r.log.With().Str("stage", "capture").Logger()
	g := capture.NewRetrying(r.e.grabber, r.cfg.Capture, log)
	g.OnRetry = func(attempt int, err error) {
		r.e.stats.retries.Add(1)
		r.e.emit(Event{Kind: CaptureRetried, Err: err})
	}

	next := time.Now()
	for {
		if r.ctx.Err() != nil {
			return
		}
		if wait := time.Until(next); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-t.C:
			case <-r.ctx.Done():
				t.Stop()
				return
			}
		}

		start := time.Now()
		f, err := g.Capture(r.ctx)
		if err != nil {
			if r.ctx.Err() != nil {
				return
			}
			r.fail(&RunError{Cause: CauseCapture, Err: err})
			return
		}
		r.e.stats.captured.Add(1)
		if r.frames.Put(f) {
			r.e.stats.framesDropped.Add(1)
			r.e.emit(Event{Kind: FrameDropped})
		}

		// A slow pass starts the next capture at once; no backlog is kept.
		next = start.Add(r.cfg.Interval)
	}
}

func (r *run) processStage() {
	defer r.vectors.Close()
	ex := extract.New(r.cfg.Weighting, r.cfg.Curve)
	sm := smooth.New(r.cfg.Smoothing, r.cfg.Layout.Count())
	for {
		f, ok := r.frames.Get()
		if !ok {
			return
		}
		if r.failed() {
			continue
		}
		sf, err := downsample.Downsample(f, r.cfg.GridCols, r.cfg.GridRows)
		if err != nil {
			r.log.Warn().Err(err).Uint64("seq", f.Seq).Msg("skipping frame")
			continue
		}
		out := sm.Smooth(ex.Extract(sf, r.cfg.Layout))
		if r.vectors.Put(out) {
			r.e.stats.vectorsDropped.Add(1)
			r.e.emit(Event{Kind: VectorDropped})
		}
	}
}

func (r *run) dispatchStage() {
	for {
		v, ok := r.vectors.Get()
		if !ok {
			return
		}
		if r.failed() {
			continue
		}
		err := r.e.sink.Send(v)
		switch {
		case err == nil:
			r.e.stats.delivered.Add(1)
			r.e.emit(Event{Kind: Delivered})
		case sink.IsBusy(err):
			r.e.stats.sinkBusy.Add(1)
			r.log.Debug().Msg("sink busy; output dropped")
			r.e.emit(Event{Kind: SinkBusy, Err: err})
		default:
			r.fail(&RunError{Cause: CauseSink, Err: err})
		}
	}
}
