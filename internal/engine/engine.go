// Package engine schedules the capture, extract, smooth and emit pipeline and
// owns its lifecycle.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/coreman2200/arcaluminis/internal/capture"
	"github.com/coreman2200/arcaluminis/internal/sink"
)

const defaultEventBuffer = 64

type Option func(*Engine)

func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

// WithEventBuffer sizes the channel returned by Events.
func WithEventBuffer(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.eventBuf = n
		}
	}
}

type op int

const (
	opStart op = iota
	opResume
	opStop
	opReconfigure
)

type request struct {
	op    op
	cfg   Config
	reply chan error
}

// Engine runs one effect at a time. Every state transition happens on the
// control goroutine; the exported methods only send it requests.
type Engine struct {
	grabber capture.Grabber
	sink    sink.Sink
	log     zerolog.Logger

	eventBuf int
	events   *broadcaster
	eventsCh <-chan Event

	reqs  chan request
	ended chan *run
	quit  chan struct{}
	done  chan struct{}

	closeOnce sync.Once

	state atomic.Int32
	stats counters

	mu     sync.Mutex
	cfg    Config
	hasCfg bool
	err    error
	cur    *run

	// owned by controlLoop
	waiters []chan error
}

func New(g capture.Grabber, s sink.Sink, opts ...Option) *Engine {
	e := &Engine{
		grabber:  g,
		sink:     s,
		log:      zerolog.Nop(),
		eventBuf: defaultEventBuffer,
		events:   newBroadcaster(),
		reqs:     make(chan request),
		ended:    make(chan *run),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(e)
	}
	e.eventsCh, _ = e.events.subscribe(e.eventBuf)
	go e.controlLoop()
	return e
}

// Start validates cfg, snapshots it and begins a run.
func (e *Engine) Start(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return e.send(opStart, cfg)
}

// Resume starts a run with the last accepted configuration.
func (e *Engine) Resume() error { return e.send(opResume, Config{}) }

// Stop ends the current run and returns once the in-flight frame has been
// dispatched and the engine is Idle. Stop on an idle engine is a no-op.
func (e *Engine) Stop() error { return e.send(opStop, Config{}) }

// Reconfigure replaces the stored configuration. It is refused while a run is
// live; the new values apply from the next Start or Resume.
func (e *Engine) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return e.send(opReconfigure, cfg)
}

func (e *Engine) State() State { return State(e.state.Load()) }

// Err is the error that ended the last run, if any.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Config returns the last accepted configuration.
func (e *Engine) Config() (Config, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.clone(), e.hasCfg
}

func (e *Engine) Stats() Stats { return e.stats.snapshot() }

// Events is the engine's default event stream. Events are dropped when the
// channel is full.
func (e *Engine) Events() <-chan Event { return e.eventsCh }

// Subscribe opens an additional event stream. Call cancel to release it.
func (e *Engine) Subscribe(buf int) (events <-chan Event, cancel func()) {
	if buf <= 0 {
		buf = e.eventBuf
	}
	return e.events.subscribe(buf)
}

// Wait blocks until the current run has ended and the engine has settled, and
// returns the run's fatal error. When nothing runs it returns at once: the
// last error if the engine is in Error, nil otherwise.
func (e *Engine) Wait(ctx context.Context) error {
	e.mu.Lock()
	r := e.cur
	e.mu.Unlock()
	if r == nil {
		if e.State() == Error {
			return e.Err()
		}
		return nil
	}
	select {
	case <-r.settled:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops any run and shuts the control loop down. Event streams are
// closed afterwards.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		_ = e.Stop()
		close(e.quit)
		<-e.done
		e.events.close()
	})
}

func (e *Engine) send(o op, cfg Config) error {
	req := request{op: o, cfg: cfg, reply: make(chan error, 1)}
	select {
	case e.reqs <- req:
	case <-e.done:
		return ErrClosed
	}
	select {
	case err := <-req.reply:
		return err
	case <-e.done:
		return ErrClosed
	}
}

func (e *Engine) controlLoop() {
	defer close(e.done)
	for {
		select {
		case req := <-e.reqs:
			e.handle(req)
		case r := <-e.ended:
			e.finish(r)
		case <-e.quit:
			e.mu.Lock()
			r := e.cur
			e.mu.Unlock()
			if r != nil {
				r.stop()
				e.finish(<-e.ended)
			}
			return
		}
	}
}

func (e *Engine) handle(req request) {
	st := e.State()
	switch req.op {
	case opStart, opResume:
		if st == Running || st == Draining {
			req.reply <- ErrAlreadyRunning
			return
		}
		cfg := req.cfg
		if req.op == opResume {
			var ok bool
			if cfg, ok = e.Config(); !ok {
				req.reply <- ErrNoConfig
				return
			}
		}
		if err := e.checkSink(cfg); err != nil {
			req.reply <- err
			return
		}
		if st == Error {
			e.setState(Idle, nil)
		}
		e.mu.Lock()
		e.cfg = cfg.clone()
		e.hasCfg = true
		e.err = nil
		e.mu.Unlock()
		e.launch(cfg.clone())
		req.reply <- nil

	case opStop:
		switch st {
		case Running:
			e.setState(Draining, nil)
			e.mu.Lock()
			e.cur.stop()
			e.mu.Unlock()
			e.waiters = append(e.waiters, req.reply)
		case Draining:
			e.waiters = append(e.waiters, req.reply)
		case Error:
			e.setState(Idle, nil)
			req.reply <- nil
		default:
			req.reply <- nil
		}

	case opReconfigure:
		if st == Running || st == Draining {
			req.reply <- ErrNotIdle
			return
		}
		if err := e.checkSink(req.cfg); err != nil {
			req.reply <- err
			return
		}
		if st == Error {
			e.setState(Idle, nil)
		}
		e.mu.Lock()
		e.cfg = req.cfg.clone()
		e.hasCfg = true
		e.mu.Unlock()
		e.log.Info().Int("zones", req.cfg.Layout.Count()).Dur("interval", req.cfg.Interval).
			Float64("smoothing", req.cfg.Smoothing).Msg("effect reconfigured")
		req.reply <- nil
	}
}

// checkSink rejects a layout whose zone count differs from what the device
// was opened with.
func (e *Engine) checkSink(cfg Config) error {
	z, ok := e.sink.(sink.Zoned)
	if !ok || z.Zones() == 0 {
		return nil
	}
	if z.Zones() != cfg.Layout.Count() {
		return &ConfigError{Kind: InvalidLayout,
			Err: fmt.Errorf("layout has %d zones, sink expects %d", cfg.Layout.Count(), z.Zones())}
	}
	return nil
}

func (e *Engine) launch(cfg Config) {
	e.stats.reset()
	r := newRun(e, cfg)
	e.mu.Lock()
	e.cur = r
	e.mu.Unlock()
	e.setState(Running, nil)
	e.log.Info().Int("zones", cfg.Layout.Count()).Dur("interval", cfg.Interval).
		Float64("smoothing", cfg.Smoothing).Msg("effect started")
	go func() {
		r.exec()
		e.ended <- r
	}()
}

func (e *Engine) finish(r *run) {
	e.mu.Lock()
	if e.cur == r {
		e.cur = nil
	}
	if r.err != nil {
		e.err = r.err
	}
	e.mu.Unlock()

	switch {
	case r.err != nil && !r.stopRequested():
		e.log.Error().Err(r.err).Msg("effect failed")
		e.setState(Error, r.err)
	default:
		if r.err != nil {
			e.log.Warn().Err(r.err).Msg("error while draining")
		}
		e.setState(Idle, nil)
		e.log.Info().Uint64("delivered", e.stats.delivered.Load()).Msg("effect stopped")
	}
	close(r.settled)
	for _, w := range e.waiters {
		w <- nil
	}
	e.waiters = nil
}

func (e *Engine) setState(to State, err error) {
	from := State(e.state.Swap(int32(to)))
	if from == to {
		return
	}
	e.log.Debug().Stringer("from", from).Stringer("to", to).Msg("state changed")
	e.emit(Event{Kind: StateChanged, From: from, To: to, Err: err})
}

func (e *Engine) emit(ev Event) {
	ev.Time = time.Now()
	ev.Stats = e.stats.snapshot()
	if ev.Kind != StateChanged {
		ev.From = e.State()
		ev.To = ev.From
	}
	e.events.publish(ev)
}
