package engine

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/coreman2200/arcaluminis/internal/capture"
	"github.com/coreman2200/arcaluminis/internal/extract"
	"github.com/coreman2200/arcaluminis/internal/zone"
)

// Config is captured as a deep copy when a run starts and never changes while
// the run is live.
type Config struct {
	Interval  time.Duration // target time per pipeline pass
	Smoothing float64       // 0..1; 1 disables smoothing, 0 freezes output
	Layout    zone.Layout
	Curve     *zone.Curve // optional
	Weighting extract.Weighting
	GridCols  int
	GridRows  int
	Capture   capture.RetryConfig
}

const (
	DefaultInterval  = time.Second / 30
	DefaultSmoothing = 0.5
	DefaultGridCols  = 64
	DefaultGridRows  = 16
)

func DefaultConfig(l zone.Layout) Config {
	return Config{
		Interval:  DefaultInterval,
		Smoothing: DefaultSmoothing,
		Layout:    l,
		GridCols:  DefaultGridCols,
		GridRows:  DefaultGridRows,
		Capture:   capture.DefaultRetryConfig(),
	}
}

type ConfigKind int

const (
	InvalidLayout ConfigKind = iota
	InvalidInterval
	InvalidSmoothing
	InvalidGrid
	InvalidCurve
	InvalidCapture
)

func (k ConfigKind) String() string {
	switch k {
	case InvalidLayout:
		return "invalid layout"
	case InvalidInterval:
		return "invalid interval"
	case InvalidSmoothing:
		return "invalid smoothing"
	case InvalidGrid:
		return "invalid grid"
	case InvalidCurve:
		return "invalid curve"
	case InvalidCapture:
		return "invalid capture policy"
	default:
		return "invalid config"
	}
}

// ConfigError rejects a configuration before any capture begins.
type ConfigError struct {
	Kind ConfigKind
	Err  error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config: %s: %v", e.Kind, e.Err) }

func (e *ConfigError) Unwrap() error { return e.Err }

func (c Config) Validate() error {
	if err := c.Layout.Validate(); err != nil {
		return &ConfigError{Kind: InvalidLayout, Err: err}
	}
	if c.Interval <= 0 {
		return &ConfigError{Kind: InvalidInterval, Err: fmt.Errorf("interval must be positive, got %v", c.Interval)}
	}
	if math.IsNaN(c.Smoothing) || math.IsInf(c.Smoothing, 0) {
		return &ConfigError{Kind: InvalidSmoothing, Err: errors.New("smoothing factor must be a number")}
	}
	if c.GridCols <= 0 || c.GridRows <= 0 {
		return &ConfigError{Kind: InvalidGrid, Err: fmt.Errorf("grid must be positive, got %dx%d", c.GridCols, c.GridRows)}
	}
	if err := c.Curve.Validate(); err != nil {
		return &ConfigError{Kind: InvalidCurve, Err: err}
	}
	if err := c.Capture.Validate(); err != nil {
		return &ConfigError{Kind: InvalidCapture, Err: err}
	}
	return nil
}

func (c Config) clone() Config {
	out := c
	out.Layout = c.Layout.Clone()
	if c.Curve != nil {
		cv := *c.Curve
		out.Curve = &cv
	}
	return out
}
