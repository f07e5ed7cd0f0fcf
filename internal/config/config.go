// Package config loads the yaml profile the binary runs from.
package config

import (
	"fmt"
	"image/color"
	"os"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"

	"github.com/coreman2200/arcaluminis/internal/capture"
	"github.com/coreman2200/arcaluminis/internal/engine"
	"github.com/coreman2200/arcaluminis/internal/extract"
	"github.com/coreman2200/arcaluminis/internal/zone"
)

type Effect struct {
	FPS       int     `yaml:"fps"`
	Smoothing float64 `yaml:"smoothing"`
	Weighting string  `yaml:"weighting"` // auto | straight | luminance
	GridCols  int     `yaml:"grid_cols"`
	GridRows  int     `yaml:"grid_rows"`

	// Zones lists the regions explicitly. When empty, Columns equal strips are used.
	Columns int         `yaml:"columns,omitempty"`
	Zones   []zone.Rect `yaml:"zones,omitempty"`

	Correction *zone.Curve `yaml:"correction,omitempty"`
}

type Capture struct {
	Source  string `yaml:"source"` // display | pattern
	Display int    `yaml:"display"`

	Pattern       string   `yaml:"pattern,omitempty"` // solid | bands | rgb_channels | sweep
	PatternColors []string `yaml:"pattern_colors,omitempty"`
	Width         int      `yaml:"width,omitempty"`
	Height        int      `yaml:"height,omitempty"`

	TimeoutMs       int `yaml:"timeout_ms"`
	MaxRetries      int `yaml:"max_retries"`
	RetryDelayMs    int `yaml:"retry_delay_ms"`
	MaxRetryDelayMs int `yaml:"max_retry_delay_ms"`
}

type Sink struct {
	Driver      string `yaml:"driver"`         // log | spi | console
	Port        string `yaml:"port,omitempty"` // e.g. /dev/spidev0.0
	LEDsPerZone int    `yaml:"leds_per_zone,omitempty"`
	SpeedHz     int    `yaml:"speed_hz,omitempty"` // e.g. 2500000
}

type Config struct {
	Effect   Effect  `yaml:"effect"`
	Capture  Capture `yaml:"capture"`
	Sink     Sink    `yaml:"sink"`
	Listen   string  `yaml:"listen"`
	LogLevel string  `yaml:"log_level"`
}

func Default() *Config {
	rc := capture.DefaultRetryConfig()
	return &Config{
		Effect: Effect{
			FPS:       30,
			Smoothing: engine.DefaultSmoothing,
			Weighting: extract.WeightAuto.String(),
			GridCols:  engine.DefaultGridCols,
			GridRows:  engine.DefaultGridRows,
			Columns:   4,
		},
		Capture: Capture{
			Source:          "display",
			Width:           640,
			Height:          360,
			TimeoutMs:       int(rc.Timeout / time.Millisecond),
			MaxRetries:      rc.MaxRetries,
			RetryDelayMs:    int(rc.RetryDelay / time.Millisecond),
			MaxRetryDelayMs: int(rc.MaxRetryDelay / time.Millisecond),
		},
		Sink:     Sink{Driver: "log"},
		Listen:   ":8080",
		LogLevel: "info",
	}
}

// Load reads path over the defaults, so a profile only needs the keys it changes.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Layout returns the explicit zones, or Columns equal strips.
func (c *Config) Layout() zone.Layout {
	if len(c.Effect.Zones) > 0 {
		return zone.Layout{Zones: append([]zone.Rect(nil), c.Effect.Zones...)}
	}
	return zone.Columns(c.Effect.Columns)
}

// EngineConfig converts the profile into a validated engine configuration.
func (c *Config) EngineConfig() (engine.Config, error) {
	w, err := extract.ParseWeighting(c.Effect.Weighting)
	if err != nil {
		return engine.Config{}, err
	}
	if c.Effect.FPS <= 0 {
		return engine.Config{}, &engine.ConfigError{Kind: engine.InvalidInterval,
			Err: fmt.Errorf("fps must be positive, got %d", c.Effect.FPS)}
	}
	ec := engine.DefaultConfig(c.Layout())
	ec.Interval = time.Second / time.Duration(c.Effect.FPS)
	ec.Smoothing = c.Effect.Smoothing
	ec.Weighting = w
	ec.GridCols = c.Effect.GridCols
	ec.GridRows = c.Effect.GridRows
	if c.Effect.Correction != nil {
		cv := *c.Effect.Correction
		ec.Curve = &cv
	}
	ec.Capture = capture.RetryConfig{
		MaxRetries:    c.Capture.MaxRetries,
		RetryDelay:    time.Duration(c.Capture.RetryDelayMs) * time.Millisecond,
		MaxRetryDelay: time.Duration(c.Capture.MaxRetryDelayMs) * time.Millisecond,
		Timeout:       time.Duration(c.Capture.TimeoutMs) * time.Millisecond,
	}
	if err := ec.Validate(); err != nil {
		return engine.Config{}, err
	}
	return ec, nil
}

// PatternColors parses the hex pattern colors ("#ff0000").
func (c *Config) PatternColors() ([]color.RGBA, error) {
	out := make([]color.RGBA, 0, len(c.Capture.PatternColors))
	for _, s := range c.Capture.PatternColors {
		col, err := colorful.Hex(s)
		if err != nil {
			return nil, fmt.Errorf("pattern color %q: %w", s, err)
		}
		r, g, b := col.RGB255()
		out = append(out, color.RGBA{R: r, G: g, B: b, A: 255})
	}
	return out, nil
}

// Validate checks the parts of the profile the engine does not see.
func (c *Config) Validate() error {
	switch c.Capture.Source {
	case "display", "pattern":
	default:
		return fmt.Errorf("unknown capture source %q", c.Capture.Source)
	}
	switch c.Sink.Driver {
	case "log", "spi", "console":
	default:
		return fmt.Errorf("unknown sink driver %q", c.Sink.Driver)
	}
	if c.Sink.LEDsPerZone < 0 || c.Sink.SpeedHz < 0 {
		return fmt.Errorf("sink leds_per_zone and speed_hz must not be negative")
	}
	_, err := c.EngineConfig()
	return err
}
