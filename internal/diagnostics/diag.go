// Package diagnostics turns engine events into operator-facing messages.
package diagnostics

import (
	"errors"
	"fmt"

	"github.com/coreman2200/arcaluminis/internal/engine"
)

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

type Diagnostic struct {
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}

// FromEvent describes ev. Delivered events are routine and yield ok=false.
func FromEvent(ev engine.Event) (d Diagnostic, ok bool) {
	evidence := map[string]any{"state": ev.To.String(), "stats": ev.Stats}

	switch ev.Kind {
	case engine.StateChanged:
		if ev.To == engine.Error {
			return failure(ev.Err, evidence), true
		}
		return Diagnostic{
			Severity: Info,
			Code:     "ENGINE.STATE",
			Summary:  fmt.Sprintf("Effect %s", ev.To),
			Detail:   fmt.Sprintf("%s -> %s", ev.From, ev.To),
			Evidence: evidence,
		}, true

	case engine.FrameDropped, engine.VectorDropped:
		return Diagnostic{
			Severity:       Info,
			Code:           "PIPELINE.DROPPED",
			Summary:        "Stale output replaced by a newer one",
			LikelyCauses:   []string{"processing slower than the capture rate"},
			SuggestedFixes: []string{"lower fps", "reduce grid_cols/grid_rows"},
			Evidence:       evidence,
		}, true

	case engine.SinkBusy:
		return Diagnostic{
			Severity:       Warn,
			Code:           "SINK.BUSY",
			Summary:        "Keyboard busy; output skipped",
			LikelyCauses:   []string{"previous write still in flight", "device rate lower than fps"},
			SuggestedFixes: []string{"lower fps"},
			Evidence:       evidence,
		}, true

	case engine.CaptureRetried:
		d := Diagnostic{
			Severity:     Warn,
			Code:         "CAPTURE.RETRY",
			Summary:      "Screen capture failed; retrying",
			LikelyCauses: []string{"display mode change", "screen locked", "capture timeout"},
			Evidence:     evidence,
		}
		if ev.Err != nil {
			d.Detail = ev.Err.Error()
		}
		return d, true
	}
	return Diagnostic{}, false
}

func failure(err error, evidence map[string]any) Diagnostic {
	d := Diagnostic{Severity: Err, Code: "ENGINE.FAILED", Summary: "Effect stopped on an error", Evidence: evidence}
	if err != nil {
		d.Detail = err.Error()
	}
	var runErr *engine.RunError
	if !errors.As(err, &runErr) {
		return d
	}
	switch runErr.Cause {
	case engine.CauseCapture:
		d.Code = "CAPTURE.FATAL"
		d.Summary = "Screen capture failed"
		d.LikelyCauses = []string{"no active display", "display index out of range", "retries exhausted"}
		d.SuggestedFixes = []string{"check capture.display", "raise capture.max_retries", "start the effect again"}
	case engine.CauseSink:
		d.Code = "SINK.DISCONNECTED"
		d.Summary = "Keyboard disconnected"
		d.LikelyCauses = []string{"device unplugged", "SPI port closed", "zone count mismatch"}
		d.SuggestedFixes = []string{"reconnect the device", "check sink.port", "start the effect again"}
	}
	return d
}
