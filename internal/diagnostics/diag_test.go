package diagnostics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coreman2200/arcaluminis/internal/capture"
	"github.com/coreman2200/arcaluminis/internal/engine"
	"github.com/coreman2200/arcaluminis/internal/sink"
)

func TestFromEventFailureCauses(t *testing.T) {
	capErr := &engine.RunError{Cause: engine.CauseCapture, Err: capture.FatalError(capture.ErrNoDisplay)}
	d, ok := FromEvent(engine.Event{Kind: engine.StateChanged, From: engine.Running, To: engine.Error, Err: capErr})
	assert.True(t, ok)
	assert.Equal(t, Err, d.Severity)
	assert.Equal(t, "CAPTURE.FATAL", d.Code)
	assert.Contains(t, d.Detail, "no active display")

	sinkErr := &engine.RunError{Cause: engine.CauseSink, Err: sink.DisconnectedError(errors.New("unplugged"))}
	d, _ = FromEvent(engine.Event{Kind: engine.StateChanged, To: engine.Error, Err: sinkErr})
	assert.Equal(t, "SINK.DISCONNECTED", d.Code)
	assert.NotEmpty(t, d.SuggestedFixes)

	d, _ = FromEvent(engine.Event{Kind: engine.StateChanged, To: engine.Error, Err: errors.New("odd")})
	assert.Equal(t, "ENGINE.FAILED", d.Code)
}

func TestFromEventRoutine(t *testing.T) {
	d, ok := FromEvent(engine.Event{Kind: engine.StateChanged, From: engine.Idle, To: engine.Running})
	assert.True(t, ok)
	assert.Equal(t, Info, d.Severity)
	assert.Equal(t, "idle -> running", d.Detail)

	d, ok = FromEvent(engine.Event{Kind: engine.SinkBusy, To: engine.Running, Stats: engine.Stats{SinkBusy: 2}})
	assert.True(t, ok)
	assert.Equal(t, Warn, d.Severity)
	assert.Equal(t, engine.Stats{SinkBusy: 2}, d.Evidence["stats"])

	_, ok = FromEvent(engine.Event{Kind: engine.Delivered})
	assert.False(t, ok)
}
