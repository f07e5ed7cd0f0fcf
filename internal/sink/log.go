package sink

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/coreman2200/arcaluminis/internal/zone"
)

// Log writes a compact summary of every vector to a logger, useful headless.
type Log struct {
	Logger zerolog.Logger
	count  atomic.Uint64
}

func NewLog(l zerolog.Logger) *Log { return &Log{Logger: l} }

func (d *Log) Send(v zone.Vector) error {
	n := d.count.Add(1)
	var avg zone.Color
	for _, c := range v {
		avg.R += c.R
		avg.G += c.G
		avg.B += c.B
	}
	if len(v) > 0 {
		k := float64(len(v))
		avg = zone.Color{R: avg.R / k, G: avg.G / k, B: avg.B / k}
	}
	d.Logger.Debug().Uint64("frame", n).Str("avg", avg.Hex()).Strs("zones", v.Hex()).Msg("zones")
	return nil
}

func (d *Log) Count() uint64 { return d.count.Load() }
