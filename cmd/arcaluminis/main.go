package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/arcaluminis/internal/capture"
	"github.com/coreman2200/arcaluminis/internal/config"
	"github.com/coreman2200/arcaluminis/internal/engine"
	"github.com/coreman2200/arcaluminis/internal/sink"
	"github.com/coreman2200/arcaluminis/internal/ws"
)

func main() {
	// ---- Flags (override config.yaml when set) ----
	var (
		configPath = flag.StringP("config", "c", "config.yaml", "path to the profile yaml")
		addr       = flag.String("addr", "", "HTTP listen address (empty disables the server)")
		fps        = flag.Int("fps", 0, "target frames per second")
		smoothing  = flag.Float64("smoothing", 0, "smoothing factor 0..1 (1 = none)")
		columns    = flag.Int("columns", 0, "split the screen into N zone columns")
		weighting  = flag.String("weighting", "", "auto | straight | luminance")
		source     = flag.String("source", "", "capture source: display | pattern")
		display    = flag.Int("display", 0, "display index to capture")
		pattern    = flag.String("pattern", "", "pattern for source=pattern: solid | bands | rgb_channels | sweep")
		driver     = flag.StringP("driver", "d", "", "sink driver: log | spi | console")
		port       = flag.String("port", "", "SPI port for driver=spi (e.g. /dev/spidev0.0)")
		logLevel   = flag.String("log-level", "", "debug | info | warn | error")
		save       = flag.Bool("save", false, "write the effective profile back to --config and exit")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	// ---- Profile ----
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; using defaults and flags")
		cfg = config.Default()
	}
	set := func(name string, apply func()) {
		if flag.CommandLine.Changed(name) {
			apply()
		}
	}
	set("addr", func() { cfg.Listen = *addr })
	set("fps", func() { cfg.Effect.FPS = *fps })
	set("smoothing", func() { cfg.Effect.Smoothing = *smoothing })
	set("columns", func() { cfg.Effect.Columns, cfg.Effect.Zones = *columns, nil })
	set("weighting", func() { cfg.Effect.Weighting = *weighting })
	set("source", func() { cfg.Capture.Source = *source })
	set("display", func() { cfg.Capture.Display = *display })
	set("pattern", func() { cfg.Capture.Pattern = *pattern })
	set("driver", func() { cfg.Sink.Driver = *driver })
	set("port", func() { cfg.Sink.Port = *port })
	set("log-level", func() { cfg.LogLevel = *logLevel })

	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		zerolog.SetGlobalLevel(lvl)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid profile")
	}
	if *save {
		if err := config.Save(*configPath, cfg); err != nil {
			log.Fatal().Err(err).Msg("save profile")
		}
		log.Info().Str("path", *configPath).Msg("profile saved")
		return
	}
	ecfg, err := cfg.EngineConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid effect")
	}

	// ---- Capture ----
	grabber, err := newGrabber(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("capture init")
	}

	// ---- Sink selection ----
	out, err := newSink(cfg, ecfg.Layout.Count())
	if err != nil {
		log.Warn().Err(err).Str("driver", cfg.Sink.Driver).Msg("sink init failed; falling back to log")
		cfg.Sink.Driver = "log"
		out = sink.NewLog(log.Logger)
	}

	hub := ws.NewHub(log.Logger.With().Str("component", "ws").Logger())
	hub.Driver = cfg.Sink.Driver
	eng := engine.New(grabber, hub.Tap(out), engine.WithLogger(log.Logger.With().Str("component", "engine").Logger()))
	hub.Bind(eng)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go hub.Run(ctx)
	go logEvents(ctx, eng)

	// ---- HTTP routes ----
	var srv *http.Server
	if cfg.Listen != "" {
		mux := http.NewServeMux()
		hub.Register(mux)
		srv = &http.Server{
			Addr:         cfg.Listen,
			Handler:      withCORS(mux),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.Listen).Str("driver", cfg.Sink.Driver).Msg("HTTP server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("http server crashed")
			}
		}()
	}

	if err := eng.Start(ecfg); err != nil {
		log.Fatal().Err(err).Msg("start effect")
	}

	// ---- Graceful shutdown ----
	<-ctx.Done()
	log.Info().Msg("shutting down")
	if srv != nil {
		_ = srv.Close()
	}
	eng.Close()
	if c, ok := out.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	st := eng.Stats()
	log.Info().Uint64("delivered", st.Delivered).Uint64("frames_dropped", st.FramesDropped).
		Uint64("sink_busy", st.SinkBusy).Msg("bye")
}

func newGrabber(cfg *config.Config) (capture.Grabber, error) {
	switch cfg.Capture.Source {
	case "pattern":
		cols, err := cfg.PatternColors()
		if err != nil {
			return nil, err
		}
		kind := capture.PatternKind(cfg.Capture.Pattern)
		if kind == "" {
			kind = capture.PatternChannels
		}
		return capture.NewPattern(kind, cfg.Capture.Width, cfg.Capture.Height, cols...)
	case "display":
		return capture.NewDisplay(cfg.Capture.Display), nil
	}
	return nil, fmt.Errorf("unknown capture source %q", cfg.Capture.Source)
}

func newSink(cfg *config.Config, zones int) (sink.Sink, error) {
	switch cfg.Sink.Driver {
	case "spi":
		return sink.OpenNRZ(sink.NRZConfig{
			Port:        cfg.Sink.Port,
			Zones:       zones,
			LEDsPerZone: cfg.Sink.LEDsPerZone,
			Freq:        physic.Frequency(cfg.Sink.SpeedHz) * physic.Hertz,
		}, log.Logger.With().Str("component", "nrz").Logger())
	case "console":
		return sink.NewConsole(zones), nil
	case "log":
		return sink.NewLog(log.Logger.With().Str("component", "sink").Logger()), nil
	}
	return nil, fmt.Errorf("unknown sink driver %q", cfg.Sink.Driver)
}

// logEvents reports run failures; the engine settles to Idle on the next
// control request and never restarts on its own.
func logEvents(ctx context.Context, eng *engine.Engine) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-eng.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case engine.StateChanged:
				l := log.Info()
				if ev.To == engine.Error {
					l = log.Error().Err(ev.Err)
				}
				l.Stringer("from", ev.From).Stringer("to", ev.To).Msg("effect state")
			case engine.CaptureRetried:
				log.Debug().Err(ev.Err).Uint64("retries", ev.Stats.CaptureRetries).Msg("capture retry")
			}
		}
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		h.ServeHTTP(w, r)
	})
}
