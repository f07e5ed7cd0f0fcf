package sink

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/host/v3"

	"github.com/coreman2200/arcaluminis/internal/zone"
)

// NRZConfig describes an addressable LED chain driven over SPI, one or more
// LEDs per keyboard zone in zone order.
type NRZConfig struct {
	Port        string // spireg name; "" picks the first port
	Zones       int
	LEDsPerZone int
	Freq        physic.Frequency
}

func (c NRZConfig) withDefaults() NRZConfig {
	if c.LEDsPerZone <= 0 {
		c.LEDsPerZone = 1
	}
	if c.Freq == 0 {
		c.Freq = 2500 * physic.KiloHertz
	}
	return c
}

var ErrWriteInFlight = errors.New("previous write still in flight")

// NRZ is the hardware sink.
type NRZ struct {
	cfg  NRZConfig
	log  zerolog.Logger
	dev  *nrzled.Dev
	port spi.PortCloser

	busy atomic.Bool
	mu   sync.Mutex
	buf  []byte
}

// OpenNRZ initializes the host drivers and opens the SPI port.
func OpenNRZ(cfg NRZConfig, log zerolog.Logger) (*NRZ, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	p, err := spireg.Open(cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("open spi port %q: %w", cfg.Port, err)
	}
	s, err := NewNRZ(p, cfg, log)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return s, nil
}

// NewNRZ drives an already opened port. The sink owns p from here on.
func NewNRZ(p spi.PortCloser, cfg NRZConfig, log zerolog.Logger) (*NRZ, error) {
	cfg = cfg.withDefaults()
	if cfg.Zones <= 0 {
		return nil, fmt.Errorf("nrz sink needs a zone count, got %d", cfg.Zones)
	}
	d, err := nrzled.NewSPI(p, &nrzled.Opts{
		NumPixels: cfg.Zones * cfg.LEDsPerZone,
		Channels:  3,
		Freq:      cfg.Freq,
	})
	if err != nil {
		return nil, fmt.Errorf("nrzled: %w", err)
	}
	log.Info().Str("dev", d.String()).Int("zones", cfg.Zones).Int("leds_per_zone", cfg.LEDsPerZone).
		Msg("nrz sink ready")
	return &NRZ{
		cfg:  cfg,
		log:  log,
		dev:  d,
		port: p,
		buf:  make([]byte, 0, cfg.Zones*cfg.LEDsPerZone*3),
	}, nil
}

func (s *NRZ) Zones() int { return s.cfg.Zones }

// Send writes v to the chain. A send that overlaps another returns Busy; a
// failed or closed device returns Disconnected.
func (s *NRZ) Send(v zone.Vector) error {
	if !s.busy.CompareAndSwap(false, true) {
		return BusyError(ErrWriteInFlight)
	}
	defer s.busy.Store(false)

	if err := checkZones(s.cfg.Zones, v); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return DisconnectedError(errors.New("nrz sink closed"))
	}
	s.buf = s.buf[:0]
	for _, c := range v {
		r, g, b := c.Bytes()
		for i := 0; i < s.cfg.LEDsPerZone; i++ {
			s.buf = append(s.buf, r, g, b)
		}
	}
	if _, err := s.dev.Write(s.buf); err != nil {
		return DisconnectedError(fmt.Errorf("nrzled write: %w", err))
	}
	return nil
}

// Close blanks the LEDs and releases the port.
func (s *NRZ) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return nil
	}
	if err := s.dev.Halt(); err != nil {
		s.log.Warn().Err(err).Msg("nrz halt")
	}
	s.dev = nil
	return s.port.Close()
}
