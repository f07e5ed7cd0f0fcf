// Package ws exposes the engine over HTTP and websockets: live zone colors,
// diagnostics, a control socket and a health endpoint.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	diag "github.com/coreman2200/arcaluminis/internal/diagnostics"
	"github.com/coreman2200/arcaluminis/internal/engine"
	"github.com/coreman2200/arcaluminis/internal/extract"
	"github.com/coreman2200/arcaluminis/internal/sink"
	"github.com/coreman2200/arcaluminis/internal/zone"
)

const writeWait = 200 * time.Millisecond

// Controller is the part of *engine.Engine the hub drives.
type Controller interface {
	Resume() error
	Stop() error
	Reconfigure(engine.Config) error
	Config() (engine.Config, bool)
	State() engine.State
	Err() error
	Stats() engine.Stats
	Subscribe(buf int) (<-chan engine.Event, func())
}

type Hub struct {
	log zerolog.Logger

	mu        sync.RWMutex
	ctrl      Controller
	Driver    string
	zones     zone.Vector
	frameID   uint64
	startTime time.Time

	// cmu guards the client sets; writes to clients happen under it.
	cmu         sync.Mutex
	clients     map[*websocket.Conn]bool
	diagClients map[*websocket.Conn]bool

	dirty chan struct{}
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:         log,
		startTime:   time.Now(),
		clients:     map[*websocket.Conn]bool{},
		diagClients: map[*websocket.Conn]bool{},
		dirty:       make(chan struct{}, 1),
	}
}

// Bind attaches the engine the control and health endpoints act on.
func (h *Hub) Bind(c Controller) {
	h.mu.Lock()
	h.ctrl = c
	h.mu.Unlock()
}

// Tap wraps s so every delivered vector is also published to /zones.
func (h *Hub) Tap(s sink.Sink) sink.Sink { return sink.Observe(s, h.Record) }

// Record stores the last delivered colors. It never blocks on clients.
func (h *Hub) Record(v zone.Vector) {
	h.mu.Lock()
	h.zones = v.Clone()
	h.frameID++
	h.mu.Unlock()
	select {
	case h.dirty <- struct{}{}:
	default:
	}
}

// Last returns the last delivered colors and their frame number.
func (h *Hub) Last() (zone.Vector, uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.zones.Clone(), h.frameID
}

func (h *Hub) Register(mux *http.ServeMux) {
	mux.HandleFunc("/zones", h.HandleZonesWS)
	mux.HandleFunc("/events", h.HandleEventsWS)
	mux.HandleFunc("/control", h.HandleControlWS)
	mux.HandleFunc("/health", h.HandleHealth)
}

// Run forwards engine events and delivered colors to websocket clients until
// ctx ends. All broadcasts happen on this goroutine.
func (h *Hub) Run(ctx context.Context) {
	h.mu.RLock()
	ctrl := h.ctrl
	h.mu.RUnlock()

	var events <-chan engine.Event
	if ctrl != nil {
		ch, cancel := ctrl.Subscribe(256)
		defer cancel()
		events = ch
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if d, ok := diag.FromEvent(ev); ok {
				h.pushDiag(d)
			}
		case <-h.dirty:
			h.broadcastZones()
		}
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func (h *Hub) HandleZonesWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.sendTopology(conn)
	h.cmu.Lock()
	h.clients[conn] = true
	h.cmu.Unlock()
	go h.drain(conn, h.clients)
}

func (h *Hub) HandleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.cmu.Lock()
	h.diagClients[conn] = true
	h.cmu.Unlock()
	go h.drain(conn, h.diagClients)
}

// drain reads until the peer goes away, then forgets conn.
func (h *Hub) drain(conn *websocket.Conn, set map[*websocket.Conn]bool) {
	defer func() {
		h.cmu.Lock()
		delete(set, conn)
		h.cmu.Unlock()
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Command is a control message. Fields other than Cmd apply to "reconfigure".
// Brightness must be above 0 and is capped at 1.
type Command struct {
	Cmd        string   `json:"cmd"` // start | stop | restart | reconfigure
	FPS        *int     `json:"fps,omitempty"`
	Smoothing  *float64 `json:"smoothing,omitempty"`
	Weighting  *string  `json:"weighting,omitempty"`
	Columns    *int     `json:"columns,omitempty"`
	Brightness *float64 `json:"brightness,omitempty"`
	Gamma      *float64 `json:"gamma,omitempty"`
}

type Reply struct {
	OK    bool         `json:"ok"`
	Error string       `json:"error,omitempty"`
	State engine.State `json:"state"`
}

func (h *Hub) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd Command
		var rep Reply
		if err := json.Unmarshal(data, &cmd); err != nil {
			rep.Error = fmt.Sprintf("bad command: %v", err)
		} else if err := h.Apply(cmd); err != nil {
			rep.Error = err.Error()
		} else {
			rep.OK = true
		}
		if c := h.controller(); c != nil {
			rep.State = c.State()
		}
		b, _ := json.Marshal(rep)
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			return
		}
	}
}

var ErrNoEngine = errors.New("no engine bound")

// Apply runs one control command against the bound engine.
func (h *Hub) Apply(cmd Command) error {
	c := h.controller()
	if c == nil {
		return ErrNoEngine
	}
	h.log.Info().Str("cmd", cmd.Cmd).Msg("control")
	switch cmd.Cmd {
	case "start":
		return c.Resume()
	case "stop":
		return c.Stop()
	case "restart":
		if err := c.Stop(); err != nil {
			return err
		}
		return c.Resume()
	case "reconfigure":
		cfg, _ := c.Config()
		if err := cmd.applyTo(&cfg); err != nil {
			return err
		}
		return c.Reconfigure(cfg)
	default:
		return fmt.Errorf("unknown command %q", cmd.Cmd)
	}
}

func (cmd Command) applyTo(cfg *engine.Config) error {
	if cmd.FPS != nil {
		if *cmd.FPS <= 0 {
			return fmt.Errorf("fps must be positive, got %d", *cmd.FPS)
		}
		cfg.Interval = time.Second / time.Duration(*cmd.FPS)
	}
	if cmd.Smoothing != nil {
		cfg.Smoothing = *cmd.Smoothing
	}
	if cmd.Weighting != nil {
		w, err := extract.ParseWeighting(*cmd.Weighting)
		if err != nil {
			return err
		}
		cfg.Weighting = w
	}
	if cmd.Columns != nil {
		cfg.Layout = zone.Columns(*cmd.Columns)
	}
	if cmd.Brightness != nil || cmd.Gamma != nil {
		cv := zone.Curve{}
		if cfg.Curve != nil {
			cv = *cfg.Curve
		}
		if cmd.Brightness != nil {
			// A zero brightness in a Curve means "no brightness stage", not
			// black; blanking the keyboard is what stop is for.
			if !(*cmd.Brightness > 0) {
				return fmt.Errorf("brightness must be above 0, got %v", *cmd.Brightness)
			}
			cv.Brightness = clamp(*cmd.Brightness, 0, 1)
		}
		if cmd.Gamma != nil {
			cv.Gamma = *cmd.Gamma
		}
		cfg.Curve = &cv
	}
	return nil
}

type health struct {
	State    engine.State `json:"state"`
	Error    string       `json:"error,omitempty"`
	FrameID  uint64       `json:"frame_id"`
	UptimeS  float64      `json:"uptime_s"`
	Zones    int          `json:"zones"`
	Driver   string       `json:"driver,omitempty"`
	Stats    engine.Stats `json:"stats"`
	Interval string       `json:"interval,omitempty"`
}

func (h *Hub) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	resp := health{
		FrameID: h.frameID,
		UptimeS: time.Since(h.startTime).Seconds(),
		Driver:  h.Driver,
	}
	c := h.ctrl
	h.mu.RUnlock()

	if c != nil {
		resp.State = c.State()
		resp.Stats = c.Stats()
		if err := c.Err(); err != nil {
			resp.Error = err.Error()
		}
		if cfg, ok := c.Config(); ok {
			resp.Zones = cfg.Layout.Count()
			resp.Interval = cfg.Interval.String()
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Hub) controller() Controller {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ctrl
}

func (h *Hub) sendTopology(conn *websocket.Conn) {
	top := map[string]any{"driver": h.Driver}
	if c := h.controller(); c != nil {
		if cfg, ok := c.Config(); ok {
			top["zones"] = cfg.Layout.Zones
		}
	}
	b, _ := json.Marshal(top)
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

type frame struct {
	T       int64    `json:"t"`
	FrameID uint64   `json:"frame_id"`
	Hex     []string `json:"hex"`
	RGB     []int    `json:"rgb"`
}

func (h *Hub) broadcastZones() {
	v, id := h.Last()
	raw := v.RGB(nil)
	rgb := make([]int, len(raw))
	for i, b := range raw {
		rgb[i] = int(b)
	}
	b, _ := json.Marshal(frame{T: time.Now().UnixNano(), FrameID: id, Hex: v.Hex(), RGB: rgb})

	h.cmu.Lock()
	defer h.cmu.Unlock()
	for c := range h.clients {
		c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			h.log.Debug().Err(err).Msg("write zones")
		}
	}
}

func (h *Hub) pushDiag(d diag.Diagnostic) {
	b, _ := json.Marshal(d)
	h.cmu.Lock()
	defer h.cmu.Unlock()
	for c := range h.diagClients {
		c.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.WriteMessage(websocket.TextMessage, b)
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
