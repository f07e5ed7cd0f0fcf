package sink

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"periph.io/x/conn/v3/display"
	"periph.io/x/extra/devices/screen"

	"github.com/coreman2200/arcaluminis/internal/zone"
)

// Console draws each vector as a row of colored cells on the terminal.
type Console struct {
	mu    sync.Mutex
	zones int
	d     display.Drawer
	img   *image.NRGBA
}

func NewConsole(zones int) *Console {
	return NewConsoleDrawer(screen.New(zones), zones)
}

// NewConsoleDrawer renders onto any display.Drawer at least zones pixels wide.
func NewConsoleDrawer(d display.Drawer, zones int) *Console {
	return &Console{zones: zones, d: d, img: image.NewNRGBA(image.Rect(0, 0, zones, 1))}
}

func (c *Console) Zones() int { return c.zones }

func (c *Console) Send(v zone.Vector) error {
	if err := checkZones(c.zones, v); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, col := range v {
		r, g, b := col.Bytes()
		c.img.SetNRGBA(i, 0, color.NRGBA{R: r, G: g, B: b, A: 255})
	}
	if err := c.d.Draw(c.d.Bounds(), c.img, image.Point{}); err != nil {
		return DisconnectedError(fmt.Errorf("console draw: %w", err))
	}
	return nil
}

func (c *Console) Close() error { return c.d.Halt() }
