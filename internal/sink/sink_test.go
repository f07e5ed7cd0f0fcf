package sink

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spitest"

	"github.com/coreman2200/arcaluminis/internal/zone"
)

var fourZones = zone.Vector{zone.Red, zone.Red, zone.Blue, zone.Blue}

func TestMemoryScript(t *testing.T) {
	m := NewMemory(4, ErrBusy, nil, BusyError(errors.New("later")))
	assert.True(t, IsBusy(m.Send(fourZones)))
	assert.NoError(t, m.Send(fourZones))
	assert.True(t, IsBusy(m.Send(fourZones)))
	assert.NoError(t, m.Send(fourZones))

	assert.Equal(t, 4, m.Calls())
	require.Len(t, m.Sent(), 2)
	last, ok := m.Last()
	require.True(t, ok)
	assert.Equal(t, fourZones, last)
}

func TestMemoryRejectsWrongLength(t *testing.T) {
	m := NewMemory(4)
	err := m.Send(zone.Vector{zone.Red})
	var zc *ZoneCountError
	require.True(t, errors.As(err, &zc))
	assert.Equal(t, 4, zc.Want)
	assert.Equal(t, 1, zc.Got)
	assert.Empty(t, m.Sent())
}

func TestMemoryKeepsCopies(t *testing.T) {
	m := NewMemory(0)
	v := zone.Vector{zone.Green}
	require.NoError(t, m.Send(v))
	v[0] = zone.Black
	last, _ := m.Last()
	assert.Equal(t, zone.Green, last[0])
}

func TestErrorKinds(t *testing.T) {
	assert.True(t, IsBusy(ErrBusy))
	assert.False(t, IsBusy(ErrDisconnected))
	assert.True(t, IsDisconnected(DisconnectedError(errors.New("unplugged"))))
	assert.False(t, IsDisconnected(errors.New("other")))
	assert.Equal(t, "sink disconnected: unplugged", DisconnectedError(errors.New("unplugged")).Error())
	assert.Equal(t, "sink busy", ErrBusy.Error())
}

func TestObserveOnlySeesDelivered(t *testing.T) {
	m := NewMemory(4, ErrBusy)
	var seen []zone.Vector
	s := Observe(m, func(v zone.Vector) { seen = append(seen, v) })

	assert.True(t, IsBusy(s.Send(fourZones)))
	assert.NoError(t, s.Send(fourZones))
	assert.Equal(t, []zone.Vector{fourZones}, seen)
	assert.Equal(t, 4, s.(Zoned).Zones())
}

func TestLogCounts(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(zerolog.New(&buf))
	require.NoError(t, l.Send(fourZones))
	require.NoError(t, l.Send(fourZones))
	assert.Equal(t, uint64(2), l.Count())
	assert.Contains(t, buf.String(), `"zones":["#ff0000","#ff0000","#0000ff","#0000ff"]`)
	assert.Contains(t, buf.String(), `"avg":"#800080"`)
}

func TestNRZWritesEveryZone(t *testing.T) {
	buf := bytes.Buffer{}
	s, err := NewNRZ(spitest.NewRecordRaw(&buf), NRZConfig{Zones: 4, LEDsPerZone: 2}, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, s.Send(fourZones))
	assert.Greater(t, buf.Len(), 0)
	assert.Equal(t, []byte{255, 0, 0, 255, 0, 0, 255, 0, 0, 255, 0, 0, 0, 0, 255, 0, 0, 255, 0, 0, 255, 0, 0, 255}, s.buf)

	var zc *ZoneCountError
	assert.True(t, errors.As(s.Send(fourZones[:3]), &zc))

	require.NoError(t, s.Close())
	assert.True(t, IsDisconnected(s.Send(fourZones)))
	assert.NoError(t, s.Close())
}

func TestNRZNeedsZones(t *testing.T) {
	_, err := NewNRZ(spitest.NewRecordRaw(&bytes.Buffer{}), NRZConfig{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestNRZWriteFailureDisconnects(t *testing.T) {
	p := &fakePort{txErr: errors.New("unplugged")}
	s, err := NewNRZ(p, NRZConfig{Zones: 4}, zerolog.Nop())
	require.NoError(t, err)
	err = s.Send(fourZones)
	assert.True(t, IsDisconnected(err))
}

func TestNRZOverlappingSendIsBusy(t *testing.T) {
	p := &fakePort{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	s, err := NewNRZ(p, NRZConfig{Zones: 4}, zerolog.Nop())
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, s.Send(fourZones))
	}()
	select {
	case <-p.entered:
	case <-time.After(time.Second):
		t.Fatal("first send never reached the port")
	}
	assert.True(t, IsBusy(s.Send(fourZones)))
	close(p.block)
	wg.Wait()
}

func TestConsoleDrawsZones(t *testing.T) {
	d := &fakeDrawer{w: 4}
	c := NewConsoleDrawer(d, 4)
	require.NoError(t, c.Send(fourZones))
	require.NotNil(t, d.last)
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, d.last.At(0, 0))
	assert.Equal(t, color.NRGBA{B: 255, A: 255}, d.last.At(3, 0))

	d.err = errors.New("tty gone")
	assert.True(t, IsDisconnected(c.Send(fourZones)))
	assert.NoError(t, c.Close())
	assert.True(t, d.halted)
}

// fakePort is an spi.PortCloser whose connection can fail or block in Tx.
type fakePort struct {
	txErr   error
	block   chan struct{}
	entered chan struct{}
}

func (p *fakePort) String() string                      { return "fake" }
func (p *fakePort) Close() error                        { return nil }
func (p *fakePort) LimitSpeed(f physic.Frequency) error { return nil }
func (p *fakePort) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	return p, nil
}
func (p *fakePort) Duplex() conn.Duplex               { return conn.Half }
func (p *fakePort) TxPackets(pkts []spi.Packet) error { return p.Tx(nil, nil) }
func (p *fakePort) Tx(w, r []byte) error {
	if p.entered != nil {
		select {
		case p.entered <- struct{}{}:
		default:
		}
	}
	if p.block != nil {
		<-p.block
	}
	return p.txErr
}

type fakeDrawer struct {
	w      int
	last   *image.NRGBA
	err    error
	halted bool
}

func (d *fakeDrawer) String() string          { return "fakeDrawer" }
func (d *fakeDrawer) Halt() error             { d.halted = true; return nil }
func (d *fakeDrawer) ColorModel() color.Model { return color.NRGBAModel }
func (d *fakeDrawer) Bounds() image.Rectangle { return image.Rect(0, 0, d.w, 1) }
func (d *fakeDrawer) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	if d.err != nil {
		return d.err
	}
	img := image.NewNRGBA(r)
	for x := r.Min.X; x < r.Max.X; x++ {
		img.Set(x, 0, src.At(x, 0))
	}
	d.last = img
	return nil
}
