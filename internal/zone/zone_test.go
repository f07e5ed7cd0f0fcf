package zone_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/coreman2200/arcaluminis/internal/zone"
)

func TestColumnsCoverScreen(t *testing.T) {
	l := Columns(4)
	require.Equal(t, 4, l.Count())
	require.NoError(t, l.Validate())
	assert.Equal(t, Rect{MinX: 0, MinY: 0, MaxX: 0.25, MaxY: 1}, l.Zones[0])
	assert.Equal(t, Rect{MinX: 0.75, MinY: 0, MaxX: 1, MaxY: 1}, l.Zones[3])
}

func TestGridRowMajor(t *testing.T) {
	l := Grid(2, 2)
	require.Equal(t, 4, l.Count())
	assert.Equal(t, Rect{MinX: 0.5, MinY: 0, MaxX: 1, MaxY: 0.5}, l.Zones[1])
	assert.Equal(t, Rect{MinX: 0, MinY: 0.5, MaxX: 0.5, MaxY: 1}, l.Zones[2])
	assert.Equal(t, 0, Grid(0, 3).Count())
}

var layoutValidation = []struct {
	Name    string
	Layout  Layout
	WantErr bool
}{
	{"empty", Layout{}, true},
	{"negative", Layout{Zones: []Rect{{MinX: -0.1, MaxX: 0.5, MaxY: 1}}}, true},
	{"over one", Layout{Zones: []Rect{{MaxX: 1.2, MaxY: 1}}}, true},
	{"inverted", Layout{Zones: []Rect{{MinX: 0.6, MaxX: 0.4, MaxY: 1}}}, true},
	{"no area", Layout{Zones: []Rect{{MinX: 0.5, MaxX: 0.5, MaxY: 1}}}, true},
	{"nan", Layout{Zones: []Rect{{MinX: math.NaN(), MaxX: 0.5, MaxY: 1}}}, true},
	{"full screen", Layout{Zones: []Rect{{MaxX: 1, MaxY: 1}}}, false},
}

func TestLayoutValidate(t *testing.T) {
	for _, v := range layoutValidation {
		t.Run(v.Name, func(t *testing.T) {
			err := v.Layout.Validate()
			if !v.WantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if len(v.Layout.Zones) == 0 {
				assert.True(t, errors.Is(err, ErrEmptyLayout))
				return
			}
			var re *RectError
			assert.True(t, errors.As(err, &re))
			assert.Equal(t, 0, re.Index)
		})
	}
}

func TestLayoutCloneIsIndependent(t *testing.T) {
	l := Columns(2)
	c := l.Clone()
	c.Zones[0].MaxX = 0.9
	assert.Equal(t, 0.5, l.Zones[0].MaxX)
}

func TestColorBytesAndHex(t *testing.T) {
	r, g, b := Color{R: 1, G: 0.5, B: -3}.Bytes()
	assert.Equal(t, []uint8{255, 128, 0}, []uint8{r, g, b})
	assert.Equal(t, "#ff0000", Red.Hex())
	assert.Equal(t, RGB8(255, 0, 0), Red)
}

func TestLuminanceOrdersPrimaries(t *testing.T) {
	assert.InDelta(t, 1.0, White.Luminance(), 1e-3)
	assert.Equal(t, 0.0, Black.Luminance())
	assert.Greater(t, Green.Luminance(), Red.Luminance())
	assert.Greater(t, Red.Luminance(), Blue.Luminance())
}

func TestMixEndsAreExact(t *testing.T) {
	a := Vector{{R: 0.3, G: 0.1, B: 0.7}}
	b := Vector{{R: 0.7, G: 0.9, B: 0.2}}
	dst := NewVector(1)

	Mix(dst, a, b, 1)
	assert.True(t, dst.Equal(b))
	Mix(dst, a, b, 0)
	assert.True(t, dst.Equal(a))
	Mix(dst, a, b, 0.5)
	assert.InDelta(t, 0.5, dst[0].R, 1e-12)
	assert.InDelta(t, 0.5, dst[0].G, 1e-12)
	assert.InDelta(t, 0.45, dst[0].B, 1e-12)
}

func TestVectorRGBKeepsZoneOrder(t *testing.T) {
	v := Vector{Red, Green, Blue}
	assert.Equal(t, []byte{255, 0, 0, 0, 255, 0, 0, 0, 255}, v.RGB(nil))
	assert.Equal(t, []string{"#ff0000", "#00ff00", "#0000ff"}, v.Hex())
}

func TestCurveMonotonic(t *testing.T) {
	c := &Curve{Gamma: 2.2, Brightness: 0.8}
	require.NoError(t, c.Validate())
	prev := -1.0
	for i := 0; i <= 255; i++ {
		x := float64(i) / 255
		out := c.Apply(Color{R: x, G: x, B: x})
		assert.GreaterOrEqual(t, out.R, prev)
		assert.LessOrEqual(t, out.R, 1.0)
		prev = out.R
	}
}

func TestCurveStages(t *testing.T) {
	var nilCurve *Curve
	assert.Equal(t, White, nilCurve.Apply(Color{R: 2, G: 2, B: 2}))

	half := Color{R: 0.5, G: 0.5, B: 0.5}
	assert.Equal(t, half, (&Curve{}).Apply(half))
	assert.InDelta(t, 1.0, (&Curve{ExposureEV: 1}).Apply(half).R, 1e-12)
	assert.InDelta(t, 0.25, (&Curve{Brightness: 0.5}).Apply(half).R, 1e-12)
	assert.InDelta(t, math.Sqrt(0.5), (&Curve{Gamma: 2}).Apply(half).R, 1e-12)

	assert.Error(t, (&Curve{Gamma: -1}).Validate())
	assert.Error(t, (&Curve{WhiteCap: 1.5}).Validate())

	capped := (&Curve{WhiteCap: 0.5}).Apply(White)
	assert.InDelta(t, 1.5, capped.R+capped.G+capped.B, 1e-12)
	assert.Equal(t, Red, (&Curve{WhiteCap: 0.5}).Apply(Red))
	assert.Error(t, (&Curve{Brightness: math.NaN()}).Validate())
	assert.Error(t, (&Curve{ExposureEV: math.Inf(1)}).Validate())
}
