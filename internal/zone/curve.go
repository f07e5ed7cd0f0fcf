package zone

import (
	"fmt"
	"math"
)

// Curve is a monotonic per-channel correction applied to extracted colors:
// exposure (EV stops), then brightness, then output gamma, then an optional
// white cap bounding r+g+b to WhiteCap*3 so full white stays within the
// supply budget. Zero values leave a stage disabled.
type Curve struct {
	ExposureEV float64 `yaml:"exposure_ev" json:"exposure_ev"`
	Brightness float64 `yaml:"brightness" json:"brightness"`
	Gamma      float64 `yaml:"gamma" json:"gamma"`
	WhiteCap   float64 `yaml:"white_cap,omitempty" json:"white_cap,omitempty"`
}

func (c *Curve) Validate() error {
	if c == nil {
		return nil
	}
	if math.IsNaN(c.ExposureEV) || math.IsInf(c.ExposureEV, 0) {
		return fmt.Errorf("exposure_ev must be finite")
	}
	if math.IsNaN(c.Brightness) || c.Brightness < 0 {
		return fmt.Errorf("brightness must be >= 0, got %v", c.Brightness)
	}
	if math.IsNaN(c.Gamma) || c.Gamma < 0 {
		return fmt.Errorf("gamma must be >= 0, got %v", c.Gamma)
	}
	if math.IsNaN(c.WhiteCap) || c.WhiteCap < 0 || c.WhiteCap > 1 {
		return fmt.Errorf("white_cap must be within 0..1, got %v", c.WhiteCap)
	}
	return nil
}

// Apply corrects a single color. Output channels stay within 0..1.
func (c *Curve) Apply(col Color) Color {
	if c == nil {
		return col.Clamped()
	}
	scale := 1.0
	if c.ExposureEV != 0 {
		scale *= math.Pow(2, c.ExposureEV)
	}
	if c.Brightness > 0 {
		scale *= c.Brightness
	}
	col = Color{R: col.R * scale, G: col.G * scale, B: col.B * scale}.Clamped()
	if c.Gamma > 0 && c.Gamma != 1 {
		ig := 1 / c.Gamma
		col = Color{R: math.Pow(col.R, ig), G: math.Pow(col.G, ig), B: math.Pow(col.B, ig)}
	}
	if c.WhiteCap > 0 && c.WhiteCap < 1 {
		limit := c.WhiteCap * 3
		if sum := col.R + col.G + col.B; sum > limit {
			k := limit / sum
			col = Color{R: col.R * k, G: col.G * k, B: col.B * k}
		}
	}
	return col.Clamped()
}
