package zone

// Vector holds one color per zone, index-aligned with a Layout.
type Vector []Color

// NewVector returns n black zones.
func NewVector(n int) Vector { return make(Vector, n) }

func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// Equal reports whether v and o hold exactly the same colors in the same order.
func (v Vector) Equal(o Vector) bool {
	if len(v) != len(o) {
		return false
	}
	for i := range v {
		if v[i] != o[i] {
			return false
		}
	}
	return true
}

// RGB appends the 8-bit R,G,B bytes of every zone to dst in zone order.
func (v Vector) RGB(dst []byte) []byte {
	for _, c := range v {
		r, g, b := c.Bytes()
		dst = append(dst, r, g, b)
	}
	return dst
}

// Hex formats every zone as #rrggbb.
func (v Vector) Hex() []string {
	out := make([]string, len(v))
	for i, c := range v {
		out[i] = c.Hex()
	}
	return out
}

// Mix blends a toward b by alpha (0..1) into dst. alpha <= 0 copies a and
// alpha >= 1 copies b, so both ends are exact. Channels are linear.
func Mix(dst, a, b Vector, alpha float64) {
	if alpha <= 0 {
		copy(dst, a)
		return
	}
	if alpha >= 1 {
		copy(dst, b)
		return
	}
	for i := range dst {
		dst[i] = a[i].Blend(b[i], alpha)
	}
}
