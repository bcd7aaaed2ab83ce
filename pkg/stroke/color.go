package stroke

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Faultbox/qvpen-tools/pkg/math"
)

// Color spec types as written in QvPen exports.
const (
	ColorSolid    = "solid"
	ColorGradient = "gradient"
)

// Color is an RGBA color with components in 0..1.
type Color struct {
	R, G, B, A float64
}

// White is the fallback color for strokes without a usable color spec.
var White = Color{1, 1, 1, 1}

// ParseHex parses "#rrggbb" (the leading '#' is optional).
func ParseHex(hex string) (Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(h) != 6 {
		return Color{}, fmt.Errorf("%w: color %q is not #rrggbb", ErrInvalidInput, hex)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w: color %q: %v", ErrInvalidInput, hex, err)
	}
	return Color{
		R: float64((v>>16)&0xff) / 255,
		G: float64((v>>8)&0xff) / 255,
		B: float64(v&0xff) / 255,
		A: 1,
	}, nil
}

// Hex formats the color as "#rrggbb", ignoring alpha.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", channel(c.R), channel(c.G), channel(c.B))
}

// Lerp interpolates linearly between two colors.
func (c Color) Lerp(other Color, t float64) Color {
	return Color{
		R: math.Lerp(c.R, other.R, t),
		G: math.Lerp(c.G, other.G, t),
		B: math.Lerp(c.B, other.B, t),
		A: math.Lerp(c.A, other.A, t),
	}
}

func channel(f float64) uint8 {
	switch {
	case f <= 0:
		return 0
	case f >= 1:
		return 255
	default:
		return uint8(f*255 + 0.5)
	}
}

// ColorSpec describes how a stroke is colored. It carries no geometry.
//
// On the wire a gradient is {"type":"gradient","value":["#rrggbb","#rrggbb"]}
// and a solid color is {"type":"solid","value":"#rrggbb"}. Values of any other
// shape are kept verbatim so they survive an export.
type ColorSpec struct {
	Type   string
	Values []string

	shape valueShape
	null  bool // decoded from an explicit "color": null
	raw   json.RawMessage
}

// valueShape records how Values was written so an export reproduces it.
type valueShape uint8

const (
	shapeAuto valueShape = iota
	shapeString
	shapeList
)

// Solid returns a single-color spec.
func Solid(hex string) ColorSpec {
	return ColorSpec{Type: ColorSolid, Values: []string{hex}, shape: shapeString}
}

// Gradient returns a spec blending from start to end along the stroke.
func Gradient(start, end string) ColorSpec {
	return ColorSpec{Type: ColorGradient, Values: []string{start, end}, shape: shapeList}
}

// IsZero reports whether the spec is absent. Strokes with a zero spec are
// written without a color key.
func (c ColorSpec) IsZero() bool {
	return !c.null && c.Type == "" && len(c.Values) == 0 && len(c.raw) == 0
}

// Colors resolves one color per point. Gradients interpolate linearly across
// the point index; solid colors repeat; anything unusable yields white.
func (c ColorSpec) Colors(pointCount int) []Color {
	if pointCount <= 0 {
		return nil
	}
	colors := make([]Color, pointCount)

	if c.Type == ColorGradient && len(c.Values) >= 2 {
		start, errStart := ParseHex(c.Values[0])
		end, errEnd := ParseHex(c.Values[1])
		if errStart == nil && errEnd == nil {
			for i := range colors {
				ratio := 0.0
				if pointCount > 1 {
					ratio = float64(i) / float64(pointCount-1)
				}
				colors[i] = start.Lerp(end, ratio)
			}
			return colors
		}
	}

	fill := White
	if c.Type != ColorGradient && len(c.Values) >= 1 {
		if solid, err := ParseHex(c.Values[0]); err == nil {
			fill = solid
		}
	}
	for i := range colors {
		colors[i] = fill
	}
	return colors
}

// Clone returns a deep copy.
func (c ColorSpec) Clone() ColorSpec {
	out := ColorSpec{Type: c.Type, shape: c.shape, null: c.null}
	if c.Values != nil {
		out.Values = append([]string{}, c.Values...)
	}
	if c.raw != nil {
		out.raw = append(json.RawMessage{}, c.raw...)
	}
	return out
}

// Equal reports structural equality.
func (c ColorSpec) Equal(other ColorSpec) bool {
	if c.Type != other.Type || c.shape != other.shape || c.null != other.null ||
		len(c.Values) != len(other.Values) {
		return false
	}
	for i := range c.Values {
		if c.Values[i] != other.Values[i] {
			return false
		}
	}
	return bytes.Equal(c.raw, other.raw)
}

type colorWire struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (c ColorSpec) MarshalJSON() ([]byte, error) {
	if c.null || c.IsZero() {
		return []byte("null"), nil
	}
	w := colorWire{Type: c.Type}
	var err error
	switch {
	case len(c.raw) > 0:
		w.Value = c.raw
	case c.shape == shapeString && len(c.Values) == 1:
		w.Value, err = json.Marshal(c.Values[0])
	case c.shape == shapeList:
		values := c.Values
		if values == nil {
			values = []string{}
		}
		w.Value, err = json.Marshal(values)
	case c.Type != ColorGradient && len(c.Values) == 1:
		w.Value, err = json.Marshal(c.Values[0])
	case len(c.Values) > 0:
		w.Value, err = json.Marshal(c.Values)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *ColorSpec) UnmarshalJSON(data []byte) error {
	*c = ColorSpec{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		c.null = true
		return nil
	}
	var w colorWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.Type = w.Type
	if len(w.Value) == 0 {
		return nil
	}

	if bytes.Equal(bytes.TrimSpace(w.Value), []byte("null")) {
		c.raw = append(json.RawMessage{}, w.Value...)
		return nil
	}
	var single string
	if err := json.Unmarshal(w.Value, &single); err == nil {
		c.Values = []string{single}
		c.shape = shapeString
		return nil
	}
	var list []string
	if err := json.Unmarshal(w.Value, &list); err == nil {
		c.Values = list
		c.shape = shapeList
		return nil
	}
	c.raw = append(json.RawMessage{}, w.Value...)
	return nil
}
