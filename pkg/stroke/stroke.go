// Package stroke holds the in-memory model of a recorded set of 3D pen strokes.
package stroke

import (
	"errors"
	"fmt"

	"github.com/Faultbox/qvpen-tools/pkg/math"
)

// ErrInvalidInput reports malformed stroke or box data.
var ErrInvalidInput = errors.New("invalid input")

// Stroke is one continuous drawn line.
type Stroke struct {
	// Positions holds x, y, z triples back to back.
	Positions []float64 `json:"positions"`
	Color     ColorSpec `json:"color,omitzero"`
	Width     *float64  `json:"width,omitempty"`
	Thickness *float64  `json:"thickness,omitempty"`
}

// PointCount returns the number of complete points.
func (s Stroke) PointCount() int {
	return len(s.Positions) / 3
}

// Point returns the i-th point.
func (s Stroke) Point(i int) math.Vec3 {
	return math.Vec3{X: s.Positions[i*3], Y: s.Positions[i*3+1], Z: s.Positions[i*3+2]}
}

// Points returns the stroke points as vectors.
func (s Stroke) Points() []math.Vec3 {
	pts := make([]math.Vec3, s.PointCount())
	for i := range pts {
		pts[i] = s.Point(i)
	}
	return pts
}

// Valid reports whether the stroke can be drawn: whole triples and at least
// two points.
func (s Stroke) Valid() bool {
	return len(s.Positions)%3 == 0 && s.PointCount() >= 2
}

// Clone returns a deep copy.
func (s Stroke) Clone() Stroke {
	out := Stroke{
		Positions: append([]float64(nil), s.Positions...),
		Color:     s.Color.Clone(),
		Width:     cloneFloat(s.Width),
		Thickness: cloneFloat(s.Thickness),
	}
	if s.Positions != nil && out.Positions == nil {
		out.Positions = []float64{}
	}
	return out
}

// Equal reports structural equality.
func (s Stroke) Equal(other Stroke) bool {
	if len(s.Positions) != len(other.Positions) {
		return false
	}
	for i := range s.Positions {
		if s.Positions[i] != other.Positions[i] {
			return false
		}
	}
	return s.Color.Equal(other.Color) &&
		floatPtrEqual(s.Width, other.Width) &&
		floatPtrEqual(s.Thickness, other.Thickness)
}

// WithPositions returns a copy of the stroke metadata carrying new positions.
func (s Stroke) WithPositions(positions []float64) Stroke {
	return Stroke{
		Positions: positions,
		Color:     s.Color.Clone(),
		Width:     cloneFloat(s.Width),
		Thickness: cloneFloat(s.Thickness),
	}
}

// Set is the full collection of strokes of one loaded drawing.
type Set struct {
	Strokes          []Stroke
	Width            *float64
	FileName         string
	Timestamp        string
	TrimmedTimestamp string
}

// Validate checks that every stroke has whole point triples.
func (s *Set) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil stroke set", ErrInvalidInput)
	}
	for i, st := range s.Strokes {
		if len(st.Positions)%3 != 0 {
			return fmt.Errorf("%w: stroke %d has %d coordinates, not a multiple of 3",
				ErrInvalidInput, i, len(st.Positions))
		}
	}
	if s.Width != nil && *s.Width < 0 {
		return fmt.Errorf("%w: negative global width %v", ErrInvalidInput, *s.Width)
	}
	return nil
}

// TotalPoints returns the number of points across all strokes.
func (s *Set) TotalPoints() int {
	n := 0
	for _, st := range s.Strokes {
		n += st.PointCount()
	}
	return n
}

// Bounds returns the axis-aligned bounds of every point in the set.
func (s *Set) Bounds() math.AABB {
	b := math.EmptyAABB()
	for _, st := range s.Strokes {
		for i := 0; i < st.PointCount(); i++ {
			b = b.Extend(st.Point(i))
		}
	}
	return b
}

// Clone returns a copy that shares no memory with s.
func (s *Set) Clone() *Set {
	if s == nil {
		return nil
	}
	out := &Set{
		Width:            cloneFloat(s.Width),
		FileName:         s.FileName,
		Timestamp:        s.Timestamp,
		TrimmedTimestamp: s.TrimmedTimestamp,
	}
	if s.Strokes != nil {
		out.Strokes = make([]Stroke, len(s.Strokes))
		for i, st := range s.Strokes {
			out.Strokes[i] = st.Clone()
		}
	}
	return out
}

// CloneMeta returns a copy of the non-stroke fields with the given strokes.
func (s *Set) CloneMeta(strokes []Stroke) *Set {
	return &Set{
		Strokes:          strokes,
		Width:            cloneFloat(s.Width),
		FileName:         s.FileName,
		Timestamp:        s.Timestamp,
		TrimmedTimestamp: s.TrimmedTimestamp,
	}
}

// Equal reports structural equality of two sets.
func (s *Set) Equal(other *Set) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.Strokes) != len(other.Strokes) ||
		s.FileName != other.FileName ||
		s.Timestamp != other.Timestamp ||
		s.TrimmedTimestamp != other.TrimmedTimestamp ||
		!floatPtrEqual(s.Width, other.Width) {
		return false
	}
	for i := range s.Strokes {
		if !s.Strokes[i].Equal(other.Strokes[i]) {
			return false
		}
	}
	return true
}

// Float returns a pointer to v, for optional width fields.
func Float(v float64) *float64 {
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
