package stroke

import "github.com/Faultbox/qvpen-tools/pkg/math"

// RenderStroke is what a renderer needs to draw one stroke.
type RenderStroke struct {
	Index  int
	Points []math.Vec3
	Colors []Color
	Width  float64
}

// ResolveWidth picks the width for stroke i: the stroke width, then its
// thickness, then the set-wide width, then defaultWidth. Non-positive values
// are skipped.
func (s *Set) ResolveWidth(i int, defaultWidth float64) float64 {
	st := s.Strokes[i]
	switch {
	case st.Width != nil && *st.Width > 0:
		return *st.Width
	case st.Thickness != nil && *st.Thickness > 0:
		return *st.Thickness
	case s.Width != nil && *s.Width > 0:
		return *s.Width
	default:
		return defaultWidth
	}
}

// Renderable resolves points, per-point colors and widths for every drawable
// stroke. Strokes with fewer than two points are skipped.
func (s *Set) Renderable(defaultWidth float64) []RenderStroke {
	out := make([]RenderStroke, 0, len(s.Strokes))
	for i, st := range s.Strokes {
		if st.PointCount() < 2 {
			continue
		}
		pts := st.Points()
		out = append(out, RenderStroke{
			Index:  i,
			Points: pts,
			Colors: st.Color.Colors(len(pts)),
			Width:  s.ResolveWidth(i, defaultWidth),
		})
	}
	return out
}
