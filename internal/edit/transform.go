// Package edit implements the stroke edits: baking a pending group transform
// into point data, trimming against an oriented box, and recentering.
package edit

import (
	"fmt"
	gomath "math"

	"github.com/Faultbox/qvpen-tools/pkg/math"
	"github.com/Faultbox/qvpen-tools/pkg/stroke"
)

// identityEpsilon is how far a transform may drift from identity and still
// be treated as no transform at all.
const identityEpsilon = 1e-3

// RotationSnap is the rotation gizmo snap step (15 degrees).
const RotationSnap = gomath.Pi / 12

// ScaleSnap is the scale gizmo snap step.
const ScaleSnap = 0.1

// Transform is a translation, Euler rotation (radians, pitch/yaw/roll in
// X/Y/Z) and scale applied to the whole stroke set but not yet written into
// the point data.
type Transform struct {
	Translation math.Vec3
	Rotation    math.Vec3
	Scale       math.Vec3
}

// Identity returns the transform that leaves points unchanged.
func Identity() Transform {
	return Transform{Scale: math.One}
}

// IsNearIdentity reports whether t is within identityEpsilon of Identity.
func (t Transform) IsNearIdentity() bool {
	return t.Translation.Length() < identityEpsilon &&
		gomath.Abs(t.Rotation.X) < identityEpsilon &&
		gomath.Abs(t.Rotation.Y) < identityEpsilon &&
		gomath.Abs(t.Rotation.Z) < identityEpsilon &&
		gomath.Abs(t.Scale.X-1) < identityEpsilon &&
		gomath.Abs(t.Scale.Y-1) < identityEpsilon &&
		gomath.Abs(t.Scale.Z-1) < identityEpsilon
}

// Validate rejects non-finite components.
func (t Transform) Validate() error {
	if !t.Translation.IsFinite() || !t.Rotation.IsFinite() || !t.Scale.IsFinite() {
		return fmt.Errorf("%w: transform has non-finite components", stroke.ErrInvalidInput)
	}
	return nil
}

// Matrix returns the local-to-world matrix of t.
func (t Transform) Matrix() math.Mat4 {
	return math.Compose(t.Translation, t.Rotation, t.Scale)
}

// Snap rounds translation to increment, rotation to RotationSnap and scale to
// ScaleSnap, the way the gizmos snap when grid snapping is on.
func (t Transform) Snap(increment float64) Transform {
	if increment <= 0 {
		return t
	}
	return Transform{
		Translation: snapVec(t.Translation, increment),
		Rotation:    snapVec(t.Rotation, RotationSnap),
		Scale:       snapVec(t.Scale, ScaleSnap),
	}
}

func snapVec(v math.Vec3, step float64) math.Vec3 {
	return math.Vec3{
		X: gomath.Round(v.X/step) * step,
		Y: gomath.Round(v.Y/step) * step,
		Z: gomath.Round(v.Z/step) * step,
	}
}

// Bake writes t into the point data of set and returns the new set. When t is
// near identity the input set is returned as is and baked is false. The input
// is never modified; callers reset their pending transform to Identity after a
// successful bake.
func Bake(set *stroke.Set, t Transform) (out *stroke.Set, baked bool, err error) {
	if set == nil {
		return nil, false, fmt.Errorf("%w: nil stroke set", stroke.ErrInvalidInput)
	}
	if err := t.Validate(); err != nil {
		return nil, false, err
	}
	if t.IsNearIdentity() {
		return set, false, nil
	}
	out, err = BakeMatrix(set, t.Matrix())
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// BakeMatrix transforms every point of set by m into a new set with the same
// strokes, order, colors and widths.
func BakeMatrix(set *stroke.Set, m math.Mat4) (*stroke.Set, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}

	strokes := make([]stroke.Stroke, len(set.Strokes))
	for i, st := range set.Strokes {
		positions := make([]float64, len(st.Positions))
		for p := 0; p < st.PointCount(); p++ {
			q := m.TransformPoint(st.Point(p))
			positions[p*3] = q.X
			positions[p*3+1] = q.Y
			positions[p*3+2] = q.Z
		}
		strokes[i] = st.WithPositions(positions)
	}
	return set.CloneMeta(strokes), nil
}
