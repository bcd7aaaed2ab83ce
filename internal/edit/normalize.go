package edit

import (
	"fmt"

	"github.com/Faultbox/qvpen-tools/pkg/math"
	"github.com/Faultbox/qvpen-tools/pkg/stroke"
)

// NormalizeToOrigin moves the drawing so the center of its bounds sits at the
// origin. It returns the new set and the offset that was applied.
func NormalizeToOrigin(set *stroke.Set) (*stroke.Set, math.Vec3, error) {
	if set == nil {
		return nil, math.Vec3{}, fmt.Errorf("%w: nil stroke set", stroke.ErrInvalidInput)
	}
	bounds := set.Bounds()
	if bounds.Empty {
		return nil, math.Vec3{}, ErrEmptySet
	}
	offset := bounds.Center().Scale(-1)
	out, err := BakeMatrix(set, math.Translate(offset.X, offset.Y, offset.Z))
	if err != nil {
		return nil, math.Vec3{}, err
	}
	return out, offset, nil
}
