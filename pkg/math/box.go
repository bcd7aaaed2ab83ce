package math

import "math"

// Pose is the position, Euler rotation and scale of an oriented unit box.
// Before scaling the box spans -0.5..0.5 on every axis.
type Pose struct {
	Position Vec3
	Rotation Vec3
	Scale    Vec3
}

// Matrix returns the box-local to world matrix.
func (p Pose) Matrix() Mat4 {
	return Compose(p.Position, p.Rotation, p.Scale)
}

// PointInBox reports whether a box-local point lies inside the box with the
// given half extents. Points on a face count as inside.
func PointInBox(local, halfExtents Vec3) bool {
	return math.Abs(local.X) <= halfExtents.X &&
		math.Abs(local.Y) <= halfExtents.Y &&
		math.Abs(local.Z) <= halfExtents.Z
}

// SegmentBoxIntersection finds where the segment p1->p2 crosses the oriented
// box described by pose. It returns the entry point, or the exit point when p1
// is already inside the box. ok is false when the line misses the box or the
// box lies entirely behind p1.
func SegmentBoxIntersection(p1, p2 Vec3, pose Pose) (point Vec3, ok bool, err error) {
	toWorld := pose.Matrix()
	toLocal, err := toWorld.Inverse()
	if err != nil {
		return Vec3{}, false, err
	}

	l1 := toLocal.TransformPoint(p1)
	dir := toLocal.TransformDirection(p2.Sub(p1)).Normalize()
	if dir == (Vec3{}) {
		if PointInBox(l1, Vec3{0.5, 0.5, 0.5}) {
			return p1, true, nil
		}
		return Vec3{}, false, nil
	}

	t1 := math.Inf(-1)
	t2 := math.Inf(1)

	for axis := 0; axis < 3; axis++ {
		o := l1.Component(axis)
		d := dir.Component(axis)

		// Parallel to this slab: the ray either stays inside it forever or
		// never enters it.
		if d == 0 {
			if o < -0.5 || o > 0.5 {
				return Vec3{}, false, nil
			}
			continue
		}

		tMin := (-0.5 - o) / d
		tMax := (0.5 - o) / d
		t1 = math.Max(t1, math.Min(tMin, tMax))
		t2 = math.Min(t2, math.Max(tMin, tMax))
	}

	if t1 > t2 || t2 < 0 {
		return Vec3{}, false, nil
	}

	t := t2
	if t1 >= 0 {
		t = t1
	}

	local := l1.Add(dir.Scale(t))
	return toWorld.TransformPoint(local), true, nil
}

// AABB represents an axis-aligned bounding box.
type AABB struct {
	Min   Vec3
	Max   Vec3
	Empty bool
}

// EmptyAABB returns a box that contains nothing; Extend grows it.
func EmptyAABB() AABB {
	return AABB{
		Min:   Vec3{math.Inf(1), math.Inf(1), math.Inf(1)},
		Max:   Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)},
		Empty: true,
	}
}

// Extend returns the box grown to include p.
func (b AABB) Extend(p Vec3) AABB {
	return AABB{
		Min: Vec3{math.Min(b.Min.X, p.X), math.Min(b.Min.Y, p.Y), math.Min(b.Min.Z, p.Z)},
		Max: Vec3{math.Max(b.Max.X, p.X), math.Max(b.Max.Y, p.Y), math.Max(b.Max.Z, p.Z)},
	}
}

// Center returns the midpoint of the box.
func (b AABB) Center() Vec3 {
	return LerpVec3(b.Min, b.Max, 0.5)
}

// Size returns the box dimensions.
func (b AABB) Size() Vec3 {
	return b.Max.Sub(b.Min)
}
