package edit

import (
	"errors"
	"fmt"
	"time"

	"github.com/Faultbox/qvpen-tools/pkg/math"
	"github.com/Faultbox/qvpen-tools/pkg/stroke"
)

// Trim errors.
var (
	ErrInvalidBoxPose = fmt.Errorf("%w: invalid trim box pose", stroke.ErrInvalidInput)
	ErrEmptySet       = errors.New("stroke set has no points")
)

// minTrimPoints is the number of points a stroke needs to survive a trim.
const minTrimPoints = 2

// defaultTrimFill is how much of the drawing's bounds a new trim box covers.
const defaultTrimFill = 0.8

// TrimBox is an oriented box of unit size before scaling. Its half extents
// are Scale/2.
type TrimBox struct {
	Position math.Vec3
	Rotation math.Vec3
	Scale    math.Vec3
}

// Pose returns the box as a geometry pose.
func (b TrimBox) Pose() math.Pose {
	return math.Pose{Position: b.Position, Rotation: b.Rotation, Scale: b.Scale}
}

// HalfExtents returns Scale/2.
func (b TrimBox) HalfExtents() math.Vec3 {
	return b.Scale.Scale(0.5)
}

// Validate rejects boxes with a non-positive or non-finite scale axis.
func (b TrimBox) Validate() error {
	if !b.Position.IsFinite() || !b.Rotation.IsFinite() || !b.Scale.IsFinite() {
		return fmt.Errorf("%w: non-finite component", ErrInvalidBoxPose)
	}
	if b.Scale.X <= 0 || b.Scale.Y <= 0 || b.Scale.Z <= 0 {
		return fmt.Errorf("%w: scale %v must be positive on every axis", ErrInvalidBoxPose, b.Scale)
	}
	return nil
}

// worldToLocal maps world points into the box frame. Scale is left out of the
// matrix so the frame keeps world units and containment is tested against
// HalfExtents directly.
func (b TrimBox) worldToLocal() (math.Mat4, error) {
	m, err := math.Compose(b.Position, b.Rotation, math.One).Inverse()
	if err != nil {
		return math.Mat4{}, fmt.Errorf("%w: %v", ErrInvalidBoxPose, err)
	}
	return m, nil
}

// DefaultTrimBox returns the box a trim session starts with: centered on the
// drawing and covering 80% of its extent on each axis. Flat axes get a unit
// size.
func DefaultTrimBox(set *stroke.Set) TrimBox {
	box := TrimBox{Scale: math.One}
	if set == nil {
		return box
	}
	bounds := set.Bounds()
	if bounds.Empty {
		return box
	}
	size := bounds.Size().Scale(defaultTrimFill)
	if size.X <= 0 {
		size.X = 1
	}
	if size.Y <= 0 {
		size.Y = 1
	}
	if size.Z <= 0 {
		size.Z = 1
	}
	box.Position = bounds.Center()
	box.Scale = size
	return box
}

// TrimStats summarizes what a trim removed.
type TrimStats struct {
	StrokesIn  int
	StrokesOut int
	PointsIn   int
	PointsOut  int
}

// Trim keeps only the points of set that lie inside box, in their original
// order. Strokes left with fewer than two points are dropped; surviving strokes
// keep their color and width. The result carries the trim time in
// TrimmedTimestamp. set is not modified.
func Trim(set *stroke.Set, box TrimBox, now time.Time) (*stroke.Set, TrimStats, error) {
	if err := checkTrimInput(set, box); err != nil {
		return nil, TrimStats{}, err
	}
	toLocal, err := box.worldToLocal()
	if err != nil {
		return nil, TrimStats{}, err
	}
	half := box.HalfExtents()

	stats := TrimStats{StrokesIn: len(set.Strokes), PointsIn: set.TotalPoints()}
	strokes := make([]stroke.Stroke, 0, len(set.Strokes))

	for _, st := range set.Strokes {
		if st.PointCount() == 0 {
			continue
		}
		kept := make([]float64, 0, len(st.Positions))
		for p := 0; p < st.PointCount(); p++ {
			pt := st.Point(p)
			if math.PointInBox(toLocal.TransformPoint(pt), half) {
				kept = append(kept, pt.X, pt.Y, pt.Z)
			}
		}
		if len(kept) < minTrimPoints*3 {
			continue
		}
		strokes = append(strokes, st.WithPositions(kept))
		stats.PointsOut += len(kept) / 3
	}

	stats.StrokesOut = len(strokes)
	out := set.CloneMeta(strokes)
	out.TrimmedTimestamp = now.UTC().Format(time.RFC3339)
	return out, stats, nil
}

// TrimInterpolated trims like Trim but cuts strokes at the box faces instead
// of dropping whole segments: where a stroke crosses a face a boundary point
// is inserted, and a stroke that leaves and re-enters the box is split into
// separate strokes.
func TrimInterpolated(set *stroke.Set, box TrimBox, now time.Time) (*stroke.Set, TrimStats, error) {
	if err := checkTrimInput(set, box); err != nil {
		return nil, TrimStats{}, err
	}
	toLocal, err := box.worldToLocal()
	if err != nil {
		return nil, TrimStats{}, err
	}
	half := box.HalfExtents()
	pose := box.Pose()
	inside := func(p math.Vec3) bool {
		return math.PointInBox(toLocal.TransformPoint(p), half)
	}

	stats := TrimStats{StrokesIn: len(set.Strokes), PointsIn: set.TotalPoints()}
	strokes := make([]stroke.Stroke, 0, len(set.Strokes))
	emit := func(src stroke.Stroke, run []math.Vec3) {
		if len(run) < minTrimPoints {
			return
		}
		positions := make([]float64, 0, len(run)*3)
		for _, p := range run {
			positions = append(positions, p.X, p.Y, p.Z)
		}
		strokes = append(strokes, src.WithPositions(positions))
		stats.PointsOut += len(run)
	}

	for _, st := range set.Strokes {
		pts := st.Points()
		if len(pts) == 0 {
			continue
		}

		var run []math.Vec3
		prevIn := inside(pts[0])
		if prevIn {
			run = append(run, pts[0])
		}
		for i := 1; i < len(pts); i++ {
			a, b := pts[i-1], pts[i]
			bIn := inside(b)

			switch {
			case prevIn && bIn:
				run = append(run, b)
			case prevIn && !bIn:
				exit, ok, err := math.SegmentBoxIntersection(a, b, pose)
				if err != nil {
					return nil, TrimStats{}, fmt.Errorf("%w: %v", ErrInvalidBoxPose, err)
				}
				if ok && exit != a {
					run = append(run, exit)
				}
				emit(st, run)
				run = nil
			case !prevIn && bIn:
				entry, ok, err := math.SegmentBoxIntersection(a, b, pose)
				if err != nil {
					return nil, TrimStats{}, fmt.Errorf("%w: %v", ErrInvalidBoxPose, err)
				}
				run = nil
				if ok && entry != b {
					run = append(run, entry)
				}
				run = append(run, b)
			default:
				// Both ends outside: the segment may still pass through.
				if cut, ok := crossing(a, b, pose); ok {
					emit(st, cut)
				}
			}
			prevIn = bIn
		}
		emit(st, run)
	}

	stats.StrokesOut = len(strokes)
	out := set.CloneMeta(strokes)
	out.TrimmedTimestamp = now.UTC().Format(time.RFC3339)
	return out, stats, nil
}

// crossing returns the entry and exit points of a segment whose endpoints are
// both outside the box.
func crossing(a, b math.Vec3, pose math.Pose) ([]math.Vec3, bool) {
	entry, ok, err := math.SegmentBoxIntersection(a, b, pose)
	if err != nil || !ok || a.Distance(entry) > a.Distance(b) {
		return nil, false
	}
	exit, ok, err := math.SegmentBoxIntersection(b, a, pose)
	if err != nil || !ok || entry.Distance(exit) < 1e-9 {
		return nil, false
	}
	return []math.Vec3{entry, exit}, true
}

func checkTrimInput(set *stroke.Set, box TrimBox) error {
	if set == nil {
		return fmt.Errorf("%w: nil stroke set", stroke.ErrInvalidInput)
	}
	if err := set.Validate(); err != nil {
		return err
	}
	return box.Validate()
}
