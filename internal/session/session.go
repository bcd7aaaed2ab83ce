// Package session owns the live stroke set and pending transform of one
// editing session and applies bake, trim, normalize, undo and redo to them.
package session

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/qvpen-tools/internal/config"
	"github.com/Faultbox/qvpen-tools/internal/edit"
	"github.com/Faultbox/qvpen-tools/internal/history"
	"github.com/Faultbox/qvpen-tools/pkg/formats"
	"github.com/Faultbox/qvpen-tools/pkg/math"
	"github.com/Faultbox/qvpen-tools/pkg/stroke"
)

// Session errors.
var (
	ErrNoData = errors.New("no stroke data loaded")
	ErrBusy   = errors.New("session is busy with another operation")
)

// Session is the single writer of the editable state. Every operation runs to
// completion before returning and either installs a complete new stroke set
// or leaves the previous one in place. It is not safe for concurrent use.
type Session struct {
	cfg     config.EditingConfig
	log     *zap.Logger
	history *history.Machine

	set       *stroke.Set
	transform edit.Transform
	dragging  bool
	busy      bool
	status    string

	subscribers []func(Event)
	now         func() time.Time
}

// New creates an empty session.
func New(cfg config.EditingConfig, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		cfg:       cfg,
		log:       log,
		history:   history.New(cfg.HistoryLimit),
		transform: edit.Identity(),
		now:       time.Now,
	}
}

// Subscribe registers fn to receive every event. Handlers run synchronously
// and must not call back into mutating session methods (they get ErrBusy).
func (s *Session) Subscribe(fn func(Event)) {
	s.subscribers = append(s.subscribers, fn)
}

// Set returns the live stroke set. Callers must treat it as read-only; it is
// replaced, never modified, by session operations.
func (s *Session) Set() *stroke.Set { return s.set }

// Transform returns the pending transform.
func (s *Session) Transform() edit.Transform { return s.transform }

// Status returns the last status line.
func (s *Session) Status() string { return s.status }

// CanUndo reports whether Undo would change anything.
func (s *Session) CanUndo() bool { return s.history.CanUndo() }

// CanRedo reports whether Redo would change anything.
func (s *Session) CanRedo() bool { return s.history.CanRedo() }

// HistoryDepth returns the undo and redo stack depths.
func (s *Session) HistoryDepth() (undo, redo int) {
	return s.history.UndoLen(), s.history.RedoLen()
}

// Renderable resolves the live strokes for drawing. Points are in data space;
// the renderer applies Transform on top.
func (s *Session) Renderable() []stroke.RenderStroke {
	if s.set == nil {
		return nil
	}
	return s.set.Renderable(s.cfg.DefaultLineWidth)
}

// DefaultTrimBox returns the trim box to show when trim mode starts.
func (s *Session) DefaultTrimBox() edit.TrimBox {
	return edit.DefaultTrimBox(s.set)
}

// Load replaces the session content with a copy of set, resets the pending
// transform and clears history.
func (s *Session) Load(set *stroke.Set) error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.leave()
	return s.loadLocked(set)
}

// LoadJSON parses a QvPen payload and loads it.
func (s *Session) LoadJSON(data []byte) error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.leave()

	set, err := formats.ParseQvPen(data)
	if err != nil {
		return s.fail("Error: invalid data format", err)
	}
	return s.loadLocked(set)
}

func (s *Session) loadLocked(set *stroke.Set) error {
	if err := set.Validate(); err != nil {
		return s.fail("Error: invalid data format", err)
	}
	loaded := set.Clone()

	if s.cfg.NormalizeOnLoad && loaded.TotalPoints() > 0 {
		normalized, offset, err := edit.NormalizeToOrigin(loaded)
		if err != nil {
			return s.fail("Error: normalize on load failed", err)
		}
		loaded = normalized
		s.log.Debug("normalized on load", zap.Float64("dx", offset.X), zap.Float64("dy", offset.Y), zap.Float64("dz", offset.Z))
	}

	s.set = loaded
	s.transform = edit.Identity()
	s.dragging = false
	s.history.Clear()

	name := loaded.FileName
	if name == "" {
		name = "Exported Data"
	}
	s.log.Info("stroke data loaded",
		zap.String("file", loaded.FileName),
		zap.Int("strokes", len(loaded.Strokes)),
		zap.Int("points", loaded.TotalPoints()))
	s.emit(EventLoaded, "Loaded: "+name)
	return nil
}

// BeginTransform records the state before an interactive drag.
func (s *Session) BeginTransform() error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.leave()

	if s.set == nil {
		return ErrNoData
	}
	s.pushHistory()
	s.dragging = true
	s.emit(EventTransformStart, "")
	return nil
}

// SetTransform updates the pending transform. Outside a drag the change is
// its own undo step. With snapping enabled the value is snapped first.
func (s *Session) SetTransform(t edit.Transform) error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.leave()

	if s.set == nil {
		return ErrNoData
	}
	if err := t.Validate(); err != nil {
		return s.fail("Error: invalid transform", err)
	}
	if s.cfg.SnapToGrid {
		t = t.Snap(s.cfg.SnapIncrement)
	}
	if !s.dragging {
		s.pushHistory()
	}
	s.transform = t
	s.emit(EventTransformUpdate, "")
	return nil
}

// EndTransform finishes an interactive drag.
func (s *Session) EndTransform() error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.leave()

	s.dragging = false
	s.emit(EventTransformEnd, "")
	return nil
}

// Bake writes the pending transform into the stroke data and resets it to
// identity. It reports false when the transform was already near identity.
func (s *Session) Bake() (bool, error) {
	if err := s.enter(); err != nil {
		return false, err
	}
	defer s.leave()
	return s.bakeLocked()
}

func (s *Session) bakeLocked() (bool, error) {
	if s.set == nil {
		return false, ErrNoData
	}
	if s.transform.IsNearIdentity() {
		return false, nil
	}

	baked, _, err := edit.Bake(s.set, s.transform)
	if err != nil {
		return false, s.fail("Error applying transform", err)
	}
	s.pushHistory()
	s.set = baked
	s.transform = edit.Identity()

	s.log.Info("transform baked", zap.Int("strokes", len(baked.Strokes)), zap.Int("points", baked.TotalPoints()))
	s.emit(EventBaked, fmt.Sprintf("Transform applied to %d strokes", len(baked.Strokes)))
	return true, nil
}

// Trim bakes any pending transform and then keeps only the stroke points
// inside box. With interpolate_trim enabled strokes are cut at the box faces.
func (s *Session) Trim(box edit.TrimBox) (edit.TrimStats, error) {
	return s.trim(box, s.cfg.InterpolateTrim)
}

// TrimInterpolated trims with cuts at the box faces regardless of config.
func (s *Session) TrimInterpolated(box edit.TrimBox) (edit.TrimStats, error) {
	return s.trim(box, true)
}

func (s *Session) trim(box edit.TrimBox, interpolate bool) (edit.TrimStats, error) {
	if err := s.enter(); err != nil {
		return edit.TrimStats{}, err
	}
	defer s.leave()

	if s.set == nil {
		return edit.TrimStats{}, ErrNoData
	}
	if err := box.Validate(); err != nil {
		return edit.TrimStats{}, s.fail("Error applying trim", err)
	}

	source := s.set
	if !s.transform.IsNearIdentity() {
		baked, _, err := edit.Bake(s.set, s.transform)
		if err != nil {
			return edit.TrimStats{}, s.fail("Error applying trim", err)
		}
		source = baked
	}

	trimFn := edit.Trim
	if interpolate {
		trimFn = edit.TrimInterpolated
	}
	trimmed, stats, err := trimFn(source, box, s.now())
	if err != nil {
		return edit.TrimStats{}, s.fail("Error applying trim", err)
	}

	s.pushHistory()
	s.set = trimmed
	s.transform = edit.Identity()

	s.log.Info("trim applied",
		zap.Bool("interpolated", interpolate),
		zap.Int("strokes_in", stats.StrokesIn),
		zap.Int("strokes_out", stats.StrokesOut),
		zap.Int("points_in", stats.PointsIn),
		zap.Int("points_out", stats.PointsOut))
	s.emit(EventTrimmed, fmt.Sprintf("Trim completed (%s)", s.now().Format("15:04:05")))
	return stats, nil
}

// Normalize bakes any pending transform and moves the drawing so its bounds
// are centered on the origin. It returns the applied offset.
func (s *Session) Normalize() (math.Vec3, error) {
	if err := s.enter(); err != nil {
		return math.Vec3{}, err
	}
	defer s.leave()

	if s.set == nil {
		return math.Vec3{}, ErrNoData
	}
	source, _, err := edit.Bake(s.set, s.transform)
	if err != nil {
		return math.Vec3{}, s.fail("Error: normalize failed", err)
	}
	normalized, offset, err := edit.NormalizeToOrigin(source)
	if err != nil {
		return math.Vec3{}, s.fail("Error: normalize failed", err)
	}

	s.pushHistory()
	s.set = normalized
	s.transform = edit.Identity()

	s.log.Info("normalized to origin", zap.Float64("dx", offset.X), zap.Float64("dy", offset.Y), zap.Float64("dz", offset.Z))
	s.emit(EventNormalized, "Normalized to origin")
	return offset, nil
}

// Undo restores the previous state. With nothing to undo it returns
// history.ErrEmptyHistory and only updates the status line.
func (s *Session) Undo() error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.leave()

	if s.set == nil {
		return ErrNoData
	}
	prev, err := s.history.Undo(s.current())
	if err != nil {
		s.status = "Nothing to undo"
		s.emit(EventMessage, s.status)
		return err
	}
	s.restore(prev)
	s.log.Debug("undo", zap.Stringer("snapshot", prev.ID))
	s.emit(EventUndone, fmt.Sprintf("State restored (%s)", s.now().Format("15:04:05")))
	return nil
}

// Redo reapplies the most recently undone state.
func (s *Session) Redo() error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.leave()

	if s.set == nil {
		return ErrNoData
	}
	next, err := s.history.Redo(s.current())
	if err != nil {
		s.status = "Nothing to redo"
		s.emit(EventMessage, s.status)
		return err
	}
	s.restore(next)
	s.log.Debug("redo", zap.Stringer("snapshot", next.ID))
	s.emit(EventRedone, fmt.Sprintf("State restored (%s)", s.now().Format("15:04:05")))
	return nil
}

// Export bakes any pending transform and serializes the stroke set.
func (s *Session) Export() ([]byte, error) {
	if err := s.enter(); err != nil {
		return nil, err
	}
	defer s.leave()

	if _, err := s.bakeLocked(); err != nil {
		return nil, err
	}
	data, err := formats.MarshalQvPen(s.set)
	if err != nil {
		return nil, s.fail("Error saving JSON", err)
	}
	s.log.Info("stroke data exported", zap.Int("strokes", len(s.set.Strokes)), zap.Int("bytes", len(data)))
	s.emit(EventExported, "Exported "+formats.ExportFileName(s.set, s.now()))
	return data, nil
}

// ExportFileName returns the name an export should be saved under.
func (s *Session) ExportFileName() string {
	return formats.ExportFileName(s.set, s.now())
}

func (s *Session) current() history.Snapshot {
	return history.NewSnapshot(s.set, s.transform)
}

func (s *Session) pushHistory() {
	snap := s.current()
	if s.history.Push(snap) {
		s.log.Debug("history push", zap.Stringer("snapshot", snap.ID), zap.Int("depth", s.history.UndoLen()))
	}
}

func (s *Session) restore(snap history.Snapshot) {
	s.set = snap.Set
	s.transform = snap.Transform
	s.dragging = false
}

func (s *Session) enter() error {
	if s.busy {
		return ErrBusy
	}
	s.busy = true
	return nil
}

func (s *Session) leave() {
	s.busy = false
}

// fail records a failure status and returns err unchanged. Live state is
// never touched on this path.
func (s *Session) fail(status string, err error) error {
	s.status = fmt.Sprintf("%s: %v", status, err)
	s.log.Warn(status, zap.Error(err))
	s.notify(Event{Kind: EventFailed, Message: s.status, Transform: s.transform, Err: err})
	return err
}

func (s *Session) emit(kind EventKind, message string) {
	if message != "" {
		s.status = message
	}
	s.notify(Event{Kind: kind, Message: message, Transform: s.transform})
}

func (s *Session) notify(ev Event) {
	for _, fn := range s.subscribers {
		fn(ev)
	}
}
