package session

import (
	"errors"
	gomath "math"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/qvpen-tools/internal/config"
	"github.com/Faultbox/qvpen-tools/internal/edit"
	"github.com/Faultbox/qvpen-tools/internal/history"
	"github.com/Faultbox/qvpen-tools/pkg/formats"
	"github.com/Faultbox/qvpen-tools/pkg/math"
	"github.com/Faultbox/qvpen-tools/pkg/stroke"
)

var fixedNow = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func newTestSession(t *testing.T, mutate func(*config.EditingConfig)) *Session {
	t.Helper()
	cfg := config.Default().Editing
	if mutate != nil {
		mutate(&cfg)
	}
	s := New(cfg, zap.NewNop())
	s.now = func() time.Time { return fixedNow }
	return s
}

func lineSet() *stroke.Set {
	return &stroke.Set{
		Strokes: []stroke.Stroke{{
			Positions: []float64{0, 0, 0, 1, 0, 0, 2, 0, 0},
			Color:     stroke.Solid("#ffffff"),
		}},
		FileName: "line.json",
	}
}

func translateX(x float64) edit.Transform {
	tr := edit.Identity()
	tr.Translation = math.Vec3{X: x}
	return tr
}

func positionsNear(got, want []float64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if gomath.Abs(got[i]-want[i]) > 1e-6 {
			return false
		}
	}
	return true
}

func TestLoadResetsState(t *testing.T) {
	s := newTestSession(t, nil)
	if err := s.Load(lineSet()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := s.SetTransform(translateX(1)); err != nil {
		t.Fatalf("SetTransform failed: %v", err)
	}
	if !s.CanUndo() {
		t.Fatal("expected an undo step after SetTransform")
	}

	if err := s.Load(lineSet()); err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if s.CanUndo() || s.CanRedo() {
		t.Error("Load should clear history")
	}
	if s.Transform() != edit.Identity() {
		t.Errorf("Transform after Load: got %+v, want identity", s.Transform())
	}
	if s.Status() != "Loaded: line.json" {
		t.Errorf("Status: got %q", s.Status())
	}
}

func TestLoadCopiesInput(t *testing.T) {
	s := newTestSession(t, nil)
	in := lineSet()
	if err := s.Load(in); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	in.Strokes[0].Positions[0] = 99
	if s.Set().Strokes[0].Positions[0] != 0 {
		t.Error("session shares point data with the caller")
	}
}

func TestLoadJSONBareArray(t *testing.T) {
	s := newTestSession(t, nil)
	data := []byte(`[{"positions":[0,0,0,1,1,1],"color":{"type":"solid","value":"#ff0000"}}]`)
	if err := s.LoadJSON(data); err != nil {
		t.Fatalf("LoadJSON failed: %v", err)
	}
	if s.Set().FileName != formats.DefaultBareFileName {
		t.Errorf("FileName: got %q, want %q", s.Set().FileName, formats.DefaultBareFileName)
	}
	if s.Set().TotalPoints() != 2 {
		t.Errorf("TotalPoints: got %d, want 2", s.Set().TotalPoints())
	}
}

func TestLoadJSONInvalidKeepsState(t *testing.T) {
	s := newTestSession(t, nil)
	if err := s.Load(lineSet()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	var failed []Event
	s.Subscribe(func(ev Event) {
		if ev.Kind == EventFailed {
			failed = append(failed, ev)
		}
	})

	if err := s.LoadJSON([]byte(`{"strokes": 5}`)); err == nil {
		t.Fatal("expected error for invalid payload")
	}
	if s.Set().FileName != "line.json" {
		t.Error("failed load replaced the live set")
	}
	if len(failed) != 1 {
		t.Fatalf("failed events: got %d, want 1", len(failed))
	}
	if !strings.HasPrefix(s.Status(), "Error: invalid data format") {
		t.Errorf("Status: got %q", s.Status())
	}
}

func TestNormalizeOnLoad(t *testing.T) {
	s := newTestSession(t, func(c *config.EditingConfig) { c.NormalizeOnLoad = true })
	if err := s.Load(lineSet()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := []float64{-1, 0, 0, 0, 0, 0, 1, 0, 0}
	if got := s.Set().Strokes[0].Positions; !positionsNear(got, want) {
		t.Errorf("positions: got %v, want %v", got, want)
	}
}

func TestBakeAndUndoRedo(t *testing.T) {
	s := newTestSession(t, nil)
	if err := s.Load(lineSet()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := s.SetTransform(translateX(1)); err != nil {
		t.Fatalf("SetTransform failed: %v", err)
	}

	baked, err := s.Bake()
	if err != nil {
		t.Fatalf("Bake failed: %v", err)
	}
	if !baked {
		t.Fatal("expected bake to happen")
	}
	wantBaked := []float64{1, 0, 0, 2, 0, 0, 3, 0, 0}
	if got := s.Set().Strokes[0].Positions; !positionsNear(got, wantBaked) {
		t.Errorf("baked positions: got %v, want %v", got, wantBaked)
	}
	if s.Transform() != edit.Identity() {
		t.Error("Bake should reset the pending transform")
	}

	// Undo the bake: original points with the transform still pending.
	if err := s.Undo(); err != nil {
		t.Fatalf("Undo failed: %v", err)
	}
	if got := s.Set().Strokes[0].Positions; !positionsNear(got, lineSet().Strokes[0].Positions) {
		t.Errorf("undone positions: got %v", got)
	}
	if s.Transform() != translateX(1) {
		t.Errorf("undone transform: got %+v", s.Transform())
	}

	// Undo the transform change.
	if err := s.Undo(); err != nil {
		t.Fatalf("second Undo failed: %v", err)
	}
	if s.Transform() != edit.Identity() {
		t.Errorf("transform after second undo: got %+v", s.Transform())
	}

	if err := s.Redo(); err != nil {
		t.Fatalf("Redo failed: %v", err)
	}
	if err := s.Redo(); err != nil {
		t.Fatalf("second Redo failed: %v", err)
	}
	if got := s.Set().Strokes[0].Positions; !positionsNear(got, wantBaked) {
		t.Errorf("redone positions: got %v, want %v", got, wantBaked)
	}
	if s.CanRedo() {
		t.Error("redo stack should be empty")
	}
}

func TestBakeNearIdentity(t *testing.T) {
	s := newTestSession(t, nil)
	if err := s.Load(lineSet()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	baked, err := s.Bake()
	if err != nil {
		t.Fatalf("Bake failed: %v", err)
	}
	if baked {
		t.Error("identity transform should not bake")
	}
	if s.CanUndo() {
		t.Error("no-op bake should not record history")
	}
}

func TestUndoEmpty(t *testing.T) {
	s := newTestSession(t, nil)
	if err := s.Load(lineSet()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	var kinds []EventKind
	s.Subscribe(func(ev Event) { kinds = append(kinds, ev.Kind) })

	if err := s.Undo(); !errors.Is(err, history.ErrEmptyHistory) {
		t.Errorf("Undo: got %v, want ErrEmptyHistory", err)
	}
	if s.Status() != "Nothing to undo" {
		t.Errorf("Status: got %q", s.Status())
	}
	if err := s.Redo(); !errors.Is(err, history.ErrEmptyHistory) {
		t.Errorf("Redo: got %v, want ErrEmptyHistory", err)
	}
	if s.Status() != "Nothing to redo" {
		t.Errorf("Status: got %q", s.Status())
	}
	if len(kinds) != 2 || kinds[0] != EventMessage || kinds[1] != EventMessage {
		t.Errorf("events: got %v", kinds)
	}
}

func TestNoData(t *testing.T) {
	s := newTestSession(t, nil)
	if _, err := s.Bake(); !errors.Is(err, ErrNoData) {
		t.Errorf("Bake: got %v, want ErrNoData", err)
	}
	if _, err := s.Trim(s.DefaultTrimBox()); !errors.Is(err, ErrNoData) {
		t.Errorf("Trim: got %v, want ErrNoData", err)
	}
	if err := s.SetTransform(translateX(1)); !errors.Is(err, ErrNoData) {
		t.Errorf("SetTransform: got %v, want ErrNoData", err)
	}
	if s.Renderable() != nil {
		t.Error("Renderable should be nil without data")
	}
}

func TestTrimBakesPendingTransform(t *testing.T) {
	s := newTestSession(t, nil)
	if err := s.Load(lineSet()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := s.SetTransform(translateX(1)); err != nil {
		t.Fatalf("SetTransform failed: %v", err)
	}

	// Unit box around x=2.5 keeps the baked points at x=2 and x=3.
	box := edit.TrimBox{Position: math.Vec3{X: 2.5}, Scale: math.Vec3{X: 1.2, Y: 1, Z: 1}}
	stats, err := s.Trim(box)
	if err != nil {
		t.Fatalf("Trim failed: %v", err)
	}
	want := []float64{2, 0, 0, 3, 0, 0}
	if got := s.Set().Strokes[0].Positions; !positionsNear(got, want) {
		t.Errorf("positions: got %v, want %v", got, want)
	}
	if stats.PointsIn != 3 || stats.PointsOut != 2 {
		t.Errorf("stats: got %+v", stats)
	}
	if s.Transform() != edit.Identity() {
		t.Error("Trim should reset the pending transform")
	}
	if s.Set().TrimmedTimestamp != fixedNow.Format(time.RFC3339) {
		t.Errorf("TrimmedTimestamp: got %q", s.Set().TrimmedTimestamp)
	}
	if s.Status() != "Trim completed (07:08:09)" {
		t.Errorf("Status: got %q", s.Status())
	}

	if err := s.Undo(); err != nil {
		t.Fatalf("Undo failed: %v", err)
	}
	if got := s.Set().Strokes[0].Positions; !positionsNear(got, lineSet().Strokes[0].Positions) {
		t.Errorf("undone positions: got %v", got)
	}
	if s.Transform() != translateX(1) {
		t.Errorf("undone transform: got %+v", s.Transform())
	}
}

func TestTrimInvalidBoxKeepsState(t *testing.T) {
	s := newTestSession(t, nil)
	if err := s.Load(lineSet()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	box := edit.TrimBox{Scale: math.Vec3{X: gomath.NaN(), Y: 1, Z: 1}}
	if _, err := s.Trim(box); !errors.Is(err, stroke.ErrInvalidInput) {
		t.Errorf("Trim: got %v, want ErrInvalidInput", err)
	}
	if s.CanUndo() {
		t.Error("failed trim recorded history")
	}
	if s.Set().TotalPoints() != 3 {
		t.Error("failed trim changed the live set")
	}
}

func TestTrimInterpolated(t *testing.T) {
	s := newTestSession(t, nil)
	if err := s.Load(lineSet()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	box := edit.TrimBox{Scale: math.Vec3{X: 1, Y: 1, Z: 1}}
	if _, err := s.TrimInterpolated(box); err != nil {
		t.Fatalf("TrimInterpolated failed: %v", err)
	}
	want := []float64{0, 0, 0, 0.5, 0, 0}
	if got := s.Set().Strokes[0].Positions; !positionsNear(got, want) {
		t.Errorf("positions: got %v, want %v", got, want)
	}
}

func TestNormalize(t *testing.T) {
	s := newTestSession(t, nil)
	if err := s.Load(lineSet()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	offset, err := s.Normalize()
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if offset != (math.Vec3{X: -1}) {
		t.Errorf("offset: got %+v", offset)
	}
	want := []float64{-1, 0, 0, 0, 0, 0, 1, 0, 0}
	if got := s.Set().Strokes[0].Positions; !positionsNear(got, want) {
		t.Errorf("positions: got %v, want %v", got, want)
	}
	if !s.CanUndo() {
		t.Error("Normalize should record history")
	}
}

func TestDragIsOneUndoStep(t *testing.T) {
	s := newTestSession(t, nil)
	if err := s.Load(lineSet()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := s.BeginTransform(); err != nil {
		t.Fatalf("BeginTransform failed: %v", err)
	}
	for i := 1; i <= 5; i++ {
		if err := s.SetTransform(translateX(float64(i) * 0.1)); err != nil {
			t.Fatalf("SetTransform failed: %v", err)
		}
	}
	if err := s.EndTransform(); err != nil {
		t.Fatalf("EndTransform failed: %v", err)
	}
	if undo, _ := s.HistoryDepth(); undo != 1 {
		t.Errorf("undo depth: got %d, want 1", undo)
	}
	if err := s.Undo(); err != nil {
		t.Fatalf("Undo failed: %v", err)
	}
	if s.Transform() != edit.Identity() {
		t.Errorf("transform after undo: got %+v", s.Transform())
	}
}

func TestSnapToGrid(t *testing.T) {
	s := newTestSession(t, func(c *config.EditingConfig) {
		c.SnapToGrid = true
		c.SnapIncrement = 0.5
	})
	if err := s.Load(lineSet()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := s.SetTransform(translateX(0.7)); err != nil {
		t.Fatalf("SetTransform failed: %v", err)
	}
	if got := s.Transform().Translation.X; gomath.Abs(got-0.5) > 1e-9 {
		t.Errorf("snapped X: got %v, want 0.5", got)
	}
}

func TestHistoryLimit(t *testing.T) {
	s := newTestSession(t, func(c *config.EditingConfig) { c.HistoryLimit = 3 })
	if err := s.Load(lineSet()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	for i := 1; i <= 10; i++ {
		if err := s.SetTransform(translateX(float64(i))); err != nil {
			t.Fatalf("SetTransform failed: %v", err)
		}
	}
	if undo, _ := s.HistoryDepth(); undo != 3 {
		t.Errorf("undo depth: got %d, want 3", undo)
	}
}

func TestExportBakesPendingTransform(t *testing.T) {
	s := newTestSession(t, nil)
	if err := s.Load(lineSet()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := s.SetTransform(translateX(1)); err != nil {
		t.Fatalf("SetTransform failed: %v", err)
	}
	data, err := s.Export()
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	set, err := formats.ParseQvPen(data)
	if err != nil {
		t.Fatalf("exported payload does not parse: %v", err)
	}
	want := []float64{1, 0, 0, 2, 0, 0, 3, 0, 0}
	if got := set.Strokes[0].Positions; !positionsNear(got, want) {
		t.Errorf("exported positions: got %v, want %v", got, want)
	}
	if s.ExportFileName() != "line.json" {
		t.Errorf("ExportFileName: got %q", s.ExportFileName())
	}
}

func TestExportNotifiesSubscribers(t *testing.T) {
	s := newTestSession(t, nil)
	if err := s.Load(lineSet()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	var got []Event
	s.Subscribe(func(ev Event) { got = append(got, ev) })

	if _, err := s.Export(); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("events: got %d, want 1", len(got))
	}
	if got[0].Kind != EventExported {
		t.Errorf("kind: got %v, want %v", got[0].Kind, EventExported)
	}
	if got[0].Message != "Exported line.json" || s.Status() != got[0].Message {
		t.Errorf("message: got %q, status %q", got[0].Message, s.Status())
	}
}

func TestReentrantCallIsBusy(t *testing.T) {
	s := newTestSession(t, nil)
	if err := s.Load(lineSet()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	var inner error
	s.Subscribe(func(ev Event) {
		if ev.Kind == EventBaked {
			_, inner = s.Normalize()
		}
	})
	if err := s.SetTransform(translateX(1)); err != nil {
		t.Fatalf("SetTransform failed: %v", err)
	}
	if _, err := s.Bake(); err != nil {
		t.Fatalf("Bake failed: %v", err)
	}
	if !errors.Is(inner, ErrBusy) {
		t.Errorf("nested call: got %v, want ErrBusy", inner)
	}
}

func TestEventKindString(t *testing.T) {
	if EventTrimmed.String() != "Trimmed" {
		t.Errorf("got %q", EventTrimmed.String())
	}
	if EventKind(99).String() != "Unknown(99)" {
		t.Errorf("got %q", EventKind(99).String())
	}
}
