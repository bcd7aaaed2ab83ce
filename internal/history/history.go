// Package history keeps bounded undo/redo stacks of editing snapshots.
package history

import (
	"errors"

	"github.com/google/uuid"

	"github.com/Faultbox/qvpen-tools/internal/edit"
	"github.com/Faultbox/qvpen-tools/pkg/stroke"
)

// DefaultMaxLength is the undo depth used when none is configured.
const DefaultMaxLength = 20

// ErrEmptyHistory is returned by Undo and Redo when there is nothing to do.
// It is informational, not a failure.
var ErrEmptyHistory = errors.New("history is empty")

// Snapshot is an independent copy of the editable state. Once pushed it is
// owned by the Machine and never modified.
type Snapshot struct {
	// ID identifies the snapshot in logs; it does not take part in equality.
	ID        uuid.UUID
	Set       *stroke.Set
	Transform edit.Transform
}

// NewSnapshot deep-copies set so later edits to it do not reach the snapshot.
func NewSnapshot(set *stroke.Set, t edit.Transform) Snapshot {
	return Snapshot{
		ID:        uuid.New(),
		Set:       set.Clone(),
		Transform: t,
	}
}

// Equal reports whether two snapshots hold the same state.
func (s Snapshot) Equal(other Snapshot) bool {
	return s.Transform == other.Transform && s.Set.Equal(other.Set)
}

// Machine holds the undo and redo stacks. It is not safe for concurrent use;
// the editing session is its only writer.
type Machine struct {
	maxLen     int
	undo       []Snapshot
	redo       []Snapshot
	lastPushed *Snapshot
}

// New returns a Machine keeping at most maxLen undo steps. maxLen <= 0 means
// DefaultMaxLength.
func New(maxLen int) *Machine {
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	return &Machine{maxLen: maxLen}
}

// Push records s as a new undo step. A snapshot equal to the last one pushed
// is ignored. Any real push invalidates the redo stack. It reports whether s
// was recorded.
func (m *Machine) Push(s Snapshot) bool {
	if m.lastPushed != nil && m.lastPushed.Equal(s) {
		return false
	}
	m.pushUndo(s)
	m.lastPushed = &s
	m.redo = nil
	return true
}

// Undo returns the most recent undo step and stores current for Redo.
func (m *Machine) Undo(current Snapshot) (Snapshot, error) {
	if len(m.undo) == 0 {
		return Snapshot{}, ErrEmptyHistory
	}
	m.redo = append(m.redo, current)

	prev := m.undo[len(m.undo)-1]
	m.undo = m.undo[:len(m.undo)-1]
	m.syncLastPushed()
	return prev, nil
}

// Redo returns the most recently undone state and stores current for Undo.
// Unlike Push this keeps the rest of the redo stack.
func (m *Machine) Redo(current Snapshot) (Snapshot, error) {
	if len(m.redo) == 0 {
		return Snapshot{}, ErrEmptyHistory
	}
	m.pushUndo(current)
	m.syncLastPushed()

	next := m.redo[len(m.redo)-1]
	m.redo = m.redo[:len(m.redo)-1]
	return next, nil
}

// Clear drops both stacks, as when a new drawing is loaded.
func (m *Machine) Clear() {
	m.undo = nil
	m.redo = nil
	m.lastPushed = nil
}

// CanUndo reports whether Undo has anything to return.
func (m *Machine) CanUndo() bool { return len(m.undo) > 0 }

// CanRedo reports whether Redo has anything to return.
func (m *Machine) CanRedo() bool { return len(m.redo) > 0 }

// UndoLen returns the undo stack depth.
func (m *Machine) UndoLen() int { return len(m.undo) }

// RedoLen returns the redo stack depth.
func (m *Machine) RedoLen() int { return len(m.redo) }

// MaxLength returns the undo depth limit.
func (m *Machine) MaxLength() int { return m.maxLen }

// pushUndo appends s and evicts the oldest entries beyond maxLen.
func (m *Machine) pushUndo(s Snapshot) {
	m.undo = append(m.undo, s)
	if over := len(m.undo) - m.maxLen; over > 0 {
		m.undo = append([]Snapshot(nil), m.undo[over:]...)
	}
}

func (m *Machine) syncLastPushed() {
	if len(m.undo) == 0 {
		m.lastPushed = nil
		return
	}
	top := m.undo[len(m.undo)-1]
	m.lastPushed = &top
}
