package session

import (
	"fmt"

	"github.com/Faultbox/qvpen-tools/internal/edit"
)

// EventKind tells the editing UI what just happened.
type EventKind int

// Event kinds.
const (
	EventLoaded EventKind = iota
	EventTransformStart
	EventTransformUpdate
	EventTransformEnd
	EventBaked
	EventTrimmed
	EventNormalized
	EventUndone
	EventRedone
	EventMessage // Informational only, state unchanged
	EventFailed
	EventExported
)

// String returns a human-readable event name.
func (k EventKind) String() string {
	switch k {
	case EventLoaded:
		return "Loaded"
	case EventTransformStart:
		return "TransformStart"
	case EventTransformUpdate:
		return "TransformUpdate"
	case EventTransformEnd:
		return "TransformEnd"
	case EventBaked:
		return "Baked"
	case EventTrimmed:
		return "Trimmed"
	case EventNormalized:
		return "Normalized"
	case EventUndone:
		return "Undone"
	case EventRedone:
		return "Redone"
	case EventMessage:
		return "Message"
	case EventFailed:
		return "Failed"
	case EventExported:
		return "Exported"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Event is sent to subscribers after every state change or status update.
// Transform is the pending transform after the change, for display.
type Event struct {
	Kind      EventKind
	Message   string
	Transform edit.Transform
	Err       error
}
