package handle

import "github.com/caffeineduck/modhost/errors"

// Handle is an opaque, extension-visible proxy identifier. 0 is never issued.
type Handle uint32

// EventType identifies a handle lifecycle event.
type EventType uint8

const (
	EventAllocated EventType = iota
	EventReleased
)

func (t EventType) String() string {
	switch t {
	case EventAllocated:
		return "allocated"
	case EventReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Reason says why a handle was released.
type Reason string

const (
	ReasonDrop         Reason = "drop"          // the extension dropped the handle
	ReasonWindowClosed Reason = "window-closed" // the invocation ended
	ReasonCleared      Reason = "cleared"       // the table was cleared or closed
)

// Event represents a handle lifecycle event.
type Event struct {
	Type   EventType
	Handle Handle
	Reason Reason // set for EventReleased
}

// Observer receives notifications about handle lifecycle events.
type Observer interface {
	OnHandleEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnHandleEvent(e Event) { f(e) }

var (
	// ErrUnknownHandle is returned for handles that were never allocated or
	// were already released.
	ErrUnknownHandle = errors.New(errors.PhaseHandle, errors.KindUnknownHandle).
				Detail("handle was never allocated or already released").
				Build()

	// ErrTableClosed is returned by Allocate after Close.
	ErrTableClosed = errors.Closed(errors.PhaseHandle, "handle table")

	// ErrTableFull is returned when every handle value is live.
	ErrTableFull = errors.New(errors.PhaseHandle, errors.KindInvalidInput).
			Detail("no free handle values").
			Build()
)
