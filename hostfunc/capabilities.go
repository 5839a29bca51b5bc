package hostfunc

import (
	"context"

	"go.uber.org/zap/zapcore"

	"github.com/caffeineduck/modhost/errors"
	"github.com/caffeineduck/modhost/handle"
)

// Capabilities is the closed set of operations an invocation exposes to its
// extension. The lifecycle installs one on the call context.
type Capabilities interface {
	// SpawnDefault spawns an entity with the default composition through h.
	SpawnDefault(h handle.Handle) error
	// Drop releases h.
	Drop(h handle.Handle) error
	// Log records a message from the extension.
	Log(level zapcore.Level, msg string)
}

type contextKey struct {
	name string
}

var capabilitiesKey = &contextKey{name: "capabilities"}

// WithCapabilities returns a context carrying caps for host function calls.
func WithCapabilities(ctx context.Context, caps Capabilities) context.Context {
	return context.WithValue(ctx, capabilitiesKey, caps)
}

// CapabilitiesFromContext retrieves the capabilities installed by WithCapabilities.
func CapabilitiesFromContext(ctx context.Context) (Capabilities, bool) {
	caps, ok := ctx.Value(capabilitiesKey).(Capabilities)
	return caps, ok && caps != nil
}

// Status is the i32 result code returned to the guest.
type Status uint32

const (
	StatusOK Status = iota
	StatusUnknownHandle
	StatusNoActiveWindow
	StatusInvalidArgument
	StatusInternal
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnknownHandle:
		return "unknown handle"
	case StatusNoActiveWindow:
		return "no active window"
	case StatusInvalidArgument:
		return "invalid argument"
	case StatusInternal:
		return "internal"
	default:
		return "unknown status"
	}
}

// StatusOf maps a capability error to the status reported to the guest.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.IsKind(err, errors.KindUnknownHandle):
		return StatusUnknownHandle
	case errors.IsKind(err, errors.KindNoActiveWindow), errors.IsKind(err, errors.KindStaleLease):
		return StatusNoActiveWindow
	case errors.IsKind(err, errors.KindInvalidInput):
		return StatusInvalidArgument
	default:
		return StatusInternal
	}
}
