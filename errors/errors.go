package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in the host the error occurred
type Phase string

const (
	PhaseConfig      Phase = "config"      // configuration loading
	PhaseLoad        Phase = "load"        // artifact reading and compilation
	PhaseInstantiate Phase = "instantiate" // module instantiation
	PhaseInvoke      Phase = "invoke"      // entry point calls
	PhaseBridge      Phase = "bridge"      // sharing window operations
	PhaseHandle      Phase = "handle"      // handle table operations
	PhaseHost        Phase = "host"        // host function surface
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidInput      Kind = "invalid_input"
	KindInvalidData       Kind = "invalid_data"
	KindNotFound          Kind = "not_found"
	KindMissingExport     Kind = "missing_export"
	KindMissingImport     Kind = "missing_import"
	KindSignatureMismatch Kind = "signature_mismatch"
	KindInstantiation     Kind = "instantiation"
	KindRegistration      Kind = "registration"
	KindUnknownHandle     Kind = "unknown_handle"
	KindNoActiveWindow    Kind = "no_active_window"
	KindStaleLease        Kind = "stale_lease"
	KindWindowOpen        Kind = "window_open"
	KindTrap              Kind = "trap"
	KindGuestError        Kind = "guest_error"
	KindTimeout           Kind = "timeout"
	KindClosed            Kind = "closed"
)

// Error is the structured error type used throughout the host
type Error struct {
	Cause     error
	Phase     Phase
	Kind      Kind
	Extension string
	Detail    string
	Handle    uint32
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Extension != "" {
		b.WriteString(" in ")
		b.WriteString(e.Extension)
	}

	if e.Handle != 0 {
		fmt.Fprintf(&b, " (handle %d)", e.Handle)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// Two structured errors match when phase and kind are equal.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Extension sets the extension name
func (b *Builder) Extension(name string) *Builder {
	b.err.Extension = name
	return b
}

// Handle sets the handle involved
func (b *Builder) Handle(h uint32) *Builder {
	b.err.Handle = h
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	err := b.err
	return &err
}

// IsKind reports whether any structured error in err's chain has the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}

// Is is errors.Is from the standard library.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is errors.As from the standard library.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Convenience constructors for common error patterns

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Load creates an artifact loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// Instantiation creates an instantiation error
func Instantiation(extension string, cause error) *Error {
	return &Error{
		Phase:     PhaseInstantiate,
		Kind:      KindInstantiation,
		Extension: extension,
		Detail:    "instantiate module",
		Cause:     cause,
	}
}

// Registration creates a host function registration error
func Registration(namespace, name string, cause error) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s#%s", namespace, name),
		Cause:  cause,
	}
}

// UnknownHandle creates an unknown handle error
func UnknownHandle(h uint32) *Error {
	return &Error{
		Phase:  PhaseHandle,
		Kind:   KindUnknownHandle,
		Handle: h,
		Detail: "handle was never allocated or already released",
	}
}

// Closed creates an error for operations on a closed object
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: what + " closed",
	}
}

// Config creates a configuration error
func Config(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindInvalidInput,
		Detail: detail,
		Cause:  cause,
	}
}

// MissingImport represents a single unresolved guest import
type MissingImport struct {
	Module   string // e.g., "mvp:game/api"
	Function string // e.g., "commands.spawn-stuff"
}

// MissingImportsError is returned when a guest imports host functions the surface does not provide
type MissingImportsError struct {
	Extension string
	Imports   []MissingImport
}

func (e *MissingImportsError) Error() string {
	if len(e.Imports) == 0 {
		return "[load] missing_import: no imports specified"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[load] missing_import in %s: %d host function(s) not provided:", e.Extension, len(e.Imports))
	for _, imp := range e.Imports {
		b.WriteString("\n  - ")
		b.WriteString(imp.Module)
		b.WriteByte('#')
		b.WriteString(imp.Function)
	}
	return b.String()
}

// Is reports whether target matches this error type
func (e *MissingImportsError) Is(target error) bool {
	switch t := target.(type) {
	case *MissingImportsError:
		return true
	case *Error:
		return t.Phase == PhaseLoad && t.Kind == KindMissingImport
	}
	return false
}
