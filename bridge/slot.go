// Package bridge lends a host-owned value to code the host does not control,
// for exactly the duration of one callback.
//
// A [Slot] holds at most one borrowed reference. [Slot.Share] installs the
// reference, runs the body, and clears the slot before returning, whatever
// the body does. Code reached from the body reaches the reference through
// [Slot.TryUse] or a [Lease]; outside the window both report
// [ErrNoActiveWindow].
//
// Every window has a generation number. A lease is bound to one generation,
// so a lease kept past its window can never reach a later window's value.
package bridge

import (
	"sync"

	"github.com/caffeineduck/modhost/errors"
)

var (
	// ErrNoActiveWindow is returned when no window is open.
	ErrNoActiveWindow = errors.New(errors.PhaseBridge, errors.KindNoActiveWindow).
				Detail("no sharing window is open").
				Build()

	// ErrStaleLease is returned when a lease is used while a different window is open.
	ErrStaleLease = errors.New(errors.PhaseBridge, errors.KindStaleLease).
			Detail("lease belongs to another window").
			Build()
)

// Slot is a single-entry holder for a temporarily lent *T.
// The zero value is an empty slot ready for use.
type Slot[T any] struct {
	mu   sync.Mutex
	ref  *T
	open bool
	gen  uint64 // generation of the current or most recent window
}

// Lease is a token for one future or current window of a slot.
type Lease[T any] struct {
	slot *Slot[T]
	gen  uint64
}

// Share opens a window around body with ref installed.
// The slot is cleared before Share returns, also when body fails or panics.
// Opening a window while another is open panics with a window_open error.
func (s *Slot[T]) Share(ref *T, body func() error) error {
	s.mu.Lock()
	gen := s.gen + 1
	s.mu.Unlock()
	return s.share(gen, ref, body)
}

// Reserve returns a lease bound to the next window opened on this slot.
func (s *Slot[T]) Reserve() Lease[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Lease[T]{slot: s, gen: s.gen + 1}
}

// ShareLease opens the window the lease was reserved for.
// It returns ErrStaleLease without running body when another window was
// opened since the reservation.
func (s *Slot[T]) ShareLease(lease Lease[T], ref *T, body func() error) error {
	if lease.slot != s {
		return ErrStaleLease
	}
	return s.share(lease.gen, ref, body)
}

func (s *Slot[T]) share(gen uint64, ref *T, body func() error) error {
	s.mu.Lock()
	if s.open {
		s.mu.Unlock()
		panic(errors.New(errors.PhaseBridge, errors.KindWindowOpen).
			Detail("window %d is still open; nested sharing is not allowed", s.gen).
			Build())
	}
	if gen != s.gen+1 {
		s.mu.Unlock()
		return ErrStaleLease
	}
	s.gen = gen
	s.ref = ref
	s.open = true
	s.mu.Unlock()

	defer s.close()

	return body()
}

func (s *Slot[T]) close() {
	s.mu.Lock()
	s.ref = nil
	s.open = false
	s.mu.Unlock()
}

// TryUse runs f with exclusive access to the shared value.
// It returns ErrNoActiveWindow when no window is open.
// f must not open a window on the same slot.
func (s *Slot[T]) TryUse(f func(*T) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrNoActiveWindow
	}
	return f(s.ref)
}

// Active reports whether a window is open.
func (s *Slot[T]) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Generation returns the generation of the current or most recent window.
func (s *Slot[T]) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Use runs f with exclusive access to the shared value, only while the
// lease's own window is open.
func (l Lease[T]) Use(f func(*T) error) error {
	if l.slot == nil {
		return ErrNoActiveWindow
	}
	s := l.slot
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrNoActiveWindow
	}
	if s.gen != l.gen {
		return ErrStaleLease
	}
	return f(s.ref)
}

// Generation returns the window generation this lease is bound to.
func (l Lease[T]) Generation() uint64 {
	return l.gen
}

// Valid reports whether the lease's window is open right now.
func (l Lease[T]) Valid() bool {
	if l.slot == nil {
		return false
	}
	l.slot.mu.Lock()
	defer l.slot.mu.Unlock()
	return l.slot.open && l.slot.gen == l.gen
}
