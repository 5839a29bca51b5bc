// Package handle maps the integers an extension sees to host-side proxies.
//
// Each extension instance owns one [Table]. A handle is allocated before an
// invocation and bound to the lease for that invocation's sharing window;
// resolving it yields a [Proxy] that reaches the lent value only while that
// window is open. Handle values are issued monotonically and are not reused
// while the table lives, so a stale handle can never alias a newer proxy.
package handle

import (
	"math"
	"slices"
	"sync"

	"github.com/caffeineduck/modhost/bridge"
	"github.com/caffeineduck/modhost/errors"
)

// Proxy is the object registered under a handle. It owns nothing; it only
// knows the window it may reach.
type Proxy[T any] struct {
	handle Handle
	lease  bridge.Lease[T]
}

// Handle returns the proxy's handle.
func (p *Proxy[T]) Handle() Handle {
	return p.handle
}

// Lease returns the lease the proxy was allocated with.
func (p *Proxy[T]) Lease() bridge.Lease[T] {
	return p.lease
}

// Use runs f on the lent value while the proxy's window is open.
func (p *Proxy[T]) Use(f func(*T) error) error {
	return p.lease.Use(f)
}

// Table is a per-extension handle table.
type Table[T any] struct {
	mu      sync.RWMutex
	entries map[Handle]*Proxy[T]
	last    Handle
	closed  bool

	observers []Observer
	obsMu     sync.RWMutex
}

// NewTable creates an empty table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{
		entries: make(map[Handle]*Proxy[T]),
	}
}

// Allocate registers a proxy bound to lease and returns its fresh handle.
func (t *Table[T]) Allocate(lease bridge.Lease[T]) (Handle, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, ErrTableClosed
	}
	if uint64(len(t.entries)) >= math.MaxUint32 {
		t.mu.Unlock()
		return 0, ErrTableFull
	}

	h := t.last
	for {
		h++
		if h == 0 {
			continue
		}
		if _, live := t.entries[h]; !live {
			break
		}
	}
	t.last = h
	t.entries[h] = &Proxy[T]{handle: h, lease: lease}
	t.mu.Unlock()

	t.notify(Event{Type: EventAllocated, Handle: h})
	return h, nil
}

// Resolve returns the proxy for h, or an unknown_handle error.
func (t *Table[T]) Resolve(h Handle) (*Proxy[T], error) {
	t.mu.RLock()
	p, ok := t.entries[h]
	t.mu.RUnlock()
	if !ok {
		return nil, unknown(h)
	}
	return p, nil
}

// Release removes h after the extension dropped it.
func (t *Table[T]) Release(h Handle) error {
	return t.remove(h, ReasonDrop)
}

// Expire removes h at the end of its invocation.
func (t *Table[T]) Expire(h Handle) error {
	return t.remove(h, ReasonWindowClosed)
}

func (t *Table[T]) remove(h Handle, reason Reason) error {
	t.mu.Lock()
	_, ok := t.entries[h]
	delete(t.entries, h)
	t.mu.Unlock()

	if !ok {
		return unknown(h)
	}
	t.notify(Event{Type: EventReleased, Handle: h, Reason: reason})
	return nil
}

// Len returns the number of live handles.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Live returns the live handles in ascending order.
func (t *Table[T]) Live() []Handle {
	t.mu.RLock()
	handles := make([]Handle, 0, len(t.entries))
	for h := range t.entries {
		handles = append(handles, h)
	}
	t.mu.RUnlock()
	slices.Sort(handles)
	return handles
}

// Clear releases every live handle.
func (t *Table[T]) Clear() {
	for _, h := range t.Live() {
		_ = t.remove(h, ReasonCleared)
	}
}

// Close clears the table and rejects further allocations.
func (t *Table[T]) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	t.Clear()
	return nil
}

// Subscribe adds an observer for lifecycle events.
func (t *Table[T]) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

func (t *Table[T]) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnHandleEvent(e)
	}
}

func unknown(h Handle) error {
	return errors.UnknownHandle(uint32(h))
}
