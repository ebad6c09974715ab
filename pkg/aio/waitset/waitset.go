// Package waitset multiplexes completion events.
//
// A Set holds (tag, event) registrations and blocks until any registered
// event signals, returning the tag it was registered with. Registrations can
// be added and removed between waits while other operations are outstanding.
//
// Events are level-triggered: an event stays signaled until its owner re-arms
// it, so callers remove an event from the set once they have consumed its
// completion.
//
// Usage:
//
//	ws := waitset.New()
//	defer ws.Close()
//	_ = ws.Add(0, ev)
//	tag, ok, err := ws.Wait(ctx)
package waitset

import (
	"context"
	"errors"
	"reflect"
	"sync"
)

var (
	// ErrClosed is returned when using a set after Close.
	ErrClosed = errors.New("waitset: closed")

	// ErrDuplicate is returned when an event is registered twice.
	ErrDuplicate = errors.New("waitset: event already registered")
)

// Event is a completion signal source.
//
// Signaled returns the channel that is closed when the operation currently
// associated with the event completes. The returned channel may change
// between calls when the owner re-arms the event for a new operation.
type Event interface {
	Signaled() <-chan struct{}
}

type entry struct {
	tag int
	ev  Event
}

// Set is a wait set. It is safe for concurrent use, although the pipeline
// uses it from a single goroutine.
type Set struct {
	mu      sync.Mutex
	entries []entry
	closed  bool
}

// New creates an empty wait set.
func New() *Set {
	return &Set{}
}

// Add registers ev under tag.
func (s *Set) Add(tag int, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	for _, e := range s.entries {
		if e.ev == ev {
			return ErrDuplicate
		}
	}
	s.entries = append(s.entries, entry{tag: tag, ev: ev})
	return nil
}

// Remove unregisters ev. It reports whether ev was registered.
func (s *Set) Remove(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.entries {
		if e.ev == ev {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of registered events.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Wait blocks until a registered event signals and returns its tag.
//
// It returns ok=false without blocking when the set is empty, and the
// context error when ctx is done first.
func (s *Set) Wait(ctx context.Context) (tag int, ok bool, err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, false, ErrClosed
	}
	snapshot := make([]entry, len(s.entries))
	copy(snapshot, s.entries)
	s.mu.Unlock()

	if len(snapshot) == 0 {
		return 0, false, nil
	}

	// Fast path: report an already signaled event without building the
	// select cases.
	for _, e := range snapshot {
		select {
		case <-e.ev.Signaled():
			return e.tag, true, nil
		default:
		}
	}

	cases := make([]reflect.SelectCase, 0, len(snapshot)+1)
	cases = append(cases, reflect.SelectCase{
		Dir:  reflect.SelectRecv,
		Chan: reflect.ValueOf(ctx.Done()),
	})
	for _, e := range snapshot {
		cases = append(cases, reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(e.ev.Signaled()),
		})
	}

	chosen, _, _ := reflect.Select(cases)
	if chosen == 0 {
		return 0, false, ctx.Err()
	}
	return snapshot[chosen-1].tag, true, nil
}

// Close releases the set. Registered events are dropped.
func (s *Set) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.closed = true
	s.entries = nil
	return nil
}
