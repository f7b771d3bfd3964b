// Package reactive provides the read/replace/subscribe container stores are
// built on.
//
// Signal is a stand-in for a host UI runtime's reactive primitive. It is safe
// for concurrent use: Read never observes a value partway through Replace, and
// listeners run after the new value is committed.
package reactive

import "sync"

// Signal holds one value and notifies subscribers when it is replaced.
type Signal[T any] struct {
	mu        sync.RWMutex
	value     T
	equal     func(a, b T) bool
	listeners []*listener[T]
}

type listener[T any] struct {
	fn func(T)
}

// NewSignal creates a signal holding initial.
func NewSignal[T any](initial T) *Signal[T] {
	return &Signal[T]{value: initial}
}

// NewSignalWithEquality creates a signal that skips notifications when equal
// reports the replacement matches the current value.
func NewSignalWithEquality[T any](initial T, equal func(a, b T) bool) *Signal[T] {
	return &Signal[T]{value: initial, equal: equal}
}

// Read returns the current value.
func (s *Signal[T]) Read() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Replace swaps the value and notifies listeners in subscription order.
func (s *Signal[T]) Replace(next T) {
	s.mu.Lock()
	if s.equal != nil && s.equal(s.value, next) {
		s.mu.Unlock()
		return
	}
	s.value = next
	snapshot := make([]*listener[T], len(s.listeners))
	copy(snapshot, s.listeners)
	s.mu.Unlock()

	for _, l := range snapshot {
		l.fn(next)
	}
}

// Subscribe registers fn for future replacements. The returned function
// removes the subscription and may be called more than once.
func (s *Signal[T]) Subscribe(fn func(T)) func() {
	if fn == nil {
		return func() {}
	}
	l := &listener[T]{fn: fn}
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, existing := range s.listeners {
				if existing == l {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Len returns the number of active subscriptions.
func (s *Signal[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}
