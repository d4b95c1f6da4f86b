// Package retryset implements the pending-retry set: the synchronization
// primitive that resolves the race between a retry timer firing and
// shutdown draining. Whichever of {timer, shutdown} removes an entry
// first owns it; the other sees Remove return false and does nothing.
package retryset

import "sync"

// Set is a concurrent set whose Remove atomically reports whether the key
// was present. A sync.Map would almost work, but its LoadAndDelete
// already gives us exactly this atomicity, so that is what Set wraps.
type Set[K comparable, V any] struct {
	m sync.Map
}

// New builds an empty Set.
func New[K comparable, V any]() *Set[K, V] {
	return &Set[K, V]{}
}

// Add inserts value under key, replacing any existing entry.
func (s *Set[K, V]) Add(key K, value V) {
	s.m.Store(key, value)
}

// Remove atomically deletes key and reports whether it was present. This
// is the CAS gate: the retry timer and the shutdown drain both call
// Remove on the same key, and exactly one of them sees ok == true.
func (s *Set[K, V]) Remove(key K) (value V, ok bool) {
	v, loaded := s.m.LoadAndDelete(key)
	if !loaded {
		var zero V
		return zero, false
	}
	return v.(V), true
}

// Each calls fn for every entry currently in the set. Used only during
// shutdown drain, where the caller then calls Remove on each key it
// visits — Each itself does not remove anything, to avoid racing its own
// iteration.
func (s *Set[K, V]) Each(fn func(key K, value V)) {
	s.m.Range(func(k, v any) bool {
		fn(k.(K), v.(V))
		return true
	})
}

// Len returns the approximate number of entries currently tracked.
func (s *Set[K, V]) Len() int {
	n := 0
	s.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
