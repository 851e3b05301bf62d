// Package guard provides a per-name marker set for deduplicating
// concurrent initialization or refresh work. The registry-creation guard
// and the metadata-refresh guard are distinct Set instances: one guard's
// release must never unblock the other's work for the same name.
package guard

import "sync"

// Set tracks which names currently have an operation in flight.
type Set struct {
	mu    sync.Mutex
	names map[string]bool
}

func NewSet() *Set {
	return &Set{names: make(map[string]bool)}
}

// TryAcquire marks name as in flight. It returns false when another
// operation already holds the name; the check and the set are one atomic
// step.
func (s *Set) TryAcquire(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.names[name] {
		return false
	}
	s.names[name] = true
	return true
}

// Release clears name unconditionally. Callers release on both success
// and failure paths.
func (s *Set) Release(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.names, name)
}

// Held reports whether name currently has an operation in flight.
func (s *Set) Held(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.names[name]
}
