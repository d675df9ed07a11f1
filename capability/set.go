package capability

import (
	"errors"
	"sync"
)

// ErrNotInitialized is returned by every CapabilitySet operation when the
// set has not been initialized yet.
var ErrNotInitialized = errors.New("capability: set not initialized")

// Set is a thread-safe container of Capabilities guarded by a single
// exclusive lock. The zero value is not usable; call NewSet or Init first.
type Set struct {
	mu          sync.RWMutex
	items       map[key]Capability
	initialized bool
}

// NewSet returns an initialized, empty Set.
func NewSet() *Set {
	s := &Set{}
	s.Init()
	return s
}

// Init prepares an uninitialized Set for use. Safe to call more than once.
func (s *Set) Init() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.items == nil {
		s.items = make(map[key]Capability)
	}
	s.initialized = true
}

// Add registers a capability, replacing any existing entry with the same
// (kind, version).
func (s *Set) Add(c Capability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	s.items[c.key()] = c
	return nil
}

// Remove deletes a capability by (kind, version). Removing an absent
// capability is a no-op.
func (s *Set) Remove(c Capability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	delete(s.items, c.key())
	return nil
}

// Has reports whether the set contains a match for key, which may be a
// Capability (matched by kind+version), a Kind (matched by kind only,
// any version), or a string (treated as a Kind's string value).
func (s *Set) Has(k any) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return false, ErrNotInitialized
	}
	switch v := k.(type) {
	case Capability:
		_, ok := s.items[v.key()]
		return ok, nil
	case Kind:
		return s.hasKindLocked(v), nil
	case string:
		return s.hasKindLocked(Kind(v)), nil
	default:
		return false, nil
	}
}

func (s *Set) hasKindLocked(kind Kind) bool {
	for k := range s.items {
		if k.kind == kind {
			return true
		}
	}
	return false
}

// Get returns one capability matching kind (the first encountered; use
// GetByKind for every version). ok is false when no match exists.
func (s *Set) Get(kind Kind) (Capability, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return Capability{}, false, ErrNotInitialized
	}
	for k, c := range s.items {
		if k.kind == kind {
			return c, true, nil
		}
	}
	return Capability{}, false, nil
}

// GetByKind returns every capability registered under kind, across all
// versions.
func (s *Set) GetByKind(kind Kind) ([]Capability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	var out []Capability
	for k, c := range s.items {
		if k.kind == kind {
			out = append(out, c)
		}
	}
	return out, nil
}

// Snapshot returns a point-in-time copy of every capability in the set.
// Mutating the returned slice never affects the set.
func (s *Set) Snapshot() []Capability {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Capability, 0, len(s.items))
	for _, c := range s.items {
		out = append(out, c)
	}
	return out
}

// Live returns a channel that streams the current snapshot and is then
// closed. It exists alongside Snapshot so callers choose explicitly
// between "give me a slice" and "give me an iterator" rather than one
// value pretending to be both (see the design notes on awaitable-list
// hybrids).
func (s *Set) Live() <-chan Capability {
	out := make(chan Capability)
	snapshot := s.Snapshot()
	go func() {
		defer close(out)
		for _, c := range snapshot {
			out <- c
		}
	}()
	return out
}

// Len returns the number of distinct (kind, version) entries.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
