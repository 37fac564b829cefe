package l2zones

import (
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r2"
)

// Store holds the zones configured for one camera, in insertion order.
// It is safe for concurrent use: the frame pipeline reads it while the
// API adds and removes zones.
type Store struct {
	mu     sync.RWMutex
	zones  []Zone
	byName map[string]int
}

// NewStore returns an empty zone store.
func NewStore() *Store {
	return &Store{byName: make(map[string]int)}
}

// Add inserts a zone, stamping CreatedAt if unset. Names are unique per
// store.
func (s *Store) Add(z Zone, now time.Time) (Zone, error) {
	if z.Name == "" {
		return Zone{}, ErrMissingName
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[z.Name]; exists {
		return Zone{}, fmt.Errorf("%w: %q", ErrDuplicateZone, z.Name)
	}
	if z.CreatedAt.IsZero() {
		z.CreatedAt = now
	}
	s.byName[z.Name] = len(s.zones)
	s.zones = append(s.zones, z)
	return z, nil
}

// Remove deletes the named zone.
func (s *Store) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrZoneNotFound, name)
	}
	s.zones = append(s.zones[:idx], s.zones[idx+1:]...)
	delete(s.byName, name)
	for i := idx; i < len(s.zones); i++ {
		s.byName[s.zones[i].Name] = i
	}
	return nil
}

// Get returns the named zone.
func (s *Store) Get(name string) (Zone, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byName[name]
	if !ok {
		return Zone{}, false
	}
	return s.zones[idx], true
}

// List returns a snapshot of all zones in insertion order.
func (s *Store) List() []Zone {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Zone, len(s.zones))
	copy(out, s.zones)
	return out
}

// Len returns the number of zones.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.zones)
}

// Containing returns the zones that contain p, in insertion order.
func (s *Store) Containing(p r2.Vec) []Zone {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Zone
	for _, z := range s.zones {
		if z.Contains(p) {
			out = append(out, z)
		}
	}
	return out
}
