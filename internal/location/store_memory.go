package location

import (
	"context"
	"fmt"
	"sync"

	"civreg/pkg/platform/sentinel"
)

// InMemory is a map-backed Resolver for tests and single-node deployments
// where the hierarchy is seeded from configuration.
type InMemory struct {
	mu        sync.RWMutex
	locations map[string]Location
}

func NewInMemory(seed ...Location) *InMemory {
	s := &InMemory{locations: make(map[string]Location, len(seed))}
	for _, loc := range seed {
		s.locations[loc.ID] = loc
	}
	return s
}

// Add registers or replaces a location.
func (s *InMemory) Add(loc Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations[loc.ID] = loc
}

// Hierarchy walks the partOf chain, leaf first. A broken chain (dangling
// parent reference) fails rather than returning a partial walk.
func (s *InMemory) Hierarchy(_ context.Context, locationID string) ([]Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var chain []Location
	id := locationID
	for id != "" {
		loc, ok := s.locations[id]
		if !ok {
			if len(chain) == 0 {
				return nil, fmt.Errorf("location %q: %w", id, sentinel.ErrNotFound)
			}
			return nil, fmt.Errorf("location %q references missing parent %q: %w", chain[len(chain)-1].ID, id, sentinel.ErrNotFound)
		}
		chain = append(chain, loc)
		if len(chain) > len(s.locations) {
			return nil, fmt.Errorf("location %q: partOf cycle", locationID)
		}
		id = loc.PartOf
	}
	return chain, nil
}
