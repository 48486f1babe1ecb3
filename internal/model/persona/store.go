package persona

import "sync"

// Store exposes persona retrieval for the compose flow and HTTP handlers.
type Store interface {
	List() []Persona
	FindByID(id int) (Persona, bool)
}

// MemoryStore implements Store with an in-memory slice. The directory
// refreshes it with normalized personas after each successful listing.
type MemoryStore struct {
	mu    sync.RWMutex
	items []Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	return &MemoryStore{items: append([]Persona(nil), items...)}
}

// List returns a copy of the stored persona list.
func (s *MemoryStore) List() []Persona {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Persona(nil), s.items...)
}

// FindByID looks up a persona by identifier.
func (s *MemoryStore) FindByID(id int) (Persona, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Persona{}, false
}

// Replace swaps the stored list for a freshly normalized one.
func (s *MemoryStore) Replace(items []Persona) {
	s.mu.Lock()
	s.items = append([]Persona(nil), items...)
	s.mu.Unlock()
}
