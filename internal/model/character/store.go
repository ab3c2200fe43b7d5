package character

// Store exposes character retrieval for handlers and services.
type Store interface {
	List() []Character
	FindByID(id string) (Character, bool)
}

// MemoryStore implements Store with an in-memory slice; the roster is fixed
// at startup.
type MemoryStore struct {
	items []Character
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied characters.
func NewMemoryStore(items []Character) *MemoryStore {
	return &MemoryStore{items: append([]Character(nil), items...)}
}

// List returns the roster.
func (s *MemoryStore) List() []Character {
	return append([]Character(nil), s.items...)
}

// FindByID looks up a character by identifier.
func (s *MemoryStore) FindByID(id string) (Character, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Character{}, false
}
