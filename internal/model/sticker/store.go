package sticker

// Lookup is the read side consumed by the payload classifier and the
// transcript encoder.
type Lookup interface {
	FindByName(name string) (Sticker, bool)
	FindByID(id string) (Sticker, bool)
}

// Store exposes the full catalog on top of Lookup.
type Store interface {
	Lookup
	List() []Sticker
}

// MemoryStore implements Store with an in-memory slice; the catalog is fixed
// at startup.
type MemoryStore struct {
	items []Sticker
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied stickers.
func NewMemoryStore(items []Sticker) *MemoryStore {
	return &MemoryStore{items: append([]Sticker(nil), items...)}
}

// List returns the catalog.
func (s *MemoryStore) List() []Sticker {
	return append([]Sticker(nil), s.items...)
}

// FindByName looks up a sticker by its tag name.
func (s *MemoryStore) FindByName(name string) (Sticker, bool) {
	for _, item := range s.items {
		if item.Name == name {
			return item, true
		}
	}
	return Sticker{}, false
}

// FindByID looks up a sticker by catalog id.
func (s *MemoryStore) FindByID(id string) (Sticker, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Sticker{}, false
}
