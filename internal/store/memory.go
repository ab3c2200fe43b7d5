package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qinyuanli/bubblechat/backend/internal/model/chat"
)

// MemoryStore implements MessageStore in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	seq    int64
	byChar map[string][]chat.Message
	owner  map[string]string // message id -> character id
}

// NewMemoryStore bootstraps an empty in-memory message store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byChar: make(map[string][]chat.Message),
		owner:  make(map[string]string),
	}
}

// SaveMessage appends a message to its character's transcript.
func (s *MemoryStore) SaveMessage(_ context.Context, m *chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveLocked(m)
	return nil
}

func (s *MemoryStore) saveLocked(m *chat.Message) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	s.seq++
	m.Seq = s.seq
	s.byChar[m.CharacterID] = append(s.byChar[m.CharacterID], *m)
	s.owner[m.ID] = m.CharacterID
}

// GetMessage looks up one message by id.
func (s *MemoryStore) GetMessage(_ context.Context, id string) (chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	characterID, ok := s.owner[id]
	if !ok {
		return chat.Message{}, ErrNotFound
	}
	for _, m := range s.byChar[characterID] {
		if m.ID == id {
			return m, nil
		}
	}
	return chat.Message{}, ErrNotFound
}

// UpdatePayload swaps the payload of an existing message in place.
func (s *MemoryStore) UpdatePayload(_ context.Context, id string, payload chat.Payload, edited bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	characterID, ok := s.owner[id]
	if !ok {
		return ErrNotFound
	}
	msgs := s.byChar[characterID]
	for i := range msgs {
		if msgs[i].ID == id {
			msgs[i].Payload = payload
			msgs[i].Edited = edited
			return nil
		}
	}
	return ErrNotFound
}

// DeleteMessage removes one message.
func (s *MemoryStore) DeleteMessage(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(id)
}

func (s *MemoryStore) deleteLocked(id string) error {
	characterID, ok := s.owner[id]
	if !ok {
		return ErrNotFound
	}
	msgs := s.byChar[characterID]
	for i := range msgs {
		if msgs[i].ID == id {
			s.byChar[characterID] = append(msgs[:i:i], msgs[i+1:]...)
			delete(s.owner, id)
			return nil
		}
	}
	return ErrNotFound
}

// ListByCharacter returns a copy of the transcript ordered by display order.
func (s *MemoryStore) ListByCharacter(_ context.Context, characterID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.byChar[characterID]
	copied := make([]chat.Message, len(msgs))
	copy(copied, msgs)
	sort.SliceStable(copied, func(i, j int) bool {
		if copied[i].Timestamp.Equal(copied[j].Timestamp) {
			return copied[i].Seq < copied[j].Seq
		}
		return copied[i].Timestamp.Before(copied[j].Timestamp)
	})
	return copied, nil
}

// FinalizeTurn swaps the placeholder for the finalized batch under one lock
// so no reader ever sees both or a partial batch.
func (s *MemoryStore) FinalizeTurn(_ context.Context, placeholderID string, batch []chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.deleteLocked(placeholderID); err != nil {
		return err
	}
	for i := range batch {
		s.saveLocked(&batch[i])
	}
	return nil
}

// ClearConversation drops one character's transcript.
func (s *MemoryStore) ClearConversation(_ context.Context, characterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.byChar[characterID] {
		delete(s.owner, m.ID)
	}
	delete(s.byChar, characterID)
	return nil
}
