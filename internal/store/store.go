// Package store persists per-character chat transcripts. Two implementations
// ship: MemoryStore for dev runs and tests, SQLiteStore for durable single
// binary deployments.
package store

import (
	"context"
	"errors"

	"github.com/qinyuanli/bubblechat/backend/internal/model/chat"
)

// ErrNotFound is returned for point operations on unknown message ids.
var ErrNotFound = errors.New("message not found")

// MessageStore is the persistence contract the chat service writes through.
// Implementations must return transcripts ordered by (timestamp, seq) and
// make FinalizeTurn atomic: a concurrent reader observes the placeholder or
// the finalized batch, never a mix of both.
type MessageStore interface {
	// SaveMessage appends one message, assigning Seq (and ID/Timestamp when
	// unset) on the way in.
	SaveMessage(ctx context.Context, m *chat.Message) error
	// GetMessage looks up one message by id.
	GetMessage(ctx context.Context, id string) (chat.Message, error)
	// UpdatePayload swaps the payload (and edited flag) of an existing
	// message in place. Seq and Timestamp are untouched so ordering never
	// shifts under an edit.
	UpdatePayload(ctx context.Context, id string, payload chat.Payload, edited bool) error
	// DeleteMessage removes one message.
	DeleteMessage(ctx context.Context, id string) error
	// ListByCharacter returns the full ordered transcript of one character.
	ListByCharacter(ctx context.Context, characterID string) ([]chat.Message, error)
	// FinalizeTurn removes the turn's placeholder and appends the finalized
	// batch in one atomic step. An empty batch just removes the placeholder.
	FinalizeTurn(ctx context.Context, placeholderID string, batch []chat.Message) error
	// ClearConversation drops every message of one character.
	ClearConversation(ctx context.Context, characterID string) error
}
