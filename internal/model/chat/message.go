package chat

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Valid reports whether the role is one of the two known values.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleModel
}

// Message is one persisted chat bubble. A record is immutable once its turn
// finalizes; the only later mutation is a user edit of a text payload, which
// keeps the original timestamp so display order never shifts.
type Message struct {
	ID          string    `json:"id"`
	Seq         int64     `json:"seq,omitempty"`
	CharacterID string    `json:"characterId"`
	Role        Role      `json:"role"`
	Payload     Payload   `json:"payload"`
	Timestamp   time.Time `json:"timestamp"`
	Edited      bool      `json:"edited,omitempty"`
}

// NewMessage stamps a fresh message for a conversation. Seq is assigned by
// the store on save.
func NewMessage(characterID string, role Role, payload Payload) Message {
	return Message{
		ID:          uuid.NewString(),
		CharacterID: characterID,
		Role:        role,
		Payload:     payload,
		Timestamp:   time.Now().UTC(),
	}
}
