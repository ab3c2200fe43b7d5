package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure Go sqlite driver

	"github.com/qinyuanli/bubblechat/backend/internal/model/chat"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	id           TEXT    NOT NULL UNIQUE,
	character_id TEXT    NOT NULL,
	role         TEXT    NOT NULL,
	payload      TEXT    NOT NULL,
	timestamp    INTEGER NOT NULL,
	edited       INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_messages_character_time
	ON messages(character_id, timestamp, seq);
`

// SQLiteStore implements MessageStore on a local sqlite file. Timestamps are
// stored as unix microseconds so the +1ms spacing of a finalized turn
// survives the round trip; payloads are stored as JSON.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	// single writer keeps the driver away from SQLITE_BUSY
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveMessage appends a message to its character's transcript.
func (s *SQLiteStore) SaveMessage(ctx context.Context, m *chat.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(m.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, character_id, role, payload, timestamp, edited) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.CharacterID, string(m.Role), string(payload), m.Timestamp.UnixMicro(), boolToInt(m.Edited))
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read message seq: %w", err)
	}
	m.Seq = seq
	return nil
}

// GetMessage looks up one message by id.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (chat.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT seq, id, character_id, role, payload, timestamp, edited FROM messages WHERE id = ?`, id)
	return scanMessage(row)
}

// UpdatePayload swaps the payload of an existing message in place.
func (s *SQLiteStore) UpdatePayload(ctx context.Context, id string, payload chat.Payload, edited bool) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET payload = ?, edited = ? WHERE id = ?`,
		string(encoded), boolToInt(edited), id)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return requireAffected(res)
}

// DeleteMessage removes one message.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return requireAffected(res)
}

// ListByCharacter returns the full ordered transcript of one character.
func (s *SQLiteStore) ListByCharacter(ctx context.Context, characterID string) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, id, character_id, role, payload, timestamp, edited FROM messages
		 WHERE character_id = ? ORDER BY timestamp, seq`, characterID)
	if err != nil {
		return nil, fmt.Errorf("query transcript: %w", err)
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcript: %w", err)
	}
	return msgs, nil
}

// FinalizeTurn swaps the placeholder for the finalized batch in one
// transaction.
func (s *SQLiteStore) FinalizeTurn(ctx context.Context, placeholderID string, batch []chat.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin finalize: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, placeholderID)
	if err != nil {
		return fmt.Errorf("remove placeholder: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}

	for i := range batch {
		m := &batch[i]
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		payload, err := json.Marshal(m.Payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO messages (id, character_id, role, payload, timestamp, edited) VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID, m.CharacterID, string(m.Role), string(payload), m.Timestamp.UnixMicro(), boolToInt(m.Edited))
		if err != nil {
			return fmt.Errorf("insert finalized message: %w", err)
		}
		seq, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("read message seq: %w", err)
		}
		m.Seq = seq
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit finalize: %w", err)
	}
	return nil
}

// ClearConversation drops one character's transcript.
func (s *SQLiteStore) ClearConversation(ctx context.Context, characterID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE character_id = ?`, characterID); err != nil {
		return fmt.Errorf("clear conversation: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (chat.Message, error) {
	var (
		m       chat.Message
		role    string
		payload string
		micros  int64
		edited  int
	)
	err := row.Scan(&m.Seq, &m.ID, &m.CharacterID, &role, &payload, &micros, &edited)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Message{}, ErrNotFound
	}
	if err != nil {
		return chat.Message{}, fmt.Errorf("scan message: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &m.Payload); err != nil {
		return chat.Message{}, fmt.Errorf("decode payload: %w", err)
	}
	m.Role = chat.Role(role)
	m.Timestamp = time.UnixMicro(micros).UTC()
	m.Edited = edited != 0
	return m, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
