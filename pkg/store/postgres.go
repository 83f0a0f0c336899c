package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/synod-ai/synod/pkg/database"
	"github.com/synod-ai/synod/pkg/models"
)

// PostgresStore persists conversations in PostgreSQL. Messages and turns
// live in seq-ordered child tables; the turn artifact is stored as JSONB.
type PostgresStore struct {
	db *sql.DB
}

var _ ConversationStore = (*PostgresStore)(nil)

// NewPostgresStore wraps an initialized database client. Migrations have
// already been applied by database.NewClient.
func NewPostgresStore(client *database.Client) *PostgresStore {
	return &PostgresStore{db: client.DB()}
}

// Load assembles a conversation from its row and child tables.
func (s *PostgresStore) Load(ctx context.Context, id string) (*models.Conversation, error) {
	conv := &models.Conversation{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM conversations WHERE id = $1`, id).
		Scan(&conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation %s: %w", id, err)
	}
	if err := s.loadMessages(ctx, conv); err != nil {
		return nil, err
	}
	if err := s.loadTurns(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *PostgresStore) loadMessages(ctx context.Context, conv *models.Conversation) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM conversation_messages
		 WHERE conversation_id = $1 ORDER BY seq`, conv.ID)
	if err != nil {
		return fmt.Errorf("failed to load messages for %s: %w", conv.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var msg models.ChatMessage
		if err := rows.Scan(&msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return fmt.Errorf("failed to scan message for %s: %w", conv.ID, err)
		}
		conv.Messages = append(conv.Messages, msg)
	}
	return rows.Err()
}

func (s *PostgresStore) loadTurns(ctx context.Context, conv *models.Conversation) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT turn FROM council_turns
		 WHERE conversation_id = $1 ORDER BY seq`, conv.ID)
	if err != nil {
		return fmt.Errorf("failed to load turns for %s: %w", conv.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return fmt.Errorf("failed to scan turn for %s: %w", conv.ID, err)
		}
		var turn models.CouncilTurn
		if err := json.Unmarshal(raw, &turn); err != nil {
			return fmt.Errorf("failed to decode turn for %s: %w", conv.ID, err)
		}
		conv.Turns = append(conv.Turns, &turn)
	}
	return rows.Err()
}

// Create inserts a new conversation row. An existing id is left untouched
// and the stored conversation is returned.
func (s *PostgresStore) Create(ctx context.Context, id string) (*models.Conversation, error) {
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, created_at, updated_at)
		 VALUES ($1, $2, $2)
		 ON CONFLICT (id) DO NOTHING`, id, now); err != nil {
		return nil, fmt.Errorf("failed to create conversation %s: %w", id, err)
	}
	return s.Load(ctx, id)
}

// AppendTurn writes the message pair and the turn artifact in one
// transaction. The conversation row is locked first so concurrent appends
// to the same conversation serialize and seq numbers stay contiguous.
func (s *PostgresStore) AppendTurn(ctx context.Context, id string, userMsg models.ChatMessage, turn *models.CouncilTurn, assistantMsg models.ChatMessage) error {
	turnJSON, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to encode turn %s: %w", turn.TurnID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var lockedID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM conversations WHERE id = $1 FOR UPDATE`, id).Scan(&lockedID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to lock conversation %s: %w", id, err)
	}

	var nextSeq int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM conversation_messages
		 WHERE conversation_id = $1`, id).Scan(&nextSeq); err != nil {
		return fmt.Errorf("failed to compute message seq for %s: %w", id, err)
	}
	for i, msg := range []models.ChatMessage{userMsg, assistantMsg} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_messages (conversation_id, seq, role, content, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			id, nextSeq+i, msg.Role, msg.Content, msg.Timestamp.UTC()); err != nil {
			return fmt.Errorf("failed to insert %s message for %s: %w", msg.Role, id, err)
		}
	}

	var nextTurnSeq int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM council_turns
		 WHERE conversation_id = $1`, id).Scan(&nextTurnSeq); err != nil {
		return fmt.Errorf("failed to compute turn seq for %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO council_turns (conversation_id, seq, turn, created_at)
		 VALUES ($1, $2, $3, $4)`,
		id, nextTurnSeq, turnJSON, turn.FinishedAt.UTC()); err != nil {
		return fmt.Errorf("failed to insert turn for %s: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to touch conversation %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit turn append for %s: %w", id, err)
	}
	return nil
}

// Delete removes the conversation; child rows go with it via ON DELETE
// CASCADE.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result for %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// List returns every conversation, most recently updated first.
func (s *PostgresStore) List(ctx context.Context) ([]*models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM conversations ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan conversation id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	out := make([]*models.Conversation, 0, len(ids))
	for _, id := range ids {
		conv, err := s.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, nil
}
