package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sweetpotato0/notelm/model"
	"github.com/sweetpotato0/notelm/pkg/errors"
)

// ConversationStore persists conversations and their messages.
type ConversationStore struct {
	db *sql.DB
}

// NewConversationStore creates a ConversationStore.
func NewConversationStore(db *sql.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// Save inserts or updates a conversation.
func (s *ConversationStore) Save(ctx context.Context, c model.Conversation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, notebook_id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			updated_at = EXCLUDED.updated_at`,
		c.ID, c.NotebookID, c.Title, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save conversation %s: %w", c.ID, err)
	}
	return nil
}

// Get fetches a conversation by id.
func (s *ConversationStore) Get(ctx context.Context, id string) (model.Conversation, error) {
	var c model.Conversation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, notebook_id, title, created_at, updated_at
		FROM conversations WHERE id = $1`, id).
		Scan(&c.ID, &c.NotebookID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.Conversation{}, errors.NotFoundf("conversation %s", id)
	}
	if err != nil {
		return model.Conversation{}, fmt.Errorf("get conversation %s: %w", id, err)
	}
	return c, nil
}

// ListByNotebook returns a notebook's conversations, newest first.
func (s *ConversationStore) ListByNotebook(ctx context.Context, notebookID string) ([]model.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, notebook_id, title, created_at, updated_at
		FROM conversations WHERE notebook_id = $1 ORDER BY updated_at DESC`, notebookID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []model.Conversation
	for rows.Next() {
		var c model.Conversation
		if err := rows.Scan(&c.ID, &c.NotebookID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Delete removes a conversation; its messages cascade.
func (s *ConversationStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	if n == 0 {
		return errors.NotFoundf("conversation %s", id)
	}
	return nil
}

// AppendMessage inserts a message and bumps the conversation timestamp.
func (s *ConversationStore) AppendMessage(ctx context.Context, m model.Message) error {
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, conversation_id, role, content, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			m.ID, m.ConversationID, m.Role, m.Content, m.CreatedAt)
		if err != nil {
			return fmt.Errorf("append message %s: %w", m.ID, err)
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE conversations SET updated_at = $2 WHERE id = $1`,
			m.ConversationID, m.CreatedAt)
		if err != nil {
			return fmt.Errorf("touch conversation %s: %w", m.ConversationID, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("touch conversation %s: %w", m.ConversationID, err)
		} else if n == 0 {
			return errors.NotFoundf("conversation %s", m.ConversationID)
		}
		return nil
	})
}

// ListMessages returns a conversation's messages in chronological order.
func (s *ConversationStore) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, created_at
		FROM messages WHERE conversation_id = $1 ORDER BY created_at`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
