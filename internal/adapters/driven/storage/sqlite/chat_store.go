package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/docuchat/internal/core/domain"
	"github.com/custodia-labs/docuchat/internal/core/ports/driven"
)

// chatStore implements driven.ChatStore.
type chatStore struct {
	store *Store
	now   func() time.Time
}

var _ driven.ChatStore = (*chatStore)(nil)

func newChatStore(s *Store) *chatStore {
	return &chatStore{store: s, now: time.Now}
}

// Save upserts the session row and appends messages beyond those already stored.
func (s *chatStore) Save(ctx context.Context, session *domain.ChatSession) error {
	session.Touch(s.now())
	return s.write(ctx, session, `
		INSERT INTO chat_sessions (id, title, model, use_rag, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			model = excluded.model,
			use_rag = excluded.use_rag,
			updated_at = excluded.updated_at
	`, session.ID, session.Title, session.Model, session.UseRAG,
		session.CreatedAt.UTC(), session.UpdatedAt.UTC())
}

// Update rewrites an existing session row and appends new messages.
// Returns domain.ErrNotFound when the row is gone.
func (s *chatStore) Update(ctx context.Context, session *domain.ChatSession) error {
	session.Touch(s.now())
	return s.write(ctx, session, `
		UPDATE chat_sessions SET title = ?, model = ?, use_rag = ?, updated_at = ?
		WHERE id = ?
	`, session.Title, session.Model, session.UseRAG, session.UpdatedAt.UTC(), session.ID)
}

// write runs the session statement and appends new messages in one
// transaction. A statement that affects no row means the session is missing.
func (s *chatStore) write(ctx context.Context, session *domain.ChatSession, stmt string, args ...any) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}

	var stored int
	row := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM chat_messages WHERE session_id = ?", session.ID)
	if err := row.Scan(&stored); err != nil {
		return fmt.Errorf("counting messages: %w", err)
	}

	for i := stored; i < len(session.Messages); i++ {
		msg := session.Messages[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO chat_messages (session_id, position, role, content, timestamp)
			VALUES (?, ?, ?, ?, ?)
		`, session.ID, i, string(msg.Role), msg.Content, msg.Timestamp.UTC())
		if err != nil {
			return fmt.Errorf("appending message %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing session: %w", err)
	}
	return nil
}

// Get retrieves a session with its messages in order.
func (s *chatStore) Get(ctx context.Context, id string) (*domain.ChatSession, error) {
	var session domain.ChatSession
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, title, model, use_rag, created_at, updated_at
		FROM chat_sessions WHERE id = ?
	`, id)
	if err := row.Scan(&session.ID, &session.Title, &session.Model, &session.UseRAG,
		&session.CreatedAt, &session.UpdatedAt); err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning session: %w", err)
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT role, content, timestamp FROM chat_messages
		WHERE session_id = ? ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	session.Messages = make([]domain.Message, 0)
	for rows.Next() {
		var msg domain.Message
		var role string
		if err := rows.Scan(&role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.Role = domain.Role(role)
		session.Messages = append(session.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &session, nil
}

// List returns sessions without messages, most recently updated first.
func (s *chatStore) List(ctx context.Context) ([]domain.ChatSession, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, title, model, use_rag, created_at, updated_at
		FROM chat_sessions
		ORDER BY updated_at DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]domain.ChatSession, 0)
	for rows.Next() {
		var session domain.ChatSession
		if err := rows.Scan(&session.ID, &session.Title, &session.Model, &session.UseRAG,
			&session.CreatedAt, &session.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// Delete removes a session; messages cascade.
func (s *chatStore) Delete(ctx context.Context, id string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM chat_sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}
