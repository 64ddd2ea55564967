package driven

import (
	"context"

	"github.com/custodia-labs/docuchat/internal/core/domain"
)

// ChatStore persists chat sessions and their messages.
type ChatStore interface {
	// Save stores or updates a session and refreshes its UpdatedAt.
	// Messages already stored are kept; only new ones are appended.
	Save(ctx context.Context, session *domain.ChatSession) error

	// Update changes an existing session the same way Save does, but never
	// creates one. Returns domain.ErrNotFound if the session was deleted.
	Update(ctx context.Context, session *domain.ChatSession) error

	// Get retrieves a session with its full message history.
	// Returns domain.ErrNotFound if missing.
	Get(ctx context.Context, id string) (*domain.ChatSession, error)

	// List returns all sessions without messages, most recently updated first.
	List(ctx context.Context) ([]domain.ChatSession, error)

	// Delete removes a session and its messages.
	Delete(ctx context.Context, id string) error
}
