package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/docuchat/internal/core/domain"
	"github.com/custodia-labs/docuchat/internal/core/ports/driven"
)

// Ensure ChatStore implements the interface.
var _ driven.ChatStore = (*ChatStore)(nil)

// ChatStore is an in-memory implementation of driven.ChatStore.
type ChatStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.ChatSession
	now      func() time.Time
}

// NewChatStore creates a new in-memory chat store.
func NewChatStore() *ChatStore {
	return &ChatStore{
		sessions: make(map[string]domain.ChatSession),
		now:      time.Now,
	}
}

// Save stores or updates a session and refreshes its UpdatedAt.
// Stored messages are never replaced; only messages beyond them are appended.
func (s *ChatStore) Save(_ context.Context, session *domain.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(session)
	return nil
}

// Update behaves like Save but returns domain.ErrNotFound for a missing session.
func (s *ChatStore) Update(_ context.Context, session *domain.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; !ok {
		return domain.ErrNotFound
	}
	s.put(session)
	return nil
}

// put stores session; caller must hold the write lock.
func (s *ChatStore) put(session *domain.ChatSession) {
	session.Touch(s.now())

	stored, exists := s.sessions[session.ID]
	messages := session.Messages
	if exists && len(stored.Messages) <= len(messages) {
		messages = append(append([]domain.Message{}, stored.Messages...), messages[len(stored.Messages):]...)
	}

	saved := *session
	saved.Messages = append([]domain.Message(nil), messages...)
	s.sessions[session.ID] = saved
}

// Get retrieves a session with its messages.
func (s *ChatStore) Get(_ context.Context, id string) (*domain.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	session.Messages = append([]domain.Message(nil), session.Messages...)
	return &session, nil
}

// List returns sessions without messages, most recently updated first.
func (s *ChatStore) List(_ context.Context) ([]domain.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ChatSession, 0, len(s.sessions))
	for id := range s.sessions {
		session := s.sessions[id]
		session.Messages = nil
		result = append(result, session)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

// Delete removes a session.
func (s *ChatStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
