package services

import (
	"context"
	"strings"
	"sync"

	"github.com/custodia-labs/docuchat/internal/core/domain"
	"github.com/custodia-labs/docuchat/internal/core/ports/driven"
)

// mockVectorIndex records calls and returns canned results.
type mockVectorIndex struct {
	mu         sync.Mutex
	upserts    []domain.Chunk
	deleted    []string
	queries    []string
	limits     []int
	results    []domain.RetrievalResult
	queryErr   error
	upsertErr  error
	failAfter  int
	deleteErr  error
	queryBlock chan struct{}
}

func (m *mockVectorIndex) Upsert(_ context.Context, key, text string, metadata domain.ChunkMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil && len(m.upserts) >= m.failAfter {
		return m.upsertErr
	}
	m.upserts = append(m.upserts, domain.Chunk{Key: key, Content: text, Metadata: metadata})
	return nil
}

func (m *mockVectorIndex) Query(ctx context.Context, text string, limit int) ([]domain.RetrievalResult, error) {
	m.mu.Lock()
	m.queries = append(m.queries, text)
	m.limits = append(m.limits, limit)
	block := m.queryBlock
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if limit < len(m.results) {
		return m.results[:limit], nil
	}
	return m.results, nil
}

func (m *mockVectorIndex) DeleteByDocumentID(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, documentID)
	return nil
}

func (m *mockVectorIndex) Close() error { return nil }

// mockGenerator returns a fixed reply and records what it was sent.
type mockGenerator struct {
	mu       sync.Mutex
	reply    string
	err      error
	models   []domain.ModelInfo
	calls    [][]driven.ChatMessage
	opts     []driven.CompletionOptions
	onCall   func()
	blockCtx bool
}

func (m *mockGenerator) ChatCompletion(
	ctx context.Context, messages []driven.ChatMessage, opts driven.CompletionOptions,
) (driven.Completion, error) {
	if m.onCall != nil {
		m.onCall()
	}
	m.mu.Lock()
	m.calls = append(m.calls, append([]driven.ChatMessage(nil), messages...))
	m.opts = append(m.opts, opts)
	m.mu.Unlock()

	if m.blockCtx {
		<-ctx.Done()
		return driven.Completion{}, domain.ErrBackendUnavailable
	}
	if m.err != nil {
		return driven.Completion{}, m.err
	}
	return driven.Completion{Content: m.reply, Model: opts.Model}, nil
}

func (m *mockGenerator) ListModels(_ context.Context) ([]domain.ModelInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.models, nil
}

func (m *mockGenerator) ModelName() string            { return "mock-model" }
func (m *mockGenerator) Ping(_ context.Context) error { return nil }
func (m *mockGenerator) Close() error                 { return nil }

func (m *mockGenerator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// keyedLocker is an in-process SessionLocker for tests.
type keyedLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newKeyedLocker() *keyedLocker {
	return &keyedLocker{locks: make(map[string]chan struct{})}
}

func (l *keyedLocker) Lock(ctx context.Context, sessionID string) (func(), error) {
	l.mu.Lock()
	ch, ok := l.locks[sessionID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[sessionID] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *keyedLocker) Close() error { return nil }

// mockExtractors extracts text/plain and rejects everything else.
type mockExtractors struct {
	err error
}

func (m *mockExtractors) Extract(_ context.Context, mediaType, _ string, content []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if !strings.HasPrefix(mediaType, "text/") {
		return "", domain.ErrUnsupportedType
	}
	return string(content), nil
}

// mockAIValidator records validation calls.
type mockAIValidator struct {
	embeddingErr  error
	generationErr error
	embedding     *domain.EmbeddingSettings
	generation    *domain.GenerationSettings
}

func (m *mockAIValidator) ValidateEmbedding(cfg *domain.EmbeddingSettings) error {
	m.embedding = cfg
	return m.embeddingErr
}

func (m *mockAIValidator) ValidateGeneration(cfg *domain.GenerationSettings) error {
	m.generation = cfg
	return m.generationErr
}

func envMap(values map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := values[name]
		return v, ok
	}
}
