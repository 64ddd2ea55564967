package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docuchat/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docuchat/internal/core/domain"
	"github.com/custodia-labs/docuchat/internal/core/ports/driving"
)

type chatFixture struct {
	service *ChatService
	store   *memory.ChatStore
	index   *mockVectorIndex
	gen     *mockGenerator
}

func newChatFixture(t *testing.T, cfg ChatConfig) *chatFixture {
	t.Helper()
	f := &chatFixture{
		store: memory.NewChatStore(),
		index: &mockVectorIndex{},
		gen:   &mockGenerator{reply: "Answer."},
	}
	f.service = NewChatService(f.store, f.index, f.gen, newKeyedLocker(), cfg)
	return f
}

func (f *chatFixture) session(t *testing.T, useRAG bool) *domain.ChatSession {
	t.Helper()
	session, err := f.service.Create(context.Background(), driving.CreateChatRequest{UseRAG: &useRAG})
	require.NoError(t, err)
	return session
}

func sampleResults() []domain.RetrievalResult {
	return []domain.RetrievalResult{
		{Key: "doc-1_0", Content: "Go was created in 2007.", Similarity: 0.9,
			Metadata: domain.ChunkMetadata{DocumentID: "doc-1", Filename: "history.txt"}},
		{Key: "doc-1_1", Content: "It was announced in 2009.", Similarity: 0.8,
			Metadata: domain.ChunkMetadata{DocumentID: "doc-1", Filename: "history.txt", SequenceIndex: 1}},
	}
}

func TestChatService_Create_Defaults(t *testing.T) {
	f := newChatFixture(t, ChatConfig{})
	fixed := time.Date(2024, 3, 2, 15, 4, 5, 0, time.UTC)
	f.service.now = func() time.Time { return fixed }

	session, err := f.service.Create(context.Background(), driving.CreateChatRequest{})

	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "Chat 2024-03-02 15:04:05", session.Title)
	assert.Equal(t, domain.DefaultChatModel, session.Model)
	assert.True(t, session.UseRAG)
	assert.Empty(t, session.Messages)
}

func TestChatService_Create_ConfiguredModel(t *testing.T) {
	f := newChatFixture(t, ChatConfig{Defaults: domain.TurnOptions{Model: "llama3"}})

	session, err := f.service.Create(context.Background(), driving.CreateChatRequest{Title: "  Research  "})

	require.NoError(t, err)
	assert.Equal(t, "Research", session.Title)
	assert.Equal(t, "llama3", session.Model)
}

func TestChatService_SendTurn_RAG(t *testing.T) {
	f := newChatFixture(t, ChatConfig{})
	f.index.results = sampleResults()
	session := f.session(t, true)

	result, err := f.service.SendTurn(context.Background(), session.ID, "When was Go created?", domain.TurnOptions{})

	require.NoError(t, err)
	assert.Equal(t, domain.RoleAssistant, result.Message.Role)
	assert.Equal(t, "Answer.", result.Message.Content)
	assert.Equal(t, domain.OutcomeOK, result.Retrieval.Status)
	assert.Equal(t, "When was Go created?", result.Query)
	require.Len(t, result.RelevantDocs, 2)
	assert.Equal(t, "history.txt", result.RelevantDocs[0].Label)

	assert.Equal(t, []string{"When was Go created?"}, f.index.queries)
	assert.Equal(t, []int{domain.DefaultMaxResults}, f.index.limits)

	require.Len(t, f.gen.calls, 1)
	sent := f.gen.calls[0]
	require.Len(t, sent, 2)
	assert.Equal(t, "system", sent[0].Role)
	assert.Contains(t, sent[0].Content, "Go was created in 2007.")
	assert.Equal(t, "user", sent[1].Role)
	assert.Equal(t, "When was Go created?", sent[1].Content)

	stored, err := f.store.Get(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 2)
	assert.Equal(t, domain.RoleUser, stored.Messages[0].Role)
	assert.Equal(t, domain.RoleAssistant, stored.Messages[1].Role)
}

func TestChatService_SendTurn_StateSequence(t *testing.T) {
	f := newChatFixture(t, ChatConfig{})
	f.index.results = sampleResults()
	session := f.session(t, true)

	turn := newTurn("hello", domain.TurnOptions{})
	_, err := f.service.runTurn(context.Background(), turn, session.ID)

	require.NoError(t, err)
	assert.Equal(t, []domain.TurnState{
		domain.TurnReceived,
		domain.TurnRetrieving,
		domain.TurnComposing,
		domain.TurnGenerating,
		domain.TurnPostprocessing,
		domain.TurnPersisted,
	}, turn.history)
}

func TestChatService_SendTurn_EmptyText(t *testing.T) {
	f := newChatFixture(t, ChatConfig{})
	session := f.session(t, true)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := f.service.SendTurn(context.Background(), session.ID, text, domain.TurnOptions{})
		assert.ErrorIs(t, err, domain.ErrInvalidMessage)
	}

	stored, err := f.store.Get(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Messages)
	assert.Zero(t, f.gen.callCount())
}

func TestChatService_SendTurn_UnknownSession(t *testing.T) {
	f := newChatFixture(t, ChatConfig{})

	_, err := f.service.SendTurn(context.Background(), "missing", "hi", domain.TurnOptions{})

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChatService_SendTurn_NoRAG(t *testing.T) {
	f := newChatFixture(t, ChatConfig{})
	f.index.results = sampleResults()
	session := f.session(t, false)

	result, err := f.service.SendTurn(context.Background(), session.ID, "Hello", domain.TurnOptions{})

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSkipped, result.Retrieval.Status)
	assert.Empty(t, result.RelevantDocs)
	assert.NotNil(t, result.RelevantDocs)
	assert.Empty(t, f.index.queries)
	require.Len(t, f.gen.calls[0], 1)
	assert.Equal(t, "user", f.gen.calls[0][0].Role)
}

func TestChatService_SendTurn_EmptyRetrievalHasNoContext(t *testing.T) {
	f := newChatFixture(t, ChatConfig{})
	session := f.session(t, true)

	result, err := f.service.SendTurn(context.Background(), session.ID, "Hello", domain.TurnOptions{})

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeOK, result.Retrieval.Status)
	assert.Empty(t, result.RelevantDocs)
	require.Len(t, f.gen.calls[0], 1)
	assert.NotEqual(t, "system", f.gen.calls[0][0].Role)
}

func TestChatService_SendTurn_IndexUnavailableDegrades(t *testing.T) {
	f := newChatFixture(t, ChatConfig{})
	f.index.queryErr = domain.ErrIndexUnavailable
	session := f.session(t, true)

	result, err := f.service.SendTurn(context.Background(), session.ID, "Hello", domain.TurnOptions{})

	require.NoError(t, err)
	assert.True(t, result.Retrieval.IsDegraded())
	assert.ErrorIs(t, result.Retrieval.Err, domain.ErrIndexUnavailable)
	assert.Empty(t, result.RelevantDocs)
	assert.Equal(t, "Answer.", result.Message.Content)

	stored, err := f.store.Get(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Messages, 2)
}

func TestChatService_SendTurn_RetrievalTimeoutDegrades(t *testing.T) {
	f := newChatFixture(t, ChatConfig{RetrievalTimeout: 20 * time.Millisecond})
	f.index.queryBlock = make(chan struct{})
	session := f.session(t, true)

	result, err := f.service.SendTurn(context.Background(), session.ID, "Hello", domain.TurnOptions{})

	require.NoError(t, err)
	assert.True(t, result.Retrieval.IsDegraded())
	assert.ErrorIs(t, result.Retrieval.Err, domain.ErrIndexUnavailable)
	assert.ErrorIs(t, result.Retrieval.Err, context.DeadlineExceeded)
}

func TestChatService_SendTurn_NilIndexDegrades(t *testing.T) {
	gen := &mockGenerator{reply: "ok"}
	store := memory.NewChatStore()
	service := NewChatService(store, nil, gen, newKeyedLocker(), ChatConfig{})
	session, err := service.Create(context.Background(), driving.CreateChatRequest{})
	require.NoError(t, err)

	result, err := service.SendTurn(context.Background(), session.ID, "Hello", domain.TurnOptions{})

	require.NoError(t, err)
	assert.ErrorIs(t, result.Retrieval.Err, domain.ErrIndexUnavailable)
}

func TestChatService_SendTurn_GenerationFailure(t *testing.T) {
	f := newChatFixture(t, ChatConfig{})
	f.gen.err = errors.Join(domain.ErrBackendUnavailable, errors.New("connection refused"))
	session := f.session(t, true)

	result, err := f.service.SendTurn(context.Background(), session.ID, "Hello", domain.TurnOptions{})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrGeneration)
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)

	stored, getErr := f.store.Get(context.Background(), session.ID)
	require.NoError(t, getErr)
	assert.Empty(t, stored.Messages)
}

func TestChatService_SendTurn_GenerationTimeoutFails(t *testing.T) {
	f := newChatFixture(t, ChatConfig{GenerationTimeout: 20 * time.Millisecond})
	f.gen.blockCtx = true
	session := f.session(t, false)

	_, err := f.service.SendTurn(context.Background(), session.ID, "Hello", domain.TurnOptions{})

	assert.ErrorIs(t, err, domain.ErrGeneration)
}

func TestChatService_SendTurn_StripsReasoning(t *testing.T) {
	f := newChatFixture(t, ChatConfig{})
	f.gen.reply = "<think>\nLet me think.\n</think>\n\nThe answer is 42."
	session := f.session(t, false)

	result, err := f.service.SendTurn(context.Background(), session.ID, "Question?", domain.TurnOptions{})

	require.NoError(t, err)
	assert.Equal(t, "The answer is 42.", result.Message.Content)

	stored, err := f.store.Get(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, "The answer is 42.", stored.Messages[1].Content)
}

func TestChatService_SendTurn_EmptyReplyPersisted(t *testing.T) {
	f := newChatFixture(t, ChatConfig{})
	f.gen.reply = "<think>only reasoning</think>"
	session := f.session(t, false)

	result, err := f.service.SendTurn(context.Background(), session.ID, "Question?", domain.TurnOptions{})

	require.NoError(t, err)
	assert.Equal(t, "", result.Message.Content)
	stored, err := f.store.Get(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 2)
	assert.Equal(t, domain.RoleAssistant, stored.Messages[1].Role)
}

func TestChatService_SendTurn_HistoryAndHumanAlias(t *testing.T) {
	f := newChatFixture(t, ChatConfig{})
	session := f.session(t, false)

	stored, err := f.store.Get(context.Background(), session.ID)
	require.NoError(t, err)
	stored.Append(
		domain.Message{Role: domain.RoleHuman, Content: "earlier question"},
		domain.Message{Role: domain.RoleAssistant, Content: "earlier answer"},
	)
	require.NoError(t, f.store.Save(context.Background(), stored))

	_, err = f.service.SendTurn(context.Background(), session.ID, "follow up", domain.TurnOptions{})
	require.NoError(t, err)

	sent := f.gen.calls[0]
	require.Len(t, sent, 3)
	assert.Equal(t, "user", sent[0].Role)
	assert.Equal(t, "earlier question", sent[0].Content)
	assert.Equal(t, "assistant", sent[1].Role)
	assert.Equal(t, "user", sent[2].Role)
	assert.Equal(t, "follow up", sent[2].Content)

	after, err := f.store.Get(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, after.Messages, 4)
	assert.Equal(t, domain.RoleHuman, after.Messages[0].Role)
}

func TestChatService_SendTurn_OptionPrecedence(t *testing.T) {
	f := newChatFixture(t, ChatConfig{Defaults: domain.TurnOptions{
		Temperature: domain.Float64(0.2), MaxTokens: 256, MaxResults: 5,
	}})
	f.index.results = sampleResults()
	session := f.session(t, true)

	model := "mistral"
	_, err := f.service.Update(context.Background(), session.ID, domain.ChatUpdate{Model: &model})
	require.NoError(t, err)

	_, err = f.service.SendTurn(context.Background(), session.ID, "one", domain.TurnOptions{})
	require.NoError(t, err)
	_, err = f.service.SendTurn(context.Background(), session.ID, "two",
		domain.TurnOptions{Model: "phi3", Temperature: domain.Float64(0.9), MaxResults: 1})
	require.NoError(t, err)

	require.Len(t, f.gen.opts, 2)
	assert.Equal(t, "mistral", f.gen.opts[0].Model)
	assert.InDelta(t, 0.2, f.gen.opts[0].Temperature, 1e-9)
	assert.Equal(t, 256, f.gen.opts[0].MaxTokens)
	assert.InDelta(t, domain.DefaultTopP, f.gen.opts[0].TopP, 1e-9)

	assert.Equal(t, "phi3", f.gen.opts[1].Model)
	assert.InDelta(t, 0.9, f.gen.opts[1].Temperature, 1e-9)
	assert.Equal(t, []int{5, 1}, f.index.limits)
}

func TestChatService_SendTurn_ZeroTemperature(t *testing.T) {
	f := newChatFixture(t, ChatConfig{Defaults: domain.TurnOptions{Temperature: domain.Float64(0.5)}})
	session := f.session(t, false)

	_, err := f.service.SendTurn(context.Background(), session.ID, "deterministic please",
		domain.TurnOptions{Temperature: domain.Float64(0)})
	require.NoError(t, err)

	require.Len(t, f.gen.opts, 1)
	assert.Zero(t, f.gen.opts[0].Temperature)
}

func TestChatService_SendTurn_SerialisesSameSession(t *testing.T) {
	f := newChatFixture(t, ChatConfig{})
	session := f.session(t, false)

	var mu sync.Mutex
	active, peak := 0, 0
	f.gen.onCall = func() {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.SendTurn(context.Background(), session.ID, "hi", domain.TurnOptions{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, peak)
	stored, err := f.store.Get(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 10)
	for i, m := range stored.Messages {
		if i%2 == 0 {
			assert.Equal(t, domain.RoleUser, m.Role)
		} else {
			assert.Equal(t, domain.RoleAssistant, m.Role)
		}
	}
}

func TestChatService_SendTurn_BusySessionCancelled(t *testing.T) {
	locker := newKeyedLocker()
	f := newChatFixture(t, ChatConfig{})
	f.service.locker = locker
	session := f.session(t, false)

	unlock, err := locker.Lock(context.Background(), session.ID)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = f.service.SendTurn(ctx, session.ID, "hi", domain.TurnOptions{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, f.gen.callCount())
}

func TestChatService_Update(t *testing.T) {
	f := newChatFixture(t, ChatConfig{})
	session := f.session(t, true)

	title := "Renamed"
	useRAG := false
	updated, err := f.service.Update(context.Background(), session.ID, domain.ChatUpdate{Title: &title, UseRAG: &useRAG})

	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.False(t, updated.UseRAG)
	assert.Equal(t, session.Model, updated.Model)

	blank := "  "
	_, err = f.service.Update(context.Background(), session.ID, domain.ChatUpdate{Title: &blank})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestChatService_ListAndDelete(t *testing.T) {
	f := newChatFixture(t, ChatConfig{})
	first := f.session(t, true)
	_ = f.session(t, true)

	sessions, err := f.service.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	require.NoError(t, f.service.Delete(context.Background(), first.ID))
	assert.ErrorIs(t, f.service.Delete(context.Background(), first.ID), domain.ErrNotFound)

	_, err = f.service.Get(context.Background(), first.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChatService_ListModels(t *testing.T) {
	f := newChatFixture(t, ChatConfig{})
	f.gen.models = []domain.ModelInfo{{Name: "deepseek-r1"}, {Name: "llama3"}}

	models, err := f.service.ListModels(context.Background())

	require.NoError(t, err)
	assert.Len(t, models, 2)

	f.gen.err = domain.ErrBackendUnavailable
	_, err = f.service.ListModels(context.Background())
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}

func TestChatConfigFromSettings(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.Generation.Model = "llama3"
	settings.Retrieval.Timeout = 5 * time.Second

	cfg := ChatConfigFromSettings(&settings)

	assert.Equal(t, "llama3", cfg.Defaults.Model)
	assert.Equal(t, 5*time.Second, cfg.RetrievalTimeout)
	assert.Equal(t, settings.Generation.Timeout, cfg.GenerationTimeout)
	assert.Equal(t, domain.DefaultMaxResults, cfg.Defaults.MaxResults)
}

// waitForQuery blocks until the index has received n queries.
func waitForQuery(t *testing.T, index *mockVectorIndex, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		index.mu.Lock()
		defer index.mu.Unlock()
		return len(index.queries) >= n
	}, 2*time.Second, 5*time.Millisecond)
}

func TestChatService_Delete_WaitsForTurnInProgress(t *testing.T) {
	f := newChatFixture(t, ChatConfig{})
	block := make(chan struct{})
	f.index.queryBlock = block
	session := f.session(t, true)
	ctx := context.Background()

	turnDone := make(chan error, 1)
	go func() {
		_, err := f.service.SendTurn(ctx, session.ID, "What is Go?", domain.TurnOptions{})
		turnDone <- err
	}()
	waitForQuery(t, f.index, 1)

	deleteDone := make(chan error, 1)
	go func() { deleteDone <- f.service.Delete(ctx, session.ID) }()

	select {
	case err := <-deleteDone:
		t.Fatalf("delete returned during a turn: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	require.NoError(t, <-turnDone)
	require.NoError(t, <-deleteDone)

	_, err := f.store.Get(ctx, session.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChatService_SendTurn_DoesNotRecreateDeletedSession(t *testing.T) {
	f := newChatFixture(t, ChatConfig{})
	block := make(chan struct{})
	f.index.queryBlock = block
	session := f.session(t, true)
	ctx := context.Background()

	turnDone := make(chan error, 1)
	go func() {
		_, err := f.service.SendTurn(ctx, session.ID, "What is Go?", domain.TurnOptions{})
		turnDone <- err
	}()
	waitForQuery(t, f.index, 1)

	// Removed behind the service's back, as another process sharing the store would.
	require.NoError(t, f.store.Delete(ctx, session.ID))
	close(block)

	assert.ErrorIs(t, <-turnDone, domain.ErrNotFound)
	_, err := f.store.Get(ctx, session.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChatService_Update_DeletedSession(t *testing.T) {
	f := newChatFixture(t, ChatConfig{})
	session := f.session(t, false)
	require.NoError(t, f.service.Delete(context.Background(), session.ID))

	title := "Renamed"
	_, err := f.service.Update(context.Background(), session.ID, domain.ChatUpdate{Title: &title})

	assert.ErrorIs(t, err, domain.ErrNotFound)
}
