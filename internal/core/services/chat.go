package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docuchat/internal/core/domain"
	"github.com/custodia-labs/docuchat/internal/core/ports/driven"
	"github.com/custodia-labs/docuchat/internal/core/ports/driving"
	"github.com/custodia-labs/docuchat/internal/logger"
)

// Ensure ChatService implements the interface.
var _ driving.ChatService = (*ChatService)(nil)

// ChatConfig holds the configured behaviour of chat turns.
type ChatConfig struct {
	// Defaults are the configured turn options. Zero fields fall back
	// to the built-in defaults.
	Defaults domain.TurnOptions

	// RetrievalTimeout bounds a vector index query. Zero means no bound.
	RetrievalTimeout time.Duration

	// GenerationTimeout bounds a chat completion. Zero means no bound.
	GenerationTimeout time.Duration
}

// ChatConfigFromSettings derives the chat configuration from app settings.
func ChatConfigFromSettings(settings *domain.AppSettings) ChatConfig {
	return ChatConfig{
		Defaults:          settings.TurnDefaults(),
		RetrievalTimeout:  settings.Retrieval.Timeout,
		GenerationTimeout: settings.Generation.Timeout,
	}
}

// builtinTurnDefaults are the last resort for every turn option.
var builtinTurnDefaults = domain.TurnOptions{
	Model:       domain.DefaultChatModel,
	Temperature: domain.Float64(domain.DefaultTemperature),
	MaxTokens:   domain.DefaultMaxTokens,
	TopP:        domain.DefaultTopP,
	MaxResults:  domain.DefaultMaxResults,
}

// ChatService manages chat sessions and runs RAG turns.
type ChatService struct {
	store     driven.ChatStore
	index     driven.VectorIndex
	generator driven.Generator
	locker    driven.SessionLocker
	cfg       ChatConfig
	now       func() time.Time
}

// NewChatService creates a new chat service.
// The index parameter is optional (can be nil); RAG turns then run degraded.
func NewChatService(
	store driven.ChatStore,
	index driven.VectorIndex,
	generator driven.Generator,
	locker driven.SessionLocker,
	cfg ChatConfig,
) *ChatService {
	return &ChatService{
		store:     store,
		index:     index,
		generator: generator,
		locker:    locker,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Create starts a new session.
func (s *ChatService) Create(ctx context.Context, req driving.CreateChatRequest) (*domain.ChatSession, error) {
	now := s.now()

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = domain.DefaultChatTitle(now)
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = s.defaults().Model
	}
	useRAG := true
	if req.UseRAG != nil {
		useRAG = *req.UseRAG
	}

	session := &domain.ChatSession{
		ID:        uuid.New().String(),
		Title:     title,
		Model:     model,
		UseRAG:    useRAG,
		Messages:  []domain.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	logger.Info("Created chat session %s (model %s, rag %t)", session.ID, session.Model, session.UseRAG)
	return session, nil
}

// Get retrieves a session with its messages.
func (s *ChatService) Get(ctx context.Context, sessionID string) (*domain.ChatSession, error) {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return session, nil
}

// List returns sessions, most recently updated first.
func (s *ChatService) List(ctx context.Context) ([]domain.ChatSession, error) {
	sessions, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// Update changes session settings. Messages are left untouched.
func (s *ChatService) Update(
	ctx context.Context, sessionID string, update domain.ChatUpdate,
) (*domain.ChatSession, error) {
	unlock, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}

	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", domain.ErrInvalidInput)
		}
		session.Title = title
	}
	if update.Model != nil {
		model := strings.TrimSpace(*update.Model)
		if model == "" {
			return nil, fmt.Errorf("%w: model cannot be empty", domain.ErrInvalidInput)
		}
		session.Model = model
	}
	if update.UseRAG != nil {
		session.UseRAG = *update.UseRAG
	}

	if err := s.store.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("save session %s: %w", sessionID, err)
	}
	return session, nil
}

// Delete removes a session. It waits for a turn in progress on the same
// session, so that turn cannot write the session back.
func (s *ChatService) Delete(ctx context.Context, sessionID string) error {
	unlock, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("lock session %s: %w", sessionID, err)
	}
	defer unlock()

	if _, err := s.store.Get(ctx, sessionID); err != nil {
		return fmt.Errorf("get session %s: %w", sessionID, err)
	}
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	logger.Info("Deleted chat session %s", sessionID)
	return nil
}

// ListModels returns the models offered by the generation backend.
func (s *ChatService) ListModels(ctx context.Context) ([]domain.ModelInfo, error) {
	models, err := s.generator.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return models, nil
}

// SendTurn runs one conversational turn. The user message and the reply are
// persisted together, and only when generation succeeds.
//
// Turns on the same session are serialised; different sessions run concurrently.
// Index failures degrade the turn and are reported in TurnResult.Retrieval.
func (s *ChatService) SendTurn(
	ctx context.Context, sessionID, text string, opts domain.TurnOptions,
) (*domain.TurnResult, error) {
	logger.Section("Chat Turn")

	t := newTurn(text, opts)
	if err := receiveText(text); err != nil {
		return nil, t.fail(err)
	}

	unlock, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		return nil, t.fail(fmt.Errorf("lock session %s: %w", sessionID, err))
	}
	defer unlock()

	return s.runTurn(ctx, t, sessionID)
}

// runTurn executes the pipeline for a turn whose session is already locked.
func (s *ChatService) runTurn(ctx context.Context, t *turn, sessionID string) (*domain.TurnResult, error) {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, t.fail(fmt.Errorf("get session %s: %w", sessionID, err))
	}
	t.session = session

	// Call options win, then the session model, then configured and built-in defaults.
	t.opts = t.opts.
		Merge(domain.TurnOptions{Model: session.Model}).
		Merge(s.defaults())
	logger.Debug("Session %s: model=%s temperature=%.2f max_tokens=%d top_p=%.2f max_results=%d",
		session.ID, t.opts.Model, t.opts.TemperatureOr(domain.DefaultTemperature), t.opts.MaxTokens, t.opts.TopP, t.opts.MaxResults)

	t.user = domain.Message{Role: domain.RoleUser, Content: t.text, Timestamp: s.now()}
	conversation := make([]domain.Message, 0, len(session.Messages)+1)
	conversation = append(conversation, session.Messages...)
	conversation = append(conversation, t.user)

	if err := s.retrieve(ctx, t, conversation); err != nil {
		return nil, t.fail(err)
	}

	t.compose(conversation)

	if err := s.generate(ctx, t); err != nil {
		logger.Error("Turn failed for session %s: %v", session.ID, err)
		return nil, t.fail(err)
	}

	t.postprocess()

	assistant, err := s.persist(ctx, t)
	if err != nil {
		return nil, t.fail(err)
	}

	return &domain.TurnResult{
		Message:      assistant,
		RelevantDocs: t.docs,
		Query:        t.query,
		Retrieval:    t.retrieval,
	}, nil
}

func (s *ChatService) defaults() domain.TurnOptions {
	return s.cfg.Defaults.Merge(builtinTurnDefaults)
}
