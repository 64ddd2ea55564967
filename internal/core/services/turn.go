package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/docuchat/internal/core/domain"
	"github.com/custodia-labs/docuchat/internal/core/ports/driven"
	"github.com/custodia-labs/docuchat/internal/logger"
)

// turn carries one chat turn through its pipeline.
// Each stage is a method that advances state; a failure moves it to TurnFailed.
type turn struct {
	state   domain.TurnState
	history []domain.TurnState

	session *domain.ChatSession
	text    string
	opts    domain.TurnOptions

	user      domain.Message
	query     string
	results   []domain.RetrievalResult
	retrieval domain.Outcome
	docs      []domain.RelevantDoc
	messages  []driven.ChatMessage
	reply     string
}

func newTurn(text string, opts domain.TurnOptions) *turn {
	t := &turn{text: text, opts: opts}
	t.enter(domain.TurnReceived)
	return t
}

func (t *turn) enter(state domain.TurnState) {
	if t.state != "" {
		logger.Debug("Turn: %s -> %s", t.state, state)
	}
	t.state = state
	t.history = append(t.history, state)
}

func (t *turn) fail(err error) error {
	t.enter(domain.TurnFailed)
	return err
}

// receiveText validates the user text before anything touches the session.
func receiveText(text string) error {
	if strings.TrimSpace(text) == "" {
		return domain.ErrInvalidMessage
	}
	return nil
}

// retrieve queries the vector index with the latest user message.
// Index failures degrade the turn instead of failing it.
func (s *ChatService) retrieve(ctx context.Context, t *turn, conversation []domain.Message) error {
	t.enter(domain.TurnRetrieving)

	if !t.session.UseRAG {
		t.retrieval = domain.Skipped()
		return nil
	}

	last, ok := domain.LastUserMessage(conversation)
	if !ok {
		return domain.ErrNoQueryFound
	}
	t.query = last.Content
	logger.Debug("Retrieval query: %q (limit %d)", t.query, t.opts.MaxResults)

	if s.index == nil {
		t.retrieval = domain.Degraded(domain.ErrIndexUnavailable)
		logger.Warn("No vector index configured, answering without documents")
		return nil
	}

	rctx, cancel := withTimeout(ctx, s.cfg.RetrievalTimeout)
	defer cancel()

	results, err := s.index.Query(rctx, t.query, t.opts.MaxResults)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
		}
		t.retrieval = domain.Degraded(err)
		logger.Warn("Retrieval degraded: %v", err)
		return nil
	}

	t.results = results
	t.retrieval = domain.OK()
	logger.Debug("Retrieved %d chunks", len(results))
	return nil
}

// compose builds the message list sent to the backend: the optional
// context message first, then history, then the new user message.
func (t *turn) compose(conversation []domain.Message) {
	t.enter(domain.TurnComposing)

	contextMsg, docs := AssembleContext(t.query, t.results)
	t.docs = docs

	t.messages = make([]driven.ChatMessage, 0, len(conversation)+1)
	if contextMsg != nil {
		t.messages = append(t.messages, *contextMsg)
	}
	for _, m := range conversation {
		t.messages = append(t.messages, driven.ChatMessage{
			Role:    m.Role.Normalize().String(),
			Content: m.Content,
		})
	}
	logger.Debug("Composed %d messages (context: %t)", len(t.messages), contextMsg != nil)
}

// generate calls the backend. Any failure is wrapped in ErrGeneration.
func (s *ChatService) generate(ctx context.Context, t *turn) error {
	t.enter(domain.TurnGenerating)

	gctx, cancel := withTimeout(ctx, s.cfg.GenerationTimeout)
	defer cancel()

	completion, err := s.generator.ChatCompletion(gctx, t.messages, driven.CompletionOptions{
		Model:       t.opts.Model,
		Temperature: t.opts.TemperatureOr(domain.DefaultTemperature),
		MaxTokens:   t.opts.MaxTokens,
		TopP:        t.opts.TopP,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}

	t.reply = completion.Content
	logger.Debug("Generated %d characters with %s", len(t.reply), t.opts.Model)
	return nil
}

func (t *turn) postprocess() {
	t.enter(domain.TurnPostprocessing)
	t.reply = StripReasoning(t.reply)
}

// persist appends the user message and then the assistant message.
func (s *ChatService) persist(ctx context.Context, t *turn) (domain.Message, error) {
	assistant := domain.Message{
		Role:      domain.RoleAssistant,
		Content:   t.reply,
		Timestamp: s.now(),
	}
	t.session.Append(t.user, assistant)

	if err := s.store.Update(ctx, t.session); err != nil {
		return domain.Message{}, fmt.Errorf("save session %s: %w", t.session.ID, err)
	}
	t.enter(domain.TurnPersisted)
	return assistant, nil
}

// withTimeout bounds ctx by d. A zero duration leaves ctx unbounded.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}
