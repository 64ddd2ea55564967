// Package ollama provides a generation backend adapter using Ollama.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/docuchat/internal/adapters/driven/llm"
	"github.com/custodia-labs/docuchat/internal/core/domain"
	"github.com/custodia-labs/docuchat/internal/core/ports/driven"
)

// Ensure Generator implements the interface.
var _ driven.Generator = (*Generator)(nil)

const provider = "ollama"

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = domain.DefaultChatModel
	DefaultTimeout = 120 * time.Second
)

// Config holds configuration for the Ollama generator.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is used when a call does not name one (default: deepseek-r1).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration

	// RequestsPerMinute paces calls. Zero disables pacing.
	RequestsPerMinute int
}

// Generator produces chat completions using Ollama.
type Generator struct {
	client  *http.Client
	baseURL string
	model   string
	limiter *llm.RateLimiter
}

// chatRequest is the Ollama /api/chat request format.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *options      `json:"options,omitempty"`
}

// options holds sampling parameters.
type options struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the Ollama /api/chat response format.
type chatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

// tagsResponse is the Ollama /api/tags response format.
type tagsResponse struct {
	Models []struct {
		Name       string    `json:"name"`
		Size       int64     `json:"size"`
		ModifiedAt time.Time `json:"modified_at"`
	} `json:"models"`
}

// NewGenerator creates a new Ollama generator.
func NewGenerator(cfg Config) *Generator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Generator{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		limiter: llm.NewRateLimiter(cfg.RequestsPerMinute),
	}
}

// ChatCompletion sends the conversation to /api/chat and returns the reply.
func (g *Generator) ChatCompletion(
	ctx context.Context, messages []driven.ChatMessage, opts driven.CompletionOptions,
) (driven.Completion, error) {
	chatMessages := make([]chatMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = chatMessage{Role: msg.Role, Content: msg.Content}
	}

	reqBody := chatRequest{
		Model:    g.model,
		Messages: chatMessages,
		Stream:   false,
	}
	if opts.Model != "" {
		reqBody.Model = opts.Model
	}
	// Temperature is always sent; 0 selects greedy decoding.
	reqBody.Options = &options{
		NumPredict:  opts.MaxTokens,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return driven.Completion{}, fmt.Errorf("marshal request: %w", err)
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return driven.Completion{}, llm.Unavailable(provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return driven.Completion{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return driven.Completion{}, llm.Unavailable(provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return driven.Completion{}, llm.Unavailable(provider, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		g.limiter.RecordRateLimit(resp.Header)
	}
	if resp.StatusCode != http.StatusOK {
		return driven.Completion{}, llm.Rejected(provider, resp.StatusCode, errorMessage(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return driven.Completion{}, llm.Rejected(provider, 0, "malformed response: "+err.Error())
	}
	if chatResp.Error != "" {
		return driven.Completion{}, llm.Rejected(provider, 0, chatResp.Error)
	}

	return driven.Completion{Content: chatResp.Message.Content, Model: chatResp.Model}, nil
}

// ListModels returns the models installed in the Ollama instance.
func (g *Generator) ListModels(ctx context.Context) ([]domain.ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, llm.Unavailable(provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, llm.Rejected(provider, resp.StatusCode, errorMessage(body))
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, llm.Rejected(provider, 0, "malformed response: "+err.Error())
	}

	models := make([]domain.ModelInfo, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, domain.ModelInfo{Name: m.Name, Size: m.Size, ModifiedAt: m.ModifiedAt})
	}
	return models, nil
}

// ModelName returns the default model.
func (g *Generator) ModelName() string {
	return g.model
}

// Ping validates the service is reachable by checking the /api/tags endpoint.
// This is a lightweight check that validates connectivity without running inference.
func (g *Generator) Ping(ctx context.Context) error {
	_, err := g.ListModels(ctx)
	return err
}

// Close releases resources.
func (g *Generator) Close() error {
	return nil
}

// errorMessage extracts {"error": "..."} from a body, falling back to the raw text.
func errorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return string(body)
}
