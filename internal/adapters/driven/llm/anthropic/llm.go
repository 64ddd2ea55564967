// Package anthropic provides a generation backend adapter using the Anthropic API.
package anthropic

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

const provider = "anthropic"

// Default configuration values.
const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-3-5-sonnet-latest"
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 1024

	anthropicVersion = "2023-06-01"
)

// Config holds configuration for the Anthropic generator.
type Config struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.anthropic.com).
	BaseURL string

	// Model is used when a call does not name one (default: claude-3-5-sonnet-latest).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration

	// RequestsPerMinute paces calls. Zero disables pacing.
	RequestsPerMinute int
}

// Generator produces chat completions using the Anthropic Messages API.
type Generator struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	limiter *llm.RateLimiter
}

// messagesRequest is the Anthropic /v1/messages request format.
type messagesRequest struct {
	Model       string            `json:"model"`
	Messages    []messagesMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens"`
	System      string            `json:"system,omitempty"`
	Temperature float64           `json:"temperature"`
	TopP        float64           `json:"top_p,omitempty"`
}

type messagesMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagesResponse is the Anthropic /v1/messages response format.
type messagesResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string    `json:"stop_reason"`
	Error      *apiError `json:"error,omitempty"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// modelsResponse is the Anthropic /v1/models response format.
type modelsResponse struct {
	Data []struct {
		ID        string    `json:"id"`
		CreatedAt time.Time `json:"created_at"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

// NewGenerator creates a new Anthropic generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
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
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		limiter: llm.NewRateLimiter(cfg.RequestsPerMinute),
	}, nil
}

// ChatCompletion sends the conversation to /v1/messages.
// System messages are joined into the top-level system field since the
// Messages API only accepts user and assistant turns.
func (g *Generator) ChatCompletion(
	ctx context.Context, messages []driven.ChatMessage, opts driven.CompletionOptions,
) (driven.Completion, error) {
	var system []string
	apiMessages := make([]messagesMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == "system" {
			system = append(system, msg.Content)
			continue
		}
		apiMessages = append(apiMessages, messagesMessage{Role: msg.Role, Content: msg.Content})
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	reqBody := messagesRequest{
		Model:       g.model,
		Messages:    apiMessages,
		MaxTokens:   maxTokens,
		System:      strings.Join(system, "\n\n"),
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
	}
	if opts.Model != "" {
		reqBody.Model = opts.Model
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return driven.Completion{}, fmt.Errorf("marshal request: %w", err)
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return driven.Completion{}, llm.Unavailable(provider, err)
	}

	status, body, err := g.do(ctx, http.MethodPost, "/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return driven.Completion{}, err
	}

	var msgResp messagesResponse
	if err := json.Unmarshal(body, &msgResp); err != nil {
		return driven.Completion{}, llm.Rejected(provider, status, string(body))
	}
	if msgResp.Error != nil {
		return driven.Completion{}, llm.Rejected(provider, status, msgResp.Error.Message)
	}
	if status != http.StatusOK {
		return driven.Completion{}, llm.Rejected(provider, status, string(body))
	}

	var result strings.Builder
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			result.WriteString(block.Text)
		}
	}

	return driven.Completion{Content: result.String(), Model: msgResp.Model}, nil
}

// ListModels returns the models offered by the API.
func (g *Generator) ListModels(ctx context.Context) ([]domain.ModelInfo, error) {
	status, body, err := g.do(ctx, http.MethodGet, "/v1/models", http.NoBody)
	if err != nil {
		return nil, err
	}

	var listResp modelsResponse
	if err := json.Unmarshal(body, &listResp); err != nil || status != http.StatusOK {
		if listResp.Error != nil {
			return nil, llm.Rejected(provider, status, listResp.Error.Message)
		}
		return nil, llm.Rejected(provider, status, string(body))
	}

	models := make([]domain.ModelInfo, 0, len(listResp.Data))
	for _, m := range listResp.Data {
		models = append(models, domain.ModelInfo{Name: m.ID, ModifiedAt: m.CreatedAt})
	}
	return models, nil
}

func (g *Generator) do(ctx context.Context, method, path string, payload io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, payload)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", g.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, nil, llm.Unavailable(provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, llm.Unavailable(provider, err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		g.limiter.RecordRateLimit(resp.Header)
	}
	return resp.StatusCode, body, nil
}

// ModelName returns the default model.
func (g *Generator) ModelName() string {
	return g.model
}

// Ping validates the API key by listing models.
func (g *Generator) Ping(ctx context.Context) error {
	_, err := g.ListModels(ctx)
	return err
}

// Close releases resources.
func (g *Generator) Close() error {
	return nil
}
