// Package openai provides a generation backend adapter using the OpenAI API.
// Any server speaking the /chat/completions dialect can be targeted via BaseURL.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/docuchat/internal/adapters/driven/llm"
	"github.com/custodia-labs/docuchat/internal/core/domain"
	"github.com/custodia-labs/docuchat/internal/core/ports/driven"
)

// Ensure Generator implements the interface.
var _ driven.Generator = (*Generator)(nil)

const provider = "openai"

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 120 * time.Second
)

// Config holds configuration for the OpenAI generator.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	// Can be changed for Azure OpenAI or compatible APIs.
	BaseURL string

	// Model is used when a call does not name one (default: gpt-4o-mini).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration

	// RequestsPerMinute paces calls. Zero disables pacing.
	RequestsPerMinute int
}

// Generator produces chat completions using the OpenAI API.
type Generator struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	limiter *llm.RateLimiter
}

// chatCompletionRequest is the OpenAI /chat/completions request format.
type chatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []chatCompletionMsg `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature"`
	TopP        float64             `json:"top_p,omitempty"`
}

type chatCompletionMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionResponse is the OpenAI /chat/completions response format.
type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// modelsResponse is the OpenAI /models response format.
type modelsResponse struct {
	Data []struct {
		ID      string `json:"id"`
		Created int64  `json:"created"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

// NewGenerator creates a new OpenAI generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
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

// ChatCompletion sends the conversation to /chat/completions and returns the first choice.
func (g *Generator) ChatCompletion(
	ctx context.Context, messages []driven.ChatMessage, opts driven.CompletionOptions,
) (driven.Completion, error) {
	apiMessages := make([]chatCompletionMsg, len(messages))
	for i, msg := range messages {
		apiMessages[i] = chatCompletionMsg{Role: msg.Role, Content: msg.Content}
	}

	reqBody := chatCompletionRequest{
		Model:       g.model,
		Messages:    apiMessages,
		MaxTokens:   opts.MaxTokens,
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

	status, body, err := g.do(ctx, http.MethodPost, "/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return driven.Completion{}, err
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		if status != http.StatusOK {
			return driven.Completion{}, llm.Rejected(provider, status, string(body))
		}
		return driven.Completion{}, llm.Rejected(provider, 0, "malformed response: "+err.Error())
	}
	if chatResp.Error != nil {
		return driven.Completion{}, llm.Rejected(provider, status, chatResp.Error.Message)
	}
	if status != http.StatusOK {
		return driven.Completion{}, llm.Rejected(provider, status, string(body))
	}
	if len(chatResp.Choices) == 0 {
		return driven.Completion{}, llm.Rejected(provider, 0, "no choices returned")
	}

	return driven.Completion{Content: chatResp.Choices[0].Message.Content, Model: chatResp.Model}, nil
}

// ListModels returns the models visible to the API key, sorted by name.
func (g *Generator) ListModels(ctx context.Context) ([]domain.ModelInfo, error) {
	status, body, err := g.do(ctx, http.MethodGet, "/models", http.NoBody)
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
		info := domain.ModelInfo{Name: m.ID}
		if m.Created > 0 {
			info.ModifiedAt = time.Unix(m.Created, 0).UTC()
		}
		models = append(models, info)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models, nil
}

// do sends an authorised request and returns the status and full body.
func (g *Generator) do(ctx context.Context, method, path string, payload io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, payload)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

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
