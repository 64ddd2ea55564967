// Package ai provides factory functions that turn settings into driven adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/docuchat/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/docuchat/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/docuchat/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/docuchat/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/docuchat/internal/adapters/driven/llm/openai"
	locallock "github.com/custodia-labs/docuchat/internal/adapters/driven/lock/local"
	redislock "github.com/custodia-labs/docuchat/internal/adapters/driven/lock/redis"
	"github.com/custodia-labs/docuchat/internal/adapters/driven/vectorindex/chroma"
	memoryindex "github.com/custodia-labs/docuchat/internal/adapters/driven/vectorindex/memory"
	"github.com/custodia-labs/docuchat/internal/core/domain"
	"github.com/custodia-labs/docuchat/internal/core/ports/driven"
	"github.com/custodia-labs/docuchat/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// VectorIndexProvider opens a collection in a locally stored engine.
// The SQLite store satisfies it.
type VectorIndexProvider interface {
	VectorIndex(collection string, embedder driven.EmbeddingService) driven.VectorIndex
}

// InitResult contains the adapters built from application settings.
type InitResult struct {
	Generator   driven.Generator
	Embedding   driven.EmbeddingService
	VectorIndex driven.VectorIndex // nil when retrieval is degraded
	Locker      driven.SessionLocker
	Warnings    []string // Non-fatal issues that caused fallback.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.Embedding != nil {
		r.Embedding.Close()
	}
	if r.VectorIndex != nil {
		r.VectorIndex.Close()
	}
	if r.Generator != nil {
		r.Generator.Close()
	}
	if r.Locker != nil {
		r.Locker.Close()
	}
}

func (r *InitResult) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logger.Warn("%s", msg)
	r.Warnings = append(r.Warnings, msg)
}

// Initialise builds every adapter the services need.
// Only the generator is mandatory; a missing embedding service or vector
// engine leaves VectorIndex nil so uploads and turns run degraded, and an
// unreachable Redis falls back to the in-process locker.
func Initialise(ctx context.Context, settings *domain.AppSettings, local VectorIndexProvider) (*InitResult, error) {
	result := &InitResult{}

	generator, err := CreateGenerator(&settings.Generation)
	if err != nil {
		return nil, err
	}
	result.Generator = generator

	embedding, err := CreateEmbeddingService(&settings.Embedding)
	switch {
	case err != nil:
		result.warn("embedding disabled: %v", err)
	case embedding == nil:
		result.warn("embedding provider not configured, retrieval disabled")
	default:
		result.Embedding = embedding
	}

	if result.Embedding != nil {
		index, err := CreateVectorIndex(&settings.VectorIndex, local, result.Embedding)
		if err != nil {
			result.warn("vector index disabled: %v", err)
		}
		result.VectorIndex = index
	}

	locker, err := CreateLocker(ctx, &settings.Lock)
	if err != nil {
		result.warn("%v, using in-process locks", err)
		locker = locallock.NewLocker()
	}
	result.Locker = locker

	return result, nil
}

// CreateGenerator creates the generation backend named by settings.
func CreateGenerator(settings *domain.GenerationSettings) (driven.Generator, error) {
	if settings == nil || !settings.Provider.IsValid() {
		return nil, fmt.Errorf("%w: unsupported generation provider %q", domain.ErrInvalidInput, providerOf(settings))
	}
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: %s requires an API key", domain.ErrInvalidInput, settings.Provider)
	}

	switch settings.Provider {
	case domain.AIProviderOpenAI:
		return openaillm.NewGenerator(openaillm.Config{
			APIKey:            settings.APIKey,
			BaseURL:           settings.BaseURL,
			Model:             settings.Model,
			Timeout:           settings.Timeout,
			RequestsPerMinute: settings.RequestsPerMinute,
		})

	case domain.AIProviderAnthropic:
		return anthropicllm.NewGenerator(anthropicllm.Config{
			APIKey:            settings.APIKey,
			BaseURL:           settings.BaseURL,
			Model:             settings.Model,
			Timeout:           settings.Timeout,
			RequestsPerMinute: settings.RequestsPerMinute,
		})

	default:
		return ollamallm.NewGenerator(ollamallm.Config{
			BaseURL:           settings.BaseURL,
			Model:             settings.Model,
			Timeout:           settings.Timeout,
			RequestsPerMinute: settings.RequestsPerMinute,
		}), nil
	}
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || settings.Provider == "" {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		if !settings.IsConfigured() {
			return nil, nil
		}
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case domain.AIProviderAnthropic:
		return nil, fmt.Errorf("anthropic does not support embeddings, use ollama or openai")

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// CreateVectorIndex opens the vector engine named by settings.
func CreateVectorIndex(
	settings *domain.VectorIndexSettings, local VectorIndexProvider, embedder driven.EmbeddingService,
) (driven.VectorIndex, error) {
	collection := settings.Collection
	if collection == "" {
		collection = chroma.DefaultCollection
	}

	switch settings.Engine {
	case domain.VectorEngineChroma:
		return chroma.NewIndex(chroma.Config{URL: settings.URL, Collection: collection}, embedder), nil

	case domain.VectorEngineMemory:
		return memoryindex.NewIndex(embedder), nil

	case domain.VectorEngineSQLite, "":
		if local == nil {
			return nil, fmt.Errorf("sqlite engine needs the local store")
		}
		return local.VectorIndex(collection, embedder), nil

	default:
		return nil, fmt.Errorf("unsupported vector engine: %s", settings.Engine)
	}
}

// CreateLocker creates the session locker named by settings.
func CreateLocker(ctx context.Context, settings *domain.LockSettings) (driven.SessionLocker, error) {
	if settings == nil || settings.Backend != domain.LockBackendRedis {
		return locallock.NewLocker(), nil
	}
	return redislock.NewLocker(ctx, redislock.Config{Addr: settings.RedisAddr, TTL: settings.TTL})
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	svc, err := CreateEmbeddingService(settings)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// ValidateGenerationConfig validates a generation configuration by creating a backend and pinging it.
func ValidateGenerationConfig(settings *domain.GenerationSettings) error {
	gen, err := CreateGenerator(settings)
	if err != nil {
		return err
	}
	defer gen.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return gen.Ping(ctx)
}

func providerOf(settings *domain.GenerationSettings) domain.AIProvider {
	if settings == nil {
		return ""
	}
	return settings.Provider
}
