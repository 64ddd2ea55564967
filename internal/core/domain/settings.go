package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or generation.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// VectorEngine identifies the similarity-search engine behind the vector index.
type VectorEngine string

// Available vector engines.
const (
	// VectorEngineSQLite stores vectors next to the metadata database.
	VectorEngineSQLite VectorEngine = "sqlite"

	// VectorEngineChroma talks to a Chroma server over HTTP.
	VectorEngineChroma VectorEngine = "chroma"

	// VectorEngineMemory keeps vectors in process memory only.
	VectorEngineMemory VectorEngine = "memory"
)

// IsValid returns true if the engine is recognised.
func (e VectorEngine) IsValid() bool {
	switch e {
	case VectorEngineSQLite, VectorEngineChroma, VectorEngineMemory:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (e VectorEngine) String() string {
	return string(e)
}

// Description returns a human-readable description of the engine.
func (e VectorEngine) Description() string {
	switch e {
	case VectorEngineSQLite:
		return "SQLite (local file, exact cosine scan)"
	case VectorEngineChroma:
		return "Chroma (HTTP server)"
	case VectorEngineMemory:
		return "Memory (not persisted)"
	default:
		return unknownDescription
	}
}

// LockBackend identifies how turns are serialised per session.
type LockBackend string

// Available lock backends.
const (
	// LockBackendLocal serialises turns within this process.
	LockBackendLocal LockBackend = "local"

	// LockBackendRedis serialises turns across processes sharing a Redis server.
	LockBackendRedis LockBackend = "redis"
)

// IsValid returns true if the lock backend is recognised.
func (b LockBackend) IsValid() bool {
	return b == LockBackendLocal || b == LockBackendRedis
}

// GenerationSettings holds language-model backend configuration.
type GenerationSettings struct {
	// Provider is the generation backend.
	Provider AIProvider

	// Model is the default model for sessions that do not pick one.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// Temperature, MaxTokens and TopP are configured defaults for turns.
	Temperature float64
	MaxTokens   int
	TopP        float64

	// RequestsPerMinute paces calls to the backend. Zero disables pacing.
	RequestsPerMinute int

	// Timeout bounds a single chat completion.
	Timeout time.Duration
}

// IsConfigured returns true if the generation provider is set up.
func (g GenerationSettings) IsConfigured() bool {
	if !g.Provider.IsValid() {
		return false
	}
	if g.Provider.RequiresAPIKey() && g.APIKey == "" {
		return false
	}
	return true
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if e.Provider != AIProviderOllama && e.Provider != AIProviderOpenAI {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// VectorIndexSettings holds vector index configuration.
type VectorIndexSettings struct {
	// Engine selects the similarity-search engine.
	Engine VectorEngine

	// URL is the engine endpoint (for Chroma).
	URL string

	// Collection is the collection holding document chunks.
	Collection string
}

// ChunkingSettings controls how extracted text is split.
type ChunkingSettings struct {
	// Size is the maximum chunk length in characters.
	Size int

	// Overlap is the number of characters shared by consecutive chunks.
	Overlap int
}

// RetrievalSettings controls the retrieval step of RAG turns.
type RetrievalSettings struct {
	// MaxResults is the default number of chunks retrieved per turn.
	MaxResults int

	// Timeout bounds a single index query.
	Timeout time.Duration
}

// LockSettings controls per-session turn serialisation.
type LockSettings struct {
	// Backend selects the lock implementation.
	Backend LockBackend

	// RedisAddr is the Redis server address (for the redis backend).
	RedisAddr string

	// TTL bounds how long a crashed process can hold a session lock.
	TTL time.Duration
}

// AppSettings holds all application settings.
type AppSettings struct {
	Generation  GenerationSettings
	Embedding   EmbeddingSettings
	VectorIndex VectorIndexSettings
	Chunking    ChunkingSettings
	Retrieval   RetrievalSettings
	Lock        LockSettings
}

// TurnDefaults returns the configured generation defaults as turn options.
func (s AppSettings) TurnDefaults() TurnOptions {
	return TurnOptions{
		Model:       s.Generation.Model,
		Temperature: Float64(s.Generation.Temperature),
		MaxTokens:   s.Generation.MaxTokens,
		TopP:        s.Generation.TopP,
		MaxResults:  s.Retrieval.MaxResults,
	}
}

// DefaultAppSettings returns settings with sensible defaults.
// Everything runs against a local Ollama and the local SQLite engine out of the box.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Generation: GenerationSettings{
			Provider:    AIProviderOllama,
			Model:       DefaultChatModel,
			BaseURL:     "http://localhost:11434",
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
			TopP:        DefaultTopP,
			Timeout:     120 * time.Second,
		},
		Embedding: EmbeddingSettings{
			Provider: AIProviderOllama,
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		VectorIndex: VectorIndexSettings{
			Engine:     VectorEngineSQLite,
			URL:        "http://localhost:8000",
			Collection: "documents",
		},
		Chunking: ChunkingSettings{
			Size:    1000,
			Overlap: 200,
		},
		Retrieval: RetrievalSettings{
			MaxResults: DefaultMaxResults,
			Timeout:    30 * time.Second,
		},
		Lock: LockSettings{
			Backend:   LockBackendLocal,
			RedisAddr: "localhost:6379",
			TTL:       5 * time.Minute,
		},
	}
}

// AllLLMProviders returns providers that support generation.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllVectorEngines returns all supported vector engines.
func AllVectorEngines() []VectorEngine {
	return []VectorEngine{
		VectorEngineSQLite,
		VectorEngineChroma,
		VectorEngineMemory,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each generation provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    DefaultChatModel,
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
