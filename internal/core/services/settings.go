package services

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/docuchat/internal/core/domain"
	"github.com/custodia-labs/docuchat/internal/core/ports/driven"
	"github.com/custodia-labs/docuchat/internal/core/ports/driving"
	"github.com/custodia-labs/docuchat/internal/logger"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyGenProvider    = "generation.provider"
	keyGenModel       = "generation.model"
	keyGenBaseURL     = "generation.base_url"
	keyGenAPIKey      = "generation.api_key"
	keyGenTemperature = "generation.temperature"
	keyGenMaxTokens   = "generation.max_tokens"
	keyGenTopP        = "generation.top_p"
	keyGenRPM         = "generation.requests_per_minute"
	keyGenTimeout     = "generation.timeout"
	keyEmbedProvider  = "embedding.provider"
	keyEmbedModel     = "embedding.model"
	keyEmbedBaseURL   = "embedding.base_url"
	keyEmbedAPIKey    = "embedding.api_key"
	keyVectorEngine   = "vector_index.engine"
	keyVectorURL      = "vector_index.url"
	keyVectorColl     = "vector_index.collection"
	keyChunkSize      = "chunking.size"
	keyChunkOverlap   = "chunking.overlap"
	keyMaxResults     = "retrieval.max_results"
	keyRetrievalTO    = "retrieval.timeout"
	keyLockBackend    = "lock.backend"
	keyLockRedisAddr  = "lock.redis_addr"
	keyLockTTL        = "lock.ttl"
)

// Environment variables that override stored settings.
//
//nolint:gosec // G101: These are variable names, not actual credentials.
const (
	EnvOllamaURL        = "OLLAMA_URL"
	EnvOllamaModel      = "OLLAMA_MODEL"
	EnvChromaURL        = "CHROMA_URL"
	EnvChromaCollection = "CHROMA_COLLECTION"
	EnvChunkSize        = "CHUNK_SIZE"
	EnvChunkOverlap     = "CHUNK_OVERLAP"
	EnvOpenAIKey        = "OPENAI_API_KEY"
	EnvAnthropicKey     = "ANTHROPIC_API_KEY"
	EnvRedisAddr        = "REDIS_ADDR"
)

type settingKind int

const (
	kindString settingKind = iota
	kindInt
	kindFloat
	kindDuration
	kindProvider
	kindEngine
	kindLockBackend
)

// settingKinds lists every recognised key and how its value is parsed.
var settingKinds = map[string]settingKind{
	keyGenProvider:    kindProvider,
	keyGenModel:       kindString,
	keyGenBaseURL:     kindString,
	keyGenAPIKey:      kindString,
	keyGenTemperature: kindFloat,
	keyGenMaxTokens:   kindInt,
	keyGenTopP:        kindFloat,
	keyGenRPM:         kindInt,
	keyGenTimeout:     kindDuration,
	keyEmbedProvider:  kindProvider,
	keyEmbedModel:     kindString,
	keyEmbedBaseURL:   kindString,
	keyEmbedAPIKey:    kindString,
	keyVectorEngine:   kindEngine,
	keyVectorURL:      kindString,
	keyVectorColl:     kindString,
	keyChunkSize:      kindInt,
	keyChunkOverlap:   kindInt,
	keyMaxResults:     kindInt,
	keyRetrievalTO:    kindDuration,
	keyLockBackend:    kindLockBackend,
	keyLockRedisAddr:  kindString,
	keyLockTTL:        kindDuration,
}

// SettingsService manages application settings.
// Values come from the config store, then environment overrides.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		lookupEnv:   os.LookupEnv,
	}
}

// SetEnvLookup replaces the environment source used for overrides.
func (s *SettingsService) SetEnvLookup(lookup func(string) (string, bool)) {
	s.lookupEnv = lookup
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Generation: domain.GenerationSettings{
			Provider:          s.getProvider(keyGenProvider, defaults.Generation.Provider),
			Model:             s.getString(keyGenModel, defaults.Generation.Model),
			BaseURL:           s.configStore.GetString(keyGenBaseURL),
			APIKey:            s.configStore.GetString(keyGenAPIKey),
			Temperature:       s.getFloat(keyGenTemperature, defaults.Generation.Temperature),
			MaxTokens:         s.getInt(keyGenMaxTokens, defaults.Generation.MaxTokens),
			TopP:              s.getFloat(keyGenTopP, defaults.Generation.TopP),
			RequestsPerMinute: s.getInt(keyGenRPM, defaults.Generation.RequestsPerMinute),
			Timeout:           s.getDuration(keyGenTimeout, defaults.Generation.Timeout),
		},
		Embedding: domain.EmbeddingSettings{
			Provider: s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			Model:    s.getString(keyEmbedModel, defaults.Embedding.Model),
			BaseURL:  s.configStore.GetString(keyEmbedBaseURL),
			APIKey:   s.configStore.GetString(keyEmbedAPIKey),
		},
		VectorIndex: domain.VectorIndexSettings{
			Engine:     s.getEngine(defaults.VectorIndex.Engine),
			URL:        s.getString(keyVectorURL, defaults.VectorIndex.URL),
			Collection: s.getString(keyVectorColl, defaults.VectorIndex.Collection),
		},
		Chunking: domain.ChunkingSettings{
			Size:    s.getInt(keyChunkSize, defaults.Chunking.Size),
			Overlap: s.getInt(keyChunkOverlap, defaults.Chunking.Overlap),
		},
		Retrieval: domain.RetrievalSettings{
			MaxResults: s.getInt(keyMaxResults, defaults.Retrieval.MaxResults),
			Timeout:    s.getDuration(keyRetrievalTO, defaults.Retrieval.Timeout),
		},
		Lock: domain.LockSettings{
			Backend:   s.getLockBackend(defaults.Lock.Backend),
			RedisAddr: s.getString(keyLockRedisAddr, defaults.Lock.RedisAddr),
			TTL:       s.getDuration(keyLockTTL, defaults.Lock.TTL),
		},
	}

	// Local providers need a base URL; cloud providers use their public API.
	if settings.Generation.BaseURL == "" && settings.Generation.Provider.IsLocal() {
		settings.Generation.BaseURL = defaults.Generation.BaseURL
	}
	if settings.Embedding.BaseURL == "" && settings.Embedding.Provider.IsLocal() {
		settings.Embedding.BaseURL = defaults.Embedding.BaseURL
	}

	s.applyEnv(settings)
	return settings, nil
}

// applyEnv overlays environment variables on loaded settings.
func (s *SettingsService) applyEnv(settings *domain.AppSettings) {
	if v, ok := s.env(EnvOllamaURL); ok {
		if settings.Generation.Provider == domain.AIProviderOllama {
			settings.Generation.BaseURL = v
		}
		if settings.Embedding.Provider == domain.AIProviderOllama {
			settings.Embedding.BaseURL = v
		}
	}
	if v, ok := s.env(EnvOllamaModel); ok && settings.Generation.Provider == domain.AIProviderOllama {
		settings.Generation.Model = v
	}
	if v, ok := s.env(EnvOpenAIKey); ok {
		if settings.Generation.Provider == domain.AIProviderOpenAI {
			settings.Generation.APIKey = v
		}
		if settings.Embedding.Provider == domain.AIProviderOpenAI {
			settings.Embedding.APIKey = v
		}
	}
	if v, ok := s.env(EnvAnthropicKey); ok && settings.Generation.Provider == domain.AIProviderAnthropic {
		settings.Generation.APIKey = v
	}
	if v, ok := s.env(EnvChromaURL); ok {
		settings.VectorIndex.URL = v
	}
	if v, ok := s.env(EnvChromaCollection); ok {
		settings.VectorIndex.Collection = v
	}
	if v, ok := s.envInt(EnvChunkSize); ok {
		settings.Chunking.Size = v
	}
	if v, ok := s.envInt(EnvChunkOverlap); ok {
		settings.Chunking.Overlap = v
	}
	if v, ok := s.env(EnvRedisAddr); ok {
		settings.Lock.RedisAddr = v
	}
}

func (s *SettingsService) env(name string) (string, bool) {
	if s.lookupEnv == nil {
		return "", false
	}
	v, ok := s.lookupEnv(name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (s *SettingsService) envInt(name string) (int, bool) {
	v, ok := s.env(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		logger.Warn("Ignoring %s=%q: not a non-negative integer", name, v)
		return 0, false
	}
	return n, true
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyGenProvider, settings.Generation.Provider.String()},
		{keyGenModel, settings.Generation.Model},
		{keyGenBaseURL, settings.Generation.BaseURL},
		{keyGenTemperature, settings.Generation.Temperature},
		{keyGenMaxTokens, settings.Generation.MaxTokens},
		{keyGenTopP, settings.Generation.TopP},
		{keyGenRPM, settings.Generation.RequestsPerMinute},
		{keyGenTimeout, settings.Generation.Timeout.String()},
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyVectorEngine, settings.VectorIndex.Engine.String()},
		{keyVectorURL, settings.VectorIndex.URL},
		{keyVectorColl, settings.VectorIndex.Collection},
		{keyChunkSize, settings.Chunking.Size},
		{keyChunkOverlap, settings.Chunking.Overlap},
		{keyMaxResults, settings.Retrieval.MaxResults},
		{keyRetrievalTO, settings.Retrieval.Timeout.String()},
		{keyLockBackend, string(settings.Lock.Backend)},
		{keyLockRedisAddr, settings.Lock.RedisAddr},
		{keyLockTTL, settings.Lock.TTL.String()},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// API keys are only written when present so an empty value never clears a stored key.
	if settings.Generation.APIKey != "" {
		if err := s.configStore.Set(keyGenAPIKey, settings.Generation.APIKey); err != nil {
			return fmt.Errorf("save %s: %w", keyGenAPIKey, err)
		}
	}
	if settings.Embedding.APIKey != "" {
		if err := s.configStore.Set(keyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save %s: %w", keyEmbedAPIKey, err)
		}
	}

	return nil
}

// Set parses and stores a single setting.
func (s *SettingsService) Set(key, value string) error {
	key = strings.TrimSpace(key)
	kind, ok := settingKinds[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	value = strings.TrimSpace(value)

	var typed any
	switch kind {
	case kindString:
		typed = value
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrInvalidInput, key)
		}
		typed = n
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number", domain.ErrInvalidInput, key)
		}
		typed = f
	case kindDuration:
		d, err := time.ParseDuration(value)
		if err != nil || d < 0 {
			return fmt.Errorf("%w: %s must be a duration such as 30s", domain.ErrInvalidInput, key)
		}
		typed = d.String()
	case kindProvider:
		p := domain.AIProvider(strings.ToLower(value))
		if !p.IsValid() {
			return fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, value)
		}
		if key == keyEmbedProvider && p == domain.AIProviderAnthropic {
			return fmt.Errorf("%w: provider %s does not support embeddings", domain.ErrInvalidInput, p)
		}
		typed = p.String()
	case kindEngine:
		e := domain.VectorEngine(strings.ToLower(value))
		if !e.IsValid() {
			return fmt.Errorf("%w: unknown vector engine %q", domain.ErrInvalidInput, value)
		}
		typed = e.String()
	case kindLockBackend:
		b := domain.LockBackend(strings.ToLower(value))
		if !b.IsValid() {
			return fmt.Errorf("%w: unknown lock backend %q", domain.ErrInvalidInput, value)
		}
		typed = string(b)
	}

	if err := s.configStore.Set(key, typed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Keys returns the recognised setting keys in sorted order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingKinds))
	for k := range settingKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks that the current settings are usable.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if !settings.Generation.IsConfigured() {
		return fmt.Errorf("generation provider %q is not configured", settings.Generation.Provider)
	}
	if !settings.Embedding.IsConfigured() {
		return fmt.Errorf("embedding provider %q is not configured", settings.Embedding.Provider)
	}
	if settings.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive")
	}
	if settings.Chunking.Overlap >= settings.Chunking.Size {
		return fmt.Errorf("chunking.overlap (%d) must be smaller than chunking.size (%d)",
			settings.Chunking.Overlap, settings.Chunking.Size)
	}
	if settings.Lock.Backend == domain.LockBackendRedis && settings.Lock.RedisAddr == "" {
		return fmt.Errorf("lock backend redis requires lock.redis_addr")
	}
	if settings.VectorIndex.Engine == domain.VectorEngineChroma && settings.VectorIndex.URL == "" {
		return fmt.Errorf("vector engine chroma requires vector_index.url")
	}

	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateGenerationConfig validates the current generation configuration by pinging the backend.
func (s *SettingsService) ValidateGenerationConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateGeneration(&settings.Generation)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		logger.Warn("Ignoring %s=%q: %v", key, val, err)
		return defaultVal
	}
	return d
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getEngine(defaultVal domain.VectorEngine) domain.VectorEngine {
	engine := domain.VectorEngine(s.configStore.GetString(keyVectorEngine))
	if !engine.IsValid() {
		return defaultVal
	}
	return engine
}

func (s *SettingsService) getLockBackend(defaultVal domain.LockBackend) domain.LockBackend {
	backend := domain.LockBackend(s.configStore.GetString(keyLockBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}
