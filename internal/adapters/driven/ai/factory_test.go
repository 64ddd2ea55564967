package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	anthropicllm "github.com/custodia-labs/docuchat/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/docuchat/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/docuchat/internal/adapters/driven/llm/openai"
	locallock "github.com/custodia-labs/docuchat/internal/adapters/driven/lock/local"
	"github.com/custodia-labs/docuchat/internal/adapters/driven/vectorindex/chroma"
	memoryindex "github.com/custodia-labs/docuchat/internal/adapters/driven/vectorindex/memory"
	"github.com/custodia-labs/docuchat/internal/core/domain"
	"github.com/custodia-labs/docuchat/internal/core/ports/driven"
)

// stubProvider records the collection it was asked for.
type stubProvider struct {
	collection string
}

func (p *stubProvider) VectorIndex(collection string, embedder driven.EmbeddingService) driven.VectorIndex {
	p.collection = collection
	return memoryindex.NewIndex(embedder)
}

func TestInitResult_Close(t *testing.T) {
	result := &InitResult{}
	result.Close()
}

func TestCreateGenerator(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.GenerationSettings
		wantType any
		wantErr  bool
	}{
		{"nil settings", nil, nil, true},
		{"unknown provider", &domain.GenerationSettings{Provider: "cohere"}, nil, true},
		{"openai without key", &domain.GenerationSettings{Provider: domain.AIProviderOpenAI}, nil, true},
		{"ollama", &domain.GenerationSettings{Provider: domain.AIProviderOllama, Model: "llama3"}, &ollamallm.Generator{}, false},
		{"openai", &domain.GenerationSettings{Provider: domain.AIProviderOpenAI, APIKey: "sk"}, &openaillm.Generator{}, false},
		{"anthropic", &domain.GenerationSettings{Provider: domain.AIProviderAnthropic, APIKey: "sk"}, &anthropicllm.Generator{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, err := CreateGenerator(tt.settings)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
				assert.Nil(t, gen)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, gen)
		})
	}
}

func TestCreateGenerator_PassesModel(t *testing.T) {
	gen, err := CreateGenerator(&domain.GenerationSettings{Provider: domain.AIProviderOllama, Model: "mistral"})

	require.NoError(t, err)
	assert.Equal(t, "mistral", gen.ModelName())
}

func TestCreateEmbeddingService(t *testing.T) {
	svc, err := CreateEmbeddingService(nil)
	assert.NoError(t, err)
	assert.Nil(t, svc)

	svc, err = CreateEmbeddingService(&domain.EmbeddingSettings{Provider: domain.AIProviderOllama})
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", svc.ModelName())

	svc, err = CreateEmbeddingService(&domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI})
	assert.NoError(t, err)
	assert.Nil(t, svc)

	svc, err = CreateEmbeddingService(&domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI, APIKey: "sk"})
	require.NoError(t, err)
	assert.Equal(t, 1536, svc.Dimensions())

	_, err = CreateEmbeddingService(&domain.EmbeddingSettings{Provider: domain.AIProviderAnthropic, APIKey: "sk"})
	assert.ErrorContains(t, err, "anthropic does not support embeddings")

	_, err = CreateEmbeddingService(&domain.EmbeddingSettings{Provider: "unknown"})
	assert.Error(t, err)
}

func TestCreateVectorIndex(t *testing.T) {
	embedder, err := CreateEmbeddingService(&domain.EmbeddingSettings{Provider: domain.AIProviderOllama})
	require.NoError(t, err)

	index, err := CreateVectorIndex(&domain.VectorIndexSettings{Engine: domain.VectorEngineChroma, URL: "http://chroma:8000"}, nil, embedder)
	require.NoError(t, err)
	assert.IsType(t, &chroma.Index{}, index)

	index, err = CreateVectorIndex(&domain.VectorIndexSettings{Engine: domain.VectorEngineMemory}, nil, embedder)
	require.NoError(t, err)
	assert.IsType(t, &memoryindex.Index{}, index)

	provider := &stubProvider{}
	_, err = CreateVectorIndex(&domain.VectorIndexSettings{Engine: domain.VectorEngineSQLite, Collection: "notes"}, provider, embedder)
	require.NoError(t, err)
	assert.Equal(t, "notes", provider.collection)

	_, err = CreateVectorIndex(&domain.VectorIndexSettings{Engine: domain.VectorEngineSQLite}, nil, embedder)
	assert.Error(t, err)

	_, err = CreateVectorIndex(&domain.VectorIndexSettings{Engine: "faiss"}, provider, embedder)
	assert.Error(t, err)
}

func TestCreateLocker_LocalByDefault(t *testing.T) {
	locker, err := CreateLocker(context.Background(), &domain.LockSettings{Backend: domain.LockBackendLocal})

	require.NoError(t, err)
	assert.IsType(t, &locallock.Locker{}, locker)
}

func TestInitialise_Defaults(t *testing.T) {
	settings := domain.DefaultAppSettings()
	provider := &stubProvider{}

	result, err := Initialise(context.Background(), &settings, provider)

	require.NoError(t, err)
	defer result.Close()
	assert.NotNil(t, result.Generator)
	assert.NotNil(t, result.Embedding)
	assert.NotNil(t, result.VectorIndex)
	assert.Equal(t, "documents", provider.collection)
	assert.IsType(t, &locallock.Locker{}, result.Locker)
	assert.Empty(t, result.Warnings)
}

func TestInitialise_DegradesWithoutEmbedding(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.Embedding = domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI}

	result, err := Initialise(context.Background(), &settings, &stubProvider{})

	require.NoError(t, err)
	assert.Nil(t, result.VectorIndex)
	assert.Len(t, result.Warnings, 1)
}

func TestInitialise_RedisFallsBackToLocal(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.Lock = domain.LockSettings{Backend: domain.LockBackendRedis, RedisAddr: "127.0.0.1:1"}

	result, err := Initialise(context.Background(), &settings, &stubProvider{})

	require.NoError(t, err)
	assert.IsType(t, &locallock.Locker{}, result.Locker)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "in-process locks")
}

func TestInitialise_GeneratorRequired(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.Generation.Provider = domain.AIProviderAnthropic
	settings.Generation.APIKey = ""

	_, err := Initialise(context.Background(), &settings, &stubProvider{})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestValidateGenerationConfig_PingsBackend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer server.Close()

	err := ValidateGenerationConfig(&domain.GenerationSettings{Provider: domain.AIProviderOllama, BaseURL: server.URL})

	assert.NoError(t, err)
}

func TestValidateGenerationConfig_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	err := ValidateGenerationConfig(&domain.GenerationSettings{Provider: domain.AIProviderOllama, BaseURL: url})

	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}
