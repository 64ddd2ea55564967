package chroma

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docuchat/internal/core/domain"
)

type constEmbedder struct{}

func (constEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0}, nil
}
func (constEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}
func (constEmbedder) Dimensions() int              { return 2 }
func (constEmbedder) ModelName() string            { return "const" }
func (constEmbedder) Ping(_ context.Context) error { return nil }
func (constEmbedder) Close() error                 { return nil }

// fakeChroma serves the subset of the Chroma REST API the index uses.
type fakeChroma struct {
	creates atomic.Int32
	count   int
	upserts []upsertRequest
	queries []queryRequest
	deletes []deleteRequest
}

func (f *fakeChroma) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/collections", func(w http.ResponseWriter, r *http.Request) {
		var req createCollectionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "cosine", req.Metadata["hnsw:space"])
		assert.True(t, req.GetOrCreate)
		f.creates.Add(1)
		_ = json.NewEncoder(w).Encode(collectionResponse{ID: "col-1", Name: req.Name})
	})
	mux.HandleFunc("POST /api/v1/collections/col-1/upsert", func(w http.ResponseWriter, r *http.Request) {
		var req upsertRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.upserts = append(f.upserts, req)
		_, _ = w.Write([]byte("true"))
	})
	mux.HandleFunc("GET /api/v1/collections/col-1/count", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(f.count)
	})
	mux.HandleFunc("POST /api/v1/collections/col-1/query", func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.queries = append(f.queries, req)
		_, _ = w.Write([]byte(`{
			"ids":[["d1_0","d2_3"]],
			"documents":[["first chunk",null]],
			"metadatas":[[{"documentId":"d1","filename":"a.txt","sequenceIndex":0,"totalChunks":1},null]],
			"distances":[[0.1,0.4]]
		}`))
	})
	mux.HandleFunc("POST /api/v1/collections/col-1/delete", func(w http.ResponseWriter, r *http.Request) {
		var req deleteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.deletes = append(f.deletes, req)
		_, _ = w.Write([]byte("[]"))
	})
	mux.HandleFunc("GET /api/v1/heartbeat", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"nanosecond heartbeat":1}`))
	})
	return mux
}

func newTestIndex(t *testing.T, fake *fakeChroma) *Index {
	t.Helper()
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)
	return NewIndex(Config{URL: server.URL, Collection: "docs"}, constEmbedder{})
}

func TestIndex_Upsert_CreatesCollectionOnce(t *testing.T) {
	fake := &fakeChroma{}
	index := newTestIndex(t, fake)
	ctx := context.Background()
	meta := domain.ChunkMetadata{DocumentID: "d1", Filename: "a.txt", TotalChunks: 2}

	require.NoError(t, index.Upsert(ctx, "d1_0", "hello", meta))
	require.NoError(t, index.Upsert(ctx, "d1_1", "world", meta))

	assert.Equal(t, int32(1), fake.creates.Load())
	require.Len(t, fake.upserts, 2)
	assert.Equal(t, []string{"d1_0"}, fake.upserts[0].IDs)
	assert.Equal(t, []string{"hello"}, fake.upserts[0].Documents)
	assert.Equal(t, [][]float32{{1, 0}}, fake.upserts[0].Embeddings)
	assert.Equal(t, "a.txt", fake.upserts[0].Metadatas[0].Filename)
}

func TestIndex_Query_ConvertsDistances(t *testing.T) {
	fake := &fakeChroma{count: 10}
	index := newTestIndex(t, fake)

	results, err := index.Query(context.Background(), "hello", 2)

	require.NoError(t, err)
	require.Len(t, fake.queries, 1)
	assert.Equal(t, 2, fake.queries[0].NResults)
	require.Len(t, results, 2)
	assert.Equal(t, "d1_0", results[0].Key)
	assert.InDelta(t, 0.9, results[0].Similarity, 1e-9)
	assert.Equal(t, "first chunk", results[0].Content)
	assert.Equal(t, "d1", results[0].Metadata.DocumentID)
	assert.Equal(t, "d2_3", results[1].Key)
	assert.InDelta(t, 0.6, results[1].Similarity, 1e-9)
	assert.Empty(t, results[1].Content)
	assert.Equal(t, domain.ChunkMetadata{}, results[1].Metadata)
}

func TestIndex_Query_ClampsToCollectionSize(t *testing.T) {
	fake := &fakeChroma{count: 2}
	index := newTestIndex(t, fake)

	_, err := index.Query(context.Background(), "hello", 5)

	require.NoError(t, err)
	require.Len(t, fake.queries, 1)
	assert.Equal(t, 2, fake.queries[0].NResults)
}

func TestIndex_Query_EmptyCollection(t *testing.T) {
	fake := &fakeChroma{}
	index := newTestIndex(t, fake)

	results, err := index.Query(context.Background(), "hello", 5)

	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, fake.queries)
}

func TestIndex_DeleteByDocumentID(t *testing.T) {
	fake := &fakeChroma{}
	index := newTestIndex(t, fake)

	require.NoError(t, index.DeleteByDocumentID(context.Background(), "d1"))

	require.Len(t, fake.deletes, 1)
	assert.Equal(t, map[string]string{"documentId": "d1"}, fake.deletes[0].Where)
}

func TestIndex_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()
	index := NewIndex(Config{URL: url}, constEmbedder{})

	_, err := index.Query(context.Background(), "hello", 3)
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
	assert.ErrorIs(t, index.Ping(context.Background()), domain.ErrIndexUnavailable)
	assert.Empty(t, index.collectionID)
}

func TestIndex_ServerErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer server.Close()
	index := NewIndex(Config{URL: server.URL}, constEmbedder{})

	err := index.Upsert(context.Background(), "k", "t", domain.ChunkMetadata{})

	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
	assert.Contains(t, err.Error(), "status 500")
}

func TestIndex_Ping(t *testing.T) {
	index := newTestIndex(t, &fakeChroma{})

	assert.NoError(t, index.Ping(context.Background()))
}
