// Package chroma provides a vector index adapter for a Chroma server over its REST API.
//
// Chroma stores whatever vectors it is given, so chunk text and queries are
// embedded client-side through the configured EmbeddingService. The collection
// is created with the cosine space, which makes 1 - distance the similarity.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/docuchat/internal/adapters/driven/vectorindex"
	"github.com/custodia-labs/docuchat/internal/core/domain"
	"github.com/custodia-labs/docuchat/internal/core/ports/driven"
	"github.com/custodia-labs/docuchat/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

const engineName = "chroma"

// Default configuration values.
const (
	DefaultURL        = "http://localhost:8000"
	DefaultCollection = "documents"
	DefaultTimeout    = 30 * time.Second
)

// Config holds configuration for the Chroma index.
type Config struct {
	// URL is the Chroma server base URL (default: http://localhost:8000).
	URL string

	// Collection is the collection holding chunks (default: documents).
	Collection string

	// Timeout is the per-request timeout (default: 30s).
	Timeout time.Duration
}

// Index is a driven.VectorIndex backed by a Chroma collection.
type Index struct {
	client     *http.Client
	baseURL    string
	collection string
	embedder   driven.EmbeddingService

	mu           sync.Mutex
	collectionID string
}

type createCollectionRequest struct {
	Name        string         `json:"name"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	GetOrCreate bool           `json:"get_or_create"`
}

type collectionResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type upsertRequest struct {
	IDs        []string               `json:"ids"`
	Embeddings [][]float32            `json:"embeddings"`
	Documents  []string               `json:"documents"`
	Metadatas  []domain.ChunkMetadata `json:"metadatas"`
}

type queryRequest struct {
	QueryEmbeddings [][]float32 `json:"query_embeddings"`
	NResults        int         `json:"n_results"`
	Include         []string    `json:"include"`
}

type queryResponse struct {
	IDs       [][]string                `json:"ids"`
	Documents [][]*string               `json:"documents"`
	Metadatas [][]*domain.ChunkMetadata `json:"metadatas"`
	Distances [][]float64               `json:"distances"`
}

type deleteRequest struct {
	Where map[string]string `json:"where"`
}

// NewIndex creates a Chroma index. No request is made until first use.
func NewIndex(cfg Config, embedder driven.EmbeddingService) *Index {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Index{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		collection: cfg.Collection,
		embedder:   embedder,
	}
}

// Upsert embeds text and stores it under key.
func (x *Index) Upsert(ctx context.Context, key, text string, metadata domain.ChunkMetadata) error {
	id, err := x.connect(ctx)
	if err != nil {
		return err
	}
	embedding, err := x.embed(ctx, text)
	if err != nil {
		return err
	}

	req := upsertRequest{
		IDs:        []string{key},
		Embeddings: [][]float32{embedding},
		Documents:  []string{text},
		Metadatas:  []domain.ChunkMetadata{metadata},
	}
	return x.post(ctx, "/api/v1/collections/"+url.PathEscape(id)+"/upsert", req, nil)
}

// Query returns up to limit chunks nearest to text.
func (x *Index) Query(ctx context.Context, text string, limit int) ([]domain.RetrievalResult, error) {
	id, err := x.connect(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []domain.RetrievalResult{}, nil
	}

	count, err := x.count(ctx, id)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return []domain.RetrievalResult{}, nil
	}
	if limit > count {
		limit = count
	}

	embedding, err := x.embed(ctx, text)
	if err != nil {
		return nil, err
	}

	req := queryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        limit,
		Include:         []string{"documents", "metadatas", "distances"},
	}
	var resp queryResponse
	if err := x.post(ctx, "/api/v1/collections/"+url.PathEscape(id)+"/query", req, &resp); err != nil {
		return nil, err
	}

	results := make([]domain.RetrievalResult, 0, limit)
	if len(resp.IDs) == 0 {
		return results, nil
	}
	for i, key := range resp.IDs[0] {
		result := domain.RetrievalResult{Key: key}
		if doc := at(resp.Documents, i); doc != nil && *doc != nil {
			result.Content = **doc
		}
		if meta := at(resp.Metadatas, i); meta != nil && *meta != nil {
			result.Metadata = **meta
		}
		if dist := at(resp.Distances, i); dist != nil {
			result.Similarity = vectorindex.SimilarityFromDistance(*dist)
		}
		results = append(results, result)
	}

	return vectorindex.Rank(results, limit), nil
}

// DeleteByDocumentID removes every chunk whose metadata names the document.
func (x *Index) DeleteByDocumentID(ctx context.Context, documentID string) error {
	id, err := x.connect(ctx)
	if err != nil {
		return err
	}
	req := deleteRequest{Where: map[string]string{"documentId": documentID}}
	return x.post(ctx, "/api/v1/collections/"+url.PathEscape(id)+"/delete", req, nil)
}

// Close releases resources.
func (x *Index) Close() error {
	return nil
}

// Ping checks the server heartbeat.
func (x *Index) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, x.baseURL+"/api/v1/heartbeat", http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := x.client.Do(req)
	if err != nil {
		return vectorindex.Unavailable(engineName, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return vectorindex.Unavailable(engineName, fmt.Errorf("heartbeat returned status %d", resp.StatusCode))
	}
	return nil
}

// connect get-or-creates the collection once and caches its ID.
// Failures are not cached so a later call retries.
func (x *Index) connect(ctx context.Context) (string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.collectionID != "" {
		return x.collectionID, nil
	}

	req := createCollectionRequest{
		Name:        x.collection,
		Metadata:    map[string]any{"hnsw:space": "cosine"},
		GetOrCreate: true,
	}
	var resp collectionResponse
	if err := x.post(ctx, "/api/v1/collections", req, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", vectorindex.Unavailable(engineName, fmt.Errorf("collection %q returned no id", x.collection))
	}

	logger.Debug("chroma: using collection %s (%s)", x.collection, resp.ID)
	x.collectionID = resp.ID
	return x.collectionID, nil
}

func (x *Index) count(ctx context.Context, id string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		x.baseURL+"/api/v1/collections/"+url.PathEscape(id)+"/count", http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	var n int
	if err := x.do(req, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func (x *Index) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return x.do(req, out)
}

// do sends req and decodes a JSON body into out when non-nil.
// Transport failures and non-2xx statuses both wrap domain.ErrIndexUnavailable.
func (x *Index) do(req *http.Request, out any) error {
	resp, err := x.client.Do(req)
	if err != nil {
		return vectorindex.Unavailable(engineName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return vectorindex.Unavailable(engineName, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return vectorindex.Unavailable(engineName,
			fmt.Errorf("%s %s returned status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body))))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (x *Index) embed(ctx context.Context, text string) ([]float32, error) {
	if x.embedder == nil {
		return nil, vectorindex.Unavailable(engineName, domain.ErrEmbeddingUnavailable)
	}
	embedding, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, vectorindex.Unavailable(engineName, err)
	}
	return embedding, nil
}

// at returns a pointer to rows[0][i] or nil when absent.
func at[T any](rows [][]T, i int) *T {
	if len(rows) == 0 || i >= len(rows[0]) {
		return nil
	}
	return &rows[0][i]
}
