// Package vectorindex holds helpers shared by the vector index adapters.
package vectorindex

import (
	"fmt"
	"math"
	"sort"

	"github.com/custodia-labs/docuchat/internal/core/domain"
)

// CosineSimilarity returns the cosine of the angle between a and b.
// Mismatched lengths or zero vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SimilarityFromDistance converts a cosine distance into a similarity.
func SimilarityFromDistance(distance float64) float64 {
	return 1 - distance
}

// Rank sorts results best match first, ties broken by key, and keeps at most limit.
func Rank(results []domain.RetrievalResult, limit int) []domain.RetrievalResult {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity == results[j].Similarity {
			return results[i].Key < results[j].Key
		}
		return results[i].Similarity > results[j].Similarity
	})
	if limit >= 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Unavailable wraps err as an index failure.
func Unavailable(engine string, err error) error {
	return fmt.Errorf("%s: %w: %w", engine, domain.ErrIndexUnavailable, err)
}
