package index

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/siherrmann/ragchat/model"
)

// Index is a nearest-neighbor store of chunk vectors compared by cosine distance.
// Upserts and queries on one index are expected to be serialized by the caller.
type Index interface {
	// Upsert stores chunks with their parallel vectors, overwriting existing ids.
	Upsert(ctx context.Context, chunks []*model.Chunk, vectors [][]float32) error
	// Query returns the min(k, count) nearest chunks by ascending cosine distance.
	Query(ctx context.Context, vector []float32, k int) ([]*model.RetrievalResult, error)
	Count(ctx context.Context) (int, error)
	// Clear removes all entries, calling it on an empty index is a no-op.
	Clear(ctx context.Context) error
	Close() error
}

// ValidateUpsert checks the upsert preconditions shared by all indexes.
func ValidateUpsert(chunks []*model.Chunk, vectors [][]float32, dimension int) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks, %d vectors", model.ErrLengthMismatch, len(chunks), len(vectors))
	}

	for i, chunk := range chunks {
		if chunk == nil || chunk.ID == "" {
			return fmt.Errorf("chunk %d has no id", i)
		}
		if len(vectors[i]) != dimension {
			return fmt.Errorf("%w: chunk %s has %d values, expected %d", model.ErrDimensionMismatch, chunk.ID, len(vectors[i]), dimension)
		}
	}

	return nil
}

// ValidateQuery checks the query vector against the index dimension.
func ValidateQuery(vector []float32, dimension int) error {
	if len(vector) != dimension {
		return fmt.Errorf("%w: query has %d values, expected %d", model.ErrDimensionMismatch, len(vector), dimension)
	}
	return nil
}

// CosineDistance returns 1 - cos(a, b). Zero vectors have distance 1 to everything.
func CosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

// rank computes the distances of all entries and keeps the k nearest.
// Equal distances are ordered by id to keep results stable.
func rank(entries []*model.IndexedVector, vector []float32, k int) []*model.RetrievalResult {
	if k <= 0 || len(entries) == 0 {
		return []*model.RetrievalResult{}
	}

	results := make([]*model.RetrievalResult, 0, len(entries))
	for _, entry := range entries {
		results = append(results, &model.RetrievalResult{
			ChunkID:  entry.ID,
			Content:  entry.Content,
			Source:   entry.Source(),
			Distance: CosineDistance(vector, entry.Embedding),
			Metadata: entry.Metadata,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance == results[j].Distance {
			return results[i].ChunkID < results[j].ChunkID
		}
		return results[i].Distance < results[j].Distance
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k]
}
