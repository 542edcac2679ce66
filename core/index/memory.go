package index

import (
	"context"
	"sync"

	"github.com/siherrmann/ragchat/model"
)

// MemoryIndex keeps all vectors in process memory. Its content is lost on exit.
type MemoryIndex struct {
	mu        sync.RWMutex
	dimension int
	entries   map[string]*model.IndexedVector
}

func NewMemoryIndex(dimension int) *MemoryIndex {
	return &MemoryIndex{
		dimension: dimension,
		entries:   make(map[string]*model.IndexedVector),
	}
}

func (m *MemoryIndex) Upsert(ctx context.Context, chunks []*model.Chunk, vectors [][]float32) error {
	if err := ValidateUpsert(chunks, vectors, m.dimension); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, chunk := range chunks {
		embedding := make([]float32, len(vectors[i]))
		copy(embedding, vectors[i])

		m.entries[chunk.ID] = &model.IndexedVector{
			ID:        chunk.ID,
			Embedding: embedding,
			Content:   chunk.Content,
			Metadata:  chunk.IndexMetadata(),
		}
	}

	return nil
}

func (m *MemoryIndex) Query(ctx context.Context, vector []float32, k int) ([]*model.RetrievalResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.entries) == 0 {
		return []*model.RetrievalResult{}, nil
	}
	if err := ValidateQuery(vector, m.dimension); err != nil {
		return nil, err
	}

	entries := make([]*model.IndexedVector, 0, len(m.entries))
	for _, entry := range m.entries {
		entries = append(entries, entry)
	}

	return rank(entries, vector, k), nil
}

func (m *MemoryIndex) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries), nil
}

func (m *MemoryIndex) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*model.IndexedVector)
	return nil
}

func (m *MemoryIndex) Close() error {
	return nil
}
