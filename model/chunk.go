package model

import (
	"fmt"
	"time"
)

// Chunk is a bounded slice of extracted document text tagged with its source file.
type Chunk struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Source     string    `json:"source"`
	ChunkIndex int       `json:"chunk_index"`
	Metadata   Metadata  `json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChunkID returns the id of the n-th chunk of an ingestion run.
func ChunkID(n int) string {
	return fmt.Sprintf("doc_%d", n)
}

// IndexMetadata returns the metadata stored next to the vector.
// The source is always present.
func (c *Chunk) IndexMetadata() Metadata {
	metadata := Metadata{}
	for k, v := range c.Metadata {
		metadata[k] = v
	}
	metadata["source"] = c.Source
	return metadata
}

// IndexedVector is the stored form of a chunk inside a vector index.
type IndexedVector struct {
	ID        string    `json:"id"`
	Embedding []float32 `json:"embedding"`
	Content   string    `json:"content"`
	Metadata  Metadata  `json:"metadata"`
}

// Source returns the originating file name from the metadata.
func (v *IndexedVector) Source() string {
	if source, ok := v.Metadata["source"].(string); ok && source != "" {
		return source
	}
	return UnknownSource
}
