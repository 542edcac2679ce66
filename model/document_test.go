package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewDocument(t *testing.T) {
	t.Run("Source is the file name and title drops the extension", func(t *testing.T) {
		doc := NewDocument("/tmp/docs/about.pdf", []string{"page one", "page two"})

		assert.Equal(t, "about.pdf", doc.Source)
		assert.Equal(t, "about", doc.Title)
		assert.Equal(t, "/tmp/docs/about.pdf", doc.Path)
		assert.Equal(t, 2, doc.Metadata["pages"])
	})

	t.Run("Text joins pages with newlines", func(t *testing.T) {
		doc := NewDocument("a.pdf", []string{"first", "second"})
		assert.Equal(t, "first\nsecond", doc.Text())
	})

	t.Run("Hidden file keeps full name as title", func(t *testing.T) {
		doc := NewDocument(".pdf", nil)
		assert.Equal(t, ".pdf", doc.Title)
	})
}

func TestChunk(t *testing.T) {
	t.Run("ChunkID is prefixed and increasing", func(t *testing.T) {
		assert.Equal(t, "doc_0", ChunkID(0))
		assert.Equal(t, "doc_17", ChunkID(17))
	})

	t.Run("IndexMetadata always carries the source", func(t *testing.T) {
		chunk := &Chunk{Source: "about.pdf", Metadata: Metadata{"page": 1, "source": "other"}}

		metadata := chunk.IndexMetadata()
		assert.Equal(t, "about.pdf", metadata["source"])
		assert.Equal(t, 1, metadata["page"])
		assert.Equal(t, "other", chunk.Metadata["source"], "Expected chunk metadata to be left untouched")
	})

	t.Run("IndexedVector falls back to unknown source", func(t *testing.T) {
		v := &IndexedVector{Metadata: Metadata{}}
		assert.Equal(t, UnknownSource, v.Source())
	})
}

func TestRetrievedContext(t *testing.T) {
	t.Run("No information contexts are distinguishable", func(t *testing.T) {
		empty := NewNoInformationContext(ContextEmptyIndex)
		noMatch := NewNoInformationContext(ContextNoMatch)
		failed := NewNoInformationContext(ContextUnavailable)

		assert.False(t, empty.Found())
		assert.False(t, noMatch.Found())
		assert.Equal(t, NoContextMessage, empty.Text)
		assert.Equal(t, NoRelevantContextMessage, noMatch.Text)
		assert.Equal(t, NoInformationMessage, failed.Text)
		assert.NotEqual(t, empty.Status, noMatch.Status)
	})

	t.Run("Found requires status and text", func(t *testing.T) {
		var nilContext *RetrievedContext
		assert.False(t, nilContext.Found())
		assert.False(t, (&RetrievedContext{Status: ContextFound, Text: "  "}).Found())
		assert.True(t, (&RetrievedContext{Status: ContextFound, Text: "From a.pdf:\nx"}).Found())
	})
}

func TestNewIngestionReport(t *testing.T) {
	report := NewIngestionReport("docs")

	assert.NotEqual(t, uuid.Nil, report.RunID, "Expected a run id")
	assert.Equal(t, "docs", report.Directory)
	assert.Empty(t, report.Files)
	assert.False(t, report.StartedAt.IsZero())
}

func TestDefaultRetrieveConfig(t *testing.T) {
	config := DefaultRetrieveConfig()
	assert.Equal(t, 3, config.TopK)
	assert.Zero(t, config.MaxDistance, "Expected distance cutoff to be disabled")
}
