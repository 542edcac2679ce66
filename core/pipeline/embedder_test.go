package pipeline

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentBatch(t *testing.T) {
	lengthEmbed := func(text string) ([]float32, error) {
		return []float32{float32(len(text))}, nil
	}

	t.Run("Keeps input order", func(t *testing.T) {
		texts := []string{"a", "bb", "ccc", "dddd", "eeeee", "ffffff", "ggggggg"}

		vectors, err := ConcurrentBatch(lengthEmbed, 3)(texts)

		require.NoError(t, err)
		require.Len(t, vectors, len(texts))
		for i, text := range texts {
			assert.Equal(t, float32(len(text)), vectors[i][0], "Vector %d should belong to text %q", i, text)
		}
	})

	t.Run("Empty input", func(t *testing.T) {
		vectors, err := ConcurrentBatch(lengthEmbed, 2)([]string{})

		require.NoError(t, err)
		assert.Empty(t, vectors)
	})

	t.Run("Non positive worker count falls back to cpu count", func(t *testing.T) {
		vectors, err := ConcurrentBatch(lengthEmbed, 0)([]string{"a", "bb"})

		require.NoError(t, err)
		assert.Len(t, vectors, 2)
	})

	t.Run("Embeds every text once", func(t *testing.T) {
		var calls atomic.Int32
		embed := func(text string) ([]float32, error) {
			calls.Add(1)
			return []float32{1}, nil
		}

		_, err := ConcurrentBatch(embed, 4)(make([]string, 50))

		require.NoError(t, err)
		assert.Equal(t, int32(50), calls.Load())
	})

	t.Run("Error from single text fails the batch", func(t *testing.T) {
		embed := func(text string) ([]float32, error) {
			if text == "bad" {
				return nil, errors.New("model failure")
			}
			return []float32{1}, nil
		}

		vectors, err := ConcurrentBatch(embed, 2)([]string{"good", "bad", "good"})

		assert.Error(t, err)
		assert.Nil(t, vectors)
		assert.Contains(t, err.Error(), "text 1")
		assert.Contains(t, err.Error(), "model failure")
	})
}

func TestNewEmbedder(t *testing.T) {
	embedder := NewEmbedder("test", 4, testEmbedFunc(4), 2)

	assert.Equal(t, "test", embedder.Model)
	assert.Equal(t, 4, embedder.Dimension)
	assert.NoError(t, embedder.Close(), "Closing an embedder without resources should succeed")

	single, err := embedder.Embed("Technova")
	require.NoError(t, err)
	batch, err := embedder.EmbedBatch([]string{"Technova"})
	require.NoError(t, err)
	assert.Equal(t, single, batch[0], "Single and batch path should agree")
}

func TestDefaultEmbedder(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping DefaultEmbedder test in short mode (requires model download)")
	}

	embedder, err := DefaultEmbedder()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, embedder.Close())
	})

	t.Run("Generate embedding for text", func(t *testing.T) {
		embedding, err := embedder.Embed("This is a test sentence.")

		require.NoError(t, err)
		assert.Equal(t, 384, len(embedding), "all-MiniLM-L6-v2 produces 384-dimensional embeddings")
		assert.Equal(t, 384, embedder.Dimension)

		hasNonZero := false
		for _, val := range embedding {
			if val != 0 {
				hasNonZero = true
				break
			}
		}
		assert.True(t, hasNonZero, "Embedding should contain non-zero values")
	})

	t.Run("Same text produces same embedding", func(t *testing.T) {
		embedding1, err := embedder.Embed("Deterministic embedding test")
		require.NoError(t, err)
		embedding2, err := embedder.Embed("Deterministic embedding test")
		require.NoError(t, err)

		assert.Equal(t, embedding1, embedding2)
	})

	t.Run("Empty text produces a vector", func(t *testing.T) {
		embedding, err := embedder.Embed("")

		require.NoError(t, err)
		assert.Equal(t, 384, len(embedding))
	})

	t.Run("Batch matches single embeddings", func(t *testing.T) {
		texts := []string{"Technova was founded in 2023.", "The sky is blue."}

		vectors, err := embedder.EmbedBatch(texts)
		require.NoError(t, err)
		require.Len(t, vectors, 2)

		single, err := embedder.Embed(texts[1])
		require.NoError(t, err)
		assert.InDeltaSlice(t, single, vectors[1], 1e-5)
	})
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

func TestOpenAIEmbedder(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}

		var request embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		// Answer in reverse order to check reordering by index.
		data := make([]map[string]interface{}, 0, len(request.Input))
		for i := len(request.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]interface{}{
				"object":    "embedding",
				"index":     i,
				"embedding": []float64{float64(len(request.Input[i])), 1},
			})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data":   data,
			"model":  request.Model,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(server.Close)

	embedder := NewOpenAIEmbedder("test-key", server.URL+"/v1/", "text-embedding-3-small", 2, 2, 1, 5*time.Second)

	t.Run("Batch is reordered by response index", func(t *testing.T) {
		requests.Store(0)
		texts := []string{"a", "bbb", "cc", "dddd", "e"}

		vectors, err := embedder.EmbedBatch(texts)

		require.NoError(t, err)
		require.Len(t, vectors, len(texts))
		for i, text := range texts {
			assert.Equal(t, []float32{float32(len(text)), 1}, vectors[i], "Vector %d should belong to text %q", i, text)
		}
		assert.Equal(t, int32(3), requests.Load(), "Expected 5 texts in batches of 2 to need 3 requests")
	})

	t.Run("Concurrent groups keep the input order", func(t *testing.T) {
		requests.Store(0)
		parallel := NewOpenAIEmbedder("test-key", server.URL+"/v1/", "text-embedding-3-small", 2, 1, 3, 5*time.Second)
		texts := []string{"a", "bbb", "cc", "dddd", "e", "ffffff", "ggg"}

		vectors, err := parallel.EmbedBatch(texts)

		require.NoError(t, err)
		require.Len(t, vectors, len(texts))
		for i, text := range texts {
			assert.Equal(t, []float32{float32(len(text)), 1}, vectors[i], "Vector %d should belong to text %q", i, text)
		}
		assert.Equal(t, int32(len(texts)), requests.Load(), "Expected one request per text with batch size 1")
	})

	t.Run("Empty text is sent as a blank", func(t *testing.T) {
		vector, err := embedder.Embed("")

		require.NoError(t, err)
		assert.Equal(t, []float32{1, 1}, vector)
	})

	t.Run("Server error is returned", func(t *testing.T) {
		failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"message":"invalid key"}}`, http.StatusUnauthorized)
		}))
		t.Cleanup(failing.Close)

		broken := NewOpenAIEmbedder("bad-key", failing.URL+"/v1/", "text-embedding-3-small", 2, 2, 1, 5*time.Second)
		_, err := broken.Embed("Technova")

		assert.Error(t, err)
	})
}
