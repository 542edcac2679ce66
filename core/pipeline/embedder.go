package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/knights-analytics/hugot"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/siherrmann/ragchat/helper"
)

const (
	DefaultEmbeddingModel     = "sentence-transformers/all-MiniLM-L6-v2"
	DefaultEmbeddingOnnxFile  = "onnx/model.onnx"
	DefaultEmbeddingBatchSize = 32
)

// Embedder turns text into fixed-length vectors.
// Embedding the same text twice yields the same vector.
type Embedder struct {
	Model      string
	Dimension  int
	Embed      EmbedFunc
	EmbedBatch BatchEmbedFunc
	close      func() error
}

// NewEmbedder wraps a single-text embed function.
// The batch path runs embed on up to workers goroutines and keeps the input order.
func NewEmbedder(model string, dimension int, embed EmbedFunc, workers int) *Embedder {
	return &Embedder{
		Model:      model,
		Dimension:  dimension,
		Embed:      embed,
		EmbedBatch: ConcurrentBatch(embed, workers),
	}
}

// Close releases the model resources of the embedder.
func (e *Embedder) Close() error {
	if e.close == nil {
		return nil
	}
	return e.close()
}

type embeddingJob struct {
	index int
	text  string
}

type embeddingResult struct {
	index  int
	vector []float32
	err    error
}

// ConcurrentBatch turns an EmbedFunc into a BatchEmbedFunc backed by a worker pool.
// Output vector i always belongs to input text i.
func ConcurrentBatch(embed EmbedFunc, workers int) BatchEmbedFunc {
	return func(texts []string) ([][]float32, error) {
		if len(texts) == 0 {
			return [][]float32{}, nil
		}
		poolSize := workers
		if poolSize <= 0 {
			poolSize = runtime.NumCPU()
		}

		jobs := make(chan embeddingJob, len(texts))
		results := make(chan embeddingResult, len(texts))

		var wg sync.WaitGroup
		for i := 0; i < min(poolSize, len(texts)); i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for job := range jobs {
					vector, err := embed(job.text)
					results <- embeddingResult{index: job.index, vector: vector, err: err}
				}
			}()
		}

		for i, text := range texts {
			jobs <- embeddingJob{index: i, text: text}
		}
		close(jobs)

		go func() {
			wg.Wait()
			close(results)
		}()

		vectors := make([][]float32, len(texts))
		var errs []error
		for result := range results {
			if result.err != nil {
				errs = append(errs, fmt.Errorf("text %d: %w", result.index, result.err))
				continue
			}
			vectors[result.index] = result.vector
		}

		if len(errs) > 0 {
			return nil, fmt.Errorf("failed to generate embeddings: %w", errors.Join(errs...))
		}

		return vectors, nil
	}
}

// DefaultEmbedder creates an embedder using a real sentence transformer model
// Uses the all-MiniLM-L6-v2 model which produces 384-dimensional embeddings
func DefaultEmbedder() (*Embedder, error) {
	return NewHugotEmbedder(DefaultEmbeddingModel, DefaultEmbeddingOnnxFile, DefaultEmbeddingBatchSize)
}

// NewHugotEmbedder runs a feature extraction model locally through hugot.
// The model is downloaded on first use.
func NewHugotEmbedder(modelName string, onnxFile string, batchSize int) (*Embedder, error) {
	modelPath, err := helper.PrepareModel(modelName, onnxFile)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "embedder-pipeline",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	if batchSize <= 0 {
		batchSize = DefaultEmbeddingBatchSize
	}

	// The pipeline is not safe for concurrent use.
	var mu sync.Mutex
	batch := func(texts []string) ([][]float32, error) {
		mu.Lock()
		defer mu.Unlock()

		vectors := make([][]float32, 0, len(texts))
		for start := 0; start < len(texts); start += batchSize {
			end := min(start+batchSize, len(texts))

			result, err := sentencePipeline.RunPipeline(texts[start:end])
			if err != nil {
				return nil, fmt.Errorf("failed to generate embedding: %w", err)
			}
			if len(result.Embeddings) != end-start {
				return nil, fmt.Errorf("expected %d embeddings, got %d", end-start, len(result.Embeddings))
			}
			vectors = append(vectors, result.Embeddings...)
		}
		return vectors, nil
	}

	embed := func(text string) ([]float32, error) {
		vectors, err := batch([]string{text})
		if err != nil {
			return nil, err
		}
		return vectors[0], nil
	}

	// An empty probe fixes the dimension and fails early on a broken model.
	probe, err := embed("")
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to probe embedding dimension: %w", err), session.Destroy())
	}

	return &Embedder{
		Model:      modelName,
		Dimension:  len(probe),
		Embed:      embed,
		EmbedBatch: batch,
		close:      session.Destroy,
	}, nil
}

// NewOpenAIEmbedder embeds through the OpenAI embeddings endpoint.
// Texts are sent in groups of batchSize with up to workers requests in flight,
// and every group is reordered by the response index.
func NewOpenAIEmbedder(apiKey string, baseURL string, modelName string, dimension int, batchSize int, workers int, timeout time.Duration) *Embedder {
	options := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(options...)

	if batchSize <= 0 {
		batchSize = DefaultEmbeddingBatchSize
	}
	if workers <= 0 {
		workers = 1
	}

	// embedGroup fills vectors[start:end], groups never overlap.
	embedGroup := func(texts []string, vectors [][]float32, start int, end int) error {
		// The endpoint rejects empty strings.
		input := make([]string, 0, end-start)
		for _, text := range texts[start:end] {
			if text == "" {
				text = " "
			}
			input = append(input, text)
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		response, err := client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Model: openai.EmbeddingModel(modelName),
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: input,
			},
		})
		if err != nil {
			return fmt.Errorf("failed to generate embeddings: %w", err)
		}

		for _, data := range response.Data {
			i := start + int(data.Index)
			if i < start || i >= end {
				return fmt.Errorf("embedding index %d out of range", data.Index)
			}
			vector := make([]float32, len(data.Embedding))
			for j, value := range data.Embedding {
				vector[j] = float32(value)
			}
			vectors[i] = vector
		}
		return nil
	}

	batch := func(texts []string) ([][]float32, error) {
		vectors := make([][]float32, len(texts))

		var wg sync.WaitGroup
		var mu sync.Mutex
		var errs []error
		slots := make(chan struct{}, workers)
		for start := 0; start < len(texts); start += batchSize {
			end := min(start+batchSize, len(texts))

			wg.Add(1)
			slots <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-slots }()
				if err := embedGroup(texts, vectors, start, end); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
		for i, vector := range vectors {
			if vector == nil {
				return nil, fmt.Errorf("no embedding generated for text %d", i)
			}
		}
		return vectors, nil
	}

	return &Embedder{
		Model:     modelName,
		Dimension: dimension,
		Embed: func(text string) ([]float32, error) {
			vectors, err := batch([]string{text})
			if err != nil {
				return nil, err
			}
			return vectors[0], nil
		},
		EmbedBatch: batch,
	}
}
