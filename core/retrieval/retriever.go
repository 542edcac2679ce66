package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/siherrmann/ragchat/core/index"
	"github.com/siherrmann/ragchat/core/pipeline"
	"github.com/siherrmann/ragchat/model"
)

// ContextSeparator separates the matches of a formatted context block.
const ContextSeparator = "\n\n---\n\n"

// Retriever composes an embedder and a vector index into context retrieval.
type Retriever struct {
	embedder *pipeline.Embedder
	index    index.Index
	config   model.RetrieveConfig
	log      *slog.Logger
}

// NewRetriever creates a new retriever
func NewRetriever(embedder *pipeline.Embedder, idx index.Index, config model.RetrieveConfig, logger *slog.Logger) *Retriever {
	if config.TopK <= 0 {
		config.TopK = model.DefaultRetrieveConfig().TopK
	}
	return &Retriever{
		embedder: embedder,
		index:    idx,
		config:   config,
		log:      logger,
	}
}

// Config returns the retrieval configuration in use.
func (r *Retriever) Config() model.RetrieveConfig {
	return r.config
}

// Retrieve returns the formatted context for query from the k nearest chunks.
// k <= 0 uses the configured top k.
//
// Retrieve never fails. A blank query returns immediately without embedding,
// an empty index, missing matches and embedding or index failures each
// yield a no-information context with their own status.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) *model.RetrievedContext {
	if strings.TrimSpace(query) == "" {
		return model.NewNoInformationContext(model.ContextEmptyQuery)
	}
	if k <= 0 {
		k = r.config.TopK
	}

	count, err := r.index.Count(ctx)
	if err != nil {
		r.log.Error("Error counting indexed chunks", slog.String("error", err.Error()))
		return model.NewNoInformationContext(model.ContextUnavailable)
	}
	if count == 0 {
		r.log.Debug("No chunks indexed")
		return model.NewNoInformationContext(model.ContextEmptyIndex)
	}

	vector, err := r.embedder.Embed(query)
	if err != nil {
		r.log.Error("Error embedding query", slog.String("error", err.Error()))
		return model.NewNoInformationContext(model.ContextUnavailable)
	}

	results, err := r.index.Query(ctx, vector, k)
	if err != nil {
		r.log.Error("Error querying index", slog.String("error", err.Error()))
		return model.NewNoInformationContext(model.ContextUnavailable)
	}

	results = r.filter(results)
	if len(results) == 0 {
		return model.NewNoInformationContext(model.ContextNoMatch)
	}

	r.log.Debug("Retrieved context", slog.Int("matches", len(results)), slog.Float64("best_distance", results[0].Distance))

	return &model.RetrievedContext{
		Status:  model.ContextFound,
		Text:    FormatContext(results),
		Results: results,
	}
}

// filter drops matches farther than the configured max distance.
func (r *Retriever) filter(results []*model.RetrievalResult) []*model.RetrievalResult {
	if r.config.MaxDistance <= 0 {
		return results
	}

	filtered := make([]*model.RetrievalResult, 0, len(results))
	for _, result := range results {
		if result.Distance <= r.config.MaxDistance {
			filtered = append(filtered, result)
		}
	}
	return filtered
}

// FormatContext renders the matches in ranked order as "From <source>:\n<text>" blocks.
func FormatContext(results []*model.RetrievalResult) string {
	blocks := make([]string, 0, len(results))
	for _, result := range results {
		source := result.Source
		if source == "" {
			source = model.UnknownSource
		}
		blocks = append(blocks, fmt.Sprintf("From %s:\n%s", source, result.Content))
	}
	return strings.Join(blocks, ContextSeparator)
}
