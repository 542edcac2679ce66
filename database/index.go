package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/siherrmann/ragchat/helper"
)

const (
	VectorIndexNone    = ""
	VectorIndexExact   = "exact"
	VectorIndexHNSW    = "hnsw"
	VectorIndexIVFFlat = "ivfflat"
	// An idx_chunks_embedding built with another access method
	VectorIndexOther = "other"
)

// ChangeIndexType swaps the approximate nearest-neighbor index on the embeddings.
// The operator class is always vector_cosine_ops, only the algorithm changes.
// indexType: "hnsw", "ivfflat", or "exact" or "" for exact search without an index
// params:
//   - For HNSW: "m" (int, default 16), "ef_construction" (int, default 64)
//   - For IVFFlat: "lists" (int, default 100)
func (h *ChunksDBHandler) ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	var createIndexSQL string
	switch indexType {
	case VectorIndexNone, VectorIndexExact:
	case VectorIndexHNSW:
		m := intParam(params, "m", 16)
		efConstruction := intParam(params, "ef_construction", 64)
		createIndexSQL = fmt.Sprintf(
			`CREATE INDEX idx_chunks_embedding ON chunks USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d);`,
			m, efConstruction,
		)
	case VectorIndexIVFFlat:
		lists := intParam(params, "lists", 100)
		createIndexSQL = fmt.Sprintf(
			`CREATE INDEX idx_chunks_embedding ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d);`,
			lists,
		)
	default:
		return helper.NewError("change index type", fmt.Errorf("unsupported index type: %s (use 'hnsw', 'ivfflat' or 'exact')", indexType))
	}

	_, err := h.db.Instance.ExecContext(ctx, `DROP INDEX IF EXISTS idx_chunks_embedding;`)
	if err != nil {
		return helper.NewError("drop index", err)
	}

	if createIndexSQL == "" {
		h.db.Logger.Info("Dropped vector index, using exact search")
		return nil
	}

	_, err = h.db.Instance.ExecContext(ctx, createIndexSQL)
	if err != nil {
		return helper.NewError("create index", err)
	}

	h.db.Logger.Info("Created vector index", slog.String("type", indexType), slog.Any("params", params))

	return nil
}

// CurrentIndexType returns the access method of idx_chunks_embedding,
// or VectorIndexNone if the index does not exist.
func (h *ChunksDBHandler) CurrentIndexType(ctx context.Context) (string, error) {
	var definition string
	err := h.db.Instance.QueryRowContext(ctx,
		`SELECT indexdef FROM pg_indexes WHERE tablename = 'chunks' AND indexname = 'idx_chunks_embedding';`,
	).Scan(&definition)
	if errors.Is(err, sql.ErrNoRows) {
		return VectorIndexNone, nil
	} else if err != nil {
		return "", helper.NewError("select index definition", err)
	}

	definition = strings.ToLower(definition)
	switch {
	case strings.Contains(definition, "using hnsw"):
		return VectorIndexHNSW, nil
	case strings.Contains(definition, "using ivfflat"):
		return VectorIndexIVFFlat, nil
	default:
		return VectorIndexOther, nil
	}
}

// EnsureIndexType changes the vector index only if it is not of indexType already.
// An empty indexType keeps whatever index exists.
func (h *ChunksDBHandler) EnsureIndexType(ctx context.Context, indexType string, params map[string]interface{}) error {
	if indexType == VectorIndexNone {
		return nil
	}

	current, err := h.CurrentIndexType(ctx)
	if err != nil {
		return err
	}
	if current == indexType || (indexType == VectorIndexExact && current == VectorIndexNone) {
		h.db.Logger.Debug("Vector index unchanged", slog.String("type", indexType))
		return nil
	}

	if indexType == VectorIndexIVFFlat {
		count, err := h.Count(ctx)
		if err != nil {
			return err
		}
		// ivfflat computes its list centroids from the rows present at build time.
		if count == 0 {
			h.db.Logger.Warn("Building ivfflat index on an empty table, rebuild it after ingesting for good recall")
		}
	}

	return h.ChangeIndexType(ctx, indexType, params)
}

func intParam(params map[string]interface{}, key string, fallback int) int {
	if value, ok := params[key].(int); ok && value > 0 {
		return value
	}
	return fallback
}
