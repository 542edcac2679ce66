package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/ragchat/core/index"
	"github.com/siherrmann/ragchat/helper"
	"github.com/siherrmann/ragchat/model"
	loadSql "github.com/siherrmann/ragchat/sql"
)

// ChunksDBHandlerFunctions defines the interface for Chunks database operations.
type ChunksDBHandlerFunctions interface {
	index.Index
	SelectChunk(ctx context.Context, id string) (*model.Chunk, error)
	ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error
}

// ChunksDBHandler stores chunk vectors in the pgvector 'chunks' table
// and ranks them by cosine distance.
type ChunksDBHandler struct {
	db        *helper.Database
	dimension int
}

// NewChunksDBHandler creates a new chunks database handler.
// It loads the chunk SQL functions and creates the table for embeddingDim.
// If force is true, it will reload the SQL functions even if they already exist.
func NewChunksDBHandler(db *helper.Database, collection string, embeddingDim int, force bool) (*ChunksDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if embeddingDim <= 0 {
		return nil, helper.NewError("embedding dimension validation", fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim))
	}

	chunksDbHandler := &ChunksDBHandler{
		db:        db,
		dimension: embeddingDim,
	}

	err := loadSql.LoadChunksSql(chunksDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load chunks sql", err)
	}

	err = chunksDbHandler.CreateTable(collection)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ChunksDBHandler", slog.Int("dimension", embeddingDim))

	return chunksDbHandler, nil
}

// CreateTable creates the 'chunks' table in the database.
// If the table already exists with another dimension it returns an error.
func (h *ChunksDBHandler) CreateTable(collection string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_chunks($1, $2);`, h.dimension, collection)
	if err != nil {
		return helper.NewError("init chunks", err)
	}

	h.db.Logger.Info("Checked/created table chunks")

	return nil
}

// Upsert inserts or overwrites the chunks with their vectors in one transaction.
func (h *ChunksDBHandler) Upsert(ctx context.Context, chunks []*model.Chunk, vectors [][]float32) error {
	if err := index.ValidateUpsert(chunks, vectors, h.dimension); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	defer tx.Rollback()

	for i, chunk := range chunks {
		row := tx.QueryRowContext(
			ctx,
			`SELECT * FROM upsert_chunk($1, $2, $3, $4, $5, $6)`,
			chunk.ID,
			chunk.Content,
			chunk.Source,
			chunk.ChunkIndex,
			pgvector.NewVector(vectors[i]),
			chunk.IndexMetadata(),
		)

		var metadata model.Metadata
		err := row.Scan(
			&chunk.ID,
			&chunk.Content,
			&chunk.Source,
			&chunk.ChunkIndex,
			&metadata,
			&chunk.CreatedAt,
		)
		if err != nil {
			return helper.NewError("scan", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return helper.NewError("commit", err)
	}

	return nil
}

// Query returns the k nearest chunks by cosine distance.
func (h *ChunksDBHandler) Query(ctx context.Context, vector []float32, k int) ([]*model.RetrievalResult, error) {
	results := []*model.RetrievalResult{}
	if k <= 0 {
		return results, nil
	}

	count, err := h.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return results, nil
	}
	if err := index.ValidateQuery(vector, h.dimension); err != nil {
		return nil, err
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_chunks_by_distance($1, $2)`,
		pgvector.NewVector(vector),
		min(k, count),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	for rows.Next() {
		result := &model.RetrievalResult{}
		err := rows.Scan(
			&result.ChunkID,
			&result.Content,
			&result.Source,
			&result.Metadata,
			&result.Distance,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		results = append(results, result)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return results, nil
}

// Count returns the number of stored chunks.
func (h *ChunksDBHandler) Count(ctx context.Context) (int, error) {
	var count int
	err := h.db.Instance.QueryRowContext(ctx, `SELECT count_chunks()`).Scan(&count)
	if err != nil {
		return 0, helper.NewError("count", err)
	}
	return count, nil
}

// Clear deletes all chunks.
func (h *ChunksDBHandler) Clear(ctx context.Context) error {
	var deleted int64
	err := h.db.Instance.QueryRowContext(ctx, `SELECT delete_all_chunks()`).Scan(&deleted)
	if err != nil {
		return helper.NewError("delete all chunks", err)
	}

	h.db.Logger.Info("Cleared chunks", slog.Int64("deleted", deleted))

	return nil
}

// SelectChunk retrieves a chunk by ID
func (h *ChunksDBHandler) SelectChunk(ctx context.Context, id string) (*model.Chunk, error) {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_chunk($1)`,
		id,
	)

	chunk := &model.Chunk{}
	err := row.Scan(
		&chunk.ID,
		&chunk.Content,
		&chunk.Source,
		&chunk.ChunkIndex,
		&chunk.Metadata,
		&chunk.CreatedAt,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return chunk, nil
}

// Close closes the underlying database connection.
func (h *ChunksDBHandler) Close() error {
	return h.db.Close()
}
