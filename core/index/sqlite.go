package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
	"github.com/siherrmann/ragchat/helper"
	"github.com/siherrmann/ragchat/model"
)

const sqliteMetric = "cosine"

// SQLiteIndex persists vectors in a SQLite file inside the persist directory
// and ranks them in memory on query.
// The metric and dimension are pinned in a meta table on creation.
type SQLiteIndex struct {
	db        *sql.DB
	path      string
	dimension int
}

// NewSQLiteIndex opens or creates the index file <directory>/<collection>.db.
// Opening an existing file created with another dimension or metric fails.
func NewSQLiteIndex(directory string, collection string, dimension int) (*SQLiteIndex, error) {
	if err := os.MkdirAll(directory, 0750); err != nil {
		return nil, helper.NewError("create persist directory", err)
	}

	path := filepath.Join(directory, collection+".db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, helper.NewError("open sqlite index", err)
	}
	// A single connection keeps writes serialized.
	db.SetMaxOpenConns(1)

	s := &SQLiteIndex{
		db:        db,
		path:      path,
		dimension: dimension,
	}

	if err := s.setupTables(); err != nil {
		db.Close()
		return nil, helper.NewError("setup sqlite index", err)
	}

	if err := s.checkMeta(); err != nil {
		db.Close()
		return nil, helper.NewError("check sqlite index", err)
	}

	return s, nil
}

// Path returns the location of the index file.
func (s *SQLiteIndex) Path() string {
	return s.path
}

func (s *SQLiteIndex) setupTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS vectors (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			source TEXT NOT NULL,
			chunk_index INTEGER NOT NULL DEFAULT 0,
			metadata TEXT NOT NULL DEFAULT '{}',
			embedding TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`INSERT OR IGNORE INTO meta (key, value) VALUES ('metric', '` + sqliteMetric + `')`,
		`INSERT OR IGNORE INTO meta (key, value) VALUES ('dimension', '` + strconv.Itoa(s.dimension) + `')`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %s, error: %w", query, err)
		}
	}

	return nil
}

func (s *SQLiteIndex) checkMeta() error {
	var metric, dimension string
	if err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'metric'`).Scan(&metric); err != nil {
		return fmt.Errorf("failed to read metric: %w", err)
	}
	if metric != sqliteMetric {
		return fmt.Errorf("index uses metric %s, expected %s", metric, sqliteMetric)
	}

	if err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'dimension'`).Scan(&dimension); err != nil {
		return fmt.Errorf("failed to read dimension: %w", err)
	}
	if dimension != strconv.Itoa(s.dimension) {
		return fmt.Errorf("%w: index has dimension %s, expected %d", model.ErrDimensionMismatch, dimension, s.dimension)
	}

	return nil
}

func (s *SQLiteIndex) Upsert(ctx context.Context, chunks []*model.Chunk, vectors [][]float32) error {
	if err := ValidateUpsert(chunks, vectors, s.dimension); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vectors (id, content, source, chunk_index, metadata, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			source = excluded.source,
			chunk_index = excluded.chunk_index,
			metadata = excluded.metadata,
			embedding = excluded.embedding,
			created_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return helper.NewError("prepare upsert", err)
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		embeddingJSON, err := json.Marshal(vectors[i])
		if err != nil {
			return helper.NewError("marshal embedding", err)
		}
		metadataJSON, err := json.Marshal(chunk.IndexMetadata())
		if err != nil {
			return helper.NewError("marshal metadata", err)
		}

		_, err = stmt.ExecContext(ctx, chunk.ID, chunk.Content, chunk.Source, chunk.ChunkIndex, string(metadataJSON), string(embeddingJSON))
		if err != nil {
			return helper.NewError("upsert vector", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return helper.NewError("commit upsert", err)
	}

	return nil
}

func (s *SQLiteIndex) Query(ctx context.Context, vector []float32, k int) ([]*model.RetrievalResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, content, metadata, embedding FROM vectors`)
	if err != nil {
		return nil, helper.NewError("query vectors", err)
	}
	defer rows.Close()

	var entries []*model.IndexedVector
	for rows.Next() {
		entry := &model.IndexedVector{}
		var embeddingJSON string
		if err := rows.Scan(&entry.ID, &entry.Content, &entry.Metadata, &embeddingJSON); err != nil {
			return nil, helper.NewError("scan", err)
		}
		if err := json.Unmarshal([]byte(embeddingJSON), &entry.Embedding); err != nil {
			return nil, helper.NewError("unmarshal embedding", fmt.Errorf("chunk %s: %w", entry.ID, err))
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows error", err)
	}

	if len(entries) == 0 {
		return []*model.RetrievalResult{}, nil
	}
	if err := ValidateQuery(vector, s.dimension); err != nil {
		return nil, err
	}

	return rank(entries, vector, k), nil
}

func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vectors`).Scan(&count); err != nil {
		return 0, helper.NewError("count vectors", err)
	}
	return count, nil
}

func (s *SQLiteIndex) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM vectors`); err != nil {
		return helper.NewError("clear vectors", err)
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}
