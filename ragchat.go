package ragchat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/siherrmann/ragchat/core/answer"
	"github.com/siherrmann/ragchat/core/guardrail"
	"github.com/siherrmann/ragchat/core/index"
	"github.com/siherrmann/ragchat/core/llm"
	"github.com/siherrmann/ragchat/core/pipeline"
	"github.com/siherrmann/ragchat/core/retrieval"
	"github.com/siherrmann/ragchat/core/session"
	"github.com/siherrmann/ragchat/database"
	"github.com/siherrmann/ragchat/helper"
	"github.com/siherrmann/ragchat/model"
	loadSql "github.com/siherrmann/ragchat/sql"
)

var _ index.Index = (*database.ChunksDBHandler)(nil)

// Chatbot wires ingestion, retrieval, generation and the response checks
// into the four entry points of the chat: ingest, ask, reset and clear.
type Chatbot struct {
	Config    *helper.Configuration
	Index     index.Index
	Pipeline  *pipeline.Pipeline
	Retriever *retrieval.Retriever
	Generator *answer.Generator
	Rails     *guardrail.Rails
	// Serializes index writes
	mu  sync.Mutex
	log *slog.Logger
}

// NewChatbot creates a chatbot from already constructed collaborators.
// The index must have been created with the embedder's dimension.
func NewChatbot(config *helper.Configuration, idx index.Index, embedder *pipeline.Embedder, complete llm.CompleteFunc, logger *slog.Logger) (*Chatbot, error) {
	if config == nil {
		config = helper.DefaultConfiguration()
	}
	if idx == nil {
		return nil, helper.NewError("create chatbot", fmt.Errorf("index is nil"))
	}
	if embedder == nil {
		return nil, helper.NewError("create chatbot", fmt.Errorf("embedder is nil"))
	}
	if complete == nil {
		return nil, helper.NewError("create chatbot", fmt.Errorf("completer is nil"))
	}
	if logger == nil {
		logger = helper.NewLogger(slog.LevelInfo)
	}

	chunker := pipeline.CharacterChunker(config.Ingestion.ChunkSize, config.Ingestion.ChunkOverlap, config.Ingestion.Separator)
	ingestor := pipeline.NewIngestor(chunker, logger)
	retriever := retrieval.NewRetriever(embedder, idx, model.RetrieveConfig{
		TopK:        config.Retrieval.TopK,
		MaxDistance: config.Retrieval.MaxDistance,
	}, logger)
	generator := answer.NewGenerator(complete, logger)

	return &Chatbot{
		Config:    config,
		Index:     idx,
		Pipeline:  pipeline.NewPipeline(ingestor, embedder),
		Retriever: retriever,
		Generator: generator,
		Rails:     guardrail.NewRails(retriever, generator, config.Rails, logger),
		log:       logger,
	}, nil
}

// NewChatbotFromConfiguration builds the embedder, index and chat model named in config.
// A missing API key or an invalid configuration is returned before anything is created.
func NewChatbotFromConfiguration(ctx context.Context, config *helper.Configuration, logger *slog.Logger) (*Chatbot, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = helper.NewLogger(slog.LevelInfo)
	}

	complete, err := llm.NewOpenAICompleter(config.LLM)
	if err != nil {
		return nil, helper.NewError("create completer", err)
	}

	embedder, err := NewEmbedderFromConfiguration(config)
	if err != nil {
		return nil, helper.NewError("create embedder", err)
	}

	idx, err := NewIndexFromConfiguration(ctx, config, embedder.Dimension, logger)
	if err != nil {
		return nil, errors.Join(helper.NewError("create index", err), embedder.Close())
	}

	logger.Info("Initialized chatbot",
		slog.String("index", config.Index.Type),
		slog.String("embedder", embedder.Model),
		slog.Int("dimension", embedder.Dimension),
		slog.String("model", config.LLM.Model),
	)

	return NewChatbot(config, idx, embedder, complete, logger)
}

// NewEmbedderFromConfiguration creates the configured embedder.
func NewEmbedderFromConfiguration(config *helper.Configuration) (*pipeline.Embedder, error) {
	switch config.Embedder.Type {
	case helper.EmbedderTypeMiniLM:
		return pipeline.NewHugotEmbedder(config.Embedder.Model, config.Embedder.OnnxFile, config.Embedder.BatchSize)
	case helper.EmbedderTypeOpenAI:
		timeout := time.Duration(config.LLM.TimeoutSeconds) * time.Second
		return pipeline.NewOpenAIEmbedder(config.LLM.APIKey, config.LLM.BaseURL, config.Embedder.Model, config.Embedder.Dimension, config.Embedder.BatchSize, config.Embedder.Workers, timeout), nil
	default:
		return nil, fmt.Errorf("unsupported embedder type: %s", config.Embedder.Type)
	}
}

// NewIndexFromConfiguration opens the configured vector index for vectors of dimension.
// The pgvector index reads its connection from the DB_* environment variables.
func NewIndexFromConfiguration(ctx context.Context, config *helper.Configuration, dimension int, logger *slog.Logger) (index.Index, error) {
	switch config.Index.Type {
	case helper.IndexTypeMemory:
		return index.NewMemoryIndex(dimension), nil
	case helper.IndexTypeSQLite:
		sqlite, err := index.NewSQLiteIndex(config.Index.PersistDirectory, config.Index.Collection, dimension)
		if err != nil {
			return nil, err
		}
		return sqlite, nil
	case helper.IndexTypePgvector:
		dbConfig, err := helper.NewDatabaseConfiguration()
		if err != nil {
			return nil, err
		}
		db, err := helper.NewDatabase("ragchat", dbConfig, logger)
		if err != nil {
			return nil, err
		}
		if err := loadSql.Init(db.Instance); err != nil {
			return nil, errors.Join(helper.NewError("initialize database extensions", err), db.Close())
		}

		chunks, err := database.NewChunksDBHandler(db, config.Index.Collection, dimension, false)
		if err != nil {
			return nil, errors.Join(err, db.Close())
		}
		if err := chunks.EnsureIndexType(ctx, config.Index.VectorIndex, nil); err != nil {
			return nil, errors.Join(err, chunks.Close())
		}
		return chunks, nil
	default:
		return nil, fmt.Errorf("unsupported index type: %s", config.Index.Type)
	}
}

// IngestAndIndex chunks, embeds and stores every document in dir.
// An empty dir uses the configured documents directory.
// Chunk ids restart at doc_0 on every run, so a run that yields chunks replaces
// the whole index. A run without chunks leaves the index untouched.
func (c *Chatbot) IngestAndIndex(ctx context.Context, dir string) (*model.IngestionReport, error) {
	if dir == "" {
		dir = c.Config.Ingestion.DocsDirectory
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	chunks, vectors, report, err := c.Pipeline.Process(dir)
	if err != nil {
		return report, helper.NewError("process documents", err)
	}
	if len(chunks) == 0 {
		c.log.Warn("No documents found", slog.String("directory", dir))
		return report, nil
	}

	if err := c.Index.Clear(ctx); err != nil {
		return report, helper.NewError("clear previous chunks", err)
	}
	if err := c.Index.Upsert(ctx, chunks, vectors); err != nil {
		return report, helper.NewError("upsert chunks", err)
	}

	c.log.Info("Indexed documents", slog.String("run_id", report.RunID.String()), slog.Int("chunks", len(chunks)))

	return report, nil
}

// Ask answers query from the indexed documents and records the turn in sess.
// It never fails: retrieval, generation and check failures are turned into messages.
// sess may be nil.
func (c *Chatbot) Ask(ctx context.Context, sess *session.Session, query string) string {
	response, decision := c.Rails.Generate(ctx, query)
	if !decision.Allowed {
		c.log.Info("Response replaced", slog.String("check", decision.Check))
	}

	if sess != nil {
		sess.Append(model.RoleUser, query)
		sess.Append(model.RoleAssistant, response)
	}

	return response
}

// NewSession starts a new conversation.
func (c *Chatbot) NewSession() *session.Session {
	return session.New()
}

// ResetSession clears the history and documents flag of sess.
func (c *Chatbot) ResetSession(sess *session.Session) {
	if sess != nil {
		sess.Reset()
	}
}

// ClearIndex removes all indexed chunks.
func (c *Chatbot) ClearIndex(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.Index.Clear(ctx); err != nil {
		return helper.NewError("clear index", err)
	}
	c.log.Info("Cleared index")
	return nil
}

// Count returns the number of indexed chunks.
func (c *Chatbot) Count(ctx context.Context) (int, error) {
	return c.Index.Count(ctx)
}

// Close releases the index and the embedder.
func (c *Chatbot) Close() error {
	return errors.Join(c.Index.Close(), c.Pipeline.Embedder.Close())
}
