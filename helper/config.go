package helper

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned when the LLM credential is not configured.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY not found in environment variables")

const (
	IndexTypeMemory   = "memory"
	IndexTypeSQLite   = "sqlite"
	IndexTypePgvector = "pgvector"

	EmbedderTypeMiniLM = "minilm"
	EmbedderTypeOpenAI = "openai"
)

// IngestionConfiguration configures document loading and chunking.
type IngestionConfiguration struct {
	DocsDirectory string `yaml:"docs_directory"`
	ChunkSize     int    `yaml:"chunk_size"`
	ChunkOverlap  int    `yaml:"chunk_overlap"`
	Separator     string `yaml:"separator"`
}

// IndexConfiguration selects the vector index backend.
type IndexConfiguration struct {
	Type             string `yaml:"type"`
	Collection       string `yaml:"collection"`
	PersistDirectory string `yaml:"persist_directory"`
	// pgvector only: "hnsw", "ivfflat", "exact" to drop the index,
	// or empty to keep the existing one
	VectorIndex string `yaml:"vector_index"`
}

// EmbedderConfiguration selects the embedding model.
type EmbedderConfiguration struct {
	Type      string `yaml:"type"`
	Model     string `yaml:"model"`
	OnnxFile  string `yaml:"onnx_file"`
	Dimension int    `yaml:"dimension"`
	Workers   int    `yaml:"workers"`
	BatchSize int    `yaml:"batch_size"`
}

// LLMConfiguration configures the chat completion model.
type LLMConfiguration struct {
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int64   `yaml:"max_tokens"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	BaseURL        string  `yaml:"base_url"`
	APIKeyEnv      string  `yaml:"api_key_env"`
	APIKey         string  `yaml:"-"`
}

// RetrievalConfiguration configures context retrieval.
type RetrievalConfiguration struct {
	TopK        int     `yaml:"top_k"`
	MaxDistance float64 `yaml:"max_distance"`
}

// RailsConfiguration configures the response checks.
type RailsConfiguration struct {
	BlockedTerms      []string `yaml:"blocked_terms"`
	RefusalMessage    string   `yaml:"refusal_message"`
	MaxResponseLength int      `yaml:"max_response_length"`
}

// ServerConfiguration configures the HTTP surface.
type ServerConfiguration struct {
	Address       string `yaml:"address"`
	MaxUploadSize int64  `yaml:"max_upload_size"`
	MaxSessions   int    `yaml:"max_sessions"`
	// Parsed from duration strings like "30m"
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
}

// Configuration is the root application configuration.
type Configuration struct {
	Ingestion IngestionConfiguration `yaml:"ingestion"`
	Index     IndexConfiguration     `yaml:"index"`
	Embedder  EmbedderConfiguration  `yaml:"embedder"`
	LLM       LLMConfiguration       `yaml:"llm"`
	Retrieval RetrievalConfiguration `yaml:"retrieval"`
	Rails     RailsConfiguration     `yaml:"rails"`
	Server    ServerConfiguration    `yaml:"server"`
}

// DefaultBlockedTerms is the denylist used when none is configured.
func DefaultBlockedTerms() []string {
	return []string{"proprietary", "proprietary1", "proprietary2"}
}

// DefaultConfiguration returns the configuration used without a config file.
func DefaultConfiguration() *Configuration {
	config := newConfiguration()
	applyConfigurationDefaults(config)
	return config
}

// newConfiguration presets the settings for which zero is a valid value,
// so a file can still set them to zero.
func newConfiguration() *Configuration {
	return &Configuration{
		Ingestion: IngestionConfiguration{ChunkOverlap: 20},
		LLM:       LLMConfiguration{Temperature: 0.7},
	}
}

// LoadConfiguration reads the YAML configuration at path and applies
// defaults and environment overrides. A missing file yields the defaults.
// The API key is not validated here, see Validate.
func LoadConfiguration(path string) (*Configuration, error) {
	_ = godotenv.Load()

	config := newConfiguration()
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, NewError("read configuration", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, NewError("parse configuration", err)
			}
		}
	}

	applyConfigurationDefaults(config)
	applyEnvironmentOverrides(config)

	return config, nil
}

// Validate checks the settings that must be present before serving.
func (c *Configuration) Validate() error {
	if c.LLM.APIKey == "" {
		return NewError("validate configuration", ErrMissingAPIKey)
	}

	switch c.Index.Type {
	case IndexTypeMemory, IndexTypeSQLite, IndexTypePgvector:
	default:
		return NewError("validate configuration", fmt.Errorf("unsupported index type: %s", c.Index.Type))
	}

	switch c.Embedder.Type {
	case EmbedderTypeMiniLM, EmbedderTypeOpenAI:
	default:
		return NewError("validate configuration", fmt.Errorf("unsupported embedder type: %s", c.Embedder.Type))
	}

	if c.Ingestion.ChunkOverlap >= c.Ingestion.ChunkSize {
		return NewError("validate configuration", fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", c.Ingestion.ChunkOverlap, c.Ingestion.ChunkSize))
	}

	return nil
}

func applyConfigurationDefaults(c *Configuration) {
	if c.Ingestion.DocsDirectory == "" {
		c.Ingestion.DocsDirectory = "docs"
	}
	if c.Ingestion.ChunkSize == 0 {
		c.Ingestion.ChunkSize = 1000
	}
	if c.Ingestion.Separator == "" {
		c.Ingestion.Separator = "\n"
	}

	if c.Index.Type == "" {
		c.Index.Type = IndexTypeMemory
	}
	if c.Index.Collection == "" {
		c.Index.Collection = "RAG_guardrails"
	}
	if c.Index.PersistDirectory == "" {
		c.Index.PersistDirectory = "index_db"
	}

	if c.Embedder.Type == "" {
		c.Embedder.Type = EmbedderTypeMiniLM
	}
	if c.Embedder.Model == "" {
		if c.Embedder.Type == EmbedderTypeOpenAI {
			c.Embedder.Model = "text-embedding-3-small"
		} else {
			c.Embedder.Model = "sentence-transformers/all-MiniLM-L6-v2"
		}
	}
	if c.Embedder.Dimension == 0 {
		if c.Embedder.Type == EmbedderTypeOpenAI {
			c.Embedder.Dimension = 1536
		} else {
			c.Embedder.Dimension = 384
		}
	}
	if c.Embedder.OnnxFile == "" && c.Embedder.Type == EmbedderTypeMiniLM {
		c.Embedder.OnnxFile = "onnx/model.onnx"
	}
	if c.Embedder.Workers == 0 {
		c.Embedder.Workers = 4
	}
	if c.Embedder.BatchSize == 0 {
		c.Embedder.BatchSize = 32
	}

	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 150
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 30
	}
	if c.LLM.APIKeyEnv == "" {
		c.LLM.APIKeyEnv = "OPENAI_API_KEY"
	}

	if c.Retrieval.TopK == 0 {
		c.Retrieval.TopK = 3
	}

	if c.Rails.BlockedTerms == nil {
		c.Rails.BlockedTerms = DefaultBlockedTerms()
	}
	if c.Rails.RefusalMessage == "" {
		c.Rails.RefusalMessage = "I'm sorry, I can't respond to that."
	}

	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.MaxUploadSize == 0 {
		c.Server.MaxUploadSize = 32 << 20
	}
	if c.Server.MaxSessions == 0 {
		c.Server.MaxSessions = 1000
	}
	if c.Server.SessionIdleTimeout == 0 {
		c.Server.SessionIdleTimeout = time.Hour
	}
}

func applyEnvironmentOverrides(c *Configuration) {
	c.LLM.APIKey = strings.TrimSpace(os.Getenv(c.LLM.APIKeyEnv))

	if v := os.Getenv("RAGCHAT_DOCS_DIR"); v != "" {
		c.Ingestion.DocsDirectory = v
	}
	if v := os.Getenv("RAGCHAT_INDEX_TYPE"); v != "" {
		c.Index.Type = v
	}
	if v := os.Getenv("RAGCHAT_PERSIST_DIR"); v != "" {
		c.Index.PersistDirectory = v
	}
}
