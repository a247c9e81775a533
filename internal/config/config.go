package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"unirag/internal/apperr"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	OpenAI      OpenAIConfig      `yaml:"openai"`
	RAG         RAGConfig         `yaml:"rag"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	UploadDir   string            `yaml:"upload_dir"`
}

type ServerConfig struct {
	Port            int `yaml:"port"`
	ShutdownTimeout int `yaml:"shutdown_timeout"` // seconds
}

type DatabaseConfig struct {
	DSN   string `yaml:"dsn"`
	Debug bool   `yaml:"debug"`
}

type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	EmbeddingModel string `yaml:"embedding_model"`
	LLMModel       string `yaml:"llm_model"`
	Timeout        int    `yaml:"timeout"` // seconds, per provider call
}

type RAGConfig struct {
	ChunkSize           int `yaml:"chunk_size"`    // tokens
	ChunkOverlap        int `yaml:"chunk_overlap"` // tokens
	TopK                int `yaml:"top_k"`
	EmbeddingDimensions int `yaml:"embedding_dimensions"`
	EmbeddingBatchSize  int `yaml:"embedding_batch_size"`
	ContextBudget       int `yaml:"context_budget"` // tokens of retrieved context per prompt
}

type VectorStoreConfig struct {
	// Backend selects where vectors live: "postgres" (pgvector, shared with
	// the relational store) or "local" (chromem, persisted under Path).
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// Vector store backends.
const (
	BackendPostgres = "postgres"
	BackendLocal    = "local"
)

const (
	defaultPort            = 8080
	defaultShutdownTimeout = 30
	defaultTimeout         = 60
	defaultChunkSize       = 800
	defaultChunkOverlap    = 100
	defaultTopK            = 5
	defaultDimensions      = 1536
	defaultBatchSize       = 100
	defaultContextBudget   = 3000
)

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.OpenAI.Timeout == 0 {
		c.OpenAI.Timeout = defaultTimeout
	}
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = defaultChunkSize
	}
	if c.RAG.ChunkOverlap == 0 {
		c.RAG.ChunkOverlap = defaultChunkOverlap
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = defaultTopK
	}
	if c.RAG.EmbeddingDimensions == 0 {
		c.RAG.EmbeddingDimensions = defaultDimensions
	}
	if c.RAG.EmbeddingBatchSize == 0 {
		c.RAG.EmbeddingBatchSize = defaultBatchSize
	}
	if c.RAG.ContextBudget == 0 {
		c.RAG.ContextBudget = defaultContextBudget
	}
	if c.VectorStore.Backend == "" {
		c.VectorStore.Backend = BackendPostgres
	}
	if c.UploadDir == "" {
		c.UploadDir = "./uploads"
	}
}

// Validate rejects configurations the pipeline cannot run with. Every failure
// is an InvalidConfig.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return apperr.New(apperr.InvalidConfig, "database.dsn is required")
	}
	if c.OpenAI.APIKey == "" {
		return apperr.New(apperr.InvalidConfig, "openai.api_key is required")
	}
	if c.OpenAI.EmbeddingModel == "" {
		return apperr.New(apperr.InvalidConfig, "openai.embedding_model is required")
	}
	if c.OpenAI.LLMModel == "" {
		return apperr.New(apperr.InvalidConfig, "openai.llm_model is required")
	}
	if c.RAG.ChunkSize <= 0 {
		return apperr.Newf(apperr.InvalidConfig, "rag.chunk_size must be positive, got %d", c.RAG.ChunkSize)
	}
	if c.RAG.ChunkOverlap < 0 {
		return apperr.Newf(apperr.InvalidConfig, "rag.chunk_overlap must not be negative, got %d", c.RAG.ChunkOverlap)
	}
	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return apperr.Newf(apperr.InvalidConfig,
			"rag.chunk_overlap (%d) must be strictly less than rag.chunk_size (%d)",
			c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}
	if c.RAG.EmbeddingDimensions <= 0 {
		return apperr.Newf(apperr.InvalidConfig, "rag.embedding_dimensions must be positive, got %d", c.RAG.EmbeddingDimensions)
	}
	if c.RAG.TopK <= 0 {
		return apperr.Newf(apperr.InvalidConfig, "rag.top_k must be positive, got %d", c.RAG.TopK)
	}
	switch c.VectorStore.Backend {
	case BackendPostgres:
	case BackendLocal:
		if c.VectorStore.Path == "" {
			return apperr.New(apperr.InvalidConfig, "vector_store.path is required for the local backend")
		}
	default:
		return apperr.Newf(apperr.InvalidConfig, "vector_store.backend must be postgres or local, got %q", c.VectorStore.Backend)
	}
	return nil
}

// ProviderTimeout is the bounded timeout applied to every external model call.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.OpenAI.Timeout) * time.Second
}
