// Package config loads amanrag configuration from built-in defaults, the
// user config file, the project config file, a project .env file and
// AMANRAG_* environment variables, in increasing order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/amanrag/internal/chunk"
	"github.com/Aman-CERP/amanrag/internal/embed"
	amerrors "github.com/Aman-CERP/amanrag/internal/errors"
	"github.com/Aman-CERP/amanrag/internal/index"
	"github.com/Aman-CERP/amanrag/internal/logging"
	"github.com/Aman-CERP/amanrag/internal/search"
	"github.com/Aman-CERP/amanrag/internal/store"
)

// File names and prefixes
const (
	ProjectConfigFile    = ".amanrag.yaml"
	ProjectConfigFileAlt = ".amanrag.yml"
	DotEnvFile           = ".env"
	EnvPrefix            = "AMANRAG_"
	CurrentVersion       = 1
)

// Config is the complete amanrag configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Index      IndexConfig      `yaml:"index" json:"index" envPrefix:"INDEX_"`
	Search     SearchConfig     `yaml:"search" json:"search" envPrefix:"SEARCH_"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings" envPrefix:"EMBED_"`
	Rerank     RerankConfig     `yaml:"rerank" json:"rerank" envPrefix:"RERANK_"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging" envPrefix:"LOG_"`
}

// IndexConfig configures chunking, backends and where the index lives.
type IndexConfig struct {
	// Dir is the persisted index directory, relative to the project dir
	// unless absolute.
	Dir string `yaml:"dir" json:"dir" env:"DIR"`

	ChunkSize    int `yaml:"chunk_size" json:"chunk_size" env:"CHUNK_SIZE"`
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap" env:"CHUNK_OVERLAP"`

	// LexicalBackend is "bm25" (default) or "bleve".
	LexicalBackend string `yaml:"lexical_backend" json:"lexical_backend" env:"LEXICAL_BACKEND"`
	// VectorBackend is "flat" (default, exact) or "hnsw" (approximate).
	VectorBackend string `yaml:"vector_backend" json:"vector_backend" env:"VECTOR_BACKEND"`
	HNSWM         int    `yaml:"hnsw_m" json:"hnsw_m" env:"HNSW_M"`
	HNSWEfSearch  int    `yaml:"hnsw_ef_search" json:"hnsw_ef_search" env:"HNSW_EF_SEARCH"`

	// Concurrency bounds in-flight embedding batches; 0 picks a default.
	Concurrency int `yaml:"concurrency" json:"concurrency" env:"CONCURRENCY"`
}

// SearchConfig configures fusion and candidate pooling.
type SearchConfig struct {
	// FusionWeight is the lexical share of the hybrid score (0.0-1.0).
	FusionWeight float64 `yaml:"fusion_weight" json:"fusion_weight" env:"FUSION_WEIGHT"`
	DenseK       int     `yaml:"dense_k" json:"dense_k" env:"DENSE_K"`
	LexicalK     int     `yaml:"lexical_k" json:"lexical_k" env:"LEXICAL_K"`
	DefaultK     int     `yaml:"default_k" json:"default_k" env:"DEFAULT_K"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "static" (default, offline) or "ollama".
	Provider string `yaml:"provider" json:"provider" env:"PROVIDER"`
	Model    string `yaml:"model" json:"model" env:"MODEL"`
	// OllamaHost is the Ollama API endpoint.
	OllamaHost string `yaml:"ollama_host" json:"ollama_host" env:"OLLAMA_HOST"`
	// Dimensions of 0 uses the provider default (static) or detects it (ollama).
	Dimensions int           `yaml:"dimensions" json:"dimensions" env:"DIMENSIONS"`
	BatchSize  int           `yaml:"batch_size" json:"batch_size" env:"BATCH_SIZE"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout" env:"TIMEOUT"`
	// CacheSize is the query embedding LRU size; 0 disables it.
	CacheSize int `yaml:"cache_size" json:"cache_size" env:"CACHE_SIZE"`
}

// RerankConfig configures the reranker.
type RerankConfig struct {
	// Provider is "lexical" (default, offline) or "http" (cross-encoder server).
	Provider string        `yaml:"provider" json:"provider" env:"PROVIDER"`
	Model    string        `yaml:"model" json:"model" env:"MODEL"`
	Endpoint string        `yaml:"endpoint" json:"endpoint" env:"ENDPOINT"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout" env:"TIMEOUT"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level" env:"LEVEL"`
	// File is the log file; empty uses ~/.amanrag/logs/amanrag.log.
	File      string `yaml:"file" json:"file" env:"FILE"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxFiles  int    `yaml:"max_files" json:"max_files" env:"MAX_FILES"`
	Stderr    bool   `yaml:"stderr" json:"stderr" env:"STDERR"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Index: IndexConfig{
			Dir:            filepath.Join("data", "index"),
			ChunkSize:      chunk.DefaultChunkSize,
			ChunkOverlap:   chunk.DefaultChunkOverlap,
			LexicalBackend: string(store.LexicalBackendBM25),
			VectorBackend:  string(store.VectorBackendFlat),
			HNSWM:          16,
			HNSWEfSearch:   64,
		},
		Search: SearchConfig{
			FusionWeight: search.DefaultFusionWeight,
			DenseK:       search.DefaultDenseK,
			LexicalK:     search.DefaultLexicalK,
			DefaultK:     search.DefaultK,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   string(embed.ProviderStatic),
			Model:      "sentence-transformers/all-MiniLM-L6-v2",
			OllamaHost: embed.DefaultOllamaHost,
			BatchSize:  embed.DefaultBatchSize,
			Timeout:    embed.DefaultTimeout,
			CacheSize:  1000,
		},
		Rerank: RerankConfig{
			Provider: string(search.RerankerLexical),
			Model:    search.DefaultRerankerModel,
			Endpoint: search.DefaultRerankerEndpoint,
			Timeout:  search.DefaultRerankerTimeout,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: logging.DefaultMaxSizeMB,
			MaxFiles:  logging.DefaultMaxFiles,
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/amanrag/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/amanrag/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "amanrag", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "amanrag", "config.yaml")
	}
	return filepath.Join(home, ".config", "amanrag", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load loads configuration for the project in dir. Precedence, lowest first:
//  1. Defaults
//  2. User config (~/.config/amanrag/config.yaml)
//  3. Project config (.amanrag.yaml or .amanrag.yml in dir)
//  4. dir/.env (never overrides variables already set)
//  5. AMANRAG_* environment variables
//
// The result is validated.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if path := ProjectConfigPath(dir); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := loadDotEnv(dir); err != nil {
		return nil, err
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile returns the defaults overlaid with the single config file at
// path, without environment overrides.
func LoadFile(path string) (*Config, error) {
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ProjectConfigPath returns the project config file in dir (.yaml wins
// over .yml), or "" when there is none.
func ProjectConfigPath(dir string) string {
	for _, name := range []string{ProjectConfigFile, ProjectConfigFileAlt} {
		if path := filepath.Join(dir, name); fileExists(path) {
			return path
		}
	}
	return ""
}

// loadYAML decodes path over the current values, so keys absent from the
// file keep their earlier value and explicit zeros are honoured. Unknown
// keys are rejected.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return amerrors.ConfigError(fmt.Sprintf("failed to read config file %s", path), err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return amerrors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err).
			WithDetail("path", path)
	}
	return nil
}

// loadDotEnv exports dir/.env into the process environment without
// overriding variables that are already set.
func loadDotEnv(dir string) error {
	path := filepath.Join(dir, DotEnvFile)
	if !fileExists(path) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return amerrors.ConfigError(fmt.Sprintf("failed to load %s", path), err)
	}
	return nil
}

// applyEnvOverrides applies AMANRAG_* variables, e.g. AMANRAG_SEARCH_FUSION_WEIGHT,
// AMANRAG_EMBED_PROVIDER or AMANRAG_LOG_LEVEL. Unset variables leave values alone.
func (c *Config) applyEnvOverrides() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return amerrors.ConfigError("invalid "+EnvPrefix+"* environment variable", err)
	}
	return nil
}

// Validate validates the configuration and returns a config error if invalid.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Search.FusionWeight < 0 || c.Search.FusionWeight > 1 {
		add("search.fusion_weight must be between 0 and 1, got %v", c.Search.FusionWeight)
	}
	if c.Search.DenseK <= 0 {
		add("search.dense_k must be positive, got %d", c.Search.DenseK)
	}
	if c.Search.LexicalK <= 0 {
		add("search.lexical_k must be positive, got %d", c.Search.LexicalK)
	}
	if c.Search.DefaultK <= 0 {
		add("search.default_k must be positive, got %d", c.Search.DefaultK)
	}

	if c.Index.Dir == "" {
		add("index.dir must not be empty")
	}
	if c.Index.ChunkSize <= 0 {
		add("index.chunk_size must be positive, got %d", c.Index.ChunkSize)
	}
	if c.Index.ChunkOverlap < 0 || c.Index.ChunkOverlap >= c.Index.ChunkSize {
		add("index.chunk_overlap must be in [0, chunk_size), got %d", c.Index.ChunkOverlap)
	}
	if !slices.Contains([]string{string(store.LexicalBackendBM25), string(store.LexicalBackendBleve)}, strings.ToLower(c.Index.LexicalBackend)) {
		add("index.lexical_backend must be 'bm25' or 'bleve', got %q", c.Index.LexicalBackend)
	}
	if !slices.Contains([]string{string(store.VectorBackendFlat), string(store.VectorBackendHNSW)}, strings.ToLower(c.Index.VectorBackend)) {
		add("index.vector_backend must be 'flat' or 'hnsw', got %q", c.Index.VectorBackend)
	}
	if c.Index.Concurrency < 0 {
		add("index.concurrency must be non-negative, got %d", c.Index.Concurrency)
	}

	if !slices.Contains(embed.ValidProviders, strings.ToLower(c.Embeddings.Provider)) {
		add("embeddings.provider must be one of %s, got %q", strings.Join(embed.ValidProviders, ", "), c.Embeddings.Provider)
	}
	if c.Embeddings.Dimensions < 0 {
		add("embeddings.dimensions must be non-negative, got %d", c.Embeddings.Dimensions)
	}
	if c.Embeddings.BatchSize < embed.MinBatchSize || c.Embeddings.BatchSize > embed.MaxBatchSize {
		add("embeddings.batch_size must be between %d and %d, got %d", embed.MinBatchSize, embed.MaxBatchSize, c.Embeddings.BatchSize)
	}
	if c.Embeddings.CacheSize < 0 {
		add("embeddings.cache_size must be non-negative, got %d", c.Embeddings.CacheSize)
	}

	if !slices.Contains(search.ValidRerankers, strings.ToLower(c.Rerank.Provider)) {
		add("rerank.provider must be one of %s, got %q", strings.Join(search.ValidRerankers, ", "), c.Rerank.Provider)
	}

	if !logging.IsValidLevel(c.Logging.Level) {
		add("logging.level must be 'debug', 'info', 'warn', or 'error', got %q", c.Logging.Level)
	}

	if len(problems) > 0 {
		return amerrors.ConfigError("invalid configuration: "+strings.Join(problems, "; "), nil).
			WithSuggestion("fix the value in .amanrag.yaml or the matching " + EnvPrefix + "* variable")
	}
	return nil
}

// IndexDir resolves Index.Dir against projectDir.
func (c *Config) IndexDir(projectDir string) string {
	if filepath.IsAbs(c.Index.Dir) {
		return c.Index.Dir
	}
	return filepath.Join(projectDir, c.Index.Dir)
}

// EmbedConfig maps the embeddings section onto the embedder factory config.
func (c *Config) EmbedConfig() embed.Config {
	return embed.Config{
		Provider:   strings.ToLower(c.Embeddings.Provider),
		Model:      c.Embeddings.Model,
		Host:       c.Embeddings.OllamaHost,
		Dimensions: c.Embeddings.Dimensions,
		BatchSize:  c.Embeddings.BatchSize,
		Timeout:    c.Embeddings.Timeout,
		CacheSize:  c.Embeddings.CacheSize,
	}
}

// RerankerConfig maps the rerank section onto the reranker factory config.
func (c *Config) RerankerConfig() search.RerankerConfig {
	return search.RerankerConfig{
		Provider: strings.ToLower(c.Rerank.Provider),
		Model:    c.Rerank.Model,
		Endpoint: c.Rerank.Endpoint,
		Timeout:  c.Rerank.Timeout,
	}
}

// SearchConfig returns the retrieval parameters for the engine.
func (c *Config) SearchConfig() search.Config {
	return search.Config{
		FusionWeight: c.Search.FusionWeight,
		DenseK:       c.Search.DenseK,
		LexicalK:     c.Search.LexicalK,
		DefaultK:     c.Search.DefaultK,
	}
}

// IndexOptions returns the build/load options for the index.
func (c *Config) IndexOptions() index.Options {
	opts := index.DefaultOptions()
	opts.ChunkSize = c.Index.ChunkSize
	opts.ChunkOverlap = c.Index.ChunkOverlap
	opts.LexicalBackend = strings.ToLower(c.Index.LexicalBackend)
	opts.VectorBackend = strings.ToLower(c.Index.VectorBackend)
	opts.HNSWM = c.Index.HNSWM
	opts.HNSWEfSearch = c.Index.HNSWEfSearch
	opts.BatchSize = c.Embeddings.BatchSize
	if c.Index.Concurrency > 0 {
		opts.Concurrency = c.Index.Concurrency
	}
	opts.FusionWeight = c.Search.FusionWeight
	return opts
}

// LoggingConfig returns the logging setup; debug forces debug level and stderr.
func (c *Config) LoggingConfig(debug bool) logging.Config {
	cfg := logging.Config{
		Level:         c.Logging.Level,
		FilePath:      c.Logging.File,
		MaxSizeMB:     c.Logging.MaxSizeMB,
		MaxFiles:      c.Logging.MaxFiles,
		WriteToStderr: c.Logging.Stderr,
	}
	if cfg.FilePath == "" {
		cfg.FilePath = logging.DefaultLogPath()
	}
	if debug {
		cfg.Level = "debug"
		cfg.WriteToStderr = true
	}
	return cfg
}

// FindProjectRoot walks up from startDir to the first directory holding a
// project config file or a .git directory. If none is found, it returns
// the absolute startDir.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	for dir := absDir; ; {
		if ProjectConfigPath(dir) != "" || dirExists(filepath.Join(dir, ".git")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return absDir, nil
		}
		dir = parent
	}
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// WriteYAML writes the configuration to a YAML file, creating parent
// directories as needed.
func (c *Config) WriteYAML(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
