package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for semnotes.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Capture   CaptureConfig   `yaml:"capture"`
	Notifier  NotifierConfig  `yaml:"notifier"`
	Cache     CacheConfig     `yaml:"cache"`
	Import    ImportConfig    `yaml:"import"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes"`
}

// StoreConfig selects and locates the note store.
type StoreConfig struct {
	Backend string `yaml:"backend"` // "bolt", "sqlite", "memory"
	Path    string `yaml:"path"`    // empty means inside the .semnotes directory
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Provider  string        `yaml:"provider"`    // "local", "gemini", "openai", "jina", "deepseek", "ollama"
	Model     string        `yaml:"model"`       // e.g., "text-embedding-004"
	APIKeyEnv string        `yaml:"api_key_env"` // Environment variable for API key
	BaseURL   string        `yaml:"base_url"`
	Dimension int           `yaml:"dimension"` // 0 = model default
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited
	Burst     int           `yaml:"burst"`
}

// SearchConfig holds retrieval configuration.
type SearchConfig struct {
	DefaultLimit int     `yaml:"default_limit"`
	MaxLimit     int     `yaml:"max_limit"`
	Threshold    float64 `yaml:"threshold"`
}

// CaptureConfig holds note capture limits.
type CaptureConfig struct {
	MaxContentChars int `yaml:"max_content_chars"`
}

// NotifierConfig holds change notification configuration.
type NotifierConfig struct {
	Buffer int `yaml:"buffer"` // per-subscriber event buffer
}

// CacheConfig holds embedding cache configuration.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

// ImportConfig holds bulk import configuration.
type ImportConfig struct {
	Includes     []string `yaml:"includes"`
	Excludes     []string `yaml:"excludes"`
	MaxFileBytes int64    `yaml:"max_file_bytes"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              "127.0.0.1:8080",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			MaxBodyBytes:      1 << 20,
		},
		Store: StoreConfig{
			Backend: "bolt",
		},
		Embedding: EmbeddingConfig{
			Provider:  "local",
			Model:     "bow-hash",
			APIKeyEnv: "GEMINI_API_KEY",
			Timeout:   30 * time.Second,
			Burst:     1,
		},
		Search: SearchConfig{
			DefaultLimit: 10,
			MaxLimit:     100,
			Threshold:    0.7,
		},
		Capture: CaptureConfig{
			MaxContentChars: 10000,
		},
		Notifier: NotifierConfig{
			Buffer: 16,
		},
		Cache: CacheConfig{
			Enabled: true,
			Size:    512,
			TTL:     10 * time.Minute,
		},
		Import: ImportConfig{
			Includes:     []string{"**/*.md", "**/*.txt"},
			Excludes:     []string{"**/.git/**", "**/node_modules/**", "**/.semnotes/**"},
			MaxFileBytes: 64 << 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for semnotes.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "semnotes.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".semnotes", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "bolt", "sqlite", "memory":
	default:
		return fmt.Errorf("unsupported store backend: %q", c.Store.Backend)
	}

	switch c.Embedding.Provider {
	case "local", "gemini", "openai", "jina", "deepseek", "ollama":
	default:
		return fmt.Errorf("unsupported embedding provider: %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimension < 0 {
		return fmt.Errorf("embedding.dimension must not be negative")
	}
	if c.Embedding.RateLimit < 0 {
		return fmt.Errorf("embedding.rate_limit must not be negative")
	}

	if math.IsNaN(c.Search.Threshold) || c.Search.Threshold < 0 || c.Search.Threshold > 1 {
		return fmt.Errorf("search.threshold must be within [0,1], got %v", c.Search.Threshold)
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxLimit <= 0 {
		return fmt.Errorf("search limits must be positive")
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("search.default_limit (%d) exceeds search.max_limit (%d)", c.Search.DefaultLimit, c.Search.MaxLimit)
	}

	if c.Capture.MaxContentChars <= 0 {
		return fmt.Errorf("capture.max_content_chars must be positive")
	}
	if c.Notifier.Buffer <= 0 {
		return fmt.Errorf("notifier.buffer must be positive")
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unsupported logging format: %q", c.Logging.Format)
	}

	return nil
}

// DataDir returns the path to the semnotes data directory.
func DataDir(dir string) string {
	return filepath.Join(dir, ".semnotes")
}

// StorePath returns the database path for the configured backend.
func (c *Config) StorePath(dir string) string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	if c.Store.Backend == "sqlite" {
		return filepath.Join(DataDir(dir), "notes.sqlite")
	}
	return filepath.Join(DataDir(dir), "notes.db")
}

// EnsureDataDir ensures the .semnotes directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(DataDir(dir), 0755)
}

// EmbeddingHash identifies the vector space produced by the embedding
// settings. A different hash means stored vectors are not comparable to new
// query vectors and every note should be reindexed.
func (c *Config) EmbeddingHash() string {
	relevant := struct {
		Provider  string `json:"provider"`
		Model     string `json:"model"`
		Dimension int    `json:"dimension"`
	}{
		Provider:  c.Embedding.Provider,
		Model:     c.Embedding.Model,
		Dimension: c.Embedding.Dimension,
	}

	data, _ := json.Marshal(relevant)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}
