// Package config loads the RAG core configuration from environment-named
// YAML files with ${VAR} expansion.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the full RAG core configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	RAG       RAGConfig       `yaml:"rag"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Cache     CacheConfig     `yaml:"cache"`
	Quota     QuotaConfig     `yaml:"quota"`
	Storage   StorageConfig   `yaml:"storage"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// DatabaseConfig holds chunk store connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// RAGConfig holds retrieval pipeline settings.
type RAGConfig struct {
	Enabled       *bool   `yaml:"enabled"` // nil = true
	TopK          int     `yaml:"top_k"`
	MinSimilarity float64 `yaml:"min_similarity"`
	UseHybrid     *bool   `yaml:"use_hybrid"` // nil = true
	KeywordWeight float64 `yaml:"keyword_weight"`
}

// ChunkingConfig holds document chunking token budgets.
type ChunkingConfig struct {
	TargetTokens  int `yaml:"target_tokens"`
	MaxTokens     int `yaml:"max_tokens"`
	MinTokens     int `yaml:"min_tokens"`
	OverlapTokens int `yaml:"overlap_tokens"`
}

// CacheConfig holds embedding cache settings.
type CacheConfig struct {
	MaxSize    int `yaml:"max_size"`
	TTLSeconds int `yaml:"ttl_sec"`
}

// QuotaConfig holds sliding-window quota ceilings per bucket.
type QuotaConfig struct {
	Enforcement    *bool        `yaml:"enforcement_enabled"` // nil = true
	TextGeneration BucketConfig `yaml:"text_generation"`
	Embedding      BucketConfig `yaml:"embedding"`
}

// BucketConfig holds per-bucket request and token ceilings. 0 = unlimited.
type BucketConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	TokensPerMinute   int `yaml:"tokens_per_minute"`
	RequestsPerDay    int `yaml:"requests_per_day"`
}

// StorageConfig holds chunk store key settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// TelemetryConfig holds the optional ops listener settings.
type TelemetryConfig struct {
	Addr string `yaml:"addr"` // empty = disabled
}

// RAGEnabled reports whether the pipeline is enabled (default true).
func (c *Config) RAGEnabled() bool { return c.RAG.Enabled == nil || *c.RAG.Enabled }

// HybridEnabled reports whether hybrid retrieval is on (default true).
func (c *Config) HybridEnabled() bool { return c.RAG.UseHybrid == nil || *c.RAG.UseHybrid }

// QuotaEnforced reports whether quota enforcement is on (default true).
func (c *Config) QuotaEnforced() bool { return c.Quota.Enforcement == nil || *c.Quota.Enforcement }

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse parses a YAML config document, expanding ${VAR} references.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.RAG.TopK <= 0 {
		c.RAG.TopK = 5
	}
	if c.RAG.MinSimilarity <= 0 {
		c.RAG.MinSimilarity = 0.5
	}
	if c.RAG.KeywordWeight <= 0 {
		c.RAG.KeywordWeight = 0.3
	}
	if c.Chunking.TargetTokens <= 0 {
		c.Chunking.TargetTokens = 400
	}
	if c.Chunking.MaxTokens <= 0 {
		c.Chunking.MaxTokens = 600
	}
	if c.Chunking.MinTokens <= 0 {
		c.Chunking.MinTokens = 50
	}
	if c.Chunking.OverlapTokens < 0 {
		c.Chunking.OverlapTokens = 0
	}
	if c.Cache.MaxSize <= 0 {
		c.Cache.MaxSize = 1000
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = 3600
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "ragcore:"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.RAG.MinSimilarity < 0 || c.RAG.MinSimilarity > 1 {
		return fmt.Errorf("rag.min_similarity must be between 0 and 1, got %g", c.RAG.MinSimilarity)
	}
	if c.RAG.KeywordWeight < 0 || c.RAG.KeywordWeight > 1 {
		return fmt.Errorf("rag.keyword_weight must be between 0 and 1, got %g", c.RAG.KeywordWeight)
	}
	if c.Chunking.TargetTokens > c.Chunking.MaxTokens {
		return fmt.Errorf(
			"chunking.target_tokens (%d) must not exceed chunking.max_tokens (%d)",
			c.Chunking.TargetTokens, c.Chunking.MaxTokens,
		)
	}
	for name, b := range map[string]BucketConfig{
		"text_generation": c.Quota.TextGeneration,
		"embedding":       c.Quota.Embedding,
	} {
		if b.RequestsPerMinute < 0 || b.TokensPerMinute < 0 || b.RequestsPerDay < 0 {
			return fmt.Errorf("quota.%s ceilings must not be negative", name)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
