// Package config holds the configuration structures for the kgraph engine
// and its host binary (cmd/kgraphd).
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kgraphdb/kgraph/pkg/version"
)

// Config holds every recognized engine configuration key plus the
// host-process knobs (transports, logging, optional durable backend).
type Config struct {
	// MCP over Streamable HTTP (recommended transport for MCP).
	MCPStreamableHTTP         bool   `mapstructure:"mcp-http"`
	MCPStreamableHTTPAddr     string `mapstructure:"mcp-http-addr"`
	MCPStreamableHTTPEndpoint string `mapstructure:"mcp-http-endpoint"`

	// HTTP is the plain JSON API transport (internal/transport).
	HTTP     bool   `mapstructure:"http"`
	HTTPAddr string `mapstructure:"http-addr"`

	// Durable backend. Empty SurrealDBURL means the facade uses the
	// in-memory store.
	SurrealDBURL       string `mapstructure:"surrealdb-url"`
	SurrealDBUser      string `mapstructure:"surrealdb-user"`
	SurrealDBPass      string `mapstructure:"surrealdb-pass"`
	SurrealDBNamespace string `mapstructure:"surrealdb-namespace"`
	SurrealDBDatabase  string `mapstructure:"surrealdb-database"`

	// Embedding provider selection. At most one is expected to be set;
	// Ollama takes priority over OpenAI when both are. Absence of either
	// leaves the facade's hash-based pseudo-embedding fallback active.
	OllamaURL   string `mapstructure:"ollama-url"`
	OllamaModel string `mapstructure:"ollama-model"`
	OpenAIKey   string `mapstructure:"openai-key"`
	OpenAIURL   string `mapstructure:"openai-url"`
	OpenAIModel string `mapstructure:"openai-model"`

	LogFile          string `mapstructure:"log"`
	DisableOutputLog bool   `mapstructure:"disable-output-log"`

	// Advanced query engine (advanced_query.*).
	MaxPathLength        int  `mapstructure:"advanced-max-path-length"`
	MaxRecursionDepth    int  `mapstructure:"advanced-max-recursion-depth"`
	EnableSemanticSearch bool `mapstructure:"advanced-enable-semantic-search"`
	MaxResultsPerQuery   int  `mapstructure:"advanced-max-results-per-query"`
	AdvancedTimeoutMs    int  `mapstructure:"advanced-timeout-ms"`

	// Query processor (query_processor.*).
	MaxQueryCacheSize int `mapstructure:"query-max-cache-size"`
	MaxResultSize     int `mapstructure:"query-max-result-size"`
	DefaultTimeoutMs  int `mapstructure:"query-default-timeout-ms"`

	// Semantic cache (semantic_cache.*).
	CacheDefaultTTLMs               int64   `mapstructure:"cache-default-ttl-ms"`
	CacheMaxSize                    int     `mapstructure:"cache-max-size"`
	CacheDefaultSimilarityThreshold float64 `mapstructure:"cache-default-similarity-threshold"`
	CacheEmbeddingDimensions        int     `mapstructure:"cache-embedding-dimensions"`

	// Indexing (indexing.*).
	IndexingMaxIndexes           int    `mapstructure:"indexing-max-indexes"`
	IndexingVectorDimensions     int    `mapstructure:"indexing-vector-dimensions"`
	IndexingVectorDistanceMetric string `mapstructure:"indexing-vector-distance-metric"`
	IndexingEnableFullText       bool   `mapstructure:"indexing-enable-full-text"`

	// DeleteCascade, when true, makes DeleteNode cascade-delete incident
	// edges instead of rejecting with IntegrityViolation.
	DeleteCascade bool `mapstructure:"delete-cascade"`
}

// Load loads the configuration from CLI flags, environment variables (under
// the GOKG_ prefix), and an optional YAML config file. A flag set on the
// command line wins over the environment, the environment wins over the
// file, and the file wins over flag defaults.
func Load() (*Config, error) {
	pflag.String("config", "", "Path to YAML configuration file")

	pflag.Bool("mcp-http", false, "Enable MCP Streamable HTTP transport")
	pflag.String("mcp-http-addr", "3000", "Port or address to bind MCP Streamable HTTP transport")
	pflag.String("mcp-http-endpoint", "/mcp", "HTTP path for the MCP Streamable HTTP endpoint")

	pflag.Bool("http", false, "Enable the plain JSON HTTP transport")
	pflag.String("http-addr", ":8080", "Address to bind the JSON HTTP transport")

	pflag.String("surrealdb-url", "", "URL for an optional durable SurrealDB backend; empty uses the in-memory store")
	pflag.String("surrealdb-user", "root", "Username for SurrealDB")
	pflag.String("surrealdb-pass", "root", "Password for SurrealDB")
	pflag.String("surrealdb-namespace", "kgraph", "Namespace for SurrealDB")
	pflag.String("surrealdb-database", "kgraph", "Database for SurrealDB")

	pflag.String("ollama-url", "", "URL for the Ollama server (embedding provider)")
	pflag.String("ollama-model", "", "Ollama model to use for embeddings")
	pflag.String("openai-key", "", "OpenAI API key (embedding provider)")
	pflag.String("openai-url", "https://api.openai.com/v1", "OpenAI base URL")
	pflag.String("openai-model", "text-embedding-3-large", "OpenAI model to use for embeddings")

	pflag.String("log", "", "Path to the log file (logs are written to both stderr and the file)")
	pflag.Bool("disable-output-log", false, "Disable logging to stderr; only write to log file if configured")

	pflag.Int("advanced-max-path-length", 10, "advanced_query.max_path_length")
	pflag.Int("advanced-max-recursion-depth", 5, "advanced_query.max_recursion_depth")
	pflag.Bool("advanced-enable-semantic-search", true, "advanced_query.enable_semantic_search")
	pflag.Int("advanced-max-results-per-query", 1000, "advanced_query.max_results_per_query")
	pflag.Int("advanced-timeout-ms", 30000, "advanced_query.timeout_ms")

	pflag.Int("query-max-cache-size", 100, "query_processor.max_query_cache_size")
	pflag.Int("query-max-result-size", 10000, "query_processor.max_result_size")
	pflag.Int("query-default-timeout-ms", 30000, "query_processor.default_timeout_ms")

	pflag.Int64("cache-default-ttl-ms", 3_600_000, "semantic_cache.default_ttl_ms")
	pflag.Int("cache-max-size", 1000, "semantic_cache.max_size")
	pflag.Float64("cache-default-similarity-threshold", 0.85, "semantic_cache.default_similarity_threshold")
	pflag.Int("cache-embedding-dimensions", 768, "semantic_cache.embedding_dimensions")

	pflag.Int("indexing-max-indexes", 100, "indexing.max_indexes")
	pflag.Int("indexing-vector-dimensions", 768, "indexing.vector_dimensions")
	pflag.String("indexing-vector-distance-metric", "cosine", "indexing.vector_distance_metric")
	pflag.Bool("indexing-enable-full-text", true, "indexing.enable_full_text")

	pflag.Bool("delete-cascade", false, "Cascade-delete incident edges on DeleteNode instead of rejecting")

	flag.Bool("version", false, "Print version and exit")
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()

	if ver := pflag.Lookup("version"); ver != nil && ver.Value.String() == "true" {
		fmt.Println(version.Describe())
		os.Exit(0)
	}

	v := viper.New()

	configPath := pflag.Lookup("config").Value.String()
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if homeDir, err := os.UserHomeDir(); err == nil {
		standardConfigPath := filepath.Join(homeDir, ".config", "kgraph", "config.yaml")
		if runtime.GOOS == "darwin" {
			standardConfigPath = filepath.Join(homeDir, "Library", "Application Support", "kgraph", "config.yaml")
		}
		if _, err := os.Stat(standardConfigPath); err == nil {
			v.SetConfigFile(standardConfigPath)
			if err := v.ReadInConfig(); err == nil {
				slog.Info("using configuration file from standard location", "path", standardConfigPath)
			}
		}
	}

	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return nil, fmt.Errorf("failed to bind pflags: %w", err)
	}

	v.SetEnvPrefix("GOKG")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Watch the config file for changes on disk. The OnConfigChange callback
	// below only logs the change; the Config returned by Load is not
	// refreshed. Only set up when a config file was actually loaded.
	if v.ConfigFileUsed() != "" {
		v.OnConfigChange(func(e fsnotify.Event) {
			slog.Info("configuration file changed", "path", e.Name)
		})
		v.WatchConfig()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks invariants across configuration keys that can't be
// expressed as independent flag defaults.
func (c *Config) Validate() error {
	if c.SurrealDBURL == "" && (c.SurrealDBUser != "root" || c.SurrealDBPass != "root") {
		// Credentials without a URL are almost certainly a typo'd flag; flag it
		// rather than silently ignoring the durable backend.
		return errors.New("surrealdb credentials provided without surrealdb-url")
	}
	if c.CacheMaxSize <= 0 {
		return errors.New("cache-max-size must be positive")
	}
	if c.IndexingMaxIndexes <= 0 {
		return errors.New("indexing-max-indexes must be positive")
	}
	return nil
}

// CacheDefaultTTL returns the configured cache TTL as a time.Duration.
func (c *Config) CacheDefaultTTL() time.Duration {
	return time.Duration(c.CacheDefaultTTLMs) * time.Millisecond
}

// AdvancedTimeout returns advanced_query.timeout_ms as a time.Duration.
func (c *Config) AdvancedTimeout() time.Duration {
	return time.Duration(c.AdvancedTimeoutMs) * time.Millisecond
}

// QueryDefaultTimeout returns query_processor.default_timeout_ms as a
// time.Duration.
func (c *Config) QueryDefaultTimeout() time.Duration {
	return time.Duration(c.DefaultTimeoutMs) * time.Millisecond
}

// UsesDurableBackend reports whether a SurrealDB URL was configured.
func (c *Config) UsesDurableBackend() bool {
	return c.SurrealDBURL != ""
}

// HasEmbedder reports whether an embedding provider was configured.
// Ollama takes priority over OpenAI when both are set.
func (c *Config) HasEmbedder() bool {
	return c.OllamaModel != "" || c.OpenAIKey != ""
}

// Getenv reads an environment variable or returns a default value.
func Getenv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// SetupLogging configures slog output.
//
// Important: when running MCP over stdio, stdout must be reserved for
// protocol messages, so console logs default to stderr.
func (c *Config) SetupLogging() error {
	var writers []io.Writer

	if !c.DisableOutputLog {
		writers = append(writers, os.Stderr)
	}

	if c.LogFile != "" {
		logFile, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", c.LogFile, err)
		}
		writers = append(writers, logFile)
	}

	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	multiWriter := io.MultiWriter(writers...)
	handler := slog.NewTextHandler(multiWriter, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(handler))
	return nil
}
