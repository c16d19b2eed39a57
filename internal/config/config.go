// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.finsight/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider, model, temperature, embedder model
//   - Storage: PostgreSQL connection (see storage.go)
//   - Ingest: feed URLs, scraper politeness settings
//   - Refresh: background data refresh interval
//
// Sensitive fields (the PostgreSQL password) are masked in MarshalJSON.
// Validation lives in validation.go and uses sentinel errors so callers can
// check with errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

const (
	// DefaultGeminiEmbedderModel is the default Gemini embedder model.
	DefaultGeminiEmbedderModel = "gemini-embedding-001"

	// DefaultOpenAIEmbedderModel is the default OpenAI embedder model, matching
	// the embeddings the bundled migrations size the vector columns for.
	DefaultOpenAIEmbedderModel = "text-embedding-3-small"
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// AI provider and model configuration
	Provider    string  `mapstructure:"provider" json:"provider"`     // "gemini" (default), "openai", "ollama"
	ModelName   string  `mapstructure:"model_name" json:"model_name"` // e.g. "gemini-2.5-flash", "gpt-4o"
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Embedder model for vector embeddings
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP server
	HTTPAddr string `mapstructure:"http_addr" json:"http_addr"`

	// Ingestion sources
	NewsFeeds   []string `mapstructure:"news_feeds" json:"news_feeds"`
	NewsPages   []string `mapstructure:"news_pages" json:"news_pages"`
	GlossaryURL string   `mapstructure:"glossary_url" json:"glossary_url"`
	Subreddits  []string `mapstructure:"subreddits" json:"subreddits"`

	// Scraper politeness
	ScraperParallelism int `mapstructure:"scraper_parallelism" json:"scraper_parallelism"`
	ScraperDelayMs     int `mapstructure:"scraper_delay_ms" json:"scraper_delay_ms"`

	// Background refresh
	RefreshInterval time.Duration `mapstructure:"refresh_interval" json:"refresh_interval"`

	// Embedding backfill rate limit (requests per second against the embedder)
	EmbedRateLimit float64 `mapstructure:"embed_rate_limit" json:"embed_rate_limit"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".finsight")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings when set.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("temperature", 0.0)
	viper.SetDefault("max_tokens", 2048)
	viper.SetDefault("embedder_model", DefaultGeminiEmbedderModel)

	// Ollama defaults
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "finsight")
	viper.SetDefault("postgres_password", "finsight_dev_password")
	viper.SetDefault("postgres_db_name", "finsight")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// HTTP server
	viper.SetDefault("http_addr", "127.0.0.1:8000")

	// Ingestion sources
	viper.SetDefault("news_feeds", []string{
		"https://feeds.finance.yahoo.com/rss/2.0/headline?s=%5EGSPC",
		"https://feeds.finance.yahoo.com/rss/2.0/headline?s=%5EIXIC",
		"https://www.cnbc.com/id/10000664/device/rss/rss.html",
	})
	viper.SetDefault("news_pages", []string{
		"https://www.investing.com/news/stock-market-news",
	})
	viper.SetDefault("glossary_url", "https://www.investopedia.com/financial-term-dictionary-4769738")
	viper.SetDefault("subreddits", []string{
		"investing",
		"stocks",
		"wallstreetbets",
		"finance",
		"stockmarket",
	})

	// Scraper politeness
	viper.SetDefault("scraper_parallelism", 2)
	viper.SetDefault("scraper_delay_ms", 1000)

	// Background refresh
	viper.SetDefault("refresh_interval", time.Hour)

	// Embedding backfill rate limit
	viper.SetDefault("embed_rate_limit", 2.0)
}

// bindEnvVariables binds environment overrides explicitly.
// API keys (GEMINI_API_KEY, OPENAI_API_KEY) are read directly by the Genkit
// provider plugins, not via Viper; Validate() checks their presence.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a failure here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "FINSIGHT_PROVIDER")
	mustBind("model_name", "FINSIGHT_MODEL_NAME")
	mustBind("embedder_model", "FINSIGHT_EMBEDDER_MODEL")
	mustBind("ollama_host", "FINSIGHT_OLLAMA_HOST")
	mustBind("http_addr", "FINSIGHT_HTTP_ADDR")
	mustBind("postgres_password", "FINSIGHT_POSTGRES_PASSWORD")
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "openai/gpt-4o", "ollama/llama3.3".
// A ModelName that already contains a "/" is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	switch c.Provider {
	case ProviderOllama:
		return "ollama/" + c.ModelName
	case ProviderOpenAI:
		return "openai/" + c.ModelName
	default:
		return "googleai/" + c.ModelName
	}
}

// maskedValue is the placeholder for masked sensitive data. Full-width blocks
// avoid accidental substring matches against real secret fragments.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Secrets of 8 characters
// or fewer are fully masked; longer secrets keep the first and last two
// characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(c.PostgresPassword)
	return json.Marshal(a)
}
