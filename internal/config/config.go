package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Vector backends.
const (
	VectorSQLite   = "sqlite"
	VectorPostgres = "postgres"
	VectorNone     = "none"
)

// Embedding providers. EmbeddingAuto picks openai when a key is present and
// the offline hashing embedder otherwise.
const (
	EmbeddingAuto    = "auto"
	EmbeddingOpenAI  = "openai"
	EmbeddingGemini  = "gemini"
	EmbeddingHashing = "hashing"
)

type Config struct {
	Port     int
	LogLevel string

	Provider        string
	MaxTokens       int
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	AnthropicModel  string
	GeminiAPIKey    string
	GeminiModel     string

	EmbeddingProvider   string
	EmbeddingModel      string
	EmbeddingDimensions int

	VectorBackend string
	VectorPath    string
	DatabaseURL   string

	NatsURL   string
	NatsToken string

	SlackBotToken     string
	SlackAlertChannel string

	JWTSecret         string
	RiskKeywordScreen bool
	IndexTimeoutSecs  int
	BatchConcurrency  int
}

// Load reads the environment. A .env file in the working directory is
// applied first without overriding variables that are already set.
func Load() Config {
	_ = godotenv.Load(".env")

	return Config{
		Port:     envInt("PORT", 8000),
		LogLevel: envStr("LOG_LEVEL", "info"),

		Provider:        strings.ToLower(envStr("ZIHIN_PROVIDER", "openai")),
		MaxTokens:       envInt("ZIHIN_MAX_TOKENS", 1000),
		OpenAIAPIKey:    envStr("OPENAI_API_KEY", ""),
		OpenAIModel:     envStr("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:   envStr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		GeminiAPIKey:    envStr("GEMINI_API_KEY", ""),
		GeminiModel:     envStr("GEMINI_MODEL", "gemini-2.0-flash"),

		EmbeddingProvider:   strings.ToLower(envStr("ZIHIN_EMBEDDING_PROVIDER", EmbeddingAuto)),
		EmbeddingModel:      envStr("ZIHIN_EMBEDDING_MODEL", ""),
		EmbeddingDimensions: envInt("ZIHIN_EMBEDDING_DIMENSIONS", 256),

		VectorBackend: strings.ToLower(envStr("ZIHIN_VECTOR_BACKEND", VectorSQLite)),
		VectorPath:    envStr("ZIHIN_VECTOR_PATH", "data/zihin.db"),
		DatabaseURL:   envStr("DATABASE_URL", ""),

		NatsURL:   envStr("NATS_URL", ""),
		NatsToken: envStr("NATS_TOKEN", ""),

		SlackBotToken:     envStr("SLACK_BOT_TOKEN", ""),
		SlackAlertChannel: envStr("SLACK_ALERT_CHANNEL", ""),

		JWTSecret:         envStr("ZIHIN_JWT_SECRET", ""),
		RiskKeywordScreen: envBool("ZIHIN_RISK_KEYWORD_SCREEN", false),
		IndexTimeoutSecs:  envInt("ZIHIN_INDEX_TIMEOUT_SECONDS", 30),
		BatchConcurrency:  envInt("ZIHIN_BATCH_CONCURRENCY", 4),
	}
}

// Validate reports configuration the service cannot start with.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}

	switch c.Provider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required for provider openai")
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return errors.New("ANTHROPIC_API_KEY is required for provider anthropic")
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			return errors.New("GEMINI_API_KEY is required for provider gemini")
		}
	default:
		return fmt.Errorf("unknown ZIHIN_PROVIDER %q (want openai, anthropic or gemini)", c.Provider)
	}

	switch c.EmbeddingProvider {
	case EmbeddingAuto, EmbeddingHashing:
	case EmbeddingOpenAI:
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required for openai embeddings")
		}
	case EmbeddingGemini:
		if c.GeminiAPIKey == "" {
			return errors.New("GEMINI_API_KEY is required for gemini embeddings")
		}
	default:
		return fmt.Errorf("unknown ZIHIN_EMBEDDING_PROVIDER %q", c.EmbeddingProvider)
	}

	switch c.VectorBackend {
	case VectorSQLite:
		if strings.TrimSpace(c.VectorPath) == "" {
			return errors.New("ZIHIN_VECTOR_PATH is required for the sqlite backend")
		}
	case VectorPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	case VectorNone:
	default:
		return fmt.Errorf("unknown ZIHIN_VECTOR_BACKEND %q", c.VectorBackend)
	}

	if c.JWTSecret != "" && len(c.JWTSecret) < 16 {
		return errors.New("ZIHIN_JWT_SECRET is too short; use at least 16 characters")
	}
	return nil
}

// ResolvedEmbedding is the embedding provider after resolving auto.
func (c Config) ResolvedEmbedding() string {
	if c.EmbeddingProvider != EmbeddingAuto {
		return c.EmbeddingProvider
	}
	if c.OpenAIAPIKey != "" {
		return EmbeddingOpenAI
	}
	return EmbeddingHashing
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}
