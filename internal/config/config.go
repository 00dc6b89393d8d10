// Package config loads service configuration from the environment with
// sensible local-development defaults, plus the embedded model catalog.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	APIPort string
	// MetricsPort serves /metrics on its own listener, off the public API
	// surface.
	MetricsPort string
	LogLevel    string

	// Empty PostgresDSN / NATSURL disable history and usage events.
	PostgresDSN string
	NATSURL     string
	NATSSubject string

	OllamaURL        string
	OllamaEmbedModel string

	// IndexDriver selects qdrant or memory.
	IndexDriver      string
	QdrantURL        string
	QdrantCollection string
	QdrantAPIKey     string

	MaxQueryLength    int
	FetchFactorIDs    int
	FetchFactorTitles int

	DefaultProvider  string
	TokenBudget      int
	Temperature      float64
	MaxCompletion    int
	OpenRouterAPIKey string
	OpenRouterURL    string
	HFaceAPIKey      string
	HFaceURL         string
	AnthropicAPIKey  string

	// Streaming chain-of-thought stripping per OpenAI-compatible provider.
	OpenRouterStripReasoning bool

	APIRateLimitRPS     float64
	APIRateLimitBurst   int
	APIMaxInFlight      int
	APIBackpressureWait time.Duration
	ShutdownGracePeriod time.Duration
}

func Load() Config {
	return Config{
		APIPort:     mustEnv("API_PORT", "8080"),
		MetricsPort: mustEnv("METRICS_PORT", "9091"),
		LogLevel:    mustEnv("LOG_LEVEL", "info"),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),
		NATSURL:     mustEnv("NATS_URL", ""),
		NATSSubject: mustEnv("NATS_SUBJECT", "rag.usage"),

		OllamaURL:        mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaEmbedModel: mustEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),

		IndexDriver:      mustEnv("INDEX_DRIVER", "qdrant"),
		QdrantURL:        mustEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: mustEnv("QDRANT_COLLECTION", "agent_tools_articles"),
		QdrantAPIKey:     mustEnv("QDRANT_API_KEY", ""),

		MaxQueryLength:    mustEnvInt("MAX_QUERY_LENGTH", 2000),
		FetchFactorIDs:    mustEnvInt("FETCH_FACTOR_IDS", 100),
		FetchFactorTitles: mustEnvInt("FETCH_FACTOR_TITLES", 50),

		DefaultProvider:  mustEnv("DEFAULT_PROVIDER", "openrouter"),
		TokenBudget:      mustEnvInt("ANSWER_TOKEN_BUDGET", 1500),
		Temperature:      mustEnvFloat("GENERATION_TEMPERATURE", 0.6),
		MaxCompletion:    mustEnvInt("MAX_COMPLETION_TOKENS", 2000),
		OpenRouterAPIKey: mustEnv("OPENROUTER_API_KEY", ""),
		OpenRouterURL:    mustEnv("OPENROUTER_URL", "https://openrouter.ai/api/v1"),
		HFaceAPIKey:      mustEnv("HF_API_KEY", ""),
		HFaceURL:         mustEnv("HF_ROUTER_URL", "https://router.huggingface.co/v1"),
		AnthropicAPIKey:  mustEnv("ANTHROPIC_API_KEY", ""),

		OpenRouterStripReasoning: mustEnvBool("OPENROUTER_STRIP_REASONING", false),

		APIRateLimitRPS:     mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst:   mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIMaxInFlight:      mustEnvInt("API_MAX_IN_FLIGHT", 64),
		APIBackpressureWait: mustEnvDuration("API_BACKPRESSURE_WAIT", 100*time.Millisecond),
		ShutdownGracePeriod: mustEnvDuration("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
