// Package bootstrap wires configuration into the concrete retrieval and
// generation stack shared by the API and MCP entrypoints.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/toolscout/agent-tools-rag/internal/config"
	"github.com/toolscout/agent-tools-rag/internal/core/domain"
	"github.com/toolscout/agent-tools-rag/internal/core/ports"
	"github.com/toolscout/agent-tools-rag/internal/core/usecase"
	"github.com/toolscout/agent-tools-rag/internal/infrastructure/embedding/ollama"
	"github.com/toolscout/agent-tools-rag/internal/infrastructure/embedding/sparse"
	"github.com/toolscout/agent-tools-rag/internal/infrastructure/llm/anthropicvendor"
	"github.com/toolscout/agent-tools-rag/internal/infrastructure/llm/openaicompat"
	natsqueue "github.com/toolscout/agent-tools-rag/internal/infrastructure/queue/nats"
	"github.com/toolscout/agent-tools-rag/internal/infrastructure/repository/postgres"
	"github.com/toolscout/agent-tools-rag/internal/infrastructure/resilience"
	"github.com/toolscout/agent-tools-rag/internal/infrastructure/vector/memory"
	"github.com/toolscout/agent-tools-rag/internal/infrastructure/vector/qdrant"
	"github.com/toolscout/agent-tools-rag/internal/observability/logging"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Retriever *usecase.Retriever
	Ask       *usecase.AskService

	// History is nil when POSTGRES_DSN is unset.
	History *postgres.HistoryRepository

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger := logging.NewJSONLogger("agent-tools-rag", cfg.LogLevel)
	slog.SetDefault(logger)

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	index, err := buildIndex(cfg)
	if err != nil {
		return nil, err
	}

	retriever := usecase.NewRetriever(
		ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel, executor),
		sparse.NewEncoder(),
		index,
		usecase.RetrieverConfig{
			MaxQueryLength:    cfg.MaxQueryLength,
			FetchFactorIDs:    cfg.FetchFactorIDs,
			FetchFactorTitles: cfg.FetchFactorTitles,
		},
		logger,
	)

	providers, err := buildProviders(cfg, executor, logger)
	if err != nil {
		return nil, err
	}

	catalog, err := config.ModelCatalog()
	if err != nil {
		return nil, err
	}

	var (
		db          *sql.DB
		historyRepo *postgres.HistoryRepository
		history     ports.AskHistory
	)
	if cfg.PostgresDSN != "" {
		db, err = postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		historyRepo = postgres.NewHistoryRepository(db)
		if err := historyRepo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		history = historyRepo
	}

	var (
		queue *natsqueue.Queue
		usage ports.UsageEvents
	)
	if cfg.NATSURL != "" {
		queue, err = natsqueue.New(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
			ResilienceExecutor: executor,
		})
		if err != nil {
			if db != nil {
				_ = db.Close()
			}
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		usage = queue
	}

	ask := usecase.NewAskService(retriever, providers, catalog, history, usage, usecase.AskConfig{
		DefaultProvider:     cfg.DefaultProvider,
		TokenBudget:         cfg.TokenBudget,
		Temperature:         cfg.Temperature,
		MaxCompletionTokens: cfg.MaxCompletion,
		MaxQueryLength:      cfg.MaxQueryLength,
	}, logger)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Retriever: retriever,
		Ask:       ask,
		History:   historyRepo,

		closeFn: func() {
			if queue != nil {
				queue.Close()
			}
			if db != nil {
				_ = db.Close()
			}
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func buildIndex(cfg config.Config) (ports.VectorIndex, error) {
	switch cfg.IndexDriver {
	case "qdrant":
		return qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, cfg.QdrantAPIKey), nil
	case "memory":
		return memory.NewIndex(), nil
	default:
		return nil, fmt.Errorf("unknown index driver %q", cfg.IndexDriver)
	}
}

// buildProviders registers all three providers. Missing credentials do not
// remove a provider; it degrades to a stub whose calls return a
// configuration error, so the service starts and answers with a labeled
// unavailable state instead of crashing or pretending the provider does not
// exist.
func buildProviders(cfg config.Config, executor *resilience.Executor, logger *slog.Logger) (map[string]ports.Generator, error) {
	providers := make(map[string]ports.Generator, 3)

	if cfg.OpenRouterAPIKey != "" {
		client, err := openaicompat.New(openaicompat.Options{
			Name:    "openrouter",
			BaseURL: cfg.OpenRouterURL,
			APIKey:  cfg.OpenRouterAPIKey,
			Headers: map[string]string{
				"HTTP-Referer": "https://github.com/toolscout/agent-tools-rag",
				"X-Title":      "agent-tools-rag",
			},
			StripReasoning: cfg.OpenRouterStripReasoning,
			Executor:       executor,
		})
		if err != nil {
			return nil, fmt.Errorf("openrouter provider: %w", err)
		}
		providers["openrouter"] = client
	} else {
		providers["openrouter"] = unavailableProvider{name: "openrouter"}
	}

	if cfg.HFaceAPIKey != "" {
		// HF router models deliberate out loud; always strip their reasoning.
		client, err := openaicompat.New(openaicompat.Options{
			Name:           "hface",
			BaseURL:        cfg.HFaceURL,
			APIKey:         cfg.HFaceAPIKey,
			StripReasoning: true,
			Executor:       executor,
		})
		if err != nil {
			return nil, fmt.Errorf("hface provider: %w", err)
		}
		providers["hface"] = client
	} else {
		providers["hface"] = unavailableProvider{name: "hface"}
	}

	if cfg.AnthropicAPIKey != "" {
		client, err := anthropicvendor.New(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, fmt.Errorf("anthropic provider: %w", err)
		}
		providers["anthropic"] = client
	} else {
		providers["anthropic"] = unavailableProvider{name: "anthropic"}
	}

	for name, provider := range providers {
		if _, degraded := provider.(unavailableProvider); degraded {
			logger.Warn("provider_credentials_missing", "provider", name)
		}
	}
	return providers, nil
}

// unavailableProvider stands in for a provider without credentials.
type unavailableProvider struct {
	name string
}

func (p unavailableProvider) Generate(context.Context, string, domain.ModelConfig) (string, string, error) {
	return "", "", p.err()
}

func (p unavailableProvider) Stream(context.Context, string, domain.ModelConfig) (<-chan domain.GenerationEvent, error) {
	return nil, p.err()
}

func (p unavailableProvider) err() error {
	return domain.WrapError(domain.ErrConfiguration, p.name, fmt.Errorf("provider credentials are not configured"))
}
