package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/toolscout/agent-tools-rag/internal/core/domain"
	"github.com/toolscout/agent-tools-rag/internal/core/guard"
	"github.com/toolscout/agent-tools-rag/internal/core/ports"
)

// ProviderModels is the per-provider model catalog entry.
type ProviderModels struct {
	Default string
	Allowed []string
}

func (p ProviderModels) allows(model string) bool {
	for _, m := range p.Allowed {
		if m == model {
			return true
		}
	}
	return model == p.Default
}

type AskConfig struct {
	DefaultProvider     string
	TokenBudget         int
	Temperature         float64
	MaxCompletionTokens int
	// MaxQueryLength mirrors the retriever bound so rejection happens before
	// any provider work.
	MaxQueryLength int
}

func (c AskConfig) normalize() AskConfig {
	out := c
	if out.DefaultProvider == "" {
		out.DefaultProvider = "openrouter"
	}
	if out.TokenBudget <= 0 {
		out.TokenBudget = defaultTokenBudget
	}
	if out.Temperature <= 0 {
		out.Temperature = 0.6
	}
	if out.MaxCompletionTokens <= 0 {
		out.MaxCompletionTokens = 2000
	}
	if out.MaxQueryLength <= 0 {
		out.MaxQueryLength = guard.DefaultMaxQueryLength
	}
	return out
}

// AskService is the answer pipeline: guard, retrieve, assemble, generate.
// History and usage publication are post-answer and best effort.
type AskService struct {
	retriever *Retriever
	providers map[string]ports.Generator
	catalog   map[string]ProviderModels
	history   ports.AskHistory
	usage     ports.UsageEvents
	cfg       AskConfig
	logger    *slog.Logger
}

// AskInput is one question plus provider selection. Provider and Model are
// optional; empty values resolve through the configured defaults.
type AskInput struct {
	Query    domain.Query
	Provider string
	Model    string
}

func NewAskService(
	retriever *Retriever,
	providers map[string]ports.Generator,
	catalog map[string]ProviderModels,
	history ports.AskHistory,
	usage ports.UsageEvents,
	cfg AskConfig,
	logger *slog.Logger,
) *AskService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AskService{
		retriever: retriever,
		providers: providers,
		catalog:   catalog,
		history:   history,
		usage:     usage,
		cfg:       cfg.normalize(),
		logger:    logger,
	}
}

// Ask answers the question in one blocking call.
func (s *AskService) Ask(ctx context.Context, input AskInput) (*domain.Answer, error) {
	start := time.Now()

	text, err := guard.Sanitize(input.Query.Text, s.cfg.MaxQueryLength)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, domain.WrapError(domain.ErrRejectedInput, "ask", fmt.Errorf("empty query"))
	}

	providerName, gen, modelCfg, err := s.resolveProvider(input.Provider, input.Model)
	if err != nil {
		return nil, err
	}

	query := input.Query
	query.Text = text
	sources, err := s.retriever.Search(ctx, query, domain.DedupDistinctHits)
	if err != nil {
		return nil, err
	}

	prompt := BuildPrompt(text, sources, s.cfg.TokenBudget)
	answerText, finishReason, err := gen.Generate(ctx, prompt, modelCfg)
	if err != nil {
		s.recordOutcome(ctx, "ask", providerName, modelCfg.Model, len(sources), start, "error")
		if domain.IsKind(err, domain.ErrConfiguration) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrGenerationFailure, "generate", err)
	}

	s.recordOutcome(ctx, "ask", providerName, modelCfg.Model, len(sources), start, "ok")
	return &domain.Answer{
		Query:        text,
		Provider:     providerName,
		Text:         answerText,
		Sources:      sources,
		Model:        modelCfg.Model,
		FinishReason: finishReason,
	}, nil
}

// AskStream runs the same pipeline but returns the sources up front and the
// generation as an event stream. The returned channel is closed when the
// provider stream ends, after a terminal event, or once ctx is done.
func (s *AskService) AskStream(ctx context.Context, input AskInput) ([]domain.RetrievedChunk, <-chan domain.GenerationEvent, error) {
	start := time.Now()

	text, err := guard.Sanitize(input.Query.Text, s.cfg.MaxQueryLength)
	if err != nil {
		return nil, nil, err
	}
	if text == "" {
		return nil, nil, domain.WrapError(domain.ErrRejectedInput, "ask", fmt.Errorf("empty query"))
	}

	providerName, gen, modelCfg, err := s.resolveProvider(input.Provider, input.Model)
	if err != nil {
		return nil, nil, err
	}

	query := input.Query
	query.Text = text
	sources, err := s.retriever.Search(ctx, query, domain.DedupDistinctHits)
	if err != nil {
		return nil, nil, err
	}

	prompt := BuildPrompt(text, sources, s.cfg.TokenBudget)
	events, err := gen.Stream(ctx, prompt, modelCfg)
	if err != nil {
		s.recordOutcome(ctx, "ask_stream", providerName, modelCfg.Model, len(sources), start, "error")
		if domain.IsKind(err, domain.ErrConfiguration) {
			return nil, nil, err
		}
		return nil, nil, domain.WrapError(domain.ErrGenerationFailure, "open stream", err)
	}

	out := make(chan domain.GenerationEvent)
	go s.forward(ctx, events, out, providerName, modelCfg.Model, len(sources), start)
	return sources, out, nil
}

// forward pumps provider events to the consumer, then records the outcome.
// On context cancellation it stops consuming and leaves the provider goroutine
// to observe ctx itself.
func (s *AskService) forward(
	ctx context.Context,
	in <-chan domain.GenerationEvent,
	out chan<- domain.GenerationEvent,
	provider, model string,
	sources int,
	start time.Time,
) {
	defer close(out)
	status := "ok"
	for {
		select {
		case <-ctx.Done():
			s.recordOutcome(ctx, "ask_stream", provider, model, sources, start, "canceled")
			return
		case event, ok := <-in:
			if !ok {
				s.recordOutcome(ctx, "ask_stream", provider, model, sources, start, status)
				return
			}
			if event.Type == domain.EventError {
				status = "error"
			}
			if event.Type == domain.EventModelInfo && event.Model != "" {
				model = event.Model
			}
			select {
			case out <- event:
			case <-ctx.Done():
				s.recordOutcome(ctx, "ask_stream", provider, model, sources, start, "canceled")
				return
			}
		}
	}
}

func (s *AskService) resolveProvider(provider, model string) (string, ports.Generator, domain.ModelConfig, error) {
	name := strings.ToLower(strings.TrimSpace(provider))
	if name == "" {
		name = s.cfg.DefaultProvider
	}
	gen, ok := s.providers[name]
	if !ok {
		return "", nil, domain.ModelConfig{}, domain.WrapError(domain.ErrRejectedInput, "resolve provider",
			fmt.Errorf("unknown provider %q", name))
	}

	entry := s.catalog[name]
	model = strings.TrimSpace(model)
	if model == "" {
		model = entry.Default
	} else if len(entry.Allowed) > 0 && !entry.allows(model) {
		return "", nil, domain.ModelConfig{}, domain.WrapError(domain.ErrRejectedInput, "resolve model",
			fmt.Errorf("model %q is not available for provider %q", model, name))
	}

	return name, gen, domain.ModelConfig{
		Provider:            name,
		Model:               model,
		Temperature:         s.cfg.Temperature,
		MaxCompletionTokens: s.cfg.MaxCompletionTokens,
	}, nil
}

// recordOutcome persists history and publishes usage off the request context,
// bounded so a slow broker cannot hold the pipeline.
func (s *AskService) recordOutcome(ctx context.Context, endpoint, provider, model string, sources int, start time.Time, status string) {
	if s.history == nil && s.usage == nil {
		return
	}
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	duration := time.Since(start).Milliseconds()
	if s.history != nil {
		record := domain.AskRecord{
			ID:          uuid.NewString(),
			Endpoint:    endpoint,
			Provider:    provider,
			Model:       model,
			Mode:        string(domain.DedupDistinctHits),
			SourceCount: sources,
			DurationMS:  duration,
			Status:      status,
		}
		if err := s.history.Record(bg, record); err != nil {
			s.logger.Warn("ask_history_record_failed", "error", err)
		}
	}
	if s.usage != nil {
		event := domain.UsageEvent{
			Endpoint:   endpoint,
			Provider:   provider,
			Model:      model,
			Sources:    sources,
			DurationMS: duration,
		}
		if err := s.usage.PublishQueryAnswered(bg, event); err != nil {
			s.logger.Warn("usage_publish_failed", "error", err)
		}
	}
}
