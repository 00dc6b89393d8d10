package ports

import (
	"context"

	"github.com/toolscout/agent-tools-rag/internal/core/domain"
)

// DenseEmbedder computes the semantic query vector.
type DenseEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SparseEncoder computes the lexical query vector. Encoding is local and
// cheap but runs concurrently with the dense embedding anyway so neither
// blocks the other.
type SparseEncoder interface {
	EncodeQuery(text string) domain.SparseVector
}

// VectorIndex is the black-box fused retrieval service: two prefetch legs
// (dense, sparse) under the same filter, rank-fused server- or client-side,
// returned as one ranked candidate list.
type VectorIndex interface {
	FusionQuery(ctx context.Context, query domain.FusedQuery) ([]domain.RetrievedChunk, error)
}

// Generator is one LLM provider. Stream returns a lazy, finite, one-shot
// event channel; it is closed when the provider stream ends or after a
// terminal Error event.
type Generator interface {
	Generate(ctx context.Context, prompt string, cfg domain.ModelConfig) (answer, finishReason string, err error)
	Stream(ctx context.Context, prompt string, cfg domain.ModelConfig) (<-chan domain.GenerationEvent, error)
}

// UsageEvents publishes post-answer usage records; best effort.
type UsageEvents interface {
	PublishQueryAnswered(ctx context.Context, event domain.UsageEvent) error
}

// AskHistory persists the ask audit trail; best effort.
type AskHistory interface {
	Record(ctx context.Context, record domain.AskRecord) error
}
