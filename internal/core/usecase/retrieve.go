package usecase

import (
	"log/slog"

	"golang.org/x/sync/errgroup"

	"context"

	"github.com/toolscout/agent-tools-rag/internal/core/domain"
	"github.com/toolscout/agent-tools-rag/internal/core/guard"
	"github.com/toolscout/agent-tools-rag/internal/core/ports"
)

const (
	minResultLimit     = 1
	maxResultLimit     = 50
	defaultResultLimit = 5
)

// Per-field bounds for filter strings, matching the ingest payload schema.
const (
	maxAuthorFilterLen   = 200
	maxNameFilterLen     = 200
	maxKeywordsFilterLen = 500
	maxCategoryFilterLen = 100
	maxLanguageFilterLen = 50
	maxKindFilterLen     = 50
)

type RetrieverConfig struct {
	MaxQueryLength int
	// Over-fetch factors absorbing later deduplication. Title collisions are
	// far more frequent than point-id collisions, hence the smaller factor.
	FetchFactorIDs    int
	FetchFactorTitles int
}

func (c RetrieverConfig) normalize() RetrieverConfig {
	out := c
	if out.MaxQueryLength <= 0 {
		out.MaxQueryLength = guard.DefaultMaxQueryLength
	}
	if out.FetchFactorIDs <= 0 {
		out.FetchFactorIDs = 100
	}
	if out.FetchFactorTitles <= 0 {
		out.FetchFactorTitles = 50
	}
	return out
}

// Retriever runs the hybrid dense+sparse retrieval pipeline: sanitize,
// embed both legs concurrently, one fused index query, dedup, map.
// Stateless across requests.
type Retriever struct {
	dense  ports.DenseEmbedder
	sparse ports.SparseEncoder
	index  ports.VectorIndex
	cfg    RetrieverConfig
	logger *slog.Logger
}

func NewRetriever(
	dense ports.DenseEmbedder,
	sparse ports.SparseEncoder,
	index ports.VectorIndex,
	cfg RetrieverConfig,
	logger *slog.Logger,
) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		dense:  dense,
		sparse: sparse,
		index:  index,
		cfg:    cfg.normalize(),
		logger: logger,
	}
}

// Search returns up to query.Limit deduplicated chunks for the given mode.
// An empty result is a valid outcome, not an error.
func (r *Retriever) Search(ctx context.Context, query domain.Query, mode domain.DedupMode) ([]domain.RetrievedChunk, error) {
	text, err := guard.Sanitize(query.Text, r.cfg.MaxQueryLength)
	if err != nil {
		return nil, err
	}

	filter := sanitizeFilter(query.Filter)
	limit := clampLimit(query.Limit)

	factor := r.cfg.FetchFactorIDs
	if mode == domain.DedupUniqueTitles {
		factor = r.cfg.FetchFactorTitles
	}
	fetchLimit := limit * factor

	var (
		denseVec  []float32
		sparseVec domain.SparseVector
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		vec, err := r.dense.EmbedQuery(groupCtx, text)
		if err != nil {
			return err
		}
		denseVec = vec
		return nil
	})
	group.Go(func() error {
		sparseVec = r.sparse.EncodeQuery(text)
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "embed query", err)
	}

	candidates, err := r.index.FusionQuery(ctx, domain.FusedQuery{
		Dense:      denseVec,
		Sparse:     sparseVec,
		Filter:     filter,
		FetchLimit: fetchLimit,
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "fusion query", err)
	}

	results := dedupe(candidates, mode, limit)
	for i := range results {
		// Index payloads come from crawled pages; markup never reaches the
		// prompt or the client.
		results[i].ChunkText = guard.SanitizeHTML(results[i].ChunkText)
	}
	r.logger.Debug("retrieval_done",
		"mode", string(mode),
		"candidates", len(candidates),
		"results", len(results),
	)
	return results, nil
}

func clampLimit(limit int) int {
	if limit == 0 {
		return defaultResultLimit
	}
	if limit < minResultLimit {
		return minResultLimit
	}
	if limit > maxResultLimit {
		return maxResultLimit
	}
	return limit
}

func sanitizeFilter(f domain.SearchFilter) domain.SearchFilter {
	out := domain.SearchFilter{
		FeedAuthor:    guard.SanitizeString(f.FeedAuthor, maxAuthorFilterLen),
		FeedName:      guard.SanitizeString(f.FeedName, maxNameFilterLen),
		TitleKeywords: guard.SanitizeString(f.TitleKeywords, maxKeywordsFilterLen),
		Category:      guard.SanitizeString(f.Category, maxCategoryFilterLen),
		Language:      guard.SanitizeString(f.Language, maxLanguageFilterLen),
		SourceType:    guard.SanitizeString(f.SourceType, maxKindFilterLen),
	}
	if f.MinStars != nil && *f.MinStars >= 0 {
		stars := *f.MinStars
		out.MinStars = &stars
	}
	return out
}

// dedupe walks the fused candidate list in ranked order. Distinct-hit mode
// drops repeated point ids over a full pass, then truncates; unique-title
// mode drops repeated and empty titles and stops as soon as the limit is
// reached.
func dedupe(candidates []domain.RetrievedChunk, mode domain.DedupMode, limit int) []domain.RetrievedChunk {
	if mode == domain.DedupUniqueTitles {
		seen := make(map[string]struct{}, limit)
		out := make([]domain.RetrievedChunk, 0, limit)
		for _, c := range candidates {
			if c.Title == "" {
				continue
			}
			if _, dup := seen[c.Title]; dup {
				continue
			}
			seen[c.Title] = struct{}{}
			out = append(out, c)
			if len(out) >= limit {
				break
			}
		}
		return out
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]domain.RetrievedChunk, 0, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c.PointID]; dup {
			continue
		}
		seen[c.PointID] = struct{}{}
		out = append(out, c)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
