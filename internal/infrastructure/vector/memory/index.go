// Package memory is an in-process implementation of the fused vector index.
// It mirrors the production index's contract, including reciprocal-rank
// fusion over the dense and sparse legs, and backs local development and
// tests without a running Qdrant.
package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/toolscout/agent-tools-rag/internal/core/domain"
)

// rrfK is the standard reciprocal-rank-fusion dampening constant.
const rrfK = 60.0

// Point is one indexed chunk with both of its vectors.
type Point struct {
	ID     string
	Dense  []float32
	Sparse domain.SparseVector
	Chunk  domain.RetrievedChunk
}

type Index struct {
	mu     sync.RWMutex
	points []Point
}

func NewIndex() *Index { return &Index{} }

func (idx *Index) Upsert(points ...Point) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, p := range points {
		replaced := false
		for i := range idx.points {
			if idx.points[i].ID == p.ID {
				idx.points[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			idx.points = append(idx.points, p)
		}
	}
}

func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.points)
}

// FusionQuery ranks the filtered points independently by dense and sparse
// similarity, fuses the two rankings with RRF, and returns up to FetchLimit
// candidates. Ties break on point id so ordering is deterministic.
func (idx *Index) FusionQuery(ctx context.Context, query domain.FusedQuery) ([]domain.RetrievedChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx.mu.RLock()
	matched := make([]Point, 0, len(idx.points))
	for _, p := range idx.points {
		if matchesFilter(p.Chunk, query.Filter) {
			matched = append(matched, p)
		}
	}
	idx.mu.RUnlock()

	if len(matched) == 0 {
		return nil, nil
	}

	denseRanking := rankBy(matched, func(p Point) float64 {
		return cosineSimilarity(query.Dense, p.Dense)
	})
	sparseRanking := rankBy(matched, func(p Point) float64 {
		return sparseDot(query.Sparse, p.Sparse)
	})

	fused := make(map[string]float64, len(matched))
	for rank, id := range denseRanking {
		fused[id] += 1.0 / (rrfK + float64(rank+1))
	}
	for rank, id := range sparseRanking {
		fused[id] += 1.0 / (rrfK + float64(rank+1))
	}

	byID := make(map[string]Point, len(matched))
	for _, p := range matched {
		byID[p.ID] = p
	}

	ids := make([]string, 0, len(fused))
	for id := range fused {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		si, sj := fused[ids[i]], fused[ids[j]]
		if si != sj {
			return si > sj
		}
		return ids[i] < ids[j]
	})

	limit := query.FetchLimit
	if limit <= 0 || limit > len(ids) {
		limit = len(ids)
	}

	out := make([]domain.RetrievedChunk, 0, limit)
	for _, id := range ids[:limit] {
		chunk := byID[id].Chunk
		chunk.PointID = id
		chunk.Score = fused[id]
		out = append(out, chunk)
	}
	return out, nil
}

// rankBy returns point ids ordered by descending score, id ascending on ties.
func rankBy(points []Point, score func(Point) float64) []string {
	type scored struct {
		id    string
		score float64
	}
	list := make([]scored, 0, len(points))
	for _, p := range points {
		list = append(list, scored{id: p.ID, score: score(p)})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].score != list[j].score {
			return list[i].score > list[j].score
		}
		return list[i].id < list[j].id
	})
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, s.id)
	}
	return out
}

func matchesFilter(chunk domain.RetrievedChunk, filter domain.SearchFilter) bool {
	if filter.Empty() {
		return true
	}
	if filter.FeedAuthor != "" && chunk.SourceAuthor != filter.FeedAuthor && chunk.FeedAuthor != filter.FeedAuthor {
		return false
	}
	if filter.FeedName != "" && chunk.SourceName != filter.FeedName && chunk.FeedName != filter.FeedName {
		return false
	}
	if filter.Category != "" && chunk.Category != filter.Category {
		return false
	}
	if filter.Language != "" && chunk.Language != filter.Language {
		return false
	}
	if filter.SourceType != "" && chunk.SourceType != filter.SourceType {
		return false
	}
	if filter.MinStars != nil {
		if chunk.Stars == nil || *chunk.Stars < *filter.MinStars {
			return false
		}
	}
	if filter.TitleKeywords != "" {
		title := strings.ToLower(chunk.Title)
		for _, word := range strings.Fields(strings.ToLower(filter.TitleKeywords)) {
			if !strings.Contains(title, word) {
				return false
			}
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sparseDot exploits both index slices being sorted ascending.
func sparseDot(a, b domain.SparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(a.Indices) && j < len(b.Indices) {
		switch {
		case a.Indices[i] == b.Indices[j]:
			sum += float64(a.Values[i]) * float64(b.Values[j])
			i++
			j++
		case a.Indices[i] < b.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}
