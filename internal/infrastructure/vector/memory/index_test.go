package memory

import (
	"context"
	"testing"

	"github.com/toolscout/agent-tools-rag/internal/core/domain"
	"github.com/toolscout/agent-tools-rag/internal/infrastructure/embedding/sparse"
)

func seedIndex() *Index {
	enc := sparse.NewEncoder()
	idx := NewIndex()
	idx.Upsert(
		Point{
			ID:     "p1",
			Dense:  []float32{1, 0, 0},
			Sparse: enc.EncodeDocument("graph based orchestration with typed edges", "LangGraph intro"),
			Chunk:  domain.RetrievedChunk{Title: "LangGraph intro", Category: "orchestration", Language: "en", ChunkText: "graph based orchestration"},
		},
		Point{
			ID:     "p2",
			Dense:  []float32{0, 1, 0},
			Sparse: enc.EncodeDocument("role based crews of agents", "CrewAI notes"),
			Chunk:  domain.RetrievedChunk{Title: "CrewAI notes", Category: "orchestration", Language: "en", ChunkText: "role based crews"},
		},
		Point{
			ID:     "p3",
			Dense:  []float32{0, 0, 1},
			Sparse: enc.EncodeDocument("vector stores for agent memory", "Memory survey"),
			Chunk:  domain.RetrievedChunk{Title: "Memory survey", Category: "memory", Language: "ru", ChunkText: "vector stores"},
		},
	)
	return idx
}

func query(text string, dense []float32, filter domain.SearchFilter, limit int) domain.FusedQuery {
	return domain.FusedQuery{
		Dense:      dense,
		Sparse:     sparse.NewEncoder().EncodeQuery(text),
		Filter:     filter,
		FetchLimit: limit,
	}
}

func TestFusionQueryRanksLexicalAndSemanticAgreementFirst(t *testing.T) {
	idx := seedIndex()
	// Dense vector points at p1 and the query terms overlap p1's document.
	got, err := idx.FusionQuery(context.Background(), query("graph orchestration typed edges", []float32{1, 0.1, 0}, domain.SearchFilter{}, 10))
	if err != nil {
		t.Fatalf("fusion query: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected all points, got %d", len(got))
	}
	if got[0].PointID != "p1" {
		t.Fatalf("expected p1 first, got %s", got[0].PointID)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Score < got[i].Score {
			t.Fatalf("scores not descending at %d", i)
		}
	}
}

// Fusion must be a pure function of the two leg rankings: repeating the same
// query yields the identical order, and ties resolve deterministically.
func TestFusionQueryOrderIsStable(t *testing.T) {
	idx := seedIndex()
	q := query("agents", []float32{0.3, 0.3, 0.3}, domain.SearchFilter{}, 10)

	first, err := idx.FusionQuery(context.Background(), q)
	if err != nil {
		t.Fatalf("fusion query: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := idx.FusionQuery(context.Background(), q)
		if err != nil {
			t.Fatalf("fusion query: %v", err)
		}
		if len(again) != len(first) {
			t.Fatalf("result count changed between runs")
		}
		for j := range again {
			if again[j].PointID != first[j].PointID {
				t.Fatalf("run %d: order changed at %d: %s vs %s", i, j, again[j].PointID, first[j].PointID)
			}
		}
	}
}

func TestFusionQueryFilterAppliesToBothLegs(t *testing.T) {
	idx := seedIndex()
	got, err := idx.FusionQuery(context.Background(), query("vector stores graph", []float32{1, 0, 1}, domain.SearchFilter{Category: "memory"}, 10))
	if err != nil {
		t.Fatalf("fusion query: %v", err)
	}
	if len(got) != 1 || got[0].PointID != "p3" {
		t.Fatalf("filter must gate every leg, got %+v", got)
	}
}

func TestFusionQueryMinStarsAndTitleFilter(t *testing.T) {
	enc := sparse.NewEncoder()
	idx := NewIndex()
	three, five := 3, 5
	idx.Upsert(
		Point{ID: "low", Dense: []float32{1}, Sparse: enc.EncodeQuery("x"), Chunk: domain.RetrievedChunk{Title: "Alpha release", Stars: &three}},
		Point{ID: "high", Dense: []float32{1}, Sparse: enc.EncodeQuery("x"), Chunk: domain.RetrievedChunk{Title: "Beta release", Stars: &five}},
		Point{ID: "unrated", Dense: []float32{1}, Sparse: enc.EncodeQuery("x"), Chunk: domain.RetrievedChunk{Title: "Beta draft"}},
	)

	four := 4
	got, err := idx.FusionQuery(context.Background(), query("x", []float32{1}, domain.SearchFilter{MinStars: &four, TitleKeywords: "beta"}, 10))
	if err != nil {
		t.Fatalf("fusion query: %v", err)
	}
	if len(got) != 1 || got[0].PointID != "high" {
		t.Fatalf("expected only the rated beta point, got %+v", got)
	}
}

func TestFusionQueryHonorsFetchLimit(t *testing.T) {
	idx := seedIndex()
	got, err := idx.FusionQuery(context.Background(), query("agents", []float32{0.3, 0.3, 0.3}, domain.SearchFilter{}, 2))
	if err != nil {
		t.Fatalf("fusion query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("fetch limit ignored, got %d results", len(got))
	}
}

func TestUpsertReplacesByID(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(Point{ID: "a", Dense: []float32{1}, Chunk: domain.RetrievedChunk{Title: "old"}})
	idx.Upsert(Point{ID: "a", Dense: []float32{1}, Chunk: domain.RetrievedChunk{Title: "new"}})
	if idx.Len() != 1 {
		t.Fatalf("upsert must replace, len=%d", idx.Len())
	}
	got, err := idx.FusionQuery(context.Background(), domain.FusedQuery{Dense: []float32{1}, FetchLimit: 1})
	if err != nil {
		t.Fatalf("fusion query: %v", err)
	}
	if got[0].Title != "new" {
		t.Fatalf("expected replaced payload, got %q", got[0].Title)
	}
}
