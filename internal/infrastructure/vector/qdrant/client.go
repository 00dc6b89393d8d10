// Package qdrant implements the fused hybrid index against the Qdrant HTTP
// API. Both retrieval legs run inside a single points/query call with
// server-side reciprocal-rank fusion, so the service makes exactly one
// network round trip per search.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/toolscout/agent-tools-rag/internal/core/domain"
)

// Named vectors in the collection schema. Ingest writes both; queries must
// address them by the same names.
const (
	denseVectorName  = "Dense"
	sparseVectorName = "Sparse"
)

type Client struct {
	baseURL    string
	collection string
	apiKey     string
	httpClient *http.Client
}

func New(baseURL, collection, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// FusionQuery runs one RRF-fused query over the dense and sparse prefetch
// legs. The same filter applies to both legs. Results come back ranked by
// fused score, candidates only; deduplication happens upstream.
func (c *Client) FusionQuery(ctx context.Context, query domain.FusedQuery) ([]domain.RetrievedChunk, error) {
	filter := buildFilter(query.Filter)

	prefetch := make([]map[string]any, 0, 2)
	denseLeg := map[string]any{
		"query": query.Dense,
		"using": denseVectorName,
		"limit": query.FetchLimit,
	}
	if filter != nil {
		denseLeg["filter"] = filter
	}
	prefetch = append(prefetch, denseLeg)

	if !query.Sparse.Empty() {
		sparseLeg := map[string]any{
			"query": map[string]any{
				"indices": query.Sparse.Indices,
				"values":  query.Sparse.Values,
			},
			"using": sparseVectorName,
			"limit": query.FetchLimit,
		}
		if filter != nil {
			sparseLeg["filter"] = filter
		}
		prefetch = append(prefetch, sparseLeg)
	}

	reqBody := map[string]any{
		"prefetch":     prefetch,
		"query":        map[string]any{"fusion": "rrf"},
		"limit":        query.FetchLimit,
		"with_payload": true,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal query body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/query", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant query request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(raw)); msg != "" {
			return nil, fmt.Errorf("qdrant query status: %s: %s", resp.Status, msg)
		}
		return nil, fmt.Errorf("qdrant query status: %s", resp.Status)
	}

	var queryResp struct {
		Result struct {
			Points []struct {
				ID      any            `json:"id"`
				Score   float64        `json:"score"`
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&queryResp); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}

	out := make([]domain.RetrievedChunk, 0, len(queryResp.Result.Points))
	for _, p := range queryResp.Result.Points {
		chunk := chunkFromPayload(p.Payload)
		chunk.PointID = pointIDString(p.ID)
		chunk.Score = p.Score
		out = append(out, chunk)
	}
	return out, nil
}

// buildFilter maps the search filter onto Qdrant payload conditions. All
// conditions are conjunctive. Returns nil when nothing is filtered.
func buildFilter(f domain.SearchFilter) map[string]any {
	if f.Empty() {
		return nil
	}
	must := make([]map[string]any, 0, 7)

	addMatch := func(key, value string) {
		if value != "" {
			must = append(must, map[string]any{
				"key":   key,
				"match": map[string]any{"value": value},
			})
		}
	}
	addMatch("feed_author", f.FeedAuthor)
	addMatch("feed_name", f.FeedName)
	addMatch("category", f.Category)
	addMatch("language", f.Language)
	addMatch("source_type", f.SourceType)

	if f.TitleKeywords != "" {
		// Full-text match over the title index, not exact equality.
		must = append(must, map[string]any{
			"key":   "title",
			"match": map[string]any{"text": f.TitleKeywords},
		})
	}
	if f.MinStars != nil {
		must = append(must, map[string]any{
			"key":   "stars",
			"range": map[string]any{"gte": *f.MinStars},
		})
	}

	return map[string]any{"must": must}
}

// chunkFromPayload maps a point payload to the domain shape. Newer payloads
// carry source_name/source_author/authors; older ones feed_name/feed_author/
// article_author. Both generations are read and both sets of fields are
// populated so clients on either schema keep working.
func chunkFromPayload(payload map[string]any) domain.RetrievedChunk {
	chunk := domain.RetrievedChunk{
		Title:      payloadString(payload, "title"),
		URL:        payloadString(payload, "url"),
		ChunkText:  payloadString(payload, "chunk_text"),
		Category:   payloadString(payload, "category"),
		Language:   payloadString(payload, "language"),
		SourceType: payloadString(payload, "source_type"),
		Features:   payloadStrings(payload, "features"),
	}

	chunk.SourceName = payloadString(payload, "source_name")
	if chunk.SourceName == "" {
		chunk.SourceName = payloadString(payload, "feed_name")
	}
	chunk.SourceAuthor = payloadString(payload, "source_author")
	if chunk.SourceAuthor == "" {
		chunk.SourceAuthor = payloadString(payload, "feed_author")
	}
	chunk.Authors = payloadStrings(payload, "authors")
	if len(chunk.Authors) == 0 {
		chunk.Authors = payloadStrings(payload, "article_author")
	}
	chunk.FeedName = chunk.SourceName
	chunk.FeedAuthor = chunk.SourceAuthor
	chunk.ArticleAuthor = chunk.Authors

	if stars, ok := payloadInt(payload, "stars"); ok {
		chunk.Stars = &stars
	}
	return chunk
}

func pointIDString(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		// JSON numbers decode as float64; qdrant integer ids are whole.
		return fmt.Sprintf("%d", int64(v))
	default:
		return fmt.Sprintf("%v", v)
	}
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func payloadStrings(payload map[string]any, key string) []string {
	v, ok := payload[key]
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if list == "" {
			return nil
		}
		return []string{list}
	default:
		return nil
	}
}

func payloadInt(payload map[string]any, key string) (int, bool) {
	v, ok := payload[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}
