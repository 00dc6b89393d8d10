// Package httpadapter exposes the retrieval and ask pipelines over HTTP.
package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/toolscout/agent-tools-rag/internal/core/domain"
	"github.com/toolscout/agent-tools-rag/internal/core/usecase"
	"github.com/toolscout/agent-tools-rag/internal/observability/metrics"
)

const serviceName = "api"

type SearchService interface {
	Search(ctx context.Context, query domain.Query, mode domain.DedupMode) ([]domain.RetrievedChunk, error)
}

type AskService interface {
	Ask(ctx context.Context, input usecase.AskInput) (*domain.Answer, error)
	AskStream(ctx context.Context, input usecase.AskInput) ([]domain.RetrievedChunk, <-chan domain.GenerationEvent, error)
}

// HistoryReader is optional; without it /v1/history returns 404.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]domain.AskRecord, error)
}

type TrafficConfig struct {
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
}

type Router struct {
	search  SearchService
	ask     AskService
	history HistoryReader
	metrics *metrics.HTTPServerMetrics
}

func NewRouter(search SearchService, ask AskService, history HistoryReader, m *metrics.HTTPServerMetrics) *Router {
	return &Router{
		search:  search,
		ask:     ask,
		history: history,
		metrics: m,
	}
}

func (rt *Router) Handler(traffic TrafficConfig) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/search", rt.searchArticles)
	mux.HandleFunc("/v1/ask", rt.askQuestion)
	mux.HandleFunc("/v1/ask/stream", rt.askQuestionStream)
	mux.HandleFunc("/v1/history", rt.askHistory)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, traffic.MaxInFlight, traffic.BackpressureWait)
	handler = rateLimitMiddleware(handler, traffic.RateLimitRPS, traffic.RateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type searchRequest struct {
	QueryText string              `json:"query_text"`
	Limit     int                 `json:"limit"`
	DedupMode string              `json:"dedup_mode"`
	Filter    domain.SearchFilter `json:"filter"`
}

func (rt *Router) searchArticles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.QueryText) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query_text is required"})
		return
	}

	mode, ok := parseDedupMode(req.DedupMode)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "dedup_mode must be distinct_hits or unique_titles"})
		return
	}

	start := time.Now()
	results, err := rt.search.Search(r.Context(), domain.Query{
		Text:   req.QueryText,
		Filter: req.Filter,
		Limit:  req.Limit,
	}, mode)
	if err != nil {
		rt.writeError(w, "search", err)
		return
	}

	rt.observe("search", len(results), time.Since(start))
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
	})
}

type askRequest struct {
	QueryText string              `json:"query_text"`
	Limit     int                 `json:"limit"`
	Provider  string              `json:"provider"`
	Model     string              `json:"model"`
	Filter    domain.SearchFilter `json:"filter"`
}

func (req askRequest) toInput() usecase.AskInput {
	return usecase.AskInput{
		Query: domain.Query{
			Text:   req.QueryText,
			Filter: req.Filter,
			Limit:  req.Limit,
		},
		Provider: req.Provider,
		Model:    req.Model,
	}
}

func (rt *Router) askQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.QueryText) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query_text is required"})
		return
	}

	start := time.Now()
	answer, err := rt.ask.Ask(r.Context(), req.toInput())
	if err != nil {
		rt.writeError(w, "ask", err)
		return
	}

	rt.observe("ask", len(answer.Sources), time.Since(start))
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) askQuestionStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.QueryText) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query_text is required"})
		return
	}

	start := time.Now()
	sources, events, err := rt.ask.AskStream(r.Context(), req.toInput())
	if err != nil {
		rt.writeError(w, "ask_stream", err)
		return
	}

	outcome := rt.streamEvents(w, r.Context(), events)
	rt.observe("ask_stream", len(sources), time.Since(start))
	if rt.metrics != nil {
		rt.metrics.RecordStreamOutcome(serviceName, outcome)
	}
}

func (rt *Router) askHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "history is not configured"})
		return
	}

	records, err := rt.history.Recent(r.Context(), 50)
	if err != nil {
		rt.writeError(w, "history", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func parseDedupMode(raw string) (domain.DedupMode, bool) {
	switch raw {
	case "", string(domain.DedupDistinctHits):
		return domain.DedupDistinctHits, true
	case string(domain.DedupUniqueTitles):
		return domain.DedupUniqueTitles, true
	default:
		return "", false
	}
}

func (rt *Router) observe(endpoint string, sources int, duration time.Duration) {
	if rt.metrics != nil {
		rt.metrics.RecordRAGObservation(serviceName, endpoint, sources, duration)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
