package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/toolscout/agent-tools-rag/internal/core/domain"
)

func testClient(t *testing.T, url string, strip bool) *Client {
	t.Helper()
	c, err := New(Options{
		Name:           "openrouter",
		BaseURL:        url,
		APIKey:         "k",
		Headers:        map[string]string{"X-Title": "agent-tools-rag"},
		StripReasoning: strip,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(Options{Name: "openrouter", BaseURL: "http://x"}); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("missing api key must be a configuration error, got %v", err)
	}
	if _, err := New(Options{Name: "openrouter", APIKey: "k"}); !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("missing base url must be a configuration error, got %v", err)
	}
}

func TestGenerateSendsChatCompletionRequest(t *testing.T) {
	var gotReq chatRequest
	var gotAuth, gotTitle string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotTitle = r.Header.Get("X-Title")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"LangGraph."},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	answer, finish, err := testClient(t, server.URL, false).Generate(context.Background(), "prompt text", domain.ModelConfig{
		Model:               "deepseek/deepseek-chat",
		Temperature:         0.6,
		MaxCompletionTokens: 2000,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if answer != "LangGraph." || finish != "stop" {
		t.Fatalf("unexpected result %q/%q", answer, finish)
	}
	if gotAuth != "Bearer k" || gotTitle != "agent-tools-rag" {
		t.Errorf("headers not sent: auth=%q title=%q", gotAuth, gotTitle)
	}
	if gotReq.Model != "deepseek/deepseek-chat" || gotReq.Stream || len(gotReq.Messages) != 1 {
		t.Errorf("unexpected request %+v", gotReq)
	}
}

func TestGenerateStripsReasoningWhenEnabled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"<think>musing</think>Use CrewAI."},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	answer, _, err := testClient(t, server.URL, true).Generate(context.Background(), "p", domain.ModelConfig{Model: "m"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if answer != "Use CrewAI." {
		t.Fatalf("reasoning not stripped: %q", answer)
	}
}

func TestGenerateSurfacesStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid key"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	_, _, err := testClient(t, server.URL, false).Generate(context.Background(), "p", domain.ModelConfig{Model: "m"})
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 status error, got %v", err)
	}
}

func sseBody(frames ...string) string {
	var b strings.Builder
	for _, frame := range frames {
		b.WriteString("data: " + frame + "\n\n")
	}
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

func TestStreamEmitsModelInfoDeltasAndTruncation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(sseBody(
			`{"model":"qwen/qwen3","choices":[{"delta":{"content":"Use "}}]}`,
			`{"model":"qwen/qwen3","choices":[{"delta":{"content":"LangGraph."}}]}`,
			`{"choices":[{"delta":{},"finish_reason":"length"}]}`,
		)))
	}))
	defer server.Close()

	events, err := testClient(t, server.URL, false).Stream(context.Background(), "p", domain.ModelConfig{Model: "m"})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}

	var got []domain.GenerationEvent
	for event := range events {
		got = append(got, event)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 events, got %d: %+v", len(got), got)
	}
	if got[0].Type != domain.EventModelInfo || got[0].Model != "qwen/qwen3" {
		t.Fatalf("model info must come first and once, got %+v", got[0])
	}
	if got[1].Delta != "Use " || got[2].Delta != "LangGraph." {
		t.Fatalf("deltas wrong: %+v", got)
	}
	if got[3].Type != domain.EventTruncated || got[3].Reason != "length" {
		t.Fatalf("length finish must map to truncation, got %+v", got[3])
	}
}

func TestStreamErrorFrameIsTerminalAndGeneric(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sseBody(
			`{"model":"m","choices":[{"delta":{"content":"partial"}}]}`,
			`{"error":{"message":"secret internal detail: key sk-123"}}`,
			`{"choices":[{"delta":{"content":"never delivered"}}]}`,
		)))
	}))
	defer server.Close()

	events, err := testClient(t, server.URL, false).Stream(context.Background(), "p", domain.ModelConfig{Model: "m"})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}

	var got []domain.GenerationEvent
	for event := range events {
		got = append(got, event)
	}
	last := got[len(got)-1]
	if last.Type != domain.EventError {
		t.Fatalf("stream must end with an error event, got %+v", got)
	}
	if strings.Contains(last.Reason, "sk-123") {
		t.Fatalf("provider error detail must not leak: %+v", last)
	}
	for _, event := range got {
		if event.Delta == "never delivered" {
			t.Fatalf("no events may follow a terminal error")
		}
	}
}

func TestStreamAuthFailureReturnsSynchronously(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()

	if _, err := testClient(t, server.URL, false).Stream(context.Background(), "p", domain.ModelConfig{Model: "m"}); err == nil {
		t.Fatal("expected synchronous error before any events")
	}
}

func TestStreamWithStrippingRemovesReasoningPrefix(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sseBody(
			`{"model":"m","choices":[{"delta":{"content":"Hmm, the user is asking about memory systems and I should build a comprehensive answer. "}}]}`,
			`{"choices":[{"delta":{"content":"Use a vector store."}}]}`,
		)))
	}))
	defer server.Close()

	events, err := testClient(t, server.URL, true).Stream(context.Background(), "p", domain.ModelConfig{Model: "m"})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	var text strings.Builder
	for event := range events {
		if event.Type == domain.EventText {
			text.WriteString(event.Delta)
		}
	}
	if strings.Contains(text.String(), "Hmm,") {
		t.Fatalf("reasoning leaked through the stream: %q", text.String())
	}
	if !strings.Contains(text.String(), "Use a vector store.") {
		t.Fatalf("answer lost: %q", text.String())
	}
}
