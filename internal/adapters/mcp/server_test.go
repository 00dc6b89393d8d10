package mcpadapter

import (
	"errors"
	"strings"
	"testing"

	"github.com/toolscout/agent-tools-rag/internal/core/domain"
)

func TestFormatAnswerIncludesSources(t *testing.T) {
	out := formatAnswer(&domain.Answer{
		Text:     "Use LangGraph for stateful agents.",
		Provider: "openrouter",
		Model:    "qwen/qwen3",
		Sources: []domain.RetrievedChunk{
			{Title: "Agent orchestration survey", URL: "https://example.com/a"},
			{Title: "LangGraph deep dive"},
		},
	})

	if !strings.Contains(out, "Use LangGraph for stateful agents.") {
		t.Errorf("answer text missing: %q", out)
	}
	if !strings.Contains(out, "openrouter/qwen/qwen3") {
		t.Errorf("model attribution missing: %q", out)
	}
	if !strings.Contains(out, "1. Agent orchestration survey (https://example.com/a)") {
		t.Errorf("source with URL missing: %q", out)
	}
	if !strings.Contains(out, "2. LangGraph deep dive") {
		t.Errorf("source without URL missing: %q", out)
	}
}

func TestPublicToolErrorHidesInternals(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{domain.WrapError(domain.ErrRejectedInput, "guard", errors.New("query too long")), "query too long"},
		{domain.WrapError(domain.ErrConfiguration, "anthropic", errors.New("api key is required")), "provider is not configured"},
		{domain.WrapError(domain.ErrRetrievalUnavailable, "qdrant", errors.New("dial tcp: refused")), "retrieval backend is unavailable"},
		{domain.WrapError(domain.ErrGenerationFailure, "provider", errors.New("401 key=sk-9")), "generation provider failed"},
		{errors.New("boom"), "internal error"},
	}
	for _, tc := range cases {
		got := publicToolError(tc.err)
		if !strings.Contains(got, tc.want) {
			t.Errorf("err %v: got %q, want substring %q", tc.err, got, tc.want)
		}
		if strings.Contains(got, "sk-9") || strings.Contains(got, "dial tcp") {
			t.Errorf("internal detail leaked: %q", got)
		}
	}
}
