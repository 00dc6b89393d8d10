package reasoning

import (
	"strings"
	"testing"

	"github.com/toolscout/agent-tools-rag/internal/core/domain"
)

func feedAll(t *testing.T, s *Stripper, chunks []string) string {
	t.Helper()
	var out strings.Builder
	for _, chunk := range chunks {
		for _, delta := range s.Feed(chunk) {
			out.WriteString(delta)
		}
	}
	for _, delta := range s.Flush() {
		out.WriteString(delta)
	}
	return out.String()
}

func TestStripperDropsReasoningUpToBoundary(t *testing.T) {
	chunks := []string{
		"Hmm, let me analyze the question. ",
		"The user is asking about orchestration frameworks, so I should look ",
		"through the provided articles and build a comprehensive answer. ",
		"The answer is X. It supports multi-agent workflows.",
	}
	got := feedAll(t, NewStripper(DefaultConfig()), chunks)
	if !strings.HasPrefix(got, "The answer is X.") {
		t.Fatalf("expected output to start with the answer, got %q", got)
	}
	if strings.Contains(strings.ToLower(got), "hmm,") || strings.Contains(strings.ToLower(got), "let me analyze") {
		t.Fatalf("reasoning leaked into output: %q", got)
	}
}

func TestStripperFastPathFlushesCleanStream(t *testing.T) {
	s := NewStripper(DefaultConfig())
	first := s.Feed("Agent frameworks fall into three broad families. ")
	if len(first) != 0 {
		t.Fatalf("expected buffering below fast-path threshold, got %v", first)
	}
	second := s.Feed("The most widely used are graph-based runtimes with typed edges.")
	if len(second) != 1 {
		t.Fatalf("expected one flushed delta, got %v", second)
	}
	want := "Agent frameworks fall into three broad families. " +
		"The most widely used are graph-based runtimes with typed edges."
	if second[0] != want {
		t.Fatalf("first delta must equal the full early buffer:\n got %q\nwant %q", second[0], want)
	}
	// After the fast path, chunks pass through untouched.
	if got := s.Feed("hmm, even marker-looking text"); len(got) != 1 || got[0] != "hmm, even marker-looking text" {
		t.Fatalf("answering state must forward chunks verbatim, got %v", got)
	}
}

func TestStripperHardCapFallsBackToSentenceBoundary(t *testing.T) {
	reasoning := "Hmm, " + strings.Repeat("the question needs careful thought and more context ", 16)
	answer := "Frameworks with native scheduling win here."
	got := feedAll(t, NewStripper(DefaultConfig()), []string{reasoning + ". " + answer})
	if strings.Contains(got, "Hmm,") {
		t.Fatalf("hard-cap fallback kept the reasoning prefix: %q", got)
	}
	if !strings.Contains(got, "Frameworks with native scheduling win here.") {
		t.Fatalf("answer lost by fallback split: %q", got)
	}
}

func TestStripperBoundaryOffsetWithMultibyteRunes(t *testing.T) {
	// U+0130 lowercases to a longer byte sequence; boundary offsets must be
	// computed against the original bytes, not a case-folded copy.
	reasoning := "Hmm, " + strings.Repeat("İ", 120) + " comprehensive answer. "
	got := feedAll(t, NewStripper(DefaultConfig()), []string{reasoning, "The answer is X."})
	if got != "The answer is X." {
		t.Fatalf("expected only the answer after the boundary, got %q", got)
	}
	if strings.Contains(got, "İ") || strings.Contains(got, "comprehensive answer.") {
		t.Fatalf("reasoning before the boundary leaked: %q", got)
	}
}

func TestStripReasoningBoundaryOffsetWithMultibyteRunes(t *testing.T) {
	in := "Hmm, " + strings.Repeat("İ", 120) + " comprehensive answer. The answer is X."
	if got := StripReasoning(in); got != "The answer is X." {
		t.Fatalf("StripReasoning() = %q, want %q", got, "The answer is X.")
	}
}

func TestStripperFlushRunsFullTextPass(t *testing.T) {
	// Stream ends while still confirmed-reasoning; no boundary ever arrives.
	got := feedAll(t, NewStripper(DefaultConfig()), []string{
		"Hmm, the user is asking about memory.\n\nUse a vector store with TTL eviction.",
	})
	if got != "Use a vector store with TTL eviction." {
		t.Fatalf("flush did not strip the reasoning paragraph: %q", got)
	}
}

func TestStripperShortCleanStreamFlushedVerbatim(t *testing.T) {
	got := feedAll(t, NewStripper(DefaultConfig()), []string{"Yes."})
	if got != "Yes." {
		t.Fatalf("short clean stream must survive unchanged, got %q", got)
	}
}

func TestStripReasoningFullText(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{
			name: "boundary phrase",
			in:   "Hmm, let me analyze the question carefully and build a comprehensive answer. The answer is X.",
			want: "The answer is X.",
		},
		{
			name: "think block",
			in:   "<think>secret chain of thought</think>LangGraph fits best.",
			want: "LangGraph fits best.",
		},
		{
			name: "final answer marker",
			in:   "I will analyze the options one by one. Final Answer: CrewAI.",
			want: "CrewAI.",
		},
		{
			name: "paragraph reasoning",
			in:   "Hmm, the user is asking about tools.\n\nAutoGen supports group chat.",
			want: "AutoGen supports group chat.",
		},
		{
			name: "clean text untouched",
			in:   "AutoGen supports group chat out of the box.",
			want: "AutoGen supports group chat out of the box.",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripReasoning(tc.in); got != tc.want {
				t.Fatalf("StripReasoning() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestWrapStreamConvertsAndTerminates(t *testing.T) {
	in := make(chan domain.GenerationEvent, 8)
	in <- domain.GenerationEvent{Type: domain.EventModelInfo, Model: "m1"}
	in <- domain.GenerationEvent{Type: domain.EventText, Delta: "Hmm, let me analyze this request against the articles and build a comprehensive answer. Use X."}
	in <- domain.GenerationEvent{Type: domain.EventTruncated, Reason: "length"}
	close(in)

	var events []domain.GenerationEvent
	for event := range WrapStream(in, DefaultConfig()) {
		events = append(events, event)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %v", len(events), events)
	}
	if events[0].Type != domain.EventModelInfo {
		t.Fatalf("model info must pass through first, got %v", events[0])
	}
	if events[1].Type != domain.EventText || events[1].Delta != "Use X." {
		t.Fatalf("expected stripped text event, got %+v", events[1])
	}
	if events[2].Type != domain.EventTruncated {
		t.Fatalf("terminal event lost, got %+v", events[2])
	}
}
