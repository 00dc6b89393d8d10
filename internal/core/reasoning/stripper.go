// Package reasoning removes leaked chain-of-thought from model output.
// Some models prepend deliberation ("Hmm, the user is asking...") before the
// real answer; the stripper detects and drops it, both over full responses
// and incrementally over a token stream.
package reasoning

import (
	"regexp"
	"strings"

	"github.com/toolscout/agent-tools-rag/internal/core/domain"
)

// Config holds the detection policy. The thresholds and phrase lists are
// tuned against observed model output, not invariants; adjust per provider.
type Config struct {
	// MarkerWindow is how many leading buffered characters are inspected for
	// deliberation markers.
	MarkerWindow int
	// FastPath is the buffered length after which, with no marker found, the
	// stream is declared clean and the buffer flushed.
	FastPath int
	// HardCap bounds buffering while waiting for a boundary phrase.
	HardCap int
	// FallbackMinOffset is the earliest position considered by the
	// sentence-boundary fallback split.
	FallbackMinOffset int
	// FallbackDrop is the fixed prefix length dropped when no boundary of any
	// kind is found before HardCap.
	FallbackDrop int

	Markers    []string
	Boundaries []string
}

func DefaultConfig() Config {
	return Config{
		MarkerWindow:      200,
		FastPath:          100,
		HardCap:           800,
		FallbackMinOffset: 200,
		FallbackDrop:      400,
		Markers: []string{
			"hmm,",
			"hmm ",
			"let me analyze",
			"let me think",
			"let me consider",
			"i need to analyze",
			"the user is asking",
			"i will analyze",
		},
		Boundaries: []string{
			"comprehensive answer.",
		},
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	out := c
	if out.MarkerWindow <= 0 {
		out.MarkerWindow = def.MarkerWindow
	}
	if out.FastPath <= 0 {
		out.FastPath = def.FastPath
	}
	if out.HardCap <= 0 {
		out.HardCap = def.HardCap
	}
	if out.FallbackMinOffset <= 0 {
		out.FallbackMinOffset = def.FallbackMinOffset
	}
	if out.FallbackDrop <= 0 {
		out.FallbackDrop = def.FallbackDrop
	}
	if len(out.Markers) == 0 {
		out.Markers = def.Markers
	}
	if len(out.Boundaries) == 0 {
		out.Boundaries = def.Boundaries
	}
	return out
}

type state int

const (
	stateBuffering state = iota
	stateReasoningConfirmed
	stateAnswering
)

// Stripper is the streaming variant: a request-scoped state machine fed with
// partial chunks. Transitions are monotonic:
// Buffering -> ReasoningConfirmed -> Answering, or Buffering -> Answering.
type Stripper struct {
	cfg   Config
	state state
	buf   strings.Builder
}

func NewStripper(cfg Config) *Stripper {
	return &Stripper{cfg: cfg.normalize()}
}

// Feed ingests one provider chunk and returns the deltas safe to emit now.
func (s *Stripper) Feed(chunk string) []string {
	if chunk == "" {
		return nil
	}
	if s.state == stateAnswering {
		return []string{chunk}
	}

	s.buf.WriteString(chunk)
	text := s.buf.String()
	lower := asciiLower(text)

	if s.state == stateBuffering {
		window := lower
		if len(window) > s.cfg.MarkerWindow {
			window = window[:s.cfg.MarkerWindow]
		}
		if containsAny(window, s.cfg.Markers) {
			s.state = stateReasoningConfirmed
		} else if len(text) > s.cfg.FastPath {
			// Clean stream: flush everything buffered so far as one delta.
			s.state = stateAnswering
			s.buf.Reset()
			return []string{text}
		} else {
			return nil
		}
	}

	if end, ok := boundaryEnd(lower, s.cfg.Boundaries); ok {
		s.state = stateAnswering
		s.buf.Reset()
		if remainder := strings.TrimSpace(text[end:]); remainder != "" {
			return []string{remainder}
		}
		return nil
	}

	if len(text) > s.cfg.HardCap {
		// Bound latency and memory: give up waiting for an explicit boundary.
		s.state = stateAnswering
		s.buf.Reset()
		if remainder := fallbackSplit(text, s.cfg); remainder != "" {
			return []string{remainder}
		}
		return nil
	}
	return nil
}

// Flush handles streams that end before Answering was reached: the whole
// buffer gets the full-text treatment once.
func (s *Stripper) Flush() []string {
	if s.state == stateAnswering || s.buf.Len() == 0 {
		return nil
	}
	text := s.buf.String()
	s.buf.Reset()
	s.state = stateAnswering
	if cleaned := stripText(text, s.cfg); strings.TrimSpace(cleaned) != "" {
		return []string{cleaned}
	}
	return nil
}

// WrapStream applies a request-scoped Stripper to a generation event stream.
// Control events pass through; text deltas are rewritten. A terminal event
// or channel close flushes whatever detection left in the buffer.
func WrapStream(in <-chan domain.GenerationEvent, cfg Config) <-chan domain.GenerationEvent {
	out := make(chan domain.GenerationEvent)
	go func() {
		defer close(out)
		stripper := NewStripper(cfg)
		emit := func(deltas []string) {
			for _, delta := range deltas {
				out <- domain.GenerationEvent{Type: domain.EventText, Delta: delta}
			}
		}
		for event := range in {
			switch event.Type {
			case domain.EventText:
				emit(stripper.Feed(event.Delta))
			case domain.EventError, domain.EventTruncated:
				emit(stripper.Flush())
				out <- event
			default:
				out <- event
			}
		}
		emit(stripper.Flush())
	}()
	return out
}

var (
	thinkBlock     = regexp.MustCompile(`(?is)<think>.*?</think>`)
	reasoningBlock = regexp.MustCompile(`(?is)<reasoning>.*?</reasoning>`)
	answerMarker   = regexp.MustCompile(`(?is)(?:final answer:|\*\*answer:\*\*|## answer|answer:)\s*(.+)`)
	sentenceSplit  = regexp.MustCompile(`[.!?]\s+[A-Z]`)
	fallbackSent   = regexp.MustCompile(`\.\s+([A-Z][a-z]{2,})`)
)

// StripReasoning runs the full-text pass with default policy. Used for
// blocking (non-streaming) responses.
func StripReasoning(content string) string {
	return stripText(content, DefaultConfig().normalize())
}

func stripText(content string, cfg Config) string {
	if content == "" {
		return content
	}

	content = thinkBlock.ReplaceAllString(content, "")
	content = reasoningBlock.ReplaceAllString(content, "")

	if m := answerMarker.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}

	lower := asciiLower(strings.TrimSpace(content))
	window := lower
	if len(window) > 300 {
		window = window[:300]
	}
	if !containsAny(window, cfg.Markers) {
		return strings.TrimSpace(content)
	}

	// Reasoning usually forms the first paragraph.
	if head, tail, found := strings.Cut(content, "\n\n"); found {
		if containsAny(asciiLower(head), cfg.Markers) {
			if rest := strings.TrimSpace(tail); rest != "" {
				return rest
			}
		}
	}

	if end, ok := boundaryEnd(asciiLower(content), cfg.Boundaries); ok {
		if rest := strings.TrimSpace(content[end:]); rest != "" {
			return rest
		}
	}

	if rest, ok := splitAfterReasoningSentences(content, cfg.Markers); ok {
		return rest
	}

	return strings.TrimSpace(fallbackSplit(content, cfg))
}

// splitAfterReasoningSentences walks sentence boundaries and returns the text
// from the first sentence that follows at least one marker-bearing sentence.
func splitAfterReasoningSentences(content string, markers []string) (string, bool) {
	starts := []int{0}
	for _, loc := range sentenceSplit.FindAllStringIndex(content, -1) {
		starts = append(starts, loc[1]-1)
	}
	if len(starts) < 2 {
		return "", false
	}

	reasoningSeen := false
	for i, start := range starts {
		end := len(content)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		sentence := asciiLower(content[start:end])
		if containsAny(sentence, markers) {
			reasoningSeen = true
			continue
		}
		if reasoningSeen {
			return strings.TrimSpace(content[start:]), true
		}
	}
	return "", false
}

// fallbackSplit drops a reasoning prefix when no explicit boundary exists:
// first a sentence boundary past the minimum offset, then a fixed-length cut.
func fallbackSplit(content string, cfg Config) string {
	if len(content) > cfg.FallbackMinOffset {
		tail := content[cfg.FallbackMinOffset:]
		if loc := fallbackSent.FindStringSubmatchIndex(tail); loc != nil {
			return strings.TrimSpace(tail[loc[2]:])
		}
	}
	if len(content) > cfg.FallbackDrop {
		return strings.TrimSpace(content[cfg.FallbackDrop:])
	}
	return strings.TrimSpace(content)
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

// boundaryEnd expects text folded by asciiLower, never strings.ToLower:
// full Unicode folding can change byte lengths (U+0130 lowers to 3 bytes),
// which would make the returned offset invalid in the original text.
func boundaryEnd(lower string, boundaries []string) (int, bool) {
	for _, boundary := range boundaries {
		if idx := strings.Index(lower, boundary); idx >= 0 {
			return idx + len(boundary), true
		}
	}
	return 0, false
}

// asciiLower folds only A-Z, byte for byte, so every offset in the result is
// valid in the input. Markers and boundary phrases are ASCII.
func asciiLower(s string) string {
	var b []byte
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 'A' && c <= 'Z' {
			if b == nil {
				b = []byte(s)
			}
			b[i] = c + ('a' - 'A')
		}
	}
	if b == nil {
		return s
	}
	return string(b)
}
