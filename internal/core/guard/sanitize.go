// Package guard validates and sanitizes free-form user input before it is
// embedded or interpolated into an LLM prompt. Defense is layered: pattern
// denylist, scrambled-word detection, byte-level cleanup, and escaping.
package guard

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/toolscout/agent-tools-rag/internal/core/domain"
)

// DefaultMaxQueryLength bounds raw query text.
const DefaultMaxQueryLength = 2000

// Denylist of injection phrasings, matched against whitespace-collapsed,
// lower-cased input. Ordered roughly by how often they show up in the wild.
var dangerousPatterns = []*regexp.Regexp{
	// Ignore / override instructions.
	regexp.MustCompile(`ignore\s+(any\s+)?(previous|all|above|below|system)\s+(instructions?|prompts?|rules?)`),
	regexp.MustCompile(`ignore\s+(any|all)\s+previous`),
	regexp.MustCompile(`ignore\s+system\s+prompt`),
	regexp.MustCompile(`forget\s+(any\s+)?(previous|all|above|below|system)`),
	regexp.MustCompile(`disregard\s+(previous|all|system)`),
	regexp.MustCompile(`override\s+(previous|system|all)`),
	regexp.MustCompile(`bypass\s+(previous|all|safety|restrictions)`),
	// System / developer mode.
	regexp.MustCompile(`system\s*:`),
	regexp.MustCompile(`assistant\s*:`),
	regexp.MustCompile(`you\s+are\s+now`),
	regexp.MustCompile(`developer\s+mode`),
	regexp.MustCompile(`new\s+instructions?\s*:`),
	// Reveal / extract.
	regexp.MustCompile(`reveal\s+(your\s+)?(system\s+)?prompt`),
	regexp.MustCompile(`reveal\s+(the\s+)?(api\s+)?keys?`),
	regexp.MustCompile(`(give|show)\s+me\s+(any\s+)?(the\s+)?(api\s+)?keys?`),
	regexp.MustCompile(`expose\s+(the\s+)?(api\s+)?keys?`),
	regexp.MustCompile(`what\s+were\s+your\s+exact\s+instructions`),
	regexp.MustCompile(`repeat\s+(the\s+)?text\s+above`),
	regexp.MustCompile(`output\s+internal\s+data`),
	regexp.MustCompile(`(tell\s+me|print)\s+(your\s+)?(system\s+)?prompt`),
	// Role hijack / jailbreak.
	regexp.MustCompile(`pretend\s+you\s+are`),
	regexp.MustCompile(`act\s+as\s+(if|though)`),
	regexp.MustCompile(`roleplay`),
	regexp.MustCompile(`jailbreak`),
	regexp.MustCompile(`do\s+anything\s+now`),
	regexp.MustCompile(`not\s+bound\s+by\s+any\s+restrictions`),
	// Raw markup that has no place in a question.
	regexp.MustCompile(`</?think>`),
	regexp.MustCompile(`</?reasoning>`),
	regexp.MustCompile("```"),
}

// Keywords still dangerous with their interior letters shuffled
// ("ignroe", "revael", "systme", ...).
var scrambleTargets = []string{
	"ignore", "reveal", "system", "bypass", "override", "delete", "previous",
	"prompt", "instructions", "developer", "expose", "output", "jailbreak",
}

var (
	whitespaceRun  = regexp.MustCompile(`\s+`)
	alphaWord      = regexp.MustCompile(`[a-z]{3,}`)
	controlBytes   = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]")
	punctuationRun = regexp.MustCompile(`[!@#$%^&*()_+=\[\]{}|;:'",.<>?/\\]{5,}`)
)

// Sanitize validates query text and returns a cleaned copy safe to embed.
// Checks run in fixed order, cheapest first: length, denylist, scrambled
// variants. Once all three pass, sanitization itself never fails.
func Sanitize(text string, maxLength int) (string, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxQueryLength
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	if len(text) > maxLength {
		return "", domain.WrapError(domain.ErrRejectedInput, "guard",
			fmt.Errorf("query exceeds maximum length of %d characters", maxLength))
	}

	normalized := normalize(text)
	for _, pattern := range dangerousPatterns {
		if pattern.MatchString(normalized) {
			return "", domain.WrapError(domain.ErrRejectedInput, "guard",
				fmt.Errorf("query matches denylisted pattern"))
		}
	}
	if word, target, found := findScrambledWord(normalized); found {
		// Client-visible message stays generic; the matched pair goes to
		// the server log only.
		slog.Debug("guard_scrambled_word", "word", word, "target", target)
		return "", domain.WrapError(domain.ErrRejectedInput, "guard",
			fmt.Errorf("query matches denylisted pattern"))
	}

	text = controlBytes.ReplaceAllString(text, "")
	text = punctuationRun.ReplaceAllString(text, "")
	return text, nil
}

// SanitizeString trims, truncates, and strips control bytes from a filter
// field. Unlike Sanitize it never rejects: filters are matched against
// payloads, not interpolated into instructions.
func SanitizeString(text string, maxLength int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if maxLength > 0 && len(text) > maxLength {
		text = text[:maxLength]
	}
	return controlBytes.ReplaceAllString(text, "")
}

func normalize(s string) string {
	return strings.ToLower(whitespaceRun.ReplaceAllString(strings.TrimSpace(s), " "))
}

// findScrambledWord reports the first alphabetic token that is an interior
// permutation of a denylisted keyword: same first and last letter, same
// length, same interior letter multiset, different ordering.
func findScrambledWord(normalized string) (word, target string, found bool) {
	for _, w := range alphaWord.FindAllString(normalized, -1) {
		for _, t := range scrambleTargets {
			if isScrambledVariant(w, t) {
				return w, t, true
			}
		}
	}
	return "", "", false
}

func isScrambledVariant(word, target string) bool {
	if len(word) < 3 || len(word) != len(target) {
		return false
	}
	if word == target {
		return false
	}
	if word[0] != target[0] || word[len(word)-1] != target[len(target)-1] {
		return false
	}
	return sortedInterior(word) == sortedInterior(target)
}

func sortedInterior(s string) string {
	interior := []byte(s[1 : len(s)-1])
	sort.Slice(interior, func(i, j int) bool { return interior[i] < interior[j] })
	return string(interior)
}
