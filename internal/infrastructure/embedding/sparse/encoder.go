// Package sparse implements the lexical leg of hybrid retrieval: a local,
// vocabulary-free BM25-style encoder over FNV-hashed tokens. Query and
// document sides must tokenize and hash identically or sparse scores are
// meaningless.
package sparse

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/toolscout/agent-tools-rag/internal/core/domain"
)

const (
	queryBM25K     = 1.2
	docBM25K       = 1.2
	titleBoost     = 1.5
	maxSparseTerms = 256
)

// Encoder is stateless and safe for concurrent use.
type Encoder struct{}

func NewEncoder() *Encoder { return &Encoder{} }

// EncodeQuery converts query text to the index's sparse vector format.
func (Encoder) EncodeQuery(text string) domain.SparseVector {
	termFreq := make(map[uint32]float64, 32)
	appendTermFreq(termFreq, tokenize(text), 1.0)
	return termFreqToVector(termFreq, queryBM25K)
}

// EncodeDocument weighs title tokens above body tokens. Used by the in-memory
// index and by seeding tools; the production index stores document vectors
// written at ingest time.
func (Encoder) EncodeDocument(body, title string) domain.SparseVector {
	termFreq := make(map[uint32]float64, 64)
	appendTermFreq(termFreq, tokenize(body), 1.0)
	appendTermFreq(termFreq, tokenize(title), titleBoost)
	return termFreqToVector(termFreq, docBM25K)
}

func appendTermFreq(dst map[uint32]float64, tokens []string, weight float64) {
	for _, token := range tokens {
		if token == "" {
			continue
		}
		dst[hashToken(token)] += weight
	}
}

func termFreqToVector(tf map[uint32]float64, k float64) domain.SparseVector {
	if len(tf) == 0 {
		return domain.SparseVector{}
	}
	indices := make([]uint32, 0, len(tf))
	for idx := range tf {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	if len(indices) > maxSparseTerms {
		indices = indices[:maxSparseTerms]
	}

	values := make([]float32, 0, len(indices))
	for _, idx := range indices {
		freq := tf[idx]
		weight := (freq * (k + 1.0)) / (freq + k)
		if math.IsNaN(weight) || math.IsInf(weight, 0) {
			weight = 0
		}
		values = append(values, float32(weight))
	}
	return domain.SparseVector{Indices: indices, Values: values}
}

// hashToken never returns 0 so a zero index can stay a sentinel.
func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum32()
	if sum == 0 {
		return 1
	}
	return sum
}

func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
