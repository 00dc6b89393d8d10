package sparse

import "testing"

func TestEncodeQueryDeterministic(t *testing.T) {
	enc := NewEncoder()
	v1 := enc.EncodeQuery("memory options for agent-42")
	v2 := enc.EncodeQuery("memory options for agent-42")
	if len(v1.Indices) != len(v2.Indices) || len(v1.Values) != len(v2.Values) {
		t.Fatalf("vector sizes mismatch: v1=%d/%d v2=%d/%d", len(v1.Indices), len(v1.Values), len(v2.Indices), len(v2.Values))
	}
	for i := range v1.Indices {
		if v1.Indices[i] != v2.Indices[i] || v1.Values[i] != v2.Values[i] {
			t.Fatalf("vectors diverge at %d", i)
		}
	}
}

func TestEncodeQuerySortsIndices(t *testing.T) {
	v := NewEncoder().EncodeQuery("zulu alpha beta gamma")
	if len(v.Indices) == 0 {
		t.Fatalf("expected non-empty sparse vector")
	}
	for i := 1; i < len(v.Indices); i++ {
		if v.Indices[i-1] > v.Indices[i] {
			t.Fatalf("indices not sorted at %d: %d > %d", i, v.Indices[i-1], v.Indices[i])
		}
	}
}

func TestEncodeQueryNoiseOnlyInputIsEmpty(t *testing.T) {
	v := NewEncoder().EncodeQuery("___---!!!")
	if !v.Empty() {
		t.Fatalf("expected empty sparse vector, got %+v", v)
	}
}

func TestEncodeDocumentTitleBoost(t *testing.T) {
	enc := NewEncoder()
	plain := enc.EncodeDocument("langgraph", "")
	boosted := enc.EncodeDocument("langgraph", "langgraph")
	if len(plain.Values) != 1 || len(boosted.Values) != 1 {
		t.Fatalf("expected single-term vectors, got %v / %v", plain, boosted)
	}
	if boosted.Values[0] <= plain.Values[0] {
		t.Fatalf("title occurrence must raise the term weight: %f <= %f", boosted.Values[0], plain.Values[0])
	}
}

func TestTokenizeDigitsAndSeparators(t *testing.T) {
	tokens := tokenize("DOC_0001 revision-2 Привет")
	foundDoc, foundNum := false, false
	for _, tok := range tokens {
		if tok == "doc" {
			foundDoc = true
		}
		if tok == "0001" {
			foundNum = true
		}
	}
	if !foundDoc || !foundNum {
		t.Fatalf("expected doc and 0001 tokens, got %v", tokens)
	}
}
