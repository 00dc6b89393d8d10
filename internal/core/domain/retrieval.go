package domain

// DedupMode selects the uniqueness key applied to fused retrieval results.
type DedupMode string

const (
	// DedupDistinctHits keeps one result per index point identifier.
	DedupDistinctHits DedupMode = "distinct_hits"
	// DedupUniqueTitles keeps one result per non-empty title.
	DedupUniqueTitles DedupMode = "unique_titles"
)

// SearchFilter is a conjunction of payload conditions applied identically to
// both fusion legs. Zero values mean "not filtered".
type SearchFilter struct {
	FeedAuthor    string `json:"feed_author,omitempty"`
	FeedName      string `json:"feed_name,omitempty"`
	TitleKeywords string `json:"title_keywords,omitempty"`
	Category      string `json:"category,omitempty"`
	Language      string `json:"language,omitempty"`
	MinStars      *int   `json:"min_stars,omitempty"`
	SourceType    string `json:"source_type,omitempty"`
}

func (f SearchFilter) Empty() bool {
	return f.FeedAuthor == "" && f.FeedName == "" && f.TitleKeywords == "" &&
		f.Category == "" && f.Language == "" && f.MinStars == nil && f.SourceType == ""
}

// Query is one retrieval request. Text is raw user input until the guard has
// sanitized it; Limit is clamped into [1,50] by the retriever.
type Query struct {
	Text   string       `json:"query_text"`
	Filter SearchFilter `json:"filter"`
	Limit  int          `json:"limit"`
}

// SparseVector is a lexical query embedding in the index's sparse format.
type SparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

func (v SparseVector) Empty() bool { return len(v.Indices) == 0 }

// FusedQuery carries both query embeddings plus the shared filter for one
// fused index call.
type FusedQuery struct {
	Dense      []float32
	Sparse     SparseVector
	Filter     SearchFilter
	FetchLimit int
}

// RetrievedChunk is one indexed passage. SourceName/SourceAuthor are the
// current payload fields; FeedName/FeedAuthor mirror them for clients that
// still read the legacy names.
type RetrievedChunk struct {
	PointID string `json:"-"`

	Title string `json:"title"`

	// Legacy aliases, still populated.
	FeedAuthor    string   `json:"feed_author,omitempty"`
	FeedName      string   `json:"feed_name,omitempty"`
	ArticleAuthor []string `json:"article_author,omitempty"`

	SourceName   string   `json:"source_name,omitempty"`
	SourceAuthor string   `json:"source_author,omitempty"`
	Authors      []string `json:"authors,omitempty"`

	URL       string  `json:"url,omitempty"`
	ChunkText string  `json:"chunk_text,omitempty"`
	Score     float64 `json:"score"`

	Category   string   `json:"category,omitempty"`
	Language   string   `json:"language,omitempty"`
	Stars      *int     `json:"stars,omitempty"`
	Features   []string `json:"features,omitempty"`
	SourceType string   `json:"source_type,omitempty"`
}

// ModelConfig selects and parameterizes a generation call.
type ModelConfig struct {
	Provider            string
	Model               string
	Temperature         float64
	MaxCompletionTokens int
}

// Answer is the blocking ask result.
type Answer struct {
	Query        string           `json:"query"`
	Provider     string           `json:"provider"`
	Text         string           `json:"answer"`
	Sources      []RetrievedChunk `json:"sources"`
	Model        string           `json:"model,omitempty"`
	FinishReason string           `json:"finish_reason,omitempty"`
}

// GenerationEventType tags a streamed generation event.
type GenerationEventType string

const (
	EventText      GenerationEventType = "text"
	EventModelInfo GenerationEventType = "model_info"
	EventTruncated GenerationEventType = "truncated"
	EventError     GenerationEventType = "error"
)

// GenerationEvent is one streamed frame from a provider. Events are consumed
// once and never persisted.
type GenerationEvent struct {
	Type   GenerationEventType
	Delta  string
	Model  string
	Reason string
}

// UsageEvent is published after a request has been answered.
type UsageEvent struct {
	RequestID  string `json:"request_id,omitempty"`
	Endpoint   string `json:"endpoint"`
	Mode       string `json:"mode,omitempty"`
	Provider   string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
	Sources    int    `json:"sources"`
	DurationMS int64  `json:"duration_ms"`
}

// AskRecord is one row of the ask audit history.
type AskRecord struct {
	ID          string
	Endpoint    string
	Provider    string
	Model       string
	Mode        string
	SourceCount int
	DurationMS  int64
	Status      string
}
