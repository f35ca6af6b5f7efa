package domain

// SearchMode is resolved once at the search entrypoint: single when the query
// is pinned to one source (or the corpus only has one), multi otherwise.
type SearchMode string

const (
	SearchModeSingle SearchMode = "single"
	SearchModeMulti  SearchMode = "multi"
)

// Candidate is a chunk under consideration at some pipeline stage. Score
// semantics are stage-local (raw channel score, forced-inclusion sentinel, or
// rerank score); only ordering within one stage is meaningful.
type Candidate struct {
	ChunkID int
	Score   float64
	Text    string
}

// Passage is a final ranked chunk with its citation metadata attached.
type Passage struct {
	ChunkID int     `json:"chunk_id"`
	Score   float64 `json:"score"`
	Text    string  `json:"text"`
	Source  string  `json:"source"`
	Page    int     `json:"page,omitempty"`
}

type SearchQuery struct {
	Question     string
	FilterSource string
	TopK         int
	Diversify    bool
}

// SearchStats records what the pipeline did to produce a result; consumed by
// the HTTP adapter for metrics and by tests.
type SearchStats struct {
	ForcedIncluded  int    `json:"forced_included"`
	DegradedChannel string `json:"degraded_channel,omitempty"`
	RerankFallback  bool   `json:"rerank_fallback"`
}

type SearchResult struct {
	Mode     SearchMode  `json:"mode"`
	Passages []Passage   `json:"passages"`
	Stats    SearchStats `json:"stats"`
}

// Answer is the generated response for one question, with the passages that
// actually made it into the prompt as citations.
type Answer struct {
	Text        string     `json:"text"`
	Mode        SearchMode `json:"mode"`
	Temperature float64    `json:"temperature"`
	Citations   []Passage  `json:"citations"`
	Cached      bool       `json:"cached"`
}
