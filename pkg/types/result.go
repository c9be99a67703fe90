package types

// Signals holds the four individual relevance signals computed for a
// retrieval candidate before they are combined into a composite score.
type Signals struct {
	Semantic     float64 // Cosine similarity against the query embedding, [0,1]
	Lexical      float64 // Normalized keyword rank, [0,1]
	Recency      float64 // Exponential age decay, [0,1]
	ProjectMatch float64 // 1 when the candidate belongs to the target project, else 0
}

// ScoredItem is a retrieval candidate with its signals and composite
// score. It lives only for the duration of a single retrieval call and is
// never persisted.
type ScoredItem struct {
	ID             string
	Title          string
	Content        string
	Kind           string
	Project        string
	CreatedAtEpoch int64
	IsStale        bool

	Signals Signals
	Score   float64
}

// ContextResult is the output of context assembly: the packed text block
// plus usage accounting for the caller.
type ContextResult struct {
	Text          string
	ItemsIncluded int
	TokensUsed    int
	TokensBudget  int
}

// Validate checks if the scored item is well formed.
func (si *ScoredItem) Validate() error {
	if si.ID == "" {
		return ErrInvalidObservationID
	}
	if si.Score < 0 {
		return ErrInvalidScore
	}
	return nil
}
