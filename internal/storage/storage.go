package storage

import (
	"context"

	"github.com/memloop/memloop-mcp/pkg/types"
)

// Store defines the persistence interface the retrieval engine consumes.
type Store interface {
	// Observation operations
	InsertObservation(ctx context.Context, obs *types.Observation) error
	GetObservation(ctx context.Context, id string) (*types.Observation, error)
	MarkStale(ctx context.Context, id string, stale bool) error
	TouchLastAccessed(ctx context.Context, ids []string, epoch int64) error
	RecentObservations(ctx context.Context, filters Filters) ([]types.Observation, error)

	// Summary operations
	InsertSummary(ctx context.Context, summary *types.Summary) error
	RecentSummaries(ctx context.Context, project string, limit int) ([]*types.Summary, error)

	// Lexical search: FTS5 ranking with a substring-scan degradation path
	LexicalSearch(ctx context.Context, query string, filters Filters) ([]LexicalRow, error)

	// Embedding operations
	UpsertEmbedding(ctx context.Context, emb *Embedding) error
	GetEmbedding(ctx context.Context, observationID string) (*Embedding, error)
	ListCandidates(ctx context.Context, project string, maxCandidates int) ([]Candidate, error)
	ListMissingEmbeddings(ctx context.Context, limit int) ([]string, error)
	CandidateRowsScanned() int64

	// Status operations
	Stats(ctx context.Context) (*Stats, error)

	// Database operations
	Close() error
}

// Filters narrows a lexical search. Zero values mean "no filter";
// epochs are Unix milliseconds.
type Filters struct {
	Project        string
	Kind           string
	DateStartEpoch int64
	DateEndEpoch   int64
	Limit          int
}

// LexicalRow is one keyword-search hit. Rank follows the FTS5 bm25
// convention (more negative is more relevant) and is only meaningful
// when HasRank is true: the substring-scan fallback has no graded
// ranking and orders by recency alone.
type LexicalRow struct {
	Obs     types.Observation
	Rank    float64
	HasRank bool
}

// Embedding is a stored vector row. Dimensions is authoritative for
// decoding Vector; rows written by different providers over time may
// carry different dimensionality.
type Embedding struct {
	ObservationID string
	Vector        []byte
	Dimensions    int
	Model         string
	CreatedAt     string // RFC3339
}

// Candidate is one pre-filtered row handed to the in-process similarity
// scan: the observation plus its stored vector.
type Candidate struct {
	Obs        types.Observation
	Vector     []byte
	Dimensions int
	Model      string
}

// Stats summarizes store contents for status reporting.
type Stats struct {
	Observations int64
	Embeddings   int64
	Summaries    int64
	DBSizeMB     float64
}
