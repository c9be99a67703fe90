package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/memloop/memloop-mcp/internal/embedder"
	"github.com/memloop/memloop-mcp/internal/storage"
	"github.com/memloop/memloop-mcp/pkg/types"
)

// Similarity search defaults. MaxCandidates bounds the rows pulled into
// the in-process cosine pass, so a growing corpus degrades gracefully
// instead of scanning every embedding.
const (
	DefaultThreshold     = 0.3
	DefaultMaxCandidates = 2000
	DefaultLimit         = 20
)

// Match pairs an observation with its cosine similarity to the query.
type Match struct {
	Obs        types.Observation
	Similarity float64
}

// SearchOptions narrows a similarity search.
type SearchOptions struct {
	Project       string
	Limit         int
	Threshold     float64 // minimum similarity; <=0 means DefaultThreshold
	MaxCandidates int     // SQL pre-filter bound; <=0 means DefaultMaxCandidates
}

// Index performs embedding storage and nearest-neighbour search over the
// embeddings table.
type Index struct {
	store    storage.Store
	embedder *embedder.Lazy
	logger   *zap.Logger
}

func NewIndex(store storage.Store, emb *embedder.Lazy, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{store: store, embedder: emb, logger: logger}
}

// Store serializes and persists a vector for an observation.
func (ix *Index) Store(ctx context.Context, observationID string, vec []float32, model string) error {
	if len(vec) == 0 {
		return fmt.Errorf("store vector for %s: empty vector", observationID)
	}
	return ix.store.UpsertEmbedding(ctx, &storage.Embedding{
		ObservationID: observationID,
		Vector:        serializeVector(vec),
		Dimensions:    len(vec),
		Model:         model,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
	})
}

// Search finds observations whose stored vectors are similar to the
// query vector. Results come back sorted by similarity, best first.
// Rows embedded at a different dimensionality than the query are
// skipped rather than treated as errors.
func (ix *Index) Search(ctx context.Context, queryVec []float32, opts SearchOptions) ([]Match, error) {
	if len(queryVec) == 0 {
		return []Match{}, nil
	}
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	maxCandidates := opts.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	candidates, err := ix.store.ListCandidates(ctx, opts.Project, maxCandidates)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	matches := make([]Match, 0, limit)
	for _, c := range candidates {
		if c.Dimensions != len(queryVec) {
			continue
		}
		vec, err := deserializeVector(c.Vector, c.Dimensions)
		if err != nil {
			ix.logger.Warn("skipping corrupt embedding",
				zap.String("observation_id", c.Obs.ID), zap.Error(err))
			continue
		}
		sim := cosineSimilarity(queryVec, vec)
		if sim < threshold {
			continue
		}
		matches = append(matches, Match{Obs: c.Obs, Similarity: sim})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Obs.ID > matches[j].Obs.ID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// serializeVector encodes float32 values as little-endian bytes.
func serializeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func deserializeVector(data []byte, dimensions int) ([]float32, error) {
	if len(data) != dimensions*4 {
		return nil, fmt.Errorf("vector blob is %d bytes, want %d", len(data), dimensions*4)
	}
	vec := make([]float32, dimensions)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}

// cosineSimilarity computes the cosine of the angle between two vectors
// of equal length. Either vector having zero magnitude yields 0.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
