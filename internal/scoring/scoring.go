package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/memloop/memloop-mcp/pkg/types"
)

// Scoring constants
const (
	// DefaultHalfLifeHours is the age at which the recency signal decays
	// to 0.5 (one week).
	DefaultHalfLifeHours = 168.0

	// Knowledge type boost factors, highest to lowest
	BoostConstraint = 1.30
	BoostDecision   = 1.20
	BoostHeuristic  = 1.15
	BoostRejected   = 1.10

	// StaleMultiplier halves a stale item's score; the item stays
	// discoverable but demoted.
	StaleMultiplier = 0.5
)

// Weights maps each relevance signal to a non-negative weight. A weight
// vector's components sum to 1.0 before any multiplicative adjustment.
// Weights are immutable configuration passed into the scorer, never
// package-level mutable state.
type Weights struct {
	Semantic     float64
	Lexical      float64
	Recency      float64
	ProjectMatch float64
}

// Sum returns the total of the weight components.
func (w Weights) Sum() float64 {
	return w.Semantic + w.Lexical + w.Recency + w.ProjectMatch
}

// SearchWeights is the weight vector used when the caller supplied a
// query string: semantic and lexical similarity dominate.
func SearchWeights() Weights {
	return Weights{Semantic: 0.40, Lexical: 0.30, Recency: 0.20, ProjectMatch: 0.10}
}

// ContextWeights is the weight vector used for query-less retrieval
// (e.g. session start): recency and project match dominate, semantic and
// lexical carry no weight.
func ContextWeights() Weights {
	return Weights{Semantic: 0, Lexical: 0, Recency: 0.65, ProjectMatch: 0.35}
}

// RecencyScore computes the exponential age decay of an observation
// created at createdAtMs (Unix milliseconds), evaluated at now.
// A non-positive timestamp yields 0; a timestamp at or after now yields
// 1; otherwise exp(-ageHours * ln2 / halfLife), exactly 0.5 after one
// half-life. A non-positive half-life falls back to the default.
func RecencyScore(createdAtMs int64, halfLifeHours float64, now time.Time) float64 {
	if createdAtMs <= 0 {
		return 0
	}
	ageMs := now.UnixMilli() - createdAtMs
	if ageMs <= 0 {
		return 1
	}
	if halfLifeHours <= 0 {
		halfLifeHours = DefaultHalfLifeHours
	}
	ageHours := float64(ageMs) / (1000 * 60 * 60)
	return math.Exp(-ageHours * math.Ln2 / halfLifeHours)
}

// NormalizeRank min-max normalizes one lexical rank against the batch of
// ranks returned for the same query. Keyword ranks follow the BM25
// convention where more negative means more relevant, so the most
// negative rank maps to 1 and the least negative to 0. A single-element
// batch, or a batch where every rank is equal, maps to 1: there is no
// information to discriminate.
func NormalizeRank(rank float64, batch []float64) float64 {
	if len(batch) <= 1 {
		return 1
	}
	min, max := batch[0], batch[0]
	for _, r := range batch[1:] {
		if r < min {
			min = r
		}
		if r > max {
			max = r
		}
	}
	if max == min {
		return 1
	}
	return (max - rank) / (max - min)
}

// ProjectMatchScore returns 1 when both projects are non-empty and equal
// ignoring case, else 0.
func ProjectMatchScore(itemProject, targetProject string) float64 {
	if itemProject == "" || targetProject == "" {
		return 0
	}
	if strings.EqualFold(itemProject, targetProject) {
		return 1
	}
	return 0
}

// KnowledgeTypeBoost returns the multiplicative boost for structured
// knowledge kinds. The match is case-sensitive; any other kind gets
// exactly 1.0.
func KnowledgeTypeBoost(kind string) float64 {
	switch kind {
	case types.KnowledgeConstraint:
		return BoostConstraint
	case types.KnowledgeDecision:
		return BoostDecision
	case types.KnowledgeHeuristic:
		return BoostHeuristic
	case types.KnowledgeRejected:
		return BoostRejected
	}
	return 1.0
}

// StalenessPenalty returns the multiplier applied to items whose
// referenced files changed after recording.
func StalenessPenalty(isStale bool) float64 {
	if isStale {
		return StaleMultiplier
	}
	return 1.0
}

// CompositeScore computes the weighted dot product of the four base
// signals. Knowledge boost and staleness penalty are applied by the
// caller after the weighted sum, not folded into the weights.
func CompositeScore(sig types.Signals, w Weights) float64 {
	return sig.Semantic*w.Semantic +
		sig.Lexical*w.Lexical +
		sig.Recency*w.Recency +
		sig.ProjectMatch*w.ProjectMatch
}
