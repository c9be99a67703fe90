package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memloop/memloop-mcp/pkg/types"
)

func TestRecencyScoreBounds(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		createdAt int64
		want      float64
	}{
		{"zero timestamp", 0, 0},
		{"negative timestamp", -5000, 0},
		{"future timestamp", now.Add(time.Hour).UnixMilli(), 1},
		{"exactly now", now.UnixMilli(), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RecencyScore(tt.createdAt, DefaultHalfLifeHours, now)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecencyScoreHalfLife(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	halfLife := 24.0

	created := now.Add(-24 * time.Hour).UnixMilli()
	got := RecencyScore(created, halfLife, now)

	// Exactly one half-life in the past decays to 0.5 within 1%
	assert.InDelta(t, 0.5, got, 0.005)
}

func TestRecencyScoreStrictlyDecreasing(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	prev := 1.0
	for age := 1; age <= 96; age += 5 {
		created := now.Add(-time.Duration(age) * time.Hour).UnixMilli()
		score := RecencyScore(created, 24.0, now)
		require.Less(t, score, prev, "score must strictly decrease at age %dh", age)
		require.Greater(t, score, 0.0)
		prev = score
	}
}

func TestNormalizeRank(t *testing.T) {
	t.Run("single element batch", func(t *testing.T) {
		assert.Equal(t, 1.0, NormalizeRank(-3.2, []float64{-3.2}))
	})

	t.Run("all equal batch", func(t *testing.T) {
		batch := []float64{-2.5, -2.5, -2.5}
		for _, r := range batch {
			assert.Equal(t, 1.0, NormalizeRank(r, batch))
		}
	})

	t.Run("min-max mapping", func(t *testing.T) {
		batch := []float64{-10, -5, 0}
		assert.Equal(t, 1.0, NormalizeRank(-10, batch), "most negative is most relevant")
		assert.Equal(t, 0.5, NormalizeRank(-5, batch))
		assert.Equal(t, 0.0, NormalizeRank(0, batch), "least negative is least relevant")
	})

	t.Run("empty batch", func(t *testing.T) {
		assert.Equal(t, 1.0, NormalizeRank(0, nil))
	})
}

func TestProjectMatchScore(t *testing.T) {
	tests := []struct {
		name   string
		item   string
		target string
		want   float64
	}{
		{"exact match", "demo", "demo", 1},
		{"case-insensitive match", "Demo", "demo", 1},
		{"mismatch", "demo", "other", 0},
		{"empty item", "", "demo", 0},
		{"empty target", "demo", "", 0},
		{"both empty", "", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProjectMatchScore(tt.item, tt.target))
		})
	}
}

func TestKnowledgeTypeBoostOrdering(t *testing.T) {
	constraint := KnowledgeTypeBoost(types.KnowledgeConstraint)
	decision := KnowledgeTypeBoost(types.KnowledgeDecision)
	heuristic := KnowledgeTypeBoost(types.KnowledgeHeuristic)
	rejected := KnowledgeTypeBoost(types.KnowledgeRejected)

	assert.Greater(t, constraint, decision)
	assert.Greater(t, decision, heuristic)
	assert.Greater(t, heuristic, rejected)
	assert.Greater(t, rejected, 1.0)
}

func TestKnowledgeTypeBoostDefault(t *testing.T) {
	assert.Equal(t, 1.0, KnowledgeTypeBoost("bugfix"))
	assert.Equal(t, 1.0, KnowledgeTypeBoost(""))
	// Case-sensitive: capitalized kinds are not structured knowledge
	assert.Equal(t, 1.0, KnowledgeTypeBoost("Constraint"))
	assert.Equal(t, 1.0, KnowledgeTypeBoost("DECISION"))
}

func TestStalenessPenalty(t *testing.T) {
	assert.Equal(t, 1.0, StalenessPenalty(false))
	assert.Equal(t, 0.5*StalenessPenalty(false), StalenessPenalty(true))
}

func TestWeightVectorsSumToOne(t *testing.T) {
	assert.InDelta(t, 1.0, SearchWeights().Sum(), 1e-9)
	assert.InDelta(t, 1.0, ContextWeights().Sum(), 1e-9)
}

func TestCompositeScore(t *testing.T) {
	perfect := types.Signals{Semantic: 1, Lexical: 1, Recency: 1, ProjectMatch: 1}

	// With all signals at 1 the composite equals the weight sum
	assert.InDelta(t, SearchWeights().Sum(), CompositeScore(perfect, SearchWeights()), 1e-9)
	assert.InDelta(t, ContextWeights().Sum(), CompositeScore(perfect, ContextWeights()), 1e-9)

	// Context mode ignores semantic and lexical signals entirely
	lexOnly := types.Signals{Semantic: 1, Lexical: 1}
	assert.Equal(t, 0.0, CompositeScore(lexOnly, ContextWeights()))

	// Custom injected weights work without touching any global
	custom := Weights{Semantic: 0.5, Lexical: 0.5}
	sig := types.Signals{Semantic: 0.8, Lexical: 0.4, Recency: 1, ProjectMatch: 1}
	assert.InDelta(t, 0.6, CompositeScore(sig, custom), 1e-9)
}
