package retriever

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memloop/memloop-mcp/internal/embedder"
	"github.com/memloop/memloop-mcp/internal/storage"
	"github.com/memloop/memloop-mcp/internal/vector"
	"github.com/memloop/memloop-mcp/pkg/types"
)

// fixedProvider always returns the same query vector, so tests control
// similarity entirely through the stored vectors.
type fixedProvider struct {
	vec []float32
}

func (p *fixedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return p.vec, nil
}

func (p *fixedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = p.vec
	}
	return out, nil
}

func (p *fixedProvider) Dimension() int { return len(p.vec) }
func (p *fixedProvider) Name() string   { return "fixed" }
func (p *fixedProvider) Model() string  { return "fixed" }
func (p *fixedProvider) Close() error   { return nil }

type harness struct {
	store     storage.Store
	index     *vector.Index
	retriever *Retriever
}

func newHarness(t *testing.T, queryVec []float32) *harness {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	chain := []embedder.Probe{{
		Name: "fixed",
		Load: func(ctx context.Context) (embedder.Provider, error) {
			return &fixedProvider{vec: queryVec}, nil
		},
	}}
	lazy := embedder.NewLazy(chain, "fixed", len(queryVec), nil)
	index := vector.NewIndex(store, lazy, nil)
	return &harness{
		store:     store,
		index:     index,
		retriever: New(store, index, lazy, nil),
	}
}

func (h *harness) save(t *testing.T, obs *types.Observation, vec []float32) *types.Observation {
	t.Helper()
	require.NoError(t, h.store.InsertObservation(context.Background(), obs))
	if vec != nil {
		require.NoError(t, h.index.Store(context.Background(), obs.ID, vec, "fixed"))
	}
	return obs
}

func recentEpoch(hoursAgo float64) int64 {
	return types.EpochMillis(time.Now().UTC().Add(-time.Duration(hoursAgo * float64(time.Hour))))
}

func TestRetrieveUnionsBothSources(t *testing.T) {
	h := newHarness(t, []float32{1, 0, 0, 0})
	ctx := context.Background()

	// A hits both sources, B only lexical, C only vector.
	a := h.save(t, &types.Observation{
		Project: "memloop", Title: "alpha design", Body: "alpha hit by both sources",
		CreatedAtEpoch: recentEpoch(1),
	}, []float32{1, 0, 0, 0})
	b := h.save(t, &types.Observation{
		Project: "memloop", Title: "alpha followup", Body: "lexical only",
		CreatedAtEpoch: recentEpoch(2),
	}, []float32{0, 1, 0, 0})
	c := h.save(t, &types.Observation{
		Project: "memloop", Title: "unrelated words", Body: "vector only",
		CreatedAtEpoch: recentEpoch(3),
	}, []float32{0.9, 0.1, 0, 0})

	resp, err := h.retriever.Retrieve(ctx, Request{Project: "memloop", Query: "alpha"})
	require.NoError(t, err)
	require.Len(t, resp.Items, 3)
	assert.Equal(t, ModeSearch, resp.Mode)
	assert.False(t, resp.CacheHit)

	byID := make(map[string]types.ScoredItem)
	for _, item := range resp.Items {
		byID[item.ID] = item
	}

	// missing signals default to zero, present ones are positive
	assert.Greater(t, byID[a.ID].Signals.Semantic, 0.9)
	assert.Greater(t, byID[a.ID].Signals.Lexical, 0.0)
	assert.Zero(t, byID[b.ID].Signals.Semantic)
	assert.Greater(t, byID[b.ID].Signals.Lexical, 0.0)
	assert.Zero(t, byID[c.ID].Signals.Lexical)
	assert.Greater(t, byID[c.ID].Signals.Semantic, 0.9)

	// the candidate both sources agree on wins
	assert.Equal(t, a.ID, resp.Items[0].ID)
}

func TestRetrieveContextMode(t *testing.T) {
	h := newHarness(t, []float32{1, 0})
	ctx := context.Background()

	old := h.save(t, &types.Observation{
		Project: "memloop", Title: "old", CreatedAtEpoch: recentEpoch(720),
	}, nil)
	fresh := h.save(t, &types.Observation{
		Project: "memloop", Title: "fresh", CreatedAtEpoch: recentEpoch(1),
	}, nil)
	h.save(t, &types.Observation{
		Project: "elsewhere", Title: "fresh too", CreatedAtEpoch: recentEpoch(1),
	}, nil)

	resp, err := h.retriever.Retrieve(ctx, Request{Project: "memloop"})
	require.NoError(t, err)
	assert.Equal(t, ModeContext, resp.Mode)
	require.Len(t, resp.Items, 2)

	assert.Equal(t, fresh.ID, resp.Items[0].ID)
	assert.Equal(t, old.ID, resp.Items[1].ID)
	// context weighting carries no similarity signal
	assert.Zero(t, resp.Items[0].Signals.Semantic)
	assert.Zero(t, resp.Items[0].Signals.Lexical)
	assert.Greater(t, resp.Items[0].Signals.Recency, resp.Items[1].Signals.Recency)
	assert.Equal(t, 1.0, resp.Items[0].Signals.ProjectMatch)
}

func TestRetrieveKnowledgeBoostAndStaleness(t *testing.T) {
	h := newHarness(t, []float32{1, 0})
	ctx := context.Background()

	epoch := recentEpoch(1)
	plain := h.save(t, &types.Observation{
		Project: "memloop", Kind: "note", Title: "plain fact", CreatedAtEpoch: epoch,
	}, nil)
	constraint := h.save(t, &types.Observation{
		Project: "memloop", Kind: types.KnowledgeConstraint, Title: "hard rule", CreatedAtEpoch: epoch,
	}, nil)
	stale := h.save(t, &types.Observation{
		Project: "memloop", Kind: "note", Title: "outdated", CreatedAtEpoch: epoch, IsStale: true,
	}, nil)

	resp, err := h.retriever.Retrieve(ctx, Request{Project: "memloop"})
	require.NoError(t, err)
	require.Len(t, resp.Items, 3)

	byID := make(map[string]types.ScoredItem)
	for _, item := range resp.Items {
		byID[item.ID] = item
	}
	assert.Greater(t, byID[constraint.ID].Score, byID[plain.ID].Score)
	assert.InDelta(t, byID[plain.ID].Score*0.5, byID[stale.ID].Score, 1e-9)
	assert.Equal(t, constraint.ID, resp.Items[0].ID)
}

func TestRetrieveLimitAndDefaults(t *testing.T) {
	h := newHarness(t, []float32{1, 0})
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		h.save(t, &types.Observation{
			Project: "memloop", Title: "entry", CreatedAtEpoch: recentEpoch(float64(i + 1)),
		}, nil)
	}

	resp, err := h.retriever.Retrieve(ctx, Request{Project: "memloop"})
	require.NoError(t, err)
	assert.Len(t, resp.Items, DefaultLimit)
	assert.Equal(t, 15, resp.Total)

	resp, err = h.retriever.Retrieve(ctx, Request{Project: "memloop", Limit: 3})
	require.NoError(t, err)
	assert.Len(t, resp.Items, 3)
}

func TestRetrieveCache(t *testing.T) {
	h := newHarness(t, []float32{1, 0})
	ctx := context.Background()

	h.save(t, &types.Observation{
		Project: "memloop", Title: "cached alpha", CreatedAtEpoch: recentEpoch(1),
	}, nil)

	req := Request{Project: "memloop", Query: "alpha", UseCache: true}
	first, err := h.retriever.Retrieve(ctx, req)
	require.NoError(t, err)
	require.Len(t, first.Items, 1)
	assert.False(t, first.CacheHit)

	// a new write is invisible until the cache is invalidated
	h.save(t, &types.Observation{
		Project: "memloop", Title: "second alpha", CreatedAtEpoch: recentEpoch(1),
	}, nil)

	second, err := h.retriever.Retrieve(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Len(t, second.Items, 1)

	h.retriever.InvalidateCache()
	third, err := h.retriever.Retrieve(ctx, req)
	require.NoError(t, err)
	assert.False(t, third.CacheHit)
	assert.Len(t, third.Items, 2)
}

func TestRetrieveEmptyCorpus(t *testing.T) {
	h := newHarness(t, []float32{1, 0})

	resp, err := h.retriever.Retrieve(context.Background(), Request{Project: "memloop", Query: "anything"})
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
	assert.Zero(t, resp.Total)
}

func TestRetrieveTouchesLastAccessed(t *testing.T) {
	h := newHarness(t, []float32{1, 0})
	ctx := context.Background()

	obs := h.save(t, &types.Observation{
		Project: "memloop", Title: "touched", CreatedAtEpoch: recentEpoch(1),
	}, nil)

	_, err := h.retriever.Retrieve(ctx, Request{Project: "memloop"})
	require.NoError(t, err)

	got, err := h.store.GetObservation(ctx, obs.ID)
	require.NoError(t, err)
	assert.Greater(t, got.LastAccessedEpoch, int64(0))
}

func TestSortItemsDeterministicTieBreaks(t *testing.T) {
	items := []types.ScoredItem{
		{ID: "a", Score: 0.5, CreatedAtEpoch: 100},
		{ID: "b", Score: 0.5, CreatedAtEpoch: 200},
		{ID: "c", Score: 0.5, CreatedAtEpoch: 200},
		{ID: "d", Score: 0.9, CreatedAtEpoch: 1},
	}
	sortItems(items)

	// score first, then later epoch, then higher id
	assert.Equal(t, "d", items[0].ID)
	assert.Equal(t, "c", items[1].ID)
	assert.Equal(t, "b", items[2].ID)
	assert.Equal(t, "a", items[3].ID)
}

func TestRequestKeyDistinguishesFields(t *testing.T) {
	base := Request{Project: "p", Query: "q", Limit: 10}
	assert.Equal(t, requestKey(base), requestKey(base))
	assert.NotEqual(t, requestKey(base), requestKey(Request{Project: "p", Query: "q2", Limit: 10}))
	assert.NotEqual(t, requestKey(base), requestKey(Request{Project: "p2", Query: "q", Limit: 10}))
	assert.NotEqual(t, requestKey(base), requestKey(Request{Project: "p", Query: "q", Limit: 20}))
}
