package retriever

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/memloop/memloop-mcp/internal/embedder"
	"github.com/memloop/memloop-mcp/internal/scoring"
	"github.com/memloop/memloop-mcp/internal/storage"
	"github.com/memloop/memloop-mcp/internal/vector"
	"github.com/memloop/memloop-mcp/pkg/types"
)

const (
	DefaultLimit    = 10
	MaxLimit        = 100
	DefaultCacheTTL = 1 * time.Hour

	// Each source over-fetches so the union still has enough candidates
	// after merging and re-ranking.
	sourceFetchFactor = 2
)

// Mode reports which weight vector a retrieval used.
type Mode string

const (
	ModeSearch  Mode = "search"  // query supplied, similarity dominates
	ModeContext Mode = "context" // no query, recency and project dominate
)

// Request parameterizes a retrieval.
type Request struct {
	Project        string
	Query          string
	Kind           string
	DateStartEpoch int64
	DateEndEpoch   int64
	Limit          int
	UseCache       bool
	CacheTTL       time.Duration
}

// Response is a ranked retrieval result with source metadata.
type Response struct {
	Items        []types.ScoredItem
	Total        int
	Mode         Mode
	Duration     time.Duration
	CacheHit     bool
	SemanticHits int
	LexicalHits  int
}

func (r *Response) clone() *Response {
	if r == nil {
		return nil
	}
	dst := *r
	dst.Items = make([]types.ScoredItem, len(r.Items))
	copy(dst.Items, r.Items)
	return &dst
}

// Retriever merges lexical and semantic candidates into one ranked list.
type Retriever struct {
	store    storage.Store
	index    *vector.Index
	embedder *embedder.Lazy
	cache    *responseCache
	logger   *zap.Logger
}

func New(store storage.Store, index *vector.Index, emb *embedder.Lazy, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		store:    store,
		index:    index,
		embedder: emb,
		cache:    newResponseCache(),
		logger:   logger,
	}
}

// Retrieve is the single entry point for both search (query given) and
// context (no query) callers. Either candidate source failing degrades
// to the other; both failing degrades to an empty result, not an error.
func (r *Retriever) Retrieve(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	normalizeRequest(&req)

	mode := ModeContext
	if strings.TrimSpace(req.Query) != "" {
		mode = ModeSearch
	}

	if req.UseCache {
		if cached := r.cache.get(requestKey(req), start); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(start)
			return cached, nil
		}
	}

	var response *Response
	if mode == ModeSearch {
		response = r.search(ctx, req)
	} else {
		response = r.recent(ctx, req)
	}
	response.Mode = mode
	response.Duration = time.Since(start)

	r.touchAccessed(ctx, response.Items)

	if req.UseCache && len(response.Items) > 0 {
		r.cache.put(requestKey(req), response, req.CacheTTL)
	}
	return response, nil
}

// InvalidateCache drops every cached response. Called after any write
// that could change retrieval results.
func (r *Retriever) InvalidateCache() {
	r.cache.purge()
}

func normalizeRequest(req *Request) {
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
	if req.CacheTTL <= 0 {
		req.CacheTTL = DefaultCacheTTL
	}
}

func (r *Retriever) filters(req Request) storage.Filters {
	return storage.Filters{
		Project:        req.Project,
		Kind:           req.Kind,
		DateStartEpoch: req.DateStartEpoch,
		DateEndEpoch:   req.DateEndEpoch,
		Limit:          req.Limit * sourceFetchFactor,
	}
}

// candidate accumulates per-observation signals during the union merge.
type candidate struct {
	obs      types.Observation
	semantic float64
	lexRank  float64
	hasRank  bool
	lexHit   bool
}

// search fans out to the semantic and lexical sources concurrently.
// The two goroutines write to disjoint variables and the merge below is
// pure, so no shared accumulator is needed.
func (r *Retriever) search(ctx context.Context, req Request) *Response {
	var (
		matches []vector.Match
		lexRows []storage.LexicalRow
		semErr  error
		lexErr  error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		queryVec := r.embedder.Embed(gctx, req.Query)
		if queryVec == nil {
			return nil // semantic signal unavailable, lexical still counts
		}
		matches, semErr = r.index.Search(gctx, queryVec, vector.SearchOptions{
			Project: req.Project,
			Limit:   req.Limit * sourceFetchFactor,
		})
		return nil
	})
	g.Go(func() error {
		lexRows, lexErr = r.store.LexicalSearch(gctx, req.Query, r.filters(req))
		return nil
	})
	_ = g.Wait()

	if semErr != nil {
		r.logger.Warn("semantic source failed", zap.Error(semErr))
	}
	if lexErr != nil {
		r.logger.Warn("lexical source failed", zap.Error(lexErr))
	}

	merged := mergeCandidates(matches, lexRows)
	items := r.score(merged, req, scoring.SearchWeights())
	return &Response{
		Items:        items,
		Total:        len(merged),
		SemanticHits: len(matches),
		LexicalHits:  len(lexRows),
	}
}

// recent serves query-less retrieval: recency-ordered observations
// scored with the context weight vector.
func (r *Retriever) recent(ctx context.Context, req Request) *Response {
	observations, err := r.store.RecentObservations(ctx, r.filters(req))
	if err != nil {
		r.logger.Warn("recent observations failed", zap.Error(err))
		return &Response{Items: []types.ScoredItem{}}
	}

	merged := make([]candidate, len(observations))
	for i, obs := range observations {
		merged[i] = candidate{obs: obs}
	}
	items := r.score(merged, req, scoring.ContextWeights())
	return &Response{Items: items, Total: len(merged)}
}

// mergeCandidates unions the two sources by observation id. A candidate
// seen by only one source keeps a zero for the other signal.
func mergeCandidates(matches []vector.Match, lexRows []storage.LexicalRow) []candidate {
	byID := make(map[string]*candidate)
	order := make([]string, 0, len(matches)+len(lexRows))

	for _, m := range matches {
		sim := m.Similarity
		if sim < 0 {
			sim = 0
		}
		byID[m.Obs.ID] = &candidate{obs: m.Obs, semantic: sim}
		order = append(order, m.Obs.ID)
	}
	for _, row := range lexRows {
		c, seen := byID[row.Obs.ID]
		if !seen {
			c = &candidate{obs: row.Obs}
			byID[row.Obs.ID] = c
			order = append(order, row.Obs.ID)
		}
		c.lexHit = true
		c.lexRank = row.Rank
		c.hasRank = row.HasRank
	}

	merged := make([]candidate, 0, len(order))
	for _, id := range order {
		merged = append(merged, *byID[id])
	}
	return merged
}

// score turns merged candidates into the final ranked ScoredItem list:
// normalize lexical ranks across the batch, compute the remaining
// signals, weight, then apply the multiplicative adjustments.
func (r *Retriever) score(merged []candidate, req Request, weights scoring.Weights) []types.ScoredItem {
	now := time.Now()

	ranks := make([]float64, 0, len(merged))
	for _, c := range merged {
		if c.hasRank {
			ranks = append(ranks, c.lexRank)
		}
	}

	items := make([]types.ScoredItem, 0, len(merged))
	for _, c := range merged {
		sig := types.Signals{
			Semantic:     c.semantic,
			Recency:      scoring.RecencyScore(c.obs.CreatedAtEpoch, scoring.DefaultHalfLifeHours, now),
			ProjectMatch: scoring.ProjectMatchScore(c.obs.Project, req.Project),
		}
		switch {
		case c.hasRank:
			sig.Lexical = scoring.NormalizeRank(c.lexRank, ranks)
		case c.lexHit:
			// substring fallback matched but carries no graded rank
			sig.Lexical = 1
		}

		score := scoring.CompositeScore(sig, weights)
		score *= scoring.KnowledgeTypeBoost(c.obs.Kind)
		score *= scoring.StalenessPenalty(c.obs.IsStale)

		content := c.obs.Body
		if content == "" {
			content = c.obs.Narrative
		}
		items = append(items, types.ScoredItem{
			ID:             c.obs.ID,
			Title:          c.obs.Title,
			Content:        content,
			Kind:           c.obs.Kind,
			Project:        c.obs.Project,
			CreatedAtEpoch: c.obs.CreatedAtEpoch,
			IsStale:        c.obs.IsStale,
			Signals:        sig,
			Score:          score,
		})
	}

	sortItems(items)
	if len(items) > req.Limit {
		items = items[:req.Limit]
	}
	return items
}

// sortItems imposes the deterministic total order: score descending,
// then creation epoch descending, then id descending.
func sortItems(items []types.ScoredItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		if items[i].CreatedAtEpoch != items[j].CreatedAtEpoch {
			return items[i].CreatedAtEpoch > items[j].CreatedAtEpoch
		}
		return items[i].ID > items[j].ID
	})
}

// touchAccessed records retrieval hits so future tooling can reason
// about which memories are actually used. Failures are not the caller's
// problem.
func (r *Retriever) touchAccessed(ctx context.Context, items []types.ScoredItem) {
	if len(items) == 0 {
		return
	}
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	if err := r.store.TouchLastAccessed(ctx, ids, types.EpochMillis(time.Now().UTC())); err != nil {
		r.logger.Debug("touch last-accessed failed", zap.Error(err))
	}
}
