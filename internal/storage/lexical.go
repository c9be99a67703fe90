package storage

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Lexical search tuning. The bm25 column weights favour title, then
// concepts, then narrative, then body; the exact ratios are tunable.
const (
	maxQueryChars  = 1000
	maxQueryTokens = 100

	weightTitle     = 4.0
	weightConcepts  = 3.0
	weightNarrative = 2.0
	weightBody      = 1.0
)

// LexicalSearch runs keyword search with FTS5 relevance ranking. When
// sanitization leaves nothing usable, or the FTS engine rejects the
// query, it degrades to a recency-ordered substring scan; the caller
// never sees either case as an error.
func (s *SQLiteStore) LexicalSearch(ctx context.Context, query string, filters Filters) ([]LexicalRow, error) {
	sanitized := sanitizeMatchQuery(query)
	if sanitized == "" {
		return s.substringScan(ctx, query, filters)
	}

	rows, err := s.ftsSearch(ctx, sanitized, filters)
	if err != nil {
		// Malformed queries that survive sanitization land here; the
		// substring scan is the designed degradation path.
		s.logger.Debug("fts query failed, falling back to substring scan",
			zap.String("query", query), zap.Error(err))
		return s.substringScan(ctx, query, filters)
	}
	return rows, nil
}

// sanitizeMatchQuery turns raw user text into a safe FTS5 MATCH
// expression: cap total length, strip quote characters, split on
// whitespace, cap the token count, and wrap every token in double
// quotes so nothing is interpreted as an FTS operator or prefix glob.
// Returns "" when no usable tokens remain.
func sanitizeMatchQuery(query string) string {
	if len(query) > maxQueryChars {
		query = query[:maxQueryChars]
	}
	query = strings.NewReplacer(`"`, " ", `'`, " ").Replace(query)

	tokens := strings.Fields(query)
	if len(tokens) > maxQueryTokens {
		tokens = tokens[:maxQueryTokens]
	}

	quoted := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		quoted = append(quoted, `"`+tok+`"`)
	}
	return strings.Join(quoted, " ")
}

func (s *SQLiteStore) ftsSearch(ctx context.Context, match string, filters Filters) ([]LexicalRow, error) {
	// bm25 weight arguments must be SQL literals, one per FTS column
	query := fmt.Sprintf(`
		SELECT o.id, o.project, o.kind, o.title, o.body, o.narrative, o.concepts, o.files_modified,
		       o.created_at, o.created_at_epoch, o.last_accessed_epoch, o.is_stale,
		       bm25(observations_fts, %.1f, %.1f, %.1f, %.1f) AS rank
		FROM observations_fts
		JOIN observations o ON o.rowid = observations_fts.rowid
		WHERE observations_fts MATCH ?
	`, weightTitle, weightConcepts, weightNarrative, weightBody)
	args := []interface{}{match}

	query, args = applyObservationFilters(query, args, filters)

	query += " ORDER BY rank LIMIT ?"
	args = append(args, searchLimit(filters))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	results := make([]LexicalRow, 0)
	for rows.Next() {
		var lr LexicalRow
		err := rows.Scan(
			&lr.Obs.ID, &lr.Obs.Project, &lr.Obs.Kind, &lr.Obs.Title, &lr.Obs.Body,
			&lr.Obs.Narrative, &lr.Obs.Concepts, &lr.Obs.FilesModified,
			&lr.Obs.CreatedAt, &lr.Obs.CreatedAtEpoch, &lr.Obs.LastAccessedEpoch, &lr.Obs.IsStale,
			&lr.Rank,
		)
		if err != nil {
			return nil, err
		}
		lr.HasRank = true
		results = append(results, lr)
	}
	return results, rows.Err()
}

// substringScan is the degraded lexical path: a LIKE scan across the
// searchable fields with SQL wildcards treated as literals, ordered by
// recency because there is no graded ranking.
func (s *SQLiteStore) substringScan(ctx context.Context, raw string, filters Filters) ([]LexicalRow, error) {
	needle := strings.TrimSpace(raw)
	if len(needle) > maxQueryChars {
		needle = needle[:maxQueryChars]
	}
	if needle == "" {
		return []LexicalRow{}, nil
	}

	pattern := "%" + escapeLike(needle) + "%"
	query := `
		SELECT o.id, o.project, o.kind, o.title, o.body, o.narrative, o.concepts, o.files_modified,
		       o.created_at, o.created_at_epoch, o.last_accessed_epoch, o.is_stale
		FROM observations o
		WHERE (o.title LIKE ? ESCAPE '\'
		    OR o.concepts LIKE ? ESCAPE '\'
		    OR o.narrative LIKE ? ESCAPE '\'
		    OR o.body LIKE ? ESCAPE '\')
	`
	args := []interface{}{pattern, pattern, pattern, pattern}

	query, args = applyObservationFilters(query, args, filters)

	query += " ORDER BY o.created_at_epoch DESC LIMIT ?"
	args = append(args, searchLimit(filters))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("substring scan failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]LexicalRow, 0)
	for rows.Next() {
		var lr LexicalRow
		if err := scanObservation(rows, &lr.Obs); err != nil {
			return nil, err
		}
		results = append(results, lr)
	}
	return results, rows.Err()
}

// escapeLike treats %, _ and backslash as literals inside a LIKE pattern
func escapeLike(s string) string {
	return strings.NewReplacer(
		`\`, `\\`,
		`%`, `\%`,
		`_`, `\_`,
	).Replace(s)
}

// applyObservationFilters appends the shared WHERE clauses for project,
// kind and creation date range.
func applyObservationFilters(query string, args []interface{}, filters Filters) (string, []interface{}) {
	if filters.Project != "" {
		query += " AND o.project = ?"
		args = append(args, filters.Project)
	}
	if filters.Kind != "" {
		query += " AND o.kind = ?"
		args = append(args, filters.Kind)
	}
	if filters.DateStartEpoch > 0 {
		query += " AND o.created_at_epoch >= ?"
		args = append(args, filters.DateStartEpoch)
	}
	if filters.DateEndEpoch > 0 {
		query += " AND o.created_at_epoch <= ?"
		args = append(args, filters.DateEndEpoch)
	}
	return query, args
}

func searchLimit(filters Filters) int {
	if filters.Limit <= 0 {
		return 50
	}
	return filters.Limit
}
