package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Embedding operations

// UpsertEmbedding stores or replaces the vector for an observation.
// Re-embedding with a different model overwrites the previous row, so
// each observation carries at most one vector.
func (s *SQLiteStore) UpsertEmbedding(ctx context.Context, emb *Embedding) error {
	if emb.ObservationID == "" {
		return fmt.Errorf("upsert embedding: missing observation id")
	}
	if emb.CreatedAt == "" {
		emb.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	query := `
		INSERT INTO embeddings (observation_id, vector, dimensions, model, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(observation_id) DO UPDATE SET
			vector = excluded.vector,
			dimensions = excluded.dimensions,
			model = excluded.model,
			created_at = excluded.created_at
	`
	_, err := s.db.ExecContext(ctx, query,
		emb.ObservationID, emb.Vector, emb.Dimensions, emb.Model, emb.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert embedding for %s: %w", emb.ObservationID, err)
	}
	return nil
}

func (s *SQLiteStore) GetEmbedding(ctx context.Context, observationID string) (*Embedding, error) {
	query := `
		SELECT observation_id, vector, dimensions, model, created_at
		FROM embeddings
		WHERE observation_id = ?
	`
	var emb Embedding
	err := s.db.QueryRowContext(ctx, query, observationID).Scan(
		&emb.ObservationID, &emb.Vector, &emb.Dimensions, &emb.Model, &emb.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &emb, nil
}

// ListCandidates returns the most recent embedded observations for
// similarity scanning, pre-filtered in SQL so the in-process cosine pass
// touches at most maxCandidates rows regardless of corpus size.
func (s *SQLiteStore) ListCandidates(ctx context.Context, project string, maxCandidates int) ([]Candidate, error) {
	if maxCandidates <= 0 {
		return []Candidate{}, nil
	}

	query := `
		SELECT o.id, o.project, o.kind, o.title, o.body, o.narrative, o.concepts, o.files_modified,
		       o.created_at, o.created_at_epoch, o.last_accessed_epoch, o.is_stale,
		       e.vector, e.dimensions, e.model
		FROM embeddings e
		JOIN observations o ON o.id = e.observation_id
	`
	args := []interface{}{}
	if project != "" {
		query += " WHERE o.project = ?"
		args = append(args, project)
	}
	query += " ORDER BY o.created_at_epoch DESC LIMIT ?"
	args = append(args, maxCandidates)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates := make([]Candidate, 0, maxCandidates)
	for rows.Next() {
		var c Candidate
		err := rows.Scan(
			&c.Obs.ID, &c.Obs.Project, &c.Obs.Kind, &c.Obs.Title, &c.Obs.Body,
			&c.Obs.Narrative, &c.Obs.Concepts, &c.Obs.FilesModified,
			&c.Obs.CreatedAt, &c.Obs.CreatedAtEpoch, &c.Obs.LastAccessedEpoch, &c.Obs.IsStale,
			&c.Vector, &c.Dimensions, &c.Model,
		)
		if err != nil {
			return nil, err
		}
		s.candidateScans.Add(1)
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// ListMissingEmbeddings returns observations that do not yet have a
// vector, oldest first so backfill catches up in insertion order.
func (s *SQLiteStore) ListMissingEmbeddings(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT o.id
		FROM observations o
		LEFT JOIN embeddings e ON e.observation_id = o.id
		WHERE e.observation_id IS NULL
		ORDER BY o.created_at_epoch ASC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list missing embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CandidateRowsScanned reports the cumulative number of candidate rows
// pulled into the in-process similarity pass. Exposed for capacity
// monitoring and scan-bound assertions.
func (s *SQLiteStore) CandidateRowsScanned() int64 {
	return s.candidateScans.Load()
}
