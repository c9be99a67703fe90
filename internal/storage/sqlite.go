package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/memloop/memloop-mcp/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger

	// candidateScans counts rows handed to the similarity scan, so the
	// bounded-scan invariant is observable from tests and status.
	candidateScans atomic.Int64
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// obsColumns is the canonical observation column list used by every
// observation SELECT in this package.
const obsColumns = `id, project, kind, title, body, narrative, concepts, files_modified,
       created_at, created_at_epoch, last_accessed_epoch, is_stale`

// rowScanner is implemented by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanObservation(row rowScanner, obs *types.Observation) error {
	return row.Scan(
		&obs.ID, &obs.Project, &obs.Kind, &obs.Title, &obs.Body,
		&obs.Narrative, &obs.Concepts, &obs.FilesModified,
		&obs.CreatedAt, &obs.CreatedAtEpoch, &obs.LastAccessedEpoch, &obs.IsStale,
	)
}

// Observation operations

// InsertObservation stores a new observation. A missing ID gets a fresh
// UUID; missing timestamps are filled from the current time.
func (s *SQLiteStore) InsertObservation(ctx context.Context, obs *types.Observation) error {
	if err := obs.Validate(); err != nil {
		return err
	}

	if obs.ID == "" {
		obs.ID = uuid.NewString()
	}
	if obs.CreatedAtEpoch == 0 {
		now := time.Now().UTC()
		obs.CreatedAtEpoch = types.EpochMillis(now)
		obs.CreatedAt = now.Format(time.RFC3339)
	}
	if obs.CreatedAt == "" {
		obs.CreatedAt = time.UnixMilli(obs.CreatedAtEpoch).UTC().Format(time.RFC3339)
	}

	query := `
		INSERT INTO observations (
			id, project, kind, title, body, narrative, concepts, files_modified,
			created_at, created_at_epoch, last_accessed_epoch, is_stale
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		obs.ID, obs.Project, obs.Kind, obs.Title, obs.Body,
		obs.Narrative, obs.Concepts, obs.FilesModified,
		obs.CreatedAt, obs.CreatedAtEpoch, obs.LastAccessedEpoch, obs.IsStale,
	)
	if err != nil {
		return fmt.Errorf("failed to insert observation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetObservation(ctx context.Context, id string) (*types.Observation, error) {
	query := `SELECT ` + obsColumns + ` FROM observations WHERE id = ?`

	var obs types.Observation
	err := scanObservation(s.db.QueryRowContext(ctx, query, id), &obs)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &obs, nil
}

// MarkStale flips the staleness flag, set externally when files the
// observation referenced change after recording.
func (s *SQLiteStore) MarkStale(ctx context.Context, id string, stale bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE observations SET is_stale = ? WHERE id = ?`, stale, id)
	if err != nil {
		return fmt.Errorf("failed to mark stale: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastAccessed records that the given observations were served in a
// retrieval response.
func (s *SQLiteStore) TouchLastAccessed(ctx context.Context, ids []string, epoch int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, epoch)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := `UPDATE observations SET last_accessed_epoch = ? WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// RecentObservations lists observations newest first, for retrieval
// paths that have no query to rank against.
func (s *SQLiteStore) RecentObservations(ctx context.Context, filters Filters) ([]types.Observation, error) {
	query := `
		SELECT o.id, o.project, o.kind, o.title, o.body, o.narrative, o.concepts, o.files_modified,
		       o.created_at, o.created_at_epoch, o.last_accessed_epoch, o.is_stale
		FROM observations o
		WHERE 1=1
	`
	args := []interface{}{}
	query, args = applyObservationFilters(query, args, filters)
	query += " ORDER BY o.created_at_epoch DESC LIMIT ?"
	args = append(args, searchLimit(filters))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	observations := make([]types.Observation, 0)
	for rows.Next() {
		var obs types.Observation
		if err := scanObservation(rows, &obs); err != nil {
			return nil, err
		}
		observations = append(observations, obs)
	}
	return observations, rows.Err()
}

// Summary operations

func (s *SQLiteStore) InsertSummary(ctx context.Context, summary *types.Summary) error {
	if summary.ID == "" {
		summary.ID = uuid.NewString()
	}
	if summary.CreatedAtEpoch == 0 {
		summary.CreatedAtEpoch = types.EpochMillis(time.Now().UTC())
	}

	query := `INSERT INTO summaries (id, project, content, created_at_epoch) VALUES (?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, summary.ID, summary.Project, summary.Content, summary.CreatedAtEpoch)
	if err != nil {
		return fmt.Errorf("failed to insert summary: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecentSummaries(ctx context.Context, project string, limit int) ([]*types.Summary, error) {
	if limit <= 0 {
		limit = 3
	}
	query := `
		SELECT id, project, content, created_at_epoch
		FROM summaries
		WHERE project = ?
		ORDER BY created_at_epoch DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, project, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	summaries := make([]*types.Summary, 0, limit)
	for rows.Next() {
		var sum types.Summary
		if err := rows.Scan(&sum.ID, &sum.Project, &sum.Content, &sum.CreatedAtEpoch); err != nil {
			return nil, err
		}
		summaries = append(summaries, &sum)
	}
	return summaries, rows.Err()
}

// Status operations

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM observations").Scan(&stats.Observations); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&stats.Embeddings); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM summaries").Scan(&stats.Summaries); err != nil {
		return nil, err
	}

	var pageCount, pageSize int
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats.DBSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	return stats, nil
}
