package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/brojonat/tronlink/service/metrics"
	"github.com/brojonat/tronlink/service/search"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const searchesTable = "connection_searches"

// ErrNotFound is returned when a search does not exist.
var ErrNotFound = errors.New("search not found")

// schema is applied by EnsureSchema. It is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS connection_searches (
    id               UUID PRIMARY KEY,
    source           TEXT NOT NULL,
    target           TEXT NOT NULL,
    max_depth        INTEGER NOT NULL,
    workers          INTEGER NOT NULL,
    follow_jq        TEXT NOT NULL DEFAULT '',
    found            BOOLEAN NOT NULL,
    inconclusive     BOOLEAN NOT NULL,
    failed_addresses TEXT[] NOT NULL DEFAULT '{}',
    started_at       TIMESTAMPTZ NOT NULL,
    finished_at      TIMESTAMPTZ NOT NULL,
    log              JSONB NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS connection_searches_started_at_idx
    ON connection_searches (started_at DESC);
`

const searchColumns = `id, source, target, max_depth, workers, follow_jq, found, inconclusive,
    failed_addresses, started_at, finished_at, log`

// Store persists search reports in Postgres.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// m may be nil.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{
		pool:    pool,
		metrics: m,
	}
}

// EnsureSchema creates the searches table if it doesn't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// CreateSearch inserts a completed search report.
func (s *Store) CreateSearch(ctx context.Context, report *search.Report) error {
	logJSON, err := json.Marshal(nonNil(report.Log))
	if err != nil {
		return fmt.Errorf("failed to marshal search log: %w", err)
	}

	start := time.Now()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO connection_searches (`+searchColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		pgUUID(report.ID),
		report.Source,
		report.Target,
		report.MaxDepth,
		report.Workers,
		report.FollowJQ,
		report.Found,
		report.Inconclusive,
		nonNil(report.FailedAddresses),
		report.StartedAt,
		report.FinishedAt,
		logJSON,
	)
	s.record("create", start, err)
	if err != nil {
		return fmt.Errorf("failed to insert search: %w", err)
	}
	return nil
}

// GetSearch retrieves a search report by ID.
// Returns ErrNotFound if no such search exists.
func (s *Store) GetSearch(ctx context.Context, id uuid.UUID) (*search.Report, error) {
	start := time.Now()
	row := s.pool.QueryRow(ctx, `SELECT `+searchColumns+` FROM connection_searches WHERE id = $1`, pgUUID(id))
	report, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		s.record("get", start, nil)
		return nil, ErrNotFound
	}
	s.record("get", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get search: %w", err)
	}
	return report, nil
}

// ListSearches returns the most recent searches, newest first.
func (s *Store) ListSearches(ctx context.Context, limit int) ([]*search.Report, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx, `
		SELECT `+searchColumns+` FROM connection_searches
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		s.record("list", start, err)
		return nil, fmt.Errorf("failed to list searches: %w", err)
	}
	defer rows.Close()

	reports := make([]*search.Report, 0)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			s.record("list", start, err)
			return nil, fmt.Errorf("failed to scan search: %w", err)
		}
		reports = append(reports, report)
	}
	err = rows.Err()
	s.record("list", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list searches: %w", err)
	}
	return reports, nil
}

func (s *Store) record(operation string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordDBQuery(operation, searchesTable, time.Since(start).Seconds(), err)
	}
}

func scanReport(row pgx.Row) (*search.Report, error) {
	var (
		id      pgtype.UUID
		logJSON []byte
		report  search.Report
	)
	err := row.Scan(
		&id,
		&report.Source,
		&report.Target,
		&report.MaxDepth,
		&report.Workers,
		&report.FollowJQ,
		&report.Found,
		&report.Inconclusive,
		&report.FailedAddresses,
		&report.StartedAt,
		&report.FinishedAt,
		&logJSON,
	)
	if err != nil {
		return nil, err
	}

	report.ID = uuid.UUID(id.Bytes)
	report.StartedAt = report.StartedAt.UTC()
	report.FinishedAt = report.FinishedAt.UTC()
	if err := json.Unmarshal(logJSON, &report.Log); err != nil {
		return nil, fmt.Errorf("failed to decode search log: %w", err)
	}
	return &report, nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: [16]byte(id), Valid: true}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
