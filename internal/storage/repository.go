// Package storage persists phase timelines and labeled prices in PostgreSQL
// and caches timelines in Redis.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wonny/lunaris/internal/contracts"
)

// ErrNotFound is returned when no timeline is stored for a study hash
var ErrNotFound = errors.New("timeline not found")

// DBTX is the subset of pgxpool.Pool used by Repository
type DBTX interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS lunar`,
	`CREATE TABLE IF NOT EXISTS lunar.timelines (
		timeline_key   TEXT PRIMARY KEY,
		range_start    TIMESTAMPTZ NOT NULL,
		range_end      TIMESTAMPTZ NOT NULL,
		phase_count    INTEGER NOT NULL,
		boundary_count INTEGER NOT NULL,
		clamped_count  INTEGER NOT NULL,
		built_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS lunar.phase_boundaries (
		timeline_key TEXT NOT NULL REFERENCES lunar.timelines(timeline_key) ON DELETE CASCADE,
		seq          INTEGER NOT NULL,
		instant_utc  TIMESTAMPTZ NOT NULL,
		phase_index  INTEGER NOT NULL,
		phase_name   TEXT NOT NULL,
		clamped      BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (timeline_key, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS lunar.labeled_prices (
		timeline_key TEXT NOT NULL,
		ts           TIMESTAMPTZ NOT NULL,
		open         NUMERIC NOT NULL,
		high         NUMERIC NOT NULL,
		low          NUMERIC NOT NULL,
		close        NUMERIC NOT NULL,
		volume       NUMERIC NOT NULL,
		phase_name   TEXT NOT NULL,
		period_name  TEXT NOT NULL,
		out_of_range BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_labeled_prices_key_ts ON lunar.labeled_prices (timeline_key, ts)`,
}

var (
	boundaryColumns = []string{"timeline_key", "seq", "instant_utc", "phase_index", "phase_name", "clamped"}
	priceColumns    = []string{"timeline_key", "ts", "open", "high", "low", "close", "volume", "phase_name", "period_name", "out_of_range"}
)

// Repository handles timeline and labeled-price persistence
type Repository struct {
	db DBTX
}

// NewRepository creates a new Repository instance
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

var (
	_ contracts.TimelineRepository     = (*Repository)(nil)
	_ contracts.LabeledPriceRepository = (*Repository)(nil)
)

// EnsureSchema creates the lunar schema and tables if missing
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// SaveTimeline replaces the stored timeline of a study in one transaction
func (r *Repository) SaveTimeline(ctx context.Context, key string, snapshot *contracts.PhaseTimelineSnapshot) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	query := `
		INSERT INTO lunar.timelines (
			timeline_key,
			range_start,
			range_end,
			phase_count,
			boundary_count,
			clamped_count,
			built_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (timeline_key) DO UPDATE SET
			range_start = EXCLUDED.range_start,
			range_end = EXCLUDED.range_end,
			phase_count = EXCLUDED.phase_count,
			boundary_count = EXCLUDED.boundary_count,
			clamped_count = EXCLUDED.clamped_count,
			built_at = NOW()
	`
	_, err = tx.Exec(ctx, query,
		key,
		snapshot.RangeStart,
		snapshot.RangeEnd,
		snapshot.PhaseCount,
		len(snapshot.Boundaries),
		snapshot.ClampedCount(),
	)
	if err != nil {
		return fmt.Errorf("upsert timeline: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM lunar.phase_boundaries WHERE timeline_key = $1`, key); err != nil {
		return fmt.Errorf("delete boundaries: %w", err)
	}

	rows := pgx.CopyFromSlice(len(snapshot.Boundaries), func(i int) ([]any, error) {
		b := snapshot.Boundaries[i]
		return []any{key, i, b.Instant.UTC(), b.PhaseIndex, b.PhaseName, b.Clamped}, nil
	})
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"lunar", "phase_boundaries"}, boundaryColumns, rows); err != nil {
		return fmt.Errorf("copy boundaries: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadTimeline reads a stored timeline. Returns ErrNotFound when absent.
func (r *Repository) LoadTimeline(ctx context.Context, key string) (*contracts.PhaseTimelineSnapshot, error) {
	snapshot := &contracts.PhaseTimelineSnapshot{}

	err := r.db.QueryRow(ctx, `
		SELECT range_start, range_end, phase_count
		FROM lunar.timelines
		WHERE timeline_key = $1
	`, key).Scan(&snapshot.RangeStart, &snapshot.RangeEnd, &snapshot.PhaseCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query timeline: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT instant_utc, phase_index, phase_name, clamped
		FROM lunar.phase_boundaries
		WHERE timeline_key = $1
		ORDER BY seq
	`, key)
	if err != nil {
		return nil, fmt.Errorf("query boundaries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b contracts.PhaseBoundary
		if err := rows.Scan(&b.Instant, &b.PhaseIndex, &b.PhaseName, &b.Clamped); err != nil {
			return nil, fmt.Errorf("scan boundary: %w", err)
		}
		b.Instant = b.Instant.UTC()
		snapshot.Boundaries = append(snapshot.Boundaries, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate boundaries: %w", err)
	}

	snapshot.RangeStart = snapshot.RangeStart.UTC()
	snapshot.RangeEnd = snapshot.RangeEnd.UTC()
	return snapshot, nil
}

// SaveLabeledPrices replaces the labeled prices of a study in one transaction
func (r *Repository) SaveLabeledPrices(ctx context.Context, key string, prices []contracts.LabeledPrice) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, `DELETE FROM lunar.labeled_prices WHERE timeline_key = $1`, key); err != nil {
		return fmt.Errorf("delete labeled prices: %w", err)
	}

	rows := pgx.CopyFromSlice(len(prices), func(i int) ([]any, error) {
		p := prices[i]
		return []any{
			key,
			p.Timestamp.UTC(),
			p.Open.String(),
			p.High.String(),
			p.Low.String(),
			p.Close.String(),
			p.Volume.String(),
			p.PhaseName,
			p.PeriodName,
			p.OutOfRange,
		}, nil
	})
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"lunar", "labeled_prices"}, priceColumns, rows); err != nil {
		return fmt.Errorf("copy labeled prices: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// PhaseSummary is the tick count per period and phase
type PhaseSummary struct {
	PeriodName string `json:"period_name"`
	PhaseName  string `json:"phase_name"`
	Ticks      int64  `json:"ticks"`
}

// SummarizeLabeledPrices counts stored ticks per period and phase
func (r *Repository) SummarizeLabeledPrices(ctx context.Context, key string) ([]PhaseSummary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT period_name, phase_name, COUNT(*)
		FROM lunar.labeled_prices
		WHERE timeline_key = $1
		GROUP BY period_name, phase_name
		ORDER BY period_name, phase_name
	`, key)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	var summary []PhaseSummary
	for rows.Next() {
		var s PhaseSummary
		if err := rows.Scan(&s.PeriodName, &s.PhaseName, &s.Ticks); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summary = append(summary, s)
	}
	return summary, rows.Err()
}
