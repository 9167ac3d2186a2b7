// Package reports serves the one endpoint that reads from the at-rest
// reporting database instead of the legacy backend.
//
// The pool is created lazily on first use, reused for the life of the
// process, and never torn down — it is the only pooled resource in the
// gateway and it belongs to this package alone.
package reports

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Activity is one row of the dashboard activity report.
type Activity struct {
	OccurredAt time.Time `json:"occurredAt"`
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	Detail     string    `json:"detail"`
}

// Store reads the reporting database.
type Store struct {
	dsn string

	mu     sync.Mutex
	opened bool
	db     *sql.DB
	err    error
}

// NewStore creates a reports store. The connection is not opened until the
// first query.
func NewStore(dsn string) *Store {
	return &Store{dsn: dsn}
}

// Enabled reports whether a reporting database is configured at all.
func (s *Store) Enabled() bool {
	return s.dsn != ""
}

// pool opens the connection pool exactly once per process. The mutex also
// covers DB(), which the metrics sampler polls concurrently with queries.
func (s *Store) pool() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened {
		s.opened = true
		db, err := sql.Open("postgres", s.dsn)
		if err != nil {
			s.err = fmt.Errorf("open reports database: %w", err)
			return nil, s.err
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
		s.db = db
	}
	return s.db, s.err
}

// DB exposes the pool for metrics sampling. Returns nil until the first query.
func (s *Store) DB() *sql.DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db
}

// Ping checks reporting database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	db, err := s.pool()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// RecentActivity returns activity rows from the last N days, newest first.
func (s *Store) RecentActivity(ctx context.Context, days int) ([]Activity, error) {
	db, err := s.pool()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT occurred_at, actor, action, COALESCE(detail, '')
		FROM dashboard_activity
		WHERE occurred_at >= NOW() - make_interval(days => $1)
		ORDER BY occurred_at DESC
		LIMIT 500`, days)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.OccurredAt, &a.Actor, &a.Action, &a.Detail); err != nil {
			return nil, fmt.Errorf("scan activity row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// RecordActivity appends one activity row. Called by handlers that want
// their action visible in the report (login, receiving confirmation).
func (s *Store) RecordActivity(ctx context.Context, actor, action, detail string) error {
	db, err := s.pool()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO dashboard_activity (occurred_at, actor, action, detail)
		VALUES (NOW(), $1, $2, $3)`, actor, action, detail)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}
