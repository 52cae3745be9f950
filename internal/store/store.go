// Package store is the gateway's Postgres-backed relational persistence
// layer: typed repositories for targets, versioned contexts, missions,
// actions, requests, the technique library, and target notes, plus
// pgvector-backed cosine-similarity search. The pool sits behind a narrow
// DBPool interface (pgx/v5 at runtime, pgxmock in tests) wrapped by a
// zap-logged Store.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/redwire/redwire/internal/apperr"
	"github.com/redwire/redwire/internal/telemetry"
)

// DBPool abstracts pgxpool.Pool so tests can substitute pgxmock without
// touching a real database.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store is the gateway's repository surface over DBPool.
type Store struct {
	pool    DBPool
	log     *zap.Logger
	metrics *telemetry.Metrics
}

// WithMetrics attaches Prometheus collectors that wrapErr increments on
// every classified repository error. Returns s for chaining; m may be nil
// to disable.
func (s *Store) WithMetrics(m *telemetry.Metrics) *Store {
	s.metrics = m
	return s
}

// New verifies connectivity and returns a Store. Callers should invoke
// Migrate before serving traffic on a fresh database.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, apperr.New(apperr.StoreUnavailable, "pinging database: %v", err)
	}
	return &Store{pool: pool, log: logger.Named("store")}, nil
}

// wrapErr classifies a raw pgx/driver error into a Structured apperr,
// treating pgx.ErrNoRows as not_found and everything else as internal
// (with a correlation id) unless the caller has already classified it.
// op is also the repository label reported on redwire_store_errors_total.
func (s *Store) wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if err == pgx.ErrNoRows {
		return apperr.New(apperr.NotFound, "%s: not found", op)
	}
	if s.metrics != nil {
		s.metrics.StoreErrors.WithLabelValues(op).Inc()
	}
	return apperr.InternalWithCorrelation(fmt.Errorf("%s: %w", op, err))
}
