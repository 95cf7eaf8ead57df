// Package database provides PostgreSQL persistence for clients, contracts
// and payments.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/viniciusnovato/finance-sub000/internal/config"
)

// fetchPageSize is the row ceiling of a single listing query. Full
// collections are read page by page and concatenated.
const fetchPageSize = 1000

// uniqueViolation is the PostgreSQL error code for unique_violation.
const uniqueViolation = "23505"

// DB holds the database connection pool.
type DB struct {
	pool *pgxpool.Pool
}

const (
	connectTimeout  = 10 * time.Second
	defaultMaxConns = 10
)

// New connects to the configured database with the configured pool size.
func New(cfg *config.Config) (*DB, error) {
	return connect(cfg.DatabaseURL(), cfg.DBMaxConns)
}

// NewFromURL connects to databaseURL with the default pool size.
func NewFromURL(databaseURL string) (*DB, error) {
	return connect(databaseURL, 0)
}

func connect(databaseURL string, maxConns int) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	poolConfig.MaxConns = int32(maxConns)
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// HealthCheck verifies database connectivity.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// ExecContext executes a query that doesn't return rows.
func (db *DB) ExecContext(ctx context.Context, sql string, args ...interface{}) (int64, error) {
	result, err := db.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// QueryRowContext executes a query that returns a single row.
func (db *DB) QueryRowContext(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return db.pool.QueryRow(ctx, sql, args...)
}

// QueryContext executes a query that returns rows.
func (db *DB) QueryContext(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return db.pool.Query(ctx, sql, args...)
}

// WithTransaction executes a function within a transaction.
func (db *DB) WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// fetchAll reads every row of a listing by issuing LIMIT/OFFSET queries of
// fetchPageSize rows until a short page comes back.
func fetchAll[T any](ctx context.Context, fetch func(ctx context.Context, limit, offset int) ([]T, error)) ([]T, error) {
	var all []T
	for offset := 0; ; offset += fetchPageSize {
		page, err := fetch(ctx, fetchPageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < fetchPageSize {
			return all, nil
		}
	}
}

// isUniqueViolation reports whether err is a unique constraint failure,
// optionally on the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
