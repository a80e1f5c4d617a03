// Package postgres implements the persistent stores over pgx. Storage-layer
// errors are translated into domain errors at this boundary; raw pgx errors
// never cross it unwrapped.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the postgres error code for unique constraint violations.
const uniqueViolation = "23505"

// DB is the subset of pgxpool.Pool the stores need.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ DB = (*pgxpool.Pool)(nil)

// isUniqueViolation reports whether err is a unique violation on the named
// constraint. An empty constraint matches any unique violation.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// noRows reports whether err is the pgx no-rows sentinel.
func noRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
