package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation       = "23505"
	pgForeignKeyViolation   = "23503"
	pgSerializationFailure  = "40001"
	pgInvalidTextRepresent  = "22P02"
	maxSerializableAttempts = 5
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == pgUniqueViolation
}

func isSerializationFailure(err error) bool {
	return pgCode(err) == pgSerializationFailure
}

// notFound converts "no row" and malformed-id errors into sentinel.
func notFound(err, sentinel error) error {
	if errors.Is(err, pgx.ErrNoRows) || pgCode(err) == pgInvalidTextRepresent {
		return sentinel
	}
	return err
}
