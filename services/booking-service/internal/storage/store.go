package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aurasync/timehold/libs/db"
	"github.com/aurasync/timehold/services/booking-service/internal/lifecycle"
)

// Store is the Postgres-backed implementation of lifecycle.Store plus the
// query methods the HTTP layer needs. Every mutation is a single statement or
// a single transaction; counter updates happen in SQL, never read back and
// rewritten from application memory.
type Store struct {
	pool *db.Pool
}

func New(pool *db.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	return s.pool.Begin(ctx)
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, lifecycle.ErrNotFound)
}

// IsUniqueViolation reports a duplicate-key insert, e.g. reusing a booking
// slug or a client email.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// notFound converts pgx's sentinel into the lifecycle one so callers above
// the storage layer never import pgx.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return lifecycle.ErrNotFound
	}
	return err
}
