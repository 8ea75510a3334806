package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// isDuplicate reports a unique constraint violation (23505).
func isDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isNoRows reports a "no rows" scan result.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
