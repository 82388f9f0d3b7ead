package repositories

import (
	"errors"
	"fmt"

	"github.com/bizmarket/backend/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// mapErr translates driver errors into the apperr taxonomy. Anything
// unrecognised is returned as is and ends up as an internal error.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%s already exists: %w", what, apperr.ErrConflict)
	}
	return err
}
