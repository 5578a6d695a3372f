package repository

import (
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound aliases pgx.ErrNoRows so both spellings match.
	ErrNotFound = pgx.ErrNoRows
	// ErrDuplicateEmail reports a unique violation on users.email.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrStatusMismatch reports a conditional update whose expected status or
	// version no longer holds.
	ErrStatusMismatch = errors.New("application changed concurrently")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && (constraint == "" || pgErr.ConstraintName == constraint)
}

// validID reports whether id can name a row; ids are UUID columns and
// anything else would fail the cast server side.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
