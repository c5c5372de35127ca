package services

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrProfileMissing         = errors.New("profile missing")
	ErrScopeViolation         = errors.New("scope violation")
	ErrSessionClosed          = errors.New("session closed")
	ErrNotFound               = errors.New("not found")
	ErrForbidden              = errors.New("forbidden")
	ErrConflict               = errors.New("conflict")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInactiveAccount        = errors.New("inactive account")
	ErrInvalidCredentials     = errors.New("invalid credentials")
)

// notFound turns a storage miss into ErrNotFound and leaves other errors alone.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
