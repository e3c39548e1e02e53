package storage

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// IsConflict reports an exclusion-constraint violation, which the appointments
// table raises for overlapping live bookings of one staff member.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// IsNotFound reports an empty result, or an id that is not a valid uuid and so
// cannot match any row (SQLSTATE 22P02).
func IsNotFound(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

// notFound maps IsNotFound errors onto model.ErrNotFound.
func notFound(err error) error {
	if IsNotFound(err) {
		return model.ErrNotFound
	}
	return err
}
