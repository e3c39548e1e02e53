package booking

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/limits"
)

// Kind classifies booking failures for callers and transports.
type Kind string

const (
	KindNotFound       Kind = "not_found"
	KindValidation     Kind = "validation"
	KindSlotConflict   Kind = "slot_conflict"
	KindNoAvailability Kind = "no_availability"
	KindLimitExceeded  Kind = "limit_exceeded"
	KindDependency     Kind = "dependency"
	KindInternal       Kind = "internal"
)

// Error is the single error type returned by Coordinator operations.
type Error struct {
	Kind  Kind
	Op    string
	Msg   string
	Err   error
	Usage *limits.Usage
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// KindOf extracts the Kind of err. Errors not produced by this package are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a Kind onto a response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindSlotConflict:
		return http.StatusConflict
	case KindNoAvailability, KindValidation:
		return http.StatusBadRequest
	case KindLimitExceeded:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}
