package domain

import "errors"

var (
	// ErrForbidden indicates the caller's role is insufficient for a
	// mutating operation, or the tenant is outside the caller's scope.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates a referenced task or neighbor id does not
	// resolve to an existing record.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument indicates a malformed id, unknown column value or
	// missing required field.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStorageUnavailable indicates the persistence layer is unreachable.
	// It is surfaced to the caller, never retried here.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
