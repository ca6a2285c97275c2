package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrValidation      = errors.New("validation failed")
	ErrExternalService = errors.New("external service failure")
	ErrVersionConflict = errors.New("entity was modified concurrently")
	ErrBusy            = errors.New("entity is locked by another writer")
	ErrRateLimited     = errors.New("too many requests")

	// ErrInvalidArgument is kept as the historical name for validation failures.
	ErrInvalidArgument = ErrValidation

	// Persistence errors
	ErrOperationFailed    = errors.New("database operation failed")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)

var (
	ErrSubscriptionNotFound = fmt.Errorf("subscription: %w", ErrNotFound)
	ErrTariffNotFound       = fmt.Errorf("tariff: %w", ErrNotFound)
	ErrAccountNotFound      = fmt.Errorf("account: %w", ErrNotFound)

	// ErrTariffMismatch is returned when a tariff does not belong to the
	// subscription of the account it is applied to.
	ErrTariffMismatch = fmt.Errorf("%w: tariff does not belong to the account subscription", ErrValidation)
)

// Invalid wraps ErrValidation with a field level message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// External wraps an error returned by a remote dependency.
func External(service string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrExternalService, service, err)
}
