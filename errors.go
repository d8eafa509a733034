package almanac

import "errors"

// Sentinel errors returned by Almanac operations.
var (
	// ErrNoStore is returned when an Almanac is created without a store.
	ErrNoStore = errors.New("almanac: store is required")

	// ErrEventNotFound is returned when an event cannot be found.
	ErrEventNotFound = errors.New("almanac: event not found")

	// ErrPolicyNotFound is returned when a user has no notification policy.
	ErrPolicyNotFound = errors.New("almanac: policy not found")

	// ErrRecordNotFound is returned when a ledger record cannot be found.
	ErrRecordNotFound = errors.New("almanac: ledger record not found")

	// ErrDLQNotFound is returned when a DLQ entry cannot be found.
	ErrDLQNotFound = errors.New("almanac: dlq entry not found")

	// ErrStoreClosed is returned when a store operation is attempted after the store is closed.
	ErrStoreClosed = errors.New("almanac: store is closed")

	// ErrMigrationFailed is returned when a database migration fails.
	ErrMigrationFailed = errors.New("almanac: migration failed")
)
