package ledger

import (
	"context"
	"time"

	"github.com/xraph/almanac/event"
	"github.com/xraph/almanac/policy"
)

// Store defines the persistence contract for the dispatch ledger.
type Store interface {
	// TryClaim atomically inserts rec if and only if no record exists for
	// its composite key, returning true when this call performed the
	// insert. Implementations MUST back this with a single conditional
	// insert (unique constraint, SETNX, duplicate-key error), never a
	// read-then-write: overlapping cycles race on exactly this call.
	TryClaim(ctx context.Context, rec *Record) (bool, error)

	// SetChannelsSent records the channels that reported delivery for an
	// already-claimed key. Audit only; never creates a record.
	SetChannelsSent(ctx context.Context, eventID event.ID, userID string, leadWindowDays int, channels []policy.Channel) error

	// GetRecord returns the record for a composite key.
	GetRecord(ctx context.Context, eventID event.ID, userID string, leadWindowDays int) (*Record, error)

	// CountRecords returns the total number of ledger records.
	CountRecords(ctx context.Context) (int64, error)

	// Prune removes records whose event occurred before the cutoff.
	// Records for events that have not yet occurred are never removed,
	// regardless of their age.
	Prune(ctx context.Context, occurredBefore time.Time) (int64, error)
}
