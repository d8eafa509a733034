package event

import (
	"context"
	"time"
)

// Store defines the persistence contract for projected market events.
type Store interface {
	// UpsertEvent persists an event. Idempotent by ID: if an event with the
	// same ID already exists the call is a no-op (identity and occurs_at are
	// immutable once persisted).
	UpsertEvent(ctx context.Context, evt *Event) error

	// GetEvent returns an event by ID.
	GetEvent(ctx context.Context, evtID ID) (*Event, error)

	// ListUpcoming returns non-ignored events with occurs_at after now,
	// ordered by occurs_at ascending. This is the matching hot path.
	ListUpcoming(ctx context.Context, limit int, now time.Time) ([]*Event, error)

	// ListEvents returns events, optionally filtered by category or time range.
	ListEvents(ctx context.Context, opts ListOpts) ([]*Event, error)

	// MarkIgnored administratively suppresses an event from matching.
	MarkIgnored(ctx context.Context, evtID ID) error

	// DeleteEvent removes an event. Administrative only; superseded events
	// are normally kept.
	DeleteEvent(ctx context.Context, evtID ID) error
}
