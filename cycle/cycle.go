// Package cycle orchestrates one dispatch cycle: project calendar
// definitions into events, match active policies against the upcoming
// events, claim each (event, user, window) in the ledger, and fan the
// claimed notifications out to their channels.
package cycle

import (
	"context"
	"time"

	"github.com/xraph/almanac/event"
	"github.com/xraph/almanac/ledger"
	"github.com/xraph/almanac/match"
	"github.com/xraph/almanac/policy"
)

// Store is the persistence the engine needs for one cycle.
type Store interface {
	// UpsertEvent inserts the event if its ID is new and is a no-op
	// otherwise, preserving any user edits on the existing row.
	UpsertEvent(ctx context.Context, evt *event.Event) error

	// ListUpcoming returns events occurring after now, soonest first.
	ListUpcoming(ctx context.Context, limit int, now time.Time) ([]*event.Event, error)

	// TryClaim atomically claims a (event, user, window) key, returning
	// true when this call won the claim.
	TryClaim(ctx context.Context, rec *ledger.Record) (bool, error)

	// SetChannelsSent records which channels reported delivery for a
	// claimed key.
	SetChannelsSent(ctx context.Context, eventID event.ID, userID string, leadWindowDays int, channels []policy.Channel) error

	// CountRecords returns the total number of ledger records.
	CountRecords(ctx context.Context) (int64, error)

	// Prune removes ledger records for events that occurred before the
	// cutoff.
	Prune(ctx context.Context, occurredBefore time.Time) (int64, error)
}

// DLQPusher records notifications whose channel sends failed.
type DLQPusher interface {
	PushFailed(ctx context.Context, cand *match.Candidate, channel policy.Channel, sendErr string) error
}

// Summary reports what one cycle did.
type Summary struct {
	// RunID is the unique TypeID of this cycle run.
	RunID string `json:"run_id"`

	// StartedAt is when the cycle began.
	StartedAt time.Time `json:"started_at"`

	// Duration is the wall-clock time the cycle took.
	Duration time.Duration `json:"duration"`

	// EventsProjected is the number of definitions projected into events.
	EventsProjected int `json:"events_projected"`

	// CandidatesMatched is the number of (user, window) pairs that matched.
	CandidatesMatched int `json:"candidates_matched"`

	// Claimed is the number of candidates this cycle claimed in the ledger.
	Claimed int `json:"claimed"`

	// AlreadyClaimed is the number of candidates some earlier cycle had
	// already handled.
	AlreadyClaimed int `json:"already_claimed"`

	// Delivered, Failed, and Skipped count individual channel sends across
	// all claimed candidates.
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`

	// PrunedRecords is the number of ledger records removed this cycle.
	PrunedRecords int64 `json:"pruned_records"`
}
