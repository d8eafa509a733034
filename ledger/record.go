// Package ledger is the idempotency authority of the dispatch engine.
//
// A Record exists for every (event, user, lead window) that has been
// claimed for notification. Store.TryClaim is the single linearization
// point: whichever caller inserts the record owns the right to dispatch,
// and everyone else observes "already notified". Everything upstream of
// the ledger may be freely re-executed by overlapping or retried cycles.
package ledger

import (
	"fmt"
	"time"

	"github.com/xraph/almanac/event"
	"github.com/xraph/almanac/id"
	"github.com/xraph/almanac/internal/entity"
	"github.com/xraph/almanac/policy"
)

// Record is one dispatch ledger entry. Its logical identity is the
// composite key (EventID, UserID, LeadWindowDays); the TypeID is a
// surrogate for listing and audit.
type Record struct {
	entity.Entity

	// ID is the surrogate TypeID for this record.
	ID id.ID `json:"id"`

	// EventID references the matched event.
	EventID event.ID `json:"event_id"`

	// UserID identifies the notified subscriber.
	UserID string `json:"user_id"`

	// LeadWindowDays is the lead window that fired.
	LeadWindowDays int `json:"lead_window_days"`

	// OccursAt copies the event's occurrence time so retention pruning can
	// decide without a join, and never drops records for future events.
	OccursAt time.Time `json:"occurs_at"`

	// ChannelsSent records the channels that reported delivery. Written
	// after dispatch for audit; the claim itself precedes any attempt.
	ChannelsSent []policy.Channel `json:"channels_sent,omitempty"`
}

// NewRecord builds the ledger record for a claim attempt.
func NewRecord(evt *event.Event, userID string, leadWindowDays int) *Record {
	return &Record{
		Entity:         entity.New(),
		ID:             id.NewDispatchID(),
		EventID:        evt.ID,
		UserID:         userID,
		LeadWindowDays: leadWindowDays,
		OccursAt:       evt.OccursAt,
	}
}

// Key returns the composite dedup key for this record.
func (r *Record) Key() string {
	return Key(r.EventID, r.UserID, r.LeadWindowDays)
}

// Key builds the composite dedup key string used by key-value backends and
// in-memory indexes.
func Key(eventID event.ID, userID string, leadWindowDays int) string {
	return fmt.Sprintf("%s|%s|%d", eventID, userID, leadWindowDays)
}

// Horizon returns the retention horizon for ledger pruning: records whose
// event occurred more than this long ago may be dropped. It is the largest
// configured lead window plus a safety margin, so a record always outlives
// every window that could reference its event.
func Horizon(maxLeadWindowDays int, margin time.Duration) time.Duration {
	return time.Duration(maxLeadWindowDays)*24*time.Hour + margin
}
