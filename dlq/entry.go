// Package dlq keeps a record of notifications whose every channel attempt
// failed. Entries are for inspection and alerting only: the claim ledger
// already marks the notification as handled, so replaying an entry would
// break the at-most-once guarantee.
package dlq

import (
	"time"

	"github.com/xraph/almanac/event"
	"github.com/xraph/almanac/id"
	"github.com/xraph/almanac/internal/entity"
	"github.com/xraph/almanac/policy"
)

// Entry represents one fully failed notification in the dead letter queue.
type Entry struct {
	entity.Entity

	// ID is the unique TypeID for this DLQ entry.
	ID id.ID `json:"id"`

	// EventID references the calendar event the notification was about.
	EventID event.ID `json:"event_id"`

	// UserID is the subscriber the notification was addressed to.
	UserID string `json:"user_id"`

	// Channel is the channel whose send failed.
	Channel policy.Channel `json:"channel"`

	// LeadWindowDays is the lead window that triggered the notification.
	LeadWindowDays int `json:"lead_window_days"`

	// Message is the rendered notification text that failed to deliver.
	Message string `json:"message"`

	// Error is the error message from the send attempt.
	Error string `json:"error"`

	// FailedAt is when the send failed.
	FailedAt time.Time `json:"failed_at"`
}

// ListOpts configures filtering and pagination for DLQ listing.
type ListOpts struct {
	Offset  int
	Limit   int
	UserID  string
	Channel *policy.Channel
	From    *time.Time
	To      *time.Time
}
