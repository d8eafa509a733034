// Package dispatch fans a matched notification out to its resolved
// channels. Each channel send is isolated: one channel failing, panicking,
// or timing out never prevents the remaining channels from being attempted.
package dispatch

import (
	"context"

	"github.com/xraph/almanac/policy"
)

// Status is the outcome of one channel send attempt.
type Status string

const (
	// StatusDelivered indicates the channel accepted the notification.
	StatusDelivered Status = "delivered"

	// StatusFailed indicates the channel send returned an error or panicked.
	StatusFailed Status = "failed"

	// StatusSkipped indicates no sender is registered for the channel.
	StatusSkipped Status = "skipped"
)

// Channel sends a notification message to a user over one delivery medium.
type Channel interface {
	// Name identifies the channel this sender serves.
	Name() policy.Channel

	// Send delivers the message to the user. Implementations should honor
	// context cancellation.
	Send(ctx context.Context, userID, message string) error
}

// Outcome records the result of a single channel send attempt.
type Outcome struct {
	Channel   policy.Channel `json:"channel"`
	Status    Status         `json:"status"`
	Error     string         `json:"error,omitempty"`
	LatencyMs int            `json:"latency_ms,omitempty"`
}

// Result aggregates the per-channel outcomes for one candidate.
type Result struct {
	Outcomes []Outcome `json:"outcomes"`
}

// DeliveredChannels returns the channels that accepted the notification,
// in attempt order. Returns nil when nothing was delivered.
func (r *Result) DeliveredChannels() []policy.Channel {
	var out []policy.Channel
	for _, o := range r.Outcomes {
		if o.Status == StatusDelivered {
			out = append(out, o.Channel)
		}
	}
	return out
}

// Counts returns the number of delivered, failed, and skipped outcomes.
func (r *Result) Counts() (delivered, failed, skipped int) {
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusDelivered:
			delivered++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return delivered, failed, skipped
}
