// Package match computes which subscribers should be notified about an
// upcoming event right now. It is a pure decision layer: it holds no state,
// and re-running it against the same inputs is always safe. Filtering out
// already-notified (user, window) pairs is the dedup ledger's job, not ours.
package match

import (
	"fmt"
	"time"

	"github.com/xraph/almanac/event"
	"github.com/xraph/almanac/policy"
)

// Candidate is one prospective notification: a (user, lead window) pair
// that matched an event, with the resolved channel list and the rendered
// message. Candidates are transient; the dispatch ledger record is the
// durable artifact.
type Candidate struct {
	Event          *event.Event
	UserID         string
	LeadWindowDays int
	Channels       []policy.Channel
	Message        string
}

// DaysUntil returns the number of whole calendar days from now until
// occursAt, computed on UTC dates. Using calendar days rather than
// wall-clock hours keeps the answer stable across the day regardless of
// the hour the cycle happens to run. Negative means the event has passed.
func DaysUntil(now, occursAt time.Time) int {
	nowDate := truncateToDay(now)
	eventDate := truncateToDay(occursAt)
	return int(eventDate.Sub(nowDate) / (24 * time.Hour))
}

// Candidates computes every (user, lead window) notification that should
// fire for evt at the current time. A user with multiple matching windows
// would appear once per window, but since windows are distinct integers and
// an event has a single daysUntil, at most one window matches per run.
func Candidates(evt *event.Event, subs []*policy.Subscriber, now time.Time) []*Candidate {
	if evt.Ignored {
		return nil
	}

	daysUntil := DaysUntil(now, evt.OccursAt)
	if daysUntil < 0 {
		return nil
	}

	var out []*Candidate
	for _, sub := range subs {
		if !sub.Policy.HasWindow(daysUntil) {
			continue
		}
		if !sub.Policy.ImpactFilter.Admits(evt.Impact) {
			continue
		}

		channels := sub.ResolvedChannels()
		if len(channels) == 0 {
			continue
		}

		out = append(out, &Candidate{
			Event:          evt,
			UserID:         sub.UserID,
			LeadWindowDays: daysUntil,
			Channels:       channels,
			Message:        renderMessage(evt, daysUntil),
		})
	}
	return out
}

// renderMessage builds the human-readable notification text.
func renderMessage(evt *event.Event, daysUntil int) string {
	when := evt.OccursAt.UTC().Format("Jan 2, 2006")
	switch daysUntil {
	case 0:
		return fmt.Sprintf("%s is today (%s)", evt.Title, when)
	case 1:
		return fmt.Sprintf("%s is tomorrow (%s)", evt.Title, when)
	default:
		return fmt.Sprintf("%s is in %d days (%s)", evt.Title, daysUntil, when)
	}
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
