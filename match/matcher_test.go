package match_test

import (
	"testing"
	"time"

	"github.com/xraph/almanac/event"
	"github.com/xraph/almanac/internal/entity"
	"github.com/xraph/almanac/match"
	"github.com/xraph/almanac/policy"
)

func testEvent(occursAt time.Time, impact event.Impact) *event.Event {
	return &event.Event{
		Entity:   entity.New(),
		ID:       event.NewID("fomc", occursAt),
		Title:    "FOMC Rate Decision",
		Category: event.CategoryFed,
		Impact:   impact,
		OccursAt: occursAt,
	}
}

func subscriber(userID string, windows []int, channels []policy.Channel, filter policy.ImpactFilter) *policy.Subscriber {
	return &policy.Subscriber{
		Entity:          entity.New(),
		UserID:          userID,
		Policy:          policy.Policy{LeadWindowDays: windows, Channels: channels, ImpactFilter: filter},
		AccountChannels: channels,
	}
}

func TestDaysUntilUsesCalendarDays(t *testing.T) {
	// 18:00 event, 12:00 "now" three days earlier: 3.25 wall-clock days,
	// but exactly 3 calendar days.
	occursAt := time.Date(2025, time.September, 17, 18, 0, 0, 0, time.UTC)
	now := time.Date(2025, time.September, 14, 12, 0, 0, 0, time.UTC)

	if got := match.DaysUntil(now, occursAt); got != 3 {
		t.Fatalf("DaysUntil = %d, want 3", got)
	}

	// Late in the evening of the same day, still 3 calendar days.
	if got := match.DaysUntil(now.Add(11*time.Hour), occursAt); got != 3 {
		t.Fatalf("DaysUntil late evening = %d, want 3", got)
	}

	// The day after the event has passed.
	if got := match.DaysUntil(occursAt.Add(24*time.Hour), occursAt); got != -1 {
		t.Fatalf("DaysUntil after event = %d, want -1", got)
	}
}

func TestNoPrematureNotification(t *testing.T) {
	occursAt := time.Date(2025, time.September, 27, 18, 0, 0, 0, time.UTC)
	evt := testEvent(occursAt, event.ImpactHigh)
	subs := []*policy.Subscriber{
		subscriber("u1", []int{3, 7}, []policy.Channel{policy.ChannelEmail}, policy.FilterAll),
	}

	// 10 days out: no candidates.
	now := occursAt.AddDate(0, 0, -10)
	if got := match.Candidates(evt, subs, now); len(got) != 0 {
		t.Fatalf("10 days out: got %d candidates, want 0", len(got))
	}

	// Exactly 7 days out: one candidate for window 7.
	now = occursAt.AddDate(0, 0, -7)
	got := match.Candidates(evt, subs, now)
	if len(got) != 1 {
		t.Fatalf("7 days out: got %d candidates, want 1", len(got))
	}
	if got[0].LeadWindowDays != 7 {
		t.Errorf("window = %d, want 7", got[0].LeadWindowDays)
	}

	// Exactly 3 days out: a distinct candidate for window 3.
	now = occursAt.AddDate(0, 0, -3)
	got = match.Candidates(evt, subs, now)
	if len(got) != 1 {
		t.Fatalf("3 days out: got %d candidates, want 1", len(got))
	}
	if got[0].LeadWindowDays != 3 {
		t.Errorf("window = %d, want 3", got[0].LeadWindowDays)
	}
}

func TestImpactFilterExcludesCandidates(t *testing.T) {
	subs := []*policy.Subscriber{
		subscriber("u1", []int{3}, []policy.Channel{policy.ChannelEmail}, policy.FilterHighOnly),
	}

	for _, impact := range []event.Impact{event.ImpactMedium, event.ImpactLow} {
		occursAt := time.Now().UTC().AddDate(0, 0, 3)
		evt := testEvent(occursAt, impact)
		if got := match.Candidates(evt, subs, time.Now().UTC()); len(got) != 0 {
			t.Errorf("impact %s: high_only user matched", impact)
		}
	}
}

func TestEmptyResolvedChannelsRejectsCandidate(t *testing.T) {
	occursAt := time.Date(2025, time.October, 10, 15, 0, 0, 0, time.UTC)
	evt := testEvent(occursAt, event.ImpactHigh)

	// Policy wants push, account only enables email: nothing resolves, and
	// there is no implicit fallback to other channels.
	sub := &policy.Subscriber{
		Entity: entity.New(),
		UserID: "u1",
		Policy: policy.Policy{
			LeadWindowDays: []int{3},
			Channels:       []policy.Channel{policy.ChannelPush},
			ImpactFilter:   policy.FilterAll,
		},
		AccountChannels: []policy.Channel{policy.ChannelEmail},
	}

	now := occursAt.AddDate(0, 0, -3)
	if got := match.Candidates(evt, evtSubs(sub), now); len(got) != 0 {
		t.Fatalf("got %d candidates, want 0", len(got))
	}
}

func TestIgnoredEventYieldsNothing(t *testing.T) {
	occursAt := time.Date(2025, time.October, 10, 15, 0, 0, 0, time.UTC)
	evt := testEvent(occursAt, event.ImpactHigh)
	evt.Ignored = true

	subs := []*policy.Subscriber{
		subscriber("u1", []int{3}, []policy.Channel{policy.ChannelEmail}, policy.FilterAll),
	}
	if got := match.Candidates(evt, subs, occursAt.AddDate(0, 0, -3)); len(got) != 0 {
		t.Fatal("ignored event produced candidates")
	}
}

func TestMatcherScenarioFOMC(t *testing.T) {
	// Event FOMC-2025-09-17, high impact, 2025-09-17T18:00:00Z.
	occursAt := time.Date(2025, time.September, 17, 18, 0, 0, 0, time.UTC)
	evt := testEvent(occursAt, event.ImpactHigh)

	subs := []*policy.Subscriber{
		subscriber("U1", []int{1, 3}, []policy.Channel{policy.ChannelEmail}, policy.FilterAll),
	}

	now := time.Date(2025, time.September, 14, 12, 0, 0, 0, time.UTC)
	got := match.Candidates(evt, subs, now)
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1", len(got))
	}

	c := got[0]
	if c.UserID != "U1" || c.LeadWindowDays != 3 {
		t.Errorf("candidate = (%s, %d), want (U1, 3)", c.UserID, c.LeadWindowDays)
	}
	if len(c.Channels) != 1 || c.Channels[0] != policy.ChannelEmail {
		t.Errorf("channels = %v, want [email]", c.Channels)
	}
	if c.Message == "" {
		t.Error("message not rendered")
	}
}

func evtSubs(subs ...*policy.Subscriber) []*policy.Subscriber { return subs }
