package dlq_test

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/almanac/dlq"
	"github.com/xraph/almanac/event"
	"github.com/xraph/almanac/internal/entity"
	"github.com/xraph/almanac/match"
	"github.com/xraph/almanac/policy"
	"github.com/xraph/almanac/store/memory"
)

func ctx() context.Context { return context.Background() }

func candidate(userID string) *match.Candidate {
	occursAt := time.Now().UTC().AddDate(0, 0, 3)
	return &match.Candidate{
		Event: &event.Event{
			Entity:   entity.New(),
			ID:       event.NewID("fomc", occursAt),
			Title:    "FOMC Rate Decision",
			OccursAt: occursAt,
		},
		UserID:         userID,
		LeadWindowDays: 3,
		Channels:       []policy.Channel{policy.ChannelEmail},
		Message:        "FOMC Rate Decision is in 3 days",
	}
}

func TestPushFailed(t *testing.T) {
	store := memory.New()
	svc := dlq.NewService(store, nil)

	cand := candidate("u1")
	if err := svc.PushFailed(ctx(), cand, policy.ChannelEmail, "smtp unreachable"); err != nil {
		t.Fatal(err)
	}

	entries, err := svc.List(ctx(), dlq.ListOpts{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	entry := entries[0]
	if entry.EventID != cand.Event.ID {
		t.Errorf("event ID = %v, want %v", entry.EventID, cand.Event.ID)
	}
	if entry.UserID != "u1" || entry.Channel != policy.ChannelEmail {
		t.Errorf("entry = %+v", entry)
	}
	if entry.LeadWindowDays != 3 {
		t.Errorf("lead window = %d, want 3", entry.LeadWindowDays)
	}
	if entry.Message != cand.Message {
		t.Errorf("message = %q", entry.Message)
	}
	if entry.Error != "smtp unreachable" {
		t.Errorf("error = %q", entry.Error)
	}
	if entry.FailedAt.IsZero() {
		t.Error("FailedAt should be set")
	}

	got, err := svc.Get(ctx(), entry.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != entry.ID {
		t.Error("Get returned a different entry")
	}
}

func TestOneEntryPerFailedChannel(t *testing.T) {
	store := memory.New()
	svc := dlq.NewService(store, nil)

	cand := candidate("u1")
	if err := svc.PushFailed(ctx(), cand, policy.ChannelEmail, "smtp down"); err != nil {
		t.Fatal(err)
	}
	if err := svc.PushFailed(ctx(), cand, policy.ChannelPush, "apns down"); err != nil {
		t.Fatal(err)
	}

	count, err := svc.Count(ctx())
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func TestPurge(t *testing.T) {
	store := memory.New()
	svc := dlq.NewService(store, nil)

	if err := svc.PushFailed(ctx(), candidate("u1"), policy.ChannelChat, "broker down"); err != nil {
		t.Fatal(err)
	}

	// Nothing is old enough yet.
	purged, err := svc.Purge(ctx(), time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if purged != 0 {
		t.Fatalf("purged = %d, want 0", purged)
	}

	purged, err = svc.Purge(ctx(), time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if purged != 1 {
		t.Fatalf("purged = %d, want 1", purged)
	}
}
