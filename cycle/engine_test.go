package cycle_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/xraph/almanac/calendar"
	"github.com/xraph/almanac/cycle"
	"github.com/xraph/almanac/dispatch"
	"github.com/xraph/almanac/event"
	"github.com/xraph/almanac/ledger"
	"github.com/xraph/almanac/match"
	"github.com/xraph/almanac/policy"
)

// stubStore is a minimal in-memory cycle.Store for engine tests.
type stubStore struct {
	mu      sync.Mutex
	events   map[event.ID]*event.Event
	claims   map[string]*ledger.Record
	sent     map[string][]policy.Channel
	failUps  bool
	failList bool
}

func newStubStore() *stubStore {
	return &stubStore{
		events: make(map[event.ID]*event.Event),
		claims: make(map[string]*ledger.Record),
		sent:   make(map[string][]policy.Channel),
	}
}

func (s *stubStore) UpsertEvent(_ context.Context, evt *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUps {
		return errors.New("upsert refused")
	}
	if _, ok := s.events[evt.ID]; !ok {
		s.events[evt.ID] = evt
	}
	return nil
}

func (s *stubStore) ListUpcoming(_ context.Context, limit int, now time.Time) ([]*event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failList {
		return nil, errors.New("store unavailable")
	}
	var out []*event.Event
	for _, evt := range s.events {
		if !evt.OccursAt.Before(now) {
			out = append(out, evt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccursAt.Before(out[j].OccursAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *stubStore) TryClaim(_ context.Context, rec *ledger.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ledger.Key(rec.EventID, rec.UserID, rec.LeadWindowDays)
	if _, exists := s.claims[key]; exists {
		return false, nil
	}
	s.claims[key] = rec
	return true, nil
}

func (s *stubStore) SetChannelsSent(_ context.Context, eventID event.ID, userID string, leadWindowDays int, channels []policy.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[ledger.Key(eventID, userID, leadWindowDays)] = channels
	return nil
}

func (s *stubStore) CountRecords(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.claims)), nil
}

func (s *stubStore) Prune(_ context.Context, occurredBefore time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, rec := range s.claims {
		if rec.OccursAt.Before(occurredBefore) {
			delete(s.claims, k)
			n++
		}
	}
	return n, nil
}

type stubPolicies struct {
	subs []*policy.Subscriber
	err  error
}

func (p *stubPolicies) ListActivePolicies(_ context.Context) ([]*policy.Subscriber, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.subs, nil
}

type stubChannel struct {
	mu   sync.Mutex
	name policy.Channel
	err  error
	sent []string
}

func (c *stubChannel) Name() policy.Channel { return c.name }

func (c *stubChannel) Send(_ context.Context, _, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, message)
	return nil
}

type stubDLQ struct {
	mu      sync.Mutex
	entries []string
}

func (d *stubDLQ) PushFailed(_ context.Context, cand *match.Candidate, channel policy.Channel, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, string(cand.Event.ID)+"/"+cand.UserID+"/"+string(channel))
	return nil
}

// registryWith builds a registry holding a daily definition whose next
// occurrence lands exactly n days out, so a lead window of n matches.
func registryWith(t *testing.T, slug string, daysOut int) *calendar.Registry {
	t.Helper()
	anchor := time.Now().UTC().AddDate(0, 0, daysOut-1000)
	reg := calendar.NewRegistry(nil)
	err := reg.Register(calendar.Definition{
		Slug:     slug,
		Title:    "Test Event",
		Category: event.CategoryOther,
		Impact:   event.ImpactHigh,
		Rule: calendar.Rule{
			Kind:   calendar.KindIntervalDays,
			Days:   1000,
			Anchor: anchor,
		},
	})
	if err != nil {
		t.Fatalf("register definition: %v", err)
	}
	return reg
}

func subscriber(userID string, windows []int, channels ...policy.Channel) *policy.Subscriber {
	return &policy.Subscriber{
		UserID: userID,
		Policy: policy.Policy{
			LeadWindowDays: windows,
			Channels:       channels,
			ImpactFilter:   policy.FilterAll,
		},
		AccountChannels: channels,
	}
}

func newEngine(store cycle.Store, reg *calendar.Registry, subs []*policy.Subscriber, dlq cycle.DLQPusher, channels ...dispatch.Channel) *cycle.Engine {
	disp := dispatch.NewDispatcher(dispatch.Config{}, nil, channels...)
	return cycle.NewEngine(store, reg, &stubPolicies{subs: subs}, disp, dlq, cycle.Config{Concurrency: 4}, nil)
}

func TestRunProjectsMatchesAndDelivers(t *testing.T) {
	store := newStubStore()
	reg := registryWith(t, "fomc", 3)
	email := &stubChannel{name: policy.ChannelEmail}

	eng := newEngine(store, reg, []*policy.Subscriber{
		subscriber("u1", []int{1, 3}, policy.ChannelEmail),
	}, nil, email)

	summary, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if summary.EventsProjected != 1 {
		t.Errorf("EventsProjected = %d, want 1", summary.EventsProjected)
	}
	if summary.CandidatesMatched != 1 {
		t.Fatalf("CandidatesMatched = %d, want 1", summary.CandidatesMatched)
	}
	if summary.Claimed != 1 || summary.Delivered != 1 || summary.Failed != 0 {
		t.Errorf("claimed/delivered/failed = %d/%d/%d, want 1/1/0",
			summary.Claimed, summary.Delivered, summary.Failed)
	}
	if len(email.sent) != 1 {
		t.Fatalf("email sends = %d, want 1", len(email.sent))
	}
	if summary.RunID == "" {
		t.Error("RunID should be set")
	}
}

func TestRunIsIdempotent(t *testing.T) {
	store := newStubStore()
	reg := registryWith(t, "cpi", 3)
	email := &stubChannel{name: policy.ChannelEmail}

	eng := newEngine(store, reg, []*policy.Subscriber{
		subscriber("u1", []int{3}, policy.ChannelEmail),
	}, nil, email)

	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	second, err := eng.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if second.Claimed != 0 {
		t.Errorf("second run Claimed = %d, want 0", second.Claimed)
	}
	if second.AlreadyClaimed != 1 {
		t.Errorf("second run AlreadyClaimed = %d, want 1", second.AlreadyClaimed)
	}
	if len(email.sent) != 1 {
		t.Errorf("email sends after two runs = %d, want 1", len(email.sent))
	}
}

func TestRunFailedSendGoesToDLQAndIsNotRetried(t *testing.T) {
	store := newStubStore()
	reg := registryWith(t, "jobs", 3)
	email := &stubChannel{name: policy.ChannelEmail, err: errors.New("smtp down")}
	dlq := &stubDLQ{}

	eng := newEngine(store, reg, []*policy.Subscriber{
		subscriber("u1", []int{3}, policy.ChannelEmail),
	}, dlq, email)

	first, err := eng.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if first.Claimed != 1 || first.Failed != 1 || first.Delivered != 0 {
		t.Fatalf("first run claimed/failed/delivered = %d/%d/%d, want 1/1/0",
			first.Claimed, first.Failed, first.Delivered)
	}
	if len(dlq.entries) != 1 {
		t.Fatalf("DLQ entries = %d, want 1", len(dlq.entries))
	}

	// The claim stands even though the send failed. The failure lives in
	// the DLQ; it must not be re-attempted next cycle.
	email.err = nil
	second, err := eng.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if second.Claimed != 0 || second.AlreadyClaimed != 1 {
		t.Errorf("second run claimed/alreadyClaimed = %d/%d, want 0/1",
			second.Claimed, second.AlreadyClaimed)
	}
	if len(email.sent) != 0 {
		t.Errorf("failed notification was retried: %v", email.sent)
	}
}

func TestRunPartialFailureRecordsDeliveredChannels(t *testing.T) {
	store := newStubStore()
	reg := registryWith(t, "fomc", 3)
	email := &stubChannel{name: policy.ChannelEmail, err: errors.New("smtp down")}
	push := &stubChannel{name: policy.ChannelPush}
	dlq := &stubDLQ{}

	eng := newEngine(store, reg, []*policy.Subscriber{
		subscriber("u1", []int{3}, policy.ChannelEmail, policy.ChannelPush),
	}, dlq, email, push)

	summary, err := eng.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Delivered != 1 || summary.Failed != 1 {
		t.Fatalf("delivered/failed = %d/%d, want 1/1", summary.Delivered, summary.Failed)
	}

	if len(store.sent) != 1 {
		t.Fatalf("expected one channels-sent record, got %d", len(store.sent))
	}
	for _, channels := range store.sent {
		if len(channels) != 1 || channels[0] != policy.ChannelPush {
			t.Errorf("channels sent = %v, want [push]", channels)
		}
	}
	if len(dlq.entries) != 1 {
		t.Errorf("DLQ entries = %d, want 1", len(dlq.entries))
	}
}

func TestRunMultipleSubscribers(t *testing.T) {
	store := newStubStore()
	reg := registryWith(t, "fomc", 3)
	email := &stubChannel{name: policy.ChannelEmail}
	push := &stubChannel{name: policy.ChannelPush}

	subs := []*policy.Subscriber{
		subscriber("u1", []int{3}, policy.ChannelEmail),
		subscriber("u2", []int{3}, policy.ChannelPush),
		subscriber("u3", []int{7}, policy.ChannelEmail), // window does not match
	}

	eng := newEngine(store, reg, subs, nil, email, push)

	summary, err := eng.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.CandidatesMatched != 2 {
		t.Errorf("CandidatesMatched = %d, want 2", summary.CandidatesMatched)
	}
	if summary.Delivered != 2 {
		t.Errorf("Delivered = %d, want 2", summary.Delivered)
	}
}

func TestRunUpsertFailureDoesNotAbortCycle(t *testing.T) {
	store := newStubStore()
	store.failUps = true
	reg := registryWith(t, "fomc", 3)

	eng := newEngine(store, reg, nil, nil)

	summary, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() should tolerate upsert failures, got %v", err)
	}
	if summary.EventsProjected != 0 {
		t.Errorf("EventsProjected = %d, want 0", summary.EventsProjected)
	}
}

func TestRunAbortsWhenPolicySourceFails(t *testing.T) {
	store := newStubStore()
	reg := registryWith(t, "fomc", 3)
	email := &stubChannel{name: policy.ChannelEmail}

	disp := dispatch.NewDispatcher(dispatch.Config{}, nil, email)
	pols := &stubPolicies{err: errors.New("preference service down")}
	eng := cycle.NewEngine(store, reg, pols, disp, nil, cycle.Config{Concurrency: 4}, nil)

	summary, err := eng.Run(context.Background())
	if err == nil {
		t.Fatal("Run() should surface the policy source failure")
	}
	if summary == nil {
		t.Fatal("aborted run must still return a summary")
	}
	if summary.Claimed != 0 || summary.Delivered != 0 || summary.Failed != 0 {
		t.Errorf("aborted run claimed/delivered/failed = %d/%d/%d, want 0/0/0",
			summary.Claimed, summary.Delivered, summary.Failed)
	}
	if len(email.sent) != 0 {
		t.Errorf("aborted run must not dispatch, got %d sends", len(email.sent))
	}
}

func TestRunAbortsWhenListUpcomingFails(t *testing.T) {
	store := newStubStore()
	store.failList = true
	reg := registryWith(t, "fomc", 3)

	eng := newEngine(store, reg, []*policy.Subscriber{
		subscriber("u1", []int{3}, policy.ChannelEmail),
	}, nil)

	summary, err := eng.Run(context.Background())
	if err == nil {
		t.Fatal("Run() should surface the store failure")
	}
	if summary == nil {
		t.Fatal("aborted run must still return a summary")
	}
	if summary.Claimed != 0 || summary.CandidatesMatched != 0 {
		t.Errorf("aborted run claimed/matched = %d/%d, want 0/0",
			summary.Claimed, summary.CandidatesMatched)
	}
}

// gateChannel signals when a send starts and then blocks until the context
// is cancelled.
type gateChannel struct {
	name    policy.Channel
	started chan struct{}
}

func (c *gateChannel) Name() policy.Channel { return c.name }

func (c *gateChannel) Send(ctx context.Context, _, _ string) error {
	select {
	case c.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRunCancelledMidDispatchReportsCompletedWork(t *testing.T) {
	store := newStubStore()
	reg := registryWith(t, "fomc", 3)
	gate := &gateChannel{name: policy.ChannelEmail, started: make(chan struct{}, 1)}

	// Concurrency 1: the second candidate queues behind the first, so the
	// cancellation hits the engine while the first claim is already made.
	disp := dispatch.NewDispatcher(dispatch.Config{}, nil, gate)
	pols := &stubPolicies{subs: []*policy.Subscriber{
		subscriber("u1", []int{3}, policy.ChannelEmail),
		subscriber("u2", []int{3}, policy.ChannelEmail),
	}}
	eng := cycle.NewEngine(store, reg, pols, disp, nil, cycle.Config{Concurrency: 1}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *cycle.Summary, 1)
	go func() {
		summary, _ := eng.Run(ctx)
		done <- summary
	}()

	<-gate.started
	cancel()

	summary := <-done
	if summary == nil {
		t.Fatal("cancelled run must still return a summary")
	}
	if summary.Claimed != 1 {
		t.Errorf("Claimed = %d, want 1: work done before cancellation must be reported", summary.Claimed)
	}
	if summary.Failed != 1 {
		t.Errorf("Failed = %d, want 1: the interrupted send fails with the context error", summary.Failed)
	}
}

func TestRunSummaryNeverNil(t *testing.T) {
	store := newStubStore()
	reg := calendar.NewRegistry(nil)
	eng := newEngine(store, reg, nil, nil)

	summary, err := eng.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary == nil {
		t.Fatal("summary is nil")
	}
	if summary.CandidatesMatched != 0 || summary.Claimed != 0 {
		t.Errorf("empty registry should match nothing, got %+v", summary)
	}
}
