package dispatch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/almanac/dispatch"
	"github.com/xraph/almanac/event"
	"github.com/xraph/almanac/match"
	"github.com/xraph/almanac/policy"
)

// stubChannel is a controllable Channel implementation for tests.
type stubChannel struct {
	name    policy.Channel
	err     error
	panics  bool
	blocks  bool
	sent    []string
	userIDs []string
}

func (s *stubChannel) Name() policy.Channel { return s.name }

func (s *stubChannel) Send(ctx context.Context, userID, message string) error {
	if s.panics {
		panic("stub channel exploded")
	}
	if s.blocks {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, message)
	s.userIDs = append(s.userIDs, userID)
	return nil
}

func testCandidate(channels ...policy.Channel) *match.Candidate {
	occursAt := time.Date(2025, 9, 17, 18, 0, 0, 0, time.UTC)
	return &match.Candidate{
		Event: &event.Event{
			ID:       event.NewID("fomc", occursAt),
			Title:    "FOMC Rate Decision",
			OccursAt: occursAt,
		},
		UserID:         "user-1",
		LeadWindowDays: 3,
		Channels:       channels,
		Message:        "FOMC Rate Decision is in 3 days",
	}
}

func TestDispatchDeliversToAllChannels(t *testing.T) {
	email := &stubChannel{name: policy.ChannelEmail}
	push := &stubChannel{name: policy.ChannelPush}

	d := dispatch.NewDispatcher(dispatch.Config{}, nil, email, push)
	res := d.Dispatch(context.Background(), testCandidate(policy.ChannelEmail, policy.ChannelPush))

	delivered, failed, skipped := res.Counts()
	if delivered != 2 || failed != 0 || skipped != 0 {
		t.Fatalf("counts = (%d, %d, %d), want (2, 0, 0)", delivered, failed, skipped)
	}
	if len(email.sent) != 1 || len(push.sent) != 1 {
		t.Fatalf("expected one send per channel, got email=%d push=%d", len(email.sent), len(push.sent))
	}
	if email.userIDs[0] != "user-1" {
		t.Errorf("email sent to %q, want user-1", email.userIDs[0])
	}
}

func TestDispatchIsolatesChannelFailure(t *testing.T) {
	email := &stubChannel{name: policy.ChannelEmail, err: errors.New("smtp unreachable")}
	push := &stubChannel{name: policy.ChannelPush}
	chat := &stubChannel{name: policy.ChannelChat}

	d := dispatch.NewDispatcher(dispatch.Config{}, nil, email, push, chat)
	res := d.Dispatch(context.Background(), testCandidate(policy.ChannelEmail, policy.ChannelPush, policy.ChannelChat))

	delivered, failed, _ := res.Counts()
	if failed != 1 {
		t.Fatalf("failed = %d, want 1", failed)
	}
	if delivered != 2 {
		t.Fatalf("delivered = %d, want 2: later channels must still be attempted", delivered)
	}

	got := res.DeliveredChannels()
	want := []policy.Channel{policy.ChannelPush, policy.ChannelChat}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("DeliveredChannels() = %v, want %v", got, want)
	}
}

func TestDispatchContainsPanic(t *testing.T) {
	email := &stubChannel{name: policy.ChannelEmail, panics: true}
	push := &stubChannel{name: policy.ChannelPush}

	d := dispatch.NewDispatcher(dispatch.Config{}, nil, email, push)
	res := d.Dispatch(context.Background(), testCandidate(policy.ChannelEmail, policy.ChannelPush))

	if res.Outcomes[0].Status != dispatch.StatusFailed {
		t.Errorf("panicking channel status = %q, want failed", res.Outcomes[0].Status)
	}
	if res.Outcomes[0].Error == "" {
		t.Error("panicking channel should record an error message")
	}
	if res.Outcomes[1].Status != dispatch.StatusDelivered {
		t.Errorf("second channel status = %q, want delivered", res.Outcomes[1].Status)
	}
}

func TestDispatchSkipsUnregisteredChannel(t *testing.T) {
	email := &stubChannel{name: policy.ChannelEmail}

	d := dispatch.NewDispatcher(dispatch.Config{}, nil, email)
	res := d.Dispatch(context.Background(), testCandidate(policy.ChannelEmail, policy.ChannelChat))

	if res.Outcomes[1].Channel != policy.ChannelChat || res.Outcomes[1].Status != dispatch.StatusSkipped {
		t.Errorf("unregistered channel outcome = %+v, want skipped chat", res.Outcomes[1])
	}
	delivered, _, skipped := res.Counts()
	if delivered != 1 || skipped != 1 {
		t.Errorf("counts = delivered %d skipped %d, want 1 and 1", delivered, skipped)
	}
}

func TestDispatchSendTimeout(t *testing.T) {
	slow := &stubChannel{name: policy.ChannelPush, blocks: true}

	d := dispatch.NewDispatcher(dispatch.Config{SendTimeout: 50 * time.Millisecond}, nil, slow)

	start := time.Now()
	res := d.Dispatch(context.Background(), testCandidate(policy.ChannelPush))
	elapsed := time.Since(start)

	if res.Outcomes[0].Status != dispatch.StatusFailed {
		t.Fatalf("blocked channel status = %q, want failed", res.Outcomes[0].Status)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("dispatch took %v, timeout not enforced", elapsed)
	}
}

func TestRegisterDuringDispatch(t *testing.T) {
	email := &stubChannel{name: policy.ChannelEmail}
	d := dispatch.NewDispatcher(dispatch.Config{}, nil, email)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			d.Register(&stubChannel{name: policy.ChannelPush})
		}
	}()

	cand := testCandidate(policy.ChannelEmail, policy.ChannelPush)
	for i := 0; i < 100; i++ {
		res := d.Dispatch(context.Background(), cand)
		if len(res.Outcomes) != 2 {
			t.Fatalf("got %d outcomes, want 2", len(res.Outcomes))
		}
	}
	<-done

	res := d.Dispatch(context.Background(), cand)
	_, _, skipped := res.Counts()
	if skipped != 0 {
		t.Fatalf("push registered mid-dispatch should be live, got %d skipped", skipped)
	}
}

func TestDispatchOneOutcomePerChannel(t *testing.T) {
	email := &stubChannel{name: policy.ChannelEmail}
	d := dispatch.NewDispatcher(dispatch.Config{}, nil, email)

	cand := testCandidate(policy.ChannelEmail, policy.ChannelPush, policy.ChannelChat)
	res := d.Dispatch(context.Background(), cand)

	if len(res.Outcomes) != len(cand.Channels) {
		t.Fatalf("got %d outcomes for %d channels", len(res.Outcomes), len(cand.Channels))
	}
	for i, o := range res.Outcomes {
		if o.Channel != cand.Channels[i] {
			t.Errorf("outcome %d channel = %q, want %q", i, o.Channel, cand.Channels[i])
		}
	}
}
