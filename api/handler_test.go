package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xraph/almanac/api"
	"github.com/xraph/almanac/cycle"
	"github.com/xraph/almanac/dlq"
	"github.com/xraph/almanac/event"
	"github.com/xraph/almanac/id"
	"github.com/xraph/almanac/internal/entity"
	"github.com/xraph/almanac/policy"
	"github.com/xraph/almanac/store/memory"
)

// stubRunner returns a canned summary from POST /cycle/run.
type stubRunner struct {
	summary *cycle.Summary
	calls   int
}

func (r *stubRunner) Run(_ context.Context) (*cycle.Summary, error) {
	r.calls++
	return r.summary, nil
}

// testServer creates a Handler backed by a memory store and returns the
// server plus the store for direct seeding.
func testServer(t *testing.T) (*httptest.Server, *memory.Store, *stubRunner) {
	t.Helper()

	s := memory.New()
	logger := slog.Default()
	policySvc := policy.NewService(s, logger)
	dlqSvc := dlq.NewService(s, logger)
	runner := &stubRunner{summary: &cycle.Summary{RunID: "cyc_test"}}

	h := api.NewHandler(s, policySvc, dlqSvc, runner, logger)
	return httptest.NewServer(h), s, runner
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func seedEvent(t *testing.T, s *memory.Store, slug string, daysOut int) *event.Event {
	t.Helper()
	occursAt := time.Now().UTC().AddDate(0, 0, daysOut)
	evt := &event.Event{
		Entity:   entity.New(),
		ID:       event.NewID(slug, occursAt),
		Title:    "FOMC Rate Decision",
		Category: event.CategoryFed,
		Impact:   event.ImpactHigh,
		OccursAt: occursAt,
		Source:   "fed-calendar",
	}
	if err := s.UpsertEvent(context.Background(), evt); err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return evt
}

// --- Events ---

func TestEvents_ListGetIgnoreDelete(t *testing.T) {
	srv, s, _ := testServer(t)
	defer srv.Close()

	evt := seedEvent(t, s, "fomc", 7)

	resp := doJSON(t, "GET", srv.URL+"/events", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	var list []map[string]any
	decodeBody(t, resp, &list)
	if len(list) != 1 {
		t.Fatalf("expected 1 event, got %d", len(list))
	}

	resp = doJSON(t, "GET", srv.URL+"/events/"+evt.ID.String(), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	var got map[string]any
	decodeBody(t, resp, &got)
	if got["id"] != evt.ID.String() {
		t.Fatalf("expected id %s, got %v", evt.ID, got["id"])
	}

	resp = doJSON(t, "PATCH", srv.URL+"/events/"+evt.ID.String()+"/ignore", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ignore: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Ignored events drop out of the default listing.
	resp = doJSON(t, "GET", srv.URL+"/events", nil)
	decodeBody(t, resp, &list)
	if len(list) != 0 {
		t.Fatalf("expected ignored event hidden, got %d events", len(list))
	}

	resp = doJSON(t, "GET", srv.URL+"/events?include_ignored=true", nil)
	decodeBody(t, resp, &list)
	if len(list) != 1 {
		t.Fatalf("expected ignored event with include_ignored, got %d", len(list))
	}

	resp = doJSON(t, "DELETE", srv.URL+"/events/"+evt.ID.String(), nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "GET", srv.URL+"/events/"+evt.ID.String(), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// --- Policies ---

func TestPolicies_CRUD(t *testing.T) {
	srv, _, _ := testServer(t)
	defer srv.Close()

	resp := doJSON(t, "PUT", srv.URL+"/policies/u1", map[string]any{
		"lead_window_days": []int{1, 7},
		"channels":         []string{"email"},
		"account_channels": []string{"email", "push"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put: expected 200, got %d", resp.StatusCode)
	}
	var sub map[string]any
	decodeBody(t, resp, &sub)
	if sub["user_id"] != "u1" {
		t.Fatalf("expected user_id u1, got %v", sub["user_id"])
	}

	resp = doJSON(t, "GET", srv.URL+"/policies/u1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "GET", srv.URL+"/policies", nil)
	var list []map[string]any
	decodeBody(t, resp, &list)
	if len(list) != 1 {
		t.Fatalf("expected 1 policy, got %d", len(list))
	}

	resp = doJSON(t, "DELETE", srv.URL+"/policies/u1", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "GET", srv.URL+"/policies/u1", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestPutPolicyRejectsDisabledChannel(t *testing.T) {
	srv, _, _ := testServer(t)
	defer srv.Close()

	resp := doJSON(t, "PUT", srv.URL+"/policies/u1", map[string]any{
		"lead_window_days": []int{1},
		"channels":         []string{"chat"},
		"account_channels": []string{"email"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["error"] == "" {
		t.Fatal("expected validation error message")
	}
}

func TestSetAccountChannels(t *testing.T) {
	srv, _, _ := testServer(t)
	defer srv.Close()

	resp := doJSON(t, "PUT", srv.URL+"/policies/u1", map[string]any{
		"lead_window_days": []int{1},
		"channels":         []string{"email"},
		"account_channels": []string{"email", "push"},
	})
	resp.Body.Close()

	resp = doJSON(t, "PATCH", srv.URL+"/policies/u1/account-channels", map[string]any{
		"channels": []string{"push"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var sub map[string]any
	decodeBody(t, resp, &sub)
	channels, _ := sub["account_channels"].([]any)
	if len(channels) != 1 || channels[0] != "push" {
		t.Fatalf("expected account channels [push], got %v", sub["account_channels"])
	}
}

// --- DLQ ---

func TestDLQ_ListGetPurge(t *testing.T) {
	srv, s, _ := testServer(t)
	defer srv.Close()

	entry := &dlq.Entry{
		Entity:         entity.New(),
		ID:             id.NewDLQID(),
		EventID:        "fomc_2026-09-17",
		UserID:         "u1",
		Channel:        policy.ChannelEmail,
		LeadWindowDays: 7,
		Message:        "FOMC Rate Decision in 7 days",
		Error:          "connection refused",
		FailedAt:       time.Now().UTC().Add(-time.Hour),
	}
	if err := s.Push(context.Background(), entry); err != nil {
		t.Fatalf("seed dlq: %v", err)
	}

	resp := doJSON(t, "GET", srv.URL+"/dlq", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	var list []map[string]any
	decodeBody(t, resp, &list)
	if len(list) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(list))
	}

	resp = doJSON(t, "GET", srv.URL+"/dlq/"+entry.ID.String(), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "GET", srv.URL+"/dlq?user_id=other", nil)
	decodeBody(t, resp, &list)
	if len(list) != 0 {
		t.Fatalf("expected no entries for other user, got %d", len(list))
	}

	before := time.Now().UTC().Format(time.RFC3339)
	resp = doJSON(t, "DELETE", srv.URL+"/dlq?before="+before, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("purge: expected 200, got %d", resp.StatusCode)
	}
	var purged map[string]int64
	decodeBody(t, resp, &purged)
	if purged["purged"] != 1 {
		t.Fatalf("expected 1 purged, got %d", purged["purged"])
	}
}

func TestPurgeDLQRequiresBefore(t *testing.T) {
	srv, _, _ := testServer(t)
	defer srv.Close()

	resp := doJSON(t, "DELETE", srv.URL+"/dlq", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// --- Cycle and stats ---

func TestRunCycle(t *testing.T) {
	srv, _, runner := testServer(t)
	defer srv.Close()

	resp := doJSON(t, "POST", srv.URL+"/cycle/run", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var summary map[string]any
	decodeBody(t, resp, &summary)
	if summary["run_id"] != "cyc_test" {
		t.Fatalf("expected run_id cyc_test, got %v", summary["run_id"])
	}
	if runner.calls != 1 {
		t.Fatalf("expected 1 run, got %d", runner.calls)
	}
}

func TestStats(t *testing.T) {
	srv, s, _ := testServer(t)
	defer srv.Close()

	entry := &dlq.Entry{
		Entity:   entity.New(),
		ID:       id.NewDLQID(),
		EventID:  "cpi_2026-10-10",
		UserID:   "u1",
		Channel:  policy.ChannelPush,
		FailedAt: time.Now().UTC(),
	}
	if err := s.Push(context.Background(), entry); err != nil {
		t.Fatalf("seed dlq: %v", err)
	}

	resp := doJSON(t, "GET", srv.URL+"/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var stats map[string]int64
	decodeBody(t, resp, &stats)
	if stats["dlq_size"] != 1 {
		t.Fatalf("expected dlq_size 1, got %d", stats["dlq_size"])
	}
	if stats["ledger_records"] != 0 {
		t.Fatalf("expected ledger_records 0, got %d", stats["ledger_records"])
	}
}
