package webhook_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/xraph/almanac/channel/webhook"
	"github.com/xraph/almanac/policy"
	"github.com/xraph/almanac/signature"
)

func TestSendPostsSignedPayload(t *testing.T) {
	secret := "whsec_providersecret"

	var gotBody []byte
	var gotSig, gotTS, gotChannel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Almanac-Signature")
		gotTS = r.Header.Get("X-Almanac-Timestamp")
		gotChannel = r.Header.Get("X-Almanac-Channel")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := webhook.New(policy.ChannelEmail, srv.URL, secret, 5*time.Second)
	if err := s.Send(context.Background(), "user-7", "CPI Release is tomorrow"); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	var body struct {
		UserID  string `json:"user_id"`
		Message string `json:"message"`
		Channel string `json:"channel"`
	}
	if err := json.Unmarshal(gotBody, &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body.UserID != "user-7" || body.Message != "CPI Release is tomorrow" || body.Channel != "email" {
		t.Errorf("unexpected payload: %+v", body)
	}
	if gotChannel != "email" {
		t.Errorf("X-Almanac-Channel = %q, want email", gotChannel)
	}

	ts, err := strconv.ParseInt(gotTS, 10, 64)
	if err != nil {
		t.Fatalf("bad timestamp header %q: %v", gotTS, err)
	}
	if !signature.Verify(gotBody, secret, ts, gotSig) {
		t.Error("signature did not verify against the received body")
	}
}

func TestSendNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "mailbox unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	s := webhook.New(policy.ChannelPush, srv.URL, "whsec_x", 5*time.Second)
	if err := s.Send(context.Background(), "user-1", "msg"); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestSendContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can detect the client disconnect
		// and cancel the request context.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	s := webhook.New(policy.ChannelPush, srv.URL, "whsec_x", 5*time.Second)
	if err := s.Send(ctx, "user-1", "msg"); err == nil {
		t.Fatal("expected error when context expires")
	}
}
