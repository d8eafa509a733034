// Package webhook implements a notification channel that POSTs signed JSON
// payloads to a provider endpoint. It backs the email and push channels,
// which hand the message to an external provider over HTTP.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/xraph/almanac/policy"
	"github.com/xraph/almanac/signature"
)

const maxResponseBody = 1024 // 1KB cap on error body reads

// Sender delivers notifications to an HTTP provider endpoint.
type Sender struct {
	name   policy.Channel
	url    string
	secret string
	client *http.Client
}

// payload is the JSON body posted to the provider.
type payload struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
	Channel string `json:"channel"`
}

// New creates a webhook sender for the given channel. The secret is used
// to sign each request so the provider can authenticate it.
func New(name policy.Channel, url, secret string, timeout time.Duration) *Sender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Sender{
		name:   name,
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: timeout},
	}
}

// Name identifies the channel this sender serves.
func (s *Sender) Name() policy.Channel { return s.name }

// Send posts the message to the provider endpoint. Any non-2xx response is
// an error.
func (s *Sender) Send(ctx context.Context, userID, message string) error {
	body, err := json.Marshal(payload{
		UserID:  userID,
		Message: message,
		Channel: string(s.name),
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Almanac/1.0")
	req.Header.Set("X-Almanac-Channel", string(s.name))

	ts := time.Now().Unix()
	req.Header.Set("X-Almanac-Signature", signature.Sign(body, s.secret, ts))
	req.Header.Set("X-Almanac-Timestamp", strconv.FormatInt(ts, 10))

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, respBody)
	}
	return nil
}
