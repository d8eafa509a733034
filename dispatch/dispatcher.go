package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/almanac/match"
	"github.com/xraph/almanac/observability"
	"github.com/xraph/almanac/policy"
	"github.com/xraph/almanac/ratelimit"
)

// Config holds dispatcher configuration.
type Config struct {
	// SendTimeout bounds each individual channel send.
	SendTimeout time.Duration

	// RateLimit is the maximum sends per second per channel. Zero means
	// unlimited.
	RateLimit int

	Metrics *observability.Metrics
}

// Dispatcher routes a candidate's message to each of its resolved channels.
type Dispatcher struct {
	mu       sync.RWMutex
	channels map[policy.Channel]Channel
	limiter  *ratelimit.Limiter
	config   Config
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher with the given channel senders.
func NewDispatcher(cfg Config, logger *slog.Logger, channels ...Channel) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	m := make(map[policy.Channel]Channel, len(channels))
	for _, ch := range channels {
		m[ch.Name()] = ch
	}
	return &Dispatcher{
		channels: m,
		limiter:  ratelimit.New(cfg.RateLimit),
		config:   cfg,
		logger:   logger,
	}
}

// Register adds or replaces the sender for a channel. Safe to call while
// dispatches are in flight.
func (d *Dispatcher) Register(ch Channel) {
	d.mu.Lock()
	d.channels[ch.Name()] = ch
	d.mu.Unlock()
}

// sender returns the registered sender for a channel, if any.
func (d *Dispatcher) sender(chName policy.Channel) (Channel, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ch, ok := d.channels[chName]
	return ch, ok
}

// Dispatch attempts delivery on every resolved channel of the candidate.
// Channels are attempted in order; a failure on one channel does not stop
// the rest. The returned result always has one outcome per channel.
func (d *Dispatcher) Dispatch(ctx context.Context, cand *match.Candidate) *Result {
	res := &Result{Outcomes: make([]Outcome, 0, len(cand.Channels))}

	for _, chName := range cand.Channels {
		res.Outcomes = append(res.Outcomes, d.sendOne(ctx, chName, cand))
	}

	return res
}

// sendOne performs a single channel send with rate limiting, a timeout,
// and panic containment.
func (d *Dispatcher) sendOne(ctx context.Context, chName policy.Channel, cand *match.Candidate) Outcome {
	sender, ok := d.sender(chName)
	if !ok {
		d.logger.WarnContext(ctx, "no sender registered for channel",
			"channel", chName, "user_id", cand.UserID)
		if d.config.Metrics != nil {
			d.config.Metrics.RecordDelivery(string(chName), string(StatusSkipped), 0)
		}
		return Outcome{Channel: chName, Status: StatusSkipped}
	}

	if err := d.limiter.Wait(ctx, chName); err != nil {
		return d.failed(ctx, chName, cand, 0, fmt.Errorf("rate limit wait: %w", err))
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.config.SendTimeout)
	defer cancel()

	start := time.Now()
	err := d.safeSend(sendCtx, sender, cand.UserID, cand.Message)
	latency := time.Since(start)

	if err != nil {
		return d.failed(ctx, chName, cand, latency, err)
	}

	if d.config.Metrics != nil {
		d.config.Metrics.RecordDelivery(string(chName), string(StatusDelivered), latency.Seconds())
	}
	d.logger.DebugContext(ctx, "notification delivered",
		"channel", chName, "user_id", cand.UserID, "event_id", cand.Event.ID,
		"latency_ms", latency.Milliseconds())

	return Outcome{
		Channel:   chName,
		Status:    StatusDelivered,
		LatencyMs: int(latency.Milliseconds()),
	}
}

// safeSend invokes the sender and converts a panic into an error so a
// misbehaving channel cannot take down the cycle.
func (d *Dispatcher) safeSend(ctx context.Context, sender Channel, userID, message string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel panicked: %v", r)
		}
	}()
	return sender.Send(ctx, userID, message)
}

func (d *Dispatcher) failed(ctx context.Context, chName policy.Channel, cand *match.Candidate, latency time.Duration, err error) Outcome {
	if d.config.Metrics != nil {
		d.config.Metrics.RecordDelivery(string(chName), string(StatusFailed), latency.Seconds())
	}
	d.logger.ErrorContext(ctx, "channel send failed",
		"channel", chName, "user_id", cand.UserID, "event_id", cand.Event.ID,
		"error", err)
	return Outcome{
		Channel:   chName,
		Status:    StatusFailed,
		Error:     err.Error(),
		LatencyMs: int(latency.Milliseconds()),
	}
}
