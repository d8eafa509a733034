// Package ratelimit paces sends so a dispatch cycle cannot flood a
// delivery channel.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/almanac/policy"
)

// Limiter keeps a token bucket per delivery channel. Every channel shares
// the same per-second rate, fixed at construction; a rate of zero or less
// disables pacing entirely.
type Limiter struct {
	perSecond float64

	mu      sync.Mutex
	buckets map[policy.Channel]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

// New creates a limiter allowing perSecond sends on each channel.
func New(perSecond int) *Limiter {
	return &Limiter{
		perSecond: float64(perSecond),
		buckets:   make(map[policy.Channel]*bucket),
	}
}

// Allow reports whether a send on the channel may proceed right now,
// consuming a token when it may.
func (l *Limiter) Allow(ch policy.Channel) bool {
	if l.perSecond <= 0 {
		return true
	}
	ok, _ := l.take(ch)
	return ok
}

// Wait blocks until the channel has a token or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context, ch policy.Channel) error {
	if l.perSecond <= 0 {
		return nil
	}

	for {
		ok, retry := l.take(ch)
		if ok {
			return nil
		}

		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// take withdraws one token if available; otherwise it reports how long
// until the next token lands. Buckets start full so a fresh channel can
// burst up to one second's worth of sends.
func (l *Limiter) take(ch policy.Channel) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[ch]
	if !ok {
		b = &bucket{tokens: l.perSecond, last: now}
		l.buckets[ch] = b
	}

	b.tokens += now.Sub(b.last).Seconds() * l.perSecond
	if b.tokens > l.perSecond {
		b.tokens = l.perSecond
	}
	b.last = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := time.Duration((1 - b.tokens) / l.perSecond * float64(time.Second))
	return false, wait
}
