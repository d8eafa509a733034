package cycle

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/almanac/calendar"
	"github.com/xraph/almanac/dispatch"
	"github.com/xraph/almanac/id"
	"github.com/xraph/almanac/ledger"
	"github.com/xraph/almanac/match"
	"github.com/xraph/almanac/observability"
	"github.com/xraph/almanac/policy"
	"github.com/xraph/almanac/scope"
)

// Config holds engine configuration.
type Config struct {
	// Interval is how often Start runs a cycle.
	Interval time.Duration

	// Concurrency bounds how many candidates are dispatched in parallel.
	Concurrency int

	// UpcomingLimit caps how many upcoming events one cycle considers.
	UpcomingLimit int

	// Retention is how long ledger records are kept after their event
	// occurred. It must exceed the largest lead window in use so that a
	// pruned key can never be re-claimed while still matchable.
	Retention time.Duration

	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}
	if c.UpcomingLimit <= 0 {
		c.UpcomingLimit = 100
	}
	if c.Retention <= 0 {
		c.Retention = 37 * 24 * time.Hour // 30-day max lead window plus a week
	}
}

// Engine runs dispatch cycles.
type Engine struct {
	store      Store
	registry   *calendar.Registry
	policies   policy.Source
	dispatcher *dispatch.Dispatcher
	dlq        DLQPusher
	config     Config
	logger     *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates a cycle engine. The DLQ pusher may be nil, in which
// case failed sends are only logged.
func NewEngine(store Store, registry *calendar.Registry, policies policy.Source, dispatcher *dispatch.Dispatcher, dlq DLQPusher, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	return &Engine{
		store:      store,
		registry:   registry,
		policies:   policies,
		dispatcher: dispatcher,
		dlq:        dlq,
		config:     cfg,
		logger:     logger,
	}
}

// Start runs a cycle immediately and then on every interval tick until
// Stop is called or the context is cancelled.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.loop(ctx)
	}()
}

// Stop cancels the loop and waits for an in-flight cycle to complete.
func (e *Engine) Stop(_ context.Context) {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

func (e *Engine) loop(ctx context.Context) {
	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()

	e.runLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.runLogged(ctx)
		}
	}
}

func (e *Engine) runLogged(ctx context.Context) {
	if _, err := e.Run(ctx); err != nil {
		e.logger.ErrorContext(ctx, "cycle failed", "error", err)
	}
}

// Run executes one full dispatch cycle. The returned summary is never nil:
// on error it reports the phases that completed before the failure.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	now := time.Now().UTC()
	summary := &Summary{
		RunID:     id.NewCycleID().String(),
		StartedAt: now,
	}
	ctx = scope.WithRun(ctx, summary.RunID)

	var span trace.Span
	if e.config.Tracer != nil {
		ctx, span = e.config.Tracer.StartCycleSpan(ctx, summary.RunID)
		defer func() {
			e.config.Tracer.EndCycleSpan(span,
				int64(summary.EventsProjected), int64(summary.CandidatesMatched),
				int64(summary.Claimed), int64(summary.Delivered), int64(summary.Failed))
		}()
	}
	if e.config.Metrics != nil {
		e.config.Metrics.CyclesTotal.Inc()
	}
	defer func() {
		summary.Duration = time.Since(now)
		e.logger.InfoContext(ctx, "cycle complete",
			"run_id", summary.RunID,
			"projected", summary.EventsProjected,
			"matched", summary.CandidatesMatched,
			"claimed", summary.Claimed,
			"already_claimed", summary.AlreadyClaimed,
			"delivered", summary.Delivered,
			"failed", summary.Failed,
			"pruned", summary.PrunedRecords,
			"duration", summary.Duration)
	}()

	summary.EventsProjected = e.project(ctx, now)

	events, err := e.store.ListUpcoming(ctx, e.config.UpcomingLimit, now)
	if err != nil {
		return summary, err
	}

	subs, err := e.policies.ListActivePolicies(ctx)
	if err != nil {
		return summary, err
	}

	var candidates []*match.Candidate
	for _, evt := range events {
		candidates = append(candidates, match.Candidates(evt, subs, now)...)
	}
	summary.CandidatesMatched = len(candidates)
	if e.config.Metrics != nil {
		for range candidates {
			e.config.Metrics.CandidatesMatchedTotal.Inc()
		}
	}

	e.dispatchAll(ctx, candidates, summary)

	pruned, err := e.store.Prune(ctx, now.Add(-e.config.Retention))
	if err != nil {
		e.logger.ErrorContext(ctx, "ledger prune failed", "error", err)
	} else {
		summary.PrunedRecords = pruned
	}

	if e.config.Metrics != nil {
		if total, countErr := e.store.CountRecords(ctx); countErr == nil {
			e.config.Metrics.LedgerSize.Set(float64(total))
		}
	}

	return summary, nil
}

// project materializes the next occurrence of every registered definition.
// A definition that fails to project is logged and skipped; the rest of
// the calendar still projects.
func (e *Engine) project(ctx context.Context, now time.Time) int {
	projected := 0
	for _, def := range e.registry.List() {
		evt, err := def.Project(now)
		if err != nil {
			e.logger.ErrorContext(ctx, "projection failed", "slug", def.Slug, "error", err)
			continue
		}
		if err := e.store.UpsertEvent(ctx, evt); err != nil {
			e.logger.ErrorContext(ctx, "event upsert failed", "event_id", evt.ID, "error", err)
			continue
		}
		projected++
		if e.config.Metrics != nil {
			e.config.Metrics.EventsProjectedTotal.Inc()
		}
	}
	return projected
}

// dispatchAll claims and dispatches every candidate using a bounded worker
// pool. Counters are accumulated atomically and folded into the summary
// once all workers finish.
func (e *Engine) dispatchAll(ctx context.Context, candidates []*match.Candidate, summary *Summary) {
	var claimed, alreadyClaimed, delivered, failed, skipped atomic.Int64

	sem := make(chan struct{}, e.config.Concurrency)
	var wg sync.WaitGroup

	// Counters fold into the summary on every exit path, including a
	// cancelled run whose in-flight workers already completed work.
	defer func() {
		summary.Claimed = int(claimed.Load())
		summary.AlreadyClaimed = int(alreadyClaimed.Load())
		summary.Delivered = int(delivered.Load())
		summary.Failed = int(failed.Load())
		summary.Skipped = int(skipped.Load())
	}()

	for _, cand := range candidates {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(c *match.Candidate) {
			defer wg.Done()
			defer func() { <-sem }()

			won, err := e.claim(ctx, c)
			if err != nil {
				e.logger.ErrorContext(ctx, "claim failed",
					"event_id", c.Event.ID, "user_id", c.UserID, "error", err)
				return
			}
			if !won {
				alreadyClaimed.Add(1)
				return
			}
			claimed.Add(1)

			d, f, s := e.dispatchOne(ctx, c)
			delivered.Add(int64(d))
			failed.Add(int64(f))
			skipped.Add(int64(s))
		}(cand)
	}
	wg.Wait()
}

// claim attempts to win the ledger entry for the candidate.
func (e *Engine) claim(ctx context.Context, cand *match.Candidate) (bool, error) {
	rec := ledger.NewRecord(cand.Event, cand.UserID, cand.LeadWindowDays)
	won, err := e.store.TryClaim(ctx, rec)
	if err != nil {
		return false, err
	}
	if e.config.Metrics != nil {
		if won {
			e.config.Metrics.RecordClaim("claimed")
		} else {
			e.config.Metrics.RecordClaim("duplicate")
		}
	}
	return won, nil
}

// dispatchOne fans a claimed candidate out to its channels and records the
// aftermath. The claim is never released: a candidate whose sends all fail
// goes to the DLQ, not back into the pool.
func (e *Engine) dispatchOne(ctx context.Context, cand *match.Candidate) (delivered, failed, skipped int) {
	var span trace.Span
	if e.config.Tracer != nil {
		ctx, span = e.config.Tracer.StartDispatchSpan(ctx, string(cand.Event.ID), cand.UserID, cand.LeadWindowDays)
	}

	res := e.dispatcher.Dispatch(ctx, cand)
	delivered, failed, skipped = res.Counts()

	if span != nil {
		e.config.Tracer.EndDispatchSpan(span, delivered, failed, skipped)
	}

	if sent := res.DeliveredChannels(); len(sent) > 0 {
		if err := e.store.SetChannelsSent(ctx, cand.Event.ID, cand.UserID, cand.LeadWindowDays, sent); err != nil {
			e.logger.ErrorContext(ctx, "record channels sent failed",
				"event_id", cand.Event.ID, "user_id", cand.UserID, "error", err)
		}
	}

	for _, o := range res.Outcomes {
		if o.Status != dispatch.StatusFailed {
			continue
		}
		if e.dlq == nil {
			continue
		}
		if err := e.dlq.PushFailed(ctx, cand, o.Channel, o.Error); err != nil {
			e.logger.ErrorContext(ctx, "push to DLQ failed",
				"event_id", cand.Event.ID, "user_id", cand.UserID, "channel", o.Channel, "error", err)
		} else if e.config.Metrics != nil {
			e.config.Metrics.DLQSize.Inc()
		}
	}

	return delivered, failed, skipped
}
