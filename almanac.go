package almanac

import (
	"context"
	"fmt"

	"github.com/xraph/almanac/calendar"
	"github.com/xraph/almanac/cycle"
	"github.com/xraph/almanac/dispatch"
	"github.com/xraph/almanac/dlq"
	"github.com/xraph/almanac/policy"
	"github.com/xraph/almanac/store"
)

// wireServices initializes the internal services after options have been applied.
func (a *Almanac) wireServices() error {
	a.registry = calendar.NewRegistry(a.logger)

	defs := a.definitions
	if len(defs) == 0 {
		defs = calendar.DefaultDefinitions()
	}
	for _, def := range defs {
		if err := a.registry.Register(def); err != nil {
			return fmt.Errorf("almanac: register definition %q: %w", def.Slug, err)
		}
	}

	a.policySvc = policy.NewService(a.store, a.logger)

	a.dlqSvc = dlq.NewService(a.store, a.logger)

	a.dispatcher = dispatch.NewDispatcher(dispatch.Config{
		SendTimeout: a.config.SendTimeout,
		RateLimit:   a.config.RateLimit,
		Metrics:     a.metrics,
	}, a.logger, a.channels...)

	a.engine = cycle.NewEngine(a.store, a.registry, a.store, a.dispatcher, a.dlqSvc, cycle.Config{
		Interval:      a.config.CycleInterval,
		Concurrency:   a.config.Concurrency,
		UpcomingLimit: a.config.UpcomingLimit,
		Retention:     a.config.Retention,
		Metrics:       a.metrics,
		Tracer:        a.tracer,
	}, a.logger)

	return nil
}

// Start begins the periodic dispatch cycle.
func (a *Almanac) Start(ctx context.Context) {
	a.engine.Start(ctx)
}

// Stop gracefully shuts down the dispatch cycle.
func (a *Almanac) Stop(ctx context.Context) {
	a.engine.Stop(ctx)
}

// RunCycle executes one dispatch cycle immediately and returns its summary.
// Safe to call while the periodic engine is running: overlapping cycles
// contend on the ledger claim, so no notification is sent twice.
func (a *Almanac) RunCycle(ctx context.Context) (*cycle.Summary, error) {
	return a.engine.Run(ctx)
}

// RegisterChannel adds a notification transport after construction.
func (a *Almanac) RegisterChannel(ch dispatch.Channel) {
	a.dispatcher.Register(ch)
}

// Policies returns the subscriber policy service.
func (a *Almanac) Policies() *policy.Service {
	return a.policySvc
}

// Calendar returns the recurrence definition registry.
func (a *Almanac) Calendar() *calendar.Registry {
	return a.registry
}

// Engine returns the cycle engine.
func (a *Almanac) Engine() *cycle.Engine {
	return a.engine
}

// Store returns the underlying store.
func (a *Almanac) Store() store.Store {
	return a.store
}

// DLQ returns the DLQ service.
func (a *Almanac) DLQ() *dlq.Service {
	return a.dlqSvc
}
