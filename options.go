package almanac

import (
	"log/slog"
	"time"

	"github.com/xraph/almanac/calendar"
	"github.com/xraph/almanac/cycle"
	"github.com/xraph/almanac/dispatch"
	"github.com/xraph/almanac/dlq"
	"github.com/xraph/almanac/observability"
	"github.com/xraph/almanac/policy"
	"github.com/xraph/almanac/store"
)

// Almanac is the root calendar-driven notification engine.
type Almanac struct {
	config      Config
	store       store.Store
	registry    *calendar.Registry
	definitions []calendar.Definition
	policySvc   *policy.Service
	dlqSvc      *dlq.Service
	dispatcher  *dispatch.Dispatcher
	engine      *cycle.Engine
	channels    []dispatch.Channel
	metrics     *observability.Metrics
	tracer      *observability.Tracer
	logger      *slog.Logger
}

// Option configures an Almanac instance.
type Option func(*Almanac) error

// New creates a new Almanac with the given options.
func New(opts ...Option) (*Almanac, error) {
	a := &Almanac{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	if a.store == nil {
		return nil, ErrNoStore
	}
	if err := a.wireServices(); err != nil {
		return nil, err
	}
	return a, nil
}

// WithStore sets the persistence backend for the Almanac instance.
func WithStore(s store.Store) Option {
	return func(a *Almanac) error {
		a.store = s
		return nil
	}
}

// WithLogger sets the structured logger for the Almanac instance.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Almanac) error {
		a.logger = logger
		return nil
	}
}

// WithChannels registers notification transports. Channels whose names do
// not appear here are skipped at dispatch time, not failed.
func WithChannels(channels ...dispatch.Channel) Option {
	return func(a *Almanac) error {
		a.channels = append(a.channels, channels...)
		return nil
	}
}

// WithDefinitions replaces the built-in recurrence catalog with the given
// definitions.
func WithDefinitions(defs ...calendar.Definition) Option {
	return func(a *Almanac) error {
		a.definitions = append(a.definitions, defs...)
		return nil
	}
}

// WithCycleInterval sets how often the engine runs a dispatch cycle.
func WithCycleInterval(d time.Duration) Option {
	return func(a *Almanac) error {
		a.config.CycleInterval = d
		return nil
	}
}

// WithConcurrency sets the number of concurrent candidate dispatches per cycle.
func WithConcurrency(n int) Option {
	return func(a *Almanac) error {
		a.config.Concurrency = n
		return nil
	}
}

// WithUpcomingLimit caps how many upcoming events one cycle considers.
func WithUpcomingLimit(n int) Option {
	return func(a *Almanac) error {
		a.config.UpcomingLimit = n
		return nil
	}
}

// WithRetention sets how long ledger records are kept after their event occurred.
func WithRetention(d time.Duration) Option {
	return func(a *Almanac) error {
		a.config.Retention = d
		return nil
	}
}

// WithSendTimeout sets the per-channel timeout for one notification send.
func WithSendTimeout(d time.Duration) Option {
	return func(a *Almanac) error {
		a.config.SendTimeout = d
		return nil
	}
}

// WithRateLimit sets the per-channel sends-per-second cap.
func WithRateLimit(n int) Option {
	return func(a *Almanac) error {
		a.config.RateLimit = n
		return nil
	}
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *Almanac) error {
		a.metrics = m
		return nil
	}
}

// WithTracer attaches an OpenTelemetry tracer.
func WithTracer(tr *observability.Tracer) Option {
	return func(a *Almanac) error {
		a.tracer = tr
		return nil
	}
}
