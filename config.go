package almanac

import "time"

// Config holds the configuration for an Almanac instance.
type Config struct {
	// CycleInterval is how often the engine runs a dispatch cycle.
	CycleInterval time.Duration

	// Concurrency is the number of concurrent candidate dispatches per cycle.
	Concurrency int

	// UpcomingLimit caps how many upcoming events one cycle considers.
	UpcomingLimit int

	// Retention is how long ledger records are kept after their event
	// occurred. Must exceed the largest lead window in use.
	Retention time.Duration

	// SendTimeout is the per-channel timeout for one notification send.
	SendTimeout time.Duration

	// RateLimit is the per-channel sends-per-second cap. Zero means unlimited.
	RateLimit int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CycleInterval: 1 * time.Hour,
		Concurrency:   8,
		UpcomingLimit: 100,
		Retention:     37 * 24 * time.Hour,
		SendTimeout:   10 * time.Second,
		RateLimit:     0,
	}
}
