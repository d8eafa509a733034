// Package almanac provides a calendar-driven notification dispatch engine for Go.
//
// Almanac is a library, not a service. Import it into your application to get
// deterministic projection of recurring market events, per-subscriber lead
// window matching, an at-most-once dispatch ledger, and multi-channel fan-out
// with per-channel failure isolation.
//
// Key features:
//   - Recurrence rules (interval, day-of-month, weekday-of-month) with
//     JSON/YAML loaders and a built-in market calendar
//   - Deterministic event identity: one (slug, occurrence date) is always the
//     same event, so re-projection never duplicates
//   - Atomic dedup ledger keyed by (event, user, lead window); concurrent
//     cycles contend on a single conditional insert
//   - Composable store pattern with multiple backends (Postgres, SQLite,
//     MongoDB, Redis, Memory)
//   - Channel fan-out where one failing transport never blocks the others;
//     permanent failures land in a dead letter queue for inspection
//
// Quick start:
//
//	a, err := almanac.New(
//	    almanac.WithStore(memoryStore),
//	    almanac.WithChannels(emailSender, pushSender),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	a.Policies().Put(ctx, policy.Input{
//	    UserID:          "u_123",
//	    LeadWindowDays:  []int{1, 7},
//	    Channels:        []policy.Channel{policy.ChannelEmail},
//	    AccountChannels: []policy.Channel{policy.ChannelEmail},
//	})
//
//	a.Start(ctx)
package almanac
