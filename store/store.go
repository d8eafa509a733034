// Package store defines the composite Store interface for all Almanac
// persistence.
//
// Each subsystem defines its own store interface, and the aggregate Store
// composes them all.
package store

import (
	"context"

	"github.com/xraph/almanac/dlq"
	"github.com/xraph/almanac/event"
	"github.com/xraph/almanac/ledger"
	"github.com/xraph/almanac/policy"
)

// Store is the aggregate persistence interface.
type Store interface {
	event.Store
	policy.Store
	ledger.Store
	dlq.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
