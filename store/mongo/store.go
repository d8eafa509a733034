// Package mongo implements the Almanac store on MongoDB via Grove ORM.
// The dedup guarantee rides on a unique compound index over the ledger
// collection; a duplicate-key error on insert is the losing side of a claim.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	almanacstore "github.com/xraph/almanac/store"
)

// Collection name constants.
const (
	colEvents   = "almanac_events"
	colPolicies = "almanac_policies"
	colLedger   = "almanac_ledger"
	colDLQ      = "almanac_dlq"
)

// compile-time interface check
var _ almanacstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all almanac collections. The unique compound
// index on the ledger is what makes TryClaim atomic on this backend.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}

		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("almanac/mongo: migrate %s indexes: %w", col, err)
		}
	}

	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// migrationIndexes returns the index definitions for all almanac collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colEvents: {
			{Keys: bson.D{{Key: "ignored", Value: 1}, {Key: "occurs_at", Value: 1}}},
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "occurs_at", Value: 1}}},
		},
		colPolicies: {
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		colLedger: {
			{
				Keys: bson.D{
					{Key: "event_id", Value: 1},
					{Key: "user_id", Value: 1},
					{Key: "lead_window_days", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "occurs_at", Value: 1}}},
		},
		colDLQ: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "failed_at", Value: -1}}},
			{Keys: bson.D{{Key: "failed_at", Value: -1}}},
		},
	}
}
