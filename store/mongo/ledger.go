package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"

	almanac "github.com/xraph/almanac"
	"github.com/xraph/almanac/event"
	"github.com/xraph/almanac/ledger"
	"github.com/xraph/almanac/policy"
)

// TryClaim performs the atomic claim as a plain insert. The unique compound
// index on (event_id, user_id, lead_window_days) rejects the second insert
// for the same key with a duplicate-key error, which maps to (false, nil).
func (s *Store) TryClaim(ctx context.Context, rec *ledger.Record) (bool, error) {
	m := toLedgerModel(rec)

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return false, nil
		}

		return false, fmt.Errorf("almanac/mongo: try claim: %w", err)
	}

	return true, nil
}

// SetChannelsSent records the channels that reported delivery for an
// already-claimed key.
func (s *Store) SetChannelsSent(ctx context.Context, evtID event.ID, userID string, leadWindowDays int, channels []policy.Channel) error {
	res, err := s.mdb.NewUpdate((*ledgerModel)(nil)).
		Filter(claimFilter(evtID, userID, leadWindowDays)).
		Set("channels_sent", channelsToStrings(channels)).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("almanac/mongo: set channels sent: %w", err)
	}

	if res.MatchedCount() == 0 {
		return almanac.ErrRecordNotFound
	}

	return nil
}

// GetRecord returns the record for a composite key.
func (s *Store) GetRecord(ctx context.Context, evtID event.ID, userID string, leadWindowDays int) (*ledger.Record, error) {
	var m ledgerModel

	err := s.mdb.NewFind(&m).
		Filter(claimFilter(evtID, userID, leadWindowDays)).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, almanac.ErrRecordNotFound
		}

		return nil, fmt.Errorf("almanac/mongo: get record: %w", err)
	}

	return fromLedgerModel(&m)
}

// CountRecords returns the total number of ledger records.
func (s *Store) CountRecords(ctx context.Context) (int64, error) {
	count, err := s.mdb.NewFind((*ledgerModel)(nil)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("almanac/mongo: count records: %w", err)
	}

	return count, nil
}

// Prune removes records whose event occurred before the cutoff. Records for
// events that have not yet occurred are out of range of the filter.
func (s *Store) Prune(ctx context.Context, occurredBefore time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*ledgerModel)(nil)).
		Many().
		Filter(bson.M{"occurs_at": bson.M{"$lt": occurredBefore}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("almanac/mongo: prune: %w", err)
	}

	return res.DeletedCount(), nil
}

// claimFilter builds the composite-key filter shared by the ledger lookups.
func claimFilter(evtID event.ID, userID string, leadWindowDays int) bson.M {
	return bson.M{
		"event_id":         string(evtID),
		"user_id":          userID,
		"lead_window_days": leadWindowDays,
	}
}
