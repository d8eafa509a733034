package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"

	almanac "github.com/xraph/almanac"
	"github.com/xraph/almanac/event"
)

// UpsertEvent persists an event. The deterministic ID is the _id; a
// duplicate-key error means a prior projection already owns the document,
// which makes the call a no-op rather than a failure.
func (s *Store) UpsertEvent(ctx context.Context, evt *event.Event) error {
	m := toEventModel(evt)

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return nil
		}

		return fmt.Errorf("almanac/mongo: upsert event: %w", err)
	}

	return nil
}

// GetEvent returns an event by ID.
func (s *Store) GetEvent(ctx context.Context, evtID event.ID) (*event.Event, error) {
	var m eventModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": string(evtID)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, almanac.ErrEventNotFound
		}

		return nil, fmt.Errorf("almanac/mongo: get event: %w", err)
	}

	return fromEventModel(&m), nil
}

// ListUpcoming returns non-ignored events occurring strictly after now,
// ordered soonest first.
func (s *Store) ListUpcoming(ctx context.Context, limit int, now time.Time) ([]*event.Event, error) {
	var models []eventModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{
			"ignored":   false,
			"occurs_at": bson.M{"$gt": now},
		}).
		Sort(bson.D{{Key: "occurs_at", Value: 1}})

	if limit > 0 {
		q = q.Limit(int64(limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("almanac/mongo: list upcoming: %w", err)
	}

	result := make([]*event.Event, 0, len(models))
	for i := range models {
		result = append(result, fromEventModel(&models[i]))
	}

	return result, nil
}

// ListEvents returns events, optionally filtered by category or time range.
func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	var models []eventModel

	filter := bson.M{}
	if !opts.IncludeIgnored {
		filter["ignored"] = false
	}

	if opts.Category != "" {
		filter["category"] = string(opts.Category)
	}

	if opts.From != nil || opts.To != nil {
		dateFilter := bson.M{}
		if opts.From != nil {
			dateFilter["$gte"] = *opts.From
		}

		if opts.To != nil {
			dateFilter["$lte"] = *opts.To
		}

		filter["occurs_at"] = dateFilter
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "occurs_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("almanac/mongo: list events: %w", err)
	}

	result := make([]*event.Event, 0, len(models))
	for i := range models {
		result = append(result, fromEventModel(&models[i]))
	}

	return result, nil
}

// MarkIgnored administratively suppresses an event from matching.
func (s *Store) MarkIgnored(ctx context.Context, evtID event.ID) error {
	res, err := s.mdb.NewUpdate((*eventModel)(nil)).
		Filter(bson.M{"_id": string(evtID)}).
		Set("ignored", true).
		Set("ignored_at", now()).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("almanac/mongo: mark ignored: %w", err)
	}

	if res.MatchedCount() == 0 {
		return almanac.ErrEventNotFound
	}

	return nil
}

// DeleteEvent removes an event.
func (s *Store) DeleteEvent(ctx context.Context, evtID event.ID) error {
	res, err := s.mdb.NewDelete((*eventModel)(nil)).
		Filter(bson.M{"_id": string(evtID)}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("almanac/mongo: delete event: %w", err)
	}

	if res.DeletedCount() == 0 {
		return almanac.ErrEventNotFound
	}

	return nil
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}
