package redis

import (
	"context"
	"fmt"
	"math"
	"time"

	goredis "github.com/redis/go-redis/v9"

	almanac "github.com/xraph/almanac"
	"github.com/xraph/almanac/event"
)

// UpsertEvent inserts the event only when its deterministic ID is new.
// SETNX is the conditional write; an existing key means a prior projection
// already owns the row and must not be overwritten.
func (s *Store) UpsertEvent(ctx context.Context, evt *event.Event) error {
	raw, err := marshalEntity(evt)
	if err != nil {
		return err
	}

	ok, err := s.rdb.SetNX(ctx, prefixEvent+string(evt.ID), raw, 0).Result()
	if err != nil {
		return fmt.Errorf("almanac/redis: upsert event: %w", err)
	}
	if !ok {
		return nil
	}

	err = s.rdb.ZAdd(ctx, zEventOccurs, goredis.Z{
		Score:  scoreFromTime(evt.OccursAt),
		Member: string(evt.ID),
	}).Err()
	if err != nil {
		return fmt.Errorf("almanac/redis: upsert event index: %w", err)
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, evtID event.ID) (*event.Event, error) {
	var evt event.Event
	if err := s.getEntity(ctx, prefixEvent+string(evtID), &evt); err != nil {
		if isNotFound(err) {
			return nil, almanac.ErrEventNotFound
		}
		return nil, fmt.Errorf("almanac/redis: get event: %w", err)
	}
	return &evt, nil
}

func (s *Store) ListUpcoming(ctx context.Context, limit int, now time.Time) ([]*event.Event, error) {
	ids, err := s.zRangeByScoreIDs(ctx, zEventOccurs, scoreFromTime(now), math.Inf(1), true)
	if err != nil {
		return nil, fmt.Errorf("almanac/redis: list upcoming: %w", err)
	}

	result := make([]*event.Event, 0, len(ids))
	for _, evtID := range ids {
		var evt event.Event
		if err := s.getEntity(ctx, prefixEvent+evtID, &evt); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if evt.Ignored {
			continue
		}
		result = append(result, &evt)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	minScore := math.Inf(-1)
	maxScore := math.Inf(1)
	if opts.From != nil {
		minScore = scoreFromTime(*opts.From)
	}
	if opts.To != nil {
		maxScore = scoreFromTime(*opts.To)
	}

	ids, err := s.zRangeByScoreIDs(ctx, zEventOccurs, minScore, maxScore, false)
	if err != nil {
		return nil, fmt.Errorf("almanac/redis: list events: %w", err)
	}

	result := make([]*event.Event, 0, len(ids))
	for _, evtID := range ids {
		var evt event.Event
		if err := s.getEntity(ctx, prefixEvent+evtID, &evt); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if evt.Ignored && !opts.IncludeIgnored {
			continue
		}
		if opts.Category != "" && evt.Category != opts.Category {
			continue
		}
		result = append(result, &evt)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) MarkIgnored(ctx context.Context, evtID event.ID) error {
	evt, err := s.GetEvent(ctx, evtID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	evt.Ignored = true
	evt.IgnoredAt = &now
	evt.UpdatedAt = now

	if err := s.setEntity(ctx, prefixEvent+string(evtID), evt); err != nil {
		return fmt.Errorf("almanac/redis: mark ignored: %w", err)
	}
	return nil
}

func (s *Store) DeleteEvent(ctx context.Context, evtID event.ID) error {
	deleted, err := s.rdb.Del(ctx, prefixEvent+string(evtID)).Result()
	if err != nil {
		return fmt.Errorf("almanac/redis: delete event: %w", err)
	}
	if deleted == 0 {
		return almanac.ErrEventNotFound
	}

	if err := s.rdb.ZRem(ctx, zEventOccurs, string(evtID)).Err(); err != nil {
		return fmt.Errorf("almanac/redis: delete event index: %w", err)
	}
	return nil
}
