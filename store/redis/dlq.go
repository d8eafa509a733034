package redis

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	almanac "github.com/xraph/almanac"
	"github.com/xraph/almanac/dlq"
	"github.com/xraph/almanac/id"
)

func (s *Store) Push(ctx context.Context, entry *dlq.Entry) error {
	if err := s.setEntity(ctx, prefixDLQ+entry.ID.String(), entry); err != nil {
		return fmt.Errorf("almanac/redis: push dlq: %w", err)
	}

	err := s.rdb.ZAdd(ctx, zDLQFailed, goredis.Z{
		Score:  scoreFromTime(entry.FailedAt),
		Member: entry.ID.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("almanac/redis: push dlq index: %w", err)
	}
	return nil
}

func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	minScore := math.Inf(-1)
	maxScore := math.Inf(1)
	if opts.From != nil {
		minScore = scoreFromTime(*opts.From)
	}
	if opts.To != nil {
		maxScore = scoreFromTime(*opts.To)
	}

	ids, err := s.zRangeByScoreIDs(ctx, zDLQFailed, minScore, maxScore, false)
	if err != nil {
		return nil, fmt.Errorf("almanac/redis: list dlq: %w", err)
	}

	result := make([]*dlq.Entry, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- { // reverse for newest-first order
		var entry dlq.Entry
		if err := s.getEntity(ctx, prefixDLQ+ids[i], &entry); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if opts.UserID != "" && entry.UserID != opts.UserID {
			continue
		}
		if opts.Channel != nil && entry.Channel != *opts.Channel {
			continue
		}
		result = append(result, &entry)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) GetDLQ(ctx context.Context, dlqID id.ID) (*dlq.Entry, error) {
	var entry dlq.Entry
	if err := s.getEntity(ctx, prefixDLQ+dlqID.String(), &entry); err != nil {
		if isNotFound(err) {
			return nil, almanac.ErrDLQNotFound
		}
		return nil, fmt.Errorf("almanac/redis: get dlq: %w", err)
	}
	return &entry, nil
}

func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	cutoff := strconv.FormatFloat(scoreFromTime(before), 'f', -1, 64)
	ids, err := s.rdb.ZRangeByScore(ctx, zDLQFailed, &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + cutoff,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("almanac/redis: purge scan: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.rdb.Pipeline()
	for _, dlqID := range ids {
		pipe.Del(ctx, prefixDLQ+dlqID)
		pipe.ZRem(ctx, zDLQFailed, dlqID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("almanac/redis: purge: %w", err)
	}
	return int64(len(ids)), nil
}

func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	count, err := s.rdb.ZCard(ctx, zDLQFailed).Result()
	if err != nil {
		return 0, fmt.Errorf("almanac/redis: count dlq: %w", err)
	}
	return count, nil
}
