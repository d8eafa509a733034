package redis

import (
	"context"
	"fmt"
	"sort"

	almanac "github.com/xraph/almanac"
	"github.com/xraph/almanac/policy"
)

func (s *Store) PutPolicy(ctx context.Context, sub *policy.Subscriber) error {
	if err := s.setEntity(ctx, prefixPolicy+sub.UserID, sub); err != nil {
		return fmt.Errorf("almanac/redis: put policy: %w", err)
	}
	if err := s.rdb.SAdd(ctx, sPolicyAll, sub.UserID).Err(); err != nil {
		return fmt.Errorf("almanac/redis: put policy index: %w", err)
	}
	return nil
}

func (s *Store) GetPolicy(ctx context.Context, userID string) (*policy.Subscriber, error) {
	var sub policy.Subscriber
	if err := s.getEntity(ctx, prefixPolicy+userID, &sub); err != nil {
		if isNotFound(err) {
			return nil, almanac.ErrPolicyNotFound
		}
		return nil, fmt.Errorf("almanac/redis: get policy: %w", err)
	}
	return &sub, nil
}

func (s *Store) DeletePolicy(ctx context.Context, userID string) error {
	deleted, err := s.rdb.Del(ctx, prefixPolicy+userID).Result()
	if err != nil {
		return fmt.Errorf("almanac/redis: delete policy: %w", err)
	}
	if deleted == 0 {
		return almanac.ErrPolicyNotFound
	}

	if err := s.rdb.SRem(ctx, sPolicyAll, userID).Err(); err != nil {
		return fmt.Errorf("almanac/redis: delete policy index: %w", err)
	}
	return nil
}

func (s *Store) ListPolicies(ctx context.Context, opts policy.ListOpts) ([]*policy.Subscriber, error) {
	userIDs, err := s.rdb.SMembers(ctx, sPolicyAll).Result()
	if err != nil {
		return nil, fmt.Errorf("almanac/redis: list policies: %w", err)
	}
	sort.Strings(userIDs)

	result := make([]*policy.Subscriber, 0, len(userIDs))
	for _, userID := range userIDs {
		var sub policy.Subscriber
		if err := s.getEntity(ctx, prefixPolicy+userID, &sub); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		result = append(result, &sub)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) ListActivePolicies(ctx context.Context) ([]*policy.Subscriber, error) {
	return s.ListPolicies(ctx, policy.ListOpts{})
}
