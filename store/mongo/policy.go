package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	almanac "github.com/xraph/almanac"
	"github.com/xraph/almanac/policy"
)

// PutPolicy creates or replaces a subscriber's policy, keyed by user ID.
func (s *Store) PutPolicy(ctx context.Context, sub *policy.Subscriber) error {
	m := toPolicyModel(sub)

	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.UserID}).
		SetUpdate(bson.M{
			"$set": bson.M{
				"lead_window_days": m.LeadWindowDays,
				"channels":         m.Channels,
				"impact_filter":    m.ImpactFilter,
				"account_channels": m.AccountChannels,
				"updated_at":       m.UpdatedAt,
			},
			"$setOnInsert": bson.M{
				"_id":        m.UserID,
				"created_at": m.CreatedAt,
			},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("almanac/mongo: put policy: %w", err)
	}

	return nil
}

// GetPolicy returns a subscriber's policy.
func (s *Store) GetPolicy(ctx context.Context, userID string) (*policy.Subscriber, error) {
	var m policyModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": userID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, almanac.ErrPolicyNotFound
		}

		return nil, fmt.Errorf("almanac/mongo: get policy: %w", err)
	}

	return fromPolicyModel(&m), nil
}

// DeletePolicy removes a subscriber's policy.
func (s *Store) DeletePolicy(ctx context.Context, userID string) error {
	res, err := s.mdb.NewDelete((*policyModel)(nil)).
		Filter(bson.M{"_id": userID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("almanac/mongo: delete policy: %w", err)
	}

	if res.DeletedCount() == 0 {
		return almanac.ErrPolicyNotFound
	}

	return nil
}

// ListPolicies returns subscribers ordered by user ID.
func (s *Store) ListPolicies(ctx context.Context, opts policy.ListOpts) ([]*policy.Subscriber, error) {
	var models []policyModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("almanac/mongo: list policies: %w", err)
	}

	result := make([]*policy.Subscriber, 0, len(models))
	for i := range models {
		result = append(result, fromPolicyModel(&models[i]))
	}

	return result, nil
}

// ListActivePolicies returns every subscriber considered for matching.
func (s *Store) ListActivePolicies(ctx context.Context) ([]*policy.Subscriber, error) {
	return s.ListPolicies(ctx, policy.ListOpts{})
}
