package policy

import "context"

// Store defines the persistence contract for subscriber policies.
type Store interface {
	// PutPolicy creates or replaces a subscriber's policy (upsert by user ID).
	PutPolicy(ctx context.Context, sub *Subscriber) error

	// GetPolicy returns a subscriber's policy.
	GetPolicy(ctx context.Context, userID string) (*Subscriber, error)

	// DeletePolicy removes a subscriber's policy.
	DeletePolicy(ctx context.Context, userID string) error

	// ListPolicies returns subscribers with pagination.
	ListPolicies(ctx context.Context, opts ListOpts) ([]*Subscriber, error)

	// ListActivePolicies returns every subscriber considered for matching.
	// This is the per-cycle read-through path: the dispatch cycle calls it
	// fresh on every run instead of caching policies across cycles.
	ListActivePolicies(ctx context.Context) ([]*Subscriber, error)
}

// Source is the read side consumed by the dispatch cycle. The composite
// store satisfies it, as can any external user-preferences service.
type Source interface {
	ListActivePolicies(ctx context.Context) ([]*Subscriber, error)
}
