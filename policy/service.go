package policy

import (
	"context"
	"log/slog"

	"github.com/xraph/almanac/internal/entity"
)

// Service provides validated subscriber policy management.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new policy service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

// Put creates or replaces a subscriber's policy.
//
// Validation enforces the account-enablement invariant: the policy may not
// request a channel the account has not opted into. An empty channel list
// is allowed and simply means the user gets no notifications.
func (svc *Service) Put(ctx context.Context, in Input) (*Subscriber, error) {
	if in.UserID == "" {
		return nil, &ValidationError{Field: "user_id", Message: "required"}
	}

	filter := in.ImpactFilter
	if filter == "" {
		filter = FilterAll
	}
	if !filter.Valid() {
		return nil, &ValidationError{Field: "impact_filter", Message: "unknown filter " + string(filter)}
	}

	if len(in.LeadWindowDays) == 0 {
		return nil, &ValidationError{Field: "lead_window_days", Message: "at least one lead window required"}
	}
	seen := make(map[int]bool, len(in.LeadWindowDays))
	for _, w := range in.LeadWindowDays {
		if w <= 0 {
			return nil, &ValidationError{Field: "lead_window_days", Message: "windows must be positive"}
		}
		if seen[w] {
			return nil, &ValidationError{Field: "lead_window_days", Message: "duplicate window"}
		}
		seen[w] = true
	}

	account := in.AccountChannels
	if account == nil {
		// Account mask not supplied: keep the existing one if present.
		if existing, err := svc.store.GetPolicy(ctx, in.UserID); err == nil {
			account = existing.AccountChannels
		}
	}

	enabled := make(map[Channel]bool, len(account))
	for _, c := range account {
		if !c.Valid() {
			return nil, &ValidationError{Field: "account_channels", Message: "unknown channel " + string(c)}
		}
		enabled[c] = true
	}
	for _, c := range in.Channels {
		if !c.Valid() {
			return nil, &ValidationError{Field: "channels", Message: "unknown channel " + string(c)}
		}
		if !enabled[c] {
			return nil, &ValidationError{Field: "channels", Message: "channel " + string(c) + " not enabled on account"}
		}
	}

	sub := &Subscriber{
		Entity: entity.New(),
		UserID: in.UserID,
		Policy: Policy{
			LeadWindowDays: in.LeadWindowDays,
			Channels:       in.Channels,
			ImpactFilter:   filter,
		},
		AccountChannels: account,
	}

	if err := svc.store.PutPolicy(ctx, sub); err != nil {
		return nil, err
	}

	return sub, nil
}

// Get returns a subscriber's policy.
func (svc *Service) Get(ctx context.Context, userID string) (*Subscriber, error) {
	return svc.store.GetPolicy(ctx, userID)
}

// Delete removes a subscriber's policy.
func (svc *Service) Delete(ctx context.Context, userID string) error {
	return svc.store.DeletePolicy(ctx, userID)
}

// List returns subscribers with pagination.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Subscriber, error) {
	return svc.store.ListPolicies(ctx, opts)
}

// SetAccountChannels replaces a subscriber's account-level channel mask.
// Policy channels the account no longer enables stop resolving immediately;
// the policy itself is left untouched.
func (svc *Service) SetAccountChannels(ctx context.Context, userID string, channels []Channel) (*Subscriber, error) {
	for _, c := range channels {
		if !c.Valid() {
			return nil, &ValidationError{Field: "account_channels", Message: "unknown channel " + string(c)}
		}
	}

	sub, err := svc.store.GetPolicy(ctx, userID)
	if err != nil {
		return nil, err
	}

	sub.AccountChannels = channels
	if err := svc.store.PutPolicy(ctx, sub); err != nil {
		return nil, err
	}

	return sub, nil
}

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "policy validation: " + e.Field + ": " + e.Message
}
