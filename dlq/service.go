package dlq

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/almanac/id"
	"github.com/xraph/almanac/internal/entity"
	"github.com/xraph/almanac/match"
	"github.com/xraph/almanac/policy"
)

// Service manages the dead letter queue.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new DLQ service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

// PushFailed records a channel send that failed for a candidate. One entry
// is created per failed channel, so a candidate with two failing channels
// yields two entries.
func (svc *Service) PushFailed(ctx context.Context, cand *match.Candidate, channel policy.Channel, sendErr string) error {
	entry := &Entry{
		Entity:         entity.New(),
		ID:             id.NewDLQID(),
		EventID:        cand.Event.ID,
		UserID:         cand.UserID,
		Channel:        channel,
		LeadWindowDays: cand.LeadWindowDays,
		Message:        cand.Message,
		Error:          sendErr,
		FailedAt:       time.Now().UTC(),
	}

	svc.logger.WarnContext(ctx, "notification pushed to DLQ",
		"event_id", cand.Event.ID, "user_id", cand.UserID, "channel", channel)

	return svc.store.Push(ctx, entry)
}

// List returns DLQ entries matching the given options.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Entry, error) {
	return svc.store.ListDLQ(ctx, opts)
}

// Get returns a DLQ entry by ID.
func (svc *Service) Get(ctx context.Context, dlqID id.ID) (*Entry, error) {
	return svc.store.GetDLQ(ctx, dlqID)
}

// Purge removes old DLQ entries.
func (svc *Service) Purge(ctx context.Context, before time.Time) (int64, error) {
	return svc.store.Purge(ctx, before)
}

// Count returns the total number of DLQ entries.
func (svc *Service) Count(ctx context.Context) (int64, error) {
	return svc.store.CountDLQ(ctx)
}
