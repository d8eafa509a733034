// Package memory provides an in-memory Store implementation for unit testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/almanac"
	"github.com/xraph/almanac/dlq"
	"github.com/xraph/almanac/event"
	"github.com/xraph/almanac/id"
	"github.com/xraph/almanac/ledger"
	"github.com/xraph/almanac/policy"
	almanacstore "github.com/xraph/almanac/store"
)

// compile-time interface check.
var _ almanacstore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store for testing.
type Store struct {
	mu sync.RWMutex

	events     map[event.ID]*event.Event  // keyed by deterministic event ID
	policies   map[string]*policy.Subscriber // keyed by user ID
	records    map[string]*ledger.Record  // keyed by composite dedup key
	dlqEntries map[string]*dlq.Entry      // keyed by ID string

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		events:     make(map[event.ID]*event.Event),
		policies:   make(map[string]*policy.Subscriber),
		records:    make(map[string]*ledger.Record),
		dlqEntries: make(map[string]*dlq.Entry),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the in-memory store.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return almanac.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// event.Store
// ──────────────────────────────────────────────────

// UpsertEvent persists an event. If the ID already exists the call is a
// no-op so re-projection never clobbers user edits like the ignored flag.
func (s *Store) UpsertEvent(_ context.Context, evt *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[evt.ID]; ok {
		return nil
	}
	s.events[evt.ID] = evt
	return nil
}

// GetEvent returns an event by ID.
func (s *Store) GetEvent(_ context.Context, evtID event.ID) (*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evt, ok := s.events[evtID]
	if !ok {
		return nil, almanac.ErrEventNotFound
	}
	return evt, nil
}

// ListUpcoming returns non-ignored events occurring after now, soonest first.
func (s *Store) ListUpcoming(_ context.Context, limit int, now time.Time) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*event.Event
	for _, evt := range s.events {
		if evt.Ignored || !evt.OccursAt.After(now) {
			continue
		}
		result = append(result, evt)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OccursAt.Before(result[j].OccursAt)
	})

	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

// ListEvents returns events, optionally filtered by category or time range.
func (s *Store) ListEvents(_ context.Context, opts event.ListOpts) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*event.Event, 0, len(s.events))
	for _, evt := range s.events {
		if evt.Ignored && !opts.IncludeIgnored {
			continue
		}
		if opts.Category != "" && evt.Category != opts.Category {
			continue
		}
		if opts.From != nil && evt.OccursAt.Before(*opts.From) {
			continue
		}
		if opts.To != nil && evt.OccursAt.After(*opts.To) {
			continue
		}
		result = append(result, evt)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OccursAt.Before(result[j].OccursAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// MarkIgnored administratively suppresses an event from matching.
func (s *Store) MarkIgnored(_ context.Context, evtID event.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	evt, ok := s.events[evtID]
	if !ok {
		return almanac.ErrEventNotFound
	}

	now := time.Now().UTC()
	evt.Ignored = true
	evt.IgnoredAt = &now
	evt.UpdatedAt = now
	return nil
}

// DeleteEvent removes an event.
func (s *Store) DeleteEvent(_ context.Context, evtID event.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[evtID]; !ok {
		return almanac.ErrEventNotFound
	}
	delete(s.events, evtID)
	return nil
}

// ──────────────────────────────────────────────────
// policy.Store
// ──────────────────────────────────────────────────

// PutPolicy creates or replaces a subscriber's policy.
func (s *Store) PutPolicy(_ context.Context, sub *policy.Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.policies[sub.UserID] = sub
	return nil
}

// GetPolicy returns a subscriber's policy.
func (s *Store) GetPolicy(_ context.Context, userID string) (*policy.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.policies[userID]
	if !ok {
		return nil, almanac.ErrPolicyNotFound
	}
	return sub, nil
}

// DeletePolicy removes a subscriber's policy.
func (s *Store) DeletePolicy(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.policies[userID]; !ok {
		return almanac.ErrPolicyNotFound
	}
	delete(s.policies, userID)
	return nil
}

// ListPolicies returns subscribers with pagination, ordered by user ID.
func (s *Store) ListPolicies(_ context.Context, opts policy.ListOpts) ([]*policy.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*policy.Subscriber, 0, len(s.policies))
	for _, sub := range s.policies {
		result = append(result, sub)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UserID < result[j].UserID
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// ListActivePolicies returns every subscriber considered for matching.
func (s *Store) ListActivePolicies(ctx context.Context) ([]*policy.Subscriber, error) {
	return s.ListPolicies(ctx, policy.ListOpts{})
}

// ──────────────────────────────────────────────────
// ledger.Store
// ──────────────────────────────────────────────────

// TryClaim atomically claims the record's composite key. The check and
// insert happen under one write lock, matching the single conditional
// insert the persistent backends perform.
func (s *Store) TryClaim(_ context.Context, rec *ledger.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.Key()
	if _, exists := s.records[key]; exists {
		return false, nil
	}
	s.records[key] = rec
	return true, nil
}

// SetChannelsSent records the delivered channels for a claimed key.
func (s *Store) SetChannelsSent(_ context.Context, evtID event.ID, userID string, leadWindowDays int, channels []policy.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[ledger.Key(evtID, userID, leadWindowDays)]
	if !ok {
		return almanac.ErrRecordNotFound
	}
	rec.ChannelsSent = channels
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

// GetRecord returns the ledger record for a composite key.
func (s *Store) GetRecord(_ context.Context, evtID event.ID, userID string, leadWindowDays int) (*ledger.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[ledger.Key(evtID, userID, leadWindowDays)]
	if !ok {
		return nil, almanac.ErrRecordNotFound
	}
	return rec, nil
}

// CountRecords returns the total number of ledger records.
func (s *Store) CountRecords(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// Prune removes records whose event occurred before the cutoff. Records
// for future events are never touched.
func (s *Store) Prune(_ context.Context, occurredBefore time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pruned int64
	for key, rec := range s.records {
		if rec.OccursAt.Before(occurredBefore) {
			delete(s.records, key)
			pruned++
		}
	}
	return pruned, nil
}

// ──────────────────────────────────────────────────
// dlq.Store
// ──────────────────────────────────────────────────

// Push records a failed notification in the DLQ.
func (s *Store) Push(_ context.Context, entry *dlq.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dlqEntries[entry.ID.String()] = entry
	return nil
}

// ListDLQ returns DLQ entries, optionally filtered, newest first.
func (s *Store) ListDLQ(_ context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*dlq.Entry, 0, len(s.dlqEntries))
	for _, entry := range s.dlqEntries {
		if opts.UserID != "" && entry.UserID != opts.UserID {
			continue
		}
		if opts.Channel != nil && entry.Channel != *opts.Channel {
			continue
		}
		if opts.From != nil && entry.FailedAt.Before(*opts.From) {
			continue
		}
		if opts.To != nil && entry.FailedAt.After(*opts.To) {
			continue
		}
		result = append(result, entry)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].FailedAt.After(result[j].FailedAt)
	})

	result = applyPagination(result, opts.Offset, opts.Limit)
	return result, nil
}

// GetDLQ returns a DLQ entry by ID.
func (s *Store) GetDLQ(_ context.Context, dlqID id.ID) (*dlq.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.dlqEntries[dlqID.String()]
	if !ok {
		return nil, almanac.ErrDLQNotFound
	}
	return entry, nil
}

// Purge deletes DLQ entries older than a threshold.
func (s *Store) Purge(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for key, entry := range s.dlqEntries {
		if entry.FailedAt.Before(before) {
			delete(s.dlqEntries, key)
			purged++
		}
	}
	return purged, nil
}

// CountDLQ returns the total number of DLQ entries.
func (s *Store) CountDLQ(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.dlqEntries)), nil
}

// applyPagination slices items by offset and limit.
func applyPagination[T any](items []*T, offset, limit int) []*T {
	if offset > 0 && offset < len(items) {
		items = items[offset:]
	} else if offset >= len(items) && offset > 0 {
		return nil
	}

	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	return items
}
