// Package postgres implements the Almanac store on PostgreSQL via Grove ORM.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	almanac "github.com/xraph/almanac"
	"github.com/xraph/almanac/dlq"
	"github.com/xraph/almanac/event"
	"github.com/xraph/almanac/id"
	"github.com/xraph/almanac/ledger"
	"github.com/xraph/almanac/policy"
	almanacstore "github.com/xraph/almanac/store"
)

// compile-time interface check
var _ almanacstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("almanac/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("almanac/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Event Store ====================

// UpsertEvent inserts the event if its deterministic ID is new. An existing
// row is left untouched so re-projection never clobbers edits.
func (s *Store) UpsertEvent(ctx context.Context, evt *event.Event) error {
	m := toEventModel(evt)
	_, err := s.pg.NewInsert(m).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	return err
}

func (s *Store) GetEvent(ctx context.Context, evtID event.ID) (*event.Event, error) {
	m := new(eventModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", string(evtID)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, almanac.ErrEventNotFound
		}
		return nil, err
	}
	return fromEventModel(m), nil
}

func (s *Store) ListUpcoming(ctx context.Context, limit int, now time.Time) ([]*event.Event, error) {
	var models []eventModel
	q := s.pg.NewSelect(&models).
		Where("ignored = false").
		Where("occurs_at > $1", now).
		OrderExpr("occurs_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*event.Event, len(models))
	for i := range models {
		result[i] = fromEventModel(&models[i])
	}
	return result, nil
}

func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	var models []eventModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.Category != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("category = $%d", argIdx), string(opts.Category))
	}
	if !opts.IncludeIgnored {
		q = q.Where("ignored = false")
	}
	if opts.From != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("occurs_at >= $%d", argIdx), *opts.From)
	}
	if opts.To != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("occurs_at <= $%d", argIdx), *opts.To)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("occurs_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*event.Event, len(models))
	for i := range models {
		result[i] = fromEventModel(&models[i])
	}
	return result, nil
}

func (s *Store) MarkIgnored(ctx context.Context, evtID event.ID) error {
	now := time.Now().UTC()
	res, err := s.pg.NewUpdate((*eventModel)(nil)).
		Set("ignored = true").
		Set("ignored_at = $1", now).
		Set("updated_at = $2", now).
		Where("id = $3", string(evtID)).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return almanac.ErrEventNotFound
	}
	return nil
}

func (s *Store) DeleteEvent(ctx context.Context, evtID event.ID) error {
	res, err := s.pg.NewDelete((*eventModel)(nil)).
		Where("id = $1", string(evtID)).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return almanac.ErrEventNotFound
	}
	return nil
}

// ==================== Policy Store ====================

func (s *Store) PutPolicy(ctx context.Context, sub *policy.Subscriber) error {
	m := toPolicyModel(sub)
	_, err := s.pg.NewInsert(m).
		OnConflict("(user_id) DO UPDATE").
		Set("lead_window_days = EXCLUDED.lead_window_days").
		Set("channels = EXCLUDED.channels").
		Set("impact_filter = EXCLUDED.impact_filter").
		Set("account_channels = EXCLUDED.account_channels").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) GetPolicy(ctx context.Context, userID string) (*policy.Subscriber, error) {
	m := new(policyModel)
	err := s.pg.NewSelect(m).
		Where("user_id = $1", userID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, almanac.ErrPolicyNotFound
		}
		return nil, err
	}
	return fromPolicyModel(m), nil
}

func (s *Store) DeletePolicy(ctx context.Context, userID string) error {
	res, err := s.pg.NewDelete((*policyModel)(nil)).
		Where("user_id = $1", userID).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return almanac.ErrPolicyNotFound
	}
	return nil
}

func (s *Store) ListPolicies(ctx context.Context, opts policy.ListOpts) ([]*policy.Subscriber, error) {
	var models []policyModel
	q := s.pg.NewSelect(&models).OrderExpr("user_id ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*policy.Subscriber, len(models))
	for i := range models {
		result[i] = fromPolicyModel(&models[i])
	}
	return result, nil
}

func (s *Store) ListActivePolicies(ctx context.Context) ([]*policy.Subscriber, error) {
	return s.ListPolicies(ctx, policy.ListOpts{})
}

// ==================== Ledger Store ====================

// TryClaim races on the ledger primary key. ON CONFLICT DO NOTHING makes
// the insert conditional in a single statement: exactly one of any number
// of concurrent claimants observes RowsAffected == 1.
func (s *Store) TryClaim(ctx context.Context, rec *ledger.Record) (bool, error) {
	m := toLedgerModel(rec)
	res, err := s.pg.NewInsert(m).
		OnConflict("(event_id, user_id, lead_window_days) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (s *Store) SetChannelsSent(ctx context.Context, evtID event.ID, userID string, leadWindowDays int, channels []policy.Channel) error {
	res, err := s.pg.NewUpdate((*ledgerModel)(nil)).
		Set("channels_sent = $1", channelsToStrings(channels)).
		Set("updated_at = $2", time.Now().UTC()).
		Where("event_id = $3", string(evtID)).
		Where("user_id = $4", userID).
		Where("lead_window_days = $5", leadWindowDays).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return almanac.ErrRecordNotFound
	}
	return nil
}

func (s *Store) GetRecord(ctx context.Context, evtID event.ID, userID string, leadWindowDays int) (*ledger.Record, error) {
	m := new(ledgerModel)
	err := s.pg.NewSelect(m).
		Where("event_id = $1", string(evtID)).
		Where("user_id = $2", userID).
		Where("lead_window_days = $3", leadWindowDays).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, almanac.ErrRecordNotFound
		}
		return nil, err
	}
	return fromLedgerModel(m)
}

func (s *Store) CountRecords(ctx context.Context) (int64, error) {
	count, err := s.pg.NewSelect((*ledgerModel)(nil)).Count(ctx)
	return count, err
}

// Prune removes records whose event occurred before the cutoff. The filter
// is on occurs_at, so records for future events always survive.
func (s *Store) Prune(ctx context.Context, occurredBefore time.Time) (int64, error) {
	res, err := s.pg.NewDelete((*ledgerModel)(nil)).
		Where("occurs_at < $1", occurredBefore).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ==================== DLQ Store ====================

func (s *Store) Push(ctx context.Context, entry *dlq.Entry) error {
	m := toDLQEntryModel(entry)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	var models []dlqEntryModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.UserID != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("user_id = $%d", argIdx), opts.UserID)
	}
	if opts.Channel != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("channel = $%d", argIdx), string(*opts.Channel))
	}
	if opts.From != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("failed_at >= $%d", argIdx), *opts.From)
	}
	if opts.To != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("failed_at <= $%d", argIdx), *opts.To)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("failed_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*dlq.Entry, len(models))
	for i := range models {
		entry, err := fromDLQEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = entry
	}
	return result, nil
}

func (s *Store) GetDLQ(ctx context.Context, dlqID id.ID) (*dlq.Entry, error) {
	m := new(dlqEntryModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", dlqID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, almanac.ErrDLQNotFound
		}
		return nil, err
	}
	return fromDLQEntryModel(m)
}

func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.pg.NewDelete((*dlqEntryModel)(nil)).
		Where("failed_at < $1", before).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	count, err := s.pg.NewSelect((*dlqEntryModel)(nil)).Count(ctx)
	return count, err
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
