// Package sqlite implements the Almanac store on SQLite via Grove ORM.
// Suited to single-node deployments and local development.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
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

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("almanac/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("almanac/sqlite: migration failed: %w", err)
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

func (s *Store) UpsertEvent(ctx context.Context, evt *event.Event) error {
	m := toEventModel(evt)
	_, err := s.sdb.NewInsert(m).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	return err
}

func (s *Store) GetEvent(ctx context.Context, evtID event.ID) (*event.Event, error) {
	m := new(eventModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", string(evtID)).
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
	q := s.sdb.NewSelect(&models).
		Where("ignored = 0").
		Where("occurs_at > ?", now).
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
	q := s.sdb.NewSelect(&models)

	if opts.Category != "" {
		q = q.Where("category = ?", string(opts.Category))
	}
	if !opts.IncludeIgnored {
		q = q.Where("ignored = 0")
	}
	if opts.From != nil {
		q = q.Where("occurs_at >= ?", *opts.From)
	}
	if opts.To != nil {
		q = q.Where("occurs_at <= ?", *opts.To)
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
	res, err := s.sdb.NewUpdate((*eventModel)(nil)).
		Set("ignored = 1").
		Set("ignored_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", string(evtID)).
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
	res, err := s.sdb.NewDelete((*eventModel)(nil)).
		Where("id = ?", string(evtID)).
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
	_, err := s.sdb.NewInsert(m).
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
	err := s.sdb.NewSelect(m).
		Where("user_id = ?", userID).
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
	res, err := s.sdb.NewDelete((*policyModel)(nil)).
		Where("user_id = ?", userID).
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
	q := s.sdb.NewSelect(&models).OrderExpr("user_id ASC")
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

// TryClaim relies on the composite primary key: the conditional insert is
// a single statement, so concurrent claimants serialize in the database.
func (s *Store) TryClaim(ctx context.Context, rec *ledger.Record) (bool, error) {
	m := toLedgerModel(rec)
	res, err := s.sdb.NewInsert(m).
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
	sent, _ := json.Marshal(channels) //nolint:errcheck // best-effort
	res, err := s.sdb.NewUpdate((*ledgerModel)(nil)).
		Set("channels_sent = ?", string(sent)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("event_id = ?", string(evtID)).
		Where("user_id = ?", userID).
		Where("lead_window_days = ?", leadWindowDays).
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
	err := s.sdb.NewSelect(m).
		Where("event_id = ?", string(evtID)).
		Where("user_id = ?", userID).
		Where("lead_window_days = ?", leadWindowDays).
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
	count, err := s.sdb.NewSelect((*ledgerModel)(nil)).Count(ctx)
	return count, err
}

func (s *Store) Prune(ctx context.Context, occurredBefore time.Time) (int64, error) {
	res, err := s.sdb.NewDelete((*ledgerModel)(nil)).
		Where("occurs_at < ?", occurredBefore).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ==================== DLQ Store ====================

func (s *Store) Push(ctx context.Context, entry *dlq.Entry) error {
	m := toDLQEntryModel(entry)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	var models []dlqEntryModel
	q := s.sdb.NewSelect(&models)

	if opts.UserID != "" {
		q = q.Where("user_id = ?", opts.UserID)
	}
	if opts.Channel != nil {
		q = q.Where("channel = ?", string(*opts.Channel))
	}
	if opts.From != nil {
		q = q.Where("failed_at >= ?", *opts.From)
	}
	if opts.To != nil {
		q = q.Where("failed_at <= ?", *opts.To)
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
	err := s.sdb.NewSelect(m).
		Where("id = ?", dlqID.String()).
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
	res, err := s.sdb.NewDelete((*dlqEntryModel)(nil)).
		Where("failed_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	count, err := s.sdb.NewSelect((*dlqEntryModel)(nil)).Count(ctx)
	return count, err
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
