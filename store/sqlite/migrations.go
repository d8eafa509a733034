package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the SQLite Almanac store.
var Migrations = migrate.NewGroup("almanac_sqlite")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_almanac_events",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS almanac_events (
    id          TEXT PRIMARY KEY,
    title       TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    category    TEXT NOT NULL DEFAULT 'other',
    impact      TEXT NOT NULL DEFAULT 'low',
    occurs_at   TIMESTAMP NOT NULL,
    source      TEXT NOT NULL DEFAULT '',
    ignored     BOOLEAN NOT NULL DEFAULT 0,
    ignored_at  TIMESTAMP,
    created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_almanac_events_upcoming ON almanac_events (occurs_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS almanac_events`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_almanac_policies",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS almanac_policies (
    user_id          TEXT PRIMARY KEY,
    lead_window_days TEXT NOT NULL DEFAULT '[]',
    channels         TEXT NOT NULL DEFAULT '[]',
    impact_filter    TEXT NOT NULL DEFAULT 'all',
    account_channels TEXT NOT NULL DEFAULT '[]',
    created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS almanac_policies`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_almanac_ledger",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS almanac_ledger (
    id               TEXT NOT NULL,
    event_id         TEXT NOT NULL,
    user_id          TEXT NOT NULL,
    lead_window_days INTEGER NOT NULL,
    occurs_at        TIMESTAMP NOT NULL,
    channels_sent    TEXT NOT NULL DEFAULT '[]',
    created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (event_id, user_id, lead_window_days)
);

CREATE INDEX IF NOT EXISTS idx_almanac_ledger_occurs ON almanac_ledger (occurs_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS almanac_ledger`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_almanac_dlq",
			Version: "20250101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS almanac_dlq (
    id               TEXT PRIMARY KEY,
    event_id         TEXT NOT NULL DEFAULT '',
    user_id          TEXT NOT NULL DEFAULT '',
    channel          TEXT NOT NULL DEFAULT '',
    lead_window_days INTEGER NOT NULL DEFAULT 0,
    message          TEXT NOT NULL DEFAULT '',
    error            TEXT NOT NULL DEFAULT '',
    failed_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_almanac_dlq_user ON almanac_dlq (user_id);
CREATE INDEX IF NOT EXISTS idx_almanac_dlq_failed ON almanac_dlq (failed_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS almanac_dlq`)
				return err
			},
		},
	)
}
