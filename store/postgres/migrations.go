package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Tollgate store.
var Migrations = migrate.NewGroup("tollgate")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_tollgate_conversations",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tollgate_conversations (
    id            TEXT PRIMARY KEY,
    campaign_id   TEXT NOT NULL DEFAULT '',
    vendor_id     TEXT NOT NULL DEFAULT '',
    influencer_id TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_tollgate_conversations_triple ON tollgate_conversations (campaign_id, vendor_id, influencer_id);
CREATE INDEX IF NOT EXISTS idx_tollgate_conversations_vendor ON tollgate_conversations (vendor_id);
CREATE INDEX IF NOT EXISTS idx_tollgate_conversations_influencer ON tollgate_conversations (influencer_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tollgate_conversations`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tollgate_messages",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tollgate_messages (
    id              TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL DEFAULT '',
    sender_id       TEXT NOT NULL DEFAULT '',
    text            TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_tollgate_messages_conversation ON tollgate_messages (conversation_id, created_at);
CREATE INDEX IF NOT EXISTS idx_tollgate_messages_sender ON tollgate_messages (conversation_id, sender_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tollgate_messages`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tollgate_meters",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tollgate_meters (
    actor_id        TEXT NOT NULL,
    conversation_id TEXT NOT NULL,
    sent_count      BIGINT NOT NULL DEFAULT 0,
    paid_blocks     BIGINT NOT NULL DEFAULT 0,
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (actor_id, conversation_id)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tollgate_meters`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tollgate_contact_charges",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tollgate_contact_charges (
    actor_id    TEXT NOT NULL,
    campaign_id TEXT NOT NULL,
    charged_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (actor_id, campaign_id)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tollgate_contact_charges`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tollgate_accounts",
			Version: "20240101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tollgate_accounts (
    actor_id   TEXT PRIMARY KEY,
    balance    BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tollgate_accounts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tollgate_charges",
			Version: "20240101000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tollgate_charges (
    id            TEXT PRIMARY KEY,
    actor_id      TEXT NOT NULL DEFAULT '',
    scope         TEXT NOT NULL DEFAULT '',
    reason        TEXT NOT NULL DEFAULT '',
    amount        BIGINT NOT NULL DEFAULT 0,
    balance_after BIGINT NOT NULL DEFAULT 0,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_tollgate_charges_actor ON tollgate_charges (actor_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_tollgate_charges_reason ON tollgate_charges (actor_id, reason);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tollgate_charges`)
				return err
			},
		},
	)
}
