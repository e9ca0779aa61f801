package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the streams store.
var Migrations = migrate.NewGroup("streams")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_streams_routes",
			Version: "20250301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS streams_routes (
    id                TEXT PRIMARY KEY,
    network           TEXT NOT NULL,
    asset             TEXT NOT NULL,
    depositor         TEXT NOT NULL,
    beneficiary       TEXT NOT NULL,
    schedule_start    BIGINT NOT NULL,
    period_seconds    BIGINT NOT NULL,
    payout_per_period BIGINT NOT NULL,
    max_periods       BIGINT NOT NULL,
    deposit_amount    BIGINT NOT NULL CHECK (deposit_amount > 0),
    fee_amount        BIGINT NOT NULL DEFAULT 0,
    claimed_amount    BIGINT NOT NULL DEFAULT 0 CHECK (claimed_amount <= deposit_amount),
    metadata          JSONB NOT NULL DEFAULT '{}',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_streams_routes_depositor ON streams_routes (network, depositor);
CREATE INDEX IF NOT EXISTS idx_streams_routes_beneficiary ON streams_routes (network, beneficiary);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS streams_routes`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_streams_invoices",
			Version: "20250301000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS streams_invoices (
    id                     TEXT PRIMARY KEY,
    network                TEXT NOT NULL,
    asset                  TEXT NOT NULL,
    requester              TEXT NOT NULL,
    beneficiary            TEXT NOT NULL,
    payer                  TEXT NOT NULL,
    requested_gross_amount BIGINT NOT NULL CHECK (requested_gross_amount > 0),
    schedule_start         BIGINT NOT NULL DEFAULT 0,
    period_seconds         BIGINT NOT NULL,
    payout_per_period      BIGINT NOT NULL,
    max_periods            BIGINT NOT NULL,
    fee_amount             BIGINT NOT NULL DEFAULT 0,
    deposit_amount         BIGINT NOT NULL DEFAULT 0,
    claimed_amount         BIGINT NOT NULL DEFAULT 0 CHECK (claimed_amount <= deposit_amount),
    status                 TEXT NOT NULL DEFAULT 'pending',
    funded_at              TIMESTAMPTZ,
    declined_at            TIMESTAMPTZ,
    metadata               JSONB NOT NULL DEFAULT '{}',
    created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_streams_invoices_status ON streams_invoices (network, status);
CREATE INDEX IF NOT EXISTS idx_streams_invoices_payer ON streams_invoices (network, payer);
CREATE INDEX IF NOT EXISTS idx_streams_invoices_beneficiary ON streams_invoices (network, beneficiary);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS streams_invoices`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_streams_registry",
			Version: "20250301000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS streams_registry (
    route_id          TEXT PRIMARY KEY,
    kind              TEXT NOT NULL,
    network           TEXT NOT NULL,
    asset             TEXT NOT NULL,
    depositor         TEXT NOT NULL,
    beneficiary       TEXT NOT NULL,
    schedule_start    BIGINT NOT NULL,
    period_seconds    BIGINT NOT NULL,
    payout_per_period BIGINT NOT NULL,
    max_periods       BIGINT NOT NULL,
    deposit_amount    BIGINT NOT NULL,
    claimed_amount    BIGINT NOT NULL DEFAULT 0 CHECK (claimed_amount <= deposit_amount),
    registered_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_streams_registry_network ON streams_registry (network, kind);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS streams_registry`)
				return err
			},
		},
	)
}
