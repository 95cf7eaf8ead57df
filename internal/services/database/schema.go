package database

import (
	"context"
	"fmt"
)

// Constraint names referenced when mapping unique violations.
const (
	constraintContractNumber    = "contracts_contract_number_key"
	constraintInstallmentNumber = "payments_contract_installment_key"
)

// schemaStatements create the back office tables. Every statement is
// idempotent so Migrate can run on each deploy.
var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,

	`CREATE TABLE IF NOT EXISTS clients (
		id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		first_name  VARCHAR(100) NOT NULL,
		last_name   VARCHAR(100) NOT NULL DEFAULT '',
		email       VARCHAR(255) NOT NULL DEFAULT '',
		phone       VARCHAR(40)  NOT NULL DEFAULT '',
		tax_id      VARCHAR(32)  NOT NULL DEFAULT '',
		status      VARCHAR(20)  NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive')),
		batch_id    VARCHAR(64),
		created_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS contracts (
		id                  UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		contract_number     VARCHAR(32)   NOT NULL,
		client_id           UUID          NOT NULL REFERENCES clients(id),
		description         TEXT          NOT NULL DEFAULT '',
		total_value         NUMERIC(12,2) NOT NULL CHECK (total_value > 0),
		down_payment        NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (down_payment >= 0),
		number_of_payments  INTEGER       NOT NULL DEFAULT 0 CHECK (number_of_payments >= 0),
		status              VARCHAR(20)   NOT NULL DEFAULT 'pending'
			CHECK (status IN ('draft', 'pending', 'active', 'inactive', 'completed', 'cancelled')),
		start_date          DATE,
		cancellation_reason TEXT,
		cancelled_at        TIMESTAMPTZ,
		completed_at        TIMESTAMPTZ,
		created_at          TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
		updated_at          TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
		CONSTRAINT contracts_contract_number_key UNIQUE (contract_number)
	)`,

	`CREATE TABLE IF NOT EXISTS payments (
		id                  UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		contract_id         UUID          NOT NULL REFERENCES contracts(id),
		installment_number  INTEGER       NOT NULL CHECK (installment_number >= 1),
		amount              NUMERIC(12,2) NOT NULL CHECK (amount > 0),
		due_date            DATE          NOT NULL,
		status              VARCHAR(20)   NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'paid', 'cancelled')),
		paid_date           DATE,
		amount_paid         NUMERIC(12,2),
		payment_method      VARCHAR(20)   NOT NULL DEFAULT 'boleto',
		notes               TEXT,
		cancellation_reason TEXT,
		created_at          TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
		updated_at          TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
		CONSTRAINT payments_contract_installment_key UNIQUE (contract_id, installment_number)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_contracts_client_id ON contracts(client_id)`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_status ON contracts(status)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_status_due_date ON payments(status, due_date)`,
}

// Migrate creates the schema if it does not exist.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// TableCounts returns the row count of each back office table.
func (db *DB) TableCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, 3)
	for _, table := range []string{"clients", "contracts", "payments"} {
		var n int
		if err := db.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}
