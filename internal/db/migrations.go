package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'agreement_status') THEN
			CREATE TYPE agreement_status AS ENUM ('ACTIVE', 'CANCELLED', 'EXPIRED', 'COMPLETED');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'signature_status') THEN
			CREATE TYPE signature_status AS ENUM ('PENDING_SIGNATURE', 'RECEIVED', 'EXPIRED');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'installment_status') THEN
			CREATE TYPE installment_status AS ENUM ('PENDING', 'PAID', 'OVERDUE');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'assignment_status') THEN
			CREATE TYPE assignment_status AS ENUM ('AVAILABLE', 'ASSIGNED');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS agents (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		full_name VARCHAR(255) NOT NULL,
		agent_type VARCHAR(32) NOT NULL DEFAULT 'COLLECTOR',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		current_batch_size INT NOT NULL DEFAULT 0
	);`,
	`CREATE TABLE IF NOT EXISTS customers (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		full_name VARCHAR(255) NOT NULL,
		policy_number VARCHAR(64) NOT NULL,
		phone VARCHAR(32) NOT NULL DEFAULT '',
		email VARCHAR(255) NOT NULL DEFAULT '',
		amount_due NUMERIC(18,2) NOT NULL DEFAULT 0,
		assignment_status assignment_status NOT NULL DEFAULT 'AVAILABLE',
		assigned_agent_id UUID REFERENCES agents(id),
		assigned_at TIMESTAMPTZ,
		priority_score NUMERIC(18,2) NOT NULL DEFAULT 0
	);`,
	`CREATE TABLE IF NOT EXISTS debt_agreements (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		customer_id UUID NOT NULL REFERENCES customers(id),
		policy_number VARCHAR(64) NOT NULL,
		outstanding_amount NUMERIC(18,2) NOT NULL,
		payment_method VARCHAR(32) NOT NULL,
		down_payment NUMERIC(18,2) NOT NULL DEFAULT 0,
		term_months INT NOT NULL DEFAULT 0,
		installment_amount NUMERIC(18,2) NOT NULL DEFAULT 0,
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		status agreement_status NOT NULL DEFAULT 'ACTIVE',
		signature_status signature_status,
		signature_deadline TIMESTAMPTZ NOT NULL,
		signature_received_date TIMESTAMPTZ,
		signature_reminder_count INT NOT NULL DEFAULT 0,
		created_by_agent_id UUID NOT NULL REFERENCES agents(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS installments (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		agreement_id UUID REFERENCES debt_agreements(id),
		sequence INT NOT NULL,
		due_date DATE NOT NULL,
		amount NUMERIC(18,2) NOT NULL,
		status installment_status NOT NULL DEFAULT 'PENDING',
		reminder_sent_count INT NOT NULL DEFAULT 0,
		last_reminder_sent_at TIMESTAMPTZ,
		payment_qr_ref VARCHAR(255),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS scheduler_runs (
		run_day DATE PRIMARY KEY,
		claimed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_agreements_policy_status ON debt_agreements (policy_number, status);`,
	`CREATE INDEX IF NOT EXISTS idx_agreements_signature ON debt_agreements (status, signature_status);`,
	`CREATE INDEX IF NOT EXISTS idx_installments_agreement ON installments (agreement_id);`,
	`CREATE INDEX IF NOT EXISTS idx_installments_due ON installments (status, due_date);`,
	`CREATE INDEX IF NOT EXISTS idx_customers_assignment ON customers (assignment_status, amount_due DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_agents_active ON agents (active, id);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
