package migration

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Migrator applies a service's schema statements at startup. Statements
// are idempotent (CREATE IF NOT EXISTS) so every instance can run them
// unconditionally before serving traffic.
type Migrator struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewMigrator(db *sql.DB, logger *logrus.Logger) *Migrator {
	return &Migrator{db: db, logger: logger}
}

func (m *Migrator) Run(ctx context.Context, name string, statements []string) error {
	for i, stmt := range statements {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %s statement %d failed: %w", name, i+1, err)
		}
	}
	m.logger.WithFields(logrus.Fields{
		"schema":     name,
		"statements": len(statements),
	}).Info("Schema migration applied")
	return nil
}

// OrderServiceSchema holds the order store plus the customer/product
// read models the search engine joins against, and the saga step log.
var OrderServiceSchema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id          UUID PRIMARY KEY,
		code        VARCHAR(32) NOT NULL UNIQUE,
		user_id     BIGINT NOT NULL,
		status      VARCHAR(16) NOT NULL,
		payment_method VARCHAR(16) NOT NULL,
		total_price NUMERIC(14,2) NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS order_details (
		order_id            UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id          BIGINT NOT NULL,
		quantity            INT NOT NULL,
		returnable_quantity INT NOT NULL DEFAULT 0,
		unit_price          NUMERIC(14,2) NOT NULL,
		total_price         NUMERIC(14,2) NOT NULL,
		PRIMARY KEY (order_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS feedback_requests (
		id         UUID PRIMARY KEY,
		order_id   UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS order_saga_steps (
		id         BIGSERIAL PRIMARY KEY,
		order_id   UUID NOT NULL,
		step       VARCHAR(64) NOT NULL,
		state      VARCHAR(16) NOT NULL,
		detail     TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id           BIGINT PRIMARY KEY,
		account_name VARCHAR(128) NOT NULL,
		email        VARCHAR(256) NOT NULL,
		phone_number VARCHAR(32)
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id   BIGINT PRIMARY KEY,
		name VARCHAR(256) NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_saga_steps_order_id ON order_saga_steps (order_id)`,
}

// PaymentServiceSchema is the payment service's own store; the two
// services never share a database.
var PaymentServiceSchema = []string{
	`CREATE TABLE IF NOT EXISTS payments (
		id       UUID PRIMARY KEY,
		order_id UUID NOT NULL,
		user_id  BIGINT NOT NULL,
		amount   NUMERIC(14,2) NOT NULL,
		status   VARCHAR(16) NOT NULL,
		paid_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_order_id ON payments (order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_user_id ON payments (user_id)`,
}
