// Package dbtest opens throwaway in-memory databases carrying the service schema.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var seq atomic.Int64

var schema = []string{
	`CREATE TABLE accounts (
		id BIGINT PRIMARY KEY,
		email TEXT NOT NULL,
		full_name TEXT,
		role TEXT NOT NULL DEFAULT 'customer',
		is_partner BOOLEAN NOT NULL DEFAULT FALSE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		referred_by BIGINT,
		referrer_email TEXT,
		identity_id TEXT,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_accounts_email ON accounts(lower(email))`,
	`CREATE INDEX idx_accounts_referred_by ON accounts(referred_by)`,
	`CREATE TABLE subscriptions (
		id BIGINT PRIMARY KEY,
		account_id BIGINT NOT NULL,
		setup_amount NUMERIC NOT NULL,
		monthly_amount NUMERIC NOT NULL,
		paid_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE commission_entries (
		id BIGINT PRIMARY KEY,
		recipient_id BIGINT NOT NULL,
		customer_id BIGINT NOT NULL,
		subscription_id BIGINT NOT NULL,
		level INTEGER NOT NULL CHECK (level BETWEEN 1 AND 3),
		fee_type TEXT NOT NULL CHECK (fee_type IN ('setup', 'monthly')),
		rate NUMERIC NOT NULL,
		amount NUMERIC NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE partner_invitations (
		id BIGINT PRIMARY KEY,
		account_id BIGINT NOT NULL,
		email TEXT NOT NULL,
		provider TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE referral_invites (
		id BIGINT PRIMARY KEY,
		partner_id BIGINT NOT NULL,
		email TEXT NOT NULL,
		full_name TEXT,
		phone TEXT,
		created_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_referral_invites_partner_email ON referral_invites(partner_id, lower(email))`,
	`CREATE TABLE webhook_events (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		email TEXT,
		outcome TEXT NOT NULL DEFAULT 'received',
		user_id BIGINT,
		error TEXT,
		received_at DATETIME NOT NULL,
		processed_at DATETIME
	)`,
}

// Open returns a fresh shared-cache in-memory database with every table created.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), seq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

// AssertCount fails the test when the scalar count query does not match.
func AssertCount(t testing.TB, db *gorm.DB, query string, expected int64, args ...any) {
	t.Helper()

	var count int64
	if err := db.Raw(query, args...).Scan(&count).Error; err != nil {
		t.Fatalf("query count: %v", err)
	}
	if count != expected {
		t.Fatalf("expected %d, got %d (%s)", expected, count, query)
	}
}
