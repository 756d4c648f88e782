// Package db keeps the payment ledger: one row per payment dispatch attempt,
// with the recipient already masked.
package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"voicepay/internal/domain"
)

const DefaultListLimit = 50

var ErrUnknownDriver = errors.New("unknown ledger driver")

// Ledger is implemented by the Postgres and SQLite stores.
type Ledger interface {
	Migrate(ctx context.Context) error
	RecordPayment(ctx context.Context, rec domain.PaymentRecord) error
	ListPayments(ctx context.Context, limit int) ([]domain.PaymentRecord, error)
	Close()
}

// Open returns a migrated ledger for driver "postgres" or "sqlite".
func Open(ctx context.Context, driver, dsn string) (Ledger, error) {
	var (
		l   Ledger
		err error
	)
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "pgx":
		l, err = New(ctx, dsn)
	case "sqlite":
		l, err = NewSQLite(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	if err != nil {
		return nil, err
	}
	if err := l.Migrate(ctx); err != nil {
		l.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return l, nil
}

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS payments (
			request_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			device_id TEXT NOT NULL DEFAULT '',
			recipient TEXT NOT NULL,
			amount_paise BIGINT NOT NULL,
			app_id TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_payments_created ON payments(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_payments_session ON payments(session_id, created_at);`,
	}

	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) RecordPayment(ctx context.Context, rec domain.PaymentRecord) error {
	createdAt, err := parseCreatedAt(rec.CreatedAt)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO payments (request_id, session_id, device_id, recipient, amount_paise, app_id, outcome, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (request_id) DO UPDATE
		SET outcome = EXCLUDED.outcome, error = EXCLUDED.error
	`, rec.RequestID, rec.SessionID, rec.DeviceID, rec.Recipient, rec.AmountPaise, rec.AppID, rec.Outcome, rec.Error, createdAt)
	return err
}

func (s *Store) ListPayments(ctx context.Context, limit int) ([]domain.PaymentRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT request_id, session_id, device_id, recipient, amount_paise, app_id, outcome, error, created_at
		FROM payments
		ORDER BY created_at DESC, request_id DESC
		LIMIT $1
	`, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.PaymentRecord, 0)
	for rows.Next() {
		var rec domain.PaymentRecord
		var createdAt time.Time
		if err := rows.Scan(&rec.RequestID, &rec.SessionID, &rec.DeviceID, &rec.Recipient, &rec.AmountPaise, &rec.AppID, &rec.Outcome, &rec.Error, &createdAt); err != nil {
			return nil, err
		}
		rec.CreatedAt = formatCreatedAt(createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return DefaultListLimit
	}
	return limit
}
