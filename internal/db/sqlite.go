package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"voicepay/internal/domain"
)

// SQLiteStore is the single-file ledger used when no Postgres is configured.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() {
	_ = s.db.Close()
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS payments (
			request_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			device_id TEXT NOT NULL DEFAULT '',
			recipient TEXT NOT NULL,
			amount_paise INTEGER NOT NULL,
			app_id TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_payments_created ON payments(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_payments_session ON payments(session_id, created_at);`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) RecordPayment(ctx context.Context, rec domain.PaymentRecord) error {
	createdAt, err := parseCreatedAt(rec.CreatedAt)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO payments (request_id, session_id, device_id, recipient, amount_paise, app_id, outcome, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (request_id) DO UPDATE
		SET outcome = excluded.outcome, error = excluded.error
	`, rec.RequestID, rec.SessionID, rec.DeviceID, rec.Recipient, rec.AmountPaise, rec.AppID, rec.Outcome, rec.Error, createdAt.Unix())
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListPayments(ctx context.Context, limit int) ([]domain.PaymentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT request_id, session_id, device_id, recipient, amount_paise, app_id, outcome, error, created_at
		FROM payments
		ORDER BY created_at DESC, request_id DESC
		LIMIT ?
	`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	out := make([]domain.PaymentRecord, 0)
	for rows.Next() {
		var rec domain.PaymentRecord
		var createdAt int64
		if err := rows.Scan(&rec.RequestID, &rec.SessionID, &rec.DeviceID, &rec.Recipient, &rec.AmountPaise, &rec.AppID, &rec.Outcome, &rec.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		rec.CreatedAt = formatCreatedAt(time.Unix(createdAt, 0))
		out = append(out, rec)
	}
	return out, rows.Err()
}
