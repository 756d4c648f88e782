package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"voicepay/internal/domain"
)

func TestSQLiteLedger(t *testing.T) {
	ctx := context.Background()
	ledger, err := Open(ctx, "sqlite", filepath.Join(t.TempDir(), "nested", "ledger.db"))
	if err != nil {
		t.Fatalf("Open() err=%v", err)
	}
	defer ledger.Close()

	records := []domain.PaymentRecord{
		{RequestID: "r1", SessionID: "s1", DeviceID: "phone-1", Recipient: "jo**@paytm", AmountPaise: 50000, AppID: "com.phonepe.app", Outcome: domain.OutcomeDispatched, CreatedAt: "2026-03-01T10:00:00Z"},
		{RequestID: "r2", SessionID: "s1", DeviceID: "phone-1", Recipient: "ab**@ybl", AmountPaise: 100, Outcome: domain.OutcomeNoApps, CreatedAt: "2026-03-01T10:05:00Z"},
		{RequestID: "r3", SessionID: "s2", DeviceID: "phone-2", Recipient: "xy**@okaxis", AmountPaise: 2500, AppID: "net.one97.paytm", Outcome: domain.OutcomeFailed, Error: "device busy", CreatedAt: "2026-03-01T10:10:00Z"},
	}
	for _, rec := range records {
		if err := ledger.RecordPayment(ctx, rec); err != nil {
			t.Fatalf("RecordPayment(%s) err=%v", rec.RequestID, err)
		}
	}

	got, err := ledger.ListPayments(ctx, 2)
	if err != nil {
		t.Fatalf("ListPayments() err=%v", err)
	}
	if len(got) != 2 || got[0].RequestID != "r3" || got[1].RequestID != "r2" {
		t.Fatalf("ListPayments()=%+v, want newest first", got)
	}
	if got[0] != records[2] {
		t.Fatalf("record round trip=%+v, want %+v", got[0], records[2])
	}

	retry := records[2]
	retry.Outcome = domain.OutcomeDispatched
	retry.Error = ""
	if err := ledger.RecordPayment(ctx, retry); err != nil {
		t.Fatalf("RecordPayment(retry) err=%v", err)
	}
	all, err := ledger.ListPayments(ctx, 0)
	if err != nil {
		t.Fatalf("ListPayments() err=%v", err)
	}
	if len(all) != 3 || all[0].Outcome != domain.OutcomeDispatched {
		t.Fatalf("upsert did not update outcome: %+v", all)
	}
}

func TestSQLiteMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	for i := 0; i < 2; i++ {
		l, err := Open(ctx, "sqlite", path)
		if err != nil {
			t.Fatalf("Open() #%d err=%v", i, err)
		}
		l.Close()
	}
}

func TestRecordRejectsBadTimestamp(t *testing.T) {
	ctx := context.Background()
	l, err := Open(ctx, "sqlite", filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open() err=%v", err)
	}
	defer l.Close()
	if err := l.RecordPayment(ctx, domain.PaymentRecord{RequestID: "r", SessionID: "s", Recipient: "x", Outcome: "failed", CreatedAt: "yesterday"}); err == nil {
		t.Fatalf("bad created_at should be rejected")
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", "x"); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("err=%v, want ErrUnknownDriver", err)
	}
}
