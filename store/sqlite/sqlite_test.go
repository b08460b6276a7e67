package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/anantdark/tenant-electricity-bill-calculator/billing"
	"github.com/anantdark/tenant-electricity-bill-calculator/store/sqlite"
)

func openTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecords() []billing.Record {
	at := time.Date(2026, time.January, 5, 9, 30, 0, 0, time.Local)
	return []billing.Record{
		{
			Type:        billing.RecordReading,
			Timestamp:   at,
			Tenant:      "Ground Floor",
			Value:       decimal.RequireFromString("1000"),
			Consumption: decimal.Zero,
		},
		{
			Type:      billing.RecordRecharge,
			Timestamp: at.Add(time.Minute),
			Tenant:    "First Floor",
			Value:     decimal.RequireFromString("1200"),
			Balances: billing.Balances{
				"Ground Floor": decimal.Zero,
				"First Floor":  decimal.RequireFromString("1200"),
			},
		},
	}
}

func TestStore_RoundTrip(t *testing.T) {
	// GIVEN: Records written in one batch
	// WHEN: The table is read back
	// THEN: Order, decimals and balance snapshots survive intact

	ctx := context.Background()
	s := openTestStore(t)

	if err := s.AppendBatch(ctx, testRecords()); err != nil {
		t.Fatalf("AppendBatch failed: %v", err)
	}

	records, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Type != billing.RecordReading || records[1].Type != billing.RecordRecharge {
		t.Errorf("insertion order not preserved: %v, %v", records[0].Type, records[1].Type)
	}
	if !records[1].Value.Equal(decimal.RequireFromString("1200")) {
		t.Errorf("value = %s, want 1200", records[1].Value)
	}
	if !records[1].Balances["First Floor"].Equal(decimal.RequireFromString("1200")) {
		t.Errorf("balances snapshot lost: %v", records[1].Balances)
	}
}

func TestStore_Last(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	last, err := s.Last(ctx)
	if err != nil {
		t.Fatalf("Last failed: %v", err)
	}
	if last != nil {
		t.Errorf("empty store Last = %+v, want nil", last)
	}

	if err := s.AppendBatch(ctx, testRecords()); err != nil {
		t.Fatalf("AppendBatch failed: %v", err)
	}
	last, err = s.Last(ctx)
	if err != nil {
		t.Fatalf("Last failed: %v", err)
	}
	if last == nil || last.Type != billing.RecordRecharge {
		t.Errorf("Last = %+v, want the RECHARGE row", last)
	}
}

func TestStore_RevertLast(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.RevertLast(ctx); !errors.Is(err, billing.ErrEmptyLedger) {
		t.Errorf("revert on empty: got %v, want ErrEmptyLedger", err)
	}

	if err := s.AppendBatch(ctx, testRecords()); err != nil {
		t.Fatalf("AppendBatch failed: %v", err)
	}
	rec, err := s.RevertLast(ctx)
	if err != nil {
		t.Fatalf("RevertLast failed: %v", err)
	}
	if rec.Type != billing.RecordRecharge {
		t.Errorf("reverted %s, want RECHARGE", rec.Type)
	}

	records, _ := s.Load(ctx)
	if len(records) != 1 {
		t.Errorf("got %d records after revert, want 1", len(records))
	}
}
