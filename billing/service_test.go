package billing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/anantdark/tenant-electricity-bill-calculator/billing"
	"github.com/anantdark/tenant-electricity-bill-calculator/store/memory"
)

// =============================================================================
// SERVICE TESTS
// =============================================================================

func newTestService() *billing.Service {
	ts := threeFloors()
	return billing.NewService(ts, billing.NewLedger(memory.New(), ts, false), func() time.Time {
		return day(15)
	})
}

func TestService_RecordReadings(t *testing.T) {
	// GIVEN: A fresh service
	// WHEN: A complete set of readings is recorded
	// THEN: One READING record per tenant is appended in configured order
	//       and balances stay at zero

	ctx := context.Background()
	svc := newTestService()

	recs, err := svc.RecordReadings(ctx, readings("1000", "2000", "3000"), time.Time{})
	if err != nil {
		t.Fatalf("RecordReadings failed: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	if recs[0].Tenant != "Ground Floor" || recs[2].Tenant != "Second Floor" {
		t.Errorf("records not in configured order: %v, %v", recs[0].Tenant, recs[2].Tenant)
	}
	if !recs[0].Timestamp.Equal(day(15)) {
		t.Errorf("zero at should use the injected clock, got %v", recs[0].Timestamp)
	}

	state, err := svc.CurrentState(ctx)
	if err != nil {
		t.Fatalf("CurrentState failed: %v", err)
	}
	for _, tenant := range svc.Tenants().All() {
		wantBalance(t, state.Balances, tenant, "0")
	}
}

func TestService_ReadingConsumptionDeltas(t *testing.T) {
	// GIVEN: An earlier reading of 1000 for Ground Floor
	// WHEN: A new reading of 1020 is recorded
	// THEN: The READING record carries consumption 20; first-ever readings
	//       carry zero

	ctx := context.Background()
	svc := newTestService()

	first, err := svc.RecordReadings(ctx, readings("1000", "2000", "3000"), time.Time{})
	if err != nil {
		t.Fatalf("first RecordReadings failed: %v", err)
	}
	if !first[0].Consumption.IsZero() {
		t.Errorf("first-ever reading consumption = %s, want 0", first[0].Consumption)
	}

	second, err := svc.RecordReadings(ctx, readings("1020", "2030", "3050"), time.Time{})
	if err != nil {
		t.Fatalf("second RecordReadings failed: %v", err)
	}
	if !second[0].Consumption.Equal(dec("20")) {
		t.Errorf("consumption = %s, want 20", second[0].Consumption)
	}
}

func TestService_RecordReadingsAndRecharge_WorkedScenario(t *testing.T) {
	// GIVEN: Opening readings with a 1200 recharge by First Floor
	// WHEN: Meters advance 20/30/50 and Ground Floor pays 1000
	// THEN: Final balances are 800 / 900 / -500

	ctx := context.Background()
	svc := newTestService()

	_, _, err := svc.RecordReadingsAndRecharge(ctx, readings("1000", "2000", "3000"),
		billing.Recharge{Tenant: "First Floor", Amount: dec("1200")}, day(1))
	if err != nil {
		t.Fatalf("first recharge failed: %v", err)
	}

	_, rechargeRec, err := svc.RecordReadingsAndRecharge(ctx, readings("1020", "2030", "3050"),
		billing.Recharge{Tenant: "Ground Floor", Amount: dec("1000")}, day(20))
	if err != nil {
		t.Fatalf("second recharge failed: %v", err)
	}

	wantBalance(t, rechargeRec.Balances, "Ground Floor", "800")
	wantBalance(t, rechargeRec.Balances, "First Floor", "900")
	wantBalance(t, rechargeRec.Balances, "Second Floor", "-500")

	// The replayed state agrees with the snapshot written at record time.
	state, err := svc.CurrentState(ctx)
	if err != nil {
		t.Fatalf("CurrentState failed: %v", err)
	}
	if !state.Balances.Equal(rechargeRec.Balances) {
		t.Errorf("replay %v diverges from recorded snapshot %v", state.Balances, rechargeRec.Balances)
	}
}

func TestService_RejectsBackwardMeter(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	if _, err := svc.RecordReadings(ctx, readings("1000", "2000", "3000"), time.Time{}); err != nil {
		t.Fatalf("RecordReadings failed: %v", err)
	}
	_, err := svc.RecordReadings(ctx, readings("999", "2000", "3000"), time.Time{})
	if !errors.Is(err, billing.ErrNonMonotonicReading) {
		t.Errorf("got %v, want ErrNonMonotonicReading", err)
	}

	// Nothing from the rejected submission may have been appended.
	records, _ := svc.History(ctx, billing.HistoryFilter{})
	if len(records) != 3 {
		t.Errorf("got %d records, want 3", len(records))
	}
}

func TestService_RevertRestoresPriorState(t *testing.T) {
	// GIVEN: A ledger ending in a recharge
	// WHEN: The recharge record is reverted
	// THEN: Replayed balances return to their pre-recharge values

	ctx := context.Background()
	svc := newTestService()

	_, _, err := svc.RecordReadingsAndRecharge(ctx, readings("1000", "2000", "3000"),
		billing.Recharge{Tenant: "First Floor", Amount: dec("1200")}, day(1))
	if err != nil {
		t.Fatalf("recharge failed: %v", err)
	}

	before, err := svc.CurrentState(ctx)
	if err != nil {
		t.Fatalf("CurrentState failed: %v", err)
	}
	wantBalance(t, before.Balances, "First Floor", "1200")

	rec, err := svc.RevertLast(ctx)
	if err != nil {
		t.Fatalf("RevertLast failed: %v", err)
	}
	if rec.Type != billing.RecordRecharge {
		t.Fatalf("reverted %s, want RECHARGE", rec.Type)
	}

	after, err := svc.CurrentState(ctx)
	if err != nil {
		t.Fatalf("CurrentState failed: %v", err)
	}
	wantBalance(t, after.Balances, "First Floor", "0")
	if after.HasBaseline() {
		t.Error("baseline should be gone after reverting the only recharge")
	}
}

func TestService_HistoryFilters(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, _, err := svc.RecordReadingsAndRecharge(ctx, readings("1000", "2000", "3000"),
		billing.Recharge{Tenant: "First Floor", Amount: dec("1200")}, day(1))
	if err != nil {
		t.Fatalf("recharge failed: %v", err)
	}
	if _, err := svc.RecordReadings(ctx, readings("1010", "2010", "3010"), day(20)); err != nil {
		t.Fatalf("RecordReadings failed: %v", err)
	}

	t.Run("by type", func(t *testing.T) {
		recs, err := svc.History(ctx, billing.HistoryFilter{Type: billing.RecordRecharge})
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}
		if len(recs) != 1 {
			t.Errorf("got %d recharges, want 1", len(recs))
		}
	})

	t.Run("by tenant", func(t *testing.T) {
		recs, err := svc.History(ctx, billing.HistoryFilter{Tenant: "Ground Floor"})
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}
		if len(recs) != 2 {
			t.Errorf("got %d records, want 2", len(recs))
		}
	})

	t.Run("by date range", func(t *testing.T) {
		recs, err := svc.History(ctx, billing.HistoryFilter{From: day(10)})
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}
		if len(recs) != 3 {
			t.Errorf("got %d records, want 3", len(recs))
		}
	})

	t.Run("by query", func(t *testing.T) {
		recs, err := svc.History(ctx, billing.HistoryFilter{Query: "recharge"})
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}
		if len(recs) != 1 {
			t.Errorf("got %d records, want 1", len(recs))
		}
	})
}

func TestService_SnapshotsRoundTripThroughReplay(t *testing.T) {
	// GIVEN: Records written by the service, snapshots included
	// WHEN: The same records replay through a second service instance
	// THEN: The cross-check passes and balances agree to the cent

	ctx := context.Background()
	ts := threeFloors()
	store := memory.New()
	svc := billing.NewService(ts, billing.NewLedger(store, ts, false), nil)

	_, _, err := svc.RecordReadingsAndRecharge(ctx, readings("1000", "2000", "3000"),
		billing.Recharge{Tenant: "First Floor", Amount: dec("1200")}, day(1))
	if err != nil {
		t.Fatalf("first recharge failed: %v", err)
	}
	_, _, err = svc.RecordReadingsAndRecharge(ctx, readings("1007", "2011", "3013"),
		billing.Recharge{Tenant: "Second Floor", Amount: dec("100.01")}, day(20))
	if err != nil {
		t.Fatalf("second recharge failed: %v", err)
	}

	reopened := billing.NewService(ts, billing.NewLedger(store, ts, false), nil)
	state, err := reopened.CurrentState(ctx)
	if err != nil {
		t.Fatalf("replay through a fresh service failed: %v", err)
	}

	sum := decimal.Zero
	for _, tenant := range ts.All() {
		sum = sum.Add(state.Balances[tenant])
	}
	if !sum.Equal(dec("1300.01")) {
		t.Errorf("balance sum = %s, want 1300.01", sum)
	}
}
