package billing_test

import (
	"errors"
	"testing"
	"time"

	"github.com/anantdark/tenant-electricity-bill-calculator/billing"
)

// =============================================================================
// REPLAY HELPERS
// =============================================================================

func day(n int) time.Time {
	return time.Date(2026, time.January, n, 10, 0, 0, 0, time.Local)
}

func readingRecord(ts time.Time, tenant billing.Tenant, value string) billing.Record {
	return billing.Record{
		Type:      billing.RecordReading,
		Timestamp: ts,
		Tenant:    tenant,
		Value:     dec(value),
	}
}

func rechargeRecord(ts time.Time, tenant billing.Tenant, amount string) billing.Record {
	return billing.Record{
		Type:      billing.RecordRecharge,
		Timestamp: ts,
		Tenant:    tenant,
		Value:     dec(amount),
	}
}

// sampleLedger is the canonical two-cycle history: opening readings and a
// 1200 recharge by First Floor, then 20/30/50 units of consumption and a
// 1000 recharge by Ground Floor.
func sampleLedger() []billing.Record {
	return []billing.Record{
		readingRecord(day(1), "Ground Floor", "1000"),
		readingRecord(day(1), "First Floor", "2000"),
		readingRecord(day(1), "Second Floor", "3000"),
		rechargeRecord(day(1), "First Floor", "1200"),
		readingRecord(day(20), "Ground Floor", "1020"),
		readingRecord(day(20), "First Floor", "2030"),
		readingRecord(day(20), "Second Floor", "3050"),
		rechargeRecord(day(20), "Ground Floor", "1000"),
	}
}

// =============================================================================
// REDUCER TESTS
// =============================================================================

func TestReduce_EmptyLedger(t *testing.T) {
	ts := threeFloors()

	state, err := billing.Reduce(ts, nil)
	if err != nil {
		t.Fatalf("Reduce failed: %v", err)
	}

	if state.HasBaseline() {
		t.Error("empty ledger should have no baseline")
	}
	if state.LastRecharge != nil {
		t.Error("empty ledger should have no last recharge")
	}
	for _, tenant := range ts.All() {
		wantBalance(t, state.Balances, tenant, "0")
	}
}

func TestReduce_TwoCycles(t *testing.T) {
	// GIVEN: The canonical two-cycle history
	// WHEN: The ledger is replayed from scratch
	// THEN: Balances, baseline and last-recharge info match the worked result

	ts := threeFloors()
	state, err := billing.Reduce(ts, sampleLedger())
	if err != nil {
		t.Fatalf("Reduce failed: %v", err)
	}

	wantBalance(t, state.Balances, "Ground Floor", "800")
	wantBalance(t, state.Balances, "First Floor", "900")
	wantBalance(t, state.Balances, "Second Floor", "-500")

	if !state.Baseline["Second Floor"].Equal(dec("3050")) {
		t.Errorf("baseline[Second Floor] = %s, want 3050", state.Baseline["Second Floor"])
	}
	if state.LastRecharge == nil || state.LastRecharge.Tenant != "Ground Floor" {
		t.Errorf("last recharge = %+v, want Ground Floor", state.LastRecharge)
	}
	if !state.LastCycleConsumption.Equal(dec("100")) {
		t.Errorf("last cycle consumption = %s, want 100", state.LastCycleConsumption)
	}
}

func TestReduce_Deterministic(t *testing.T) {
	// GIVEN: The same record sequence
	// WHEN: Replayed twice
	// THEN: Both replays produce identical balances

	ts := threeFloors()
	a, err := billing.Reduce(ts, sampleLedger())
	if err != nil {
		t.Fatalf("first replay failed: %v", err)
	}
	b, err := billing.Reduce(ts, sampleLedger())
	if err != nil {
		t.Fatalf("second replay failed: %v", err)
	}
	if !a.Balances.Equal(b.Balances) {
		t.Errorf("replays diverged: %v vs %v", a.Balances, b.Balances)
	}
}

func TestReduceFrom_MatchesFullReplay(t *testing.T) {
	// GIVEN: A ledger split at an arbitrary point
	// WHEN: The second half is folded onto the reduced first half
	// THEN: The result equals a full replay

	ts := threeFloors()
	records := sampleLedger()

	full, err := billing.Reduce(ts, records)
	if err != nil {
		t.Fatalf("full replay failed: %v", err)
	}

	half, err := billing.Reduce(ts, records[:4])
	if err != nil {
		t.Fatalf("partial replay failed: %v", err)
	}
	resumed, err := billing.ReduceFrom(ts, half, records[4:])
	if err != nil {
		t.Fatalf("resumed replay failed: %v", err)
	}

	if !full.Balances.Equal(resumed.Balances) {
		t.Errorf("resumed replay diverged: %v vs %v", full.Balances, resumed.Balances)
	}
}

func TestReduce_UnknownTenantFails(t *testing.T) {
	ts := threeFloors()
	records := []billing.Record{readingRecord(day(1), "Penthouse", "500")}

	_, err := billing.Reduce(ts, records)
	if !errors.Is(err, billing.ErrUnknownTenant) {
		t.Errorf("got %v, want ErrUnknownTenant", err)
	}
}

func TestReduce_SnapshotDivergenceFails(t *testing.T) {
	// GIVEN: A record whose embedded balances snapshot disagrees with replay
	// WHEN: The ledger is replayed
	// THEN: Reduce fails instead of trusting the stored copy

	ts := threeFloors()
	records := sampleLedger()
	tampered := rechargeRecord(day(21), "First Floor", "300")
	tampered.Balances = billing.Balances{
		"Ground Floor": dec("999999"),
		"First Floor":  dec("0"),
		"Second Floor": dec("0"),
	}
	records = append(records, tampered)

	_, err := billing.Reduce(ts, records)
	if !errors.Is(err, billing.ErrValidation) {
		t.Errorf("got %v, want a validation error", err)
	}
	var div *billing.SnapshotDivergenceError
	if !errors.As(err, &div) {
		t.Fatalf("got %T, want SnapshotDivergenceError", err)
	}
	if div.Index != len(records)-1 {
		t.Errorf("divergence index = %d, want %d", div.Index, len(records)-1)
	}
}

func TestReduce_AcceptsMatchingSnapshots(t *testing.T) {
	// GIVEN: Records carrying snapshots that match the replay exactly
	// WHEN: The ledger is replayed
	// THEN: The cross-check passes

	ts := threeFloors()
	records := sampleLedger()
	records[3].Balances = billing.Balances{
		"Ground Floor": dec("0"),
		"First Floor":  dec("1200"),
		"Second Floor": dec("0"),
	}

	if _, err := billing.Reduce(ts, records); err != nil {
		t.Fatalf("Reduce rejected a matching snapshot: %v", err)
	}
}
