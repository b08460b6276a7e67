package billing_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/anantdark/tenant-electricity-bill-calculator/billing"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func threeFloors() billing.TenantSet {
	return billing.MustTenantSet("Ground Floor", "First Floor", "Second Floor")
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func readings(gf, ff, sf string) map[billing.Tenant]decimal.Decimal {
	return map[billing.Tenant]decimal.Decimal{
		"Ground Floor": dec(gf),
		"First Floor":  dec(ff),
		"Second Floor": dec(sf),
	}
}

// stateAfterFirstRecharge builds the state after the opening cycle: meters
// at 1000/2000/3000, First Floor paid 1200.
func stateAfterFirstRecharge(t *testing.T) billing.DerivedState {
	t.Helper()
	ts := threeFloors()
	st := billing.EmptyState(ts)
	st.Readings = readings("1000", "2000", "3000")
	res, err := billing.Apportion(ts, st, readings("1000", "2000", "3000"),
		billing.Recharge{Tenant: "First Floor", Amount: dec("1200")})
	if err != nil {
		t.Fatalf("first recharge failed: %v", err)
	}
	st.Balances = res.NewBalances
	st.Baseline = res.NewBaseline
	return st
}

func wantBalance(t *testing.T, b billing.Balances, tenant billing.Tenant, want string) {
	t.Helper()
	if got := b[tenant]; !got.Equal(dec(want)) {
		t.Errorf("balance[%s] = %s, want %s", tenant, got, want)
	}
}

// =============================================================================
// APPORTIONMENT TESTS
// =============================================================================

func TestApportion_FirstCycle_CreditsPayerOnly(t *testing.T) {
	// GIVEN: An empty ledger with initial meter readings
	// WHEN: The first recharge is recorded
	// THEN: The payer is credited the full amount and nobody is deducted,
	//       because no usage window has been observed yet

	ts := threeFloors()
	st := billing.EmptyState(ts)
	st.Readings = readings("1000", "2000", "3000")

	res, err := billing.Apportion(ts, st, readings("1000", "2000", "3000"),
		billing.Recharge{Tenant: "First Floor", Amount: dec("1200")})
	if err != nil {
		t.Fatalf("Apportion failed: %v", err)
	}

	wantBalance(t, res.NewBalances, "Ground Floor", "0")
	wantBalance(t, res.NewBalances, "First Floor", "1200")
	wantBalance(t, res.NewBalances, "Second Floor", "0")

	for _, tenant := range ts.All() {
		if !res.Shares[tenant].IsZero() {
			t.Errorf("share[%s] = %s, want 0 on first cycle", tenant, res.Shares[tenant])
		}
	}
	if !res.NewBaseline["Ground Floor"].Equal(dec("1000")) {
		t.Errorf("baseline not snapshotted from new readings")
	}
}

func TestApportion_ProportionalShares(t *testing.T) {
	// GIVEN: A baseline at 1000/2000/3000 and consumption of 20/30/50 units
	// WHEN: Ground Floor pays a 1000 recharge
	// THEN: Shares are 200/300/500 and the payer nets credit minus own share

	ts := threeFloors()
	st := stateAfterFirstRecharge(t)

	res, err := billing.Apportion(ts, st, readings("1020", "2030", "3050"),
		billing.Recharge{Tenant: "Ground Floor", Amount: dec("1000")})
	if err != nil {
		t.Fatalf("Apportion failed: %v", err)
	}

	if !res.TotalConsumption.Equal(dec("100")) {
		t.Fatalf("total consumption = %s, want 100", res.TotalConsumption)
	}
	if !res.Shares["Ground Floor"].Equal(dec("200")) ||
		!res.Shares["First Floor"].Equal(dec("300")) ||
		!res.Shares["Second Floor"].Equal(dec("500")) {
		t.Errorf("shares = %v, want 200/300/500", res.Shares)
	}

	// Ground Floor: 0 - 200 + 1000. First Floor keeps its earlier credit.
	wantBalance(t, res.NewBalances, "Ground Floor", "800")
	wantBalance(t, res.NewBalances, "First Floor", "900")
	wantBalance(t, res.NewBalances, "Second Floor", "-500")
}

func TestApportion_ConservesTotalBalance(t *testing.T) {
	// GIVEN: Any apportionment over an awkward amount
	// WHEN: Shares are rounded to cents
	// THEN: sum(new balances) - sum(old balances) == rounded amount exactly

	ts := threeFloors()
	st := stateAfterFirstRecharge(t)

	amount := dec("100.01")
	res, err := billing.Apportion(ts, st, readings("1007", "2011", "3013"),
		billing.Recharge{Tenant: "Second Floor", Amount: amount})
	if err != nil {
		t.Fatalf("Apportion failed: %v", err)
	}

	sumBefore := decimal.Zero
	for _, tenant := range ts.All() {
		sumBefore = sumBefore.Add(st.Balances[tenant])
	}
	sumAfter := decimal.Zero
	sumShares := decimal.Zero
	for _, tenant := range ts.All() {
		sumAfter = sumAfter.Add(res.NewBalances[tenant])
		sumShares = sumShares.Add(res.Shares[tenant])
	}

	if !sumShares.Equal(amount) {
		t.Errorf("shares sum to %s, want exactly %s", sumShares, amount)
	}
	if !sumAfter.Sub(sumBefore).Equal(amount) {
		t.Errorf("balance sum moved by %s, want %s", sumAfter.Sub(sumBefore), amount)
	}
}

func TestApportion_LargestRemainderRounding(t *testing.T) {
	// GIVEN: Three equal consumers and an amount that doesn't divide evenly
	// WHEN: 100.00 is split three ways
	// THEN: The leftover cent goes to the first tenant in configured order
	//       and the shares still sum exactly to the amount

	ts := threeFloors()
	st := stateAfterFirstRecharge(t)

	res, err := billing.Apportion(ts, st, readings("1010", "2010", "3010"),
		billing.Recharge{Tenant: "Ground Floor", Amount: dec("100")})
	if err != nil {
		t.Fatalf("Apportion failed: %v", err)
	}

	if !res.Shares["Ground Floor"].Equal(dec("33.34")) {
		t.Errorf("share[Ground Floor] = %s, want 33.34 (gets the residual cent)", res.Shares["Ground Floor"])
	}
	if !res.Shares["First Floor"].Equal(dec("33.33")) ||
		!res.Shares["Second Floor"].Equal(dec("33.33")) {
		t.Errorf("other shares = %s/%s, want 33.33 each",
			res.Shares["First Floor"], res.Shares["Second Floor"])
	}
}

func TestApportion_ZeroConsumption_SplitsEqually(t *testing.T) {
	// GIVEN: A baseline with no meter movement since
	// WHEN: A recharge arrives
	// THEN: The amount is split equally instead of dividing by zero

	ts := threeFloors()
	st := stateAfterFirstRecharge(t)

	res, err := billing.Apportion(ts, st, readings("1000", "2000", "3000"),
		billing.Recharge{Tenant: "First Floor", Amount: dec("90")})
	if err != nil {
		t.Fatalf("Apportion failed: %v", err)
	}

	if !res.EqualSplit {
		t.Fatal("expected EqualSplit to be set")
	}
	for _, tenant := range ts.All() {
		if !res.Shares[tenant].Equal(dec("30")) {
			t.Errorf("share[%s] = %s, want 30", tenant, res.Shares[tenant])
		}
	}
	// First Floor: 1200 - 30 + 90
	wantBalance(t, res.NewBalances, "First Floor", "1260")
}

func TestApportion_InputValidation(t *testing.T) {
	ts := threeFloors()
	st := stateAfterFirstRecharge(t)

	t.Run("unknown payer", func(t *testing.T) {
		_, err := billing.Apportion(ts, st, readings("1000", "2000", "3000"),
			billing.Recharge{Tenant: "Basement", Amount: dec("100")})
		if !errors.Is(err, billing.ErrUnknownTenant) {
			t.Errorf("got %v, want ErrUnknownTenant", err)
		}
	})

	t.Run("non-positive amount", func(t *testing.T) {
		_, err := billing.Apportion(ts, st, readings("1000", "2000", "3000"),
			billing.Recharge{Tenant: "Ground Floor", Amount: dec("0")})
		if !errors.Is(err, billing.ErrValidation) {
			t.Errorf("got %v, want ErrValidation", err)
		}
	})

	t.Run("missing reading", func(t *testing.T) {
		incomplete := map[billing.Tenant]decimal.Decimal{
			"Ground Floor": dec("1000"),
			"First Floor":  dec("2000"),
		}
		_, err := billing.Apportion(ts, st, incomplete,
			billing.Recharge{Tenant: "Ground Floor", Amount: dec("100")})
		if !errors.Is(err, billing.ErrMissingReading) {
			t.Errorf("got %v, want ErrMissingReading", err)
		}
	})

	t.Run("meter moved backward", func(t *testing.T) {
		_, err := billing.Apportion(ts, st, readings("999", "2000", "3000"),
			billing.Recharge{Tenant: "Ground Floor", Amount: dec("100")})
		if !errors.Is(err, billing.ErrNonMonotonicReading) {
			t.Errorf("got %v, want ErrNonMonotonicReading", err)
		}
	})
}

func TestApportion_DoesNotMutateInputs(t *testing.T) {
	// GIVEN: A state with existing balances
	// WHEN: Apportion runs
	// THEN: The input state is untouched; only the result carries changes

	ts := threeFloors()
	st := stateAfterFirstRecharge(t)
	before := st.Balances.Clone()

	_, err := billing.Apportion(ts, st, readings("1020", "2030", "3050"),
		billing.Recharge{Tenant: "Ground Floor", Amount: dec("500")})
	if err != nil {
		t.Fatalf("Apportion failed: %v", err)
	}
	if !st.Balances.Equal(before) {
		t.Errorf("input balances mutated: %v -> %v", before, st.Balances)
	}
}
