/*
engine.go - Consumption apportionment

PURPOSE:
  The algorithmic heart. Given the replayed state, a complete set of new
  readings and a pending recharge, compute per-tenant consumption since the
  baseline, proportional cost shares, and the resulting balances. Everything
  happens in memory; the caller appends the output afterwards, so a failed
  apportionment never touches the ledger.

ALGORITHM:
  1. Every tenant must have a new reading, and none may be below the
     tenant's current reading.
  2. consumption[t] = newReading[t] - baseline[t]. With no baseline yet
     (no recharge has ever been recorded) there is no observed usage
     window: consumption is zero and the payer is simply credited.
  3. total == 0 with a baseline present means all meters were flat; the
     recharge is split equally instead of dividing by zero.
  4. share[t] = amount * consumption[t] / total.
  5. balance[t] -= share[t]; the payer additionally gains the full amount.
  6. Shares are rounded to 2 decimal places only here, at the point of
     producing the persisted result, using the largest-remainder method:
     each share is floored to a cent and the leftover cents go to the
     tenants with the largest fractional remainders (ties broken by
     configured tenant order). sum(shares) == round(amount, 2) exactly,
     so repeated recharges accumulate no rounding drift.
  7. The new readings become the baseline for the next cycle.

SEE ALSO:
  - reducer.go: replays this same computation to rebuild balances
  - service.go: turns the output into ledger records
*/
package billing

import (
	"sort"

	"github.com/shopspring/decimal"
)

var cent = decimal.New(1, -2) // 0.01

// ApportionResult is the in-memory outcome of one recharge apportionment.
type ApportionResult struct {
	// Consumption per tenant since the baseline (zero on a first cycle).
	Consumption map[Tenant]decimal.Decimal

	// TotalConsumption is the sum over all tenants.
	TotalConsumption decimal.Decimal

	// Shares per tenant, rounded to the cent, summing exactly to the
	// rounded recharge amount. All zero on a first cycle.
	Shares map[Tenant]decimal.Decimal

	// NewBalances after deducting shares and crediting the payer.
	NewBalances Balances

	// NewBaseline is the reading snapshot for the next cycle.
	NewBaseline map[Tenant]decimal.Decimal

	// EqualSplit is set when total consumption was zero and the amount was
	// divided equally (the handled degenerate case, not an error).
	EqualSplit bool
}

// Apportion computes the effect of recharge given state and a complete set
// of new readings. It is a pure function: no ledger access, no mutation of
// its inputs.
func Apportion(ts TenantSet, state DerivedState, newReadings map[Tenant]decimal.Decimal, recharge Recharge) (ApportionResult, error) {
	if !ts.Contains(recharge.Tenant) {
		return ApportionResult{}, &UnknownTenantError{Tenant: recharge.Tenant}
	}
	if !recharge.Amount.IsPositive() {
		return ApportionResult{}, &ValidationError{Field: "Amount", Reason: "recharge amount must be positive"}
	}
	if err := CheckReadings(ts, state, newReadings); err != nil {
		return ApportionResult{}, err
	}

	res := ApportionResult{
		Consumption: make(map[Tenant]decimal.Decimal, ts.Len()),
		Shares:      make(map[Tenant]decimal.Decimal, ts.Len()),
		NewBalances: state.Balances.Clone(),
		NewBaseline: make(map[Tenant]decimal.Decimal, ts.Len()),
	}
	if res.NewBalances == nil {
		res.NewBalances = ZeroBalances(ts)
	}
	for _, t := range ts.All() {
		if _, ok := res.NewBalances[t]; !ok {
			res.NewBalances[t] = decimal.Zero
		}
		res.NewBaseline[t] = newReadings[t]
	}

	amount := recharge.Amount.Round(2)

	if !state.HasBaseline() {
		// First-ever cycle: no usage window observed, nothing to deduct.
		for _, t := range ts.All() {
			res.Consumption[t] = decimal.Zero
			res.Shares[t] = decimal.Zero
		}
		res.NewBalances[recharge.Tenant] = res.NewBalances[recharge.Tenant].Add(amount)
		return res, nil
	}

	total := decimal.Zero
	for _, t := range ts.All() {
		c := newReadings[t].Sub(state.Baseline[t])
		if c.IsNegative() {
			// Baseline above the new reading means the meter was corrected
			// downward between cycles; treat the window as zero usage.
			c = decimal.Zero
		}
		res.Consumption[t] = c
		total = total.Add(c)
	}
	res.TotalConsumption = total

	weights := res.Consumption
	if total.IsZero() {
		// All meters flat since the last recharge: split equally.
		res.EqualSplit = true
		weights = make(map[Tenant]decimal.Decimal, ts.Len())
		for _, t := range ts.All() {
			weights[t] = decimal.New(1, 0)
		}
	}

	res.Shares = allocate(ts, amount, weights)
	for _, t := range ts.All() {
		res.NewBalances[t] = res.NewBalances[t].Sub(res.Shares[t])
	}
	res.NewBalances[recharge.Tenant] = res.NewBalances[recharge.Tenant].Add(amount)
	return res, nil
}

// CheckReadings verifies that newReadings covers every configured tenant,
// references no unknown tenant, and never moves a meter backward.
func CheckReadings(ts TenantSet, state DerivedState, newReadings map[Tenant]decimal.Decimal) error {
	for t := range newReadings {
		if !ts.Contains(t) {
			return &UnknownTenantError{Tenant: t}
		}
	}
	for _, t := range ts.All() {
		v, ok := newReadings[t]
		if !ok {
			return &MissingReadingError{Tenant: t}
		}
		if cur := state.CurrentReading(t); v.LessThan(cur) {
			return &NonMonotonicReadingError{Tenant: t, Previous: cur, Proposed: v}
		}
	}
	return nil
}

// allocate distributes amount across tenants proportionally to weights,
// producing cent-rounded shares that sum exactly to amount (which must
// already be cent-rounded). Residual cents left by flooring go to the
// tenants with the largest fractional remainders; ties fall back to the
// configured tenant order. The sum of weights must be positive.
func allocate(ts TenantSet, amount decimal.Decimal, weights map[Tenant]decimal.Decimal) map[Tenant]decimal.Decimal {
	total := decimal.Zero
	for _, t := range ts.All() {
		total = total.Add(weights[t])
	}

	type slice struct {
		tenant    Tenant
		floored   decimal.Decimal
		remainder decimal.Decimal
	}
	slices := make([]slice, 0, ts.Len())
	allocated := decimal.Zero
	for _, t := range ts.All() {
		exact := amount.Mul(weights[t]).Div(total)
		floored := exact.RoundDown(2)
		slices = append(slices, slice{tenant: t, floored: floored, remainder: exact.Sub(floored)})
		allocated = allocated.Add(floored)
	}

	// Hand out the leftover cents, largest remainder first.
	residualCents := amount.Sub(allocated).Div(cent).Round(0).IntPart()
	sort.SliceStable(slices, func(i, j int) bool {
		return slices[i].remainder.GreaterThan(slices[j].remainder)
	})
	for i := int64(0); i < residualCents && i < int64(len(slices)); i++ {
		slices[i].floored = slices[i].floored.Add(cent)
	}

	out := make(map[Tenant]decimal.Decimal, ts.Len())
	for _, s := range slices {
		out[s.tenant] = s.floored
	}
	return out
}
