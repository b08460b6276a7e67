/*
reducer.go - Ledger replay into DerivedState

PURPOSE:
  Derives current readings, balances, baseline readings and last-recharge
  info by folding the record sequence left to right, from empty state or
  incrementally from a cached snapshot. Purely functional: two replays of
  the same input produce identical output.

REPLAY RULE:
  - READING: update the tenant's current reading. Balances are untouched.
  - RECHARGE: re-run the apportionment against the state accumulated so
    far, then snapshot current readings as the new baseline.

SNAPSHOT CROSS-CHECK:
  Each persisted record carries a balances snapshot. It is a materialized
  cache for fast display, NOT the source of truth; the replay rule is.
  Reduce re-derives balances and fails with a validation error on any
  divergence rather than silently trusting the stored copy.

SEE ALSO:
  - engine.go: the apportionment re-run at each RECHARGE
  - types.go: DerivedState
*/
package billing

import (
	"github.com/shopspring/decimal"
)

// EmptyState returns the DerivedState of an empty ledger.
func EmptyState(ts TenantSet) DerivedState {
	return DerivedState{
		Readings: make(map[Tenant]decimal.Decimal, ts.Len()),
		Balances: ZeroBalances(ts),
	}
}

// Reduce folds records from empty state into a DerivedState.
// It fails with an unknown-tenant error if any record references a tenant
// outside ts, and with a validation error if a stored balances snapshot
// diverges from the replayed balances.
func Reduce(ts TenantSet, records []Record) (DerivedState, error) {
	return ReduceFrom(ts, EmptyState(ts), records)
}

// ReduceFrom continues a fold from a previously reduced state. Used to
// apply freshly appended records without replaying the whole ledger.
func ReduceFrom(ts TenantSet, state DerivedState, records []Record) (DerivedState, error) {
	st := cloneState(ts, state)

	for i, rec := range records {
		if !ts.Contains(rec.Tenant) {
			return DerivedState{}, &UnknownTenantError{Tenant: rec.Tenant}
		}

		switch rec.Type {
		case RecordReading:
			st.Readings[rec.Tenant] = rec.Value

		case RecordRecharge:
			readings := make(map[Tenant]decimal.Decimal, ts.Len())
			for _, t := range ts.All() {
				readings[t] = st.CurrentReading(t)
			}
			res, err := Apportion(ts, st, readings, Recharge{Tenant: rec.Tenant, Amount: rec.Value})
			if err != nil {
				return DerivedState{}, err
			}
			st.Balances = res.NewBalances
			st.Baseline = res.NewBaseline
			st.LastRecharge = &RechargeInfo{Tenant: rec.Tenant, Amount: rec.Value, Timestamp: rec.Timestamp}
			st.LastCycleConsumption = res.TotalConsumption

		default:
			return DerivedState{}, &ValidationError{Field: "Type", Reason: "must be READING or RECHARGE"}
		}

		if err := checkSnapshot(ts, i, rec, st.Balances); err != nil {
			return DerivedState{}, err
		}
	}
	return st, nil
}

// checkSnapshot compares a record's embedded balances cache against the
// replayed balances. Empty snapshots (seed imports) are skipped.
func checkSnapshot(ts TenantSet, index int, rec Record, derived Balances) error {
	if len(rec.Balances) == 0 {
		return nil
	}
	for _, t := range ts.All() {
		stored, ok := rec.Balances[t]
		if !ok {
			continue
		}
		if !stored.Equal(derived[t]) {
			return &SnapshotDivergenceError{Index: index, Tenant: t, Stored: stored, Derived: derived[t]}
		}
	}
	return nil
}

func cloneState(ts TenantSet, state DerivedState) DerivedState {
	st := DerivedState{
		Readings:             make(map[Tenant]decimal.Decimal, ts.Len()),
		Balances:             ZeroBalances(ts),
		LastCycleConsumption: state.LastCycleConsumption,
	}
	for t, v := range state.Readings {
		st.Readings[t] = v
	}
	for t, v := range state.Balances {
		st.Balances[t] = v
	}
	if state.Baseline != nil {
		st.Baseline = make(map[Tenant]decimal.Decimal, len(state.Baseline))
		for t, v := range state.Baseline {
			st.Baseline[t] = v
		}
	}
	if state.LastRecharge != nil {
		lr := *state.LastRecharge
		st.LastRecharge = &lr
	}
	return st
}
