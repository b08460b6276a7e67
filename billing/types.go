/*
Package billing provides the core billing and apportionment engine.

PURPOSE:
  This package contains the domain types and algorithms for tracking
  electricity meter readings and recharge payments across a fixed set of
  tenants sharing one connection. Each recharge is credited to the paying
  tenant and redistributed as deductions across all tenants in proportion
  to their measured consumption since the previous recharge.

KEY CONCEPTS IN THIS FILE (types.go):
  - Tenant/TenantSet: The configured, ordered set of billing units
  - Record: An immutable ledger entry (READING or RECHARGE)
  - Recharge: A payment by one tenant, apportioned across all
  - DerivedState: Readings, balances and baseline replayed from the ledger

DESIGN PRINCIPLES:
  1. Immutability: Records are never modified, only appended or
     (for the single most recent entry) reverted
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Replayability: Balances are always derivable from the ledger alone;
     embedded balance snapshots are a display cache, never the truth

SEE ALSO:
  - ledger.go: Append-only record log
  - reducer.go: DerivedState replay
  - engine.go: Consumption apportionment
*/
package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TENANTS - Configured ordered set of billing units
// =============================================================================

// Tenant identifies one billing unit sharing the metered connection.
type Tenant string

// TenantSet is the ordered enumeration of tenants. Order matters for
// tie-breaking and display, not for the apportionment math. The set is
// fixed for the lifetime of a ledger.
type TenantSet struct {
	ordered []Tenant
	index   map[Tenant]int
}

// NewTenantSet builds a TenantSet from ordered names. At least two distinct,
// non-empty names are required.
func NewTenantSet(names ...string) (TenantSet, error) {
	if len(names) < 2 {
		return TenantSet{}, fmt.Errorf("tenant set requires at least 2 tenants, got %d", len(names))
	}
	ts := TenantSet{index: make(map[Tenant]int, len(names))}
	for i, name := range names {
		t := Tenant(name)
		if name == "" {
			return TenantSet{}, fmt.Errorf("tenant name at position %d is empty", i)
		}
		if _, dup := ts.index[t]; dup {
			return TenantSet{}, fmt.Errorf("duplicate tenant name %q", name)
		}
		ts.ordered = append(ts.ordered, t)
		ts.index[t] = i
	}
	return ts, nil
}

// MustTenantSet is NewTenantSet that panics on error. For tests and defaults.
func MustTenantSet(names ...string) TenantSet {
	ts, err := NewTenantSet(names...)
	if err != nil {
		panic(err)
	}
	return ts
}

// DefaultTenants returns the three-floor set the system originally shipped with.
func DefaultTenants() TenantSet {
	return MustTenantSet("Ground Floor", "First Floor", "Second Floor")
}

// All returns the tenants in configured order. Callers must not mutate it.
func (ts TenantSet) All() []Tenant { return ts.ordered }

// Len returns the number of tenants.
func (ts TenantSet) Len() int { return len(ts.ordered) }

// Contains reports whether t is part of the set.
func (ts TenantSet) Contains(t Tenant) bool {
	_, ok := ts.index[t]
	return ok
}

// Order returns t's position in the configured order, or -1 if unknown.
func (ts TenantSet) Order(t Tenant) int {
	i, ok := ts.index[t]
	if !ok {
		return -1
	}
	return i
}

// =============================================================================
// RECORD - Atomic ledger entry
// =============================================================================

type RecordType string

const (
	RecordReading  RecordType = "READING"  // Cumulative meter value for one tenant
	RecordRecharge RecordType = "RECHARGE" // Payment credited to one tenant, apportioned
)

// Record is the ledger's atomic unit. Insertion order is causal order; a
// custom timestamp only changes the stored field, never the position.
//
// For READING records, Value is the cumulative meter value and Consumption
// holds the delta against the tenant's previous reading (zero for the
// tenant's first reading). For RECHARGE records, Value is the payment
// amount and Consumption is unused.
//
// Balances is the per-tenant balance snapshot immediately after this record.
// It is a materialized cache for display; the replay rule in reducer.go is
// the source of truth and cross-checks it on load.
type Record struct {
	Type        RecordType
	Timestamp   time.Time
	Tenant      Tenant
	Value       decimal.Decimal
	Consumption decimal.Decimal
	Balances    Balances
}

// Balances maps each tenant to a signed account value.
// Negative = owes, positive = credit.
type Balances map[Tenant]decimal.Decimal

// Clone returns an independent copy.
func (b Balances) Clone() Balances {
	out := make(Balances, len(b))
	for t, v := range b {
		out[t] = v
	}
	return out
}

// Equal reports exact per-tenant equality against other.
func (b Balances) Equal(other Balances) bool {
	if len(b) != len(other) {
		return false
	}
	for t, v := range b {
		ov, ok := other[t]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// ZeroBalances returns a zeroed balance map for the tenant set.
func ZeroBalances(ts TenantSet) Balances {
	b := make(Balances, ts.Len())
	for _, t := range ts.All() {
		b[t] = decimal.Zero
	}
	return b
}

// =============================================================================
// RECHARGE - Payment input to the apportionment engine
// =============================================================================

// Recharge is a payment made by one tenant, to be credited to them and
// redistributed as deductions across all tenants by consumption ratio.
type Recharge struct {
	Tenant Tenant
	Amount decimal.Decimal
}

// RechargeInfo describes the most recent recharge seen during replay.
type RechargeInfo struct {
	Tenant    Tenant
	Amount    decimal.Decimal
	Timestamp time.Time
}

// =============================================================================
// DERIVED STATE - Replayed, never persisted
// =============================================================================

// DerivedState is the current view obtained by folding the ledger from the
// start. It is recomputed on demand; two replays of the same ledger always
// produce the same DerivedState.
type DerivedState struct {
	// Readings holds the latest cumulative meter value per tenant.
	Readings map[Tenant]decimal.Decimal

	// Balances holds the signed account value per tenant.
	Balances Balances

	// Baseline holds the meter readings snapshotted at the most recent
	// recharge. Consumption for the current cycle is measured against it.
	// Nil until the first recharge has been recorded.
	Baseline map[Tenant]decimal.Decimal

	// LastRecharge is the most recent recharge, nil if none yet.
	LastRecharge *RechargeInfo

	// LastCycleConsumption is the total consumption that was apportioned at
	// the most recent recharge. Zero for a first-cycle recharge.
	LastCycleConsumption decimal.Decimal
}

// HasBaseline reports whether a billing cycle has been opened by a recharge.
func (s DerivedState) HasBaseline() bool { return s.Baseline != nil }

// CurrentReading returns the latest reading for t, zero if none recorded.
func (s DerivedState) CurrentReading(t Tenant) decimal.Decimal {
	if v, ok := s.Readings[t]; ok {
		return v
	}
	return decimal.Zero
}
