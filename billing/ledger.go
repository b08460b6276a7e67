/*
ledger.go - Append-only record log

PURPOSE:
  The Ledger is the immutable source of truth for readings and recharges.
  Balances are always computed by replaying records - the balance snapshot
  embedded in each record is a display cache, never authoritative.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: no update of past records, ever
  2. ORDERED: insertion order = causal order; a custom timestamp only
     changes the stored field, not the position
  3. REVERT-LAST ONLY: corrections beyond the most recent record are
     expressed as new records, not removals

WHY APPEND-ONLY?
  - Audit trail: every balance is explainable from history
  - Determinism: replaying the same ledger always yields the same state
  - Correctness: no partial updates corrupting balances

SEE ALSO:
  - store.go: Low-level persistence interface
  - reducer.go: Replay of records into DerivedState
*/
package billing

import (
	"context"
	"time"
)

// =============================================================================
// LEDGER - Validated append-only log over a Store
// =============================================================================

// Ledger is the source of truth for all readings and recharges.
type Ledger interface {
	// Append adds a record to the end after validating it.
	Append(ctx context.Context, rec Record) error

	// AppendBatch adds multiple records atomically. Used by the composite
	// readings-plus-recharge operation so it is all-or-nothing.
	AppendBatch(ctx context.Context, recs []Record) error

	// All returns every record in insertion order. Read-only.
	All(ctx context.Context) ([]Record, error)

	// RevertLast removes and returns the most recent record.
	// Returns ErrEmptyLedger when there is nothing to revert.
	RevertLast(ctx context.Context) (Record, error)
}

// DefaultLedger validates records against the tenant set and, when
// StrictOrder is set, rejects appends whose timestamp precedes the last
// record's. Strict ordering is a construction-time policy choice: entries
// with a backdated "custom date" are legal when it is off.
type DefaultLedger struct {
	Store       Store
	Tenants     TenantSet
	StrictOrder bool
}

// NewLedger creates a validating ledger over store.
func NewLedger(store Store, tenants TenantSet, strictOrder bool) *DefaultLedger {
	return &DefaultLedger{Store: store, Tenants: tenants, StrictOrder: strictOrder}
}

func (l *DefaultLedger) Append(ctx context.Context, rec Record) error {
	last, err := l.Store.Last(ctx)
	if err != nil {
		return err
	}
	if err := l.validate(rec, last); err != nil {
		return err
	}
	return l.Store.Append(ctx, rec)
}

func (l *DefaultLedger) AppendBatch(ctx context.Context, recs []Record) error {
	// Validate the whole batch before touching storage.
	last, err := l.Store.Last(ctx)
	if err != nil {
		return err
	}
	prev := last
	for i := range recs {
		if err := l.validate(recs[i], prev); err != nil {
			return err
		}
		prev = &recs[i]
	}
	return l.Store.AppendBatch(ctx, recs)
}

func (l *DefaultLedger) All(ctx context.Context) ([]Record, error) {
	return l.Store.Load(ctx)
}

func (l *DefaultLedger) RevertLast(ctx context.Context) (Record, error) {
	return l.Store.RevertLast(ctx)
}

// validate checks required fields and, under StrictOrder, timestamp ordering
// against prev (nil when the ledger is empty).
func (l *DefaultLedger) validate(rec Record, prev *Record) error {
	switch rec.Type {
	case RecordReading, RecordRecharge:
	default:
		return &ValidationError{Field: "Type", Reason: "must be READING or RECHARGE"}
	}
	if rec.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "required"}
	}
	if !l.Tenants.Contains(rec.Tenant) {
		return &UnknownTenantError{Tenant: rec.Tenant}
	}
	if rec.Type == RecordReading && rec.Value.IsNegative() {
		return &ValidationError{Field: "Value", Reason: "reading cannot be negative"}
	}
	if rec.Type == RecordRecharge && !rec.Value.IsPositive() {
		return &ValidationError{Field: "Value", Reason: "recharge amount must be positive"}
	}
	for t := range rec.Balances {
		if !l.Tenants.Contains(t) {
			return &UnknownTenantError{Tenant: t}
		}
	}
	if l.StrictOrder && prev != nil && rec.Timestamp.Before(prev.Timestamp) {
		return &ValidationError{Field: "Timestamp", Reason: "earlier than last record under strict ordering"}
	}
	return nil
}

// ClockFunc supplies timestamps for new records. Injectable for tests.
type ClockFunc func() time.Time
