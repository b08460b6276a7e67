/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers (CLI, HTTP API) match with errors.Is and decide user-facing
  messaging; the engine never retries and never partially applies.

ERROR CATEGORIES:
  1. Ledger errors - malformed or mis-ordered records, empty revert
  2. Engine errors - missing or non-monotonic readings
  3. Replay errors - snapshot divergence detected on load

SEE ALSO:
  - ledger.go: append validation
  - engine.go: apportionment preconditions
  - reducer.go: snapshot cross-check
*/
package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when a record is malformed on append, or
	// when a stored balance snapshot diverges from the replayed state.
	ErrValidation = errors.New("record validation failed")

	// ErrEmptyLedger is returned by revert-last when there is nothing to revert.
	ErrEmptyLedger = errors.New("ledger is empty")

	// ErrUnknownTenant is returned when a record references a tenant outside
	// the configured set.
	ErrUnknownTenant = errors.New("tenant not in configured set")

	// ErrMissingReading is returned when an apportionment is attempted
	// without a reading for every tenant.
	ErrMissingReading = errors.New("missing tenant reading")

	// ErrNonMonotonicReading is returned when a new reading is below the
	// tenant's current reading. Meters do not run backward; this is a
	// data-entry error, never silently corrected.
	ErrNonMonotonicReading = errors.New("reading below previous value")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a malformed record rejected on append.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// UnknownTenantError identifies the offending tenant.
type UnknownTenantError struct {
	Tenant Tenant
}

func (e *UnknownTenantError) Error() string {
	return fmt.Sprintf("unknown tenant %q", e.Tenant)
}

func (e *UnknownTenantError) Unwrap() error { return ErrUnknownTenant }

// MissingReadingError identifies the tenant without a reading.
type MissingReadingError struct {
	Tenant Tenant
}

func (e *MissingReadingError) Error() string {
	return fmt.Sprintf("missing reading for tenant %q", e.Tenant)
}

func (e *MissingReadingError) Unwrap() error { return ErrMissingReading }

// NonMonotonicReadingError carries the previous and proposed values.
type NonMonotonicReadingError struct {
	Tenant   Tenant
	Previous decimal.Decimal
	Proposed decimal.Decimal
}

func (e *NonMonotonicReadingError) Error() string {
	return fmt.Sprintf("reading for %q cannot decrease: previous %s, proposed %s",
		e.Tenant, e.Previous, e.Proposed)
}

func (e *NonMonotonicReadingError) Unwrap() error { return ErrNonMonotonicReading }

// SnapshotDivergenceError reports a stored balance snapshot that does not
// match the balance replayed from the ledger. The ledger is not trusted
// to self-repair; the caller decides what to do.
type SnapshotDivergenceError struct {
	Index   int
	Tenant  Tenant
	Stored  decimal.Decimal
	Derived decimal.Decimal
}

func (e *SnapshotDivergenceError) Error() string {
	return fmt.Sprintf("record %d: stored balance for %q is %s, replay derives %s",
		e.Index, e.Tenant, e.Stored, e.Derived)
}

func (e *SnapshotDivergenceError) Unwrap() error { return ErrValidation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input,
// as opposed to a storage failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrUnknownTenant) ||
		errors.Is(err, ErrMissingReading) ||
		errors.Is(err, ErrNonMonotonicReading) ||
		errors.Is(err, ErrEmptyLedger)
}
