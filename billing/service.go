/*
service.go - Single-writer facade over ledger, reducer and engine

PURPOSE:
  The entry point presentation layers call into. Serializes mutations with
  a mutex held across the whole read-compute-append sequence: the engine's
  output depends on the ledger state at computation time, so a concurrent
  append in between would silently corrupt balances. Reads replay from the
  store's snapshot and take no lock.

OPERATIONS:
  RecordReadings             readings only, balances untouched
  RecordReadingsAndRecharge  the composite apportionment operation
  CurrentState               replayed DerivedState
  History                    filtered record listing
  RevertLast                 truncate the single most recent record
  Metrics                    analytics views (read-only)

All mutations are all-or-nothing: every error surfaces before the first
durable write.

SEE ALSO:
  - engine.go: the apportionment computed under the lock
  - analytics.go: the derived views behind Metrics
*/
package billing

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Service coordinates the ledger, reducer and engine for one tenant set.
type Service struct {
	mu      sync.Mutex
	tenants TenantSet
	ledger  Ledger
	clock   ClockFunc
}

// NewService creates a Service. clock may be nil, defaulting to time.Now.
func NewService(tenants TenantSet, ledger Ledger, clock ClockFunc) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{tenants: tenants, ledger: ledger, clock: clock}
}

// Tenants returns the configured tenant set.
func (s *Service) Tenants() TenantSet { return s.tenants }

// RecordReadings appends one READING record per tenant, in configured
// order, without a recharge. Every tenant must have a reading and none may
// be below the tenant's current reading. at sets the stored timestamp only;
// the zero time means "now".
func (s *Service) RecordReadings(ctx context.Context, readings map[Tenant]decimal.Decimal, at time.Time) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.reduce(ctx)
	if err != nil {
		return nil, err
	}
	if err := CheckReadings(s.tenants, state, readings); err != nil {
		return nil, err
	}
	recs := s.readingRecords(state, readings, state.Balances, s.at(at))
	if err := s.ledger.AppendBatch(ctx, recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// RecordReadingsAndRecharge appends the readings followed by a RECHARGE
// record whose balances reflect the apportionment. The whole batch is
// computed in memory first and written atomically.
func (s *Service) RecordReadingsAndRecharge(ctx context.Context, readings map[Tenant]decimal.Decimal, recharge Recharge, at time.Time) ([]Record, Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.reduce(ctx)
	if err != nil {
		return nil, Record{}, err
	}
	res, err := Apportion(s.tenants, state, readings, recharge)
	if err != nil {
		return nil, Record{}, err
	}

	ts := s.at(at)
	// Reading rows carry the pre-apportionment balances, matching the
	// replay rule: balances only move at the recharge row.
	readingRecs := s.readingRecords(state, readings, state.Balances, ts)
	rechargeRec := Record{
		Type:      RecordRecharge,
		Timestamp: ts,
		Tenant:    recharge.Tenant,
		Value:     recharge.Amount,
		Balances:  res.NewBalances.Clone(),
	}

	batch := append(append([]Record{}, readingRecs...), rechargeRec)
	if err := s.ledger.AppendBatch(ctx, batch); err != nil {
		return nil, Record{}, err
	}
	return readingRecs, rechargeRec, nil
}

// CurrentState replays the full ledger into a DerivedState.
func (s *Service) CurrentState(ctx context.Context) (DerivedState, error) {
	return s.reduce(ctx)
}

// HistoryFilter narrows History results. Zero values match everything.
type HistoryFilter struct {
	Tenant Tenant
	Type   RecordType
	From   time.Time
	To     time.Time
	Query  string // case-insensitive substring over tenant and type
}

// History returns ledger records in insertion order, filtered.
func (s *Service) History(ctx context.Context, f HistoryFilter) ([]Record, error) {
	records, err := s.ledger.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, rec := range records {
		if f.Tenant != "" && rec.Tenant != f.Tenant {
			continue
		}
		if f.Type != "" && rec.Type != f.Type {
			continue
		}
		if !f.From.IsZero() && rec.Timestamp.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && rec.Timestamp.After(f.To) {
			continue
		}
		if f.Query != "" {
			q := strings.ToLower(f.Query)
			if !strings.Contains(strings.ToLower(string(rec.Tenant)), q) &&
				!strings.Contains(strings.ToLower(string(rec.Type)), q) {
				continue
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// RevertLast removes and returns the most recent record.
func (s *Service) RevertLast(ctx context.Context) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.RevertLast(ctx)
}

// Metrics computes all analytics views from the current ledger.
func (s *Service) Metrics(ctx context.Context) (Metrics, error) {
	records, err := s.ledger.All(ctx)
	if err != nil {
		return Metrics{}, err
	}
	state, err := Reduce(s.tenants, records)
	if err != nil {
		return Metrics{}, err
	}
	return ComputeMetrics(s.tenants, state, records, s.clock()), nil
}

// reduce loads and replays the ledger.
func (s *Service) reduce(ctx context.Context) (DerivedState, error) {
	records, err := s.ledger.All(ctx)
	if err != nil {
		return DerivedState{}, err
	}
	return Reduce(s.tenants, records)
}

// readingRecords builds one READING record per tenant in configured order.
// Consumption is the delta against the tenant's previous reading, zero for
// a first-ever reading.
func (s *Service) readingRecords(state DerivedState, readings map[Tenant]decimal.Decimal, balances Balances, at time.Time) []Record {
	recs := make([]Record, 0, s.tenants.Len())
	for _, t := range s.tenants.All() {
		consumption := decimal.Zero
		if prev, ok := state.Readings[t]; ok {
			consumption = readings[t].Sub(prev)
		}
		recs = append(recs, Record{
			Type:        RecordReading,
			Timestamp:   at,
			Tenant:      t,
			Value:       readings[t],
			Consumption: consumption,
			Balances:    balances.Clone(),
		})
	}
	return recs
}

func (s *Service) at(at time.Time) time.Time {
	if at.IsZero() {
		return s.clock()
	}
	return at
}
