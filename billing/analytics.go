/*
analytics.go - Read-only derived views over ledger history

PURPOSE:
  Recommendation and reporting views recomputed from DerivedState plus the
  full record history. Nothing here mutates state; everything is a pure
  function of its inputs.

VIEWS:
  - Next payer: tenant with the most negative balance (ties broken by
    configured tenant order)
  - Monthly consumption estimate: trailing-window usage normalized to a
    monthly rate; reports "insufficient data" instead of erroring when
    fewer than two readings fall in the window
  - Per-unit cost: last recharge amount over its cycle's consumption;
    undefined when that cycle had zero usage
  - Usage aggregates: per-tenant, monthly and yearly consumption totals,
    recharge totals and record counts for dashboards
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Metrics bundles every analytics view for one ledger.
type Metrics struct {
	NextPayer Tenant

	// MonthlyEstimate is the trailing three-month consumption normalized
	// to a monthly rate. Valid only when MonthlyEstimateOK is set.
	MonthlyEstimate   decimal.Decimal
	MonthlyEstimateOK bool

	// PerUnitCost is the most recent recharge amount divided by that
	// cycle's total consumption. Valid only when PerUnitCostOK is set.
	PerUnitCost   decimal.Decimal
	PerUnitCostOK bool

	TotalUsage         decimal.Decimal
	UsagePerTenant     map[Tenant]decimal.Decimal
	MonthlyUsage       map[string]map[Tenant]decimal.Decimal // "2006-01" keys
	MonthlyTotals      map[string]decimal.Decimal
	YearlyTotals       map[string]decimal.Decimal
	RechargeTotal      decimal.Decimal
	RechargePerTenant  map[Tenant]decimal.Decimal
	ReadingCount       int
	RechargeCount      int
}

// estimateWindowMonths is the trailing window for the monthly estimate.
const estimateWindowMonths = 3

// NextPayer suggests who should pay the next recharge: the tenant with the
// most negative balance, falling back to configured order on exact ties.
func NextPayer(ts TenantSet, state DerivedState) Tenant {
	var payer Tenant
	var lowest decimal.Decimal
	for i, t := range ts.All() {
		b := state.Balances[t]
		if i == 0 || b.LessThan(lowest) {
			payer, lowest = t, b
		}
	}
	return payer
}

// MonthlyConsumptionEstimate sums READING consumption deltas within the
// trailing window ending at now and normalizes to a monthly rate. Returns
// ok=false (not an error) when fewer than two readings fall in the window.
func MonthlyConsumptionEstimate(records []Record, now time.Time, months int) (decimal.Decimal, bool) {
	if months <= 0 {
		months = estimateWindowMonths
	}
	from := now.AddDate(0, -months, 0)
	total := decimal.Zero
	count := 0
	for _, rec := range records {
		if rec.Type != RecordReading {
			continue
		}
		if rec.Timestamp.Before(from) || rec.Timestamp.After(now) {
			continue
		}
		total = total.Add(rec.Consumption)
		count++
	}
	if count < 2 {
		return decimal.Zero, false
	}
	return total.Div(decimal.NewFromInt(int64(months))), true
}

// PerUnitCost returns the most recent recharge amount divided by the total
// consumption it was apportioned over. ok=false when no recharge exists or
// the cycle had zero consumption.
func PerUnitCost(state DerivedState) (decimal.Decimal, bool) {
	if state.LastRecharge == nil || state.LastCycleConsumption.IsZero() {
		return decimal.Zero, false
	}
	return state.LastRecharge.Amount.Div(state.LastCycleConsumption), true
}

// ComputeMetrics aggregates every view over the full history.
func ComputeMetrics(ts TenantSet, state DerivedState, records []Record, now time.Time) Metrics {
	m := Metrics{
		NextPayer:         NextPayer(ts, state),
		UsagePerTenant:    make(map[Tenant]decimal.Decimal, ts.Len()),
		MonthlyUsage:      make(map[string]map[Tenant]decimal.Decimal),
		MonthlyTotals:     make(map[string]decimal.Decimal),
		YearlyTotals:      make(map[string]decimal.Decimal),
		RechargePerTenant: make(map[Tenant]decimal.Decimal, ts.Len()),
	}
	for _, t := range ts.All() {
		m.UsagePerTenant[t] = decimal.Zero
		m.RechargePerTenant[t] = decimal.Zero
	}

	for _, rec := range records {
		ym := rec.Timestamp.Format("2006-01")
		yr := rec.Timestamp.Format("2006")
		switch rec.Type {
		case RecordReading:
			m.ReadingCount++
			c := rec.Consumption
			if c.IsZero() {
				continue
			}
			m.TotalUsage = m.TotalUsage.Add(c)
			m.UsagePerTenant[rec.Tenant] = m.UsagePerTenant[rec.Tenant].Add(c)
			if m.MonthlyUsage[ym] == nil {
				m.MonthlyUsage[ym] = make(map[Tenant]decimal.Decimal, ts.Len())
			}
			m.MonthlyUsage[ym][rec.Tenant] = m.MonthlyUsage[ym][rec.Tenant].Add(c)
			m.MonthlyTotals[ym] = m.MonthlyTotals[ym].Add(c)
			m.YearlyTotals[yr] = m.YearlyTotals[yr].Add(c)
		case RecordRecharge:
			m.RechargeCount++
			m.RechargeTotal = m.RechargeTotal.Add(rec.Value)
			m.RechargePerTenant[rec.Tenant] = m.RechargePerTenant[rec.Tenant].Add(rec.Value)
		}
	}

	m.MonthlyEstimate, m.MonthlyEstimateOK = MonthlyConsumptionEstimate(records, now, estimateWindowMonths)
	m.PerUnitCost, m.PerUnitCostOK = PerUnitCost(state)
	return m
}
