/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal ledger model from the external API contract. Decimal values
  cross the wire as strings so clients never see float rounding.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

SEE ALSO:
  - handlers.go: Uses these types
  - billing/types.go: the domain types these mirror
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/anantdark/tenant-electricity-bill-calculator/billing"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// RecordDTO represents one ledger record in API responses.
type RecordDTO struct {
	Type        string            `json:"type"`
	Timestamp   string            `json:"timestamp"`
	Tenant      string            `json:"tenant"`
	Value       string            `json:"value"`
	Consumption string            `json:"consumption,omitempty"`
	Balances    map[string]string `json:"balances,omitempty"`
}

// RechargeDTO describes the recharge carried by a state response.
type RechargeDTO struct {
	Tenant    string `json:"tenant"`
	Amount    string `json:"amount"`
	Timestamp string `json:"timestamp"`
}

// StateDTO is the replayed ledger state.
type StateDTO struct {
	Tenants      []string          `json:"tenants"`
	Readings     map[string]string `json:"readings"`
	Balances     map[string]string `json:"balances"`
	Baseline     map[string]string `json:"baseline,omitempty"`
	LastRecharge *RechargeDTO      `json:"last_recharge,omitempty"`
	NextPayer    string            `json:"next_payer"`
}

// RechargeRequest is the optional recharge half of a records submission.
type RechargeRequest struct {
	Tenant string `json:"tenant"`
	Amount string `json:"amount"`
}

// SubmitRecordsRequest submits one reading per tenant, optionally followed
// by a recharge apportioned against those readings. Timestamp is optional
// ("2006-01-02 15:04:05" local time); empty means server time.
type SubmitRecordsRequest struct {
	Readings  map[string]string `json:"readings"`
	Recharge  *RechargeRequest  `json:"recharge,omitempty"`
	Timestamp string            `json:"timestamp,omitempty"`
}

// SubmitRecordsResponse returns the records that were appended.
type SubmitRecordsResponse struct {
	Records     []RecordDTO `json:"records"`
	Apportioned bool        `json:"apportioned"`
}

// HistoryResponse is a filtered, paginated record listing.
type HistoryResponse struct {
	Records  []RecordDTO `json:"records"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

// RevertResponse returns the record removed by a revert.
type RevertResponse struct {
	Removed RecordDTO `json:"removed"`
}

// MetricsDTO bundles the analytics views.
type MetricsDTO struct {
	NextPayer         string                       `json:"next_payer"`
	MonthlyEstimate   string                       `json:"monthly_estimate,omitempty"`
	PerUnitCost       string                       `json:"per_unit_cost,omitempty"`
	TotalUsage        string                       `json:"total_usage"`
	UsagePerTenant    map[string]string            `json:"usage_per_tenant"`
	MonthlyUsage      map[string]map[string]string `json:"monthly_usage"`
	MonthlyTotals     map[string]string            `json:"monthly_totals"`
	YearlyTotals      map[string]string            `json:"yearly_totals"`
	RechargeTotal     string                       `json:"recharge_total"`
	RechargePerTenant map[string]string            `json:"recharge_per_tenant"`
	ReadingCount      int                          `json:"reading_count"`
	RechargeCount     int                          `json:"recharge_count"`
}

// ImportResponse reports a successful ledger import.
type ImportResponse struct {
	Imported int `json:"imported"`
}

// =============================================================================
// DOMAIN -> DTO CONVERSION
// =============================================================================

const timestampLayout = "2006-01-02 15:04:05"

func toRecordDTO(rec billing.Record) RecordDTO {
	dto := RecordDTO{
		Type:      string(rec.Type),
		Timestamp: rec.Timestamp.Format(timestampLayout),
		Tenant:    string(rec.Tenant),
		Value:     rec.Value.String(),
	}
	if rec.Type == billing.RecordReading {
		dto.Consumption = rec.Consumption.String()
	}
	if len(rec.Balances) > 0 {
		dto.Balances = make(map[string]string, len(rec.Balances))
		for t, v := range rec.Balances {
			dto.Balances[string(t)] = v.StringFixed(2)
		}
	}
	return dto
}

func toRecordDTOs(recs []billing.Record) []RecordDTO {
	dtos := make([]RecordDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = toRecordDTO(rec)
	}
	return dtos
}

func toStateDTO(tenants billing.TenantSet, state billing.DerivedState) StateDTO {
	dto := StateDTO{
		Tenants:   make([]string, 0, tenants.Len()),
		Readings:  make(map[string]string, tenants.Len()),
		Balances:  make(map[string]string, tenants.Len()),
		NextPayer: string(billing.NextPayer(tenants, state)),
	}
	for _, t := range tenants.All() {
		dto.Tenants = append(dto.Tenants, string(t))
		dto.Readings[string(t)] = state.CurrentReading(t).String()
		dto.Balances[string(t)] = state.Balances[t].StringFixed(2)
	}
	if state.HasBaseline() {
		dto.Baseline = make(map[string]string, len(state.Baseline))
		for t, v := range state.Baseline {
			dto.Baseline[string(t)] = v.String()
		}
	}
	if lr := state.LastRecharge; lr != nil {
		dto.LastRecharge = &RechargeDTO{
			Tenant:    string(lr.Tenant),
			Amount:    lr.Amount.StringFixed(2),
			Timestamp: lr.Timestamp.Format(timestampLayout),
		}
	}
	return dto
}

func toMetricsDTO(m billing.Metrics) MetricsDTO {
	dto := MetricsDTO{
		NextPayer:         string(m.NextPayer),
		TotalUsage:        m.TotalUsage.String(),
		UsagePerTenant:    tenantAmounts(m.UsagePerTenant, false),
		MonthlyUsage:      make(map[string]map[string]string, len(m.MonthlyUsage)),
		MonthlyTotals:     stringAmounts(m.MonthlyTotals, false),
		YearlyTotals:      stringAmounts(m.YearlyTotals, false),
		RechargeTotal:     m.RechargeTotal.StringFixed(2),
		RechargePerTenant: tenantAmounts(m.RechargePerTenant, true),
		ReadingCount:      m.ReadingCount,
		RechargeCount:     m.RechargeCount,
	}
	if m.MonthlyEstimateOK {
		dto.MonthlyEstimate = m.MonthlyEstimate.StringFixed(2)
	}
	if m.PerUnitCostOK {
		dto.PerUnitCost = m.PerUnitCost.StringFixed(2)
	}
	for ym, usage := range m.MonthlyUsage {
		dto.MonthlyUsage[ym] = tenantAmounts(usage, false)
	}
	return dto
}

func tenantAmounts(m map[billing.Tenant]decimal.Decimal, fixed bool) map[string]string {
	out := make(map[string]string, len(m))
	for t, v := range m {
		if fixed {
			out[string(t)] = v.StringFixed(2)
		} else {
			out[string(t)] = v.String()
		}
	}
	return out
}

func stringAmounts(m map[string]decimal.Decimal, fixed bool) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if fixed {
			out[k] = v.StringFixed(2)
		} else {
			out[k] = v.String()
		}
	}
	return out
}

// parseTimestamp accepts the canonical layout or a bare date, local time.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if ts, err := time.ParseInLocation(timestampLayout, s, time.Local); err == nil {
		return ts, nil
	}
	return time.ParseInLocation("2006-01-02", s, time.Local)
}
