/*
handlers.go - HTTP API handlers for the electricity billing ledger

PURPOSE:
  Exposes the billing service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  State:
    GET    /api/state          Current readings, balances, baseline
    GET    /api/metrics        Analytics views

  Ledger:
    POST   /api/records        Submit readings, optionally with a recharge
    GET    /api/history        Filtered, paginated record listing
    POST   /api/revert         Remove the single most recent record
    POST   /api/import         Replace the ledger from an uploaded CSV

  Reports:
    GET    /api/report/pdf     PDF statement download
    GET    /api/report/xlsx    XLSX workbook download

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Service: the single-writer billing facade
  - Store: the raw backend, for imports that bypass append-only
  - Currency: display prefix for balance amounts

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Nothing to operate on (revert of an empty ledger)
  - 501: Backend does not support the operation (import)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.
  This serves a single household on a trusted network.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/anantdark/tenant-electricity-bill-calculator/billing"
	"github.com/anantdark/tenant-electricity-bill-calculator/report"
	"github.com/anantdark/tenant-electricity-bill-calculator/store/csvfile"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Replacer is implemented by stores that can swap their full contents,
// used by seed imports.
type Replacer interface {
	Replace(ctx context.Context, recs []billing.Record) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service  *billing.Service
	Store    billing.Store
	Currency string
}

// NewHandler creates a handler over the billing service.
func NewHandler(svc *billing.Service, store billing.Store, currency string) *Handler {
	if currency == "" {
		currency = csvfile.DefaultCurrency
	}
	return &Handler{Service: svc, Store: store, Currency: currency}
}

// =============================================================================
// STATE HANDLERS
// =============================================================================

// GetState returns the replayed ledger state.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	state, err := h.Service.CurrentState(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to load state", err)
		return
	}
	writeJSON(w, http.StatusOK, toStateDTO(h.Service.Tenants(), state))
}

// GetMetrics returns the analytics views.
func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := h.Service.Metrics(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to compute metrics", err)
		return
	}
	writeJSON(w, http.StatusOK, toMetricsDTO(m))
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// SubmitRecords appends one reading per tenant and, when a recharge is
// present, the apportioned RECHARGE record, as one atomic batch.
func (h *Handler) SubmitRecords(w http.ResponseWriter, r *http.Request) {
	var req SubmitRecordsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	readings := make(map[billing.Tenant]decimal.Decimal, len(req.Readings))
	for name, raw := range req.Readings {
		v, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid reading for %s", name), err)
			return
		}
		readings[billing.Tenant(name)] = v
	}

	at, err := parseTimestamp(req.Timestamp)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid timestamp (use YYYY-MM-DD HH:MM:SS)", err)
		return
	}

	if req.Recharge == nil {
		recs, err := h.Service.RecordReadings(r.Context(), readings, at)
		if err != nil {
			writeDomainError(w, "Failed to record readings", err)
			return
		}
		writeJSON(w, http.StatusCreated, SubmitRecordsResponse{Records: toRecordDTOs(recs)})
		return
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Recharge.Amount))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid recharge amount", err)
		return
	}
	recharge := billing.Recharge{Tenant: billing.Tenant(req.Recharge.Tenant), Amount: amount}

	readingRecs, rechargeRec, err := h.Service.RecordReadingsAndRecharge(r.Context(), readings, recharge, at)
	if err != nil {
		writeDomainError(w, "Failed to record recharge", err)
		return
	}
	writeJSON(w, http.StatusCreated, SubmitRecordsResponse{
		Records:     toRecordDTOs(append(append([]billing.Record{}, readingRecs...), rechargeRec)),
		Apportioned: true,
	})
}

// GetHistory returns filtered ledger records, newest-first by default.
//
// Query parameters: tenant, type (READING|RECHARGE), from, to (YYYY-MM-DD),
// q (substring over tenant and type), order (asc|desc), page, page_size.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := billing.HistoryFilter{
		Tenant: billing.Tenant(q.Get("tenant")),
		Type:   billing.RecordType(strings.ToUpper(q.Get("type"))),
		Query:  q.Get("q"),
	}
	var err error
	if filter.From, err = parseTimestamp(q.Get("from")); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
		return
	}
	if filter.To, err = parseTimestamp(q.Get("to")); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
		return
	}
	if !filter.To.IsZero() {
		// Make the upper bound inclusive of the whole day.
		filter.To = filter.To.Add(24*time.Hour - time.Second)
	}

	records, err := h.Service.History(r.Context(), filter)
	if err != nil {
		writeDomainError(w, "Failed to load history", err)
		return
	}

	if q.Get("order") != "asc" {
		for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
			records[i], records[j] = records[j], records[i]
		}
	}

	total := len(records)
	page := intParam(q.Get("page"), 1)
	pageSize := intParam(q.Get("page_size"), 50)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		Records:  toRecordDTOs(records[start:end]),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// Revert removes the most recent record and returns it.
func (h *Handler) Revert(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Service.RevertLast(r.Context())
	if errors.Is(err, billing.ErrEmptyLedger) {
		writeError(w, http.StatusNotFound, "Nothing to revert", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to revert", err)
		return
	}
	writeJSON(w, http.StatusOK, RevertResponse{Removed: toRecordDTO(rec)})
}

// ImportCSV replaces the ledger with an uploaded CSV in the canonical
// schema. The upload is fully replayed before anything is written, so a
// bad file leaves the ledger untouched.
func (h *Handler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	replacer, ok := h.Store.(Replacer)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Import not supported by this store backend", nil)
		return
	}

	body := r.Body
	if file, _, err := r.FormFile("file"); err == nil {
		defer file.Close()
		body = file
	}

	records, err := csvfile.ReadRecords(body, h.Currency)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid CSV upload", err)
		return
	}
	if _, err := billing.Reduce(h.Service.Tenants(), records); err != nil {
		writeError(w, http.StatusBadRequest, "Upload fails ledger replay", err)
		return
	}
	if err := replacer.Replace(r.Context(), records); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to replace ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{Imported: len(records)})
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// ReportPDF streams a PDF statement. Optional query parameter cutoff
// (YYYY-MM-DD) keeps only records after that date.
func (h *Handler) ReportPDF(w http.ResponseWriter, r *http.Request) {
	cutoff, err := cutoffParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid cutoff date (use YYYY-MM-DD)", err)
		return
	}
	records, err := h.Service.History(r.Context(), billing.HistoryFilter{})
	if err != nil {
		writeDomainError(w, "Failed to load records", err)
		return
	}
	data, err := report.BuildLedgerPDF(h.Service.Tenants(), records, cutoff, h.Currency)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render PDF", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", attachment("pdf"))
	w.Write(data)
}

// ReportXLSX streams an XLSX workbook with summary and records sheets.
func (h *Handler) ReportXLSX(w http.ResponseWriter, r *http.Request) {
	cutoff, err := cutoffParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid cutoff date (use YYYY-MM-DD)", err)
		return
	}
	records, err := h.Service.History(r.Context(), billing.HistoryFilter{})
	if err != nil {
		writeDomainError(w, "Failed to load records", err)
		return
	}
	state, err := h.Service.CurrentState(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to load state", err)
		return
	}
	metrics, err := h.Service.Metrics(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to compute metrics", err)
		return
	}
	data, err := report.BuildLedgerXLSX(h.Service.Tenants(), state, metrics, records, cutoff, h.Currency)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render XLSX", err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", attachment("xlsx"))
	w.Write(data)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors onto HTTP status codes: anything a
// client could have caused is 400, the rest 500.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	if billing.IsClientError(err) {
		writeError(w, http.StatusBadRequest, message, err)
		return
	}
	writeError(w, http.StatusInternalServerError, message, err)
}

func intParam(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func cutoffParam(r *http.Request) (*time.Time, error) {
	s := r.URL.Query().Get("cutoff")
	if s == "" {
		return nil, nil
	}
	ts, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

func attachment(ext string) string {
	name := fmt.Sprintf("ledger-%s.%s", time.Now().Format("20060102-150405"), ext)
	return fmt.Sprintf(`attachment; filename="%s"`, name)
}
