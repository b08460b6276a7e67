/*
Package report renders ledger statements as PDF and XLSX downloads.

PURPOSE:
  Presentation-only: everything here is computed from records the billing
  package already produced. The balances column is expanded into one column
  per tenant so a statement reads like a running account. On RECHARGE rows
  the lowest balance cell is tinted red and the highest green; READING rows
  get a light per-tenant tint.

SEE ALSO:
  - store/csvfile: the row schema these statements mirror
*/
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/anantdark/tenant-electricity-bill-calculator/billing"
)

type rgb struct{ r, g, b int }

var (
	fillHeader   = rgb{220, 220, 220}
	fillLowest   = rgb{255, 99, 71}   // tomato: balance most in debt
	fillHighest  = rgb{144, 238, 144} // light green: balance most in credit
	readingTints = []rgb{
		{224, 255, 255}, // light cyan
		{209, 231, 250}, // light blue
		{230, 230, 250}, // lavender
		{250, 240, 215}, // wheat
	}
)

// Filter trims records for a statement. A nil cutoff keeps everything;
// otherwise only records strictly after the cutoff date are kept.
func Filter(records []billing.Record, cutoff *time.Time) []billing.Record {
	if cutoff == nil {
		return records
	}
	var out []billing.Record
	for _, rec := range records {
		if rec.Timestamp.After(*cutoff) {
			out = append(out, rec)
		}
	}
	return out
}

// BuildLedgerPDF renders the ledger table as a PDF statement.
func BuildLedgerPDF(tenants billing.TenantSet, records []billing.Record, cutoff *time.Time, currency string) ([]byte, error) {
	records = Filter(records, cutoff)

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 9)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 13)
	pdf.Cell(0, 8, "Electricity Ledger Statement")
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 9)
	if cutoff != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Records after %s", cutoff.Format("2006-01-02")))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().Format("2006-01-02 15:04")))
	pdf.Ln(8)

	fixed := []struct {
		title string
		width float64
	}{
		{"Type", 22},
		{"Timestamp", 34},
		{"Tenant", 30},
		{"Reading/Amount", 30},
		{"Consumption", 26},
	}
	balanceWidth := 32.0

	// Header row
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(fillHeader.r, fillHeader.g, fillHeader.b)
	for _, col := range fixed {
		pdf.CellFormat(col.width, 7, col.title, "1", 0, "C", true, 0, "")
	}
	for _, t := range tenants.All() {
		pdf.CellFormat(balanceWidth, 7, string(t), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, rec := range records {
		lowest, highest := balanceExtremes(tenants, rec)

		tint, tinted := readingTint(tenants, rec)
		cells := []string{
			string(rec.Type),
			rec.Timestamp.Format("2006-01-02 15:04:05"),
			string(rec.Tenant),
			rec.Value.String(),
			consumptionCell(rec),
		}
		for i, text := range cells {
			drawCell(pdf, fixed[i].width, text, tint, tinted, false)
		}
		for _, t := range tenants.All() {
			text := ""
			if v, ok := rec.Balances[t]; ok {
				text = currency + v.StringFixed(2)
			}
			switch {
			case rec.Type == billing.RecordRecharge && t == lowest:
				drawCell(pdf, balanceWidth, text, fillLowest, true, true)
			case rec.Type == billing.RecordRecharge && t == highest:
				drawCell(pdf, balanceWidth, text, fillHighest, true, false)
			default:
				drawCell(pdf, balanceWidth, text, tint, tinted, false)
			}
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawCell(pdf *gofpdf.Fpdf, width float64, text string, fill rgb, filled, whiteText bool) {
	if filled {
		pdf.SetFillColor(fill.r, fill.g, fill.b)
	}
	if whiteText {
		pdf.SetTextColor(255, 255, 255)
	}
	pdf.CellFormat(width, 6.5, text, "1", 0, "L", filled, 0, "")
	if whiteText {
		pdf.SetTextColor(0, 0, 0)
	}
}

func consumptionCell(rec billing.Record) string {
	if rec.Type != billing.RecordReading {
		return ""
	}
	return rec.Consumption.String()
}

// balanceExtremes finds the tenants holding the lowest and highest balance
// snapshots on a record. Ties resolve to the earlier tenant in configured
// order. Both are empty when the record carries no snapshot.
func balanceExtremes(tenants billing.TenantSet, rec billing.Record) (lowest, highest billing.Tenant) {
	if len(rec.Balances) == 0 {
		return "", ""
	}
	var low, high decimal.Decimal
	first := true
	for _, t := range tenants.All() {
		v, ok := rec.Balances[t]
		if !ok {
			continue
		}
		if first {
			lowest, highest, low, high = t, t, v, v
			first = false
			continue
		}
		if v.LessThan(low) {
			lowest, low = t, v
		}
		if v.GreaterThan(high) {
			highest, high = t, v
		}
	}
	return lowest, highest
}

func readingTint(tenants billing.TenantSet, rec billing.Record) (rgb, bool) {
	if rec.Type != billing.RecordReading {
		return rgb{}, false
	}
	i := tenants.Order(rec.Tenant)
	if i < 0 {
		return rgb{}, false
	}
	return readingTints[i%len(readingTints)], true
}
