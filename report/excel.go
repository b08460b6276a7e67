package report

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/anantdark/tenant-electricity-bill-calculator/billing"
)

// BuildLedgerXLSX renders a workbook with a summary sheet (state and
// metrics) and a records sheet mirroring the ledger schema.
func BuildLedgerXLSX(tenants billing.TenantSet, state billing.DerivedState, metrics billing.Metrics, records []billing.Record, cutoff *time.Time, currency string) ([]byte, error) {
	records = Filter(records, cutoff)

	f := excelize.NewFile()
	summarySheet := "summary"
	recordsSheet := "records"
	f.SetSheetName("Sheet1", summarySheet)
	if _, err := f.NewSheet(recordsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Electricity Ledger Summary")
	row := 3
	_ = f.SetCellValue(summarySheet, cell("A", row), "Tenant")
	_ = f.SetCellValue(summarySheet, cell("B", row), "Balance")
	_ = f.SetCellValue(summarySheet, cell("C", row), "Last Reading")
	_ = f.SetCellValue(summarySheet, cell("D", row), "Total Usage")
	row++
	for _, t := range tenants.All() {
		_ = f.SetCellValue(summarySheet, cell("A", row), string(t))
		_ = f.SetCellValue(summarySheet, cell("B", row), currency+state.Balances[t].StringFixed(2))
		_ = f.SetCellValue(summarySheet, cell("C", row), state.CurrentReading(t).String())
		_ = f.SetCellValue(summarySheet, cell("D", row), metrics.UsagePerTenant[t].String())
		row++
	}
	row++
	_ = f.SetCellValue(summarySheet, cell("A", row), "Next payer")
	_ = f.SetCellValue(summarySheet, cell("B", row), string(metrics.NextPayer))
	row++
	if metrics.PerUnitCostOK {
		_ = f.SetCellValue(summarySheet, cell("A", row), "Per-unit cost")
		_ = f.SetCellValue(summarySheet, cell("B", row), currency+metrics.PerUnitCost.StringFixed(2))
		row++
	}
	if metrics.MonthlyEstimateOK {
		_ = f.SetCellValue(summarySheet, cell("A", row), "Monthly consumption estimate")
		_ = f.SetCellValue(summarySheet, cell("B", row), metrics.MonthlyEstimate.StringFixed(2))
		row++
	}
	row++
	_ = f.SetCellValue(summarySheet, cell("A", row), "Monthly usage totals")
	row++
	months := make([]string, 0, len(metrics.MonthlyTotals))
	for ym := range metrics.MonthlyTotals {
		months = append(months, ym)
	}
	sort.Strings(months)
	for _, ym := range months {
		_ = f.SetCellValue(summarySheet, cell("A", row), ym)
		_ = f.SetCellValue(summarySheet, cell("B", row), metrics.MonthlyTotals[ym].String())
		row++
	}

	headers := []string{"Type", "Timestamp", "Tenant", "Reading/Amount", "Consumption"}
	for i, h := range headers {
		_ = f.SetCellValue(recordsSheet, cell(column(i), 1), h)
	}
	for i, t := range tenants.All() {
		_ = f.SetCellValue(recordsSheet, cell(column(len(headers)+i), 1), string(t))
	}
	for i, rec := range records {
		r := i + 2
		_ = f.SetCellValue(recordsSheet, cell("A", r), string(rec.Type))
		_ = f.SetCellValue(recordsSheet, cell("B", r), rec.Timestamp.Format("2006-01-02 15:04:05"))
		_ = f.SetCellValue(recordsSheet, cell("C", r), string(rec.Tenant))
		_ = f.SetCellValue(recordsSheet, cell("D", r), rec.Value.String())
		_ = f.SetCellValue(recordsSheet, cell("E", r), consumptionCell(rec))
		for j, t := range tenants.All() {
			if v, ok := rec.Balances[t]; ok {
				_ = f.SetCellValue(recordsSheet, cell(column(len(headers)+j), r), currency+v.StringFixed(2))
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// column converts a zero-based index to a spreadsheet column name.
func column(i int) string {
	name, _ := excelize.ColumnNumberToName(i + 1)
	return name
}
