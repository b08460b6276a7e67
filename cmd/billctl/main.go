/*
main.go - Interactive terminal client for the billing ledger

PURPOSE:
  A menu-driven CLI for day-to-day use without the HTTP server: record the
  monthly readings and recharge, inspect balances, browse history, undo the
  last entry, and write PDF/XLSX statements to the output directory.

MENU:
  1. Record Readings and Recharge
  2. Display Current State
  3. View Transaction History
  4. Revert Last Record
  5. Generate Reports
  6. Exit

FIRST RUN:
  When the ledger is empty and a sample file is configured, offers to
  import it so a new install has something to explore.

SEE ALSO:
  - cmd/server/main.go: the HTTP alternative
  - config/config.go: shared configuration
*/
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/anantdark/tenant-electricity-bill-calculator/billing"
	"github.com/anantdark/tenant-electricity-bill-calculator/config"
	"github.com/anantdark/tenant-electricity-bill-calculator/report"
	"github.com/anantdark/tenant-electricity-bill-calculator/store/csvfile"
)

type app struct {
	cfg     config.Config
	tenants billing.TenantSet
	store   *csvfile.Store
	service *billing.Service
	in      *bufio.Scanner
}

func main() {
	configPath := flag.String("config", "", "configuration file path")
	ledgerPath := flag.String("ledger", "", "ledger path, overrides config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *ledgerPath != "" {
		cfg.LedgerPath = *ledgerPath
	}

	tenants, err := cfg.TenantSet()
	if err != nil {
		log.Fatalf("Invalid tenant configuration: %v", err)
	}

	store, err := csvfile.Open(cfg.LedgerPath, tenants, cfg.Currency)
	if err != nil {
		log.Fatalf("Failed to open ledger: %v", err)
	}

	a := &app{
		cfg:     cfg,
		tenants: tenants,
		store:   store,
		service: billing.NewService(tenants, billing.NewLedger(store, tenants, cfg.StrictOrder), nil),
		in:      bufio.NewScanner(os.Stdin),
	}
	a.run()
}

func (a *app) run() {
	ctx := context.Background()
	a.maybeOfferSample(ctx)

	for {
		fmt.Println("\n=========================================")
		fmt.Println("Electricity Calculator - Tenant Recharges")
		fmt.Println("=========================================")
		fmt.Println("1. Record Readings and Recharge")
		fmt.Println("2. Display Current State")
		fmt.Println("3. View Transaction History")
		fmt.Println("4. Revert Last Record")
		fmt.Println("5. Generate Reports")
		fmt.Println("6. Exit")

		switch a.prompt("Enter your choice (1-6): ") {
		case "1":
			a.recordReadingsAndRecharge(ctx)
		case "2":
			a.displayCurrentState(ctx)
		case "3":
			a.displayHistory(ctx)
		case "4":
			a.revertLast(ctx)
		case "5":
			a.generateReports(ctx)
		case "6":
			fmt.Println("Goodbye!")
			return
		default:
			fmt.Println("Invalid choice. Please enter 1-6.")
		}
	}
}

// maybeOfferSample imports the configured sample ledger into an empty
// store when the user agrees.
func (a *app) maybeOfferSample(ctx context.Context) {
	if a.cfg.SamplePath == "" {
		return
	}
	records, err := a.store.Load(ctx)
	if err != nil || len(records) > 0 {
		return
	}
	if _, err := os.Stat(a.cfg.SamplePath); err != nil {
		return
	}

	fmt.Println("\nNo transaction data found. Would you like to import sample data?")
	if strings.ToLower(a.prompt("Enter y/n: ")) != "y" {
		return
	}

	f, err := os.Open(a.cfg.SamplePath)
	if err != nil {
		fmt.Printf("Error importing sample data: %v\n", err)
		return
	}
	defer f.Close()

	sample, err := csvfile.ReadRecords(f, a.cfg.Currency)
	if err != nil {
		fmt.Printf("Error importing sample data: %v\n", err)
		return
	}
	if _, err := billing.Reduce(a.tenants, sample); err != nil {
		fmt.Printf("Sample data fails replay: %v\n", err)
		return
	}
	if err := a.store.Replace(ctx, sample); err != nil {
		fmt.Printf("Error importing sample data: %v\n", err)
		return
	}
	fmt.Println("Sample data imported successfully!")
}

// recordReadingsAndRecharge walks through one reading per tenant and the
// recharge, then submits everything as a single batch.
func (a *app) recordReadingsAndRecharge(ctx context.Context) {
	state, err := a.service.CurrentState(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("\nEnter meter readings for all tenants:")
	readings := make(map[billing.Tenant]decimal.Decimal, a.tenants.Len())
	for _, t := range a.tenants.All() {
		for {
			raw := a.prompt(fmt.Sprintf("Enter reading for %s: ", t))
			v, err := decimal.NewFromString(raw)
			if err != nil {
				fmt.Println("Please enter a valid number")
				continue
			}
			if prev, ok := state.Readings[t]; ok && v.LessThan(prev) {
				fmt.Printf("Error: New reading (%s) cannot be less than previous reading (%s)\n", v, prev)
				continue
			}
			readings[t] = v
			if prev, ok := state.Readings[t]; ok {
				fmt.Printf("Consumption since last reading: %s\n", v.Sub(prev))
			}
			break
		}
	}

	fmt.Println("\nNow enter recharge details:")
	payer := a.chooseTenant()
	var amount decimal.Decimal
	for {
		raw := a.prompt(fmt.Sprintf("Enter recharge amount for %s: ", payer))
		v, err := decimal.NewFromString(raw)
		if err != nil || !v.IsPositive() {
			fmt.Println("Please enter a positive amount")
			continue
		}
		amount = v
		break
	}

	_, rechargeRec, err := a.service.RecordReadingsAndRecharge(ctx, readings,
		billing.Recharge{Tenant: payer, Amount: amount}, time.Time{})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("\nAdded recharge of %s%s for %s\n", a.cfg.Currency, amount.StringFixed(2), payer)
	fmt.Printf("Updated balances: %s\n",
		csvfile.FormatBalances(rechargeRec.Balances, a.tenants, a.cfg.Currency))
}

func (a *app) chooseTenant() billing.Tenant {
	all := a.tenants.All()
	for {
		fmt.Println("Who paid the recharge?")
		for i, t := range all {
			fmt.Printf("  %d. %s\n", i+1, t)
		}
		raw := a.prompt(fmt.Sprintf("Enter choice (1-%d): ", len(all)))
		for i, t := range all {
			if raw == fmt.Sprint(i+1) || strings.EqualFold(raw, string(t)) {
				return all[i]
			}
		}
		fmt.Println("Invalid choice.")
	}
}

func (a *app) displayCurrentState(ctx context.Context) {
	state, err := a.service.CurrentState(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("\nCurrent State:")
	fmt.Println("==============")
	fmt.Println("Balances:")
	for _, t := range a.tenants.All() {
		fmt.Printf("  %s: %s%s\n", t, a.cfg.Currency, state.Balances[t].StringFixed(2))
	}

	fmt.Println("\nLast Meter Readings:")
	for _, t := range a.tenants.All() {
		fmt.Printf("  %s: %s\n", t, state.CurrentReading(t))
	}

	if state.HasBaseline() {
		fmt.Println("\nReadings at Last Recharge:")
		for _, t := range a.tenants.All() {
			fmt.Printf("  %s: %s\n", t, state.Baseline[t])
		}
	}

	if lr := state.LastRecharge; lr != nil {
		fmt.Printf("\nLast Recharge: %s%s by %s\n", a.cfg.Currency, lr.Amount.StringFixed(2), lr.Tenant)
	} else {
		fmt.Println("\nLast Recharge: N/A")
	}
	fmt.Printf("Suggested next payer: %s\n", billing.NextPayer(a.tenants, state))
}

func (a *app) displayHistory(ctx context.Context) {
	records, err := a.service.History(ctx, billing.HistoryFilter{})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if len(records) == 0 {
		fmt.Println("\nNo transactions found.")
		return
	}

	fmt.Println("\nTransaction History:")
	fmt.Println("===================")
	for i, rec := range records {
		fmt.Printf("\n%d. Type: %s\n", i+1, rec.Type)
		fmt.Printf("   Timestamp: %s\n", rec.Timestamp.Format(csvfile.TimeLayout))
		fmt.Printf("   Tenant: %s\n", rec.Tenant)
		if rec.Type == billing.RecordReading {
			fmt.Printf("   Reading: %s\n", rec.Value)
			fmt.Printf("   Consumption: %s\n", rec.Consumption)
		} else {
			fmt.Printf("   Recharge Amount: %s%s\n", a.cfg.Currency, rec.Value.StringFixed(2))
		}
		if len(rec.Balances) > 0 {
			fmt.Printf("   Balances: %s\n", csvfile.FormatBalances(rec.Balances, a.tenants, a.cfg.Currency))
		}
	}
}

func (a *app) revertLast(ctx context.Context) {
	last, err := a.store.Last(ctx)
	if err != nil || last == nil {
		fmt.Println("\nNothing to revert.")
		return
	}
	fmt.Printf("\nLast record: %s %s at %s\n", last.Type, last.Tenant, last.Timestamp.Format(csvfile.TimeLayout))
	if strings.ToLower(a.prompt("Remove it? (y/n): ")) != "y" {
		return
	}
	rec, err := a.service.RevertLast(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Removed %s record for %s.\n", rec.Type, rec.Tenant)
}

func (a *app) generateReports(ctx context.Context) {
	records, err := a.service.History(ctx, billing.HistoryFilter{})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	state, err := a.service.CurrentState(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	metrics, err := a.service.Metrics(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	var cutoff *time.Time
	if raw := a.prompt("Only include records after date (YYYY-MM-DD, empty for all): "); raw != "" {
		ts, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			fmt.Println("Invalid date, including everything.")
		} else {
			cutoff = &ts
		}
	}

	if err := os.MkdirAll(a.cfg.OutputDir, 0o755); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	stamp := time.Now().Format("20060102-150405")

	pdf, err := report.BuildLedgerPDF(a.tenants, records, cutoff, a.cfg.Currency)
	if err != nil {
		fmt.Printf("PDF error: %v\n", err)
		return
	}
	pdfPath := filepath.Join(a.cfg.OutputDir, "ledger-"+stamp+".pdf")
	if err := os.WriteFile(pdfPath, pdf, 0o644); err != nil {
		fmt.Printf("PDF error: %v\n", err)
		return
	}

	xlsx, err := report.BuildLedgerXLSX(a.tenants, state, metrics, records, cutoff, a.cfg.Currency)
	if err != nil {
		fmt.Printf("XLSX error: %v\n", err)
		return
	}
	xlsxPath := filepath.Join(a.cfg.OutputDir, "ledger-"+stamp+".xlsx")
	if err := os.WriteFile(xlsxPath, xlsx, 0o644); err != nil {
		fmt.Printf("XLSX error: %v\n", err)
		return
	}

	fmt.Printf("Wrote %s and %s\n", pdfPath, xlsxPath)
}

func (a *app) prompt(label string) string {
	fmt.Print(label)
	if !a.in.Scan() {
		os.Exit(0)
	}
	return strings.TrimSpace(a.in.Text())
}
