/*
Package csvfile persists the ledger as the canonical CSV row schema.

PURPOSE:
  This format is the contract shared with the dashboard, the PDF exporter
  and seed imports:

    Type,Timestamp,Tenant,Reading/Amount,Consumption,Balances

  Type is READING or RECHARGE. Consumption is blank for recharges.
  Balances is a semicolon-separated "Tenant: Rs.amount" list reflecting the
  state immediately after the row.

DURABILITY:
  Every mutation rewrites the whole file to a temp sibling and renames it
  over the original. Rename is atomic on POSIX filesystems, so a crash
  mid-write leaves the previous file intact and a successful return means
  the row is on disk. Rows are never partially appended.

SEE ALSO:
  - billing/store.go: the interface this implements
  - store/sqlite: the database-backed alternative
*/
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/anantdark/tenant-electricity-bill-calculator/billing"
)

// Header is the canonical column set, in order.
var Header = []string{"Type", "Timestamp", "Tenant", "Reading/Amount", "Consumption", "Balances"}

// TimeLayout is the timestamp format used in the file.
const TimeLayout = "2006-01-02 15:04:05"

// DefaultCurrency prefixes balance amounts in the Balances column.
const DefaultCurrency = "Rs."

// Store implements billing.Store over a single CSV file. Records are
// cached in memory; the file is the durable copy.
type Store struct {
	mu       sync.RWMutex
	path     string
	tenants  billing.TenantSet
	currency string
	records  []billing.Record
}

// Open loads (or creates) the ledger file at path. A malformed file is a
// startup error; the store never self-repairs.
func Open(path string, tenants billing.TenantSet, currency string) (*Store, error) {
	if currency == "" {
		currency = DefaultCurrency
	}
	s := &Store{path: path, tenants: tenants, currency: currency}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		if err := s.writeAll(nil); err != nil {
			return nil, fmt.Errorf("create ledger file: %w", err)
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger file: %w", err)
	}
	defer f.Close()

	records, err := ReadRecords(f, currency)
	if err != nil {
		return nil, fmt.Errorf("parse ledger file %s: %w", path, err)
	}
	s.records = records
	return s, nil
}

func (s *Store) Append(ctx context.Context, rec billing.Record) error {
	return s.AppendBatch(ctx, []billing.Record{rec})
}

func (s *Store) AppendBatch(_ context.Context, recs []billing.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := append(append([]billing.Record{}, s.records...), recs...)
	if err := s.writeAll(next); err != nil {
		return err
	}
	s.records = next
	return nil
}

func (s *Store) Load(_ context.Context) ([]billing.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]billing.Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *Store) Last(_ context.Context) (*billing.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return nil, nil
	}
	rec := s.records[len(s.records)-1]
	return &rec, nil
}

func (s *Store) RevertLast(_ context.Context) (billing.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return billing.Record{}, billing.ErrEmptyLedger
	}
	next := s.records[:len(s.records)-1]
	rec := s.records[len(s.records)-1]
	if err := s.writeAll(next); err != nil {
		return billing.Record{}, err
	}
	s.records = next
	return rec, nil
}

// Replace swaps the entire ledger content, used by seed imports. The new
// records must already have been validated by replay.
func (s *Store) Replace(_ context.Context, recs []billing.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := append([]billing.Record{}, recs...)
	if err := s.writeAll(next); err != nil {
		return err
	}
	s.records = next
	return nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// writeAll writes header plus records to a temp file and renames it over
// the ledger path. Callers hold the write lock.
func (s *Store) writeAll(recs []billing.Record) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := WriteRecords(tmp, recs, s.tenants, s.currency); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// =============================================================================
// CODEC - Row schema shared with uploads and reports
// =============================================================================

// ReadRecords parses the canonical CSV schema from r. Tenant membership is
// not checked here; replaying through billing.Reduce does that.
func ReadRecords(r io.Reader, currency string) ([]billing.Record, error) {
	if currency == "" {
		currency = DefaultCurrency
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("missing header row")
	}
	if !headerMatches(rows[0]) {
		return nil, fmt.Errorf("unexpected header %v, want %v", rows[0], Header)
	}

	var records []billing.Record
	for i, row := range rows[1:] {
		if len(row) < len(Header) {
			return nil, fmt.Errorf("row %d: want %d columns, got %d", i+2, len(Header), len(row))
		}
		rec, err := parseRow(row, currency)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteRecords writes header plus records in the canonical schema.
func WriteRecords(w io.Writer, recs []billing.Record, tenants billing.TenantSet, currency string) error {
	if currency == "" {
		currency = DefaultCurrency
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, rec := range recs {
		consumption := ""
		if rec.Type == billing.RecordReading {
			consumption = rec.Consumption.String()
		}
		row := []string{
			string(rec.Type),
			rec.Timestamp.Format(TimeLayout),
			string(rec.Tenant),
			rec.Value.String(),
			consumption,
			FormatBalances(rec.Balances, tenants, currency),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatBalances renders the semicolon-separated balances column in
// configured tenant order, e.g. "Ground Floor: Rs.0.00; First Floor: Rs.1200.00".
func FormatBalances(b billing.Balances, tenants billing.TenantSet, currency string) string {
	if len(b) == 0 {
		return ""
	}
	parts := make([]string, 0, tenants.Len())
	for _, t := range tenants.All() {
		v, ok := b[t]
		if !ok {
			v = decimal.Zero
		}
		parts = append(parts, fmt.Sprintf("%s: %s%s", t, currency, v.StringFixed(2)))
	}
	return strings.Join(parts, "; ")
}

// ParseBalances parses the balances column format.
func ParseBalances(s, currency string) (billing.Balances, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	b := make(billing.Balances)
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, amount, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("malformed balances entry %q", part)
		}
		amount = strings.TrimSpace(amount)
		amount = strings.TrimPrefix(amount, currency)
		amount = strings.ReplaceAll(amount, ",", "")
		v, err := decimal.NewFromString(strings.TrimSpace(amount))
		if err != nil {
			return nil, fmt.Errorf("malformed balance amount %q: %w", part, err)
		}
		b[billing.Tenant(strings.TrimSpace(name))] = v
	}
	return b, nil
}

func parseRow(row []string, currency string) (billing.Record, error) {
	ts, err := time.ParseInLocation(TimeLayout, strings.TrimSpace(row[1]), time.Local)
	if err != nil {
		return billing.Record{}, fmt.Errorf("bad timestamp %q: %w", row[1], err)
	}
	value, err := decimal.NewFromString(strings.TrimSpace(row[3]))
	if err != nil {
		return billing.Record{}, fmt.Errorf("bad value %q: %w", row[3], err)
	}
	rec := billing.Record{
		Type:      billing.RecordType(strings.ToUpper(strings.TrimSpace(row[0]))),
		Timestamp: ts,
		Tenant:    billing.Tenant(strings.TrimSpace(row[2])),
		Value:     value,
	}
	if rec.Type != billing.RecordReading && rec.Type != billing.RecordRecharge {
		return billing.Record{}, fmt.Errorf("bad record type %q", row[0])
	}
	if rec.Type == billing.RecordReading && strings.TrimSpace(row[4]) != "" {
		c, err := decimal.NewFromString(strings.TrimSpace(row[4]))
		if err != nil {
			return billing.Record{}, fmt.Errorf("bad consumption %q: %w", row[4], err)
		}
		rec.Consumption = c
	}
	balances, err := ParseBalances(row[5], currency)
	if err != nil {
		return billing.Record{}, err
	}
	rec.Balances = balances
	return rec, nil
}

func headerMatches(row []string) bool {
	if len(row) < len(Header) {
		return false
	}
	for i, col := range Header {
		if !strings.EqualFold(strings.TrimSpace(row[i]), col) {
			return false
		}
	}
	return true
}
