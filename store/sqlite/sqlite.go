/*
Package sqlite provides a SQLite-backed Store implementation.

PURPOSE:
  Implements billing.Store using SQLite for deployments that outgrow the
  single CSV file. The same append-only discipline applies: no UPDATE on
  the records table, and the only DELETE is the sanctioned revert of the
  single most recent row.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

SCHEMA:
  records(id INTEGER PRIMARY KEY AUTOINCREMENT, ...) - insertion order is
  id order, which is the ledger's causal order. Decimal values are stored
  as their exact string form, balances as a JSON object keyed by tenant.

USAGE:
  store, err := sqlite.Open("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - billing/store.go: interface definition
  - store/csvfile: the canonical file-based alternative
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/anantdark/tenant-electricity-bill-calculator/billing"
)

const timeLayout = "2006-01-02 15:04:05"

// Store implements billing.Store using SQLite.
type Store struct {
	db *sql.DB
}

// Open creates a new SQLite store at dbPath. Use ":memory:" for an
// in-memory database.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Records (append-only ledger; revert-last is the only delete)
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		record_type TEXT NOT NULL CHECK (record_type IN ('READING','RECHARGE')),
		recorded_at TEXT NOT NULL,
		tenant TEXT NOT NULL,
		value TEXT NOT NULL,
		consumption TEXT,
		balances_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_records_recorded_at ON records(recorded_at);
	CREATE INDEX IF NOT EXISTS idx_records_tenant ON records(tenant);
	CREATE INDEX IF NOT EXISTS idx_records_type ON records(record_type);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Append(ctx context.Context, rec billing.Record) error {
	return s.AppendBatch(ctx, []billing.Record{rec})
}

func (s *Store) AppendBatch(ctx context.Context, recs []billing.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (record_type, recorded_at, tenant, value, consumption, balances_json)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range recs {
		consumption := sql.NullString{}
		if rec.Type == billing.RecordReading {
			consumption = sql.NullString{String: rec.Consumption.String(), Valid: true}
		}
		balances, err := marshalBalances(rec.Balances)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			string(rec.Type),
			rec.Timestamp.Format(timeLayout),
			string(rec.Tenant),
			rec.Value.String(),
			consumption,
			balances,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Load(ctx context.Context) ([]billing.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_type, recorded_at, tenant, value, consumption, balances_json
		FROM records ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []billing.Record
	for rows.Next() {
		var raw rowData
		if err := rows.Scan(&raw.recordType, &raw.recordedAt, &raw.tenant, &raw.value, &raw.consumption, &raw.balances); err != nil {
			return nil, err
		}
		rec, err := raw.toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) Last(ctx context.Context) (*billing.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT record_type, recorded_at, tenant, value, consumption, balances_json
		FROM records ORDER BY id DESC LIMIT 1`)
	var raw rowData
	err := row.Scan(&raw.recordType, &raw.recordedAt, &raw.tenant, &raw.value, &raw.consumption, &raw.balances)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec, err := raw.toRecord()
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) RevertLast(ctx context.Context) (billing.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return billing.Record{}, err
	}
	defer tx.Rollback()

	var (
		id  int64
		raw rowData
	)
	row := tx.QueryRowContext(ctx, `
		SELECT id, record_type, recorded_at, tenant, value, consumption, balances_json
		FROM records ORDER BY id DESC LIMIT 1`)
	err = row.Scan(&id, &raw.recordType, &raw.recordedAt, &raw.tenant, &raw.value, &raw.consumption, &raw.balances)
	if err == sql.ErrNoRows {
		return billing.Record{}, billing.ErrEmptyLedger
	}
	if err != nil {
		return billing.Record{}, err
	}
	rec, err := raw.toRecord()
	if err != nil {
		return billing.Record{}, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id); err != nil {
		return billing.Record{}, err
	}
	if err := tx.Commit(); err != nil {
		return billing.Record{}, err
	}
	return rec, nil
}

// =============================================================================
// ROW MAPPING
// =============================================================================

type rowData struct {
	recordType  string
	recordedAt  string
	tenant      string
	value       string
	consumption sql.NullString
	balances    sql.NullString
}

func (r rowData) toRecord() (billing.Record, error) {
	ts, err := time.ParseInLocation(timeLayout, r.recordedAt, time.Local)
	if err != nil {
		return billing.Record{}, fmt.Errorf("bad recorded_at %q: %w", r.recordedAt, err)
	}
	v, err := decimal.NewFromString(r.value)
	if err != nil {
		return billing.Record{}, fmt.Errorf("bad value %q: %w", r.value, err)
	}
	rec := billing.Record{
		Type:      billing.RecordType(r.recordType),
		Timestamp: ts,
		Tenant:    billing.Tenant(r.tenant),
		Value:     v,
	}
	if r.consumption.Valid && r.consumption.String != "" {
		c, err := decimal.NewFromString(r.consumption.String)
		if err != nil {
			return billing.Record{}, fmt.Errorf("bad consumption %q: %w", r.consumption.String, err)
		}
		rec.Consumption = c
	}
	if r.balances.Valid && r.balances.String != "" {
		b, err := unmarshalBalances(r.balances.String)
		if err != nil {
			return billing.Record{}, err
		}
		rec.Balances = b
	}
	return rec, nil
}

func marshalBalances(b billing.Balances) (sql.NullString, error) {
	if len(b) == 0 {
		return sql.NullString{}, nil
	}
	m := make(map[string]string, len(b))
	for t, v := range b {
		m[string(t)] = v.StringFixed(2)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalBalances(s string) (billing.Balances, error) {
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("bad balances_json: %w", err)
	}
	b := make(billing.Balances, len(m))
	for name, amount := range m {
		v, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("bad balance amount %q: %w", amount, err)
		}
		b[billing.Tenant(name)] = v
	}
	return b, nil
}
