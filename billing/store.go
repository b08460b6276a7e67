/*
store.go - Persistence interface for ledger records

PURPOSE:
  Defines the interface between the billing engine and durable storage.
  Different implementations can use a CSV file, SQLite, or in-memory
  storage; the engine only sees this contract.

APPEND-ONLY CONTRACT:
  - Append / AppendBatch are the only general write operations.
  - There is no Update. Past records are never mutated.
  - RevertLast is the single sanctioned removal: it truncates exactly the
    most recent record. Anything older is untouchable.

DURABILITY:
  Append must persist synchronously before returning success, using an
  atomic write-replace (temp file + rename, or a database transaction).
  A crash after a successful append never loses the record; a crash
  mid-append never leaves a torn file.

IMPLEMENTATIONS:
  - store/memory:  In-memory, for tests and dev
  - store/csvfile: The canonical CSV row schema
  - store/sqlite:  SQLite with WAL

SEE ALSO:
  - ledger.go: Validation layer on top of Store
*/
package billing

import "context"

// Store persists ledger records in insertion order.
type Store interface {
	// Append persists a single record at the end.
	Append(ctx context.Context, rec Record) error

	// AppendBatch persists multiple records atomically, in order.
	// Either all are written or none.
	AppendBatch(ctx context.Context, recs []Record) error

	// Load returns every record in insertion order.
	Load(ctx context.Context) ([]Record, error)

	// Last returns the most recent record, or nil if the store is empty.
	Last(ctx context.Context) (*Record, error)

	// RevertLast removes and returns the most recent record.
	// Returns ErrEmptyLedger if there is nothing to revert.
	RevertLast(ctx context.Context) (Record, error)
}
