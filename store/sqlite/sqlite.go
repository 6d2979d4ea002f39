/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements generic.Store and generic.TxStore using SQLite. In
  production, the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  documents:            Versioned document headers
  line_items:           Live line items (the authoritative store)
  snapshots:            Immutable per-version history headers
  snapshot_lines:       Frozen line states per snapshot
  derived_records:      Invoices / receivings, with nullable void marker
  derived_record_lines: Frozen consumption facts per record line

MUTATION DISCIPLINE:
  snapshots/snapshot_lines are append-only: no UPDATE, no DELETE.
  derived_records permit exactly two updates: a status transition and a
  single void (voided_at/voided_by_snapshot_id, guarded to be one-way).
  AUTOINCREMENT on line_items guarantees deleted line ids are never
  reused, so snapshot history always refers to unambiguous ids.

TRANSACTIONS:
  WithTx wraps fn in a single database transaction. The engine performs
  one WithTx per protocol call, which is what makes commit, fulfillment
  and revert atomic across all three stores.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't block
  behind the single writer, and crash recovery is cleaner.

USAGE:
  store, err := sqlite.New("./data/documents.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
  engine := quote.NewEngine(store)

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/document-engine/generic"
)

// Store implements generic.TxStore using SQLite.
type Store struct {
	db *sql.DB
	q  querier // db outside a transaction, tx inside one
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a SQLite store at the given path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite has a single writer anyway, and a ":memory:"
	// database exists per connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, q: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		number TEXT NOT NULL,
		status TEXT NOT NULL,
		version INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- AUTOINCREMENT is deliberate: line ids must never be reused, or the
	-- frozen states in snapshot_lines would become ambiguous.
	CREATE TABLE IF NOT EXISTS line_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id TEXT NOT NULL REFERENCES documents(id),
		type_id TEXT NOT NULL,
		description TEXT NOT NULL,
		catalog_ref TEXT NOT NULL DEFAULT '',
		quantity TEXT NOT NULL,
		qty_pending TEXT NOT NULL,
		qty_fulfilled TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		discount_code_id TEXT NOT NULL DEFAULT '',
		percent_of_total TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_line_items_document
		ON line_items(document_id);

	-- Snapshots (append-only history)
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id),
		version INTEGER NOT NULL,
		action TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		derived_record_id TEXT,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(document_id, version)
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_document
		ON snapshots(document_id, version);

	CREATE TABLE IF NOT EXISTS snapshot_lines (
		snapshot_id TEXT NOT NULL REFERENCES snapshots(id),
		line_item_id INTEGER NOT NULL,
		type_id TEXT NOT NULL,
		description TEXT NOT NULL,
		catalog_ref TEXT NOT NULL DEFAULT '',
		quantity TEXT NOT NULL,
		qty_pending TEXT NOT NULL,
		qty_fulfilled TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		discount_code_id TEXT NOT NULL DEFAULT '',
		percent_of_total TEXT,
		is_deleted INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_snapshot_lines_snapshot
		ON snapshot_lines(snapshot_id);

	CREATE TABLE IF NOT EXISTS derived_records (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id),
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		snapshot_id TEXT NOT NULL,
		snapshot_version INTEGER NOT NULL,
		voided_at TEXT,
		voided_by_snapshot_id TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_derived_records_document
		ON derived_records(document_id, snapshot_version);

	CREATE TABLE IF NOT EXISTS derived_record_lines (
		id TEXT PRIMARY KEY,
		record_id TEXT NOT NULL REFERENCES derived_records(id),
		line_item_id INTEGER NOT NULL,
		description TEXT NOT NULL,
		qty_this_record TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		qty_fulfilled_total TEXT NOT NULL,
		qty_pending_after TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_derived_record_lines_record
		ON derived_record_lines(record_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn inside a single database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	// No-op after a successful Commit; also releases the transaction if
	// fn panics, which matters with a single-connection pool.
	defer tx.Rollback()
	view := &Store{db: s.db, q: tx}
	if err := fn(view); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// DOCUMENTS
// =============================================================================

func (s *Store) CreateDocument(ctx context.Context, doc *generic.Document) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO documents (id, kind, number, status, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(doc.ID), doc.Kind, doc.Number, string(doc.Status), doc.Version,
		formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt))
	return err
}

func (s *Store) GetDocument(ctx context.Context, id generic.DocumentID) (*generic.Document, error) {
	var doc generic.Document
	var docID, status, createdAt, updatedAt string
	err := s.q.QueryRowContext(ctx, `
		SELECT id, kind, number, status, version, created_at, updated_at
		FROM documents WHERE id = ?`, string(id)).
		Scan(&docID, &doc.Kind, &doc.Number, &status, &doc.Version, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &generic.NotFoundError{Entity: "document", ID: string(id)}
	}
	if err != nil {
		return nil, err
	}
	doc.ID = generic.DocumentID(docID)
	doc.Status = generic.Status(status)
	doc.CreatedAt = parseTime(createdAt)
	doc.UpdatedAt = parseTime(updatedAt)

	lines, err := s.loadLineItems(ctx, id, doc.Kind)
	if err != nil {
		return nil, err
	}
	doc.Lines = lines
	return &doc, nil
}

func (s *Store) UpdateDocumentHeader(ctx context.Context, id generic.DocumentID, status generic.Status, version int64, updatedAt time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE documents SET status = ?, version = ?, updated_at = ? WHERE id = ?`,
		string(status), version, formatTime(updatedAt), string(id))
	if err != nil {
		return err
	}
	return requireRow(res, "document", string(id))
}

// =============================================================================
// LINE ITEMS
// =============================================================================

func (s *Store) loadLineItems(ctx context.Context, docID generic.DocumentID, kind string) ([]generic.LineItem, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, document_id, type_id, description, catalog_ref,
		       quantity, qty_pending, qty_fulfilled,
		       unit_price, discount_code_id, percent_of_total
		FROM line_items WHERE document_id = ? ORDER BY id`, string(docID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []generic.LineItem
	for rows.Next() {
		var li generic.LineItem
		var docIDStr, typeID, qty, pending, fulfilled, price string
		var percent sql.NullString
		if err := rows.Scan(&li.ID, &docIDStr, &typeID, &li.Description, &li.CatalogRef,
			&qty, &pending, &fulfilled, &price, &li.DiscountCodeID, &percent); err != nil {
			return nil, err
		}
		li.DocumentID = generic.DocumentID(docIDStr)
		li.Type = generic.GetOrCreateItemType(kind, typeID)
		li.Quantity = generic.Qty{Value: generic.MustParseDecimal(qty)}
		li.QtyPending = generic.Qty{Value: generic.MustParseDecimal(pending)}
		li.QtyFulfilled = generic.Qty{Value: generic.MustParseDecimal(fulfilled)}
		li.UnitPrice = generic.Money{Value: generic.MustParseDecimal(price)}
		li.PercentOfTotal = parsePercent(percent)
		lines = append(lines, li)
	}
	return lines, rows.Err()
}

func (s *Store) InsertLineItem(ctx context.Context, li *generic.LineItem) error {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO line_items (document_id, type_id, description, catalog_ref,
			quantity, qty_pending, qty_fulfilled, unit_price, discount_code_id, percent_of_total)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(li.DocumentID), li.Type.ItemTypeID(), li.Description, li.CatalogRef,
		li.Quantity.String(), li.QtyPending.String(), li.QtyFulfilled.String(),
		li.UnitPrice.Value.String(), li.DiscountCodeID, formatPercent(li.PercentOfTotal))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	li.ID = generic.LineItemID(id)
	return nil
}

func (s *Store) InsertLineItemWithID(ctx context.Context, li generic.LineItem) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO line_items (id, document_id, type_id, description, catalog_ref,
			quantity, qty_pending, qty_fulfilled, unit_price, discount_code_id, percent_of_total)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(li.ID), string(li.DocumentID), li.Type.ItemTypeID(), li.Description, li.CatalogRef,
		li.Quantity.String(), li.QtyPending.String(), li.QtyFulfilled.String(),
		li.UnitPrice.Value.String(), li.DiscountCodeID, formatPercent(li.PercentOfTotal))
	return err
}

func (s *Store) UpdateLineItem(ctx context.Context, li generic.LineItem) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE line_items SET description = ?, catalog_ref = ?,
			quantity = ?, qty_pending = ?, qty_fulfilled = ?,
			unit_price = ?, discount_code_id = ?, percent_of_total = ?
		WHERE id = ?`,
		li.Description, li.CatalogRef,
		li.Quantity.String(), li.QtyPending.String(), li.QtyFulfilled.String(),
		li.UnitPrice.Value.String(), li.DiscountCodeID, formatPercent(li.PercentOfTotal),
		int64(li.ID))
	if err != nil {
		return err
	}
	return requireRow(res, "line_item", fmt.Sprint(li.ID))
}

func (s *Store) DeleteLineItem(ctx context.Context, id generic.LineItemID) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM line_items WHERE id = ?`, int64(id))
	if err != nil {
		return err
	}
	return requireRow(res, "line_item", fmt.Sprint(id))
}

// =============================================================================
// SNAPSHOTS (append-only)
// =============================================================================

func (s *Store) AppendSnapshot(ctx context.Context, snap generic.Snapshot) error {
	var recID any
	if snap.DerivedRecordID != nil {
		recID = string(*snap.DerivedRecordID)
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO snapshots (id, document_id, version, action, description,
			derived_record_id, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(snap.ID), string(snap.DocumentID), snap.Version, string(snap.Action),
		snap.Description, recID, string(snap.Status), formatTime(snap.CreatedAt))
	if err != nil {
		return err
	}
	for _, ls := range snap.Lines {
		deleted := 0
		if ls.IsDeleted {
			deleted = 1
		}
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO snapshot_lines (snapshot_id, line_item_id, type_id, description,
				catalog_ref, quantity, qty_pending, qty_fulfilled, unit_price,
				discount_code_id, percent_of_total, is_deleted)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(snap.ID), int64(ls.LineItemID), ls.TypeID, ls.Description,
			ls.CatalogRef, ls.Quantity.String(), ls.QtyPending.String(),
			ls.QtyFulfilled.String(), ls.UnitPrice.Value.String(),
			ls.DiscountCodeID, formatPercent(ls.PercentOfTotal), deleted)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetSnapshot(ctx context.Context, docID generic.DocumentID, version int64) (*generic.Snapshot, error) {
	snaps, err := s.querySnapshots(ctx, `
		SELECT id, document_id, version, action, description, derived_record_id, status, created_at
		FROM snapshots WHERE document_id = ? AND version = ?`, string(docID), version)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, &generic.NotFoundError{Entity: "snapshot", ID: fmt.Sprintf("%s@%d", docID, version)}
	}
	return &snaps[0], nil
}

func (s *Store) ListSnapshots(ctx context.Context, docID generic.DocumentID) ([]generic.Snapshot, error) {
	return s.querySnapshots(ctx, `
		SELECT id, document_id, version, action, description, derived_record_id, status, created_at
		FROM snapshots WHERE document_id = ? ORDER BY version`, string(docID))
}

func (s *Store) LatestSnapshotVersion(ctx context.Context, docID generic.DocumentID) (int64, error) {
	var v sql.NullInt64
	err := s.q.QueryRowContext(ctx,
		`SELECT MAX(version) FROM snapshots WHERE document_id = ?`, string(docID)).Scan(&v)
	if err != nil {
		return 0, err
	}
	return v.Int64, nil
}

func (s *Store) querySnapshots(ctx context.Context, query string, args ...any) ([]generic.Snapshot, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []generic.Snapshot
	for rows.Next() {
		var snap generic.Snapshot
		var id, docID, action, status, createdAt string
		var recID sql.NullString
		if err := rows.Scan(&id, &docID, &snap.Version, &action, &snap.Description,
			&recID, &status, &createdAt); err != nil {
			return nil, err
		}
		snap.ID = generic.SnapshotID(id)
		snap.DocumentID = generic.DocumentID(docID)
		snap.Action = generic.ActionType(action)
		snap.Status = generic.Status(status)
		snap.CreatedAt = parseTime(createdAt)
		if recID.Valid {
			r := generic.DerivedRecordID(recID.String)
			snap.DerivedRecordID = &r
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range snaps {
		lines, err := s.loadSnapshotLines(ctx, snaps[i].ID)
		if err != nil {
			return nil, err
		}
		snaps[i].Lines = lines
	}
	return snaps, nil
}

func (s *Store) loadSnapshotLines(ctx context.Context, snapID generic.SnapshotID) ([]generic.LineState, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT line_item_id, type_id, description, catalog_ref,
		       quantity, qty_pending, qty_fulfilled, unit_price,
		       discount_code_id, percent_of_total, is_deleted
		FROM snapshot_lines WHERE snapshot_id = ? ORDER BY line_item_id`, string(snapID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []generic.LineState
	for rows.Next() {
		var ls generic.LineState
		var qty, pending, fulfilled, price string
		var percent sql.NullString
		var deleted int
		if err := rows.Scan(&ls.LineItemID, &ls.TypeID, &ls.Description, &ls.CatalogRef,
			&qty, &pending, &fulfilled, &price, &ls.DiscountCodeID, &percent, &deleted); err != nil {
			return nil, err
		}
		ls.Quantity = generic.Qty{Value: generic.MustParseDecimal(qty)}
		ls.QtyPending = generic.Qty{Value: generic.MustParseDecimal(pending)}
		ls.QtyFulfilled = generic.Qty{Value: generic.MustParseDecimal(fulfilled)}
		ls.UnitPrice = generic.Money{Value: generic.MustParseDecimal(price)}
		ls.PercentOfTotal = parsePercent(percent)
		ls.IsDeleted = deleted != 0
		lines = append(lines, ls)
	}
	return lines, rows.Err()
}

// =============================================================================
// DERIVED RECORDS
// =============================================================================

func (s *Store) InsertDerivedRecord(ctx context.Context, rec *generic.DerivedRecord) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO derived_records (id, document_id, kind, status, created_at,
			snapshot_id, snapshot_version)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(rec.ID), string(rec.DocumentID), rec.Kind, string(rec.Status),
		formatTime(rec.CreatedAt), string(rec.SnapshotID), rec.SnapshotVersion)
	if err != nil {
		return err
	}
	for _, dl := range rec.Lines {
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO derived_record_lines (id, record_id, line_item_id, description,
				qty_this_record, unit_price, qty_fulfilled_total, qty_pending_after)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			dl.ID, string(rec.ID), int64(dl.LineItemID), dl.Description,
			dl.QtyThisRecord.String(), dl.UnitPrice.Value.String(),
			dl.QtyFulfilledTotal.String(), dl.QtyPendingAfter.String())
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetDerivedRecord(ctx context.Context, id generic.DerivedRecordID) (*generic.DerivedRecord, error) {
	recs, err := s.queryDerivedRecords(ctx, `
		SELECT id, document_id, kind, status, created_at, snapshot_id, snapshot_version,
		       voided_at, voided_by_snapshot_id
		FROM derived_records WHERE id = ?`, string(id))
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, &generic.NotFoundError{Entity: "derived_record", ID: string(id)}
	}
	return &recs[0], nil
}

func (s *Store) ListDerivedRecords(ctx context.Context, docID generic.DocumentID) ([]generic.DerivedRecord, error) {
	return s.queryDerivedRecords(ctx, `
		SELECT id, document_id, kind, status, created_at, snapshot_id, snapshot_version,
		       voided_at, voided_by_snapshot_id
		FROM derived_records WHERE document_id = ? ORDER BY snapshot_version`, string(docID))
}

func (s *Store) queryDerivedRecords(ctx context.Context, query string, args ...any) ([]generic.DerivedRecord, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []generic.DerivedRecord
	for rows.Next() {
		var rec generic.DerivedRecord
		var id, docID, status, createdAt, snapID string
		var voidedAt, voidedBy sql.NullString
		if err := rows.Scan(&id, &docID, &rec.Kind, &status, &createdAt,
			&snapID, &rec.SnapshotVersion, &voidedAt, &voidedBy); err != nil {
			return nil, err
		}
		rec.ID = generic.DerivedRecordID(id)
		rec.DocumentID = generic.DocumentID(docID)
		rec.Status = generic.Status(status)
		rec.CreatedAt = parseTime(createdAt)
		rec.SnapshotID = generic.SnapshotID(snapID)
		if voidedAt.Valid {
			t := parseTime(voidedAt.String)
			rec.VoidedAt = &t
		}
		if voidedBy.Valid {
			v := generic.SnapshotID(voidedBy.String)
			rec.VoidedBySnapshotID = &v
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range recs {
		lines, err := s.loadDerivedLines(ctx, recs[i].ID)
		if err != nil {
			return nil, err
		}
		recs[i].Lines = lines
	}
	return recs, nil
}

func (s *Store) loadDerivedLines(ctx context.Context, recID generic.DerivedRecordID) ([]generic.DerivedLine, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, line_item_id, description, qty_this_record, unit_price,
		       qty_fulfilled_total, qty_pending_after
		FROM derived_record_lines WHERE record_id = ? ORDER BY id`, string(recID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []generic.DerivedLine
	for rows.Next() {
		var dl generic.DerivedLine
		var qty, price, fulfilled, pending string
		if err := rows.Scan(&dl.ID, &dl.LineItemID, &dl.Description,
			&qty, &price, &fulfilled, &pending); err != nil {
			return nil, err
		}
		dl.QtyThisRecord = generic.Qty{Value: generic.MustParseDecimal(qty)}
		dl.UnitPrice = generic.Money{Value: generic.MustParseDecimal(price)}
		dl.QtyFulfilledTotal = generic.Qty{Value: generic.MustParseDecimal(fulfilled)}
		dl.QtyPendingAfter = generic.Qty{Value: generic.MustParseDecimal(pending)}
		lines = append(lines, dl)
	}
	return lines, rows.Err()
}

func (s *Store) UpdateDerivedRecordStatus(ctx context.Context, id generic.DerivedRecordID, status generic.Status) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE derived_records SET status = ? WHERE id = ? AND voided_at IS NULL`,
		string(status), string(id))
	if err != nil {
		return err
	}
	return requireRow(res, "derived_record", string(id))
}

func (s *Store) VoidDerivedRecord(ctx context.Context, id generic.DerivedRecordID, at time.Time, by generic.SnapshotID) error {
	// voided_at IS NULL makes the void one-way at the database level too.
	res, err := s.q.ExecContext(ctx, `
		UPDATE derived_records SET voided_at = ?, voided_by_snapshot_id = ?
		WHERE id = ? AND voided_at IS NULL`,
		formatTime(at), string(by), string(id))
	if err != nil {
		return err
	}
	return requireRow(res, "derived_record", string(id))
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatPercent(p *decimal.Decimal) any {
	if p == nil {
		return nil
	}
	return p.String()
}

func parsePercent(ns sql.NullString) *decimal.Decimal {
	if !ns.Valid {
		return nil
	}
	d := generic.MustParseDecimal(ns.String)
	return &d
}

func requireRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &generic.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

// Compile-time interface checks.
var (
	_ generic.Store   = (*Store)(nil)
	_ generic.TxStore = (*Store)(nil)
)
