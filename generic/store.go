/*
store.go - Persistence interfaces for the document engine

PURPOSE:
  Defines the interface between the engine and the database. Different
  implementations can use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  Store:   Per-entity reads and writes for documents, line items,
           snapshots and derived records
  TxStore: Transactional wrapper; one transaction per protocol call

MUTATION DISCIPLINE:
  The engine mutates the line-item store, the snapshot ledger and the
  derived-record ledger together, inside a single WithTx call per protocol
  operation (commit / create derived record / revert / status change).
  Partial application across the three is never observable.

  Snapshots are append-only: there is no update or delete for them.
  Derived records allow exactly two updates ever: one status transition
  path (e.g. invoice Sent -> Paid) and one void.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - generic/store: In-memory for tests and dev

SEE ALSO:
  - ledger.go: Snapshot access with contiguity enforcement
  - engine.go: The protocol calls that drive this interface
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// STORE
// =============================================================================

// Store handles persistence for one backing database (or one transaction
// of it, when obtained through TxStore.WithTx).
type Store interface {
	// --- documents ---

	// CreateDocument persists a new document header. Lines are inserted
	// separately via InsertLineItem.
	CreateDocument(ctx context.Context, doc *Document) error

	// GetDocument returns the document header plus all live line items.
	// Returns NotFoundError if the id is unknown.
	GetDocument(ctx context.Context, id DocumentID) (*Document, error)

	// UpdateDocumentHeader sets status and version. The engine is the only
	// caller and always moves version forward by exactly 1.
	UpdateDocumentHeader(ctx context.Context, id DocumentID, status Status, version int64, updatedAt time.Time) error

	// --- line items ---

	// InsertLineItem persists a new line and assigns li.ID (positive).
	InsertLineItem(ctx context.Context, li *LineItem) error

	// InsertLineItemWithID persists a line keeping its existing id.
	// Used by revert to recreate lines deleted after the target version.
	InsertLineItemWithID(ctx context.Context, li LineItem) error

	UpdateLineItem(ctx context.Context, li LineItem) error
	DeleteLineItem(ctx context.Context, id LineItemID) error

	// --- snapshots (append-only) ---

	AppendSnapshot(ctx context.Context, snap Snapshot) error
	GetSnapshot(ctx context.Context, docID DocumentID, version int64) (*Snapshot, error)
	ListSnapshots(ctx context.Context, docID DocumentID) ([]Snapshot, error)
	LatestSnapshotVersion(ctx context.Context, docID DocumentID) (int64, error)

	// --- derived records ---

	InsertDerivedRecord(ctx context.Context, rec *DerivedRecord) error
	GetDerivedRecord(ctx context.Context, id DerivedRecordID) (*DerivedRecord, error)
	ListDerivedRecords(ctx context.Context, docID DocumentID) ([]DerivedRecord, error)
	UpdateDerivedRecordStatus(ctx context.Context, id DerivedRecordID, status Status) error

	// VoidDerivedRecord stamps VoidedAt/VoidedBySnapshotID. The record's
	// lines are never touched; quantity reversal happens on the document's
	// line items.
	VoidDerivedRecord(ctx context.Context, id DerivedRecordID, at time.Time, by SnapshotID) error
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
// Every engine protocol call runs inside exactly one WithTx.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns an error, the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
