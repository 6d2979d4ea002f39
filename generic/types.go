/*
Package generic provides the core versioned-document engine.

PURPOSE:
  This package contains domain-agnostic types and algorithms for managing
  revisable business documents. Whether the document is a Quote or a
  Purchase Order, the same engine handles staged edits, optimistic-
  concurrency commits, fulfillment accounting, snapshot history, and
  cascading reverts.

KEY CONCEPTS IN THIS FILE (types.go):
  - Qty/Money: decimal quantities and prices (no floats in the engine)
  - Document: the top-level versioned aggregate
  - LineItem: one orderable row with pending/fulfilled counters
  - DerivedRecord: an Invoice or Receiving that consumed pending quantity
  - ActionType: tags for what produced each snapshot version

DESIGN PRINCIPLES:
  1. Monotonic versions: Document.Version only ever increases, even across
     reverts. Version numbers are never reused.
  2. Conservation: QtyPending + QtyFulfilled == Quantity on every line,
     outside the middle of a protocol call.
  3. Precision: Uses decimal.Decimal to avoid floating-point errors.
  4. Type safety: Strong typing for ids prevents mixing document, line,
     snapshot and derived-record identifiers.

USAGE:
  doc := generic.Document{Kind: "quote", Status: quote.StatusDraft}
  line := generic.LineItem{
      Type:      quote.ItemPart,
      Quantity:  generic.NewQty(10),
      UnitPrice: generic.NewMoney(49.90),
  }

SEE ALSO:
  - staging.go: Uncommitted add/edit/delete accumulation
  - engine.go: Commit and fulfillment protocols
  - revert.go: Preview and cascading revert
  - snapshot.go: Frozen per-version line states
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// QTY / MONEY - Decimal quantities and prices
// =============================================================================

// Qty is a quantity of a line item. Quantities may be fractional
// (e.g. 2.5 hours of labor).
type Qty struct {
	Value decimal.Decimal
}

func NewQty(value float64) Qty    { return Qty{Value: decimal.NewFromFloat(value)} }
func NewQtyFromInt(value int) Qty { return Qty{Value: decimal.NewFromInt(int64(value))} }
func ZeroQty() Qty                { return Qty{Value: decimal.Zero} }

func (q Qty) Add(o Qty) Qty          { return Qty{Value: q.Value.Add(o.Value)} }
func (q Qty) Sub(o Qty) Qty          { return Qty{Value: q.Value.Sub(o.Value)} }
func (q Qty) Neg() Qty               { return Qty{Value: q.Value.Neg()} }
func (q Qty) IsZero() bool           { return q.Value.IsZero() }
func (q Qty) IsNegative() bool       { return q.Value.IsNegative() }
func (q Qty) IsPositive() bool       { return q.Value.IsPositive() }
func (q Qty) Equal(o Qty) bool       { return q.Value.Equal(o.Value) }
func (q Qty) GreaterThan(o Qty) bool { return q.Value.GreaterThan(o.Value) }
func (q Qty) LessThan(o Qty) bool    { return q.Value.LessThan(o.Value) }
func (q Qty) String() string         { return q.Value.String() }

// Money is a unit price or extended amount.
type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money { return Money{Value: decimal.NewFromFloat(value)} }
func ZeroMoney() Money             { return Money{Value: decimal.Zero} }

func (m Money) Add(o Money) Money  { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money  { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) MulQty(q Qty) Money { return Money{Value: m.Value.Mul(q.Value)} }
func (m Money) IsZero() bool       { return m.Value.IsZero() }
func (m Money) Equal(o Money) bool { return m.Value.Equal(o.Value) }
func (m Money) String() string     { return m.Value.StringFixed(2) }

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type DocumentID string
type SnapshotID string
type DerivedRecordID string

// LineItemID is an integer so that uncommitted adds can be keyed by
// session-local negative ids (see staging.go). Persisted line items always
// carry positive ids.
type LineItemID int64

// IsTemp reports whether the id is a session-local placeholder for an
// uncommitted add.
func (id LineItemID) IsTemp() bool { return id < 0 }

// Status is a document or derived-record status. The value sets are closed
// per document kind and owned by the domain packages (quote, purchase).
type Status string

// =============================================================================
// ACTION TYPE - What produced a snapshot version
// =============================================================================

type ActionType string

const (
	ActionCreate       ActionType = "create"
	ActionEdit         ActionType = "edit"
	ActionDelete       ActionType = "delete"
	ActionInvoice      ActionType = "invoice"
	ActionReceive      ActionType = "receive"
	ActionStatusChange ActionType = "status_change"
	ActionRevert       ActionType = "revert"
)

// =============================================================================
// DOCUMENT - Top-level versioned aggregate
// =============================================================================

// Document is a Quote or Purchase Order.
//
// INVARIANTS:
//   - Version starts at 1 and increases by exactly 1 per committed mutation
//     (commit, fulfillment, status change, revert). Never reused.
//   - The snapshot ledger holds exactly one entry per version 1..Version.
type Document struct {
	ID        DocumentID
	Kind      string // profile key, e.g. "quote", "purchase_order"
	Number    string // human-facing number, e.g. "Q-1042"
	Status    Status
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time

	Lines []LineItem
}

// Line returns the line item with the given id, or nil.
func (d *Document) Line(id LineItemID) *LineItem {
	for i := range d.Lines {
		if d.Lines[i].ID == id {
			return &d.Lines[i]
		}
	}
	return nil
}

// FullyFulfilled reports whether every line has zero pending quantity.
// Vacuously false for a document with no lines.
func (d *Document) FullyFulfilled() bool {
	if len(d.Lines) == 0 {
		return false
	}
	for i := range d.Lines {
		if !d.Lines[i].QtyPending.IsZero() {
			return false
		}
	}
	return true
}

// =============================================================================
// LINE ITEM - One orderable row
// =============================================================================

// LineItem is one row of a document.
//
// Quantity is the ordered amount, set at creation/edit, never derived.
// QtyPending is the amount not yet consumed by a derived record.
// QtyFulfilled is the cumulative amount consumed by committed derived
// records; it only decreases when a void restores quantity to pending.
type LineItem struct {
	ID          LineItemID
	DocumentID  DocumentID
	Type        ItemType
	Description string
	CatalogRef  string // referenced catalog id; empty for free-text lines

	Quantity     Qty
	QtyPending   Qty
	QtyFulfilled Qty

	UnitPrice      Money
	DiscountCodeID string           // optional
	PercentOfTotal *decimal.Decimal // dynamic percentage marker; nil = fixed price
}

// HasDynamicPrice reports whether the unit price is a percentage of the
// sibling lines' subtotal rather than a fixed amount.
func (li LineItem) HasDynamicPrice() bool { return li.PercentOfTotal != nil }

// CheckConservation verifies QtyPending + QtyFulfilled == Quantity.
func (li LineItem) CheckConservation() error {
	if !li.QtyPending.Add(li.QtyFulfilled).Equal(li.Quantity) {
		return &QuantityViolationError{
			LineItemID: li.ID,
			Rule:       "pending + fulfilled must equal quantity",
			Quantity:   li.Quantity,
			Pending:    li.QtyPending,
			Fulfilled:  li.QtyFulfilled,
		}
	}
	return nil
}

// =============================================================================
// DERIVED RECORD - Invoice (Quote) / Receiving (Purchase Order)
// =============================================================================

// DerivedRecord consumes pending quantity from its owning document.
// Immutable once created, except for a single void.
type DerivedRecord struct {
	ID         DerivedRecordID
	DocumentID DocumentID
	Kind       string // owning document kind
	Status     Status
	CreatedAt  time.Time

	// SnapshotVersion is the document version this record produced.
	// The revert cascade voids records whose SnapshotVersion is greater
	// than the revert target.
	SnapshotID      SnapshotID
	SnapshotVersion int64

	VoidedAt           *time.Time
	VoidedBySnapshotID *SnapshotID

	Lines []DerivedLine
}

// Voided reports whether the record has been voided. Voids are one-way:
// a voided record is never un-voided or re-voided.
func (r *DerivedRecord) Voided() bool { return r.VoidedAt != nil }

// DerivedLine records one line item's consumption, with the running totals
// frozen as facts at creation time. They are never recomputed.
type DerivedLine struct {
	ID          string
	LineItemID  LineItemID
	Description string

	QtyThisRecord     Qty
	UnitPrice         Money // line price at creation, or the per-entry override
	QtyFulfilledTotal Qty   // frozen: cumulative fulfilled after this record
	QtyPendingAfter   Qty   // frozen: pending remaining after this record
}

// =============================================================================
// KIND PROFILE - What differs between Quote and Purchase Order
// =============================================================================

// Profile captures everything the engine needs to know about one document
// kind. Domain packages (quote, purchase) provide implementations; the
// engine stays domain-agnostic, the same way item types work (itemtype.go).
type Profile interface {
	// Kind returns the profile key, e.g. "quote".
	Kind() string

	// DerivedAction is the snapshot action tag for derived-record creation:
	// ActionInvoice for quotes, ActionReceive for purchase orders.
	DerivedAction() ActionType

	// DerivedLabel names the derived record kind for display and storage,
	// e.g. "invoice" or "receiving".
	DerivedLabel() string

	// InitialDerivedStatus is the status a freshly created derived record
	// carries (invoices start Sent, receivings start active).
	InitialDerivedStatus() Status

	// AllowsItemType reports whether the item type may appear on this kind
	// of document.
	AllowsItemType(t ItemType) bool

	// CanTransition reports whether a document status change is legal.
	CanTransition(from, to Status) bool

	// CanTransitionDerived reports whether a derived-record status change
	// is legal (e.g. invoice Sent -> Paid). Voiding is not a status
	// transition; it goes through the revert cascade.
	CanTransitionDerived(from, to Status) bool

	// AfterFulfillment returns the document status after a derived record
	// is created, given the current status and whether every line now has
	// zero pending quantity. Returning the current status means no change.
	// This is how a purchase order auto-transitions Sent -> Received.
	AfterFulfillment(current Status, fullyFulfilled bool) Status
}
