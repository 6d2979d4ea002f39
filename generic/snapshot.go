/*
snapshot.go - Frozen per-version document states

PURPOSE:
  A Snapshot records the full state of every line item as of one document
  version, including deleted-flagged entries so history can represent
  "existed, then was removed". Snapshots are written once per committed
  mutation and never modified.

CRITICAL INVARIANTS:
  1. IMMUTABLE: Once written, a snapshot is never updated or deleted.
  2. CONTIGUOUS: The ledger for a document holds exactly one snapshot per
     version from 1 to the current document version. No gaps, no repeats,
     regardless of how many reverts occurred.
  3. FROZEN PRICES: Dynamic percent-of-total lines record their resolved
     unit price at write time, so a later revert is deterministic.

SEE ALSO:
  - ledger.go: Append/read access enforcing contiguity
  - revert.go: Reconstruction of live state from a snapshot
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is the recorded state of a document at one version.
type Snapshot struct {
	ID         SnapshotID
	DocumentID DocumentID
	Version    int64
	Action     ActionType

	// Description is optional human-readable context, e.g.
	// "reverted to version 3" or "2 added, 1 edited".
	Description string

	// DerivedRecordID links invoice/receive snapshots to the record they
	// created.
	DerivedRecordID *DerivedRecordID

	// Status is the document status as of this version. Restored by revert
	// along with the line states.
	Status Status

	CreatedAt time.Time

	Lines []LineState
}

// Line returns the recorded state for a line id, or nil.
func (s *Snapshot) Line(id LineItemID) *LineState {
	for i := range s.Lines {
		if s.Lines[i].LineItemID == id {
			return &s.Lines[i]
		}
	}
	return nil
}

// LiveLines returns the recorded states excluding deleted-flagged entries.
func (s *Snapshot) LiveLines() []LineState {
	var out []LineState
	for _, ls := range s.Lines {
		if !ls.IsDeleted {
			out = append(out, ls)
		}
	}
	return out
}

// =============================================================================
// LINE STATE - One line item frozen at a version
// =============================================================================

// LineState is a full copy of one line item's fields as of a version.
// IsDeleted marks lines that were removed by the mutation that produced
// this version; the live store simply no longer contains them.
type LineState struct {
	LineItemID  LineItemID
	TypeID      string // item type id in frozen string form
	Description string
	CatalogRef  string

	Quantity     Qty
	QtyPending   Qty
	QtyFulfilled Qty

	// UnitPrice is the resolved price: for percent-of-total lines this is
	// the effective price computed against siblings at write time, frozen.
	UnitPrice      Money
	DiscountCodeID string
	PercentOfTotal *decimal.Decimal

	IsDeleted bool
}

// FreezeLine captures a live line item into a LineState. Dynamic prices
// are resolved against the supplied siblings before freezing.
func FreezeLine(li LineItem, siblings []LineItem) LineState {
	return LineState{
		LineItemID:     li.ID,
		TypeID:         li.Type.ItemTypeID(),
		Description:    li.Description,
		CatalogRef:     li.CatalogRef,
		Quantity:       li.Quantity,
		QtyPending:     li.QtyPending,
		QtyFulfilled:   li.QtyFulfilled,
		UnitPrice:      ResolveUnitPrice(li, siblings),
		DiscountCodeID: li.DiscountCodeID,
		PercentOfTotal: li.PercentOfTotal,
	}
}

// Thaw reconstructs a live line item from the frozen state. Pending and
// fulfilled quantities are NOT copied verbatim; callers recompute them
// (see revert.go) so fulfillments that survive a revert stay consistent.
func (ls LineState) Thaw(docID DocumentID, kind string) LineItem {
	return LineItem{
		ID:             ls.LineItemID,
		DocumentID:     docID,
		Type:           GetOrCreateItemType(kind, ls.TypeID),
		Description:    ls.Description,
		CatalogRef:     ls.CatalogRef,
		Quantity:       ls.Quantity,
		UnitPrice:      ls.UnitPrice,
		DiscountCodeID: ls.DiscountCodeID,
		PercentOfTotal: ls.PercentOfTotal,
	}
}
