/*
Package purchase implements the Purchase Order instantiation of the
document engine.

PURPOSE:
  Demonstrates that the generic engine is not quote-shaped: the same
  staging/commit/snapshot/revert machinery drives purchase orders with a
  different item-type set and a different status machine.

KEY DIFFERENCES FROM QUOTES:
  1. Item types: part and misc only - no labor on a purchase order.
  2. Derived records are Receivings, not Invoices. A receiving has no
     payment lifecycle; it is active until (possibly) voided.
  3. Fulfillment drives status: receiving every pending unit
     auto-transitions the order to Received as a side effect of the
     receiving creation, not as a separate staged step. A partial
     receiving moves a Sent order to PartiallyReceived.

SEE ALSO:
  - quote/: The sibling instantiation
  - generic/: The shared engine
*/
package purchase

import "github.com/warp/document-engine/generic"

// Kind is the profile key for purchase orders.
const Kind = "purchase_order"

// =============================================================================
// PURCHASE ORDER ITEM TYPES
// =============================================================================

// Item is the concrete item type for the purchase domain.
// Implements generic.ItemType.
type Item string

func (i Item) ItemTypeID() string   { return string(i) }
func (i Item) ItemTypeKind() string { return Kind }

// Compile-time check that Item implements generic.ItemType
var _ generic.ItemType = Item("")

const (
	ItemPart Item = "part"
	ItemMisc Item = "misc"
)

func init() {
	generic.RegisterItemType(ItemPart)
	generic.RegisterItemType(ItemMisc)
}

// =============================================================================
// STATUSES
// =============================================================================

// Purchase order statuses.
const (
	StatusDraft             generic.Status = "draft"
	StatusSent              generic.Status = "sent"
	StatusPartiallyReceived generic.Status = "partially_received"
	StatusReceived          generic.Status = "received"
	StatusClosed            generic.Status = "closed"
)

// ReceivingActive is the only receiving status; receivings have no payment
// lifecycle and are voided through VoidedAt, never through a status change.
const ReceivingActive generic.Status = "active"
