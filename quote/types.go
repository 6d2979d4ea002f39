// Package quote implements the Quote instantiation of the document engine.
// Quotes carry labor, part and misc lines; their derived records are
// Invoices, which consume pending quantity and can be voided by a revert.
package quote

import "github.com/warp/document-engine/generic"

// Kind is the profile key for quotes.
const Kind = "quote"

// =============================================================================
// QUOTE ITEM TYPES
// =============================================================================

// Item is the concrete item type for the quote domain.
// Implements generic.ItemType.
type Item string

func (i Item) ItemTypeID() string   { return string(i) }
func (i Item) ItemTypeKind() string { return Kind }

// Compile-time check that Item implements generic.ItemType
var _ generic.ItemType = Item("")

// Item types for quotes. This is the whole set: quotes are the only
// document kind that carries labor lines.
const (
	ItemLabor Item = "labor"
	ItemPart  Item = "part"
	ItemMisc  Item = "misc"
)

// Register all quote item types with the generic registry
func init() {
	generic.RegisterItemType(ItemLabor)
	generic.RegisterItemType(ItemPart)
	generic.RegisterItemType(ItemMisc)
}

// =============================================================================
// STATUSES
// =============================================================================

// Quote statuses.
const (
	StatusDraft    generic.Status = "draft"
	StatusSent     generic.Status = "sent"
	StatusAccepted generic.Status = "accepted"
	StatusDeclined generic.Status = "declined"
	StatusExpired  generic.Status = "expired"
)

// Invoice statuses. Voiding is not a status transition; it is stamped by
// the revert cascade via VoidedAt/VoidedBySnapshotID.
const (
	InvoiceSent generic.Status = "sent"
	InvoicePaid generic.Status = "paid"
)
