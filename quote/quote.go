package quote

import "github.com/warp/document-engine/generic"

// =============================================================================
// QUOTE PROFILE
// =============================================================================

// Profile wires quote semantics into the generic engine: invoice snapshots,
// quote item types, and the quote status machine. Quotes never change
// status as a fulfillment side effect - invoicing a quote fully does not
// accept it.
type Profile struct{}

var _ generic.Profile = Profile{}

func (Profile) Kind() string                         { return Kind }
func (Profile) DerivedAction() generic.ActionType    { return generic.ActionInvoice }
func (Profile) DerivedLabel() string                 { return "invoice" }
func (Profile) InitialDerivedStatus() generic.Status { return InvoiceSent }

func (Profile) AllowsItemType(t generic.ItemType) bool {
	if t.ItemTypeKind() != Kind {
		return false
	}
	switch Item(t.ItemTypeID()) {
	case ItemLabor, ItemPart, ItemMisc:
		return true
	}
	return false
}

// quoteTransitions is the closed quote status machine.
var quoteTransitions = map[generic.Status][]generic.Status{
	StatusDraft: {StatusSent},
	StatusSent:  {StatusAccepted, StatusDeclined, StatusExpired},
}

func (Profile) CanTransition(from, to generic.Status) bool {
	for _, legal := range quoteTransitions[from] {
		if legal == to {
			return true
		}
	}
	return false
}

// CanTransitionDerived allows exactly one invoice transition: Sent -> Paid.
func (Profile) CanTransitionDerived(from, to generic.Status) bool {
	return from == InvoiceSent && to == InvoicePaid
}

// AfterFulfillment: quotes keep their status regardless of invoicing.
func (Profile) AfterFulfillment(current generic.Status, _ bool) generic.Status {
	return current
}

// =============================================================================
// ENGINE CONSTRUCTOR
// =============================================================================

// NewEngine builds a document engine for quotes.
func NewEngine(store generic.TxStore, opts ...generic.Option) *generic.Engine {
	return generic.NewEngine(store, Profile{}, opts...)
}
