package purchase

import "github.com/warp/document-engine/generic"

// =============================================================================
// PURCHASE ORDER PROFILE
// =============================================================================

// Profile wires purchase-order semantics into the generic engine.
type Profile struct{}

var _ generic.Profile = Profile{}

func (Profile) Kind() string                         { return Kind }
func (Profile) DerivedAction() generic.ActionType    { return generic.ActionReceive }
func (Profile) DerivedLabel() string                 { return "receiving" }
func (Profile) InitialDerivedStatus() generic.Status { return ReceivingActive }

func (Profile) AllowsItemType(t generic.ItemType) bool {
	if t.ItemTypeKind() != Kind {
		return false
	}
	switch Item(t.ItemTypeID()) {
	case ItemPart, ItemMisc:
		return true
	}
	return false
}

var poTransitions = map[generic.Status][]generic.Status{
	StatusDraft:    {StatusSent},
	StatusSent:     {StatusClosed},
	StatusReceived: {StatusClosed},
}

func (Profile) CanTransition(from, to generic.Status) bool {
	for _, legal := range poTransitions[from] {
		if legal == to {
			return true
		}
	}
	return false
}

// CanTransitionDerived: receivings have no status transitions at all.
func (Profile) CanTransitionDerived(_, _ generic.Status) bool { return false }

// AfterFulfillment implements the receipt state machine. Receiving the
// last pending unit flips the order to Received; a partial receiving moves
// a Sent order to PartiallyReceived. Already-terminal statuses are left
// alone.
func (Profile) AfterFulfillment(current generic.Status, fullyFulfilled bool) generic.Status {
	switch current {
	case StatusSent, StatusPartiallyReceived:
		if fullyFulfilled {
			return StatusReceived
		}
		return StatusPartiallyReceived
	default:
		return current
	}
}

// =============================================================================
// ENGINE CONSTRUCTOR
// =============================================================================

// NewEngine builds a document engine for purchase orders.
func NewEngine(store generic.TxStore, opts ...generic.Option) *generic.Engine {
	return generic.NewEngine(store, Profile{}, opts...)
}
