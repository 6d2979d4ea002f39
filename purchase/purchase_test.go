package purchase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/document-engine/generic"
	"github.com/warp/document-engine/purchase"
	"github.com/warp/document-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestEngine(t *testing.T) *generic.Engine {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return purchase.NewEngine(store)
}

func newSentPO(t *testing.T, eng *generic.Engine) *generic.Document {
	t.Helper()
	ctx := context.Background()
	doc, err := eng.CreateDocument(ctx, generic.NewDocumentSpec{
		Number: "PO-100",
		Status: purchase.StatusDraft,
		Lines: []generic.AddSpec{
			{Type: purchase.ItemPart, Description: "Bolts", CatalogRef: "B-1", Quantity: generic.NewQtyFromInt(100), UnitPrice: generic.NewMoney(0.10)},
			{Type: purchase.ItemPart, Description: "Plates", CatalogRef: "P-1", Quantity: generic.NewQtyFromInt(10), UnitPrice: generic.NewMoney(12)},
		},
	})
	require.NoError(t, err)

	doc, err = eng.ChangeStatus(ctx, doc.ID, doc.Version, purchase.StatusSent)
	require.NoError(t, err)
	return doc
}

// =============================================================================
// ITEM TYPES
// =============================================================================

func TestPO_ItemTypes(t *testing.T) {
	p := purchase.Profile{}
	assert.True(t, p.AllowsItemType(purchase.ItemPart))
	assert.True(t, p.AllowsItemType(purchase.ItemMisc))

	// Labor is a quote concept; purchase orders track goods.
	labor := generic.GetOrCreateItemType("quote", "labor")
	assert.False(t, p.AllowsItemType(labor))
}

// =============================================================================
// RECEIPT STATE MACHINE
// =============================================================================

func TestPO_PartialReceiving_MovesToPartiallyReceived(t *testing.T) {
	// GIVEN: A sent PO
	// WHEN: Receiving some bolts
	// THEN: Status auto-transitions to partially_received

	eng := newTestEngine(t)
	ctx := context.Background()
	doc := newSentPO(t, eng)

	rec, err := eng.CreateDerivedRecord(ctx, doc.ID, []generic.FulfillmentEntry{
		{LineItemID: doc.Lines[0].ID, Quantity: generic.NewQtyFromInt(40)},
	})
	require.NoError(t, err)
	assert.Equal(t, purchase.ReceivingActive, rec.Status)

	fresh, err := eng.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, purchase.StatusPartiallyReceived, fresh.Status)
}

func TestPO_CompletingReceipt_MovesToReceived(t *testing.T) {
	// GIVEN: A sent PO received across two shipments
	// WHEN: The second shipment clears every pending line
	// THEN: Status auto-transitions to received

	eng := newTestEngine(t)
	ctx := context.Background()
	doc := newSentPO(t, eng)

	_, err := eng.CreateDerivedRecord(ctx, doc.ID, []generic.FulfillmentEntry{
		{LineItemID: doc.Lines[0].ID, Quantity: generic.NewQtyFromInt(100)},
		{LineItemID: doc.Lines[1].ID, Quantity: generic.NewQtyFromInt(4)},
	})
	require.NoError(t, err)

	mid, err := eng.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, purchase.StatusPartiallyReceived, mid.Status)

	_, err = eng.CreateDerivedRecord(ctx, doc.ID, []generic.FulfillmentEntry{
		{LineItemID: doc.Lines[1].ID, Quantity: generic.NewQtyFromInt(6)},
	})
	require.NoError(t, err)

	fresh, err := eng.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, purchase.StatusReceived, fresh.Status)
	assert.True(t, fresh.FullyFulfilled())
}

func TestPO_SingleCompleteReceiving_SkipsPartial(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	doc := newSentPO(t, eng)

	_, err := eng.CreateDerivedRecord(ctx, doc.ID, []generic.FulfillmentEntry{
		{LineItemID: doc.Lines[0].ID, Quantity: generic.NewQtyFromInt(100)},
		{LineItemID: doc.Lines[1].ID, Quantity: generic.NewQtyFromInt(10)},
	})
	require.NoError(t, err)

	fresh, err := eng.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, purchase.StatusReceived, fresh.Status)
}

func TestPO_StatusTransitions(t *testing.T) {
	p := purchase.Profile{}

	assert.True(t, p.CanTransition(purchase.StatusDraft, purchase.StatusSent))
	assert.True(t, p.CanTransition(purchase.StatusSent, purchase.StatusClosed))
	assert.True(t, p.CanTransition(purchase.StatusReceived, purchase.StatusClosed))

	// received/partially_received come only from the receipt automation.
	assert.False(t, p.CanTransition(purchase.StatusSent, purchase.StatusReceived))
	assert.False(t, p.CanTransition(purchase.StatusSent, purchase.StatusPartiallyReceived))
	assert.False(t, p.CanTransition(purchase.StatusClosed, purchase.StatusSent))
}

// =============================================================================
// RECEIVINGS
// =============================================================================

func TestPO_ReceivingsHaveNoStatusTransitions(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	doc := newSentPO(t, eng)

	rec, err := eng.CreateDerivedRecord(ctx, doc.ID, []generic.FulfillmentEntry{
		{LineItemID: doc.Lines[0].ID, Quantity: generic.NewQtyFromInt(10)},
	})
	require.NoError(t, err)

	_, err = eng.UpdateDerivedRecordStatus(ctx, rec.ID, "paid")
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)
}

// =============================================================================
// REVERT
// =============================================================================

func TestPO_RevertUnwindsReceiptStatus(t *testing.T) {
	// GIVEN: A PO fully received via one receiving (v3)
	// WHEN: Reverting to the sent version
	// THEN: The receiving is voided, quantities return to pending, and the
	//       status comes back from the target snapshot

	eng := newTestEngine(t)
	ctx := context.Background()
	doc := newSentPO(t, eng) // version 2, status sent

	rec, err := eng.CreateDerivedRecord(ctx, doc.ID, []generic.FulfillmentEntry{
		{LineItemID: doc.Lines[0].ID, Quantity: generic.NewQtyFromInt(100)},
		{LineItemID: doc.Lines[1].ID, Quantity: generic.NewQtyFromInt(10)},
	})
	require.NoError(t, err)

	reverted, err := eng.Revert(ctx, doc.ID, 2, 3)
	require.NoError(t, err)

	assert.Equal(t, purchase.StatusSent, reverted.Status)
	for _, li := range reverted.Lines {
		assert.True(t, li.QtyFulfilled.IsZero())
		assert.True(t, li.QtyPending.Equal(li.Quantity))
	}

	voided, err := eng.DerivedRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, voided.Voided())
}
