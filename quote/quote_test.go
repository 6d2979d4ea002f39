package quote_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/document-engine/generic"
	"github.com/warp/document-engine/quote"
	"github.com/warp/document-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestEngine(t *testing.T) *generic.Engine {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return quote.NewEngine(store)
}

func newQuote(t *testing.T, eng *generic.Engine) *generic.Document {
	t.Helper()
	doc, err := eng.CreateDocument(context.Background(), generic.NewDocumentSpec{
		Number: "Q-100",
		Status: quote.StatusDraft,
		Lines: []generic.AddSpec{
			{Type: quote.ItemLabor, Description: "Install labor", Quantity: generic.NewQtyFromInt(10), UnitPrice: generic.NewMoney(95)},
			{Type: quote.ItemPart, Description: "Bracket", CatalogRef: "BRK-1", Quantity: generic.NewQtyFromInt(4), UnitPrice: generic.NewMoney(18.50)},
		},
	})
	require.NoError(t, err)
	return doc
}

// =============================================================================
// ITEM TYPES
// =============================================================================

func TestQuote_AllowsOwnItemTypes(t *testing.T) {
	p := quote.Profile{}
	assert.True(t, p.AllowsItemType(quote.ItemLabor))
	assert.True(t, p.AllowsItemType(quote.ItemPart))
	assert.True(t, p.AllowsItemType(quote.ItemMisc))
}

func TestQuote_RejectsForeignItemTypes(t *testing.T) {
	p := quote.Profile{}
	foreign := generic.GetOrCreateItemType("purchase_order", "part")
	assert.False(t, p.AllowsItemType(foreign))
}

// =============================================================================
// STATUS MACHINE
// =============================================================================

func TestQuote_StatusTransitions(t *testing.T) {
	p := quote.Profile{}

	assert.True(t, p.CanTransition(quote.StatusDraft, quote.StatusSent))
	assert.True(t, p.CanTransition(quote.StatusSent, quote.StatusAccepted))
	assert.True(t, p.CanTransition(quote.StatusSent, quote.StatusDeclined))
	assert.True(t, p.CanTransition(quote.StatusSent, quote.StatusExpired))

	// Accepted/declined/expired are terminal; drafts cannot jump ahead.
	assert.False(t, p.CanTransition(quote.StatusDraft, quote.StatusAccepted))
	assert.False(t, p.CanTransition(quote.StatusAccepted, quote.StatusSent))
	assert.False(t, p.CanTransition(quote.StatusSent, quote.StatusDraft))
}

func TestQuote_InvoicingDoesNotChangeQuoteStatus(t *testing.T) {
	// GIVEN: A sent quote
	// WHEN: Invoicing every line in full
	// THEN: The quote stays sent; acceptance is a human decision

	eng := newTestEngine(t)
	ctx := context.Background()
	doc := newQuote(t, eng)

	doc, err := eng.ChangeStatus(ctx, doc.ID, doc.Version, quote.StatusSent)
	require.NoError(t, err)

	_, err = eng.CreateDerivedRecord(ctx, doc.ID, []generic.FulfillmentEntry{
		{LineItemID: doc.Lines[0].ID, Quantity: generic.NewQtyFromInt(10)},
		{LineItemID: doc.Lines[1].ID, Quantity: generic.NewQtyFromInt(4)},
	})
	require.NoError(t, err)

	fresh, err := eng.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, quote.StatusSent, fresh.Status)
	assert.True(t, fresh.FullyFulfilled())
}

// =============================================================================
// INVOICES
// =============================================================================

func TestQuote_InvoiceLifecycle(t *testing.T) {
	// GIVEN: A sent quote invoiced for part of its labor
	// WHEN: Marking the invoice paid, then trying to unmark it
	// THEN: Sent -> paid succeeds; paid is terminal

	eng := newTestEngine(t)
	ctx := context.Background()
	doc := newQuote(t, eng)

	doc, err := eng.ChangeStatus(ctx, doc.ID, doc.Version, quote.StatusSent)
	require.NoError(t, err)

	inv, err := eng.CreateDerivedRecord(ctx, doc.ID, []generic.FulfillmentEntry{
		{LineItemID: doc.Lines[0].ID, Quantity: generic.NewQtyFromInt(6)},
	})
	require.NoError(t, err)
	assert.Equal(t, quote.InvoiceSent, inv.Status)

	paid, err := eng.UpdateDerivedRecordStatus(ctx, inv.ID, quote.InvoicePaid)
	require.NoError(t, err)
	assert.Equal(t, quote.InvoicePaid, paid.Status)

	_, err = eng.UpdateDerivedRecordStatus(ctx, inv.ID, quote.InvoiceSent)
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)
}

func TestQuote_InvoicePriceOverride(t *testing.T) {
	// GIVEN: A labor line priced at 95
	// WHEN: Invoicing with a negotiated override of 90
	// THEN: The invoice line freezes 90; the quote line keeps 95

	eng := newTestEngine(t)
	ctx := context.Background()
	doc := newQuote(t, eng)

	override := generic.NewMoney(90)
	inv, err := eng.CreateDerivedRecord(ctx, doc.ID, []generic.FulfillmentEntry{
		{LineItemID: doc.Lines[0].ID, Quantity: generic.NewQtyFromInt(6), PriceOverride: &override},
	})
	require.NoError(t, err)

	require.Len(t, inv.Lines, 1)
	assert.True(t, inv.Lines[0].UnitPrice.Equal(generic.NewMoney(90)))

	fresh, err := eng.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, fresh.Line(doc.Lines[0].ID).UnitPrice.Equal(generic.NewMoney(95)))
}

// =============================================================================
// END TO END (SQLITE-BACKED)
// =============================================================================

func TestQuote_EditAfterInvoiceThenRevert(t *testing.T) {
	// GIVEN: A quote invoiced for 6 of 10 hours, then edited to 12
	// WHEN: Reverting to the pre-invoice version
	// THEN: The invoice is voided, pending returns to 10, and the audit
	//       trail records every step

	eng := newTestEngine(t)
	ctx := context.Background()
	doc := newQuote(t, eng)
	laborID := doc.Lines[0].ID

	inv, err := eng.CreateDerivedRecord(ctx, doc.ID, []generic.FulfillmentEntry{
		{LineItemID: laborID, Quantity: generic.NewQtyFromInt(6)},
	})
	require.NoError(t, err)

	q := generic.NewQtyFromInt(12)
	_, err = eng.Commit(ctx, doc.ID, 2, []generic.Change{
		{Action: generic.ChangeEdit, LineItemID: laborID, Edit: &generic.EditFields{Quantity: &q}},
	})
	require.NoError(t, err)

	preview, err := eng.PreviewRevert(ctx, doc.ID, 1)
	require.NoError(t, err)
	require.Len(t, preview.RecordsToVoid, 1)
	assert.Equal(t, "invoice", preview.RecordsToVoid[0].Label)

	reverted, err := eng.Revert(ctx, doc.ID, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4), reverted.Version)

	labor := reverted.Line(laborID)
	assert.True(t, labor.Quantity.Equal(generic.NewQtyFromInt(10)))
	assert.True(t, labor.QtyPending.Equal(generic.NewQtyFromInt(10)))
	assert.True(t, labor.QtyFulfilled.IsZero())

	voided, err := eng.DerivedRecord(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, voided.Voided())

	snaps, err := eng.Snapshots(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, snaps, 4)
	assert.Equal(t, generic.ActionCreate, snaps[0].Action)
	assert.Equal(t, generic.ActionInvoice, snaps[1].Action)
	assert.Equal(t, generic.ActionEdit, snaps[2].Action)
	assert.Equal(t, generic.ActionRevert, snaps[3].Action)
}
