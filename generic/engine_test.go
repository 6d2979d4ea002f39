package generic_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/document-engine/generic"
	"github.com/warp/document-engine/generic/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// testItem is a minimal item type for engine tests; domain packages bring
// their own.
type testItem string

func (i testItem) ItemTypeID() string   { return string(i) }
func (i testItem) ItemTypeKind() string { return "testdoc" }

const (
	itemWidget  testItem = "widget"
	itemService testItem = "service"
)

func init() {
	generic.RegisterItemType(itemWidget)
	generic.RegisterItemType(itemService)
}

// testProfile is a permissive document kind: any testdoc item type, a
// single draft -> final transition, invoice-style derived records with a
// sent -> paid transition, and no status automation on fulfillment.
type testProfile struct{}

func (testProfile) Kind() string                           { return "testdoc" }
func (testProfile) DerivedAction() generic.ActionType      { return generic.ActionInvoice }
func (testProfile) DerivedLabel() string                   { return "invoice" }
func (testProfile) InitialDerivedStatus() generic.Status   { return "sent" }
func (testProfile) AllowsItemType(t generic.ItemType) bool { return t.ItemTypeKind() == "testdoc" }

func (testProfile) CanTransition(from, to generic.Status) bool {
	return from == "draft" && to == "final"
}

func (testProfile) CanTransitionDerived(from, to generic.Status) bool {
	return from == "sent" && to == "paid"
}

func (testProfile) AfterFulfillment(current generic.Status, _ bool) generic.Status {
	return current
}

func newTestEngine() *generic.Engine {
	return generic.NewEngine(store.NewTxMemory(), testProfile{})
}

func qty(n int) generic.Qty         { return generic.NewQtyFromInt(n) }
func money(f float64) generic.Money { return generic.NewMoney(f) }

// createTestDoc creates a document with one widget line (quantity 10 at
// 25.00) and one service line (quantity 4 at 100.00).
func createTestDoc(t *testing.T, eng *generic.Engine) *generic.Document {
	t.Helper()
	doc, err := eng.CreateDocument(context.Background(), generic.NewDocumentSpec{
		Number: "DOC-1",
		Status: "draft",
		Lines: []generic.AddSpec{
			{Type: itemWidget, Description: "Widget", Quantity: qty(10), UnitPrice: money(25)},
			{Type: itemService, Description: "Service", Quantity: qty(4), UnitPrice: money(100)},
		},
	})
	require.NoError(t, err)
	return doc
}

func editQty(id generic.LineItemID, n int) generic.Change {
	q := qty(n)
	return generic.Change{Action: generic.ChangeEdit, LineItemID: id, Edit: &generic.EditFields{Quantity: &q}}
}

// =============================================================================
// DOCUMENT CREATION
// =============================================================================

func TestCreateDocument_StartsAtVersionOne(t *testing.T) {
	// GIVEN: A fresh engine
	// WHEN: Creating a document with two lines
	// THEN: Version is 1, pending equals quantity, and one create snapshot exists

	eng := newTestEngine()
	doc := createTestDoc(t, eng)

	assert.Equal(t, int64(1), doc.Version)
	require.Len(t, doc.Lines, 2)
	for _, li := range doc.Lines {
		assert.True(t, li.QtyPending.Equal(li.Quantity), "pending should equal quantity on a fresh line")
		assert.True(t, li.QtyFulfilled.IsZero())
	}

	snaps, err := eng.Snapshots(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, generic.ActionCreate, snaps[0].Action)
	assert.Equal(t, int64(1), snaps[0].Version)
	assert.Len(t, snaps[0].Lines, 2)
}

func TestCreateDocument_RejectsForeignItemType(t *testing.T) {
	// GIVEN: An item type registered for another document kind
	// WHEN: Creating a document with it
	// THEN: The create is rejected

	eng := newTestEngine()
	foreign := generic.GetOrCreateItemType("otherkind", "gadget")

	_, err := eng.CreateDocument(context.Background(), generic.NewDocumentSpec{
		Number: "DOC-X",
		Status: "draft",
		Lines: []generic.AddSpec{
			{Type: foreign, Description: "Gadget", Quantity: qty(1), UnitPrice: money(1)},
		},
	})
	assert.ErrorIs(t, err, generic.ErrItemTypeNotAllowed)
}

// =============================================================================
// COMMIT PROTOCOL
// =============================================================================

func TestCommit_StaleVersion_Rejected(t *testing.T) {
	// GIVEN: A document at version 2 (one committed edit)
	// WHEN: Committing with expectedVersion 1
	// THEN: VersionConflictError, and the document is untouched

	eng := newTestEngine()
	ctx := context.Background()
	doc := createTestDoc(t, eng)

	_, err := eng.Commit(ctx, doc.ID, 1, []generic.Change{editQty(doc.Lines[0].ID, 12)})
	require.NoError(t, err)

	_, err = eng.Commit(ctx, doc.ID, 1, []generic.Change{editQty(doc.Lines[0].ID, 15)})
	assert.ErrorIs(t, err, generic.ErrVersionConflict)

	var conflict *generic.VersionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(1), conflict.Expected)
	assert.Equal(t, int64(2), conflict.Actual)

	fresh, err := eng.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fresh.Version)
	assert.True(t, fresh.Line(doc.Lines[0].ID).Quantity.Equal(qty(12)))
}

func TestCommit_EditAddDelete_SingleVersionBump(t *testing.T) {
	// GIVEN: A document at version 1 with two lines
	// WHEN: Committing a delete, an edit and an add in one change list
	// THEN: Exactly one new version with all three applied

	eng := newTestEngine()
	ctx := context.Background()
	doc := createTestDoc(t, eng)

	add := generic.AddSpec{Type: itemWidget, Description: "Extra widget", Quantity: qty(3), UnitPrice: money(30)}
	changes := []generic.Change{
		{Action: generic.ChangeDelete, LineItemID: doc.Lines[1].ID},
		editQty(doc.Lines[0].ID, 7),
		{Action: generic.ChangeAdd, LineItemID: -1, Add: &add},
	}

	updated, err := eng.Commit(ctx, doc.ID, 1, changes)
	require.NoError(t, err)

	assert.Equal(t, int64(2), updated.Version)
	require.Len(t, updated.Lines, 2)
	assert.Nil(t, updated.Line(doc.Lines[1].ID), "deleted line should be gone")
	assert.True(t, updated.Line(doc.Lines[0].ID).Quantity.Equal(qty(7)))

	var added *generic.LineItem
	for i := range updated.Lines {
		if updated.Lines[i].Description == "Extra widget" {
			added = &updated.Lines[i]
		}
	}
	require.NotNil(t, added)
	assert.Greater(t, int64(added.ID), int64(0), "persisted add should carry a real id")
	assert.True(t, added.QtyPending.Equal(qty(3)))
}

func TestCommit_EditQuantity_RecomputesPending(t *testing.T) {
	// GIVEN: A line with 6 of 10 fulfilled
	// WHEN: Editing quantity to 12
	// THEN: Pending becomes 6 (12 - 6 fulfilled)

	eng := newTestEngine()
	ctx := context.Background()
	doc := createTestDoc(t, eng)
	lineID := doc.Lines[0].ID

	_, err := eng.CreateDerivedRecord(ctx, doc.ID, []generic.FulfillmentEntry{
		{LineItemID: lineID, Quantity: qty(6)},
	})
	require.NoError(t, err)

	doc, err = eng.Get(ctx, doc.ID)
	require.NoError(t, err)

	updated, err := eng.Commit(ctx, doc.ID, doc.Version, []generic.Change{editQty(lineID, 12)})
	require.NoError(t, err)

	line := updated.Line(lineID)
	assert.True(t, line.Quantity.Equal(qty(12)))
	assert.True(t, line.QtyFulfilled.Equal(qty(6)))
	assert.True(t, line.QtyPending.Equal(qty(6)))
	assert.NoError(t, line.CheckConservation())
}

func TestCommit_EditBelowFulfilled_Rejected(t *testing.T) {
	// GIVEN: A line with 6 of 10 fulfilled
	// WHEN: Editing quantity down to 4
	// THEN: QuantityViolationError

	eng := newTestEngine()
	ctx := context.Background()
	doc := createTestDoc(t, eng)
	lineID := doc.Lines[0].ID

	_, err := eng.CreateDerivedRecord(ctx, doc.ID, []generic.FulfillmentEntry{
		{LineItemID: lineID, Quantity: qty(6)},
	})
	require.NoError(t, err)

	doc, err = eng.Get(ctx, doc.ID)
	require.NoError(t, err)

	_, err = eng.Commit(ctx, doc.ID, doc.Version, []generic.Change{editQty(lineID, 4)})
	assert.ErrorIs(t, err, generic.ErrQuantityViolation)
}

func TestCommit_DeleteFulfilledLine_Rejected(t *testing.T) {
	// GIVEN: A line with fulfilled quantity
	// WHEN: Committing a delete of that line
	// THEN: QuantityViolationError; revert is the only way to undo consumption

	eng := newTestEngine()
	ctx := context.Background()
	doc := createTestDoc(t, eng)
	lineID := doc.Lines[0].ID

	_, err := eng.CreateDerivedRecord(ctx, doc.ID, []generic.FulfillmentEntry{
		{LineItemID: lineID, Quantity: qty(2)},
	})
	require.NoError(t, err)

	doc, err = eng.Get(ctx, doc.ID)
	require.NoError(t, err)

	_, err = eng.Commit(ctx, doc.ID, doc.Version, []generic.Change{
		{Action: generic.ChangeDelete, LineItemID: lineID},
	})
	assert.ErrorIs(t, err, generic.ErrQuantityViolation)
}

func TestCommit_DeletedLineKeptInSnapshot(t *testing.T) {
	// GIVEN: A document with two lines
	// WHEN: Committing a delete of one line
	// THEN: The new snapshot still carries the line, flagged deleted

	eng := newTestEngine()
	ctx := context.Background()
	doc := createTestDoc(t, eng)

	_, err := eng.Commit(ctx, doc.ID, 1, []generic.Change{
		{Action: generic.ChangeDelete, LineItemID: doc.Lines[1].ID},
	})
	require.NoError(t, err)

	snaps, err := eng.Snapshots(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	deleted := snaps[1].Line(doc.Lines[1].ID)
	require.NotNil(t, deleted)
	assert.True(t, deleted.IsDeleted)
	assert.Len(t, snaps[1].LiveLines(), 1)
}

func TestCommit_EmptyChangeList_Rejected(t *testing.T) {
	eng := newTestEngine()
	doc := createTestDoc(t, eng)

	_, err := eng.Commit(context.Background(), doc.ID, 1, nil)
	assert.Error(t, err)
}

func TestCommit_UnknownLine_NotFound(t *testing.T) {
	eng := newTestEngine()
	doc := createTestDoc(t, eng)

	_, err := eng.Commit(context.Background(), doc.ID, 1, []generic.Change{editQty(9999, 5)})
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestCommit_EditAndDeleteSameLine_RejectedWhole(t *testing.T) {
	// GIVEN: A document with a line
	// WHEN: One change list both edits the line and deletes it, in either order
	// THEN: Deletes apply before edits, so the edit targets a removed line
	//       and the whole commit is rejected with nothing applied

	eng := newTestEngine()
	doc := createTestDoc(t, eng)
	lineID := doc.Lines[0].ID

	lists := [][]generic.Change{
		{editQty(lineID, 7), {Action: generic.ChangeDelete, LineItemID: lineID}},
		{{Action: generic.ChangeDelete, LineItemID: lineID}, editQty(lineID, 7)},
	}
	for _, changes := range lists {
		_, err := eng.Commit(context.Background(), doc.ID, 1, changes)
		assert.ErrorIs(t, err, generic.ErrNotFound)
	}

	got, err := eng.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version, "rejected commit must not bump the version")
	require.NotNil(t, got.Line(lineID))
	assert.True(t, got.Line(lineID).Quantity.Equal(qty(10)))

	snaps, err := eng.Snapshots(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestCommit_DeleteThenDeleteSameLine_Rejected(t *testing.T) {
	eng := newTestEngine()
	doc := createTestDoc(t, eng)
	lineID := doc.Lines[0].ID

	_, err := eng.Commit(context.Background(), doc.ID, 1, []generic.Change{
		{Action: generic.ChangeDelete, LineItemID: lineID},
		{Action: generic.ChangeDelete, LineItemID: lineID},
	})
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestCommit_EmptyEdit_ClientError(t *testing.T) {
	eng := newTestEngine()
	doc := createTestDoc(t, eng)

	_, err := eng.Commit(context.Background(), doc.ID, 1, []generic.Change{
		{Action: generic.ChangeEdit, LineItemID: doc.Lines[0].ID, Edit: &generic.EditFields{}},
	})
	assert.ErrorIs(t, err, generic.ErrInvalidChange)
	assert.True(t, generic.IsClientError(err))
}

func TestCommit_AddsOnly_TaggedAsEdit(t *testing.T) {
	// The action tag set has no "add"; an adds-only commit lands as an
	// edit snapshot with the add count in the description.

	eng := newTestEngine()
	doc := createTestDoc(t, eng)

	_, err := eng.Commit(context.Background(), doc.ID, 1, []generic.Change{
		{Action: generic.ChangeAdd, Add: &generic.AddSpec{
			Type: itemWidget, Description: "Extra widget", Quantity: qty(3), UnitPrice: money(25),
		}},
	})
	require.NoError(t, err)

	snaps, err := eng.Snapshots(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, generic.ActionEdit, snaps[1].Action)
	assert.Equal(t, "1 added", snaps[1].Description)
}

// =============================================================================
// DERIVED RECORDS
// =============================================================================

func TestCreateDerivedRecord_ConservesQuantity(t *testing.T) {
	// GIVEN: A line with 10 pending
	// WHEN: Creating a record consuming 6
	// THEN: pending=4, fulfilled=6, and the record freezes the per-line facts

	eng := newTestEngine()
	ctx := context.Background()
	doc := createTestDoc(t, eng)
	lineID := doc.Lines[0].ID

	rec, err := eng.CreateDerivedRecord(ctx, doc.ID, []generic.FulfillmentEntry{
		{LineItemID: lineID, Quantity: qty(6)},
	})
	require.NoError(t, err)

	assert.Equal(t, generic.Status("sent"), rec.Status)
	require.Len(t, rec.Lines, 1)
	assert.True(t, rec.Lines[0].QtyThisRecord.Equal(qty(6)))
	assert.True(t, rec.Lines[0].QtyFulfilledTotal.Equal(qty(6)))
	assert.True(t, rec.Lines[0].QtyPendingAfter.Equal(qty(4)))

	doc, err = eng.Get(ctx, doc.ID)
	require.NoError(t, err)
	line := doc.Line(lineID)
	assert.True(t, line.QtyPending.Equal(qty(4)))
	assert.True(t, line.QtyFulfilled.Equal(qty(6)))
	assert.NoError(t, line.CheckConservation())
	assert.Equal(t, int64(2), doc.Version, "fulfillment appends a snapshot")
}

func TestCreateDerivedRecord_OverPending_Rejected(t *testing.T) {
	eng := newTestEngine()
	doc := createTestDoc(t, eng)

	_, err := eng.CreateDerivedRecord(context.Background(), doc.ID, []generic.FulfillmentEntry{
		{LineItemID: doc.Lines[0].ID, Quantity: qty(11)},
	})
	assert.ErrorIs(t, err, generic.ErrQuantityViolation)
}

func TestCreateDerivedRecord_DuplicateLine_Rejected(t *testing.T) {
	eng := newTestEngine()
	doc := createTestDoc(t, eng)

	_, err := eng.CreateDerivedRecord(context.Background(), doc.ID, []generic.FulfillmentEntry{
		{LineItemID: doc.Lines[0].ID, Quantity: qty(2)},
		{LineItemID: doc.Lines[0].ID, Quantity: qty(3)},
	})
	assert.ErrorIs(t, err, generic.ErrInvalidChange)
	assert.True(t, generic.IsClientError(err))
}

func TestCreateDerivedRecord_SnapshotLinksRecord(t *testing.T) {
	// GIVEN: A document
	// WHEN: Creating a derived record
	// THEN: The appended snapshot carries the record id and the invoice action

	eng := newTestEngine()
	ctx := context.Background()
	doc := createTestDoc(t, eng)

	rec, err := eng.CreateDerivedRecord(ctx, doc.ID, []generic.FulfillmentEntry{
		{LineItemID: doc.Lines[0].ID, Quantity: qty(1)},
	})
	require.NoError(t, err)

	snaps, err := eng.Snapshots(ctx, doc.ID)
	require.NoError(t, err)
	last := snaps[len(snaps)-1]
	assert.Equal(t, generic.ActionInvoice, last.Action)
	require.NotNil(t, last.DerivedRecordID)
	assert.Equal(t, rec.ID, *last.DerivedRecordID)
	assert.Equal(t, last.Version, rec.SnapshotVersion)
}

func TestUpdateDerivedRecordStatus_Transition(t *testing.T) {
	// GIVEN: A sent record
	// WHEN: Transitioning sent -> paid, then paid -> sent
	// THEN: First succeeds, second is an illegal transition

	eng := newTestEngine()
	ctx := context.Background()
	doc := createTestDoc(t, eng)

	rec, err := eng.CreateDerivedRecord(ctx, doc.ID, []generic.FulfillmentEntry{
		{LineItemID: doc.Lines[0].ID, Quantity: qty(1)},
	})
	require.NoError(t, err)

	paid, err := eng.UpdateDerivedRecordStatus(ctx, rec.ID, "paid")
	require.NoError(t, err)
	assert.Equal(t, generic.Status("paid"), paid.Status)

	_, err = eng.UpdateDerivedRecordStatus(ctx, rec.ID, "sent")
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)
}

// =============================================================================
// STATUS CHANGES
// =============================================================================

func TestChangeStatus_LegalAndIllegal(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()
	doc := createTestDoc(t, eng)

	updated, err := eng.ChangeStatus(ctx, doc.ID, 1, "final")
	require.NoError(t, err)
	assert.Equal(t, generic.Status("final"), updated.Status)
	assert.Equal(t, int64(2), updated.Version, "status changes are versioned")

	_, err = eng.ChangeStatus(ctx, doc.ID, 2, "draft")
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)
}

func TestChangeStatus_StaleVersion_Rejected(t *testing.T) {
	eng := newTestEngine()
	doc := createTestDoc(t, eng)

	_, err := eng.ChangeStatus(context.Background(), doc.ID, 5, "final")
	assert.ErrorIs(t, err, generic.ErrVersionConflict)
}

// =============================================================================
// DYNAMIC PRICING
// =============================================================================

func TestPercentOfTotal_ResolvesAgainstFixedLines(t *testing.T) {
	// GIVEN: Fixed lines worth 10*25 + 4*100 = 650, plus a 10% surcharge line
	// WHEN: Resolving the surcharge's unit price
	// THEN: 65.00, and fixed lines resolve to their own unit price

	eng := newTestEngine()
	ctx := context.Background()
	doc := createTestDoc(t, eng)

	pct := generic.MustParseDecimal("10")
	add := generic.AddSpec{
		Type:           itemService,
		Description:    "Surcharge",
		Quantity:       qty(1),
		PercentOfTotal: &pct,
	}
	updated, err := eng.Commit(ctx, doc.ID, 1, []generic.Change{
		{Action: generic.ChangeAdd, LineItemID: -1, Add: &add},
	})
	require.NoError(t, err)

	var surcharge generic.LineItem
	for _, li := range updated.Lines {
		if li.HasDynamicPrice() {
			surcharge = li
		}
	}
	resolved := generic.ResolveUnitPrice(surcharge, updated.Lines)
	assert.True(t, resolved.Value.Equal(decimal.RequireFromString("65")),
		"expected 65, got %s", resolved.Value)

	fixed := generic.ResolveUnitPrice(updated.Lines[0], updated.Lines)
	assert.True(t, fixed.Equal(updated.Lines[0].UnitPrice))
}

func TestPercentOfTotal_FrozenInSnapshot(t *testing.T) {
	// GIVEN: A percent line resolved at commit time
	// WHEN: The fixed lines change later
	// THEN: The old snapshot keeps the old resolved price

	eng := newTestEngine()
	ctx := context.Background()
	doc := createTestDoc(t, eng)

	pct := generic.MustParseDecimal("10")
	add := generic.AddSpec{Type: itemService, Description: "Surcharge", Quantity: qty(1), PercentOfTotal: &pct}
	updated, err := eng.Commit(ctx, doc.ID, 1, []generic.Change{
		{Action: generic.ChangeAdd, LineItemID: -1, Add: &add},
	})
	require.NoError(t, err)

	// Double the widget quantity; the live resolved price moves.
	_, err = eng.Commit(ctx, doc.ID, updated.Version, []generic.Change{editQty(doc.Lines[0].ID, 20)})
	require.NoError(t, err)

	snaps, err := eng.Snapshots(ctx, doc.ID)
	require.NoError(t, err)

	// Version 2 is the snapshot where the surcharge was added at 650 subtotal.
	var frozen *generic.LineState
	for _, ls := range snaps[1].Lines {
		if ls.PercentOfTotal != nil {
			v := ls
			frozen = &v
		}
	}
	require.NotNil(t, frozen)
	assert.True(t, frozen.UnitPrice.Value.Equal(decimal.RequireFromString("65")),
		"snapshot should keep the price resolved at commit time, got %s", frozen.UnitPrice.Value)
}

// =============================================================================
// SNAPSHOT LEDGER
// =============================================================================

func TestSnapshotLedger_RejectsGaps(t *testing.T) {
	// GIVEN: A ledger with version 1 appended
	// WHEN: Appending version 3
	// THEN: ErrVersionGap

	mem := store.NewTxMemory()
	eng := generic.NewEngine(mem, testProfile{})
	doc := createTestDoc(t, eng)

	ledger := generic.NewSnapshotLedger(mem)
	err := ledger.Append(context.Background(), generic.Snapshot{
		ID:         "snap-gap",
		DocumentID: doc.ID,
		Version:    3,
		Action:     generic.ActionEdit,
	})
	assert.ErrorIs(t, err, generic.ErrVersionGap)
}

func TestSnapshotLedger_VerifyContiguous(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()
	doc := createTestDoc(t, eng)

	for i := 0; i < 3; i++ {
		doc2, err := eng.Get(ctx, doc.ID)
		require.NoError(t, err)
		_, err = eng.Commit(ctx, doc.ID, doc2.Version, []generic.Change{editQty(doc.Lines[0].ID, 11+i)})
		require.NoError(t, err)
	}

	snaps, err := eng.Snapshots(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, snaps, 4)
	for i, s := range snaps {
		assert.Equal(t, int64(i+1), s.Version)
	}
}
