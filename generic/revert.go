/*
revert.go - Revert preview and cascading execution

PURPOSE:
  Rolls a document back to the content of an earlier snapshot. Operates in
  two phases:

  PREVIEW (pure, read-only):
    1. Diff the live line items against the target snapshot's recorded
       states, producing a field-level change summary for confirmation UI.
    2. Determine which derived records must be voided: every record whose
       originating version is greater than the target and which is not
       already voided. A record created after the target consumed quantity
       that ceases to exist once the document rolls back, so it cannot
       remain valid.

  EXECUTE (one transaction):
    1. Re-check the document version against the one the preview was
       computed from; any advance is a conflict and forces a re-preview.
    2. Void the cascade set, reversing each record's quantity effect back
       onto pending. Already-voided records are skipped.
    3. Reconstruct the live store to the target snapshot's content.
       Pending/fulfilled are recomputed from the restored quantity and the
       post-cascade fulfilled totals - NOT copied from the snapshot - so
       fulfillments made before the target and still unvoided stay
       consistent.
    4. Append an ActionRevert snapshot. The version only goes up: reverting
       to version 3 from version 7 produces version 8 whose content
       matches version 3.

SEE ALSO:
  - snapshot.go: LineState freezing/thawing
  - engine.go: The same Engine struct; commit-side protocols
*/
package generic

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// PREVIEW RESULT
// =============================================================================

// RevertPreview is what the user confirms before a revert executes.
type RevertPreview struct {
	DocumentID     DocumentID
	CurrentVersion int64
	TargetVersion  int64

	Changes       []FieldChange
	RecordsToVoid []RecordToVoid
}

// FieldChange is one human-readable difference between the live document
// and the target snapshot.
type FieldChange struct {
	LineItemID  LineItemID
	Description string // line description for display

	// Kind is "modified", "removed" (line will be removed by the revert)
	// or "restored" (line deleted after the target will be recreated).
	Kind string

	Field string // "quantity", "unit_price", "discount", "description", "percent_of_total"; empty for removed/restored
	From  string
	To    string
}

// RecordToVoid summarizes one derived record the cascade will void.
type RecordToVoid struct {
	ID              DerivedRecordID
	Label           string // "invoice" or "receiving"
	Status          Status
	CreatedAt       time.Time
	SnapshotVersion int64
	QtyConsumed     Qty // total quantity the void will restore to pending
}

// =============================================================================
// PREVIEW
// =============================================================================

// PreviewRevert computes the change summary and cascade set for rolling
// back to targetVersion. Mutates nothing.
func (e *Engine) PreviewRevert(ctx context.Context, docID DocumentID, targetVersion int64) (*RevertPreview, error) {
	doc, err := e.store.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if targetVersion < 1 || targetVersion > doc.Version {
		return nil, &InvalidTargetVersionError{DocumentID: docID, Target: targetVersion, Current: doc.Version}
	}

	snap, err := NewSnapshotLedger(e.store).Get(ctx, docID, targetVersion)
	if err != nil {
		return nil, err
	}

	preview := &RevertPreview{
		DocumentID:     docID,
		CurrentVersion: doc.Version,
		TargetVersion:  targetVersion,
		Changes:        diffAgainstSnapshot(doc, snap),
	}

	records, err := e.store.ListDerivedRecords(ctx, docID)
	if err != nil {
		return nil, err
	}
	for i := range records {
		rec := &records[i]
		if rec.SnapshotVersion <= targetVersion || rec.Voided() {
			continue
		}
		total := ZeroQty()
		for _, dl := range rec.Lines {
			total = total.Add(dl.QtyThisRecord)
		}
		preview.RecordsToVoid = append(preview.RecordsToVoid, RecordToVoid{
			ID:              rec.ID,
			Label:           e.profile.DerivedLabel(),
			Status:          rec.Status,
			CreatedAt:       rec.CreatedAt,
			SnapshotVersion: rec.SnapshotVersion,
			QtyConsumed:     total,
		})
	}
	return preview, nil
}

// diffAgainstSnapshot compares live lines to the target's recorded states.
// Pending/fulfilled counters are derived values and deliberately excluded.
func diffAgainstSnapshot(doc *Document, snap *Snapshot) []FieldChange {
	var changes []FieldChange

	targetByID := make(map[LineItemID]LineState)
	for _, ls := range snap.LiveLines() {
		targetByID[ls.LineItemID] = ls
	}

	for _, li := range doc.Lines {
		ls, ok := targetByID[li.ID]
		if !ok {
			changes = append(changes, FieldChange{
				LineItemID:  li.ID,
				Description: li.Description,
				Kind:        "removed",
			})
			continue
		}
		changes = append(changes, diffLine(li, ls, doc.Lines)...)
	}

	liveIDs := make(map[LineItemID]bool, len(doc.Lines))
	for _, li := range doc.Lines {
		liveIDs[li.ID] = true
	}
	for _, ls := range snap.LiveLines() {
		if !liveIDs[ls.LineItemID] {
			changes = append(changes, FieldChange{
				LineItemID:  ls.LineItemID,
				Description: ls.Description,
				Kind:        "restored",
			})
		}
	}
	return changes
}

func diffLine(li LineItem, ls LineState, siblings []LineItem) []FieldChange {
	var out []FieldChange
	add := func(field, from, to string) {
		out = append(out, FieldChange{
			LineItemID:  li.ID,
			Description: li.Description,
			Kind:        "modified",
			Field:       field,
			From:        from,
			To:          to,
		})
	}

	if !li.Quantity.Equal(ls.Quantity) {
		add("quantity", li.Quantity.String(), ls.Quantity.String())
	}
	if live := ResolveUnitPrice(li, siblings); !live.Equal(ls.UnitPrice) {
		add("unit_price", live.String(), ls.UnitPrice.String())
	}
	if li.DiscountCodeID != ls.DiscountCodeID {
		add("discount", li.DiscountCodeID, ls.DiscountCodeID)
	}
	if li.Description != ls.Description {
		add("description", li.Description, ls.Description)
	}
	if !percentEqual(li.PercentOfTotal, ls.PercentOfTotal) {
		add("percent_of_total", percentString(li.PercentOfTotal), percentString(ls.PercentOfTotal))
	}
	return out
}

func percentString(p *decimal.Decimal) string {
	if p == nil {
		return ""
	}
	return p.String() + "%"
}

// =============================================================================
// EXECUTE
// =============================================================================

// Revert rolls the document back to targetVersion's content.
// expectedVersion is the version the confirmed preview was computed
// against; a mismatch is a conflict and requires a fresh preview.
func (e *Engine) Revert(ctx context.Context, docID DocumentID, targetVersion, expectedVersion int64) (*Document, error) {
	var result *Document
	var voided int

	err := e.store.WithTx(ctx, func(s Store) error {
		doc, err := s.GetDocument(ctx, docID)
		if err != nil {
			return err
		}
		if doc.Version != expectedVersion {
			return &VersionConflictError{DocumentID: docID, Expected: expectedVersion, Actual: doc.Version}
		}
		if targetVersion < 1 || targetVersion > doc.Version {
			return &InvalidTargetVersionError{DocumentID: docID, Target: targetVersion, Current: doc.Version}
		}

		ledger := NewSnapshotLedger(s)
		snap, err := ledger.Get(ctx, docID, targetVersion)
		if err != nil {
			return err
		}

		records, err := s.ListDerivedRecords(ctx, docID)
		if err != nil {
			return err
		}
		var toVoid []*DerivedRecord
		for i := range records {
			rec := &records[i]
			if rec.SnapshotVersion > targetVersion && !rec.Voided() {
				toVoid = append(toVoid, rec)
			}
		}

		// Post-cascade fulfilled totals per line. Records that predate the
		// target (or are already voided) keep their effect.
		fulfilled := make(map[LineItemID]Qty, len(doc.Lines))
		for _, li := range doc.Lines {
			fulfilled[li.ID] = li.QtyFulfilled
		}
		for _, rec := range toVoid {
			for _, dl := range rec.Lines {
				fulfilled[dl.LineItemID] = fulfilled[dl.LineItemID].Sub(dl.QtyThisRecord)
			}
		}
		for id, f := range fulfilled {
			if f.IsNegative() {
				return fmt.Errorf("revert cascade drove line %d fulfilled negative: %s", id, f)
			}
		}

		now := e.now().UTC()
		newVersion := doc.Version + 1
		newSnapID := SnapshotID(uuid.NewString())

		liveByID := make(map[LineItemID]LineItem, len(doc.Lines))
		for _, li := range doc.Lines {
			liveByID[li.ID] = li
		}

		// Reconstruct to the target's content. Quantity/price/discount come
		// from the snapshot; pending is recomputed against the surviving
		// fulfilled total.
		var restored []LineItem
		targetIDs := make(map[LineItemID]bool)
		for _, ls := range snap.LiveLines() {
			targetIDs[ls.LineItemID] = true

			f := fulfilled[ls.LineItemID] // zero value for recreated lines
			pending := ls.Quantity.Sub(f)
			if pending.IsNegative() {
				return &QuantityViolationError{
					LineItemID: ls.LineItemID,
					Rule:       "restored quantity is below the surviving fulfilled amount",
					Quantity:   ls.Quantity,
					Fulfilled:  f,
				}
			}

			li := ls.Thaw(docID, doc.Kind)
			li.QtyFulfilled = f
			li.QtyPending = pending

			if _, exists := liveByID[ls.LineItemID]; exists {
				if err := s.UpdateLineItem(ctx, li); err != nil {
					return err
				}
			} else {
				if err := s.InsertLineItemWithID(ctx, li); err != nil {
					return err
				}
			}
			restored = append(restored, li)
		}

		// Lines added after the target (or deleted-flagged in it) go away.
		for _, li := range doc.Lines {
			if !targetIDs[li.ID] {
				if err := s.DeleteLineItem(ctx, li.ID); err != nil {
					return err
				}
			}
		}

		doc.Lines = restored
		doc.Status = snap.Status

		revSnap := e.buildSnapshot(doc, nil, ActionRevert,
			fmt.Sprintf("reverted to version %d", targetVersion), nil, now)
		revSnap.ID = newSnapID
		revSnap.Version = newVersion
		if err := ledger.Append(ctx, revSnap); err != nil {
			return err
		}

		for _, rec := range toVoid {
			if err := s.VoidDerivedRecord(ctx, rec.ID, now, newSnapID); err != nil {
				return err
			}
		}

		if err := s.UpdateDocumentHeader(ctx, docID, doc.Status, newVersion, now); err != nil {
			return err
		}

		doc.Version = newVersion
		doc.UpdatedAt = now
		result = doc
		voided = len(toVoid)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("revert executed",
		zap.String("kind", e.profile.Kind()),
		zap.String("document_id", string(docID)),
		zap.Int64("target_version", targetVersion),
		zap.Int64("version", result.Version),
		zap.Int("records_voided", voided))
	return result, nil
}
