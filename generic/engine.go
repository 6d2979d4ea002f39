/*
engine.go - Commit, fulfillment and status-change protocols

PURPOSE:
  The Engine is the authoritative write path for one document kind. It
  turns a flattened change list into an atomic, version-checked mutation
  (the commit protocol), creates derived records that consume pending
  quantity, and applies status changes. Every successful call appends
  exactly one snapshot and advances the document version by exactly 1.

CONCURRENCY MODEL:
  Optimistic, single-writer-per-commit. No locks, no background workers.
  Commit and status changes carry the expectedVersion captured when the
  session began; a stale value fails with VersionConflictError and nothing
  is applied. Two sessions can never silently interleave conflicting
  writes - the second committer always observes the conflict.

ATOMICITY:
  Each protocol call runs in a single store transaction covering the live
  line items, the snapshot ledger and the derived-record ledger. A change
  list containing one valid and one invalid operation applies nothing:
  all operations are validated before the first write.

SEE ALSO:
  - staging.go: Where change lists come from
  - revert.go: The revert half of the engine (same struct)
  - store.go: The transaction boundary
*/
package generic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine drives all mutations for one document kind.
type Engine struct {
	store   TxStore
	profile Profile
	logger  *zap.Logger
	now     func() time.Time
}

type Option func(*Engine)

// WithLogger attaches a zap logger. Default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock overrides the time source. Tests use this for stable
// CreatedAt/VoidedAt values.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store TxStore, profile Profile, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		profile: profile,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Profile returns the kind profile the engine was built with.
func (e *Engine) Profile() Profile { return e.profile }

// =============================================================================
// DOCUMENT CREATION / READS
// =============================================================================

// NewDocumentSpec describes a document to create, with its initial lines.
type NewDocumentSpec struct {
	Number string
	Status Status
	Lines  []AddSpec
}

// CreateDocument creates a document at version 1 with an initial
// ActionCreate snapshot covering the starting lines.
func (e *Engine) CreateDocument(ctx context.Context, spec NewDocumentSpec) (*Document, error) {
	for _, add := range spec.Lines {
		if err := e.validateAdd(add); err != nil {
			return nil, err
		}
	}

	now := e.now().UTC()
	doc := &Document{
		ID:        DocumentID(uuid.NewString()),
		Kind:      e.profile.Kind(),
		Number:    spec.Number,
		Status:    spec.Status,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := e.store.WithTx(ctx, func(s Store) error {
		if err := s.CreateDocument(ctx, doc); err != nil {
			return err
		}
		for _, add := range spec.Lines {
			li := newLineFromAdd(doc.ID, add)
			if err := s.InsertLineItem(ctx, &li); err != nil {
				return err
			}
			doc.Lines = append(doc.Lines, li)
		}
		snap := e.buildSnapshot(doc, nil, ActionCreate, "document created", nil, now)
		return NewSnapshotLedger(s).Append(ctx, snap)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("document created",
		zap.String("kind", doc.Kind),
		zap.String("document_id", string(doc.ID)),
		zap.String("number", doc.Number))
	return doc, nil
}

// Get returns a document with its live line items.
func (e *Engine) Get(ctx context.Context, id DocumentID) (*Document, error) {
	return e.store.GetDocument(ctx, id)
}

// Snapshots returns the full audit trail, ordered by version.
func (e *Engine) Snapshots(ctx context.Context, id DocumentID) ([]Snapshot, error) {
	if _, err := e.store.GetDocument(ctx, id); err != nil {
		return nil, err
	}
	return NewSnapshotLedger(e.store).List(ctx, id)
}

// DerivedRecords returns all derived records for a document, including
// voided ones, ordered by creation.
func (e *Engine) DerivedRecords(ctx context.Context, id DocumentID) ([]DerivedRecord, error) {
	if _, err := e.store.GetDocument(ctx, id); err != nil {
		return nil, err
	}
	return e.store.ListDerivedRecords(ctx, id)
}

// DerivedRecord returns one derived record by id.
func (e *Engine) DerivedRecord(ctx context.Context, id DerivedRecordID) (*DerivedRecord, error) {
	return e.store.GetDerivedRecord(ctx, id)
}

// =============================================================================
// COMMIT PROTOCOL
// =============================================================================

// Commit applies a flattened change list against the document, provided
// expectedVersion still matches. All-or-nothing: validation runs for every
// operation before anything is written.
func (e *Engine) Commit(ctx context.Context, docID DocumentID, expectedVersion int64, changes []Change) (*Document, error) {
	if len(changes) == 0 {
		return nil, fmt.Errorf("%w: commit on %s with empty change list", ErrInvalidChange, docID)
	}

	var result *Document
	err := e.store.WithTx(ctx, func(s Store) error {
		doc, err := s.GetDocument(ctx, docID)
		if err != nil {
			return err
		}
		if doc.Version != expectedVersion {
			return &VersionConflictError{DocumentID: docID, Expected: expectedVersion, Actual: doc.Version}
		}

		// Validate everything before the first write.
		if err := e.validateChanges(doc, changes); err != nil {
			return err
		}

		now := e.now().UTC()
		var deleted []LineState

		// Deletes first, then edits, then adds: a delete plus re-add of
		// the same conceptual item never collides with a stale id.
		for _, ch := range changes {
			if ch.Action != ChangeDelete {
				continue
			}
			li := doc.Line(ch.LineItemID)
			state := FreezeLine(*li, doc.Lines)
			state.IsDeleted = true
			deleted = append(deleted, state)
			if err := s.DeleteLineItem(ctx, ch.LineItemID); err != nil {
				return err
			}
			removeLine(doc, ch.LineItemID)
		}

		for _, ch := range changes {
			if ch.Action != ChangeEdit {
				continue
			}
			li := doc.Line(ch.LineItemID)
			applyEdit(li, *ch.Edit)
			if err := s.UpdateLineItem(ctx, *li); err != nil {
				return err
			}
		}

		for _, ch := range changes {
			if ch.Action != ChangeAdd {
				continue
			}
			li := newLineFromAdd(docID, *ch.Add)
			if err := s.InsertLineItem(ctx, &li); err != nil {
				return err
			}
			doc.Lines = append(doc.Lines, li)
		}

		newVersion := doc.Version + 1
		action := commitAction(changes)
		snap := e.buildSnapshot(doc, deleted, action, summarizeChanges(changes), nil, now)
		snap.Version = newVersion
		if err := NewSnapshotLedger(s).Append(ctx, snap); err != nil {
			return err
		}
		if err := s.UpdateDocumentHeader(ctx, docID, doc.Status, newVersion, now); err != nil {
			return err
		}

		doc.Version = newVersion
		doc.UpdatedAt = now
		result = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("commit applied",
		zap.String("kind", e.profile.Kind()),
		zap.String("document_id", string(docID)),
		zap.Int64("version", result.Version),
		zap.Int("changes", len(changes)))
	return result, nil
}

func (e *Engine) validateChanges(doc *Document, changes []Change) error {
	// Validation walks the list in the same delete -> edit -> add order the
	// apply loops use, over a scratch view, so any operation aimed at a
	// line a delete in the same list removes fails here, before the first
	// write, regardless of list order.
	present := make(map[LineItemID]LineItem, len(doc.Lines))
	for _, li := range doc.Lines {
		present[li.ID] = li
	}

	for _, ch := range changes {
		switch ch.Action {
		case ChangeDelete, ChangeEdit, ChangeAdd:
		default:
			return fmt.Errorf("%w: unknown action %q", ErrInvalidChange, ch.Action)
		}
	}

	for _, ch := range changes {
		if ch.Action != ChangeDelete {
			continue
		}
		li, ok := present[ch.LineItemID]
		if !ok {
			return &NotFoundError{Entity: "line_item", ID: fmt.Sprint(ch.LineItemID)}
		}
		if li.QtyFulfilled.IsPositive() {
			return &QuantityViolationError{
				LineItemID: li.ID,
				Rule:       "cannot delete a line with fulfilled quantity",
				Quantity:   li.Quantity,
				Pending:    li.QtyPending,
				Fulfilled:  li.QtyFulfilled,
			}
		}
		delete(present, ch.LineItemID)
	}

	for _, ch := range changes {
		if ch.Action != ChangeEdit {
			continue
		}
		if ch.Edit == nil || ch.Edit.IsEmpty() {
			return fmt.Errorf("%w: edit on line %d carries no fields", ErrInvalidChange, ch.LineItemID)
		}
		li, ok := present[ch.LineItemID]
		if !ok {
			return &NotFoundError{Entity: "line_item", ID: fmt.Sprint(ch.LineItemID)}
		}
		if q := ch.Edit.Quantity; q != nil {
			if !q.IsPositive() {
				return &QuantityViolationError{LineItemID: li.ID, Rule: "quantity must be positive", Quantity: *q}
			}
			if q.LessThan(li.QtyFulfilled) {
				return &QuantityViolationError{
					LineItemID: li.ID,
					Rule:       "quantity cannot drop below fulfilled amount",
					Quantity:   *q,
					Pending:    li.QtyPending,
					Fulfilled:  li.QtyFulfilled,
				}
			}
		}
	}

	for _, ch := range changes {
		if ch.Action != ChangeAdd {
			continue
		}
		if ch.Add == nil {
			return fmt.Errorf("%w: add without specification", ErrInvalidChange)
		}
		if err := e.validateAdd(*ch.Add); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) validateAdd(add AddSpec) error {
	if add.Type == nil {
		return fmt.Errorf("%w: add without item type", ErrItemTypeNotAllowed)
	}
	if !e.profile.AllowsItemType(add.Type) {
		return fmt.Errorf("%w: %s on %s", ErrItemTypeNotAllowed, add.Type.ItemTypeID(), e.profile.Kind())
	}
	if !add.Quantity.IsPositive() {
		return &QuantityViolationError{Rule: "quantity must be positive", Quantity: add.Quantity}
	}
	return nil
}

// applyEdit mutates a line in place. Quantity edits recompute pending from
// the new quantity and the untouched fulfilled total.
func applyEdit(li *LineItem, fields EditFields) {
	if fields.Description != nil {
		li.Description = *fields.Description
	}
	if fields.Quantity != nil {
		li.Quantity = *fields.Quantity
		li.QtyPending = li.Quantity.Sub(li.QtyFulfilled)
	}
	if fields.UnitPrice != nil {
		li.UnitPrice = *fields.UnitPrice
	}
	if fields.DiscountCodeID != nil {
		li.DiscountCodeID = *fields.DiscountCodeID
	}
	if fields.Percent != nil {
		li.PercentOfTotal = fields.Percent.Value
	}
}

func newLineFromAdd(docID DocumentID, add AddSpec) LineItem {
	return LineItem{
		DocumentID:     docID,
		Type:           add.Type,
		Description:    add.Description,
		CatalogRef:     add.CatalogRef,
		Quantity:       add.Quantity,
		QtyPending:     add.Quantity,
		QtyFulfilled:   ZeroQty(),
		UnitPrice:      add.UnitPrice,
		DiscountCodeID: add.DiscountCodeID,
		PercentOfTotal: add.PercentOfTotal,
	}
}

func removeLine(doc *Document, id LineItemID) {
	for i := range doc.Lines {
		if doc.Lines[i].ID == id {
			doc.Lines = append(doc.Lines[:i], doc.Lines[i+1:]...)
			return
		}
	}
}

// commitAction picks the audit tag for a commit snapshot. The tag set is
// closed (see ActionType in types.go) and has no separate tag for adds, so
// any commit that is not purely deletes is tagged as an edit, adds-only
// lists included. The snapshot description still counts adds separately.
func commitAction(changes []Change) ActionType {
	allDeletes := true
	for _, ch := range changes {
		if ch.Action != ChangeDelete {
			allDeletes = false
			break
		}
	}
	if allDeletes {
		return ActionDelete
	}
	return ActionEdit
}

func summarizeChanges(changes []Change) string {
	var adds, edits, deletes int
	for _, ch := range changes {
		switch ch.Action {
		case ChangeAdd:
			adds++
		case ChangeEdit:
			edits++
		case ChangeDelete:
			deletes++
		}
	}
	var parts []string
	if adds > 0 {
		parts = append(parts, fmt.Sprintf("%d added", adds))
	}
	if edits > 0 {
		parts = append(parts, fmt.Sprintf("%d edited", edits))
	}
	if deletes > 0 {
		parts = append(parts, fmt.Sprintf("%d deleted", deletes))
	}
	return strings.Join(parts, ", ")
}

// =============================================================================
// FULFILLMENT / RECEIVING CREATION
// =============================================================================

// FulfillmentEntry is one line's worth of quantity to consume.
type FulfillmentEntry struct {
	LineItemID    LineItemID
	Quantity      Qty
	PriceOverride *Money
}

// CreateDerivedRecord consumes pending quantity and creates an Invoice or
// Receiving. Atomic: any invalid entry rejects the whole request. The
// per-line running totals are frozen onto the record at creation time.
//
// For document kinds whose profile says so (purchase orders), reaching
// zero pending on every line auto-transitions the document status as a
// side effect.
func (e *Engine) CreateDerivedRecord(ctx context.Context, docID DocumentID, entries []FulfillmentEntry) (*DerivedRecord, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: derived record on %s with no entries", ErrInvalidChange, docID)
	}

	var record *DerivedRecord
	err := e.store.WithTx(ctx, func(s Store) error {
		doc, err := s.GetDocument(ctx, docID)
		if err != nil {
			return err
		}

		// Validate every entry against current pending before any write.
		seen := make(map[LineItemID]bool, len(entries))
		for _, entry := range entries {
			li := doc.Line(entry.LineItemID)
			if li == nil {
				return &NotFoundError{Entity: "line_item", ID: fmt.Sprint(entry.LineItemID)}
			}
			if seen[entry.LineItemID] {
				return fmt.Errorf("%w: duplicate entry for line %d", ErrInvalidChange, entry.LineItemID)
			}
			seen[entry.LineItemID] = true
			if !entry.Quantity.IsPositive() || entry.Quantity.GreaterThan(li.QtyPending) {
				return &QuantityViolationError{
					LineItemID: li.ID,
					Rule:       "fulfillment must satisfy 0 < quantity <= pending",
					Quantity:   entry.Quantity,
					Pending:    li.QtyPending,
					Fulfilled:  li.QtyFulfilled,
				}
			}
		}

		now := e.now().UTC()
		newVersion := doc.Version + 1
		snapID := SnapshotID(uuid.NewString())
		recID := DerivedRecordID(uuid.NewString())

		rec := &DerivedRecord{
			ID:              recID,
			DocumentID:      docID,
			Kind:            e.profile.Kind(),
			Status:          e.profile.InitialDerivedStatus(),
			CreatedAt:       now,
			SnapshotID:      snapID,
			SnapshotVersion: newVersion,
		}

		for _, entry := range entries {
			li := doc.Line(entry.LineItemID)
			li.QtyPending = li.QtyPending.Sub(entry.Quantity)
			li.QtyFulfilled = li.QtyFulfilled.Add(entry.Quantity)
			if err := s.UpdateLineItem(ctx, *li); err != nil {
				return err
			}

			price := ResolveUnitPrice(*li, doc.Lines)
			if entry.PriceOverride != nil {
				price = *entry.PriceOverride
			}
			rec.Lines = append(rec.Lines, DerivedLine{
				ID:                uuid.NewString(),
				LineItemID:        li.ID,
				Description:       li.Description,
				QtyThisRecord:     entry.Quantity,
				UnitPrice:         price,
				QtyFulfilledTotal: li.QtyFulfilled,
				QtyPendingAfter:   li.QtyPending,
			})
		}

		if err := s.InsertDerivedRecord(ctx, rec); err != nil {
			return err
		}

		status := e.profile.AfterFulfillment(doc.Status, doc.FullyFulfilled())
		doc.Status = status

		snap := e.buildSnapshot(doc, nil, e.profile.DerivedAction(),
			fmt.Sprintf("%s created", e.profile.DerivedLabel()), &recID, now)
		snap.ID = snapID
		snap.Version = newVersion
		if err := NewSnapshotLedger(s).Append(ctx, snap); err != nil {
			return err
		}
		if err := s.UpdateDocumentHeader(ctx, docID, status, newVersion, now); err != nil {
			return err
		}

		record = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("derived record created",
		zap.String("kind", e.profile.Kind()),
		zap.String("document_id", string(docID)),
		zap.String("record_id", string(record.ID)),
		zap.Int64("version", record.SnapshotVersion))
	return record, nil
}

// UpdateDerivedRecordStatus applies a derived-record status transition
// (e.g. invoice Sent -> Paid). Voided records are frozen.
func (e *Engine) UpdateDerivedRecordStatus(ctx context.Context, id DerivedRecordID, to Status) (*DerivedRecord, error) {
	var record *DerivedRecord
	err := e.store.WithTx(ctx, func(s Store) error {
		rec, err := s.GetDerivedRecord(ctx, id)
		if err != nil {
			return err
		}
		if rec.Voided() {
			return fmt.Errorf("%w: %s", ErrRecordVoided, id)
		}
		if !e.profile.CanTransitionDerived(rec.Status, to) {
			return &TransitionError{Kind: e.profile.DerivedLabel(), From: rec.Status, To: to}
		}
		if err := s.UpdateDerivedRecordStatus(ctx, id, to); err != nil {
			return err
		}
		rec.Status = to
		record = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// =============================================================================
// STATUS CHANGE
// =============================================================================

// ChangeStatus applies a document status transition, version-checked like
// a commit, producing an ActionStatusChange snapshot.
func (e *Engine) ChangeStatus(ctx context.Context, docID DocumentID, expectedVersion int64, to Status) (*Document, error) {
	var result *Document
	err := e.store.WithTx(ctx, func(s Store) error {
		doc, err := s.GetDocument(ctx, docID)
		if err != nil {
			return err
		}
		if doc.Version != expectedVersion {
			return &VersionConflictError{DocumentID: docID, Expected: expectedVersion, Actual: doc.Version}
		}
		if !e.profile.CanTransition(doc.Status, to) {
			return &TransitionError{Kind: e.profile.Kind(), From: doc.Status, To: to}
		}

		now := e.now().UTC()
		from := doc.Status
		doc.Status = to
		newVersion := doc.Version + 1

		snap := e.buildSnapshot(doc, nil, ActionStatusChange,
			fmt.Sprintf("status %s -> %s", from, to), nil, now)
		snap.Version = newVersion
		if err := NewSnapshotLedger(s).Append(ctx, snap); err != nil {
			return err
		}
		if err := s.UpdateDocumentHeader(ctx, docID, to, newVersion, now); err != nil {
			return err
		}

		doc.Version = newVersion
		doc.UpdatedAt = now
		result = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// =============================================================================
// SNAPSHOT CONSTRUCTION
// =============================================================================

// buildSnapshot freezes the document's current lines plus any
// deleted-flagged states produced by this mutation. Version defaults to
// the document's current version; callers advancing the document set it
// explicitly.
func (e *Engine) buildSnapshot(doc *Document, deleted []LineState, action ActionType, description string, recID *DerivedRecordID, at time.Time) Snapshot {
	snap := Snapshot{
		ID:              SnapshotID(uuid.NewString()),
		DocumentID:      doc.ID,
		Version:         doc.Version,
		Action:          action,
		Description:     description,
		DerivedRecordID: recID,
		Status:          doc.Status,
		CreatedAt:       at,
	}
	for _, li := range doc.Lines {
		snap.Lines = append(snap.Lines, FreezeLine(li, doc.Lines))
	}
	snap.Lines = append(snap.Lines, deleted...)
	return snap
}
