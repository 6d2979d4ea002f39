/*
staging.go - Uncommitted change accumulation and reconciliation

PURPOSE:
  A StagedChangeSet is the ephemeral, client-held accumulation of add,
  edit and delete operations made while a document is in edit mode. It is
  reconciled into a minimal ordered change list for the commit protocol.
  Nothing in here touches storage: discarding a change set has no
  server-side effect.

RECONCILIATION RULES:
  - Edits merge: staging an edit on a line that already has a pending edit
    merges the fields. If the merged result equals the live values on every
    changed field, the pending edit is pruned (no-op suppression).
  - Deletes win: staging a delete clears any pending edit on the same id.
  - Retracted adds vanish: an add that is unstaged before commit never
    appears in the emitted change list.

TEMP IDS:
  Pending adds are keyed by strictly decreasing negative ids. This
  guarantees uniqueness within a session without a server round-trip, and
  can never collide with a persisted (positive) line id.

EMIT ORDER:
  Changes() flattens to deletes, then edits, then adds - so a delete plus
  re-add of the same conceptual item never collides with an edit aimed at
  the stale id.

SEE ALSO:
  - engine.go: Commit applies the flattened change list atomically
  - session.go: The edit session owning a change set
*/
package generic

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CHANGE - One flattened operation for the commit protocol
// =============================================================================

type ChangeAction string

const (
	ChangeAdd    ChangeAction = "add"
	ChangeEdit   ChangeAction = "edit"
	ChangeDelete ChangeAction = "delete"
)

// Change is one tagged operation in a commit's change list.
// Exactly one of Add/Edit is set, matching Action.
type Change struct {
	Action     ChangeAction
	LineItemID LineItemID // target for edit/delete; session temp id for add

	Add  *AddSpec
	Edit *EditFields
}

// AddSpec fully specifies a new line item.
type AddSpec struct {
	Type           ItemType
	Description    string
	CatalogRef     string
	Quantity       Qty
	UnitPrice      Money
	DiscountCodeID string
	PercentOfTotal *decimal.Decimal
}

// EditFields carries only the changed fields; nil means untouched.
type EditFields struct {
	Description    *string
	Quantity       *Qty
	UnitPrice      *Money
	DiscountCodeID *string        // non-nil empty string clears the discount
	Percent        *PercentChange // see PercentChange
}

// PercentChange updates the dynamic-pricing marker. A nil Value clears the
// marker, turning the line back into a fixed-price item.
type PercentChange struct {
	Value *decimal.Decimal
}

// IsEmpty reports whether no field is set.
func (e EditFields) IsEmpty() bool {
	return e.Description == nil && e.Quantity == nil && e.UnitPrice == nil &&
		e.DiscountCodeID == nil && e.Percent == nil
}

// =============================================================================
// STAGED CHANGE SET
// =============================================================================

// StagedChangeSet accumulates uncommitted operations for one document.
// It is not safe for concurrent use; each editing session owns its own.
type StagedChangeSet struct {
	edits    map[LineItemID]stagedEdit
	adds     map[LineItemID]AddSpec
	addOrder []LineItemID
	deletes  map[LineItemID]bool

	nextTempID LineItemID
}

type stagedEdit struct {
	original LineItem
	fields   EditFields
}

func NewStagedChangeSet() *StagedChangeSet {
	return &StagedChangeSet{
		edits:      make(map[LineItemID]stagedEdit),
		adds:       make(map[LineItemID]AddSpec),
		deletes:    make(map[LineItemID]bool),
		nextTempID: -1,
	}
}

// StageEdit merges a partial change into the pending edit for the line.
// After the merge, any field equal to the live item's current value is
// dropped; an edit reduced to all-equal is pruned entirely.
func (s *StagedChangeSet) StageEdit(item LineItem, change EditFields) {
	if s.deletes[item.ID] {
		return // deletion wins; edits on a doomed line are meaningless
	}

	pending, ok := s.edits[item.ID]
	if !ok {
		pending = stagedEdit{original: item}
	}
	merged := mergeEdits(pending.fields, change)
	merged = pruneNoOps(pending.original, merged)

	if merged.IsEmpty() {
		delete(s.edits, item.ID)
		return
	}
	s.edits[item.ID] = stagedEdit{original: pending.original, fields: merged}
}

// StageAdd records a pending add and returns its session temp id.
// Temp ids are strictly decreasing negative integers.
func (s *StagedChangeSet) StageAdd(spec AddSpec) LineItemID {
	id := s.nextTempID
	s.nextTempID--
	s.adds[id] = spec
	s.addOrder = append(s.addOrder, id)
	return id
}

// UnstageAdd retracts a pending add. Unknown ids are ignored.
func (s *StagedChangeSet) UnstageAdd(tempID LineItemID) {
	if _, ok := s.adds[tempID]; !ok {
		return
	}
	delete(s.adds, tempID)
	for i, id := range s.addOrder {
		if id == tempID {
			s.addOrder = append(s.addOrder[:i], s.addOrder[i+1:]...)
			break
		}
	}
}

// StageDelete marks an existing line for deletion, clearing any pending
// edit on the same id. For a pending add, use UnstageAdd instead.
func (s *StagedChangeSet) StageDelete(id LineItemID) {
	if id.IsTemp() {
		s.UnstageAdd(id)
		return
	}
	delete(s.edits, id)
	s.deletes[id] = true
}

// UnstageDelete retracts a pending delete.
func (s *StagedChangeSet) UnstageDelete(id LineItemID) {
	delete(s.deletes, id)
}

// HasStagedChanges reports whether anything is pending. Used to gate
// commit/discard affordances and warn on navigation away.
func (s *StagedChangeSet) HasStagedChanges() bool {
	return len(s.edits)+len(s.adds)+len(s.deletes) > 0
}

// Count returns the total number of pending operations.
func (s *StagedChangeSet) Count() int {
	return len(s.edits) + len(s.adds) + len(s.deletes)
}

// Changes flattens the set into the ordered change list for the commit
// protocol: deletes, then edits, then adds (in staging order).
func (s *StagedChangeSet) Changes() []Change {
	changes := make([]Change, 0, s.Count())

	deleteIDs := make([]LineItemID, 0, len(s.deletes))
	for id := range s.deletes {
		deleteIDs = append(deleteIDs, id)
	}
	sort.Slice(deleteIDs, func(i, j int) bool { return deleteIDs[i] < deleteIDs[j] })
	for _, id := range deleteIDs {
		changes = append(changes, Change{Action: ChangeDelete, LineItemID: id})
	}

	editIDs := make([]LineItemID, 0, len(s.edits))
	for id := range s.edits {
		editIDs = append(editIDs, id)
	}
	sort.Slice(editIDs, func(i, j int) bool { return editIDs[i] < editIDs[j] })
	for _, id := range editIDs {
		fields := s.edits[id].fields
		changes = append(changes, Change{Action: ChangeEdit, LineItemID: id, Edit: &fields})
	}

	for _, id := range s.addOrder {
		spec := s.adds[id]
		changes = append(changes, Change{Action: ChangeAdd, LineItemID: id, Add: &spec})
	}
	return changes
}

// Reset discards everything. The temp-id counter keeps decreasing so ids
// are never reused within a session.
func (s *StagedChangeSet) Reset() {
	s.edits = make(map[LineItemID]stagedEdit)
	s.adds = make(map[LineItemID]AddSpec)
	s.addOrder = nil
	s.deletes = make(map[LineItemID]bool)
}

// =============================================================================
// MERGE / PRUNE
// =============================================================================

func mergeEdits(base, next EditFields) EditFields {
	if next.Description != nil {
		base.Description = next.Description
	}
	if next.Quantity != nil {
		base.Quantity = next.Quantity
	}
	if next.UnitPrice != nil {
		base.UnitPrice = next.UnitPrice
	}
	if next.DiscountCodeID != nil {
		base.DiscountCodeID = next.DiscountCodeID
	}
	if next.Percent != nil {
		base.Percent = next.Percent
	}
	return base
}

func pruneNoOps(original LineItem, fields EditFields) EditFields {
	if fields.Description != nil && *fields.Description == original.Description {
		fields.Description = nil
	}
	if fields.Quantity != nil && fields.Quantity.Equal(original.Quantity) {
		fields.Quantity = nil
	}
	if fields.UnitPrice != nil && fields.UnitPrice.Equal(original.UnitPrice) {
		fields.UnitPrice = nil
	}
	if fields.DiscountCodeID != nil && *fields.DiscountCodeID == original.DiscountCodeID {
		fields.DiscountCodeID = nil
	}
	if fields.Percent != nil && percentEqual(fields.Percent.Value, original.PercentOfTotal) {
		fields.Percent = nil
	}
	return fields
}

func percentEqual(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
