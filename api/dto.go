/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  JSON shapes for the document engine API. Quantities and prices travel
  as JSON numbers and are converted to decimals at the boundary; the
  engine itself never sees a float.

VALIDATION:
  Request DTOs carry validator tags; handlers run them through a shared
  validator.Validate before touching the engine, so malformed input fails
  with 400 before any version check happens.

SEE ALSO:
  - handlers.go: Conversion to/from engine types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/document-engine/generic"
)

// =============================================================================
// DOCUMENT / LINE ITEMS
// =============================================================================

// DocumentDTO represents a document in API responses.
type DocumentDTO struct {
	ID        string        `json:"id"`
	Kind      string        `json:"kind"`
	Number    string        `json:"number"`
	Status    string        `json:"status"`
	Version   int64         `json:"version"`
	CreatedAt string        `json:"created_at"`
	UpdatedAt string        `json:"updated_at"`
	Subtotal  float64       `json:"subtotal"`
	Lines     []LineItemDTO `json:"lines"`
}

// LineItemDTO represents a line item in API responses.
type LineItemDTO struct {
	ID             int64    `json:"id"`
	Type           string   `json:"type"`
	Description    string   `json:"description"`
	CatalogRef     string   `json:"catalog_ref,omitempty"`
	Quantity       float64  `json:"quantity"`
	QtyPending     float64  `json:"qty_pending"`
	QtyFulfilled   float64  `json:"qty_fulfilled"`
	UnitPrice      float64  `json:"unit_price"`
	EffectivePrice float64  `json:"effective_price"`
	DiscountCodeID string   `json:"discount_code_id,omitempty"`
	PercentOfTotal *float64 `json:"percent_of_total,omitempty"`
}

// CreateDocumentRequest creates a document with its initial lines.
type CreateDocumentRequest struct {
	Number string       `json:"number" validate:"required"`
	Status string       `json:"status" validate:"required"`
	Lines  []AddLineDTO `json:"lines" validate:"dive"`
}

// AddLineDTO fully specifies a new line item.
type AddLineDTO struct {
	Type           string   `json:"type" validate:"required"`
	Description    string   `json:"description" validate:"required"`
	CatalogRef     string   `json:"catalog_ref"`
	Quantity       float64  `json:"quantity" validate:"gt=0"`
	UnitPrice      float64  `json:"unit_price" validate:"gte=0"`
	DiscountCodeID string   `json:"discount_code_id"`
	PercentOfTotal *float64 `json:"percent_of_total"`
}

// =============================================================================
// COMMIT
// =============================================================================

// CommitRequest carries a flattened change list plus the version the
// client staged against.
type CommitRequest struct {
	ExpectedVersion int64       `json:"expected_version" validate:"gt=0"`
	Changes         []ChangeDTO `json:"changes" validate:"min=1,dive"`
}

// ChangeDTO is one tagged operation. Adds carry the full spec; edits carry
// only the changed fields plus the target id; deletes only the target id.
type ChangeDTO struct {
	Action     string      `json:"action" validate:"oneof=add edit delete"`
	LineItemID int64       `json:"line_item_id,omitempty"`
	Add        *AddLineDTO `json:"add,omitempty"`
	Edit       *EditDTO    `json:"edit,omitempty"`
}

// EditDTO carries changed fields; absent fields are untouched.
type EditDTO struct {
	Description    *string  `json:"description,omitempty"`
	Quantity       *float64 `json:"quantity,omitempty"`
	UnitPrice      *float64 `json:"unit_price,omitempty"`
	DiscountCodeID *string  `json:"discount_code_id,omitempty"`
	PercentOfTotal *float64 `json:"percent_of_total,omitempty"`
	ClearPercent   bool     `json:"clear_percent,omitempty"`
}

// =============================================================================
// DERIVED RECORDS
// =============================================================================

// CreateDerivedRecordRequest creates an invoice or receiving.
type CreateDerivedRecordRequest struct {
	Entries []FulfillmentDTO `json:"entries" validate:"min=1,dive"`
}

// FulfillmentDTO is one line's worth of quantity to consume.
type FulfillmentDTO struct {
	LineItemID    int64    `json:"line_item_id" validate:"gt=0"`
	Quantity      float64  `json:"quantity" validate:"gt=0"`
	PriceOverride *float64 `json:"price_override,omitempty"`
}

// DerivedRecordDTO represents an invoice or receiving.
type DerivedRecordDTO struct {
	ID                 string           `json:"id"`
	DocumentID         string           `json:"document_id"`
	Label              string           `json:"label"` // "invoice" or "receiving"
	Status             string           `json:"status"`
	CreatedAt          string           `json:"created_at"`
	SnapshotVersion    int64            `json:"snapshot_version"`
	VoidedAt           *string          `json:"voided_at,omitempty"`
	VoidedBySnapshotID *string          `json:"voided_by_snapshot_id,omitempty"`
	Lines              []DerivedLineDTO `json:"lines"`
}

// DerivedLineDTO carries the frozen per-line consumption facts.
type DerivedLineDTO struct {
	LineItemID        int64   `json:"line_item_id"`
	Description       string  `json:"description"`
	Quantity          float64 `json:"quantity"`
	UnitPrice         float64 `json:"unit_price"`
	QtyFulfilledTotal float64 `json:"qty_fulfilled_total"`
	QtyPendingAfter   float64 `json:"qty_pending_after"`
}

// UpdateDerivedStatusRequest transitions a derived record's status
// (invoice Sent -> Paid).
type UpdateDerivedStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// =============================================================================
// STATUS CHANGE
// =============================================================================

// ChangeStatusRequest transitions a document's status.
type ChangeStatusRequest struct {
	ExpectedVersion int64  `json:"expected_version" validate:"gt=0"`
	Status          string `json:"status" validate:"required"`
}

// =============================================================================
// SNAPSHOTS / REVERT
// =============================================================================

// SnapshotDTO is one audit-trail entry.
type SnapshotDTO struct {
	ID              string            `json:"id"`
	Version         int64             `json:"version"`
	Action          string            `json:"action"`
	Description     string            `json:"description,omitempty"`
	DerivedRecordID *string           `json:"derived_record_id,omitempty"`
	Status          string            `json:"status"`
	CreatedAt       string            `json:"created_at"`
	Lines           []SnapshotLineDTO `json:"lines"`
}

// SnapshotLineDTO is one frozen line state.
type SnapshotLineDTO struct {
	LineItemID     int64    `json:"line_item_id"`
	Type           string   `json:"type"`
	Description    string   `json:"description"`
	Quantity       float64  `json:"quantity"`
	QtyPending     float64  `json:"qty_pending"`
	QtyFulfilled   float64  `json:"qty_fulfilled"`
	UnitPrice      float64  `json:"unit_price"`
	DiscountCodeID string   `json:"discount_code_id,omitempty"`
	PercentOfTotal *float64 `json:"percent_of_total,omitempty"`
	IsDeleted      bool     `json:"is_deleted,omitempty"`
}

// RevertRequest executes a revert confirmed from a preview.
type RevertRequest struct {
	TargetVersion   int64 `json:"target_version" validate:"gt=0"`
	ExpectedVersion int64 `json:"expected_version" validate:"gt=0"`
}

// RevertPreviewDTO is the confirmation payload for a revert.
type RevertPreviewDTO struct {
	DocumentID     string            `json:"document_id"`
	CurrentVersion int64             `json:"current_version"`
	TargetVersion  int64             `json:"target_version"`
	Changes        []FieldChangeDTO  `json:"changes"`
	RecordsToVoid  []RecordToVoidDTO `json:"records_to_void"`
}

// FieldChangeDTO is one line of the human-readable revert summary.
type FieldChangeDTO struct {
	LineItemID  int64  `json:"line_item_id"`
	Description string `json:"description"`
	Kind        string `json:"kind"`
	Field       string `json:"field,omitempty"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
}

// RecordToVoidDTO summarizes a derived record the revert will void.
type RecordToVoidDTO struct {
	ID              string  `json:"id"`
	Label           string  `json:"label"`
	Status          string  `json:"status"`
	CreatedAt       string  `json:"created_at"`
	SnapshotVersion int64   `json:"snapshot_version"`
	QtyConsumed     float64 `json:"qty_consumed"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toDocumentDTO(doc *generic.Document) DocumentDTO {
	dto := DocumentDTO{
		ID:        string(doc.ID),
		Kind:      doc.Kind,
		Number:    doc.Number,
		Status:    string(doc.Status),
		Version:   doc.Version,
		CreatedAt: doc.CreatedAt.Format(time.RFC3339),
		UpdatedAt: doc.UpdatedAt.Format(time.RFC3339),
		Subtotal:  decToFloat(generic.DocumentSubtotal(doc.Lines).Value),
		Lines:     []LineItemDTO{},
	}
	for _, li := range doc.Lines {
		dto.Lines = append(dto.Lines, toLineItemDTO(li, doc.Lines))
	}
	return dto
}

func toLineItemDTO(li generic.LineItem, siblings []generic.LineItem) LineItemDTO {
	return LineItemDTO{
		ID:             int64(li.ID),
		Type:           li.Type.ItemTypeID(),
		Description:    li.Description,
		CatalogRef:     li.CatalogRef,
		Quantity:       decToFloat(li.Quantity.Value),
		QtyPending:     decToFloat(li.QtyPending.Value),
		QtyFulfilled:   decToFloat(li.QtyFulfilled.Value),
		UnitPrice:      decToFloat(li.UnitPrice.Value),
		EffectivePrice: decToFloat(generic.ResolveUnitPrice(li, siblings).Value),
		DiscountCodeID: li.DiscountCodeID,
		PercentOfTotal: percentToFloat(li.PercentOfTotal),
	}
}

func toDerivedRecordDTO(rec *generic.DerivedRecord, label string) DerivedRecordDTO {
	dto := DerivedRecordDTO{
		ID:              string(rec.ID),
		DocumentID:      string(rec.DocumentID),
		Label:           label,
		Status:          string(rec.Status),
		CreatedAt:       rec.CreatedAt.Format(time.RFC3339),
		SnapshotVersion: rec.SnapshotVersion,
		Lines:           []DerivedLineDTO{},
	}
	if rec.VoidedAt != nil {
		v := rec.VoidedAt.Format(time.RFC3339)
		dto.VoidedAt = &v
	}
	if rec.VoidedBySnapshotID != nil {
		v := string(*rec.VoidedBySnapshotID)
		dto.VoidedBySnapshotID = &v
	}
	for _, dl := range rec.Lines {
		dto.Lines = append(dto.Lines, DerivedLineDTO{
			LineItemID:        int64(dl.LineItemID),
			Description:       dl.Description,
			Quantity:          decToFloat(dl.QtyThisRecord.Value),
			UnitPrice:         decToFloat(dl.UnitPrice.Value),
			QtyFulfilledTotal: decToFloat(dl.QtyFulfilledTotal.Value),
			QtyPendingAfter:   decToFloat(dl.QtyPendingAfter.Value),
		})
	}
	return dto
}

func toSnapshotDTO(snap generic.Snapshot) SnapshotDTO {
	dto := SnapshotDTO{
		ID:          string(snap.ID),
		Version:     snap.Version,
		Action:      string(snap.Action),
		Description: snap.Description,
		Status:      string(snap.Status),
		CreatedAt:   snap.CreatedAt.Format(time.RFC3339),
		Lines:       []SnapshotLineDTO{},
	}
	if snap.DerivedRecordID != nil {
		v := string(*snap.DerivedRecordID)
		dto.DerivedRecordID = &v
	}
	for _, ls := range snap.Lines {
		dto.Lines = append(dto.Lines, SnapshotLineDTO{
			LineItemID:     int64(ls.LineItemID),
			Type:           ls.TypeID,
			Description:    ls.Description,
			Quantity:       decToFloat(ls.Quantity.Value),
			QtyPending:     decToFloat(ls.QtyPending.Value),
			QtyFulfilled:   decToFloat(ls.QtyFulfilled.Value),
			UnitPrice:      decToFloat(ls.UnitPrice.Value),
			DiscountCodeID: ls.DiscountCodeID,
			PercentOfTotal: percentToFloat(ls.PercentOfTotal),
			IsDeleted:      ls.IsDeleted,
		})
	}
	return dto
}

func toRevertPreviewDTO(p *generic.RevertPreview) RevertPreviewDTO {
	dto := RevertPreviewDTO{
		DocumentID:     string(p.DocumentID),
		CurrentVersion: p.CurrentVersion,
		TargetVersion:  p.TargetVersion,
		Changes:        []FieldChangeDTO{},
		RecordsToVoid:  []RecordToVoidDTO{},
	}
	for _, c := range p.Changes {
		dto.Changes = append(dto.Changes, FieldChangeDTO{
			LineItemID:  int64(c.LineItemID),
			Description: c.Description,
			Kind:        c.Kind,
			Field:       c.Field,
			From:        c.From,
			To:          c.To,
		})
	}
	for _, r := range p.RecordsToVoid {
		dto.RecordsToVoid = append(dto.RecordsToVoid, RecordToVoidDTO{
			ID:              string(r.ID),
			Label:           r.Label,
			Status:          string(r.Status),
			CreatedAt:       r.CreatedAt.Format(time.RFC3339),
			SnapshotVersion: r.SnapshotVersion,
			QtyConsumed:     decToFloat(r.QtyConsumed.Value),
		})
	}
	return dto
}

func toAddSpec(kind string, dto AddLineDTO) (generic.AddSpec, error) {
	t := generic.LookupItemType(kind, dto.Type)
	if t == nil {
		return generic.AddSpec{}, &generic.NotFoundError{Entity: "item_type", ID: kind + "/" + dto.Type}
	}
	return generic.AddSpec{
		Type:           t,
		Description:    dto.Description,
		CatalogRef:     dto.CatalogRef,
		Quantity:       generic.NewQty(dto.Quantity),
		UnitPrice:      generic.NewMoney(dto.UnitPrice),
		DiscountCodeID: dto.DiscountCodeID,
		PercentOfTotal: floatToPercent(dto.PercentOfTotal),
	}, nil
}

func toChange(kind string, dto ChangeDTO) (generic.Change, error) {
	switch dto.Action {
	case "add":
		if dto.Add == nil {
			return generic.Change{}, errMissingPayload("add")
		}
		spec, err := toAddSpec(kind, *dto.Add)
		if err != nil {
			return generic.Change{}, err
		}
		return generic.Change{
			Action:     generic.ChangeAdd,
			LineItemID: generic.LineItemID(dto.LineItemID),
			Add:        &spec,
		}, nil

	case "edit":
		if dto.Edit == nil {
			return generic.Change{}, errMissingPayload("edit")
		}
		fields := generic.EditFields{
			Description:    dto.Edit.Description,
			DiscountCodeID: dto.Edit.DiscountCodeID,
		}
		if dto.Edit.Quantity != nil {
			q := generic.NewQty(*dto.Edit.Quantity)
			fields.Quantity = &q
		}
		if dto.Edit.UnitPrice != nil {
			m := generic.NewMoney(*dto.Edit.UnitPrice)
			fields.UnitPrice = &m
		}
		if dto.Edit.ClearPercent {
			fields.Percent = &generic.PercentChange{}
		} else if dto.Edit.PercentOfTotal != nil {
			fields.Percent = &generic.PercentChange{Value: floatToPercent(dto.Edit.PercentOfTotal)}
		}
		return generic.Change{
			Action:     generic.ChangeEdit,
			LineItemID: generic.LineItemID(dto.LineItemID),
			Edit:       &fields,
		}, nil

	case "delete":
		return generic.Change{
			Action:     generic.ChangeDelete,
			LineItemID: generic.LineItemID(dto.LineItemID),
		}, nil
	}
	return generic.Change{}, errUnknownAction(dto.Action)
}

func toFulfillments(dtos []FulfillmentDTO) []generic.FulfillmentEntry {
	entries := make([]generic.FulfillmentEntry, 0, len(dtos))
	for _, dto := range dtos {
		entry := generic.FulfillmentEntry{
			LineItemID: generic.LineItemID(dto.LineItemID),
			Quantity:   generic.NewQty(dto.Quantity),
		}
		if dto.PriceOverride != nil {
			m := generic.NewMoney(*dto.PriceOverride)
			entry.PriceOverride = &m
		}
		entries = append(entries, entry)
	}
	return entries
}

func decToFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func percentToFloat(p *decimal.Decimal) *float64 {
	if p == nil {
		return nil
	}
	f := decToFloat(*p)
	return &f
}

func floatToPercent(f *float64) *decimal.Decimal {
	if f == nil {
		return nil
	}
	d := decimal.NewFromFloat(*f)
	return &d
}
