/*
handlers.go - HTTP API handlers for the document engine

PURPOSE:
  Exposes the versioned document engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the engine.

ENDPOINTS (per document kind, {base} is /api/quotes or /api/purchase-orders):
  Documents:
    POST   {base}                         Create document
    GET    {base}/{id}                    Get document with live lines
    POST   {base}/{id}/status             Transition document status
    POST   {base}/{id}/commit             Commit a staged change set

  Derived records ({label} is invoices or receivings):
    POST   {base}/{id}/{label}            Create invoice/receiving
    GET    {base}/{id}/{label}            List invoices/receivings
    PUT    {base}/{label}/{recordID}/status  Transition record status

  History:
    GET    {base}/{id}/snapshots          Full audit trail
    GET    {base}/{id}/revert-preview     Dry-run revert (?target=N)
    POST   {base}/{id}/revert             Execute revert

REQUEST FLOW:
  1. Decode + validate input (validator tags on DTOs)
  2. Convert floats to decimals at the boundary
  3. Call the engine for the route's document kind
  4. Serialize response

ERROR HANDLING:
  The engine's error taxonomy maps onto HTTP status:
  - 400: Quantity violations, invalid targets, bad transitions, bad input
  - 404: Unknown document / snapshot / record
  - 409: Version conflicts (client must refresh and restage)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/warp/document-engine/generic"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds one engine per document kind plus shared plumbing.
type Handler struct {
	engines  map[string]*generic.Engine
	validate *validator.Validate
	logger   *zap.Logger
}

// NewHandler creates a handler over the given engines, keyed by kind.
func NewHandler(engines map[string]*generic.Engine, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		engines:  engines,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *Handler) engine(kind string) *generic.Engine {
	return h.engines[kind]
}

// decodeValid decodes the body into req and runs struct validation.
func (h *Handler) decodeValid(r *http.Request, req any) error {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// =============================================================================
// DOCUMENT HANDLERS
// =============================================================================

// CreateDocument creates a document with its initial lines.
// POST {base}
func (h *Handler) CreateDocument(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateDocumentRequest
		if err := h.decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request", err)
			return
		}

		spec := generic.NewDocumentSpec{
			Number: req.Number,
			Status: generic.Status(req.Status),
		}
		for _, dto := range req.Lines {
			add, err := toAddSpec(kind, dto)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid line", err)
				return
			}
			spec.Lines = append(spec.Lines, add)
		}

		doc, err := h.engine(kind).CreateDocument(r.Context(), spec)
		if err != nil {
			h.writeEngineError(w, "Failed to create document", err)
			return
		}
		writeJSON(w, http.StatusCreated, toDocumentDTO(doc))
	}
}

// GetDocument returns a document with its live lines and resolved prices.
// GET {base}/{id}
func (h *Handler) GetDocument(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := generic.DocumentID(chi.URLParam(r, "id"))

		doc, err := h.engine(kind).Get(r.Context(), id)
		if err != nil {
			h.writeEngineError(w, "Failed to get document", err)
			return
		}
		writeJSON(w, http.StatusOK, toDocumentDTO(doc))
	}
}

// ChangeStatus transitions a document through its status lifecycle.
// POST {base}/{id}/status
func (h *Handler) ChangeStatus(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := generic.DocumentID(chi.URLParam(r, "id"))

		var req ChangeStatusRequest
		if err := h.decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request", err)
			return
		}

		doc, err := h.engine(kind).ChangeStatus(r.Context(), id, req.ExpectedVersion, generic.Status(req.Status))
		if err != nil {
			h.writeEngineError(w, "Failed to change status", err)
			return
		}
		writeJSON(w, http.StatusOK, toDocumentDTO(doc))
	}
}

// =============================================================================
// COMMIT
// =============================================================================

// Commit applies a staged change set atomically against an expected version.
// POST {base}/{id}/commit
func (h *Handler) Commit(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := generic.DocumentID(chi.URLParam(r, "id"))

		var req CommitRequest
		if err := h.decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request", err)
			return
		}

		changes := make([]generic.Change, 0, len(req.Changes))
		for _, dto := range req.Changes {
			c, err := toChange(kind, dto)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid change", err)
				return
			}
			changes = append(changes, c)
		}

		doc, err := h.engine(kind).Commit(r.Context(), id, req.ExpectedVersion, changes)
		if err != nil {
			h.writeEngineError(w, "Commit failed", err)
			return
		}
		writeJSON(w, http.StatusOK, toDocumentDTO(doc))
	}
}

// =============================================================================
// DERIVED RECORDS
// =============================================================================

// CreateDerivedRecord creates an invoice (quotes) or receiving (POs).
// POST {base}/{id}/{label}
func (h *Handler) CreateDerivedRecord(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := generic.DocumentID(chi.URLParam(r, "id"))

		var req CreateDerivedRecordRequest
		if err := h.decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request", err)
			return
		}

		eng := h.engine(kind)
		rec, err := eng.CreateDerivedRecord(r.Context(), id, toFulfillments(req.Entries))
		if err != nil {
			h.writeEngineError(w, "Failed to create record", err)
			return
		}
		writeJSON(w, http.StatusCreated, toDerivedRecordDTO(rec, eng.Profile().DerivedLabel()))
	}
}

// ListDerivedRecords returns all invoices/receivings for a document,
// voided ones included.
// GET {base}/{id}/{label}
func (h *Handler) ListDerivedRecords(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := generic.DocumentID(chi.URLParam(r, "id"))

		eng := h.engine(kind)
		records, err := eng.DerivedRecords(r.Context(), id)
		if err != nil {
			h.writeEngineError(w, "Failed to list records", err)
			return
		}

		label := eng.Profile().DerivedLabel()
		dtos := make([]DerivedRecordDTO, len(records))
		for i := range records {
			dtos[i] = toDerivedRecordDTO(&records[i], label)
		}
		writeJSON(w, http.StatusOK, dtos)
	}
}

// UpdateDerivedRecordStatus transitions a derived record (invoice Sent->Paid).
// PUT {base}/{label}/{recordID}/status
func (h *Handler) UpdateDerivedRecordStatus(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recID := generic.DerivedRecordID(chi.URLParam(r, "recordID"))

		var req UpdateDerivedStatusRequest
		if err := h.decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request", err)
			return
		}

		eng := h.engine(kind)
		rec, err := eng.UpdateDerivedRecordStatus(r.Context(), recID, generic.Status(req.Status))
		if err != nil {
			h.writeEngineError(w, "Failed to update record status", err)
			return
		}
		writeJSON(w, http.StatusOK, toDerivedRecordDTO(rec, eng.Profile().DerivedLabel()))
	}
}

// =============================================================================
// HISTORY / REVERT
// =============================================================================

// ListSnapshots returns the full audit trail for a document.
// GET {base}/{id}/snapshots
func (h *Handler) ListSnapshots(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := generic.DocumentID(chi.URLParam(r, "id"))

		snaps, err := h.engine(kind).Snapshots(r.Context(), id)
		if err != nil {
			h.writeEngineError(w, "Failed to list snapshots", err)
			return
		}

		dtos := make([]SnapshotDTO, len(snaps))
		for i, s := range snaps {
			dtos[i] = toSnapshotDTO(s)
		}
		writeJSON(w, http.StatusOK, dtos)
	}
}

// PreviewRevert returns the confirmation payload without changing anything.
// GET {base}/{id}/revert-preview?target=N
func (h *Handler) PreviewRevert(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := generic.DocumentID(chi.URLParam(r, "id"))

		target, err := strconv.ParseInt(r.URL.Query().Get("target"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid target version", err)
			return
		}

		preview, err := h.engine(kind).PreviewRevert(r.Context(), id, target)
		if err != nil {
			h.writeEngineError(w, "Failed to build revert preview", err)
			return
		}
		writeJSON(w, http.StatusOK, toRevertPreviewDTO(preview))
	}
}

// Revert restores a document to a prior version and voids dependent records.
// POST {base}/{id}/revert
func (h *Handler) Revert(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := generic.DocumentID(chi.URLParam(r, "id"))

		var req RevertRequest
		if err := h.decodeValid(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request", err)
			return
		}

		doc, err := h.engine(kind).Revert(r.Context(), id, req.TargetVersion, req.ExpectedVersion)
		if err != nil {
			h.writeEngineError(w, "Revert failed", err)
			return
		}
		writeJSON(w, http.StatusOK, toDocumentDTO(doc))
	}
}

// =============================================================================
// ERROR MAPPING / RESPONSE HELPERS
// =============================================================================

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// writeEngineError maps the engine's error taxonomy onto HTTP status codes.
func (h *Handler) writeEngineError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case generic.IsConflict(err):
		status = http.StatusConflict
	case generic.IsNotFound(err):
		status = http.StatusNotFound
	case generic.IsClientError(err):
		status = http.StatusBadRequest
	default:
		h.logger.Error(message, zap.Error(err))
	}
	writeError(w, status, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func errMissingPayload(action string) error {
	return errors.New(action + " change without " + action + " payload")
}

func errUnknownAction(action string) error {
	return fmt.Errorf("unknown change action %q", action)
}
