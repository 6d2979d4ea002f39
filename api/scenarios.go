/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	documents for testing and demos. Each scenario creates documents,
	commits, and derived records that demonstrate specific features.

AVAILABLE SCENARIOS:

	quote-lifecycle: Quote drafted, sent, partially invoiced, then edited
	revert-cascade:  Invoiced quote edited after the fact, ready for a
	                 revert preview that shows the invoice being voided
	po-receiving:    Purchase order received in two partial shipments,
	                 auto-transitioning to received
	percent-pricing: Quote with a percent-of-total surcharge line

HOW SCENARIOS WORK:
 1. Create documents through the regular engines (never raw store writes)
 2. Apply commits and derived records the way a client would
 3. Return the created document ids so the caller can explore them

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "revert-cascade"}

NOTE:

	Scenarios do not reset the database; each load creates fresh documents.

SEE ALSO:
  - handlers.go: Error mapping and response helpers
  - server.go: Route wiring
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/document-engine/generic"
	"github.com/warp/document-engine/purchase"
	"github.com/warp/document-engine/quote"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes one loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "quote-lifecycle",
		Name:        "Quote Lifecycle",
		Description: "Quote drafted, sent, partially invoiced, then edited",
		Category:    "quote",
	},
	{
		ID:          "revert-cascade",
		Name:        "Revert Cascade",
		Description: "Invoiced quote edited afterwards; revert preview shows the invoice being voided",
		Category:    "quote",
	},
	{
		ID:          "po-receiving",
		Name:        "PO Receiving",
		Description: "Purchase order received in two partial shipments",
		Category:    "purchase_order",
	},
	{
		ID:          "percent-pricing",
		Name:        "Percent Pricing",
		Description: "Quote with a percent-of-total surcharge line",
		Category:    "quote",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario loads a predefined scenario and returns the created
// document ids.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	var (
		created map[string]string
		err     error
	)
	switch req.ScenarioID {
	case "quote-lifecycle":
		created, err = h.loadQuoteLifecycle(ctx)
	case "revert-cascade":
		created, err = h.loadRevertCascade(ctx)
	case "po-receiving":
		created, err = h.loadPOReceiving(ctx)
	case "percent-pricing":
		created, err = h.loadPercentPricing(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"scenario_id": req.ScenarioID,
		"documents":   created,
	})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadQuoteLifecycle drafts a quote with mixed lines, sends it, invoices
// part of the labor, then commits a quantity edit.
func (h *Handler) loadQuoteLifecycle(ctx context.Context) (map[string]string, error) {
	eng := h.engine(quote.Kind)

	doc, err := eng.CreateDocument(ctx, generic.NewDocumentSpec{
		Number: "Q-1001",
		Status: quote.StatusDraft,
		Lines: []generic.AddSpec{
			{
				Type:        quote.ItemLabor,
				Description: "Installation labor",
				Quantity:    generic.NewQtyFromInt(10),
				UnitPrice:   generic.NewMoney(95),
			},
			{
				Type:        quote.ItemPart,
				Description: "Mounting bracket",
				CatalogRef:  "BRK-220",
				Quantity:    generic.NewQtyFromInt(4),
				UnitPrice:   generic.NewMoney(18.50),
			},
		},
	})
	if err != nil {
		return nil, err
	}

	doc, err = eng.ChangeStatus(ctx, doc.ID, doc.Version, quote.StatusSent)
	if err != nil {
		return nil, err
	}

	if _, err := eng.CreateDerivedRecord(ctx, doc.ID, []generic.FulfillmentEntry{
		{LineItemID: doc.Lines[0].ID, Quantity: generic.NewQtyFromInt(6)},
	}); err != nil {
		return nil, err
	}

	doc, err = eng.Get(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	qty := generic.NewQtyFromInt(12)
	if _, err := eng.Commit(ctx, doc.ID, doc.Version, []generic.Change{
		{Action: generic.ChangeEdit, LineItemID: doc.Lines[0].ID, Edit: &generic.EditFields{Quantity: &qty}},
	}); err != nil {
		return nil, err
	}

	return map[string]string{"quote": string(doc.ID)}, nil
}

// loadRevertCascade builds the canonical revert setup: a line invoiced
// for part of its quantity, then edited. Reverting to version 1 will
// void the invoice and restore qty_pending to the full quantity.
func (h *Handler) loadRevertCascade(ctx context.Context) (map[string]string, error) {
	eng := h.engine(quote.Kind)

	doc, err := eng.CreateDocument(ctx, generic.NewDocumentSpec{
		Number: "Q-2001",
		Status: quote.StatusSent,
		Lines: []generic.AddSpec{
			{
				Type:        quote.ItemLabor,
				Description: "Consulting hours",
				Quantity:    generic.NewQtyFromInt(10),
				UnitPrice:   generic.NewMoney(150),
			},
		},
	})
	if err != nil {
		return nil, err
	}

	if _, err := eng.CreateDerivedRecord(ctx, doc.ID, []generic.FulfillmentEntry{
		{LineItemID: doc.Lines[0].ID, Quantity: generic.NewQtyFromInt(6)},
	}); err != nil {
		return nil, err
	}

	doc, err = eng.Get(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	qty := generic.NewQtyFromInt(12)
	if _, err := eng.Commit(ctx, doc.ID, doc.Version, []generic.Change{
		{Action: generic.ChangeEdit, LineItemID: doc.Lines[0].ID, Edit: &generic.EditFields{Quantity: &qty}},
	}); err != nil {
		return nil, err
	}

	return map[string]string{"quote": string(doc.ID)}, nil
}

// loadPOReceiving receives a purchase order in two shipments. The second
// receiving completes all lines and the status auto-transitions.
func (h *Handler) loadPOReceiving(ctx context.Context) (map[string]string, error) {
	eng := h.engine(purchase.Kind)

	doc, err := eng.CreateDocument(ctx, generic.NewDocumentSpec{
		Number: "PO-3001",
		Status: purchase.StatusSent,
		Lines: []generic.AddSpec{
			{
				Type:        purchase.ItemPart,
				Description: "Hex bolts M8",
				CatalogRef:  "HB-M8",
				Quantity:    generic.NewQtyFromInt(200),
				UnitPrice:   generic.NewMoney(0.12),
			},
			{
				Type:        purchase.ItemPart,
				Description: "Steel plate 2mm",
				CatalogRef:  "SP-2",
				Quantity:    generic.NewQtyFromInt(20),
				UnitPrice:   generic.NewMoney(14),
			},
		},
	})
	if err != nil {
		return nil, err
	}

	if _, err := eng.CreateDerivedRecord(ctx, doc.ID, []generic.FulfillmentEntry{
		{LineItemID: doc.Lines[0].ID, Quantity: generic.NewQtyFromInt(200)},
		{LineItemID: doc.Lines[1].ID, Quantity: generic.NewQtyFromInt(8)},
	}); err != nil {
		return nil, err
	}

	if _, err := eng.CreateDerivedRecord(ctx, doc.ID, []generic.FulfillmentEntry{
		{LineItemID: doc.Lines[1].ID, Quantity: generic.NewQtyFromInt(12)},
	}); err != nil {
		return nil, err
	}

	return map[string]string{"purchase_order": string(doc.ID)}, nil
}

// loadPercentPricing builds a quote whose last line is a percent-of-total
// surcharge resolved against the fixed-price lines.
func (h *Handler) loadPercentPricing(ctx context.Context) (map[string]string, error) {
	eng := h.engine(quote.Kind)

	pct := generic.MustParseDecimal("5")
	doc, err := eng.CreateDocument(ctx, generic.NewDocumentSpec{
		Number: "Q-4001",
		Status: quote.StatusDraft,
		Lines: []generic.AddSpec{
			{
				Type:        quote.ItemPart,
				Description: "Server chassis",
				Quantity:    generic.NewQtyFromInt(2),
				UnitPrice:   generic.NewMoney(800),
			},
			{
				Type:        quote.ItemLabor,
				Description: "Rack installation",
				Quantity:    generic.NewQtyFromInt(3),
				UnitPrice:   generic.NewMoney(120),
			},
			{
				Type:           quote.ItemMisc,
				Description:    "Handling surcharge",
				Quantity:       generic.NewQtyFromInt(1),
				PercentOfTotal: &pct,
			},
		},
	})
	if err != nil {
		return nil, err
	}

	return map[string]string{"quote": string(doc.ID)}, nil
}
