package handlers

import (
	"net/http"

	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/ledger"
	"github.com/bobmcallan/folio-portal/internal/models"
	"github.com/bobmcallan/folio-portal/internal/store"
)

// HoldingHandler serves the directly tracked user assets.
type HoldingHandler struct {
	logger *common.Logger
	guard  *Guard
}

// NewHoldingHandler creates a new holding handler.
func NewHoldingHandler(logger *common.Logger, guard *Guard) *HoldingHandler {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &HoldingHandler{logger: logger, guard: guard}
}

type holdingRequest struct {
	AssetID       models.ID `json:"asset_id"`
	Symbol        string    `json:"symbol"`
	Quantity      field     `json:"quantity"`
	PurchasePrice field     `json:"purchase_price"`
	PurchaseDate  string    `json:"purchase_date"`
}

func (h *HoldingHandler) readForm(w http.ResponseWriter, r *http.Request) (ledger.HoldingForm, bool) {
	var req holdingRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return ledger.HoldingForm{}, false
	}
	date, err := parseDate("purchase_date", req.PurchaseDate)
	if err != nil {
		h.guard.Fail(w, r, ledger.ValidationErrors{{Field: "purchase_date", Message: err.Error()}})
		return ledger.HoldingForm{}, false
	}
	return ledger.HoldingForm{
		AssetID:       req.AssetID,
		Symbol:        req.Symbol,
		Quantity:      string(req.Quantity),
		PurchasePrice: string(req.PurchasePrice),
		PurchaseDate:  date,
	}, true
}

type holdingList struct {
	listResponse[models.UserAsset]
	Totals store.HoldingTotals `json:"totals"`
}

// HandleList handles GET /api/holdings.
func (h *HoldingHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.guard.workspace(w, r)
	if !ok {
		return
	}
	if !refreshIfAsked(h.guard, w, r, ws.Holdings.List()) {
		return
	}
	q := r.URL.Query()
	items, err := ws.Holdings.View(store.HoldingFilter{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		Sort:     q.Get("sort"),
		Order:    q.Get("order"),
	})
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, holdingList{
		listResponse: listing(ws.Holdings.List(), items),
		Totals:       store.SumHoldings(items),
	})
}

// HandleCreate handles POST /api/holdings.
func (h *HoldingHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.guard.workspace(w, r)
	if !ok {
		return
	}
	form, ok := h.readForm(w, r)
	if !ok {
		return
	}
	a, err := ws.Holdings.Create(r.Context(), form)
	if err != nil {
		h.guard.Fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"status": "ok", "holding": a})
}

// HandleUpdate handles PUT /api/holdings/{id}.
func (h *HoldingHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.guard.workspace(w, r)
	if !ok {
		return
	}
	form, ok := h.readForm(w, r)
	if !ok {
		return
	}
	a, err := ws.Holdings.Update(r.Context(), models.ID(r.PathValue("id")), form)
	if err != nil {
		h.guard.Fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "holding": a})
}

// HandleDelete handles DELETE /api/holdings/{id}?confirm=true.
func (h *HoldingHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.guard.workspace(w, r)
	if !ok {
		return
	}
	if err := ws.Holdings.Delete(r.Context(), models.ID(r.PathValue("id")), confirmed(r)); err != nil {
		h.guard.Fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
