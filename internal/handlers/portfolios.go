package handlers

import (
	"net/http"

	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/ledger"
	"github.com/bobmcallan/folio-portal/internal/models"
	"github.com/bobmcallan/folio-portal/internal/session"
	"github.com/bobmcallan/folio-portal/internal/store"
)

// PortfolioHandler serves the portfolio resource of a workspace.
type PortfolioHandler struct {
	logger   *common.Logger
	guard    *Guard
	sessions *session.Manager
}

// NewPortfolioHandler creates a new portfolio handler.
func NewPortfolioHandler(logger *common.Logger, guard *Guard, sessions *session.Manager) *PortfolioHandler {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &PortfolioHandler{logger: logger, guard: guard, sessions: sessions}
}

type portfolioRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	InitialCash   field  `json:"initial_cash"`
	TargetReturn  field  `json:"target_return"`
	RiskTolerance string `json:"risk_tolerance"`
	Visibility    string `json:"visibility"`
	IsPublic      *bool  `json:"is_public"`
}

func (p portfolioRequest) form() ledger.PortfolioForm {
	f := ledger.PortfolioForm{
		Name:          p.Name,
		Description:   p.Description,
		InitialCash:   string(p.InitialCash),
		TargetReturn:  string(p.TargetReturn),
		RiskTolerance: p.RiskTolerance,
		Visibility:    p.Visibility,
	}
	if f.Visibility == "" && p.IsPublic != nil {
		f.Visibility = string(models.VisibilityPrivate)
		if *p.IsPublic {
			f.Visibility = string(models.VisibilityPublic)
		}
	}
	return f
}

type portfolioList struct {
	listResponse[models.Portfolio]
	SelectedPortfolioID models.ID `json:"selected_portfolio_id,omitempty"`
}

// HandleList handles GET /api/portfolios.
func (h *PortfolioHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.guard.workspace(w, r)
	if !ok {
		return
	}
	if !refreshIfAsked(h.guard, w, r, ws.Portfolios.List()) {
		return
	}
	q := r.URL.Query()
	items, err := ws.Portfolios.View(store.PortfolioFilter{
		Search:     q.Get("search"),
		Risk:       q.Get("risk"),
		Visibility: q.Get("visibility"),
		Sort:       q.Get("sort"),
		Order:      q.Get("order"),
	})
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, portfolioList{
		listResponse:        listing(ws.Portfolios.List(), items),
		SelectedPortfolioID: ws.Session().SelectedPortfolioID,
	})
}

// HandleCreate handles POST /api/portfolios.
func (h *PortfolioHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.guard.workspace(w, r)
	if !ok {
		return
	}
	var req portfolioRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	pf, err := ws.Portfolios.Create(r.Context(), req.form())
	if err != nil {
		h.guard.Fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"status": "ok", "portfolio": pf})
}

// HandleGet handles GET /api/portfolios/{id}.
func (h *PortfolioHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.guard.workspace(w, r)
	if !ok {
		return
	}
	pf, err := ws.Portfolios.Get(r.Context(), models.ID(r.PathValue("id")))
	if err != nil {
		h.guard.Fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "portfolio": pf})
}

// HandleUpdate handles PUT /api/portfolios/{id}.
func (h *PortfolioHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.guard.workspace(w, r)
	if !ok {
		return
	}
	var req portfolioRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	pf, err := ws.Portfolios.Update(r.Context(), models.ID(r.PathValue("id")), req.form())
	if err != nil {
		h.guard.Fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "portfolio": pf})
}

// HandleDelete handles DELETE /api/portfolios/{id}?confirm=true.
func (h *PortfolioHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.guard.workspace(w, r)
	if !ok {
		return
	}
	if err := ws.Portfolios.Delete(r.Context(), models.ID(r.PathValue("id")), confirmed(r)); err != nil {
		h.guard.Fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":                "ok",
		"selected_portfolio_id": ws.Session().SelectedPortfolioID,
	})
}

// HandleSummary handles GET /api/portfolios/{id}/summary.
func (h *PortfolioHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ws, ok := h.guard.workspace(w, r)
	if !ok {
		return
	}
	summary, err := ws.Portfolios.Summary(r.Context(), models.ID(r.PathValue("id")))
	if err != nil {
		h.guard.Fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "summary": summary})
}

// HandleSelect handles POST (select) and DELETE (deselect) on
// /api/portfolios/{id}/select.
func (h *PortfolioHandler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.guard.workspace(w, r)
	if !ok {
		return
	}
	id := models.ID(r.PathValue("id"))

	var (
		sess session.Session
		err  error
	)
	switch r.Method {
	case http.MethodPost:
		if _, err := ws.Portfolios.Get(r.Context(), id); err != nil {
			h.guard.Fail(w, r, err)
			return
		}
		sess, err = h.sessions.Select(r.Context(), ws.SessionID, id)
	case http.MethodDelete:
		sess, err = h.sessions.PortfolioDeleted(r.Context(), ws.SessionID, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err != nil {
		h.guard.Fail(w, r, err)
		return
	}
	h.guard.registry.Get(sess)
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":                "ok",
		"selected_portfolio_id": sess.SelectedPortfolioID,
	})
}
