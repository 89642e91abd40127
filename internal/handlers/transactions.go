package handlers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/ledger"
	"github.com/bobmcallan/folio-portal/internal/models"
	"github.com/bobmcallan/folio-portal/internal/store"
)

// TransactionHandler serves the transaction resource of a workspace.
type TransactionHandler struct {
	logger *common.Logger
	guard  *Guard
}

// NewTransactionHandler creates a new transaction handler.
func NewTransactionHandler(logger *common.Logger, guard *Guard) *TransactionHandler {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &TransactionHandler{logger: logger, guard: guard}
}

// transactionRequest is the entry form as posted by the browser. Amount
// and Quantity are linked through Price; LastEdited names the one the
// user typed last.
type transactionRequest struct {
	PortfolioID models.ID `json:"portfolio_id"`
	Type        string    `json:"transaction_type"`
	Symbol      string    `json:"symbol"`
	AssetID     models.ID `json:"asset_id"`
	Quantity    field     `json:"quantity"`
	Amount      field     `json:"amount"`
	LastEdited  string    `json:"last_edited"`
	Price       field     `json:"price"`
	Fees        field     `json:"fees"`
	SplitRatio  field     `json:"split_ratio"`
	Notes       string    `json:"notes"`
	Date        string    `json:"transaction_date"`
}

// form resolves the request into a ledger form. A missing portfolio falls
// back to the session's selection.
func (t transactionRequest) form(selected models.ID) (ledger.Form, error) {
	date, err := parseDate("transaction_date", t.Date)
	if err != nil {
		return ledger.Form{}, ledger.ValidationErrors{{Field: "transaction_date", Message: err.Error()}}
	}
	f := ledger.Form{
		PortfolioID: t.PortfolioID,
		Type:        models.TransactionType(strings.ToLower(strings.TrimSpace(t.Type))),
		Symbol:      t.Symbol,
		AssetID:     t.AssetID,
		Quantity:    string(t.Quantity),
		Price:       string(t.Price),
		Fees:        string(t.Fees),
		SplitRatio:  string(t.SplitRatio),
		Notes:       t.Notes,
		Date:        date,
	}
	if f.PortfolioID.IsZero() {
		f.PortfolioID = selected
	}

	useAmount := strings.EqualFold(t.LastEdited, ledger.SourceAmount.String()) ||
		(t.LastEdited == "" && t.Quantity == "" && t.Amount != "")
	if useAmount {
		var errs ledger.ValidationErrors
		amount, err := decimal.NewFromString(strings.TrimSpace(string(t.Amount)))
		if err != nil || amount.IsNegative() {
			errs = append(errs, ledger.ValidationError{Field: "amount", Message: "must be a non-negative number"})
		}
		price, err := decimal.NewFromString(strings.TrimSpace(string(t.Price)))
		if err != nil {
			errs = append(errs, ledger.ValidationError{Field: "price", Message: "is required to derive the quantity"})
		}
		if len(errs) > 0 {
			return f, errs
		}
		var entry ledger.Entry
		entry.SetPrice(price)
		entry.SetAmount(amount)
		entry.Apply(&f)
	}
	return f, nil
}

func (h *TransactionHandler) readForm(w http.ResponseWriter, r *http.Request, ws *store.Workspace) (ledger.Form, bool) {
	var req transactionRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return ledger.Form{}, false
	}
	form, err := req.form(ws.Session().SelectedPortfolioID)
	if err != nil {
		h.guard.Fail(w, r, err)
		return ledger.Form{}, false
	}
	return form, true
}

type transactionList struct {
	listResponse[models.Transaction]
	Totals    store.Totals      `json:"totals"`
	Positions map[string]string `json:"positions"`
}

// positions renders the shares held per symbol across items.
func positions(items []models.Transaction) map[string]string {
	out := make(map[string]string)
	for symbol, q := range ledger.Positions(items) {
		out[symbol] = q.String()
	}
	return out
}

// HandleList handles GET /api/transactions.
func (h *TransactionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.guard.workspace(w, r)
	if !ok {
		return
	}
	if !refreshIfAsked(h.guard, w, r, ws.Transactions.List()) {
		return
	}
	q := r.URL.Query()
	items, err := ws.Transactions.View(store.TransactionFilter{
		Search:    q.Get("search"),
		Portfolio: q.Get("portfolio"),
		Type:      q.Get("type"),
		Range:     q.Get("range"),
		Sort:      q.Get("sort"),
		Order:     q.Get("order"),
	})
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, transactionList{
		listResponse: listing(ws.Transactions.List(), items),
		Totals:       store.Summarize(items),
		Positions:    positions(items),
	})
}

// HandleCreate handles POST /api/transactions.
func (h *TransactionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.guard.workspace(w, r)
	if !ok {
		return
	}
	form, ok := h.readForm(w, r, ws)
	if !ok {
		return
	}
	tx, err := ws.Transactions.Create(r.Context(), form)
	if err != nil {
		h.guard.Fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"status": "ok", "transaction": tx})
}

// HandleUpdate handles PUT /api/transactions/{id}.
func (h *TransactionHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.guard.workspace(w, r)
	if !ok {
		return
	}
	form, ok := h.readForm(w, r, ws)
	if !ok {
		return
	}
	tx, err := ws.Transactions.Update(r.Context(), models.ID(r.PathValue("id")), form)
	if err != nil {
		h.guard.Fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "transaction": tx})
}

// HandleDelete handles DELETE /api/transactions/{id}?confirm=true.
func (h *TransactionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.guard.workspace(w, r)
	if !ok {
		return
	}
	if err := ws.Transactions.Delete(r.Context(), models.ID(r.PathValue("id")), confirmed(r)); err != nil {
		h.guard.Fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// preview is the live feedback of the entry form.
type preview struct {
	Status    string                   `json:"status"`
	Quantity  string                   `json:"quantity"`
	Price     string                   `json:"price"`
	Total     float64                  `json:"total"`
	Signed    float64                  `json:"signed_total"`
	Display   string                   `json:"display"`
	Direction string                   `json:"direction"`
	Valid     bool                     `json:"valid"`
	Errors    []ledger.ValidationError `json:"errors,omitempty"`
}

// HandlePreview handles POST /api/transactions/preview. It never reaches
// folio-server: the derived quantity, total and validation state of a
// partially filled form are computed locally.
func (h *TransactionHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	ws, ok := h.guard.workspace(w, r)
	if !ok {
		return
	}
	var req transactionRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	out := preview{Status: "ok"}
	form, err := req.form(ws.Session().SelectedPortfolioID)
	if err == nil {
		err = form.Validate()
	}
	if verrs, isValidation := err.(ledger.ValidationErrors); isValidation {
		out.Errors = verrs
	} else if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	total := form.Total().Round(2).InexactFloat64()
	out.Quantity = form.Quantity
	out.Price = form.Price
	out.Total = total
	out.Signed = ledger.Signed(total, form.Type)
	out.Display = ledger.DisplayTotal(total, form.Type, "")
	out.Direction = ledger.DirectionOf(form.Type).String()
	out.Valid = len(out.Errors) == 0
	WriteJSON(w, http.StatusOK, out)
}
