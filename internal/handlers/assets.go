package handlers

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/bobmcallan/folio-portal/internal/chart"
	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/config"
	"github.com/bobmcallan/folio-portal/internal/models"
	"github.com/bobmcallan/folio-portal/internal/store"
)

// AssetHandler serves the market catalog, symbol search, derived metrics
// and the price chart.
type AssetHandler struct {
	logger *common.Logger
	guard  *Guard
	chart  config.ChartConfig
}

// NewAssetHandler creates a new asset handler. cfg supplies the default
// chart size and theme.
func NewAssetHandler(logger *common.Logger, guard *Guard, cfg config.ChartConfig) *AssetHandler {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &AssetHandler{logger: logger, guard: guard, chart: cfg}
}

type assetList struct {
	listResponse[models.Asset]
	Categories []string `json:"categories"`
}

// HandleList handles GET /api/assets.
func (h *AssetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ws, ok := h.guard.workspace(w, r)
	if !ok {
		return
	}
	if !refreshIfAsked(h.guard, w, r, ws.Assets.List()) {
		return
	}
	minPrice, err := queryFloat(r, "min_price")
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	maxPrice, err := queryFloat(r, "max_price")
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	items, err := ws.Assets.View(store.AssetFilter{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		Sort:     q.Get("sort"),
		Order:    q.Get("order"),
	})
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	categories := ws.Assets.Categories()
	if categories == nil {
		categories = []string{}
	}
	WriteJSON(w, http.StatusOK, assetList{
		listResponse: listing(ws.Assets.List(), items),
		Categories:   categories,
	})
}

// HandleSearch handles GET /api/assets/search?q=. With a field parameter
// the query is debounced per field: a newer query from the same field
// answers the older one with 409.
func (h *AssetHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ws, ok := h.guard.workspace(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))

	var (
		assets []models.Asset
		err    error
	)
	if fieldName := q.Get("field"); fieldName != "" {
		assets, err = ws.Assets.SearchDebounced(r.Context(), fieldName, query)
	} else {
		assets, err = ws.Assets.Search(r.Context(), query)
	}
	if err != nil {
		h.guard.Fail(w, r, err)
		return
	}
	if assets == nil {
		assets = []models.Asset{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"query":   query,
		"results": assets,
		"count":   len(assets),
	})
}

// HandleQuote handles GET /api/assets/{symbol}/quote.
func (h *AssetHandler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ws, ok := h.guard.workspace(w, r)
	if !ok {
		return
	}
	quote, err := ws.Assets.Quote(r.Context(), r.PathValue("symbol"))
	if err != nil {
		h.guard.Fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "quote": quote})
}

type metricsResponse struct {
	Status  string            `json:"status"`
	Symbol  string            `json:"symbol"`
	Period  chart.Period      `json:"period"`
	Metrics *chart.Metrics    `json:"metrics"`
	Display map[string]string `json:"display,omitempty"`
	Message string            `json:"message,omitempty"`
}

// HandleMetrics handles GET /api/assets/{symbol}/metrics?period=.
func (h *AssetHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ws, ok := h.guard.workspace(w, r)
	if !ok {
		return
	}
	period, err := chart.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(r.PathValue("symbol")))
	m, ok, err := ws.Assets.Metrics(r.Context(), symbol, period)
	if err != nil {
		h.guard.Fail(w, r, err)
		return
	}

	out := metricsResponse{Status: "ok", Symbol: symbol, Period: period}
	if !ok {
		out.Message = "not enough price history for " + string(period)
		WriteJSON(w, http.StatusOK, out)
		return
	}
	out.Metrics = &m
	out.Display = DisplayMetrics(m)
	WriteJSON(w, http.StatusOK, out)
}

// DisplayMetrics formats metrics the way the metrics panel shows them.
func DisplayMetrics(m chart.Metrics) map[string]string {
	return map[string]string{
		"total_return": common.FormatSignedPct(m.TotalReturnPct),
		"period_high":  common.FormatMoney(m.PeriodHigh, ""),
		"period_low":   common.FormatMoney(m.PeriodLow, ""),
		"max_gain":     common.FormatSignedPct(m.MaxGainPct),
		"max_loss":     common.FormatSignedPct(m.MaxLossPct),
		"volatility":   common.FormatPct(m.VolatilityPct),
		"max_drawdown": common.FormatPct(m.MaxDrawdownPct),
		"atr":          common.FormatMoney(m.ATR, ""),
		"obv_trend":    string(m.OBVTrend),
	}
}

// HandleChart handles GET /api/assets/{symbol}/chart.png. Query
// parameters: period, width, height, theme, indicators (comma separated,
// e.g. sma20,bbands20) and resize. The workspace keeps one chart surface;
// it is rebuilt only when the series or options change, and resize=true
// reflows the current chart to the new size.
func (h *AssetHandler) HandleChart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ws, ok := h.guard.workspace(w, r)
	if !ok {
		return
	}
	req, err := h.chartRequest(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := ws.Assets.Chart(r.Context(), req, &buf); err != nil {
		h.guard.Fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *AssetHandler) chartRequest(r *http.Request) (store.ChartRequest, error) {
	q := r.URL.Query()
	period, err := chart.ParsePeriod(q.Get("period"))
	if err != nil {
		return store.ChartRequest{}, err
	}
	width, err := queryInt(r, "width", h.chart.Width)
	if err != nil {
		return store.ChartRequest{}, err
	}
	height, err := queryInt(r, "height", h.chart.Height)
	if err != nil {
		return store.ChartRequest{}, err
	}
	themeName := q.Get("theme")
	if themeName == "" {
		themeName = h.chart.Theme
	}
	theme, err := chart.ParseTheme(themeName)
	if err != nil {
		return store.ChartRequest{}, err
	}
	indicators, err := chart.ParseIndicators(q.Get("indicators"))
	if err != nil {
		return store.ChartRequest{}, err
	}
	resize, _ := strconv.ParseBool(q.Get("resize"))

	return store.ChartRequest{
		Symbol:     r.PathValue("symbol"),
		Period:     period,
		Indicators: indicators,
		Options:    chart.Options{Width: width, Height: height, Theme: theme},
		Resize:     resize,
	}, nil
}
