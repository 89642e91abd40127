package mcp

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio-portal/internal/chart"
	"github.com/bobmcallan/folio-portal/internal/handlers"
	"github.com/bobmcallan/folio-portal/internal/ledger"
	"github.com/bobmcallan/folio-portal/internal/models"
	"github.com/bobmcallan/folio-portal/internal/store"
)

// defaultListLimit caps list_transactions when no limit is given.
const defaultListLimit = 50

// RegisterTools adds the portal tools to s. It returns how many were
// registered.
func RegisterTools(s *server.MCPServer) int {
	tools := []server.ServerTool{
		{Tool: AssetMetricsTool(), Handler: AssetMetricsHandler},
		{Tool: ListTransactionsTool(), Handler: ListTransactionsHandler},
		{Tool: TransactionTotalTool(), Handler: TransactionTotalHandler},
	}
	s.AddTools(tools...)
	return len(tools)
}

// AssetMetricsTool returns the asset_metrics tool definition.
func AssetMetricsTool() mcp.Tool {
	return mcp.NewTool("asset_metrics",
		mcp.WithDescription("Derived metrics of a symbol's price history over a period: total return, period high and low, max gain and loss, volatility, max drawdown, ATR and OBV trend. Percentages are in percent."),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Ticker symbol, e.g. AAPL")),
		mcp.WithString("period", mcp.Description("1W, 1M, 3M, 6M, 1Y or ALL (default: ALL)")),
	)
}

// AssetMetricsHandler computes asset_metrics for the caller.
func AssetMetricsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ws, fail := workspace(ctx)
	if fail != nil {
		return fail, nil
	}
	symbol, err := request.RequireString("symbol")
	if err != nil || strings.TrimSpace(symbol) == "" {
		return errorResult("symbol is required"), nil
	}
	period, err := chart.ParsePeriod(request.GetString("period", ""))
	if err != nil {
		return errorResult(err.Error()), nil
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	m, ok, err := ws.Assets.Metrics(ctx, symbol, period)
	if err != nil {
		return failure(err), nil
	}
	if !ok {
		return jsonResult(map[string]any{
			"symbol":  symbol,
			"period":  period,
			"metrics": nil,
			"message": "not enough price history for " + string(period),
		}), nil
	}
	m.DailyReturns = nil
	return jsonResult(map[string]any{
		"symbol":  symbol,
		"period":  period,
		"metrics": m,
		"display": handlers.DisplayMetrics(m),
	}), nil
}

// ListTransactionsTool returns the list_transactions tool definition.
func ListTransactionsTool() mcp.Tool {
	return mcp.NewTool("list_transactions",
		mcp.WithDescription("List the caller's transactions with search, filters and sorting, plus debit, credit and fee totals of the result."),
		mcp.WithString("search", mcp.Description("Case-insensitive match on symbol, portfolio name or notes")),
		mcp.WithString("portfolio", mcp.Description("Portfolio id or name")),
		mcp.WithString("type", mcp.Description("buy, sell, dividend, split, merger, spin_off, rights_issue, option_exercise, transfer_in, transfer_out, fee, other or all")),
		mcp.WithString("range", mcp.Description("7d, 30d, 90d, 1y or all (default: all)")),
		mcp.WithString("sort", mcp.Description("date, amount, symbol, type, portfolio, quantity or price")),
		mcp.WithString("order", mcp.Description("asc or desc (default: asc)")),
		mcp.WithNumber("limit", mcp.Description("Maximum rows to return (default: 50)")),
	)
}

// ListTransactionsHandler filters the caller's transaction list.
func ListTransactionsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ws, fail := workspace(ctx)
	if fail != nil {
		return fail, nil
	}
	items, err := ws.Transactions.View(store.TransactionFilter{
		Search:    request.GetString("search", ""),
		Portfolio: request.GetString("portfolio", ""),
		Type:      request.GetString("type", ""),
		Range:     request.GetString("range", ""),
		Sort:      request.GetString("sort", ""),
		Order:     request.GetString("order", ""),
	})
	if err != nil {
		return errorResult(err.Error()), nil
	}

	totals := store.Summarize(items)
	limit := request.GetInt("limit", defaultListLimit)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	out := map[string]any{
		"transactions": items,
		"count":        len(items),
		"matched":      totals.Count,
		"totals":       totals,
	}
	if err := ws.Transactions.List().LastError(); err != nil {
		out["warning"] = "showing the last fetched list: " + err.Error()
	}
	return jsonResult(out), nil
}

// TransactionTotalTool returns the transaction_total tool definition.
func TransactionTotalTool() mcp.Tool {
	return mcp.NewTool("transaction_total",
		mcp.WithDescription("Compute the total of a transaction the way the entry form does: quantity x price + fees for buy, sell, dividend and transfers, the fees alone for every other type. Buys, fees and transfers out are debits."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Transaction type, e.g. buy, sell, dividend, fee")),
		mcp.WithNumber("quantity", mcp.Description("Units")),
		mcp.WithNumber("price", mcp.Description("Price per unit")),
		mcp.WithNumber("fees", mcp.Description("Fees charged")),
		mcp.WithString("currency", mcp.Description("Currency code for the display value (default: USD)")),
	)
}

// TransactionTotalHandler evaluates the derived total. It needs no
// session.
func TransactionTotalHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("type")
	if err != nil {
		return errorResult("type is required"), nil
	}
	typ, err := models.ParseTransactionType(raw)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	quantity := request.GetFloat("quantity", 0)
	price := request.GetFloat("price", 0)
	fees := request.GetFloat("fees", 0)
	if quantity < 0 || price < 0 || fees < 0 {
		return errorResult("quantity, price and fees must not be negative"), nil
	}

	total := ledger.Total(typ,
		decimal.NewFromFloat(quantity),
		decimal.NewFromFloat(price),
		decimal.NewFromFloat(fees),
	).Round(2).InexactFloat64()

	return jsonResult(map[string]any{
		"type":      typ,
		"total":     total,
		"signed":    ledger.Signed(total, typ),
		"direction": ledger.DirectionOf(typ).String(),
		"display":   ledger.DisplayTotal(total, typ, request.GetString("currency", "")),
	}), nil
}
