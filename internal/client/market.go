package client

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/bobmcallan/folio-portal/internal/models"
)

// ListAssets returns the market catalog.
// GET /api/market/assets?limit=&include_prices= -> {"assets": [...]}
func (c *Client) ListAssets(ctx context.Context, opts models.AssetListOptions) ([]models.Asset, error) {
	q := url.Values{}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.IncludePrices {
		q.Set("include_prices", "true")
	}
	path := "/api/market/assets"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	body, err := c.getCached(ctx, path)
	if err != nil {
		return nil, err
	}
	var out []models.Asset
	if err := decodeField(body, "assets", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchAssets finds catalog entries matching query.
// GET /api/market/search?q= -> {"results": [...]}
func (c *Client) SearchAssets(ctx context.Context, query string) ([]models.Asset, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	body, err := c.getCached(ctx, "/api/market/search?q="+url.QueryEscape(query))
	if err != nil {
		return nil, err
	}
	var out []models.Asset
	if err := decodeField(body, "results", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Price returns the current quote for symbol.
// GET /api/market/price/{symbol} -> {"symbol": ..., "price": ...}
func (c *Client) Price(ctx context.Context, symbol string) (*models.Quote, error) {
	body, err := c.getCached(ctx, "/api/market/price/"+url.PathEscape(strings.ToUpper(symbol)))
	if err != nil {
		return nil, err
	}
	var out models.Quote
	if err := decodeObject(body, "quote", "price", &out); err != nil {
		return nil, err
	}
	if out.Symbol == "" {
		out.Symbol = strings.ToUpper(symbol)
	}
	return &out, nil
}

// History returns raw OHLCV rows for symbol. Callers coerce them with
// chart.Coerce before use.
// GET /api/market/history/{symbol}?period= -> {"history": [...]}
func (c *Client) History(ctx context.Context, symbol, period string) ([]models.RawPricePoint, error) {
	path := "/api/market/history/" + url.PathEscape(strings.ToUpper(symbol))
	if period != "" {
		path += "?period=" + url.QueryEscape(period)
	}
	body, err := c.getCached(ctx, path)
	if err != nil {
		return nil, err
	}
	var out []models.RawPricePoint
	if err := decodeField(body, "history", &out); err != nil {
		return nil, err
	}
	return out, nil
}
