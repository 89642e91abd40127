package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bobmcallan/folio-portal/internal/models"
)

// ListTransactions returns the user's transactions across portfolios.
// GET /api/transactions?limit=&order_by=&order= -> {"transactions": [...]}
func (c *Client) ListTransactions(ctx context.Context, opts models.TransactionListOptions) ([]models.Transaction, error) {
	q := url.Values{}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.OrderBy != "" {
		q.Set("order_by", opts.OrderBy)
	}
	if opts.Order != "" {
		q.Set("order", opts.Order)
	}
	path := "/api/transactions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return c.listTransactions(ctx, path)
}

// ListPortfolioTransactions returns the transactions of one portfolio.
func (c *Client) ListPortfolioTransactions(ctx context.Context, portfolioID models.ID) ([]models.Transaction, error) {
	return c.listTransactions(ctx, portfolioPath(portfolioID)+"/transactions")
}

func (c *Client) listTransactions(ctx context.Context, path string) ([]models.Transaction, error) {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var out []models.Transaction
	if err := decodeField(body, "transactions", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTransaction records a transaction. Buys and sells go to their
// typed endpoints; every other type uses the generic endpoint.
func (c *Client) CreateTransaction(ctx context.Context, in models.TransactionInput) (*models.Transaction, error) {
	path := "/api/transactions"
	switch in.Type {
	case models.TxBuy:
		path = "/api/transactions/buy"
	case models.TxSell:
		path = "/api/transactions/sell"
	}
	body, err := c.do(ctx, http.MethodPost, path, in)
	if err != nil {
		return nil, err
	}
	var out models.Transaction
	if err := decodeObject(body, "transaction", "id", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTransaction replaces a transaction.
func (c *Client) UpdateTransaction(ctx context.Context, id models.ID, in models.TransactionInput) (*models.Transaction, error) {
	body, err := c.do(ctx, http.MethodPut, "/api/transactions/"+url.PathEscape(id.String()), in)
	if err != nil {
		return nil, err
	}
	var out models.Transaction
	if err := decodeObject(body, "transaction", "id", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTransaction removes a transaction.
func (c *Client) DeleteTransaction(ctx context.Context, id models.ID) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/transactions/"+url.PathEscape(id.String()), nil)
	return err
}
