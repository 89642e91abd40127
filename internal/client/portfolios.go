package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/bobmcallan/folio-portal/internal/models"
)

func portfolioPath(id models.ID) string {
	return "/api/portfolios/" + url.PathEscape(id.String())
}

// ListPortfolios returns the user's portfolios.
// GET /api/portfolios -> {"portfolios": [...]}
func (c *Client) ListPortfolios(ctx context.Context) ([]models.Portfolio, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/portfolios", nil)
	if err != nil {
		return nil, err
	}
	var out []models.Portfolio
	if err := decodeField(body, "portfolios", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetPortfolio returns one portfolio.
func (c *Client) GetPortfolio(ctx context.Context, id models.ID) (*models.Portfolio, error) {
	body, err := c.do(ctx, http.MethodGet, portfolioPath(id), nil)
	if err != nil {
		return nil, err
	}
	var out models.Portfolio
	if err := decodeObject(body, "portfolio", "id", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePortfolio creates a portfolio and returns it as stored.
func (c *Client) CreatePortfolio(ctx context.Context, in models.PortfolioInput) (*models.Portfolio, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/portfolios", in)
	if err != nil {
		return nil, err
	}
	var out models.Portfolio
	if err := decodeObject(body, "portfolio", "id", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePortfolio replaces the editable fields of a portfolio.
func (c *Client) UpdatePortfolio(ctx context.Context, id models.ID, in models.PortfolioInput) (*models.Portfolio, error) {
	body, err := c.do(ctx, http.MethodPut, portfolioPath(id), in)
	if err != nil {
		return nil, err
	}
	var out models.Portfolio
	if err := decodeObject(body, "portfolio", "id", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePortfolio removes a portfolio.
func (c *Client) DeletePortfolio(ctx context.Context, id models.ID) error {
	_, err := c.do(ctx, http.MethodDelete, portfolioPath(id), nil)
	return err
}

// PortfolioSummary returns the server-computed summary block.
// GET /api/portfolios/{id}/summary -> {"summary": {...}}
func (c *Client) PortfolioSummary(ctx context.Context, id models.ID) (*models.PortfolioSummary, error) {
	body, err := c.do(ctx, http.MethodGet, portfolioPath(id)+"/summary", nil)
	if err != nil {
		return nil, err
	}
	var out models.PortfolioSummary
	if err := decodeObject(body, "summary", "total_value", &out); err != nil {
		return nil, err
	}
	if out.PortfolioID.IsZero() {
		out.PortfolioID = id
	}
	return &out, nil
}
