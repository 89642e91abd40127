package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/bobmcallan/folio-portal/internal/models"
)

// ListUserAssets returns the holdings the user tracks directly.
// GET /api/user-assets -> {"user_assets": [...]}
func (c *Client) ListUserAssets(ctx context.Context) ([]models.UserAsset, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/user-assets", nil)
	if err != nil {
		return nil, err
	}
	var out []models.UserAsset
	if err := decodeField(body, "user_assets", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateUserAsset adds a holding.
func (c *Client) CreateUserAsset(ctx context.Context, in models.UserAssetInput) (*models.UserAsset, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/user-assets", in)
	if err != nil {
		return nil, err
	}
	var out models.UserAsset
	if err := decodeObject(body, "user_asset", "id", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateUserAsset replaces a holding.
func (c *Client) UpdateUserAsset(ctx context.Context, id models.ID, in models.UserAssetInput) (*models.UserAsset, error) {
	body, err := c.do(ctx, http.MethodPut, "/api/user-assets/"+url.PathEscape(id.String()), in)
	if err != nil {
		return nil, err
	}
	var out models.UserAsset
	if err := decodeObject(body, "user_asset", "id", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteUserAsset removes a holding.
func (c *Client) DeleteUserAsset(ctx context.Context, id models.ID) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/user-assets/"+url.PathEscape(id.String()), nil)
	return err
}
