package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bobmcallan/folio-portal/internal/models"
)

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	Token       string       `json:"token"`
	User        *models.User `json:"user"`
}

func (r tokenResponse) token() string {
	if r.AccessToken != "" {
		return r.AccessToken
	}
	return r.Token
}

// Login exchanges credentials for a bearer token.
// POST /api/auth/login -> {"access_token": ..., "user": {...}}
func (c *Client) Login(ctx context.Context, creds models.Credentials) (string, *models.User, error) {
	return c.issueToken(ctx, "/api/auth/login", creds)
}

// Register creates an account and signs it in.
func (c *Client) Register(ctx context.Context, creds models.Credentials) (string, *models.User, error) {
	return c.issueToken(ctx, "/api/auth/register", creds)
}

func (c *Client) issueToken(ctx context.Context, path string, creds models.Credentials) (string, *models.User, error) {
	body, err := c.do(ctx, http.MethodPost, path, creds)
	if err != nil {
		return "", nil, err
	}
	var resp tokenResponse
	if err := decodeInto(body, "token", &resp); err != nil {
		return "", nil, err
	}
	tok := resp.token()
	if tok == "" {
		return "", nil, fmt.Errorf("%w: missing %q", ErrUnexpectedShape, "access_token")
	}
	if resp.User == nil {
		user, err := c.Me(WithToken(ctx, tok))
		if err != nil {
			return "", nil, fmt.Errorf("failed to load user after %s: %w", path, err)
		}
		resp.User = user
	}
	return tok, resp.User, nil
}

// Logout revokes the current token on the server.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil)
	return err
}

// Me returns the authenticated user.
// GET /api/auth/me -> {"user": {...}} or the bare user
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/auth/me", nil)
	if err != nil {
		return nil, err
	}
	var out models.User
	if err := decodeObject(body, "user", "username", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResendVerification asks the server to email a new verification link.
func (c *Client) ResendVerification(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/resend-verification", nil)
	return err
}

// ResetPassword completes a password reset.
func (c *Client) ResetPassword(ctx context.Context, in models.PasswordReset) error {
	if in.NewPassword == "" {
		return fmt.Errorf("new password is required")
	}
	if in.NewPassword != in.ConfirmPassword {
		return fmt.Errorf("passwords do not match")
	}
	_, err := c.do(ctx, http.MethodPost, "/api/auth/reset-password", in)
	return err
}
