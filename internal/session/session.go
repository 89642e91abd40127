// Package session holds the authenticated user, their folio-server token
// and their portfolio selection. A Session is created at login, persisted
// in the local store and dropped at logout or when the token is rejected.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bobmcallan/folio-portal/internal/models"
)

// ErrNoSession means the caller is not signed in, or the session expired.
var ErrNoSession = errors.New("no active session")

// Session is the per-user application context.
type Session struct {
	ID                  string      `msgpack:"id"`
	Token               string      `msgpack:"token"`
	User                models.User `msgpack:"user"`
	SelectedPortfolioID models.ID   `msgpack:"selected_portfolio_id"`
	CreatedAt           time.Time   `msgpack:"created_at"`
	ExpiresAt           time.Time   `msgpack:"expires_at"`
}

// HasSelection reports whether a portfolio is selected.
func (s *Session) HasSelection() bool { return !s.SelectedPortfolioID.IsZero() }

// Expired reports whether the folio-server token has passed its expiry.
// Tokens without a readable expiry never expire locally.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// TokenExpiry reads the exp claim of a JWT without verifying it; the
// signature belongs to folio-server. Opaque tokens report false.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

type ctxKey struct{}

// NewContext returns ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored in ctx.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}
