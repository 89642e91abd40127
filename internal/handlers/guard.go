package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bobmcallan/folio-portal/internal/client"
	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/ledger"
	"github.com/bobmcallan/folio-portal/internal/session"
	"github.com/bobmcallan/folio-portal/internal/store"
)

// LoginPath is where the browser goes when the session is gone.
const LoginPath = "/login"

type workspaceKey struct{}

// WorkspaceFrom returns the workspace bound to the request by Guard.Wrap.
func WorkspaceFrom(ctx context.Context) (*store.Workspace, bool) {
	ws, ok := ctx.Value(workspaceKey{}).(*store.Workspace)
	return ws, ok && ws != nil
}

// Guard resolves the session cookie into a session and its workspace, and
// translates domain errors into responses.
type Guard struct {
	logger     *common.Logger
	sessions   *session.Manager
	registry   *store.Registry
	cookieName string
	secure     bool
}

// NewGuard creates a guard reading the named session cookie. secure marks
// issued cookies Secure.
func NewGuard(logger *common.Logger, sessions *session.Manager, registry *store.Registry, cookieName string, secure bool) *Guard {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Guard{
		logger:     logger,
		sessions:   sessions,
		registry:   registry,
		cookieName: cookieName,
		secure:     secure,
	}
}

// Wrap admits requests with a live session. The session, its bearer token
// and its workspace travel in the request context. A workspace opened by
// this request is loaded before next runs.
func (g *Guard) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(g.cookieName)
		if err != nil || cookie.Value == "" {
			g.Unauthorized(w, r)
			return
		}
		sess, err := g.sessions.Authenticate(r.Context(), cookie.Value)
		if err != nil {
			g.logger.Debug().Str("path", r.URL.Path).Err(err).Msg("session rejected")
			g.Unauthorized(w, r)
			return
		}

		ws, created := g.registry.Get(sess)
		ctx := ws.Context(r.Context())
		if created {
			if err := ws.Load(ctx); err != nil {
				if errors.Is(err, client.ErrUnauthorized) {
					g.Unauthorized(w, r.WithContext(ctx))
					return
				}
				g.logger.Warn().Str("session", sess.ID).Err(err).Msg("initial load incomplete")
			}
		}
		next(w, r.WithContext(context.WithValue(ctx, workspaceKey{}, ws)))
	}
}

// workspace returns the request's workspace or answers 401.
func (g *Guard) workspace(w http.ResponseWriter, r *http.Request) (*store.Workspace, bool) {
	ws, ok := WorkspaceFrom(r.Context())
	if !ok || !ws.Alive() {
		g.Unauthorized(w, r)
		return nil, false
	}
	return ws, true
}

// Open starts a session for the browser: the signed cookie is set and the
// workspace is created and loaded.
func (g *Guard) Open(w http.ResponseWriter, r *http.Request, sess session.Session) (*store.Workspace, error) {
	value, err := g.sessions.SignCookie(sess)
	if err != nil {
		return nil, err
	}
	cookie := &http.Cookie{
		Name:     g.cookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if !sess.ExpiresAt.IsZero() {
		cookie.Expires = sess.ExpiresAt
	} else {
		cookie.Expires = time.Now().Add(session.DefaultTTL)
	}
	http.SetCookie(w, cookie)

	ws, _ := g.registry.Get(sess)
	if err := ws.Load(ws.Context(r.Context())); err != nil {
		g.logger.Warn().Str("session", sess.ID).Err(err).Msg("initial load incomplete")
	}
	return ws, nil
}

// Close ends the browser session: the workspace is torn down and the
// cookie cleared.
func (g *Guard) Close(w http.ResponseWriter, sessionID string) {
	if sessionID != "" {
		g.registry.Close(sessionID)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     g.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Unauthorized clears the session and tells the browser to log in again.
func (g *Guard) Unauthorized(w http.ResponseWriter, r *http.Request) {
	id := ""
	if s, ok := session.FromContext(r.Context()); ok {
		id = s.ID
	}
	g.Close(w, id)
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"status":   "error",
		"error":    "session expired, please log in again",
		"redirect": LoginPath,
	})
}

// Fail writes the response for err. The notification feed has already
// recorded upstream failures.
func (g *Guard) Fail(w http.ResponseWriter, r *http.Request, err error) {
	var invalid ledger.ValidationErrors
	var apiErr *client.APIError

	switch {
	case errors.As(err, &invalid):
		WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"status": "error",
			"error":  invalid.Error(),
			"fields": invalid,
		})
	case errors.Is(err, client.ErrUnauthorized),
		errors.Is(err, session.ErrNoSession),
		errors.Is(err, store.ErrClosed):
		g.Unauthorized(w, r)
	case errors.Is(err, store.ErrUnconfirmed):
		WriteError(w, http.StatusPreconditionRequired, "confirmation required: repeat the request with ?confirm=true")
	case errors.Is(err, store.ErrBusy), errors.Is(err, store.ErrSuperseded):
		WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, client.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not found")
	case errors.Is(err, context.Canceled):
		g.logger.Debug().Str("path", r.URL.Path).Msg("request cancelled")
	case errors.As(err, &apiErr):
		WriteError(w, http.StatusBadGateway, apiErr.Message)
	case errors.Is(err, context.DeadlineExceeded):
		WriteError(w, http.StatusGatewayTimeout, "folio-server did not respond in time")
	default:
		g.logger.Error().Str("path", r.URL.Path).Err(err).Msg("request failed")
		WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
