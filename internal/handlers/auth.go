package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bobmcallan/folio-portal/internal/client"
	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/interfaces"
	"github.com/bobmcallan/folio-portal/internal/ledger"
	"github.com/bobmcallan/folio-portal/internal/models"
	"github.com/bobmcallan/folio-portal/internal/session"
)

// minPasswordLength applies to new passwords only; login forwards whatever
// the user typed.
const minPasswordLength = 8

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	logger   *common.Logger
	guard    *Guard
	sessions *session.Manager
	api      interfaces.AuthAPI
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(logger *common.Logger, guard *Guard, sessions *session.Manager, api interfaces.AuthAPI) *AuthHandler {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &AuthHandler{logger: logger, guard: guard, sessions: sessions, api: api}
}

type sessionView struct {
	Status              string      `json:"status"`
	User                models.User `json:"user"`
	SelectedPortfolioID models.ID   `json:"selected_portfolio_id,omitempty"`
}

func credentials(r *http.Request, register bool) (models.Credentials, error) {
	var creds models.Credentials
	if err := decodeBody(r, &creds); err != nil {
		return creds, err
	}
	creds.Username = strings.TrimSpace(creds.Username)
	creds.Email = strings.TrimSpace(creds.Email)

	var errs ledger.ValidationErrors
	if creds.Username == "" {
		errs = append(errs, ledger.ValidationError{Field: "username", Message: "is required"})
	}
	if register && !strings.Contains(creds.Email, "@") {
		errs = append(errs, ledger.ValidationError{Field: "email", Message: "must be a valid email address"})
	}
	switch {
	case creds.Password == "":
		errs = append(errs, ledger.ValidationError{Field: "password", Message: "is required"})
	case register && len(creds.Password) < minPasswordLength:
		errs = append(errs, ledger.ValidationError{Field: "password", Message: "must be at least 8 characters"})
	}
	if len(errs) > 0 {
		return creds, errs
	}
	return creds, nil
}

// HandleLogin handles POST /api/auth/login. It forwards the credentials
// to folio-server, opens a session and sets the session cookie.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	h.open(w, r, false)
}

// HandleRegister handles POST /api/auth/register.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	h.open(w, r, true)
}

func (h *AuthHandler) open(w http.ResponseWriter, r *http.Request, register bool) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	creds, err := credentials(r, register)
	if err != nil {
		if errors.As(err, new(ledger.ValidationErrors)) {
			h.guard.Fail(w, r, err)
			return
		}
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var sess session.Session
	if register {
		sess, err = h.sessions.Register(r.Context(), creds)
	} else {
		sess, err = h.sessions.Login(r.Context(), creds)
	}
	if err != nil {
		var apiErr *client.APIError
		switch {
		case errors.Is(err, client.ErrUnauthorized):
			h.logger.Info().Str("username", creds.Username).Msg("login rejected")
			WriteError(w, http.StatusUnauthorized, "invalid username or password")
		case errors.As(err, &apiErr) && apiErr.StatusCode < 500:
			WriteError(w, apiErr.StatusCode, apiErr.Message)
		default:
			h.logger.Error().Str("username", creds.Username).Err(err).Msg("failed to open session")
			WriteError(w, http.StatusBadGateway, "folio-server is unavailable")
		}
		return
	}

	if _, err := h.guard.Open(w, r, sess); err != nil {
		h.logger.Error().Err(err).Msg("failed to sign session cookie")
		WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.logger.Info().Str("session", sess.ID).Str("username", sess.User.Username).Msg("session opened")
	WriteJSON(w, http.StatusOK, sessionView{Status: "ok", User: sess.User, SelectedPortfolioID: sess.SelectedPortfolioID})
}

// HandleLogout handles POST /api/auth/logout. It must run behind
// Guard.Wrap.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := session.FromContext(r.Context())
	if !ok {
		h.guard.Unauthorized(w, r)
		return
	}
	if err := h.sessions.Logout(r.Context(), sess.ID); err != nil && !errors.Is(err, session.ErrNoSession) {
		h.logger.Warn().Str("session", sess.ID).Err(err).Msg("logout incomplete")
	}
	h.guard.Close(w, sess.ID)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "redirect": LoginPath})
}

// HandleMe handles GET /api/auth/me. The user record is re-read from
// folio-server and cached on the session.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	sess, ok := session.FromContext(r.Context())
	if !ok {
		h.guard.Unauthorized(w, r)
		return
	}
	user, err := h.api.Me(r.Context())
	if err != nil {
		h.guard.Fail(w, r, err)
		return
	}
	updated, err := h.sessions.SetUser(r.Context(), sess.ID, *user)
	if err != nil {
		h.guard.Fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, sessionView{Status: "ok", User: updated.User, SelectedPortfolioID: updated.SelectedPortfolioID})
}

// HandleResendVerification handles POST /api/auth/resend-verification.
func (h *AuthHandler) HandleResendVerification(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	ws, ok := h.guard.workspace(w, r)
	if !ok {
		return
	}
	if err := h.api.ResendVerification(r.Context()); err != nil {
		ws.Feed.Failure("resend verification", err)
		h.guard.Fail(w, r, err)
		return
	}
	ws.Feed.Success("resend verification", "Verification email sent")
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleResetPassword handles POST /api/auth/reset-password. The reset
// token comes from the emailed link, so no session is required.
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var in models.PasswordReset
	if err := decodeBody(r, &in); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var errs ledger.ValidationErrors
	if strings.TrimSpace(in.Token) == "" {
		errs = append(errs, ledger.ValidationError{Field: "token", Message: "is required"})
	}
	if len(in.NewPassword) < minPasswordLength {
		errs = append(errs, ledger.ValidationError{Field: "new_password", Message: "must be at least 8 characters"})
	}
	if in.ConfirmPassword != in.NewPassword {
		errs = append(errs, ledger.ValidationError{Field: "confirm_password", Message: "does not match"})
	}
	if len(errs) > 0 {
		h.guard.Fail(w, r, errs)
		return
	}

	if err := h.api.ResetPassword(r.Context(), in); err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
			WriteError(w, apiErr.StatusCode, apiErr.Message)
			return
		}
		h.guard.Fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "redirect": LoginPath})
}
