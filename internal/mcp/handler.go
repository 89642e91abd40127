package mcp

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/folio-portal/internal/client"
	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/config"
	"github.com/bobmcallan/folio-portal/internal/session"
	"github.com/bobmcallan/folio-portal/internal/store"
)

// Handler is the HTTP handler for the MCP endpoint.
// It wraps mcp-go's StreamableHTTPServer and delegates to it.
type Handler struct {
	streamable *mcpserver.StreamableHTTPServer
	server     *mcpserver.MCPServer
	logger     *common.Logger
	sessions   *session.Manager
	registry   *store.Registry
	cookieName string
}

// NewHandler creates the MCP handler. Tool calls run against the
// workspace of the caller's portal session.
func NewHandler(logger *common.Logger, sessions *session.Manager, registry *store.Registry, cookieName, apiURL string) *Handler {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	mcpSrv := mcpserver.NewMCPServer(
		"folio-portal",
		config.Version,
		mcpserver.WithToolCapabilities(true),
	)

	toolCount := RegisterTools(mcpSrv)
	mcpSrv.AddTool(VersionTool(), VersionToolHandler(apiURL, nil))
	toolCount++

	streamable := mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithStateLess(true),
	)

	logger.Info().
		Int("tools", toolCount).
		Str("api_url", apiURL).
		Msg("MCP handler initialized")

	return &Handler{
		streamable: streamable,
		server:     mcpSrv,
		logger:     logger,
		sessions:   sessions,
		registry:   registry,
		cookieName: cookieName,
	}
}

// Server exposes the underlying MCP server.
func (h *Handler) Server() *mcpserver.MCPServer { return h.server }

// ServeHTTP attaches the caller's workspace and delegates to the
// mcp-go StreamableHTTPServer. Callers without a live session get 401.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.resolve(r)
	if err != nil {
		h.logger.Debug().Err(err).Msg("MCP request without a live session")
		w.Header().Set("WWW-Authenticate", `Bearer realm="folio-portal"`)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{
			"error":             "unauthorized",
			"error_description": "Sign in to folio-portal and pass the session cookie or its value as a Bearer token",
		})
		return
	}

	h.streamable.ServeHTTP(w, r.WithContext(WithWorkspace(ws.Context(r.Context()), ws)))
}

// credential returns the signed session value from the Authorization
// header, falling back to the session cookie.
func (h *Handler) credential(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if cookie, err := r.Cookie(h.cookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func (h *Handler) resolve(r *http.Request) (*store.Workspace, error) {
	sess, err := h.sessions.Authenticate(r.Context(), h.credential(r))
	if err != nil {
		return nil, err
	}
	ws, created := h.registry.Get(sess)
	if created {
		if err := ws.Load(ws.Context(r.Context())); err != nil {
			if errors.Is(err, client.ErrUnauthorized) {
				h.registry.Close(sess.ID)
				return nil, err
			}
			h.logger.Warn().Str("session", sess.ID).Err(err).Msg("MCP workspace load incomplete")
		}
	}
	return ws, nil
}
