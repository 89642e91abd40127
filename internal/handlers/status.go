package handlers

import (
	"net/http"
	"time"

	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/config"
)

// HealthHandler reports liveness of the portal itself. Reachability of
// folio-server is reported separately by ServerHealthHandler.
type HealthHandler struct {
	logger  *common.Logger
	started time.Time
}

func NewHealthHandler(logger *common.Logger) *HealthHandler {
	return &HealthHandler{logger: logger, started: time.Now()}
}

// ServeHTTP handles GET /api/health.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

// VersionHandler reports the build of the portal and the folio-server
// it is configured against.
type VersionHandler struct {
	logger *common.Logger
	apiURL string
}

func NewVersionHandler(logger *common.Logger, apiURL string) *VersionHandler {
	return &VersionHandler{logger: logger, apiURL: apiURL}
}

// ServeHTTP handles GET /api/version.
func (h *VersionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	b := config.CurrentBuild()
	WriteJSON(w, http.StatusOK, map[string]string{
		"version":    b.Version,
		"build":      b.Build,
		"git_commit": b.Commit,
		"api_url":    h.apiURL,
	})
}
