package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/bobmcallan/folio-portal/internal/common"
)

// Pinger reports whether folio-server is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServerHealthHandler reports reachability of folio-server.
type ServerHealthHandler struct {
	logger  *common.Logger
	api     Pinger
	timeout time.Duration
}

func NewServerHealthHandler(logger *common.Logger, api Pinger) *ServerHealthHandler {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &ServerHealthHandler{logger: logger, api: api, timeout: 3 * time.Second}
}

// ServeHTTP handles GET /api/server-health. An unreachable or unhealthy
// server answers 503 so load balancers can act on it.
func (h *ServerHealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	start := time.Now()
	if err := h.api.Ping(ctx); err != nil {
		h.logger.Debug().Err(err).Msg("folio-server health check failed")
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "down"})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"latency": time.Since(start).Round(time.Millisecond).String(),
	})
}
