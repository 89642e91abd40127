package server

import "net/http"

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	a := s.app
	guard := a.Guard.Wrap

	// MCP endpoint (JSON-RPC over HTTP)
	if a.MCPHandler != nil {
		mux.Handle("/mcp", a.MCPHandler)
	}

	// Public API routes
	mux.HandleFunc("/api/health", a.HealthHandler.ServeHTTP)
	mux.HandleFunc("/api/version", a.VersionHandler.ServeHTTP)
	mux.HandleFunc("/api/server-health", a.ServerHealthHandler.ServeHTTP)
	mux.HandleFunc("/api/auth/login", a.AuthHandler.HandleLogin)
	mux.HandleFunc("/api/auth/register", a.AuthHandler.HandleRegister)
	mux.HandleFunc("/api/auth/reset-password", a.AuthHandler.HandleResetPassword)

	// Session routes
	mux.HandleFunc("/api/auth/logout", guard(a.AuthHandler.HandleLogout))
	mux.HandleFunc("/api/auth/me", guard(a.AuthHandler.HandleMe))
	mux.HandleFunc("/api/auth/resend-verification", guard(a.AuthHandler.HandleResendVerification))

	portfolios := a.PortfolioHandler
	mux.HandleFunc("/api/portfolios", guard(func(w http.ResponseWriter, r *http.Request) {
		RouteResourceCollection(w, r, portfolios.HandleList, portfolios.HandleCreate)
	}))
	mux.HandleFunc("/api/portfolios/{id}", guard(func(w http.ResponseWriter, r *http.Request) {
		RouteResourceItem(w, r, portfolios.HandleGet, portfolios.HandleUpdate, portfolios.HandleDelete)
	}))
	mux.HandleFunc("/api/portfolios/{id}/summary", guard(portfolios.HandleSummary))
	mux.HandleFunc("/api/portfolios/{id}/select", guard(portfolios.HandleSelect))

	transactions := a.TransactionHandler
	mux.HandleFunc("/api/transactions", guard(func(w http.ResponseWriter, r *http.Request) {
		RouteResourceCollection(w, r, transactions.HandleList, transactions.HandleCreate)
	}))
	mux.HandleFunc("/api/transactions/preview", guard(transactions.HandlePreview))
	mux.HandleFunc("/api/transactions/{id}", guard(func(w http.ResponseWriter, r *http.Request) {
		RouteResourceItem(w, r, nil, transactions.HandleUpdate, transactions.HandleDelete)
	}))

	assets := a.AssetHandler
	mux.HandleFunc("/api/assets", guard(assets.HandleList))
	mux.HandleFunc("/api/assets/search", guard(assets.HandleSearch))
	mux.HandleFunc("/api/assets/{symbol}/quote", guard(assets.HandleQuote))
	mux.HandleFunc("/api/assets/{symbol}/metrics", guard(assets.HandleMetrics))
	mux.HandleFunc("/api/assets/{symbol}/chart.png", guard(assets.HandleChart))

	holdings := a.HoldingHandler
	mux.HandleFunc("/api/holdings", guard(func(w http.ResponseWriter, r *http.Request) {
		RouteResourceCollection(w, r, holdings.HandleList, holdings.HandleCreate)
	}))
	mux.HandleFunc("/api/holdings/{id}", guard(func(w http.ResponseWriter, r *http.Request) {
		RouteResourceItem(w, r, nil, holdings.HandleUpdate, holdings.HandleDelete)
	}))

	mux.HandleFunc("/api/notifications", guard(a.NotificationHandler.HandleList))
	mux.HandleFunc("/api/notifications/{id}", guard(a.NotificationHandler.HandleDismiss))

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.handleNotFound)

	return mux
}

// handleNotFound returns a JSON 404 for unmatched API routes.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"error":"Not Found","message":"The requested endpoint does not exist"}`))
}
