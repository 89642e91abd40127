// Package clienttest provides an in-memory folio-server for tests.
package clienttest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bobmcallan/folio-portal/internal/models"
)

// Password is accepted for every seeded or registered user.
const Password = "correct-horse"

// Server is a fake folio-server speaking the REST shapes the client
// expects. Collections are exported so tests can seed and inspect them;
// hold the lock while touching them once requests are in flight.
type Server struct {
	*httptest.Server

	sync.Mutex
	Users        map[string]models.User // by username
	Portfolios   []models.Portfolio
	Transactions []models.Transaction
	Assets       []models.Asset
	Holdings     []models.UserAsset
	History      map[string][]map[string]any // raw rows by symbol
	Version      map[string]string

	tokens   map[string]string // token -> username
	requests []string
	nextID   int
}

// New starts a fake server seeded with one user, "alice", a portfolio,
// two transactions, a small market catalog and price history for AAPL.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		Users: map[string]models.User{
			"alice": {ID: "u1", Username: "alice", Email: "alice@example.com", Verified: true},
		},
		Portfolios: []models.Portfolio{
			{ID: "p1", Name: "Growth", InitialCash: 10000, RiskTolerance: models.RiskAggressive},
			{ID: "p2", Name: "Income", InitialCash: 5000, RiskTolerance: models.RiskConservative, IsPublic: true},
		},
		Transactions: []models.Transaction{
			{ID: "t1", PortfolioID: "p1", Type: models.TxBuy, Symbol: "AAPL", Quantity: 10, Price: 100, Fees: 1, TotalAmount: 1001, Date: day(-10)},
			{ID: "t2", PortfolioID: "p2", Type: models.TxDividend, Symbol: "MSFT", Quantity: 25, Price: 1, TotalAmount: 25, Date: day(-3)},
		},
		Assets: []models.Asset{
			{ID: "a1", Symbol: "AAPL", Name: "Apple Inc.", Category: "stock", CurrentPrice: 120},
			{ID: "a2", Symbol: "MSFT", Name: "Microsoft", Category: "stock", CurrentPrice: 410},
			{ID: "a3", Symbol: "BTC", Name: "Bitcoin", Category: "crypto", CurrentPrice: 60000},
		},
		Holdings: []models.UserAsset{
			{ID: "h1", AssetID: "a1", Symbol: "AAPL", Category: "stock", Quantity: 10, PurchasePrice: 100, CurrentPrice: 120},
		},
		History: map[string][]map[string]any{
			"AAPL": {
				{"date": "2026-01-05", "open": 100, "high": 102, "low": 99, "close": 100, "volume": 1000},
				{"date": "2026-01-06", "open": 100, "high": 111, "low": 100, "close": 110, "volume": 1500},
				{"date": "2026-01-07", "open": 110, "high": 110, "low": 95, "close": 99, "volume": 1200},
				{"date": "2026-01-08", "open": 99, "high": 121, "low": 98, "close": 120, "volume": 2000},
			},
		},
		Version: map[string]string{"version": "2.1.0", "build": "test", "git_commit": "abc123"},
		tokens:  make(map[string]string),
		nextID:  100,
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func day(offset int) time.Time {
	return time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, offset)
}

// Login issues a token for username without going through HTTP.
func (s *Server) Login(username string) string {
	s.Lock()
	defer s.Unlock()
	return s.issue(username)
}

// ExpireTokens revokes every issued token so the next call gets 401.
func (s *Server) ExpireTokens() {
	s.Lock()
	s.tokens = make(map[string]string)
	s.Unlock()
}

// Requests returns "METHOD /path" for every request served so far.
func (s *Server) Requests() []string {
	s.Lock()
	defer s.Unlock()
	return slices.Clone(s.requests)
}

// Count reports how many requests matched "METHOD /path".
func (s *Server) Count(request string) int {
	n := 0
	for _, r := range s.Requests() {
		if r == request {
			n++
		}
	}
	return n
}

func (s *Server) issue(username string) string {
	tok := fmt.Sprintf("tok-%s-%d", username, len(s.tokens)+1)
	s.tokens[tok] = username
	return tok
}

func (s *Server) newID(prefix string) models.ID {
	s.nextID++
	return models.ID(fmt.Sprintf("%s%d", prefix, s.nextID))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /api/version", func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()
		writeJSON(w, http.StatusOK, s.Version)
	})

	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/reset-password", func(w http.ResponseWriter, r *http.Request) {
		var in models.PasswordReset
		if json.NewDecoder(r.Body).Decode(&in) != nil || in.Token != "reset-ok" {
			writeError(w, http.StatusBadRequest, "invalid or expired reset token")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /api/auth/me", s.authed(func(w http.ResponseWriter, r *http.Request, user models.User) {
		writeJSON(w, http.StatusOK, map[string]any{"user": user})
	}))
	mux.HandleFunc("POST /api/auth/logout", s.authed(func(w http.ResponseWriter, r *http.Request, _ models.User) {
		delete(s.tokens, bearer(r))
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))
	mux.HandleFunc("POST /api/auth/resend-verification", s.authed(func(w http.ResponseWriter, r *http.Request, _ models.User) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))

	mux.HandleFunc("GET /api/portfolios", s.authed(func(w http.ResponseWriter, r *http.Request, _ models.User) {
		writeJSON(w, http.StatusOK, map[string]any{"portfolios": s.Portfolios})
	}))
	mux.HandleFunc("POST /api/portfolios", s.authed(s.createPortfolio))
	mux.HandleFunc("GET /api/portfolios/{id}", s.authed(func(w http.ResponseWriter, r *http.Request, _ models.User) {
		i := s.portfolioIndex(r.PathValue("id"))
		if i < 0 {
			writeError(w, http.StatusNotFound, "portfolio not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"portfolio": s.Portfolios[i]})
	}))
	mux.HandleFunc("PUT /api/portfolios/{id}", s.authed(s.updatePortfolio))
	mux.HandleFunc("DELETE /api/portfolios/{id}", s.authed(func(w http.ResponseWriter, r *http.Request, _ models.User) {
		i := s.portfolioIndex(r.PathValue("id"))
		if i < 0 {
			writeError(w, http.StatusNotFound, "portfolio not found")
			return
		}
		s.Portfolios = slices.Delete(s.Portfolios, i, i+1)
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.HandleFunc("GET /api/portfolios/{id}/summary", s.authed(func(w http.ResponseWriter, r *http.Request, _ models.User) {
		i := s.portfolioIndex(r.PathValue("id"))
		if i < 0 {
			writeError(w, http.StatusNotFound, "portfolio not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"summary": map[string]any{
			"portfolio_id": s.Portfolios[i].ID,
			"total_value":  s.Portfolios[i].InitialCash,
			"cash_balance": s.Portfolios[i].InitialCash,
		}})
	}))
	mux.HandleFunc("GET /api/portfolios/{id}/transactions", s.authed(func(w http.ResponseWriter, r *http.Request, _ models.User) {
		var out []models.Transaction
		for _, tx := range s.Transactions {
			if tx.PortfolioID.String() == r.PathValue("id") {
				out = append(out, tx)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"transactions": orEmpty(out)})
	}))

	mux.HandleFunc("GET /api/transactions", s.authed(func(w http.ResponseWriter, r *http.Request, _ models.User) {
		writeJSON(w, http.StatusOK, map[string]any{"transactions": orEmpty(s.Transactions)})
	}))
	mux.HandleFunc("POST /api/transactions", s.authed(s.createTransaction))
	mux.HandleFunc("POST /api/transactions/buy", s.authed(s.createTransaction))
	mux.HandleFunc("POST /api/transactions/sell", s.authed(s.createTransaction))
	mux.HandleFunc("PUT /api/transactions/{id}", s.authed(s.updateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.authed(func(w http.ResponseWriter, r *http.Request, _ models.User) {
		i := slices.IndexFunc(s.Transactions, func(tx models.Transaction) bool { return tx.ID.String() == r.PathValue("id") })
		if i < 0 {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		s.Transactions = slices.Delete(s.Transactions, i, i+1)
		w.WriteHeader(http.StatusNoContent)
	}))

	mux.HandleFunc("GET /api/market/assets", s.authed(func(w http.ResponseWriter, r *http.Request, _ models.User) {
		writeJSON(w, http.StatusOK, map[string]any{"assets": s.Assets})
	}))
	mux.HandleFunc("GET /api/market/search", s.authed(func(w http.ResponseWriter, r *http.Request, _ models.User) {
		q := strings.ToLower(r.URL.Query().Get("q"))
		out := []models.Asset{}
		for _, a := range s.Assets {
			if strings.Contains(strings.ToLower(a.Symbol), q) || strings.Contains(strings.ToLower(a.Name), q) {
				out = append(out, a)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": out})
	}))
	mux.HandleFunc("GET /api/market/price/{symbol}", s.authed(func(w http.ResponseWriter, r *http.Request, _ models.User) {
		for _, a := range s.Assets {
			if a.Symbol == r.PathValue("symbol") {
				writeJSON(w, http.StatusOK, map[string]any{"symbol": a.Symbol, "price": a.CurrentPrice, "currency": "USD"})
				return
			}
		}
		writeError(w, http.StatusNotFound, "unknown symbol")
	}))
	mux.HandleFunc("GET /api/market/history/{symbol}", s.authed(func(w http.ResponseWriter, r *http.Request, _ models.User) {
		rows, ok := s.History[r.PathValue("symbol")]
		if !ok {
			rows = []map[string]any{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"history": rows})
	}))

	mux.HandleFunc("GET /api/user-assets", s.authed(func(w http.ResponseWriter, r *http.Request, _ models.User) {
		writeJSON(w, http.StatusOK, map[string]any{"user_assets": orEmpty(s.Holdings)})
	}))
	mux.HandleFunc("POST /api/user-assets", s.authed(s.createHolding))
	mux.HandleFunc("PUT /api/user-assets/{id}", s.authed(s.updateHolding))
	mux.HandleFunc("DELETE /api/user-assets/{id}", s.authed(func(w http.ResponseWriter, r *http.Request, _ models.User) {
		i := slices.IndexFunc(s.Holdings, func(a models.UserAsset) bool { return a.ID.String() == r.PathValue("id") })
		if i < 0 {
			writeError(w, http.StatusNotFound, "holding not found")
			return
		}
		s.Holdings = slices.Delete(s.Holdings, i, i+1)
		w.WriteHeader(http.StatusNoContent)
	}))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.Unlock()
		mux.ServeHTTP(w, r)
	})
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// authed runs h with the lock held for requests bearing a live token.
func (s *Server) authed(h func(http.ResponseWriter, *http.Request, models.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()
		username, ok := s.tokens[bearer(r)]
		if !ok {
			writeError(w, http.StatusUnauthorized, "token expired")
			return
		}
		h(w, r, s.Users[username])
	}
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.Lock()
	defer s.Unlock()
	user, ok := s.Users[creds.Username]
	if !ok || creds.Password != Password {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"access_token": s.issue(creds.Username), "user": user})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.Lock()
	defer s.Unlock()
	if _, taken := s.Users[creds.Username]; taken {
		writeError(w, http.StatusConflict, "username already taken")
		return
	}
	s.Users[creds.Username] = models.User{ID: s.newID("u"), Username: creds.Username, Email: creds.Email}
	// The register response carries only the token; the client asks /me.
	writeJSON(w, http.StatusCreated, map[string]any{"token": s.issue(creds.Username)})
}

func (s *Server) portfolioIndex(id string) int {
	return slices.IndexFunc(s.Portfolios, func(p models.Portfolio) bool { return p.ID.String() == id })
}

func (s *Server) createPortfolio(w http.ResponseWriter, r *http.Request, _ models.User) {
	var in models.PortfolioInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	p := models.Portfolio{
		ID:            s.newID("p"),
		Name:          in.Name,
		Description:   in.Description,
		InitialCash:   in.InitialCash,
		TargetReturn:  in.TargetReturn,
		RiskTolerance: in.RiskTolerance,
		IsPublic:      in.IsPublic,
		CreatedAt:     time.Now().UTC(),
	}
	s.Portfolios = append(s.Portfolios, p)
	writeJSON(w, http.StatusCreated, map[string]any{"portfolio": p})
}

func (s *Server) updatePortfolio(w http.ResponseWriter, r *http.Request, _ models.User) {
	i := s.portfolioIndex(r.PathValue("id"))
	if i < 0 {
		writeError(w, http.StatusNotFound, "portfolio not found")
		return
	}
	var in models.PortfolioInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	p := &s.Portfolios[i]
	p.Name, p.Description = in.Name, in.Description
	p.InitialCash, p.TargetReturn = in.InitialCash, in.TargetReturn
	p.RiskTolerance, p.IsPublic = in.RiskTolerance, in.IsPublic
	p.UpdatedAt = time.Now().UTC()
	writeJSON(w, http.StatusOK, map[string]any{"portfolio": *p})
}

func transactionFrom(id models.ID, in models.TransactionInput) models.Transaction {
	return models.Transaction{
		ID:          id,
		PortfolioID: in.PortfolioID,
		Type:        in.Type,
		Symbol:      in.Symbol,
		AssetID:     in.AssetID,
		Quantity:    in.Quantity,
		Price:       in.Price,
		Fees:        in.Fees,
		Notes:       in.Notes,
		Date:        in.Date,
		TotalAmount: in.TotalAmount,
		SplitRatio:  in.SplitRatio,
	}
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request, _ models.User) {
	var in models.TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	tx := transactionFrom(s.newID("t"), in)
	s.Transactions = append(s.Transactions, tx)
	writeJSON(w, http.StatusCreated, map[string]any{"transaction": tx})
}

func (s *Server) updateTransaction(w http.ResponseWriter, r *http.Request, _ models.User) {
	i := slices.IndexFunc(s.Transactions, func(tx models.Transaction) bool { return tx.ID.String() == r.PathValue("id") })
	if i < 0 {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	var in models.TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.Transactions[i] = transactionFrom(s.Transactions[i].ID, in)
	writeJSON(w, http.StatusOK, map[string]any{"transaction": s.Transactions[i]})
}

func (s *Server) holdingFrom(id models.ID, in models.UserAssetInput) models.UserAsset {
	h := models.UserAsset{
		ID:            id,
		AssetID:       in.AssetID,
		Symbol:        in.Symbol,
		Quantity:      in.Quantity,
		PurchasePrice: in.PurchasePrice,
		PurchaseDate:  in.PurchaseDate,
	}
	for _, a := range s.Assets {
		if a.ID == in.AssetID || a.Symbol == in.Symbol {
			h.AssetID, h.Symbol, h.Name = a.ID, a.Symbol, a.Name
			h.Category, h.CurrentPrice = a.Category, a.CurrentPrice
		}
	}
	return h
}

func (s *Server) createHolding(w http.ResponseWriter, r *http.Request, _ models.User) {
	var in models.UserAssetInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	h := s.holdingFrom(s.newID("h"), in)
	s.Holdings = append(s.Holdings, h)
	writeJSON(w, http.StatusCreated, map[string]any{"user_asset": h})
}

func (s *Server) updateHolding(w http.ResponseWriter, r *http.Request, _ models.User) {
	i := slices.IndexFunc(s.Holdings, func(a models.UserAsset) bool { return a.ID.String() == r.PathValue("id") })
	if i < 0 {
		writeError(w, http.StatusNotFound, "holding not found")
		return
	}
	var in models.UserAssetInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.Holdings[i] = s.holdingFrom(s.Holdings[i].ID, in)
	writeJSON(w, http.StatusOK, map[string]any{"user_asset": s.Holdings[i]})
}
