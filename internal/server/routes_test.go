package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bobmcallan/folio-portal/internal/app"
	"github.com/bobmcallan/folio-portal/internal/client/clienttest"
	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/config"
)

func newTestApp(t *testing.T) (*app.App, *clienttest.Server) {
	t.Helper()

	api := clienttest.New(t)
	cfg := config.NewDefaultConfig()
	cfg.API.URL = api.URL
	cfg.API.RateLimit = 0
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Storage.Badger.Path = filepath.Join(t.TempDir(), "db")
	cfg.Market.RefreshSchedule = ""

	application, err := app.New(cfg, common.NewSilentLogger())
	if err != nil {
		t.Fatalf("failed to create test app: %v", err)
	}

	t.Cleanup(func() {
		application.Close()
	})

	return application, api
}

// browser replays cookies across requests the way a browser would.
type browser struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
}

func newBrowser(t *testing.T) (*browser, *clienttest.Server) {
	application, api := newTestApp(t)
	return &browser{t: t, handler: New(application).Handler(), cookies: map[string]*http.Cookie{}}, api
}

func (b *browser) do(method, path, body string) *httptest.ResponseRecorder {
	b.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	if c, ok := b.cookies[csrfCookie]; ok {
		req.Header.Set(csrfHeader, c.Value)
	}
	w := httptest.NewRecorder()
	b.handler.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return w
}

func (b *browser) login() {
	b.t.Helper()
	w := b.do("POST", "/api/auth/login", `{"username":"alice","password":"`+clienttest.Password+`"}`)
	if w.Code != http.StatusOK {
		b.t.Fatalf("login failed: %d %s", w.Code, w.Body.String())
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal %q: %v", w.Body.String(), err)
	}
	return body
}

func TestRoutes_HealthEndpoint(t *testing.T) {
	application, _ := newTestApp(t)
	srv := New(application)

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %s", body["status"])
	}
}

func TestRoutes_VersionEndpoint(t *testing.T) {
	application, _ := newTestApp(t)
	srv := New(application)

	req := httptest.NewRequest("GET", "/api/version", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if body["version"] == "" {
		t.Error("expected version field")
	}
}

func TestRoutes_ServerHealthEndpoint(t *testing.T) {
	b, _ := newBrowser(t)

	w := b.do("GET", "/api/server-health", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected folio-server to be reported up, got %d", w.Code)
	}
}

func TestRoutes_APINotFound(t *testing.T) {
	application, _ := newTestApp(t)
	srv := New(application)

	req := httptest.NewRequest("GET", "/api/nonexistent", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON 404, got %s", ct)
	}
}

func TestRoutes_GuardedRoutesRequireSession(t *testing.T) {
	b, _ := newBrowser(t)

	for _, path := range []string{
		"/api/auth/me",
		"/api/portfolios",
		"/api/transactions",
		"/api/assets",
		"/api/holdings",
		"/api/notifications",
	} {
		w := b.do("GET", path, "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, w.Code)
			continue
		}
		if body := decode(t, w); body["redirect"] != "/login" {
			t.Errorf("%s: expected redirect to /login, got %v", path, body["redirect"])
		}
	}
}

func TestRoutes_MCPRequiresSession(t *testing.T) {
	b, _ := newBrowser(t)

	w := b.do("POST", "/mcp", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for /mcp without a session, got %d", w.Code)
	}
}

func TestRoutes_SessionFlow(t *testing.T) {
	b, _ := newBrowser(t)

	// A GET first so the browser holds a CSRF token.
	b.do("GET", "/api/health", "")
	b.login()

	if _, ok := b.cookies[testCookieName]; !ok {
		t.Fatal("expected a session cookie after login")
	}

	w := b.do("GET", "/api/portfolios", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 listing portfolios, got %d: %s", w.Code, w.Body.String())
	}
	if body := decode(t, w); body["count"] != 2.0 {
		t.Errorf("expected 2 portfolios, got %v", body["count"])
	}

	w = b.do("POST", "/api/portfolios", `{"name":"Speculative","initial_cash":"2500","risk_tolerance":"aggressive"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating a portfolio, got %d: %s", w.Code, w.Body.String())
	}

	w = b.do("POST", "/api/auth/logout", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on logout, got %d", w.Code)
	}
	if w := b.do("GET", "/api/portfolios", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", w.Code)
	}
}

func TestRoutes_CSRFEnforcedWithSession(t *testing.T) {
	b, _ := newBrowser(t)
	b.login()
	delete(b.cookies, csrfCookie)

	w := b.do("POST", "/api/portfolios", `{"name":"Blocked"}`)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 without a CSRF token, got %d", w.Code)
	}
}

func TestRoutes_MiddlewareApplied(t *testing.T) {
	application, _ := newTestApp(t)
	srv := New(application)

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	if w.Header().Get("X-Correlation-ID") == "" {
		t.Error("expected X-Correlation-ID header from middleware")
	}
}

func TestRoutes_SecurityHeadersApplied(t *testing.T) {
	application, _ := newTestApp(t)
	srv := New(application)

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	headers := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	for name, want := range headers {
		if got := w.Header().Get(name); got != want {
			t.Errorf("expected %s=%s, got %s", name, want, got)
		}
	}
	if w.Header().Get("Content-Security-Policy") == "" {
		t.Error("expected Content-Security-Policy header")
	}
}

func TestRoutes_CSRFCookieOnGET(t *testing.T) {
	b, _ := newBrowser(t)

	b.do("GET", "/api/health", "")

	c, ok := b.cookies[csrfCookie]
	if !ok {
		t.Fatal("expected _csrf cookie on GET")
	}
	if c.HttpOnly {
		t.Error("CSRF cookie should NOT be HttpOnly")
	}
}
