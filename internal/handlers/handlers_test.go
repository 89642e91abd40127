package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestStatusHandlers(t *testing.T) {
	tests := []struct {
		name    string
		handler http.Handler
		path    string
		fields  []string
	}{
		{"health", NewHealthHandler(nil), "/api/health", []string{"status", "uptime"}},
		{"version", NewVersionHandler(nil, "http://folio.test"), "/api/version", []string{"version", "build", "git_commit", "api_url"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.handler.ServeHTTP(w, httptest.NewRequest("GET", tt.path, nil))

			if w.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected Content-Type application/json, got %s", ct)
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			for _, f := range tt.fields {
				if _, ok := body[f]; !ok {
					t.Errorf("expected %s field in response", f)
				}
			}

			w = httptest.NewRecorder()
			tt.handler.ServeHTTP(w, httptest.NewRequest("DELETE", tt.path, nil))
			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("expected status 405 for DELETE, got %d", w.Code)
			}
		})
	}
}

func TestHealthHandler_ReportsOK(t *testing.T) {
	w := httptest.NewRecorder()
	NewHealthHandler(nil).ServeHTTP(w, httptest.NewRequest("GET", "/api/health", nil))

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %s", body["status"])
	}
}

func TestVersionHandler_ReportsAPIURL(t *testing.T) {
	w := httptest.NewRecorder()
	NewVersionHandler(nil, "http://folio.test").ServeHTTP(w, httptest.NewRequest("GET", "/api/version", nil))

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if body["api_url"] != "http://folio.test" {
		t.Errorf("expected api_url http://folio.test, got %q", body["api_url"])
	}
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestServerHealthHandler(t *testing.T) {
	tests := []struct {
		name string
		ping pingFunc
		want int
	}{
		{"up", func(context.Context) error { return nil }, http.StatusOK},
		{"down", func(context.Context) error { return errors.New("connection refused") }, http.StatusServiceUnavailable},
		{"slow", func(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewServerHealthHandler(nil, tt.ping)
			h.timeout = 20 * time.Millisecond

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest("GET", "/api/server-health", nil))

			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestRequireMethod_Matches(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()

	ok := RequireMethod(w, req, "GET")
	if !ok {
		t.Error("expected RequireMethod to return true for matching method")
	}
}

func TestRequireMethod_Mismatch(t *testing.T) {
	req := httptest.NewRequest("POST", "/test", nil)
	w := httptest.NewRecorder()

	ok := RequireMethod(w, req, "GET")
	if ok {
		t.Error("expected RequireMethod to return false for mismatching method")
	}
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	data := map[string]string{"key": "value"}
	WriteJSON(w, http.StatusCreated, data)

	if w.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", w.Code)
	}

	if w.Header().Get("Content-Type") != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", w.Header().Get("Content-Type"))
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if body["key"] != "value" {
		t.Errorf("expected key=value, got key=%s", body["key"])
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteError(w, http.StatusBadRequest, "something went wrong")

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if body["error"] != "something went wrong" {
		t.Errorf("expected error message 'something went wrong', got %s", body["error"])
	}
	if body["status"] != "error" {
		t.Errorf("expected status 'error', got %s", body["status"])
	}
}

func TestRequireMethod_GETAllowsHEAD(t *testing.T) {
	req := httptest.NewRequest("HEAD", "/test", nil)
	w := httptest.NewRecorder()

	if !RequireMethod(w, req, "GET") {
		t.Error("expected HEAD to be accepted where GET is")
	}
}

func TestDecodeBody_EmptyAndInvalid(t *testing.T) {
	var out map[string]any

	req := httptest.NewRequest("POST", "/test", strings.NewReader(""))
	if err := decodeBody(req, &out); err == nil || err.Error() != "request body is empty" {
		t.Errorf("expected empty body error, got %v", err)
	}

	req = httptest.NewRequest("POST", "/test", strings.NewReader("{not json"))
	if err := decodeBody(req, &out); err == nil || !strings.HasPrefix(err.Error(), "invalid request body") {
		t.Errorf("expected invalid body error, got %v", err)
	}
}

func TestField_AcceptsStringsAndNumbers(t *testing.T) {
	var in struct {
		Quantity field `json:"quantity"`
		Price    field `json:"price"`
	}
	if err := json.Unmarshal([]byte(`{"quantity":"10","price":101.5}`), &in); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if in.Quantity != "10" {
		t.Errorf("expected quantity 10, got %q", in.Quantity)
	}
	if in.Price != "101.5" {
		t.Errorf("expected price 101.5, got %q", in.Price)
	}
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("transaction_date", "2025-03-14")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Equal(time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected date %v", d)
	}

	if d, err := parseDate("transaction_date", "  "); err != nil || !d.IsZero() {
		t.Errorf("expected zero time for empty input, got %v, %v", d, err)
	}

	if _, err := parseDate("transaction_date", "14/03/2025"); err == nil {
		t.Error("expected error for an unsupported layout")
	}
}

func TestQueryHelpers(t *testing.T) {
	req := httptest.NewRequest("GET", "/test?min_price=12.5&width=abc&confirm=true", nil)

	v, err := queryFloat(req, "min_price")
	if err != nil || v == nil || *v != 12.5 {
		t.Errorf("expected 12.5, got %v, %v", v, err)
	}
	if v, err := queryFloat(req, "max_price"); err != nil || v != nil {
		t.Errorf("expected nil for an absent parameter, got %v, %v", v, err)
	}
	if _, err := queryInt(req, "width", 800); err == nil {
		t.Error("expected error for a non-numeric width")
	}
	if n, err := queryInt(req, "height", 400); err != nil || n != 400 {
		t.Errorf("expected default 400, got %d, %v", n, err)
	}
	if !confirmed(req) {
		t.Error("expected confirm=true to be recognized")
	}
}
