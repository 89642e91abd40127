package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func named(name string, called *string) RouteHandler {
	return func(w http.ResponseWriter, r *http.Request) {
		*called = name
		w.WriteHeader(http.StatusOK)
	}
}

func TestRouteByMethod_HEADFallsBackToGET(t *testing.T) {
	var called string
	routes := MethodRouter{http.MethodGet: named("get", &called)}

	w := httptest.NewRecorder()
	RouteByMethod(w, httptest.NewRequest(http.MethodHead, "/x", nil), routes)

	if called != "get" {
		t.Errorf("expected HEAD to reach the GET handler, got %q", called)
	}
}

func TestRouteByMethod_NotAllowedListsMethods(t *testing.T) {
	var called string
	routes := MethodRouter{
		http.MethodGet:  named("get", &called),
		http.MethodPost: named("post", &called),
	}

	w := httptest.NewRecorder()
	RouteByMethod(w, httptest.NewRequest(http.MethodDelete, "/x", nil), routes)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
	if got := w.Header().Get("Allow"); got != "GET, HEAD, POST" {
		t.Errorf("expected Allow: GET, HEAD, POST, got %q", got)
	}
	if called != "" {
		t.Errorf("expected no handler to run, got %q", called)
	}
}

func TestRouteResourceCollection(t *testing.T) {
	tests := []struct {
		method string
		want   string
		code   int
	}{
		{http.MethodGet, "list", http.StatusOK},
		{http.MethodPost, "create", http.StatusOK},
		{http.MethodPut, "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			var called string
			w := httptest.NewRecorder()
			RouteResourceCollection(w, httptest.NewRequest(tt.method, "/api/portfolios", nil),
				named("list", &called), named("create", &called))

			if w.Code != tt.code || called != tt.want {
				t.Errorf("expected %d/%q, got %d/%q", tt.code, tt.want, w.Code, called)
			}
		})
	}
}

func TestRouteResourceItem(t *testing.T) {
	tests := []struct {
		method string
		want   string
		code   int
	}{
		{http.MethodPut, "update", http.StatusOK},
		{http.MethodPatch, "update", http.StatusOK},
		{http.MethodDelete, "delete", http.StatusOK},
		// Transactions have no single-item read.
		{http.MethodGet, "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			var called string
			w := httptest.NewRecorder()
			RouteResourceItem(w, httptest.NewRequest(tt.method, "/api/transactions/t1", nil),
				nil, named("update", &called), named("delete", &called))

			if w.Code != tt.code || called != tt.want {
				t.Errorf("expected %d/%q, got %d/%q", tt.code, tt.want, w.Code, called)
			}
		})
	}
}
