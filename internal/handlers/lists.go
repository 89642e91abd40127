package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/bobmcallan/folio-portal/internal/client"
	"github.com/bobmcallan/folio-portal/internal/store"
)

// listResponse is the envelope of every filtered list.
type listResponse[T any] struct {
	Status    string    `json:"status"`
	Items     []T       `json:"items"`
	Count     int       `json:"count"`
	Total     int       `json:"total"`
	Loaded    bool      `json:"loaded"`
	FetchedAt time.Time `json:"fetched_at,omitzero"`
	// Error carries the last failed refresh; Items are then the
	// previously fetched list.
	Error string `json:"error,omitempty"`
}

func listing[T any](c *store.Container[T], items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	out := listResponse[T]{
		Status:    "ok",
		Items:     items,
		Count:     len(items),
		Total:     c.Len(),
		Loaded:    c.Loaded(),
		FetchedAt: c.FetchedAt(),
	}
	if err := c.LastError(); err != nil {
		out.Error = err.Error()
	}
	return out
}

// refreshIfAsked refetches c when the request carries ?refresh=true. A
// failed refresh keeps the list; only a lost session stops the request.
func refreshIfAsked[T any](g *Guard, w http.ResponseWriter, r *http.Request, c *store.Container[T]) bool {
	if ok, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); !ok {
		return true
	}
	err := c.Refresh(r.Context())
	if err != nil && (errors.Is(err, store.ErrClosed) || errors.Is(err, client.ErrUnauthorized)) {
		g.Fail(w, r, err)
		return false
	}
	return true
}
