// Package listview derives the filtered, searched and sorted view of a
// fetched entity list. Views are recomputed from scratch on every change;
// lists are bounded by the API page size so there is no incremental path.
package listview

import (
	"slices"
	"strings"
)

// Filter keeps an item when it returns true. A nil Filter is inactive.
type Filter[T any] func(T) bool

// Compare orders two items like strings.Compare.
type Compare[T any] func(a, b T) int

// Query describes one derived view.
type Query[T any] struct {
	// Search is matched case-insensitively as a substring of any field
	// returned by SearchFields. Empty matches everything.
	Search       string
	SearchFields []func(T) string

	// Filters are combined with AND.
	Filters []Filter[T]

	// Sort is optional; nil keeps source order. Ties keep source order.
	Sort       Compare[T]
	Descending bool
}

// Apply returns a new slice holding the items that pass q, in q's order.
// The input slice is never modified.
func Apply[T any](items []T, q Query[T]) []T {
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]T, 0, len(items))
	for _, it := range items {
		if !matchesSearch(it, needle, q.SearchFields) {
			continue
		}
		if !matchesFilters(it, q.Filters) {
			continue
		}
		out = append(out, it)
	}

	if q.Sort != nil {
		cmp := q.Sort
		if q.Descending {
			cmp = func(a, b T) int { return q.Sort(b, a) }
		}
		slices.SortStableFunc(out, cmp)
	}
	return out
}

func matchesSearch[T any](it T, needle string, fields []func(T) string) bool {
	if needle == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f(it)), needle) {
			return true
		}
	}
	return false
}

func matchesFilters[T any](it T, filters []Filter[T]) bool {
	for _, f := range filters {
		if f != nil && !f(it) {
			return false
		}
	}
	return true
}

// Sorters maps a sort key name to its comparator.
type Sorters[T any] map[string]Compare[T]

// Lookup returns the comparator for key, or nil when the key is unknown or
// empty.
func (s Sorters[T]) Lookup(key string) Compare[T] {
	if key == "" {
		return nil
	}
	return s[strings.ToLower(key)]
}

// Keys lists the registered sort keys in sorted order.
func (s Sorters[T]) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// IsDescending interprets an order parameter. Anything other than "desc"
// is ascending.
func IsDescending(order string) bool {
	return strings.EqualFold(strings.TrimSpace(order), "desc")
}
