// Package store owns the per-session entity lists the portal serves:
// portfolios, transactions, holdings and the shared market catalog, plus
// the notification feed and the lifetime that bounds their async work.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FeedLimit bounds the notification feed.
const FeedLimit = 50

// Kind is the outcome of a user action.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification reports the outcome of one user-triggered action.
type Notification struct {
	ID      string    `json:"id"`
	Kind    Kind      `json:"kind"`
	Action  string    `json:"action"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Feed is a bounded, newest-first list of notifications.
type Feed struct {
	mu    sync.Mutex
	items []Notification
	now   func() time.Time
}

// NewFeed returns an empty feed.
func NewFeed() *Feed {
	return &Feed{now: time.Now}
}

// Push records a notification and returns it.
func (f *Feed) Push(kind Kind, action, format string, args ...any) Notification {
	n := Notification{
		ID:      uuid.New().String(),
		Kind:    kind,
		Action:  action,
		Message: fmt.Sprintf(format, args...),
		At:      f.now(),
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, n)
	if over := len(f.items) - FeedLimit; over > 0 {
		f.items = append(f.items[:0:0], f.items[over:]...)
	}
	return n
}

// Success records a successful action.
func (f *Feed) Success(action, format string, args ...any) Notification {
	return f.Push(KindSuccess, action, format, args...)
}

// Failure records a failed action with its error.
func (f *Feed) Failure(action string, err error) Notification {
	return f.Push(KindError, action, "%s failed: %v", action, err)
}

// List returns the feed newest first.
func (f *Feed) List() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Notification, len(f.items))
	for i, n := range f.items {
		out[len(f.items)-1-i] = n
	}
	return out
}

// Dismiss removes one notification. It reports whether it was present.
func (f *Feed) Dismiss(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.items {
		if n.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return true
		}
	}
	return false
}

// Clear empties the feed.
func (f *Feed) Clear() {
	f.mu.Lock()
	f.items = nil
	f.mu.Unlock()
}
