package store

import (
	"errors"
	"sync"
)

var (
	// ErrBusy rejects an action that is already in flight.
	ErrBusy = errors.New("action already in progress")

	// ErrUnconfirmed rejects a destructive action issued without
	// confirmation.
	ErrUnconfirmed = errors.New("confirmation required")
)

// Busy tracks in-flight actions so a second submission of the same
// action is rejected rather than sent twice.
type Busy struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewBusy returns an idle tracker.
func NewBusy() *Busy {
	return &Busy{inflight: make(map[string]struct{})}
}

// Acquire marks action as running. The returned release must be called
// when it finishes. ErrBusy is returned if it is already running.
func (b *Busy) Acquire(action string) (release func(), err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.inflight[action]; ok {
		return nil, ErrBusy
	}
	b.inflight[action] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.inflight, action)
			b.mu.Unlock()
		})
	}, nil
}

// Running reports whether action is in flight.
func (b *Busy) Running(action string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.inflight[action]
	return ok
}
