package store

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when work finishes after its owner was torn down.
// The result of that work has been discarded.
var ErrClosed = errors.New("owner closed")

// Lifetime ties async work to the lifetime of its owner. Results that
// arrive after Close are discarded instead of applied.
type Lifetime struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewLifetime returns an open Lifetime.
func NewLifetime() *Lifetime {
	ctx, cancel := context.WithCancel(context.Background())
	return &Lifetime{ctx: ctx, cancel: cancel}
}

// Bind derives a context that is cancelled when either parent is done or
// the lifetime closes.
func (l *Lifetime) Bind(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(l.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Apply runs fn unless the lifetime is closed. Close waits for a running
// fn, so nothing is applied after Close returns.
func (l *Lifetime) Apply(fn func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	fn()
	return nil
}

// Alive reports whether Close has not been called.
func (l *Lifetime) Alive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed
}

// Done is closed when the lifetime ends.
func (l *Lifetime) Done() <-chan struct{} { return l.ctx.Done() }

// Close ends the lifetime and cancels bound contexts. It is idempotent.
func (l *Lifetime) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.cancel()
}
