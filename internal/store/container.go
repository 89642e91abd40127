package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/listview"
	"github.com/bobmcallan/folio-portal/internal/models"
)

// Container holds the authoritative in-memory copy of one fetched entity
// list. Views are derived from it with listview and never mutate it.
type Container[T any] struct {
	name   string
	fetch  func(ctx context.Context) ([]T, error)
	idOf   func(T) models.ID
	feed   *Feed
	life   *Lifetime
	logger *common.Logger
	now    func() time.Time

	mu        sync.RWMutex
	items     []T
	loaded    bool
	lastErr   error
	fetchedAt time.Time
}

// NewContainer returns an empty container. name is used in notifications
// and logs ("portfolios", "transactions").
func NewContainer[T any](name string, fetch func(context.Context) ([]T, error), idOf func(T) models.ID, feed *Feed, life *Lifetime, logger *common.Logger) *Container[T] {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Container[T]{
		name:   name,
		fetch:  fetch,
		idOf:   idOf,
		feed:   feed,
		life:   life,
		logger: logger,
		now:    time.Now,
	}
}

// Load fetches the list. A failure keeps the previous list and is
// reported to the feed; success is silent.
func (c *Container[T]) Load(ctx context.Context) error {
	return c.load(ctx, false)
}

// Refresh is Load triggered by the user: success is reported too.
func (c *Container[T]) Refresh(ctx context.Context) error {
	return c.load(ctx, true)
}

func (c *Container[T]) load(ctx context.Context, announce bool) error {
	ctx, cancel := c.life.Bind(ctx)
	defer cancel()

	items, err := c.fetch(ctx)
	if err != nil {
		if !c.life.Alive() {
			return ErrClosed
		}
		c.logger.Warn().Str("list", c.name).Err(err).Msg("refresh failed, keeping previous list")
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		c.feed.Failure("refresh "+c.name, err)
		return err
	}

	err = c.life.Apply(func() {
		c.mu.Lock()
		c.items = slices.Clone(items)
		c.loaded = true
		c.lastErr = nil
		c.fetchedAt = c.now()
		c.mu.Unlock()
	})
	if err != nil {
		return err
	}
	c.logger.Debug().Str("list", c.name).Int("count", len(items)).Msg("list refreshed")
	if announce {
		c.feed.Success("refresh "+c.name, "Loaded %d %s", len(items), c.name)
	}
	return nil
}

// Items returns a copy of the current list.
func (c *Container[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.items)
}

// Len returns the number of items held.
func (c *Container[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Find returns the item with id.
func (c *Container[T]) Find(id models.ID) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexLocked(id); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

// Prepend adds a newly created item at the head of the list.
func (c *Container[T]) Prepend(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = slices.Insert(c.items, 0, item)
}

// Replace swaps the item with the same id in place. An unknown id is
// prepended, since the list may have been fetched before it existed.
func (c *Container[T]) Replace(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(c.idOf(item)); i >= 0 {
		c.items[i] = item
		return
	}
	c.items = slices.Insert(c.items, 0, item)
}

// Remove drops the item with id. It reports whether one was removed.
func (c *Container[T]) Remove(id models.ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return false
	}
	c.items = slices.Delete(c.items, i, i+1)
	return true
}

func (c *Container[T]) indexLocked(id models.ID) int {
	return slices.IndexFunc(c.items, func(it T) bool { return c.idOf(it) == id })
}

// View derives a filtered, searched and sorted copy of the list.
func (c *Container[T]) View(q listview.Query[T]) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return listview.Apply(c.items, q)
}

// Loaded reports whether at least one fetch succeeded.
func (c *Container[T]) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// LastError returns the error of the most recent failed fetch, cleared by
// the next successful one.
func (c *Container[T]) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// FetchedAt returns when the list was last replaced from the API.
func (c *Container[T]) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}

// scope is what every feature store shares within one workspace.
type scope struct {
	feed   *Feed
	busy   *Busy
	life   *Lifetime
	logger *common.Logger
}

// mutate runs one user-triggered mutation. A duplicate submission is
// rejected with ErrBusy. A failed call leaves local state untouched and
// notifies the feed. apply runs only if the owner is still alive.
func mutate[R any](ctx context.Context, s *scope, action string, call func(context.Context) (R, error), apply func(R), done func(R) string) (R, error) {
	var zero R
	release, err := s.busy.Acquire(action)
	if err != nil {
		return zero, err
	}
	defer release()

	ctx, cancel := s.life.Bind(ctx)
	defer cancel()

	r, err := call(ctx)
	if err != nil {
		if !s.life.Alive() {
			return zero, ErrClosed
		}
		s.logger.Warn().Str("action", action).Err(err).Msg("action failed")
		s.feed.Failure(action, err)
		return zero, err
	}
	if err := s.life.Apply(func() { apply(r) }); err != nil {
		return zero, err
	}
	s.feed.Success(action, "%s", done(r))
	return r, nil
}
