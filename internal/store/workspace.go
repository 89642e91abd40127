package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bobmcallan/folio-portal/internal/client"
	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/debounce"
	"github.com/bobmcallan/folio-portal/internal/interfaces"
	"github.com/bobmcallan/folio-portal/internal/models"
	"github.com/bobmcallan/folio-portal/internal/session"
)

// Options tunes the stores of a workspace.
type Options struct {
	AssetListLimit int
	SearchDebounce time.Duration
}

func (o Options) withDefaults() Options {
	if o.AssetListLimit <= 0 {
		o.AssetListLimit = 100
	}
	if o.SearchDebounce <= 0 {
		o.SearchDebounce = 400 * time.Millisecond
	}
	return o
}

// Selections is told when a portfolio is deleted so a session selecting
// it can fall back to "no portfolio selected".
type Selections interface {
	PortfolioDeleted(ctx context.Context, sessionID string, portfolioID models.ID) (session.Session, error)
}

// Workspace holds every entity list of one session. Each list is owned by
// exactly one store; nothing else mutates it.
type Workspace struct {
	SessionID    string
	Feed         *Feed
	Portfolios   *Portfolios
	Transactions *Transactions
	Assets       *Assets
	Holdings     *Holdings

	life  *Lifetime
	keyed *debounce.Keyed

	mu   sync.RWMutex
	sess session.Session
}

// NewWorkspace builds the stores for one session.
func NewWorkspace(sess session.Session, api interfaces.FolioAPI, selections Selections, opts Options, logger *common.Logger) *Workspace {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	opts = opts.withDefaults()
	s := &scope{
		feed:   NewFeed(),
		busy:   NewBusy(),
		life:   NewLifetime(),
		logger: logger,
	}
	w := &Workspace{
		SessionID: sess.ID,
		Feed:      s.feed,
		life:      s.life,
		keyed:     debounce.NewKeyed(opts.SearchDebounce),
		sess:      sess,
	}
	var onDeleted func(context.Context, models.ID) error
	if selections != nil {
		onDeleted = func(ctx context.Context, id models.ID) error {
			updated, err := selections.PortfolioDeleted(ctx, w.SessionID, id)
			if err != nil {
				return err
			}
			w.setSession(updated)
			return nil
		}
	}
	w.Portfolios = newPortfolios(s, api, onDeleted)
	w.Transactions = newTransactions(s, api, w.Portfolios.Name)
	w.Assets = newAssets(s, api, models.AssetListOptions{Limit: opts.AssetListLimit}, w.keyed)
	w.Holdings = newHoldings(s, api)
	return w
}

// Session returns the session the workspace was last bound to.
func (w *Workspace) Session() session.Session {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.sess
}

func (w *Workspace) setSession(s session.Session) {
	w.mu.Lock()
	w.sess = s
	w.mu.Unlock()
}

// Context carries the workspace session and its bearer token, for work
// that does not originate from a request.
func (w *Workspace) Context(parent context.Context) context.Context {
	s := w.Session()
	return client.WithToken(session.NewContext(parent, &s), s.Token)
}

// Load fetches every list. Portfolios load first so transactions can be
// labelled with portfolio names. Failures keep previous lists.
func (w *Workspace) Load(ctx context.Context) error {
	pErr := w.Portfolios.list.Load(ctx)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i, load := range []func(context.Context) error{
		w.Transactions.list.Load,
		w.Assets.list.Load,
		w.Holdings.list.Load,
	} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = load(ctx)
		}()
	}
	wg.Wait()
	return errors.Join(append([]error{pErr}, errs...)...)
}

// Alive reports whether the workspace is still open.
func (w *Workspace) Alive() bool { return w.life.Alive() }

// Close tears the workspace down. In-flight results are discarded.
func (w *Workspace) Close() {
	w.life.Close()
	w.keyed.CancelAll()
	w.Assets.close()
}

// Registry maps session ids to their workspaces.
type Registry struct {
	api        interfaces.FolioAPI
	selections Selections
	opts       Options
	logger     *common.Logger

	mu     sync.Mutex
	spaces map[string]*Workspace
}

// NewRegistry returns an empty registry.
func NewRegistry(api interfaces.FolioAPI, selections Selections, opts Options, logger *common.Logger) *Registry {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Registry{
		api:        api,
		selections: selections,
		opts:       opts,
		logger:     logger,
		spaces:     make(map[string]*Workspace),
	}
}

// Get returns the workspace of s, creating it on first use. created is
// true when the caller should Load it.
func (r *Registry) Get(s session.Session) (ws *Workspace, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ws, ok := r.spaces[s.ID]; ok {
		ws.setSession(s)
		return ws, false
	}
	ws = NewWorkspace(s, r.api, r.selections, r.opts, r.logger)
	r.spaces[s.ID] = ws
	r.logger.Debug().Str("session", s.ID).Msg("workspace opened")
	return ws, true
}

// Lookup returns an existing workspace.
func (r *Registry) Lookup(sessionID string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.spaces[sessionID]
	return ws, ok
}

// Close tears down and forgets the workspace of sessionID.
func (r *Registry) Close(sessionID string) {
	r.mu.Lock()
	ws, ok := r.spaces[sessionID]
	delete(r.spaces, sessionID)
	r.mu.Unlock()
	if ok {
		ws.Close()
		r.logger.Debug().Str("session", sessionID).Msg("workspace closed")
	}
}

// CloseAll tears down every workspace.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	spaces := r.spaces
	r.spaces = make(map[string]*Workspace)
	r.mu.Unlock()
	for _, ws := range spaces {
		ws.Close()
	}
}

// Len reports the number of open workspaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.spaces)
}

// RefreshMarket reloads the market catalog of every open workspace with
// that workspace's credentials. It returns how many reloads succeeded.
func (r *Registry) RefreshMarket(ctx context.Context) int {
	r.mu.Lock()
	spaces := make([]*Workspace, 0, len(r.spaces))
	for _, ws := range r.spaces {
		spaces = append(spaces, ws)
	}
	r.mu.Unlock()

	ok := 0
	for _, ws := range spaces {
		if err := ws.Assets.list.Load(ws.Context(ctx)); err != nil {
			r.logger.Warn().Str("session", ws.SessionID).Err(err).Msg("scheduled market refresh failed")
			continue
		}
		ok++
	}
	return ok
}

// Sweep closes the workspaces whose session alive reports as gone. It
// returns how many were closed.
func (r *Registry) Sweep(alive func(sessionID string) bool) int {
	r.mu.Lock()
	ids := make([]string, 0, len(r.spaces))
	for id := range r.spaces {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	closed := 0
	for _, id := range ids {
		if alive(id) {
			continue
		}
		r.Close(id)
		closed++
	}
	return closed
}
