package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/glamour"

	"github.com/bobmcallan/folio-portal/internal/client"
	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/config"
	"github.com/bobmcallan/folio-portal/internal/interfaces"
	"github.com/bobmcallan/folio-portal/internal/session"
	"github.com/bobmcallan/folio-portal/internal/storage/badger"
	"github.com/bobmcallan/folio-portal/internal/store"
)

// sessionKey holds the id of the terminal's current session.
const sessionKey = "folio:cli:session"

var (
	configFile = flag.String("config", "", "Configuration file path (TOML)")
	stateDir   = flag.String("state", "", "Directory of the local session store (default: user config dir)/folio")
	apiURL     = flag.String("api", "", "folio-server URL (overrides config)")
	plain      = flag.Bool("plain", false, "Print plain markdown instead of styled output")
	verbose    = flag.Bool("verbose", false, "Log requests to stderr")
)

// env is everything a subcommand needs: the configured client, the
// session manager over the local store, and a registry to open the
// workspace of the current session.
type env struct {
	cfg      *config.Config
	logger   *common.Logger
	storage  interfaces.StorageManager
	client   *client.Client
	sessions *session.Manager
	registry *store.Registry
}

func openEnv() (*env, error) {
	var files []string
	if *configFile != "" {
		files = append(files, *configFile)
	}
	cfg, err := config.LoadFromFiles(files...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if *apiURL != "" {
		cfg.API.URL = *apiURL
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger := common.NewLoggerFromConfig(common.LoggingConfig{Level: level, Outputs: []string{"console"}})

	dir := *stateDir
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("no state directory: %w", err)
		}
		dir = filepath.Join(base, "folio")
	}
	sm, err := badger.NewManager(logger, &config.BadgerConfig{Path: dir})
	if err != nil {
		return nil, fmt.Errorf("failed to open session store %s: %w", dir, err)
	}

	secret := []byte(cfg.Auth.JWTSecret)
	if len(secret) == 0 {
		secret = []byte("folio-cli")
	}

	c := client.New(cfg.API.URL,
		client.WithLogger(logger),
		client.WithRateLimit(cfg.API.RateLimit),
		client.WithTimeout(cfg.API.TimeoutDuration()),
	)
	sessions := session.NewManager(c, sm.KeyValueStorage(), secret, logger)

	return &env{
		cfg:      cfg,
		logger:   logger,
		storage:  sm,
		client:   c,
		sessions: sessions,
		registry: store.NewRegistry(c, sessions, store.Options{
			AssetListLimit: cfg.Market.ListLimit,
		}, logger),
	}, nil
}

func (e *env) Close() {
	e.registry.CloseAll()
	e.storage.Close()
}

// current restores the terminal's session.
func (e *env) current(ctx context.Context) (session.Session, error) {
	id, err := e.storage.KeyValueStorage().Get(ctx, sessionKey)
	if errors.Is(err, interfaces.ErrKeyNotFound) || id == "" {
		return session.Session{}, errNotLoggedIn
	}
	if err != nil {
		return session.Session{}, err
	}
	sess, err := e.sessions.Restore(ctx, id)
	if errors.Is(err, session.ErrNoSession) {
		return session.Session{}, errNotLoggedIn
	}
	return sess, err
}

// remember makes sess the terminal's session.
func (e *env) remember(ctx context.Context, sess session.Session) error {
	return e.storage.KeyValueStorage().Set(ctx, sessionKey, sess.ID)
}

func (e *env) forget(ctx context.Context) error {
	err := e.storage.KeyValueStorage().Delete(ctx, sessionKey)
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return nil
	}
	return err
}

// workspace opens and loads the workspace of the current session. The
// returned context carries the session's bearer token.
func (e *env) workspace(ctx context.Context) (*store.Workspace, context.Context, error) {
	sess, err := e.current(ctx)
	if err != nil {
		return nil, ctx, err
	}
	ws, _ := e.registry.Get(sess)
	ctx = ws.Context(ctx)
	if err := ws.Load(ctx); err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			e.sessions.Drop(ctx, sess.ID)
			e.forget(ctx)
			return nil, ctx, errNotLoggedIn
		}
		e.logger.Warn().Err(err).Msg("some lists failed to load")
	}
	return ws, ctx, nil
}

var errNotLoggedIn = errors.New("not logged in; run `folio login`")

// printMarkdown renders md for the terminal, or prints it as is with
// -plain.
func printMarkdown(md string) {
	if *plain {
		fmt.Print(md)
		return
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err != nil {
		fmt.Print(md)
		return
	}
	out, err := r.Render(md)
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}
