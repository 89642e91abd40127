package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/folio-portal/internal/cache"
	"github.com/bobmcallan/folio-portal/internal/client"
	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/config"
	"github.com/bobmcallan/folio-portal/internal/handlers"
	"github.com/bobmcallan/folio-portal/internal/interfaces"
	"github.com/bobmcallan/folio-portal/internal/mcp"
	"github.com/bobmcallan/folio-portal/internal/session"
	"github.com/bobmcallan/folio-portal/internal/storage"
	"github.com/bobmcallan/folio-portal/internal/store"
)

// marketCacheEntries bounds the market response cache.
const marketCacheEntries = 512

// App holds all application components and dependencies.
type App struct {
	Config *config.Config
	Logger *common.Logger

	Storage  interfaces.StorageManager
	Client   *client.Client
	Sessions *session.Manager
	Registry *store.Registry
	Guard    *handlers.Guard

	// HTTP handlers
	HealthHandler       *handlers.HealthHandler
	VersionHandler      *handlers.VersionHandler
	ServerHealthHandler *handlers.ServerHealthHandler
	AuthHandler         *handlers.AuthHandler
	PortfolioHandler    *handlers.PortfolioHandler
	TransactionHandler  *handlers.TransactionHandler
	AssetHandler        *handlers.AssetHandler
	HoldingHandler      *handlers.HoldingHandler
	NotificationHandler *handlers.NotificationHandler
	MCPHandler          *mcp.Handler

	scheduler *cron.Cron
}

// New initializes the application with all dependencies.
func New(cfg *config.Config, logger *common.Logger) (*App, error) {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	a := &App{
		Config: cfg,
		Logger: logger,
	}

	// Validate environment setting
	env := strings.ToLower(strings.TrimSpace(cfg.Environment))
	if cfg.IsDevMode() {
		logger.Warn().Msg("RUNNING IN DEV MODE: session cookies are not marked Secure")
	} else if env != "prod" && env != "" {
		logger.Warn().
			Str("environment", cfg.Environment).
			Msg("unrecognized environment value, defaulting to prod behavior")
	}

	if err := a.initStores(); err != nil {
		return nil, err
	}
	a.initHandlers()
	if err := a.initScheduler(); err != nil {
		a.Close()
		return nil, err
	}

	logger.Info().Msg("application initialization complete")

	return a, nil
}

// initStores opens local storage and builds the folio-server client, the
// session manager and the workspace registry.
func (a *App) initStores() error {
	sm, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	a.Storage = sm

	// The unauthorized hook needs the manager, which needs the client.
	var sessions *session.Manager
	a.Client = client.New(a.Config.API.URL,
		client.WithLogger(a.Logger),
		client.WithRateLimit(a.Config.API.RateLimit),
		client.WithTimeout(a.Config.API.TimeoutDuration()),
		client.WithCache(cache.New(a.Config.Market.CacheTTLDuration(), marketCacheEntries)),
		client.WithUnauthorizedHandler(func(ctx context.Context) {
			if sessions != nil {
				sessions.HandleUnauthorized(ctx)
			}
		}),
	)

	secret, err := a.sessionSecret()
	if err != nil {
		sm.Close()
		return err
	}
	sessions = session.NewManager(a.Client, sm.KeyValueStorage(), secret, a.Logger)
	a.Sessions = sessions

	a.Registry = store.NewRegistry(a.Client, sessions, store.Options{
		AssetListLimit: a.Config.Market.ListLimit,
		SearchDebounce: a.Config.Market.SearchDebounce(),
	}, a.Logger)
	return nil
}

// sessionSecret returns the configured cookie signing secret. Without one
// a random secret is used, so sessions do not survive a restart.
func (a *App) sessionSecret() ([]byte, error) {
	if s := a.Config.Auth.JWTSecret; s != "" {
		return []byte(s), nil
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate session secret: %w", err)
	}
	a.Logger.Warn().Msg("auth.jwt_secret is empty, using a random secret; sessions end on restart")
	return secret, nil
}

// initHandlers initializes all HTTP handlers.
func (a *App) initHandlers() {
	cookie := a.Config.Auth.CookieName
	a.Guard = handlers.NewGuard(a.Logger, a.Sessions, a.Registry, cookie, !a.Config.IsDevMode())

	a.HealthHandler = handlers.NewHealthHandler(a.Logger)
	a.VersionHandler = handlers.NewVersionHandler(a.Logger, a.Config.API.URL)
	a.ServerHealthHandler = handlers.NewServerHealthHandler(a.Logger, a.Client)
	a.AuthHandler = handlers.NewAuthHandler(a.Logger, a.Guard, a.Sessions, a.Client)
	a.PortfolioHandler = handlers.NewPortfolioHandler(a.Logger, a.Guard, a.Sessions)
	a.TransactionHandler = handlers.NewTransactionHandler(a.Logger, a.Guard)
	a.AssetHandler = handlers.NewAssetHandler(a.Logger, a.Guard, a.Config.Chart)
	a.HoldingHandler = handlers.NewHoldingHandler(a.Logger, a.Guard)
	a.NotificationHandler = handlers.NewNotificationHandler(a.Logger, a.Guard)

	a.MCPHandler = mcp.NewHandler(a.Logger, a.Sessions, a.Registry, cookie, a.Config.API.URL)

	a.Logger.Debug().Msg("HTTP handlers initialized")
}

// Close stops background work and closes all application resources.
func (a *App) Close() error {
	if a.scheduler != nil {
		<-a.scheduler.Stop().Done()
	}
	if a.Registry != nil {
		a.Registry.CloseAll()
	}
	var errs []error
	if a.Storage != nil {
		errs = append(errs, a.Storage.Close())
	}
	return errors.Join(errs...)
}
