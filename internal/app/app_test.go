package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bobmcallan/folio-portal/internal/client/clienttest"
	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/config"
	"github.com/bobmcallan/folio-portal/internal/models"
	"github.com/bobmcallan/folio-portal/internal/session"
)

func testConfig(t *testing.T, apiURL string) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.API.URL = apiURL
	cfg.API.RateLimit = 0
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Storage.Badger.Path = filepath.Join(t.TempDir(), "db")
	cfg.Market.RefreshSchedule = ""
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(cfg, common.NewSilentLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNew_WiresEverything(t *testing.T) {
	api := clienttest.New(t)
	a := newTestApp(t, testConfig(t, api.URL))

	for name, v := range map[string]any{
		"Guard":               a.Guard,
		"HealthHandler":       a.HealthHandler,
		"VersionHandler":      a.VersionHandler,
		"ServerHealthHandler": a.ServerHealthHandler,
		"AuthHandler":         a.AuthHandler,
		"PortfolioHandler":    a.PortfolioHandler,
		"TransactionHandler":  a.TransactionHandler,
		"AssetHandler":        a.AssetHandler,
		"HoldingHandler":      a.HoldingHandler,
		"NotificationHandler": a.NotificationHandler,
		"MCPHandler":          a.MCPHandler,
	} {
		if v == nil {
			t.Errorf("expected %s to be initialized", name)
		}
	}
	if a.scheduler == nil || len(a.scheduler.Entries()) != 1 {
		t.Error("expected only the session prune job with an empty market schedule")
	}
}

func TestNew_InvalidSchedule(t *testing.T) {
	api := clienttest.New(t)
	cfg := testConfig(t, api.URL)
	cfg.Market.RefreshSchedule = "every now and then"

	if _, err := New(cfg, common.NewSilentLogger()); err == nil {
		t.Fatal("expected error for an invalid cron expression")
	}
}

func TestNew_SchedulerStartsAndStops(t *testing.T) {
	api := clienttest.New(t)
	cfg := testConfig(t, api.URL)
	cfg.Market.RefreshSchedule = "@every 1h"

	a, err := New(cfg, common.NewSilentLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if a.scheduler == nil || len(a.scheduler.Entries()) != 2 {
		t.Fatal("expected the prune and market refresh jobs")
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestNew_RandomSecretWhenUnset(t *testing.T) {
	api := clienttest.New(t)
	cfg := testConfig(t, api.URL)
	cfg.Auth.JWTSecret = ""

	a := newTestApp(t, cfg)
	sess, err := a.Sessions.Login(context.Background(), models.Credentials{Username: "alice", Password: clienttest.Password})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	signed, err := a.Sessions.SignCookie(sess)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := a.Sessions.Authenticate(context.Background(), signed); err != nil {
		t.Errorf("expected cookie signed with the generated secret to verify: %v", err)
	}
}

func TestRefreshMarket_SweepsEndedSessions(t *testing.T) {
	api := clienttest.New(t)
	a := newTestApp(t, testConfig(t, api.URL))
	ctx := context.Background()

	login := func() session.Session {
		sess, err := a.Sessions.Login(ctx, models.Credentials{Username: "alice", Password: clienttest.Password})
		if err != nil {
			t.Fatalf("login failed: %v", err)
		}
		return sess
	}
	live, ended := login(), login()
	a.Registry.Get(live)
	a.Registry.Get(ended)
	if err := a.Sessions.Drop(ctx, ended.ID); err != nil {
		t.Fatalf("drop failed: %v", err)
	}

	before := api.Count("GET /api/market/assets")
	a.RefreshMarket(ctx)

	if a.Registry.Len() != 1 {
		t.Fatalf("expected 1 workspace after sweep, got %d", a.Registry.Len())
	}
	if _, ok := a.Registry.Lookup(live.ID); !ok {
		t.Error("expected the live session's workspace to survive")
	}
	if got := api.Count("GET /api/market/assets") - before; got != 1 {
		t.Errorf("expected one catalog reload, got %d", got)
	}
}

func TestPruneSessions_KeepsLiveSessions(t *testing.T) {
	api := clienttest.New(t)
	a := newTestApp(t, testConfig(t, api.URL))
	ctx := context.Background()

	sess, err := a.Sessions.Login(ctx, models.Credentials{Username: "alice", Password: clienttest.Password})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	a.PruneSessions(ctx)

	if _, err := a.Sessions.Restore(ctx, sess.ID); err != nil {
		t.Errorf("expected the live session to survive pruning: %v", err)
	}
}

func TestPruneSessions_ClosesEndedWorkspaces(t *testing.T) {
	api := clienttest.New(t)
	a := newTestApp(t, testConfig(t, api.URL))
	ctx := context.Background()

	sess, err := a.Sessions.Login(ctx, models.Credentials{Username: "alice", Password: clienttest.Password})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	a.Registry.Get(sess)
	if err := a.Sessions.Drop(ctx, sess.ID); err != nil {
		t.Fatalf("drop failed: %v", err)
	}

	a.PruneSessions(ctx)

	if a.Registry.Len() != 0 {
		t.Errorf("expected the ended workspace to be closed, got %d open", a.Registry.Len())
	}
}
