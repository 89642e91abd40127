package main

import (
	"context"
	"flag"
	"testing"

	"github.com/google/subcommands"

	"github.com/bobmcallan/folio-portal/internal/client/clienttest"
)

// useFakeServer points the global flags at a fake folio-server and a
// temporary session store.
func useFakeServer(t *testing.T) *clienttest.Server {
	t.Helper()
	api := clienttest.New(t)

	prevAPI, prevState, prevPlain := *apiURL, *stateDir, *plain
	*apiURL = api.URL
	*stateDir = t.TempDir()
	*plain = true
	t.Cleanup(func() {
		*apiURL, *stateDir, *plain = prevAPI, prevState, prevPlain
	})
	t.Setenv("FOLIO_PASSWORD", clienttest.Password)
	return api
}

func run(t *testing.T, cmd subcommands.Command, args ...string) subcommands.ExitStatus {
	t.Helper()
	f := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.SetFlags(f)
	if err := f.Parse(args); err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	return cmd.Execute(context.Background(), f)
}

func TestTotalCmd(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want subcommands.ExitStatus
	}{
		{"buy", []string{"-type", "buy", "-q", "10", "-price", "10", "-fees", "1"}, subcommands.ExitSuccess},
		{"hyphenated type", []string{"-type", "transfer-in", "-q", "2", "-price", "5"}, subcommands.ExitSuccess},
		{"fee only", []string{"-type", "fee", "-fees", "2.5"}, subcommands.ExitSuccess},
		{"unknown type", []string{"-type", "barter"}, subcommands.ExitUsageError},
		{"negative price", []string{"-type", "buy", "-q", "1", "-price", "-3"}, subcommands.ExitUsageError},
		{"not a number", []string{"-type", "sell", "-q", "ten"}, subcommands.ExitUsageError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(t, &totalCmd{}, tt.args...); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSessionCommands(t *testing.T) {
	useFakeServer(t)

	if got := run(t, &whoamiCmd{}); got != subcommands.ExitFailure {
		t.Fatalf("expected whoami to fail before login, got %v", got)
	}
	if got := run(t, &loginCmd{}, "-u", "alice"); got != subcommands.ExitSuccess {
		t.Fatalf("login failed: %v", got)
	}

	e, err := openEnv()
	if err != nil {
		t.Fatalf("openEnv failed: %v", err)
	}
	sess, err := e.current(context.Background())
	e.Close()
	if err != nil {
		t.Fatalf("expected a remembered session: %v", err)
	}
	if sess.User.Username != "alice" {
		t.Errorf("expected alice, got %q", sess.User.Username)
	}

	if got := run(t, &whoamiCmd{}); got != subcommands.ExitSuccess {
		t.Errorf("whoami failed: %v", got)
	}
	if got := run(t, &logoutCmd{}); got != subcommands.ExitSuccess {
		t.Errorf("logout failed: %v", got)
	}
	if got := run(t, &whoamiCmd{}); got != subcommands.ExitFailure {
		t.Errorf("expected whoami to fail after logout, got %v", got)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	useFakeServer(t)
	t.Setenv("FOLIO_PASSWORD", "wrong")

	if got := run(t, &loginCmd{}, "-u", "alice"); got != subcommands.ExitFailure {
		t.Errorf("expected failure, got %v", got)
	}
}

func TestWorkspaceCommands(t *testing.T) {
	api := useFakeServer(t)
	if got := run(t, &loginCmd{}, "-u", "alice"); got != subcommands.ExitSuccess {
		t.Fatalf("login failed: %v", got)
	}

	if got := run(t, &portfoliosCmd{}, "-select", "p2"); got != subcommands.ExitSuccess {
		t.Errorf("portfolios failed: %v", got)
	}
	if got := run(t, &transactionsCmd{}, "-type", "buy", "-n", "1"); got != subcommands.ExitSuccess {
		t.Errorf("transactions failed: %v", got)
	}
	if got := run(t, &transactionsCmd{}, "-sort", "colour"); got != subcommands.ExitUsageError {
		t.Errorf("expected usage error for an unknown sort key, got %v", got)
	}
	if got := run(t, &searchCmd{}, "apple"); got != subcommands.ExitSuccess {
		t.Errorf("search failed: %v", got)
	}
	if got := run(t, &metricsCmd{}, "aapl"); got != subcommands.ExitSuccess {
		t.Errorf("metrics failed: %v", got)
	}

	out := t.TempDir() + "/aapl.png"
	if got := run(t, &chartCmd{}, "-o", out, "-w", "320", "-h", "200", "AAPL"); got != subcommands.ExitSuccess {
		t.Errorf("chart failed: %v", got)
	}
	if api.Count("GET /api/market/history/AAPL") == 0 {
		t.Error("expected the chart to fetch price history")
	}

	e, err := openEnv()
	if err != nil {
		t.Fatalf("openEnv failed: %v", err)
	}
	defer e.Close()
	sess, err := e.current(context.Background())
	if err != nil {
		t.Fatalf("expected a remembered session: %v", err)
	}
	if sess.SelectedPortfolioID != "p2" {
		t.Errorf("expected p2 to stay selected, got %q", sess.SelectedPortfolioID)
	}
}

func TestWorkspaceCommands_RequireLogin(t *testing.T) {
	useFakeServer(t)

	if got := run(t, &transactionsCmd{}); got != subcommands.ExitFailure {
		t.Errorf("expected failure without a session, got %v", got)
	}
}

func TestGlobalFlags(t *testing.T) {
	for name, usage := range map[string]string{
		"config":  "Configuration file path (TOML)",
		"api":     "folio-server URL (overrides config)",
		"plain":   "Print plain markdown instead of styled output",
		"verbose": "Log requests to stderr",
	} {
		f := flag.CommandLine.Lookup(name)
		if f == nil {
			t.Errorf("flag -%s not registered", name)
			continue
		}
		if f.Usage != usage {
			t.Errorf("flag -%s: expected usage %q, got %q", name, usage, f.Usage)
		}
	}
}
