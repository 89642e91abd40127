package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bobmcallan/folio-portal/internal/app"
	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/config"
	"github.com/bobmcallan/folio-portal/internal/server"
)

// configPaths is a custom flag type that allows multiple -config flags.
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles configPaths
	serverPort  = flag.Int("port", 0, "Server port (overrides config)")
	serverPortP = flag.Int("p", 0, "Server port (shorthand)")
	serverHost  = flag.String("host", "", "Server host (overrides config)")
	envFile     = flag.String("env", ".env", "Environment file loaded before configuration (optional)")
	showVersion = flag.Bool("version", false, "Print version information")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("folio-portal %s\n", config.CurrentBuild())
		return
	}
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "folio-portal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// FOLIO_* may come from the real environment, so a missing file is fine.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read %s: %w", *envFile, err)
	}

	cfg, files, err := loadConfig()
	if err != nil {
		return err
	}

	logger := common.NewLoggerFromConfig(cfg.Logging)
	logger.Info().
		Str("listen", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Str("api_url", cfg.API.URL).
		Str("environment", cfg.Environment).
		Strs("config_files", files).
		Str("build", config.CurrentBuild().String()).
		Msg("configuration loaded")

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Error().Err(err).Msg("application shutdown failed")
		}
	}()

	srv := server.New(application)
	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()
	logger.Info().Str("url", cfg.BaseURL()).Msg("portal ready")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errc:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("portal stopped")
	return nil
}

// loadConfig layers defaults, the discovered or given TOML files, FOLIO_*
// variables and flags, then validates the result.
func loadConfig() (*config.Config, []string, error) {
	files := []string(configFiles)
	if len(files) == 0 {
		for _, path := range portalConfigSearchPaths() {
			if _, err := os.Stat(path); err == nil {
				files = append(files, path)
				break
			}
		}
	}

	cfg, err := config.LoadFromFiles(files...)
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	port := *serverPort
	if *serverPortP != 0 {
		port = *serverPortP
	}
	config.ApplyFlagOverrides(cfg, port, *serverHost)

	if issues := cfg.Validate(); len(issues) > 0 {
		var b strings.Builder
		b.WriteString("invalid configuration:\n")
		for _, issue := range issues {
			fmt.Fprintf(&b, "  - %s\n", issue)
		}
		b.WriteString("set values in folio-portal.toml, FOLIO_* variables or flags")
		return nil, nil, errors.New(b.String())
	}
	return cfg, files, nil
}

// portalConfigSearchPaths returns TOML files to auto-discover (first match wins).
// Binary-relative paths are tried first, with CWD and Docker fallbacks after.
func portalConfigSearchPaths() []string {
	candidates := []string{
		"folio-portal.toml",
		"config/folio-portal.toml",
		"docker/folio-portal.toml",
	}

	exe, err := os.Executable()
	if err != nil {
		return candidates
	}
	binDir := filepath.Dir(exe)

	paths := []string{
		filepath.Join(binDir, "folio-portal.toml"),
		filepath.Join(binDir, "config", "folio-portal.toml"),
	}
	paths = append(paths, candidates...)

	seen := make(map[string]bool, len(paths))
	deduped := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true
		deduped = append(deduped, p)
	}
	return deduped
}
