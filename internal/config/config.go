package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/bobmcallan/folio-portal/internal/common"
)

// Config represents the application configuration.
type Config struct {
	Environment string               `toml:"environment"`
	Server      ServerConfig         `toml:"server"`
	API         APIConfig            `toml:"api"`
	Auth        AuthConfig           `toml:"auth"`
	Storage     StorageConfig        `toml:"storage"`
	Logging     common.LoggingConfig `toml:"logging"`
	Market      MarketConfig         `toml:"market"`
	Chart       ChartConfig          `toml:"chart"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`

	// AllowedOrigins lists the browser origins allowed to call the API
	// with credentials. Empty means the portal's own BaseURL.
	AllowedOrigins []string `toml:"allowed_origins"`

	// MaxBodyKB caps request bodies; 0 falls back to 1024.
	MaxBodyKB int `toml:"max_body_kb"`
}

// MaxBodyBytes returns the request body limit in bytes.
func (s ServerConfig) MaxBodyBytes() int64 {
	if s.MaxBodyKB <= 0 {
		return 1 << 20
	}
	return int64(s.MaxBodyKB) << 10
}

// APIConfig points at the remote folio-server REST API.
type APIConfig struct {
	URL       string `toml:"url"`
	Timeout   string `toml:"timeout"`
	RateLimit int    `toml:"rate_limit"` // requests per second, 0 disables limiting
}

// TimeoutDuration parses Timeout, falling back to 10s.
func (a APIConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(a.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// AuthConfig contains session cookie settings.
type AuthConfig struct {
	JWTSecret  string `toml:"jwt_secret"`
	CookieName string `toml:"cookie_name"`
}

// StorageConfig contains storage layer settings.
type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig contains BadgerDB-specific settings.
type BadgerConfig struct {
	Path string `toml:"path"`
}

// MarketConfig tunes the market catalog and symbol search.
type MarketConfig struct {
	ListLimit        int    `toml:"list_limit"`
	RefreshSchedule  string `toml:"refresh_schedule"` // cron expression, empty disables
	SearchDebounceMs int    `toml:"search_debounce_ms"`
	CacheTTL         string `toml:"cache_ttl"`
}

// SearchDebounce returns the debounce window for symbol search.
func (m MarketConfig) SearchDebounce() time.Duration {
	if m.SearchDebounceMs <= 0 {
		return 400 * time.Millisecond
	}
	return time.Duration(m.SearchDebounceMs) * time.Millisecond
}

// CacheTTLDuration parses CacheTTL, falling back to one minute.
func (m MarketConfig) CacheTTLDuration() time.Duration {
	d, err := time.ParseDuration(m.CacheTTL)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// ChartConfig holds the default rendering surface.
type ChartConfig struct {
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Theme  string `toml:"theme"`
}

// Origins returns the CORS origins, defaulting to the portal itself.
func (c *Config) Origins() []string {
	if len(c.Server.AllowedOrigins) > 0 {
		return c.Server.AllowedOrigins
	}
	return []string{c.BaseURL()}
}

// IsDevMode reports whether the portal runs with environment "dev".
func (c *Config) IsDevMode() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "dev")
}

// BaseURL returns the portal's own base URL.
func (c *Config) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
}

// Validate returns a list of human-readable configuration problems.
func (c *Config) Validate() []string {
	var issues []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		issues = append(issues, fmt.Sprintf("server.port must be between 1 and 65535 (got %d)", c.Server.Port))
	}
	if strings.TrimSpace(c.API.URL) == "" {
		issues = append(issues, "api.url is required (FOLIO_API_URL)")
	} else if u, err := url.Parse(c.API.URL); err != nil || u.Scheme == "" || u.Host == "" {
		issues = append(issues, fmt.Sprintf("api.url is not an absolute URL: %q", c.API.URL))
	}
	if !c.IsDevMode() && strings.TrimSpace(c.Auth.JWTSecret) == "" {
		issues = append(issues, "auth.jwt_secret is required outside dev mode (FOLIO_AUTH_JWT_SECRET)")
	}
	if c.Market.ListLimit < 0 {
		issues = append(issues, "market.list_limit must not be negative")
	}
	switch strings.ToLower(c.Chart.Theme) {
	case "", "light", "dark":
	default:
		issues = append(issues, fmt.Sprintf("chart.theme must be light or dark (got %q)", c.Chart.Theme))
	}

	return issues
}

// LoadFromFile loads configuration with priority: defaults -> file -> env.
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies FOLIO_* environment variable overrides to config.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FOLIO_ENV"); env != "" {
		config.Environment = env
	}
	if port := os.Getenv("FOLIO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("FOLIO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if kb := os.Getenv("FOLIO_SERVER_MAX_BODY_KB"); kb != "" {
		if n, err := strconv.Atoi(kb); err == nil {
			config.Server.MaxBodyKB = n
		}
	}
	if apiURL := os.Getenv("FOLIO_API_URL"); apiURL != "" {
		config.API.URL = apiURL
	}
	if secret := os.Getenv("FOLIO_AUTH_JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}
	if badgerPath := os.Getenv("FOLIO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if level := os.Getenv("FOLIO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("FOLIO_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if origins := os.Getenv("FOLIO_ALLOWED_ORIGINS"); origins != "" {
		config.Server.AllowedOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				config.Server.AllowedOrigins = append(config.Server.AllowedOrigins, o)
			}
		}
	}
	if schedule, ok := os.LookupEnv("FOLIO_MARKET_REFRESH"); ok {
		config.Market.RefreshSchedule = schedule
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}
