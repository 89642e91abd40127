package config

import "github.com/bobmcallan/folio-portal/internal/common"

// NewDefaultConfig creates a configuration with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "prod",
		Server: ServerConfig{
			Port:      4251,
			Host:      "localhost",
			MaxBodyKB: 1024,
		},
		API: APIConfig{
			URL:       "http://localhost:4252",
			Timeout:   "10s",
			RateLimit: 10,
		},
		Auth: AuthConfig{
			CookieName: "folio_session",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/folio",
			},
		},
		Logging: common.LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Market: MarketConfig{
			ListLimit:        100,
			RefreshSchedule:  "*/5 * * * *",
			SearchDebounceMs: 400,
			CacheTTL:         "1m",
		},
		Chart: ChartConfig{
			Width:  900,
			Height: 400,
			Theme:  "light",
		},
	}
}
