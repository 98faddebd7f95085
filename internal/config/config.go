// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and EXPWATCH_ env vars.
// - Errors returned to callers wrap this package's sentinels.
package config

import (
	"time"
)

// Ledger drivers.
const (
	LedgerMemory = "memory"
	LedgerCSV    = "csv"
	LedgerSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// APIBaseURL is the Nexon Open API root.
	APIBaseURL string `koanf:"api_base_url"`

	// APIKey is sent as x-nxopen-api-key on every upstream call.
	APIKey string `koanf:"api_key"`

	// Roster lists the character names sampled on every run.
	Roster []string `koanf:"roster"`

	// Concurrency caps in-flight upstream calls per collector stage.
	Concurrency int `koanf:"concurrency"`

	// RequestTimeout bounds each upstream call.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// RateLimitPerSec and RateBurst shape outbound calls across all workers.
	// A non-positive rate disables limiting.
	RateLimitPerSec float64 `koanf:"rate_limit_per_sec"`
	RateBurst       int     `koanf:"rate_burst"`

	// Schedule is a standard 5-field cron expression for collection runs.
	Schedule string `koanf:"schedule"`

	// RunOnStart triggers one collection as soon as the service starts.
	RunOnStart bool `koanf:"run_on_start"`

	// LedgerDriver is one of memory, csv, sqlite.
	LedgerDriver string `koanf:"ledger_driver"`

	// LedgerPath is the CSV file or SQLite database path.
	LedgerPath string `koanf:"ledger_path"`

	// LevelTablePath points at the YAML level table.
	LevelTablePath string `koanf:"level_table_path"`

	// MilestoneLevel is the default target level for milestone projections.
	MilestoneLevel int `koanf:"milestone_level"`

	// VelocityWindow is the default look-back for velocity queries.
	VelocityWindow time.Duration `koanf:"velocity_window"`

	// TopN is the default selection size when a query names no entities.
	TopN int `koanf:"top_n"`

	// MaxLimit caps GET /ranking?limit.
	MaxLimit int `koanf:"max_limit"`

	// ResolverCacheSize enables a name -> identifier LRU when positive.
	ResolverCacheSize int           `koanf:"resolver_cache_size"`
	ResolverCacheTTL  time.Duration `koanf:"resolver_cache_ttl"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		APIBaseURL:        "https://open.api.nexon.com",
		Concurrency:       10,
		RequestTimeout:    10 * time.Second,
		RateLimitPerSec:   20,
		RateBurst:         10,
		Schedule:          "*/30 * * * *",
		RunOnStart:        false,
		LedgerDriver:      LedgerCSV,
		LedgerPath:        "exp_history.csv",
		LevelTablePath:    "configs/levels.yaml",
		MilestoneLevel:    270,
		VelocityWindow:    6 * time.Hour,
		TopN:              20,
		MaxLimit:          200,
		ResolverCacheSize: 0,
		ResolverCacheTTL:  24 * time.Hour,
	}
}
