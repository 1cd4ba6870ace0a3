// Package config handles configuration loading for navcompare.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	AMFI    AMFIConfig    `mapstructure:"amfi"    yaml:"amfi"`
	History HistoryConfig `mapstructure:"history" yaml:"history"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Store   StoreConfig   `mapstructure:"store"   yaml:"store"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// AMFIConfig holds bulk NAV feed settings.
type AMFIConfig struct {
	URL             string        `mapstructure:"url"               yaml:"url"`
	FallbackURLs    []string      `mapstructure:"fallback_urls"     yaml:"fallback_urls"`
	HistoryURL      string        `mapstructure:"history_url"       yaml:"history_url"`
	LocalFile       string        `mapstructure:"local_file"        yaml:"local_file"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"         yaml:"cache_ttl"`
	Timeout         time.Duration `mapstructure:"timeout"           yaml:"timeout"`
	MaxAttempts     int           `mapstructure:"max_attempts"      yaml:"max_attempts"`
	Backoff         time.Duration `mapstructure:"backoff"           yaml:"backoff"`
	MinPayloadBytes int           `mapstructure:"min_payload_bytes" yaml:"min_payload_bytes"`
	UserAgent       string        `mapstructure:"user_agent"        yaml:"user_agent"`
}

// HistoryConfig holds per-fund historical NAV API settings.
type HistoryConfig struct {
	BaseURL   string        `mapstructure:"base_url"   yaml:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"    yaml:"timeout"`
	RateLimit int           `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per second
	CacheTTL  time.Duration `mapstructure:"cache_ttl"  yaml:"cache_ttl"`  // 0 disables
}

// MetricsConfig holds metrics engine settings.
type MetricsConfig struct {
	RiskFreeRate  float64 `mapstructure:"risk_free_rate"  yaml:"risk_free_rate"` // percent
	FreshnessDays int     `mapstructure:"freshness_days"  yaml:"freshness_days"`
	MinRealPoints int     `mapstructure:"min_real_points" yaml:"min_real_points"`
}

// StoreConfig holds snapshot persistence settings.
type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"` // "file" or "postgres"
	Path   string `mapstructure:"path"   yaml:"path"`
	DSN    string `mapstructure:"dsn"    yaml:"dsn"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.navcompare/config.yaml (home directory)
//  3. /etc/navcompare/config.yaml (system)
//
// Environment variables override config file values.
// Format: NAVCOMPARE_<SECTION>_<KEY>, e.g., NAVCOMPARE_AMFI_CACHE_TTL
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".navcompare"))
	v.AddConfigPath("/etc/navcompare")

	bindEnv(v)

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return decode(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("NAVCOMPARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// AMFI bulk feed
	v.SetDefault("amfi.url", "https://www.amfiindia.com/spages/NAVAll.txt")
	v.SetDefault("amfi.fallback_urls", []string{
		"http://www.amfiindia.com/spages/NAVAll.txt",
		"https://www.amfiindia.com/spages/NAVAll.txt",
	})
	v.SetDefault("amfi.history_url", "https://portal.amfiindia.com/DownloadNAVHistoryReport_Po.aspx")
	v.SetDefault("amfi.local_file", "./data/NAVAll.txt")
	v.SetDefault("amfi.cache_ttl", time.Hour)
	v.SetDefault("amfi.timeout", 10*time.Second)
	v.SetDefault("amfi.max_attempts", 3)
	v.SetDefault("amfi.backoff", 1500*time.Millisecond)
	v.SetDefault("amfi.min_payload_bytes", 1000)
	v.SetDefault("amfi.user_agent", "navcompare/1.0 (+https://github.com/seenimoa/navcompare)")

	// Historical NAV API
	v.SetDefault("history.base_url", "https://mf.captnemo.in/nav")
	v.SetDefault("history.timeout", 10*time.Second)
	v.SetDefault("history.rate_limit", 5)
	v.SetDefault("history.cache_ttl", 15*time.Minute)

	// Metrics
	v.SetDefault("metrics.risk_free_rate", 7.0)
	v.SetDefault("metrics.freshness_days", 7)
	v.SetDefault("metrics.min_real_points", 50)

	// Snapshot store
	v.SetDefault("store.driver", "file")
	v.SetDefault("store.path", "./data/index-funds-cache.json")
	v.SetDefault("store.dsn", "")

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 5000)
	v.SetDefault("api.cors_origins", []string{"http://localhost:5173"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv reads the un-prefixed variables the deployment scripts use.
func overrideFromEnv(cfg *Config) {
	if u := os.Getenv("AMFI_NAV_URL"); u != "" {
		cfg.AMFI.URL = u
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" && cfg.Store.DSN == "" {
		cfg.Store.DSN = dsn
	}
	if port := os.Getenv("PORT"); port != "" {
		var p int
		if _, err := fmt.Sscanf(port, "%d", &p); err == nil && p > 0 {
			cfg.API.Port = p
		}
	}
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "file", "postgres":
	default:
		return fmt.Errorf("store.driver must be \"file\" or \"postgres\", got %q", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required for the postgres driver")
	}
	if c.AMFI.MaxAttempts < 1 {
		return fmt.Errorf("amfi.max_attempts must be >= 1, got %d", c.AMFI.MaxAttempts)
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port out of range: %d", c.API.Port)
	}
	return nil
}

// FreshnessWindow returns metrics.freshness_days as a duration.
func (m MetricsConfig) FreshnessWindow() time.Duration {
	return time.Duration(m.FreshnessDays) * 24 * time.Hour
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
