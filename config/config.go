package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig
	Acquisition AcquisitionConfig
	Cache       CacheConfig
	Marketplace MarketplaceConfig
	RateLimit   RateLimitConfig
	Log         LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// AcquisitionConfig holds scraper invocation and retry configuration
type AcquisitionConfig struct {
	Mode              string        `mapstructure:"mode"` // "process" or "remote"
	ProductCommand    string        `mapstructure:"product_command"`
	ReviewsCommand    string        `mapstructure:"reviews_command"`
	RemoteURL         string        `mapstructure:"remote_url"`
	MaxRetries        int           `mapstructure:"max_retries"`
	BaseDelay         time.Duration `mapstructure:"base_delay"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RateLimitPatterns []string      `mapstructure:"rate_limit_patterns"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type          string        `mapstructure:"type"` // "memory" or "sqlite"
	TTL           time.Duration `mapstructure:"ttl"`
	MaxEntries    int           `mapstructure:"max_entries"`
	SQLitePath    string        `mapstructure:"sqlite_path"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// MarketplaceConfig restricts which product URLs are accepted
type MarketplaceConfig struct {
	Hosts       []string `mapstructure:"hosts"`
	ReviewLimit int      `mapstructure:"review_limit"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	JSON  bool   `mapstructure:"json"`
	Level string `mapstructure:"level"`
}

// Acquisition modes
const (
	ModeProcess = "process"
	ModeRemote  = "remote"
)

// Cache backends
const (
	CacheMemory = "memory"
	CacheSQLite = "sqlite"
)

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pricelens/")

	// Environment variable settings
	v.SetEnvPrefix("PRICELENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "error reading config file")
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "unable to decode config")
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return &config, nil
}

// loadEnvFile loads a .env file from the working directory when present.
// Variables already set in the environment win.
func loadEnvFile() error {
	if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(".env"); err != nil {
		return errors.Wrap(err, "error loading .env file")
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Acquisition defaults
	v.SetDefault("acquisition.mode", ModeProcess)
	v.SetDefault("acquisition.product_command", ".venv/bin/python scripts/product.py")
	v.SetDefault("acquisition.reviews_command", ".venv/bin/python scripts/script2.py")
	v.SetDefault("acquisition.remote_url", "")
	v.SetDefault("acquisition.max_retries", 3)
	v.SetDefault("acquisition.base_delay", "2s")
	v.SetDefault("acquisition.timeout", "60s")
	v.SetDefault("acquisition.rate_limit_patterns", []string{"429", "rate limit", "too many requests"})
	v.SetDefault("acquisition.requests_per_minute", 0)

	// Cache defaults
	v.SetDefault("cache.type", CacheMemory)
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.max_entries", 50)
	v.SetDefault("cache.sqlite_path", "pricelens-cache.db")
	v.SetDefault("cache.sweep_interval", "10m")

	// Marketplace defaults
	v.SetDefault("marketplace.hosts", []string{"amazon", "amzn"})
	v.SetDefault("marketplace.review_limit", 25)

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)

	// Log defaults
	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")
}

// validate validates the configuration
func validate(config *Config) error {
	acq := config.Acquisition
	switch acq.Mode {
	case ModeProcess:
		if strings.TrimSpace(acq.ProductCommand) == "" || strings.TrimSpace(acq.ReviewsCommand) == "" {
			return errors.New("product and reviews commands are required when acquisition mode is 'process'")
		}
	case ModeRemote:
		if acq.RemoteURL == "" {
			return errors.New("remote URL is required when acquisition mode is 'remote' (set PRICELENS_ACQUISITION_REMOTE_URL)")
		}
	default:
		return errors.Newf("acquisition mode must be 'process' or 'remote', got: %s", acq.Mode)
	}

	if acq.MaxRetries < 0 {
		return errors.Newf("max retries must not be negative, got: %d", acq.MaxRetries)
	}
	if acq.Timeout <= 0 {
		return errors.Newf("acquisition timeout must be positive, got: %s", acq.Timeout)
	}
	if acq.BaseDelay <= 0 {
		return errors.Newf("base delay must be positive, got: %s", acq.BaseDelay)
	}

	switch config.Cache.Type {
	case CacheMemory:
	case CacheSQLite:
		if config.Cache.SQLitePath == "" {
			return errors.New("SQLite path is required when cache type is 'sqlite'")
		}
	default:
		return errors.Newf("cache type must be 'memory' or 'sqlite', got: %s", config.Cache.Type)
	}

	if config.Cache.TTL <= 0 {
		return errors.Newf("cache ttl must be positive, got: %s", config.Cache.TTL)
	}
	if config.Cache.MaxEntries <= 0 {
		return errors.Newf("cache max entries must be positive, got: %d", config.Cache.MaxEntries)
	}

	if len(config.Marketplace.Hosts) == 0 {
		return errors.New("at least one marketplace host is required")
	}

	switch strings.ToLower(config.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return errors.Newf("log level must be one of debug, info, warn, error, got: %s", config.Log.Level)
	}

	return nil
}
