package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"PRICELENS_SERVER_PORT",
	"PRICELENS_SERVER_ENVIRONMENT",
	"PRICELENS_SERVER_ALLOWED_ORIGINS",
	"PRICELENS_ACQUISITION_MODE",
	"PRICELENS_ACQUISITION_PRODUCT_COMMAND",
	"PRICELENS_ACQUISITION_REVIEWS_COMMAND",
	"PRICELENS_ACQUISITION_REMOTE_URL",
	"PRICELENS_ACQUISITION_MAX_RETRIES",
	"PRICELENS_ACQUISITION_BASE_DELAY",
	"PRICELENS_ACQUISITION_TIMEOUT",
	"PRICELENS_ACQUISITION_RATE_LIMIT_PATTERNS",
	"PRICELENS_ACQUISITION_REQUESTS_PER_MINUTE",
	"PRICELENS_CACHE_TYPE",
	"PRICELENS_CACHE_TTL",
	"PRICELENS_CACHE_MAX_ENTRIES",
	"PRICELENS_CACHE_SQLITE_PATH",
	"PRICELENS_MARKETPLACE_HOSTS",
	"PRICELENS_MARKETPLACE_REVIEW_LIMIT",
	"PRICELENS_RATELIMIT_PER_IP",
	"PRICELENS_LOG_JSON",
	"PRICELENS_LOG_LEVEL",
}

func TestLoad(t *testing.T) {
	// Clean up environment before tests
	cleanupEnv := func() {
		for _, key := range envKeys {
			os.Unsetenv(key)
		}
	}

	t.Run("loads with defaults when no env vars set", func(t *testing.T) {
		cleanupEnv()
		defer cleanupEnv()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		// Check defaults
		if cfg.Server.Port != "8080" {
			t.Errorf("Server.Port = %s, want 8080", cfg.Server.Port)
		}
		if cfg.Server.Environment != "development" {
			t.Errorf("Server.Environment = %s, want development", cfg.Server.Environment)
		}
		if cfg.Acquisition.Mode != ModeProcess {
			t.Errorf("Acquisition.Mode = %s, want process", cfg.Acquisition.Mode)
		}
		if cfg.Acquisition.MaxRetries != 3 {
			t.Errorf("Acquisition.MaxRetries = %d, want 3", cfg.Acquisition.MaxRetries)
		}
		if cfg.Acquisition.BaseDelay != 2*time.Second {
			t.Errorf("Acquisition.BaseDelay = %v, want 2s", cfg.Acquisition.BaseDelay)
		}
		if cfg.Acquisition.Timeout != 60*time.Second {
			t.Errorf("Acquisition.Timeout = %v, want 60s", cfg.Acquisition.Timeout)
		}
		if len(cfg.Acquisition.RateLimitPatterns) != 3 {
			t.Errorf("Acquisition.RateLimitPatterns = %v, want 3 patterns", cfg.Acquisition.RateLimitPatterns)
		}
		if cfg.Cache.Type != CacheMemory {
			t.Errorf("Cache.Type = %s, want memory", cfg.Cache.Type)
		}
		if cfg.Cache.TTL != 5*time.Minute {
			t.Errorf("Cache.TTL = %v, want 5m", cfg.Cache.TTL)
		}
		if cfg.Cache.MaxEntries != 50 {
			t.Errorf("Cache.MaxEntries = %d, want 50", cfg.Cache.MaxEntries)
		}
		if cfg.Marketplace.ReviewLimit != 25 {
			t.Errorf("Marketplace.ReviewLimit = %d, want 25", cfg.Marketplace.ReviewLimit)
		}
		if strings.Join(cfg.Marketplace.Hosts, ",") != "amazon,amzn" {
			t.Errorf("Marketplace.Hosts = %v, want [amazon amzn]", cfg.Marketplace.Hosts)
		}
		if cfg.RateLimit.PerIP != 100 {
			t.Errorf("RateLimit.PerIP = %d, want 100", cfg.RateLimit.PerIP)
		}
		if cfg.Log.Level != "info" || cfg.Log.JSON {
			t.Errorf("Log = %+v, want info console", cfg.Log)
		}
	})

	t.Run("loads custom values from environment variables", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("PRICELENS_SERVER_PORT", "9090")
		os.Setenv("PRICELENS_SERVER_ENVIRONMENT", "production")
		os.Setenv("PRICELENS_ACQUISITION_MODE", "remote")
		os.Setenv("PRICELENS_ACQUISITION_REMOTE_URL", "http://scraper:9000")
		os.Setenv("PRICELENS_ACQUISITION_MAX_RETRIES", "5")
		os.Setenv("PRICELENS_ACQUISITION_TIMEOUT", "30s")
		os.Setenv("PRICELENS_ACQUISITION_RATE_LIMIT_PATTERNS", "429,captcha")
		os.Setenv("PRICELENS_CACHE_TYPE", "sqlite")
		os.Setenv("PRICELENS_CACHE_SQLITE_PATH", "/tmp/cache.db")
		os.Setenv("PRICELENS_CACHE_TTL", "10m")
		os.Setenv("PRICELENS_CACHE_MAX_ENTRIES", "200")
		os.Setenv("PRICELENS_RATELIMIT_PER_IP", "200")
		os.Setenv("PRICELENS_LOG_JSON", "true")
		defer cleanupEnv()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "9090" {
			t.Errorf("Server.Port = %s, want 9090", cfg.Server.Port)
		}
		if cfg.Server.Environment != "production" {
			t.Errorf("Server.Environment = %s, want production", cfg.Server.Environment)
		}
		if cfg.Acquisition.Mode != ModeRemote {
			t.Errorf("Acquisition.Mode = %s, want remote", cfg.Acquisition.Mode)
		}
		if cfg.Acquisition.RemoteURL != "http://scraper:9000" {
			t.Errorf("Acquisition.RemoteURL = %s, want http://scraper:9000", cfg.Acquisition.RemoteURL)
		}
		if cfg.Acquisition.MaxRetries != 5 {
			t.Errorf("Acquisition.MaxRetries = %d, want 5", cfg.Acquisition.MaxRetries)
		}
		if cfg.Acquisition.Timeout != 30*time.Second {
			t.Errorf("Acquisition.Timeout = %v, want 30s", cfg.Acquisition.Timeout)
		}
		if strings.Join(cfg.Acquisition.RateLimitPatterns, ",") != "429,captcha" {
			t.Errorf("Acquisition.RateLimitPatterns = %v, want [429 captcha]", cfg.Acquisition.RateLimitPatterns)
		}
		if cfg.Cache.Type != CacheSQLite {
			t.Errorf("Cache.Type = %s, want sqlite", cfg.Cache.Type)
		}
		if cfg.Cache.SQLitePath != "/tmp/cache.db" {
			t.Errorf("Cache.SQLitePath = %s, want /tmp/cache.db", cfg.Cache.SQLitePath)
		}
		if cfg.Cache.TTL != 10*time.Minute {
			t.Errorf("Cache.TTL = %v, want 10m", cfg.Cache.TTL)
		}
		if cfg.Cache.MaxEntries != 200 {
			t.Errorf("Cache.MaxEntries = %d, want 200", cfg.Cache.MaxEntries)
		}
		if cfg.RateLimit.PerIP != 200 {
			t.Errorf("RateLimit.PerIP = %d, want 200", cfg.RateLimit.PerIP)
		}
		if !cfg.Log.JSON {
			t.Error("Log.JSON = false, want true")
		}
	})

	t.Run("fails validation when remote URL is missing", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("PRICELENS_ACQUISITION_MODE", "remote")
		defer cleanupEnv()

		_, err := Load()
		if err == nil {
			t.Fatal("Load() error = nil, want error for missing remote URL")
		}
		want := "invalid configuration: remote URL is required when acquisition mode is 'remote' (set PRICELENS_ACQUISITION_REMOTE_URL)"
		if err.Error() != want {
			t.Errorf("Load() error = %v, want %q", err, want)
		}
	})

	t.Run("fails validation for invalid cache type", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("PRICELENS_CACHE_TYPE", "redis")
		defer cleanupEnv()

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for invalid cache type")
		}
	})

	t.Run("fails validation for unknown acquisition mode", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("PRICELENS_ACQUISITION_MODE", "browser")
		defer cleanupEnv()

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for unknown mode")
		}
	})
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("returns nil when .env file doesn't exist", func(t *testing.T) {
		// Save current directory
		originalDir, _ := os.Getwd()
		defer os.Chdir(originalDir)

		os.Chdir(t.TempDir())

		err := loadEnvFile()
		if err != nil {
			t.Errorf("loadEnvFile() error = %v, want nil when file doesn't exist", err)
		}
	})

	t.Run("loads variables from .env file", func(t *testing.T) {
		originalDir, _ := os.Getwd()
		defer os.Chdir(originalDir)

		os.Chdir(t.TempDir())

		envContent := `
# Comment line
TEST_VAR_1=value1
TEST_VAR_2=value2

# Another comment
TEST_VAR_3=value3
# TEST_COMMENTED=should_not_load
`
		if err := os.WriteFile(".env", []byte(envContent), 0644); err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		for _, key := range []string{"TEST_VAR_1", "TEST_VAR_2", "TEST_VAR_3", "TEST_COMMENTED"} {
			os.Unsetenv(key)
			defer os.Unsetenv(key)
		}

		if err := loadEnvFile(); err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		if os.Getenv("TEST_VAR_1") != "value1" {
			t.Errorf("TEST_VAR_1 = %s, want value1", os.Getenv("TEST_VAR_1"))
		}
		if os.Getenv("TEST_VAR_2") != "value2" {
			t.Errorf("TEST_VAR_2 = %s, want value2", os.Getenv("TEST_VAR_2"))
		}
		if os.Getenv("TEST_VAR_3") != "value3" {
			t.Errorf("TEST_VAR_3 = %s, want value3", os.Getenv("TEST_VAR_3"))
		}
		if os.Getenv("TEST_COMMENTED") != "" {
			t.Errorf("TEST_COMMENTED should not be loaded from comment")
		}
	})

	t.Run("doesn't override existing environment variables", func(t *testing.T) {
		originalDir, _ := os.Getwd()
		defer os.Chdir(originalDir)

		os.Chdir(t.TempDir())

		os.Setenv("TEST_OVERRIDE", "existing-value")
		defer os.Unsetenv("TEST_OVERRIDE")

		if err := os.WriteFile(".env", []byte("TEST_OVERRIDE=new-value"), 0644); err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		if err := loadEnvFile(); err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		if os.Getenv("TEST_OVERRIDE") != "existing-value" {
			t.Errorf("TEST_OVERRIDE = %s, want existing-value (should not override)", os.Getenv("TEST_OVERRIDE"))
		}
	})

	t.Run("feeds Load", func(t *testing.T) {
		originalDir, _ := os.Getwd()
		defer os.Chdir(originalDir)

		os.Chdir(t.TempDir())
		os.Unsetenv("PRICELENS_SERVER_PORT")
		defer os.Unsetenv("PRICELENS_SERVER_PORT")

		if err := os.WriteFile(".env", []byte("PRICELENS_SERVER_PORT=7070\n"), 0644); err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Server.Port != "7070" {
			t.Errorf("Server.Port = %s, want 7070", cfg.Server.Port)
		}
	})
}

func validConfig() *Config {
	return &Config{
		Acquisition: AcquisitionConfig{
			Mode:           ModeProcess,
			ProductCommand: "python product.py",
			ReviewsCommand: "python reviews.py",
			MaxRetries:     3,
			BaseDelay:      2 * time.Second,
			Timeout:        time.Minute,
		},
		Cache:       CacheConfig{Type: CacheMemory, TTL: 5 * time.Minute, MaxEntries: 50},
		Marketplace: MarketplaceConfig{Hosts: []string{"amazon"}},
		Log:         LogConfig{Level: "info"},
	}
}

func TestValidate(t *testing.T) {
	t.Run("validates successfully with all required fields", func(t *testing.T) {
		if err := validate(validConfig()); err != nil {
			t.Errorf("validate() error = %v, want nil", err)
		}
	})

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty product command", func(c *Config) { c.Acquisition.ProductCommand = " " }},
		{"remote without url", func(c *Config) { c.Acquisition.Mode = ModeRemote }},
		{"unknown mode", func(c *Config) { c.Acquisition.Mode = "lambda" }},
		{"negative retries", func(c *Config) { c.Acquisition.MaxRetries = -1 }},
		{"zero timeout", func(c *Config) { c.Acquisition.Timeout = 0 }},
		{"negative base delay", func(c *Config) { c.Acquisition.BaseDelay = -time.Second }},
		{"zero base delay", func(c *Config) { c.Acquisition.BaseDelay = 0 }},
		{"invalid cache type", func(c *Config) { c.Cache.Type = "invalid-type" }},
		{"sqlite without path", func(c *Config) { c.Cache.Type = CacheSQLite }},
		{"zero ttl", func(c *Config) { c.Cache.TTL = 0 }},
		{"zero max entries", func(c *Config) { c.Cache.MaxEntries = 0 }},
		{"no hosts", func(c *Config) { c.Marketplace.Hosts = nil }},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }},
	}

	for _, tt := range tests {
		t.Run("fails for "+tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := validate(cfg); err == nil {
				t.Errorf("validate() error = nil, want error")
			}
		})
	}

	t.Run("validates remote mode with URL", func(t *testing.T) {
		cfg := validConfig()
		cfg.Acquisition.Mode = ModeRemote
		cfg.Acquisition.RemoteURL = "http://scraper:9000"
		if err := validate(cfg); err != nil {
			t.Errorf("validate() error = %v, want nil", err)
		}
	})
}
