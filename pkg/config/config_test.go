package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Server.Addr != ":4757" {
		t.Errorf("Expected default address to be :4757, got %s", config.Server.Addr)
	}

	if config.Cache.TTL != 10*time.Minute {
		t.Errorf("Expected default cache TTL to be 10m, got %s", config.Cache.TTL)
	}

	if config.Batch.Concurrency != 2 {
		t.Errorf("Expected default batch concurrency to be 2, got %d", config.Batch.Concurrency)
	}

	if config.Batch.MaxUsernames != 2000 {
		t.Errorf("Expected default max usernames to be 2000, got %d", config.Batch.MaxUsernames)
	}

	if config.Upstream.APITimeout != 10*time.Second {
		t.Errorf("Expected default API timeout to be 10s, got %s", config.Upstream.APITimeout)
	}

	if config.Upstream.HTMLTimeout != 0 {
		t.Errorf("Expected HTML scrape to have no timeout by default, got %s", config.Upstream.HTMLTimeout)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Expected default config to be valid, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("IGAVATAR_ADDR", ":9000")
	t.Setenv("IGAVATAR_REQUESTS_PER_MINUTE", "30")
	t.Setenv("IGAVATAR_CACHE_TTL", "90s")
	t.Setenv("IGAVATAR_BATCH_CONCURRENCY", "4")
	t.Setenv("IGAVATAR_DEDUPE_IN_FLIGHT", "true")
	t.Setenv("IGAVATAR_LOG_LEVEL", "debug")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.Server.Addr != ":9000" {
		t.Errorf("Expected address to be :9000, got %s", config.Server.Addr)
	}

	if config.Upstream.RequestsPerMinute != 30 {
		t.Errorf("Expected requests per minute to be 30, got %d", config.Upstream.RequestsPerMinute)
	}

	if config.Cache.TTL != 90*time.Second {
		t.Errorf("Expected cache TTL to be 90s, got %s", config.Cache.TTL)
	}

	if config.Batch.Concurrency != 4 {
		t.Errorf("Expected batch concurrency to be 4, got %d", config.Batch.Concurrency)
	}

	if !config.Resolver.DedupeInFlight {
		t.Errorf("Expected in-flight dedupe to be enabled")
	}

	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level to be debug, got %s", config.Logging.Level)
	}
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("IGAVATAR_CACHE_TTL", "ten minutes")
	t.Setenv("IGAVATAR_BATCH_CONCURRENCY", "many")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err == nil {
		t.Error("Expected an error for unparsable environment values")
	}
}

func TestLoadFromEnvPortFallback(t *testing.T) {
	t.Setenv("IGAVATAR_ADDR", "")
	t.Setenv("PORT", "8080")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.Server.Addr != ":8080" {
		t.Errorf("Expected address to be :8080, got %s", config.Server.Addr)
	}
}

func TestServerlessForcesRedirect(t *testing.T) {
	tests := []struct {
		name string
		env  string
	}{
		{"netlify", "NETLIFY"},
		{"lambda", "AWS_LAMBDA_FUNCTION_NAME"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, "1")

			config := DefaultConfig()
			if err := config.LoadFromEnv(); err != nil {
				t.Fatalf("Failed to load from environment: %v", err)
			}

			if !config.Image.RedirectOnly {
				t.Errorf("Expected %s to force redirect-only image mode", tt.env)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantError bool
	}{
		{
			name:      "valid config",
			mutate:    func(c *Config) {},
			wantError: false,
		},
		{
			name:      "concurrency too high",
			mutate:    func(c *Config) { c.Batch.Concurrency = 7 },
			wantError: true,
		},
		{
			name:      "concurrency zero",
			mutate:    func(c *Config) { c.Batch.Concurrency = 0 },
			wantError: true,
		},
		{
			name:      "non-positive TTL",
			mutate:    func(c *Config) { c.Cache.TTL = 0 },
			wantError: true,
		},
		{
			name:      "relative proxy URL",
			mutate:    func(c *Config) { c.Upstream.ReadProxyBaseURL = "r.jina.ai" },
			wantError: true,
		},
		{
			name:      "unknown rate limit strategy",
			mutate:    func(c *Config) { c.Upstream.RateLimitStrategy = "leaky" },
			wantError: true,
		},
		{
			name:      "invalid log level",
			mutate:    func(c *Config) { c.Logging.Level = "verbose" },
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	config := DefaultConfig()

	flags := map[string]interface{}{
		"addr":             ":5000",
		"concurrency":      3,
		"cache-ttl":        time.Minute,
		"dedupe-in-flight": true,
		"redirect-only":    true,
		"log-level":        "error",
	}

	config.MergeCommandLineFlags(flags)

	if config.Server.Addr != ":5000" {
		t.Errorf("Expected address to be :5000, got %s", config.Server.Addr)
	}

	if config.Batch.Concurrency != 3 {
		t.Errorf("Expected batch concurrency to be 3, got %d", config.Batch.Concurrency)
	}

	if config.Cache.TTL != time.Minute {
		t.Errorf("Expected cache TTL to be 1m, got %s", config.Cache.TTL)
	}

	if !config.Resolver.DedupeInFlight || !config.Image.RedirectOnly {
		t.Errorf("Expected boolean flags to be applied")
	}

	if config.Logging.Level != "error" {
		t.Errorf("Expected log level to be error, got %s", config.Logging.Level)
	}
}

func TestSaveAndLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "igavatar.yaml")

	config := DefaultConfig()
	config.Server.Addr = ":7000"
	config.Cache.TTL = 5 * time.Minute
	config.Batch.Concurrency = 5

	if err := config.Save(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loadedConfig := DefaultConfig()
	if err := loadedConfig.LoadFromFile(configPath); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loadedConfig.Server.Addr != ":7000" {
		t.Errorf("Expected loaded address to be :7000, got %s", loadedConfig.Server.Addr)
	}

	if loadedConfig.Cache.TTL != 5*time.Minute {
		t.Errorf("Expected loaded cache TTL to be 5m, got %s", loadedConfig.Cache.TTL)
	}

	if loadedConfig.Batch.Concurrency != 5 {
		t.Errorf("Expected loaded batch concurrency to be 5, got %d", loadedConfig.Batch.Concurrency)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	config := DefaultConfig()
	if err := config.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for explicit missing config file")
	}
}

func TestLoadPrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "igavatar.yaml")
	yamlContent := []byte("server:\n  addr: \":6000\"\nbatch:\n  concurrency: 3\ncache:\n  ttl: 2m\n")
	if err := os.WriteFile(configPath, yamlContent, 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Setenv("IGAVATAR_BATCH_CONCURRENCY", "4")

	config, err := Load(configPath, map[string]interface{}{"addr": ":6500"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if config.Server.Addr != ":6500" {
		t.Errorf("Expected flag to win for address, got %s", config.Server.Addr)
	}
	if config.Batch.Concurrency != 4 {
		t.Errorf("Expected env to win over file for concurrency, got %d", config.Batch.Concurrency)
	}
	if config.Cache.TTL != 2*time.Minute {
		t.Errorf("Expected file value for cache TTL, got %s", config.Cache.TTL)
	}
}
