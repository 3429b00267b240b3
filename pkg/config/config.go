package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the profile picture service
type Config struct {
	// HTTP listener settings
	Server ServerConfig `yaml:"server" json:"server"`

	// Upstream Instagram and relay endpoints
	Upstream UpstreamConfig `yaml:"upstream" json:"upstream"`

	// Resolution cache
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// Resolver behaviour
	Resolver ResolverConfig `yaml:"resolver" json:"resolver"`

	// Batch endpoint settings
	Batch BatchConfig `yaml:"batch" json:"batch"`

	// Image relay settings
	Image ImageConfig `yaml:"image" json:"image"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string        `yaml:"addr" json:"addr"`
	StaticDir       string        `yaml:"static_dir" json:"static_dir"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" json:"max_body_bytes"`
}

// UpstreamConfig holds settings for the requests made to Instagram and the read-proxy
type UpstreamConfig struct {
	BrowserUserAgent  string        `yaml:"browser_user_agent" json:"browser_user_agent"`
	CrawlerUserAgent  string        `yaml:"crawler_user_agent" json:"crawler_user_agent"`
	AppID             string        `yaml:"app_id" json:"app_id"`
	APIBaseURL        string        `yaml:"api_base_url" json:"api_base_url"`
	WebBaseURL        string        `yaml:"web_base_url" json:"web_base_url"`
	ReadProxyBaseURL  string        `yaml:"read_proxy_base_url" json:"read_proxy_base_url"`
	APITimeout        time.Duration `yaml:"api_timeout" json:"api_timeout"`
	HTMLTimeout       time.Duration `yaml:"html_timeout" json:"html_timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	RateLimitStrategy string        `yaml:"rate_limit_strategy" json:"rate_limit_strategy"`
}

// CacheConfig holds resolution cache configuration
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl" json:"ttl"`
}

// ResolverConfig holds resolver configuration
type ResolverConfig struct {
	DedupeInFlight bool `yaml:"dedupe_in_flight" json:"dedupe_in_flight"`
}

// BatchConfig holds batch endpoint configuration
type BatchConfig struct {
	Concurrency  int `yaml:"concurrency" json:"concurrency"`
	MaxUsernames int `yaml:"max_usernames" json:"max_usernames"`
}

// ImageConfig holds image relay configuration
type ImageConfig struct {
	RedirectOnly     bool          `yaml:"redirect_only" json:"redirect_only"`
	ImageProxyURL    string        `yaml:"image_proxy_url" json:"image_proxy_url"`
	Timeout          time.Duration `yaml:"timeout" json:"timeout"`
	CacheControl     string        `yaml:"cache_control" json:"cache_control"`
	FallbackMimeType string        `yaml:"fallback_mime_type" json:"fallback_mime_type"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":4757",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    0, // batch requests can legitimately run for minutes
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Upstream: UpstreamConfig{
			BrowserUserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			CrawlerUserAgent:  "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
			AppID:             "936619743392459",
			APIBaseURL:        "https://i.instagram.com",
			WebBaseURL:        "https://www.instagram.com",
			ReadProxyBaseURL:  "https://r.jina.ai",
			APITimeout:        10 * time.Second,
			HTMLTimeout:       0,
			RequestsPerMinute: 0,
			RateLimitStrategy: "sliding_window",
		},
		Cache: CacheConfig{
			TTL: 10 * time.Minute,
		},
		Resolver: ResolverConfig{
			DedupeInFlight: false,
		},
		Batch: BatchConfig{
			Concurrency:  2,
			MaxUsernames: 2000,
		},
		Image: ImageConfig{
			ImageProxyURL:    "https://images.weserv.nl/",
			CacheControl:     "public, max-age=600",
			FallbackMimeType: "image/jpeg",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if addr := os.Getenv("IGAVATAR_ADDR"); addr != "" {
		c.Server.Addr = addr
	} else if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
	if dir := os.Getenv("IGAVATAR_STATIC_DIR"); dir != "" {
		c.Server.StaticDir = dir
	}

	if ua := os.Getenv("IGAVATAR_USER_AGENT"); ua != "" {
		c.Upstream.BrowserUserAgent = ua
	}
	if base := os.Getenv("IGAVATAR_READ_PROXY_URL"); base != "" {
		c.Upstream.ReadProxyBaseURL = base
	}
	if rpm := os.Getenv("IGAVATAR_REQUESTS_PER_MINUTE"); rpm != "" {
		val, err := strconv.Atoi(rpm)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGAVATAR_REQUESTS_PER_MINUTE: %w", err))
		} else {
			c.Upstream.RequestsPerMinute = val
		}
	}

	if ttl := os.Getenv("IGAVATAR_CACHE_TTL"); ttl != "" {
		val, err := time.ParseDuration(ttl)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGAVATAR_CACHE_TTL: %w", err))
		} else {
			c.Cache.TTL = val
		}
	}

	if dedupe := os.Getenv("IGAVATAR_DEDUPE_IN_FLIGHT"); dedupe != "" {
		c.Resolver.DedupeInFlight = strings.ToLower(dedupe) == "true"
	}

	if concurrency := os.Getenv("IGAVATAR_BATCH_CONCURRENCY"); concurrency != "" {
		val, err := strconv.Atoi(concurrency)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGAVATAR_BATCH_CONCURRENCY: %w", err))
		} else {
			c.Batch.Concurrency = val
		}
	}

	// Serverless hosts cannot stream responses reliably
	if os.Getenv("NETLIFY") != "" || os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		c.Image.RedirectOnly = true
	}
	if redirect := os.Getenv("IGAVATAR_IMAGE_REDIRECT_ONLY"); redirect != "" {
		c.Image.RedirectOnly = strings.ToLower(redirect) == "true"
	}

	if logLevel := os.Getenv("IGAVATAR_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("IGAVATAR_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		"igavatar.yaml",
		"igavatar.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "igavatar", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "igavatar", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server address is required"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("max body bytes must be positive"))
	}

	for name, base := range map[string]string{
		"api base URL":        c.Upstream.APIBaseURL,
		"web base URL":        c.Upstream.WebBaseURL,
		"read proxy base URL": c.Upstream.ReadProxyBaseURL,
		"image proxy URL":     c.Image.ImageProxyURL,
	} {
		if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
			errs = append(errs, fmt.Errorf("%s must be an http(s) URL", name))
		}
	}
	if c.Upstream.APITimeout < 0 || c.Upstream.HTMLTimeout < 0 || c.Image.Timeout < 0 {
		errs = append(errs, errors.New("timeouts cannot be negative"))
	}
	if c.Upstream.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}
	validStrategies := map[string]bool{
		"token_bucket": true, "sliding_window": true,
	}
	if !validStrategies[strings.ToLower(c.Upstream.RateLimitStrategy)] {
		errs = append(errs, errors.New("invalid rate limit strategy"))
	}

	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache TTL must be positive"))
	}

	// Higher values trip Instagram's automation detection
	if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 6 {
		errs = append(errs, errors.New("batch concurrency must be between 1 and 6"))
	}
	if c.Batch.MaxUsernames <= 0 {
		errs = append(errs, errors.New("max usernames must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if addr, ok := flags["addr"].(string); ok && addr != "" {
		c.Server.Addr = addr
	}
	if dir, ok := flags["static-dir"].(string); ok && dir != "" {
		c.Server.StaticDir = dir
	}
	if concurrency, ok := flags["concurrency"].(int); ok && concurrency > 0 {
		c.Batch.Concurrency = concurrency
	}
	if rpm, ok := flags["requests-per-minute"].(int); ok && rpm >= 0 {
		c.Upstream.RequestsPerMinute = rpm
	}
	if ttl, ok := flags["cache-ttl"].(time.Duration); ok && ttl > 0 {
		c.Cache.TTL = ttl
	}
	if dedupe, ok := flags["dedupe-in-flight"].(bool); ok {
		c.Resolver.DedupeInFlight = dedupe
	}
	if redirect, ok := flags["redirect-only"].(bool); ok {
		c.Image.RedirectOnly = redirect
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".igavatar.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
