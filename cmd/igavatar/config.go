package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"igavatar/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage igavatar configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (IGAVATAR_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as 'igavatar.yaml'
unless a different path is specified with the --config flag.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging flags, environment
variables, the configuration file and defaults.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - URL and timeout settings
  - Value ranges
  - Log file path accessibility`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# igavatar configuration file
#
# Every option can also be set with an environment variable prefixed with
# IGAVATAR_, for example IGAVATAR_ADDR or IGAVATAR_CACHE_TTL.

# HTTP server
server:
  # Listen address. $PORT is honoured when this and IGAVATAR_ADDR are unset
  addr: ":4757"

  # Directory served at / (optional)
  static_dir: ""

  read_timeout: 15s

  # 0 disables the write timeout; batch requests can run for minutes
  write_timeout: 0s

  shutdown_timeout: 10s

  # Maximum POST body size in bytes
  max_body_bytes: 1048576

# Requests made to Instagram and the read-proxy
upstream:
  browser_user_agent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
  crawler_user_agent: "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
  app_id: "936619743392459"
  api_base_url: "https://i.instagram.com"
  web_base_url: "https://www.instagram.com"
  read_proxy_base_url: "https://r.jina.ai"

  # Timeout for API and read-proxy requests
  api_timeout: 10s

  # Timeout for the profile page scrape, 0 means none
  html_timeout: 0s

  # Outbound request budget, 0 disables throttling
  requests_per_minute: 0

  # token_bucket or sliding_window
  rate_limit_strategy: "sliding_window"

# Resolution cache
cache:
  ttl: 10m

# Resolver
resolver:
  # Share one upstream lookup between concurrent requests for the same username
  dedupe_in_flight: false

# Batch endpoints
batch:
  # Lookups in flight per batch request
  # Range: 1-6
  concurrency: 2

  # Distinct usernames resolved per request
  max_usernames: 2000

# Image relay
image:
  # Always redirect instead of streaming. Forced on under Netlify and AWS Lambda
  redirect_only: false

  image_proxy_url: "https://images.weserv.nl/"

  # 0 means no timeout
  timeout: 0s

  cache_control: "public, max-age=600"
  fallback_mime_type: "image/jpeg"

# Logging
logging:
  # Log level: debug, info, warn, error
  level: "info"

  # Log file path (optional), written as JSON lines
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = "igavatar.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		ui.Println("\nTo overwrite, first remove the existing file:")
		ui.Println("  rm " + configPath)
		return fmt.Errorf("%s already exists", configPath)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		return err
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	ui.Println("\nNext steps:")
	ui.Println("1. Edit the configuration file")
	ui.Println("2. Run 'igavatar config validate' to check the configuration")
	ui.Println("3. Start the API with 'igavatar serve'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		return err
	}

	ui.PrintHighlight("Current Configuration")
	ui.Println()
	fmt.Fprint(cmd.OutOrStdout(), string(data))

	ui.Println("\nConfiguration sources (in order of priority):")
	ui.Println("1. Command line flags")
	ui.Println("2. Environment variables (IGAVATAR_*)")
	ui.Println("3. .env files")
	if configFile != "" {
		ui.Println("4. Configuration file: " + configFile)
	} else {
		ui.Println("4. Configuration file: (searched in default locations)")
	}
	ui.Println("5. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if configFile == "" {
		possiblePaths := []string{
			"igavatar.yaml",
			"igavatar.yml",
			filepath.Join(os.Getenv("HOME"), ".config", "igavatar", "config.yaml"),
			filepath.Join(os.Getenv("HOME"), ".config", "igavatar", "config.yml"),
		}

		for _, path := range possiblePaths {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}

		if configFile == "" {
			ui.PrintError("No configuration file found", "Specify a file with --config flag")
			return errors.New("no configuration file found")
		}
	}

	ui.PrintInfo("Validating configuration", configFile)

	cfg, err := loadConfig(nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		return err
	}

	var warnings []string
	if cfg.Logging.File != "" {
		dir := filepath.Dir(cfg.Logging.File)
		if err := os.MkdirAll(dir, 0755); err != nil {
			ui.PrintError("Cannot create log directory", err.Error())
			return err
		}
	}
	if cfg.Server.StaticDir != "" {
		if info, err := os.Stat(cfg.Server.StaticDir); err != nil || !info.IsDir() {
			warnings = append(warnings, "static_dir does not exist: "+cfg.Server.StaticDir)
		}
	}
	if cfg.Upstream.HTMLTimeout == 0 {
		warnings = append(warnings, "upstream.html_timeout is 0; a stalled profile page scrape blocks its lookup")
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, warn := range warnings {
			ui.Println("  - " + warn)
		}
		ui.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	ui.Println("\nConfiguration summary:")
	ui.Println(fmt.Sprintf("  Listen address: %s", cfg.Server.Addr))
	ui.Println(fmt.Sprintf("  Cache TTL: %s", cfg.Cache.TTL))
	ui.Println(fmt.Sprintf("  Batch concurrency: %d", cfg.Batch.Concurrency))
	ui.Println(fmt.Sprintf("  Rate limit: %d requests/minute", cfg.Upstream.RequestsPerMinute))
	ui.Println(fmt.Sprintf("  Image relay: redirect only = %t", cfg.Image.RedirectOnly))
	ui.Println(fmt.Sprintf("  Log level: %s", cfg.Logging.Level))
	return nil
}
