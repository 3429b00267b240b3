package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igavatar/pkg/config"
	"igavatar/pkg/logger"
)

func TestExampleConfigMatchesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "igavatar.yaml")
	require.NoError(t, os.WriteFile(path, []byte(exampleConfig), 0644))

	cfg := config.DefaultConfig()
	cfg.Server.Addr = ""
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, config.DefaultConfig(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestNewApp(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Upstream.RequestsPerMinute = 60
	cfg.Resolver.DedupeInFlight = true

	a, err := newApp(cfg, logger.NewNopLogger())
	require.NoError(t, err)

	assert.NotNil(t, a.metrics)
	assert.NotNil(t, a.client)
	assert.NotNil(t, a.resolver)
	assert.NotNil(t, a.relay)
	assert.Equal(t, cfg.Cache.TTL, a.cache.TTL())
	assert.Equal(t, cfg.Upstream.WebBaseURL, a.client.Endpoints().WebBaseURL)
}

func TestNewAppRejectsUnknownLimiter(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Upstream.RequestsPerMinute = 60
	cfg.Upstream.RateLimitStrategy = "leaky_bucket"

	_, err := newApp(cfg, logger.NewNopLogger())
	assert.Error(t, err)
}
