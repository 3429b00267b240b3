package main

import (
	"fmt"

	"igavatar/pkg/cache"
	"igavatar/pkg/config"
	"igavatar/pkg/instagram"
	"igavatar/pkg/logger"
	"igavatar/pkg/metrics"
	"igavatar/pkg/ratelimit"
	"igavatar/pkg/relay"
	"igavatar/pkg/resolver"
)

// app holds the components shared by serve and resolve
type app struct {
	cfg      *config.Config
	logger   logger.Logger
	metrics  *metrics.Metrics
	client   *instagram.Client
	cache    *cache.Cache
	resolver *resolver.Resolver
	relay    *relay.Relay
}

func newApp(cfg *config.Config, log logger.Logger) (*app, error) {
	m, err := metrics.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	limiter, err := ratelimit.New(cfg.Upstream.RateLimitStrategy, cfg.Upstream.RequestsPerMinute)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}

	client := instagram.NewClient(&cfg.Upstream, log)
	client.SetMetrics(m)
	if limiter != nil {
		client.SetLimiter(limiter)
	}

	c := cache.New(cfg.Cache.TTL, cache.WithMetrics(m))

	res := resolver.New(client, c, log,
		resolver.WithDedupeInFlight(cfg.Resolver.DedupeInFlight),
		resolver.WithMaxBatchSize(cfg.Batch.MaxUsernames),
		resolver.WithMetrics(m),
	)

	rel := relay.New(&cfg.Image, cfg.Upstream.BrowserUserAgent, log)
	rel.SetMetrics(m)

	return &app{
		cfg:      cfg,
		logger:   log,
		metrics:  m,
		client:   client,
		cache:    c,
		resolver: res,
		relay:    rel,
	}, nil
}
