package instagram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"igavatar/pkg/config"
	"igavatar/pkg/logger"
	"igavatar/pkg/metrics"
	"igavatar/pkg/ratelimit"
)

// maxBodyBytes caps how much of an upstream response is read
const maxBodyBytes = 8 << 20

// Client resolves profile pictures through the fixed strategy chain
type Client struct {
	apiClient  *http.Client
	htmlClient *http.Client
	endpoints  Endpoints

	browserUserAgent string
	crawlerUserAgent string
	appID            string

	limiter ratelimit.Limiter
	metrics *metrics.Metrics
	logger  logger.Logger

	strategies []strategy
}

// NewClient creates a new Instagram client from upstream configuration
func NewClient(cfg *config.UpstreamConfig, log logger.Logger) *Client {
	// Use default logger if none provided
	if log == nil {
		log = logger.GetLogger()
	}

	c := &Client{
		apiClient: &http.Client{
			Timeout: cfg.APITimeout,
		},
		htmlClient: &http.Client{
			Timeout: cfg.HTMLTimeout,
		},
		endpoints: Endpoints{
			APIBaseURL:       cfg.APIBaseURL,
			WebBaseURL:       cfg.WebBaseURL,
			ReadProxyBaseURL: cfg.ReadProxyBaseURL,
		},
		browserUserAgent: cfg.BrowserUserAgent,
		crawlerUserAgent: cfg.CrawlerUserAgent,
		appID:            cfg.AppID,
		logger:           log.WithField("component", "instagram"),
	}

	c.strategies = []strategy{
		{name: StrategyProfileInfo, run: c.fetchProfileInfo},
		{name: StrategyHTMLScrape, run: c.scrapeProfilePage},
		{name: StrategyReadProxyAPI, run: c.fetchProfileInfoViaProxy},
		{name: StrategyReadProxyHTML, run: c.scanProfilePageViaProxy},
	}

	return c
}

// SetLimiter installs an outbound throttle shared by every upstream request
func (c *Client) SetLimiter(l ratelimit.Limiter) {
	c.limiter = l
}

// SetMetrics installs the metrics recorder for strategy attempts
func (c *Client) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// Endpoints returns the base URLs the client talks to
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// doRequest performs a GET request with the given headers
func (c *Client) doRequest(ctx context.Context, httpClient *http.Client, rawURL string, headers map[string]string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.DebugWithFields("HTTP request failed", map[string]interface{}{
			"url":      rawURL,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, fmt.Errorf("network error: %w", err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      rawURL,
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// readBody reads at most maxBodyBytes of the response body
func readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

func (c *Client) apiHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      c.browserUserAgent,
		"x-ig-app-id":     c.appID,
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "en-US,en;q=0.9",
	}
}

func (c *Client) pageHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      c.crawlerUserAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.7",
		"Referer":         "https://www.google.com/",
	}
}

func (c *Client) proxyHeaders() map[string]string {
	return map[string]string{
		"User-Agent": c.browserUserAgent,
	}
}
