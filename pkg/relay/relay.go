// Package relay serves a resolved profile picture to HTTP clients.
//
// Three tiers are tried in order: stream the image straight from Instagram's
// CDN, stream it through a public image proxy, and finally redirect the
// client to the source URL. Redirect-only mode skips straight to the last tier
// for hosts where streamed responses are unreliable.
package relay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"igavatar/pkg/config"
	"igavatar/pkg/logger"
	"igavatar/pkg/metrics"
)

// Tier identifies which fallback served an image
type Tier string

const (
	TierDirect   Tier = "direct"
	TierProxy    Tier = "proxy"
	TierRedirect Tier = "redirect"
)

const (
	imageAccept   = "image/avif,image/webp,image/apng,image/*,*/*;q=0.8"
	sourceReferer = "https://www.instagram.com/"
)

// Relay streams or redirects profile pictures
type Relay struct {
	client           *http.Client
	proxyBaseURL     string
	redirectOnly     bool
	userAgent        string
	cacheControl     string
	fallbackMimeType string

	logger  logger.Logger
	metrics *metrics.Metrics
}

// New creates a relay from image configuration. userAgent is sent on direct fetches.
func New(cfg *config.ImageConfig, userAgent string, log logger.Logger) *Relay {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Relay{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		proxyBaseURL:     cfg.ImageProxyURL,
		redirectOnly:     cfg.RedirectOnly,
		userAgent:        userAgent,
		cacheControl:     cfg.CacheControl,
		fallbackMimeType: cfg.FallbackMimeType,
		logger:           log.WithField("component", "relay"),
	}
}

// SetMetrics installs the metrics recorder for served tiers
func (r *Relay) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// RedirectOnly reports whether the relay always redirects
func (r *Relay) RedirectOnly() bool {
	return r.redirectOnly
}

// Serve writes imageURL to w using the first tier that works and reports which one did
func (r *Relay) Serve(w http.ResponseWriter, req *http.Request, imageURL string) Tier {
	tier := r.serve(w, req, imageURL)
	r.metrics.RecordImageRelay(string(tier))
	return tier
}

func (r *Relay) serve(w http.ResponseWriter, req *http.Request, imageURL string) Tier {
	if r.redirectOnly {
		http.Redirect(w, req, imageURL, http.StatusFound)
		return TierRedirect
	}

	ctx := req.Context()

	resp, err := r.fetch(ctx, imageURL, map[string]string{
		"User-Agent": r.userAgent,
		"Accept":     imageAccept,
		"Referer":    sourceReferer,
	})
	if err == nil {
		r.stream(w, resp, headerOr(resp.Header, "Cache-Control", r.cacheControl))
		return TierDirect
	}
	r.logger.DebugWithFields("direct image fetch failed", map[string]interface{}{
		"url":   imageURL,
		"error": err.Error(),
	})

	proxied := ProxyURL(r.proxyBaseURL, imageURL)
	resp, err = r.fetch(ctx, proxied, nil)
	if err == nil {
		r.stream(w, resp, r.cacheControl)
		return TierProxy
	}
	r.logger.DebugWithFields("proxied image fetch failed", map[string]interface{}{
		"url":   proxied,
		"error": err.Error(),
	})

	http.Redirect(w, req, imageURL, http.StatusFound)
	return TierRedirect
}

// fetch issues a GET and returns the response only when it is 2xx
func (r *Relay) fetch(ctx context.Context, rawURL string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("upstream image status %d", resp.StatusCode)
	}
	return resp, nil
}

// stream copies a successful upstream response to w
func (r *Relay) stream(w http.ResponseWriter, resp *http.Response, cacheControl string) {
	defer resp.Body.Close()

	w.Header().Set("Content-Type", headerOr(resp.Header, "Content-Type", r.fallbackMimeType))
	w.Header().Set("Cache-Control", cacheControl)
	if resp.ContentLength > 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", resp.ContentLength))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, resp.Body); err != nil {
		// headers are already sent, nothing left to fall back to
		r.logger.WarnWithFields("image stream interrupted", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// ProxyURL builds the image proxy URL for imageURL. The proxy takes the
// source without its scheme as a query-escaped url parameter.
func ProxyURL(proxyBaseURL, imageURL string) string {
	base := proxyBaseURL
	if !strings.Contains(base, "?") {
		base = strings.TrimRight(base, "/") + "/?"
	} else if !strings.HasSuffix(base, "?") && !strings.HasSuffix(base, "&") {
		base += "&"
	}
	return base + "url=" + url.QueryEscape(stripScheme(imageURL))
}

func stripScheme(rawURL string) string {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.HasPrefix(lower, "https://"):
		return rawURL[len("https://"):]
	case strings.HasPrefix(lower, "http://"):
		return rawURL[len("http://"):]
	default:
		return rawURL
	}
}

func headerOr(h http.Header, key, fallback string) string {
	if v := h.Get(key); v != "" {
		return v
	}
	return fallback
}
