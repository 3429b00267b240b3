// Package resolver ties the resolution cache to the Instagram strategy chain
// and fans batch lookups out over the batch runner.
package resolver

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"igavatar/internal/batch"
	"igavatar/pkg/cache"
	apperrors "igavatar/pkg/errors"
	"igavatar/pkg/logger"
	"igavatar/pkg/metrics"
)

const (
	// MaxBatchSize caps how many distinct usernames one batch resolves
	MaxBatchSize = 2000

	// DefaultConcurrency keeps batch lookups under upstream anti-automation thresholds
	DefaultConcurrency = 2

	// MsgUsernameRequired is the validation message for an empty username
	MsgUsernameRequired = "username parameter is required"
)

// PictureFetcher resolves a normalized username against upstream
type PictureFetcher interface {
	FetchProfilePicture(ctx context.Context, username string) (string, error)
}

// BatchItem is the per-username outcome of a batch lookup
type BatchItem struct {
	Username string `json:"username"`
	URL      string `json:"url,omitempty"`
	Error    string `json:"error,omitempty"`
	Status   int    `json:"status,omitempty"`
}

// OK reports whether the item resolved to a URL
func (b BatchItem) OK() bool {
	return b.URL != ""
}

// BatchMeta summarizes a batch lookup
type BatchMeta struct {
	Total      int   `json:"total"`
	Success    int   `json:"success"`
	Failed     int   `json:"failed"`
	DurationMs int64 `json:"durationMs"`
}

// Resolver answers username lookups from the cache or the strategy chain
type Resolver struct {
	fetcher PictureFetcher
	cache   *cache.Cache
	logger  logger.Logger
	metrics *metrics.Metrics

	// group is nil unless in-flight dedupe is enabled
	group        *singleflight.Group
	maxBatchSize int
}

// Option configures a Resolver
type Option func(*Resolver)

// WithDedupeInFlight collapses concurrent misses for the same username into one chain run
func WithDedupeInFlight(enabled bool) Option {
	return func(r *Resolver) {
		if enabled {
			r.group = &singleflight.Group{}
		} else {
			r.group = nil
		}
	}
}

// WithMaxBatchSize overrides MaxBatchSize
func WithMaxBatchSize(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxBatchSize = n
		}
	}
}

// WithMetrics records resolution outcomes on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// New creates a resolver backed by fetcher and c
func New(fetcher PictureFetcher, c *cache.Cache, log logger.Logger, opts ...Option) *Resolver {
	if log == nil {
		log = logger.GetLogger()
	}

	r := &Resolver{
		fetcher:      fetcher,
		cache:        c,
		logger:       log.WithField("component", "resolver"),
		maxBatchSize: MaxBatchSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the profile picture URL for a normalized username.
// Successful lookups are cached, stamped with the time the lookup started;
// failures are returned as-is and never cached.
func (r *Resolver) Resolve(ctx context.Context, username string) (string, error) {
	if username == "" {
		r.metrics.RecordResolution(string(apperrors.KindValidation))
		return "", apperrors.Validation(MsgUsernameRequired)
	}

	now := r.cache.Now()
	if url, ok := r.cache.Get(username); ok {
		r.logger.DebugWithFields("cache hit", map[string]interface{}{
			"username": username,
		})
		r.metrics.RecordResolution("success")
		return url, nil
	}

	url, err := r.fetch(ctx, username, now)
	if err != nil {
		r.logger.InfoWithFields("profile picture lookup failed", map[string]interface{}{
			"username": username,
			"error":    err.Error(),
			"status":   apperrors.StatusOf(err),
		})
		r.metrics.RecordResolution(string(apperrors.KindOf(err)))
		return "", err
	}

	r.metrics.RecordResolution("success")
	return url, nil
}

// fetch runs the strategy chain and writes successes through to the cache
func (r *Resolver) fetch(ctx context.Context, username string, now time.Time) (string, error) {
	run := func() (string, error) {
		url, err := r.fetcher.FetchProfilePicture(ctx, username)
		if err != nil {
			return "", err
		}
		r.cache.Put(username, url, now)
		return url, nil
	}

	if r.group == nil {
		return run()
	}

	v, err, shared := r.group.Do(username, func() (interface{}, error) {
		return run()
	})
	if shared {
		r.logger.DebugWithFields("joined in-flight lookup", map[string]interface{}{
			"username": username,
		})
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// ResolveBatch resolves many normalized usernames with bounded concurrency.
// Duplicates and empty names are dropped (first occurrence wins), the list is
// capped at the batch limit, and each failure becomes an item carrying its
// message and HTTP status. Output order follows the deduplicated input.
func (r *Resolver) ResolveBatch(ctx context.Context, usernames []string, concurrency int) []BatchItem {
	unique := Dedupe(usernames, r.maxBatchSize)
	r.metrics.RecordBatch(len(unique))

	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := batch.RunWithLogger[string, string](ctx, unique, r.Resolve, concurrency, r.logger)

	items := make([]BatchItem, len(unique))
	for i, res := range results {
		items[i] = BatchItem{Username: unique[i]}
		if res.Err != nil {
			items[i].Error = res.Err.Error()
			items[i].Status = apperrors.StatusOf(res.Err)
			continue
		}
		items[i].URL = res.Value
	}
	return items
}

// Summarize counts successes and failures in items
func Summarize(items []BatchItem, duration time.Duration) BatchMeta {
	meta := BatchMeta{
		Total:      len(items),
		DurationMs: duration.Milliseconds(),
	}
	for _, item := range items {
		if item.OK() {
			meta.Success++
		}
	}
	meta.Failed = meta.Total - meta.Success
	return meta
}

// Dedupe drops empty and repeated usernames, keeping first-occurrence order,
// and truncates the result to limit entries (no limit when limit <= 0)
func Dedupe(usernames []string, limit int) []string {
	seen := make(map[string]struct{}, len(usernames))
	out := make([]string, 0, len(usernames))
	for _, name := range usernames {
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
