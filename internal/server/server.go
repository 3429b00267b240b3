// Package server exposes the resolver over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"igavatar/pkg/config"
	"igavatar/pkg/logger"
	"igavatar/pkg/metrics"
	"igavatar/pkg/relay"
	"igavatar/pkg/resolver"
)

// ProfileResolver is the lookup surface the handlers need
type ProfileResolver interface {
	Resolve(ctx context.Context, username string) (string, error)
	ResolveBatch(ctx context.Context, usernames []string, concurrency int) []resolver.BatchItem
}

// ImageRelay writes a resolved picture to the client
type ImageRelay interface {
	Serve(w http.ResponseWriter, req *http.Request, imageURL string) relay.Tier
}

// Server is the HTTP API
type Server struct {
	cfg         config.ServerConfig
	concurrency int

	resolver ProfileResolver
	relay    ImageRelay
	metrics  *metrics.Metrics
	logger   logger.Logger

	router chi.Router
}

// New builds the router. m may be nil, in which case /metrics is not mounted.
func New(cfg *config.Config, res ProfileResolver, rel ImageRelay, m *metrics.Metrics, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetLogger()
	}

	s := &Server{
		cfg:         cfg.Server,
		concurrency: cfg.Batch.Concurrency,
		resolver:    res,
		relay:       rel,
		metrics:     m,
		logger:      log.WithField("component", "server"),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chiMiddleware.Recoverer)

	api := func(r chi.Router) {
		r.Get("/profile-photo", s.handleProfilePhoto)
		r.Get("/profile-photo/image", s.handleProfilePhotoImage)
		r.Get("/profile-photos", s.handleProfilePhotosQuery)
		r.Post("/profile-photos", s.handleProfilePhotosBody)
	}
	r.Group(api)
	// legacy clients call the same routes under /api
	r.Route("/api", api)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	if s.cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.cfg.StaticDir)))
	} else {
		r.Get("/favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	}

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.LogComponentStart(s.logger, "http", map[string]interface{}{
			"addr":       s.cfg.Addr,
			"static_dir": s.cfg.StaticDir,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.LogComponentStop(s.logger, "http", "context cancelled")
	return nil
}

// requestLogger logs and counts every request once the handler returns
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)

		// unmatched paths share one label to keep cardinality bounded
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		logger.LogRequest(s.logger, r.Method, r.URL.Path, status, duration, chiMiddleware.GetReqID(r.Context()))
		s.metrics.RecordHTTPRequest(r.Method, route, status, duration.Seconds())
	})
}
