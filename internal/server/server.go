// Package server exposes the pipeline outputs to the dashboard as a
// read-only HTTP API.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sits/internal/config"
	"github.com/sells-group/sits/internal/metrics"
	"github.com/sells-group/sits/internal/model"
	"github.com/sells-group/sits/internal/report"
)

// Loader returns the zones the API serves.
type Loader func() ([]model.Zone, error)

// Server serves the zones found in a data directory.
type Server struct {
	cfg     config.ServerConfig
	load    Loader
	cache   *Cache
	metrics *metrics.Recorder
	log     *zap.Logger

	mu       sync.Mutex
	zones    []model.Zone
	loadedAt time.Time
	now      func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLoader replaces the default report.Load of the data directory.
func WithLoader(l Loader) Option {
	return func(s *Server) { s.load = l }
}

// WithMetrics records request metrics and exposes /metrics.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a Server for cfg.
func New(cfg config.ServerConfig, opts ...Option) *Server {
	ttl := time.Duration(cfg.CacheTTLSecs) * time.Second
	s := &Server{
		cfg:   cfg,
		load:  func() ([]model.Zone, error) { return report.Load(cfg.DataDir) },
		cache: NewCache(cfg.CacheCapacity, ttl),
		log:   zap.L().With(zap.String("component", "server")),
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/cache", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, s.cache.Stats())
		})
		r.Group(func(r chi.Router) {
			r.Use(s.cached)
			r.Get("/filters", s.handleFilters)
			r.Get("/layers/{kind}", s.handleLayer)
			r.Get("/zones", s.handleZones)
			r.Get("/summary", s.handleSummary)
			r.Get("/roster", s.handleRoster)
			r.Get("/operational/{axis}", s.handleOperational)
			r.Get("/sendai/{phase}", s.handleSendai)
			r.Get("/decisions", s.handleDecisions)
			r.Get("/economy", s.handleEconomy)
			r.Get("/restricted", s.handleRestricted)
		})
	})
	return r
}

// ListenAndServe serves on cfg.Port until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("starting server",
		zap.Int("port", s.cfg.Port),
		zap.String("data_dir", s.cfg.DataDir),
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

// dataset returns the loaded zones, reloading them once the cache TTL has
// passed so a new run shows up without a restart.
func (s *Server) dataset() ([]model.Zone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ttl := time.Duration(s.cfg.CacheTTLSecs) * time.Second
	if s.zones != nil && s.now().Sub(s.loadedAt) <= ttl {
		return s.zones, nil
	}
	zones, err := s.load()
	if err != nil {
		return nil, eris.Wrap(err, "server: load zones")
	}
	s.zones = zones
	s.loadedAt = s.now()
	s.cache.Invalidate("")
	s.log.Info("dataset loaded", zap.Int("zones", len(zones)))
	return zones, nil
}

// instrument logs each request and records its route, status and latency.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		d := time.Since(start)
		if s.metrics != nil {
			s.metrics.Request(route, status, d)
		}
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", d),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// cached serves successful GET responses from the response cache keyed by
// the request URI. The dataset is refreshed first, so a reload clears the
// cache before any stale body can be served.
func (s *Server) cached(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.dataset(); err != nil {
			next.ServeHTTP(w, r)
			return
		}
		key := r.URL.RequestURI()
		if body, ct, ok := s.cache.Get(key); ok {
			w.Header().Set("Content-Type", ct)
			w.Header().Set("X-Cache", "hit")
			_, _ = w.Write(body)
			return
		}
		w.Header().Set("X-Cache", "miss")
		rec := &recorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if rec.status == http.StatusOK {
			s.cache.Put(key, w.Header().Get("Content-Type"), rec.buf.Bytes())
		}
	})
}

// recorder tees the response body into a buffer.
type recorder struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(p []byte) (int, error) {
	r.buf.Write(p)
	return r.ResponseWriter.Write(p)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
