// Package server exposes the KPI engine over HTTP, with prometheus metrics
// and a websocket stream of watcher alerts.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/kpiwatch/internal/config"
	"github.com/blackwell-systems/kpiwatch/internal/kpi"
	"github.com/blackwell-systems/kpiwatch/internal/store"
	"github.com/blackwell-systems/kpiwatch/internal/watcher"
)

// Server serves the KPI API.
type Server struct {
	cfg        config.Server
	thresholds kpi.Thresholds
	db         *store.DB
	logger     *zap.Logger
	hub        *Hub
	limiter    *IPRateLimiter
	registry   *prometheus.Registry
	metrics    *Metrics
	upgrader   websocket.Upgrader
	ready      atomic.Bool

	// AllowedOrigins lists websocket origins; empty allows same-host only.
	AllowedOrigins []string
}

// New creates a server. db may be nil, in which case stored trends are
// unavailable.
func New(cfg config.Server, t kpi.Thresholds, db *store.DB, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := prometheus.NewRegistry()
	s := &Server{
		cfg:        cfg,
		thresholds: t,
		db:         db,
		logger:     logger,
		hub:        NewHub(logger),
		limiter:    NewIPRateLimiter(cfg.RateLimit, cfg.RateBurst),
		registry:   registry,
		metrics:    NewMetrics(registry),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler builds the routed, middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health checks and metrics bypass the rate limiter.
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	limited := func(h http.HandlerFunc) http.Handler {
		return RateLimit(s.limiter, s.metrics.RateLimitDropped.Inc)(h)
	}
	mux.Handle("POST /api/v1/classify", limited(s.handleClassify))
	mux.Handle("POST /api/v1/alerts", limited(s.handleAlerts))
	mux.Handle("POST /api/v1/health", limited(s.handleHealth))
	mux.Handle("POST /api/v1/trend", limited(s.handleTrend))
	mux.Handle("GET /api/v1/trends/{key}", limited(s.handleStoredTrend))
	mux.Handle("GET /api/v1/evaluations", limited(s.handleEvaluations))
	mux.Handle("GET /api/v1/evaluations/{n}", limited(s.handleEvaluation))
	mux.Handle("GET /ws/alerts", limited(s.handleAlertStream))

	return Chain(mux, Recovery(s.logger), Logger(s.logger), s.metrics.Middleware)
}

// Publish forwards a watcher alert to websocket clients. It satisfies
// watcher.Publisher.
func (s *Server) Publish(_ context.Context, a watcher.Alert) error {
	s.hub.BroadcastAlert(a)
	return nil
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		s.limiter.RunCleanup(ctx)
		return nil
	})
	g.Go(func() error {
		s.logger.Info("listening", zap.String("addr", s.cfg.Addr))
		s.ready.Store(true)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.ready.Store(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// SetReady marks the server ready without Run, for embedding the handler.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleAlertStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(s.hub, conn, s.logger)
	if !s.hub.Register(client) {
		_ = conn.Close()
		return
	}
	s.metrics.WebsocketClients.Inc()

	go client.WritePump()
	go func() {
		client.ReadPump()
		s.metrics.WebsocketClients.Dec()
	}()
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		// Non-browser clients send no origin.
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	if len(s.AllowedOrigins) == 0 {
		return strings.EqualFold(parsed.Host, r.Host)
	}
	normalized := parsed.Scheme + "://" + parsed.Host
	for _, allowed := range s.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(strings.TrimSpace(allowed), normalized) {
			return true
		}
	}
	return false
}
