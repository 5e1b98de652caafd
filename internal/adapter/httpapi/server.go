package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"agent-service/internal/domain"
	"agent-service/internal/infra/config"
	"agent-service/internal/infra/middleware"
)

const shutdownTimeout = 5 * time.Second

// Info describes the running service for the status endpoint.
type Info struct {
	Name      string
	Version   string
	Provider  string
	Model     string
	SearchURL string
}

// Deps holds the collaborators the HTTP API needs.
type Deps struct {
	Runner       domain.AgentRunner
	Tools        domain.ToolExecutor
	Metrics      *Metrics // nil = a fresh set
	Logger       *slog.Logger
	Config       config.ServerConfig
	AgentTimeout time.Duration
	Info         Info
}

// Server exposes the agent over HTTP.
type Server struct {
	deps      Deps
	startTime time.Time
	httpSrv   *http.Server
	boundAddr string
	errCh     chan error
}

// NewServer creates an HTTP API server.
func NewServer(deps Deps) *Server {
	if deps.Metrics == nil {
		deps.Metrics = &Metrics{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Server{deps: deps, startTime: time.Now(), errCh: make(chan error, 1)}
}

// Handler builds the routed handler with the middleware chain applied.
// ctx bounds background work such as rate limiter cleanup.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/agent", &agentHandler{
		runner:  s.deps.Runner,
		timeout: s.deps.AgentTimeout,
		strict:  s.deps.Config.StrictStatus,
		metrics: s.deps.Metrics,
		logger:  s.deps.Logger,
	})
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/api/v1/status", statusHandler(s.deps.Info, s.startTime, s.deps.Metrics, s.deps.Tools))
	mux.HandleFunc("/metrics", metricsHandler(s.startTime, s.deps.Metrics, s.deps.Tools))
	mux.HandleFunc("/", notFoundHandler)

	mws := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.AccessLog(s.deps.Logger),
		middleware.Recover(s.deps.Logger),
		middleware.SecurityHeaders,
	}
	if rl := s.deps.Config.RateLimit; rl.Enabled {
		mws = append(mws, middleware.RateLimitWithConfig(ctx, middleware.RateLimitConfig{
			RequestsPerMin: rl.RequestsPerMin,
			BurstSize:      rl.Burst,
			TrustedProxies: rl.TrustedProxies,
		}))
	}
	return middleware.Chain(mux, mws...)
}

// Start binds the listener and serves in the background. It returns once the
// address is bound; serve errors are reported by Wait.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.deps.Config.Addr)
	if err != nil {
		return fmt.Errorf("httpapi listen: %w", err)
	}
	s.boundAddr = listener.Addr().String()

	s.httpSrv = &http.Server{
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: s.deps.Config.ReadHeaderTimeout,
		WriteTimeout:      s.deps.Config.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	s.deps.Logger.Info("http api started", "addr", s.boundAddr)

	go func() {
		err := s.httpSrv.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			err = fmt.Errorf("httpapi serve: %w", err)
		}
		s.errCh <- err
	}()
	return nil
}

// Wait blocks until the server stops serving and returns its error, if any.
func (s *Server) Wait() error {
	return <-s.errCh
}

// Stop gracefully shuts down the server, waiting for in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	err := s.httpSrv.Shutdown(shutdownCtx)
	s.deps.Logger.Info("http api stopped", "addr", s.boundAddr)
	return err
}

// BoundAddr returns the actual address the server bound to. Only valid after Start.
func (s *Server) BoundAddr() string { return s.boundAddr }
