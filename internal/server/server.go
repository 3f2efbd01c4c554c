// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sigil-dev/delm/internal/provider"
	"github.com/sigil-dev/delm/internal/rag"
	"github.com/sigil-dev/delm/internal/store"
	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr     string
	CORSOrigins    []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration // deadline placed on each request context
	RateLimit      RateLimitConfig
	Version        string
}

// Pipeline is the retrieval surface the routes call. *rag.Pipeline
// satisfies it.
type Pipeline interface {
	Generate(ctx context.Context, prompt string, mode rag.Mode, category string, opts ...rag.GenerateOption) (*rag.GenerateResult, error)
	Retrieve(ctx context.Context, query string, opts ...rag.RetrieveOption) ([]store.Result, error)
	AddPattern(ctx context.Context, in rag.PatternInput) error
	Get(ctx context.Context, id string) (*store.Pattern, bool, error)
	Stats(ctx context.Context) (rag.Stats, error)
	Clear(ctx context.Context) error
}

// ProviderStatuser reports generator provider health. *provider.Registry
// satisfies it.
type ProviderStatuser interface {
	Statuses(ctx context.Context) []provider.ProviderStatus
}

// Deps are the services handlers delegate to. Providers is optional.
type Deps struct {
	Pipeline  Pipeline
	Providers ProviderStatuser
}

// Server wraps a chi router with huma API and HTTP server.
type Server struct {
	router chi.Router
	api    huma.API
	cfg    Config
	deps   Deps

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Server with chi router, huma API, CORS, and every route
// registered.
func New(cfg Config, deps Deps) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, delmerr.New(delmerr.CodeServerConfigInvalid, "listen address is required")
	}
	if deps.Pipeline == nil {
		return nil, delmerr.New(delmerr.CodeServerConfigInvalid, "pipeline is required")
	}
	if err := cfg.RateLimit.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 2 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		// Generation can run up to RequestTimeout; leave room to write the body.
		cfg.WriteTimeout = cfg.RequestTimeout + 10*time.Second
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	srv := &Server{
		cfg:  cfg,
		deps: deps,
		done: make(chan struct{}),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(rateLimitMiddleware(cfg.RateLimit, srv.done))

	humaConfig := huma.DefaultConfig("delm", cfg.Version)
	humaConfig.Info.Description = "Design pattern retrieval and UI code generation API"
	api := humachi.New(r, humaConfig)

	srv.router = r
	srv.api = api

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, srv.handleHealth)

	srv.registerRoutes()
	srv.registerStreamRoute()

	return srv, nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// API returns the huma API, used to export the OpenAPI document.
func (s *Server) API() huma.API {
	return s.api
}

// Close stops background goroutines. It is safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// Start runs the HTTP server and blocks until the context is cancelled,
// then performs graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return delmerr.Errorf(delmerr.CodeServerStartFailure, "listening on %s: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer func() { _ = s.Close() }()

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("http server listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return delmerr.Errorf(delmerr.CodeServerStartFailure, "serving http: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return delmerr.Errorf(delmerr.CodeServerShutdownFailure, "shutting down: %w", err)
	}
	slog.Info("http server stopped")

	return <-errCh
}

// HealthBody is the JSON body of the health endpoint response.
type HealthBody struct {
	Status  string `json:"status" example:"ok" doc:"Health status"`
	Version string `json:"version" doc:"Server version"`
}

// HealthResponse wraps the health check response.
type HealthResponse struct {
	Body HealthBody
}

func (s *Server) handleHealth(_ context.Context, _ *struct{}) (*HealthResponse, error) {
	return &HealthResponse{Body: HealthBody{Status: "ok", Version: s.cfg.Version}}, nil
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
