// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer; it connects stores, services,
// handlers, middleware, and routes. It decides:
// - Which session store backs the browser sessions (sqlite or Redis)
// - Which URL patterns map to which handler functions
// - Which routes sit behind the auth gate, and how a rejection looks
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → Server.New() creates:
//	  sqlite.DB ─┬─ UserRepository, TodoRepository
//	             └─ SessionRepository (unless SESSION_STORE=redis)
//	  TokenService, PasswordService, SessionManager → Gate
//	  IdentityService, TodoService → AuthHandler, TodoHandler
//
// This is the "composition root" pattern; all dependencies are wired
// in one place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sakif/tasklist/internal/apperror"
	"github.com/sakif/tasklist/internal/auth"
	"github.com/sakif/tasklist/internal/config"
	"github.com/sakif/tasklist/internal/handler"
	"github.com/sakif/tasklist/internal/metrics"
	"github.com/sakif/tasklist/internal/middleware"
	"github.com/sakif/tasklist/internal/repository"
	"github.com/sakif/tasklist/internal/repository/redisstore"
	sqliteRepo "github.com/sakif/tasklist/internal/repository/sqlite"
	"github.com/sakif/tasklist/internal/service"
)

// shutdownTimeout is how long in-flight requests get to finish.
const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection and, when configured, the Redis
// client. Close releases both; Start calls it after a graceful shutdown.
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	redis    *redisstore.SessionStore // nil unless SESSION_STORE=redis
	registry *prometheus.Registry
	metrics  *metrics.Collector
}

// New creates a new Server with the given config.
//
// IMPORT ALIAS:
// repository/sqlite is imported as `sqliteRepo` so it can't be confused
// with the modernc.org/sqlite driver package.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.DBPath != ":memory:" {
		// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		registry: registry,
		metrics:  metrics.NewCollector(registry),
	}

	sessionStore, err := s.openSessionStore(context.Background())
	if err != nil {
		s.Close()
		return nil, err
	}

	if err := s.setupRoutes(sessionStore); err != nil {
		s.Close() // Clean up stores if route setup fails
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// openSessionStore picks the session backend. The sqlite table is the
// default; expired rows there are purged once at startup since nothing else
// deletes them. Redis expires keys on its own.
func (s *Server) openSessionStore(ctx context.Context) (repository.SessionRepository, error) {
	if s.config.SessionStore == config.SessionStoreRedis {
		store, err := redisstore.Open(ctx, redisstore.Options{
			Addr:     s.config.RedisAddr,
			Password: s.config.RedisPassword,
			DB:       s.config.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("opening redis session store: %w", err)
		}
		s.redis = store
		s.logger.Info("using redis session store", slog.String("addr", s.config.RedisAddr))
		return store, nil
	}

	purged, err := s.db.DeleteExpiredSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("purging expired sessions: %w", err)
	}
	if purged > 0 {
		s.logger.Info("purged expired sessions", slog.Int64("count", purged))
	}
	return s.db, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET       /                 → redirect to /auth/register
//	GET|POST  /auth/register    → register page / create account
//	GET|POST  /auth/login       → login page / token or session
//	GET|POST  /auth/logout      → end session            [gate, browser]
//	GET|POST  /todos            → todo page / form create [gate, browser]
//	GET|POST  /api/todos        → list / create           [gate, API]
//	GET|PATCH|DELETE /api/todos/{id}                      [gate, API]
//	GET       /healthz          → store pings
//	GET       /metrics          → Prometheus scrape
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns unique ID to each request (for tracing)
// 2. RealIP: extracts real client IP from proxy headers
// 3. Logger: logs each request with timing info and the request ID
// 4. Metrics: counts requests by route pattern and status
// 5. Recoverer: catches panics and returns 500 instead of crashing
func (s *Server) setupRoutes(sessionStore repository.SessionRepository) error {
	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics(s.metrics))
	s.router.Use(chimiddleware.Recoverer)

	// === Auth building blocks ===
	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords, err := auth.NewPasswordService(s.config.BcryptCost)
	if err != nil {
		return fmt.Errorf("creating password service: %w", err)
	}
	sessions := auth.NewSessionManager(sessionStore, s.config.SessionTTL, s.config.CookieSecure)
	gate := auth.NewGate(tokens, sessions, s.logger)

	// === Services ===
	// s.db implements UserRepository and TodoRepository. The services only
	// see the interfaces.
	identity := service.NewIdentityService(s.db, passwords, tokens, sessions, s.metrics, s.logger)
	todos := service.NewTodoService(s.db, s.logger)

	// === Handlers ===
	pages, err := handler.NewPages(s.logger)
	if err != nil {
		return fmt.Errorf("creating pages: %w", err)
	}
	authHandler := handler.NewAuthHandler(identity, sessions, pages, s.logger)
	todoHandler := handler.NewTodoHandler(todos, identity, pages, s.logger)

	stores := map[string]handler.Pinger{"sqlite": s.db}
	if s.redis != nil {
		stores["redis"] = s.redis
	}
	healthHandler := handler.NewHealthHandler(stores, s.logger)

	requireBrowser := gate.Require(s.countRejections(handler.RejectBrowser))
	requireAPI := gate.Require(s.countRejections(handler.RejectAPI))

	// === Public Routes ===
	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/auth/register", http.StatusFound)
	})
	s.router.Get("/healthz", healthHandler.HandleHealth)
	s.router.Handle("/metrics", metrics.Handler(s.registry))

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/register", authHandler.HandleRegisterPage)
		r.Post("/register", authHandler.HandleRegister)
		r.Get("/login", authHandler.HandleLoginPage)
		r.Post("/login", authHandler.HandleLogin)

		r.With(requireBrowser).Get("/logout", authHandler.HandleLogout)
		r.With(requireBrowser).Post("/logout", authHandler.HandleLogout)
	})

	// === Browser Routes ===
	s.router.Group(func(r chi.Router) {
		r.Use(requireBrowser)
		r.Get("/todos", todoHandler.HandleTodosPage)
		r.Post("/todos", todoHandler.HandleCreateForm)
	})

	// === API Routes ===
	s.router.Route("/api/todos", func(r chi.Router) {
		r.Use(requireAPI)
		r.Get("/", todoHandler.HandleList)
		r.Post("/", todoHandler.HandleCreate)
		r.Get("/{id}", todoHandler.HandleGet)
		r.Patch("/{id}", todoHandler.HandleUpdate)
		r.Delete("/{id}", todoHandler.HandleDelete)
	})

	return nil
}

// countRejections records every auth gate rejection before handing it on.
func (s *Server) countRejections(next func(http.ResponseWriter, *http.Request, error)) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		reason := "error"
		switch {
		case errors.Is(err, apperror.ErrInvalidToken):
			reason = "invalid_token"
		case errors.Is(err, apperror.ErrUnauthenticated):
			reason = "unauthenticated"
		}
		s.metrics.RecordGateRejection(reason)
		next(w, r, err)
	}
}

// Handler returns the root http.Handler. Tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the stores. Safe to call once after the server stops.
func (s *Server) Close() error {
	var errs []error
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing redis: %w", err))
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing database: %w", err))
	}
	return errors.Join(errs...)
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the stores (flushes WAL, releases the file lock, drops Redis conns)
func (s *Server) Start() error {
	// Ensure the stores are closed when the server stops.
	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Error("closing stores", slog.String("error", err.Error()))
		}
	}()

	// Create the HTTP server with sensible timeouts
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to receive OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	// Channel to receive server errors
	serverErrors := make(chan error, 1)

	// Start the server in a goroutine (so it doesn't block)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.String("sessionStore", s.config.SessionStore),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
