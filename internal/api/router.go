// Package api wires the HTTP routes of the search server.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/cetsp/diario-scraper/internal/api/handlers"
	"github.com/cetsp/diario-scraper/internal/api/middleware"
	"github.com/cetsp/diario-scraper/pkg/logger"
)

// RouterConfig holds configuration for the API router.
type RouterConfig struct {
	// CORS settings
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int

	// RequestTimeout bounds every route except searches and the WebSocket.
	RequestTimeout time.Duration
	// SearchTimeout bounds POST /api/search.
	SearchTimeout time.Duration

	// Rate limiting
	EnableRateLimiting bool
	RateLimitConfig    middleware.RateLimitConfig
}

// DefaultRouterConfig returns a default router configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		AllowedOrigins:     []string{"*"},
		AllowedMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:     []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:     []string{"X-Request-ID", "X-Search-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials:   false,
		MaxAge:             300,
		RequestTimeout:     30 * time.Second,
		SearchTimeout:      30 * time.Minute,
		EnableRateLimiting: true,
		RateLimitConfig:    middleware.DefaultRateLimitConfig(),
	}
}

// Dependencies holds all dependencies required by the API handlers.
type Dependencies struct {
	Logger         *logger.Logger
	Runner         handlers.SearchRunner
	Archive        handlers.PublicationArchive
	Diagnostics    handlers.DiagnosticsLister
	SearchSocket   http.Handler
	Metrics        http.Handler
	RateLimitStore middleware.RateLimitStore
	// ReadyChecks are reported by /ready; a nil entry shows as not
	// configured.
	ReadyChecks map[string]handlers.HealthChecker
}

// NewRouter creates and configures a new Chi router with all middleware and routes.
func NewRouter(deps Dependencies, config RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	log := deps.Logger
	if log == nil {
		log = logger.Default()
	}

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   config.AllowedOrigins,
		AllowedMethods:   config.AllowedMethods,
		AllowedHeaders:   config.AllowedHeaders,
		ExposedHeaders:   config.ExposedHeaders,
		AllowCredentials: config.AllowCredentials,
		MaxAge:           config.MaxAge,
	}))

	var rateLimiter *middleware.RateLimiter
	if config.EnableRateLimiting {
		store := deps.RateLimitStore
		if store == nil {
			store = middleware.NewMemoryRateLimitStore()
		}
		rateLimiter = middleware.NewRateLimiter(store, config.RateLimitConfig, log)
	}
	limit := func(r chi.Router, limitType string) {
		if rateLimiter != nil {
			r.Use(rateLimiter.Middleware(limitType))
		}
	}

	// Long-running routes: no request timeout.
	if deps.SearchSocket != nil {
		r.Handle("/ws/logs", deps.SearchSocket)
	}
	r.Group(func(r chi.Router) {
		limit(r, middleware.LimitSearch)
		r.Post("/api/search", handlers.HandleSearch(deps.Runner, config.SearchTimeout, log))
	})

	r.Group(func(r chi.Router) {
		if config.RequestTimeout > 0 {
			r.Use(chimiddleware.Timeout(config.RequestTimeout))
		}

		r.Get("/health", handlers.HealthCheck())
		r.Get("/ready", handlers.ReadyCheck(deps.ReadyChecks))
		if deps.Metrics != nil {
			r.Handle("/metrics", deps.Metrics)
		}

		r.Route("/api", func(r chi.Router) {
			r.Get("/version", handlers.HandleVersion())
			r.Get("/publications", handlers.HandlePublications(deps.Archive, log))
			r.Get("/diagnostics", handlers.HandleDiagnostics(deps.Diagnostics, log))

			r.Group(func(r chi.Router) {
				limit(r, middleware.LimitRender)
				r.Post("/render", handlers.HandleRender(log))
				r.Post("/export", handlers.HandleExport(log))
			})
		})
	})

	return r
}

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Host              string
	Port              int
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

// DefaultServerConfig returns default server configuration. There is no
// write timeout: searches and WebSocket sessions can run for minutes.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "",
		Port:              8085,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   30 * time.Second,
	}
}

// NewServer creates a new HTTP server.
func NewServer(handler http.Handler, config ServerConfig, log *logger.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              formatAddr(config.Host, config.Port),
			Handler:           handler,
			ReadHeaderTimeout: config.ReadHeaderTimeout,
			IdleTimeout:       config.IdleTimeout,
		},
		log: log.WithComponent("http_server"),
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// formatAddr formats host and port into an address string.
func formatAddr(host string, port int) string {
	if host == "" {
		return fmt.Sprintf(":%d", port)
	}
	return fmt.Sprintf("%s:%d", host, port)
}
