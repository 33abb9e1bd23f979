// Package api serves the ops surface on its own listener: event lookups,
// token cache status, manual refresh, and a live event stream.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kmoray/trestle/internal/auth"
	"github.com/kmoray/trestle/internal/events"
	"github.com/kmoray/trestle/internal/eventstore"
	"github.com/kmoray/trestle/internal/token"
)

// EventReader is the slice of the audit store the API exposes.
type EventReader interface {
	List(ctx context.Context, filter eventstore.ListFilter) ([]*eventstore.EventRecord, error)
	Get(ctx context.Context, id string) (*eventstore.EventRecord, error)
}

// TokenService reports and refreshes the OAuth token cache.
type TokenService interface {
	StatusAll() []token.Status
	Refresh(ctx context.Context, providerID string) (string, error)
}

// Config holds API server configuration.
type Config struct {
	Listen string
	// APIKey is the legacy single key (admin/full access).
	APIKey string
	// Tokens is an optional list of scoped keys.
	Tokens []auth.TokenConfig
}

// Server is the ops API server. Separate listener from webhook ingress so
// operator credentials never share a port with inbound senders.
type Server struct {
	config    Config
	store     EventReader
	tokens    TokenService
	hub       *events.Hub
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

func New(config Config, store EventReader, tokens TokenService, hub *events.Hub, logger *slog.Logger) *Server {
	return &Server{
		config:    config,
		store:     store,
		tokens:    tokens,
		hub:       hub,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start runs the HTTP server until the context is canceled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.setupRoutes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // SSE connections stay open
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("api server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoint.
	r.Get("/healthz", s.handleHealthz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.With(s.requireScopes("events:ro", "events:rw")).Get("/events", s.handleListEvents)
		r.With(s.requireScopes("events:ro", "events:rw")).Get("/events/{eventID}", s.handleGetEvent)
		r.With(s.requireScopes("events:ro", "events:rw")).Get("/stream", s.handleStream)
		r.With(s.requireScopes("token:ro", "token:rw")).Get("/token/status", s.handleTokenStatus)
		r.With(s.requireScopes("token:rw")).Post("/token/refresh/{provider}", s.handleTokenRefresh)
		r.Get("/openapi.json", s.handleOpenAPI)
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
