package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kmoray/trestle/internal/events"
	"github.com/kmoray/trestle/internal/eventstore"
)

// Server represents the webhook ingress HTTP server.
type Server struct {
	config Config
	auth   *Authenticator
	store  EventStorer
	hub    Publisher
	logger *slog.Logger
	server *http.Server
}

// New creates a new ingress server instance.
func New(config Config, store EventStorer, hub Publisher, logger *slog.Logger) *Server {
	if config.MaxBodySize == 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}

	return &Server{
		config: config,
		auth:   NewAuthenticator(config.Sources, logger),
		store:  store,
		hub:    hub,
		logger: logger,
	}
}

// Handler returns the ingress HTTP handler without binding a listener.
// Start uses it internally; tests mount it on their own listeners.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start starts the ingress HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("ingress server starting", "listen", s.config.Listen, "sources", len(s.config.Sources))

	// Run server in goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		s.logger.Info("ingress server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("ingress server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("ingress server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(noCacheMiddleware)

	r.Post("/webhooks/{source}", s.handleWebhook)
	r.Get("/webhooks/health", s.handleHealth)

	return r
}

// loggingMiddleware logs HTTP requests (excludes sensitive payloads).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Log request (no body content for security)
		s.logger.Info("ingress request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// noCacheMiddleware marks every response as uncacheable.
func noCacheMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		next.ServeHTTP(w, r)
	})
}

// handleWebhook handles incoming webhook POST requests.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")

	// Enforce body size limit
	limitedReader := io.LimitReader(r.Body, s.config.MaxBodySize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to read request body")
		return
	}

	// Check if body exceeded limit
	if int64(len(body)) > s.config.MaxBodySize {
		s.respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	// All checks run over the raw body; rejection carries no detail on
	// which check failed.
	if !s.auth.Authenticate(source, r.Header, body) {
		s.respondError(w, http.StatusForbidden, "authentication failed")
		return
	}

	env, err := ParseEnvelope(body)
	if err != nil {
		s.logger.Warn("webhook payload is not JSON", "source", source, "error", err)
		s.respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	creds := s.config.Sources[source]
	rec := &eventstore.EventRecord{
		EventType:     env.EventType,
		Source:        source,
		SourceEventID: env.EventID,
		CorrelationID: env.CorrelationID,
		Payload:       json.RawMessage(body),
		Headers:       selectHeaders(r.Header, creds.SignatureHeader),
		Status:        eventstore.StatusReceived,
		ReceivedAt:    time.Now().UTC(),
	}
	if err := s.store.Insert(r.Context(), rec); err != nil {
		s.logger.Error("failed to store webhook event",
			"source", source,
			"event_type", env.EventType,
			"error", err,
		)
		s.respondError(w, http.StatusInternalServerError, "failed to store event")
		return
	}

	s.hub.Publish(events.TypeEventReceived, events.RecordData{
		EventID:       rec.ID,
		Source:        source,
		EventType:     env.EventType,
		Status:        eventstore.StatusReceived,
		CorrelationID: env.CorrelationID,
	})

	s.logger.Info("webhook event stored",
		"source", source,
		"event_type", env.EventType,
		"event_id", rec.ID,
	)

	s.respondJSON(w, http.StatusOK, AckResponse{Status: "success", EventID: rec.ID})
}

// handleHealth reports liveness of the ingress listener.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// selectHeaders captures the request headers worth auditing. Authorization
// values never reach storage.
func selectHeaders(h http.Header, signatureHeader string) map[string]string {
	keep := []string{"Content-Type", "User-Agent", "X-Request-Id"}
	if signatureHeader != "" {
		keep = append(keep, signatureHeader)
	}

	out := make(map[string]string, len(keep))
	for _, key := range keep {
		if v := h.Get(key); v != "" {
			out[key] = v
		}
	}
	return out
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Status: "error", Message: message})
}
