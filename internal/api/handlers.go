package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kmoray/trestle/internal/eventstore"
	"github.com/kmoray/trestle/internal/token"
)

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	})
}

// handleListEvents handles GET /api/v1/events?source=&status=&limit=.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	filter := eventstore.ListFilter{
		Source: r.URL.Query().Get("source"),
		Status: r.URL.Query().Get("status"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	records, err := s.store.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("list events failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if records == nil {
		records = []*eventstore.EventRecord{}
	}

	respondJSON(w, http.StatusOK, EventListResponse{
		Events: records,
		Count:  len(records),
	})
}

// handleGetEvent handles GET /api/v1/events/{eventID}.
func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "eventID")

	rec, err := s.store.Get(r.Context(), id)
	if errors.Is(err, eventstore.ErrEventNotFound) {
		s.writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if err != nil {
		s.logger.Error("get event failed", "event_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve event")
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// handleTokenStatus handles GET /api/v1/token/status. Reports cache ages
// only; token values never leave the provider.
func (s *Server) handleTokenStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, TokenStatusResponse{
		Providers: s.tokens.StatusAll(),
	})
}

// handleTokenRefresh handles POST /api/v1/token/refresh/{provider}.
func (s *Server) handleTokenRefresh(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	// The refreshed token stays server-side.
	_, err := s.tokens.Refresh(r.Context(), provider)
	if errors.Is(err, token.ErrProviderNotFound) {
		s.writeError(w, http.StatusNotFound, "unknown provider")
		return
	}
	if err != nil {
		s.logger.Error("token refresh failed", "provider", provider, "error", err)
		s.writeError(w, http.StatusBadGateway, "token refresh failed")
		return
	}

	respondJSON(w, http.StatusOK, TokenRefreshResponse{
		Provider:  provider,
		Refreshed: true,
	})
}

// respondJSON is a helper to write JSON responses.
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
