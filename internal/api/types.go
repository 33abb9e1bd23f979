package api

import (
	"github.com/kmoray/trestle/internal/eventstore"
	"github.com/kmoray/trestle/internal/token"
)

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// EventListResponse is returned by GET /api/v1/events.
type EventListResponse struct {
	Events []*eventstore.EventRecord `json:"events"`
	Count  int                       `json:"count"`
}

// TokenStatusResponse is returned by GET /api/v1/token/status.
type TokenStatusResponse struct {
	Providers []token.Status `json:"providers"`
}

// TokenRefreshResponse is returned by POST /api/v1/token/refresh/{provider}.
type TokenRefreshResponse struct {
	Provider  string `json:"provider"`
	Refreshed bool   `json:"refreshed"`
}
