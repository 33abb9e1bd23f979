package webhook

import (
	"context"

	"github.com/kmoray/trestle/internal/eventstore"
)

// EventStorer defines the interface for persisting accepted webhook events.
type EventStorer interface {
	Insert(ctx context.Context, rec *eventstore.EventRecord) error
}

// Publisher defines the interface for broadcasting lifecycle notifications.
type Publisher interface {
	Publish(eventType string, data any)
}

// Config holds ingress server configuration.
type Config struct {
	Listen      string
	MaxBodySize int64
	Sources     map[string]SourceCredentials
}

// AckResponse is the JSON response for accepted webhook events.
type AckResponse struct {
	Status  string `json:"status"`
	EventID string `json:"event_id"`
}

// ErrorResponse is the JSON response for webhook errors.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Default values
const (
	DefaultMaxBodySize = 1048576 // 1 MB
)
