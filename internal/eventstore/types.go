package eventstore

import (
	"encoding/json"
	"errors"
	"time"
)

// Status tracks an event record through its lifecycle:
// received -> processing -> processed | ignored | failed.
const (
	StatusReceived   = "received"
	StatusProcessing = "processing"
	StatusProcessed  = "processed"
	StatusIgnored    = "ignored"
	StatusFailed     = "failed"
)

// Callback status values recorded against an event once the downstream
// side effect has been attempted.
const (
	CallbackTicketCreated     = "ticket_created"
	CallbackSuccess           = "success"
	CallbackFailedAPICall     = "failed_api_call"
	CallbackFailedNoRequestID = "failed_no_request_id"
	CallbackFailedException   = "failed_exception"
)

// EventRecord is one audited webhook event.
type EventRecord struct {
	// ID is the record's own identifier, assigned on insert.
	ID string `json:"id"`

	EventType string `json:"event_type"`
	Source    string `json:"source"`

	// SourceEventID is the sender-assigned event identifier, when present.
	SourceEventID string `json:"source_event_id,omitempty"`

	// CorrelationID ties an approval callback to the event that opened
	// the request.
	CorrelationID string `json:"correlation_id,omitempty"`

	Payload json.RawMessage   `json:"payload,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`

	Status     string    `json:"status"`
	ReceivedAt time.Time `json:"received_at"`

	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	RetryCount   int        `json:"retry_count"`

	RelatedEventID *string    `json:"related_event_id,omitempty"`
	ApprovalState  *string    `json:"approval_state,omitempty"`
	CallbackStatus *string    `json:"callback_status,omitempty"`
	CallbackAt     *time.Time `json:"callback_at,omitempty"`
}

// ListFilter narrows List results. Zero fields match everything.
type ListFilter struct {
	Source string
	Status string
	Limit  int
}

// DefaultListLimit caps List results when no limit is given.
const DefaultListLimit = 50

var ErrEventNotFound = errors.New("event not found")
