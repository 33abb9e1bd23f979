package process

import (
	"context"

	"github.com/kmoray/trestle/internal/eventstore"
	"github.com/kmoray/trestle/internal/jsonval"
)

//go:generate mockgen -source=types.go -destination=mocks/mock_types.go -package=mocks

// EventStore is the slice of the audit store the processor drives.
type EventStore interface {
	ClaimNext(ctx context.Context) (*eventstore.EventRecord, error)
	MarkProcessed(ctx context.Context, id string) error
	MarkIgnored(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errMsg string) error
	SetCallback(ctx context.Context, id, approvalState, callbackStatus string) error
	SetRelated(ctx context.Context, id, relatedEventID string) error
	FindByCorrelation(ctx context.Context, correlationID string) ([]*eventstore.EventRecord, error)
}

// PlatformClient reads resources and writes approvals on the origin
// API-management platform.
type PlatformClient interface {
	GetResourceBySelfLink(ctx context.Context, selfLink string) (jsonval.Value, error)
	GetTeam(ctx context.Context, teamID string) (jsonval.Value, error)
	GetUser(ctx context.Context, userID string) (jsonval.Value, error)
	SetApproved(ctx context.Context, selfLink, reason string) error
	UpdateApprovalState(ctx context.Context, requestID, state, comments string) error
}

// CatalogClient orders ITSM catalog items.
type CatalogClient interface {
	OrderItem(ctx context.Context, sysID string, variables map[string]any) (string, error)
}

// Notifier mails workflow notifications. Implementations treat delivery
// failure as non-fatal; the processor ignores Send errors.
type Notifier interface {
	Send(subject, tmplText string, data any) error
}
