package scheduler

import (
	"context"
	"encoding/json"
	"time"
)

// AuditStore is the slice of the event store the cleanup tasks drive.
type AuditStore interface {
	CountOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteIgnoredOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// StateStore records task watermarks.
type StateStore interface {
	ShallowMerge(ctx context.Context, name string, updates json.RawMessage) (json.RawMessage, error)
}
