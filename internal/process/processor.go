// Package process runs the background workflow over audited webhook
// events: claim the oldest received event, decide what it means, and
// carry out the provisioning or approval-relay side effects.
package process

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kmoray/trestle/internal/events"
	"github.com/kmoray/trestle/internal/eventstore"
	"github.com/kmoray/trestle/internal/rules"
	"github.com/kmoray/trestle/internal/webhook"
)

// timeNow is swapped in tests.
var timeNow = time.Now

const defaultPollInterval = 2 * time.Second

// Config holds the processor's workflow settings.
type Config struct {
	PollInterval time.Duration

	// CatalogItemID is the ITSM catalog item ordered for asset requests.
	CatalogItemID string

	// NeedByDays sets the catalog order's need-by date relative to now.
	NeedByDays int

	// ApproverRole is the team role whose holders get API access.
	ApproverRole string
}

// Processor is the event workflow worker. One Run loop per service.
type Processor struct {
	cfg      Config
	store    EventStore
	rules    *rules.Engine
	platform PlatformClient
	catalog  CatalogClient
	notifier Notifier
	hub      *events.Hub
	logger   *slog.Logger
}

func New(cfg Config, store EventStore, engine *rules.Engine, platform PlatformClient,
	catalog CatalogClient, notifier Notifier, hub *events.Hub, logger *slog.Logger) *Processor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.NeedByDays <= 0 {
		cfg.NeedByDays = 30
	}
	if cfg.ApproverRole == "" {
		cfg.ApproverRole = "api_access"
	}
	return &Processor{
		cfg:      cfg,
		store:    store,
		rules:    engine,
		platform: platform,
		catalog:  catalog,
		notifier: notifier,
		hub:      hub,
		logger:   logger,
	}
}

// Run polls for claimable events until the context is canceled. Each tick
// drains the backlog; a failure on one event never stops the loop.
func (p *Processor) Run(ctx context.Context) error {
	p.logger.Info("processor started", "poll_interval", p.cfg.PollInterval.String())

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("processor stopped")
			return ctx.Err()
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

func (p *Processor) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		rec, err := p.store.ClaimNext(ctx)
		if err != nil {
			p.logger.Error("claim next event failed", "error", err)
			return
		}
		if rec == nil {
			return
		}
		p.ProcessOne(ctx, rec)
	}
}

// ProcessOne handles a single claimed event and records its terminal
// status. A handler panic marks the event failed instead of crashing the
// worker.
func (p *Processor) ProcessOne(ctx context.Context, rec *eventstore.EventRecord) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("event handler panicked", "event_id", rec.ID, "panic", r)
			p.finish(ctx, rec, eventstore.StatusFailed, fmt.Sprintf("panic: %v", r))
		}
	}()

	logger := p.logger.With("event_id", rec.ID, "source", rec.Source, "event_type", rec.EventType)

	env, err := webhook.ParseEnvelope(rec.Payload)
	if err != nil {
		logger.Error("payload is not valid JSON", "error", err)
		p.finish(ctx, rec, eventstore.StatusFailed, "invalid payload: "+err.Error())
		return
	}

	action := p.rules.Decide(rec.Source, rec.EventType, env.Kind)
	logger.Info("event claimed", "action", action.String())

	switch action {
	case rules.ActionProcess:
		if err := p.provisionAssetRequest(ctx, rec, env); err != nil {
			logger.Error("provisioning failed", "error", err)
			p.finish(ctx, rec, eventstore.StatusFailed, err.Error())
			return
		}
		p.finish(ctx, rec, eventstore.StatusProcessed, "")

	case rules.ActionRelayApproval:
		if err := p.relayApproval(ctx, rec); err != nil {
			logger.Error("approval relay failed", "error", err)
			p.finish(ctx, rec, eventstore.StatusFailed, err.Error())
			return
		}
		p.finish(ctx, rec, eventstore.StatusProcessed, "")

	case rules.ActionIgnore:
		p.finish(ctx, rec, eventstore.StatusIgnored, "")

	default:
		// No rule claimed the event; record it and move on.
		p.finish(ctx, rec, eventstore.StatusProcessed, "")
	}
}

// finish marks the record terminal and publishes the matching hub event.
func (p *Processor) finish(ctx context.Context, rec *eventstore.EventRecord, status, errMsg string) {
	var err error
	var hubType string
	switch status {
	case eventstore.StatusIgnored:
		err = p.store.MarkIgnored(ctx, rec.ID)
		hubType = events.TypeEventIgnored
	case eventstore.StatusFailed:
		err = p.store.MarkFailed(ctx, rec.ID, errMsg)
		hubType = events.TypeEventFailed
	default:
		err = p.store.MarkProcessed(ctx, rec.ID)
		hubType = events.TypeEventProcessed
	}
	if err != nil {
		p.logger.Error("mark event terminal failed", "event_id", rec.ID, "status", status, "error", err)
	}

	if p.hub != nil {
		p.hub.Publish(hubType, events.RecordData{
			EventID:       rec.ID,
			Source:        rec.Source,
			EventType:     rec.EventType,
			Status:        status,
			CorrelationID: rec.CorrelationID,
			Error:         errMsg,
		})
	}
}
