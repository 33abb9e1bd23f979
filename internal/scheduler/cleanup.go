package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kmoray/trestle/internal/config"
	"github.com/kmoray/trestle/internal/events"
)

// ignoredRetentionCap bounds how long ignored events are kept; they carry
// no workflow state and age out faster than processed ones.
const ignoredRetentionCap = 7

const cleanupStateKey = "cleanup"

// CleanupTask builds the daily audit-retention task: delete events older
// than the retention window, ignored events on a shorter one, and record
// a last-run watermark.
func CleanupTask(cfg config.CleanupConfig, store AuditStore, states StateStore,
	hub *events.Hub, logger *slog.Logger) Task {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	return Task{
		Name:     "cleanup",
		Interval: interval,
		Run: func(ctx context.Context) error {
			return runCleanup(ctx, cfg, store, states, hub, logger.With("task", "cleanup"))
		},
	}
}

func runCleanup(ctx context.Context, cfg config.CleanupConfig, store AuditStore,
	states StateStore, hub *events.Hub, logger *slog.Logger) error {
	now := timeNow().UTC()

	retentionDays := cfg.RetentionDays
	if retentionDays <= 0 {
		retentionDays = 90
	}
	ignoredDays := cfg.IgnoredRetentionDays
	if ignoredDays <= 0 || ignoredDays > ignoredRetentionCap {
		ignoredDays = ignoredRetentionCap
	}
	if ignoredDays > retentionDays {
		ignoredDays = retentionDays
	}

	cutoff := now.AddDate(0, 0, -retentionDays)
	ignoredCutoff := now.AddDate(0, 0, -ignoredDays)

	count, err := store.CountOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("count expired events: %w", err)
	}
	logger.Info("cleanup pass starting", "expired", count, "cutoff", cutoff.Format(time.RFC3339))

	deletedIgnored, err := store.DeleteIgnoredOlderThan(ctx, ignoredCutoff)
	if err != nil {
		return fmt.Errorf("delete expired ignored events: %w", err)
	}

	deleted, err := store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete expired events: %w", err)
	}

	logger.Info("cleanup pass finished", "deleted", deleted, "deleted_ignored", deletedIgnored)

	if hub != nil {
		hub.Publish(events.TypeCleanupRun, map[string]any{
			"deleted":         deleted,
			"deleted_ignored": deletedIgnored,
			"cutoff":          cutoff.Format(time.RFC3339),
		})
	}

	watermark, err := json.Marshal(map[string]any{
		"last_run":        now.Format(time.RFC3339Nano),
		"deleted":         deleted,
		"deleted_ignored": deletedIgnored,
	})
	if err != nil {
		return fmt.Errorf("marshal cleanup watermark: %w", err)
	}
	if _, err := states.ShallowMerge(ctx, cleanupStateKey, watermark); err != nil {
		// The cleanup itself succeeded; a lost watermark only skews the
		// next status report.
		logger.Warn("record cleanup watermark failed", "error", err)
	}
	return nil
}
