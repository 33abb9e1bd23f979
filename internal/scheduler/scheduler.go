// Package scheduler runs named periodic maintenance tasks on fixed
// intervals: audit-record cleanup today, anything ticker-shaped tomorrow.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// timeNow is swapped in tests.
var timeNow = time.Now

// Task is one named unit of periodic work. Run errors are logged; the
// task keeps its schedule.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler drives registered tasks, one goroutine per task.
type Scheduler struct {
	tasks  []Task
	logger *slog.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		logger: logger.With("component", "scheduler"),
		stopCh: make(chan struct{}),
	}
}

// Add registers a task. Must be called before Start.
func (s *Scheduler) Add(task Task) {
	s.tasks = append(s.tasks, task)
}

// Start launches every registered task loop. Each task runs once
// immediately, then on its interval.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("scheduler started", "tasks", len(s.tasks))
	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.runLoop(ctx, task)
	}
}

// Stop stops all task loops and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runLoop(ctx context.Context, task Task) {
	defer s.wg.Done()

	logger := s.logger.With("task", task.Name)
	s.runOnce(ctx, task, logger)

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx, task, logger)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, task Task, logger *slog.Logger) {
	started := timeNow()
	if err := task.Run(ctx); err != nil {
		logger.Error("task run failed", "error", err)
		return
	}
	logger.Debug("task run finished", "elapsed", time.Since(started).String())
}
