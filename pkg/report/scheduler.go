package report

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/throttle/pkg/throttle"
)

// Pruner removes journal entries older than a cutoff.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// Config controls the scheduler.
type Config struct {
	// Schedule is a cron expression. Empty disables the scheduler.
	Schedule string

	// Retention is how long journal entries are kept. Zero disables pruning.
	Retention time.Duration
}

// Scheduler logs class snapshots and prunes the journal on a schedule.
type Scheduler struct {
	registry *throttle.Registry
	config   Config
	pruner   Pruner
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// Option configures a Scheduler.
type Option func(s *Scheduler)

// WithPruner prunes p on every run.
func WithPruner(p Pruner) Option {
	return func(s *Scheduler) {
		s.pruner = p
	}
}

// WithLogger sets the logger snapshots are written to.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithNow sets the time source used to compute the prune cutoff.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// NewScheduler creates a scheduler for reg.
func NewScheduler(reg *throttle.Registry, cfg Config, opts ...Option) *Scheduler {
	s := &Scheduler{
		registry: reg,
		config:   cfg,
		logger:   slog.Default(),
		now:      time.Now,
		cron:     cron.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "report.scheduler")
	return s
}

// Start schedules RunOnce. It returns nil without scheduling anything when
// no schedule is configured. The scheduler stops when ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("report scheduler already running")
	}
	if s.config.Schedule == "" {
		s.logger.Info("report schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.config.Schedule, err)
	}
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.config.Schedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule report: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("report scheduler started",
		"schedule", s.config.Schedule,
		"retention", s.config.Retention,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// RunOnce logs a snapshot and prunes the journal. It returns the number of
// pruned entries.
func (s *Scheduler) RunOnce(ctx context.Context) int64 {
	for _, c := range Snapshot(s.registry) {
		s.logger.Info("class snapshot",
			"class", c.Name,
			"owner", c.Owner,
			"engaged", c.Engaged,
			"window_duration", c.WindowDuration,
			"request_limit", c.RequestLimit,
			"retry_delay", c.RetryDelay,
			"history_size", c.HistorySize,
		)
	}

	if s.pruner == nil || s.config.Retention <= 0 {
		return 0
	}

	cutoff := s.now().Add(-s.config.Retention)
	deleted, err := s.pruner.Prune(ctx, cutoff)
	if err != nil {
		s.logger.Error("journal pruning failed", "error", err)
		return 0
	}

	if deleted > 0 {
		s.logger.Info("journal pruned", "deleted_count", deleted, "cutoff", cutoff)
	} else {
		s.logger.Debug("journal pruned, no entries deleted")
	}
	return deleted
}

// Stop stops the scheduler and waits for a running report to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("report scheduler stopped")
}

// IsRunning reports whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled report time, or nil when nothing is
// scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
