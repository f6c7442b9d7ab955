package report

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"mercator-hq/throttle/pkg/throttle"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleRegistry(t *testing.T) *throttle.Registry {
	t.Helper()
	reg := throttle.NewRegistry(throttle.WithClock(throttle.NewManualClock(epoch)), throttle.WithLogger(quietLogger()))

	sample, _ := reg.Define("sample")
	if err := sample.Configure(throttle.Options{
		throttle.OptionWindowDuration: 10 * time.Second,
		throttle.OptionRequestLimit:   45,
		throttle.OptionRetryDelay:     15 * time.Second,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Define("sub_sample", throttle.Extends(sample)); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Define("plain"); err != nil {
		t.Fatal(err)
	}

	_ = sample.Admit(context.Background())
	_ = sample.Admit(context.Background())
	return reg
}

type fakePruner struct {
	cutoff  time.Time
	deleted int64
	err     error
	calls   int
}

func (p *fakePruner) Prune(_ context.Context, before time.Time) (int64, error) {
	p.calls++
	p.cutoff = before
	return p.deleted, p.err
}

// ============================================================================
// Snapshot Tests
// ============================================================================

func TestSnapshot(t *testing.T) {
	snap := Snapshot(sampleRegistry(t))

	if len(snap) != 3 {
		t.Fatalf("expected 3 classes, got %d", len(snap))
	}

	tests := []struct {
		idx     int
		name    string
		parent  string
		owner   string
		root    bool
		engaged bool
		limit   int
		history int
	}{
		{idx: 0, name: "sample", owner: "sample", root: true, engaged: true, limit: 45, history: 2},
		{idx: 1, name: "sub_sample", parent: "sample", owner: "sample", engaged: true, limit: 45, history: 2},
		{idx: 2, name: "plain", root: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := snap[tt.idx]
			if got.Name != tt.name || got.Parent != tt.parent || got.Owner != tt.owner {
				t.Errorf("unexpected identity %+v", got)
			}
			if got.ResourceRoot != tt.root || got.Engaged != tt.engaged {
				t.Errorf("ResourceRoot=%v Engaged=%v", got.ResourceRoot, got.Engaged)
			}
			if got.RequestLimit != tt.limit || got.HistorySize != tt.history {
				t.Errorf("RequestLimit=%d HistorySize=%d", got.RequestLimit, got.HistorySize)
			}
		})
	}

	if snap[0].WindowDuration != 10*time.Second || snap[0].RetryDelay != 15*time.Second {
		t.Errorf("unexpected durations %+v", snap[0])
	}
}

// ============================================================================
// Scheduler Tests
// ============================================================================

func TestScheduler_RunOnce(t *testing.T) {
	var buf bytes.Buffer
	pruner := &fakePruner{deleted: 4}
	now := epoch.Add(48 * time.Hour)

	s := NewScheduler(sampleRegistry(t), Config{Schedule: "@every 1m", Retention: 24 * time.Hour},
		WithPruner(pruner),
		WithLogger(slog.New(slog.NewTextHandler(&buf, nil))),
		WithNow(func() time.Time { return now }),
	)

	if got := s.RunOnce(context.Background()); got != 4 {
		t.Errorf("RunOnce() = %d, want 4", got)
	}
	if !pruner.cutoff.Equal(epoch.Add(24 * time.Hour)) {
		t.Errorf("cutoff = %v", pruner.cutoff)
	}

	out := buf.String()
	for _, want := range []string{"class=sample", "class=sub_sample", "class=plain", "history_size=2", "deleted_count=4"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestScheduler_RunOnceWithoutPruning(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		pruner *fakePruner
	}{
		{name: "no retention", config: Config{}, pruner: &fakePruner{}},
		{name: "no pruner", config: Config{Retention: time.Hour}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.pruner != nil {
				opts = append(opts, WithPruner(tt.pruner))
			}
			s := NewScheduler(sampleRegistry(t), tt.config, append(opts, WithLogger(quietLogger()))...)

			if got := s.RunOnce(context.Background()); got != 0 {
				t.Errorf("RunOnce() = %d, want 0", got)
			}
			if tt.pruner != nil && tt.pruner.calls != 0 {
				t.Error("pruner should not run without retention")
			}
		})
	}
}

func TestScheduler_RunOncePruneError(t *testing.T) {
	pruner := &fakePruner{deleted: 3, err: errors.New("disk full")}
	s := NewScheduler(sampleRegistry(t), Config{Retention: time.Hour}, WithPruner(pruner), WithLogger(quietLogger()))

	if got := s.RunOnce(context.Background()); got != 0 {
		t.Errorf("RunOnce() = %d, want 0 on error", got)
	}
}

func TestScheduler_Start(t *testing.T) {
	tests := []struct {
		name        string
		schedule    string
		wantRunning bool
		wantError   bool
	}{
		{name: "descriptor", schedule: "@every 1h", wantRunning: true},
		{name: "standard cron", schedule: "0 3 * * *", wantRunning: true},
		{name: "empty schedule", schedule: "", wantRunning: false},
		{name: "invalid schedule", schedule: "invalid cron", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScheduler(sampleRegistry(t), Config{Schedule: tt.schedule}, WithLogger(quietLogger()))

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := s.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Errorf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			if s.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", s.IsRunning(), tt.wantRunning)
			}

			if tt.wantRunning {
				next := s.NextRun()
				if next == nil {
					t.Error("NextRun() returned nil for running scheduler")
				} else if !next.After(time.Now()) {
					t.Errorf("NextRun() = %v, expected a future time", next)
				}
			}

			s.Stop()
			if s.IsRunning() {
				t.Error("scheduler still running after Stop()")
			}
		})
	}
}

func TestScheduler_StartTwice(t *testing.T) {
	s := NewScheduler(sampleRegistry(t), Config{Schedule: "@every 1h"}, WithLogger(quietLogger()))
	defer s.Stop()

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("expected error when starting twice")
	}
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	s := NewScheduler(sampleRegistry(t), Config{Schedule: "@every 1h"}, WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for s.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("scheduler did not stop after context cancellation")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
