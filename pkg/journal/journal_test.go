package journal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/throttle/pkg/throttle"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func openTestJournal(t *testing.T, opts ...Option) *Journal {
	t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"), opts...)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func admission(class string, offset time.Duration, waited time.Duration, retries int) throttle.Admission {
	return throttle.Admission{
		Class:       class,
		Time:        epoch.Add(offset),
		Waited:      waited,
		Retries:     retries,
		HistorySize: 1,
	}
}

// ============================================================================
// Open Tests
// ============================================================================

func TestOpen(t *testing.T) {
	j := openTestJournal(t, WithRunID("run-1"))

	if j.RunID() != "run-1" {
		t.Errorf("RunID() = %q, want run-1", j.RunID())
	}
	if err := j.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestOpen_GeneratesRunID(t *testing.T) {
	a := openTestJournal(t)
	b := openTestJournal(t)

	if a.RunID() == "" || a.RunID() == b.RunID() {
		t.Errorf("expected distinct generated run IDs, got %q and %q", a.RunID(), b.RunID())
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestOpen_ReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path, WithRunID("first"))
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Record(context.Background(), admission("sample", 0, 0, 0)); err != nil {
		t.Fatal(err)
	}
	j.Close()

	j, err = Open(path, WithRunID("second"))
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	entries, err := j.Query(context.Background(), Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].RunID != "first" {
		t.Errorf("expected the entry from the first run, got %+v", entries)
	}
}

// ============================================================================
// Record and Query Tests
// ============================================================================

func TestJournal_ObserveAdmission(t *testing.T) {
	j := openTestJournal(t, WithRunID("run"))

	j.ObserveAdmission(admission("sample", 2*time.Second, 1500*time.Millisecond, 1))

	entries, err := j.Query(context.Background(), Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	e := entries[0]
	if e.Class != "sample" || e.RunID != "run" {
		t.Errorf("unexpected entry %+v", e)
	}
	if !e.AdmittedAt.Equal(epoch.Add(2 * time.Second)) {
		t.Errorf("AdmittedAt = %v", e.AdmittedAt)
	}
	if e.Waited != 1500*time.Millisecond || e.Retries != 1 || e.HistorySize != 1 {
		t.Errorf("unexpected wait details %+v", e)
	}
}

func TestJournal_ObservesRegistry(t *testing.T) {
	j := openTestJournal(t)
	clock := throttle.NewManualClock(epoch)

	reg := throttle.NewRegistry(throttle.WithClock(clock), throttle.WithObserver(j),
		throttle.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	sample, _ := reg.Define("sample")
	if err := sample.Configure(throttle.Options{
		throttle.OptionWindowDuration: 10 * time.Second,
		throttle.OptionRequestLimit:   2,
		throttle.OptionRetryDelay:     6 * time.Second,
	}); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err := sample.Admit(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := j.Query(context.Background(), Filter{Class: "sample"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[2].Retries != 2 || entries[2].Waited != 12*time.Second {
		t.Errorf("third admission should record two retries, got %+v", entries[2])
	}
}

func TestJournal_QueryFilters(t *testing.T) {
	j := openTestJournal(t, WithRunID("run"))
	ctx := context.Background()

	for i, class := range []string{"sample", "other", "sample", "sample"} {
		if err := j.Record(ctx, admission(class, time.Duration(i)*time.Minute, 0, 0)); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{name: "all", filter: Filter{}, want: 4},
		{name: "by class", filter: Filter{Class: "sample"}, want: 3},
		{name: "by run", filter: Filter{RunID: "run"}, want: 4},
		{name: "other run", filter: Filter{RunID: "nope"}, want: 0},
		{name: "since", filter: Filter{Since: epoch.Add(time.Minute)}, want: 3},
		{name: "until is exclusive", filter: Filter{Until: epoch.Add(2 * time.Minute)}, want: 2},
		{name: "range and class", filter: Filter{Class: "sample", Since: epoch.Add(time.Minute), Until: epoch.Add(3 * time.Minute)}, want: 1},
		{name: "limit", filter: Filter{Limit: 2}, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := j.Query(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != tt.want {
				t.Errorf("got %d entries, want %d", len(entries), tt.want)
			}
		})
	}
}

func TestJournal_QueryOrder(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	_ = j.Record(ctx, admission("a", 2*time.Second, 0, 0))
	_ = j.Record(ctx, admission("a", 0, 0, 0))
	_ = j.Record(ctx, admission("a", time.Second, 0, 0))

	entries, _ := j.Query(ctx, Filter{})
	for i := 1; i < len(entries); i++ {
		if entries[i].AdmittedAt.Before(entries[i-1].AdmittedAt) {
			t.Fatalf("entries not ordered by admission time: %v", entries)
		}
	}
}

// ============================================================================
// Summary and Prune Tests
// ============================================================================

func TestJournal_Summary(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	_ = j.Record(ctx, admission("sample", 0, 0, 0))
	_ = j.Record(ctx, admission("sample", 10*time.Second, 4*time.Second, 1))
	_ = j.Record(ctx, admission("sample", 20*time.Second, 8*time.Second, 2))
	_ = j.Record(ctx, admission("other", 5*time.Second, 0, 0))

	summaries, err := j.Summary(ctx, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 classes, got %d", len(summaries))
	}

	other, sample := summaries[0], summaries[1]
	if other.Class != "other" || other.Admissions != 1 || other.Delayed != 0 {
		t.Errorf("unexpected other summary %+v", other)
	}
	if sample.Class != "sample" || sample.Admissions != 3 || sample.Delayed != 2 {
		t.Errorf("unexpected sample summary %+v", sample)
	}
	if sample.TotalWait != 12*time.Second || sample.MaxWait != 8*time.Second {
		t.Errorf("unexpected waits total=%v max=%v", sample.TotalWait, sample.MaxWait)
	}
	if !sample.First.Equal(epoch) || !sample.Last.Equal(epoch.Add(20*time.Second)) {
		t.Errorf("unexpected range %v to %v", sample.First, sample.Last)
	}
}

func TestJournal_SummaryEmpty(t *testing.T) {
	j := openTestJournal(t)

	summaries, err := j.Summary(context.Background(), Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 0 {
		t.Errorf("expected no summaries, got %v", summaries)
	}
}

func TestJournal_Prune(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = j.Record(ctx, admission("sample", time.Duration(i)*time.Hour, 0, 0))
	}

	n, err := j.Prune(ctx, epoch.Add(3*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("Prune() removed %d, want 3", n)
	}

	entries, _ := j.Query(ctx, Filter{})
	if len(entries) != 2 || !entries[0].AdmittedAt.Equal(epoch.Add(3*time.Hour)) {
		t.Errorf("unexpected remaining entries %v", entries)
	}
}

// ============================================================================
// Close Tests
// ============================================================================

func TestJournal_Close(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}

	if err := j.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := j.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	ctx := context.Background()
	if err := j.Record(ctx, admission("x", 0, 0, 0)); !errors.Is(err, ErrClosed) {
		t.Errorf("Record() after Close = %v, want ErrClosed", err)
	}
	if _, err := j.Query(ctx, Filter{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Query() after Close = %v, want ErrClosed", err)
	}
	if err := j.Ping(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Ping() after Close = %v, want ErrClosed", err)
	}
}
