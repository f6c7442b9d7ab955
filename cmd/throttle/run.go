package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mercator-hq/throttle/pkg/cli"
	"mercator-hq/throttle/pkg/config"
	"mercator-hq/throttle/pkg/journal"
	"mercator-hq/throttle/pkg/report"
	"mercator-hq/throttle/pkg/resource"
	"mercator-hq/throttle/pkg/telemetry"
	"mercator-hq/throttle/pkg/telemetry/logging"
	"mercator-hq/throttle/pkg/throttle"
)

var runFlags struct {
	class       string
	id          string
	count       int
	concurrency int
	watch       bool
	progress    bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Send requests through a throttled class",
	Long: `Send requests to a configured resource class. Each request first
acquires a connection through the class's resource root, which blocks
while the root's window is full.

With --count 0 requests are sent until the command is interrupted.
With --watch, changes to the throttle settings in the config file are
applied while the run is in progress.

Examples:
  # 100 collection requests, 4 at a time
  throttle run --class sample --count 100 --concurrency 4

  # Fetch one element repeatedly
  throttle run --class sample --id 7 --count 10

  # Run until interrupted, reloading throttle settings on change
  throttle run --class sub_sample --count 0 --watch`,
	RunE: runRequests,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.class, "class", "", "resource class to request (required)")
	runCmd.Flags().StringVar(&runFlags.id, "id", "", "fetch a single element instead of the collection")
	runCmd.Flags().IntVarP(&runFlags.count, "count", "n", 1, "number of requests, 0 to run until interrupted")
	runCmd.Flags().IntVar(&runFlags.concurrency, "concurrency", 1, "number of concurrent callers")
	runCmd.Flags().BoolVar(&runFlags.watch, "watch", false, "apply config file changes while running")
	runCmd.Flags().BoolVar(&runFlags.progress, "progress", true, "show a progress bar on stderr")
	_ = runCmd.MarkFlagRequired("class")
}

// RunResult summarizes a run.
type RunResult struct {
	RunID       string        `json:"run_id"`
	Class       string        `json:"class"`
	Owner       string        `json:"owner,omitempty"`
	Requests    int           `json:"requests"`
	Failed      int           `json:"failed"`
	Elapsed     time.Duration `json:"elapsed"`
	Rate        float64       `json:"rate"`
	HistorySize int           `json:"history_size"`
	Interrupted bool          `json:"interrupted"`
}

// Header implements cli.Table.
func (r RunResult) Header() []string {
	return []string{"FIELD", "VALUE"}
}

// Rows implements cli.Table.
func (r RunResult) Rows() [][]string {
	return [][]string{
		{"run_id", r.RunID},
		{"class", r.Class},
		{"owner", orDash(r.Owner)},
		{"requests", strconv.Itoa(r.Requests)},
		{"failed", strconv.Itoa(r.Failed)},
		{"elapsed", r.Elapsed.Round(time.Millisecond).String()},
		{"rate", strconv.FormatFloat(r.Rate, 'f', 2, 64)},
		{"history_size", strconv.Itoa(r.HistorySize)},
		{"interrupted", strconv.FormatBool(r.Interrupted)},
	}
}

func runRequests(cmd *cobra.Command, args []string) error {
	if runFlags.count < 0 {
		return cli.NewUsageError("--count must not be negative, got %d", runFlags.count)
	}
	if runFlags.concurrency < 1 {
		return cli.NewUsageError("--concurrency must be at least 1, got %d", runFlags.concurrency)
	}

	formatter, err := newFormatter()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	tel, err := telemetry.New(&cfg.Telemetry, Version, os.Stderr)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			tel.Logger().Error("telemetry shutdown failed", "error", err)
		}
	}()
	logger := tel.Logger()

	runID := uuid.NewString()
	opts := tel.ThrottleOptions()

	var j *journal.Journal
	if cfg.Journal.Enabled {
		j, err = journal.Open(cfg.Journal.Path, journal.WithRunID(runID), journal.WithLogger(logger.Slog()))
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		defer j.Close()

		opts = append(opts, throttle.WithObserver(j))
		tel.Server().RegisterCheck("journal", j.Ping)
	}

	catalog, err := resource.NewCatalog(cfg.Classes, throttle.NewRegistry(opts...), logger.Slog(),
		resource.WithConnectionLogger(logger.Slog()),
		resource.WithConnectionTracer(tel.Tracer().Tracer()),
		resource.WithUserAgent("throttle/"+Version),
	)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	res, ok := catalog.Resource(runFlags.class)
	if !ok {
		return cli.NewUsageError("unknown class %q", runFlags.class)
	}

	if err := tel.Start(); err != nil {
		return cli.NewCommandError("run", err)
	}

	ctx = logging.WithRunID(ctx, runID)
	ctx = logging.WithClass(ctx, res.Name())

	if cfg.Report.Enabled {
		reportCfg := report.Config{Schedule: cfg.Report.Schedule}
		reportOpts := []report.Option{report.WithLogger(logger.Slog())}
		if j != nil {
			reportCfg.Retention = cfg.Journal.Retention
			reportOpts = append(reportOpts, report.WithPruner(j))
		}
		scheduler := report.NewScheduler(catalog.Registry(), reportCfg, reportOpts...)
		if err := scheduler.Start(ctx); err != nil {
			return cli.NewCommandError("run", err)
		}
		defer scheduler.Stop()
	}

	if runFlags.watch {
		watcher, err := config.NewFileWatcher(cfgFile, config.DefaultDebounceInterval, logger.Slog())
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		defer watcher.Stop()

		go func() {
			if err := watcher.Watch(ctx, func() error { return reloadClasses(catalog, logger) }); err != nil {
				logger.Error("config watcher failed", "error", err)
			}
		}()
	}

	var progressOut io.Writer
	if runFlags.progress && runFlags.count > 0 {
		progressOut = cmd.ErrOrStderr()
	}
	progress := cli.NewProgress(progressOut, runFlags.count)

	logger.InfoContext(ctx, "run started",
		"count", runFlags.count,
		"concurrency", runFlags.concurrency,
		"owner", res.Class().Owner(),
	)

	start := time.Now()
	drive(ctx, res, runFlags.id, runFlags.count, runFlags.concurrency, progress, logger)
	progress.Finish()
	elapsed := time.Since(start)

	completed, failed := progress.Counts()
	result := RunResult{
		RunID:       runID,
		Class:       res.Name(),
		Owner:       res.Class().Owner(),
		Requests:    completed,
		Failed:      failed,
		Elapsed:     elapsed,
		HistorySize: res.Class().HistorySize(),
		Interrupted: ctx.Err() != nil,
	}
	if elapsed > 0 {
		result.Rate = float64(completed) / elapsed.Seconds()
	}

	logger.InfoContext(ctx, "run finished",
		"requests", result.Requests,
		"failed", result.Failed,
		"elapsed", result.Elapsed,
	)

	if err := formatter.FormatTo(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if result.Interrupted {
		return cli.NewCommandError("run", context.Canceled)
	}
	return nil
}

// drive issues count requests through res using concurrency callers. A
// count of zero means run until ctx is done.
func drive(ctx context.Context, res *resource.Resource, id string, count, concurrency int, progress *cli.Progress, logger *logging.Logger) {
	jobs := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				var body json.RawMessage
				var err error
				if id != "" {
					err = res.Find(ctx, id, &body)
				} else {
					err = res.FindAll(ctx, &body)
				}

				switch {
				case err == nil:
					progress.Increment()
				case errors.Is(err, context.Canceled):
					return
				default:
					progress.Fail()
					logger.WarnContext(ctx, "request failed", "error", err)
				}
			}
		}()
	}

	for sent := 0; count == 0 || sent < count; sent++ {
		select {
		case jobs <- struct{}{}:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		}
	}
	close(jobs)
	wg.Wait()
}

// reloadClasses re-reads the config file and applies class changes to the
// running catalog.
func reloadClasses(catalog *resource.Catalog, logger *logging.Logger) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}

	result, err := catalog.Apply(cfg.Classes)
	if err != nil {
		return err
	}
	if !result.Changed() {
		logger.Info("configuration reloaded, no class changes")
		return nil
	}

	logger.Info("configuration reloaded",
		"reconfigured", result.Reconfigured,
		"rebound", result.Rebound,
		"added", result.Added,
		"skipped", result.Skipped,
	)
	return nil
}
