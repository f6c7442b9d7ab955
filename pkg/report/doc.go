// Package report logs periodic snapshots of throttle state.
//
// A snapshot lists every class in a registry with its resolved settings,
// its current history size and the class whose window it uses. The
// Scheduler takes one on a cron schedule and, when given a Pruner, also
// drops journal entries older than the retention period:
//
//	s := report.NewScheduler(registry, report.Config{
//	    Schedule:  "@every 1m",
//	    Retention: 24 * time.Hour,
//	}, report.WithPruner(j))
//	if err := s.Start(ctx); err != nil {
//	    return err
//	}
//	defer s.Stop()
//
// Any expression accepted by cron.ParseStandard works, including
// descriptors such as "@hourly" and "@every 30s".
package report
