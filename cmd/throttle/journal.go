package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/throttle/pkg/cli"
	"mercator-hq/throttle/pkg/journal"
)

var journalFlags struct {
	path      string
	class     string
	runID     string
	since     string
	until     string
	limit     int
	olderThan string
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the admission journal",
	Long: `Inspect and prune the sqlite journal that "throttle run" writes when
journal.enabled is set.

Subcommands:
  query   - List journaled admissions
  summary - Aggregate admissions per class
  prune   - Delete old admissions

Time flags accept an RFC3339 timestamp or a duration that is
subtracted from the current time (e.g. "90m" means 90 minutes ago).`,
}

var journalQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "List journaled admissions",
	Long: `List journaled admissions, oldest first.

Examples:
  throttle journal query --class sample --since 1h
  throttle journal query --run 6f1c... -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return queryJournal(cmd.Context(), cmd.OutOrStdout(), time.Now())
	},
}

var journalSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Aggregate admissions per class",
	RunE: func(cmd *cobra.Command, args []string) error {
		return summarizeJournal(cmd.Context(), cmd.OutOrStdout(), time.Now())
	},
}

var journalPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old admissions",
	Long: `Delete admissions older than --older-than, or older than the
configured journal.retention when the flag is not set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return pruneJournal(cmd.Context(), cmd.OutOrStdout(), time.Now())
	},
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalQueryCmd, journalSummaryCmd, journalPruneCmd)

	journalCmd.PersistentFlags().StringVar(&journalFlags.path, "db", "", "journal database path (uses config if not specified)")

	for _, c := range []*cobra.Command{journalQueryCmd, journalSummaryCmd} {
		c.Flags().StringVar(&journalFlags.class, "class", "", "filter by class")
		c.Flags().StringVar(&journalFlags.runID, "run", "", "filter by run ID")
		c.Flags().StringVar(&journalFlags.since, "since", "", "only admissions at or after this time")
		c.Flags().StringVar(&journalFlags.until, "until", "", "only admissions before this time")
	}
	journalQueryCmd.Flags().IntVar(&journalFlags.limit, "limit", 100, "max results, 0 for no limit")
	journalPruneCmd.Flags().StringVar(&journalFlags.olderThan, "older-than", "", "age or timestamp cutoff")
}

// openJournal opens the journal named by --db, falling back to the config
// file. The config is only read when --db is not set.
func openJournal() (*journal.Journal, error) {
	path := journalFlags.path
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Journal.Path
	}
	return journal.Open(path)
}

func journalFilter(now time.Time) (journal.Filter, error) {
	since, err := parseTimeFlag("since", journalFlags.since, now)
	if err != nil {
		return journal.Filter{}, err
	}
	until, err := parseTimeFlag("until", journalFlags.until, now)
	if err != nil {
		return journal.Filter{}, err
	}
	if journalFlags.limit < 0 {
		return journal.Filter{}, cli.NewUsageError("--limit must not be negative")
	}
	return journal.Filter{
		Class: journalFlags.class,
		RunID: journalFlags.runID,
		Since: since,
		Until: until,
		Limit: journalFlags.limit,
	}, nil
}

// parseTimeFlag accepts an RFC3339 timestamp or a duration before now.
// An empty value yields the zero time.
func parseTimeFlag(name, value string, now time.Time) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if d, err := time.ParseDuration(value); err == nil && d >= 0 {
		return now.Add(-d), nil
	}
	return time.Time{}, cli.NewUsageError("invalid --%s %q: want an RFC3339 time or a duration", name, value)
}

func queryJournal(ctx context.Context, w io.Writer, now time.Time) error {
	formatter, err := newFormatter()
	if err != nil {
		return err
	}
	filter, err := journalFilter(now)
	if err != nil {
		return err
	}

	j, err := openJournal()
	if err != nil {
		return cli.NewCommandError("journal query", err)
	}
	defer j.Close()

	entries, err := j.Query(ctx, filter)
	if err != nil {
		return cli.NewCommandError("journal query", err)
	}

	if _, ok := formatter.(*cli.JSONFormatter); ok {
		if entries == nil {
			entries = []journal.Entry{}
		}
		return formatter.FormatTo(w, entries)
	}
	return formatter.FormatTo(w, entryTable(entries))
}

func summarizeJournal(ctx context.Context, w io.Writer, now time.Time) error {
	formatter, err := newFormatter()
	if err != nil {
		return err
	}
	filter, err := journalFilter(now)
	if err != nil {
		return err
	}

	j, err := openJournal()
	if err != nil {
		return cli.NewCommandError("journal summary", err)
	}
	defer j.Close()

	summaries, err := j.Summary(ctx, filter)
	if err != nil {
		return cli.NewCommandError("journal summary", err)
	}

	if _, ok := formatter.(*cli.JSONFormatter); ok {
		if summaries == nil {
			summaries = []journal.ClassSummary{}
		}
		return formatter.FormatTo(w, summaries)
	}
	return formatter.FormatTo(w, summaryTable(summaries))
}

func pruneJournal(ctx context.Context, w io.Writer, now time.Time) error {
	var cutoff time.Time
	if journalFlags.olderThan != "" {
		var err error
		cutoff, err = parseTimeFlag("older-than", journalFlags.olderThan, now)
		if err != nil {
			return err
		}
	} else {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Journal.Retention <= 0 {
			return cli.NewUsageError("journal.retention is not set, pass --older-than")
		}
		cutoff = now.Add(-cfg.Journal.Retention)
	}

	j, err := openJournal()
	if err != nil {
		return cli.NewCommandError("journal prune", err)
	}
	defer j.Close()

	deleted, err := j.Prune(ctx, cutoff)
	if err != nil {
		return cli.NewCommandError("journal prune", err)
	}

	_, err = fmt.Fprintf(w, "Deleted %d admissions before %s\n", deleted, cutoff.UTC().Format(time.RFC3339))
	return err
}

type entryTable []journal.Entry

func (t entryTable) Header() []string {
	return []string{"ID", "RUN", "CLASS", "ADMITTED", "WAITED", "RETRIES", "HISTORY"}
}

func (t entryTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, e := range t {
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			e.RunID,
			e.Class,
			e.AdmittedAt.Format(time.RFC3339Nano),
			e.Waited.String(),
			strconv.Itoa(e.Retries),
			strconv.Itoa(e.HistorySize),
		})
	}
	return rows
}

type summaryTable []journal.ClassSummary

func (t summaryTable) Header() []string {
	return []string{"CLASS", "ADMISSIONS", "DELAYED", "TOTAL WAIT", "MAX WAIT", "FIRST", "LAST"}
}

func (t summaryTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, s := range t {
		rows = append(rows, []string{
			s.Class,
			strconv.FormatInt(s.Admissions, 10),
			strconv.FormatInt(s.Delayed, 10),
			s.TotalWait.String(),
			s.MaxWait.String(),
			s.First.Format(time.RFC3339),
			s.Last.Format(time.RFC3339),
		})
	}
	return rows
}
