package main

import (
	"io"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/throttle/pkg/cli"
	"mercator-hq/throttle/pkg/report"
	"mercator-hq/throttle/pkg/resource"
	"mercator-hq/throttle/pkg/throttle"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and show resolved classes",
	Long: `Load the configuration file, build every class and print the settings
each class resolves to, including which class owns the window it uses.

No requests are sent.

Examples:
  throttle validate --config throttle.yaml
  throttle validate -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateConfig(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(w io.Writer) error {
	formatter, err := newFormatter()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reg := throttle.NewRegistry(throttle.WithLogger(slog.New(slog.DiscardHandler)))
	catalog, err := resource.NewCatalog(cfg.Classes, reg, slog.New(slog.DiscardHandler))
	if err != nil {
		return cli.NewCommandError("validate", err)
	}

	snapshot := report.Snapshot(catalog.Registry())
	if _, ok := formatter.(*cli.JSONFormatter); ok {
		return formatter.FormatTo(w, snapshot)
	}
	return formatter.FormatTo(w, classTable(snapshot))
}

// classTable renders class snapshots as rows.
type classTable []report.ClassSnapshot

func (t classTable) Header() []string {
	return []string{"CLASS", "EXTENDS", "ROOT", "WINDOW", "LIMIT", "RETRY", "OWNER"}
}

func (t classTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, c := range t {
		window, limit, retry := "-", "-", "-"
		if c.Engaged {
			window = c.WindowDuration.String()
			limit = strconv.Itoa(c.RequestLimit)
			retry = c.RetryDelay.String()
		}
		rows = append(rows, []string{
			c.Name,
			orDash(c.Parent),
			strconv.FormatBool(c.ResourceRoot),
			window,
			limit,
			retry,
			orDash(c.Owner),
		})
	}
	return rows
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
