package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"mercator-hq/throttle/pkg/cli"
	"mercator-hq/throttle/pkg/journal"
	"mercator-hq/throttle/pkg/throttle"
)

var now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func seedJournal(t *testing.T) string {
	t.Helper()
	site := newFakeSite(t)
	path := writeConfig(t, site.URL, true)

	j, err := journal.Open(path, journal.WithRunID("run-1"))
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	for _, a := range []throttle.Admission{
		{Class: "sample", Time: now.Add(-3 * time.Hour), HistorySize: 1},
		{Class: "sample", Time: now.Add(-30 * time.Minute), Waited: 2 * time.Second, Retries: 2, HistorySize: 2},
		{Class: "plain", Time: now.Add(-10 * time.Minute), HistorySize: 1},
	} {
		if err := j.Record(context.Background(), a); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func TestParseTimeFlag(t *testing.T) {
	tests := []struct {
		value   string
		want    time.Time
		wantErr bool
	}{
		{value: "", want: time.Time{}},
		{value: "90m", want: now.Add(-90 * time.Minute)},
		{value: "2024-01-01T10:00:00Z", want: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
		{value: "-1h", wantErr: true},
		{value: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := parseTimeFlag("since", tt.value, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseTimeFlag() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !got.Equal(tt.want) {
				t.Errorf("parseTimeFlag() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQueryJournal(t *testing.T) {
	seedJournal(t)
	journalFlags.class = "sample"
	journalFlags.since = "1h"
	outputFormat = "json"

	var buf bytes.Buffer
	if err := queryJournal(context.Background(), &buf, now); err != nil {
		t.Fatalf("queryJournal() error = %v", err)
	}

	var entries []journal.Entry
	if err := json.Unmarshal(buf.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Retries != 2 || entries[0].RunID != "run-1" {
		t.Errorf("unexpected entries %+v", entries)
	}
}

func TestQueryJournal_EmptyJSON(t *testing.T) {
	seedJournal(t)
	journalFlags.class = "nope"
	outputFormat = "json"

	var buf bytes.Buffer
	if err := queryJournal(context.Background(), &buf, now); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("expected empty JSON array, got %q", buf.String())
	}
}

func TestSummarizeJournal(t *testing.T) {
	seedJournal(t)
	outputFormat = "csv"

	var buf bytes.Buffer
	if err := summarizeJournal(context.Background(), &buf, now); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[2], "sample,2,1,2s,2s,") {
		t.Errorf("unexpected sample row %q", lines[2])
	}
}

func TestPruneJournal(t *testing.T) {
	path := seedJournal(t)

	var buf bytes.Buffer
	if err := pruneJournal(context.Background(), &buf, now); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Deleted 1 admissions") {
		t.Errorf("retention of 1h should prune one entry, got %q", buf.String())
	}

	journalFlags.path = path
	journalFlags.olderThan = "5m"
	buf.Reset()
	if err := pruneJournal(context.Background(), &buf, now); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Deleted 2 admissions") {
		t.Errorf("--older-than 5m should prune the rest, got %q", buf.String())
	}
}

func TestJournalCommands_BadFlags(t *testing.T) {
	seedJournal(t)
	journalFlags.since = "soon"

	err := queryJournal(context.Background(), &bytes.Buffer{}, now)
	if cli.ExitCode(err) != cli.ExitUsage {
		t.Errorf("expected usage error, got %v", err)
	}
}
