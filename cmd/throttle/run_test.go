package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"

	"mercator-hq/throttle/pkg/cli"
	"mercator-hq/throttle/pkg/journal"
)

func newTestCommand() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	return cmd, &out
}

func TestRunRequests(t *testing.T) {
	site := newFakeSite(t)
	journalPath := writeConfig(t, site.URL, true)
	outputFormat = "json"
	runFlags.class = "sub_sample"
	runFlags.count = 6
	runFlags.concurrency = 3

	cmd, out := newTestCommand()
	if err := runRequests(cmd, nil); err != nil {
		t.Fatalf("runRequests() error = %v", err)
	}

	var result RunResult
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("invalid JSON output %q: %v", out.String(), err)
	}
	if result.Class != "sub_sample" || result.Owner != "sample" {
		t.Errorf("unexpected class/owner %q/%q", result.Class, result.Owner)
	}
	if result.Requests != 6 || result.Failed != 0 || result.Interrupted {
		t.Errorf("unexpected result %+v", result)
	}
	if result.HistorySize != 6 {
		t.Errorf("HistorySize = %d, want 6 admissions on the shared window", result.HistorySize)
	}
	if site.hits.Load() != 6 {
		t.Errorf("site saw %d requests, want 6", site.hits.Load())
	}

	j, err := journal.Open(journalPath)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	entries, err := j.Query(context.Background(), journal.Filter{RunID: result.RunID})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 6 {
		t.Fatalf("expected 6 journaled admissions, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Class != "sample" {
			t.Errorf("admission should be recorded on the resource root, got %q", e.Class)
		}
	}
}

func TestRunRequests_Element(t *testing.T) {
	site := newFakeSite(t)
	writeConfig(t, site.URL, false)
	runFlags.class = "sample"
	runFlags.id = "7"
	runFlags.count = 2

	cmd, out := newTestCommand()
	if err := runRequests(cmd, nil); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(out.Bytes(), []byte("requests")) {
		t.Errorf("expected text summary, got %q", out.String())
	}
	if site.hits.Load() != 2 {
		t.Errorf("site saw %d requests, want 2", site.hits.Load())
	}
}

func TestRunRequests_CountsFailures(t *testing.T) {
	site := newFakeSite(t)
	writeConfig(t, site.URL, false)
	outputFormat = "json"
	runFlags.class = "sample"
	runFlags.id = "missing"
	runFlags.count = 3

	cmd, out := newTestCommand()
	if err := runRequests(cmd, nil); err != nil {
		t.Fatal(err)
	}

	var result RunResult
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Requests != 3 || result.Failed != 3 {
		t.Errorf("expected 3 failed requests, got %+v", result)
	}
}

func TestRunRequests_UsageErrors(t *testing.T) {
	site := newFakeSite(t)
	writeConfig(t, site.URL, false)

	tests := []struct {
		name  string
		setup func()
	}{
		{name: "unknown class", setup: func() { runFlags.class = "nope" }},
		{name: "negative count", setup: func() { runFlags.class = "sample"; runFlags.count = -1 }},
		{name: "zero concurrency", setup: func() { runFlags.class = "sample"; runFlags.concurrency = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runFlags.count, runFlags.concurrency = 1, 1
			tt.setup()

			cmd, _ := newTestCommand()
			err := runRequests(cmd, nil)
			if cli.ExitCode(err) != cli.ExitUsage {
				t.Errorf("expected usage error, got %v", err)
			}
		})
	}
	if site.hits.Load() != 0 {
		t.Errorf("no requests should be sent, got %d", site.hits.Load())
	}
}
