package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

// fakeSite serves a small widget collection and counts requests.
type fakeSite struct {
	*httptest.Server
	hits atomic.Int64
}

func newFakeSite(t *testing.T) *fakeSite {
	t.Helper()
	site := &fakeSite{}
	mux := http.NewServeMux()
	mux.HandleFunc("/widgets.json", func(w http.ResponseWriter, r *http.Request) {
		site.hits.Add(1)
		fmt.Fprint(w, `[{"id":1},{"id":2}]`)
	})
	mux.HandleFunc("/widgets/7.json", func(w http.ResponseWriter, r *http.Request) {
		site.hits.Add(1)
		fmt.Fprint(w, `{"id":7}`)
	})
	mux.HandleFunc("/sprockets.json", func(w http.ResponseWriter, r *http.Request) {
		site.hits.Add(1)
		fmt.Fprint(w, `[]`)
	})
	site.Server = httptest.NewServer(mux)
	t.Cleanup(site.Close)
	return site
}

// writeConfig writes a config for site to a temp dir, points the global
// flags at it and returns the journal path.
func writeConfig(t *testing.T, site string, journalEnabled bool) string {
	t.Helper()
	dir := t.TempDir()
	journalPath := filepath.Join(dir, "journal.db")

	data := fmt.Sprintf(`
telemetry:
  logging:
    level: error
journal:
  enabled: %t
  path: %s
  retention: 1h
classes:
  - name: sample
    site: %s
    path: /widgets.json
    throttle:
      window_duration: 1h
      request_limit: 100
      retry_delay: 1s
  - name: sub_sample
    extends: sample
    path: /sprockets.json
  - name: plain
    site: %s
    path: /widgets.json
`, journalEnabled, journalPath, site, site)

	path := filepath.Join(dir, "throttle.yaml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	resetFlags()
	cfgFile = path
	t.Cleanup(resetFlags)
	return journalPath
}

func resetFlags() {
	cfgFile = "throttle.yaml"
	verbose = false
	outputFormat = "text"
	runFlags.class = ""
	runFlags.id = ""
	runFlags.count = 1
	runFlags.concurrency = 1
	runFlags.watch = false
	runFlags.progress = false
	journalFlags.path = ""
	journalFlags.class = ""
	journalFlags.runID = ""
	journalFlags.since = ""
	journalFlags.until = ""
	journalFlags.limit = 100
	journalFlags.olderThan = ""
}
