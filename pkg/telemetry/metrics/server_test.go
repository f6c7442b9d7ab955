package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mercator-hq/throttle/pkg/config"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(reg *prometheus.Registry) *Server {
	return NewServer(&config.MetricsConfig{
		Enabled:       true,
		ListenAddress: "127.0.0.1:0",
		Path:          "/metrics",
	}, reg, quietLogger())
}

func TestServer_ServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "throttle_admissions_total",
		Help: "test counter",
	}).Add(3)

	ts := httptest.NewServer(newTestServer(reg).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "throttle_admissions_total 3") {
		t.Errorf("counter missing from exposition:\n%s", body)
	}
}

func TestNewRegistry_IncludesRuntimeCollectors(t *testing.T) {
	families, err := NewRegistry().Gather()
	if err != nil {
		t.Fatal(err)
	}

	found := false
	for _, mf := range families {
		if mf.GetName() == "go_goroutines" {
			found = true
		}
	}
	if !found {
		t.Error("expected go_goroutines from the Go collector")
	}
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(prometheus.NewRegistry())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	tests := []struct {
		name       string
		check      CheckFunc
		path       string
		wantCode   int
		wantStatus string
	}{
		{name: "liveness", path: "/healthz", wantCode: http.StatusOK, wantStatus: "ok"},
		{name: "ready without checks", path: "/readyz", wantCode: http.StatusOK, wantStatus: "ready"},
		{
			name:       "ready with passing check",
			check:      func(context.Context) error { return nil },
			path:       "/readyz",
			wantCode:   http.StatusOK,
			wantStatus: "ready",
		},
		{
			name:       "degraded with failing check",
			check:      func(context.Context) error { return errors.New("journal closed") },
			path:       "/readyz",
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.check != nil {
				s.RegisterCheck("journal", tt.check)
			}

			resp, err := http.Get(ts.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantCode {
				t.Errorf("status code = %d, want %d", resp.StatusCode, tt.wantCode)
			}

			var status HealthStatus
			if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
				t.Fatal(err)
			}
			if status.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status.Status, tt.wantStatus)
			}
		})
	}
}

func TestServer_CheckTimeout(t *testing.T) {
	s := newTestServer(prometheus.NewRegistry())
	s.timeout = 20 * time.Millisecond
	s.RegisterCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return nil
	})

	status := s.CheckReadiness(context.Background())
	if status.Status != "degraded" || status.Checks["slow"].Message != "health check timeout" {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	ts := httptest.NewServer(newTestServer(prometheus.NewRegistry()).Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/healthz", "text/plain", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestServer_StartShutdown(t *testing.T) {
	s := newTestServer(nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(); err == nil {
		t.Error("second Start() should fail")
	}

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if names := s.CheckNames(); len(names) != 0 {
		t.Errorf("CheckNames() = %v", names)
	}
}
