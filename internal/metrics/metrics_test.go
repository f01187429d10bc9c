package metrics_test

import (
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"allsky/internal/metrics"
	"allsky/internal/stack"
)

var _ stack.Recorder = (*metrics.Metrics)(nil)

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("metrics handler returned %d", rec.Code)
	}
	return rec.Body.String()
}

func TestCountersRecord(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.ObserveBuild("video", metrics.ResultBuilt, 3*time.Second)
	m.ObserveBuild("video", metrics.ResultSkipped, 0)
	m.ObserveEncoder("ffmpeg", errors.New("exit 1"))
	m.ObserveRegistration("aligned")
	m.ObserveRegistration("aligned")
	m.IncLockContention()
	m.IncUpload("keogram")

	body := scrape(t, m)
	for _, want := range []string{
		`allsky_builds_total{kind="video",result="built"} 1`,
		`allsky_builds_total{kind="video",result="skipped"} 1`,
		`allsky_build_duration_seconds_count{kind="video"} 1`,
		`allsky_encoder_runs_total{result="failed",tool="ffmpeg"} 1`,
		`allsky_registrations_total{outcome="aligned"} 2`,
		`allsky_lock_contention_total 1`,
		`allsky_uploads_enqueued_total{kind="keogram"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, body)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *metrics.Metrics
	m.ObserveBuild("video", metrics.ResultFailed, time.Second)
	m.ObserveRegistration("no_model")
	m.SetBuilding(true)
	m.IncUpload("keogram")
	m.IncRequest("build")
}

func TestWriteTextfile(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	m.ObserveRegistration("no_model")

	path := filepath.Join(t.TempDir(), "allsky.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), `allsky_registrations_total{outcome="no_model"} 1`) {
		t.Fatalf("textfile missing registration counter:\n%s", data)
	}

	var unset *metrics.Metrics
	if err := unset.WriteTextfile(path); err == nil {
		t.Fatal("expected nil metrics to refuse writing")
	}
}
