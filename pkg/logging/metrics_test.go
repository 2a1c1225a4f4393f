package logging

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetricsCollector_Disabled(t *testing.T) {
	config := DefaultMetricsConfig()
	config.Enabled = false

	mc := NewMetricsCollector(config)
	if mc != nil {
		t.Fatal("expected nil collector when disabled")
	}

	// nil collector must be usable
	mc.StreamStarted()
	mc.StreamFinished(OutcomeCompleted, time.Second)
	mc.RecordItem("entity")
	mc.RecordError("X", "y")
	mc.RecordSourceQuery("memory", "items", time.Millisecond)
	if mc.Registry() != nil {
		t.Error("expected nil registry")
	}

	rec := httptest.NewRecorder()
	mc.GetHTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 from nil collector, got %d", rec.Code)
	}
}

func TestMetricsCollector_Streams(t *testing.T) {
	config := DefaultMetricsConfig()
	config.EnableRuntime = false
	mc := NewMetricsCollector(config)

	mc.StreamStarted()
	mc.StreamStarted()
	if got := testutil.ToFloat64(mc.activeStreams); got != 2 {
		t.Errorf("expected 2 active streams, got %v", got)
	}

	mc.RecordItem("entity")
	mc.RecordItem("entity")
	mc.RecordItem("log")
	mc.StreamFinished(OutcomeCompleted, 10*time.Millisecond)
	mc.StreamFinished(OutcomeFailed, 20*time.Millisecond)

	if got := testutil.ToFloat64(mc.activeStreams); got != 0 {
		t.Errorf("expected no active streams, got %v", got)
	}
	if got := testutil.ToFloat64(mc.streamsStarted); got != 2 {
		t.Errorf("expected 2 started streams, got %v", got)
	}
	if got := testutil.ToFloat64(mc.itemsEmitted.WithLabelValues("entity")); got != 2 {
		t.Errorf("expected 2 entity items, got %v", got)
	}
	if got := testutil.ToFloat64(mc.streamsFinished.WithLabelValues(OutcomeFailed)); got != 1 {
		t.Errorf("expected 1 failed stream, got %v", got)
	}
}

func TestMetricsCollector_HTTPHandler(t *testing.T) {
	mc := NewMetricsCollector(DefaultMetricsConfig())
	mc.StreamStarted()

	rec := httptest.NewRecorder()
	mc.GetHTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "custom_gateway_core_import_streams_started_total 1") {
		t.Errorf("metrics output missing stream counter:\n%s", body)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("expected runtime metrics when enabled")
	}
}
