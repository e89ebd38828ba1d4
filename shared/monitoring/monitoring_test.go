package monitoring

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMonitorHealth(t *testing.T) {
	m := NewMonitor()
	if !m.IsHealthy() || m.GetStatusSummary() != "No runs yet" {
		t.Fatalf("fresh monitor: healthy=%v summary=%q", m.IsHealthy(), m.GetStatusSummary())
	}

	m.RecordCriticalFailure(errors.New("db down"), time.Second)
	if m.IsHealthy() {
		t.Error("healthy after critical failure")
	}
	if !strings.Contains(m.GetStatusSummary(), "db down") {
		t.Errorf("summary = %q", m.GetStatusSummary())
	}

	m.RecordPartialFailure(errors.New("one transcript failed"), time.Second)
	if m.IsHealthy() {
		t.Error("partial failure changed health status")
	}

	m.RecordSuccess("backfilled 3 transcripts", time.Second)
	if !m.IsHealthy() {
		t.Error("unhealthy after success")
	}
	if !strings.Contains(m.GetStatusSummary(), "(2 runs)") {
		t.Errorf("summary = %q", m.GetStatusSummary())
	}
}

func TestHealthServerHandler(t *testing.T) {
	m := NewMonitor()
	h := NewHealthServer(m, "").Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "OK") {
		t.Errorf("/health = %d %q", rec.Code, rec.Body.String())
	}

	m.RecordCriticalFailure(errors.New("boom"), 0)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/health after failure = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/status = %d", rec.Code)
	}
	var status Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode /status: %v", err)
	}
	if status.Healthy || status.Runs != 1 || status.LastSummary != "boom" {
		t.Errorf("/status = %+v", status)
	}
}

func TestMonitorSnapshot(t *testing.T) {
	m := NewMonitor()
	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return at }

	m.RecordSuccess("3 transcripts", 1500*time.Millisecond)
	m.RecordPartialFailure(errors.New("metadata failed for 1"), 0)

	got := m.Snapshot()
	want := Status{
		Healthy:         true,
		Runs:            1,
		PartialFailures: 1,
		LastRun:         at,
		LastDuration:    "1.5s",
		LastSummary:     "3 transcripts",
		LastWarning:     "metadata failed for 1",
	}
	if got != want {
		t.Errorf("Snapshot() = %+v, want %+v", got, want)
	}
}
