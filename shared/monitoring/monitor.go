package monitoring

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Status is a point-in-time view of a Monitor
type Status struct {
	Healthy         bool      `json:"healthy"`
	Runs            int       `json:"runs"`
	PartialFailures int       `json:"partial_failures"`
	LastRun         time.Time `json:"last_run,omitempty"`
	LastDuration    string    `json:"last_duration,omitempty"`
	LastSummary     string    `json:"last_summary,omitempty"`
	LastWarning     string    `json:"last_warning,omitempty"`
}

// Monitor records the outcome of scheduled runs for the health endpoints
type Monitor struct {
	mu     sync.RWMutex
	status Status
	now    func() time.Time
}

func NewMonitor() *Monitor {
	return &Monitor{
		status: Status{Healthy: true},
		now:    time.Now,
	}
}

func (m *Monitor) record(healthy bool, summary string, duration time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	at := m.now()
	m.status.Healthy = healthy
	m.status.Runs++
	m.status.LastRun = at
	m.status.LastDuration = duration.Round(time.Millisecond).String()
	m.status.LastSummary = summary
	return at
}

func (m *Monitor) RecordSuccess(summary string, duration time.Duration) {
	m.record(true, summary, duration)
	log.Printf("✅ Run completed successfully - %s (took %v)", summary, duration)
}

// RecordPartialFailure counts the warning without changing health status
func (m *Monitor) RecordPartialFailure(err error, duration time.Duration) {
	m.mu.Lock()
	m.status.PartialFailures++
	m.status.LastWarning = err.Error()
	m.mu.Unlock()

	log.Printf("⚠️  PARTIAL FAILURE: %s (Duration: %v)", err.Error(), duration)
}

func (m *Monitor) RecordCriticalFailure(err error, duration time.Duration) {
	at := m.record(false, err.Error(), duration)
	log.Printf("🚨 CRITICAL FAILURE: %s (Duration: %v)", err.Error(), duration)
	log.Printf("Failure occurred at: %s", at.Format("2006-01-02 15:04:05"))
}

// IsHealthy is true before the first run and after every successful one
func (m *Monitor) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Healthy
}

func (m *Monitor) Snapshot() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) GetStatusSummary() string {
	s := m.Snapshot()
	if s.Runs == 0 {
		return "No runs yet"
	}

	if s.Healthy {
		return fmt.Sprintf("✅ Last run: %s (%d runs) - %s", s.LastRun.Format("Jan 2 15:04"), s.Runs, s.LastSummary)
	}
	return fmt.Sprintf("❌ Last run failed: %s (%d runs) - %s", s.LastRun.Format("Jan 2 15:04"), s.Runs, s.LastSummary)
}
