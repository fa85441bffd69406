// Package monitor tracks relay counters exposed over the API.
package monitor

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks alert and order counters since process start.
type Metrics struct {
	payloadsReceived uint64
	alertsDispatched uint64
	ordersSubmitted  uint64

	mu       sync.RWMutex
	failures map[string]uint64 // failure kind -> count

	execCount uint64
	execTotal time.Duration
	execMax   time.Duration

	started time.Time
}

// New creates a metrics instance.
func New() *Metrics {
	return &Metrics{
		failures: make(map[string]uint64),
		started:  time.Now(),
	}
}

// RecordPayload counts one inbound webhook payload.
func (m *Metrics) RecordPayload() { atomic.AddUint64(&m.payloadsReceived, 1) }

// RecordAlert counts one dispatched alert line.
func (m *Metrics) RecordAlert() { atomic.AddUint64(&m.alertsDispatched, 1) }

// RecordOrder counts one successfully submitted order.
func (m *Metrics) RecordOrder() { atomic.AddUint64(&m.ordersSubmitted, 1) }

// RecordFailure counts one failed alert by failure kind.
func (m *Metrics) RecordFailure(kind string) {
	m.mu.Lock()
	m.failures[kind]++
	m.mu.Unlock()
}

// RecordExecution tracks how long one alert took end to end.
func (m *Metrics) RecordExecution(d time.Duration) {
	m.mu.Lock()
	m.execCount++
	m.execTotal += d
	if d > m.execMax {
		m.execMax = d
	}
	m.mu.Unlock()
}

// Snapshot is a point-in-time view for the metrics endpoint.
type Snapshot struct {
	PayloadsReceived uint64            `json:"payloads_received"`
	AlertsDispatched uint64            `json:"alerts_dispatched"`
	OrdersSubmitted  uint64            `json:"orders_submitted"`
	Failures         map[string]uint64 `json:"failures"`
	AvgExecutionMs   float64           `json:"avg_execution_ms"`
	MaxExecutionMs   float64           `json:"max_execution_ms"`
	UptimeSeconds    float64           `json:"uptime_seconds"`
}

// Stats returns the current counters.
func (m *Metrics) Stats() Snapshot {
	m.mu.RLock()
	failures := make(map[string]uint64, len(m.failures))
	for k, v := range m.failures {
		failures[k] = v
	}
	var avgMs float64
	if m.execCount > 0 {
		avgMs = float64(m.execTotal.Milliseconds()) / float64(m.execCount)
	}
	maxMs := float64(m.execMax.Milliseconds())
	m.mu.RUnlock()

	return Snapshot{
		PayloadsReceived: atomic.LoadUint64(&m.payloadsReceived),
		AlertsDispatched: atomic.LoadUint64(&m.alertsDispatched),
		OrdersSubmitted:  atomic.LoadUint64(&m.ordersSubmitted),
		Failures:         failures,
		AvgExecutionMs:   avgMs,
		MaxExecutionMs:   maxMs,
		UptimeSeconds:    time.Since(m.started).Seconds(),
	}
}
