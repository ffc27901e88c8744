// Metrics provide real-time operational visibility for production monitoring.
// Thread-safe atomic operations ensure accurate counters under high concurrency
// for capacity planning, alerting, and operational insights. The OK/FAIL/ERROR
// counters are the structured-logging equivalent of the STATUS command found
// in _examples/yglcode-code_challenges/index-server/index_server.go, exposed
// here on the admin HTTP server instead of a fourth wire command (spec.md's
// request grammar names exactly INDEX/REMOVE/QUERY).
package server

import (
	"sync/atomic"
	"time"
)

// Metrics contains runtime statistics using atomic operations for thread safety.
type Metrics struct {
	ConnectionsTotal  int64
	CommandsProcessed int64
	OKCount           int64
	FailCount         int64
	ErrorCount        int64
	PackagesIndexed   int64
	StartTime         time.Time
}

// MetricsSnapshot represents a point-in-time view of server metrics for consistent reporting.
type MetricsSnapshot struct {
	ConnectionsTotal  int64
	CommandsProcessed int64
	OKCount           int64
	FailCount         int64
	ErrorCount        int64
	PackagesIndexed   int64
	Uptime            time.Duration
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime: time.Now(),
	}
}

func (m *Metrics) IncrementConnections() { atomic.AddInt64(&m.ConnectionsTotal, 1) }
func (m *Metrics) IncrementCommands()    { atomic.AddInt64(&m.CommandsProcessed, 1) }
func (m *Metrics) IncrementOK()          { atomic.AddInt64(&m.OKCount, 1) }
func (m *Metrics) IncrementFail()        { atomic.AddInt64(&m.FailCount, 1) }
func (m *Metrics) IncrementErrors()      { atomic.AddInt64(&m.ErrorCount, 1) }
func (m *Metrics) IncrementPackages()    { atomic.AddInt64(&m.PackagesIndexed, 1) }

// GetSnapshot returns a consistent point-in-time view of current metrics
func (m *Metrics) GetSnapshot() MetricsSnapshot {
	return MetricsSnapshot{
		ConnectionsTotal:  atomic.LoadInt64(&m.ConnectionsTotal),
		CommandsProcessed: atomic.LoadInt64(&m.CommandsProcessed),
		OKCount:           atomic.LoadInt64(&m.OKCount),
		FailCount:         atomic.LoadInt64(&m.FailCount),
		ErrorCount:        atomic.LoadInt64(&m.ErrorCount),
		PackagesIndexed:   atomic.LoadInt64(&m.PackagesIndexed),
		Uptime:            time.Since(m.StartTime),
	}
}
