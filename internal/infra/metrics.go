package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight ledger observability.
// Uses atomic operations for thread-safety; exported to Prometheus by RegisterMetrics.
type Metrics struct {
	// Counters
	auctionsStarted atomic.Uint64
	auctionsEnded   atomic.Uint64
	bidsAccepted    atomic.Uint64
	bidsRejected    atomic.Uint64
	tallyMismatches atomic.Uint64
	errorsTotal     atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	liveClients atomic.Int32
}

// GlobalMetrics is the process-wide metrics instance.
var GlobalMetrics = &Metrics{}

// RecordLatency records the duration of one ledger operation.
func (m *Metrics) RecordLatency(d time.Duration) {
	m.latencySumNs.Add(d.Nanoseconds())
	m.latencyCount.Add(1)
}

// RecordAuctionStarted counts a successful start.
func (m *Metrics) RecordAuctionStarted() {
	m.auctionsStarted.Add(1)
}

// RecordAuctionEnded counts a successful end.
func (m *Metrics) RecordAuctionEnded() {
	m.auctionsEnded.Add(1)
}

// RecordBidAccepted counts a durably applied bid.
func (m *Metrics) RecordBidAccepted() {
	m.bidsAccepted.Add(1)
}

// RecordBidRejected counts a bid that arrived with no active auction.
func (m *Metrics) RecordBidRejected() {
	m.bidsRejected.Add(1)
}

// RecordTallyMismatch counts an end event that disagreed with the ledger's history.
func (m *Metrics) RecordTallyMismatch() {
	m.tallyMismatches.Add(1)
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() {
	m.errorsTotal.Add(1)
}

// IncrementClients increments connected live-view clients by 1.
func (m *Metrics) IncrementClients() {
	m.liveClients.Add(1)
}

// DecrementClients decrements connected live-view clients by 1.
func (m *Metrics) DecrementClients() {
	m.liveClients.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	AuctionsStarted uint64
	AuctionsEnded   uint64
	BidsAccepted    uint64
	BidsRejected    uint64
	TallyMismatches uint64
	ErrorsTotal     uint64
	AvgLatencyNs    int64
	LiveClients     int32
	Timestamp       time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		AuctionsStarted: m.auctionsStarted.Load(),
		AuctionsEnded:   m.auctionsEnded.Load(),
		BidsAccepted:    m.bidsAccepted.Load(),
		BidsRejected:    m.bidsRejected.Load(),
		TallyMismatches: m.tallyMismatches.Load(),
		ErrorsTotal:     m.errorsTotal.Load(),
		AvgLatencyNs:    avgLatency,
		LiveClients:     m.liveClients.Load(),
		Timestamp:       time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.auctionsStarted.Store(0)
	m.auctionsEnded.Store(0)
	m.bidsAccepted.Store(0)
	m.bidsRejected.Store(0)
	m.tallyMismatches.Store(0)
	m.errorsTotal.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.liveClients.Store(0)
}
