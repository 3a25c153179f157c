package infra

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RecordLatency(t *testing.T) {
	m := &Metrics{}

	m.RecordLatency(1000)
	m.RecordLatency(2000)
	m.RecordLatency(3000)

	snap := m.Snapshot()

	// Average latency: (1000 + 2000 + 3000) / 3 = 2000
	if snap.AvgLatencyNs != 2000 {
		t.Errorf("Expected avg latency 2000, got %d", snap.AvgLatencyNs)
	}
}

func TestMetrics_Counters(t *testing.T) {
	m := &Metrics{}

	m.RecordAuctionStarted()
	m.RecordBidAccepted()
	m.RecordBidAccepted()
	m.RecordBidRejected()
	m.RecordAuctionEnded()
	m.RecordTallyMismatch()

	snap := m.Snapshot()
	if snap.AuctionsStarted != 1 || snap.AuctionsEnded != 1 {
		t.Errorf("Expected 1 start and 1 end, got %+v", snap)
	}
	if snap.BidsAccepted != 2 || snap.BidsRejected != 1 {
		t.Errorf("Expected 2 accepted and 1 rejected, got %+v", snap)
	}
	if snap.TallyMismatches != 1 {
		t.Errorf("Expected 1 mismatch, got %d", snap.TallyMismatches)
	}
}

func TestMetrics_Clients(t *testing.T) {
	m := &Metrics{}

	m.IncrementClients()
	m.IncrementClients()
	m.IncrementClients()

	snap := m.Snapshot()
	if snap.LiveClients != 3 {
		t.Errorf("Expected 3 clients, got %d", snap.LiveClients)
	}

	m.DecrementClients()
	snap = m.Snapshot()
	if snap.LiveClients != 2 {
		t.Errorf("Expected 2 clients, got %d", snap.LiveClients)
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := &Metrics{}

	m.RecordBidAccepted()
	m.RecordError()
	m.IncrementClients()
	m.RecordLatency(time.Millisecond)

	m.Reset()
	snap := m.Snapshot()

	if snap.BidsAccepted != 0 {
		t.Error("Expected 0 bids after reset")
	}
	if snap.ErrorsTotal != 0 {
		t.Error("Expected 0 errors after reset")
	}
	if snap.LiveClients != 0 {
		t.Error("Expected 0 clients after reset")
	}
	if snap.AvgLatencyNs != 0 {
		t.Error("Expected 0 latency after reset")
	}
}

func TestRegisterMetrics(t *testing.T) {
	m := &Metrics{}
	reg := prometheus.NewRegistry()

	if err := RegisterMetrics(reg, m); err != nil {
		t.Fatalf("RegisterMetrics failed: %v", err)
	}

	m.RecordBidAccepted()
	m.RecordBidAccepted()

	expected := `
# HELP auction_bids_accepted_total Bids durably applied.
# TYPE auction_bids_accepted_total counter
auction_bids_accepted_total 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "auction_bids_accepted_total"); err != nil {
		t.Errorf("unexpected metric output: %v", err)
	}

	if err := RegisterMetrics(reg, m); err == nil {
		t.Error("registering twice should fail")
	}
}
