package infra

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "auction"

// RegisterMetrics exposes m through reg. Values are read from the atomics on scrape.
func RegisterMetrics(reg prometheus.Registerer, m *Metrics) error {
	counter := func(name, help string, fn func() uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(fn()) })
	}

	collectors := []prometheus.Collector{
		counter("started_total", "Auctions started.", m.auctionsStarted.Load),
		counter("ended_total", "Auctions ended.", m.auctionsEnded.Load),
		counter("bids_accepted_total", "Bids durably applied.", m.bidsAccepted.Load),
		counter("bids_rejected_total", "Bids received with no active auction.", m.bidsRejected.Load),
		counter("final_tally_mismatches_total", "End events whose tally disagreed with the bid history.", m.tallyMismatches.Load),
		counter("errors_total", "Ledger operations that failed.", m.errorsTotal.Load),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "ledger_latency_avg_seconds",
			Help:      "Average ledger operation latency.",
		}, func() float64 {
			return float64(m.Snapshot().AvgLatencyNs) / 1e9
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "live_clients",
			Help:      "Connected live-view websocket clients.",
		}, func() float64 { return float64(m.liveClients.Load()) }),
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
