package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MarketMetrics tracks marketplace trade and ledger activity.
type MarketMetrics struct {
	ordersSettled     *prometheus.CounterVec
	escrowResolutions *prometheus.CounterVec
	payoutFailures    *prometheus.CounterVec
	sweepExpired      *prometheus.CounterVec
	settlementLatency prometheus.Histogram
}

var (
	marketOnce     sync.Once
	marketRegistry *MarketMetrics
)

// Market returns the lazily-initialised marketplace metrics registry.
func Market() *MarketMetrics {
	marketOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			ordersSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "market",
				Name:      "orders_settled_total",
				Help:      "Count of settled orders segmented by settlement path.",
			}, []string{"path"}),
			escrowResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "market",
				Name:      "escrow_resolutions_total",
				Help:      "Count of escrow resolutions segmented by terminal status.",
			}, []string{"status"}),
			payoutFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "market",
				Name:      "payout_failures_total",
				Help:      "Count of failed payout attempts segmented by leg.",
			}, []string{"leg"}),
			sweepExpired: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "market",
				Name:      "sweep_expired_total",
				Help:      "Records expired by the sweep loop segmented by kind.",
			}, []string{"kind"}),
			settlementLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "market",
				Name:      "settlement_duration_seconds",
				Help:      "Latency distribution of settlement operations.",
				Buckets:   prometheus.DefBuckets,
			}),
		}
		prometheus.MustRegister(
			marketRegistry.ordersSettled,
			marketRegistry.escrowResolutions,
			marketRegistry.payoutFailures,
			marketRegistry.sweepExpired,
			marketRegistry.settlementLatency,
		)
	})
	return marketRegistry
}

// ObserveOrderSettled records a settled order for the given path, either
// "buy_now" or "accept_offer".
func (m *MarketMetrics) ObserveOrderSettled(path string) {
	if m == nil {
		return
	}
	if path == "" {
		path = "unknown"
	}
	m.ordersSettled.WithLabelValues(path).Inc()
}

// ObserveEscrowResolution records an escrow reaching a terminal status.
func (m *MarketMetrics) ObserveEscrowResolution(status string) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.escrowResolutions.WithLabelValues(status).Inc()
}

// ObservePayoutFailure records a failed payout attempt for the "seller" or
// "royalty" leg.
func (m *MarketMetrics) ObservePayoutFailure(leg string) {
	if m == nil {
		return
	}
	if leg == "" {
		leg = "unknown"
	}
	m.payoutFailures.WithLabelValues(leg).Inc()
}

// ObserveSweepExpired records records expired by the sweep loop, kind being
// "listing" or "offer".
func (m *MarketMetrics) ObserveSweepExpired(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.sweepExpired.WithLabelValues(kind).Add(float64(n))
}

// ObserveSettlementDuration records the latency of one settlement operation.
func (m *MarketMetrics) ObserveSettlementDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.settlementLatency.Observe(d.Seconds())
}
