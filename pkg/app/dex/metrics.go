package dex

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is registered on the registry handed to NewApp so that several
// apps (tests) never collide on the default registry.
type Metrics struct {
	submissions *prometheus.CounterVec
	fills       *prometheus.CounterVec
	volume      *prometheus.CounterVec
	resting     *prometheus.GaugeVec
	lastSeq     prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		submissions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "custodex",
				Subsystem: "app",
				Name:      "submissions_total",
				Help:      "Submissions by command type and outcome",
			},
			[]string{"type", "outcome"},
		),
		fills: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "custodex",
				Subsystem: "engine",
				Name:      "fills_total",
				Help:      "Market order fills per asset",
			},
			[]string{"ticker"},
		),
		volume: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "custodex",
				Subsystem: "engine",
				Name:      "traded_amount_total",
				Help:      "Traded amount per asset in minimal units (lossy above 2^53)",
			},
			[]string{"ticker"},
		),
		resting: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "custodex",
				Subsystem: "engine",
				Name:      "resting_orders",
				Help:      "Resting limit orders per asset and side",
			},
			[]string{"ticker", "side"},
		),
		lastSeq: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "custodex",
				Subsystem: "journal",
				Name:      "last_seq",
				Help:      "Sequence number of the last journaled submission",
			},
		),
	}
}
