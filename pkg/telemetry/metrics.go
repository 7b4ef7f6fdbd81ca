// Copyright 2025 BPI Labs

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the module-wide Prometheus registry. One instance is
// constructed at node startup and threaded into every subsystem that
// reports counters or latencies; components never register their own
// collectors directly against the default registry.
type Metrics struct {
	registry *prometheus.Registry

	ReceiptsAggregated    prometheus.Counter
	StepVerifyFailures    prometheus.Counter
	ConsensusRounds       prometheus.Counter
	ConsensusViewChanges  prometheus.Counter
	ConsensusStalled      prometheus.Gauge
	AnchorSubmissions     *prometheus.CounterVec
	PoEIndex              prometheus.Gauge
	EconomyMintedNEX      prometheus.Counter
	EconomyBurnedFLX      prometheus.Counter
	SettlementTransitions *prometheus.CounterVec
	SettlementLatency     prometheus.Histogram
	PartnerNotifyAttempts *prometheus.CounterVec
	PartnerDegraded       prometheus.Gauge
}

// NewMetrics constructs a fresh registry with every collector
// pre-registered, so a nil check is never needed at a call site.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		ReceiptsAggregated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bpci", Subsystem: "receipt", Name: "aggregated_total",
			Help: "Total step-receipts folded into an aggregated transaction.",
		}),
		StepVerifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bpci", Subsystem: "receipt", Name: "verify_failures_total",
			Help: "Total step-receipt chain verification failures.",
		}),
		ConsensusRounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bpci", Subsystem: "consensus", Name: "rounds_total",
			Help: "Total consensus rounds started.",
		}),
		ConsensusViewChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bpci", Subsystem: "consensus", Name: "view_changes_total",
			Help: "Total view-change events triggered by a stalled leader.",
		}),
		ConsensusStalled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bpci", Subsystem: "consensus", Name: "stalled",
			Help: "1 if the health monitor currently considers consensus stalled, else 0.",
		}),
		AnchorSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bpci", Subsystem: "ledger", Name: "anchor_submissions_total",
			Help: "Anchor submissions by outcome (ok, retry, failed).",
		}, []string{"outcome"}),
		PoEIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bpci", Subsystem: "economy", Name: "poe_index",
			Help: "Most recently computed Proof-of-Economic-Activity index.",
		}),
		EconomyMintedNEX: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bpci", Subsystem: "economy", Name: "nex_minted_total",
			Help: "Total NEX minted across all epochs.",
		}),
		EconomyBurnedFLX: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bpci", Subsystem: "economy", Name: "flx_burned_total",
			Help: "Total FLX burned across all epochs.",
		}),
		SettlementTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bpci", Subsystem: "bankmesh", Name: "settlement_transitions_total",
			Help: "Settlement phase transitions by destination phase.",
		}, []string{"phase"}),
		SettlementLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bpci", Subsystem: "bankmesh", Name: "settlement_latency_seconds",
			Help:    "Time from settlement initiation to completion.",
			Buckets: prometheus.DefBuckets,
		}),
		PartnerNotifyAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bpci", Subsystem: "partner", Name: "notify_attempts_total",
			Help: "Partner-chain notify attempts by outcome (ack, retry, degraded).",
		}, []string{"outcome"}),
		PartnerDegraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bpci", Subsystem: "partner", Name: "degraded_chains",
			Help: "Count of partner chains currently marked degraded.",
		}),
	}

	reg.MustRegister(
		m.ReceiptsAggregated,
		m.StepVerifyFailures,
		m.ConsensusRounds,
		m.ConsensusViewChanges,
		m.ConsensusStalled,
		m.AnchorSubmissions,
		m.PoEIndex,
		m.EconomyMintedNEX,
		m.EconomyBurnedFLX,
		m.SettlementTransitions,
		m.SettlementLatency,
		m.PartnerNotifyAttempts,
		m.PartnerDegraded,
	)
	return m
}

// Handler returns the HTTP handler mounted at /metrics; cmd/bpci-node
// serves it on the config.Config.HealthAddr listener next to /healthz.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
