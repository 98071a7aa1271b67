// Copyright 2025 Certen Protocol
//
// Process-wide metrics (spec §7 "Observable behavior"): proposals processed,
// fees earned per resource, account balance, and watcher backoff events.
// One registry-backed singleton, created at startup and borrowed by every
// task (spec §9 "Global singletons").

package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every counter/gauge the relayer's components report to.
type Metrics struct {
	ProposalsProcessed *prometheus.CounterVec
	FeesEarned         *prometheus.CounterVec
	AccountBalance     *prometheus.GaugeVec
	WatcherBackoffs    *prometheus.CounterVec
	HandlerFailures    *prometheus.CounterVec
	QueueDepth         *prometheus.GaugeVec
}

// New registers and returns the relayer's metric set against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProposalsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relayer",
			Name:      "proposals_processed_total",
			Help:      "Anchor update proposals dispatched to a signing backend.",
		}, []string{"resource_id"}),
		FeesEarned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relayer",
			Name:      "fees_earned_total",
			Help:      "Fee amount retained per resource id, in wrappedToken wei.",
		}, []string{"resource_id"}),
		AccountBalance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "relayer",
			Name:      "account_balance",
			Help:      "Relayer-controlled account balance, in native token wei.",
		}, []string{"chain_id", "address"}),
		WatcherBackoffs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relayer",
			Name:      "watcher_backoff_total",
			Help:      "Transient transport failures that triggered watcher backoff.",
		}, []string{"resource_id"}),
		HandlerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relayer",
			Name:      "handler_failures_total",
			Help:      "Non-fatal handler errors recorded and skipped during event dispatch.",
		}, []string{"resource_id"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "relayer",
			Name:      "queue_depth",
			Help:      "Number of items currently resident in a queue.",
		}, []string{"chain_id", "kind"}),
	}

	reg.MustRegister(
		m.ProposalsProcessed,
		m.FeesEarned,
		m.AccountBalance,
		m.WatcherBackoffs,
		m.HandlerFailures,
		m.QueueDepth,
	)
	return m
}
