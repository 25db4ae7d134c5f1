package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "a2f"

var (
	// PollCycles counts round-window polling cycles.
	PollCycles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "poll_cycles_total",
		Help:      "Round-window polling cycles executed.",
	})

	// PollOutcomes counts finished polling loops by outcome (match, timeout, cancelled).
	PollOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "poll_outcomes_total",
		Help:      "Finished polling loops by outcome.",
	}, []string{"outcome"})

	// ActivePolls tracks polling loops currently running.
	ActivePolls = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_polls",
		Help:      "Polling loops currently waiting on the ledger.",
	})

	// ChannelOutcomes counts control channel close codes.
	ChannelOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "channel_outcomes_total",
		Help:      "Control channel outcomes by code.",
	}, []string{"code"})

	// Submissions counts ledger submissions by kind and result.
	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_submissions_total",
		Help:      "Ledger submissions by kind and result.",
	}, []string{"kind", "result"})
)
