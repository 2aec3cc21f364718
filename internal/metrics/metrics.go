// Package metrics exposes Prometheus counters for freeze operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CommandsTotal counts parsed commands by keyword and outcome.
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "freeze",
			Name:      "commands_total",
			Help:      "Freeze commands processed, by command and outcome",
		},
		[]string{"command", "outcome"},
	)

	// TransitionsTotal counts freeze state-machine transitions.
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "freeze",
			Name:      "transitions_total",
			Help:      "Freeze record transitions, by transition kind",
		},
		[]string{"transition"},
	)

	// MergeSignalsTotal counts merge-block signals pushed to pull requests.
	MergeSignalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "freeze",
			Name:      "merge_signals_total",
			Help:      "Merge signals pushed during reconciliation, by signal",
		},
		[]string{"signal"},
	)

	// ReconcileFailuresTotal counts per-PR reconciliation failures.
	ReconcileFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "freeze",
			Name:      "reconcile_failures_total",
			Help:      "Pull requests whose merge signal could not be updated",
		},
	)
)
