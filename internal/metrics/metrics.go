// Package metrics provides Prometheus instrumentation for the rewards engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AllocationRuns counts allocation computations, partitioned by outcome.
	AllocationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewards_allocation_runs_total",
		Help: "Total allocation computations",
	}, []string{"outcome"}) // "ok", "empty", "error"

	// PayoutsPersisted counts payout rows written to the ledger, by source.
	PayoutsPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewards_payouts_persisted_total",
		Help: "Total payout rows persisted to the ledger",
	}, []string{"source"})

	// BatchesPersisted counts batches that reached the ledger.
	BatchesPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewards_batches_persisted_total",
		Help: "Total payment batches persisted",
	})

	// BatchesSkipped counts batches the operator declined.
	BatchesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewards_batches_skipped_total",
		Help: "Total payment batches skipped by the operator",
	})

	// PersistenceConflicts counts batches rejected by the idempotency key.
	PersistenceConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewards_persistence_conflicts_total",
		Help: "Batches rejected because a payout row already existed",
	})

	// RaffleWinners counts raffle winners drawn.
	RaffleWinners = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewards_raffle_winners_total",
		Help: "Total raffle winners drawn",
	})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
