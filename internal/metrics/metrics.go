// Package metrics registers the Prometheus collectors shared by the tracker,
// the mirror client and the collector service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VisitsStarted counts visits opened, labeled by guard decision
	VisitsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vital_visits_started_total",
			Help: "Guest visits started, by reason (created, page_visit, inactivity)",
		},
		[]string{"reason"},
	)

	InteractionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vital_interactions_recorded_total",
			Help: "Interactions recorded by type",
		},
		[]string{"type"},
	)

	// MirrorWrites counts mirror outcomes: success, failure, rejected
	MirrorWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vital_mirror_writes_total",
			Help: "Guest visit mirror writes by result",
		},
		[]string{"result"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vital_store_errors_total",
			Help: "Swallowed key-value store errors by operation",
		},
		[]string{"op"},
	)

	CollectorGuestVisits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vital_collector_guest_visits_total",
			Help: "Guest visits accepted by the collector, by tenant database",
		},
		[]string{"tenant"},
	)
)
