// Package metrics exposes reconciliation counters to prometheus.
package metrics

import (
	"time"

	"copyinvest/src/model"
	"copyinvest/src/reconcile"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultSuccess = "success"
)

var (
	reconcileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "copyinvest_reconcile_total",
			Help: "Total number of user metrics reconciliations by result",
		},
		[]string{"result"},
	)

	reconcileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "copyinvest_reconcile_duration_seconds",
			Help:    "User metrics reconciliation duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		},
		[]string{"result"},
	)

	reconcileOpenPositions = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "copyinvest_reconcile_open_positions",
			Help:    "Open position count seen per successful reconciliation",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	lastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "copyinvest_reconcile_last_success_timestamp_seconds",
			Help: "Unix time of the last successful reconciliation",
		},
	)
)

// ReconcileObserver records every reconciliation outcome.
type ReconcileObserver struct{}

func (ReconcileObserver) Reconciled(m *model.UserMetrics, took time.Duration) {
	reconcileTotal.WithLabelValues(resultSuccess).Inc()
	reconcileDuration.WithLabelValues(resultSuccess).Observe(took.Seconds())
	reconcileOpenPositions.Observe(float64(m.OpenPositions))
	lastSuccess.Set(float64(m.UpdatedAt.Unix()))
}

func (ReconcileObserver) Failed(_ uuid.UUID, err *reconcile.Error, took time.Duration) {
	reconcileTotal.WithLabelValues(string(err.Kind)).Inc()
	reconcileDuration.WithLabelValues(string(err.Kind)).Observe(took.Seconds())
}
