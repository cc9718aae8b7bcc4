package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// PaymentMetrics counts payment dispatch attempts and reconciliation transitions.
type PaymentMetrics struct {
	dispatch  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	reconcile *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	dispatch := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_dispatch_total",
		Help: "Payment dispatch attempts by method and outcome.",
	}, []string{"method", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_dispatch_duration_seconds",
		Help:    "Time spent in a payment adapter.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
	reconcile := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_reconcile_total",
		Help: "Payment status transitions applied to orders.",
	}, []string{"status"})
	reg.MustRegister(dispatch, latency, reconcile)
	return &PaymentMetrics{
		dispatch:  dispatch,
		latency:   latency,
		reconcile: reconcile,
	}
}

// ObserveDispatch records one adapter call.
func (p *PaymentMetrics) ObserveDispatch(method string, err error, duration time.Duration) {
	if p == nil || p.dispatch == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	p.dispatch.WithLabelValues(normalizeLabel(method), outcome).Inc()
	p.latency.WithLabelValues(normalizeLabel(method)).Observe(duration.Seconds())
}

// IncReconcile counts a payment status transition.
func (p *PaymentMetrics) IncReconcile(status string) {
	if p == nil || p.reconcile == nil {
		return
	}
	p.reconcile.WithLabelValues(normalizeLabel(status)).Inc()
}
