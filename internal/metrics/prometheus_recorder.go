package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "taskescrow"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	opDuration       *prom.HistogramVec
	opResults        *prom.CounterVec
	records          *prom.GaugeVec
	observerFailures *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg.
// A nil reg gets a private registry.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		opDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of registry operations",
			Buckets:   prom.DefBuckets,
		}, []string{"operation"}),
		opResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "operation_results_total",
			Help:      "Registry operation results by outcome",
		}, []string{"operation", "result"}),
		records: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "records",
			Help:      "Task escrow records by state, refreshed periodically",
		}, []string{"state"}),
		observerFailures: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "observer_failures_total",
			Help:      "Post-commit observer notifications that failed",
		}, []string{"observer"}),
	}
	reg.MustRegister(pr.opDuration, pr.opResults, pr.records, pr.observerFailures)
	return pr
}

func (p *PrometheusRecorder) ObserveOperation(op string, d time.Duration) {
	if p == nil || p.opDuration == nil {
		return
	}
	p.opDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncOperationResult(op string, result ResultLabel) {
	if p == nil || p.opResults == nil {
		return
	}
	p.opResults.WithLabelValues(op, string(result)).Inc()
}

func (p *PrometheusRecorder) SetRecords(state string, n int) {
	if p == nil || p.records == nil {
		return
	}
	p.records.WithLabelValues(state).Set(float64(n))
}

func (p *PrometheusRecorder) IncObserverFailure(observer string) {
	if p == nil || p.observerFailures == nil {
		return
	}
	p.observerFailures.WithLabelValues(observer).Inc()
}
