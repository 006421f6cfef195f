// Package metrics provides the observability hooks for registry operations.
//
// Components receive a Recorder through dependency injection. NoopRecorder is
// the default and does nothing; PrometheusRecorder forwards to a Prometheus
// registry which HTTPHandler exposes for scraping.
//
//	reg := prometheus.NewRegistry()
//	recorder := metrics.NewPrometheusRecorder(reg)
//	registry := escrow.NewRegistry(store, escrow.WithRecorder(recorder))
package metrics
