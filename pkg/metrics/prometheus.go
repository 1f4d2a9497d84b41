// Package metrics wires the orchestrator's counters and gauges through
// OpenTelemetry, bridged to Prometheus for scraping — the same dual-registry
// shape as cmd/providers/metrics.go, kept here as a reusable
// package instead of command-local code; the `start` subcommand and the
// orchestrator tests both use it.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	prometheusmetrics "github.com/deathowl/go-metrics-prometheus"
	gometrics "github.com/rcrowley/go-metrics"
	otelprom "go.opentelemetry.io/otel/exporters/metric/prometheus"

	"github.com/prometheus/client_golang/prometheus"
)

// GoMetricsPrometheusSync is the interval the legacy go-metrics registry is
// synced to Prometheus on.
var GoMetricsPrometheusSync = 5 * time.Second

// Setup configures the OpenTelemetry and go-metrics Prometheus exporters
// and installs the OpenTelemetry meter provider globally. It returns the
// Prometheus HTTP handler to mount at /metrics.
func Setup() (http.Handler, error) {
	gomProvider := prometheusmetrics.NewPrometheusProvider(
		gometrics.DefaultRegistry,
		"evalmesh", "",
		prometheus.DefaultRegisterer,
		GoMetricsPrometheusSync)
	go gomProvider.UpdatePrometheusMetrics()

	exporter, err := otelprom.InstallNewPipeline(otelprom.Config{
		Registerer: prometheus.DefaultRegisterer,
		Gatherer:   prometheus.DefaultGatherer,
	})
	if err != nil {
		return nil, fmt.Errorf("metrics: failed to build OpenTelemetry Prometheus exporter: %w", err)
	}
	return exporter, nil
}

// DimensionResultTimer returns the legacy go-metrics timer tracking
// per-dimension result latency, kept alongside OpenTelemetry for
// older-style instrumentation.
func DimensionResultTimer(dimension string) gometrics.Timer {
	return gometrics.GetOrRegisterTimer("dimension_result_latency_"+dimension, gometrics.DefaultRegistry)
}
