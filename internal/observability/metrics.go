// Package observability exposes the run metrics of the bulletin pipeline.
package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "aqi_bulletin"

// Metrics holds the Prometheus counters, histograms, and gauges for one
// pipeline process. Each Metrics owns its registry so a batch job can write
// it out as a node-exporter textfile.
type Metrics struct {
	Registry *prometheus.Registry

	Runs          *prometheus.CounterVec // labels: outcome={published,not_yet_published,failed}
	RowsWritten   prometheus.Counter
	RowsDropped   prometheus.Counter
	FetchDuration *prometheus.HistogramVec // labels: result={ok,error}
	LastSuccess   prometheus.Gauge
	Published     prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		RowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Normalized rows written to bulletin records.",
		}),
		RowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Extracted rows dropped for an invalid index.",
		}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of bulletin document fetches.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"result"}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that wrote a bulletin record.",
		}),
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_published_total",
			Help:      "Rows published to the message sink.",
		}),
	}

	m.Registry.MustRegister(
		m.Runs,
		m.RowsWritten,
		m.RowsDropped,
		m.FetchDuration,
		m.LastSuccess,
		m.Published,
	)
	return m
}

// ObserveFetch records the duration of one fetch.
func (m *Metrics) ObserveFetch(d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.FetchDuration.WithLabelValues(result).Observe(d.Seconds())
}

// RecordRun counts a finished run. Successful runs also update the row
// counters and the last-success timestamp.
func (m *Metrics) RecordRun(outcome string, written, dropped int, at time.Time) {
	m.Runs.WithLabelValues(outcome).Inc()
	m.RowsDropped.Add(float64(dropped))
	if written > 0 {
		m.RowsWritten.Add(float64(written))
	}
	if outcome == "published" {
		m.LastSuccess.Set(float64(at.Unix()))
	}
}

// WriteTextfile writes the current metric values to path in the Prometheus
// text exposition format. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
