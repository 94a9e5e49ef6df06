// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// This package adapts the generic metrics.Backend interface to Prometheus by:
//
//   - Using client_golang CounterVec and SummaryVec collectors.
//   - Mapping the pipeline labels (task, status, kind, table) onto
//     Prometheus labels.
//   - Pushing collected metrics to a Prometheus Pushgateway instance instead
//     of exposing an HTTP scrape endpoint; a batch run has nothing to scrape
//     once it exits.
//
// The package intentionally contains all Prometheus-specific dependencies so
// the rest of the project can swap to alternative backends without changes
// to the pipeline.
package prompush

import (
	"fmt"

	"affilgraph/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	taskCounter  *prometheus.CounterVec // "affilgraph_task_total"
	taskDuration *prometheus.SummaryVec // "affilgraph_task_duration_seconds"

	recordCounter *prometheus.CounterVec // "affilgraph_records_total"
	rowCounter    *prometheus.CounterVec // "affilgraph_rows_total"
	batchCounter  *prometheus.CounterVec // "affilgraph_batches_total"
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name (often the run description).
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "affilgraph"
	}

	reg := prometheus.NewRegistry()

	taskCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affilgraph_task_total",
			Help: "Total number of task executions, partitioned by task and status.",
		},
		[]string{"task", "status"},
	)
	taskDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "affilgraph_task_duration_seconds",
			Help:       "Duration of tasks in seconds, partitioned by task and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"task", "status"},
	)
	recordCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affilgraph_records_total",
			Help: "Record-level counts per kind (processed, parse_errors, filtered, etc.).",
		},
		[]string{"task", "kind"},
	)
	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affilgraph_rows_total",
			Help: "CSV rows written per output table.",
		},
		[]string{"task", "table"},
	)
	batchCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affilgraph_batches_total",
			Help: "Total number of batches flushed to the writer.",
		},
		[]string{"task"},
	)

	for _, c := range []prometheus.Collector{taskCounter, taskDuration, recordCounter, rowCounter, batchCounter} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		taskCounter:   taskCounter,
		taskDuration:  taskDuration,
		recordCounter: recordCounter,
		rowCounter:    rowCounter,
		batchCounter:  batchCounter,
	}, nil
}

// IncCounter maps the generic counter names onto the registered collectors.
// Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "affilgraph_task_total":
		b.taskCounter.WithLabelValues(labels["task"], labels["status"]).Add(delta)
	case "affilgraph_records_total":
		b.recordCounter.WithLabelValues(labels["task"], labels["kind"]).Add(delta)
	case "affilgraph_rows_total":
		b.rowCounter.WithLabelValues(labels["task"], labels["table"]).Add(delta)
	case "affilgraph_batches_total":
		b.batchCounter.WithLabelValues(labels["task"]).Add(delta)
	}
}

// ObserveHistogram records task durations; other names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != "affilgraph_task_duration_seconds" {
		return
	}
	b.taskDuration.WithLabelValues(labels["task"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
