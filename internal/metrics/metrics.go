// Package metrics provides a small, backend-agnostic abstraction for
// recording operational metrics from the extraction pipeline.
//
// The package is intentionally minimal and opinionated:
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data.
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//   - Concrete metric systems are isolated in subpackages; the rest of the
//     codebase depends only on this interface.
//
// The primary use case is instrumentation of task runs (records read,
// skipped, rows written, batches flushed, task duration) without coupling
// the pipeline to a specific metrics system.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordTask measures one task execution: duration plus success/failure.
func RecordTask(task string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"task":   task,
		"status": status,
	}

	backend.IncCounter("affilgraph_task_total", 1, lbls)
	backend.ObserveHistogram("affilgraph_task_duration_seconds", d.Seconds(), lbls)
}

// RecordRecords increments a record-level counter for the given task and
// kind.
//
// Typical kinds mirror the run summary fields, e.g.:
//   - "processed"
//   - "parse_errors"
//   - "missing_identifier"
//   - "filtered"
func RecordRecords(task, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("affilgraph_records_total", float64(delta), Labels{
		"task": task,
		"kind": kind,
	})
}

// RecordRows increments the written-row counter for one output table.
func RecordRows(task, table string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("affilgraph_rows_total", float64(delta), Labels{
		"task":  task,
		"table": table,
	})
}

// RecordBatches increments the flushed-batch counter for the given task.
func RecordBatches(task string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("affilgraph_batches_total", float64(delta), Labels{
		"task": task,
	})
}
