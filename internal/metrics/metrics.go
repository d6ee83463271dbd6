// Package metrics is the thin recording facade the pipeline emits into.
//
// The core knows nothing about any metrics vendor: callers record named
// counters and histogram samples with string labels, and a pluggable
// Backend decides where they go. With no backend installed every call
// is a no-op, so library code records unconditionally.
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Labels are free-form metric dimensions. Backends pick the keys they
// understand and ignore the rest.
type Labels map[string]string

// Backend receives recorded metrics. Implementations must be safe for
// concurrent use; the per-category workers all record through the same
// backend.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

// Metric names shared between the pipeline and the backends.
const (
	MetricStepTotal              = "etl_step_total"
	MetricRecordsTotal           = "etl_records_total"
	MetricBatchesTotal           = "etl_batches_total"
	MetricStepDurationSeconds    = "etl_step_duration_seconds"
	MetricHTTPRequestsTotal      = "etl_http_requests_total"
	MetricHTTPErrorsTotal        = "etl_http_errors_total"
	MetricHTTPRequestDurSeconds  = "etl_http_request_duration_seconds"
	MetricHTTPResponseDurSeconds = "etl_http_response_duration_seconds"
	MetricHTTPDownloadBytes      = "etl_http_download_bytes"
)

var (
	mu      sync.RWMutex
	backend Backend
)

// SetBackend installs the process-wide backend. Pass nil to disable
// recording again.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to a named counter.
func IncCounter(name string, delta float64, labels Labels) {
	if b := current(); b != nil {
		b.IncCounter(name, delta, labels)
	}
}

// ObserveHistogram records one sample of a named distribution.
func ObserveHistogram(name string, value float64, labels Labels) {
	if b := current(); b != nil {
		b.ObserveHistogram(name, value, labels)
	}
}

// Flush pushes buffered metrics out through the backend.
func Flush() error {
	if b := current(); b != nil {
		return b.Flush()
	}
	return nil
}

// RecordStep records one pipeline stage outcome with its duration.
func RecordStep(category, step, status string, dur time.Duration) {
	labels := Labels{"category": category, "step": step, "status": status}
	IncCounter(MetricStepTotal, 1, labels)
	ObserveHistogram(MetricStepDurationSeconds, dur.Seconds(), labels)
}

// RecordRecords counts items that moved through a category; kind names
// what was counted ("records" in, "rows" out).
func RecordRecords(category, kind string, n int) {
	if n <= 0 {
		return
	}
	IncCounter(MetricRecordsTotal, float64(n), Labels{"category": category, "kind": kind})
}

// RecordBatch counts one completed batch.
func RecordBatch() {
	IncCounter(MetricBatchesTotal, 1, nil)
}

// RecordHTTP records one HTTP attempt: the request counter, the error
// counter when the attempt failed or came back 4xx/5xx, and the timing
// and size distributions. statusCode 0 means the request never got a
// response.
func RecordHTTP(job string, statusCode int, attemptErr error, reqDur, respDur time.Duration, downloadBytes int64) {
	status := "unknown"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	labels := Labels{"status": status}
	if job != "" {
		labels["job"] = job
	}

	IncCounter(MetricHTTPRequestsTotal, 1, labels)
	if attemptErr != nil || statusCode >= 400 {
		IncCounter(MetricHTTPErrorsTotal, 1, labels)
	}
	if reqDur > 0 {
		ObserveHistogram(MetricHTTPRequestDurSeconds, reqDur.Seconds(), labels)
	}
	if respDur > 0 {
		ObserveHistogram(MetricHTTPResponseDurSeconds, respDur.Seconds(), labels)
	}
	if downloadBytes >= 0 {
		ObserveHistogram(MetricHTTPDownloadBytes, float64(downloadBytes), labels)
	}
}
