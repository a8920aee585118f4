// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-josekit.
//
// go-josekit is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package metrics provides Prometheus instrumentation for the JOSE engine.
// It exposes token operation counters and latency histograms, error counters
// and secure memory pool gauges.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all engine metrics
	Namespace = "jose"

	// Label names
	LabelOperation = "operation"
	LabelAlgorithm = "algorithm"
	LabelStatus    = "status"
	LabelErrorType = "error_type"
	LabelClass     = "class"
	LabelPool      = "pool"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Operation names
	OpSign    = "sign"
	OpVerify  = "verify"
	OpEncrypt = "encrypt"
	OpDecrypt = "decrypt"
	OpWrap    = "wrap"
	OpUnwrap  = "unwrap"

	// Pool lease classes
	ClassPooled   = "pooled"
	ClassUnpooled = "unpooled"
	ClassEmpty    = "empty"
)

var (
	// OperationsTotal tracks token operations by type, algorithm and status.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of JOSE operations by type, algorithm, and status",
		},
		[]string{LabelOperation, LabelAlgorithm, LabelStatus},
	)

	// OperationDuration tracks the duration of token operations in seconds.
	// PBES2 and RSA key generation dominate the upper buckets.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of JOSE operations in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{LabelOperation, LabelAlgorithm},
	)

	// ErrorsTotal tracks failures by operation and error type
	// (e.g. "integrity_check_failed", "malformed_token").
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total number of JOSE errors by operation and error type",
		},
		[]string{LabelOperation, LabelErrorType},
	)

	// PoolRentsTotal counts secure buffer leases by class.
	PoolRentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "pool",
			Name:      "rents_total",
			Help:      "Total number of secure buffer leases by class",
		},
		[]string{LabelClass},
	)

	// PoolRetainedBuffers is the number of zeroed pages waiting in free queues.
	PoolRetainedBuffers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "pool",
			Name:      "retained_buffers",
			Help:      "Number of zeroed buffers retained in secure pool free queues",
		},
	)

	// PoolOutstandingBuffers is the number of leases not yet disposed.
	PoolOutstandingBuffers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "pool",
			Name:      "outstanding_buffers",
			Help:      "Number of secure buffer leases not yet disposed",
		},
	)

	// PoolTrimsTotal counts housekeeping passes that cleared a free queue.
	PoolTrimsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "pool",
			Name:      "trims_total",
			Help:      "Total number of free queue trims triggered by memory pressure",
		},
	)

	// PoolReclaimedLeasesTotal counts leases reclaimed by the runtime after
	// their owner dropped them without Dispose.
	PoolReclaimedLeasesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "pool",
			Name:      "reclaimed_leases_total",
			Help:      "Total number of leaked leases zeroed and reclaimed by the runtime",
		},
	)

	// PoolAllocatedPages is the number of pinned pages a named pool has
	// mapped, sampled by ResourceCollector.
	PoolAllocatedPages = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "pool",
			Name:      "allocated_pages",
			Help:      "Number of pinned pages currently mapped by a secure pool",
		},
		[]string{LabelPool},
	)

	// Goroutines is the number of goroutines in the process.
	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "process",
			Name:      "goroutines",
			Help:      "Number of goroutines",
		},
	)

	// MemoryAllocBytes is the number of heap bytes allocated and in use.
	MemoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "process",
			Name:      "memory_alloc_bytes",
			Help:      "Bytes of allocated heap objects",
		},
	)

	// MemorySysBytes is the memory obtained from the OS.
	MemorySysBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "process",
			Name:      "memory_sys_bytes",
			Help:      "Bytes of memory obtained from the OS",
		},
	)

	// GCPauseTotalSeconds is the cumulative GC pause time.
	GCPauseTotalSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "process",
			Name:      "gc_pause_total_seconds",
			Help:      "Cumulative garbage collector pause time in seconds",
		},
	)

	// UptimeSeconds is the time since the collector started.
	UptimeSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "process",
			Name:      "uptime_seconds",
			Help:      "Seconds since the resource collector started",
		},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// RecordOperation records a JOSE operation with its duration and status.
//
// Example:
//
//	start := time.Now()
//	token, err := encoder.EncodeSigned(ctx, payload, creds, nil)
//	status := metrics.StatusSuccess
//	if err != nil {
//	    status = metrics.StatusError
//	}
//	metrics.RecordOperation(metrics.OpSign, "HS256", status, time.Since(start).Seconds())
func RecordOperation(operation, algorithm, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	OperationsTotal.WithLabelValues(operation, algorithm, status).Inc()
	OperationDuration.WithLabelValues(operation, algorithm).Observe(duration)
}

// RecordError records an error event for an operation.
func RecordError(operation, errorType string) {
	if !enabled.Load() {
		return
	}
	ErrorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RecordRent records a secure buffer lease of the given class.
func RecordRent(class string) {
	if !enabled.Load() {
		return
	}
	PoolRentsTotal.WithLabelValues(class).Inc()
	if class != ClassEmpty {
		PoolOutstandingBuffers.Inc()
	}
}

// RecordRelease records the disposal of a non-empty lease.
func RecordRelease() {
	if !enabled.Load() {
		return
	}
	PoolOutstandingBuffers.Dec()
}

// AddRetained adjusts the retained buffer gauge by delta.
func AddRetained(delta int) {
	if !enabled.Load() {
		return
	}
	PoolRetainedBuffers.Add(float64(delta))
}

// RecordTrim records a housekeeping trim.
func RecordTrim() {
	if !enabled.Load() {
		return
	}
	PoolTrimsTotal.Inc()
}

// RecordReclaim records a leaked lease reclaimed by the runtime.
func RecordReclaim() {
	if !enabled.Load() {
		return
	}
	PoolReclaimedLeasesTotal.Inc()
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
// Useful for testing or when metrics are not desired.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
