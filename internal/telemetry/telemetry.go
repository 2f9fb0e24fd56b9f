// Package telemetry wraps the OpenTelemetry metrics API behind the three
// measures the kernel's scan and commit paths record: per-stage latency,
// rows produced per source, and the fraction of candidate files a scan's
// data-skipping pass eliminated.
package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

var enabled atomic.Bool

func init() {
	enabled.Store(true)
}

var (
	meterNamespace  = "tablekernel"
	instrumentsOnce sync.Once

	stageLatency     metric.Float64Histogram
	rowCount         metric.Int64Counter
	skippedFileRatio metric.Float64Histogram

	mu                  sync.RWMutex
	logSlowOperations   bool
	slowScanThreshold   time.Duration
	slowCommitThreshold time.Duration
)

// Configure applies a MetricsConfig/PerformanceConfig/LoggingConfig-shaped
// setting: namespace scopes the meter name (falling back to "tablekernel"),
// metricsEnabled gates every Emit* call's histogram/counter recording to a
// no-op without touching the globally registered MeterProvider. When
// logSlowOps is set, EmitLatency also warns via the package-level zap
// logger for any "commit" stage exceeding slowCommitThreshold or any other
// stage exceeding slowScanThreshold.
func Configure(namespace string, metricsEnabled bool, logSlowOps bool, slowScan, slowCommit time.Duration) {
	enabled.Store(metricsEnabled)
	if namespace == "" {
		namespace = "tablekernel"
	}
	meterNamespace = namespace
	instrumentsOnce = sync.Once{}

	mu.Lock()
	logSlowOperations = logSlowOps
	slowScanThreshold = slowScan
	slowCommitThreshold = slowCommit
	mu.Unlock()
}

func instruments() (metric.Float64Histogram, metric.Int64Counter, metric.Float64Histogram) {
	instrumentsOnce.Do(func() {
		meter := otel.Meter(meterNamespace)
		stageLatency, _ = meter.Float64Histogram("kernel_stage_latency_ms")
		rowCount, _ = meter.Int64Counter("kernel_row_count")
		skippedFileRatio, _ = meter.Float64Histogram("kernel_skipped_file_ratio")
	})
	return stageLatency, rowCount, skippedFileRatio
}

// EmitLatency records a latency measure (milliseconds) for a named stage
// ("log_replay", "file_read", "commit").
func EmitLatency(ctx context.Context, stage string, ms int64) {
	warnSlowStage(stage, ms)

	if !enabled.Load() {
		return
	}
	hist, _, _ := instruments()
	if hist == nil {
		return
	}
	hist.Record(ctx, float64(ms), metric.WithAttributes(attribute.String("stage", stage)))
}

func warnSlowStage(stage string, ms int64) {
	mu.RLock()
	logSlow := logSlowOperations
	threshold := slowScanThreshold
	if stage == "commit" {
		threshold = slowCommitThreshold
	}
	mu.RUnlock()

	if !logSlow || threshold <= 0 || time.Duration(ms)*time.Millisecond <= threshold {
		return
	}
	zap.S().Warnw("slow operation", "stage", stage, "durationMs", ms, "thresholdMs", threshold.Milliseconds())
}

// EmitRowCount records rows produced by a source ("local", "s3", "duckdb",
// "parquet", "cdf").
func EmitRowCount(ctx context.Context, source string, rows int64) {
	if !enabled.Load() {
		return
	}
	_, counter, _ := instruments()
	if counter == nil {
		return
	}
	counter.Add(ctx, rows, metric.WithAttributes(attribute.String("source", source)))
}

// EmitSkippedFileRatio records the fraction of candidate files a scan's
// data-skipping pass eliminated before the read pipeline, labeled by table
// version.
func EmitSkippedFileRatio(ctx context.Context, tableVersion int64, ratio float64) {
	if !enabled.Load() {
		return
	}
	_, _, hist := instruments()
	if hist == nil {
		return
	}
	hist.Record(ctx, ratio, metric.WithAttributes(attribute.Int64("table_version", tableVersion)))
}
