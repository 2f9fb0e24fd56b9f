package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigure_DefaultsEmptyNamespace(t *testing.T) {
	Configure("", true, false, 0, 0)
	assert.Equal(t, "tablekernel", meterNamespace)
}

func TestEmitLatency_DisabledIsNoop(t *testing.T) {
	Configure("tablekernel_test", false, false, 0, 0)
	assert.NotPanics(t, func() {
		EmitLatency(context.Background(), "log_replay", 5)
	})
}

func TestEmitRowCount_DisabledIsNoop(t *testing.T) {
	Configure("tablekernel_test", false, false, 0, 0)
	assert.NotPanics(t, func() {
		EmitRowCount(context.Background(), "parquet", 100)
	})
}

func TestEmitSkippedFileRatio_EnabledRecords(t *testing.T) {
	Configure("tablekernel_test", true, false, 0, 0)
	assert.NotPanics(t, func() {
		EmitSkippedFileRatio(context.Background(), 3, 0.5)
	})
}

func TestWarnSlowStage_NoPanicWhenBelowThreshold(t *testing.T) {
	Configure("tablekernel_test", true, true, 100*time.Millisecond, 50*time.Millisecond)
	assert.NotPanics(t, func() {
		EmitLatency(context.Background(), "commit", 10)
	})
}

func TestWarnSlowStage_NoPanicWhenAboveThreshold(t *testing.T) {
	Configure("tablekernel_test", true, true, 100*time.Millisecond, 50*time.Millisecond)
	assert.NotPanics(t, func() {
		EmitLatency(context.Background(), "commit", 500)
		EmitLatency(context.Background(), "file_read", 500)
	})
}

func TestWarnSlowStage_DisabledByLogSlowOpsFlag(t *testing.T) {
	Configure("tablekernel_test", true, false, time.Millisecond, time.Millisecond)
	assert.NotPanics(t, func() {
		EmitLatency(context.Background(), "commit", 999)
	})
}
