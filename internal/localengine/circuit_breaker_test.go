package localengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker_OpensAfterThresholdFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute, time.Minute)
	assert.False(t, cb.IsOpen())

	cb.RecordFailure()
	cb.RecordFailure()
	assert.False(t, cb.IsOpen())

	cb.RecordFailure()
	assert.True(t, cb.IsOpen())
}

func TestCircuitBreaker_SuccessResetsFailureHistory(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute, time.Minute)
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	assert.False(t, cb.IsOpen())
}

func TestCircuitBreaker_OldFailuresOutsideWindowDoNotCount(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Millisecond, time.Minute)
	cb.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	cb.RecordFailure()
	assert.False(t, cb.IsOpen())
}

func TestCircuitBreaker_NilReceiverIsSafe(t *testing.T) {
	var cb *CircuitBreaker
	assert.NotPanics(t, func() {
		cb.RecordFailure()
		cb.RecordSuccess()
	})
	assert.False(t, cb.IsOpen())
}

func TestGlobalDuckDBCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker(5, time.Minute, time.Minute)
	SetGlobalDuckDBCircuitBreaker(cb)
	assert.Same(t, cb, GetDuckDBCircuitBreaker())
}
