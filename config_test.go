package tablekernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_PassesValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8, cfg.Scan.MaxConcurrentFileReads)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestConfig_Validate_RejectsNonPositiveMaxConcurrentFileReads(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scan.MaxConcurrentFileReads = 0
	err := cfg.Validate()
	require.Error(t, err)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "scan.maxConcurrentFileReads", cerr.Field)
}

func TestConfig_Validate_RejectsNonPositiveParquetBatchSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scan.ParquetBatchSize = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan.parquetBatchSize")
}

func TestConfig_Validate_RejectsNegativeMaxConflictRetries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Transaction.MaxConflictRetries = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transaction.maxConflictRetries")
}

func TestConfig_Validate_RejectsNonPositiveMaxParallelWorkers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Performance.MaxParallelWorkers = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "performance.maxParallelWorkers")
}

func TestConfigError_ErrorMessage(t *testing.T) {
	err := &ConfigError{Field: "scan.readTimeout", Message: "must be positive"}
	assert.Equal(t, "config validation error for field 'scan.readTimeout': must be positive", err.Error())
}
