package tablekernel

import (
	"time"
)

// Config consolidates the tunables that govern log replay, scan execution,
// commit behavior, and observability for a table opened through this
// package.
type Config struct {
	Storage     StorageConfig     `json:"storage"`
	Scan        ScanConfig        `json:"scan"`
	Transaction TransactionConfig `json:"transaction"`
	Performance PerformanceConfig `json:"performance"`
	Logging     LoggingConfig     `json:"logging"`
	Metrics     MetricsConfig     `json:"metrics"`
}

// StorageConfig governs how the local engine's StorageHandler talks to the
// underlying object store (local filesystem or S3).
type StorageConfig struct {
	Region          string        `json:"region"`
	Endpoint        string        `json:"endpoint,omitempty"`
	AccessKeyID     string        `json:"accessKeyId,omitempty"`
	SecretAccessKey string        `json:"secretAccessKey,omitempty"`
	UsePathStyle    bool          `json:"usePathStyle"`
	RequestTimeout  time.Duration `json:"requestTimeout"`
	MaxRetries      int           `json:"maxRetries"`
}

// ScanConfig tunes log-replay and scan execution.
type ScanConfig struct {
	MaxConcurrentFileReads int           `json:"maxConcurrentFileReads"`
	ParquetBatchSize       int           `json:"parquetBatchSize"`
	ReadTimeout            time.Duration `json:"readTimeout"`
	RejectCDFPredicates    bool          `json:"rejectCdfPredicates"`
}

// TransactionConfig tunes commit behavior.
type TransactionConfig struct {
	CommitTimeout       time.Duration `json:"commitTimeout"`
	MaxConflictRetries  int           `json:"maxConflictRetries"`
	ConflictRetryDelay  time.Duration `json:"conflictRetryDelay"`
	DefaultOperation    string        `json:"defaultOperation"`
}

// PerformanceConfig controls resource usage during scan/commit execution.
type PerformanceConfig struct {
	MaxParallelWorkers    int           `json:"maxParallelWorkers"`
	EnableMetricsEmission bool          `json:"enableMetricsEmission"`
	SlowScanThreshold     time.Duration `json:"slowScanThreshold"`
	SlowCommitThreshold   time.Duration `json:"slowCommitThreshold"`
}

// LoggingConfig controls the package-level zap sugared logger.
type LoggingConfig struct {
	Level            string `json:"level"`
	Format           string `json:"format"`
	EnableStructured bool   `json:"enableStructured"`
	LogSlowOperations bool  `json:"logSlowOperations"`
}

// MetricsConfig controls emission of scan/commit telemetry via the
// telemetry emitter in the internal/telemetry package.
type MetricsConfig struct {
	Enabled            bool          `json:"enabled"`
	Namespace          string        `json:"namespace"`
	CollectionInterval time.Duration `json:"collectionInterval"`
}

// DefaultConfig returns the configuration used when a caller does not
// supply one explicitly.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Region:         "us-east-1",
			RequestTimeout: 30 * time.Second,
			MaxRetries:     3,
		},
		Scan: ScanConfig{
			MaxConcurrentFileReads: 8,
			ParquetBatchSize:       4096,
			ReadTimeout:            60 * time.Second,
			RejectCDFPredicates:    true,
		},
		Transaction: TransactionConfig{
			CommitTimeout:      30 * time.Second,
			MaxConflictRetries: 0,
			ConflictRetryDelay: 250 * time.Millisecond,
			DefaultOperation:   "UNKNOWN",
		},
		Performance: PerformanceConfig{
			MaxParallelWorkers:    4,
			EnableMetricsEmission: true,
			SlowScanThreshold:     2 * time.Second,
			SlowCommitThreshold:   1 * time.Second,
		},
		Logging: LoggingConfig{
			Level:             "info",
			Format:            "json",
			EnableStructured:  true,
			LogSlowOperations: true,
		},
		Metrics: MetricsConfig{
			Enabled:            true,
			Namespace:          "tablekernel",
			CollectionInterval: 30 * time.Second,
		},
	}
}

// Validate checks the configuration for internally inconsistent settings.
func (c *Config) Validate() error {
	if c.Scan.MaxConcurrentFileReads <= 0 {
		return &ConfigError{Field: "scan.maxConcurrentFileReads", Message: "must be greater than 0"}
	}
	if c.Scan.ParquetBatchSize <= 0 {
		return &ConfigError{Field: "scan.parquetBatchSize", Message: "must be greater than 0"}
	}
	if c.Transaction.MaxConflictRetries < 0 {
		return &ConfigError{Field: "transaction.maxConflictRetries", Message: "must not be negative"}
	}
	if c.Performance.MaxParallelWorkers <= 0 {
		return &ConfigError{Field: "performance.maxParallelWorkers", Message: "must be greater than 0"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return "config validation error for field '" + e.Field + "': " + e.Message
}
