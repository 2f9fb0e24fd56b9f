package localengine

import (
	"context"
	"fmt"

	"github.com/lychee-technology/tablekernel"
	"github.com/lychee-technology/tablekernel/internal/telemetry"
)

// Engine wires Storage, ParquetHandler, JSONHandler and Evaluator into a
// single tablekernel.Engine, the capability bundle every Scan,
// TableChangesScan and Transaction in this module is constructed against.
type Engine struct {
	storage   *Storage
	duck      *DuckDBClient
	parquet   *ParquetHandler
	json      *JSONHandler
	evaluator *Evaluator
}

// NewEngine builds the local engine from configuration: an S3-or-local
// Storage handler, a DuckDB connection for Parquet reads, a JSON log writer,
// and the Go-native expression evaluator.
func NewEngine(ctx context.Context, cfg *tablekernel.Config) (*Engine, error) {
	telemetry.Configure(
		cfg.Metrics.Namespace,
		cfg.Metrics.Enabled && cfg.Performance.EnableMetricsEmission,
		cfg.Logging.LogSlowOperations,
		cfg.Performance.SlowScanThreshold,
		cfg.Performance.SlowCommitThreshold,
	)
	storage, err := NewStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("build storage handler: %w", err)
	}
	duck, err := NewDuckDBClient(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("build duckdb client: %w", err)
	}
	return &Engine{
		storage:   storage,
		duck:      duck,
		parquet:   NewParquetHandler(duck, cfg.Scan.ParquetBatchSize),
		json:      NewJSONHandler(storage),
		evaluator: NewEvaluator(),
	}, nil
}

// StorageHandler implements tablekernel.Engine.
func (e *Engine) StorageHandler() tablekernel.StorageHandler { return e.storage }

// ParquetHandler implements tablekernel.Engine.
func (e *Engine) ParquetHandler() tablekernel.ParquetHandler { return e.parquet }

// JSONHandler implements tablekernel.Engine.
func (e *Engine) JSONHandler() tablekernel.JSONHandler { return e.json }

// EvaluationHandler implements tablekernel.Engine.
func (e *Engine) EvaluationHandler() tablekernel.EvaluationHandler { return e.evaluator }

// Close releases the engine's DuckDB connection.
func (e *Engine) Close() error { return e.duck.Close() }
