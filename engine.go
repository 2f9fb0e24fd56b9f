package tablekernel

import "context"

// EngineData is opaque, engine-owned tabular data passed across the four
// capability boundaries (a Parquet read result, a batch to evaluate, or the
// rows a caller stages for commit). The core never inspects its internal
// representation directly; it always goes through an EvaluationHandler or a
// RowReader to pull typed values out.
type EngineData interface {
	// Len reports the number of rows carried by this batch.
	Len() int
}

// RowReader is the narrow, schema-driven accessor surface a row visitor
// uses to pull fields out of one row of EngineData without a full
// deserialization pass: explicit typed getters in place of reflection.
// Implementations are expected to support exactly the getters their caller
// declares it needs.
type RowReader interface {
	EngineData
	GetString(row int, col string) (string, bool)
	GetLong(row int, col string) (int64, bool)
	GetBool(row int, col string) (bool, bool)
	GetStringMap(row int, col string) (map[string]string, bool)
	GetStruct(row int, col string) (RowReader, bool)
}

// StorageHandler lists and reads bytes from the object store backing a
// table. The core never performs object-store I/O directly. A length <= 0
// means "read to EOF from offset" — the convention log replay uses to pull
// a commit file in full without first statting its size.
type StorageHandler interface {
	List(ctx context.Context, prefix string) ([]FileMeta, error)
	ReadBytes(ctx context.Context, location string, offset, length int64) ([]byte, error)
}

// ParquetBatchIterator pulls successive batches of physical rows from a
// set of Parquet files. Dropping the iterator before exhausting it (simply
// not calling Next again) abandons any further reads.
type ParquetBatchIterator interface {
	Next(ctx context.Context) (EngineData, bool, error)
	Close() error
}

// ParquetHandler reads the physical columns of a set of data files under a
// given physical schema. predicate is advisory: an implementation may use
// it to skip reader-level work, but the core never relies on it for
// correctness and re-derives row visibility from selectionVectors alone.
//
// selectionVectors, keyed by ScanFile.Path, carries each file's resolved
// deletion-vector mask (true = keep); a missing or nil entry means "all
// rows selected". The core never edits an opaque EngineData batch to drop
// deleted rows itself — masking happens here, on the engine side of the
// boundary, before a batch is ever handed back.
type ParquetHandler interface {
	ReadParquetFiles(ctx context.Context, files []ScanFile, physicalSchema StructType, predicate *PhysicalPredicate, selectionVectors map[string][]bool) (ParquetBatchIterator, error)
}

// JSONHandler writes one newline-delimited-JSON log file. Overwrite=false
// must fail distinctively (detectable via IsFileAlreadyExists) when the
// target path already exists, which is the sole concurrency control for
// commits.
type JSONHandler interface {
	WriteJSONFile(ctx context.Context, path string, actions []any, overwrite bool) error
	ReadDeletionVector(d *DeletionVectorDescriptor, tableRoot string) ([]byte, error)
}

// ExpressionEvaluator evaluates one compiled expression against successive
// batches of EngineData, translating an input schema's rows into an output
// schema's rows (used for logical<->physical transforms and CDF column
// materialization).
type ExpressionEvaluator interface {
	Evaluate(ctx context.Context, batch EngineData) (EngineData, error)
}

// EvaluationHandler compiles an Expression once against a fixed
// input/output schema pair into a reusable ExpressionEvaluator.
type EvaluationHandler interface {
	NewExpressionEvaluator(inputSchema StructType, expr Expression, outputSchema StructType) (ExpressionEvaluator, error)
}

// Engine aggregates the four narrow capability interfaces a caller must
// supply. The core is constructed against an Engine and never instantiates
// I/O itself — every read or write crosses one of these four boundaries.
type Engine interface {
	StorageHandler() StorageHandler
	ParquetHandler() ParquetHandler
	JSONHandler() JSONHandler
	EvaluationHandler() EvaluationHandler
}

// deletionVectorResolverFromEngine adapts an Engine's JSONHandler (which
// carries deletion-vector reads alongside commit writes, mirroring where
// the format actually stores DV bytes relative to the log) to the
// DeletionVectorResolver interface used by deletionvector.go.
type deletionVectorResolverFromEngine struct {
	handler JSONHandler
}

func (r deletionVectorResolverFromEngine) ReadDeletionVector(d *DeletionVectorDescriptor, tableRoot string) ([]byte, error) {
	return r.handler.ReadDeletionVector(d, tableRoot)
}

// NewDeletionVectorResolver builds the resolver scan.go and cdf.go use to
// turn a DeletionVectorDescriptor into a roaring bitmap.
func NewDeletionVectorResolver(e Engine) DeletionVectorResolver {
	return deletionVectorResolverFromEngine{handler: e.JSONHandler()}
}
