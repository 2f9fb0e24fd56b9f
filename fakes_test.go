package tablekernel

import "context"

// fakeStorage is an in-memory StorageHandler test double shared across the
// root package's test files.
type fakeStorage struct {
	files map[string][]byte
}

func newFakeStorage() *fakeStorage { return &fakeStorage{files: map[string][]byte{}} }

func (s *fakeStorage) put(path, body string) { s.files[path] = []byte(body) }

func (s *fakeStorage) List(ctx context.Context, prefix string) ([]FileMeta, error) {
	var out []FileMeta
	for p := range s.files {
		out = append(out, FileMeta{Location: p})
	}
	_ = prefix
	return out, nil
}

func (s *fakeStorage) ReadBytes(ctx context.Context, location string, offset, length int64) ([]byte, error) {
	b, ok := s.files[location]
	if !ok {
		return nil, NewGenericError("not found: " + location)
	}
	return b, nil
}

// fakeLogSegment implements LogSegment over a fixed, already-known commit list.
type fakeLogSegment struct {
	commits []CommitFile
}

func (l fakeLogSegment) AscendingCommitFiles() []CommitFile { return l.commits }

func (l fakeLogSegment) CommitRange(startVersion, endVersion int64) ([]CommitFile, error) {
	if endVersion < 0 {
		endVersion = int64(len(l.commits) - 1)
	}
	var out []CommitFile
	for _, c := range l.commits {
		if c.Version >= startVersion && c.Version <= endVersion {
			out = append(out, c)
		}
	}
	return out, nil
}

// fakeTableConfig implements TableConfiguration with canned values.
type fakeTableConfig struct {
	protocol ProtocolAction
	metadata MetadataAction
	cdf      bool
}

func (c fakeTableConfig) Protocol() ProtocolAction        { return c.protocol }
func (c fakeTableConfig) Metadata() MetadataAction        { return c.metadata }
func (c fakeTableConfig) EnsureWriteSupported() error     { return DefaultEnsureWriteSupported(c.protocol) }
func (c fakeTableConfig) IsCDFEnabled() bool              { return c.cdf }

// fakeSnapshot implements Snapshot over fixed, caller-supplied fields.
type fakeSnapshot struct {
	version       int64
	schema        StructType
	partitionCols []string
	tableRoot     string
	config        TableConfiguration
	logSegment    LogSegment
}

func (s fakeSnapshot) Version() int64                    { return s.version }
func (s fakeSnapshot) LogicalSchema() StructType          { return s.schema }
func (s fakeSnapshot) PartitionColumns() []string         { return s.partitionCols }
func (s fakeSnapshot) TableRoot() string                  { return s.tableRoot }
func (s fakeSnapshot) Configuration() TableConfiguration  { return s.config }
func (s fakeSnapshot) LogSegment() LogSegment             { return s.logSegment }

// fakeTableChanges implements TableChanges over fixed, caller-supplied fields.
type fakeTableChanges struct {
	startVersion  int64
	endVersion    int64
	schema        StructType
	partitionCols []string
	tableRoot     string
	config        TableConfiguration
	logSegment    LogSegment
}

func (c fakeTableChanges) StartVersion() int64            { return c.startVersion }
func (c fakeTableChanges) EndVersion() int64               { return c.endVersion }
func (c fakeTableChanges) LogicalSchema() StructType        { return c.schema }
func (c fakeTableChanges) PartitionColumns() []string       { return c.partitionCols }
func (c fakeTableChanges) TableRoot() string                { return c.tableRoot }
func (c fakeTableChanges) Configuration() TableConfiguration { return c.config }
func (c fakeTableChanges) LogSegment() LogSegment            { return c.logSegment }

// fakeExpressionEvaluator implements ExpressionEvaluator by passing a batch
// through unchanged, regardless of the compiled expression.
type fakeExpressionEvaluator struct{}

func (fakeExpressionEvaluator) Evaluate(ctx context.Context, batch EngineData) (EngineData, error) {
	return batch, nil
}

// fakeEvaluationHandler implements EvaluationHandler by returning a
// pass-through evaluator, or err when it is set; it never inspects
// inputSchema/expr/outputSchema.
type fakeEvaluationHandler struct {
	err error
}

func (h fakeEvaluationHandler) NewExpressionEvaluator(inputSchema StructType, expr Expression, outputSchema StructType) (ExpressionEvaluator, error) {
	if h.err != nil {
		return nil, h.err
	}
	return fakeExpressionEvaluator{}, nil
}

// fakeBatch is a minimal EngineData implementation carrying only a row count.
type fakeBatch struct {
	rows int
}

func (b fakeBatch) Len() int { return b.rows }

// fakeBatchIterator implements ParquetBatchIterator over a fixed slice of
// batches, one per Next call.
type fakeBatchIterator struct {
	batches []fakeBatch
	idx     int
	closed  bool
}

func (it *fakeBatchIterator) Next(ctx context.Context) (EngineData, bool, error) {
	if it.idx >= len(it.batches) {
		return nil, false, nil
	}
	b := it.batches[it.idx]
	it.idx++
	return b, true, nil
}

func (it *fakeBatchIterator) Close() error {
	it.closed = true
	return nil
}

// fakeParquetHandler implements ParquetHandler, returning one batch of
// rowsPerFile rows (after dropping rows the selection vector marks deleted)
// for every file requested.
type fakeParquetHandler struct {
	rowsPerFile int
	calls       []ScanFile
}

func (h *fakeParquetHandler) ReadParquetFiles(ctx context.Context, files []ScanFile, physicalSchema StructType, predicate *PhysicalPredicate, selectionVectors map[string][]bool) (ParquetBatchIterator, error) {
	h.calls = append(h.calls, files...)
	rows := h.rowsPerFile
	for _, f := range files {
		if sel, ok := selectionVectors[f.Path]; ok && sel != nil {
			kept := h.rowsPerFile
			for _, keep := range sel {
				if !keep {
					kept--
				}
			}
			rows = kept
		}
	}
	return &fakeBatchIterator{batches: []fakeBatch{{rows: rows}}}, nil
}

// fakeJSONHandler implements JSONHandler for commit-writing and
// deletion-vector-reading tests.
type fakeJSONHandler struct {
	storage          *fakeStorage
	writeErr         error
	dvBytesByPath    map[string][]byte
	writtenPaths     []string
}

func (h *fakeJSONHandler) WriteJSONFile(ctx context.Context, path string, actions []any, overwrite bool) error {
	if h.writeErr != nil {
		return h.writeErr
	}
	if _, exists := h.storage.files[path]; exists && !overwrite {
		return NewFileAlreadyExistsError(path)
	}
	h.writtenPaths = append(h.writtenPaths, path)
	h.storage.files[path] = []byte("written")
	return nil
}

func (h *fakeJSONHandler) ReadDeletionVector(d *DeletionVectorDescriptor, tableRoot string) ([]byte, error) {
	if b, ok := h.dvBytesByPath[d.PathOrInline]; ok {
		return b, nil
	}
	return nil, NewGenericError("no deletion vector bytes for " + d.PathOrInline)
}

// fakeRowReader is a minimal RowReader backed by per-row column maps, used
// to stage AddFiles/WithCommitInfo input without a real engine-native batch.
type fakeRowReader struct {
	rows []map[string]any
}

func (r fakeRowReader) Len() int { return len(r.rows) }

func (r fakeRowReader) GetString(row int, col string) (string, bool) {
	v, ok := r.rows[row][col]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (r fakeRowReader) GetLong(row int, col string) (int64, bool) {
	v, ok := r.rows[row][col]
	if !ok {
		return 0, false
	}
	n, ok := v.(int64)
	return n, ok
}

func (r fakeRowReader) GetBool(row int, col string) (bool, bool) {
	v, ok := r.rows[row][col]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func (r fakeRowReader) GetStringMap(row int, col string) (map[string]string, bool) {
	v, ok := r.rows[row][col]
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]string)
	return m, ok
}

func (r fakeRowReader) GetStruct(row int, col string) (RowReader, bool) {
	v, ok := r.rows[row][col]
	if !ok {
		return nil, false
	}
	nested, ok := v.(fakeRowReader)
	return nested, ok
}

// fakeEngine implements Engine by aggregating the fakes above.
type fakeEngine struct {
	storage    StorageHandler
	parquet    ParquetHandler
	json       JSONHandler
	evaluation EvaluationHandler
}

func (e fakeEngine) StorageHandler() StorageHandler       { return e.storage }
func (e fakeEngine) ParquetHandler() ParquetHandler       { return e.parquet }
func (e fakeEngine) JSONHandler() JSONHandler             { return e.json }
func (e fakeEngine) EvaluationHandler() EvaluationHandler { return e.evaluation }
