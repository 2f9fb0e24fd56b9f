package tablekernel

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/lychee-technology/tablekernel/internal/telemetry"
)

// TableChanges scopes a Change Data Feed read to a closed commit-version
// range [StartVersion, EndVersion] of a table's log.
type TableChanges interface {
	StartVersion() int64
	EndVersion() int64
	LogicalSchema() StructType
	PartitionColumns() []string
	TableRoot() string
	Configuration() TableConfiguration
	LogSegment() LogSegment
}

// TableChangesScanBuilder accumulates a logical projection and predicate
// over a TableChanges range before resolving them into a TableChangesScan.
type TableChangesScanBuilder struct {
	tableChanges TableChanges
	engine       Engine
	schema       *StructType
	predicate    *Predicate
}

// NewTableChangesScanBuilder starts a Change Data Feed scan over tc.
func NewTableChangesScanBuilder(tc TableChanges, engine Engine) *TableChangesScanBuilder {
	return &TableChangesScanBuilder{tableChanges: tc, engine: engine}
}

// WithSchema projects the CDF scan onto an explicit schema. Unlike Scan,
// omitting this appends the three synthetic CDF columns (_change_type,
// _commit_version, _commit_timestamp) to the table's logical schema rather
// than leaving it untouched.
func (b *TableChangesScanBuilder) WithSchema(schema StructType) *TableChangesScanBuilder {
	b.schema = &schema
	return b
}

// WithPredicate attaches a data-skipping predicate. A predicate referencing
// any of the three synthetic CDF columns is rejected at Build time: those
// columns are materialized per output row by this scan itself and cannot be
// evaluated as a file-level skip.
func (b *TableChangesScanBuilder) WithPredicate(p Predicate) *TableChangesScanBuilder {
	b.predicate = &p
	return b
}

// Build resolves the projection and predicate.
func (b *TableChangesScanBuilder) Build() (*TableChangesScan, error) {
	if !b.tableChanges.Configuration().IsCDFEnabled() {
		return nil, NewUnsupportedError("change data feed is not enabled for this table")
	}
	if b.predicate != nil && predicateReferencesCDFColumn(*b.predicate) {
		return nil, NewUnsupportedError("predicates over change data feed synthetic columns are not supported")
	}

	logicalSchema := b.tableChanges.LogicalSchema()
	if b.schema != nil {
		logicalSchema = *b.schema
	} else {
		fields := make([]StructField, 0, len(logicalSchema.Fields)+len(CDFFields))
		fields = append(fields, logicalSchema.Fields...)
		fields = append(fields, CDFFields...)
		logicalSchema = NewStructType(fields...)
	}

	partitionCols := b.tableChanges.PartitionColumns()
	isPartition := make(map[string]bool, len(partitionCols))
	for _, c := range partitionCols {
		isPartition[c] = true
	}

	colTypes := make([]ColumnType, len(logicalSchema.Fields))
	colTypeByName := make(map[string]ColumnType, len(logicalSchema.Fields))
	physicalFields := make([]StructField, 0, len(logicalSchema.Fields))
	for i, f := range logicalSchema.Fields {
		colTypes[i] = Selected(f.Name)
		if isPartition[f.Name] {
			colTypes[i] = PartitionColumn(i)
		} else if !IsCDFColumn(f.Name) {
			physicalFields = append(physicalFields, f)
		}
		colTypeByName[f.Name] = colTypes[i]
	}

	return &TableChangesScan{
		tableChanges:     b.tableChanges,
		engine:           b.engine,
		logicalSchema:    logicalSchema,
		physicalSchema:   NewStructType(physicalFields...),
		columnTypes:      colTypes,
		columnTypeByName: colTypeByName,
		logicalPredicate: b.predicate,
	}, nil
}

// TableChangesScan is a resolved, ready-to-execute Change Data Feed read.
type TableChangesScan struct {
	tableChanges     TableChanges
	engine           Engine
	logicalSchema    StructType
	physicalSchema   StructType
	columnTypes      []ColumnType
	columnTypeByName map[string]ColumnType
	logicalPredicate *Predicate
}

func (s *TableChangesScan) LogicalSchema() StructType  { return s.logicalSchema }
func (s *TableChangesScan) PhysicalSchema() StructType { return s.physicalSchema }

func predicateReferencesCDFColumn(p Predicate) bool {
	switch p.Kind {
	case PredIsNull:
		return exprReferencesCDFColumn(*p.Operand)
	case PredNot:
		return predicateReferencesCDFColumn(*p.Inner)
	case PredBinary:
		return exprReferencesCDFColumn(*p.Left) || exprReferencesCDFColumn(*p.Right)
	case PredJunction:
		for _, o := range p.Operands {
			if predicateReferencesCDFColumn(o) {
				return true
			}
		}
	}
	return false
}

func exprReferencesCDFColumn(e Expression) bool {
	switch e.Kind {
	case ExprColumn:
		return len(e.ColumnPath) > 0 && IsCDFColumn(e.ColumnPath[0])
	case ExprStruct:
		for _, c := range e.Children {
			if exprReferencesCDFColumn(c) {
				return true
			}
		}
	case ExprBinary:
		return exprReferencesCDFColumn(*e.Left) || exprReferencesCDFColumn(*e.Right)
	}
	return false
}

func commitTimestampOf(actions []logActionEnvelope) int64 {
	for _, a := range actions {
		if a.CommitInfo != nil {
			return a.CommitInfo.Timestamp
		}
	}
	return 0
}

func dvDescriptorOf(j *DvDescriptorJSON) *DeletionVectorDescriptor {
	return dvInfoFromJSON(j).Descriptor
}

// changedRowSelection turns a bitmap of row indexes whose deleted status
// differs between two deletion vectors into a selection vector marking
// those rows true (selected), unlike SelectionVector's "true means kept"
// convention which does not apply here: changed is a set of changed rows,
// not a set of deleted ones.
func changedRowSelection(changed *roaring.Bitmap) []bool {
	if changed.IsEmpty() {
		return nil
	}
	sel := make([]bool, changed.Maximum()+1)
	it := changed.Iterator()
	for it.HasNext() {
		sel[it.Next()] = true
	}
	return sel
}

// ownDvSelection resolves an unpaired add/remove's own deletion vector (if
// any) into a selection vector with true meaning "live": the rows the file
// inserts or deletes are exactly the rows its deletion vector does not mark
// deleted. Unlike the paired add/remove case, there is no second version of
// the file to XOR against. Rows past the vector's end are live, which is why
// the reader pads an unpaired file's vector with true.
func ownDvSelection(j *DvDescriptorJSON, resolver DeletionVectorResolver, tableRoot string) ([]bool, error) {
	d := dvDescriptorOf(j)
	if d == nil {
		return nil, nil
	}
	bm, err := LoadBitmap(d, resolver, tableRoot)
	if err != nil {
		return nil, err
	}
	return SelectionVector(bm), nil
}

// changeGroup collects the actions touching one path within a single
// commit, so add/remove pairs sharing a path can be told apart from plain
// inserts, deletes, or CDC passthrough files.
type changeGroup struct {
	add    *AddAction
	remove *RemoveAction
	cdc    *CdcAction
}

// pairCommitActions classifies one commit's actions into resolved CDF scan
// files: a CdcAction passes through unchanged; an add and remove sharing a
// path are a deletion-vector-only update (the underlying file bytes did not
// change, only which rows are marked deleted, so XOR-ing the two deletion
// vectors isolates exactly the rows whose membership changed) and yield one
// update_preimage and one update_postimage entry over that row set; a lone
// add is an insert; a lone remove is a delete. See table_changes/scan.rs's
// read_scan_file documentation for the three-case selection-vector
// contract this feeds into.
func (s *TableChangesScan) pairCommitActions(actions []logActionEnvelope, version, commitTimestamp int64) ([]ResolvedCdfScanFile, error) {
	groups := make(map[string]*changeGroup)
	order := make([]string, 0, len(actions))
	touch := func(path string) *changeGroup {
		g, ok := groups[path]
		if !ok {
			g = &changeGroup{}
			groups[path] = g
			order = append(order, path)
		}
		return g
	}
	for _, a := range actions {
		switch {
		case a.Add != nil:
			touch(a.Add.Path).add = a.Add
		case a.Remove != nil:
			touch(a.Remove.Path).remove = a.Remove
		case a.Cdc != nil:
			touch(a.Cdc.Path).cdc = a.Cdc
		}
	}

	resolver := NewDeletionVectorResolver(s.engine)
	tableRoot := s.tableChanges.TableRoot()

	var out []ResolvedCdfScanFile
	for _, path := range order {
		g := groups[path]
		switch {
		case g.cdc != nil:
			out = append(out, ResolvedCdfScanFile{
				ScanFile: ScanFile{
					Path:            g.cdc.Path,
					Size:            g.cdc.Size,
					PartitionValues: g.cdc.PartitionValues,
				},
				CommitVersion:   version,
				CommitTimestamp: commitTimestamp,
				ChangeType:      "", // read _change_type from the CDC file's own physical column
			})
		case g.add != nil && g.remove != nil && g.add.Path == g.remove.Path:
			addBm, err := LoadBitmap(dvDescriptorOf(g.add.DeletionVector), resolver, tableRoot)
			if err != nil {
				return nil, err
			}
			removeBm, err := LoadBitmap(dvDescriptorOf(g.remove.DeletionVector), resolver, tableRoot)
			if err != nil {
				return nil, err
			}
			sel := changedRowSelection(XorBitmaps(addBm, removeBm))
			sf := ScanFile{
				Path:            g.add.Path,
				Size:            g.add.Size,
				PartitionValues: g.add.PartitionValues,
				Stats:           parseFileStats(g.add.Stats),
				DvInfo:          dvInfoFromJSON(g.add.DeletionVector),
			}
			out = append(out,
				ResolvedCdfScanFile{
					ScanFile: sf, SelectionVector: sel, IsResolvedPair: true,
					CommitVersion: version, CommitTimestamp: commitTimestamp,
					ChangeType: ChangeTypeUpdatePreimage,
				},
				ResolvedCdfScanFile{
					ScanFile: sf, SelectionVector: sel, IsResolvedPair: true,
					CommitVersion: version, CommitTimestamp: commitTimestamp,
					ChangeType: ChangeTypeUpdatePostimage,
				},
			)
		case g.add != nil:
			sel, err := ownDvSelection(g.add.DeletionVector, resolver, tableRoot)
			if err != nil {
				return nil, err
			}
			out = append(out, ResolvedCdfScanFile{
				ScanFile: ScanFile{
					Path: g.add.Path, Size: g.add.Size, PartitionValues: g.add.PartitionValues,
					Stats: parseFileStats(g.add.Stats), DvInfo: dvInfoFromJSON(g.add.DeletionVector),
				},
				SelectionVector: sel, IsResolvedPair: false,
				CommitVersion: version, CommitTimestamp: commitTimestamp,
				ChangeType: ChangeTypeInsert,
			})
		case g.remove != nil:
			sel, err := ownDvSelection(g.remove.DeletionVector, resolver, tableRoot)
			if err != nil {
				return nil, err
			}
			out = append(out, ResolvedCdfScanFile{
				ScanFile: ScanFile{
					Path: g.remove.Path, Size: g.remove.Size, PartitionValues: g.remove.PartitionValues,
					DvInfo: dvInfoFromJSON(g.remove.DeletionVector),
				},
				SelectionVector: sel, IsResolvedPair: false,
				CommitVersion: version, CommitTimestamp: commitTimestamp,
				ChangeType: ChangeTypeDelete,
			})
		}
	}
	return out, nil
}

// ScanMetadata replays every commit in the table changes' version range,
// pairs add/remove actions into resolved CDF scan files, and drops any file
// a partition-level skip check proves unnecessary.
func (s *TableChangesScan) ScanMetadata(ctx context.Context) ([]ResolvedCdfScanFile, error) {
	commits, err := s.tableChanges.LogSegment().CommitRange(s.tableChanges.StartVersion(), s.tableChanges.EndVersion())
	if err != nil {
		return nil, err
	}
	storage := s.engine.StorageHandler()

	var out []ResolvedCdfScanFile
	for _, cf := range commits {
		actions, err := readCommitActions(ctx, storage, cf.Path)
		if err != nil {
			return nil, err
		}
		ts := commitTimestampOf(actions)
		files, err := s.pairCommitActions(actions, cf.Version, ts)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if s.logicalPredicate != nil && fileSkip(*s.logicalPredicate, s.logicalSchema, s.columnTypeByName, f.PartitionValues) {
				continue
			}
			out = append(out, f)
		}
	}
	return out, nil
}

// physicalSchemaFor returns the schema a ParquetHandler should read for
// this particular resolved file: CDC files additionally carry a real
// _change_type physical column, unlike add/remove-derived files where it is
// synthesized.
func (s *TableChangesScan) physicalSchemaFor(f ResolvedCdfScanFile) StructType {
	if f.ChangeType != "" {
		return s.physicalSchema
	}
	fields := make([]StructField, 0, len(s.physicalSchema.Fields)+1)
	fields = append(fields, s.physicalSchema.Fields...)
	fields = append(fields, NotNull(ColumnChangeType, StringType))
	return NewStructType(fields...)
}

// buildTransform constructs the per-file expression that turns a physical
// row into a logical CDF row: ordinary and partition columns behave as in
// Scan's transform; _commit_version/_commit_timestamp are always
// synthesized literals; _change_type is a synthesized literal for
// add/remove-derived files, or passed through physically for CDC files.
func (s *TableChangesScan) buildTransform(f ResolvedCdfScanFile) (Expression, error) {
	children := make([]Expression, len(s.logicalSchema.Fields))
	for i, field := range s.logicalSchema.Fields {
		switch {
		case field.Name == ColumnChangeType:
			if f.ChangeType != "" {
				children[i] = Lit(OfString(f.ChangeType))
			} else {
				children[i] = ColumnOf(field.Name)
			}
		case field.Name == ColumnCommitVersion:
			children[i] = Lit(OfLong(f.CommitVersion))
		case field.Name == ColumnCommitTimestamp:
			children[i] = Lit(OfLong(f.CommitTimestamp))
		case s.columnTypes[i].IsPartition:
			raw, ok := f.PartitionValues[field.Name]
			if !ok {
				children[i] = Lit(Null(field.Type))
				continue
			}
			v, err := ParsePartitionValue(raw, field.Type)
			if err != nil {
				return Expression{}, err
			}
			children[i] = Lit(v)
		default:
			children[i] = ColumnOf(field.Name)
		}
	}
	return StructExpr(children...), nil
}

// splitVector consumes length entries from sv for the current batch,
// extending with extend's value if sv runs short, and returns the
// unconsumed remainder for the next batch. A nil sv means "no deletion
// vector applies" and is a no-op in both directions.
func splitVector(sv []bool, length int, extend bool) (batch []bool, rest []bool) {
	if sv == nil {
		return nil, nil
	}
	if len(sv) >= length {
		return sv[:length], sv[length:]
	}
	batch = make([]bool, length)
	copy(batch, sv)
	for i := len(sv); i < length; i++ {
		batch[i] = extend
	}
	return batch, nil
}

// CdfBatch pairs one physical-to-logical-transformed batch of rows with the
// selection mask that survived deletion-vector pairing for this slice of
// the originating file (nil meaning "every row selected").
type CdfBatch struct {
	Data EngineData
	Mask []bool
}

// CdfBatchIterator is the pull-based result of executing a TableChangesScan.
type CdfBatchIterator interface {
	Next(ctx context.Context) (CdfBatch, bool, error)
	Close() error
}

type cdfIterator struct {
	scan  *TableChangesScan
	files []ResolvedCdfScanFile

	idx       int
	current   ParquetBatchIterator
	eval      ExpressionEvaluator
	remaining []bool
	extend    bool
}

func (it *cdfIterator) Next(ctx context.Context) (CdfBatch, bool, error) {
	for {
		if it.current == nil {
			it.idx++
			if it.idx >= len(it.files) {
				return CdfBatch{}, false, nil
			}
			f := it.files[it.idx]
			physSchema := it.scan.physicalSchemaFor(f)
			// Predicate pushdown is disabled for CDF reads: a deletion
			// vector pair's selection applies to the file as read, not to
			// what the physical predicate would admit, so the two cannot
			// be combined safely here.
			iter, err := it.scan.engine.ParquetHandler().ReadParquetFiles(ctx, []ScanFile{f.ScanFile}, physSchema, nil, nil)
			if err != nil {
				return CdfBatch{}, false, err
			}
			transform, err := it.scan.buildTransform(f)
			if err != nil {
				iter.Close()
				return CdfBatch{}, false, err
			}
			evaluator, err := it.scan.engine.EvaluationHandler().NewExpressionEvaluator(physSchema, transform, it.scan.logicalSchema)
			if err != nil {
				iter.Close()
				return CdfBatch{}, false, err
			}
			it.current = iter
			it.eval = evaluator
			it.remaining = f.SelectionVector
			it.extend = !f.IsResolvedPair
		}

		batch, ok, err := it.current.Next(ctx)
		if err != nil {
			return CdfBatch{}, false, err
		}
		if !ok {
			it.current.Close()
			it.current = nil
			it.eval = nil
			continue
		}
		logical, err := it.eval.Evaluate(ctx, batch)
		if err != nil {
			return CdfBatch{}, false, err
		}
		mask, rest := splitVector(it.remaining, logical.Len(), it.extend)
		it.remaining = rest
		telemetry.EmitRowCount(ctx, "cdf", int64(logical.Len()))
		return CdfBatch{Data: logical, Mask: mask}, true, nil
	}
}

func (it *cdfIterator) Close() error {
	if it.current != nil {
		return it.current.Close()
	}
	return nil
}

// Execute resolves the scan's files and returns a pull-based iterator of
// logical change rows, each paired with the selection mask identifying
// which of its rows are part of the change set.
func (s *TableChangesScan) Execute(ctx context.Context) (CdfBatchIterator, error) {
	files, err := s.ScanMetadata(ctx)
	if err != nil {
		return nil, err
	}
	return &cdfIterator{scan: s, files: files, idx: -1}, nil
}
