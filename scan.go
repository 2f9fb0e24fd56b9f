package tablekernel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/lychee-technology/tablekernel/internal/telemetry"
)

// ScanBuilder accumulates a logical projection and predicate over a
// Snapshot before resolving them into a Scan.
type ScanBuilder struct {
	snapshot  Snapshot
	engine    Engine
	schema    *StructType
	predicate *Predicate
}

// NewScanBuilder starts a scan over snapshot, to be executed through engine.
func NewScanBuilder(snapshot Snapshot, engine Engine) *ScanBuilder {
	return &ScanBuilder{snapshot: snapshot, engine: engine}
}

// WithSchema projects the scan onto a subset (or reordering) of the
// snapshot's logical schema. Omitting this keeps the full logical schema.
func (b *ScanBuilder) WithSchema(schema StructType) *ScanBuilder {
	b.schema = &schema
	return b
}

// WithPredicate attaches a data-skipping predicate. Omitting this scans
// every live file.
func (b *ScanBuilder) WithPredicate(p Predicate) *ScanBuilder {
	b.predicate = &p
	return b
}

// Build classifies the projected schema's columns (physical vs. partition),
// derives the physical schema a ParquetHandler will be asked to read, and
// translates the predicate into its physical form.
func (b *ScanBuilder) Build() (*Scan, error) {
	logicalSchema := b.snapshot.LogicalSchema()
	if b.schema != nil {
		logicalSchema = *b.schema
	}

	partitionCols := b.snapshot.PartitionColumns()
	isPartition := make(map[string]bool, len(partitionCols))
	for _, c := range partitionCols {
		isPartition[c] = true
	}

	colTypes := make([]ColumnType, len(logicalSchema.Fields))
	colTypeByName := make(map[string]ColumnType, len(logicalSchema.Fields))
	physicalFields := make([]StructField, 0, len(logicalSchema.Fields))
	for i, f := range logicalSchema.Fields {
		if isPartition[f.Name] {
			colTypes[i] = PartitionColumn(i)
		} else {
			colTypes[i] = Selected(f.Name)
			physicalFields = append(physicalFields, f)
		}
		colTypeByName[f.Name] = colTypes[i]
	}
	physicalSchema := NewStructType(physicalFields...)

	phys := buildPhysicalPredicate(b.predicate, physicalSchema, colTypeByName)

	return &Scan{
		snapshot:          b.snapshot,
		engine:            b.engine,
		logicalSchema:     logicalSchema,
		physicalSchema:    physicalSchema,
		columnTypes:       colTypes,
		columnTypeByName:  colTypeByName,
		physicalPredicate: phys,
		logicalPredicate:  b.predicate,
	}, nil
}

// Scan is a resolved, ready-to-execute read plan over a Snapshot.
type Scan struct {
	snapshot          Snapshot
	engine            Engine
	logicalSchema     StructType
	physicalSchema    StructType
	columnTypes       []ColumnType
	columnTypeByName  map[string]ColumnType
	physicalPredicate PhysicalPredicate
	logicalPredicate  *Predicate
}

// LogicalSchema returns the schema rows produced by Execute will conform to.
func (s *Scan) LogicalSchema() StructType { return s.logicalSchema }

// PhysicalSchema returns the schema a ParquetHandler is asked to read.
func (s *Scan) PhysicalSchema() StructType { return s.physicalSchema }

// logActionEnvelope mirrors one newline-delimited-JSON log line: exactly one
// field is populated, naming which action it carries.
type logActionEnvelope struct {
	Add        *AddAction            `json:"add,omitempty"`
	Remove     *RemoveAction         `json:"remove,omitempty"`
	Metadata   *MetadataAction       `json:"metaData,omitempty"`
	Protocol   *ProtocolAction       `json:"protocol,omitempty"`
	Txn        *SetTransactionAction `json:"txn,omitempty"`
	CommitInfo *CommitInfoAction     `json:"commitInfo,omitempty"`
	Cdc        *CdcAction            `json:"cdc,omitempty"`
}

// readCommitActions reads one commit file in full (a length <= 0 ReadBytes
// call reads to EOF, per engine.go's StorageHandler contract) and decodes
// each line's action envelope.
func readCommitActions(ctx context.Context, storage StorageHandler, path string) ([]logActionEnvelope, error) {
	raw, err := storage.ReadBytes(ctx, path, 0, 0)
	if err != nil {
		return nil, NewInternalError("failed to read commit file", err).WithPath(path)
	}
	var actions []logActionEnvelope
	for _, line := range bytes.Split(raw, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var env logActionEnvelope
		if err := json.Unmarshal(line, &env); err != nil {
			return nil, NewInternalError("malformed commit log line", err).WithPath(path)
		}
		actions = append(actions, env)
	}
	return actions, nil
}

// liveFile tracks the surviving add action for one path across log replay.
type liveFile struct {
	add *AddAction
}

// ScanMetadata replays the snapshot's log segment in ascending commit-version
// order, applying add/remove tombstoning, then prunes any surviving file
// whose partition values make the predicate statically false under
// eval_sql_where, and builds each remaining file's physical-to-logical
// transform. This is the log-replay step that turns a commit history into a
// live file list.
func (s *Scan) ScanMetadata(ctx context.Context) ([]ScanFile, error) {
	replayStart := time.Now()
	commits := s.snapshot.LogSegment().AscendingCommitFiles()
	live := make(map[string]*liveFile)
	order := make([]string, 0, len(commits))
	storage := s.engine.StorageHandler()

	for _, cf := range commits {
		actions, err := readCommitActions(ctx, storage, cf.Path)
		if err != nil {
			return nil, err
		}
		for _, a := range actions {
			switch {
			case a.Add != nil:
				if _, exists := live[a.Add.Path]; !exists {
					order = append(order, a.Add.Path)
				}
				live[a.Add.Path] = &liveFile{add: a.Add}
			case a.Remove != nil:
				delete(live, a.Remove.Path)
			}
		}
	}
	telemetry.EmitLatency(ctx, "log_replay", time.Since(replayStart).Milliseconds())

	candidateCount := 0
	files := make([]ScanFile, 0, len(order))
	for _, path := range order {
		lf, ok := live[path]
		if !ok {
			continue // tombstoned by a later commit
		}
		candidateCount++
		if s.logicalPredicate != nil && fileSkip(*s.logicalPredicate, s.logicalSchema, s.columnTypeByName, lf.add.PartitionValues) {
			continue
		}
		transform, err := s.buildTransform(lf.add.PartitionValues)
		if err != nil {
			return nil, err
		}
		files = append(files, ScanFile{
			Path:            lf.add.Path,
			Size:            lf.add.Size,
			PartitionValues: lf.add.PartitionValues,
			Stats:           parseFileStats(lf.add.Stats),
			DvInfo:          dvInfoFromJSON(lf.add.DeletionVector),
			Transform:       &transform,
		})
	}
	if candidateCount > 0 {
		ratio := float64(candidateCount-len(files)) / float64(candidateCount)
		telemetry.EmitSkippedFileRatio(ctx, s.snapshot.Version(), ratio)
	}
	return files, nil
}

// fileSkip reports whether pred is provably false for every row of a file
// with the given partition values, using only the partition columns (no
// physical statistics are modeled). Non-partition columns resolve as absent,
// which eval_sql_where treats as "cannot skip" rather than false.
func fileSkip(pred Predicate, logicalSchema StructType, colTypeByName map[string]ColumnType, partitionValues map[string]string) bool {
	resolver := make(MapResolver)
	for name, ct := range colTypeByName {
		if !ct.IsPartition {
			continue
		}
		raw, ok := partitionValues[name]
		if !ok {
			continue
		}
		field, ok := logicalSchema.FieldByName(name)
		if !ok {
			continue
		}
		v, err := ParsePartitionValue(raw, field.Type)
		if err != nil {
			continue
		}
		resolver[name] = v
	}
	return EvalSqlWhere(pred, resolver) == False
}

// buildTransform constructs the per-file expression that turns a physical
// row (shaped like s.physicalSchema) into a logical row (shaped like
// s.logicalSchema): physical columns pass through by (possibly renamed)
// reference, partition columns are materialized as literals parsed once per
// file from partitionValues.
func (s *Scan) buildTransform(partitionValues map[string]string) (Expression, error) {
	children := make([]Expression, len(s.logicalSchema.Fields))
	for i, f := range s.logicalSchema.Fields {
		ct := s.columnTypes[i]
		if !ct.IsPartition {
			children[i] = ColumnOf(ct.PhysicalName)
			continue
		}
		raw, ok := partitionValues[f.Name]
		if !ok {
			children[i] = Lit(Null(f.Type))
			continue
		}
		v, err := ParsePartitionValue(raw, f.Type)
		if err != nil {
			return Expression{}, err
		}
		children[i] = Lit(v)
	}
	return StructExpr(children...), nil
}

// ParsePartitionValue parses one partition column's string-encoded value
// (as stored in an add action's partitionValues map) against its declared
// logical type.
func ParsePartitionValue(raw string, dt DataType) (Scalar, error) {
	if dt.Tag == TypeDecimal {
		return ParseDecimal(raw, dt)
	}
	if dt.Tag != TypePrimitive {
		return Scalar{}, NewGenericError("unsupported partition column type: " + dt.String())
	}
	switch dt.Primitive {
	case KindString:
		return OfString(raw), nil
	case KindBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Scalar{}, NewGenericError("invalid boolean partition value: " + raw)
		}
		return OfBool(b), nil
	case KindByte:
		n, err := strconv.ParseInt(raw, 10, 8)
		if err != nil {
			return Scalar{}, NewGenericError("invalid byte partition value: " + raw)
		}
		return OfByte(int8(n)), nil
	case KindShort:
		n, err := strconv.ParseInt(raw, 10, 16)
		if err != nil {
			return Scalar{}, NewGenericError("invalid short partition value: " + raw)
		}
		return OfShort(int16(n)), nil
	case KindInteger:
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return Scalar{}, NewGenericError("invalid integer partition value: " + raw)
		}
		return OfInteger(int32(n)), nil
	case KindLong:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Scalar{}, NewGenericError("invalid long partition value: " + raw)
		}
		return OfLong(n), nil
	case KindFloat:
		f, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return Scalar{}, NewGenericError("invalid float partition value: " + raw)
		}
		return OfFloat(float32(f)), nil
	case KindDouble:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Scalar{}, NewGenericError("invalid double partition value: " + raw)
		}
		return OfDouble(f), nil
	case KindBinary:
		return OfBinary([]byte(raw)), nil
	case KindDate:
		return ParseDate(raw)
	case KindTimestamp:
		return ParseTimestamp(raw)
	case KindTimestampNtz:
		return ParseTimestampNtz(raw)
	}
	return Scalar{}, NewGenericError("unsupported partition column type: " + dt.String())
}

// translateExprColumns rewrites an expression's column references from
// logical to physical names. ok is false when the expression touches a
// partition column (absent from the physical schema) or an unrecognized
// column, meaning the caller must fall back to AlwaysTrue: pushdown is only
// ever a superset filter, so silently weakening it is always safe, while
// silently narrowing it never is.
func translateExprColumns(e Expression, colTypeByName map[string]ColumnType) (Expression, bool) {
	switch e.Kind {
	case ExprLiteral:
		return e, true
	case ExprColumn:
		if len(e.ColumnPath) == 0 {
			return e, false
		}
		ct, ok := colTypeByName[e.ColumnPath[0]]
		if !ok || ct.IsPartition {
			return Expression{}, false
		}
		path := append([]string{ct.PhysicalName}, e.ColumnPath[1:]...)
		return ColumnOf(path...), true
	case ExprStruct:
		children := make([]Expression, len(e.Children))
		for i, c := range e.Children {
			tc, ok := translateExprColumns(c, colTypeByName)
			if !ok {
				return Expression{}, false
			}
			children[i] = tc
		}
		return StructExpr(children...), true
	case ExprBinary:
		l, lok := translateExprColumns(*e.Left, colTypeByName)
		r, rok := translateExprColumns(*e.Right, colTypeByName)
		if !lok || !rok {
			return Expression{}, false
		}
		return BinaryExpr(e.Op, l, r), true
	}
	return e, true
}

// translatePhysicalLeaf rewrites pred's leaves into physical column names,
// replacing any leaf that cannot be safely translated with AlwaysTrue.
func translatePhysicalLeaf(p Predicate, colTypeByName map[string]ColumnType) Predicate {
	switch p.Kind {
	case PredBoolLit:
		return p
	case PredIsNull:
		te, ok := translateExprColumns(*p.Operand, colTypeByName)
		if !ok {
			return AlwaysTrue
		}
		return IsNull(te)
	case PredNot:
		return Not(translatePhysicalLeaf(*p.Inner, colTypeByName))
	case PredBinary:
		l, lok := translateExprColumns(*p.Left, colTypeByName)
		r, rok := translateExprColumns(*p.Right, colTypeByName)
		if !lok || !rok {
			return AlwaysTrue
		}
		return Compare(p.Op, l, r)
	case PredJunction:
		operands := make([]Predicate, len(p.Operands))
		for i, o := range p.Operands {
			operands[i] = translatePhysicalLeaf(o, colTypeByName)
		}
		return Predicate{Kind: PredJunction, Junction: p.Junction, Operands: operands}
	}
	return AlwaysTrue
}

// buildPhysicalPredicate translates a logical predicate into its physical
// form, detecting the trivial StaticSkipAll case where the predicate is
// literally AlwaysFalse at its top level; no simplification is applied, so
// a predicate that only reduces to AlwaysFalse is not detected.
func buildPhysicalPredicate(pred *Predicate, physicalSchema StructType, colTypeByName map[string]ColumnType) PhysicalPredicate {
	if pred == nil {
		return PhysicalPredicate{Kind: PhysicalPredicateNone, Required: physicalSchema}
	}
	translated := translatePhysicalLeaf(*pred, colTypeByName)
	if translated.Kind == PredBoolLit {
		if translated.BoolValue {
			return PhysicalPredicate{Kind: PhysicalPredicateNone, Required: physicalSchema}
		}
		return PhysicalPredicate{Kind: PhysicalPredicateStaticSkipAll, Required: physicalSchema}
	}
	return PhysicalPredicate{Kind: PhysicalPredicateSome, Predicate: translated, Required: physicalSchema}
}

func dvInfoFromJSON(j *DvDescriptorJSON) DvInfo {
	if j == nil {
		return DvInfo{}
	}
	storageType := DvStorageUUID
	switch j.StorageType {
	case "i":
		storageType = DvStorageInline
	case "p":
		storageType = DvStorageOnDisk
	case "u":
		storageType = DvStorageUUID
	}
	return DvInfo{
		HasVector: true,
		Descriptor: &DeletionVectorDescriptor{
			StorageType:  storageType,
			PathOrInline: j.PathOrInline,
			Offset:       j.Offset,
			SizeInBytes:  j.SizeInBytes,
			Cardinality:  j.Cardinality,
		},
	}
}

type fileStatsJSON struct {
	NumRecords uint64 `json:"numRecords"`
}

func parseFileStats(raw string) *FileStats {
	if raw == "" {
		return nil
	}
	var fs fileStatsJSON
	if err := json.Unmarshal([]byte(raw), &fs); err != nil {
		return nil
	}
	return &FileStats{NumRecords: fs.NumRecords}
}

// emptyBatchIterator is the ParquetBatchIterator returned for a scan whose
// physical predicate statically resolved to PhysicalPredicateStaticSkipAll.
type emptyBatchIterator struct{}

func (emptyBatchIterator) Next(ctx context.Context) (EngineData, bool, error) { return nil, false, nil }
func (emptyBatchIterator) Close() error                                      { return nil }

// transformingIterator walks a Scan's surviving files one at a time,
// reading each through the ParquetHandler and applying its per-file
// physical-to-logical transform before handing batches back.
type transformingIterator struct {
	scan      *Scan
	files     []ScanFile
	selection map[string][]bool
	physPred  *PhysicalPredicate

	idx     int
	current ParquetBatchIterator
	eval    ExpressionEvaluator
}

func (it *transformingIterator) Next(ctx context.Context) (EngineData, bool, error) {
	for {
		if it.current == nil {
			it.idx++
			if it.idx >= len(it.files) {
				return nil, false, nil
			}
			file := it.files[it.idx]
			iter, err := it.scan.engine.ParquetHandler().ReadParquetFiles(
				ctx, []ScanFile{file}, it.scan.physicalSchema, it.physPred,
				map[string][]bool{file.Path: it.selection[file.Path]},
			)
			if err != nil {
				return nil, false, err
			}
			evaluator, err := it.scan.engine.EvaluationHandler().NewExpressionEvaluator(
				it.scan.physicalSchema, *file.Transform, it.scan.logicalSchema,
			)
			if err != nil {
				iter.Close()
				return nil, false, err
			}
			it.current = iter
			it.eval = evaluator
		}

		readStart := time.Now()
		batch, ok, err := it.current.Next(ctx)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			it.current.Close()
			it.current = nil
			it.eval = nil
			continue
		}
		telemetry.EmitLatency(ctx, "file_read", time.Since(readStart).Milliseconds())
		out, err := it.eval.Evaluate(ctx, batch)
		if err != nil {
			return nil, false, err
		}
		telemetry.EmitRowCount(ctx, "parquet", int64(out.Len()))
		return out, true, nil
	}
}

func (it *transformingIterator) Close() error {
	if it.current != nil {
		return it.current.Close()
	}
	return nil
}

// Execute resolves the scan's live files, masks deleted rows via their
// deletion vectors, and returns a pull-based iterator of logical rows:
// physical rows run through each file's transform in a per-file read
// pipeline.
func (s *Scan) Execute(ctx context.Context) (ParquetBatchIterator, error) {
	if s.physicalPredicate.Kind == PhysicalPredicateStaticSkipAll {
		return emptyBatchIterator{}, nil
	}

	files, err := s.ScanMetadata(ctx)
	if err != nil {
		return nil, err
	}

	resolver := NewDeletionVectorResolver(s.engine)
	selection := make(map[string][]bool, len(files))
	for _, f := range files {
		if !f.DvInfo.HasVector {
			continue
		}
		bm, err := LoadBitmap(f.DvInfo.Descriptor, resolver, s.snapshot.TableRoot())
		if err != nil {
			return nil, err
		}
		selection[f.Path] = SelectionVector(bm)
	}

	var physPred *PhysicalPredicate
	if s.physicalPredicate.Kind == PhysicalPredicateSome {
		physPred = &s.physicalPredicate
	}

	return &transformingIterator{
		scan: s, files: files, selection: selection, physPred: physPred, idx: -1,
	}, nil
}

// ScanFileVisitor receives one live, predicate-surviving scan file at a
// time as exactly ten positional getters mirroring an add-file action's
// physical columns, mirroring table_changes/scan.rs's own visitor shape
// rather than a generic row map.
type ScanFileVisitor interface {
	VisitFile(
		path string,
		size int64,
		partitionValues map[string]string,
		modificationTime int64,
		dataChange bool,
		statsJSON string,
		dvStorageType string,
		dvPathOrInline string,
		dvOffset *int64,
		dvCardinality int64,
	) error
}

// VisitScanFiles runs ScanMetadata and feeds each surviving file to visitor.
// ScanFile carries no modification time or data-change flag, so every file
// is visited with modificationTime 0 and dataChange true.
func (s *Scan) VisitScanFiles(ctx context.Context, visitor ScanFileVisitor) error {
	files, err := s.ScanMetadata(ctx)
	if err != nil {
		return err
	}
	for _, f := range files {
		var dvStorageType, dvPathOrInline string
		var dvOffset *int64
		var dvCardinality int64
		if f.DvInfo.HasVector && f.DvInfo.Descriptor != nil {
			d := f.DvInfo.Descriptor
			dvStorageType = dvStorageTypeCode(d.StorageType)
			dvPathOrInline = d.PathOrInline
			dvOffset = d.Offset
			dvCardinality = d.Cardinality
		}
		statsJSON := ""
		if f.Stats != nil {
			statsJSON = fmt.Sprintf(`{"numRecords":%d}`, f.Stats.NumRecords)
		}
		if err := visitor.VisitFile(f.Path, f.Size, f.PartitionValues, 0, true, statsJSON,
			dvStorageType, dvPathOrInline, dvOffset, dvCardinality); err != nil {
			return err
		}
	}
	return nil
}
