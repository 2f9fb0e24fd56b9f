package tablekernel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() StructType {
	return NewStructType(
		NotNull("id", Primitive(KindLong)),
		NotNull("region", Primitive(KindString)),
		NotNull("amount", Primitive(KindDouble)),
	)
}

func TestScanBuilder_Build_ClassifiesPartitionVsPhysicalColumns(t *testing.T) {
	snap := fakeSnapshot{schema: testSchema(), partitionCols: []string{"region"}}
	scan, err := NewScanBuilder(snap, fakeEngine{}).Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "amount"}, fieldNames(scan.PhysicalSchema()))
	assert.True(t, scan.columnTypeByName["region"].IsPartition)
	assert.False(t, scan.columnTypeByName["id"].IsPartition)
}

func fieldNames(st StructType) []string {
	names := make([]string, len(st.Fields))
	for i, f := range st.Fields {
		names[i] = f.Name
	}
	return names
}

func TestScan_ScanMetadata_ReplaysAddAndRemoveTombstones(t *testing.T) {
	storage := newFakeStorage()
	storage.put("/tbl/_delta_log/00000000000000000000.json",
		`{"add":{"path":"p1.parquet","size":1,"partitionValues":{"region":"us"}}}`+"\n"+
			`{"add":{"path":"p2.parquet","size":2,"partitionValues":{"region":"eu"}}}`)
	storage.put("/tbl/_delta_log/00000000000000000001.json",
		`{"remove":{"path":"p1.parquet","deletionTimestamp":5}}`)

	snap := fakeSnapshot{
		schema:        testSchema(),
		partitionCols: []string{"region"},
		logSegment: fakeLogSegment{commits: []CommitFile{
			{Version: 0, Path: "/tbl/_delta_log/00000000000000000000.json"},
			{Version: 1, Path: "/tbl/_delta_log/00000000000000000001.json"},
		}},
	}
	scan, err := NewScanBuilder(snap, fakeEngine{storage: storage}).Build()
	require.NoError(t, err)

	files, err := scan.ScanMetadata(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "p2.parquet", files[0].Path)
}

func TestScan_ScanMetadata_PrunesFileByPartitionPredicate(t *testing.T) {
	storage := newFakeStorage()
	storage.put("/tbl/_delta_log/00000000000000000000.json",
		`{"add":{"path":"p1.parquet","size":1,"partitionValues":{"region":"us"}}}`+"\n"+
			`{"add":{"path":"p2.parquet","size":2,"partitionValues":{"region":"eu"}}}`)

	snap := fakeSnapshot{
		schema:        testSchema(),
		partitionCols: []string{"region"},
		logSegment:    fakeLogSegment{commits: []CommitFile{{Version: 0, Path: "/tbl/_delta_log/00000000000000000000.json"}}},
	}
	pred := Eq(Column("region"), Lit(OfString("us")))
	scan, err := NewScanBuilder(snap, fakeEngine{storage: storage}).WithPredicate(pred).Build()
	require.NoError(t, err)

	files, err := scan.ScanMetadata(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "p1.parquet", files[0].Path)
}

func TestScan_ScanMetadata_ReadCommitFailurePropagates(t *testing.T) {
	storage := newFakeStorage()
	snap := fakeSnapshot{
		schema:     testSchema(),
		logSegment: fakeLogSegment{commits: []CommitFile{{Version: 0, Path: "/missing.json"}}},
	}
	scan, err := NewScanBuilder(snap, fakeEngine{storage: storage}).Build()
	require.NoError(t, err)

	_, err = scan.ScanMetadata(context.Background())
	require.Error(t, err)
}

func TestScan_Execute_StaticSkipAllReturnsEmptyIterator(t *testing.T) {
	snap := fakeSnapshot{schema: testSchema()}
	scan, err := NewScanBuilder(snap, fakeEngine{}).WithPredicate(AlwaysFalse).Build()
	require.NoError(t, err)
	assert.Equal(t, PhysicalPredicateStaticSkipAll, scan.physicalPredicate.Kind)

	it, err := scan.Execute(context.Background())
	require.NoError(t, err)
	_, ok, err := it.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScan_Execute_ReadsEachFileThroughParquetHandlerAndEvaluator(t *testing.T) {
	storage := newFakeStorage()
	storage.put("/tbl/_delta_log/00000000000000000000.json",
		`{"add":{"path":"p1.parquet","size":1,"partitionValues":{}}}`)

	snap := fakeSnapshot{
		schema:     testSchema(),
		tableRoot:  "/tbl",
		logSegment: fakeLogSegment{commits: []CommitFile{{Version: 0, Path: "/tbl/_delta_log/00000000000000000000.json"}}},
	}
	parquet := &fakeParquetHandler{rowsPerFile: 3}
	engine := fakeEngine{storage: storage, parquet: parquet, evaluation: fakeEvaluationHandler{}}
	scan, err := NewScanBuilder(snap, engine).Build()
	require.NoError(t, err)

	it, err := scan.Execute(context.Background())
	require.NoError(t, err)
	batch, ok, err := it.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotNil(t, batch)
	require.NoError(t, it.Close())
}

func TestVisitScanFiles_VisitsEachSurvivingFile(t *testing.T) {
	storage := newFakeStorage()
	storage.put("/tbl/_delta_log/00000000000000000000.json",
		`{"add":{"path":"p1.parquet","size":5,"partitionValues":{}}}`)

	snap := fakeSnapshot{
		schema:     testSchema(),
		logSegment: fakeLogSegment{commits: []CommitFile{{Version: 0, Path: "/tbl/_delta_log/00000000000000000000.json"}}},
	}
	scan, err := NewScanBuilder(snap, fakeEngine{storage: storage}).Build()
	require.NoError(t, err)

	var visited []string
	visitor := visitorFunc(func(path string, size int64, pv map[string]string, mtime int64, dc bool, stats, dvType, dvPath string, dvOffset *int64, dvCard int64) error {
		visited = append(visited, path)
		return nil
	})
	require.NoError(t, scan.VisitScanFiles(context.Background(), visitor))
	assert.Equal(t, []string{"p1.parquet"}, visited)
}

type visitorFunc func(path string, size int64, partitionValues map[string]string, modificationTime int64, dataChange bool, statsJSON string, dvStorageType string, dvPathOrInline string, dvOffset *int64, dvCardinality int64) error

func (f visitorFunc) VisitFile(path string, size int64, partitionValues map[string]string, modificationTime int64, dataChange bool, statsJSON string, dvStorageType string, dvPathOrInline string, dvOffset *int64, dvCardinality int64) error {
	return f(path, size, partitionValues, modificationTime, dataChange, statsJSON, dvStorageType, dvPathOrInline, dvOffset, dvCardinality)
}

func TestParsePartitionValue_VariousPrimitiveTypes(t *testing.T) {
	cases := []struct {
		raw string
		dt  DataType
	}{
		{"hello", Primitive(KindString)},
		{"true", Primitive(KindBoolean)},
		{"7", Primitive(KindInteger)},
		{"7", Primitive(KindLong)},
		{"1.5", Primitive(KindDouble)},
	}
	for _, c := range cases {
		v, err := ParsePartitionValue(c.raw, c.dt)
		require.NoError(t, err)
		assert.False(t, v.IsNull())
	}
}

func TestParsePartitionValue_InvalidBooleanErrors(t *testing.T) {
	_, err := ParsePartitionValue("not-a-bool", Primitive(KindBoolean))
	require.Error(t, err)
}

func TestParsePartitionValue_UnsupportedTypeErrors(t *testing.T) {
	_, err := ParsePartitionValue("x", NewStructType())
	require.Error(t, err)
}

func TestBuildPhysicalPredicate_PartitionOnlyPredicateTranslatesToAlwaysTrue(t *testing.T) {
	colTypeByName := map[string]ColumnType{
		"region": PartitionColumn(0),
		"id":     Selected("id"),
	}
	phys := buildPhysicalPredicate(ptr(Eq(Column("region"), Lit(OfString("us")))), NewStructType(NotNull("id", Primitive(KindLong))), colTypeByName)
	assert.Equal(t, PhysicalPredicateNone, phys.Kind)
}

func TestBuildPhysicalPredicate_PhysicalColumnPredicateTranslates(t *testing.T) {
	colTypeByName := map[string]ColumnType{
		"id": Selected("id"),
	}
	phys := buildPhysicalPredicate(ptr(Eq(Column("id"), Lit(OfLong(1)))), NewStructType(NotNull("id", Primitive(KindLong))), colTypeByName)
	assert.Equal(t, PhysicalPredicateSome, phys.Kind)
}

func TestBuildPhysicalPredicate_NilPredicateIsNone(t *testing.T) {
	phys := buildPhysicalPredicate(nil, NewStructType(), map[string]ColumnType{})
	assert.Equal(t, PhysicalPredicateNone, phys.Kind)
}

func TestBuildPhysicalPredicate_StaticFalseDetected(t *testing.T) {
	phys := buildPhysicalPredicate(ptr(AlwaysFalse), NewStructType(), map[string]ColumnType{})
	assert.Equal(t, PhysicalPredicateStaticSkipAll, phys.Kind)
}

func ptr[T any](v T) *T { return &v }
