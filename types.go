// Package tablekernel implements the client-side core of an open,
// log-structured table format: a typed scalar/expression/predicate algebra,
// scan and change-data-feed planning, and optimistic-concurrency write
// transactions. Physical I/O (object storage, Parquet, JSON log writing,
// expression evaluation) is never performed directly by this package —
// it is delegated to an Engine supplied by the caller (see engine.go).
package tablekernel

import "fmt"

// PrimitiveKind enumerates the non-decimal primitive scalar types.
type PrimitiveKind string

const (
	KindByte         PrimitiveKind = "byte"
	KindShort        PrimitiveKind = "short"
	KindInteger      PrimitiveKind = "integer"
	KindLong         PrimitiveKind = "long"
	KindFloat        PrimitiveKind = "float"
	KindDouble       PrimitiveKind = "double"
	KindString       PrimitiveKind = "string"
	KindBoolean      PrimitiveKind = "boolean"
	KindBinary       PrimitiveKind = "binary"
	KindDate         PrimitiveKind = "date"
	KindTimestamp    PrimitiveKind = "timestamp"     // UTC, microsecond precision
	KindTimestampNtz PrimitiveKind = "timestamp_ntz" // no time zone, microsecond precision
)

// TypeTag discriminates the DataType sum.
type TypeTag int

const (
	TypePrimitive TypeTag = iota
	TypeArray
	TypeMap
	TypeStruct
	TypeDecimal
)

// DataType is the closed sum of all scalar and container types a column or
// literal can carry. Exactly one group of accessor fields is meaningful,
// selected by Tag.
type DataType struct {
	Tag       TypeTag
	Primitive PrimitiveKind // valid when Tag == TypePrimitive

	Precision uint8 // valid when Tag == TypeDecimal
	Scale     uint8 // valid when Tag == TypeDecimal

	Element      *DataType // valid when Tag == TypeArray
	ContainsNull bool      // valid when Tag == TypeArray (element nullability)

	Key          *DataType // valid when Tag == TypeMap
	Value        *DataType // valid when Tag == TypeMap
	ValueHasNull bool      // valid when Tag == TypeMap

	StructFields []StructField // valid when Tag == TypeStruct
}

// Primitive constructs a DataType wrapping a primitive kind.
func Primitive(kind PrimitiveKind) DataType { return DataType{Tag: TypePrimitive, Primitive: kind} }

var (
	ByteType         = Primitive(KindByte)
	ShortType        = Primitive(KindShort)
	IntegerType      = Primitive(KindInteger)
	LongType         = Primitive(KindLong)
	FloatType        = Primitive(KindFloat)
	DoubleType       = Primitive(KindDouble)
	StringType       = Primitive(KindString)
	BooleanType      = Primitive(KindBoolean)
	BinaryType       = Primitive(KindBinary)
	DateType         = Primitive(KindDate)
	TimestampType    = Primitive(KindTimestamp)
	TimestampNtzType = Primitive(KindTimestampNtz)
)

// Decimal constructs a decimal(precision, scale) DataType.
func Decimal(precision, scale uint8) DataType {
	return DataType{Tag: TypeDecimal, Precision: precision, Scale: scale}
}

// ArrayOf constructs an array(element, containsNull) DataType.
func ArrayOf(element DataType, containsNull bool) DataType {
	return DataType{Tag: TypeArray, Element: &element, ContainsNull: containsNull}
}

// MapOf constructs a map(key, value, valueContainsNull) DataType.
func MapOf(key, value DataType, valueHasNull bool) DataType {
	return DataType{Tag: TypeMap, Key: &key, Value: &value, ValueHasNull: valueHasNull}
}

// StructOf constructs a struct(fields...) DataType, preserving field order.
func StructOf(fields ...StructField) DataType {
	return DataType{Tag: TypeStruct, StructFields: fields}
}

// StructField is one ordered member of a struct DataType.
type StructField struct {
	Name     string
	Type     DataType
	Nullable bool
}

// NotNull builds a non-nullable struct field.
func NotNull(name string, t DataType) StructField {
	return StructField{Name: name, Type: t, Nullable: false}
}

// FieldNullable builds a nullable struct field.
func FieldNullable(name string, t DataType) StructField {
	return StructField{Name: name, Type: t, Nullable: true}
}

// Equal reports structural equality between two DataTypes, including
// decimal precision/scale and nested element/field types.
func (t DataType) Equal(o DataType) bool {
	if t.Tag != o.Tag {
		return false
	}
	switch t.Tag {
	case TypePrimitive:
		return t.Primitive == o.Primitive
	case TypeDecimal:
		return t.Precision == o.Precision && t.Scale == o.Scale
	case TypeArray:
		return t.ContainsNull == o.ContainsNull && t.Element.Equal(*o.Element)
	case TypeMap:
		return t.ValueHasNull == o.ValueHasNull && t.Key.Equal(*o.Key) && t.Value.Equal(*o.Value)
	case TypeStruct:
		if len(t.StructFields) != len(o.StructFields) {
			return false
		}
		for i := range t.StructFields {
			a, b := t.StructFields[i], o.StructFields[i]
			if a.Name != b.Name || a.Nullable != b.Nullable || !a.Type.Equal(b.Type) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders a DataType using the Format's canonical textual names.
func (t DataType) String() string {
	switch t.Tag {
	case TypePrimitive:
		return string(t.Primitive)
	case TypeDecimal:
		return fmt.Sprintf("decimal(%d,%d)", t.Precision, t.Scale)
	case TypeArray:
		return fmt.Sprintf("array<%s>", t.Element.String())
	case TypeMap:
		return fmt.Sprintf("map<%s,%s>", t.Key.String(), t.Value.String())
	case TypeStruct:
		out := "struct<"
		for i, f := range t.StructFields {
			if i > 0 {
				out += ","
			}
			out += f.Name + ":" + f.Type.String()
		}
		return out + ">"
	}
	return "unknown"
}

// FieldByName returns the struct field with the given name, if present.
func (t DataType) FieldByName(name string) (StructField, bool) {
	for _, f := range t.StructFields {
		if f.Name == name {
			return f, true
		}
	}
	return StructField{}, false
}

// ColumnType classifies a logical schema field produced by a ScanBuilder:
// either it is read from the physical file under some (possibly renamed)
// physical name, or it is materialized from partition_values at the given
// index into the logical schema.
type ColumnType struct {
	IsPartition    bool
	PhysicalName   string // valid when !IsPartition
	PartitionIndex int    // valid when IsPartition: index into the logical schema
}

// Selected builds a ColumnType for a column read from the physical file
// (or, for CDF, a synthetic column materialized via the transform expression).
func Selected(physicalName string) ColumnType { return ColumnType{PhysicalName: physicalName} }

// PartitionColumn builds a ColumnType for a column materialized from partition values.
func PartitionColumn(logicalIndex int) ColumnType {
	return ColumnType{IsPartition: true, PartitionIndex: logicalIndex}
}

// PhysicalPredicateKind discriminates the PhysicalPredicate sum.
type PhysicalPredicateKind int

const (
	PhysicalPredicateNone PhysicalPredicateKind = iota
	PhysicalPredicateStaticSkipAll
	PhysicalPredicateSome
)

// PhysicalPredicate is the result of translating a logical predicate into
// physical column names, after pruning branches that reference only
// columns guaranteed absent from the physical schema.
type PhysicalPredicate struct {
	Kind      PhysicalPredicateKind
	Predicate Predicate // valid when Kind == PhysicalPredicateSome
	Required  StructType
}

// DvInfo carries the raw deletion-vector descriptor (if any) attached to a
// data file action, plus whether it renders downstream statistics stale.
type DvInfo struct {
	Descriptor *DeletionVectorDescriptor
	HasVector  bool
}

// ScanFile describes one physical data file selected by a Scan: where it
// lives, its partition values, best-effort stats, its deletion vector, and
// the per-file transform expression that turns a physical row into a
// logical one.
type ScanFile struct {
	Path            string
	Size            int64
	PartitionValues map[string]string
	Stats           *FileStats
	DvInfo          DvInfo
	Transform       *Expression
}

// FileStats is the subset of per-file statistics the core understands.
type FileStats struct {
	NumRecords uint64
}

// ResolvedCdfScanFile extends ScanFile with the fields needed to emit a
// Change Data Feed event: the selection vector that survived deletion
// vector pairing, whether this file was the result of pairing an add and a
// remove action, and the originating commit's version/timestamp.
type ResolvedCdfScanFile struct {
	ScanFile
	SelectionVector []bool // nil means "all rows selected"
	IsResolvedPair  bool
	CommitVersion   int64
	CommitTimestamp int64
	ChangeType      string
}

// Change type values for the _change_type synthetic column.
const (
	ChangeTypeInsert          = "insert"
	ChangeTypeDelete          = "delete"
	ChangeTypeUpdatePreimage  = "update_preimage"
	ChangeTypeUpdatePostimage = "update_postimage"
)

// CDF synthetic column names.
const (
	ColumnChangeType      = "_change_type"
	ColumnCommitVersion   = "_commit_version"
	ColumnCommitTimestamp = "_commit_timestamp"
)

// CDFFields lists the synthetic columns injected by a CDF scan, in the
// order they are appended to the logical schema when not explicitly
// projected.
var CDFFields = []StructField{
	NotNull(ColumnChangeType, StringType),
	NotNull(ColumnCommitVersion, LongType),
	NotNull(ColumnCommitTimestamp, LongType),
}

// IsCDFColumn reports whether name is one of the three synthetic CDF columns.
func IsCDFColumn(name string) bool {
	return name == ColumnChangeType || name == ColumnCommitVersion || name == ColumnCommitTimestamp
}

// StructType is a named alias for the field list of a struct DataType, used
// wherever a full schema (rather than an inline struct value type) is
// expected.
type StructType struct {
	Fields []StructField
}

// NewStructType builds a StructType from an ordered field list.
func NewStructType(fields ...StructField) StructType { return StructType{Fields: fields} }

// AsDataType converts the StructType to its equivalent struct DataType.
func (s StructType) AsDataType() DataType { return StructOf(s.Fields...) }

// FieldByName returns the field with the given name, if present.
func (s StructType) FieldByName(name string) (StructField, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return StructField{}, false
}

// FileMeta identifies one file in the object store, as returned by
// StorageHandler.List.
type FileMeta struct {
	Location     string
	LastModified int64
	Size         int64
}
