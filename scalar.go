package tablekernel

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

// ScalarKind discriminates the Scalar sum. It mirrors DataType's tags plus
// a dedicated Null marker, since a null scalar still carries a type.
type ScalarKind int

const (
	ScalarNull ScalarKind = iota
	ScalarPrimitive
	ScalarDecimal
	ScalarArray
	ScalarMap
	ScalarStruct
)

// Scalar is a value of exactly one DataType, or a typed null. It is the
// leaf node of both Expression literals and predicate comparisons.
type Scalar struct {
	Kind     ScalarKind
	Type     DataType
	Prim     any // valid when Kind == ScalarPrimitive: bool, string, []byte, int8/16/32/64, float32/64; a date is int32 days since epoch, a timestamp/timestamp_ntz int64 microseconds since epoch
	Decimal  DecimalData
	Elements []Scalar       // valid when Kind == ScalarArray
	Pairs    []ScalarMapKV  // valid when Kind == ScalarMap
	Fields   []Scalar       // valid when Kind == ScalarStruct (parallel to Type.StructFields)
}

// ScalarMapKV is one key/value pair of a map-typed Scalar.
type ScalarMapKV struct {
	Key   Scalar
	Value Scalar
}

// Null constructs a null scalar of the given type.
func Null(t DataType) Scalar { return Scalar{Kind: ScalarNull, Type: t} }

// IsNull reports whether the scalar is the null value.
func (s Scalar) IsNull() bool { return s.Kind == ScalarNull }

// DataType returns the scalar's type.
func (s Scalar) DataType() DataType { return s.Type }

func primitiveScalar(kind PrimitiveKind, v any) Scalar {
	return Scalar{Kind: ScalarPrimitive, Type: Primitive(kind), Prim: v}
}

func OfBool(v bool) Scalar      { return primitiveScalar(KindBoolean, v) }
func OfString(v string) Scalar  { return primitiveScalar(KindString, v) }
func OfBinary(v []byte) Scalar  { return primitiveScalar(KindBinary, v) }
func OfByte(v int8) Scalar      { return primitiveScalar(KindByte, v) }
func OfShort(v int16) Scalar    { return primitiveScalar(KindShort, v) }
func OfInteger(v int32) Scalar  { return primitiveScalar(KindInteger, v) }
func OfLong(v int64) Scalar     { return primitiveScalar(KindLong, v) }
func OfFloat(v float32) Scalar  { return primitiveScalar(KindFloat, v) }
func OfDouble(v float64) Scalar { return primitiveScalar(KindDouble, v) }

// OfDate wraps days-since-epoch (signed 32-bit) as a date scalar.
func OfDate(daysSinceEpoch int32) Scalar { return primitiveScalar(KindDate, daysSinceEpoch) }

// OfTimestamp wraps microseconds-since-epoch (UTC) as a zoned timestamp scalar.
func OfTimestamp(microsSinceEpoch int64) Scalar { return primitiveScalar(KindTimestamp, microsSinceEpoch) }

// OfTimestampNtz wraps microseconds-since-epoch as a zone-less timestamp scalar.
func OfTimestampNtz(microsSinceEpoch int64) Scalar {
	return primitiveScalar(KindTimestampNtz, microsSinceEpoch)
}

// OfDecimal wraps a DecimalData as a decimal scalar.
func OfDecimal(d DecimalData) Scalar {
	return Scalar{Kind: ScalarDecimal, Type: Decimal(d.Precision(), d.Scale()), Decimal: d}
}

// NewArray validates and constructs an array scalar. It enforces that every
// element has type elementType and, when !containsNull, that no element is
// null.
func NewArray(elementType DataType, containsNull bool, elems []Scalar) (Scalar, error) {
	for i, e := range elems {
		if e.IsNull() {
			if !containsNull {
				return Scalar{}, &KernelError{Type: ErrorTypeSchema, Code: ErrCodeSchema,
					Message: fmt.Sprintf("array element %d is null but array does not allow nulls", i)}
			}
			continue
		}
		if !e.DataType().Equal(elementType) {
			return Scalar{}, &KernelError{Type: ErrorTypeSchema, Code: ErrCodeSchema,
				Message: fmt.Sprintf("array element %d has type %s, expected %s", i, e.DataType(), elementType)}
		}
	}
	return Scalar{
		Kind:     ScalarArray,
		Type:     ArrayOf(elementType, containsNull),
		Elements: elems,
	}, nil
}

// NewMap validates and constructs a map scalar: every key must have type
// keyType and be non-null; every value must have type valueType, and may
// only be null when valueHasNull is set.
func NewMap(keyType, valueType DataType, valueHasNull bool, pairs []ScalarMapKV) (Scalar, error) {
	for i, p := range pairs {
		if p.Key.IsNull() {
			return Scalar{}, &KernelError{Type: ErrorTypeSchema, Code: ErrCodeSchema,
				Message: fmt.Sprintf("map key %d is null", i)}
		}
		if !p.Key.DataType().Equal(keyType) {
			return Scalar{}, &KernelError{Type: ErrorTypeSchema, Code: ErrCodeSchema,
				Message: fmt.Sprintf("map key %d has type %s, expected %s", i, p.Key.DataType(), keyType)}
		}
		if p.Value.IsNull() {
			if !valueHasNull {
				return Scalar{}, &KernelError{Type: ErrorTypeSchema, Code: ErrCodeSchema,
					Message: fmt.Sprintf("map value %d is null but map does not allow null values", i)}
			}
			continue
		}
		if !p.Value.DataType().Equal(valueType) {
			return Scalar{}, &KernelError{Type: ErrorTypeSchema, Code: ErrCodeSchema,
				Message: fmt.Sprintf("map value %d has type %s, expected %s", i, p.Value.DataType(), valueType)}
		}
	}
	return Scalar{
		Kind:  ScalarMap,
		Type:  MapOf(keyType, valueType, valueHasNull),
		Pairs: pairs,
	}, nil
}

// NewStruct validates and constructs a struct scalar: |fields| == |values|,
// and each value matches its field's declared type and nullability.
func NewStruct(fields []StructField, values []Scalar) (Scalar, error) {
	if len(fields) != len(values) {
		return Scalar{}, &KernelError{Type: ErrorTypeInvalidStructData, Code: ErrCodeInvalidStructData,
			Message: fmt.Sprintf("struct has %d fields but %d values", len(fields), len(values))}
	}
	for i, f := range fields {
		v := values[i]
		if v.IsNull() {
			if !f.Nullable {
				return Scalar{}, &KernelError{Type: ErrorTypeInvalidStructData, Code: ErrCodeInvalidStructData,
					Message: fmt.Sprintf("field %q is not nullable but value is null", f.Name)}
			}
			continue
		}
		if !v.DataType().Equal(f.Type) {
			return Scalar{}, &KernelError{Type: ErrorTypeInvalidStructData, Code: ErrCodeInvalidStructData,
				Message: fmt.Sprintf("field %q has type %s, expected %s", f.Name, v.DataType(), f.Type)}
		}
	}
	return Scalar{
		Kind:   ScalarStruct,
		Type:   StructOf(fields...),
		Fields: values,
	}, nil
}

// FieldValue returns the value of a named struct field, if the scalar is a
// non-null struct containing that field.
func (s Scalar) FieldValue(name string) (Scalar, bool) {
	if s.Kind != ScalarStruct {
		return Scalar{}, false
	}
	for i, f := range s.Type.StructFields {
		if f.Name == name {
			return s.Fields[i], true
		}
	}
	return Scalar{}, false
}

// Ordering reports the three-way comparison of two scalars. It returns
// (0, false) whenever the scalars are incomparable: either side is null
// (null is incomparable to everything, including itself), the types
// differ, decimals have mismatched (precision, scale), or the type is a
// container type (array/map/struct are not ordered at this layer).
func (s Scalar) Ordering(o Scalar) (cmp int, ok bool) {
	if s.IsNull() || o.IsNull() {
		return 0, false
	}
	if s.Kind != o.Kind {
		return 0, false
	}
	switch s.Kind {
	case ScalarDecimal:
		if s.Decimal.Precision() != o.Decimal.Precision() || s.Decimal.Scale() != o.Decimal.Scale() {
			return 0, false
		}
		return bigIntCmp(s.Decimal.bits, o.Decimal.bits), true
	case ScalarPrimitive:
		if s.Type.Primitive != o.Type.Primitive {
			return 0, false
		}
		return comparePrimitive(s.Type.Primitive, s.Prim, o.Prim)
	default:
		return 0, false
	}
}

func bigIntCmp(a, b *big.Int) int { return a.Cmp(b) }

func comparePrimitive(kind PrimitiveKind, a, b any) (int, bool) {
	switch kind {
	case KindBoolean:
		av, bv := a.(bool), b.(bool)
		if av == bv {
			return 0, true
		}
		if !av && bv {
			return -1, true
		}
		return 1, true
	case KindString:
		return strings.Compare(a.(string), b.(string)), true
	case KindBinary:
		return compareBytes(a.([]byte), b.([]byte)), true
	case KindByte:
		return compareInt64(int64(a.(int8)), int64(b.(int8))), true
	case KindShort:
		return compareInt64(int64(a.(int16)), int64(b.(int16))), true
	case KindInteger, KindDate:
		return compareInt64(int64(a.(int32)), int64(b.(int32))), true
	case KindLong, KindTimestamp, KindTimestampNtz:
		return compareInt64(a.(int64), b.(int64)), true
	case KindFloat:
		return compareFloat64(float64(a.(float32)), float64(b.(float32))), true
	case KindDouble:
		return compareFloat64(a.(float64), b.(float64)), true
	}
	return 0, false
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return compareInt64(int64(len(a)), int64(len(b)))
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Equal reports scalar equality under the Format's ordering rules: two
// nulls are never equal to each other (Scalar::Null compares unequal to
// itself, preserved deliberately — see DESIGN.md's "Open Questions
// resolved" section), and
// two non-null scalars are equal iff Ordering returns (0, true).
func (s Scalar) Equal(o Scalar) bool {
	if s.IsNull() || o.IsNull() {
		return false
	}
	cmp, ok := s.Ordering(o)
	return ok && cmp == 0
}

// normalizeTimestamp converts t to UTC. Nothing in this package calls it;
// timestamp scalars are compared as int64 microseconds.
func normalizeTimestamp(t time.Time) time.Time { return t.UTC() }

// tryArith implements try_add/sub/mul/div: defined only for two non-null
// scalars of the same integral primitive type (byte/short/integer/long).
// Overflow or division by zero yields (Scalar{}, false); any other type
// combination also yields (Scalar{}, false) rather than an error.
func tryArith(a, b Scalar, op func(a, b int64) (int64, bool)) (Scalar, bool) {
	if a.IsNull() || b.IsNull() || a.Kind != ScalarPrimitive || b.Kind != ScalarPrimitive {
		return Scalar{}, false
	}
	if a.Type.Primitive != b.Type.Primitive {
		return Scalar{}, false
	}
	var av, bv int64
	switch a.Type.Primitive {
	case KindByte:
		av, bv = int64(a.Prim.(int8)), int64(b.Prim.(int8))
	case KindShort:
		av, bv = int64(a.Prim.(int16)), int64(b.Prim.(int16))
	case KindInteger:
		av, bv = int64(a.Prim.(int32)), int64(b.Prim.(int32))
	case KindLong:
		av, bv = a.Prim.(int64), b.Prim.(int64)
	default:
		return Scalar{}, false
	}
	r, ok := op(av, bv)
	if !ok {
		return Scalar{}, false
	}
	switch a.Type.Primitive {
	case KindByte:
		if r < -128 || r > 127 {
			return Scalar{}, false
		}
		return OfByte(int8(r)), true
	case KindShort:
		if r < -32768 || r > 32767 {
			return Scalar{}, false
		}
		return OfShort(int16(r)), true
	case KindInteger:
		if r < -2147483648 || r > 2147483647 {
			return Scalar{}, false
		}
		return OfInteger(int32(r)), true
	default: // KindLong
		return OfLong(r), true
	}
}

// TryAdd returns a+b, or (Scalar{}, false) on overflow or a type mismatch.
func TryAdd(a, b Scalar) (Scalar, bool) {
	return tryArith(a, b, func(x, y int64) (int64, bool) {
		r := x + y
		if (y > 0 && r < x) || (y < 0 && r > x) {
			return 0, false
		}
		return r, true
	})
}

// TrySub returns a-b, or (Scalar{}, false) on overflow or a type mismatch.
func TrySub(a, b Scalar) (Scalar, bool) {
	return tryArith(a, b, func(x, y int64) (int64, bool) {
		r := x - y
		if (y < 0 && r < x) || (y > 0 && r > x) {
			return 0, false
		}
		return r, true
	})
}

// TryMul returns a*b, or (Scalar{}, false) on overflow or a type mismatch.
func TryMul(a, b Scalar) (Scalar, bool) {
	return tryArith(a, b, func(x, y int64) (int64, bool) {
		if x == 0 || y == 0 {
			return 0, true
		}
		r := x * y
		if r/y != x {
			return 0, false
		}
		return r, true
	})
}

// TryDiv returns a/b, or (Scalar{}, false) on division-by-zero or a type mismatch.
func TryDiv(a, b Scalar) (Scalar, bool) {
	return tryArith(a, b, func(x, y int64) (int64, bool) {
		if y == 0 {
			return 0, false
		}
		return x / y, true
	})
}

// String renders the scalar for debugging and logging:
// decimals render as integer.fraction with zero-padded fractional digits,
// strings are single-quoted, arrays use parentheses, structs use braces.
func (s Scalar) String() string {
	if s.IsNull() {
		return "null"
	}
	switch s.Kind {
	case ScalarDecimal:
		return s.Decimal.String()
	case ScalarPrimitive:
		return formatPrimitive(s.Type.Primitive, s.Prim)
	case ScalarArray:
		parts := make([]string, len(s.Elements))
		for i, e := range s.Elements {
			parts[i] = e.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case ScalarMap:
		parts := make([]string, len(s.Pairs))
		for i, p := range s.Pairs {
			parts[i] = p.Key.String() + " -> " + p.Value.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case ScalarStruct:
		parts := make([]string, len(s.Fields))
		for i, f := range s.Type.StructFields {
			parts[i] = f.Name + ": " + s.Fields[i].String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return "?"
}

func formatPrimitive(kind PrimitiveKind, v any) string {
	switch kind {
	case KindString:
		return "'" + v.(string) + "'"
	case KindBoolean:
		if v.(bool) {
			return "true"
		}
		return "false"
	case KindBinary:
		return fmt.Sprintf("%x", v.([]byte))
	case KindDate:
		return epochDayToDate(v.(int32)).Format("2006-01-02")
	case KindTimestamp:
		return epochMicrosToTime(v.(int64)).UTC().Format("2006-01-02 15:04:05.999999Z07:00")
	case KindTimestampNtz:
		return epochMicrosToTime(v.(int64)).UTC().Format("2006-01-02 15:04:05.999999")
	default:
		return fmt.Sprintf("%v", v)
	}
}
