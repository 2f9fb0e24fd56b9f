package localengine

import (
	"github.com/lychee-technology/tablekernel"
)

// RowBatch is the concrete tablekernel.EngineData/tablekernel.RowReader this
// engine hands back across every capability boundary: a DuckDB parquet read,
// a staged commit-info/add-files batch from a caller, or the output of an
// ExpressionEvaluator. Rows are stored as a flat map keyed by column name
// rather than a columnar layout, matching the row-oriented shape the
// teacher's own handlers pass between its storage and transform layers.
type RowBatch struct {
	Schema tablekernel.StructType
	Rows   []map[string]tablekernel.Scalar
}

// NewRowBatch builds an empty batch over schema.
func NewRowBatch(schema tablekernel.StructType) *RowBatch {
	return &RowBatch{Schema: schema}
}

// AppendRow appends one row, given as column name -> value.
func (b *RowBatch) AppendRow(row map[string]tablekernel.Scalar) {
	b.Rows = append(b.Rows, row)
}

// Len implements tablekernel.EngineData.
func (b *RowBatch) Len() int { return len(b.Rows) }

func (b *RowBatch) scalar(row int, col string) (tablekernel.Scalar, bool) {
	if row < 0 || row >= len(b.Rows) {
		return tablekernel.Scalar{}, false
	}
	v, ok := b.Rows[row][col]
	return v, ok
}

// GetString implements tablekernel.RowReader.
func (b *RowBatch) GetString(row int, col string) (string, bool) {
	v, ok := b.scalar(row, col)
	if !ok || v.IsNull() {
		return "", false
	}
	s, ok := v.Prim.(string)
	return s, ok
}

// GetLong implements tablekernel.RowReader.
func (b *RowBatch) GetLong(row int, col string) (int64, bool) {
	v, ok := b.scalar(row, col)
	if !ok || v.IsNull() {
		return 0, false
	}
	switch n := v.Prim.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int8:
		return int64(n), true
	}
	return 0, false
}

// GetBool implements tablekernel.RowReader.
func (b *RowBatch) GetBool(row int, col string) (bool, bool) {
	v, ok := b.scalar(row, col)
	if !ok || v.IsNull() {
		return false, false
	}
	bv, ok := v.Prim.(bool)
	return bv, ok
}

// GetStringMap implements tablekernel.RowReader, converting a map-typed
// scalar of string keys and values into a plain Go map.
func (b *RowBatch) GetStringMap(row int, col string) (map[string]string, bool) {
	v, ok := b.scalar(row, col)
	if !ok || v.IsNull() || v.Kind != tablekernel.ScalarMap {
		return nil, false
	}
	out := make(map[string]string, len(v.Pairs))
	for _, kv := range v.Pairs {
		k, kok := kv.Key.Prim.(string)
		if !kok {
			continue
		}
		if kv.Value.IsNull() {
			continue
		}
		val, vok := kv.Value.Prim.(string)
		if !vok {
			continue
		}
		out[k] = val
	}
	return out, true
}

// GetStruct implements tablekernel.RowReader by wrapping a struct-typed
// scalar's fields as a single-row RowBatch.
func (b *RowBatch) GetStruct(row int, col string) (tablekernel.RowReader, bool) {
	v, ok := b.scalar(row, col)
	if !ok || v.IsNull() || v.Kind != tablekernel.ScalarStruct {
		return nil, false
	}
	nested := &RowBatch{Schema: tablekernel.NewStructType(v.Type.StructFields...)}
	nested.Rows = append(nested.Rows, make(map[string]tablekernel.Scalar, len(v.Fields)))
	for i, f := range v.Type.StructFields {
		nested.Rows[0][f.Name] = v.Fields[i]
	}
	return nested, true
}

// CommitInfoBatch builds the single-row, single-column RowBatch a
// Transaction's WithCommitInfo expects: one "engineCommitInfo" map<string,
// string> column holding the caller-supplied key/value pairs.
func CommitInfoBatch(engineCommitInfo map[string]string) tablekernel.RowReader {
	pairs := make([]tablekernel.ScalarMapKV, 0, len(engineCommitInfo))
	for k, v := range engineCommitInfo {
		pairs = append(pairs, tablekernel.ScalarMapKV{Key: tablekernel.OfString(k), Value: tablekernel.OfString(v)})
	}
	m, err := tablekernel.NewMap(tablekernel.StringType, tablekernel.StringType, true, pairs)
	if err != nil {
		m = tablekernel.Null(tablekernel.MapOf(tablekernel.StringType, tablekernel.StringType, true))
	}
	schema := tablekernel.NewStructType(tablekernel.StructField{Name: "engineCommitInfo", Type: m.Type, Nullable: true})
	batch := NewRowBatch(schema)
	batch.AppendRow(map[string]tablekernel.Scalar{"engineCommitInfo": m})
	return batch
}

// Resolver returns a tablekernel.ColumnResolver over one row of the batch,
// for use by the evaluator and by any caller wiring ad hoc predicate
// evaluation against a materialized row.
func (b *RowBatch) Resolver(row int) tablekernel.MapResolver {
	return tablekernel.MapResolver(b.Rows[row])
}
