package localengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lychee-technology/tablekernel"
)

func TestRowBatch_AppendAndLen(t *testing.T) {
	schema := tablekernel.NewStructType(tablekernel.NotNull("id", tablekernel.Primitive(tablekernel.KindLong)))
	b := NewRowBatch(schema)
	b.AppendRow(map[string]tablekernel.Scalar{"id": tablekernel.OfLong(1)})
	b.AppendRow(map[string]tablekernel.Scalar{"id": tablekernel.OfLong(2)})
	assert.Equal(t, 2, b.Len())
}

func TestRowBatch_GetString(t *testing.T) {
	schema := tablekernel.NewStructType(tablekernel.NotNull("name", tablekernel.Primitive(tablekernel.KindString)))
	b := NewRowBatch(schema)
	b.AppendRow(map[string]tablekernel.Scalar{"name": tablekernel.OfString("bob")})

	v, ok := b.GetString(0, "name")
	require.True(t, ok)
	assert.Equal(t, "bob", v)

	_, ok = b.GetString(0, "missing")
	assert.False(t, ok)

	_, ok = b.GetString(5, "name")
	assert.False(t, ok)
}

func TestRowBatch_GetLongNarrowTypes(t *testing.T) {
	schema := tablekernel.NewStructType(tablekernel.NotNull("v", tablekernel.Primitive(tablekernel.KindInteger)))
	b := NewRowBatch(schema)
	b.AppendRow(map[string]tablekernel.Scalar{"v": tablekernel.OfInteger(42)})

	v, ok := b.GetLong(0, "v")
	require.True(t, ok)
	assert.Equal(t, int64(42), v)
}

func TestRowBatch_GetLongNullReturnsFalse(t *testing.T) {
	schema := tablekernel.NewStructType(tablekernel.FieldNullable("v", tablekernel.Primitive(tablekernel.KindLong)))
	b := NewRowBatch(schema)
	b.AppendRow(map[string]tablekernel.Scalar{"v": tablekernel.Null(tablekernel.Primitive(tablekernel.KindLong))})

	_, ok := b.GetLong(0, "v")
	assert.False(t, ok)
}

func TestRowBatch_GetBool(t *testing.T) {
	schema := tablekernel.NewStructType(tablekernel.NotNull("flag", tablekernel.Primitive(tablekernel.KindBoolean)))
	b := NewRowBatch(schema)
	b.AppendRow(map[string]tablekernel.Scalar{"flag": tablekernel.OfBool(true)})

	v, ok := b.GetBool(0, "flag")
	require.True(t, ok)
	assert.True(t, v)
}

func TestRowBatch_GetStruct(t *testing.T) {
	inner := []tablekernel.StructField{tablekernel.NotNull("x", tablekernel.Primitive(tablekernel.KindLong))}
	sv, err := tablekernel.NewStruct(inner, []tablekernel.Scalar{tablekernel.OfLong(9)})
	require.NoError(t, err)

	schema := tablekernel.NewStructType(tablekernel.NotNull("nested", sv.Type))
	b := NewRowBatch(schema)
	b.AppendRow(map[string]tablekernel.Scalar{"nested": sv})

	nested, ok := b.GetStruct(0, "nested")
	require.True(t, ok)
	assert.Equal(t, 1, nested.Len())
	x, ok := nested.GetLong(0, "x")
	require.True(t, ok)
	assert.Equal(t, int64(9), x)
}

func TestCommitInfoBatch_RoundTripsKeyValuePairs(t *testing.T) {
	batch := CommitInfoBatch(map[string]string{"engineInfo": "tablekernelctl/0.1"})
	require.Equal(t, 1, batch.Len())

	m, ok := batch.GetStringMap(0, "engineCommitInfo")
	require.True(t, ok)
	assert.Equal(t, "tablekernelctl/0.1", m["engineInfo"])
}

func TestCommitInfoBatch_EmptyMapStillProducesOneRow(t *testing.T) {
	batch := CommitInfoBatch(nil)
	assert.Equal(t, 1, batch.Len())
}

func TestRowBatch_Resolver(t *testing.T) {
	schema := tablekernel.NewStructType(tablekernel.NotNull("id", tablekernel.Primitive(tablekernel.KindLong)))
	b := NewRowBatch(schema)
	b.AppendRow(map[string]tablekernel.Scalar{"id": tablekernel.OfLong(3)})

	r := b.Resolver(0)
	v, ok := r.Resolve([]string{"id"})
	require.True(t, ok)
	assert.Equal(t, tablekernel.OfLong(3), v)
}
