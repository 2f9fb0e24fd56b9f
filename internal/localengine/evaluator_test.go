package localengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lychee-technology/tablekernel"
)

func TestNewExpressionEvaluator_RejectsNonStructExpression(t *testing.T) {
	ev := NewEvaluator()
	_, err := ev.NewExpressionEvaluator(
		tablekernel.NewStructType(),
		tablekernel.Lit(tablekernel.OfLong(1)),
		tablekernel.NewStructType(tablekernel.NotNull("v", tablekernel.Primitive(tablekernel.KindLong))),
	)
	require.Error(t, err)
}

func TestNewExpressionEvaluator_RejectsColumnCountMismatch(t *testing.T) {
	ev := NewEvaluator()
	_, err := ev.NewExpressionEvaluator(
		tablekernel.NewStructType(),
		tablekernel.StructExpr(tablekernel.Lit(tablekernel.OfLong(1))),
		tablekernel.NewStructType(
			tablekernel.NotNull("a", tablekernel.Primitive(tablekernel.KindLong)),
			tablekernel.NotNull("b", tablekernel.Primitive(tablekernel.KindLong)),
		),
	)
	require.Error(t, err)
}

func TestExpressionEvaluator_EvaluateProjectsAndRenames(t *testing.T) {
	inSchema := tablekernel.NewStructType(tablekernel.NotNull("raw_id", tablekernel.Primitive(tablekernel.KindLong)))
	outSchema := tablekernel.NewStructType(tablekernel.NotNull("id", tablekernel.Primitive(tablekernel.KindLong)))

	ev := NewEvaluator()
	evaluator, err := ev.NewExpressionEvaluator(inSchema, tablekernel.StructExpr(tablekernel.Column("raw_id")), outSchema)
	require.NoError(t, err)

	in := NewRowBatch(inSchema)
	in.AppendRow(map[string]tablekernel.Scalar{"raw_id": tablekernel.OfLong(5)})

	out, err := evaluator.Evaluate(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Len())

	ob, ok := out.(*RowBatch)
	require.True(t, ok)
	v, got := ob.GetLong(0, "id")
	require.True(t, got)
	assert.Equal(t, int64(5), v)
}

func TestExpressionEvaluator_Evaluate_RejectsNonRowBatchInput(t *testing.T) {
	inSchema := tablekernel.NewStructType(tablekernel.NotNull("a", tablekernel.Primitive(tablekernel.KindLong)))
	outSchema := inSchema
	ev := NewEvaluator()
	evaluator, err := ev.NewExpressionEvaluator(inSchema, tablekernel.StructExpr(tablekernel.Column("a")), outSchema)
	require.NoError(t, err)

	_, err = evaluator.Evaluate(context.Background(), nil)
	require.Error(t, err)
}
