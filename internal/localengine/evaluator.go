package localengine

import (
	"context"
	"fmt"

	"github.com/lychee-technology/tablekernel"
)

// Evaluator implements tablekernel.EvaluationHandler by interpreting an
// Expression directly against each row of a RowBatch via tablekernel.EvalExpr.
// There is no native Arrow/DuckDB vectorized expression engine in this
// stack, so every transform (logical<->physical, CDF column synthesis) runs
// row by row, the same way the kernel's own predicate evaluator does.
type Evaluator struct{}

// NewEvaluator constructs the evaluation handler.
func NewEvaluator() *Evaluator { return &Evaluator{} }

type expressionEvaluator struct {
	inputSchema  tablekernel.StructType
	outputSchema tablekernel.StructType
	columns      []tablekernel.Expression
}

// NewExpressionEvaluator implements tablekernel.EvaluationHandler. The
// transform expressions this module ever compiles are top-level
// StructExpr(...) nodes (see scan.go's buildTransform / cdf.go's
// buildTransform), one child per outputSchema field in order; anything else
// is rejected since there would be no way to name its output columns.
func (e *Evaluator) NewExpressionEvaluator(inputSchema tablekernel.StructType, expr tablekernel.Expression, outputSchema tablekernel.StructType) (tablekernel.ExpressionEvaluator, error) {
	if expr.Kind != tablekernel.ExprStruct {
		return nil, tablekernel.NewGenericError("expression evaluator requires a top-level struct expression")
	}
	if len(expr.Children) != len(outputSchema.Fields) {
		return nil, tablekernel.NewGenericError(
			fmt.Sprintf("transform expression has %d columns but output schema has %d fields",
				len(expr.Children), len(outputSchema.Fields)))
	}
	return &expressionEvaluator{inputSchema: inputSchema, outputSchema: outputSchema, columns: expr.Children}, nil
}

// Evaluate implements tablekernel.ExpressionEvaluator by running each column
// expression against every row of the input batch's resolver.
func (ev *expressionEvaluator) Evaluate(ctx context.Context, batch tablekernel.EngineData) (tablekernel.EngineData, error) {
	in, ok := batch.(*RowBatch)
	if !ok {
		return nil, tablekernel.NewGenericError("evaluator requires a *localengine.RowBatch input batch")
	}
	out := NewRowBatch(ev.outputSchema)
	for r := 0; r < in.Len(); r++ {
		resolver := in.Resolver(r)
		row := make(map[string]tablekernel.Scalar, len(ev.columns))
		for i, col := range ev.columns {
			v, err := tablekernel.EvalExpr(col, resolver)
			if err != nil {
				return nil, err
			}
			row[ev.outputSchema.Fields[i].Name] = v
		}
		out.AppendRow(row)
	}
	return out, nil
}
