package tablekernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicate_StringRendersInfixForm(t *testing.T) {
	p := And(
		Eq(Column("a"), Lit(OfLong(1))),
		Not(IsNull(Column("b"))),
	)
	assert.Equal(t, "((a = 1) AND NOT (b IS NULL))", p.String())
}

func TestPredicate_OrJunctionString(t *testing.T) {
	p := Or(BoolLit(true), BoolLit(false))
	assert.Equal(t, "(true OR false)", p.String())
}

func TestCompareOp_String(t *testing.T) {
	cases := map[CompareOp]string{
		CmpEqual:              "=",
		CmpNotEqual:            "!=",
		CmpLessThan:            "<",
		CmpLessThanOrEqual:     "<=",
		CmpGreaterThan:         ">",
		CmpGreaterThanOrEqual:  ">=",
		CmpDistinct:            "DISTINCT",
		CmpIn:                  "IN",
		CmpNotIn:               "NOT IN",
	}
	for op, want := range cases {
		assert.Equal(t, want, op.String())
	}
}

func TestAlwaysTrueAlwaysFalse(t *testing.T) {
	assert.Equal(t, "true", AlwaysTrue.String())
	assert.Equal(t, "false", AlwaysFalse.String())
}

func TestIn_BuildsCmpInPredicate(t *testing.T) {
	arr, _ := NewArray(Primitive(KindLong), false, []Scalar{OfLong(1), OfLong(2)})
	p := In(Column("x"), Lit(arr))
	assert.Equal(t, CmpIn, p.Op)
	assert.Equal(t, PredBinary, p.Kind)
}
