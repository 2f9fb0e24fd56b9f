package tablekernel

import "strings"

// CompareOp enumerates the binary comparison/membership operators a
// Predicate supports.
type CompareOp int

const (
	CmpEqual CompareOp = iota
	CmpNotEqual
	CmpLessThan
	CmpLessThanOrEqual
	CmpGreaterThan
	CmpGreaterThanOrEqual
	CmpDistinct
	CmpIn
	CmpNotIn
)

func (op CompareOp) String() string {
	switch op {
	case CmpEqual:
		return "="
	case CmpNotEqual:
		return "!="
	case CmpLessThan:
		return "<"
	case CmpLessThanOrEqual:
		return "<="
	case CmpGreaterThan:
		return ">"
	case CmpGreaterThanOrEqual:
		return ">="
	case CmpDistinct:
		return "DISTINCT"
	case CmpIn:
		return "IN"
	case CmpNotIn:
		return "NOT IN"
	}
	return "?"
}

// JunctionOp enumerates the n-ary boolean connectives a Predicate supports.
type JunctionOp int

const (
	JunctionAnd JunctionOp = iota
	JunctionOr
)

// PredKind discriminates the Predicate sum.
type PredKind int

const (
	PredBoolLit PredKind = iota
	PredIsNull
	PredNot
	PredBinary
	PredJunction
)

// Predicate is a boolean-valued AST node, evaluating under three-valued
// logic to {true, false, unknown} (see eval.go). It is the closed sum of a
// boolean literal, a null check, a negation, a binary comparison/membership
// test, or an n-ary AND/OR junction.
type Predicate struct {
	Kind PredKind

	BoolValue bool // valid when Kind == PredBoolLit

	Operand *Expression // valid when Kind == PredIsNull

	Inner *Predicate // valid when Kind == PredNot

	Op    CompareOp   // valid when Kind == PredBinary
	Left  *Expression // valid when Kind == PredBinary
	Right *Expression // valid when Kind == PredBinary (CmpIn/CmpNotIn: an array literal)

	Junction JunctionOp  // valid when Kind == PredJunction
	Operands []Predicate // valid when Kind == PredJunction
}

// BoolLit builds a boolean-literal predicate.
func BoolLit(v bool) Predicate { return Predicate{Kind: PredBoolLit, BoolValue: v} }

// AlwaysTrue and AlwaysFalse are the two boolean-literal predicates.
var (
	AlwaysTrue  = BoolLit(true)
	AlwaysFalse = BoolLit(false)
)

// IsNull builds a null-check predicate over an expression.
func IsNull(e Expression) Predicate {
	return Predicate{Kind: PredIsNull, Operand: &e}
}

// Not builds a negation predicate.
func Not(p Predicate) Predicate { return Predicate{Kind: PredNot, Inner: &p} }

// Compare builds a binary comparison predicate.
func Compare(op CompareOp, left, right Expression) Predicate {
	return Predicate{Kind: PredBinary, Op: op, Left: &left, Right: &right}
}

// Eq, NotEq, LessThan, LessThanOrEqual, GreaterThan, GreaterThanOrEqual and
// Distinct are convenience constructors for Compare.
func Eq(l, r Expression) Predicate                 { return Compare(CmpEqual, l, r) }
func NotEq(l, r Expression) Predicate               { return Compare(CmpNotEqual, l, r) }
func LessThan(l, r Expression) Predicate            { return Compare(CmpLessThan, l, r) }
func LessThanOrEqual(l, r Expression) Predicate     { return Compare(CmpLessThanOrEqual, l, r) }
func GreaterThan(l, r Expression) Predicate         { return Compare(CmpGreaterThan, l, r) }
func GreaterThanOrEqual(l, r Expression) Predicate  { return Compare(CmpGreaterThanOrEqual, l, r) }
func Distinct(l, r Expression) Predicate            { return Compare(CmpDistinct, l, r) }

// In and NotIn build membership predicates; right must be an array literal
// expression whose element type matches left's.
func In(left Expression, right Expression) Predicate    { return Compare(CmpIn, left, right) }
func NotIn(left Expression, right Expression) Predicate { return Compare(CmpNotIn, left, right) }

// And and Or build n-ary junction predicates.
func And(operands ...Predicate) Predicate { return Predicate{Kind: PredJunction, Junction: JunctionAnd, Operands: operands} }
func Or(operands ...Predicate) Predicate  { return Predicate{Kind: PredJunction, Junction: JunctionOr, Operands: operands} }

// String renders the predicate in a compact infix form, used for logging
// and test failure messages.
func (p Predicate) String() string {
	switch p.Kind {
	case PredBoolLit:
		if p.BoolValue {
			return "true"
		}
		return "false"
	case PredIsNull:
		return p.Operand.String() + " IS NULL"
	case PredNot:
		return "NOT (" + p.Inner.String() + ")"
	case PredBinary:
		return "(" + p.Left.String() + " " + p.Op.String() + " " + p.Right.String() + ")"
	case PredJunction:
		sep := " AND "
		if p.Junction == JunctionOr {
			sep = " OR "
		}
		parts := make([]string, len(p.Operands))
		for i, o := range p.Operands {
			parts[i] = o.String()
		}
		return "(" + strings.Join(parts, sep) + ")"
	}
	return "?"
}
