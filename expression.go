package tablekernel

import "strings"

// ArithOp enumerates the binary arithmetic operators an Expression supports.
type ArithOp int

const (
	OpPlus ArithOp = iota
	OpMinus
	OpMultiply
	OpDivide
)

func (op ArithOp) String() string {
	switch op {
	case OpPlus:
		return "+"
	case OpMinus:
		return "-"
	case OpMultiply:
		return "*"
	case OpDivide:
		return "/"
	}
	return "?"
}

// ExprKind discriminates the Expression sum.
type ExprKind int

const (
	ExprLiteral ExprKind = iota
	ExprColumn
	ExprStruct
	ExprBinary
)

// Expression is a value-producing AST node: a literal scalar, a column
// reference (a dotted path into the current row's schema), a struct
// constructor over child expressions, or a binary arithmetic operation.
type Expression struct {
	Kind ExprKind

	Literal Scalar // valid when Kind == ExprLiteral

	ColumnPath []string // valid when Kind == ExprColumn; e.g. ["a","b"] for "a.b"

	Children []Expression // valid when Kind == ExprStruct

	Op    ArithOp     // valid when Kind == ExprBinary
	Left  *Expression // valid when Kind == ExprBinary
	Right *Expression // valid when Kind == ExprBinary
}

// Lit builds a literal expression.
func Lit(s Scalar) Expression { return Expression{Kind: ExprLiteral, Literal: s} }

// Column builds a column-reference expression from a dotted path string
// such as "a.b.c".
func Column(path string) Expression {
	return Expression{Kind: ExprColumn, ColumnPath: strings.Split(path, ".")}
}

// ColumnOf builds a column-reference expression from an already-split path.
func ColumnOf(path ...string) Expression { return Expression{Kind: ExprColumn, ColumnPath: path} }

// StructExpr builds a struct-constructor expression over child expressions.
func StructExpr(children ...Expression) Expression {
	return Expression{Kind: ExprStruct, Children: children}
}

// BinaryExpr builds an arithmetic binary expression.
func BinaryExpr(op ArithOp, left, right Expression) Expression {
	return Expression{Kind: ExprBinary, Op: op, Left: &left, Right: &right}
}

// Plus, Minus, Multiply and Divide are convenience constructors for BinaryExpr.
func Plus(l, r Expression) Expression     { return BinaryExpr(OpPlus, l, r) }
func Minus(l, r Expression) Expression     { return BinaryExpr(OpMinus, l, r) }
func Multiply(l, r Expression) Expression { return BinaryExpr(OpMultiply, l, r) }
func Divide(l, r Expression) Expression   { return BinaryExpr(OpDivide, l, r) }

// String renders the expression in a compact infix form, used for logging
// and test failure messages.
func (e Expression) String() string {
	switch e.Kind {
	case ExprLiteral:
		return e.Literal.String()
	case ExprColumn:
		return strings.Join(e.ColumnPath, ".")
	case ExprStruct:
		parts := make([]string, len(e.Children))
		for i, c := range e.Children {
			parts[i] = c.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case ExprBinary:
		return "(" + e.Left.String() + " " + e.Op.String() + " " + e.Right.String() + ")"
	}
	return "?"
}

// ColumnName returns the dotted-path string form of a column reference.
func (e Expression) ColumnName() string {
	if e.Kind != ExprColumn {
		return ""
	}
	return strings.Join(e.ColumnPath, ".")
}
