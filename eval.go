package tablekernel

// TriState is the result of evaluating a Predicate under SQL's three-valued
// logic: a predicate is either definitely true, definitely false, or
// unknown (typically because a referenced value was null or unresolved).
type TriState int

const (
	Unknown TriState = iota
	True
	False
)

func boolToTri(v bool) TriState {
	if v {
		return True
	}
	return False
}

func triNot(t TriState) TriState {
	switch t {
	case True:
		return False
	case False:
		return True
	default:
		return Unknown
	}
}

// ColumnResolver abstracts column access for predicate and expression
// evaluation: Resolve returns the column's value and true if the column is
// present in the current row, or an unspecified Scalar and false if it is
// absent entirely (as opposed to present-but-null).
type ColumnResolver interface {
	Resolve(path []string) (Scalar, bool)
}

// MapResolver is a ColumnResolver backed by a flat map keyed on the dotted
// column path, the simplest resolver implementation and the one used by
// unit tests throughout this module.
type MapResolver map[string]Scalar

// Resolve implements ColumnResolver by joining path with "." and looking it
// up directly; it does not walk into struct-typed values.
func (m MapResolver) Resolve(path []string) (Scalar, bool) {
	key := path[0]
	for _, p := range path[1:] {
		key += "." + p
	}
	v, ok := m[key]
	return v, ok
}

// evalExprValue evaluates an Expression to a Scalar. found is false when a
// referenced column is absent from the resolver entirely (distinct from a
// column present with a null value, which returns found=true with
// val.IsNull()).
func evalExprValue(e Expression, resolver ColumnResolver) (val Scalar, found bool, err error) {
	switch e.Kind {
	case ExprLiteral:
		return e.Literal, true, nil
	case ExprColumn:
		v, ok := resolver.Resolve(e.ColumnPath)
		return v, ok, nil
	case ExprStruct:
		values := make([]Scalar, len(e.Children))
		fields := make([]StructField, len(e.Children))
		for i, c := range e.Children {
			v, ok, err := evalExprValue(c, resolver)
			if err != nil {
				return Scalar{}, false, err
			}
			if !ok {
				return Scalar{}, false, nil
			}
			values[i] = v
			fields[i] = FieldNullable("", v.DataType())
		}
		return Scalar{Kind: ScalarStruct, Type: StructOf(fields...), Fields: values}, true, nil
	case ExprBinary:
		l, lok, err := evalExprValue(*e.Left, resolver)
		if err != nil {
			return Scalar{}, false, err
		}
		r, rok, err := evalExprValue(*e.Right, resolver)
		if err != nil {
			return Scalar{}, false, err
		}
		if !lok || !rok {
			return Scalar{}, false, nil
		}
		if l.IsNull() || r.IsNull() {
			return Null(l.DataType()), true, nil
		}
		var result Scalar
		var ok bool
		switch e.Op {
		case OpPlus:
			result, ok = TryAdd(l, r)
		case OpMinus:
			result, ok = TrySub(l, r)
		case OpMultiply:
			result, ok = TryMul(l, r)
		case OpDivide:
			result, ok = TryDiv(l, r)
		}
		if !ok {
			return Scalar{}, false, NewGenericError("arithmetic expression could not be evaluated: " + e.String())
		}
		return result, true, nil
	}
	return Scalar{}, false, NewGenericError("unknown expression kind")
}

// EvalExpr evaluates an Expression to a Scalar, treating an unresolved
// column as a hard error (unlike predicate evaluation, a value expression
// has nowhere to route "unknown" to).
func EvalExpr(e Expression, resolver ColumnResolver) (Scalar, error) {
	v, found, err := evalExprValue(e, resolver)
	if err != nil {
		return Scalar{}, err
	}
	if !found {
		return Scalar{}, NewMissingColumnError(e.ColumnName())
	}
	return v, nil
}

// Eval evaluates a Predicate under standard SQL three-valued logic.
func Eval(p Predicate, resolver ColumnResolver) TriState {
	return evalPredicate(p, resolver, false, false)
}

// EvalSqlWhere evaluates a Predicate under the data-skipping variant of
// three-valued logic: it treats an otherwise-unknown result as
// "cannot skip" and only returns False when the predicate is provably false
// for every possible row, which lets a caller prune a file only when this
// returns False.
func EvalSqlWhere(p Predicate, resolver ColumnResolver) TriState {
	return evalPredicate(p, resolver, true, false)
}

// EvalJunction evaluates a single AND/OR junction in isolation, exposed for
// callers (e.g. physical predicate translation) that assemble junctions
// from already-evaluated operand states rather than an AST.
func EvalJunction(op JunctionOp, operands []TriState) TriState {
	return combineJunction(op, operands)
}

// evalPredicate threads an `inverted` flag through recursion so that a Not
// node never needs to rewrite its child AST: eval(Not(p), inv) is simply
// eval(p, !inv). Inversion is applied once, at the point a concrete
// tri-state is produced, rather than by rewriting comparison operators.
func evalPredicate(p Predicate, resolver ColumnResolver, sqlWhere, inverted bool) TriState {
	switch p.Kind {
	case PredBoolLit:
		t := boolToTri(p.BoolValue)
		return applyInversion(t, inverted)
	case PredIsNull:
		val, found, err := evalExprValue(*p.Operand, resolver)
		if err != nil || !found {
			return applyInversion(Unknown, inverted)
		}
		return applyInversion(boolToTri(val.IsNull()), inverted)
	case PredNot:
		return evalPredicate(*p.Inner, resolver, sqlWhere, !inverted)
	case PredBinary:
		t := evalCompare(p.Op, *p.Left, *p.Right, resolver, sqlWhere)
		return applyInversion(t, inverted)
	case PredJunction:
		operands := make([]TriState, len(p.Operands))
		for i, o := range p.Operands {
			operands[i] = evalPredicate(o, resolver, sqlWhere, false)
		}
		var t TriState
		if sqlWhere {
			t = combineJunctionSqlWhere(p.Junction, operands)
		} else {
			t = combineJunction(p.Junction, operands)
		}
		return applyInversion(t, inverted)
	}
	return Unknown
}

func applyInversion(t TriState, inverted bool) TriState {
	if inverted {
		return triNot(t)
	}
	return t
}

// combineJunction implements standard Kleene AND/OR: for AND, False
// dominates; all True yields True; otherwise Unknown. For OR, True
// dominates; all False yields False; otherwise Unknown.
func combineJunction(op JunctionOp, operands []TriState) TriState {
	if op == JunctionAnd {
		sawUnknown := false
		for _, t := range operands {
			if t == False {
				return False
			}
			if t == Unknown {
				sawUnknown = true
			}
		}
		if sawUnknown {
			return Unknown
		}
		return True
	}
	sawUnknown := false
	for _, t := range operands {
		if t == True {
			return True
		}
		if t == Unknown {
			sawUnknown = true
		}
	}
	if sawUnknown {
		return Unknown
	}
	return False
}

// combineJunctionSqlWhere combines eval_sql_where junction operands with
// standard Kleene semantics. A known-null comparison has already become
// False in evalCompare, so an AND with such a conjunct is False and can be
// skipped; an Unknown conjunct (an unresolved column, for instance) leaves
// the AND Unknown, so nothing is skipped on its account.
func combineJunctionSqlWhere(op JunctionOp, operands []TriState) TriState {
	return combineJunction(op, operands)
}

// evalCompare evaluates a single comparison/membership predicate. Under
// eval_sql_where, a known-null side short-circuits to False (the row would
// be dropped by a real SQL WHERE); under standard eval, a null or
// unresolved side yields Unknown. DISTINCT is always known in both modes.
func evalCompare(op CompareOp, leftExpr, rightExpr Expression, resolver ColumnResolver, sqlWhere bool) TriState {
	if op == CmpIn || op == CmpNotIn {
		return evalMembership(op, leftExpr, rightExpr, resolver, sqlWhere)
	}

	left, lFound, lErr := evalExprValue(leftExpr, resolver)
	right, rFound, rErr := evalExprValue(rightExpr, resolver)

	if op == CmpDistinct {
		if lErr != nil || rErr != nil {
			return Unknown
		}
		leftNull := !lFound || left.IsNull()
		rightNull := !rFound || right.IsNull()
		if leftNull != rightNull {
			return True
		}
		if leftNull && rightNull {
			return False
		}
		return boolToTri(!left.Equal(right))
	}

	if lErr != nil || rErr != nil {
		return Unknown
	}
	if !lFound || !rFound {
		return Unknown
	}
	if left.IsNull() || right.IsNull() {
		if sqlWhere {
			return False
		}
		return Unknown
	}

	cmp, ok := left.Ordering(right)
	if !ok {
		return Unknown
	}
	switch op {
	case CmpEqual:
		return boolToTri(cmp == 0)
	case CmpNotEqual:
		return boolToTri(cmp != 0)
	case CmpLessThan:
		return boolToTri(cmp < 0)
	case CmpLessThanOrEqual:
		return boolToTri(cmp <= 0)
	case CmpGreaterThan:
		return boolToTri(cmp > 0)
	case CmpGreaterThanOrEqual:
		return boolToTri(cmp >= 0)
	}
	return Unknown
}

func evalMembership(op CompareOp, leftExpr, rightExpr Expression, resolver ColumnResolver, sqlWhere bool) TriState {
	left, lFound, lErr := evalExprValue(leftExpr, resolver)
	if lErr != nil || !lFound {
		return Unknown
	}
	if left.IsNull() {
		if sqlWhere {
			return False
		}
		return Unknown
	}
	if rightExpr.Kind != ExprLiteral || rightExpr.Literal.Kind != ScalarArray {
		return Unknown
	}
	sawNull := false
	matched := false
	for _, elem := range rightExpr.Literal.Elements {
		if elem.IsNull() {
			sawNull = true
			continue
		}
		if elem.Equal(left) {
			matched = true
			break
		}
	}
	var result TriState
	switch {
	case matched:
		result = True
	case sawNull:
		result = Unknown
	default:
		result = False
	}
	if op == CmpNotIn {
		result = triNot(result)
	}
	return result
}
