package storage

import (
	"fmt"
	"strings"
)

// Operator is a predicate comparison operator.
type Operator uint8

const (
	OpEq Operator = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

func (op Operator) String() string {
	switch op {
	case OpEq:
		return "="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	default:
		return "?"
	}
}

// OperatorFromString parses the textual operator tokens.
func OperatorFromString(s string) (Operator, bool) {
	switch s {
	case "=", "==":
		return OpEq, true
	case "!=", "<>":
		return OpNe, true
	case "<":
		return OpLt, true
	case "<=":
		return OpLe, true
	case ">":
		return OpGt, true
	case ">=":
		return OpGe, true
	default:
		return 0, false
	}
}

// Predicate is a single (column, operator, value) condition. A nil
// Value is rejected by the evaluator with InvalidPredicateError.
type Predicate struct {
	Column string
	Op     Operator
	Value  *Value
}

// boundPredicate is a predicate resolved against a concrete table.
type boundPredicate struct {
	col   *column
	op    Operator
	value Value
}

// FilterTable returns the indices of the rows satisfying every
// predicate, in ascending order. With no predicates every row index is
// returned. A predicate whose value kind does not match the column
// type simply never matches; an unknown column or a missing value is
// an error before any row is visited.
func FilterTable(t *Table, predicates []Predicate) ([]int, error) {
	bound, err := bindPredicates(t, predicates)
	if err != nil {
		return nil, err
	}

	indices := make([]int, 0, t.RowCount())
	for r := 0; r < t.RowCount(); r++ {
		if matchesAll(bound, r) {
			indices = append(indices, r)
		}
	}
	return indices, nil
}

// bindPredicates resolves column names and validates value payloads up
// front so per-row evaluation is just comparisons.
func bindPredicates(t *Table, predicates []Predicate) ([]boundPredicate, error) {
	bound := make([]boundPredicate, len(predicates))
	for i, p := range predicates {
		idx, ok := t.Schema().Find(p.Column)
		if !ok {
			return nil, &ColumnNotFoundError{Column: p.Column, Table: t.Name()}
		}
		if p.Value == nil {
			return nil, &InvalidPredicateError{Column: p.Column}
		}
		if p.Op > OpGe {
			return nil, fmt.Errorf("unknown operator %d on column %q", p.Op, p.Column)
		}
		bound[i] = boundPredicate{col: t.columns[idx], op: p.Op, value: *p.Value}
	}
	return bound, nil
}

func matchesAll(bound []boundPredicate, row int) bool {
	for _, b := range bound {
		if !match(b.col.get(row), b.op, b.value) {
			return false
		}
	}
	return true
}

// match evaluates one comparison. Mismatched kinds compare false for
// every operator; the row just fails to match.
func match(cell Value, op Operator, pred Value) bool {
	if cell.Kind != pred.Kind {
		return false
	}
	switch cell.Kind {
	case TypeInt64:
		return compareOrdered(cell.Int, pred.Int, op)
	case TypeFloat64:
		// NaN follows IEEE-754: every ordering is false, != is true.
		switch op {
		case OpEq:
			return cell.Float == pred.Float
		case OpNe:
			return cell.Float != pred.Float
		case OpLt:
			return cell.Float < pred.Float
		case OpLe:
			return cell.Float <= pred.Float
		case OpGt:
			return cell.Float > pred.Float
		case OpGe:
			return cell.Float >= pred.Float
		}
		return false
	case TypeString:
		c := strings.Compare(cell.Str, pred.Str)
		return compareResult(c, op)
	case TypeBool:
		// false < true
		return compareResult(boolCompare(cell.Bool, pred.Bool), op)
	default:
		return false
	}
}

func compareOrdered(a, b int64, op Operator) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpLt:
		return a < b
	case OpLe:
		return a <= b
	case OpGt:
		return a > b
	case OpGe:
		return a >= b
	default:
		return false
	}
}

func compareResult(c int, op Operator) bool {
	switch op {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpLt:
		return c < 0
	case OpLe:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGe:
		return c >= 0
	default:
		return false
	}
}

func boolCompare(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}
