package storage

// AggregateFunc selects a scalar aggregation.
type AggregateFunc uint8

const (
	AggCount AggregateFunc = iota
	AggSum
)

func (f AggregateFunc) String() string {
	switch f {
	case AggCount:
		return "COUNT"
	case AggSum:
		return "SUM"
	default:
		return "unknown"
	}
}

// AggregateFuncFromString parses "count" / "sum" (case-sensitive
// lowercase and uppercase forms are both accepted).
func AggregateFuncFromString(s string) (AggregateFunc, bool) {
	switch s {
	case "count", "COUNT":
		return AggCount, true
	case "sum", "SUM":
		return AggSum, true
	default:
		return 0, false
	}
}

// AggregateTable filters the table with the given predicates and
// reduces the selected rows of the named column to a single value.
//
// COUNT works on any column type and returns Int64; the column name
// must exist but its values are never read. SUM is defined for Int64
// (two's-complement wrapping) and Float64 columns only; an empty
// selection sums to the additive identity.
func AggregateTable(t *Table, columnName string, fn AggregateFunc, predicates []Predicate) (Value, error) {
	idx, ok := t.Schema().Find(columnName)
	if !ok {
		return Value{}, &ColumnNotFoundError{Column: columnName, Table: t.Name()}
	}

	indices, err := FilterTable(t, predicates)
	if err != nil {
		return Value{}, err
	}

	col := t.columns[idx]
	switch fn {
	case AggCount:
		return IntValue(int64(len(indices))), nil
	case AggSum:
		switch col.kind {
		case TypeInt64:
			var sum int64
			for _, r := range indices {
				sum += col.ints[r]
			}
			return IntValue(sum), nil
		case TypeFloat64:
			var sum float64
			for _, r := range indices {
				sum += col.floats[r]
			}
			return FloatValue(sum), nil
		default:
			return Value{}, &AggregateTypeError{Func: fn, Column: columnName, Type: col.kind}
		}
	default:
		return Value{}, &AggregateTypeError{Func: fn, Column: columnName, Type: col.kind}
	}
}
