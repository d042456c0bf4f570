package storage

// Table is a named schema plus one column container per declared
// column. All columns have exactly rowCount entries at all times; a
// rejected append never touches any column.
type Table struct {
	name     string
	schema   *Schema
	columns  []*column
	rowCount int
}

// NewTable creates an empty table for the given schema.
func NewTable(name string, schema *Schema) *Table {
	cols := make([]*column, schema.ColumnCount())
	for i := range cols {
		typ, _ := schema.ColumnType(i)
		cols[i] = newColumn(typ)
	}
	return &Table{name: name, schema: schema, columns: cols}
}

func (t *Table) Name() string    { return t.name }
func (t *Table) Schema() *Schema { return t.schema }
func (t *Table) RowCount() int   { return t.rowCount }

// AppendRecord validates the whole row before mutating anything, then
// appends one value to each column. Validation-first keeps every
// column at the same length when a row is rejected.
func (t *Table) AppendRecord(values []Value) error {
	if len(values) != t.schema.ColumnCount() {
		return &ColumnCountMismatchError{Want: t.schema.ColumnCount(), Got: len(values)}
	}
	for i, v := range values {
		def, err := t.schema.Column(i)
		if err != nil {
			return err
		}
		if v.Kind != def.Type {
			return &TypeMismatchError{Column: def.Name, Want: def.Type, Got: v.Kind}
		}
	}
	for i, v := range values {
		t.columns[i].append(v)
	}
	t.rowCount++
	return nil
}

// Value returns the value at row r, column c.
func (t *Table) Value(r, c int) (Value, error) {
	if c < 0 || c >= len(t.columns) {
		return Value{}, &ColumnIndexError{Index: c, Count: len(t.columns)}
	}
	if r < 0 || r >= t.rowCount {
		return Value{}, &ColumnIndexError{Index: r, Count: t.rowCount}
	}
	return t.columns[c].get(r), nil
}

// Row materializes row r as a fresh slice of values. String payloads
// share backing bytes with column storage; Go strings are immutable so
// the shared bytes stay valid for the life of the result.
func (t *Table) Row(r int) ([]Value, error) {
	if r < 0 || r >= t.rowCount {
		return nil, &ColumnIndexError{Index: r, Count: t.rowCount}
	}
	row := make([]Value, len(t.columns))
	for c, col := range t.columns {
		row[c] = col.get(r)
	}
	return row, nil
}

// Rows materializes every row in insertion order.
func (t *Table) Rows() [][]Value {
	rows := make([][]Value, t.rowCount)
	for r := 0; r < t.rowCount; r++ {
		row, _ := t.Row(r)
		rows[r] = row
	}
	return rows
}

// memoryBytes estimates the heap footprint of all column buffers.
func (t *Table) memoryBytes() int64 {
	var total int64
	for _, col := range t.columns {
		total += col.memoryBytes()
	}
	return total
}
