package storage

// Schema is an ordered, immutable list of column definitions. It is
// created once and shared by the table, the WAL codec, and the
// snapshot codec; nothing mutates it after construction.
type Schema struct {
	cols []ColumnDef
}

// NewSchema copies the given column definitions into an owned slice.
func NewSchema(cols []ColumnDef) *Schema {
	owned := make([]ColumnDef, len(cols))
	copy(owned, cols)
	return &Schema{cols: owned}
}

// ColumnCount returns the number of columns.
func (s *Schema) ColumnCount() int {
	return len(s.cols)
}

// Column returns the definition at index i.
func (s *Schema) Column(i int) (ColumnDef, error) {
	if i < 0 || i >= len(s.cols) {
		return ColumnDef{}, &ColumnIndexError{Index: i, Count: len(s.cols)}
	}
	return s.cols[i], nil
}

// ColumnType returns the type of the column at index i.
func (s *Schema) ColumnType(i int) (ColumnType, error) {
	if i < 0 || i >= len(s.cols) {
		return 0, &ColumnIndexError{Index: i, Count: len(s.cols)}
	}
	return s.cols[i].Type, nil
}

// Find returns the index of the first column with the given name.
// Duplicate names are not rejected at schema construction; the first
// match wins.
func (s *Schema) Find(name string) (int, bool) {
	for i, col := range s.cols {
		if col.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Columns returns a copy of the column definitions.
func (s *Schema) Columns() []ColumnDef {
	out := make([]ColumnDef, len(s.cols))
	copy(out, s.cols)
	return out
}

// Equal reports structural equality of the ordered column lists.
func (s *Schema) Equal(o *Schema) bool {
	if len(s.cols) != len(o.cols) {
		return false
	}
	for i := range s.cols {
		if s.cols[i] != o.cols[i] {
			return false
		}
	}
	return true
}
