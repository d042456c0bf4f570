package storage

import (
	"errors"
	"testing"
)

func usersSchema() *Schema {
	return NewSchema([]ColumnDef{
		{Name: "id", Type: TypeInt64},
		{Name: "name", Type: TypeString},
		{Name: "age", Type: TypeInt64},
		{Name: "score", Type: TypeFloat64},
	})
}

func usersTable(t *testing.T) *Table {
	t.Helper()
	tbl := NewTable("users", usersSchema())
	rows := [][]Value{
		{IntValue(1), StringValue("Alice"), IntValue(30), FloatValue(95.5)},
		{IntValue(2), StringValue("Bob"), IntValue(25), FloatValue(87.3)},
		{IntValue(3), StringValue("Charlie"), IntValue(35), FloatValue(92.1)},
	}
	for _, row := range rows {
		if err := tbl.AppendRecord(row); err != nil {
			t.Fatalf("AppendRecord: %v", err)
		}
	}
	return tbl
}

// checkColumnLengths verifies the structural invariant that every
// column has exactly rowCount entries.
func checkColumnLengths(t *testing.T, tbl *Table) {
	t.Helper()
	for i, col := range tbl.columns {
		if col.len() != tbl.rowCount {
			t.Errorf("column %d has %d entries, rowCount = %d", i, col.len(), tbl.rowCount)
		}
	}
}

func TestTable_AppendAndRead(t *testing.T) {
	tbl := usersTable(t)

	if tbl.RowCount() != 3 {
		t.Fatalf("RowCount = %d, want 3", tbl.RowCount())
	}
	checkColumnLengths(t, tbl)

	v, err := tbl.Value(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Equal(StringValue("Bob")) {
		t.Errorf("Value(1,1) = %v, want Bob", v)
	}

	row, err := tbl.Row(2)
	if err != nil {
		t.Fatal(err)
	}
	want := []Value{IntValue(3), StringValue("Charlie"), IntValue(35), FloatValue(92.1)}
	for i := range want {
		if !row[i].Equal(want[i]) {
			t.Errorf("Row(2)[%d] = %v, want %v", i, row[i], want[i])
		}
	}
}

func TestTable_ColumnCountMismatch(t *testing.T) {
	tbl := usersTable(t)

	err := tbl.AppendRecord([]Value{IntValue(4), StringValue("Dave")})
	var countErr *ColumnCountMismatchError
	if !errors.As(err, &countErr) {
		t.Fatalf("err = %v, want ColumnCountMismatchError", err)
	}
	if countErr.Want != 4 || countErr.Got != 2 {
		t.Errorf("mismatch = (%d, %d), want (4, 2)", countErr.Want, countErr.Got)
	}
	if tbl.RowCount() != 3 {
		t.Errorf("RowCount = %d after rejected append, want 3", tbl.RowCount())
	}
	checkColumnLengths(t, tbl)
}

func TestTable_TypeMismatchIsAllOrNothing(t *testing.T) {
	tbl := usersTable(t)

	// First two values are valid; the third has the wrong kind. No
	// column may change length.
	err := tbl.AppendRecord([]Value{
		IntValue(4), StringValue("Dave"), StringValue("not-an-age"), FloatValue(1.0),
	})
	var typeErr *TypeMismatchError
	if !errors.As(err, &typeErr) {
		t.Fatalf("err = %v, want TypeMismatchError", err)
	}
	if typeErr.Column != "age" {
		t.Errorf("column = %q, want age", typeErr.Column)
	}
	if tbl.RowCount() != 3 {
		t.Errorf("RowCount = %d after rejected append, want 3", tbl.RowCount())
	}
	checkColumnLengths(t, tbl)
}

func TestTable_RowBounds(t *testing.T) {
	tbl := usersTable(t)

	var idxErr *ColumnIndexError
	if _, err := tbl.Row(3); !errors.As(err, &idxErr) {
		t.Errorf("Row(3) err = %v, want ColumnIndexError", err)
	}
	if _, err := tbl.Row(-1); !errors.As(err, &idxErr) {
		t.Errorf("Row(-1) err = %v, want ColumnIndexError", err)
	}
	if _, err := tbl.Value(0, 4); !errors.As(err, &idxErr) {
		t.Errorf("Value(0,4) err = %v, want ColumnIndexError", err)
	}
}

func TestTable_RowsInsertionOrder(t *testing.T) {
	tbl := usersTable(t)

	rows := tbl.Rows()
	if len(rows) != 3 {
		t.Fatalf("Rows = %d, want 3", len(rows))
	}
	for i, wantID := range []int64{1, 2, 3} {
		if rows[i][0].Int != wantID {
			t.Errorf("row %d id = %d, want %d", i, rows[i][0].Int, wantID)
		}
	}
}
