package storage

import (
	"errors"
	"math"
	"testing"
)

func scoresTable(t *testing.T) *Table {
	t.Helper()
	schema := NewSchema([]ColumnDef{
		{Name: "id", Type: TypeInt64},
		{Name: "score", Type: TypeInt64},
	})
	tbl := NewTable("scores", schema)
	for _, row := range [][]Value{
		{IntValue(1), IntValue(50)},
		{IntValue(2), IntValue(75)},
		{IntValue(3), IntValue(90)},
	} {
		if err := tbl.AppendRecord(row); err != nil {
			t.Fatal(err)
		}
	}
	return tbl
}

func TestAggregate_CountWithPredicate(t *testing.T) {
	tbl := scoresTable(t)

	got, err := AggregateTable(tbl, "score", AggCount, []Predicate{
		{Column: "score", Op: OpGt, Value: pv(IntValue(60))},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(IntValue(2)) {
		t.Errorf("COUNT = %v, want 2", got)
	}
}

func TestAggregate_SumWithPredicate(t *testing.T) {
	schema := NewSchema([]ColumnDef{
		{Name: "id", Type: TypeInt64},
		{Name: "category", Type: TypeInt64},
		{Name: "amount", Type: TypeInt64},
	})
	tbl := NewTable("sales", schema)
	for _, row := range [][]Value{
		{IntValue(1), IntValue(1), IntValue(100)},
		{IntValue(2), IntValue(2), IntValue(200)},
		{IntValue(3), IntValue(1), IntValue(150)},
	} {
		if err := tbl.AppendRecord(row); err != nil {
			t.Fatal(err)
		}
	}

	got, err := AggregateTable(tbl, "amount", AggSum, []Predicate{
		{Column: "category", Op: OpEq, Value: pv(IntValue(1))},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(IntValue(250)) {
		t.Errorf("SUM = %v, want 250", got)
	}
}

func TestAggregate_SumFloat(t *testing.T) {
	tbl := usersTable(t)

	got, err := AggregateTable(tbl, "score", AggSum, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := 95.5 + 87.3 + 92.1
	if got.Kind != TypeFloat64 || math.Abs(got.Float-want) > 1e-9 {
		t.Errorf("SUM = %v, want %g", got, want)
	}
}

func TestAggregate_SumRejectsNonNumeric(t *testing.T) {
	tbl := usersTable(t)

	_, err := AggregateTable(tbl, "name", AggSum, nil)
	var aggErr *AggregateTypeError
	if !errors.As(err, &aggErr) {
		t.Fatalf("err = %v, want AggregateTypeError", err)
	}
	if aggErr.Type != TypeString {
		t.Errorf("type = %v, want string", aggErr.Type)
	}
}

func TestAggregate_CountOnAnyColumnType(t *testing.T) {
	tbl := usersTable(t)

	// COUNT only needs the column to exist; it never reads the values.
	for _, col := range []string{"id", "name", "age", "score"} {
		got, err := AggregateTable(tbl, col, AggCount, nil)
		if err != nil {
			t.Fatalf("COUNT(%s): %v", col, err)
		}
		if !got.Equal(IntValue(3)) {
			t.Errorf("COUNT(%s) = %v, want 3", col, got)
		}
	}
}

func TestAggregate_EmptySelection(t *testing.T) {
	tbl := scoresTable(t)
	none := []Predicate{{Column: "score", Op: OpGt, Value: pv(IntValue(1000))}}

	got, err := AggregateTable(tbl, "score", AggCount, none)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(IntValue(0)) {
		t.Errorf("COUNT = %v, want 0", got)
	}

	got, err = AggregateTable(tbl, "score", AggSum, none)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(IntValue(0)) {
		t.Errorf("SUM = %v, want 0", got)
	}

	floats := usersTable(t)
	got, err = AggregateTable(floats, "score", AggSum, []Predicate{
		{Column: "age", Op: OpGt, Value: pv(IntValue(1000))},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(FloatValue(0)) {
		t.Errorf("float SUM = %v, want 0.0", got)
	}
}

func TestAggregate_UnknownColumn(t *testing.T) {
	tbl := scoresTable(t)

	_, err := AggregateTable(tbl, "missing", AggCount, nil)
	var colErr *ColumnNotFoundError
	if !errors.As(err, &colErr) {
		t.Fatalf("err = %v, want ColumnNotFoundError", err)
	}
}

func TestAggregate_CountMatchesFilter(t *testing.T) {
	tbl := usersTable(t)
	preds := []Predicate{{Column: "age", Op: OpGe, Value: pv(IntValue(30))}}

	indices, err := FilterTable(tbl, preds)
	if err != nil {
		t.Fatal(err)
	}
	got, err := AggregateTable(tbl, "id", AggCount, preds)
	if err != nil {
		t.Fatal(err)
	}
	if got.Int != int64(len(indices)) {
		t.Errorf("COUNT = %d, filter matched %d", got.Int, len(indices))
	}
}
