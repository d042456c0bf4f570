package storage

import (
	"errors"
	"fmt"
)

// Sentinel errors for on-disk format failures. These are wrapped with
// context at the point of detection and matched with errors.Is.
var (
	ErrInvalidWALMagic        = errors.New("invalid WAL magic")
	ErrInvalidWALVersion      = errors.New("invalid WAL version")
	ErrWALCorruption          = errors.New("WAL corruption")
	ErrInvalidEntryType       = errors.New("invalid WAL entry type")
	ErrInvalidValueType       = errors.New("invalid value type tag")
	ErrInvalidColumnType      = errors.New("invalid column type")
	ErrInvalidSnapshotMagic   = errors.New("invalid snapshot magic")
	ErrInvalidSnapshotVersion = errors.New("invalid snapshot version")
)

// TableExistsError is returned by CreateTable on a name collision.
type TableExistsError struct {
	Name string
}

func (e *TableExistsError) Error() string {
	return fmt.Sprintf("table %q already exists", e.Name)
}

// TableNotFoundError is returned by any operation on a missing table.
type TableNotFoundError struct {
	Name string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %q does not exist", e.Name)
}

// ColumnNotFoundError is returned when a predicate or aggregation
// target names a column that is not in the table's schema.
type ColumnNotFoundError struct {
	Column string
	Table  string
}

func (e *ColumnNotFoundError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("column %q does not exist", e.Column)
	}
	return fmt.Sprintf("column %q does not exist in table %q", e.Column, e.Table)
}

// ColumnIndexError is returned for an out-of-range column index, and by
// Table.Value and Table.Row for an out-of-range row index. Count is the
// number of columns or rows the index was checked against.
type ColumnIndexError struct {
	Index int
	Count int
}

func (e *ColumnIndexError) Error() string {
	return fmt.Sprintf("index %d out of bounds (count %d)", e.Index, e.Count)
}

// ColumnCountMismatchError is returned by AppendRecord when the value
// count does not match the schema's column count.
type ColumnCountMismatchError struct {
	Want int
	Got  int
}

func (e *ColumnCountMismatchError) Error() string {
	return fmt.Sprintf("record has %d values, table has %d columns", e.Got, e.Want)
}

// TypeMismatchError is returned by AppendRecord when a value's kind
// does not match the declared column type.
type TypeMismatchError struct {
	Column string
	Want   ColumnType
	Got    ColumnType
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("column %q expects %s, got %s", e.Column, e.Want, e.Got)
}

// InvalidPredicateError is returned by the filter path when a
// predicate is missing its comparison value.
type InvalidPredicateError struct {
	Column string
}

func (e *InvalidPredicateError) Error() string {
	return fmt.Sprintf("predicate on column %q has no value", e.Column)
}

// AggregateTypeError is returned when an aggregate function is applied
// to a column type it is not defined for (e.g. SUM over strings).
type AggregateTypeError struct {
	Func   AggregateFunc
	Column string
	Type   ColumnType
}

func (e *AggregateTypeError) Error() string {
	return fmt.Sprintf("%s is not defined for column %q of type %s", e.Func, e.Column, e.Type)
}
