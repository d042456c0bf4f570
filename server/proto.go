package server

import (
	"fmt"

	"coleman/storage"
)

// The wire protocol is one JSON object per line in each direction.
// These types are the adapter boundary: nothing in storage knows about
// them, and every string decoded here is re-owned by the engine when a
// mutation takes it.

// Request is a single client operation.
type Request struct {
	Op         string          `json:"op"`
	Table      string          `json:"table,omitempty"`
	Columns    []ColumnSpec    `json:"columns,omitempty"`
	Values     []ValueSpec     `json:"values,omitempty"`
	Predicates []PredicateSpec `json:"predicates,omitempty"`
	Column     string          `json:"column,omitempty"`
	Func       string          `json:"func,omitempty"`
}

// Response carries the result of one Request. At most one of the
// payload fields (Rows, Value, Tables, Stats, Memory) is populated,
// selected by the request op; create, drop, add and error responses
// carry none.
type Response struct {
	OK     bool                      `json:"ok"`
	Code   string                    `json:"code,omitempty"`
	Error  string                    `json:"error,omitempty"`
	Rows   [][]ValueSpec             `json:"rows,omitempty"`
	Value  *ValueSpec                `json:"value,omitempty"`
	Tables []string                  `json:"tables,omitempty"`
	Stats  *StatsSpec                `json:"stats,omitempty"`
	Memory []storage.TableMemoryInfo `json:"memory,omitempty"`
}

// ColumnSpec names one schema column.
type ColumnSpec struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ValueSpec is the JSON form of a storage.Value. Type selects which
// payload field is meaningful.
type ValueSpec struct {
	Type  string  `json:"type"`
	Int   int64   `json:"int,omitempty"`
	Float float64 `json:"float,omitempty"`
	Str   string  `json:"str,omitempty"`
	Bool  bool    `json:"bool,omitempty"`
}

// PredicateSpec is the JSON form of a storage.Predicate.
type PredicateSpec struct {
	Column string     `json:"column"`
	Op     string     `json:"op"`
	Value  *ValueSpec `json:"value,omitempty"`
}

// StatsSpec mirrors storage.Stats plus the server version string.
type StatsSpec struct {
	TableCount           int    `json:"table_count"`
	RecordsSinceSnapshot int    `json:"records_since_snapshot"`
	WALSize              int64  `json:"wal_size"`
	WALLastSeq           uint64 `json:"wal_last_seq"`
	Version              string `json:"version"`
}

func decodeSchema(cols []ColumnSpec) (*storage.Schema, error) {
	defs := make([]storage.ColumnDef, len(cols))
	for i, c := range cols {
		typ, ok := storage.ColumnTypeFromString(c.Type)
		if !ok {
			return nil, fmt.Errorf("column %q: unknown type %q", c.Name, c.Type)
		}
		defs[i] = storage.ColumnDef{Name: c.Name, Type: typ}
	}
	return storage.NewSchema(defs), nil
}

func decodeValue(v ValueSpec) (storage.Value, error) {
	switch v.Type {
	case "int64":
		return storage.IntValue(v.Int), nil
	case "float64":
		return storage.FloatValue(v.Float), nil
	case "string":
		return storage.StringValue(v.Str), nil
	case "bool":
		return storage.BoolValue(v.Bool), nil
	default:
		return storage.Value{}, fmt.Errorf("unknown value type %q", v.Type)
	}
}

func decodeValues(specs []ValueSpec) ([]storage.Value, error) {
	values := make([]storage.Value, len(specs))
	for i, spec := range specs {
		v, err := decodeValue(spec)
		if err != nil {
			return nil, fmt.Errorf("value[%d]: %w", i, err)
		}
		values[i] = v
	}
	return values, nil
}

func decodePredicates(specs []PredicateSpec) ([]storage.Predicate, error) {
	preds := make([]storage.Predicate, len(specs))
	for i, spec := range specs {
		op, ok := storage.OperatorFromString(spec.Op)
		if !ok {
			return nil, fmt.Errorf("predicate[%d]: unknown operator %q", i, spec.Op)
		}
		preds[i] = storage.Predicate{Column: spec.Column, Op: op}
		if spec.Value != nil {
			v, err := decodeValue(*spec.Value)
			if err != nil {
				return nil, fmt.Errorf("predicate[%d]: %w", i, err)
			}
			preds[i].Value = &v
		}
	}
	return preds, nil
}

func encodeValue(v storage.Value) ValueSpec {
	switch v.Kind {
	case storage.TypeInt64:
		return ValueSpec{Type: "int64", Int: v.Int}
	case storage.TypeFloat64:
		return ValueSpec{Type: "float64", Float: v.Float}
	case storage.TypeString:
		return ValueSpec{Type: "string", Str: v.Str}
	case storage.TypeBool:
		return ValueSpec{Type: "bool", Bool: v.Bool}
	default:
		return ValueSpec{Type: "unknown"}
	}
}

func encodeRows(rows [][]storage.Value) [][]ValueSpec {
	out := make([][]ValueSpec, len(rows))
	for i, row := range rows {
		specs := make([]ValueSpec, len(row))
		for j, v := range row {
			specs[j] = encodeValue(v)
		}
		out[i] = specs
	}
	return out
}
