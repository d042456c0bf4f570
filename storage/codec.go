package storage

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Binary codec shared by the WAL and the snapshot store. All integers
// are little-endian.
//
// Value encoding: 1-byte tag followed by the payload.
//
//	tagInt64   (1): 8 bytes int64
//	tagFloat64 (2): 8 bytes IEEE-754 bit pattern
//	tagString  (3): uint32 length + bytes
//	tagBool    (4): 1 byte (0=false, 1=true)
const (
	tagInt64   byte = 1
	tagFloat64 byte = 2
	tagString  byte = 3
	tagBool    byte = 4
)

// encodeValue appends the binary encoding of v to buf.
func encodeValue(buf []byte, v Value) []byte {
	switch v.Kind {
	case TypeInt64:
		buf = append(buf, tagInt64)
		return binary.LittleEndian.AppendUint64(buf, uint64(v.Int))
	case TypeFloat64:
		buf = append(buf, tagFloat64)
		return binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.Float))
	case TypeString:
		buf = append(buf, tagString)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(v.Str)))
		return append(buf, v.Str...)
	case TypeBool:
		buf = append(buf, tagBool)
		if v.Bool {
			return append(buf, 1)
		}
		return append(buf, 0)
	default:
		// Unreachable for values built through the constructors.
		return buf
	}
}

// decodeValue reads one value from data, returning the value and the
// remaining bytes.
func decodeValue(data []byte) (Value, []byte, error) {
	if len(data) == 0 {
		return Value{}, nil, fmt.Errorf("empty value data")
	}
	tag := data[0]
	data = data[1:]

	switch tag {
	case tagInt64:
		if len(data) < 8 {
			return Value{}, nil, fmt.Errorf("truncated int64 value")
		}
		v := int64(binary.LittleEndian.Uint64(data[:8]))
		return IntValue(v), data[8:], nil
	case tagFloat64:
		if len(data) < 8 {
			return Value{}, nil, fmt.Errorf("truncated float64 value")
		}
		v := math.Float64frombits(binary.LittleEndian.Uint64(data[:8]))
		return FloatValue(v), data[8:], nil
	case tagString:
		if len(data) < 4 {
			return Value{}, nil, fmt.Errorf("truncated string length")
		}
		n := binary.LittleEndian.Uint32(data[:4])
		data = data[4:]
		if uint32(len(data)) < n {
			return Value{}, nil, fmt.Errorf("truncated string value")
		}
		return StringValue(string(data[:n])), data[n:], nil
	case tagBool:
		if len(data) < 1 {
			return Value{}, nil, fmt.Errorf("truncated bool value")
		}
		return BoolValue(data[0] != 0), data[1:], nil
	default:
		return Value{}, nil, fmt.Errorf("%w: %d", ErrInvalidValueType, tag)
	}
}

// encodeValues appends a uint32 count followed by each encoded value.
func encodeValues(buf []byte, values []Value) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(values)))
	for _, v := range values {
		buf = encodeValue(buf, v)
	}
	return buf
}

// decodeValues reads a uint32 count and that many values from data.
func decodeValues(data []byte) ([]Value, []byte, error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("truncated value count")
	}
	count := binary.LittleEndian.Uint32(data[:4])
	data = data[4:]

	values := make([]Value, count)
	for i := range values {
		var err error
		values[i], data, err = decodeValue(data)
		if err != nil {
			return nil, nil, fmt.Errorf("value[%d]: %w", i, err)
		}
	}
	return values, data, nil
}

// encodeString appends a uint32-length-prefixed string.
func encodeString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// decodeString reads a uint32-length-prefixed string.
func decodeString(data []byte) (string, []byte, error) {
	if len(data) < 4 {
		return "", nil, fmt.Errorf("truncated string length")
	}
	n := binary.LittleEndian.Uint32(data[:4])
	data = data[4:]
	if uint32(len(data)) < n {
		return "", nil, fmt.Errorf("truncated string data")
	}
	return string(data[:n]), data[n:], nil
}

// encodeSchema appends a uint32 column count followed by each column's
// length-prefixed name and single type byte.
func encodeSchema(buf []byte, s *Schema) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(s.ColumnCount()))
	for _, col := range s.Columns() {
		buf = encodeString(buf, col.Name)
		buf = append(buf, byte(col.Type))
	}
	return buf
}

// decodeSchema reads a schema encoded by encodeSchema.
func decodeSchema(data []byte) (*Schema, []byte, error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("truncated column count")
	}
	count := binary.LittleEndian.Uint32(data[:4])
	data = data[4:]

	cols := make([]ColumnDef, count)
	for i := range cols {
		var err error
		cols[i].Name, data, err = decodeString(data)
		if err != nil {
			return nil, nil, fmt.Errorf("column[%d] name: %w", i, err)
		}
		if len(data) < 1 {
			return nil, nil, fmt.Errorf("column[%d]: truncated type byte", i)
		}
		if data[0] > byte(TypeBool) {
			return nil, nil, fmt.Errorf("%w: %d", ErrInvalidColumnType, data[0])
		}
		cols[i].Type = ColumnType(data[0])
		data = data[1:]
	}
	return NewSchema(cols), data, nil
}
