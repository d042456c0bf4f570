package storage

// column is a homogeneous append-only container backing one table
// column. It is the storage-side twin of Value: the same kind tag
// selects which slice is in use, and every operation is a single
// switch over that tag.
type column struct {
	kind   ColumnType
	ints   []int64
	floats []float64
	strs   []string
	bools  []bool
}

func newColumn(kind ColumnType) *column {
	return &column{kind: kind}
}

func (c *column) len() int {
	switch c.kind {
	case TypeInt64:
		return len(c.ints)
	case TypeFloat64:
		return len(c.floats)
	case TypeString:
		return len(c.strs)
	case TypeBool:
		return len(c.bools)
	default:
		return 0
	}
}

// append stores v without checking its kind; the type check happens at
// the table boundary so a rejected row never reaches any column.
func (c *column) append(v Value) {
	switch c.kind {
	case TypeInt64:
		c.ints = append(c.ints, v.Int)
	case TypeFloat64:
		c.floats = append(c.floats, v.Float)
	case TypeString:
		c.strs = append(c.strs, v.Str)
	case TypeBool:
		c.bools = append(c.bools, v.Bool)
	}
}

func (c *column) get(i int) Value {
	switch c.kind {
	case TypeInt64:
		return IntValue(c.ints[i])
	case TypeFloat64:
		return FloatValue(c.floats[i])
	case TypeString:
		return StringValue(c.strs[i])
	case TypeBool:
		return BoolValue(c.bools[i])
	default:
		return Value{}
	}
}

// memoryBytes estimates the heap footprint of the column's buffers.
func (c *column) memoryBytes() int64 {
	switch c.kind {
	case TypeInt64:
		return int64(cap(c.ints)) * 8
	case TypeFloat64:
		return int64(cap(c.floats)) * 8
	case TypeString:
		total := int64(cap(c.strs)) * 16 // string headers
		for _, s := range c.strs {
			total += int64(len(s))
		}
		return total
	case TypeBool:
		return int64(cap(c.bools))
	default:
		return 0
	}
}
