package driver

import (
	"github.com/goccy/go-json"
)

// Column describes one result column.
type Column struct {
	Name         string
	DatabaseType string
}

// Row is one result tuple. Values can be read by position or by column name;
// when a name repeats, the last column with that name wins.
type Row struct {
	values  []any
	columns []Column
	index   map[string]int
}

func newRow(values []any, columns []Column, index map[string]int) Row {
	return Row{values: values, columns: columns, index: index}
}

// Len returns the number of values.
func (r Row) Len() int {
	return len(r.values)
}

// At returns the value at position i, or nil when i is out of range.
func (r Row) At(i int) any {
	if i < 0 || i >= len(r.values) {
		return nil
	}
	return r.values[i]
}

// Get returns the value of the named column.
func (r Row) Get(name string) (any, bool) {
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.values[i], true
}

func (r Row) Values() []any {
	out := make([]any, len(r.values))
	copy(out, r.values)
	return out
}

func (r Row) Columns() []Column {
	out := make([]Column, len(r.columns))
	copy(out, r.columns)
	return out
}

// Encode returns the row as a tuple of JSON-ready values.
func (r Row) Encode(encoder ValueEncoder) []any {
	if encoder == nil {
		encoder = ISOEncoder{}
	}
	out := make([]any, len(r.values))
	for i, value := range r.values {
		var column Column
		if i < len(r.columns) {
			column = r.columns[i]
		}
		out[i] = encoder.Encode(column, value)
	}
	return out
}

// MarshalJSON renders the row as a JSON array using ISOEncoder.
func (r Row) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Encode(ISOEncoder{}))
}

func columnIndex(columns []Column) map[string]int {
	index := make(map[string]int, len(columns))
	for i, column := range columns {
		index[column.Name] = i
	}
	return index
}
