package dataset

import (
	"fmt"
	"sort"
)

// Schema maps column names to their kinds.
type Schema map[string]Kind

// Columns returns the schema's column names in sorted order.
func (s Schema) Columns() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Table is an immutable in-memory table: an ordered set of equal-length
// Series. The zero-column table has zero rows.
type Table struct {
	names []string
	cols  map[string]*Series
	nrows int
}

// NewTable builds a Table from the given columns. All columns must have the
// same length and distinct names.
func NewTable(cols ...*Series) (*Table, error) {
	t := &Table{cols: make(map[string]*Series, len(cols))}

	for i, col := range cols {
		if col == nil {
			return nil, fmt.Errorf("column %d is nil", i)
		}
		if _, exists := t.cols[col.Name()]; exists {
			return nil, fmt.Errorf("duplicate column %q", col.Name())
		}
		if i == 0 {
			t.nrows = col.Len()
		} else if col.Len() != t.nrows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", col.Name(), col.Len(), t.nrows)
		}
		t.names = append(t.names, col.Name())
		t.cols[col.Name()] = col
	}

	return t, nil
}

// MustNewTable is NewTable that panics on error. Intended for tests and
// fixtures where the columns are literals.
func MustNewTable(cols ...*Series) *Table {
	t, err := NewTable(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return t.nrows }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.names) }

// Columns returns the column names in table order.
func (t *Table) Columns() []string {
	names := make([]string, len(t.names))
	copy(names, t.names)
	return names
}

// Column returns the named column, or false if the table has no such column.
// Lookup is case-sensitive.
func (t *Table) Column(name string) (*Series, bool) {
	s, ok := t.cols[name]
	return s, ok
}

// Schema returns the table's column kinds.
func (t *Table) Schema() Schema {
	schema := make(Schema, len(t.names))
	for name, col := range t.cols {
		schema[name] = col.Kind()
	}
	return schema
}

// Select returns a new Table containing the rows where mask is true.
// The mask must have exactly one entry per row.
func (t *Table) Select(mask []bool) (*Table, error) {
	if len(mask) != t.nrows {
		return nil, fmt.Errorf("mask length %d does not match row count %d", len(mask), t.nrows)
	}

	cols := make([]*Series, 0, len(t.names))
	for _, name := range t.names {
		gathered, err := t.cols[name].Gather(mask)
		if err != nil {
			return nil, err
		}
		cols = append(cols, gathered)
	}

	return NewTable(cols...)
}

// Row returns row i as a column-name-to-value map. Null cells map to nil.
func (t *Table) Row(i int) map[string]interface{} {
	row := make(map[string]interface{}, len(t.names))
	for _, name := range t.names {
		row[name] = t.cols[name].Value(i)
	}
	return row
}

// Rows materializes every row as a map. Convenient for output formatting;
// not meant for large-table hot paths.
func (t *Table) Rows() []map[string]interface{} {
	rows := make([]map[string]interface{}, t.nrows)
	for i := 0; i < t.nrows; i++ {
		rows[i] = t.Row(i)
	}
	return rows
}
