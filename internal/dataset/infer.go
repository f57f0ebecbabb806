package dataset

import (
	"fmt"
	"sort"
	"time"
)

// Builder accumulates cells for one column and seals them into a Series.
type Builder struct {
	name    string
	kind    Kind
	valid   []bool
	bools   []bool
	ints    []int64
	floats  []float64
	strings []string
	times   []time.Time
}

// NewBuilder creates a Builder for a column of the given kind.
func NewBuilder(name string, kind Kind) *Builder {
	return &Builder{name: name, kind: kind}
}

// Len returns the number of cells appended so far.
func (b *Builder) Len() int { return len(b.valid) }

// AppendNull appends a null cell.
func (b *Builder) AppendNull() {
	b.valid = append(b.valid, false)
	switch b.kind {
	case KindBool:
		b.bools = append(b.bools, false)
	case KindInt:
		b.ints = append(b.ints, 0)
	case KindFloat:
		b.floats = append(b.floats, 0)
	case KindString:
		b.strings = append(b.strings, "")
	case KindTime:
		b.times = append(b.times, time.Time{})
	}
}

// Append appends a value, coercing it to the builder's kind. nil appends a
// null. Returns an error when the value cannot represent the kind.
func (b *Builder) Append(v interface{}) error {
	if v == nil {
		b.AppendNull()
		return nil
	}

	switch b.kind {
	case KindBool:
		bv, ok := v.(bool)
		if !ok {
			return fmt.Errorf("column %q: cannot store %T in bool column", b.name, v)
		}
		b.bools = append(b.bools, bv)
	case KindInt:
		iv, ok := toInt64(v)
		if !ok {
			return fmt.Errorf("column %q: cannot store %T in int column", b.name, v)
		}
		b.ints = append(b.ints, iv)
	case KindFloat:
		fv, ok := toNumber(v)
		if !ok {
			return fmt.Errorf("column %q: cannot store %T in float column", b.name, v)
		}
		b.floats = append(b.floats, fv)
	case KindString:
		b.strings = append(b.strings, formatCell(v))
	case KindTime:
		switch tv := v.(type) {
		case time.Time:
			b.times = append(b.times, tv)
		case string:
			parsed, ok := ParseTime(tv)
			if !ok {
				return fmt.Errorf("column %q: cannot parse %q as time", b.name, tv)
			}
			b.times = append(b.times, parsed)
		default:
			return fmt.Errorf("column %q: cannot store %T in time column", b.name, v)
		}
	}

	b.valid = append(b.valid, true)
	return nil
}

// Series seals the builder into a Series. The builder must not be used after.
func (b *Builder) Series() *Series {
	return &Series{
		name:    b.name,
		kind:    b.kind,
		valid:   b.valid,
		bools:   b.bools,
		ints:    b.ints,
		floats:  b.floats,
		strings: b.strings,
		times:   b.times,
	}
}

// FromRows builds a Table from row maps, inferring each column's kind from
// the values present. Missing keys and nil values become nulls. Columns are
// ordered by name for deterministic layout.
func FromRows(rows []map[string]interface{}) (*Table, error) {
	columnSet := make(map[string]bool)
	for _, row := range rows {
		for col := range row {
			columnSet[col] = true
		}
	}

	names := make([]string, 0, len(columnSet))
	for col := range columnSet {
		names = append(names, col)
	}
	sort.Strings(names)

	cols := make([]*Series, 0, len(names))
	for _, name := range names {
		kind := inferColumnKind(rows, name)
		b := NewBuilder(name, kind)
		for _, row := range rows {
			v, exists := row[name]
			if !exists || v == nil {
				b.AppendNull()
				continue
			}
			if kind == KindString {
				// Mixed-kind columns degrade to strings rather than failing the load.
				if err := b.Append(formatCell(v)); err != nil {
					return nil, err
				}
				continue
			}
			if err := b.Append(v); err != nil {
				return nil, err
			}
		}
		cols = append(cols, b.Series())
	}

	return NewTable(cols...)
}

// inferColumnKind picks a kind for one column across all rows: a single
// observed kind wins, int and float together widen to float, anything else
// degrades to string. All-null columns default to string.
func inferColumnKind(rows []map[string]interface{}, name string) Kind {
	seen := make(map[Kind]bool)
	for _, row := range rows {
		v, exists := row[name]
		if !exists || v == nil {
			continue
		}
		k, ok := valueKind(v)
		if !ok {
			return KindString
		}
		seen[k] = true
	}

	switch {
	case len(seen) == 0:
		return KindString
	case len(seen) == 1:
		for k := range seen {
			return k
		}
	case len(seen) == 2 && seen[KindInt] && seen[KindFloat]:
		return KindFloat
	}
	return KindString
}

// valueKind classifies a loaded cell value.
func valueKind(v interface{}) (Kind, bool) {
	switch v.(type) {
	case bool:
		return KindBool, true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindInt, true
	case float32, float64:
		return KindFloat, true
	case string, []byte:
		return KindString, true
	case time.Time:
		return KindTime, true
	default:
		return 0, false
	}
}

// toInt64 converts any integer width to int64.
func toInt64(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		return int64(val), true
	default:
		return 0, false
	}
}

// toNumber converts any numeric value to float64.
func toNumber(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	default:
		if iv, ok := toInt64(v); ok {
			return float64(iv), true
		}
		return 0, false
	}
}

// formatCell renders a cell value for string storage.
func formatCell(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// dateLayouts are the timestamp formats the engine accepts, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTime parses a timestamp string using the supported layouts.
func ParseTime(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
