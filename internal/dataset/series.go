// Package dataset provides the in-memory columnar table model the filter
// engine evaluates against.
//
// A Table is an ordered set of named Series. Each Series holds one column as
// a typed vector (bool, int64, float64, string, or time.Time) plus a validity
// mask marking null cells. Tables are loaded from parquet or CSV files, or
// built directly from Series for tests and embedding.
package dataset

import (
	"fmt"
	"time"
)

// Kind identifies the value type of a Series.
type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindFloat
	KindString
	KindTime
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	default:
		return "unknown"
	}
}

// Series is a single named column: a typed value vector and a validity mask.
// valid[i] == false marks cell i as null; the value slot is then meaningless.
type Series struct {
	name  string
	kind  Kind
	valid []bool

	bools   []bool
	ints    []int64
	floats  []float64
	strings []string
	times   []time.Time
}

// NewBool creates a bool Series with no nulls.
func NewBool(name string, values []bool) *Series {
	return &Series{name: name, kind: KindBool, bools: values, valid: allValid(len(values))}
}

// NewInt creates an int64 Series with no nulls.
func NewInt(name string, values []int64) *Series {
	return &Series{name: name, kind: KindInt, ints: values, valid: allValid(len(values))}
}

// NewFloat creates a float64 Series with no nulls.
func NewFloat(name string, values []float64) *Series {
	return &Series{name: name, kind: KindFloat, floats: values, valid: allValid(len(values))}
}

// NewString creates a string Series with no nulls.
func NewString(name string, values []string) *Series {
	return &Series{name: name, kind: KindString, strings: values, valid: allValid(len(values))}
}

// NewTime creates a time Series with no nulls.
func NewTime(name string, values []time.Time) *Series {
	return &Series{name: name, kind: KindTime, times: values, valid: allValid(len(values))}
}

// NewNullableBool creates a bool Series; nil entries become nulls.
func NewNullableBool(name string, values []*bool) *Series {
	s := &Series{name: name, kind: KindBool, bools: make([]bool, len(values)), valid: make([]bool, len(values))}
	for i, v := range values {
		if v != nil {
			s.bools[i] = *v
			s.valid[i] = true
		}
	}
	return s
}

// NewNullableInt creates an int64 Series; nil entries become nulls.
func NewNullableInt(name string, values []*int64) *Series {
	s := &Series{name: name, kind: KindInt, ints: make([]int64, len(values)), valid: make([]bool, len(values))}
	for i, v := range values {
		if v != nil {
			s.ints[i] = *v
			s.valid[i] = true
		}
	}
	return s
}

// NewNullableFloat creates a float64 Series; nil entries become nulls.
func NewNullableFloat(name string, values []*float64) *Series {
	s := &Series{name: name, kind: KindFloat, floats: make([]float64, len(values)), valid: make([]bool, len(values))}
	for i, v := range values {
		if v != nil {
			s.floats[i] = *v
			s.valid[i] = true
		}
	}
	return s
}

// NewNullableString creates a string Series; nil entries become nulls.
func NewNullableString(name string, values []*string) *Series {
	s := &Series{name: name, kind: KindString, strings: make([]string, len(values)), valid: make([]bool, len(values))}
	for i, v := range values {
		if v != nil {
			s.strings[i] = *v
			s.valid[i] = true
		}
	}
	return s
}

// NewNullableTime creates a time Series; nil entries become nulls.
func NewNullableTime(name string, values []*time.Time) *Series {
	s := &Series{name: name, kind: KindTime, times: make([]time.Time, len(values)), valid: make([]bool, len(values))}
	for i, v := range values {
		if v != nil {
			s.times[i] = *v
			s.valid[i] = true
		}
	}
	return s
}

func allValid(n int) []bool {
	v := make([]bool, n)
	for i := range v {
		v[i] = true
	}
	return v
}

// Name returns the column name.
func (s *Series) Name() string { return s.name }

// Kind returns the value type of the column.
func (s *Series) Kind() Kind { return s.kind }

// Len returns the number of cells.
func (s *Series) Len() int { return len(s.valid) }

// IsNull reports whether cell i is null.
func (s *Series) IsNull(i int) bool { return !s.valid[i] }

// Bool returns cell i of a bool Series. Only meaningful for valid cells.
func (s *Series) Bool(i int) bool { return s.bools[i] }

// Int returns cell i of an int Series.
func (s *Series) Int(i int) int64 { return s.ints[i] }

// Float returns cell i of a float Series.
func (s *Series) Float(i int) float64 { return s.floats[i] }

// Str returns cell i of a string Series.
func (s *Series) Str(i int) string { return s.strings[i] }

// Time returns cell i of a time Series.
func (s *Series) Time(i int) time.Time { return s.times[i] }

// Value returns cell i as an interface value, or nil for a null cell.
func (s *Series) Value(i int) interface{} {
	if !s.valid[i] {
		return nil
	}
	switch s.kind {
	case KindBool:
		return s.bools[i]
	case KindInt:
		return s.ints[i]
	case KindFloat:
		return s.floats[i]
	case KindString:
		return s.strings[i]
	case KindTime:
		return s.times[i]
	default:
		return nil
	}
}

// Number returns cell i as a float64 for int and float Series.
// ok is false for null cells and non-numeric kinds.
func (s *Series) Number(i int) (float64, bool) {
	if !s.valid[i] {
		return 0, false
	}
	switch s.kind {
	case KindInt:
		return float64(s.ints[i]), true
	case KindFloat:
		return s.floats[i], true
	default:
		return 0, false
	}
}

// Gather returns a new Series containing only the cells where mask is true.
// The mask must have the same length as the Series.
func (s *Series) Gather(mask []bool) (*Series, error) {
	if len(mask) != s.Len() {
		return nil, fmt.Errorf("mask length %d does not match series length %d", len(mask), s.Len())
	}

	n := 0
	for _, keep := range mask {
		if keep {
			n++
		}
	}

	out := &Series{name: s.name, kind: s.kind, valid: make([]bool, 0, n)}
	switch s.kind {
	case KindBool:
		out.bools = make([]bool, 0, n)
	case KindInt:
		out.ints = make([]int64, 0, n)
	case KindFloat:
		out.floats = make([]float64, 0, n)
	case KindString:
		out.strings = make([]string, 0, n)
	case KindTime:
		out.times = make([]time.Time, 0, n)
	}

	for i, keep := range mask {
		if !keep {
			continue
		}
		out.valid = append(out.valid, s.valid[i])
		switch s.kind {
		case KindBool:
			out.bools = append(out.bools, s.bools[i])
		case KindInt:
			out.ints = append(out.ints, s.ints[i])
		case KindFloat:
			out.floats = append(out.floats, s.floats[i])
		case KindString:
			out.strings = append(out.strings, s.strings[i])
		case KindTime:
			out.times = append(out.times, s.times[i])
		}
	}

	return out, nil
}
