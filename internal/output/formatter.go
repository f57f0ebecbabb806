package output

import (
	"io"
	"strconv"
	"time"

	"github.com/rshinytools/cortex-filter/internal/dataset"
)

// Formatter defines the interface for table renderers.
type Formatter interface {
	// Format writes the table in the formatter's specific format
	Format(tbl *dataset.Table) error

	// SetOutput changes the output writer
	SetOutput(w io.Writer)
}

// cellText converts one cell to its string form. Nulls render empty.
func cellText(s *dataset.Series, i int) string {
	if s.IsNull(i) {
		return ""
	}
	switch s.Kind() {
	case dataset.KindBool:
		return strconv.FormatBool(s.Bool(i))
	case dataset.KindInt:
		return strconv.FormatInt(s.Int(i), 10)
	case dataset.KindFloat:
		return strconv.FormatFloat(s.Float(i), 'f', -1, 64)
	case dataset.KindString:
		return s.Str(i)
	case dataset.KindTime:
		return s.Time(i).UTC().Format(time.RFC3339)
	}
	return ""
}

// record renders one row across the given columns.
func record(tbl *dataset.Table, columns []string, i int) []string {
	out := make([]string, len(columns))
	for j, name := range columns {
		if s, ok := tbl.Column(name); ok {
			out[j] = cellText(s, i)
		}
	}
	return out
}
