package output

import (
	"io"

	"github.com/segmentio/encoding/json"

	"github.com/rshinytools/cortex-filter/internal/dataset"
)

// JSONFormatter outputs a table as JSON Lines, one object per row.
type JSONFormatter struct {
	writer io.Writer
}

// NewJSONFormatter creates a new JSON Lines formatter.
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

// SetOutput sets the output writer.
func (j *JSONFormatter) SetOutput(w io.Writer) {
	j.writer = w
}

// Format writes one JSON object per row. Keys are sorted, so output is
// stable across runs.
func (j *JSONFormatter) Format(tbl *dataset.Table) error {
	encoder := json.NewEncoder(j.writer)
	for i := 0; i < tbl.NumRows(); i++ {
		if err := encoder.Encode(tbl.Row(i)); err != nil {
			return err
		}
	}
	return nil
}
