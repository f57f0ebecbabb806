package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/rshinytools/cortex-filter/internal/dataset"
)

// CSVFormatter outputs a table as CSV with a header row.
type CSVFormatter struct {
	writer io.Writer
}

// NewCSVFormatter creates a new CSV formatter.
func NewCSVFormatter(w io.Writer) *CSVFormatter {
	return &CSVFormatter{writer: w}
}

// SetOutput sets the output writer.
func (c *CSVFormatter) SetOutput(w io.Writer) {
	c.writer = w
}

// Format writes the table as CSV.
func (c *CSVFormatter) Format(tbl *dataset.Table) error {
	csvWriter := csv.NewWriter(c.writer)

	columns := tbl.Columns()
	if err := csvWriter.Write(columns); err != nil {
		return err
	}

	for i := 0; i < tbl.NumRows(); i++ {
		row := record(tbl, columns, i)
		for j, cell := range row {
			row[j] = sanitizeCell(cell)
		}
		if err := csvWriter.Write(row); err != nil {
			return err
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV writer: %w", err)
	}
	return nil
}

// sanitizeCell prefixes values that could trigger formula execution when the
// CSV is opened in a spreadsheet application.
func sanitizeCell(val string) string {
	if len(val) == 0 {
		return val
	}
	switch val[0] {
	case '=', '+', '-', '@', '\t', '\r', '\n', '|':
		return "'" + strings.ReplaceAll(val, "'", "''")
	}
	return val
}
