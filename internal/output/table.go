package output

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/rshinytools/cortex-filter/internal/dataset"
)

// TableFormatter outputs an aligned text table with a row count footer.
type TableFormatter struct {
	writer io.Writer
}

// NewTableFormatter creates a new text table formatter.
func NewTableFormatter(w io.Writer) *TableFormatter {
	return &TableFormatter{writer: w}
}

// SetOutput sets the output writer.
func (t *TableFormatter) SetOutput(w io.Writer) {
	t.writer = w
}

// Format renders the table.
func (t *TableFormatter) Format(tbl *dataset.Table) error {
	table := tablewriter.NewWriter(t.writer)
	table.SetHeader(tbl.Columns())
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)

	columns := tbl.Columns()
	for i := 0; i < tbl.NumRows(); i++ {
		table.Append(record(tbl, columns, i))
	}
	table.Render()

	_, err := fmt.Fprintf(t.writer, "(%d rows)\n", tbl.NumRows())
	return err
}
