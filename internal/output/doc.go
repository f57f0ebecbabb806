// Package output renders filtered tables for the command line.
//
// This package defines the Formatter interface and provides implementations
// for the formats the dashboard export paths use. All formatters work with
// the columnar dataset.Table model.
//
// # Supported Formats
//
//   - Table: aligned text table with a row count footer
//   - JSON Lines: one JSON object per line (suitable for streaming)
//   - CSV: comma-separated values with header row
//
// # Basic Usage
//
// Using the JSON formatter:
//
//	formatter := output.NewJSONFormatter(os.Stdout)
//	if err := formatter.Format(tbl); err != nil {
//	    log.Fatal(err)
//	}
//
// # Writing to Different Destinations
//
// Change output destination dynamically:
//
//	formatter := output.NewCSVFormatter(os.Stdout)
//	file, err := os.Create("result.csv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer file.Close()
//
//	formatter.SetOutput(file)
//	if err := formatter.Format(tbl); err != nil {
//	    log.Fatal(err)
//	}
//
// # Type Handling
//
// Cells render from the column's kind: numbers without an exponent, dates
// as RFC 3339, nulls as empty cells. The CSV formatter additionally guards
// string cells against spreadsheet formula injection.
package output
