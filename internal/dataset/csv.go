package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// LoadCSV reads a CSV file into a Table. Files ending in .gz are
// transparently decompressed. The first record is the header; empty cells
// are nulls; column kinds are inferred from the non-empty values.
func LoadCSV(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var r io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	table, err := ReadCSV(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return table, nil
}

// ReadCSV parses CSV content with a header row into a Table.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv has no header row")
	}

	header := records[0]
	data := records[1:]

	cols := make([]*Series, 0, len(header))
	for ci, name := range header {
		values := make([]string, len(data))
		for ri, record := range data {
			if ci < len(record) {
				values[ri] = record[ci]
			}
		}

		kind := inferStringKind(values)
		b := NewBuilder(name, kind)
		for _, raw := range values {
			if raw == "" {
				b.AppendNull()
				continue
			}
			if err := appendParsed(b, kind, raw); err != nil {
				return nil, err
			}
		}
		cols = append(cols, b.Series())
	}

	return NewTable(cols...)
}

// inferStringKind picks a kind for a column of raw CSV cells. Empty cells
// are ignored; every non-empty cell must parse as the candidate kind for it
// to win. Precedence: int, float, bool, time, string.
func inferStringKind(values []string) Kind {
	isInt, isFloat, isBool, isTime := true, true, true, true
	any := false

	for _, v := range values {
		if v == "" {
			continue
		}
		any = true
		if isInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				isFloat = false
			}
		}
		if isBool {
			lower := strings.ToLower(v)
			if lower != "true" && lower != "false" {
				isBool = false
			}
		}
		if isTime {
			if _, ok := ParseTime(v); !ok {
				isTime = false
			}
		}
	}

	switch {
	case !any:
		return KindString
	case isInt:
		return KindInt
	case isFloat:
		return KindFloat
	case isBool:
		return KindBool
	case isTime:
		return KindTime
	default:
		return KindString
	}
}

// appendParsed parses one non-empty CSV cell into the builder's kind.
func appendParsed(b *Builder, kind Kind, raw string) error {
	switch kind {
	case KindInt:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid int %q: %w", raw, err)
		}
		return b.Append(v)
	case KindFloat:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid float %q: %w", raw, err)
		}
		return b.Append(v)
	case KindBool:
		return b.Append(strings.ToLower(raw) == "true")
	case KindTime:
		return b.Append(raw)
	default:
		return b.Append(raw)
	}
}
