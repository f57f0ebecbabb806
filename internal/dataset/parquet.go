package dataset

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
)

// LoadParquet reads a parquet file into a Table. The whole file is loaded
// into memory; column kinds are inferred from the decoded values.
func LoadParquet(path string) (*Table, error) {
	rows, err := ReadParquetRows(path)
	if err != nil {
		return nil, err
	}

	table, err := FromRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to build table from %s: %w", path, err)
	}
	return table, nil
}

// ReadParquetRows reads every row of a parquet file as a column-name-to-value
// map. Optional fields absent from a row are left out of its map.
func ReadParquetRows(path string) ([]map[string]interface{}, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pqFile, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}

	reader := parquet.NewReader(pqFile)
	defer func() { _ = reader.Close() }()

	rows := make([]map[string]interface{}, 0)
	for {
		row := make(map[string]interface{})
		err := reader.Read(&row)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		rows = append(rows, row)
	}

	return rows, nil
}
