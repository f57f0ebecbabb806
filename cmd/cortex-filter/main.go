package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rshinytools/cortex-filter/internal/dataset"
	"github.com/rshinytools/cortex-filter/internal/filter"
	"github.com/rshinytools/cortex-filter/internal/metrics"
	"github.com/rshinytools/cortex-filter/internal/output"
)

var (
	dataFlag     = flag.String("data", ".", "Directory containing dataset files (.parquet, .csv, .csv.gz)")
	datasetFlag  = flag.String("d", "", "Dataset name, e.g. ADSL (matches file base name, case-insensitive)")
	queryFlag    = flag.String("q", "", "Filter expression (e.g., \"AGE >= 65 AND SEX = 'F'\")")
	formatFlag   = flag.String("f", "table", "Output format: table, csv, json")
	validateFlag = flag.Bool("validate", false, "Validate the filter against the dataset schema and exit")
	explainFlag  = flag.Bool("explain", false, "Print the parsed filter instead of executing it")
	schemaFlag   = flag.Bool("schema", false, "Show dataset schema instead of data")
	statsFlag    = flag.Bool("stats", false, "Print execution statistics to stderr")
	auditFlag    = flag.String("audit", "", "Append one audit record per execution to this file")
	limitFlag    = flag.Int("limit", 0, "Limit number of rows (0 = unlimited)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] -d DATASET\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Run dashboard filter expressions against clinical datasets in a directory.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -data ./studies -d ADSL -q \"AGE >= 65 AND SEX = 'F'\"\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -data ./studies -d ADSL -q \"SITEID IN (SELECT SITEID FROM ADAE WHERE AESEV = 'SEVERE')\" -f csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -data ./studies -d ADLB -q \"LBDT IN LAST 30 DAYS\" -validate\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -data ./studies -d ADSL --schema\n", os.Args[0])
	}

	flag.Parse()

	// Validate flag values
	if *limitFlag < 0 {
		fmt.Fprintf(os.Stderr, "Error: -limit must be non-negative, got %d\n", *limitFlag)
		os.Exit(1)
	}

	// Validate flag combinations
	if *schemaFlag && *queryFlag != "" {
		fmt.Fprintf(os.Stderr, "Error: --schema and -q cannot be used together\n")
		os.Exit(1)
	}

	// -explain only needs the filter text
	if *explainFlag {
		if *queryFlag == "" {
			fmt.Fprintf(os.Stderr, "Error: -explain requires -q FILTER\n")
			os.Exit(1)
		}
		explain(*queryFlag)
		return
	}

	if *datasetFlag == "" {
		fmt.Fprintf(os.Stderr, "Error: missing -d DATASET\n\n")
		flag.Usage()
		os.Exit(1)
	}

	store := dataset.NewDirStore(*dataFlag)

	if *schemaFlag {
		handleSchemaMode(store, *datasetFlag, *formatFlag)
		return
	}

	if *validateFlag {
		if *queryFlag == "" {
			fmt.Fprintf(os.Stderr, "Error: -validate requires -q FILTER\n")
			os.Exit(1)
		}
		exec := filter.NewExecutor(store)
		res, err := exec.Validate(*queryFlag, *datasetFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
			os.Exit(2)
		}
		for _, w := range res.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w.Error())
		}
		if !res.Valid {
			for _, e := range res.Errors {
				fmt.Fprintf(os.Stderr, "invalid: %s\n", e.Error())
			}
			os.Exit(2)
		}
		fmt.Printf("valid (complexity %d, columns %s)\n", res.Complexity, strings.Join(res.Columns, ", "))
		return
	}

	var opts []filter.Option
	if *auditFlag != "" {
		f, err := os.OpenFile(*auditFlag, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot open audit file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		opts = append(opts, filter.WithSink(metrics.NewAuditLog(f)))
	}

	exec := filter.NewExecutor(store, opts...)

	// An empty -q prints the dataset unfiltered.
	var (
		tbl    *dataset.Table
		result *filter.Result
		err    error
	)
	if *queryFlag == "" {
		tbl, err = store.Dataset(*datasetFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	} else {
		result, err = exec.Execute(*queryFlag, *datasetFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		tbl = result.Table
	}

	if *limitFlag > 0 && tbl.NumRows() > *limitFlag {
		mask := make([]bool, tbl.NumRows())
		for i := 0; i < *limitFlag; i++ {
			mask[i] = true
		}
		tbl, err = tbl.Select(mask)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	formatter, err := newFormatter(*formatFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := formatter.Format(tbl); err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}

	if *statsFlag && result != nil {
		s := result.Stats
		fmt.Fprintf(os.Stderr, "%d of %d rows matched (efficiency %.2f) in %s\n",
			s.ResultCount, s.OriginalCount, s.FilterEfficiency, s.ExecutionTime)
	}
}

// explain prints the canonical form of a parsed filter along with the
// columns it references.
func explain(filterText string) {
	parsed := filter.Parse(filterText)
	if !parsed.Valid {
		fmt.Fprintf(os.Stderr, "Error parsing filter: %v\n", parsed.Err)
		os.Exit(1)
	}
	fmt.Println(parsed.AST.String())
	if len(parsed.Columns) > 0 {
		fmt.Printf("columns: %s\n", strings.Join(parsed.Columns, ", "))
	}
	if parsed.HasDateRanges {
		fmt.Println("uses relative date ranges")
	}
	if parsed.HasSubqueries {
		fmt.Println("uses subqueries")
	}
}

// handleSchemaMode prints the dataset's columns and kinds.
func handleSchemaMode(store *dataset.DirStore, name, format string) {
	tbl, err := store.Dataset(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	schema := tbl.Schema()
	columns := schema.Columns()
	kinds := make([]string, len(columns))
	for i, col := range columns {
		kinds[i] = schema[col].String()
	}

	info, err := dataset.NewTable(
		dataset.NewString("column", columns),
		dataset.NewString("kind", kinds),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	formatter, err := newFormatter(format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := formatter.Format(info); err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}
}

func newFormatter(format string) (output.Formatter, error) {
	switch format {
	case "table":
		return output.NewTableFormatter(os.Stdout), nil
	case "csv":
		return output.NewCSVFormatter(os.Stdout), nil
	case "json", "jsonl":
		return output.NewJSONFormatter(os.Stdout), nil
	}
	return nil, fmt.Errorf("unsupported format %q (supported: table, csv, json)", format)
}
