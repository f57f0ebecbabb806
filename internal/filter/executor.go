package filter

import (
	"time"

	"github.com/rshinytools/cortex-filter/internal/dataset"
	"github.com/rshinytools/cortex-filter/internal/logging"
)

// Store provides named datasets: the outer table a filter runs against and
// the auxiliary tables its subqueries read.
type Store interface {
	Dataset(name string) (*dataset.Table, error)
}

// Sink receives one record per executed filter. Implementations must not
// block; the executor calls it inline after each execution.
type Sink interface {
	RecordEvaluation(ev Evaluation)
}

// ErrorSink is an optional Sink extension for sinks that also track failed
// executions. The executor reports parse rejections, evaluation errors and
// unresolvable datasets to sinks that implement it.
type ErrorSink interface {
	RecordError(datasetID, filterText string, err error)
}

// Evaluation describes a completed filter execution for metrics sinks.
type Evaluation struct {
	DatasetID     string
	FilterText    string
	RowCount      int
	OriginalCount int
	ExecutionTime time.Duration
}

// Stats summarizes a filter execution. FilterEfficiency is the fraction of
// rows removed, 1 - result/original, and 0 for an empty input table.
// DateFallbacks counts non-null cells that date ranges skipped because they
// could not be read as dates; those rows degrade to no-match, not errors.
type Stats struct {
	OriginalCount    int           `json:"original_count"`
	ResultCount      int           `json:"result_count"`
	FilterEfficiency float64       `json:"filter_efficiency"`
	ExecutionTime    time.Duration `json:"execution_time"`
	DateFallbacks    int           `json:"date_fallbacks,omitempty"`
}

// Result is a completed filter execution: the surviving rows, the row mask
// the filter produced, and execution statistics.
type Result struct {
	Table *dataset.Table
	Mask  []bool
	Stats Stats
}

// Executor parses, validates and runs filters against a dataset store. One
// executor holds one subquery cache; create it once and share it.
type Executor struct {
	store Store
	cache *SubqueryCache
	sink  Sink
	log   *logging.Logger
	now   func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithNow fixes the clock that anchors relative date ranges. Tests use it
// to pin LAST and NEXT windows.
func WithNow(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithSink attaches a metrics sink.
func WithSink(sink Sink) Option {
	return func(e *Executor) { e.sink = sink }
}

// WithLogger replaces the executor's logger.
func WithLogger(log *logging.Logger) Option {
	return func(e *Executor) { e.log = log }
}

// NewExecutor returns an executor over the given dataset store.
func NewExecutor(store Store, opts ...Option) *Executor {
	e := &Executor{
		store: store,
		cache: NewSubqueryCache(),
		log:   logging.NewLogger("filter"),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Parse parses filter text without touching any dataset.
func (e *Executor) Parse(filterText string) *ParseResult {
	return Parse(filterText)
}

// Validate parses the filter and checks its columns against the named
// dataset's schema. Parse failures and unknown datasets return an error;
// schema problems come back on the ValidationResult.
func (e *Executor) Validate(filterText, datasetName string) (*ValidationResult, error) {
	parsed := Parse(filterText)
	if !parsed.Valid {
		return nil, parsed.Err
	}
	tbl, err := e.store.Dataset(datasetName)
	if err != nil {
		return nil, err
	}
	if tbl == nil {
		return nil, ErrNilTable
	}
	return ValidateColumns(parsed.AST, tbl.Schema()), nil
}

// Execute runs a filter against the named dataset.
func (e *Executor) Execute(filterText, datasetName string) (*Result, error) {
	tbl, err := e.store.Dataset(datasetName)
	if err != nil {
		e.recordError(datasetName, filterText, err)
		return nil, err
	}
	return e.ExecuteTable(filterText, datasetName, tbl)
}

// ExecuteTable runs a filter against an already loaded table. datasetID
// names the table in logs and metrics; subqueries still resolve through
// the store.
func (e *Executor) ExecuteTable(filterText, datasetID string, tbl *dataset.Table) (*Result, error) {
	start := time.Now()

	parsed := Parse(filterText)
	if !parsed.Valid {
		e.log.Warn("filter rejected", "dataset", datasetID, "error", parsed.Err.Error())
		e.recordError(datasetID, filterText, parsed.Err)
		return nil, parsed.Err
	}

	mask, fallbacks, err := evalMask(parsed.AST, tbl, e.now(), e)
	if err != nil {
		e.log.Warn("filter failed", "dataset", datasetID, "error", err.Error())
		e.recordError(datasetID, filterText, err)
		return nil, err
	}
	if fallbacks > 0 {
		e.log.Debug("date coercion fallbacks", "dataset", datasetID, "rows", fallbacks)
	}

	filtered, err := tbl.Select(mask)
	if err != nil {
		e.recordError(datasetID, filterText, err)
		return nil, err
	}

	elapsed := time.Since(start)
	stats := Stats{
		OriginalCount: tbl.NumRows(),
		ResultCount:   filtered.NumRows(),
		ExecutionTime: elapsed,
		DateFallbacks: fallbacks,
	}
	if stats.OriginalCount > 0 {
		stats.FilterEfficiency = 1 - float64(stats.ResultCount)/float64(stats.OriginalCount)
	}

	if e.sink != nil {
		e.sink.RecordEvaluation(Evaluation{
			DatasetID:     datasetID,
			FilterText:    filterText,
			RowCount:      stats.ResultCount,
			OriginalCount: stats.OriginalCount,
			ExecutionTime: elapsed,
		})
	}
	e.log.Info("filter executed",
		"dataset", datasetID,
		"rows", stats.ResultCount,
		"of", stats.OriginalCount,
		"elapsed_ms", elapsed.Milliseconds())

	return &Result{Table: filtered, Mask: mask, Stats: stats}, nil
}

func (e *Executor) recordError(datasetID, filterText string, err error) {
	if es, ok := e.sink.(ErrorSink); ok {
		es.RecordError(datasetID, filterText, err)
	}
}

// ResolveSubquery resolves a subquery through the cache. The key is the
// canonical SELECT text plus target dataset, so the same subquery shared by
// different filters resolves once per process until ClearCache.
func (e *Executor) ResolveSubquery(sub *Subquery, now time.Time) (*SubqueryResult, error) {
	key := sub.SelectText()
	if res, ok := e.cache.Lookup(key, sub.Dataset); ok {
		e.log.Debug("subquery cache hit", "dataset", sub.Dataset, "query", key)
		return res, nil
	}

	res, err := e.resolveSubquery(sub, now)
	if err != nil {
		return nil, err
	}
	e.cache.Store(key, sub.Dataset, res)
	e.log.Debug("subquery resolved",
		"dataset", sub.Dataset,
		"query", key,
		"values", len(res.Values),
		"rows", res.RowCount)
	return res, nil
}

func (e *Executor) resolveSubquery(sub *Subquery, now time.Time) (*SubqueryResult, error) {
	tbl, err := e.store.Dataset(sub.Dataset)
	if err != nil {
		return nil, &SubqueryResolutionError{Dataset: sub.Dataset, Query: sub.SelectText(), Err: err}
	}
	if tbl == nil {
		return nil, &SubqueryResolutionError{Dataset: sub.Dataset, Query: sub.SelectText(), Err: ErrNilTable}
	}

	var mask []bool
	if sub.Where != nil {
		mask, err = Eval(sub.Where, tbl, now, e)
		if err != nil {
			return nil, &SubqueryResolutionError{Dataset: sub.Dataset, Query: sub.SelectText(), Err: err}
		}
	} else {
		mask = make([]bool, tbl.NumRows())
		for i := range mask {
			mask[i] = true
		}
	}

	col, ok := tbl.Column(sub.SelectColumn)
	if !ok {
		return nil, &SubqueryResolutionError{
			Dataset: sub.Dataset,
			Query:   sub.SelectText(),
			Err:     &UnknownColumnError{Column: sub.SelectColumn, Known: tbl.Schema().Columns()},
		}
	}

	// RowCount includes surviving rows with a null selected value; EXISTS
	// asks whether rows survived, not whether values did.
	res := &SubqueryResult{Values: make(map[string]struct{})}
	for i := 0; i < tbl.NumRows(); i++ {
		if !mask[i] {
			continue
		}
		res.RowCount++
		if col.IsNull(i) {
			continue
		}
		if key, ok := normalizeValue(col.Value(i)); ok {
			res.Values[key] = struct{}{}
		}
	}
	return res, nil
}

// ClearCache drops every cached subquery. Call it after replacing a
// dataset; cached entries are otherwise served indefinitely.
func (e *Executor) ClearCache() {
	e.cache.Clear()
	e.log.Info("subquery cache cleared")
}

// CacheStats reports subquery cache effectiveness.
func (e *Executor) CacheStats() CacheStats {
	return e.cache.Stats()
}
