// Package metrics collects filter execution counters and an optional
// newline-delimited JSON audit trail.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/rshinytools/cortex-filter/internal/filter"
)

// Collector accumulates execution counters in memory. It implements
// filter.Sink and filter.ErrorSink and is safe for concurrent use.
type Collector struct {
	evaluations uint64
	errors      uint64
	rowsIn      uint64
	rowsOut     uint64
	elapsed     int64
}

// NewCollector returns a zeroed collector.
func NewCollector() *Collector {
	return &Collector{}
}

// RecordEvaluation implements filter.Sink.
func (c *Collector) RecordEvaluation(ev filter.Evaluation) {
	atomic.AddUint64(&c.evaluations, 1)
	atomic.AddUint64(&c.rowsIn, uint64(ev.OriginalCount))
	atomic.AddUint64(&c.rowsOut, uint64(ev.RowCount))
	atomic.AddInt64(&c.elapsed, int64(ev.ExecutionTime))
}

// RecordError implements filter.ErrorSink. Failed executions count here
// and nowhere else; they contribute no rows and no elapsed time.
func (c *Collector) RecordError(datasetID, filterText string, err error) {
	atomic.AddUint64(&c.errors, 1)
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	Evaluations  uint64        `json:"evaluations"`
	Errors       uint64        `json:"errors"`
	RowsIn       uint64        `json:"rows_in"`
	RowsOut      uint64        `json:"rows_out"`
	TotalElapsed time.Duration `json:"total_elapsed"`
	AvgElapsed   time.Duration `json:"avg_elapsed"`
}

// Snapshot returns the current counter values.
func (c *Collector) Snapshot() Snapshot {
	evals := atomic.LoadUint64(&c.evaluations)
	s := Snapshot{
		Evaluations:  evals,
		Errors:       atomic.LoadUint64(&c.errors),
		RowsIn:       atomic.LoadUint64(&c.rowsIn),
		RowsOut:      atomic.LoadUint64(&c.rowsOut),
		TotalElapsed: time.Duration(atomic.LoadInt64(&c.elapsed)),
	}
	if evals > 0 {
		s.AvgElapsed = s.TotalElapsed / time.Duration(evals)
	}
	return s
}

// Tee fans each evaluation out to several sinks in order.
type Tee []filter.Sink

// RecordEvaluation implements filter.Sink.
func (t Tee) RecordEvaluation(ev filter.Evaluation) {
	for _, s := range t {
		s.RecordEvaluation(ev)
	}
}

// RecordError implements filter.ErrorSink, forwarding to the sinks that
// track failures and skipping the rest.
func (t Tee) RecordError(datasetID, filterText string, err error) {
	for _, s := range t {
		if es, ok := s.(filter.ErrorSink); ok {
			es.RecordError(datasetID, filterText, err)
		}
	}
}
