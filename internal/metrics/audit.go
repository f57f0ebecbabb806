package metrics

import (
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"

	"github.com/rshinytools/cortex-filter/internal/filter"
)

// AuditRecord is one line of the audit trail.
type AuditRecord struct {
	ID              string  `json:"id"`
	Timestamp       string  `json:"timestamp"`
	DatasetID       string  `json:"dataset_id"`
	FilterText      string  `json:"filter_text"`
	RowCount        int     `json:"row_count"`
	OriginalCount   int     `json:"original_count"`
	ExecutionTimeMS float64 `json:"execution_time_ms"`
}

// AuditLog writes one JSON record per executed filter, newline separated.
// Regulated studies keep the trail of who filtered what alongside the
// analysis outputs. It implements filter.Sink; write failures are dropped
// rather than surfaced, since auditing must never fail an execution.
type AuditLog struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewAuditLog returns an audit log appending to w.
func NewAuditLog(w io.Writer) *AuditLog {
	return &AuditLog{w: w, now: time.Now}
}

// RecordEvaluation implements filter.Sink.
func (a *AuditLog) RecordEvaluation(ev filter.Evaluation) {
	rec := AuditRecord{
		ID:              uuid.New().String(),
		Timestamp:       a.now().UTC().Format(time.RFC3339),
		DatasetID:       ev.DatasetID,
		FilterText:      ev.FilterText,
		RowCount:        ev.RowCount,
		OriginalCount:   ev.OriginalCount,
		ExecutionTimeMS: float64(ev.ExecutionTime) / float64(time.Millisecond),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.w.Write(append(data, '\n'))
}
