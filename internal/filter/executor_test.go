package filter

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rshinytools/cortex-filter/internal/dataset"
	"github.com/rshinytools/cortex-filter/internal/logging"
)

func TestMain(m *testing.M) {
	logging.SetGlobalOutput(io.Discard)
	os.Exit(m.Run())
}

// adverseEvents is a four-event ADAE slice; RELDOSE is entirely null.
func adverseEvents(t *testing.T) *dataset.Table {
	t.Helper()
	tbl, err := dataset.NewTable(
		dataset.NewString("USUBJID", []string{"01-002", "01-002", "01-005", "01-006"}),
		dataset.NewString("SITEID", []string{"S2", "S2", "S2", "S3"}),
		dataset.NewString("AESEV", []string{"SEVERE", "MILD", "SEVERE", "MODERATE"}),
		dataset.NewString("AESER", []string{"Y", "N", "Y", "N"}),
		dataset.NewNullableFloat("RELDOSE", []*float64{nil, nil, nil, nil}),
	)
	require.NoError(t, err)
	return tbl
}

func studyStore(t *testing.T) *dataset.Registry {
	t.Helper()
	store := dataset.NewRegistry()
	store.Register("ADSL", clinicalTable(t))
	store.Register("ADAE", adverseEvents(t))
	return store
}

func studyExecutor(t *testing.T) (*Executor, *dataset.Registry) {
	t.Helper()
	store := studyStore(t)
	return NewExecutor(store, WithNow(func() time.Time { return evalNow })), store
}

func filteredIDs(t *testing.T, res *Result) []string {
	t.Helper()
	col, ok := res.Table.Column("USUBJID")
	require.True(t, ok)
	ids := make([]string, col.Len())
	for i := range ids {
		ids[i] = col.Str(i)
	}
	return ids
}

func TestExecutor_Execute(t *testing.T) {
	exec, _ := studyExecutor(t)

	res, err := exec.Execute("AGE >= 65 AND SEX = 'F'", "ADSL")
	require.NoError(t, err)

	require.Equal(t, []bool{false, true, true, false, false, false}, res.Mask)
	require.Equal(t, []string{"01-002", "01-003"}, filteredIDs(t, res))
	require.Equal(t, 6, res.Stats.OriginalCount)
	require.Equal(t, 2, res.Stats.ResultCount)
	require.InDelta(t, 1-2.0/6.0, res.Stats.FilterEfficiency, 1e-9)
}

func TestExecutor_DateRangeUsesInjectedClock(t *testing.T) {
	exec, _ := studyExecutor(t)

	res, err := exec.Execute("RFSTDTC IN LAST 7 DAYS", "ADSL")
	require.NoError(t, err)
	require.Equal(t, []bool{true, true, true, false, false, false}, res.Mask)
	require.Zero(t, res.Stats.DateFallbacks)
}

func TestExecutor_Idempotent(t *testing.T) {
	exec, _ := studyExecutor(t)
	filter := "AGE >= 65 AND SEX = 'F' OR SAFFL = 'true'"

	first, err := exec.Execute(filter, "ADSL")
	require.NoError(t, err)
	second, err := exec.Execute(filter, "ADSL")
	require.NoError(t, err)

	require.Equal(t, first.Mask, second.Mask)
	require.Equal(t, filteredIDs(t, first), filteredIDs(t, second))
	require.Equal(t, first.Stats.ResultCount, second.Stats.ResultCount)
}

func TestExecutor_DateFallbacksCounted(t *testing.T) {
	exec, _ := studyExecutor(t)

	visits, err := dataset.NewTable(
		dataset.NewString("USUBJID", []string{"01-001", "01-002", "01-003"}),
		dataset.NewString("VISITDT", []string{"2024-06-14", "not a date", "also bad"}),
	)
	require.NoError(t, err)

	res, err := exec.ExecuteTable("VISITDT IN LAST 7 DAYS", "VISITS", visits)
	require.NoError(t, err)
	require.Equal(t, []bool{true, false, false}, res.Mask)
	require.Equal(t, 2, res.Stats.DateFallbacks)
}

func TestExecutor_SubqueryCaching(t *testing.T) {
	exec, _ := studyExecutor(t)

	res, err := exec.Execute("USUBJID IN (SELECT USUBJID FROM ADAE WHERE AESEV = 'SEVERE')", "ADSL")
	require.NoError(t, err)
	require.Equal(t, []string{"01-002", "01-005"}, filteredIDs(t, res))

	stats := exec.CacheStats()
	require.Equal(t, uint64(0), stats.Hits)
	require.Equal(t, uint64(1), stats.Misses)
	require.Equal(t, 1, stats.Entries)

	// NOT IN over the same SELECT shares the cache entry.
	res, err = exec.Execute("USUBJID NOT IN (SELECT USUBJID FROM ADAE WHERE AESEV = 'SEVERE')", "ADSL")
	require.NoError(t, err)
	require.Equal(t, []string{"01-001", "01-003", "01-004", "01-006"}, filteredIDs(t, res))

	stats = exec.CacheStats()
	require.Equal(t, uint64(1), stats.Hits)
	require.Equal(t, uint64(1), stats.Misses)
	require.Equal(t, 1, stats.Entries)
}

func TestExecutor_CacheServesStaleUntilCleared(t *testing.T) {
	exec, store := studyExecutor(t)
	filter := "USUBJID IN (SELECT USUBJID FROM ADAE WHERE AESEV = 'SEVERE')"

	res, err := exec.Execute(filter, "ADSL")
	require.NoError(t, err)
	require.Equal(t, []string{"01-002", "01-005"}, filteredIDs(t, res))

	// Swap the underlying events; the cached resolution still answers.
	replacement, err := dataset.NewTable(
		dataset.NewString("USUBJID", []string{"01-006"}),
		dataset.NewString("SITEID", []string{"S3"}),
		dataset.NewString("AESEV", []string{"SEVERE"}),
		dataset.NewString("AESER", []string{"Y"}),
		dataset.NewNullableFloat("RELDOSE", []*float64{nil}),
	)
	require.NoError(t, err)
	store.Register("ADAE", replacement)

	res, err = exec.Execute(filter, "ADSL")
	require.NoError(t, err)
	require.Equal(t, []string{"01-002", "01-005"}, filteredIDs(t, res), "expected stale cached result")

	exec.ClearCache()

	res, err = exec.Execute(filter, "ADSL")
	require.NoError(t, err)
	require.Equal(t, []string{"01-006"}, filteredIDs(t, res), "expected fresh result after clear")

	// Clear drops entries but keeps the running counters.
	stats := exec.CacheStats()
	require.Equal(t, uint64(1), stats.Hits)
	require.Equal(t, uint64(2), stats.Misses)
	require.Equal(t, 1, stats.Entries)
}

func TestExecutor_Exists(t *testing.T) {
	exec, _ := studyExecutor(t)

	res, err := exec.Execute("EXISTS (SELECT USUBJID FROM ADAE WHERE AESER = 'Y')", "ADSL")
	require.NoError(t, err)
	require.Equal(t, 6, res.Stats.ResultCount)

	res, err = exec.Execute("EXISTS (SELECT USUBJID FROM ADAE WHERE AESER = 'XX')", "ADSL")
	require.NoError(t, err)
	require.Equal(t, 0, res.Stats.ResultCount)

	res, err = exec.Execute("NOT EXISTS (SELECT USUBJID FROM ADAE WHERE AESER = 'XX')", "ADSL")
	require.NoError(t, err)
	require.Equal(t, 6, res.Stats.ResultCount)
}

func TestExecutor_ExistsCountsRowsNotValues(t *testing.T) {
	exec, _ := studyExecutor(t)

	// Every RELDOSE is null, but the rows survive, so EXISTS holds.
	res, err := exec.Execute("EXISTS (SELECT RELDOSE FROM ADAE)", "ADSL")
	require.NoError(t, err)
	require.Equal(t, 6, res.Stats.ResultCount)

	// Membership over the same column sees no values at all.
	res, err = exec.Execute("USUBJID IN (SELECT RELDOSE FROM ADAE)", "ADSL")
	require.NoError(t, err)
	require.Equal(t, 0, res.Stats.ResultCount)
}

func TestExecutor_NestedSubquery(t *testing.T) {
	exec, _ := studyExecutor(t)

	filter := "USUBJID IN (SELECT USUBJID FROM ADAE WHERE SITEID IN (SELECT SITEID FROM ADSL WHERE AGE > 75))"
	res, err := exec.Execute(filter, "ADSL")
	require.NoError(t, err)

	// AGE > 75 selects the S3 subject; the S3 event belongs to 01-006.
	require.Equal(t, []string{"01-006"}, filteredIDs(t, res))
	require.Equal(t, 2, exec.CacheStats().Entries)
}

func TestExecutor_Validate(t *testing.T) {
	exec, _ := studyExecutor(t)

	result, err := exec.Validate("AGE >= 65 AND SEX = 'F'", "ADSL")
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Equal(t, []string{"AGE", "SEX"}, result.Columns)

	result, err = exec.Validate("NOPE > 5", "ADSL")
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Len(t, result.Errors, 1)

	_, err = exec.Validate("AGE >", "ADSL")
	var synErr *SyntaxError
	require.ErrorAs(t, err, &synErr)

	_, err = exec.Validate("AGE > 5", "MISSING")
	require.ErrorIs(t, err, dataset.ErrUnknownDataset)
}

func TestExecutor_Errors(t *testing.T) {
	exec, _ := studyExecutor(t)

	_, err := exec.Execute("AGE > 5", "MISSING")
	require.ErrorIs(t, err, dataset.ErrUnknownDataset)

	_, err = exec.Execute("USUBJID IN (SELECT USUBJID FROM MISSING)", "ADSL")
	var resErr *SubqueryResolutionError
	require.ErrorAs(t, err, &resErr)
	require.Equal(t, "MISSING", resErr.Dataset)
	require.ErrorIs(t, err, dataset.ErrUnknownDataset)

	_, err = exec.Execute("USUBJID IN (SELECT MISSING FROM ADAE)", "ADSL")
	require.ErrorAs(t, err, &resErr)
	var colErr *UnknownColumnError
	require.ErrorAs(t, err, &colErr)
	require.Equal(t, "MISSING", colErr.Column)
}

func TestExecutor_NilTable(t *testing.T) {
	exec, _ := studyExecutor(t)

	_, err := exec.ExecuteTable("AGE > 5", "ADSL", nil)
	require.ErrorIs(t, err, ErrNilTable)

	// A broken store can resolve a name to neither table nor error.
	store := dataset.NewRegistry()
	store.Register("ADSL", nil)
	broken := NewExecutor(store)

	_, err = broken.Execute("AGE > 5", "ADSL")
	require.ErrorIs(t, err, ErrNilTable)

	_, err = broken.Validate("AGE > 5", "ADSL")
	require.ErrorIs(t, err, ErrNilTable)
}

func TestExecutor_NilSubqueryDataset(t *testing.T) {
	exec, store := studyExecutor(t)
	store.Register("ADAE", nil)

	_, err := exec.Execute("USUBJID IN (SELECT USUBJID FROM ADAE)", "ADSL")
	var resErr *SubqueryResolutionError
	require.ErrorAs(t, err, &resErr)
	require.Equal(t, "ADAE", resErr.Dataset)
	require.ErrorIs(t, err, ErrNilTable)
}

type recordingSink struct {
	evs      []Evaluation
	failures []error
}

func (s *recordingSink) RecordEvaluation(ev Evaluation) {
	s.evs = append(s.evs, ev)
}

func (s *recordingSink) RecordError(datasetID, filterText string, err error) {
	s.failures = append(s.failures, err)
}

func TestExecutor_SinkReceivesEvaluations(t *testing.T) {
	sink := &recordingSink{}
	store := studyStore(t)
	exec := NewExecutor(store, WithNow(func() time.Time { return evalNow }), WithSink(sink))

	_, err := exec.Execute("AGE >= 65 AND SEX = 'F'", "ADSL")
	require.NoError(t, err)

	require.Len(t, sink.evs, 1)
	ev := sink.evs[0]
	require.Equal(t, "ADSL", ev.DatasetID)
	require.Equal(t, "AGE >= 65 AND SEX = 'F'", ev.FilterText)
	require.Equal(t, 2, ev.RowCount)
	require.Equal(t, 6, ev.OriginalCount)
	require.GreaterOrEqual(t, ev.ExecutionTime, time.Duration(0))

	// Rejected filters never count as evaluations.
	_, err = exec.Execute("AGE >", "ADSL")
	require.Error(t, err)
	require.Len(t, sink.evs, 1)
}

func TestExecutor_SinkCountsFailures(t *testing.T) {
	sink := &recordingSink{}
	store := studyStore(t)
	exec := NewExecutor(store, WithNow(func() time.Time { return evalNow }), WithSink(sink))

	_, err := exec.Execute("AGE >", "ADSL")
	require.Error(t, err)
	_, err = exec.Execute("AGE > 5", "MISSING")
	require.ErrorIs(t, err, dataset.ErrUnknownDataset)
	_, err = exec.Execute("NOPE > 5", "ADSL")
	require.Error(t, err)

	require.Empty(t, sink.evs)
	require.Len(t, sink.failures, 3)
	require.ErrorIs(t, sink.failures[1], dataset.ErrUnknownDataset)

	_, err = exec.Execute("AGE > 5", "ADSL")
	require.NoError(t, err)
	require.Len(t, sink.evs, 1)
	require.Len(t, sink.failures, 3)
}

func TestExecutor_EmptyTableEfficiency(t *testing.T) {
	store := dataset.NewRegistry()
	empty, err := dataset.NewTable(dataset.NewString("SITE", nil))
	require.NoError(t, err)
	store.Register("EMPTY", empty)

	exec := NewExecutor(store)
	res, err := exec.Execute("SITE = 'S1'", "EMPTY")
	require.NoError(t, err)
	require.Equal(t, 0, res.Stats.OriginalCount)
	require.Zero(t, res.Stats.FilterEfficiency)
}

func TestExecutor_ParseRejectionSurfaces(t *testing.T) {
	exec, _ := studyExecutor(t)

	_, err := exec.Execute("", "ADSL")
	var synErr *SyntaxError
	require.ErrorAs(t, err, &synErr)
}
