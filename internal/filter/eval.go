package filter

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rshinytools/cortex-filter/internal/dataset"
)

// SubqueryResolver supplies subquery results during evaluation. The
// executor implements it, resolving against its dataset store through the
// subquery cache.
type SubqueryResolver interface {
	ResolveSubquery(sub *Subquery, now time.Time) (*SubqueryResult, error)
}

// SubqueryResult is a resolved subquery: the de-duplicated, normalized
// values of the selected column, and the surviving row count for EXISTS.
type SubqueryResult struct {
	Values   map[string]struct{}
	RowCount int
}

// ErrNilTable is returned when an evaluation has no table to run against.
// Stores must resolve a dataset to a table or an error, never neither.
var ErrNilTable = errors.New("no table to evaluate")

// Eval evaluates a parsed filter against a table and returns one mask entry
// per row. A row with a null value in a referenced column never matches a
// comparison; only IS NULL and IS NOT NULL see nulls. now anchors every
// relative date range in the expression, so a filter is evaluated against a
// single instant. resolver may be nil when the filter has no subqueries.
// A nil table returns ErrNilTable.
func Eval(ast Node, tbl *dataset.Table, now time.Time, resolver SubqueryResolver) ([]bool, error) {
	mask, _, err := evalMask(ast, tbl, now, resolver)
	return mask, err
}

// evalMask additionally reports how many non-null cells were skipped by date
// ranges because they could not be read as dates.
func evalMask(ast Node, tbl *dataset.Table, now time.Time, resolver SubqueryResolver) ([]bool, int, error) {
	if tbl == nil {
		return nil, 0, ErrNilTable
	}
	mask := make([]bool, tbl.NumRows())
	if ast == nil {
		for i := range mask {
			mask[i] = true
		}
		return mask, 0, nil
	}
	e := &evaluator{tbl: tbl, now: now, resolver: resolver}
	m, err := e.eval(ast)
	return m, e.dateFallbacks, err
}

type evaluator struct {
	tbl           *dataset.Table
	now           time.Time
	resolver      SubqueryResolver
	dateFallbacks int
}

func (e *evaluator) eval(n Node) ([]bool, error) {
	switch v := n.(type) {
	case *BinaryOp:
		return e.evalBinary(v)
	case *UnaryOp:
		return e.evalNot(v)
	case *Group:
		return e.evalGroup(v)
	case *In:
		return e.evalIn(v)
	case *Between:
		return e.evalBetween(v)
	case *Like:
		return e.evalLike(v)
	case *IsNull:
		return e.evalIsNull(v)
	case *DateRange:
		return e.evalDateRange(v)
	case *Subquery:
		return e.evalSubquery(v)
	default:
		return nil, fmt.Errorf("expression %q is not a condition", n)
	}
}

func (e *evaluator) column(name string) (*dataset.Series, error) {
	s, ok := e.tbl.Column(name)
	if !ok {
		return nil, &UnknownColumnError{Column: name, Known: e.tbl.Schema().Columns()}
	}
	return s, nil
}

func (e *evaluator) evalBinary(b *BinaryOp) ([]bool, error) {
	switch b.Op {
	case "AND", "OR":
		left, err := e.eval(b.Left)
		if err != nil {
			return nil, err
		}
		right, err := e.eval(b.Right)
		if err != nil {
			return nil, err
		}
		return combineMasks(left, right, b.Op == "AND"), nil
	}
	return e.evalComparison(b)
}

func (e *evaluator) evalComparison(b *BinaryOp) ([]bool, error) {
	col, ok := b.Left.(*Column)
	if !ok {
		return nil, fmt.Errorf("left side of %s must be a column", b.Op)
	}
	series, err := e.column(col.Name)
	if err != nil {
		return nil, err
	}

	switch r := b.Right.(type) {
	case *Literal:
		return compareSeriesLiteral(series, b.Op, *r), nil
	case *Column:
		other, err := e.column(r.Name)
		if err != nil {
			return nil, err
		}
		return compareSeriesSeries(series, other, b.Op), nil
	default:
		return nil, fmt.Errorf("right side of %s must be a value or column", b.Op)
	}
}

// evalNot inverts the operand's mask. NOT is a plain mask negation: a row
// that failed the inner condition, including through a null, passes NOT.
func (e *evaluator) evalNot(u *UnaryOp) ([]bool, error) {
	inner, err := e.eval(u.Operand)
	if err != nil {
		return nil, err
	}
	mask := make([]bool, len(inner))
	for i, v := range inner {
		mask[i] = !v
	}
	return mask, nil
}

func (e *evaluator) evalGroup(g *Group) ([]bool, error) {
	and := g.Combinator == "AND"
	mask := make([]bool, e.tbl.NumRows())
	if and {
		for i := range mask {
			mask[i] = true
		}
	}
	for _, cond := range g.Conditions {
		m, err := e.eval(cond)
		if err != nil {
			return nil, err
		}
		mask = combineMasks(mask, m, and)
	}
	return mask, nil
}

// evalIn tests membership on normalized values, so a numeric column matches
// a numeric literal regardless of int or float representation. Null rows
// are in neither IN nor NOT IN.
func (e *evaluator) evalIn(in *In) ([]bool, error) {
	s, err := e.column(in.Column)
	if err != nil {
		return nil, err
	}

	want := make(map[string]struct{}, len(in.Values))
	for _, lit := range in.Values {
		want[normalizeLiteral(lit)] = struct{}{}
	}

	n := s.Len()
	mask := make([]bool, n)
	for i := 0; i < n; i++ {
		if s.IsNull(i) {
			continue
		}
		key, ok := normalizeValue(s.Value(i))
		if !ok {
			continue
		}
		_, member := want[key]
		if in.Negate {
			mask[i] = !member
		} else {
			mask[i] = member
		}
	}
	return mask, nil
}

// evalBetween treats BETWEEN as lower <= value AND value <= upper, both
// bounds inclusive.
func (e *evaluator) evalBetween(b *Between) ([]bool, error) {
	s, err := e.column(b.Column)
	if err != nil {
		return nil, err
	}
	low := compareSeriesLiteral(s, ">=", b.Lower)
	high := compareSeriesLiteral(s, "<=", b.Upper)
	return combineMasks(low, high, true), nil
}

func (e *evaluator) evalLike(l *Like) ([]bool, error) {
	s, err := e.column(l.Column)
	if err != nil {
		return nil, err
	}
	re, err := compileLikePattern(l.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid LIKE pattern %q: %w", l.Pattern, err)
	}

	n := s.Len()
	mask := make([]bool, n)
	for i := 0; i < n; i++ {
		if s.IsNull(i) {
			continue
		}
		m := re.MatchString(cellString(s, i))
		if l.Negate {
			mask[i] = !m
		} else {
			mask[i] = m
		}
	}
	return mask, nil
}

func (e *evaluator) evalIsNull(v *IsNull) ([]bool, error) {
	s, err := e.column(v.Column)
	if err != nil {
		return nil, err
	}
	n := s.Len()
	mask := make([]bool, n)
	for i := 0; i < n; i++ {
		isNull := s.IsNull(i)
		if v.Negate {
			mask[i] = !isNull
		} else {
			mask[i] = isNull
		}
	}
	return mask, nil
}

// evalDateRange matches rows whose date falls inside the window anchored at
// the evaluation's now. Rows whose value cannot be read as a date do not
// match; they are skipped, not errored, since free-text date columns are
// common in source extracts.
func (e *evaluator) evalDateRange(d *DateRange) ([]bool, error) {
	s, err := e.column(d.Column)
	if err != nil {
		return nil, err
	}
	start, end := d.Window(e.now)

	n := s.Len()
	mask := make([]bool, n)
	for i := 0; i < n; i++ {
		if s.IsNull(i) {
			continue
		}
		t, ok := cellTime(s, i)
		if !ok {
			e.dateFallbacks++
			continue
		}
		mask[i] = !t.Before(start) && !t.After(end)
	}
	return mask, nil
}

// Window resolves the relative range to inclusive bounds around now using
// calendar arithmetic, so LAST 1 MONTHS spans a calendar month rather than
// a fixed number of hours.
func (d *DateRange) Window(now time.Time) (start, end time.Time) {
	var days, months, years int
	switch d.Unit {
	case UnitDays:
		days = d.Amount
	case UnitWeeks:
		days = 7 * d.Amount
	case UnitMonths:
		months = d.Amount
	case UnitYears:
		years = d.Amount
	}
	if d.Direction == DirLast {
		return now.AddDate(-years, -months, -days), now
	}
	return now, now.AddDate(years, months, days)
}

// evalSubquery resolves the subquery to a value set, then tests the outer
// column against it. EXISTS ignores the values and broadcasts whether any
// row survived.
func (e *evaluator) evalSubquery(sub *Subquery) ([]bool, error) {
	if e.resolver == nil {
		return nil, &SubqueryResolutionError{
			Dataset: sub.Dataset,
			Query:   sub.String(),
			Err:     errors.New("no dataset source configured"),
		}
	}
	res, err := e.resolver.ResolveSubquery(sub, e.now)
	if err != nil {
		return nil, err
	}

	n := e.tbl.NumRows()
	mask := make([]bool, n)

	switch sub.Operator {
	case "EXISTS", "NOT EXISTS":
		match := res.RowCount > 0
		if sub.Operator == "NOT EXISTS" {
			match = !match
		}
		for i := range mask {
			mask[i] = match
		}
		return mask, nil
	}

	s, err := e.column(sub.Column)
	if err != nil {
		return nil, err
	}
	negate := sub.Operator == "NOT IN"
	for i := 0; i < n; i++ {
		if s.IsNull(i) {
			continue
		}
		key, ok := normalizeValue(s.Value(i))
		if !ok {
			continue
		}
		_, member := res.Values[key]
		if negate {
			mask[i] = !member
		} else {
			mask[i] = member
		}
	}
	return mask, nil
}

func combineMasks(a, b []bool, and bool) []bool {
	out := make([]bool, len(a))
	for i := range a {
		if and {
			out[i] = a[i] && b[i]
		} else {
			out[i] = a[i] || b[i]
		}
	}
	return out
}

// compareSeriesLiteral compares every row of a series against a literal.
// The column's kind drives coercion: numeric columns parse string literals
// as numbers, string columns compare numerically when both sides parse, and
// everything else falls back to string comparison the way the source data
// would read. Null rows never match.
func compareSeriesLiteral(s *dataset.Series, op string, lit Literal) []bool {
	n := s.Len()
	mask := make([]bool, n)

	switch s.Kind() {
	case dataset.KindInt, dataset.KindFloat:
		want, ok := litFloat(lit)
		if !ok {
			str, _ := litString(lit)
			f, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
			if err != nil {
				for i := 0; i < n; i++ {
					if s.IsNull(i) {
						continue
					}
					num, _ := s.Number(i)
					mask[i] = compareStrings(formatNumber(num), str, op)
				}
				return mask
			}
			want = f
		}
		for i := 0; i < n; i++ {
			if s.IsNull(i) {
				continue
			}
			num, _ := s.Number(i)
			mask[i] = compareNumbers(num, want, op)
		}

	case dataset.KindString:
		if f, ok := litFloat(lit); ok {
			for i := 0; i < n; i++ {
				if s.IsNull(i) {
					continue
				}
				cell := s.Str(i)
				if cf, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err == nil {
					mask[i] = compareNumbers(cf, f, op)
				} else {
					mask[i] = compareStrings(cell, formatNumber(f), op)
				}
			}
			return mask
		}
		str, _ := litString(lit)
		for i := 0; i < n; i++ {
			if s.IsNull(i) {
				continue
			}
			mask[i] = compareStrings(s.Str(i), str, op)
		}

	case dataset.KindBool:
		want, ok := litBool(lit)
		if !ok {
			return mask
		}
		for i := 0; i < n; i++ {
			if s.IsNull(i) {
				continue
			}
			mask[i] = compareBools(s.Bool(i), want, op)
		}

	case dataset.KindTime:
		str, ok := litString(lit)
		if !ok {
			return mask
		}
		want, parsed := dataset.ParseTime(str)
		if !parsed {
			return mask
		}
		for i := 0; i < n; i++ {
			if s.IsNull(i) {
				continue
			}
			mask[i] = compareTimes(s.Time(i), want, op)
		}
	}

	return mask
}

// compareSeriesSeries compares two columns row by row. Rows where either
// side is null never match.
func compareSeriesSeries(a, b *dataset.Series, op string) []bool {
	n := a.Len()
	mask := make([]bool, n)
	for i := 0; i < n; i++ {
		if a.IsNull(i) || b.IsNull(i) {
			continue
		}
		av, aok := a.Number(i)
		bv, bok := b.Number(i)
		if aok && bok {
			mask[i] = compareNumbers(av, bv, op)
			continue
		}
		if a.Kind() == dataset.KindTime && b.Kind() == dataset.KindTime {
			mask[i] = compareTimes(a.Time(i), b.Time(i), op)
			continue
		}
		mask[i] = compareStrings(cellString(a, i), cellString(b, i), op)
	}
	return mask
}

// compareNumbers compares floats with a relative epsilon so values that
// round-trip through float64 still compare equal.
func compareNumbers(a, b float64, op string) bool {
	const epsilon = 1e-9
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	eq := math.Abs(a-b) <= epsilon*scale
	switch op {
	case "=":
		return eq
	case "!=":
		return !eq
	case "<":
		return a < b && !eq
	case "<=":
		return a < b || eq
	case ">":
		return a > b && !eq
	case ">=":
		return a > b || eq
	}
	return false
}

func compareStrings(a, b, op string) bool {
	switch op {
	case "=":
		return a == b
	case "!=":
		return a != b
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	}
	return false
}

// compareBools supports equality only; ordering booleans is meaningless.
func compareBools(a, b bool, op string) bool {
	switch op {
	case "=":
		return a == b
	case "!=":
		return a != b
	}
	return false
}

func compareTimes(a, b time.Time, op string) bool {
	switch op {
	case "=":
		return a.Equal(b)
	case "!=":
		return !a.Equal(b)
	case "<":
		return a.Before(b)
	case "<=":
		return !a.After(b)
	case ">":
		return a.After(b)
	case ">=":
		return !a.Before(b)
	}
	return false
}

// compileLikePattern converts a LIKE pattern into an anchored
// case-insensitive regular expression: % matches any run of characters,
// _ exactly one.
func compileLikePattern(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("(?i)^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}

func litBool(l Literal) (bool, bool) {
	if s, ok := litString(l); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
		return false, false
	}
	if f, ok := litFloat(l); ok {
		switch f {
		case 0:
			return false, true
		case 1:
			return true, true
		}
	}
	return false, false
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// normalizeLiteral renders a literal the same way normalizeValue renders a
// cell, so membership tests line up across int and float representations.
func normalizeLiteral(l Literal) string {
	switch v := l.Value.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return formatNumber(v)
	}
	return fmt.Sprint(l.Value)
}

// normalizeValue renders a cell value as a canonical string. Null reports
// false.
func normalizeValue(v interface{}) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return formatNumber(x), true
	case bool:
		return strconv.FormatBool(x), true
	case time.Time:
		return x.UTC().Format(time.RFC3339), true
	}
	return fmt.Sprint(v), true
}

// cellString renders a cell for string comparison and LIKE matching.
func cellString(s *dataset.Series, i int) string {
	switch s.Kind() {
	case dataset.KindString:
		return s.Str(i)
	case dataset.KindInt, dataset.KindFloat:
		f, _ := s.Number(i)
		return formatNumber(f)
	case dataset.KindBool:
		return strconv.FormatBool(s.Bool(i))
	case dataset.KindTime:
		return s.Time(i).UTC().Format(time.RFC3339)
	}
	return ""
}

// cellTime reads a cell as a date. Time columns read directly; string
// columns parse with the recognized layouts.
func cellTime(s *dataset.Series, i int) (time.Time, bool) {
	switch s.Kind() {
	case dataset.KindTime:
		return s.Time(i), true
	case dataset.KindString:
		return dataset.ParseTime(s.Str(i))
	}
	return time.Time{}, false
}
