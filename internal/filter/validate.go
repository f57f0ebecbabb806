package filter

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rshinytools/cortex-filter/internal/dataset"
)

// Guard rail limits for filter parsing. Filters come from interactive
// dashboard users; these bound resource use without constraining any
// realistic filter.
const (
	// MaxFilterLength is the maximum filter text size in bytes.
	MaxFilterLength = 1024 * 1024

	// MaxFilterTokens is the maximum number of tokens in a filter.
	MaxFilterTokens = 1000

	// MaxExpressionDepth is the maximum expression nesting depth.
	MaxExpressionDepth = 100

	// MaxColumnNameLength is the maximum column name size in bytes.
	MaxColumnNameLength = 256
)

var (
	// ErrFilterTooLong is returned when filter text exceeds MaxFilterLength.
	ErrFilterTooLong = errors.New("filter exceeds maximum length")

	// ErrTooManyTokens is returned when a filter exceeds MaxFilterTokens.
	ErrTooManyTokens = errors.New("filter has too many tokens")

	// ErrExpressionTooDeep is returned when nesting exceeds MaxExpressionDepth.
	ErrExpressionTooDeep = errors.New("expression nesting too deep")

	// ErrColumnNameTooLong is returned when a column name exceeds
	// MaxColumnNameLength.
	ErrColumnNameTooLong = errors.New("column name too long")
)

func validateFilterLength(input string) error {
	if len(input) > MaxFilterLength {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrFilterTooLong, len(input), MaxFilterLength)
	}
	return nil
}

func validateTokenCount(tokens []Token) error {
	if len(tokens) > MaxFilterTokens {
		return fmt.Errorf("%w: %d (max %d)", ErrTooManyTokens, len(tokens), MaxFilterTokens)
	}
	return nil
}

func validateColumnName(name string) error {
	if len(name) > MaxColumnNameLength {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrColumnNameTooLong, len(name), MaxColumnNameLength)
	}
	return nil
}

// depthCounter tracks recursion depth during parsing.
type depthCounter struct {
	depth    int
	maxDepth int
}

func newDepthCounter() *depthCounter {
	return &depthCounter{maxDepth: MaxExpressionDepth}
}

func (c *depthCounter) Enter() error {
	c.depth++
	if c.depth > c.maxDepth {
		return fmt.Errorf("%w: %d (max %d)", ErrExpressionTooDeep, c.depth, c.maxDepth)
	}
	return nil
}

func (c *depthCounter) Exit() {
	c.depth--
}

// ValidationResult reports schema validation of a parsed filter. Unknown
// columns are errors and make the result invalid; type mismatches are
// warnings only, since evaluation coerces values where it can. Columns
// holds the referenced columns that exist in the schema, sorted; columns
// that do not are on Errors instead. Complexity is the expression tree's
// node count.
type ValidationResult struct {
	Valid      bool
	Errors     []*UnknownColumnError
	Warnings   []*TypeMismatchWarning
	Columns    []string
	Complexity int
}

// ValidateColumns checks a parsed filter against a dataset schema without
// touching any data. Subquery interiors reference other datasets and are
// skipped; a subquery's membership column belongs to the outer dataset and
// is checked.
func ValidateColumns(ast Node, schema dataset.Schema) *ValidationResult {
	result := &ValidationResult{Complexity: countNodes(ast)}
	if ast == nil {
		result.Valid = true
		return result
	}

	known := schema.Columns()
	flagged := make(map[string]bool)
	checked := make(map[string]bool)

	requireColumn := func(name string) (dataset.Kind, bool) {
		kind, ok := schema[name]
		if ok {
			checked[name] = true
		} else if !flagged[name] {
			flagged[name] = true
			result.Errors = append(result.Errors, &UnknownColumnError{Column: name, Known: known})
		}
		return kind, ok
	}

	warnLiteral := func(column string, lit Literal) {
		kind, ok := schema[column]
		if !ok {
			return
		}
		if w := literalMismatch(column, kind, lit); w != nil {
			result.Warnings = append(result.Warnings, w)
		}
	}

	Walk(ast, func(n Node) bool {
		switch v := n.(type) {
		case *Column:
			requireColumn(v.Name)
		case *BinaryOp:
			if c, ok := v.Left.(*Column); ok {
				if lit, ok := v.Right.(*Literal); ok {
					warnLiteral(c.Name, *lit)
				}
			}
		case *In:
			requireColumn(v.Column)
			for _, lit := range v.Values {
				warnLiteral(v.Column, lit)
			}
		case *Between:
			requireColumn(v.Column)
			warnLiteral(v.Column, v.Lower)
			warnLiteral(v.Column, v.Upper)
		case *Like:
			kind, ok := requireColumn(v.Column)
			if ok && kind != dataset.KindString {
				result.Warnings = append(result.Warnings, &TypeMismatchWarning{
					Column:     v.Column,
					ColumnKind: kind,
					Detail:     "LIKE pattern against non-string column",
				})
			}
		case *IsNull:
			requireColumn(v.Column)
		case *DateRange:
			kind, ok := requireColumn(v.Column)
			if ok && kind != dataset.KindTime && kind != dataset.KindString {
				result.Warnings = append(result.Warnings, &TypeMismatchWarning{
					Column:     v.Column,
					ColumnKind: kind,
					Detail:     "date range against non-date column",
				})
			}
		case *Subquery:
			if v.Column != "" {
				requireColumn(v.Column)
			}
			return false
		}
		return true
	})

	for name := range checked {
		result.Columns = append(result.Columns, name)
	}
	sort.Strings(result.Columns)

	result.Valid = len(result.Errors) == 0
	return result
}

// literalMismatch reports a literal that cannot meaningfully compare against
// a column of the given kind, or nil when the pairing is fine.
func literalMismatch(column string, kind dataset.Kind, lit Literal) *TypeMismatchWarning {
	switch kind {
	case dataset.KindString:
		if lit.Kind == LiteralNumber {
			return &TypeMismatchWarning{
				Column:     column,
				ColumnKind: kind,
				Detail:     fmt.Sprintf("numeric literal %v against string column", lit.Value),
			}
		}
	case dataset.KindInt, dataset.KindFloat:
		if s, ok := litString(lit); ok {
			if _, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
				return &TypeMismatchWarning{
					Column:     column,
					ColumnKind: kind,
					Detail:     fmt.Sprintf("non-numeric literal %q against numeric column", s),
				}
			}
		}
	case dataset.KindTime:
		s, ok := litString(lit)
		if !ok {
			return &TypeMismatchWarning{
				Column:     column,
				ColumnKind: kind,
				Detail:     fmt.Sprintf("numeric literal %v against date column", lit.Value),
			}
		}
		if _, ok := dataset.ParseTime(s); !ok {
			return &TypeMismatchWarning{
				Column:     column,
				ColumnKind: kind,
				Detail:     fmt.Sprintf("literal %q is not a recognized date", s),
			}
		}
	case dataset.KindBool:
		if s, ok := litString(lit); ok {
			switch strings.ToLower(s) {
			case "true", "false":
			default:
				return &TypeMismatchWarning{
					Column:     column,
					ColumnKind: kind,
					Detail:     fmt.Sprintf("literal %q against boolean column", s),
				}
			}
		} else if f, ok := litFloat(lit); ok && f != 0 && f != 1 {
			return &TypeMismatchWarning{
				Column:     column,
				ColumnKind: kind,
				Detail:     fmt.Sprintf("numeric literal %v against boolean column", lit.Value),
			}
		}
	}
	return nil
}

func litString(l Literal) (string, bool) {
	s, ok := l.Value.(string)
	return s, ok
}

func litFloat(l Literal) (float64, bool) {
	switch v := l.Value.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
