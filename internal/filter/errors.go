package filter

import (
	"fmt"
	"strings"

	"github.com/rshinytools/cortex-filter/internal/dataset"
)

// LexError reports input the tokenizer cannot accept. Pos is the byte offset
// of the offending character in the filter text.
type LexError struct {
	Pos  int
	Char rune
	Msg  string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at position %d: %s", e.Pos, e.Msg)
}

// SyntaxError reports a token sequence the parser cannot accept. Pos is the
// byte offset of the token where parsing failed.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at position %d: %s", e.Pos, e.Msg)
}

// UnknownColumnError reports a filter reference to a column the dataset does
// not have. Raised by validation, and by evaluation before any row is
// touched; an unknown column never silently produces an empty result.
type UnknownColumnError struct {
	Column string
	Known  []string
}

func (e *UnknownColumnError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("unknown column %q", e.Column)
	}
	return fmt.Sprintf("unknown column %q (dataset has: %s)", e.Column, strings.Join(e.Known, ", "))
}

// TypeMismatchWarning flags a literal whose kind does not line up with the
// schema kind of the column it is compared against. Warnings never block
// validation or evaluation.
type TypeMismatchWarning struct {
	Column     string
	ColumnKind dataset.Kind
	Detail     string
}

func (w *TypeMismatchWarning) Error() string {
	return fmt.Sprintf("type mismatch on column %q (%s): %s", w.Column, w.ColumnKind, w.Detail)
}

// SubqueryResolutionError reports a subquery that could not be resolved:
// the auxiliary dataset was missing, its filter referenced a bad column, or
// its select column does not exist. Aborts the whole evaluation.
type SubqueryResolutionError struct {
	Dataset string
	Query   string
	Err     error
}

func (e *SubqueryResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve subquery on %s: %v", e.Dataset, e.Err)
}

func (e *SubqueryResolutionError) Unwrap() error { return e.Err }
