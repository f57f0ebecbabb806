// Package filter implements a SQL-like filter expression language for
// columnar clinical datasets: tokenizing, parsing to a typed expression
// tree, schema validation, and vectorized evaluation to row masks.
package filter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Node is a filter expression tree node. The variant set is closed: node()
// is unexported, so no type outside this package can satisfy the interface.
type Node interface {
	fmt.Stringer
	node()
}

// LiteralKind identifies the type of a literal value.
type LiteralKind int

const (
	LiteralString LiteralKind = iota
	LiteralNumber
)

// String returns the lowercase name of the literal kind.
func (k LiteralKind) String() string {
	switch k {
	case LiteralString:
		return "string"
	case LiteralNumber:
		return "number"
	default:
		return "unknown"
	}
}

// Column references a dataset column by name.
type Column struct {
	Name string
}

// Literal is a constant value: a string, an int64 or a float64.
type Literal struct {
	Kind  LiteralKind
	Value interface{}
}

// BinaryOp combines two nodes with an operator: the comparison operators
// =, !=, <, <=, >, >= (left is a Column, right a Literal or Column), or the
// logical combinators AND and OR. <> is normalized to != at parse time.
type BinaryOp struct {
	Left  Node
	Op    string
	Right Node
}

// UnaryOp applies NOT to a condition.
type UnaryOp struct {
	Op      string
	Operand Node
}

// In tests column membership in a literal list.
type In struct {
	Column string
	Values []Literal
	Negate bool
}

// Between tests column containment in an inclusive range.
type Between struct {
	Column string
	Lower  Literal
	Upper  Literal
}

// Like matches a column against a SQL LIKE pattern (% any run, _ one
// character), anchored and case-insensitive.
type Like struct {
	Column  string
	Pattern string
	Negate  bool
}

// IsNull tests column nullness.
type IsNull struct {
	Column string
	Negate bool
}

// Direction is the time direction of a date-range condition.
type Direction int

const (
	DirLast Direction = iota
	DirNext
)

// String returns the keyword form of the direction.
func (d Direction) String() string {
	if d == DirNext {
		return "NEXT"
	}
	return "LAST"
}

// Unit is the calendar unit of a date-range condition.
type Unit int

const (
	UnitDays Unit = iota
	UnitWeeks
	UnitMonths
	UnitYears
)

// String returns the canonical plural form of the unit.
func (u Unit) String() string {
	switch u {
	case UnitWeeks:
		return "WEEKS"
	case UnitMonths:
		return "MONTHS"
	case UnitYears:
		return "YEARS"
	default:
		return "DAYS"
	}
}

// DateRange tests a column against a relative time window:
// COL IN LAST 7 DAYS, COL IN NEXT 2 MONTHS. The window is anchored to an
// evaluation-wide reference instant resolved once per execution.
type DateRange struct {
	Column    string
	Direction Direction
	Amount    int
	Unit      Unit
}

// Subquery tests rows against values drawn from another dataset:
// COL [NOT] IN (SELECT c FROM ds WHERE ...) or [NOT] EXISTS (SELECT ...).
// Column is empty for the EXISTS forms. Where reuses the full filter
// grammar and may be nil.
type Subquery struct {
	Column       string
	Operator     string // "IN", "NOT IN", "EXISTS", "NOT EXISTS"
	SelectColumn string
	Dataset      string
	Where        Node
}

// Group is an explicitly parenthesized run of conditions joined by one
// combinator. A parenthesized single condition is a one-element AND group.
type Group struct {
	Combinator string // "AND" or "OR"
	Conditions []Node
}

func (*Column) node()    {}
func (*Literal) node()   {}
func (*BinaryOp) node()  {}
func (*UnaryOp) node()   {}
func (*In) node()        {}
func (*Between) node()   {}
func (*Like) node()      {}
func (*IsNull) node()    {}
func (*DateRange) node() {}
func (*Subquery) node()  {}
func (*Group) node()     {}

// String renders the node as canonical filter text: uppercase keywords,
// single spaces, single-quoted strings. Canonical text round-trips through
// the parser and is the identity used for subquery caching.

func (c *Column) String() string { return c.Name }

func (l *Literal) String() string { return l.literalString() }

// literalString renders a literal; shared by the nodes that embed Literal
// values rather than Literal nodes.
func (l Literal) literalString() string {
	switch v := l.Value.(type) {
	case string:
		return quoteLiteral(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (b *BinaryOp) String() string {
	return b.Left.String() + " " + b.Op + " " + b.Right.String()
}

func (u *UnaryOp) String() string {
	return u.Op + " " + u.Operand.String()
}

func (i *In) String() string {
	values := make([]string, len(i.Values))
	for n, v := range i.Values {
		values[n] = v.literalString()
	}
	op := "IN"
	if i.Negate {
		op = "NOT IN"
	}
	return i.Column + " " + op + " (" + strings.Join(values, ", ") + ")"
}

func (b *Between) String() string {
	return b.Column + " BETWEEN " + b.Lower.literalString() + " AND " + b.Upper.literalString()
}

func (l *Like) String() string {
	op := "LIKE"
	if l.Negate {
		op = "NOT LIKE"
	}
	return l.Column + " " + op + " " + quoteLiteral(l.Pattern)
}

func (i *IsNull) String() string {
	if i.Negate {
		return i.Column + " IS NOT NULL"
	}
	return i.Column + " IS NULL"
}

func (d *DateRange) String() string {
	return fmt.Sprintf("%s IN %s %d %s", d.Column, d.Direction, d.Amount, d.Unit)
}

func (s *Subquery) String() string {
	if s.Column == "" {
		return s.Operator + " (" + s.SelectText() + ")"
	}
	return s.Column + " " + s.Operator + " (" + s.SelectText() + ")"
}

// SelectText renders the inner SELECT in canonical form. It identifies the
// subquery independently of the surrounding operator, so IN and NOT IN over
// the same SELECT resolve to the same cached result.
func (s *Subquery) SelectText() string {
	inner := "SELECT " + s.SelectColumn + " FROM " + s.Dataset
	if s.Where != nil {
		inner += " WHERE " + s.Where.String()
	}
	return inner
}

func (g *Group) String() string {
	parts := make([]string, len(g.Conditions))
	for i, c := range g.Conditions {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, " "+g.Combinator+" ") + ")"
}

// quoteLiteral renders a string as a single-quoted literal with the escapes
// the lexer understands.
func quoteLiteral(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'':
			b.WriteString(`\'`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// Walk visits n and its children in pre-order. Returning false from the
// visitor stops descent below that node.
func Walk(n Node, visit func(Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	switch v := n.(type) {
	case *BinaryOp:
		Walk(v.Left, visit)
		Walk(v.Right, visit)
	case *UnaryOp:
		Walk(v.Operand, visit)
	case *Group:
		for _, c := range v.Conditions {
			Walk(c, visit)
		}
	case *Subquery:
		Walk(v.Where, visit)
	}
}

// countNodes returns the tree's node count, the complexity score reported
// by validation.
func countNodes(root Node) int {
	count := 0
	Walk(root, func(Node) bool {
		count++
		return true
	})
	return count
}

// columnsOf collects the column names the outer tree references, sorted and
// de-duplicated. Subquery interiors reference the auxiliary dataset and are
// skipped; the subquery's outer membership column is included.
func columnsOf(root Node) []string {
	set := make(map[string]bool)
	Walk(root, func(n Node) bool {
		switch v := n.(type) {
		case *Column:
			set[v.Name] = true
		case *In:
			set[v.Column] = true
		case *Between:
			set[v.Column] = true
		case *Like:
			set[v.Column] = true
		case *IsNull:
			set[v.Column] = true
		case *DateRange:
			set[v.Column] = true
		case *Subquery:
			if v.Column != "" {
				set[v.Column] = true
			}
			return false
		}
		return true
	})

	columns := make([]string, 0, len(set))
	for name := range set {
		columns = append(columns, name)
	}
	sort.Strings(columns)
	return columns
}
