package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseResult carries everything parsing produces. Parse problems are
// values on the result, never panics: Valid is false and Err holds a
// *LexError or *SyntaxError. Columns lists the outer tree's column
// references sorted and de-duplicated; subquery interiors reference other
// datasets and are excluded.
type ParseResult struct {
	AST           Node
	Valid         bool
	Err           error
	Columns       []string
	HasDateRanges bool
	HasSubqueries bool
}

// Parse tokenizes and parses a filter expression.
func Parse(input string) *ParseResult {
	result := &ParseResult{}

	if err := validateFilterLength(input); err != nil {
		result.Err = err
		return result
	}

	tokens, err := Tokenize(input)
	if err != nil {
		result.Err = err
		return result
	}
	if err := validateTokenCount(tokens); err != nil {
		result.Err = err
		return result
	}

	p := &parser{tokens: tokens, depth: newDepthCounter()}
	ast, err := p.parseExpression()
	if err != nil {
		result.Err = err
		return result
	}

	result.AST = ast
	result.Valid = true
	result.Columns = columnsOf(ast)
	Walk(ast, func(n Node) bool {
		switch n.(type) {
		case *DateRange:
			result.HasDateRanges = true
		case *Subquery:
			result.HasSubqueries = true
		}
		return true
	})
	return result
}

// parser is a recursive descent parser over a token slice. Precedence, low
// to high: OR, AND, NOT, comparison.
type parser struct {
	tokens []Token
	pos    int
	depth  *depthCounter
}

func (p *parser) current() Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *parser) peek() Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *parser) advance() {
	if p.pos < len(p.tokens) {
		p.pos++
	}
}

// expect consumes a token of the given kind or fails with its position.
func (p *parser) expect(kind TokenKind) (Token, error) {
	tok := p.current()
	if tok.Kind != kind {
		return Token{}, &SyntaxError{Pos: tok.Pos, Msg: fmt.Sprintf("expected %s, got %s", kind, describeToken(tok))}
	}
	p.advance()
	return tok, nil
}

// expectKeyword consumes the given keyword or fails with its position.
func (p *parser) expectKeyword(keyword string) error {
	tok := p.current()
	if !tok.Is(keyword) {
		return &SyntaxError{Pos: tok.Pos, Msg: fmt.Sprintf("expected %s, got %s", keyword, describeToken(tok))}
	}
	p.advance()
	return nil
}

func (p *parser) errUnexpected(tok Token, msg string) error {
	return &SyntaxError{Pos: tok.Pos, Msg: fmt.Sprintf("%s, got %s", msg, describeToken(tok))}
}

func describeToken(tok Token) string {
	if tok.Kind == TokenEOF {
		return "end of filter"
	}
	return fmt.Sprintf("%s %q", tok.Kind, tok.Text)
}

// parseExpression parses a complete filter; trailing input is an error.
func (p *parser) parseExpression() (Node, error) {
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.current(); tok.Kind != TokenEOF {
		return nil, p.errUnexpected(tok, "unexpected input after expression")
	}
	return expr, nil
}

// parseOr parses OR chains (lowest precedence).
func (p *parser) parseOr() (Node, error) {
	if err := p.depth.Enter(); err != nil {
		return nil, err
	}
	defer p.depth.Exit()

	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.current().Is("OR") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Left: left, Op: "OR", Right: right}
	}

	return left, nil
}

// parseAnd parses AND chains.
func (p *parser) parseAnd() (Node, error) {
	if err := p.depth.Enter(); err != nil {
		return nil, err
	}
	defer p.depth.Exit()

	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}

	for p.current().Is("AND") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Left: left, Op: "AND", Right: right}
	}

	return left, nil
}

// parseNot parses a NOT prefix on a condition. NOT EXISTS falls through to
// parseComparison, which owns the EXISTS forms; column-side negations
// (NOT IN, NOT LIKE, NOT BETWEEN) are handled after the column identifier.
func (p *parser) parseNot() (Node, error) {
	if err := p.depth.Enter(); err != nil {
		return nil, err
	}
	defer p.depth.Exit()

	if p.current().Is("NOT") && !p.peek().Is("EXISTS") {
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: "NOT", Operand: operand}, nil
	}

	return p.parseComparison()
}

// parseComparison parses a single condition: a comparison, IN list, BETWEEN,
// LIKE, IS [NOT] NULL, date range, subquery membership, EXISTS, or a
// parenthesized group.
func (p *parser) parseComparison() (Node, error) {
	if p.current().Is("EXISTS") || (p.current().Is("NOT") && p.peek().Is("EXISTS")) {
		return p.parseExists()
	}

	if p.current().Kind == TokenLParen {
		return p.parseGroup()
	}

	tok := p.current()
	if tok.Kind != TokenIdent {
		return nil, p.errUnexpected(tok, "expected column name")
	}
	if err := validateColumnName(tok.Text); err != nil {
		return nil, &SyntaxError{Pos: tok.Pos, Msg: err.Error()}
	}
	column := tok.Text
	p.advance()

	switch {
	case p.current().Is("IN"):
		return p.parseIn(column, false)
	case p.current().Is("NOT"):
		p.advance()
		switch {
		case p.current().Is("IN"):
			return p.parseIn(column, true)
		case p.current().Is("LIKE"):
			return p.parseLike(column, true)
		case p.current().Is("BETWEEN"):
			expr, err := p.parseBetween(column)
			if err != nil {
				return nil, err
			}
			return &UnaryOp{Op: "NOT", Operand: expr}, nil
		default:
			return nil, p.errUnexpected(p.current(), "expected IN, LIKE or BETWEEN after NOT")
		}
	case p.current().Is("LIKE"):
		return p.parseLike(column, false)
	case p.current().Is("BETWEEN"):
		return p.parseBetween(column)
	case p.current().Is("IS"):
		return p.parseIsNull(column)
	}

	opTok := p.current()
	if opTok.Kind != TokenOperator {
		return nil, p.errUnexpected(opTok, "expected comparison operator")
	}
	op := opTok.Text
	if op == "<>" {
		op = "!="
	}
	p.advance()

	right, err := p.parseValueOrColumn()
	if err != nil {
		return nil, err
	}

	return &BinaryOp{Left: &Column{Name: column}, Op: op, Right: right}, nil
}

// parseGroup parses a parenthesized expression into an explicit Group node,
// flattening the inner tree's top-level combinator chain.
func (p *parser) parseGroup() (Node, error) {
	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}
	inner, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return groupFrom(inner), nil
}

func groupFrom(inner Node) *Group {
	if b, ok := inner.(*BinaryOp); ok && (b.Op == "AND" || b.Op == "OR") {
		return &Group{Combinator: b.Op, Conditions: flattenChain(b, b.Op)}
	}
	return &Group{Combinator: "AND", Conditions: []Node{inner}}
}

// flattenChain unrolls a left-associative chain of the given combinator.
func flattenChain(n Node, op string) []Node {
	if b, ok := n.(*BinaryOp); ok && b.Op == op {
		return append(flattenChain(b.Left, op), flattenChain(b.Right, op)...)
	}
	return []Node{n}
}

// parseIn parses column IN (...): a literal list, a subquery, or a relative
// date window (COL IN LAST 7 DAYS). A negated date window desugars to
// NOT wrapping the range, like NOT BETWEEN.
func (p *parser) parseIn(column string, negate bool) (Node, error) {
	if err := p.expectKeyword("IN"); err != nil {
		return nil, err
	}

	if p.current().Is("LAST") || p.current().Is("NEXT") {
		rng, err := p.parseDateRange(column)
		if err != nil {
			return nil, err
		}
		if negate {
			return &UnaryOp{Op: "NOT", Operand: rng}, nil
		}
		return rng, nil
	}

	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}

	if p.current().Is("SELECT") {
		op := "IN"
		if negate {
			op = "NOT IN"
		}
		sub, err := p.parseSubquery(column, op)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return sub, nil
	}

	var values []Literal
	for {
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		values = append(values, lit)

		if p.current().Kind == TokenComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}

	return &In{Column: column, Values: values, Negate: negate}, nil
}

// parseDateRange parses (LAST|NEXT) NUMBER unit after "column IN".
func (p *parser) parseDateRange(column string) (Node, error) {
	dir := DirLast
	if p.current().Is("NEXT") {
		dir = DirNext
	}
	p.advance()

	numTok := p.current()
	if numTok.Kind != TokenNumber {
		return nil, p.errUnexpected(numTok, fmt.Sprintf("expected number after %s", dir))
	}
	amount, err := strconv.Atoi(numTok.Text)
	if err != nil || amount < 0 {
		return nil, &SyntaxError{Pos: numTok.Pos, Msg: fmt.Sprintf("invalid date range amount %q", numTok.Text)}
	}
	p.advance()

	unitTok := p.current()
	if unitTok.Kind != TokenIdent {
		return nil, p.errUnexpected(unitTok, "expected time unit (DAYS, WEEKS, MONTHS or YEARS)")
	}
	unit, ok := parseUnit(unitTok.Text)
	if !ok {
		return nil, &SyntaxError{Pos: unitTok.Pos, Msg: fmt.Sprintf("unknown time unit %q", unitTok.Text)}
	}
	p.advance()

	return &DateRange{Column: column, Direction: dir, Amount: amount, Unit: unit}, nil
}

// parseUnit maps a unit identifier, singular or plural, to its Unit.
func parseUnit(s string) (Unit, bool) {
	switch strings.ToUpper(s) {
	case "DAY", "DAYS":
		return UnitDays, true
	case "WEEK", "WEEKS":
		return UnitWeeks, true
	case "MONTH", "MONTHS":
		return UnitMonths, true
	case "YEAR", "YEARS":
		return UnitYears, true
	default:
		return 0, false
	}
}

// parseSubquery parses SELECT <column> FROM <dataset> [WHERE <condition>].
// The WHERE condition recursively reuses the main grammar, nested
// subqueries included. The caller owns the surrounding parentheses.
func (p *parser) parseSubquery(column, operator string) (*Subquery, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}

	selTok := p.current()
	if selTok.Kind != TokenIdent {
		return nil, p.errUnexpected(selTok, "expected column name after SELECT")
	}
	p.advance()

	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}

	dsTok := p.current()
	if dsTok.Kind != TokenIdent {
		return nil, p.errUnexpected(dsTok, "expected dataset name after FROM")
	}
	p.advance()

	var where Node
	if p.current().Is("WHERE") {
		p.advance()
		w, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		where = w
	}

	return &Subquery{
		Column:       column,
		Operator:     operator,
		SelectColumn: selTok.Text,
		Dataset:      dsTok.Text,
		Where:        where,
	}, nil
}

// parseExists parses [NOT] EXISTS '(' subquery ')'.
func (p *parser) parseExists() (Node, error) {
	op := "EXISTS"
	if p.current().Is("NOT") {
		op = "NOT EXISTS"
		p.advance()
	}
	if err := p.expectKeyword("EXISTS"); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}

	sub, err := p.parseSubquery("", op)
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return sub, nil
}

// parseLike parses column [NOT] LIKE 'pattern'.
func (p *parser) parseLike(column string, negate bool) (Node, error) {
	if err := p.expectKeyword("LIKE"); err != nil {
		return nil, err
	}

	patTok := p.current()
	if patTok.Kind != TokenString {
		return nil, p.errUnexpected(patTok, "expected string pattern after LIKE")
	}
	p.advance()

	return &Like{Column: column, Pattern: patTok.Text, Negate: negate}, nil
}

// parseBetween parses column BETWEEN lower AND upper.
func (p *parser) parseBetween(column string) (Node, error) {
	if err := p.expectKeyword("BETWEEN"); err != nil {
		return nil, err
	}

	lower, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("AND"); err != nil {
		return nil, err
	}
	upper, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}

	return &Between{Column: column, Lower: lower, Upper: upper}, nil
}

// parseIsNull parses column IS [NOT] NULL.
func (p *parser) parseIsNull(column string) (Node, error) {
	if err := p.expectKeyword("IS"); err != nil {
		return nil, err
	}

	negate := false
	if p.current().Is("NOT") {
		negate = true
		p.advance()
	}

	if err := p.expectKeyword("NULL"); err != nil {
		return nil, err
	}

	return &IsNull{Column: column, Negate: negate}, nil
}

// parseLiteral parses a string or number literal. Numbers parse to int64
// when integral, float64 otherwise.
func (p *parser) parseLiteral() (Literal, error) {
	tok := p.current()
	switch tok.Kind {
	case TokenString:
		p.advance()
		return Literal{Kind: LiteralString, Value: tok.Text}, nil
	case TokenNumber:
		p.advance()
		if iv, err := strconv.ParseInt(tok.Text, 10, 64); err == nil {
			return Literal{Kind: LiteralNumber, Value: iv}, nil
		}
		fv, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return Literal{}, &SyntaxError{Pos: tok.Pos, Msg: fmt.Sprintf("invalid number %q", tok.Text)}
		}
		return Literal{Kind: LiteralNumber, Value: fv}, nil
	default:
		return Literal{}, p.errUnexpected(tok, "expected literal value")
	}
}

// parseValueOrColumn parses the right side of a comparison: a literal, or a
// column reference for column-to-column comparisons.
func (p *parser) parseValueOrColumn() (Node, error) {
	tok := p.current()
	switch tok.Kind {
	case TokenIdent:
		if err := validateColumnName(tok.Text); err != nil {
			return nil, &SyntaxError{Pos: tok.Pos, Msg: err.Error()}
		}
		p.advance()
		return &Column{Name: tok.Text}, nil
	case TokenString, TokenNumber:
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return &lit, nil
	default:
		return nil, p.errUnexpected(tok, "expected value or column name")
	}
}
