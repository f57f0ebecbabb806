package filter

// TokenKind identifies the lexical class of a token.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenIdent
	TokenString
	TokenNumber
	TokenOperator
	TokenKeyword
	TokenLParen
	TokenRParen
	TokenComma
)

// String returns a readable name for the kind, used in error messages.
func (k TokenKind) String() string {
	switch k {
	case TokenEOF:
		return "end of filter"
	case TokenIdent:
		return "identifier"
	case TokenString:
		return "string"
	case TokenNumber:
		return "number"
	case TokenOperator:
		return "operator"
	case TokenKeyword:
		return "keyword"
	case TokenLParen:
		return "'('"
	case TokenRParen:
		return "')'"
	case TokenComma:
		return "','"
	default:
		return "unknown token"
	}
}

// Token is one lexical unit of a filter expression. Pos is the byte offset
// of the token's first character in the input; keyword tokens carry their
// text uppercased, every other kind keeps the text as written.
type Token struct {
	Kind TokenKind
	Text string
	Pos  int
}

// Is reports whether the token is the given keyword. Keyword names are
// compared in their canonical uppercase form.
func (t Token) Is(keyword string) bool {
	return t.Kind == TokenKeyword && t.Text == keyword
}
