package filter

import (
	"fmt"
	"strings"
	"unicode"
)

// keywords of the filter language, in canonical uppercase form. Matching is
// case-insensitive. Date units (DAYS, MONTHS, ...) are deliberately absent:
// they reach the parser as identifiers.
var keywords = map[string]bool{
	"AND":     true,
	"OR":      true,
	"NOT":     true,
	"IN":      true,
	"BETWEEN": true,
	"LIKE":    true,
	"IS":      true,
	"NULL":    true,
	"EXISTS":  true,
	"SELECT":  true,
	"FROM":    true,
	"WHERE":   true,
	"LAST":    true,
	"NEXT":    true,
}

// Lexer tokenizes filter expressions one token at a time.
type Lexer struct {
	input string
	pos   int
	ch    rune
}

// NewLexer creates a lexer over the given filter text.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.pos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = rune(l.input[l.pos])
	}
	l.pos++
}

// peekChar looks at the next character without advancing.
func (l *Lexer) peekChar() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	return rune(l.input[l.pos])
}

// skipWhitespace skips whitespace characters.
func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

// readString reads a quoted string. Reports whether the closing quote was
// found before the input ended.
func (l *Lexer) readString(quote rune) (string, bool) {
	var result strings.Builder
	l.readChar() // skip opening quote

	for l.ch != quote && l.ch != 0 {
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				result.WriteRune('\n')
			case 't':
				result.WriteRune('\t')
			case '\\':
				result.WriteRune('\\')
			case quote:
				result.WriteRune(quote)
			default:
				result.WriteRune(l.ch)
			}
		} else {
			result.WriteRune(l.ch)
		}
		l.readChar()
	}

	if l.ch != quote {
		return result.String(), false
	}
	l.readChar() // skip closing quote
	return result.String(), true
}

// readNumber reads a number with an optional leading minus sign.
func (l *Lexer) readNumber() string {
	var result strings.Builder

	if l.ch == '-' {
		result.WriteRune(l.ch)
		l.readChar()
	}

	for unicode.IsDigit(l.ch) || l.ch == '.' {
		result.WriteRune(l.ch)
		l.readChar()
	}
	return result.String()
}

// readIdentifier reads an identifier: letters, digits, underscores and dots.
func (l *Lexer) readIdentifier() string {
	var result strings.Builder
	for unicode.IsLetter(l.ch) || unicode.IsDigit(l.ch) || l.ch == '_' || l.ch == '.' {
		result.WriteRune(l.ch)
		l.readChar()
	}
	return result.String()
}

// Next returns the next token. A character that starts no token stops the
// lexer immediately with a LexError carrying the character's position.
func (l *Lexer) Next() (Token, error) {
	l.skipWhitespace()

	start := l.pos - 1
	if start > len(l.input) {
		start = len(l.input)
	}

	switch l.ch {
	case 0:
		return Token{Kind: TokenEOF, Pos: len(l.input)}, nil
	case '=':
		l.readChar()
		return Token{Kind: TokenOperator, Text: "=", Pos: start}, nil
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return Token{Kind: TokenOperator, Text: "!=", Pos: start}, nil
		}
		return Token{}, &LexError{Pos: start, Char: '!', Msg: "unexpected character '!'"}
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			l.readChar()
			return Token{Kind: TokenOperator, Text: "<=", Pos: start}, nil
		case '>':
			l.readChar()
			l.readChar()
			return Token{Kind: TokenOperator, Text: "<>", Pos: start}, nil
		default:
			l.readChar()
			return Token{Kind: TokenOperator, Text: "<", Pos: start}, nil
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return Token{Kind: TokenOperator, Text: ">=", Pos: start}, nil
		}
		l.readChar()
		return Token{Kind: TokenOperator, Text: ">", Pos: start}, nil
	case '\'', '"':
		quote := l.ch
		text, terminated := l.readString(quote)
		if !terminated {
			return Token{}, &LexError{Pos: start, Char: quote, Msg: "unterminated string"}
		}
		return Token{Kind: TokenString, Text: text, Pos: start}, nil
	case '(':
		l.readChar()
		return Token{Kind: TokenLParen, Text: "(", Pos: start}, nil
	case ')':
		l.readChar()
		return Token{Kind: TokenRParen, Text: ")", Pos: start}, nil
	case ',':
		l.readChar()
		return Token{Kind: TokenComma, Text: ",", Pos: start}, nil
	}

	switch {
	case unicode.IsDigit(l.ch) || l.ch == '-':
		text := l.readNumber()
		// A standalone minus sign is not a number.
		if text == "-" {
			return Token{}, &LexError{Pos: start, Char: '-', Msg: "unexpected character '-'"}
		}
		return Token{Kind: TokenNumber, Text: text, Pos: start}, nil
	case unicode.IsLetter(l.ch) || l.ch == '_':
		text := l.readIdentifier()
		if upper := strings.ToUpper(text); keywords[upper] {
			return Token{Kind: TokenKeyword, Text: upper, Pos: start}, nil
		}
		return Token{Kind: TokenIdent, Text: text, Pos: start}, nil
	default:
		ch := l.ch
		return Token{}, &LexError{Pos: start, Char: ch, Msg: fmt.Sprintf("unexpected character %q", ch)}
	}
}

// Tokenize returns all tokens from the input, ending with EOF, or the first
// lexing error.
func Tokenize(input string) ([]Token, error) {
	lexer := NewLexer(input)
	var tokens []Token

	for {
		tok, err := lexer.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == TokenEOF {
			return tokens, nil
		}
	}
}
