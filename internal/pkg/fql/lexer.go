package fql

import (
	"strings"
	"unicode"
)

// TokenType represents the type of a lexical token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenTerm
	TokenPhrase
	TokenColon
	TokenLParen
	TokenRParen
	TokenAnd
	TokenOr
	TokenNot
	TokenRange
	TokenBoost
)

// Token represents a lexical token. For TokenPhrase the value holds the
// unescaped text; for TokenRange the raw bracket literal including the
// delimiters.
type Token struct {
	Type  TokenType
	Value string
}

// Lexer tokenizes FQL input.
type Lexer struct {
	input string
	pos   int
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, pos: 0}
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF}
	}

	ch := l.input[l.pos]

	switch ch {
	case ':':
		l.pos++
		return Token{Type: TokenColon, Value: ":"}
	case '(':
		l.pos++
		return Token{Type: TokenLParen, Value: "("}
	case ')':
		l.pos++
		return Token{Type: TokenRParen, Value: ")"}
	case '^':
		return l.readBoost()
	case '"':
		return l.readPhrase()
	case '[', '{':
		return l.readRange()
	}

	return l.readTerm()
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
}

// readPhrase consumes a double-quoted phrase and returns its unescaped
// content.
func (l *Lexer) readPhrase() Token {
	l.pos++ // skip opening quote
	start := l.pos
	for l.pos < len(l.input) && l.input[l.pos] != '"' {
		if l.input[l.pos] == '\\' && l.pos+1 < len(l.input) {
			l.pos += 2 // skip escaped char
			continue
		}
		l.pos++
	}
	value := l.input[start:l.pos]
	if l.pos < len(l.input) {
		l.pos++ // skip closing quote
	}
	return Token{Type: TokenPhrase, Value: UnescapePhrase(value)}
}

// readRange consumes a bracketed range literal such as [1 TO 4] or
// {a TO z} and keeps it as raw text, delimiters included.
func (l *Lexer) readRange() Token {
	start := l.pos
	l.pos++
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		l.pos++
		if ch == ']' || ch == '}' {
			break
		}
	}
	return Token{Type: TokenRange, Value: l.input[start:l.pos]}
}

// readBoost consumes a ^factor suffix.
func (l *Lexer) readBoost() Token {
	l.pos++ // skip '^'
	start := l.pos
	for l.pos < len(l.input) && (isDigit(l.input[l.pos]) || l.input[l.pos] == '.') {
		l.pos++
	}
	return Token{Type: TokenBoost, Value: l.input[start:l.pos]}
}

func (l *Lexer) readTerm() Token {
	start := l.pos
	for l.pos < len(l.input) && isTermChar(l.input[l.pos]) {
		if l.input[l.pos] == '\\' && l.pos+1 < len(l.input) {
			l.pos += 2 // escaped char stays part of the term
			continue
		}
		l.pos++
	}
	if l.pos == start {
		// Lone unknown character; emit it as a term so parsing fails with
		// a useful message instead of looping.
		l.pos++
	}
	value := l.input[start:l.pos]

	// Keywords are case-sensitive: "or" is an ordinary term, "OR" is not.
	switch value {
	case "AND":
		return Token{Type: TokenAnd, Value: value}
	case "OR":
		return Token{Type: TokenOr, Value: value}
	case "NOT":
		return Token{Type: TokenNot, Value: value}
	}

	return Token{Type: TokenTerm, Value: value}
}

func isTermChar(ch byte) bool {
	if unicode.IsSpace(rune(ch)) {
		return false
	}
	return !strings.ContainsRune(`():"^[{`, rune(ch))
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
