package fql

import (
	"fmt"
)

// Parser parses FQL queries into an AST.
type Parser struct {
	lexer   *Lexer
	current Token
}

// Parse parses the input string and returns the AST root node.
// The empty string is the canonical empty query and parses to nil.
func Parse(input string) (Node, error) {
	if input == "" {
		return nil, nil
	}
	p := &Parser{lexer: NewLexer(input)}
	p.advance()
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.current.Type != TokenEOF {
		return nil, fmt.Errorf("unexpected token %q", p.current.Value)
	}
	return node, nil
}

func (p *Parser) advance() {
	p.current = p.lexer.NextToken()
}

// parseOr handles OR expressions (lowest precedence).
func (p *Parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.current.Type == TokenOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: OpOr, Explicit: true, Left: left, Right: right}
	}

	return left, nil
}

// parseAnd handles AND expressions. Two adjacent primaries with no
// operator between them form an implicit AND, which renders back as a
// bare space.
func (p *Parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}

	for {
		switch {
		case p.current.Type == TokenAnd:
			p.advance()
			right, err := p.parseNot()
			if err != nil {
				return nil, err
			}
			left = &Binary{Op: OpAnd, Explicit: true, Left: left, Right: right}
		case startsOperand(p.current.Type):
			right, err := p.parseNot()
			if err != nil {
				return nil, err
			}
			left = &Binary{Op: OpAnd, Left: left, Right: right}
		default:
			return left, nil
		}
	}
}

func startsOperand(t TokenType) bool {
	switch t {
	case TokenNot, TokenLParen, TokenTerm, TokenPhrase, TokenRange:
		return true
	}
	return false
}

// parseNot handles NOT expressions. The marker lives on the node it
// governs, so a doubled NOT cancels out instead of stacking.
func (p *Parser) parseNot() (Node, error) {
	if p.current.Type == TokenNot {
		p.advance()
		expr, err := p.parseNot() // NOT is right-associative
		if err != nil {
			return nil, err
		}
		toggleNegation(expr)
		return expr, nil
	}
	return p.parsePrimary()
}

func toggleNegation(n Node) {
	switch n := n.(type) {
	case *Binary:
		n.Negated = !n.Negated
	case *Cond:
		n.Negated = !n.Negated
	}
}

// parsePrimary handles primaries: (expr), term, "phrase", [range],
// field:value and field:(group).
func (p *Parser) parsePrimary() (Node, error) {
	switch p.current.Type {
	case TokenLParen:
		p.advance()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.current.Type != TokenRParen {
			return nil, fmt.Errorf("expected ')' but got %q", p.current.Value)
		}
		p.advance()
		if err := p.maybeBoost(expr); err != nil {
			return nil, err
		}
		return expr, nil

	case TokenPhrase:
		node := &Cond{Term: p.current.Value, Quoted: true}
		p.advance()
		if err := p.maybeBoost(node); err != nil {
			return nil, err
		}
		return node, nil

	case TokenRange:
		node := &Cond{Term: p.current.Value, Raw: true}
		p.advance()
		if err := p.maybeBoost(node); err != nil {
			return nil, err
		}
		return node, nil

	case TokenTerm:
		name := p.current.Value
		p.advance()

		if p.current.Type == TokenColon {
			p.advance()
			return p.parseFieldValue(name)
		}

		node := &Cond{Term: name}
		if err := p.maybeBoost(node); err != nil {
			return nil, err
		}
		return node, nil

	case TokenEOF:
		return nil, fmt.Errorf("unexpected end of query")

	default:
		return nil, fmt.Errorf("unexpected token %q", p.current.Value)
	}
}

// parseFieldValue parses what follows "field:".
func (p *Parser) parseFieldValue(field string) (Node, error) {
	switch p.current.Type {
	case TokenTerm:
		node := &Cond{Field: field, Term: p.current.Value}
		p.advance()
		if err := p.maybeBoost(node); err != nil {
			return nil, err
		}
		return node, nil

	case TokenPhrase:
		node := &Cond{Field: field, Term: p.current.Value, Quoted: true}
		p.advance()
		if err := p.maybeBoost(node); err != nil {
			return nil, err
		}
		return node, nil

	case TokenRange:
		node := &Cond{Field: field, Term: p.current.Value, Raw: true}
		p.advance()
		if err := p.maybeBoost(node); err != nil {
			return nil, err
		}
		return node, nil

	case TokenLParen:
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.current.Type != TokenRParen {
			return nil, fmt.Errorf("expected ')' but got %q", p.current.Value)
		}
		p.advance()

		var node Node
		if b, ok := inner.(*Binary); ok && b.Field == "" {
			b.Field = field
			node = b
		} else {
			// Single alternative, or a nested field-scoped group: keep it
			// as the sole child of a fresh group node.
			node = &Binary{Field: field, Left: inner}
		}
		if err := p.maybeBoost(node); err != nil {
			return nil, err
		}
		return node, nil

	default:
		return nil, fmt.Errorf("expected value after %q but got %q", field+":", p.current.Value)
	}
}

func (p *Parser) maybeBoost(n Node) error {
	if p.current.Type != TokenBoost {
		return nil
	}
	if p.current.Value == "" {
		return fmt.Errorf("expected boost factor after '^'")
	}
	switch n := n.(type) {
	case *Binary:
		n.Boost = p.current.Value
	case *Cond:
		n.Boost = p.current.Value
	}
	p.advance()
	return nil
}
