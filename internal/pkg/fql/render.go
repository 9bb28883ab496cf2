package fql

import "strings"

// Render serializes an AST back to query text. The output is minimal:
// implicit ANDs stay bare spaces, parentheses appear only where the
// grammar demands them (an OR operand under an AND, negations, boosted
// groups, field-scoped groups). Parse(Render(x)) is semantically
// equivalent to x for every tree the editing layer produces.
func Render(n Node) string {
	if n == nil {
		return ""
	}
	return renderNode(n)
}

func renderNode(n Node) string {
	switch n := n.(type) {
	case *Cond:
		return wrapNegated(n.Negated, condText(n))
	case *Binary:
		return renderBinary(n)
	}
	return ""
}

func renderBinary(b *Binary) string {
	var out string

	switch {
	case b.Field != "":
		out = b.Field + ":" + groupBody(b)
	case b.Left == nil:
		out = renderNode(b.Right)
	case b.Right == nil:
		out = renderNode(b.Left)
	default:
		out = renderChild(b.Left, b.Op) + operatorText(b) + renderChild(b.Right, b.Op)
		if b.Boost != "" {
			// A boost binds to a single operand, so the pair must be
			// regrouped before the factor can be reattached.
			out = "(" + out + ")"
		}
	}

	if b.Boost != "" {
		out += "^" + b.Boost
	}
	return wrapNegated(b.Negated, out)
}

// groupBody renders the parenthesized value part of a field-scoped
// group, collapsing a single bare alternative down to field:term.
func groupBody(b *Binary) string {
	if b.Right == nil {
		if c, ok := b.Left.(*Cond); ok && c.Field == "" && !c.Negated {
			return condText(c)
		}
		return "(" + renderNode(b.Left) + ")"
	}
	return "(" + renderChild(b.Left, b.Op) + operatorText(b) + renderChild(b.Right, b.Op) + ")"
}

// renderChild parenthesizes an operand when its operator binds weaker
// than the parent's, which in this grammar only happens for a plain OR
// under an AND. Negated and boosted subtrees emerge pre-parenthesized.
func renderChild(n Node, parentOp string) string {
	s := renderNode(n)
	b, ok := n.(*Binary)
	if !ok || b.Field != "" || b.Negated || b.Boost != "" {
		return s
	}
	if b.Op == OpOr && parentOp == OpAnd {
		return "(" + s + ")"
	}
	return s
}

func operatorText(b *Binary) string {
	if !b.Explicit {
		return " "
	}
	return " " + b.Op + " "
}

// condText renders a leaf without its negation wrapper.
func condText(c *Cond) string {
	var sb strings.Builder
	if c.Field != "" {
		sb.WriteString(c.Field)
		sb.WriteByte(':')
	}
	if c.Quoted {
		sb.WriteByte('"')
		sb.WriteString(EscapePhrase(c.Term))
		sb.WriteByte('"')
	} else {
		sb.WriteString(c.Term)
	}
	if c.Boost != "" {
		sb.WriteByte('^')
		sb.WriteString(c.Boost)
	}
	return sb.String()
}

func wrapNegated(negated bool, s string) string {
	if !negated {
		return s
	}
	return "(NOT " + s + ")"
}
