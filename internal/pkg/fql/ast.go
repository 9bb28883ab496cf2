package fql

// Operator values carried by Binary nodes.
const (
	OpAnd = "AND"
	OpOr  = "OR"
)

// Node is the interface implemented by all AST nodes.
type Node interface {
	node() // marker method
}

// Binary combines two subtrees with a boolean operator.
// When Field is set, the node is a field-scoped group such as
// level:(INFO OR WARN); a group reduced to a single alternative keeps
// only Left and carries no operator.
type Binary struct {
	Op       string // OpAnd, OpOr, or "" for a single-value field group
	Left     Node
	Right    Node
	Field    string // non-empty for field-scoped groups
	Negated  bool   // NOT marker: the whole subtree is negated
	Explicit bool   // operator was written in the source (a bare space is an implicit AND)
	Boost    string // trailing ^boost on a parenthesized group, carried verbatim
}

func (*Binary) node() {}

// Cond is a leaf clause binding an optional field to a term.
// Quoted, Raw and Boost are transported untouched; the editing layer
// never interprets them.
type Cond struct {
	Field   string
	Term    string
	Negated bool   // NOT marker on the leaf itself
	Quoted  bool   // phrase: Term holds the unescaped text
	Raw     bool   // opaque literal such as a range, rendered verbatim
	Boost   string
}

func (*Cond) node() {}

// FieldOf returns the field attribute of n, or "" when the node carries
// none. A nil node has no field.
func FieldOf(n Node) string {
	switch n := n.(type) {
	case *Binary:
		return n.Field
	case *Cond:
		return n.Field
	}
	return ""
}

// IsNegated reports whether n carries a NOT marker.
func IsNegated(n Node) bool {
	switch n := n.(type) {
	case *Binary:
		return n.Negated
	case *Cond:
		return n.Negated
	}
	return false
}
