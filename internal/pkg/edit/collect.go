package edit

import (
	"github.com/coffersTech/filtq/internal/pkg/fql"
)

// CollectTermsForField gathers the terms bound to field, in first-seen
// order with duplicates collapsed.
//
// A leaf belongs to a field when the nearest field-bearing node on its
// root-to-leaf chain (the leaf itself counts) carries that field, so a
// leaf with its own field inside some other field's group is never
// claimed by the group. Negation state is not local to the leaf: it is
// the parity of NOT markers along the whole chain, and only leaves whose
// parity matches wantNegated are collected. The empty string is a term
// like any other; f:"" binds it to f.
func CollectTermsForField(ast fql.Node, field string, wantNegated bool) []string {
	var terms []string
	seen := make(map[string]bool)

	// The visitor never edits and never returns an invalid action, so
	// the walk cannot fail.
	_, _ = Walk(ast, func(path []fql.Node, _ fql.Node, node fql.Node) Action {
		leaf, ok := node.(*fql.Cond)
		if !ok {
			return Keep
		}

		bound := boundField(path, leaf)
		if bound == "" || bound != field {
			return Keep
		}

		negations := 0
		for _, n := range path {
			if fql.IsNegated(n) {
				negations++
			}
		}
		if leaf.Negated {
			negations++
		}

		if (negations%2 == 1) == wantNegated && !seen[leaf.Term] {
			seen[leaf.Term] = true
			terms = append(terms, leaf.Term)
		}
		return Keep
	})

	return terms
}

// boundField resolves which field a leaf belongs to: its own field if it
// has one, otherwise the closest enclosing field-scoped group.
func boundField(path []fql.Node, leaf *fql.Cond) string {
	if leaf.Field != "" {
		return leaf.Field
	}
	for i := len(path) - 1; i >= 0; i-- {
		if f := fql.FieldOf(path[i]); f != "" {
			return f
		}
	}
	return ""
}
