package edit

import (
	"errors"

	"github.com/coffersTech/filtq/internal/pkg/fql"
)

// ErrNormalizeOverflow means the repair loop failed to reach a fixpoint
// within the pass ceiling. That only happens when the tree shape is
// unrepairable or an editing rule is buggy; it is never retried.
var ErrNormalizeOverflow = errors.New("edit: normalize did not reach a fixpoint")

// maxNormalizePasses bounds the repair loop against non-termination.
const maxNormalizePasses = 1000

// Normalize repairs a tree after arbitrary node removal, restoring the
// invariants the renderer and editors rely on: no empty field-scoped
// group survives, and no plain binary keeps a single operand. Passes
// repeat until one of them applies zero rules.
func Normalize(ast fql.Node) (fql.Node, error) {
	for pass := 0; pass < maxNormalizePasses; pass++ {
		changed := 0
		out, err := Nodes(ast, func(_ []fql.Node, _ fql.Node, b *fql.Binary) Action {
			act, ok := repair(b)
			if ok {
				changed++
				return act
			}
			return Keep
		})
		if err != nil {
			return nil, err
		}
		ast = out
		if changed == 0 {
			return ast, nil
		}
	}
	return nil, ErrNormalizeOverflow
}

// repair applies at most one shape rule to b and reports whether it did.
func repair(b *fql.Binary) (Action, bool) {
	if b.Field != "" {
		switch {
		case b.Left == nil && b.Right == nil:
			// Field group with no content left.
			return Delete, true
		case b.Left == nil:
			c := *b
			c.Left, c.Right = c.Right, nil
			c.Op, c.Explicit = "", false
			return Replace(&c), true
		case b.Right == nil && b.Op != "":
			// Down to one alternative: drop the dangling operator.
			c := *b
			c.Op, c.Explicit = "", false
			return Replace(&c), true
		}
		return Keep, false
	}

	switch {
	case b.Left == nil && b.Right == nil:
		return Delete, true
	case b.Left == nil:
		return Replace(promote(b.Right, b.Negated)), true
	case b.Right == nil:
		return Replace(promote(b.Left, b.Negated)), true
	}
	return Keep, false
}

// promote lifts the surviving operand into its parent's place. A NOT
// marker on the vanished parent folds into the child so negation parity
// along the path is preserved.
func promote(child fql.Node, parentNegated bool) fql.Node {
	if !parentNegated {
		return child
	}
	switch n := child.(type) {
	case *fql.Binary:
		c := *n
		c.Negated = !c.Negated
		return &c
	case *fql.Cond:
		c := *n
		c.Negated = !c.Negated
		return &c
	}
	return child
}
