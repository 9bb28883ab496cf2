// Package edit performs structural surgery on parsed FQL trees:
// a generic traversal with keep/delete/replace actions, a fixpoint
// normalization pass that repairs tree shape after removals, a
// negation-aware term collector, and the composite field-level edits
// built on top of them.
package edit

import (
	"errors"

	"github.com/coffersTech/filtq/internal/pkg/fql"
)

// ErrBadVisit is returned when a visit callback yields the zero Action
// or a Replace with no node. The walk is aborted immediately.
var ErrBadVisit = errors.New("edit: visit returned an invalid action")

type actionKind int

const (
	actionInvalid actionKind = iota
	actionKeep
	actionDelete
	actionReplace
)

// Action tells Walk what to do with the node just visited.
type Action struct {
	kind actionKind
	repl fql.Node
}

// Keep retains the node and descends into its children.
var Keep = Action{kind: actionKeep}

// Delete removes the node (and its subtree) from its parent's slot.
var Delete = Action{kind: actionDelete}

// Replace substitutes n into the parent's slot and descends into n's
// children.
func Replace(n fql.Node) Action {
	return Action{kind: actionReplace, repl: n}
}

// VisitFunc is invoked once per node. path is the chain of ancestors
// from the root down to, but excluding, node; parent is the last entry
// of that chain, nil at the root. path and parent belong to the tree
// being built; node is the uncopied original (or a prior replacement),
// copied only after the action is resolved.
type VisitFunc func(path []fql.Node, parent fql.Node, node fql.Node) Action

// BinaryFunc is the restricted visitor used by Nodes.
type BinaryFunc func(path []fql.Node, parent fql.Node, node *fql.Binary) Action

// Walk traverses ast breadth-first, root before children, applying the
// action the visitor returns for each node. The input tree is never
// modified: kept nodes are copied onto a fresh tree, so edits leave
// deletion holes (nil child slots) only in the result. Walk restores no
// structural invariants; Normalize does.
//
// Deleting the root yields the canonical empty tree, nil.
func Walk(ast fql.Node, visit VisitFunc) (fql.Node, error) {
	if ast == nil {
		return nil, nil
	}

	root, keep, err := resolve(visit(nil, nil, ast), ast)
	if err != nil || !keep {
		return nil, err
	}

	type slotRef struct {
		parent *fql.Binary
		right  bool
		path   []fql.Node
	}

	var queue []slotRef
	enqueue := func(n fql.Node, path []fql.Node) {
		b, ok := n.(*fql.Binary)
		if !ok {
			return
		}
		childPath := make([]fql.Node, len(path)+1)
		copy(childPath, path)
		childPath[len(path)] = b
		queue = append(queue,
			slotRef{parent: b, right: false, path: childPath},
			slotRef{parent: b, right: true, path: childPath})
	}

	enqueue(root, nil)

	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]

		child := ref.parent.Left
		if ref.right {
			child = ref.parent.Right
		}
		if child == nil {
			continue
		}

		next, keep, err := resolve(visit(ref.path, ref.parent, child), child)
		if err != nil {
			return nil, err
		}
		if !keep {
			next = nil
		}
		if ref.right {
			ref.parent.Right = next
		} else {
			ref.parent.Left = next
		}
		if keep {
			enqueue(next, ref.path)
		}
	}

	return root, nil
}

// resolve turns an action into the copied node that takes the visited
// node's place, or keep=false for a deletion.
func resolve(act Action, visited fql.Node) (node fql.Node, keep bool, err error) {
	switch act.kind {
	case actionKeep:
		return cloneNode(visited), true, nil
	case actionDelete:
		return nil, false, nil
	case actionReplace:
		if act.repl == nil {
			return nil, false, ErrBadVisit
		}
		return cloneNode(act.repl), true, nil
	}
	return nil, false, ErrBadVisit
}

// Nodes is a restricted walk that only consults the handler for Binary
// nodes; leaves pass through unchanged.
func Nodes(ast fql.Node, handler BinaryFunc) (fql.Node, error) {
	return Walk(ast, func(path []fql.Node, parent fql.Node, node fql.Node) Action {
		b, ok := node.(*fql.Binary)
		if !ok {
			return Keep
		}
		return handler(path, parent, b)
	})
}

func cloneNode(n fql.Node) fql.Node {
	switch n := n.(type) {
	case *fql.Binary:
		c := *n
		return &c
	case *fql.Cond:
		c := *n
		return &c
	}
	return n
}
