package edit

import (
	"errors"
	"strings"
	"testing"

	"github.com/coffersTech/filtq/internal/pkg/fql"
)

func mustParse(t *testing.T, input string) fql.Node {
	t.Helper()
	node, err := fql.Parse(input)
	if err != nil {
		t.Fatalf("parse error for %q: %v", input, err)
	}
	return node
}

func keepAll(_ []fql.Node, _ fql.Node, _ fql.Node) Action { return Keep }

func TestWalkVisitOrder(t *testing.T) {
	ast := mustParse(t, "(a:1 OR b:2) AND c:3")

	var order []string
	_, err := Walk(ast, func(path []fql.Node, parent fql.Node, node fql.Node) Action {
		switch n := node.(type) {
		case *fql.Binary:
			order = append(order, n.Op)
		case *fql.Cond:
			order = append(order, n.Field)
		}
		if len(path) > 0 && path[len(path)-1] != parent {
			t.Errorf("path tail should be the parent")
		}
		return Keep
	})
	if err != nil {
		t.Fatalf("walk error: %v", err)
	}

	// Root first, then breadth-first.
	want := "AND OR c a b"
	if got := strings.Join(order, " "); got != want {
		t.Errorf("visit order = %q, want %q", got, want)
	}
}

func TestWalkDoesNotMutateInput(t *testing.T) {
	ast := mustParse(t, "a:1 AND b:2")

	out, err := Walk(ast, func(_ []fql.Node, _ fql.Node, node fql.Node) Action {
		if fql.FieldOf(node) == "b" {
			return Delete
		}
		return Keep
	})
	if err != nil {
		t.Fatalf("walk error: %v", err)
	}

	if got := fql.Render(ast); got != "a:1 AND b:2" {
		t.Errorf("input tree changed: %q", got)
	}
	outBin, ok := out.(*fql.Binary)
	if !ok || outBin.Right != nil {
		t.Errorf("expected deletion hole in the result, got %+v", out)
	}
}

func TestWalkDeleteRoot(t *testing.T) {
	ast := mustParse(t, "a:1")
	out, err := Walk(ast, func(_ []fql.Node, _ fql.Node, _ fql.Node) Action {
		return Delete
	})
	if err != nil {
		t.Fatalf("walk error: %v", err)
	}
	if out != nil {
		t.Errorf("deleting the root should yield the empty tree, got %+v", out)
	}
}

func TestWalkReplace(t *testing.T) {
	ast := mustParse(t, "a:1 AND b:2")
	repl := &fql.Cond{Field: "z", Term: "9"}

	out, err := Walk(ast, func(_ []fql.Node, _ fql.Node, node fql.Node) Action {
		if fql.FieldOf(node) == "b" {
			return Replace(repl)
		}
		return Keep
	})
	if err != nil {
		t.Fatalf("walk error: %v", err)
	}
	if got := fql.Render(out); got != "a:1 AND z:9" {
		t.Errorf("got %q", got)
	}
}

func TestWalkReplaceDescendsIntoReplacement(t *testing.T) {
	ast := mustParse(t, "a:1")
	group := mustParse(t, "b:2 AND c:3")

	visited := make(map[string]bool)
	_, err := Walk(ast, func(_ []fql.Node, _ fql.Node, node fql.Node) Action {
		if f := fql.FieldOf(node); f != "" {
			visited[f] = true
		}
		if fql.FieldOf(node) == "a" {
			return Replace(group)
		}
		return Keep
	})
	if err != nil {
		t.Fatalf("walk error: %v", err)
	}
	if !visited["b"] || !visited["c"] {
		t.Errorf("replacement children not traversed: %v", visited)
	}
}

func TestWalkNilAST(t *testing.T) {
	out, err := Walk(nil, keepAll)
	if err != nil || out != nil {
		t.Errorf("Walk(nil) = (%v, %v), want (nil, nil)", out, err)
	}
}

func TestWalkInvalidAction(t *testing.T) {
	ast := mustParse(t, "a:1")

	_, err := Walk(ast, func(_ []fql.Node, _ fql.Node, _ fql.Node) Action {
		return Action{} // the forbidden zero value
	})
	if !errors.Is(err, ErrBadVisit) {
		t.Errorf("expected ErrBadVisit, got %v", err)
	}

	_, err = Walk(ast, func(_ []fql.Node, _ fql.Node, _ fql.Node) Action {
		return Replace(nil)
	})
	if !errors.Is(err, ErrBadVisit) {
		t.Errorf("expected ErrBadVisit for Replace(nil), got %v", err)
	}
}

func TestNodesSkipsLeaves(t *testing.T) {
	ast := mustParse(t, "a:1 AND (b:2 OR c:3)")

	binaries := 0
	_, err := Nodes(ast, func(_ []fql.Node, _ fql.Node, b *fql.Binary) Action {
		binaries++
		if b.Left == nil {
			t.Errorf("handler saw a node without a populated left slot")
		}
		return Keep
	})
	if err != nil {
		t.Fatalf("nodes error: %v", err)
	}
	if binaries != 2 {
		t.Errorf("handler ran %d times, want 2", binaries)
	}
}
