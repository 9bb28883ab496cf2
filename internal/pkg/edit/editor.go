package edit

import (
	"strings"

	"github.com/coffersTech/filtq/internal/pkg/fql"
)

// DeleteField removes every clause bound to any of the given fields and
// repairs the remaining tree. A node is removed only when it itself
// carries a matching field tag; untagged descendants disappear with it,
// but are never matched through an ancestor.
func DeleteField(ast fql.Node, fields ...string) (fql.Node, error) {
	drop := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f != "" {
			drop[f] = true
		}
	}

	out, err := Walk(ast, func(_ []fql.Node, _ fql.Node, node fql.Node) Action {
		if drop[fql.FieldOf(node)] {
			return Delete
		}
		return Keep
	})
	if err != nil {
		return nil, err
	}
	return Normalize(out)
}

// SetFilter replaces whatever the query said about field with the single
// value, negated on request. Everything else in the query is preserved
// and conjoined.
func SetFilter(ast fql.Node, field, value string, negated bool) (fql.Node, error) {
	remainder, err := DeleteField(ast, field)
	if err != nil {
		return nil, err
	}
	clause := field + ":" + RenderValueForQuery(value)
	if negated {
		clause = "(NOT " + clause + ")"
	}
	return extendQuery(remainder, clause)
}

// ExtendFilter unions value into the field's existing alternatives (of
// the same negation polarity). All surviving alternatives collapse into
// one disjunct group, with the new value last; adding a value that is
// already present changes nothing but the grouping.
func ExtendFilter(ast fql.Node, field, value string, negated bool) (fql.Node, error) {
	terms := CollectTermsForField(ast, field, negated)

	present := false
	for _, t := range terms {
		if t == value {
			present = true
			break
		}
	}
	if !present {
		terms = append(terms, value)
	}

	var clause string
	if len(terms) == 1 {
		clause = field + ":" + RenderValueForQuery(terms[0])
	} else {
		rendered := make([]string, len(terms))
		for i, t := range terms {
			rendered[i] = RenderValueForQuery(t)
		}
		clause = field + ":(" + strings.Join(rendered, " OR ") + ")"
	}
	if negated {
		clause = "(NOT " + clause + ")"
	}

	remainder, err := DeleteField(ast, field)
	if err != nil {
		return nil, err
	}
	return extendQuery(remainder, clause)
}

// extendQuery conjoins a freshly rendered clause onto ast by splicing
// text and re-parsing, which delegates precedence and grouping to the
// grammar itself. A plain top-level OR must be parenthesized first,
// since AND binds tighter and the remainder has to stay one operand.
func extendQuery(ast fql.Node, clause string) (fql.Node, error) {
	text := fql.Render(ast)
	if text == "" {
		return fql.Parse(clause)
	}
	if b, ok := ast.(*fql.Binary); ok && b.Field == "" && b.Op == fql.OpOr && !b.Negated {
		text = "(" + text + ")"
	}
	return fql.Parse(text + " AND " + clause)
}
