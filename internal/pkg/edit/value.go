package edit

import (
	"strings"
	"unicode"

	"github.com/coffersTech/filtq/internal/pkg/fql"
)

// queryMetachars are the characters the grammar assigns meaning to; a
// value containing any of them must travel as a quoted phrase.
const queryMetachars = "+-!(){}[]^\"?:\\&|'/*~"

// NeedsQuotes reports whether value cannot appear as a bare term in
// synthesized query text. Reserved keywords match case-sensitively:
// "OR" needs quoting, "or" does not. The empty string always needs
// quotes, since a bare "field:" would not survive re-parsing.
func NeedsQuotes(value string) bool {
	if value == "" {
		return true
	}
	switch value {
	case "OR", "AND", "NOT":
		return true
	}
	if strings.ContainsAny(value, queryMetachars) {
		return true
	}
	return strings.IndexFunc(value, unicode.IsSpace) >= 0
}

// RenderValueForQuery renders value as grammar-valid query text: bare
// when safe, otherwise escaped and double-quoted. The result is later
// re-parsed, so it must hold up for any input.
func RenderValueForQuery(value string) string {
	if !NeedsQuotes(value) {
		return value
	}
	return `"` + fql.EscapePhrase(value) + `"`
}
