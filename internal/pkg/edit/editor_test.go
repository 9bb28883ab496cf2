package edit

import (
	"reflect"
	"testing"

	"github.com/coffersTech/filtq/internal/pkg/fql"
)

func render(t *testing.T, n fql.Node, err error) string {
	t.Helper()
	if err != nil {
		t.Fatalf("edit error: %v", err)
	}
	return fql.Render(n)
}

func TestDeleteField(t *testing.T) {
	tests := []struct {
		query  string
		fields []string
		want   string
	}{
		{"a:b OR c:d", []string{"a"}, "c:d"},
		{"a:2 b:3 c:4 d:[1 TO 4]", []string{"b"}, "a:2 c:4 d:[1 TO 4]"},
		{"a:b", []string{"a"}, ""},
		{"a:b AND c:d", []string{"a", "c"}, ""},
		{"a:b AND c:d", []string{"x"}, "a:b AND c:d"},
		{"level:(INFO OR DEBUG) AND svc:api", []string{"level"}, "svc:api"},
		// Only the node's own field tag matters; the group dies as a
		// whole, its untagged children with it.
		{"hello AND (b:15 OR c:d)", []string{"b"}, "hello AND c:d"},
		{"(NOT level:INFO) AND svc:api", []string{"level"}, "svc:api"},
		{"", []string{"a"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			ast := mustParse(t, tt.query)
			out, err := DeleteField(ast, tt.fields...)
			if got := render(t, out, err); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDeleteFieldIdempotent(t *testing.T) {
	ast := mustParse(t, "a:1 AND (b:2 OR b:3) AND c:4")

	once, err := DeleteField(ast, "b")
	if err != nil {
		t.Fatalf("edit error: %v", err)
	}
	twice, err := DeleteField(once, "b")
	if err != nil {
		t.Fatalf("edit error: %v", err)
	}
	if fql.Render(once) != fql.Render(twice) {
		t.Errorf("not idempotent: %q vs %q", fql.Render(once), fql.Render(twice))
	}
}

func TestDeleteFieldCompleteness(t *testing.T) {
	ast := mustParse(t, "b:1 OR (NOT b:2) OR b:(3 OR 4) OR c:5")

	out, err := DeleteField(ast, "b")
	if err != nil {
		t.Fatalf("edit error: %v", err)
	}
	if terms := CollectTermsForField(out, "b", false); terms != nil {
		t.Errorf("positive terms survived: %v", terms)
	}
	if terms := CollectTermsForField(out, "b", true); terms != nil {
		t.Errorf("negated terms survived: %v", terms)
	}
}

func TestSetFilter(t *testing.T) {
	tests := []struct {
		query   string
		field   string
		value   string
		negated bool
		want    string
	}{
		{"hello AND (b:15 OR c:d)", "b", "13", false, "hello AND c:d AND b:13"},
		{"", "b", "foo bar", false, `b:"foo bar"`},
		{"", "level", "INFO", true, "(NOT level:INFO)"},
		{"a:1", "b", "2", false, "a:1 AND b:2"},
		// A plain top-level OR is one operand of the new AND.
		{"a:1 OR c:2", "b", "3", false, "(a:1 OR c:2) AND b:3"},
		{"level:(INFO OR DEBUG)", "level", "WARN", false, "level:WARN"},
	}

	for _, tt := range tests {
		t.Run(tt.query+"/"+tt.field, func(t *testing.T) {
			ast := mustParse(t, tt.query)
			out, err := SetFilter(ast, tt.field, tt.value, tt.negated)
			if got := render(t, out, err); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSetFilterReplacesEntirely(t *testing.T) {
	ast := mustParse(t, "svc:api")

	out, err := SetFilter(ast, "level", "INFO", false)
	if err != nil {
		t.Fatalf("edit error: %v", err)
	}
	out, err = SetFilter(out, "level", "DEBUG", false)
	if err != nil {
		t.Fatalf("edit error: %v", err)
	}

	if terms := CollectTermsForField(out, "level", false); !reflect.DeepEqual(terms, []string{"DEBUG"}) {
		t.Errorf("expected only the new value, got %v", terms)
	}
	if got := fql.Render(out); got != "svc:api AND level:DEBUG" {
		t.Errorf("got %q", got)
	}
}

func TestExtendFilter(t *testing.T) {
	tests := []struct {
		query   string
		field   string
		value   string
		negated bool
		want    string
	}{
		{"level:INFO", "level", "DEBUG", false, "level:(INFO OR DEBUG)"},
		{"(NOT level:INFO)", "level", "DEBUG", true, "(NOT level:(INFO OR DEBUG))"},
		{"", "level", "INFO", false, "level:INFO"},
		{"svc:api AND level:INFO", "level", "WARN", false, "svc:api AND level:(INFO OR WARN)"},
		// Existing disjuncts collapse into one group.
		{"level:INFO OR level:WARN", "level", "ERROR", false, "level:(INFO OR WARN OR ERROR)"},
		// Values that need quoting are quoted inside the group.
		{"env:prod", "env", "eu west", false, `env:(prod OR "eu west")`},
	}

	for _, tt := range tests {
		t.Run(tt.query+"/"+tt.value, func(t *testing.T) {
			ast := mustParse(t, tt.query)
			out, err := ExtendFilter(ast, tt.field, tt.value, tt.negated)
			if got := render(t, out, err); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtendFilterSetSemantics(t *testing.T) {
	ast := mustParse(t, "level:(INFO OR DEBUG)")

	out, err := ExtendFilter(ast, "level", "DEBUG", false)
	if err != nil {
		t.Fatalf("edit error: %v", err)
	}
	terms := CollectTermsForField(out, "level", false)
	if !reflect.DeepEqual(terms, []string{"INFO", "DEBUG"}) {
		t.Errorf("duplicate introduced: %v", terms)
	}
}

func TestExtendFilterMonotonic(t *testing.T) {
	ast := mustParse(t, "level:INFO AND svc:api")

	before := CollectTermsForField(ast, "level", false)
	out, err := ExtendFilter(ast, "level", "WARN", false)
	if err != nil {
		t.Fatalf("edit error: %v", err)
	}
	after := CollectTermsForField(out, "level", false)

	want := append(append([]string{}, before...), "WARN")
	if !reflect.DeepEqual(after, want) {
		t.Errorf("got %v, want %v", after, want)
	}
	// Other fields survive untouched.
	if svc := CollectTermsForField(out, "svc", false); !reflect.DeepEqual(svc, []string{"api"}) {
		t.Errorf("svc terms disturbed: %v", svc)
	}
}

func TestSetFilterEmptyValue(t *testing.T) {
	out, err := SetFilter(nil, "b", "", false)
	if err != nil {
		t.Fatalf("edit error: %v", err)
	}
	if got := fql.Render(out); got != `b:""` {
		t.Errorf("got %q, want %q", got, `b:""`)
	}
	if terms := CollectTermsForField(out, "b", false); !reflect.DeepEqual(terms, []string{""}) {
		t.Errorf("terms = %q, want the empty term", terms)
	}
}

func TestExtendFilterEmptyValueAlternative(t *testing.T) {
	ast := mustParse(t, `f:""`)

	out, err := ExtendFilter(ast, "f", "x", false)
	if err != nil {
		t.Fatalf("edit error: %v", err)
	}
	if got := fql.Render(out); got != `f:("" OR x)` {
		t.Errorf("got %q, want %q", got, `f:("" OR x)`)
	}

	// Extending with the empty value again is a no-op on the term set.
	out, err = ExtendFilter(out, "f", "", false)
	if err != nil {
		t.Fatalf("edit error: %v", err)
	}
	terms := CollectTermsForField(out, "f", false)
	if !reflect.DeepEqual(terms, []string{"", "x"}) {
		t.Errorf("terms = %q, want [\"\" x]", terms)
	}
}

func TestExtendFilterNegatedCollectsOnlyNegated(t *testing.T) {
	// Extending the negated side seeds the new group from the negated
	// terms alone; the field's old positive clause is replaced outright.
	ast := mustParse(t, "level:INFO")

	out, err := ExtendFilter(ast, "level", "DEBUG", true)
	if err != nil {
		t.Fatalf("edit error: %v", err)
	}
	if got := fql.Render(out); got != "(NOT level:DEBUG)" {
		t.Errorf("got %q, want %q", got, "(NOT level:DEBUG)")
	}
	if terms := CollectTermsForField(out, "level", true); !reflect.DeepEqual(terms, []string{"DEBUG"}) {
		t.Errorf("negated terms = %v, want [DEBUG]", terms)
	}
}

func TestEditorGrammarErrorSurfaces(t *testing.T) {
	// Values are quoted into safety, but a field name carrying grammar
	// metacharacters makes the synthesized clause unparseable; the
	// parser's rejection reaches the caller unchanged.
	_, err := SetFilter(nil, "b(", "x", false)
	if err == nil {
		t.Fatal("expected a parse error for an unquotable field name")
	}
}
