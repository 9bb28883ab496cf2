package fql

import "testing"

func TestRender(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"a:b", "a:b"},
		{"hello", "hello"},
		{"a:b AND c:d", "a:b AND c:d"},
		{"a:2 b:3 c:4", "a:2 b:3 c:4"}, // implicit ANDs stay spaces
		{"a:b OR c:d", "a:b OR c:d"},
		{"level:(INFO OR DEBUG)", "level:(INFO OR DEBUG)"},
		{"level:(INFO)", "level:INFO"}, // single alternative collapses
		{"NOT level:INFO", "(NOT level:INFO)"},
		{"(NOT level:(INFO OR DEBUG))", "(NOT level:(INFO OR DEBUG))"},
		{"a AND (b:1 OR b:2)", "a AND (b:1 OR b:2)"}, // OR operand keeps parens under AND
		{"(a AND b) OR c", "a AND b OR c"},           // AND binds tighter, parens drop
		{`msg:"say \"hi\""`, `msg:"say \"hi\""`},
		{"d:[1 TO 4]", "d:[1 TO 4]"},
		{"title:foo^2", "title:foo^2"},
		{"a NOT b", "a (NOT b)"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			node, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			if got := Render(node); got != tt.want {
				t.Errorf("Render(Parse(%q)) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// Rendered output must re-parse to a tree that renders identically, for
// every shape the editor can hand back.
func TestRenderRoundTrip(t *testing.T) {
	inputs := []string{
		"a:b AND c:d",
		"a:2 b:3 c:4 d:[1 TO 4]",
		"level:(INFO OR DEBUG OR WARN)",
		"(NOT level:(INFO OR DEBUG))",
		"(a:1 OR b:2) AND c:3",
		"a NOT b",
		`b:"foo bar"`,
		"service:order* AND level:ERROR^2",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			first, err := Parse(input)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			text := Render(first)

			second, err := Parse(text)
			if err != nil {
				t.Fatalf("re-parse error for %q: %v", text, err)
			}
			if again := Render(second); again != text {
				t.Errorf("round trip unstable: %q -> %q", text, again)
			}
		})
	}
}
