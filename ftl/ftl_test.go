package ftl

import (
	"errors"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

func TestParseSimpleMessage(t *testing.T) {
	t.Parallel()

	res, err := ParseString("greeting = Hello, { $name }!\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	msgs := res.Messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	m := msgs[0]
	if m.ID != "greeting" {
		t.Errorf("ID = %q, want greeting", m.ID)
	}
	if len(m.Value.Elements) != 3 {
		t.Fatalf("got %d pattern elements, want 3", len(m.Value.Elements))
	}
	if txt, ok := m.Value.Elements[0].(*Text); !ok || txt.Value != "Hello, " {
		t.Errorf("element 0 = %#v, want Text %q", m.Value.Elements[0], "Hello, ")
	}
	pl, ok := m.Value.Elements[1].(*Placeable)
	if !ok {
		t.Fatalf("element 1 = %#v, want Placeable", m.Value.Elements[1])
	}
	if v, ok := pl.Expr.(*VariableRef); !ok || v.Name != "name" {
		t.Errorf("placeable = %#v, want VariableRef name", pl.Expr)
	}
	if txt, ok := m.Value.Elements[2].(*Text); !ok || txt.Value != "!" {
		t.Errorf("element 2 = %#v, want Text %q", m.Value.Elements[2], "!")
	}
}

func TestParseMultilineValue(t *testing.T) {
	t.Parallel()

	src := "about =\n    Line one\n    Line two\n"
	res, err := ParseString(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	m := res.Message("about")
	if m == nil {
		t.Fatal("message about not found")
	}
	if got := RenderPattern(m.Value); got != "Line one\nLine two" {
		t.Errorf("value = %q, want %q", got, "Line one\nLine two")
	}
}

func TestParseBlankLineInsideValue(t *testing.T) {
	t.Parallel()

	src := "para =\n    First\n\n    Second\n"
	res, err := ParseString(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if len(res.Entries) != 1 {
		t.Fatalf("got %d entries, want 1 (blank line belongs to the block)", len(res.Entries))
	}
	m := res.Message("para")
	if got := RenderPattern(m.Value); got != "First\n\nSecond" {
		t.Errorf("value = %q, want %q", got, "First\n\nSecond")
	}
}

func TestParseAttributes(t *testing.T) {
	t.Parallel()

	src := "login = Sign in\n    .title = Account { $user }\n    .hint = Use your email\n"
	res, err := ParseString(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	m := res.Message("login")
	if m == nil {
		t.Fatal("message login not found")
	}
	if got := RenderPattern(m.Value); got != "Sign in" {
		t.Errorf("value = %q, want %q", got, "Sign in")
	}
	if len(m.Attributes) != 2 {
		t.Fatalf("got %d attributes, want 2", len(m.Attributes))
	}
	if m.Attributes[0].ID != "title" || m.Attributes[1].ID != "hint" {
		t.Errorf("attribute IDs = %q, %q", m.Attributes[0].ID, m.Attributes[1].ID)
	}
	if got := RenderPattern(m.Attributes[0].Value); got != "Account { $user }" {
		t.Errorf("title = %q", got)
	}
}

func TestParseAttributeOnlyMessage(t *testing.T) {
	t.Parallel()

	src := "placeholder =\n    .text = Type here\n"
	res, err := ParseString(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	m := res.Message("placeholder")
	if m == nil {
		t.Fatal("message placeholder not found")
	}
	if m.Value != nil {
		t.Errorf("value = %#v, want nil", m.Value)
	}
	if len(m.Attributes) != 1 || m.Attributes[0].ID != "text" {
		t.Fatalf("attributes = %#v", m.Attributes)
	}
}

func TestParseTermAndReferences(t *testing.T) {
	t.Parallel()

	src := "-brand = FluentApp\n\nwelcome = Try { -brand } or read { docs } for { \"x86_64\" } builds\n"
	res, err := ParseString(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	terms := res.Terms()
	if len(terms) != 1 || terms[0].ID != "brand" {
		t.Fatalf("terms = %#v", terms)
	}
	if got := RenderPattern(terms[0].Value); got != "FluentApp" {
		t.Errorf("term value = %q", got)
	}

	m := res.Message("welcome")
	var exprs []Expression
	for _, el := range m.Value.Elements {
		if pl, ok := el.(*Placeable); ok {
			exprs = append(exprs, pl.Expr)
		}
	}
	if len(exprs) != 3 {
		t.Fatalf("got %d placeables, want 3", len(exprs))
	}
	if ref, ok := exprs[0].(*TermRef); !ok || ref.Name != "brand" {
		t.Errorf("placeable 0 = %#v, want TermRef brand", exprs[0])
	}
	if ref, ok := exprs[1].(*MessageRef); !ok || ref.Name != "docs" {
		t.Errorf("placeable 1 = %#v, want MessageRef docs", exprs[1])
	}
	if lit, ok := exprs[2].(*StringLit); !ok || lit.Value != "x86_64" {
		t.Errorf("placeable 2 = %#v, want StringLit x86_64", exprs[2])
	}
}

func TestParseSelectExpression(t *testing.T) {
	t.Parallel()

	src := "emails =\n" +
		"    { $count ->\n" +
		"        [one] You have one email\n" +
		"       *[other] You have { $count } emails\n" +
		"    }\n"
	res, err := ParseString(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	m := res.Message("emails")
	if len(m.Value.Elements) != 1 {
		t.Fatalf("got %d elements, want 1", len(m.Value.Elements))
	}
	sel, ok := m.Value.Elements[0].(*Placeable).Expr.(*SelectExpr)
	if !ok {
		t.Fatalf("expression = %#v, want SelectExpr", m.Value.Elements[0])
	}
	if v, ok := sel.Selector.(*VariableRef); !ok || v.Name != "count" {
		t.Errorf("selector = %#v, want $count", sel.Selector)
	}
	if len(sel.Variants) != 2 {
		t.Fatalf("got %d variants, want 2", len(sel.Variants))
	}
	if sel.Variants[0].Key != "one" || sel.Variants[0].Default {
		t.Errorf("variant 0 = %+v", sel.Variants[0])
	}
	if sel.Variants[1].Key != "other" || !sel.Variants[1].Default {
		t.Errorf("variant 1 = %+v", sel.Variants[1])
	}
	if got := RenderPattern(sel.Variants[1].Value); got != "You have { $count } emails" {
		t.Errorf("default variant body = %q", got)
	}
}

func TestParseNestedSelect(t *testing.T) {
	t.Parallel()

	src := "status =\n" +
		"    { $online ->\n" +
		"       [yes] Online { $since ->\n" +
		"       [today] since today\n" +
		"      *[other] for a while\n" +
		"    }\n" +
		"      *[no] Offline\n" +
		"    }\n"
	res, err := ParseString(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	m := res.Message("status")
	outer, ok := m.Value.Elements[0].(*Placeable).Expr.(*SelectExpr)
	if !ok {
		t.Fatalf("outer expression is not a select")
	}
	if len(outer.Variants) != 2 {
		t.Fatalf("outer variants = %d, want 2", len(outer.Variants))
	}

	var inner *SelectExpr
	for _, el := range outer.Variants[0].Value.Elements {
		if pl, ok := el.(*Placeable); ok {
			if s, ok := pl.Expr.(*SelectExpr); ok {
				inner = s
			}
		}
	}
	if inner == nil {
		t.Fatal("nested select not found in variant [yes]")
	}
	if len(inner.Variants) != 2 || inner.Variants[0].Key != "today" {
		t.Fatalf("nested variants = %+v", inner.Variants)
	}
}

func TestParseComments(t *testing.T) {
	t.Parallel()

	src := "# Catalog header\n## Section\n\nmsg = Value\n"
	res, err := ParseString(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if len(res.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(res.Entries))
	}
	c, ok := res.Entries[0].(*Comment)
	if !ok {
		t.Fatalf("entry 0 = %#v, want Comment", res.Entries[0])
	}
	if c.Text != "# Catalog header\n## Section" {
		t.Errorf("comment = %q", c.Text)
	}
}

func TestParseStringEscapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "quote and backslash", src: `m = { "say \"hi\" \\ now" }`, want: `say "hi" \ now`},
		{name: "unicode 4", src: `m = { "é" }`, want: "é"},
		{name: "unicode 6", src: `m = { "\U01F600" }`, want: "\U0001F600"},
		{name: "empty", src: `m = { "" }`, want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := ParseString(tc.src + "\n")
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			lit, ok := res.Message("m").Value.Elements[0].(*Placeable).Expr.(*StringLit)
			if !ok {
				t.Fatalf("not a string literal")
			}
			if lit.Value != tc.want {
				t.Errorf("value = %q, want %q", lit.Value, tc.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{name: "missing equals", src: "greeting\n", msg: "expected ="},
		{name: "bad identifier", src: "9lives = meow\n", msg: "invalid identifier"},
		{name: "empty message", src: "empty =\n", msg: "no value and no attributes"},
		{name: "term without value", src: "-brand =\n    .short = m\n", msg: "must have a value"},
		{name: "unterminated placeable", src: "m = { $name\n", msg: "unterminated placeable"},
		{name: "unbalanced close", src: "m = oops }\n", msg: "unbalanced }"},
		{name: "indented start", src: "    stray = x\n", msg: "indented line"},
		{name: "empty placeable", src: "m = {  }\n", msg: "empty placeable"},
		{name: "no default variant", src: "m =\n    { $n ->\n       [one] x\n    }\n", msg: "default"},
		{name: "bad variant key", src: "m =\n    { $n ->\n      *[bad key] x\n    }\n", msg: "invalid variant key"},
		{name: "attribute without value", src: "m = v\n    .empty =\n", msg: "has no value"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseString(tc.src)
			if err == nil {
				t.Fatalf("expected error, got none")
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error %T is not *ParseError", err)
			}
			if !strings.Contains(pe.Msg, tc.msg) {
				t.Errorf("error %q does not mention %q", pe.Msg, tc.msg)
			}
		})
	}
}

func TestParseErrorLine(t *testing.T) {
	t.Parallel()

	_, err := ParseString("ok = fine\n\nbroken\n")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error %T is not *ParseError", err)
	}
	if pe.Line != 3 {
		t.Errorf("Line = %d, want 3", pe.Line)
	}
}

// ---------------------------------------------------------------------------
// Serialization
// ---------------------------------------------------------------------------

func TestSerializeRoundTrip(t *testing.T) {
	t.Parallel()

	// Canonical sources must survive Parse -> Serialize byte for byte.
	tests := []struct {
		name string
		src  string
	}{
		{name: "simple", src: "greeting =\n    Hello, { $name }!\n"},
		{name: "multiline", src: "about =\n    Line one\n    Line two\n"},
		{name: "attributes", src: "login =\n    Sign in\n    .title = Account { $user }\n"},
		{name: "term and refs", src: "-brand =\n    FluentApp\n\nwelcome =\n    Try { -brand } on { \"x86_64\" } build { 2 }\n"},
		{name: "comment", src: "# header\n\nmsg =\n    Value\n"},
		{
			name: "select",
			src: "emails =\n" +
				"    { $count ->\n" +
				"       [one] You have one email\n" +
				"      *[other] You have { $count } emails\n" +
				"    }\n",
		},
		{
			name: "select with tail text",
			src: "disk =\n" +
				"    Space: { $size ->\n" +
				"       [0] none\n" +
				"      *[other] { $size } GiB\n" +
				"    } free\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := ParseString(tc.src)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got := Serialize(res); got != tc.src {
				t.Errorf("round trip mismatch:\ngot:\n%s\nwant:\n%s", got, tc.src)
			}
		})
	}
}

func TestSerializeStable(t *testing.T) {
	t.Parallel()

	// Non-canonical input normalizes once, then stays fixed.
	src := "inline = One-liner with { $var }\n"
	res, err := ParseString(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	first := Serialize(res)
	if first == src {
		t.Fatalf("expected normalization of inline form, got identical output")
	}

	res2, err := ParseString(first)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if second := Serialize(res2); second != first {
		t.Errorf("serialization not stable:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}

func TestRenderExpression(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		expr Expression
		want string
	}{
		{name: "variable", expr: &VariableRef{Name: "user"}, want: "$user"},
		{name: "term", expr: &TermRef{Name: "brand"}, want: "-brand"},
		{name: "message", expr: &MessageRef{Name: "other"}, want: "other"},
		{name: "string", expr: &StringLit{Value: `a"b\c`}, want: `"a\"b\\c"`},
		{name: "number", expr: &NumberLit{Value: "3.14"}, want: "3.14"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := RenderExpression(tc.expr); got != tc.want {
				t.Errorf("RenderExpression = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	res, err := ParseString("msg =\n    Value\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	path := t.TempDir() + "/out.ftl"
	if err := res.WriteFile(path); err != nil {
		t.Fatalf("write: %v", err)
	}

	back, err := ParseFile(path)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if back.Message("msg") == nil {
		t.Error("message missing after write/read cycle")
	}
}
