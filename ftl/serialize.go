package ftl

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// Serialize renders the resource in canonical form: each message as
// "id =" with the body on 4-space-indented continuation lines, entries
// separated by blank lines.
func Serialize(r *Resource) string {
	var b strings.Builder
	for i, e := range r.Entries {
		if i > 0 {
			b.WriteString("\n")
		}
		switch e := e.(type) {
		case *Comment:
			b.WriteString(e.Text)
		case *Message:
			b.WriteString(RenderMessage(e.ID, e.Value, e.Attributes))
		case *Term:
			b.WriteString(RenderMessage("-"+e.ID, e.Value, e.Attributes))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Write writes the resource to a writer in canonical form.
func (r *Resource) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(Serialize(r)); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteFile writes the resource to disk.
func (r *Resource) WriteFile(path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	return r.Write(out)
}

// RenderMessage renders one entry in canonical block form. The body and
// every attribute line are indented by four spaces under the "id =" header.
func RenderMessage(id string, value *Pattern, attrs []*Attribute) string {
	var body strings.Builder
	if value != nil {
		body.WriteString(RenderPattern(value))
	}
	for _, a := range attrs {
		body.WriteString("\n.")
		body.WriteString(a.ID)
		body.WriteString(" = ")
		body.WriteString(RenderPattern(a.Value))
	}
	return id + " =\n    " + strings.ReplaceAll(body.String(), "\n", "\n    ")
}

// RenderPattern renders a pattern in canonical source form.
func RenderPattern(p *Pattern) string {
	var b strings.Builder
	for _, el := range p.Elements {
		switch el := el.(type) {
		case *Text:
			b.WriteString(el.Value)
		case *Placeable:
			b.WriteString(RenderPlaceable(el.Expr))
		}
	}
	return b.String()
}

// RenderPlaceable renders an expression with its enclosing braces.
// Inline expressions render as "{ expr }"; select expressions render as
// their multi-line variant block.
func RenderPlaceable(expr Expression) string {
	if sel, ok := expr.(*SelectExpr); ok {
		return renderSelect(sel)
	}
	return "{ " + RenderExpression(expr) + " }"
}

// RenderExpression renders an inline expression without braces. A select
// expression renders as its full braced block, braces being integral to
// the variant syntax.
func RenderExpression(expr Expression) string {
	switch e := expr.(type) {
	case *VariableRef:
		return "$" + e.Name
	case *TermRef:
		return "-" + e.Name
	case *MessageRef:
		return e.Name
	case *StringLit:
		return `"` + escapeString(e.Value) + `"`
	case *NumberLit:
		return e.Value
	case *SelectExpr:
		return renderSelect(e)
	}
	return ""
}

// renderSelect renders a select expression with one variant per row.
// The default variant's * sits one column left so the [ brackets align.
func renderSelect(sel *SelectExpr) string {
	var b strings.Builder
	b.WriteString("{ ")
	b.WriteString(RenderExpression(sel.Selector))
	b.WriteString(" ->\n")
	for _, v := range sel.Variants {
		if v.Default {
			b.WriteString("  *[")
		} else {
			b.WriteString("   [")
		}
		b.WriteString(v.Key)
		b.WriteString("] ")
		b.WriteString(RenderPattern(v.Value))
		b.WriteString("\n")
	}
	b.WriteString("}")
	return b.String()
}

func escapeString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
