// Package extract converts Fluent messages to and from index-encoded
// records for machine translation. Encoding replaces every reference
// placeable with a numbered token ({0}, {1}, ...) so translation
// providers cannot mangle variable names, while literal text between
// tokens travels as-is. Decoding substitutes the original references
// back into the (possibly translated) text and renders a canonical
// Fluent message block.
package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ftlkit/ftlkit/ftl"
)

// tokenRe matches an index token. Tokens are emitted without inner
// spaces, so braced Fluent literals like { 3 } never collide.
var tokenRe = regexp.MustCompile(`\{\d+\}`)

// Record is the translatable form of one Fluent message. Text holds the
// index-encoded body and is the only field the translation pipeline
// mutates; OriginalText keeps the pre-translation body with references
// in full Fluent markup for diagnostics and fallback output.
type Record struct {
	// Name is the message identifier.
	Name string
	// Text is the index-encoded body: reference placeables replaced by
	// {i} tokens, attributes appended as "\n.attr = <body>".
	Text string
	// OriginalText mirrors Text with references in original markup.
	OriginalText string
	// Variables lists every variable and message reference name in
	// order of appearance, selectors included. Names may repeat.
	Variables []string
	// TermVariables lists every term reference with its leading dash.
	TermVariables []string
	// AllVariables resolves index tokens: token {i} stands for
	// AllVariables[i]. Entries are bare names for variable and message
	// references and dash-prefixed names for term references, in token
	// assignment order.
	AllVariables []string
	// HasSelect reports that the message contains a select expression,
	// whose selector header travels to the provider verbatim.
	HasSelect bool
	// Skipped lists node kinds the encoder could not represent. Empty
	// on every kind the syntax tree currently produces.
	Skipped []string
}

// ReconstructionError reports a leftover index token after decoding,
// meaning the translated text references a token the record cannot
// resolve.
type ReconstructionError struct {
	// Name is the message whose decode failed.
	Name string
	// Token is the unresolved token, for example "{7}".
	Token string
	// Text is the body after all known substitutions.
	Text string
}

func (e *ReconstructionError) Error() string {
	return fmt.Sprintf("message %q: unresolved token %s in translated text", e.Name, e.Token)
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

// Encode converts one message into a Record. Token indices run across
// the message value and all attributes in a single sequence, so an
// attribute never reuses an index of the value.
func Encode(m *ftl.Message) *Record {
	rec := &Record{Name: m.ID}
	enc := &encoder{rec: rec}

	if m.Value != nil {
		enc.pattern(m.Value, &rec.Text, &rec.OriginalText)
	}
	for _, a := range m.Attributes {
		rec.Text += "\n." + a.ID + " = "
		rec.OriginalText += "\n." + a.ID + " = "
		enc.pattern(a.Value, &rec.Text, &rec.OriginalText)
	}
	return rec
}

// Records encodes every message of a resource in order. Terms and
// comments produce no records; terms are only referenced, never
// translated on their own.
func Records(res *ftl.Resource) []*Record {
	msgs := res.Messages()
	recs := make([]*Record, 0, len(msgs))
	for _, m := range msgs {
		recs = append(recs, Encode(m))
	}
	return recs
}

// encoder carries the shared token counter while walking one message.
type encoder struct {
	rec  *Record
	next int
}

func (e *encoder) pattern(p *ftl.Pattern, text, orig *string) {
	for _, el := range p.Elements {
		switch el := el.(type) {
		case *ftl.Text:
			*text += el.Value
			*orig += el.Value
		case *ftl.Placeable:
			e.expression(el.Expr, text, orig)
		}
	}
}

func (e *encoder) expression(expr ftl.Expression, text, orig *string) {
	switch x := expr.(type) {
	case *ftl.VariableRef:
		e.rec.Variables = append(e.rec.Variables, x.Name)
		e.token(x.Name, text)
		*orig += "{ $" + x.Name + " }"
	case *ftl.MessageRef:
		// Cross-references index like variables and are restored in
		// variable form.
		e.rec.Variables = append(e.rec.Variables, x.Name)
		e.token(x.Name, text)
		*orig += "{ $" + x.Name + " }"
	case *ftl.TermRef:
		e.rec.TermVariables = append(e.rec.TermVariables, "-"+x.Name)
		e.token("-"+x.Name, text)
		*orig += "{ -" + x.Name + " }"
	case *ftl.StringLit, *ftl.NumberLit:
		// Literals consume no index; their braced form is stable
		// through decode because it never looks like a token.
		form := ftl.RenderPlaceable(x)
		*text += form
		*orig += form
	case *ftl.SelectExpr:
		e.selectExpr(x, text, orig)
	default:
		e.rec.Skipped = append(e.rec.Skipped, fmt.Sprintf("%T", x))
	}
}

// token emits the next index token into text and records its receiver.
func (e *encoder) token(receiver string, text *string) {
	*text += "{" + strconv.Itoa(e.next) + "}"
	e.rec.AllVariables = append(e.rec.AllVariables, receiver)
	e.next++
}

// selectExpr encodes a select expression. Variant bodies join the
// shared token sequence so their text is translated and their
// references are protected; the selector header stays verbatim because
// decode never rewrites it and the header must stay parseable.
func (e *encoder) selectExpr(sel *ftl.SelectExpr, text, orig *string) {
	e.rec.HasSelect = true

	switch s := sel.Selector.(type) {
	case *ftl.VariableRef:
		e.rec.Variables = append(e.rec.Variables, s.Name)
	case *ftl.MessageRef:
		e.rec.Variables = append(e.rec.Variables, s.Name)
	case *ftl.TermRef:
		e.rec.TermVariables = append(e.rec.TermVariables, "-"+s.Name)
	}

	header := "{ " + ftl.RenderExpression(sel.Selector) + " ->\n"
	*text += header
	*orig += header
	for _, v := range sel.Variants {
		row := "   ["
		if v.Default {
			row = "  *["
		}
		row += v.Key + "] "
		*text += row
		*orig += row
		e.pattern(v.Value, text, orig)
		*text += "\n"
		*orig += "\n"
	}
	*text += "}"
	*orig += "}"
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

// Decode renders the record's Text, translated or not, as a canonical
// Fluent message block. Every token {i} is replaced by its receiver in
// reference form: "{ $name }" for variables, "{ -name }" for terms. A
// token without a receiver fails with ReconstructionError rather than
// leaking into the output catalog.
func Decode(rec *Record) (string, error) {
	body := rec.Text
	for i, receiver := range rec.AllVariables {
		body = strings.ReplaceAll(body, "{"+strconv.Itoa(i)+"}", reference(receiver))
	}
	if stray := tokenRe.FindString(body); stray != "" {
		return "", &ReconstructionError{Name: rec.Name, Token: stray, Text: body}
	}
	return block(rec.Name, body), nil
}

// DecodeOriginal renders the untranslated body. Used as the fallback
// when a batch fails and the target catalog still needs the message.
func DecodeOriginal(rec *Record) string {
	return block(rec.Name, rec.OriginalText)
}

// reference renders a receiver name as a Fluent reference placeable.
func reference(name string) string {
	if strings.HasPrefix(name, "-") {
		return "{ " + name + " }"
	}
	return "{ $" + name + " }"
}

// block renders "name =" with the body on 4-space continuation lines,
// the same layout ftl.RenderMessage produces.
func block(name, body string) string {
	return name + " =\n    " + strings.ReplaceAll(body, "\n", "\n    ")
}
