// Package ftl implements reading and writing of Fluent (.ftl) message
// catalogs following the Project Fluent syntax: messages and terms with
// placeable expressions, attributes, and select expressions with variants.
package ftl

// Entry is a top-level entry in a Fluent resource.
type Entry interface {
	entry()
}

// Resource represents a parsed .ftl file.
type Resource struct {
	// Entries are the top-level entries in source order.
	Entries []Entry
}

// Messages returns the message entries in source order.
func (r *Resource) Messages() []*Message {
	var msgs []*Message
	for _, e := range r.Entries {
		if m, ok := e.(*Message); ok {
			msgs = append(msgs, m)
		}
	}
	return msgs
}

// Message finds a message entry by its identifier.
func (r *Resource) Message(id string) *Message {
	for _, e := range r.Entries {
		if m, ok := e.(*Message); ok && m.ID == id {
			return m
		}
	}
	return nil
}

// Terms returns the term entries in source order.
func (r *Resource) Terms() []*Term {
	var terms []*Term
	for _, e := range r.Entries {
		if t, ok := e.(*Term); ok {
			terms = append(terms, t)
		}
	}
	return terms
}

// Message is a named translatable unit with an optional value pattern and
// optional attributes.
type Message struct {
	// ID is the message identifier.
	ID string
	// Value is the body pattern, nil for attribute-only messages.
	Value *Pattern
	// Attributes are the .attr sub-patterns in source order.
	Attributes []*Attribute
}

// Term is a reusable reference definition (-term = ...). Terms always
// carry a value.
type Term struct {
	ID         string
	Value      *Pattern
	Attributes []*Attribute
}

// Comment is a standalone comment block. Text holds the raw comment lines
// verbatim, including the leading #/##/### markers.
type Comment struct {
	Text string
}

func (*Message) entry() {}
func (*Term) entry()    {}
func (*Comment) entry() {}

// Attribute is a named sub-pattern of a message or term (.id = pattern).
type Attribute struct {
	ID    string
	Value *Pattern
}

// Pattern is a sequence of literal text runs and placeables.
type Pattern struct {
	Elements []PatternElement
}

// PatternElement is either literal Text or a Placeable.
type PatternElement interface {
	patternElement()
}

// Text is a contiguous literal run inside a pattern. Newlines separate
// the logical lines of a multiline value.
type Text struct {
	Value string
}

// Placeable is an embedded expression inside a pattern ({ ... }).
type Placeable struct {
	Expr Expression
}

func (*Text) patternElement()      {}
func (*Placeable) patternElement() {}

// Expression is the closed set of placeable expressions: VariableRef,
// TermRef, MessageRef, StringLit, NumberLit, and SelectExpr.
type Expression interface {
	expression()
}

// VariableRef references a user-supplied variable ($name).
type VariableRef struct {
	Name string
}

// TermRef references a term. Name is stored without the leading dash.
type TermRef struct {
	Name string
}

// MessageRef references another message by identifier.
type MessageRef struct {
	Name string
}

// StringLit is a quoted string literal; Value is the unescaped content.
type StringLit struct {
	Value string
}

// NumberLit is a number literal; Value keeps the source spelling.
type NumberLit struct {
	Value string
}

// SelectExpr chooses among variants based on a selector value.
type SelectExpr struct {
	Selector Expression
	Variants []*Variant
}

func (*VariableRef) expression() {}
func (*TermRef) expression()     {}
func (*MessageRef) expression()  {}
func (*StringLit) expression()   {}
func (*NumberLit) expression()   {}
func (*SelectExpr) expression()  {}

// Variant is one branch of a select expression.
type Variant struct {
	// Key is the variant key, an identifier or number literal.
	Key string
	// Default marks the *[key] fallback variant.
	Default bool
	// Value is the variant body pattern.
	Value *Pattern
}
