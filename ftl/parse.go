package ftl

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// ParseError describes a syntax error in an .ftl resource.
// Parsing stops at the first error; a malformed entry is fatal for the file.
type ParseError struct {
	// Path is the source file path, empty when parsing from memory.
	Path string
	// Line is the 1-based line number of the offending entry.
	Line int
	// Msg describes the problem.
	Msg string
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

var (
	identRe   = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)
	numberRe  = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)
	attrRe    = regexp.MustCompile(`^\.([a-zA-Z][a-zA-Z0-9_-]*)[ \t]*= ?(.*)$`)
	variantRe = regexp.MustCompile(`^(\*?)\[[ \t]*([^\]]*?)[ \t]*\] ?(.*)$`)
)

// Parse reads a Fluent resource from a reader.
func Parse(r io.Reader) (*Resource, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading resource: %w", err)
	}
	return parse(string(data), "")
}

// ParseFile reads a Fluent resource from disk.
func ParseFile(path string) (*Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(string(data), path)
}

// ParseString parses a Fluent resource held in memory.
func ParseString(src string) (*Resource, error) {
	return parse(src, "")
}

func parse(src, path string) (*Resource, error) {
	lines := strings.Split(src, "\n")
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}

	res := &Resource{}
	i := 0
	for i < len(lines) {
		line := lines[i]

		if strings.TrimSpace(line) == "" {
			i++
			continue
		}

		// Comment block: consecutive #/##/### lines.
		if strings.HasPrefix(line, "#") {
			start := i
			for i < len(lines) && strings.HasPrefix(lines[i], "#") {
				i++
			}
			res.Entries = append(res.Entries, &Comment{Text: strings.Join(lines[start:i], "\n")})
			continue
		}

		if isIndented(line) {
			return nil, &ParseError{Path: path, Line: i + 1, Msg: "indented line outside a message"}
		}

		// Message or term header; the entry block runs until the next
		// non-indented content line.
		j := i + 1
		for j < len(lines) {
			if isIndented(lines[j]) {
				j++
				continue
			}
			if strings.TrimSpace(lines[j]) == "" && nextContentIndented(lines, j) {
				j++
				continue
			}
			break
		}

		entry, err := parseEntry(line, lines[i+1:j], i+1, path)
		if err != nil {
			return nil, err
		}
		res.Entries = append(res.Entries, entry)
		i = j
	}

	return res, nil
}

func isIndented(line string) bool {
	return len(line) > 0 && line[0] == ' '
}

// nextContentIndented reports whether the next non-blank line after pos
// is indented, meaning a blank line sits inside an entry block.
func nextContentIndented(lines []string, pos int) bool {
	for k := pos + 1; k < len(lines); k++ {
		if strings.TrimSpace(lines[k]) == "" {
			continue
		}
		return isIndented(lines[k])
	}
	return false
}

// parseEntry parses one "id = pattern" entry together with its dedented
// continuation block: value lines, .attr lines, and variant rows.
func parseEntry(header string, block []string, lineNo int, path string) (Entry, error) {
	eq := strings.Index(header, "=")
	if eq < 0 {
		return nil, &ParseError{Path: path, Line: lineNo, Msg: fmt.Sprintf("expected = after identifier in %q", header)}
	}

	rawID := strings.TrimSpace(header[:eq])
	isTerm := strings.HasPrefix(rawID, "-")
	id := strings.TrimPrefix(rawID, "-")
	if !identRe.MatchString(id) {
		return nil, &ParseError{Path: path, Line: lineNo, Msg: fmt.Sprintf("invalid identifier %q", rawID)}
	}

	rest := strings.TrimPrefix(header[eq+1:], " ")

	var logical []string
	if strings.TrimSpace(rest) != "" {
		logical = append(logical, rest)
	}
	logical = append(logical, dedent(block)...)

	// Split into the value segment and attribute segments. Attribute
	// headers only count at brace depth zero so variant rows and literal
	// dots inside placeables stay with their pattern.
	type segment struct {
		attr  string
		lines []string
	}
	segs := []segment{{}}
	depth := 0
	for _, ln := range logical {
		if depth == 0 {
			if m := attrRe.FindStringSubmatch(ln); m != nil {
				segs = append(segs, segment{attr: m[1], lines: []string{m[2]}})
				depth = scanBraces(m[2], 0)
				continue
			}
		}
		segs[len(segs)-1].lines = append(segs[len(segs)-1].lines, ln)
		depth = scanBraces(ln, depth)
	}

	var value *Pattern
	if src := joinPattern(segs[0].lines); src != "" {
		p, err := parsePattern(src)
		if err != nil {
			return nil, &ParseError{Path: path, Line: lineNo, Msg: fmt.Sprintf("message %q: %s", id, err)}
		}
		value = p
	}

	var attrs []*Attribute
	for _, seg := range segs[1:] {
		src := joinPattern(seg.lines)
		if src == "" {
			return nil, &ParseError{Path: path, Line: lineNo, Msg: fmt.Sprintf("attribute .%s of %q has no value", seg.attr, id)}
		}
		p, err := parsePattern(src)
		if err != nil {
			return nil, &ParseError{Path: path, Line: lineNo, Msg: fmt.Sprintf("attribute .%s of %q: %s", seg.attr, id, err)}
		}
		attrs = append(attrs, &Attribute{ID: seg.attr, Value: p})
	}

	if value == nil && len(attrs) == 0 {
		return nil, &ParseError{Path: path, Line: lineNo, Msg: fmt.Sprintf("message %q has no value and no attributes", id)}
	}

	if isTerm {
		if value == nil {
			return nil, &ParseError{Path: path, Line: lineNo, Msg: fmt.Sprintf("term -%s must have a value", id)}
		}
		return &Term{ID: id, Value: value, Attributes: attrs}, nil
	}
	return &Message{ID: id, Value: value, Attributes: attrs}, nil
}

// dedent strips the common leading indent from the block lines.
// Blank lines are preserved as empty strings.
func dedent(block []string) []string {
	indent := -1
	for _, line := range block {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := 0
		for n < len(line) && line[n] == ' ' {
			n++
		}
		if indent < 0 || n < indent {
			indent = n
		}
	}

	out := make([]string, 0, len(block))
	for _, line := range block {
		if strings.TrimSpace(line) == "" {
			out = append(out, "")
			continue
		}
		out = append(out, line[indent:])
	}
	return out
}

// joinPattern joins segment lines into one pattern source, dropping
// leading and trailing blank lines but keeping interior ones.
func joinPattern(lines []string) string {
	start, end := 0, len(lines)
	for start < end && lines[start] == "" {
		start++
	}
	for end > start && lines[end-1] == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}

// scanBraces updates the brace depth across s. Braces inside quoted
// string literals (which only occur within placeables) are ignored.
// A quote left open at end of line is treated as closed; string
// literals never span lines.
func scanBraces(s string, depth int) int {
	inQuote := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inQuote {
			switch c {
			case '\\':
				i++
			case '"':
				inQuote = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inQuote = true
			}
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		}
	}
	return depth
}

// ---------------------------------------------------------------------------
// Pattern parsing
// ---------------------------------------------------------------------------

func parsePattern(src string) (*Pattern, error) {
	p := &Pattern{}
	var text strings.Builder

	flush := func() {
		if text.Len() > 0 {
			p.Elements = append(p.Elements, &Text{Value: text.String()})
			text.Reset()
		}
	}

	for i := 0; i < len(src); {
		switch src[i] {
		case '{':
			end, err := matchBrace(src, i)
			if err != nil {
				return nil, err
			}
			expr, err := parseExpression(src[i+1 : end])
			if err != nil {
				return nil, err
			}
			flush()
			p.Elements = append(p.Elements, &Placeable{Expr: expr})
			i = end + 1
		case '}':
			return nil, fmt.Errorf("unbalanced } in pattern")
		default:
			text.WriteByte(src[i])
			i++
		}
	}
	flush()
	return p, nil
}

// matchBrace returns the index of the '}' matching the '{' at start.
func matchBrace(s string, start int) (int, error) {
	depth := 0
	inQuote := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inQuote {
			switch c {
			case '\\':
				i++
			case '"':
				inQuote = false
			}
			continue
		}
		switch c {
		case '"':
			inQuote = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("unterminated placeable")
}

// parseExpression parses the inside of a placeable: an inline expression
// or a select expression with variant rows.
func parseExpression(src string) (Expression, error) {
	if idx := topLevelArrow(src); idx >= 0 {
		sel, err := parseInlineExpression(strings.TrimSpace(src[:idx]))
		if err != nil {
			return nil, err
		}
		variants, err := parseVariants(src[idx+2:])
		if err != nil {
			return nil, err
		}
		defaults := 0
		for _, v := range variants {
			if v.Default {
				defaults++
			}
		}
		if defaults != 1 {
			return nil, fmt.Errorf("select expression needs exactly one default *[key] variant, found %d", defaults)
		}
		return &SelectExpr{Selector: sel, Variants: variants}, nil
	}
	return parseInlineExpression(strings.TrimSpace(src))
}

// topLevelArrow finds the "->" separating a selector from its variants,
// skipping arrows nested inside braces or string literals.
func topLevelArrow(s string) int {
	depth := 0
	inQuote := false
	for i := 0; i+1 < len(s); i++ {
		c := s[i]
		if inQuote {
			switch c {
			case '\\':
				i++
			case '"':
				inQuote = false
			}
			continue
		}
		switch c {
		case '"':
			inQuote = true
		case '{':
			depth++
		case '}':
			depth--
		case '-':
			if depth == 0 && s[i+1] == '>' {
				return i
			}
		}
	}
	return -1
}

func parseInlineExpression(src string) (Expression, error) {
	switch {
	case src == "":
		return nil, fmt.Errorf("empty placeable")
	case src[0] == '$':
		name := src[1:]
		if !identRe.MatchString(name) {
			return nil, fmt.Errorf("invalid variable reference %q", src)
		}
		return &VariableRef{Name: name}, nil
	case src[0] == '"':
		if len(src) < 2 || src[len(src)-1] != '"' {
			return nil, fmt.Errorf("unterminated string literal %s", src)
		}
		val, err := unescapeString(src[1 : len(src)-1])
		if err != nil {
			return nil, err
		}
		return &StringLit{Value: val}, nil
	case numberRe.MatchString(src):
		return &NumberLit{Value: src}, nil
	case src[0] == '-':
		name := src[1:]
		if !identRe.MatchString(name) {
			return nil, fmt.Errorf("invalid term reference %q", src)
		}
		return &TermRef{Name: name}, nil
	case identRe.MatchString(src):
		return &MessageRef{Name: src}, nil
	default:
		return nil, fmt.Errorf("unsupported expression %q", src)
	}
}

// parseVariants parses the variant rows of a select expression. Rows only
// start at brace depth zero; deeper lines belong to the current variant's
// body (nested selects).
func parseVariants(src string) ([]*Variant, error) {
	var variants []*Variant
	var cur *Variant
	var body []string

	flush := func() error {
		if cur == nil {
			return nil
		}
		p, err := parsePattern(strings.Join(body, "\n"))
		if err != nil {
			return err
		}
		cur.Value = p
		variants = append(variants, cur)
		cur = nil
		body = nil
		return nil
	}

	depth := 0
	for _, line := range strings.Split(src, "\n") {
		stripped := strings.TrimSpace(line)
		if depth == 0 {
			if stripped == "" {
				continue
			}
			if m := variantRe.FindStringSubmatch(stripped); m != nil {
				if err := flush(); err != nil {
					return nil, err
				}
				key := m[2]
				if !identRe.MatchString(key) && !numberRe.MatchString(key) {
					return nil, fmt.Errorf("invalid variant key [%s]", key)
				}
				cur = &Variant{Key: key, Default: m[1] == "*"}
				body = []string{m[3]}
				depth = scanBraces(line, depth)
				continue
			}
			if cur == nil {
				return nil, fmt.Errorf("expected variant [key] row, got %q", stripped)
			}
		}
		if cur != nil {
			body = append(body, line)
		}
		depth = scanBraces(line, depth)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return variants, nil
}

func unescapeString(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("trailing backslash in string literal")
		}
		switch s[i] {
		case '\\', '"':
			b.WriteByte(s[i])
		case 'u', 'U':
			n := 4
			if s[i] == 'U' {
				n = 6
			}
			if i+n >= len(s) {
				return "", fmt.Errorf("truncated unicode escape in string literal")
			}
			code, err := strconv.ParseUint(s[i+1:i+1+n], 16, 32)
			if err != nil {
				return "", fmt.Errorf("invalid unicode escape in string literal")
			}
			b.WriteRune(rune(code))
			i += n
		default:
			return "", fmt.Errorf("unknown escape \\%c in string literal", s[i])
		}
	}
	return b.String(), nil
}
