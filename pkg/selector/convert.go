package selector

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// These patterns cover the selector subset Derive and Alternatives produce.
// They are not a CSS parser.
var (
	attrPattern = regexp.MustCompile(`\[\s*([^\]\s=~|^$*]+)\s*(?:=\s*(?:"([^"]*)"|'([^']*)'|([^\]\s]*))\s*)?\]`)
	nthPattern  = regexp.MustCompile(`:nth-of-type\(\s*(\d+)\s*\)`)
	tagPattern  = regexp.MustCompile(`^(\*|[A-Za-z][A-Za-z0-9-]*)`)
	// identPattern matches "#id" and ".class" with CSS escapes left in place.
	identPattern = regexp.MustCompile(`([#.])((?:\\[0-9A-Fa-f]{1,6}\s?|\\.|[A-Za-z0-9_-]|[^\x00-\x7f])+)`)
)

// compound is a parsed compound selector (one step between combinators).
type compound struct {
	tag     string
	id      string
	classes []string
	attrs   []attrTest
	nth     string
}

type attrTest struct {
	name  string
	value string
	hasEq bool
}

func parseCompound(s string) compound {
	var c compound

	for _, m := range attrPattern.FindAllStringSubmatch(s, -1) {
		t := attrTest{name: m[1]}
		if strings.Contains(m[0], "=") {
			t.hasEq = true
			t.value = m[2] + m[3] + m[4]
		}
		c.attrs = append(c.attrs, t)
	}
	s = attrPattern.ReplaceAllString(s, "")

	if m := nthPattern.FindStringSubmatch(s); m != nil {
		c.nth = m[1]
	}
	s = nthPattern.ReplaceAllString(s, "")

	if m := tagPattern.FindStringSubmatch(s); m != nil {
		c.tag = m[1]
	}
	for _, m := range identPattern.FindAllStringSubmatch(s, -1) {
		if m[1] == "#" {
			if c.id == "" {
				c.id = unescapeIdent(m[2])
			}
			continue
		}
		c.classes = append(c.classes, unescapeIdent(m[2]))
	}
	return c
}

func (c compound) xpath() string {
	var b strings.Builder
	if c.tag == "" {
		b.WriteByte('*')
	} else {
		b.WriteString(c.tag)
	}
	if c.id != "" {
		b.WriteString("[@id=" + xpathLiteral(c.id) + "]")
	}
	for _, cls := range c.classes {
		b.WriteString("[contains(concat(' ',@class,' ')," + xpathLiteral(" "+cls+" ") + ")]")
	}
	for _, a := range c.attrs {
		if a.hasEq {
			b.WriteString("[@" + a.name + "=" + xpathLiteral(a.value) + "]")
		} else {
			b.WriteString("[@" + a.name + "]")
		}
	}
	if c.nth != "" {
		b.WriteString("[" + c.nth + "]")
	}
	return b.String()
}

// CSSToXPath converts a selector in the engine's own subset to an XPath
// expression. A selector consisting of a single id yields //*[@id="..."].
// Child combinators become "/" and descendant combinators become "//".
func CSSToXPath(css string) string {
	var b strings.Builder
	for i, st := range splitSteps(css) {
		if i == 0 || st.descendant {
			b.WriteString("//")
		} else {
			b.WriteString("/")
		}
		b.WriteString(parseCompound(st.text).xpath())
	}
	return b.String()
}

type step struct {
	text       string
	descendant bool // combinator before this step is whitespace rather than ">"
}

// splitSteps splits a selector on child and descendant combinators, ignoring
// separators inside attribute brackets and quoted strings.
func splitSteps(css string) []step {
	var (
		steps      []step
		cur        strings.Builder
		depth      int
		quote      rune
		descendant bool
	)
	flush := func() {
		if cur.Len() > 0 {
			steps = append(steps, step{text: cur.String(), descendant: descendant})
			cur.Reset()
		}
	}
	runes := []rune(css)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\' && quote == 0:
			i = copyEscape(&cur, runes, i)
			continue
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '[':
			depth++
		case r == ']':
			depth--
		case depth == 0 && r == '>':
			flush()
			descendant = false
			continue
		case depth == 0 && unicode.IsSpace(r):
			if cur.Len() > 0 {
				flush()
				descendant = true
			}
			continue
		}
		cur.WriteRune(r)
	}
	flush()
	return steps
}

// copyEscape writes the escape sequence starting at runes[i] (a backslash)
// to b and returns the index of its last rune. A hex escape takes up to six
// hex digits plus one optional whitespace terminator.
func copyEscape(b *strings.Builder, runes []rune, i int) int {
	b.WriteRune(runes[i])
	j := i + 1
	for j < len(runes) && j-i <= 6 && isHex(runes[j]) {
		b.WriteRune(runes[j])
		j++
	}
	switch {
	case j > i+1:
		if j < len(runes) && unicode.IsSpace(runes[j]) {
			b.WriteRune(runes[j])
			j++
		}
	case j < len(runes):
		b.WriteRune(runes[j])
		j++
	}
	return j - 1
}

func isHex(r rune) bool {
	return r >= '0' && r <= '9' || r >= 'a' && r <= 'f' || r >= 'A' && r <= 'F'
}

// CSSToJSPath wraps the selector in a document.querySelector call.
func CSSToJSPath(css string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(css)
	return "document.querySelector('" + escaped + "')"
}

// xpathLiteral quotes s for use in an XPath expression. XPath 1.0 has no
// escape sequences, so values holding both quote kinds go through concat().
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = `"` + p + `"`
	}
	return "concat(" + strings.Join(quoted, `,'"',`) + ")"
}

// unescapeIdent decodes CSS escapes: "\31 st" is "1st" and "\/" is "/".
func unescapeIdent(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '\\' {
			b.WriteRune(runes[i])
			continue
		}
		j := i + 1
		for j < len(runes) && j-i <= 6 && isHex(runes[j]) {
			j++
		}
		if j == i+1 {
			if j < len(runes) {
				b.WriteRune(runes[j])
			}
			i = j
			continue
		}
		code, _ := strconv.ParseUint(string(runes[i+1:j]), 16, 32)
		if code == 0 || code > unicode.MaxRune || code >= 0xD800 && code <= 0xDFFF {
			b.WriteRune(unicode.ReplacementChar)
		} else {
			b.WriteRune(rune(code))
		}
		if j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		i = j - 1
	}
	return b.String()
}
