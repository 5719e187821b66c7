package domedit

import (
	"strings"

	"github.com/gorilla/css/scanner"
	"golang.org/x/net/html"
)

// declaration is one `property: value` pair of an inline style.
type declaration struct {
	Property string
	Value    string
}

// parseStyle tokenizes an inline style attribute into its declarations.
// Declarations without a property name or a colon are dropped.
func parseStyle(style string) []declaration {
	var (
		decls   []declaration
		prop    string
		value   strings.Builder
		inValue bool
		depth   int
	)

	flush := func() {
		v := strings.TrimSpace(value.String())
		if prop != "" && inValue && v != "" {
			decls = append(decls, declaration{Property: strings.ToLower(prop), Value: v})
		}
		prop = ""
		value.Reset()
		inValue = false
	}

	s := scanner.New(style)
	for {
		tok := s.Next()
		if tok.Type == scanner.TokenEOF || tok.Type == scanner.TokenError {
			break
		}

		switch {
		case tok.Type == scanner.TokenComment:
			continue
		case tok.Type == scanner.TokenFunction:
			depth++
		case tok.Type == scanner.TokenChar && tok.Value == ")" && depth > 0:
			depth--
		case tok.Type == scanner.TokenChar && tok.Value == ";" && depth == 0:
			flush()
			continue
		case tok.Type == scanner.TokenChar && tok.Value == ":" && !inValue:
			inValue = true
			continue
		}

		if !inValue {
			if tok.Type == scanner.TokenIdent {
				prop = tok.Value
			}
			continue
		}
		if tok.Type == scanner.TokenS {
			value.WriteByte(' ')
			continue
		}
		value.WriteString(tok.Value)
	}
	flush()

	return decls
}

// formatStyle renders declarations back into an inline style attribute.
func formatStyle(decls []declaration) string {
	parts := make([]string, len(decls))
	for i, d := range decls {
		parts[i] = d.Property + ": " + d.Value
	}
	return strings.Join(parts, "; ")
}

// setProperty replaces prop in place, appends it, or removes it when value
// is empty.
func setProperty(decls []declaration, prop, value string) []declaration {
	prop = strings.ToLower(strings.TrimSpace(prop))
	value = strings.TrimSpace(value)

	for i, d := range decls {
		if d.Property != prop {
			continue
		}
		if value == "" {
			return append(decls[:i:i], decls[i+1:]...)
		}
		decls[i].Value = value
		return decls
	}
	if value == "" {
		return decls
	}
	return append(decls, declaration{Property: prop, Value: value})
}

// StyleProperty returns the value of prop in n's inline style, if set.
func StyleProperty(n *html.Node, prop string) (string, bool) {
	v, ok := attr(n, "style")
	if !ok {
		return "", false
	}
	prop = strings.ToLower(prop)
	for _, d := range parseStyle(v) {
		if d.Property == prop {
			return d.Value, true
		}
	}
	return "", false
}
