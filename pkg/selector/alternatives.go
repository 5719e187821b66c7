package selector

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/samber/lo"
	"golang.org/x/net/html"
)

// AlternativeType names the attribute an alternative selector is built on.
type AlternativeType string

const (
	AltID       AlternativeType = "id"
	AltDataAttr AlternativeType = "data-attr"
	AltClass    AlternativeType = "class"
	AltName     AlternativeType = "name"
	AltAria     AlternativeType = "aria"
)

// Alternative is a candidate selector for a node. Priority 1 is best.
type Alternative struct {
	Type      AlternativeType `json:"type"`
	Selector  string          `json:"selector"`
	Priority  int             `json:"priority"`
	Rationale string          `json:"rationale"`
}

// Alternatives enumerates selectors built from the node's id, each data-*
// attribute, its class list, its name and its aria-label. Candidates are
// independent of each other and returned sorted by ascending priority; equal
// priorities keep enumeration order.
func Alternatives(n *html.Node) []Alternative {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}

	var alts []Alternative

	if id := strings.TrimSpace(getAttr(n, "id")); id != "" {
		alts = append(alts, Alternative{
			Type:      AltID,
			Selector:  "#" + cssIdent(id),
			Priority:  1,
			Rationale: "ID selector (most specific, assumed unique on the page)",
		})
	}

	for _, a := range n.Attr {
		if a.Namespace != "" || !strings.HasPrefix(a.Key, "data-") {
			continue
		}
		alts = append(alts, Alternative{
			Type:      AltDataAttr,
			Selector:  attrSelector(a.Key, a.Val),
			Priority:  2,
			Rationale: "Data attribute (stable, usually added for testing or scripting)",
		})
	}

	if classes := classList(n); len(classes) > 0 {
		sel := strings.Join(lo.Map(classes, func(c string, _ int) string {
			return "." + cssIdent(c)
		}), "")
		alts = append(alts, Alternative{
			Type:      AltClass,
			Selector:  sel,
			Priority:  3,
			Rationale: "Class selector (may match several elements)",
		})
	}

	if hasAttr(n, "name") {
		alts = append(alts, Alternative{
			Type:      AltName,
			Selector:  attrSelector("name", getAttr(n, "name")),
			Priority:  2,
			Rationale: "Name attribute (stable for form controls)",
		})
	}

	if label := getAttr(n, "aria-label"); label != "" {
		alts = append(alts, Alternative{
			Type:      AltAria,
			Selector:  attrSelector("aria-label", label),
			Priority:  3,
			Rationale: "ARIA label (tied to accessible text, changes with copy)",
		})
	}

	sort.SliceStable(alts, func(i, j int) bool {
		return alts[i].Priority < alts[j].Priority
	})
	return alts
}

func attrSelector(key, val string) string {
	return "[" + key + `="` + strings.ReplaceAll(val, `"`, `\"`) + `"]`
}

// cssIdent escapes characters that would end an identifier early. Leading
// digits, whitespace and control characters take the six-digit hex form,
// which needs no terminating space, so the result never contains whitespace.
func cssIdent(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '-' || r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r > 0x7f && !unicode.IsSpace(r):
			b.WriteRune(r)
		case r >= '0' && r <= '9' && i > 0 && (i > 1 || s[0] != '-'):
			b.WriteRune(r)
		case r >= '0' && r <= '9' || unicode.IsSpace(r) || unicode.IsControl(r):
			fmt.Fprintf(&b, `\%06x`, r)
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}
