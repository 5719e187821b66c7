// Package inspect runs static checks over a parsed HTML document:
// a small accessibility audit and a technology fingerprint.
package inspect

import (
	"fmt"
	"strings"

	"github.com/csae-toolkit/csae/pkg/selector"
	"github.com/samber/lo"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Impact levels, mildest first.
const (
	ImpactMinor    = "minor"
	ImpactModerate = "moderate"
	ImpactSerious  = "serious"
	ImpactCritical = "critical"
)

// Rule identifiers reported in Issue.Rule.
const (
	RuleImgAlt       = "img-alt"
	RuleInputLabel   = "input-label"
	RuleButtonName   = "button-name"
	RuleLinkName     = "link-name"
	RuleHTMLLang     = "html-lang"
	RuleHeadingOrder = "heading-order"
	RuleDuplicateID  = "duplicate-id"
)

// Issue is one accessibility finding.
type Issue struct {
	Rule     string     `json:"rule"`
	Impact   string     `json:"impact"`
	Message  string     `json:"message"`
	Selector string     `json:"selector"`
	Node     *html.Node `json:"-"`
}

// AuditA11y walks the document and reports issues in document order.
func AuditA11y(root *html.Node) []Issue {
	a := &auditor{
		labelled: labelTargets(root),
		ids:      map[string]int{},
	}
	walkElements(root, a.visit)
	return a.issues
}

type auditor struct {
	issues      []Issue
	labelled    map[string]bool
	ids         map[string]int
	lastHeading int
}

func (a *auditor) report(n *html.Node, rule, impact, msg string) {
	a.issues = append(a.issues, Issue{
		Rule:     rule,
		Impact:   impact,
		Message:  msg,
		Selector: selector.Derive(n),
		Node:     n,
	})
}

func (a *auditor) visit(n *html.Node) {
	if id, ok := attr(n, "id"); ok && id != "" {
		a.ids[id]++
		if a.ids[id] == 2 {
			a.report(n, RuleDuplicateID, ImpactModerate, fmt.Sprintf("id %q is used more than once", id))
		}
	}

	switch n.DataAtom {
	case atom.Html:
		if lang, _ := attr(n, "lang"); strings.TrimSpace(lang) == "" {
			a.report(n, RuleHTMLLang, ImpactSerious, "<html> element has no lang attribute")
		}
	case atom.Img:
		if _, ok := attr(n, "alt"); !ok && !presentational(n) {
			a.report(n, RuleImgAlt, ImpactSerious, "Image has no alt attribute")
		}
	case atom.Input, atom.Select, atom.Textarea:
		if needsLabel(n) && !a.hasLabel(n) {
			a.report(n, RuleInputLabel, ImpactCritical, "Form field has no associated label")
		}
	case atom.Button:
		if accessibleName(n) == "" {
			a.report(n, RuleButtonName, ImpactCritical, "Button has no accessible name")
		}
	case atom.A:
		if _, ok := attr(n, "href"); ok && accessibleName(n) == "" {
			a.report(n, RuleLinkName, ImpactSerious, "Link has no accessible name")
		}
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		level := int(n.Data[1] - '0')
		if a.lastHeading > 0 && level > a.lastHeading+1 {
			a.report(n, RuleHeadingOrder, ImpactModerate,
				fmt.Sprintf("Heading level jumps from h%d to h%d", a.lastHeading, level))
		}
		a.lastHeading = level
	}
}

func (a *auditor) hasLabel(n *html.Node) bool {
	if id, ok := attr(n, "id"); ok && a.labelled[id] {
		return true
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == atom.Label {
			return true
		}
	}
	return ariaName(n) != ""
}

func needsLabel(n *html.Node) bool {
	if n.DataAtom != atom.Input {
		return true
	}
	typ, _ := attr(n, "type")
	return !lo.Contains([]string{"hidden", "submit", "button", "reset", "image"}, strings.ToLower(typ))
}

func presentational(n *html.Node) bool {
	role, _ := attr(n, "role")
	hidden, _ := attr(n, "aria-hidden")
	return role == "presentation" || role == "none" || hidden == "true"
}

// accessibleName approximates the computed name of buttons and links.
func accessibleName(n *html.Node) string {
	if name := ariaName(n); name != "" {
		return name
	}
	var sb strings.Builder
	walk(n, func(c *html.Node) bool {
		switch {
		case c.Type == html.TextNode:
			sb.WriteString(c.Data)
		case c.Type == html.ElementNode && c.DataAtom == atom.Img:
			alt, _ := attr(c, "alt")
			sb.WriteString(alt)
		}
		return true
	})
	return strings.TrimSpace(sb.String())
}

func ariaName(n *html.Node) string {
	for _, key := range []string{"aria-label", "aria-labelledby", "title"} {
		if v, _ := attr(n, key); strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func labelTargets(root *html.Node) map[string]bool {
	out := map[string]bool{}
	walkElements(root, func(n *html.Node) {
		if n.DataAtom == atom.Label {
			if id, ok := attr(n, "for"); ok {
				out[id] = true
			}
		}
	})
	return out
}
