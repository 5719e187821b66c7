// Package selector derives CSS selectors for nodes of a parsed HTML document
// and converts, shortens, scores and validates selector strings.
//
// Derived selectors are advisory: nothing guarantees that a derived selector
// matches exactly one node. Use ValidateUniqueness to check against a
// document. Selectors are recomputed on every call; a node that moves or
// changes attributes simply yields a different selector next time.
package selector

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// childCombinator joins path segments. Derived selectors have all whitespace
// stripped, so segments are joined without surrounding spaces.
const childCombinator = ">"

// Segment is one step of a derived selector path.
type Segment struct {
	Tag       string
	ID        string
	Classes   []string
	NthOfType int // 1-based; 0 or 1 renders no :nth-of-type
}

// String renders the segment as a compound CSS selector. Ids and classes are
// escaped, so "1st" renders as "#\000031st".
func (s Segment) String() string {
	if s.ID != "" {
		return "#" + cssIdent(s.ID)
	}
	var b strings.Builder
	b.WriteString(s.Tag)
	for _, c := range s.Classes {
		b.WriteByte('.')
		b.WriteString(cssIdent(c))
	}
	if s.NthOfType > 1 {
		b.WriteString(":nth-of-type(")
		b.WriteString(strconv.Itoa(s.NthOfType))
		b.WriteByte(')')
	}
	return b.String()
}

// informative reports whether the segment narrows the match beyond its tag.
func (s Segment) informative() bool {
	return s.ID != "" || len(s.Classes) > 0
}

// Descriptor is the structured form of a derived selector, ordered from the
// outermost ancestor to the target node.
type Descriptor struct {
	Path []Segment
}

// String joins the path with child combinators and strips whitespace.
func (d Descriptor) String() string {
	parts := make([]string, len(d.Path))
	for i, seg := range d.Path {
		parts[i] = seg.String()
	}
	return stripSpace(strings.Join(parts, " "+childCombinator+" "))
}

// Describe walks from n up through its ancestors and builds the selector path.
// Ascent stops at the first node carrying an id. Leading segments that carry
// neither an id nor a class are trimmed while more than one segment remains.
// A nil or non-element node yields an empty Descriptor.
func Describe(n *html.Node) Descriptor {
	var path []Segment
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		if id := strings.TrimSpace(getAttr(cur, "id")); id != "" {
			path = append([]Segment{{Tag: cur.Data, ID: id}}, path...)
			break
		}
		seg := Segment{
			Tag:       cur.Data,
			Classes:   classList(cur),
			NthOfType: nthOfType(cur),
		}
		path = append([]Segment{seg}, path...)
	}

	for len(path) > 1 && !path[0].informative() {
		path = path[1:]
	}
	return Descriptor{Path: path}
}

// Derive returns the CSS selector for n, or "" if n is not an element.
func Derive(n *html.Node) string {
	return Describe(n).String()
}

// nthOfType counts n and its preceding element siblings sharing its tag.
func nthOfType(n *html.Node) int {
	idx := 1
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode && s.Data == n.Data {
			idx++
		}
	}
	return idx
}

// classList returns the whitespace-separated tokens of the class attribute.
func classList(n *html.Node) []string {
	return strings.Fields(getAttr(n, "class"))
}

// getAttr returns the value of an attribute on a node.
func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

// hasAttr checks if a node has a specific attribute.
func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return true
		}
	}
	return false
}

func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}
