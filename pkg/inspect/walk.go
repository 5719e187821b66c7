package inspect

import "golang.org/x/net/html"

// walk visits n and its descendants depth-first. Returning false from fn
// skips the children of the current node.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func walkElements(root *html.Node, fn func(*html.Node)) {
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			fn(n)
		}
		return true
	})
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
