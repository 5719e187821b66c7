package domedit

import (
	"sort"

	"github.com/samber/lo"
	"golang.org/x/net/html"
)

// attrSnapshot remembers one attribute as it was, including whether it
// existed at all and where it sat in the attribute list.
type attrSnapshot struct {
	key     string
	value   string
	present bool
	index   int
}

func snapshot(n *html.Node, key string) attrSnapshot {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return attrSnapshot{key: key, value: a.Val, present: true, index: i}
		}
	}
	return attrSnapshot{key: key}
}

func (s attrSnapshot) restore(n *html.Node) {
	removeAttr(n, s.key)
	if !s.present {
		return
	}
	a := html.Attribute{Key: s.key, Val: s.value}
	idx := min(s.index, len(n.Attr))
	n.Attr = append(n.Attr[:idx:idx], append([]html.Attribute{a}, n.Attr[idx:]...)...)
}

func attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	n.Attr = lo.Reject(n.Attr, func(a html.Attribute, _ int) bool {
		return a.Namespace == "" && a.Key == key
	})
}

func sortedKeys(m map[string]string) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
