// Package domedit builds reversible edits over an x/net/html tree.
//
// Every constructor returns a history.Action whose Command only keeps plain
// data and a handle to the node it edits, so Apply and Revert can be run any
// number of times in alternation. Nothing is changed until Apply is called.
package domedit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/csae-toolkit/csae/internal/history"
	"github.com/csae-toolkit/csae/pkg/selector"
	"golang.org/x/net/html"
)

var (
	// ErrNotElement is returned when an edit targets something other than an element.
	ErrNotElement = errors.New("target is not an element")
	// ErrDetached is returned when the tree no longer has the shape an edit expects.
	ErrDetached = errors.New("node is detached from the document")
)

// Delete removes n from its parent.
func Delete(n *html.Node) history.Action {
	return history.Action{
		Type:        history.ActionDelete,
		Description: "Delete " + label(n),
		Command:     &deleteCmd{node: n},
	}
}

type deleteCmd struct {
	node   *html.Node
	parent *html.Node
	next   *html.Node
}

func (c *deleteCmd) Apply() error {
	if err := checkElement(c.node); err != nil {
		return err
	}
	if c.node.Parent == nil {
		return ErrDetached
	}
	c.parent = c.node.Parent
	c.next = c.node.NextSibling
	c.parent.RemoveChild(c.node)
	return nil
}

func (c *deleteCmd) Revert() error {
	if c.parent == nil || c.node.Parent != nil {
		return ErrDetached
	}
	if c.next != nil && c.next.Parent != c.parent {
		return fmt.Errorf("%w: insertion anchor moved", ErrDetached)
	}
	c.parent.InsertBefore(c.node, c.next)
	return nil
}

// Hide sets display:none on n's inline style.
func Hide(n *html.Node) history.Action {
	return history.Action{
		Type:        history.ActionHide,
		Description: "Hide " + label(n),
		Command:     &styleCmd{node: n, props: map[string]string{"display": "none"}},
	}
}

// StyleChange sets inline style properties on n. An empty value removes the
// property.
func StyleChange(n *html.Node, props map[string]string) history.Action {
	copied := make(map[string]string, len(props))
	for k, v := range props {
		copied[k] = v
	}
	return history.Action{
		Type:        history.ActionStyleChange,
		Description: fmt.Sprintf("Change style of %s (%s)", label(n), strings.Join(sortedKeys(copied), ", ")),
		Command:     &styleCmd{node: n, props: copied},
	}
}

type styleCmd struct {
	node  *html.Node
	props map[string]string

	before attrSnapshot
}

func (c *styleCmd) Apply() error {
	if err := checkElement(c.node); err != nil {
		return err
	}
	c.before = snapshot(c.node, "style")

	decls := parseStyle(c.before.value)
	for _, prop := range sortedKeys(c.props) {
		decls = setProperty(decls, prop, c.props[prop])
	}

	if len(decls) == 0 {
		removeAttr(c.node, "style")
	} else {
		setAttr(c.node, "style", formatStyle(decls))
	}
	return nil
}

func (c *styleCmd) Revert() error {
	if err := checkElement(c.node); err != nil {
		return err
	}
	c.before.restore(c.node)
	return nil
}

// TextEdit replaces n's children with a single text node.
func TextEdit(n *html.Node, text string) history.Action {
	return history.Action{
		Type:        history.ActionTextEdit,
		Description: "Edit text of " + label(n),
		Command:     &textCmd{node: n, text: &html.Node{Type: html.TextNode, Data: text}},
	}
}

type textCmd struct {
	node     *html.Node
	text     *html.Node
	children []*html.Node
}

func (c *textCmd) Apply() error {
	if err := checkElement(c.node); err != nil {
		return err
	}
	c.children = c.children[:0]
	for ch := c.node.FirstChild; ch != nil; {
		next := ch.NextSibling
		c.node.RemoveChild(ch)
		c.children = append(c.children, ch)
		ch = next
	}
	c.node.AppendChild(c.text)
	return nil
}

func (c *textCmd) Revert() error {
	if c.text.Parent != c.node {
		return ErrDetached
	}
	c.node.RemoveChild(c.text)
	for _, ch := range c.children {
		c.node.AppendChild(ch)
	}
	return nil
}

// AttributeChange sets attribute name on n to value, or removes it when
// remove is true. Reverting restores the attribute at its former position,
// or removes it if it was absent.
func AttributeChange(n *html.Node, name, value string, remove bool) history.Action {
	desc := fmt.Sprintf("Set %s on %s", name, label(n))
	if remove {
		desc = fmt.Sprintf("Remove %s from %s", name, label(n))
	}
	return history.Action{
		Type:        history.ActionAttributeChange,
		Description: desc,
		Command:     &attrCmd{node: n, name: strings.ToLower(name), value: value, remove: remove},
	}
}

type attrCmd struct {
	node   *html.Node
	name   string
	value  string
	remove bool
	before attrSnapshot
}

func (c *attrCmd) Apply() error {
	if err := checkElement(c.node); err != nil {
		return err
	}
	if c.name == "" {
		return errors.New("attribute name is required")
	}
	c.before = snapshot(c.node, c.name)
	if c.remove {
		removeAttr(c.node, c.name)
	} else {
		setAttr(c.node, c.name, c.value)
	}
	return nil
}

func (c *attrCmd) Revert() error {
	if err := checkElement(c.node); err != nil {
		return err
	}
	c.before.restore(c.node)
	return nil
}

// Duplicate inserts a deep copy of n right after it. The same copy is reused
// on redo.
func Duplicate(n *html.Node) history.Action {
	var clone *html.Node
	if n != nil && n.Type == html.ElementNode {
		clone = Clone(n)
	}
	return history.Action{
		Type:        history.ActionDuplicate,
		Description: "Duplicate " + label(n),
		Command:     &duplicateCmd{node: n, clone: clone},
	}
}

type duplicateCmd struct {
	node  *html.Node
	clone *html.Node
}

func (c *duplicateCmd) Apply() error {
	if err := checkElement(c.node); err != nil {
		return err
	}
	if c.node.Parent == nil {
		return ErrDetached
	}
	if c.clone.Parent != nil {
		return errors.New("duplicate is already attached")
	}
	c.node.Parent.InsertBefore(c.clone, c.node.NextSibling)
	return nil
}

func (c *duplicateCmd) Revert() error {
	if c.clone == nil || c.clone.Parent == nil {
		return ErrDetached
	}
	c.clone.Parent.RemoveChild(c.clone)
	return nil
}

// Clone returns a deep copy of n with no parent or siblings.
func Clone(n *html.Node) *html.Node {
	out := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		out.AppendChild(Clone(ch))
	}
	return out
}

// TextContent returns the concatenated text of n's subtree.
func TextContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if n != nil {
		walk(n)
	}
	return sb.String()
}

func checkElement(n *html.Node) error {
	if n == nil || n.Type != html.ElementNode {
		return ErrNotElement
	}
	return nil
}

func label(n *html.Node) string {
	if sel := selector.Derive(n); sel != "" {
		return sel
	}
	return "node"
}
