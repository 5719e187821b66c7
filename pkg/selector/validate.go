package selector

import (
	"errors"
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// MaxSelectorLength caps the selectors accepted by ValidateUniqueness.
const MaxSelectorLength = 1000

// ErrInvalidSelector is wrapped by every error reported in Uniqueness.Err.
var ErrInvalidSelector = errors.New("invalid selector")

// Uniqueness is the outcome of matching a selector against a document.
type Uniqueness struct {
	IsUnique bool
	Count    int
	Elements []*html.Node
	Err      error
}

// ValidateUniqueness matches sel against the tree rooted at root. Malformed
// selectors are reported through the Err field; the function never panics.
func ValidateUniqueness(root *html.Node, sel string) Uniqueness {
	if err := checkSelector(sel); err != nil {
		return Uniqueness{Err: err}
	}
	if root == nil {
		return Uniqueness{}
	}

	compiled, err := compile(sel)
	if err != nil {
		return Uniqueness{Err: err}
	}

	matches := compiled.MatchAll(root)
	return Uniqueness{
		IsUnique: len(matches) == 1,
		Count:    len(matches),
		Elements: matches,
	}
}

// QueryAll returns every element under root matching sel.
func QueryAll(root *html.Node, sel string) ([]*html.Node, error) {
	if err := checkSelector(sel); err != nil {
		return nil, err
	}
	compiled, err := compile(sel)
	if err != nil {
		return nil, err
	}
	return compiled.MatchAll(root), nil
}

// Query returns the first element under root matching sel, or nil.
func Query(root *html.Node, sel string) (*html.Node, error) {
	if err := checkSelector(sel); err != nil {
		return nil, err
	}
	compiled, err := compile(sel)
	if err != nil {
		return nil, err
	}
	return compiled.MatchFirst(root), nil
}

// compile wraps cascadia.Compile and converts parser panics into errors.
func compile(sel string) (s cascadia.Selector, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidSelector, r)
		}
	}()
	s, err = cascadia.Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSelector, err)
	}
	return s, nil
}

// checkSelector rejects empty and oversized input before it reaches the
// parser. Anything else is left to cascadia.
func checkSelector(sel string) error {
	if strings.TrimSpace(sel) == "" {
		return fmt.Errorf("%w: selector is empty", ErrInvalidSelector)
	}
	if len(sel) > MaxSelectorLength {
		return fmt.Errorf("%w: selector exceeds %d characters", ErrInvalidSelector, MaxSelectorLength)
	}
	return nil
}
