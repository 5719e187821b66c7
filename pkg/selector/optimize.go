package selector

import "strings"

// Optimize shortens a selector. Everything before the last segment carrying
// an id is dropped, since an id already pins the ancestor. Segments that have
// a class keep it and lose their :nth-of-type. Optimize is idempotent.
func Optimize(sel string) string {
	steps := splitSteps(sel)
	if len(steps) == 0 {
		return ""
	}

	start := 0
	for i, st := range steps {
		if parseCompound(st.text).id != "" {
			start = i
		}
	}
	steps = steps[start:]

	var b strings.Builder
	for i, st := range steps {
		text := st.text
		if c := parseCompound(text); len(c.classes) > 0 && c.nth != "" {
			text = nthPattern.ReplaceAllString(text, "")
		}
		if i > 0 {
			if st.descendant {
				b.WriteByte(' ')
			} else {
				b.WriteString(childCombinator)
			}
		}
		b.WriteString(text)
	}
	return b.String()
}
