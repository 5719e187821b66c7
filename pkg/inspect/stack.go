package inspect

import (
	"strings"

	"github.com/samber/lo"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Technology is a framework, CMS or library detected in a document.
type Technology struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Evidence string `json:"evidence"`
}

type signature struct {
	name     string
	category string
	match    func(n *html.Node) (evidence string, ok bool)
}

var signatures = []signature{
	{"Next.js", "framework", anyOf(
		hasID("__NEXT_DATA__"),
		srcContains("/_next/"),
	)},
	{"Nuxt", "framework", anyOf(
		hasID("__nuxt"),
		srcContains("/_nuxt/"),
	)},
	{"Gatsby", "framework", hasID("___gatsby")},
	{"React", "library", anyOf(
		hasAttr("data-reactroot"),
		hasAttr("data-reactid"),
		srcContains("react"),
	)},
	{"Vue", "library", anyOf(
		attrPrefix("data-v-"),
		hasAttr("data-server-rendered"),
		srcContains("vue"),
	)},
	{"Angular", "framework", anyOf(
		hasAttr("ng-version"),
		hasAttr("ng-app"),
	)},
	{"Svelte", "library", classPrefix("svelte-")},
	{"jQuery", "library", srcContains("jquery")},
	{"Bootstrap", "ui", srcContains("bootstrap")},
	{"Tailwind CSS", "ui", srcContains("tailwind")},
	{"WordPress", "cms", anyOf(
		generator("wordpress"),
		srcContains("/wp-content/"),
		srcContains("/wp-includes/"),
	)},
	{"Drupal", "cms", anyOf(generator("drupal"), srcContains("/sites/default/files/"))},
	{"Joomla", "cms", generator("joomla")},
	{"Ghost", "cms", generator("ghost")},
	{"Hugo", "static-site", generator("hugo")},
	{"Jekyll", "static-site", generator("jekyll")},
	{"Shopify", "commerce", srcContains("cdn.shopify.com")},
	{"Google Analytics", "analytics", anyOf(
		srcContains("googletagmanager.com"),
		srcContains("google-analytics.com"),
	)},
}

// DetectStack reports the technologies whose signatures match, in a fixed
// order, each with the first piece of evidence found.
func DetectStack(root *html.Node) []Technology {
	found := map[string]string{}
	walkElements(root, func(n *html.Node) {
		for _, s := range signatures {
			if _, ok := found[s.name]; ok {
				continue
			}
			if ev, ok := s.match(n); ok {
				found[s.name] = ev
			}
		}
	})

	matched := lo.Filter(signatures, func(s signature, _ int) bool {
		_, ok := found[s.name]
		return ok
	})
	return lo.Map(matched, func(s signature, _ int) Technology {
		return Technology{Name: s.name, Category: s.category, Evidence: found[s.name]}
	})
}

type matcher = func(n *html.Node) (string, bool)

func anyOf(ms ...matcher) matcher {
	return func(n *html.Node) (string, bool) {
		for _, m := range ms {
			if ev, ok := m(n); ok {
				return ev, true
			}
		}
		return "", false
	}
}

func hasID(id string) matcher {
	return func(n *html.Node) (string, bool) {
		v, _ := attr(n, "id")
		return `id="` + id + `"`, v == id
	}
}

func hasAttr(key string) matcher {
	return func(n *html.Node) (string, bool) {
		_, ok := attr(n, key)
		return key + " attribute", ok
	}
}

func attrPrefix(prefix string) matcher {
	return func(n *html.Node) (string, bool) {
		for _, a := range n.Attr {
			if strings.HasPrefix(a.Key, prefix) {
				return a.Key + " attribute", true
			}
		}
		return "", false
	}
}

func classPrefix(prefix string) matcher {
	return func(n *html.Node) (string, bool) {
		class, _ := attr(n, "class")
		for _, c := range strings.Fields(class) {
			if strings.HasPrefix(c, prefix) {
				return "class " + c, true
			}
		}
		return "", false
	}
}

func srcContains(fragment string) matcher {
	return func(n *html.Node) (string, bool) {
		var key string
		switch n.DataAtom {
		case atom.Script, atom.Img, atom.Iframe:
			key = "src"
		case atom.Link:
			key = "href"
		default:
			return "", false
		}
		v, _ := attr(n, key)
		if strings.Contains(strings.ToLower(v), fragment) {
			return v, true
		}
		return "", false
	}
}

func generator(name string) matcher {
	return func(n *html.Node) (string, bool) {
		if n.DataAtom != atom.Meta {
			return "", false
		}
		if meta, _ := attr(n, "name"); !strings.EqualFold(meta, "generator") {
			return "", false
		}
		content, _ := attr(n, "content")
		if strings.Contains(strings.ToLower(content), name) {
			return "generator " + content, true
		}
		return "", false
	}
}
