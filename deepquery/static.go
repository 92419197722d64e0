package deepquery

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ShadowRoot returns the attached open shadow root of n, or nil.
// Closed roots are not reachable, as in a browser.
func ShadowRoot(n *html.Node) *html.Node {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Template {
			mode := attr(c, "shadowrootmode")
			if mode == "" {
				mode = attr(c, "shadowroot")
			}
			if strings.EqualFold(mode, "open") {
				return c
			}
		}
	}
	return nil
}

// QueryAll returns every element under root matching m, crossing open
// shadow roots. root itself is never matched, mirroring querySelectorAll.
//
// Ancestor combinators only see the tree root lives in: while the query
// runs, the enclosing shadow root is detached from its host, so a
// descendant selector never reaches into the host's light tree. The tree
// must not be used concurrently.
func QueryAll(root *html.Node, m cascadia.Matcher) []*html.Node {
	if root == nil {
		return nil
	}
	if b := shadowBoundary(root); b != nil && b.Parent != nil {
		host := b.Parent
		b.Parent = nil
		defer func() { b.Parent = host }()
	}
	return queryTree(root, m)
}

func queryTree(root *html.Node, sel cascadia.Matcher) []*html.Node {

	var matches, hosts []*html.Node
	walkLight(root, func(n *html.Node) {
		if sel.Match(n) {
			matches = append(matches, n)
		}
		if ShadowRoot(n) != nil {
			hosts = append(hosts, n)
		}
	})

	if sr := ShadowRoot(root); sr != nil {
		matches = append(matches, QueryAll(sr, sel)...)
	}
	for _, h := range hosts {
		matches = append(matches, QueryAll(ShadowRoot(h), sel)...)
	}
	return matches
}

// QueryAllString parses selector, which may be a comma-separated group,
// and runs QueryAll.
func QueryAllString(root *html.Node, selector string) ([]*html.Node, error) {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, err
	}
	return QueryAll(root, sel), nil
}

// shadowBoundary returns the shadow root n lives in (n itself when n is a
// root template), or nil for the document tree.
func shadowBoundary(n *html.Node) *html.Node {
	for ; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && n.DataAtom == atom.Template {
			return n
		}
	}
	return nil
}

// walkLight visits the element descendants of root in document order.
// Template contents are inert and never part of the light tree.
func walkLight(root *html.Node, visit func(*html.Node)) {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if c.DataAtom == atom.Template {
			continue
		}
		visit(c)
		walkLight(c, visit)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
