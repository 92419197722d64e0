package dom

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"github.com/use-agent/specgrab/deepquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// StaticPage is a Page over a parsed HTML document. Declarative shadow
// roots (<template shadowrootmode="open">) are treated as attached roots.
//
// Clicks are recorded; OnClick, when set, may mutate the document to
// simulate content that renders after interaction. It runs with the page
// locked and must not call back into the page.
type StaticPage struct {
	mu      sync.Mutex
	doc     *html.Node
	clicks  []*html.Node
	OnClick func(doc, clicked *html.Node)
}

// ParseStaticPage parses src into a StaticPage.
func ParseStaticPage(src string) (*StaticPage, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, err
	}
	return &StaticPage{doc: doc}, nil
}

// Clicks returns the clicked elements in click order.
func (p *StaticPage) Clicks() []*html.Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*html.Node(nil), p.clicks...)
}

func (p *StaticPage) DeepQueryAll(ctx context.Context, selector string) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queryLocked(p.doc, selector)
}

func (p *StaticPage) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var buf bytes.Buffer
	if err := html.Render(&buf, p.doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Capture returns the HTML snapshot; a static page has nothing to render.
func (p *StaticPage) Capture(ctx context.Context) (*Artifact, error) {
	src, err := p.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return &Artifact{Data: []byte(src), Ext: ".html"}, nil
}

func (p *StaticPage) queryLocked(root *html.Node, selector string) ([]Element, error) {
	nodes, err := deepquery.QueryAllString(root, selector)
	if err != nil {
		return nil, err
	}
	out := make([]Element, len(nodes))
	for i, n := range nodes {
		out[i] = &staticElement{page: p, node: n}
	}
	return out, nil
}

type staticElement struct {
	page *StaticPage
	node *html.Node
}

func (e *staticElement) Text() (string, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	var sb strings.Builder
	collectText(e.node, &sb)
	return sb.String(), nil
}

func (e *staticElement) Attribute(name string) (string, bool, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	for _, a := range e.node.Attr {
		if a.Key == name {
			return a.Val, true, nil
		}
	}
	return "", false, nil
}

func (e *staticElement) HTML() (string, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	var buf bytes.Buffer
	if err := html.Render(&buf, e.node); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (e *staticElement) QueryAll(selector string) ([]Element, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.page.queryLocked(e.node, selector)
}

// Ancestor walks from the parent up to the enclosing shadow root or
// document.
func (e *staticElement) Ancestor(selector string) (Element, error) {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, err
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	for n := e.node.Parent; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if n.DataAtom == atom.Template {
			break
		}
		if sel.Match(n) {
			return &staticElement{page: e.page, node: n}, nil
		}
	}
	return nil, nil
}

func (e *staticElement) Click() error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	e.page.clicks = append(e.page.clicks, e.node)
	if e.page.OnClick != nil {
		e.page.OnClick(e.page.doc, e.node)
	}
	return nil
}

// collectText gathers light-DOM text, skipping script, style and templates.
func collectText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Template, atom.Noscript:
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}
