package extractor

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/use-agent/specgrab/diagnostics"
	"github.com/use-agent/specgrab/dom"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// fakeLauncher serves one page to every session and counts lifecycle calls.
type fakeLauncher struct {
	page     dom.Page
	openErr  error
	navigate func(ctx context.Context, opts dom.NavigateOptions) error

	opens  atomic.Int32
	closes atomic.Int32
}

func (l *fakeLauncher) Open(ctx context.Context) (dom.Session, error) {
	if l.openErr != nil {
		return nil, l.openErr
	}
	l.opens.Add(1)
	return &fakeSession{l: l}, nil
}

type fakeSession struct {
	l *fakeLauncher
}

func (s *fakeSession) Navigate(ctx context.Context, _ string, opts dom.NavigateOptions) error {
	if s.l.navigate != nil {
		return s.l.navigate(ctx, opts)
	}
	return nil
}

func (s *fakeSession) Page() dom.Page { return s.l.page }
func (s *fakeSession) Close()         { s.l.closes.Add(1) }

// countingLauncher wraps a real launcher and counts Close calls.
type countingLauncher struct {
	inner  dom.Launcher
	closes atomic.Int32
}

func (l *countingLauncher) Open(ctx context.Context) (dom.Session, error) {
	s, err := l.inner.Open(ctx)
	if err != nil {
		return nil, err
	}
	return &countingSession{Session: s, closes: &l.closes}, nil
}

type countingSession struct {
	dom.Session
	closes *atomic.Int32
}

func (s *countingSession) Close() {
	s.closes.Add(1)
	s.Session.Close()
}

// brokenPage fails or panics when a query for selector is made.
type brokenPage struct {
	dom.Page
	selector string
	panics   bool
}

var errTargetCrashed = errors.New("target crashed")

func (p *brokenPage) DeepQueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	if selector == p.selector {
		if p.panics {
			panic("renderer went away")
		}
		return nil, errTargetCrashed
	}
	return p.Page.DeepQueryAll(ctx, selector)
}

func testOptions() Options {
	return Options{
		URLTemplate:       "https://shop.vendor.example/product/{id}",
		NavigationTimeout: time.Second,
		KeySelector:       "body",
		DisclosureSettle:  time.Millisecond,
		ImageSettle:       time.Millisecond,
	}
}

func staticPage(t *testing.T, src string) *dom.StaticPage {
	t.Helper()
	p, err := dom.ParseStaticPage(src)
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}
	return p
}

func newTestExtractor(t *testing.T, l dom.Launcher) *Extractor {
	t.Helper()
	return New(l, diagnostics.DirStore{Dir: t.TempDir()}, DefaultSelectors(), testOptions())
}

// appendToBody returns an OnClick hook that appends fragment to <body> when
// a clicked element's text contains trigger.
func appendToBody(trigger, fragment string) func(doc, clicked *html.Node) {
	return func(doc, clicked *html.Node) {
		if !strings.Contains(nodeText(clicked), trigger) {
			return
		}
		body := findBody(doc)
		nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body})
		if err != nil || body == nil {
			return
		}
		for _, n := range nodes {
			body.AppendChild(n)
		}
	}
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(nodeText(c))
	}
	return sb.String()
}
