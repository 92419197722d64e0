// Package dom is the page model the extraction stages work against.
//
// A Page is either a live browser tab (see package browser) or a StaticPage
// built from parsed HTML. Every query crosses open shadow roots.
package dom

import (
	"context"
	"strings"
	"time"
)

// Page is the document of one extraction session.
type Page interface {
	// DeepQueryAll returns all elements matching selector in document and
	// shadow traversal order.
	DeepQueryAll(ctx context.Context, selector string) ([]Element, error)

	// HTML returns a serialized snapshot of the current document.
	HTML(ctx context.Context) (string, error)

	// Capture produces a diagnostic artifact of the current page state.
	Capture(ctx context.Context) (*Artifact, error)
}

// Element is one node returned by DeepQueryAll.
type Element interface {
	// Text returns the rendered text of the element.
	Text() (string, error)

	// Attribute returns the attribute value and whether it is present.
	Attribute(name string) (string, bool, error)

	// HTML returns the element's outer HTML.
	HTML() (string, error)

	// QueryAll deep-queries beneath this element.
	QueryAll(selector string) ([]Element, error)

	// Ancestor returns the nearest proper ancestor matching selector within
	// the element's own tree, or nil. The element itself is never returned.
	Ancestor(selector string) (Element, error)

	// Click dispatches a synthetic click.
	Click() error
}

// Artifact is a diagnostic capture. Ext includes the leading dot.
type Artifact struct {
	Data []byte
	Ext  string
}

// NormalizeText trims s and collapses inner whitespace runs to one space.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// HasClass reports whether el carries class name in its class attribute.
func HasClass(el Element, name string) (bool, error) {
	cls, ok, err := el.Attribute("class")
	if err != nil || !ok {
		return false, err
	}
	for _, c := range strings.Fields(cls) {
		if c == name {
			return true, nil
		}
	}
	return false, nil
}

// NavigateOptions bounds one navigation.
type NavigateOptions struct {
	// Timeout covers the navigation, page load and the WaitSelector wait.
	Timeout time.Duration

	// WaitSelector, when set, must appear before Navigate returns.
	WaitSelector string
}

// Session owns one page for the duration of a single extraction.
type Session interface {
	Navigate(ctx context.Context, url string, opts NavigateOptions) error
	Page() Page

	// Close releases the session. It is idempotent and logs, rather than
	// returns, internal failures.
	Close()
}

// Launcher opens sessions. Each call yields a fresh, unshared session.
type Launcher interface {
	Open(ctx context.Context) (Session, error)
}
