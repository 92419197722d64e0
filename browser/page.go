package browser

import (
	"context"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/specgrab/deepquery"
	"github.com/use-agent/specgrab/dom"
)

// rodPage runs every query as an injected script; each call is one
// round trip over the DevTools protocol.
type rodPage struct {
	page *rod.Page
}

func (p *rodPage) DeepQueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	els, err := p.page.Context(ctx).ElementsByJS(rod.Eval(deepquery.Script, selector))
	if err != nil {
		return nil, err
	}
	return wrapElements(els), nil
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

// Capture takes a full-page PNG screenshot.
func (p *rodPage) Capture(ctx context.Context) (*dom.Artifact, error) {
	data, err := p.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, err
	}
	return &dom.Artifact{Data: data, Ext: ".png"}, nil
}

type rodElement struct {
	el *rod.Element
}

func wrapElements(els rod.Elements) []dom.Element {
	out := make([]dom.Element, len(els))
	for i, el := range els {
		out[i] = &rodElement{el: el}
	}
	return out
}

func (e *rodElement) Text() (string, error) {
	return e.el.Text()
}

func (e *rodElement) Attribute(name string) (string, bool, error) {
	v, err := e.el.Attribute(name)
	if err != nil || v == nil {
		return "", false, err
	}
	return *v, true, nil
}

func (e *rodElement) HTML() (string, error) {
	return e.el.HTML()
}

func (e *rodElement) QueryAll(selector string) ([]dom.Element, error) {
	els, err := e.el.ElementsByJS(rod.Eval(deepquery.Script, selector))
	if err != nil {
		return nil, err
	}
	return wrapElements(els), nil
}

func (e *rodElement) Ancestor(selector string) (dom.Element, error) {
	els, err := e.el.ElementsByJS(rod.Eval(deepquery.AncestorScript, selector))
	if err != nil || len(els) == 0 {
		return nil, err
	}
	return &rodElement{el: els[0]}, nil
}

func (e *rodElement) Click() error {
	_, err := e.el.Eval(deepquery.ClickScript)
	return err
}
