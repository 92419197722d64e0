package extractor

import (
	"context"
	"log/slog"

	"github.com/use-agent/specgrab/cleaner"
	"github.com/use-agent/specgrab/dom"
)

// describe resolves the description: the marked element in the live DOM,
// then the meta description of the snapshot, then a Readability excerpt.
// Markdown is only produced for the marked element.
func (x *Extractor) describe(ctx context.Context, in *pageState) (text, markdown string, err error) {
	els, err := in.page.DeepQueryAll(ctx, x.sel.Description)
	if err != nil {
		return "", "", err
	}
	for _, el := range els {
		t := elementText(el)
		if t == "" {
			continue
		}
		return t, x.descriptionMarkdown(el, in), nil
	}

	if meta, _ := in.snapshot.Find(x.sel.MetaDescription).First().Attr("content"); dom.NormalizeText(meta) != "" {
		return dom.NormalizeText(meta), "", nil
	}

	return cleaner.Excerpt(in.html, in.url), "", nil
}

func (x *Extractor) descriptionMarkdown(el dom.Element, in *pageState) string {
	fragment, err := el.HTML()
	if err != nil {
		return ""
	}
	md, err := x.markdown.Convert(fragment, in.origin.String())
	if err != nil {
		slog.Debug("description markdown conversion failed", "error", err)
		return ""
	}
	return md
}
