package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/use-agent/specgrab/dom"
)

// imageStep is one strategy for finding the primary image. Steps run in
// order and the first non-empty URL wins.
type imageStep struct {
	name    string
	resolve func(ctx context.Context, in *pageState) (string, error)
}

func (x *Extractor) imageSteps() []imageStep {
	return []imageStep{
		{name: "modal-link", resolve: x.modalLink},
		{name: "page-link", resolve: x.pageLink},
		{name: "preview-meta", resolve: x.previewMeta},
		{name: "known-image", resolve: x.knownImage},
	}
}

// resolveImage opens the gallery overlay and walks the image steps. The
// result is absolute or "".
func (x *Extractor) resolveImage(ctx context.Context, in *pageState) (string, error) {
	if err := x.openGallery(ctx, in.page); err != nil {
		return "", fmt.Errorf("image gallery: %w", err)
	}

	for _, step := range x.imageSteps() {
		u, err := step.resolve(ctx, in)
		if err != nil {
			return "", fmt.Errorf("image step %s: %w", step.name, err)
		}
		if u != "" {
			slog.Debug("image resolved", "step", step.name, "image", u)
			return u, nil
		}
	}
	slog.Info("no product image found", "url", in.url)
	return "", nil
}

// openGallery clicks the last thumbnail trigger; later declared triggers
// tend to be the specific, interactive ones.
func (x *Extractor) openGallery(ctx context.Context, page dom.Page) error {
	triggers, err := page.DeepQueryAll(ctx, x.sel.ImageTrigger)
	if err != nil {
		return err
	}
	if len(triggers) == 0 {
		return nil
	}

	if err := triggers[len(triggers)-1].Click(); err != nil {
		slog.Warn("image trigger click failed", "error", err)
		return nil
	}
	return settle(ctx, x.opts.ImageSettle)
}

func (x *Extractor) modalLink(ctx context.Context, in *pageState) (string, error) {
	modals, err := in.page.DeepQueryAll(ctx, x.sel.ModalContainer)
	if err != nil {
		return "", err
	}
	for _, modal := range modals {
		anchors, err := modal.QueryAll(x.sel.Anchor)
		if err != nil {
			continue
		}
		if u := x.firstImageLink(anchors, in.origin); u != "" {
			return u, nil
		}
	}
	return "", nil
}

func (x *Extractor) pageLink(ctx context.Context, in *pageState) (string, error) {
	anchors, err := in.page.DeepQueryAll(ctx, x.sel.Anchor)
	if err != nil {
		return "", err
	}
	return x.firstImageLink(anchors, in.origin), nil
}

func (x *Extractor) previewMeta(_ context.Context, in *pageState) (string, error) {
	content, _ := in.snapshot.Find(x.sel.PreviewMeta).First().Attr("content")
	return absoluteURL(content, in.origin), nil
}

func (x *Extractor) knownImage(ctx context.Context, in *pageState) (string, error) {
	imgs, err := in.page.DeepQueryAll(ctx, x.sel.KnownImage)
	if err != nil {
		return "", err
	}
	for _, img := range imgs {
		src, ok, err := img.Attribute("src")
		if err != nil || !ok {
			continue
		}
		if u := absoluteURL(src, in.origin); u != "" {
			return u, nil
		}
	}
	return "", nil
}

func (x *Extractor) firstImageLink(anchors []dom.Element, origin *url.URL) string {
	for _, a := range anchors {
		href, ok, err := a.Attribute("href")
		if err != nil || !ok {
			continue
		}
		if x.isImageLink(href) {
			if u := absoluteURL(href, origin); u != "" {
				return u
			}
		}
	}
	return ""
}

// isImageLink requires the media marker in the path and a path ending in
// an image extension. Query and fragment are ignored.
func (x *Extractor) isImageLink(href string) bool {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return false
	}
	p := strings.ToLower(u.Path)
	if !strings.Contains(p, strings.ToLower(x.sel.MediaMarker)) {
		return false
	}
	for _, ext := range x.sel.ImageExtensions {
		if strings.HasSuffix(p, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// absoluteURL resolves raw against origin. Anything that does not end up
// as http(s) yields "".
func absoluteURL(raw string, origin *url.URL) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := origin.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
