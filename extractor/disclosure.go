package extractor

import (
	"context"
	"log/slog"
	"strings"

	"github.com/use-agent/specgrab/dom"
)

// disclose opens the specification section if a trigger for it exists and
// is not already active. A missing trigger is not an error: extraction
// proceeds against whatever is rendered.
func (x *Extractor) disclose(ctx context.Context, page dom.Page) error {
	candidates, err := page.DeepQueryAll(ctx, x.sel.DisclosureCandidates)
	if err != nil {
		return err
	}

	trigger, label := findTrigger(candidates, x.sel.DisclosurePhrases)
	if trigger == nil {
		slog.Info("no disclosure trigger matched, extracting current render", "candidates", len(candidates))
		return nil
	}

	if isActive(trigger, x.sel.ActiveClass, x.sel.ActiveAncestor) {
		slog.Debug("disclosure trigger already active", "label", label)
		return nil
	}

	if err := trigger.Click(); err != nil {
		slog.Warn("disclosure click failed", "label", label, "error", err)
		return nil
	}
	slog.Debug("disclosure trigger clicked", "label", label, "settle", x.opts.DisclosureSettle)
	return settle(ctx, x.opts.DisclosureSettle)
}

// findTrigger returns the first candidate whose text contains one of the
// phrases, ignoring case. Unreadable candidates are skipped.
func findTrigger(candidates []dom.Element, phrases []string) (dom.Element, string) {
	for _, el := range candidates {
		text, err := el.Text()
		if err != nil {
			continue
		}
		norm := strings.ToLower(dom.NormalizeText(text))
		if norm == "" {
			continue
		}
		for _, phrase := range phrases {
			if strings.Contains(norm, strings.ToLower(phrase)) {
				return el, norm
			}
		}
	}
	return nil, ""
}

// isActive checks el and its nearest ancestor matching ancestorSel for
// activeClass. Read errors count as inactive, which at worst re-clicks an
// open tab.
func isActive(el dom.Element, activeClass, ancestorSel string) bool {
	if ok, _ := dom.HasClass(el, activeClass); ok {
		return true
	}
	if ancestorSel == "" {
		return false
	}
	anc, err := el.Ancestor(ancestorSel)
	if err != nil || anc == nil {
		return false
	}
	ok, _ := dom.HasClass(anc, activeClass)
	return ok
}
