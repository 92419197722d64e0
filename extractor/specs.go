package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/specgrab/dom"
	"github.com/use-agent/specgrab/models"
)

const (
	maxLabelRunes = 100
	maxValueRunes = 500
)

// specTier is one strategy for reading specification pairs.
type specTier struct {
	name    string
	extract func(ctx context.Context, in *pageState) (models.SpecificationMap, error)
}

// specTiers returns the exclusive tiers, tried in order until one yields
// pairs, and the overlay tiers, which always run and overwrite.
func (x *Extractor) specTiers() (exclusive, overlay []specTier) {
	exclusive = []specTier{
		{name: "marker-rows", extract: x.markerRows},
		{name: "generic-table", extract: x.genericTable},
	}
	overlay = []specTier{
		{name: "definition-list", extract: x.definitionList},
	}
	return exclusive, overlay
}

func (x *Extractor) specifications(ctx context.Context, in *pageState) (models.SpecificationMap, error) {
	specs := models.SpecificationMap{}
	exclusive, overlay := x.specTiers()

	for _, tier := range exclusive {
		m, err := tier.extract(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("spec tier %s: %w", tier.name, err)
		}
		slog.Debug("spec tier finished", "tier", tier.name, "count", len(m))
		if len(m) > 0 {
			specs.Merge(m)
			break
		}
	}

	for _, tier := range overlay {
		m, err := tier.extract(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("spec tier %s: %w", tier.name, err)
		}
		slog.Debug("spec tier finished", "tier", tier.name, "count", len(m))
		specs.Merge(m)
	}
	return specs, nil
}

// markerRows reads rows carrying the spec marker class, one label cell and
// one value cell each.
func (x *Extractor) markerRows(ctx context.Context, in *pageState) (models.SpecificationMap, error) {
	rows, err := in.page.DeepQueryAll(ctx, x.sel.SpecRow)
	if err != nil {
		return nil, err
	}

	out := models.SpecificationMap{}
	for _, row := range rows {
		label := firstText(row, x.sel.SpecLabel)
		value := firstText(row, x.sel.SpecValue)
		if label != "" && value != "" {
			out[label] = value
		}
	}
	return out, nil
}

// genericTable accepts any table row whose first two cells look like a
// label/value pair rather than layout.
func (x *Extractor) genericTable(ctx context.Context, in *pageState) (models.SpecificationMap, error) {
	rows, err := in.page.DeepQueryAll(ctx, x.sel.TableRow)
	if err != nil {
		return nil, err
	}

	out := models.SpecificationMap{}
	for _, row := range rows {
		cells, err := row.QueryAll(x.sel.TableCell)
		if err != nil || len(cells) < 2 {
			continue
		}
		label, value := elementText(cells[0]), elementText(cells[1])
		if acceptTableRow(label, value) {
			out[label] = value
		}
	}
	return out, nil
}

func acceptTableRow(label, value string) bool {
	return label != "" && value != "" &&
		label != value &&
		utf8.RuneCountInString(label) < maxLabelRunes &&
		utf8.RuneCountInString(value) < maxValueRunes
}

// definitionList pairs terms and definitions of the static snapshot by
// position. Unequal counts mean the lists cannot be trusted to line up.
func (x *Extractor) definitionList(_ context.Context, in *pageState) (models.SpecificationMap, error) {
	terms := in.snapshot.Find(x.sel.Term)
	defs := in.snapshot.Find(x.sel.Definition)

	out := models.SpecificationMap{}
	if terms.Length() == 0 || terms.Length() != defs.Length() {
		return out, nil
	}

	terms.Each(func(i int, term *goquery.Selection) {
		label := dom.NormalizeText(term.Text())
		value := dom.NormalizeText(defs.Eq(i).Text())
		if label != "" && value != "" {
			out[label] = value
		}
	})
	return out, nil
}

// firstText returns the normalized text of the first match of selector
// beneath el, or "".
func firstText(el dom.Element, selector string) string {
	found, err := el.QueryAll(selector)
	if err != nil || len(found) == 0 {
		return ""
	}
	return elementText(found[0])
}

func elementText(el dom.Element) string {
	text, err := el.Text()
	if err != nil {
		return ""
	}
	return dom.NormalizeText(text)
}
