// Package cleaner turns product description markup into text forms the
// persistence layer stores.
package cleaner

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// Markdown converts description fragments. It is safe for concurrent use.
type Markdown struct {
	conv *converter.Converter
}

// NewMarkdown builds a converter with the base, commonmark and table
// plugins. Tables keep minimal padding; vendor descriptions often embed
// small feature tables.
func NewMarkdown() *Markdown {
	return &Markdown{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(
					table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
				),
			),
		),
	}
}

// Convert renders fragment as Markdown, resolving relative links and image
// sources against origin.
func (m *Markdown) Convert(fragment, origin string) (string, error) {
	out, err := m.conv.ConvertString(fragment, converter.WithDomain(origin))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
