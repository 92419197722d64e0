package cleaner

import (
	"log/slog"
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// Excerpt runs Readability over a page snapshot and returns its excerpt,
// the first paragraph of the detected main content. Empty when Readability
// finds nothing usable; this is the last description fallback, so failure
// is logged at debug level only.
func Excerpt(rawHTML, sourceURL string) string {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		slog.Debug("readability: invalid source URL", "url", sourceURL, "error", err)
		return ""
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		slog.Debug("readability: extraction failed", "url", sourceURL, "error", err)
		return ""
	}
	return strings.Join(strings.Fields(article.Excerpt), " ")
}
