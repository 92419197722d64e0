package models

// ExtractionRequest identifies the vendor product to extract.
// Identifier is substituted into the configured URL template.
type ExtractionRequest struct {
	Identifier string `json:"identifier" binding:"required"`

	// MaxAge allows serving a cached result younger than MaxAge milliseconds.
	// Zero disables the cache lookup.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`
}

// SpecificationMap maps a specification label to its value.
type SpecificationMap map[string]string

// Merge copies every entry of other into m, overwriting same-key entries.
func (m SpecificationMap) Merge(other SpecificationMap) {
	for k, v := range other {
		m[k] = v
	}
}

// ExtractionResult is the outcome of one extraction. It is built by the
// extractor and not mutated after it is returned.
type ExtractionResult struct {
	Success bool `json:"success"`

	// Description is the plain-text product description.
	Description string `json:"description"`

	// DescriptionMarkdown is the marked description element rendered as
	// Markdown. Empty when the description came from a meta tag.
	DescriptionMarkdown string `json:"description_markdown,omitempty"`

	Specifications     SpecificationMap `json:"specifications"`
	SpecificationCount int              `json:"specification_count"`

	// Image is an absolute URL or empty.
	Image string `json:"image"`

	// DiagnosticsPath is set when the specification map came out empty and
	// a diagnostic artifact was stored.
	DiagnosticsPath string `json:"diagnostics_path,omitempty"`

	// SourceURL is the page the result was extracted from.
	SourceURL string `json:"source_url,omitempty"`

	// PageFingerprint is a SimHash of the page's tag structure, rendered as
	// 16 hex digits. Useful to spot vendor layout changes between runs.
	PageFingerprint string `json:"page_fingerprint,omitempty"`

	Error *ErrorDetail `json:"error,omitempty"`
}
