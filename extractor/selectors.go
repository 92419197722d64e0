package extractor

// Selectors describes where things live on the vendor page. The page is
// not under our control, so every value here is a heuristic.
type Selectors struct {
	// DisclosureCandidates are controls that may reveal the spec section.
	DisclosureCandidates string
	// DisclosurePhrases are matched case-insensitively as substrings of
	// a candidate's visible text. The first matching candidate wins.
	DisclosurePhrases []string
	// ActiveClass marks an already-open tab on the trigger or ActiveAncestor.
	ActiveClass    string
	ActiveAncestor string

	// SpecRow rows carry SpecLabel and SpecValue cells (tier 1).
	SpecRow   string
	SpecLabel string
	SpecValue string
	// TableRow and TableCell drive the generic table heuristic (tier 2).
	TableRow  string
	TableCell string
	// Term and Definition are paired by position in the snapshot (tier 3).
	Term       string
	Definition string

	ImageTrigger   string
	ModalContainer string
	Anchor         string
	// MediaMarker must appear in an image link's href together with one
	// of ImageExtensions.
	MediaMarker     string
	ImageExtensions []string
	PreviewMeta     string
	KnownImage      string

	Description     string
	MetaDescription string
}

// DefaultSelectors returns the selectors for the vendor's current layout.
func DefaultSelectors() Selectors {
	return Selectors{
		DisclosureCandidates: `button, a, [role="tab"], .tab-label, .tab-title, label`,
		DisclosurePhrases:    []string{"technical data", "technical specifications", "product details", "specifications"},
		ActiveClass:          "active",
		ActiveAncestor:       "li, button",

		SpecRow:    ".spec-row",
		SpecLabel:  ".spec-label",
		SpecValue:  ".spec-value",
		TableRow:   "tr",
		TableCell:  "td, th",
		Term:       "dt",
		Definition: "dd",

		ImageTrigger:    `.product-image-thumbnail, .gallery-trigger, [data-zoom]`,
		ModalContainer:  `[role="dialog"], .modal, .lightbox, .overlay`,
		Anchor:          "a[href]",
		MediaMarker:     "/media/",
		ImageExtensions: []string{".jpg", ".jpeg", ".png", ".webp", ".gif"},
		PreviewMeta:     `meta[property="og:image"]`,
		KnownImage:      "img.product-image",

		Description:     ".product-description",
		MetaDescription: `meta[name="description"]`,
	}
}
