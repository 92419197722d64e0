// Package extractor pulls a product's description, specification table and
// primary image out of the vendor page.
//
// One call to Extract walks the pipeline
//
//	INIT → NAVIGATED → DISCLOSURE_CHECK → [TRIGGERING → SETTLING] →
//	EXTRACTING → [DIAGNOSTIC_CAPTURE] → CLOSED
//
// and reaches CLOSED on every path: the session is released by a single
// deferred Close right after it is opened.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/specgrab/cleaner"
	"github.com/use-agent/specgrab/diagnostics"
	"github.com/use-agent/specgrab/dom"
	"github.com/use-agent/specgrab/models"
	"github.com/use-agent/specgrab/simhash"
)

// Options are the per-deployment knobs of the pipeline.
type Options struct {
	// URLTemplate must contain "{id}".
	URLTemplate string

	NavigationTimeout time.Duration
	KeySelector       string

	// Settle windows are fixed waits after simulated clicks.
	DisclosureSettle time.Duration
	ImageSettle      time.Duration
}

// Extractor runs extractions. It holds no per-request state; every call to
// Extract opens its own session.
type Extractor struct {
	launcher    dom.Launcher
	diagnostics diagnostics.Store
	markdown    *cleaner.Markdown
	sel         Selectors
	opts        Options
}

// New returns an Extractor. store may be nil to disable diagnostics.
func New(launcher dom.Launcher, store diagnostics.Store, sel Selectors, opts Options) *Extractor {
	return &Extractor{
		launcher:    launcher,
		diagnostics: store,
		markdown:    cleaner.NewMarkdown(),
		sel:         sel,
		opts:        opts,
	}
}

// pageState is what every stage reads from. snapshot is the static parse
// of the page taken right after disclosure.
type pageState struct {
	page     dom.Page
	snapshot *goquery.Document
	html     string
	url      string
	origin   *url.URL
}

// TargetURL substitutes identifier into the URL template.
func (x *Extractor) TargetURL(identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", models.NewScrapeError(models.ErrCodeInvalidInput, "identifier is required", nil)
	}
	if !strings.Contains(x.opts.URLTemplate, "{id}") {
		return "", models.NewScrapeError(models.ErrCodeInternal, "url template has no {id} placeholder", nil)
	}

	raw := strings.ReplaceAll(x.opts.URLTemplate, "{id}", url.PathEscape(identifier))
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", models.NewScrapeError(models.ErrCodeInternal, "url template does not yield an absolute http(s) URL", err)
	}
	return u.String(), nil
}

// Extract runs one extraction. The returned result is never nil. For
// launch, navigation and mid-pipeline failures the result has Success
// false and the same *models.ScrapeError is returned as err. A result with
// no specifications or no image is still a success.
func (x *Extractor) Extract(ctx context.Context, req *models.ExtractionRequest) (*models.ExtractionResult, error) {
	target, err := x.TargetURL(req.Identifier)
	if err != nil {
		return failed("", err)
	}
	log := slog.With("identifier", req.Identifier, "url", target)

	sess, err := x.launcher.Open(ctx)
	if err != nil {
		log.Error("session launch failed", "error", err)
		return failed(target, asScrapeError(err, models.ErrCodeLaunch, "failed to launch browser"))
	}
	defer sess.Close()

	if err := sess.Navigate(ctx, target, dom.NavigateOptions{
		Timeout:      x.opts.NavigationTimeout,
		WaitSelector: x.opts.KeySelector,
	}); err != nil {
		log.Warn("navigation failed", "error", err)
		return failed(target, asScrapeError(err, models.ErrCodeNavigation, models.MsgNavigationFailed))
	}

	res, err := x.extractPage(ctx, sess.Page(), req.Identifier, target)
	if err != nil {
		log.Error("extraction failed", "error", err)
		return failed(target, asScrapeError(err, models.ErrCodeExtraction, "extraction failed"))
	}

	log.Info("extraction finished",
		"specifications", res.SpecificationCount,
		"hasImage", res.Image != "",
		"hasDescription", res.Description != "",
	)
	return res, nil
}

func (x *Extractor) extractPage(ctx context.Context, page dom.Page, identifier, target string) (*models.ExtractionResult, error) {
	if err := x.disclose(ctx, page); err != nil {
		return nil, fmt.Errorf("disclosure: %w", err)
	}

	in, err := x.snapshot(ctx, page, target)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	specs, err := x.specifications(ctx, in)
	if err != nil {
		return nil, err
	}

	image, err := x.resolveImage(ctx, in)
	if err != nil {
		return nil, err
	}

	desc, descMarkdown, err := x.describe(ctx, in)
	if err != nil {
		return nil, err
	}

	res := &models.ExtractionResult{
		Success:             true,
		Description:         desc,
		DescriptionMarkdown: descMarkdown,
		Specifications:      specs,
		SpecificationCount:  len(specs),
		Image:               image,
		SourceURL:           target,
		PageFingerprint:     simhash.Hex(simhash.Layout(in.html)),
	}

	if len(specs) == 0 {
		res.DiagnosticsPath = x.captureDiagnostics(ctx, page, identifier)
	}
	return res, nil
}

func (x *Extractor) snapshot(ctx context.Context, page dom.Page, target string) (*pageState, error) {
	src, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	return &pageState{
		page:     page,
		snapshot: doc,
		html:     src,
		url:      target,
		origin:   &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"},
	}, nil
}

// captureDiagnostics stores an artifact of the page. Its own failures are
// logged and swallowed.
func (x *Extractor) captureDiagnostics(ctx context.Context, page dom.Page, identifier string) string {
	if x.diagnostics == nil {
		return ""
	}
	art, err := page.Capture(ctx)
	if err != nil {
		slog.Warn("diagnostic capture failed", "identifier", identifier, "error", err)
		return ""
	}
	p, err := x.diagnostics.Save(identifier, art)
	if err != nil {
		slog.Warn("diagnostic save failed", "identifier", identifier, "error", err)
		return ""
	}
	slog.Info("no specifications found, diagnostics stored", "identifier", identifier, "path", p)
	return p
}

// settle waits d or until ctx is done.
func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func failed(target string, err error) (*models.ExtractionResult, error) {
	se := asScrapeError(err, models.ErrCodeInternal, "extraction failed")
	return &models.ExtractionResult{
		Success:        false,
		Specifications: models.SpecificationMap{},
		SourceURL:      target,
		Error:          se.ToDetail(),
	}, se
}

// asScrapeError keeps an existing ScrapeError or wraps err with code and msg.
func asScrapeError(err error, code, msg string) *models.ScrapeError {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se
	}
	return models.NewScrapeError(code, msg, err)
}
