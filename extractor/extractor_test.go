package extractor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/specgrab/diagnostics"
	"github.com/use-agent/specgrab/engine"
	"github.com/use-agent/specgrab/models"
)

const markerRowsPage = `<html><head><title>Breaker</title></head><body>
<x-spec-table><template shadowrootmode="open">
	<div class="spec-row"><span class="spec-label">Voltage</span><span class="spec-value"> 230V </span></div>
	<div class="spec-row"><span class="spec-label">Current</span><span class="spec-value">16A</span></div>
</template></x-spec-table>
</body></html>`

func TestExtract_MarkerRows(t *testing.T) {
	l := &fakeLauncher{page: staticPage(t, markerRowsPage)}
	x := newTestExtractor(t, l)

	res, err := x.Extract(context.Background(), &models.ExtractionRequest{Identifier: "6ES7"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := models.SpecificationMap{"Voltage": "230V", "Current": "16A"}
	if !reflect.DeepEqual(res.Specifications, want) {
		t.Errorf("specifications = %v, want %v", res.Specifications, want)
	}
	if !res.Success || res.SpecificationCount != 2 {
		t.Errorf("success=%v count=%d", res.Success, res.SpecificationCount)
	}
	if res.DiagnosticsPath != "" {
		t.Errorf("diagnostics should not be captured when specs exist, got %q", res.DiagnosticsPath)
	}
	if res.SourceURL != "https://shop.vendor.example/product/6ES7" {
		t.Errorf("source url = %q", res.SourceURL)
	}
	if len(res.PageFingerprint) != 16 {
		t.Errorf("fingerprint = %q", res.PageFingerprint)
	}
	if got := l.closes.Load(); got != 1 {
		t.Errorf("session closed %d times, want 1", got)
	}
}

func TestExtract_EmptyPageCapturesDiagnostics(t *testing.T) {
	dir := t.TempDir()
	l := &fakeLauncher{page: staticPage(t, `<html><body><p>Nothing to see here.</p></body></html>`)}
	x := New(l, diagnostics.DirStore{Dir: dir}, DefaultSelectors(), testOptions())

	res, err := x.Extract(context.Background(), &models.ExtractionRequest{Identifier: "empty/1"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !res.Success {
		t.Error("an empty page is still a success")
	}
	if res.Specifications == nil || len(res.Specifications) != 0 {
		t.Errorf("specifications = %#v, want empty map", res.Specifications)
	}
	if res.Image != "" {
		t.Errorf("image = %q, want empty", res.Image)
	}
	if res.DiagnosticsPath == "" {
		t.Fatal("diagnostics path not set")
	}
	if filepath.Dir(res.DiagnosticsPath) != dir {
		t.Errorf("diagnostics written outside %s: %s", dir, res.DiagnosticsPath)
	}
	data, err := os.ReadFile(res.DiagnosticsPath)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if !strings.Contains(string(data), "Nothing to see here.") {
		t.Error("artifact does not contain the page")
	}
	if got := l.closes.Load(); got != 1 {
		t.Errorf("session closed %d times, want 1", got)
	}
}

func TestExtract_NavigationTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	l := &countingLauncher{inner: engine.NewStaticLauncher(engine.NewHTTPEngine("", ""))}
	opts := testOptions()
	opts.URLTemplate = srv.URL + "/product/{id}"
	opts.NavigationTimeout = 50 * time.Millisecond
	x := New(l, nil, DefaultSelectors(), opts)

	res, err := x.Extract(context.Background(), &models.ExtractionRequest{Identifier: "slow"})
	if err == nil {
		t.Fatal("expected navigation error")
	}
	var se *models.ScrapeError
	if !errors.As(err, &se) || se.Code != models.ErrCodeNavigation {
		t.Fatalf("error = %v, want %s", err, models.ErrCodeNavigation)
	}
	if res == nil || res.Success || res.Error == nil {
		t.Fatalf("result = %+v, want failure with error detail", res)
	}
	if res.Error.Message != models.MsgNavigationFailed {
		t.Errorf("message = %q", res.Error.Message)
	}
	if got := l.closes.Load(); got != 1 {
		t.Errorf("session closed %d times, want 1", got)
	}
}

func TestExtract_DefinitionListOverridesRows(t *testing.T) {
	page := `<html><body>
	<div class="spec-row"><span class="spec-label">Weight</span><span class="spec-value">1 kg</span></div>
	<div class="spec-row"><span class="spec-label">Colour</span><span class="spec-value">Grey</span></div>
	<dl><dt>Weight</dt><dd>1.2 kg</dd></dl>
	</body></html>`
	x := newTestExtractor(t, &fakeLauncher{page: staticPage(t, page)})

	res, err := x.Extract(context.Background(), &models.ExtractionRequest{Identifier: "w"})
	if err != nil {
		t.Fatal(err)
	}
	want := models.SpecificationMap{"Weight": "1.2 kg", "Colour": "Grey"}
	if !reflect.DeepEqual(res.Specifications, want) {
		t.Errorf("specifications = %v, want %v", res.Specifications, want)
	}
}

func TestExtract_DefinitionListCountMismatchIgnored(t *testing.T) {
	page := `<html><body><dl><dt>Weight</dt><dd>1.2 kg</dd><dt>Orphan</dt></dl></body></html>`
	x := newTestExtractor(t, &fakeLauncher{page: staticPage(t, page)})

	res, err := x.Extract(context.Background(), &models.ExtractionRequest{Identifier: "w"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Specifications) != 0 {
		t.Errorf("specifications = %v, want none", res.Specifications)
	}
}

func TestExtract_GenericTableFallback(t *testing.T) {
	longLabel := strings.Repeat("x", 100)
	page := `<html><body><table>
	<tr><th>Weight</th><td>2 kg</td></tr>
	<tr><td>same</td><td>same</td></tr>
	<tr><td>only one cell</td></tr>
	<tr><td></td><td>no label</td></tr>
	<tr><td>` + longLabel + `</td><td>too long</td></tr>
	<tr><td>Größe</td><td>M</td></tr>
	</table></body></html>`
	x := newTestExtractor(t, &fakeLauncher{page: staticPage(t, page)})

	res, err := x.Extract(context.Background(), &models.ExtractionRequest{Identifier: "t"})
	if err != nil {
		t.Fatal(err)
	}
	want := models.SpecificationMap{"Weight": "2 kg", "Größe": "M"}
	if !reflect.DeepEqual(res.Specifications, want) {
		t.Errorf("specifications = %v, want %v", res.Specifications, want)
	}
}

func TestExtract_GenericTableSkippedWhenRowsFound(t *testing.T) {
	page := `<html><body>
	<div class="spec-row"><span class="spec-label">Voltage</span><span class="spec-value">230V</span></div>
	<table><tr><td>Layout</td><td>cell</td></tr></table>
	</body></html>`
	x := newTestExtractor(t, &fakeLauncher{page: staticPage(t, page)})

	res, err := x.Extract(context.Background(), &models.ExtractionRequest{Identifier: "t"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := res.Specifications["Layout"]; ok {
		t.Errorf("table tier ran although marker rows matched: %v", res.Specifications)
	}
}

func TestExtract_DisclosureClickRevealsSpecs(t *testing.T) {
	page := staticPage(t, `<html><body>
	<ul class="tabs"><li class="active"><a>Overview</a></li><li><a>Technical Data</a></li></ul>
	</body></html>`)
	page.OnClick = appendToBody("Technical Data",
		`<div class="spec-row"><span class="spec-label">IP rating</span><span class="spec-value">IP65</span></div>`)
	x := newTestExtractor(t, &fakeLauncher{page: page})

	res, err := x.Extract(context.Background(), &models.ExtractionRequest{Identifier: "d"})
	if err != nil {
		t.Fatal(err)
	}
	if got := len(page.Clicks()); got != 1 {
		t.Fatalf("clicks = %d, want 1", got)
	}
	if res.Specifications["IP rating"] != "IP65" {
		t.Errorf("specifications = %v", res.Specifications)
	}
}

func TestExtract_DisclosureAlreadyActive(t *testing.T) {
	for name, src := range map[string]string{
		"ancestor":              `<ul><li class="active"><a>Technical data</a></li></ul>`,
		"self":                  `<button class="tab active">Product details</button>`,
		"button in active item": `<ul><li class="active"><button>Technical data</button></li></ul>`,
	} {
		t.Run(name, func(t *testing.T) {
			page := staticPage(t, `<html><body>`+src+`</body></html>`)
			x := newTestExtractor(t, &fakeLauncher{page: page})
			if _, err := x.Extract(context.Background(), &models.ExtractionRequest{Identifier: "a"}); err != nil {
				t.Fatal(err)
			}
			if got := len(page.Clicks()); got != 0 {
				t.Errorf("clicks = %d, want 0", got)
			}
		})
	}
}

func TestExtract_NoDisclosureTrigger(t *testing.T) {
	page := staticPage(t, `<html><body><button>Add to cart</button></body></html>`)
	l := &fakeLauncher{page: page}
	x := newTestExtractor(t, l)

	res, err := x.Extract(context.Background(), &models.ExtractionRequest{Identifier: "n"})
	if err != nil || !res.Success {
		t.Fatalf("missing trigger must not fail: %v", err)
	}
	if got := len(page.Clicks()); got != 0 {
		t.Errorf("clicks = %d, want 0", got)
	}
}

func TestExtract_ImagePrecedence(t *testing.T) {
	cases := []struct {
		name string
		head string
		body string
		want string
	}{
		{
			name: "modal link beats preview meta",
			head: `<meta property="og:image" content="/media/og.jpg">`,
			body: `<button class="gallery-trigger">zoom</button>
				<div role="dialog"><a href="/media/doc.pdf">manual</a><a href="/img/x.jpg">no marker</a><a href="/media/images/Big.JPG">full</a></div>`,
			want: "https://shop.vendor.example/media/images/Big.JPG",
		},
		{
			name: "page link inside shadow root",
			head: `<meta property="og:image" content="/media/og.jpg">`,
			body: `<x-gallery><template shadowrootmode="open"><a href="/media/p/1.webp">img</a></template></x-gallery>`,
			want: "https://shop.vendor.example/media/p/1.webp",
		},
		{
			name: "preview meta",
			head: `<meta property="og:image" content="/media/og.jpg">`,
			body: `<a href="/about">about</a>`,
			want: "https://shop.vendor.example/media/og.jpg",
		},
		{
			name: "known image protocol relative",
			body: `<img class="product-image" src="//cdn.vendor.example/p.png">`,
			want: "https://cdn.vendor.example/p.png",
		},
		{
			name: "nothing",
			body: `<img src="/logo.svg">`,
			want: "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page := staticPage(t, `<html><head>`+tc.head+`</head><body>`+tc.body+`</body></html>`)
			x := newTestExtractor(t, &fakeLauncher{page: page})
			res, err := x.Extract(context.Background(), &models.ExtractionRequest{Identifier: "img"})
			if err != nil {
				t.Fatal(err)
			}
			if res.Image != tc.want {
				t.Errorf("image = %q, want %q", res.Image, tc.want)
			}
		})
	}
}

func TestExtract_GalleryClicksLastTrigger(t *testing.T) {
	page := staticPage(t, `<html><body>
	<div class="product-image-thumbnail" id="first"></div>
	<div data-zoom id="last"></div>
	</body></html>`)
	x := newTestExtractor(t, &fakeLauncher{page: page})
	if _, err := x.Extract(context.Background(), &models.ExtractionRequest{Identifier: "g"}); err != nil {
		t.Fatal(err)
	}
	clicks := page.Clicks()
	if len(clicks) != 1 {
		t.Fatalf("clicks = %d, want 1", len(clicks))
	}
	for _, a := range clicks[0].Attr {
		if a.Key == "id" && a.Val != "last" {
			t.Errorf("clicked %q, want last trigger", a.Val)
		}
	}
}

func TestExtract_Description(t *testing.T) {
	t.Run("marked element", func(t *testing.T) {
		page := staticPage(t, `<html><head><meta name="description" content="meta text"></head><body>
		<div class="product-description"><p>Compact <strong>breaker</strong> for DIN rails.</p></div></body></html>`)
		x := newTestExtractor(t, &fakeLauncher{page: page})
		res, err := x.Extract(context.Background(), &models.ExtractionRequest{Identifier: "d"})
		if err != nil {
			t.Fatal(err)
		}
		if res.Description != "Compact breaker for DIN rails." {
			t.Errorf("description = %q", res.Description)
		}
		if !strings.Contains(res.DescriptionMarkdown, "**breaker**") {
			t.Errorf("markdown = %q", res.DescriptionMarkdown)
		}
	})
	t.Run("meta fallback", func(t *testing.T) {
		page := staticPage(t, `<html><head><meta name="description" content="  meta   text "></head><body></body></html>`)
		x := newTestExtractor(t, &fakeLauncher{page: page})
		res, err := x.Extract(context.Background(), &models.ExtractionRequest{Identifier: "d"})
		if err != nil {
			t.Fatal(err)
		}
		if res.Description != "meta text" || res.DescriptionMarkdown != "" {
			t.Errorf("description = %q markdown = %q", res.Description, res.DescriptionMarkdown)
		}
	})
}

func TestExtract_Idempotent(t *testing.T) {
	src := `<html><head><meta property="og:image" content="/media/og.jpg"></head><body>
	<ul><li class="active"><a>Specifications</a></li></ul>
	<x-spec-table><template shadowrootmode="open">
		<div class="spec-row"><span class="spec-label">Voltage</span><span class="spec-value">230V</span></div>
	</template></x-spec-table>
	<dl><dt>Weight</dt><dd>1.2 kg</dd></dl>
	</body></html>`
	x := newTestExtractor(t, &fakeLauncher{page: staticPage(t, src)})

	req := &models.ExtractionRequest{Identifier: "same"}
	first, err := x.Extract(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := x.Extract(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("runs differ:\n%+v\n%+v", first, second)
	}
}

func TestExtract_MidPipelineFailureClosesOnce(t *testing.T) {
	page := &brokenPage{Page: staticPage(t, markerRowsPage), selector: DefaultSelectors().SpecRow}
	l := &fakeLauncher{page: page}
	x := newTestExtractor(t, l)

	res, err := x.Extract(context.Background(), &models.ExtractionRequest{Identifier: "crash"})
	var se *models.ScrapeError
	if !errors.As(err, &se) || se.Code != models.ErrCodeExtraction {
		t.Fatalf("error = %v, want %s", err, models.ErrCodeExtraction)
	}
	if !errors.Is(err, errTargetCrashed) {
		t.Error("cause should be preserved")
	}
	if res.Success || res.Error == nil || res.Error.Code != models.ErrCodeExtraction {
		t.Errorf("result = %+v", res)
	}
	if got := l.closes.Load(); got != 1 {
		t.Errorf("session closed %d times, want 1", got)
	}
}

func TestExtract_PanicStillCloses(t *testing.T) {
	page := &brokenPage{Page: staticPage(t, markerRowsPage), selector: DefaultSelectors().SpecRow, panics: true}
	l := &fakeLauncher{page: page}
	x := newTestExtractor(t, l)

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		_, _ = x.Extract(context.Background(), &models.ExtractionRequest{Identifier: "boom"})
	}()
	if got := l.closes.Load(); got != 1 {
		t.Errorf("session closed %d times, want 1", got)
	}
}

func TestExtract_LaunchFailure(t *testing.T) {
	l := &fakeLauncher{openErr: errors.New("no chrome")}
	x := newTestExtractor(t, l)

	res, err := x.Extract(context.Background(), &models.ExtractionRequest{Identifier: "x"})
	var se *models.ScrapeError
	if !errors.As(err, &se) || se.Code != models.ErrCodeLaunch {
		t.Fatalf("error = %v, want %s", err, models.ErrCodeLaunch)
	}
	if res.Success || res.Specifications == nil {
		t.Errorf("result = %+v", res)
	}
	if l.closes.Load() != 0 {
		t.Error("nothing to close when launch fails")
	}
}

func TestExtract_InvalidIdentifier(t *testing.T) {
	l := &fakeLauncher{page: staticPage(t, markerRowsPage)}
	x := newTestExtractor(t, l)

	_, err := x.Extract(context.Background(), &models.ExtractionRequest{Identifier: "   "})
	var se *models.ScrapeError
	if !errors.As(err, &se) || se.Code != models.ErrCodeInvalidInput {
		t.Fatalf("error = %v, want %s", err, models.ErrCodeInvalidInput)
	}
	if l.opens.Load() != 0 {
		t.Error("no session should be opened for invalid input")
	}
}

func TestExtract_CancelledDuringSettle(t *testing.T) {
	page := staticPage(t, `<html><body><ul><li><a>Technical data</a></li></ul></body></html>`)
	l := &fakeLauncher{page: page}
	opts := testOptions()
	opts.DisclosureSettle = time.Minute
	x := New(l, nil, DefaultSelectors(), opts)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res, err := x.Extract(ctx, &models.ExtractionRequest{Identifier: "c"})
	if err == nil || res.Success {
		t.Fatal("expected cancellation to fail the run")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v", err)
	}
	if l.closes.Load() != 1 {
		t.Errorf("session closed %d times, want 1", l.closes.Load())
	}
}

func TestTargetURL(t *testing.T) {
	x := newTestExtractor(t, &fakeLauncher{})

	got, err := x.TargetURL(" 6ES7 214/1 ")
	if err != nil {
		t.Fatal(err)
	}
	if want := "https://shop.vendor.example/product/6ES7%20214%2F1"; got != want {
		t.Errorf("TargetURL = %q, want %q", got, want)
	}

	bad := New(nil, nil, DefaultSelectors(), Options{URLTemplate: "https://shop.vendor.example/product"})
	if _, err := bad.TargetURL("x"); err == nil {
		t.Error("template without placeholder should fail")
	}
	rel := New(nil, nil, DefaultSelectors(), Options{URLTemplate: "/product/{id}"})
	if _, err := rel.TargetURL("x"); err == nil {
		t.Error("relative template should fail")
	}
}

func TestAbsoluteURL(t *testing.T) {
	origin := &url.URL{Scheme: "https", Host: "shop.vendor.example", Path: "/"}

	cases := map[string]string{
		"/media/a.jpg":               "https://shop.vendor.example/media/a.jpg",
		"https://cdn.example/b.png":  "https://cdn.example/b.png",
		"//cdn.example/c.png":        "https://cdn.example/c.png",
		"javascript:void(0)":         "",
		"data:image/png;base64,AAAA": "",
		"   ":                        "",
	}
	for in, want := range cases {
		if got := absoluteURL(in, origin); got != want {
			t.Errorf("absoluteURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsImageLink(t *testing.T) {
	x := newTestExtractor(t, &fakeLauncher{})

	cases := map[string]bool{
		"/media/catalog/p/1.JPG":                 true,
		"https://cdn.example/media/a.webp?w=800": true,
		"/media/a.png#zoom":                      true,
		"/media/a.jpg.html":                      false,
		"/media/x.pngs/":                         false,
		"/media/manual.pdf":                      false,
		"/img/a.jpg":                             false,
		"/catalog?src=/media/a.jpg":              false,
	}
	for href, want := range cases {
		if got := x.isImageLink(href); got != want {
			t.Errorf("isImageLink(%q) = %v, want %v", href, got, want)
		}
	}
}
