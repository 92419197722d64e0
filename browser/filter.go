package browser

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceTypes maps config names to protocol resource types.
var resourceTypes = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
}

// trackerHosts are analytics and ad hosts that slow vendor pages down
// without contributing product content.
var trackerHosts = map[string]struct{}{
	"doubleclick.net":       {},
	"googlesyndication.com": {},
	"googleadservices.com":  {},
	"google-analytics.com":  {},
	"googletagmanager.com":  {},
	"facebook.net":          {},
	"hotjar.com":            {},
	"mixpanel.com":          {},
	"segment.com":           {},
	"optimizely.com":        {},
	"demdex.net":            {},
	"omtrdc.net":            {},
	"adobedtm.com":          {},
	"linkedin.com":          {},
	"bing.com":              {},
}

// requestFilter decides which requests a page may make.
type requestFilter struct {
	types      map[proto.NetworkResourceType]struct{}
	blockHosts bool
}

func newRequestFilter(blockedTypes []string, blockTrackers bool) *requestFilter {
	f := &requestFilter{
		types:      make(map[proto.NetworkResourceType]struct{}, len(blockedTypes)),
		blockHosts: blockTrackers,
	}
	for _, name := range blockedTypes {
		if rt, ok := resourceTypes[name]; ok {
			f.types[rt] = struct{}{}
		}
	}
	return f
}

func (f *requestFilter) empty() bool {
	return len(f.types) == 0 && !f.blockHosts
}

// blocks reports whether a request of type rt to rawURL is dropped.
func (f *requestFilter) blocks(rt proto.NetworkResourceType, rawURL string) bool {
	if _, ok := f.types[rt]; ok {
		return true
	}
	if !f.blockHosts {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return isTrackerHost(u.Hostname())
}

// isTrackerHost matches host or any parent domain against trackerHosts.
func isTrackerHost(host string) bool {
	host = strings.ToLower(host)
	for host != "" {
		if _, ok := trackerHosts[host]; ok {
			return true
		}
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			break
		}
		host = host[idx+1:]
	}
	return false
}

// mountRequestFilter installs f on page. Returns nil if f blocks nothing;
// otherwise the caller must Stop the returned router.
func mountRequestFilter(page *rod.Page, f *requestFilter) *rod.HijackRouter {
	if f.empty() {
		return nil
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if f.blocks(ctx.Request.Type(), ctx.Request.URL().String()) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// Run blocks until Stop.
	go router.Run()
	return router
}
