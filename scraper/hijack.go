package scraper

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
	"Script":     proto.NetworkResourceTypeScript,
}

// adDomains are ad and tracking hosts failed when ad blocking is on.
// Subdomains match too.
var adDomains = map[string]struct{}{
	"doubleclick.net":       {},
	"googlesyndication.com": {},
	"googleadservices.com":  {},
	"google-analytics.com":  {},
	"googletagmanager.com":  {},
	"googletagservices.com": {},
	"facebook.net":          {},
	"adnxs.com":             {},
	"adsrvr.org":            {},
	"amazon-adsystem.com":   {},
	"criteo.com":            {},
	"criteo.net":            {},
	"outbrain.com":          {},
	"taboola.com":           {},
	"moatads.com":           {},
	"pubmatic.com":          {},
	"rubiconproject.com":    {},
	"scorecardresearch.com": {},
	"quantserve.com":        {},
	"hotjar.com":            {},
	"mixpanel.com":          {},
	"segment.io":            {},
	"ads-twitter.com":       {},
	"chartbeat.com":         {},
	"media.net":             {},
	"openx.net":             {},
	"casalemedia.com":       {},
	"demdex.net":            {},
	"krxd.net":              {},
	"consensu.org":          {},
}

func isAdDomain(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for host != "" {
		if _, ok := adDomains[host]; ok {
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

// blocker decides which subresource requests a page may make.
type blocker struct {
	types    map[proto.NetworkResourceType]struct{}
	blockAds bool
}

// newBlocker builds a blocker from config names. Unknown names are ignored.
func newBlocker(blockedTypes []string, blockAds bool) *blocker {
	b := &blocker{types: make(map[proto.NetworkResourceType]struct{}, len(blockedTypes)), blockAds: blockAds}
	for _, name := range blockedTypes {
		if rt, ok := resourceTypes[name]; ok {
			b.types[rt] = struct{}{}
		}
	}
	return b
}

func (b *blocker) active() bool {
	return len(b.types) > 0 || b.blockAds
}

// blocks reports whether a request of type rt to rawURL should fail.
func (b *blocker) blocks(rt proto.NetworkResourceType, rawURL string) bool {
	if _, ok := b.types[rt]; ok {
		return true
	}
	if !b.blockAds {
		return false
	}
	u, err := url.Parse(rawURL)
	return err == nil && isAdDomain(u.Hostname())
}

// mount installs a hijack router on page. It returns nil when nothing is
// blocked; otherwise the caller must Stop the router.
func (b *blocker) mount(page *rod.Page) *rod.HijackRouter {
	if !b.active() {
		return nil
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(h *rod.Hijack) {
		if b.blocks(h.Request.Type(), h.Request.URL().String()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// Run blocks until Stop.
	go router.Run()
	return router
}
