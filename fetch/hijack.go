package fetch

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceTypeByName maps human-readable config strings to Rod protocol
// resource types.
var resourceTypeByName = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
	"Script":     proto.NetworkResourceTypeScript,
}

// adDomains is a set of well-known ad and tracking domains blocked when
// BlockAds is enabled. Blocking them keeps renders fast and keeps
// third-party tracker noise out of the console-error capture.
var adDomains = map[string]struct{}{
	"doubleclick.net":        {},
	"googlesyndication.com":  {},
	"googleadservices.com":   {},
	"google-analytics.com":   {},
	"googletagmanager.com":   {},
	"googletagservices.com":  {},
	"facebook.net":           {},
	"connect.facebook.net":   {},
	"fbcdn.net":              {},
	"adnxs.com":              {},
	"adsrvr.org":             {},
	"amazon-adsystem.com":    {},
	"criteo.com":             {},
	"criteo.net":             {},
	"outbrain.com":           {},
	"taboola.com":            {},
	"moatads.com":            {},
	"pubmatic.com":           {},
	"rubiconproject.com":     {},
	"scorecardresearch.com":  {},
	"quantserve.com":         {},
	"hotjar.com":             {},
	"mixpanel.com":           {},
	"segment.io":             {},
	"segment.com":            {},
	"analytics.twitter.com":  {},
	"ads-twitter.com":        {},
	"static.ads-twitter.com": {},
	"chartbeat.com":          {},
	"chartbeat.net":          {},
	"optimizely.com":         {},
	"zedo.com":               {},
	"media.net":              {},
	"contextweb.com":         {},
	"bidswitch.net":          {},
	"openx.net":              {},
	"casalemedia.com":        {},
	"demdex.net":             {},
	"krxd.net":               {},
	"bluekai.com":            {},
	"exelator.com":           {},
	"turn.com":               {},
	"mathtag.com":            {},
	"serving-sys.com":        {},
	"eyeota.net":             {},
	"agkn.com":               {},
	"rlcdn.com":              {},
	"sharethis.com":          {},
	"addthis.com":            {},
	"consensu.org":           {},
}

// isAdDomain reports whether the host or any of its parent domains is
// blocklisted.
func isAdDomain(host string) bool {
	for host = strings.ToLower(host); host != ""; {
		if _, ok := adDomains[host]; ok {
			return true
		}
		_, rest, found := strings.Cut(host, ".")
		if !found {
			break
		}
		host = rest
	}
	return false
}

// setupHijack installs a request interceptor on the page that blocks the
// configured resource types and, optionally, known ad/tracking domains.
//
// Returns the running HijackRouter so the caller can defer router.Stop(),
// or nil if there is nothing to block.
func setupHijack(page *rod.Page, blockedTypes []string, blockAds bool) *rod.HijackRouter {
	blocked := make(map[proto.NetworkResourceType]struct{}, len(blockedTypes))
	for _, name := range blockedTypes {
		if rt, ok := resourceTypeByName[name]; ok {
			blocked[rt] = struct{}{}
		}
	}
	if len(blocked) == 0 && !blockAds {
		return nil
	}

	router := page.HijackRequests()

	// Intercept everything ("*" with no resource-type filter) and decide
	// per request.
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if _, deny := blocked[ctx.Request.Type()]; deny {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}

		if blockAds {
			if u, err := url.Parse(ctx.Request.URL().String()); err == nil && isAdDomain(u.Hostname()) {
				ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
				return
			}
		}

		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// Run blocks until router.Stop, so it gets its own goroutine.
	go router.Run()

	return router
}
