// Package fetch retrieves audit targets: raw HTTP with a Chrome TLS
// fingerprint, probe requests for linked resources, and an optional
// headless-browser render for JavaScript-dependent checks.
package fetch

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL canonicalizes a user-supplied URL without touching the
// network: missing schemes default to https, scheme and host are
// lowercased, default ports and fragments are dropped, and a bare root
// path collapses to empty. Redirects are observed later, during the
// fetch, and surface as FinalURL.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("fetch: empty url")
	}

	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("fetch: parse url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("fetch: url has no host: %q", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	// Strip default ports.
	if (u.Scheme == "http" && strings.HasSuffix(u.Host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(u.Host, ":443")) {
		u.Host = u.Host[:strings.LastIndexByte(u.Host, ':')]
	}

	if u.Path == "/" && u.RawQuery == "" {
		u.Path = ""
	}

	return u.String(), nil
}

// BaseURL returns scheme://host for a parsed URL.
func BaseURL(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}
