package models

import (
	"net/http"
	"time"
)

// FetchedPage is the raw artifact set retrieved for one audit. It is owned
// by the fetch layer until execution starts and is read-only from then on;
// checks never mutate it.
type FetchedPage struct {
	// RequestedURL is the normalized URL the audit was asked for.
	RequestedURL string

	// FinalURL is the URL after following redirects.
	FinalURL string

	// StatusCode is the HTTP status of the final response. A non-2xx
	// status is data, not a fetch failure.
	StatusCode int

	// Headers are the final response headers.
	Headers http.Header

	// Body is the raw response body, capped at the configured byte limit.
	Body []byte

	// ContentEncoding is the wire encoding of the response. The transport
	// decompresses gzip transparently and strips the header, so this is
	// reconstructed at fetch time; empty means the page was served plain.
	ContentEncoding string

	// Elapsed is the wall time of the raw fetch, including retries.
	Elapsed time.Duration

	// Rendered is the browser snapshot, present only when at least one
	// enabled check needed it and rendering succeeded.
	Rendered *RenderedSnapshot

	// RenderErr is the "render unavailable" marker: set when rendering
	// was needed but failed, so dependent checks can degrade to info.
	RenderErr string
}

// Header returns the first value of the named response header.
func (p *FetchedPage) Header(name string) string {
	if p.Headers == nil {
		return ""
	}
	return p.Headers.Get(name)
}

// RenderedSnapshot is the post-script-execution view of the page captured
// during a browser render.
type RenderedSnapshot struct {
	// HTML is the serialized DOM after script execution.
	HTML string

	// ConsoleErrors are console.error entries observed while rendering.
	ConsoleErrors []string

	// FailedRequests are URLs of subresource requests that failed during
	// the render (blocked requests excluded).
	FailedRequests []string

	// Elapsed is the wall time of the render.
	Elapsed time.Duration
}
