package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	tls "github.com/refraction-networking/utls"

	"github.com/seolens/seolens/config"
	"github.com/seolens/seolens/models"
)

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to
// http/1.1 only. Computed once at init time and reused for every
// connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		// Fallback: if spec generation fails, dialTLS applies
		// HelloChrome_Auto directly.
		return
	}
	// Replace h2 with http/1.1 only in the ALPN extension so the server
	// never negotiates HTTP/2 (which Go's http.Transport cannot handle
	// over a utls connection).
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// Client fetches pages over plain HTTP with a Chrome TLS fingerprint.
// It is safe for concurrent use.
type Client struct {
	cfg    config.FetchConfig
	client *http.Client
	probe  *http.Client
}

// NewClient builds a Client from config. The underlying transport locks
// ALPN to http/1.1 to avoid the HTTP/2 framing mismatch that occurs when
// utls negotiates h2 but Go's http.Transport only speaks h1.
func NewClient(cfg config.FetchConfig) *Client {
	transport := &http.Transport{
		DialTLSContext:    dialTLSChrome,
		ForceAttemptHTTP2: false,
		MaxIdleConns:      32,
		IdleConnTimeout:   60 * time.Second,
	}
	checkRedirect := func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return fmt.Errorf("too many redirects")
		}
		return nil
	}
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Transport:     transport,
			CheckRedirect: checkRedirect,
			Timeout:       cfg.Timeout,
		},
		probe: &http.Client{
			Transport:     transport,
			CheckRedirect: checkRedirect,
			Timeout:       cfg.ProbeTimeout,
		},
	}
}

// dialTLSChrome establishes a TLS connection with a Chrome ClientHello.
func dialTLSChrome(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	host, _, _ := net.SplitHostPort(addr)

	if len(chromeH1Spec.Extensions) == 0 {
		tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloChrome_Auto)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, err
		}
		return tlsConn, nil
	}

	tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
	if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
		conn.Close()
		return nil, fmt.Errorf("fetch: apply tls spec: %w", err)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// Fetch retrieves targetURL and returns the page regardless of HTTP
// status: a 404 or 500 is audit data, not a fetch failure. Transport
// errors are retried with doubling backoff; HTTP statuses never are.
func (c *Client) Fetch(ctx context.Context, targetURL string) (*models.FetchedPage, error) {
	start := time.Now()

	var lastErr error
	backoff := c.cfg.RetryBackoff
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, classifyFetchError(ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		page, err := c.fetchOnce(ctx, targetURL)
		if err == nil {
			page.Elapsed = time.Since(start)
			return page, nil
		}
		lastErr = err

		if !isTransient(err) {
			break
		}
	}

	return nil, classifyFetchError(lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, targetURL string) (*models.FetchedPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, models.NewAuditError(models.ErrCodeInvalidInput, "invalid fetch url", err)
	}
	c.setBrowserHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("fetch: read body: %w", err)
	}

	enc := resp.Header.Get("Content-Encoding")
	if enc == "" && resp.Uncompressed {
		enc = "gzip"
	}

	return &models.FetchedPage{
		RequestedURL:    targetURL,
		FinalURL:        resp.Request.URL.String(),
		StatusCode:      resp.StatusCode,
		Headers:         resp.Header.Clone(),
		Body:            body,
		ContentEncoding: enc,
	}, nil
}

// Probe issues a lightweight request and returns just the status code.
// It tries HEAD first and falls back to GET when the server rejects HEAD,
// discarding the body. Used for robots.txt presence, sitemap discovery,
// and sampled link checking.
func (c *Client) Probe(ctx context.Context, targetURL string) (int, error) {
	status, err := c.probeOnce(ctx, http.MethodHead, targetURL)
	if err == nil && status != http.StatusMethodNotAllowed && status != http.StatusNotImplemented {
		return status, nil
	}
	return c.probeOnce(ctx, http.MethodGet, targetURL)
}

func (c *Client) probeOnce(ctx context.Context, method, targetURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, targetURL, nil)
	if err != nil {
		return 0, fmt.Errorf("fetch: build probe request: %w", err)
	}
	c.setBrowserHeaders(req)

	resp, err := c.probe.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	// Drain a little so the connection can be reused, then discard.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 32*1024))
	return resp.StatusCode, nil
}

// GetBody fetches a small auxiliary resource (robots.txt, sitemap.xml)
// and returns status plus at most maxBytes of body.
func (c *Client) GetBody(ctx context.Context, targetURL string, maxBytes int64) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("fetch: build request: %w", err)
	}
	c.setBrowserHeaders(req)

	resp, err := c.probe.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("fetch: read body: %w", err)
	}
	return resp.StatusCode, body, nil
}

// Head issues a header-only probe, falling back to GET with a discarded
// body when the server rejects HEAD. Used by the caching checks.
func (c *Client) Head(ctx context.Context, targetURL string) (int, http.Header, error) {
	status, header, err := c.headOnce(ctx, http.MethodHead, targetURL)
	if err == nil && status != http.StatusMethodNotAllowed && status != http.StatusNotImplemented {
		return status, header, nil
	}
	return c.headOnce(ctx, http.MethodGet, targetURL)
}

func (c *Client) headOnce(ctx context.Context, method, targetURL string) (int, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, method, targetURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("fetch: build probe request: %w", err)
	}
	c.setBrowserHeaders(req)

	resp, err := c.probe.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 32*1024))
	return resp.StatusCode, resp.Header.Clone(), nil
}

// Resource is a sampled subresource fetch: status, headers, a capped body,
// and the wire content encoding (reconstructed when the transport
// transparently decompressed gzip).
type Resource struct {
	Status          int
	Header          http.Header
	Body            []byte
	ContentEncoding string
}

// GetResource fetches a page subresource (stylesheet, script, image) with
// the body capped at maxBytes. The compression and minification checks
// sample through this.
func (c *Client) GetResource(ctx context.Context, targetURL string, maxBytes int64) (*Resource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: build request: %w", err)
	}
	c.setBrowserHeaders(req)

	resp, err := c.probe.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return nil, fmt.Errorf("fetch: read body: %w", err)
	}

	enc := resp.Header.Get("Content-Encoding")
	if enc == "" && resp.Uncompressed {
		enc = "gzip"
	}

	return &Resource{
		Status:          resp.StatusCode,
		Header:          resp.Header.Clone(),
		Body:            body,
		ContentEncoding: enc,
	}, nil
}

func (c *Client) setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
}

// isTransient reports whether a transport error is worth retrying.
// HTTP-level statuses never reach here; only dial, TLS, and read
// failures do.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var auditErr *models.AuditError
	if errors.As(err, &auditErr) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	// Mid-response connection drops surface as EOF; resets and broken
	// pipes as *net.OpError without the timeout flag. Both get a retry.
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// classifyFetchError wraps raw transport errors into typed AuditErrors so
// the API layer can map them to status codes.
func classifyFetchError(err error) *models.AuditError {
	var auditErr *models.AuditError
	if errors.As(err, &auditErr) {
		return auditErr
	}

	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr):
		return models.NewAuditError(models.ErrCodeDNSFailure, "could not resolve host", err)
	case isTLSError(err):
		return models.NewAuditError(models.ErrCodeTLSFailure, "TLS handshake failed", err)
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewAuditError(models.ErrCodeFetchTimeout, "fetch timed out", err)
	case errors.Is(err, context.Canceled):
		return models.NewAuditError(models.ErrCodeFetchTimeout, "fetch canceled", err)
	default:
		return models.NewAuditError(models.ErrCodeFetchFailed, "could not fetch page", err)
	}
}

func isTLSError(err error) bool {
	var verifyErr *tls.CertificateVerificationError
	if errors.As(err, &verifyErr) {
		return true
	}
	var recordErr tls.RecordHeaderError
	return errors.As(err, &recordErr)
}
