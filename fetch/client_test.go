package fetch

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seolens/seolens/config"
	"github.com/seolens/seolens/models"
)

func testClient() *Client {
	return NewClient(config.FetchConfig{
		Timeout:      5 * time.Second,
		Retries:      2,
		RetryBackoff: 10 * time.Millisecond,
		MaxBodyBytes: 1 << 20,
		UserAgent:    "seolens-test",
		ProbeTimeout: 5 * time.Second,
	})
}

func TestFetch_RetainsNon2xx(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("<html><body>missing</body></html>"))
	}))
	defer srv.Close()

	page, err := testClient().Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch returned error for 404: %v", err)
	}
	if page.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", page.StatusCode)
	}
	if !strings.Contains(string(page.Body), "missing") {
		t.Errorf("body not retained: %q", page.Body)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hit %d times, want 1 (no retry on HTTP status)", got)
	}
}

func TestFetch_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>landed</body></html>"))
	})

	page, err := testClient().Fetch(context.Background(), srv.URL+"/old")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if page.FinalURL != srv.URL+"/new" {
		t.Errorf("FinalURL = %q, want %q", page.FinalURL, srv.URL+"/new")
	}
	if page.RequestedURL != srv.URL+"/old" {
		t.Errorf("RequestedURL = %q, want original", page.RequestedURL)
	}
}

func TestFetch_RetriesDroppedConnection(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			// Abort the connection mid-response to simulate a transient
			// network failure.
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatal("response writer does not support hijacking")
			}
			conn, _, _ := hj.Hijack()
			conn.Close()
			return
		}
		_, _ = w.Write([]byte("<html><body>recovered</body></html>"))
	}))
	defer srv.Close()

	page, err := testClient().Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch should recover after transient failure: %v", err)
	}
	if page.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", page.StatusCode)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("server hit %d times, want 2", got)
	}
}

func TestFetch_CapsBodySize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 4096))
	}))
	defer srv.Close()

	client := NewClient(config.FetchConfig{
		Timeout:      5 * time.Second,
		MaxBodyBytes: 1024,
		UserAgent:    "seolens-test",
		ProbeTimeout: 5 * time.Second,
	})

	page, err := client.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(page.Body) != 1024 {
		t.Errorf("body length = %d, want capped at 1024", len(page.Body))
	}
}

func TestFetch_UnreachableHost(t *testing.T) {
	// Reserve a port, then close it so the dial is refused.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	dead := "http://" + l.Addr().String()
	l.Close()

	client := NewClient(config.FetchConfig{
		Timeout:      2 * time.Second,
		Retries:      1,
		RetryBackoff: 5 * time.Millisecond,
		MaxBodyBytes: 1 << 20,
		UserAgent:    "seolens-test",
		ProbeTimeout: time.Second,
	})

	_, err = client.Fetch(context.Background(), dead)
	if err == nil {
		t.Fatal("expected error for unreachable host")
	}
	var auditErr *models.AuditError
	if !errors.As(err, &auditErr) {
		t.Fatalf("error is %T, want *models.AuditError", err)
	}
	if !auditErr.IsFetchFailure() {
		t.Errorf("code = %s, want a fetch failure code", auditErr.Code)
	}
}

func TestProbe_HeadWithGetFallback(t *testing.T) {
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	status, err := testClient().Probe(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Probe error: %v", err)
	}
	if status != http.StatusOK {
		t.Errorf("status = %d, want 200 from GET fallback", status)
	}
	if len(methods) != 2 || methods[0] != http.MethodHead || methods[1] != http.MethodGet {
		t.Errorf("methods = %v, want [HEAD GET]", methods)
	}
}

func TestProbe_HeadSufficient(t *testing.T) {
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	status, err := testClient().Probe(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Probe error: %v", err)
	}
	if status != http.StatusOK || len(methods) != 1 {
		t.Errorf("status = %d, methods = %v; want single HEAD", status, methods)
	}
}

func TestGetBody_CapsAtLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	status, body, err := testClient().GetBody(context.Background(), srv.URL, 512)
	if err != nil {
		t.Fatalf("GetBody error: %v", err)
	}
	if status != http.StatusOK || len(body) != 512 {
		t.Errorf("status=%d len=%d, want 200 and 512", status, len(body))
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"eof", io.EOF, true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"temporary dns", &net.DNSError{IsTemporary: true}, true},
		{"permanent dns", &net.DNSError{IsNotFound: true}, false},
		{"op error", &net.OpError{Op: "read", Err: errors.New("connection reset by peer")}, true},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransient(tt.err); got != tt.want {
				t.Errorf("isTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifyFetchError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"dns", &net.DNSError{IsNotFound: true}, models.ErrCodeDNSFailure},
		{"deadline", context.DeadlineExceeded, models.ErrCodeFetchTimeout},
		{"generic", errors.New("boom"), models.ErrCodeFetchFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyFetchError(tt.err)
			if got.Code != tt.want {
				t.Errorf("classifyFetchError(%v).Code = %s, want %s", tt.err, got.Code, tt.want)
			}
		})
	}
}
