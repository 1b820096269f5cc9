package fetch

import (
	"testing"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare domain", "example.com", "https://example.com"},
		{"keeps http", "http://example.com/page", "http://example.com/page"},
		{"lowercases host", "HTTPS://EXAMPLE.COM/Path", "https://example.com/Path"},
		{"strips fragment", "https://example.com/page#section", "https://example.com/page"},
		{"strips default https port", "https://example.com:443/x", "https://example.com/x"},
		{"strips default http port", "http://example.com:80/x", "http://example.com/x"},
		{"keeps custom port", "https://example.com:8443/x", "https://example.com:8443/x"},
		{"collapses bare root", "https://example.com/", "https://example.com"},
		{"keeps root with query", "https://example.com/?q=1", "https://example.com/?q=1"},
		{"trims whitespace", "  example.com/page  ", "https://example.com/page"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.in)
			if err != nil {
				t.Fatalf("NormalizeURL(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeURL_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"scheme only", "https://"},
		{"spaces in host", "http://bad host/path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, err := NormalizeURL(tt.in); err == nil {
				t.Errorf("NormalizeURL(%q) = %q, want error", tt.in, got)
			}
		})
	}
}
