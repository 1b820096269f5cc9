package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full runtime configuration, one section per concern.
type Config struct {
	Server       ServerConfig
	Fetch        FetchConfig
	Browser      BrowserConfig
	Audit        AuditConfig
	Thresholds   Thresholds
	Capabilities CapabilityConfig
	Auth         AuthConfig
	RateLimit    RateLimitConfig
	Store        StoreConfig
	Webhook      WebhookConfig
	Log          LogConfig
}

// ServerConfig sets where and how the HTTP server listens.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// FetchConfig controls the raw HTTP fetch of the audited page.
type FetchConfig struct {
	// Timeout is the per-attempt deadline for the raw fetch.
	Timeout time.Duration // default: 15s

	// Retries is the total attempt budget for transient failures.
	Retries int // default: 3

	// RetryBackoff is the base delay before the second attempt;
	// it doubles per attempt with jitter.
	RetryBackoff time.Duration // default: 500ms

	// MaxBodyBytes caps the downloaded response body.
	MaxBodyBytes int64 // default: 10 MiB

	// UserAgent is sent on every outbound request.
	UserAgent string

	// ProbeTimeout is the deadline for secondary probes made by checks
	// (robots.txt, sitemap, sampled resources, link liveness).
	ProbeTimeout time.Duration // default: 8s
}

// BrowserConfig controls the shared Rod browser used for rendered
// snapshots.
type BrowserConfig struct {
	// Enabled toggles rendering support entirely. When false, checks
	// that need the rendered DOM report "render unavailable".
	Enabled bool // default: true

	// Headless hides the browser window; disable for local debugging.
	Headless bool // default: true

	// MaxPages caps concurrent tabs, which also bounds how many renders
	// (and batch audits) run at once.
	MaxPages int // default: 4

	// RenderTimeout is the deadline for one rendered snapshot.
	RenderTimeout time.Duration // default: 20s

	// NoSandbox turns off Chrome's sandbox for containers that lack the
	// needed privileges.
	NoSandbox bool // default: false

	// BrowserBin points at a specific Chromium binary instead of the
	// auto-downloaded one.
	BrowserBin string

	// BlockedResourceTypes lists resource types blocked during renders.
	// default: ["Font", "Media"]
	BlockedResourceTypes []string

	// BlockAds blocks known ad/tracking domains during renders.
	BlockAds bool // default: true
}

// AuditConfig controls check execution.
type AuditConfig struct {
	// Workers is the bounded worker pool size for check execution.
	Workers int // default: 8

	// CheckTimeout is the per-check operation deadline.
	CheckTimeout time.Duration // default: 10s

	// Timeout is the default top-level audit deadline.
	Timeout time.Duration // default: 60s

	// MaxTimeout is the maximum audit deadline a client may request.
	MaxTimeout time.Duration // default: 180s

	// LinkProbeLimit caps how many links the liveness check samples.
	LinkProbeLimit int // default: 20

	// LinkProbeRPS throttles outbound liveness probes.
	LinkProbeRPS float64 // default: 4
}

// Thresholds are the SEO limits the checks test against.
type Thresholds struct {
	TitleMin        int     // default: 30
	TitleMax        int     // default: 60
	MetaDescMin     int     // default: 70
	MetaDescMax     int     // default: 155
	MinContentWords int     // default: 300
	URLMaxLength    int     // default: 75
	LCPSeconds      float64 // default: 2.5
	FIDMillis       float64 // default: 100
	CLSScore        float64 // default: 0.1
}

// CapabilityConfig holds third-party capability credentials. Empty keys
// leave the capability unconfigured; dependent checks degrade to info.
type CapabilityConfig struct {
	PageSpeedAPIKey string
	PageSpeedURL    string // override for tests
	SerpAPIKey      string
	SerpURL         string // override for tests
}

// AuthConfig governs API-key checks on the /api/v1 group.
type AuthConfig struct {
	// Enabled turns the auth middleware on. With no APIKeys configured
	// the API stays open even when enabled.
	Enabled bool // default: true

	// APIKeys lists the accepted keys.
	APIKeys []string
}

// RateLimitConfig bounds how fast one client may submit audits.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained refill rate of a client bucket.
	RequestsPerSecond float64 // default: 2

	// Burst is the bucket capacity.
	Burst int // default: 5
}

// StoreConfig controls the report history store.
type StoreConfig struct {
	// MaxEntries is the maximum number of stored reports.
	MaxEntries int // default: 500

	// ReportTTL is how long finished reports stay retrievable.
	ReportTTL time.Duration // default: 24h

	// CacheTTL is how long an identical audit request is served from
	// the store instead of re-running.
	CacheTTL time.Duration // default: 10m
}

// WebhookConfig controls async result delivery.
type WebhookConfig struct {
	// Secret signs webhook payloads with HMAC-SHA256 when non-empty.
	Secret string
}

// LogConfig shapes the slog output.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load builds the configuration from SEOLENS_* environment variables,
// falling back to the defaults documented on each field.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("SEOLENS_HOST", "0.0.0.0"),
			Port: envIntOr("SEOLENS_PORT", 8080),
			Mode: envOr("SEOLENS_MODE", "release"),
		},
		Fetch: FetchConfig{
			Timeout:      envDurationOr("SEOLENS_FETCH_TIMEOUT", 15*time.Second),
			Retries:      envIntOr("SEOLENS_FETCH_RETRIES", 3),
			RetryBackoff: envDurationOr("SEOLENS_FETCH_BACKOFF", 500*time.Millisecond),
			MaxBodyBytes: int64(envIntOr("SEOLENS_MAX_BODY_BYTES", 10*1024*1024)),
			UserAgent: envOr("SEOLENS_USER_AGENT",
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
			ProbeTimeout: envDurationOr("SEOLENS_PROBE_TIMEOUT", 8*time.Second),
		},
		Browser: BrowserConfig{
			Enabled:       envBoolOr("SEOLENS_RENDER_ENABLED", true),
			Headless:      envBoolOr("SEOLENS_HEADLESS", true),
			MaxPages:      envIntOr("SEOLENS_MAX_PAGES", 4),
			RenderTimeout: envDurationOr("SEOLENS_RENDER_TIMEOUT", 20*time.Second),
			NoSandbox:     envBoolOr("SEOLENS_NO_SANDBOX", false),
			BrowserBin:    os.Getenv("SEOLENS_BROWSER_BIN"),
			BlockedResourceTypes: envSliceOr("SEOLENS_BLOCKED_RESOURCES", []string{
				"Font", "Media",
			}),
			BlockAds: envBoolOr("SEOLENS_BLOCK_ADS", true),
		},
		Audit: AuditConfig{
			Workers:        envIntOr("SEOLENS_AUDIT_WORKERS", 8),
			CheckTimeout:   envDurationOr("SEOLENS_CHECK_TIMEOUT", 10*time.Second),
			Timeout:        envDurationOr("SEOLENS_AUDIT_TIMEOUT", 60*time.Second),
			MaxTimeout:     envDurationOr("SEOLENS_AUDIT_MAX_TIMEOUT", 180*time.Second),
			LinkProbeLimit: envIntOr("SEOLENS_LINK_PROBE_LIMIT", 20),
			LinkProbeRPS:   envFloatOr("SEOLENS_LINK_PROBE_RPS", 4.0),
		},
		Thresholds: Thresholds{
			TitleMin:        envIntOr("SEOLENS_TITLE_MIN", 30),
			TitleMax:        envIntOr("SEOLENS_TITLE_MAX", 60),
			MetaDescMin:     envIntOr("SEOLENS_META_DESC_MIN", 70),
			MetaDescMax:     envIntOr("SEOLENS_META_DESC_MAX", 155),
			MinContentWords: envIntOr("SEOLENS_MIN_CONTENT_WORDS", 300),
			URLMaxLength:    envIntOr("SEOLENS_URL_MAX_LENGTH", 75),
			LCPSeconds:      envFloatOr("SEOLENS_LCP_THRESHOLD", 2.5),
			FIDMillis:       envFloatOr("SEOLENS_FID_THRESHOLD", 100),
			CLSScore:        envFloatOr("SEOLENS_CLS_THRESHOLD", 0.1),
		},
		Capabilities: CapabilityConfig{
			PageSpeedAPIKey: os.Getenv("SEOLENS_PAGESPEED_API_KEY"),
			PageSpeedURL:    os.Getenv("SEOLENS_PAGESPEED_URL"),
			SerpAPIKey:      os.Getenv("SEOLENS_SERP_API_KEY"),
			SerpURL:         os.Getenv("SEOLENS_SERP_URL"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SEOLENS_AUTH_ENABLED", true),
			APIKeys: envSliceOr("SEOLENS_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SEOLENS_RATE_RPS", 2.0),
			Burst:             envIntOr("SEOLENS_RATE_BURST", 5),
		},
		Store: StoreConfig{
			MaxEntries: envIntOr("SEOLENS_STORE_MAX_ENTRIES", 500),
			ReportTTL:  envDurationOr("SEOLENS_REPORT_TTL", 24*time.Hour),
			CacheTTL:   envDurationOr("SEOLENS_CACHE_TTL", 10*time.Minute),
		},
		Webhook: WebhookConfig{
			Secret: os.Getenv("SEOLENS_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("SEOLENS_LOG_LEVEL", "info"),
			Format: envOr("SEOLENS_LOG_FORMAT", "json"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
