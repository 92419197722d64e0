package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Browser    BrowserConfig
	Extraction ExtractionConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Cache      CacheConfig
	Webhook    WebhookConfig
	Log        LogConfig
}

// ServerConfig controls the admin HTTP server.
type ServerConfig struct {
	Host string // default: "127.0.0.1"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig is the launch and viewport configuration handed to every
// browser session. Nothing in it is read from global state after Load.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL used for the browser process.
	Proxy string

	// Stealth masks navigator.webdriver and similar automation tells.
	Stealth bool // default: true

	// BlockAds drops requests to known ad and tracking hosts.
	BlockAds bool // default: true

	// BlockedResourceTypes lists resource types to block.
	// default: ["Font", "Media"]
	BlockedResourceTypes []string

	// UserAgent overrides the browser user agent when set.
	UserAgent string

	// AcceptLanguage is sent as an extra header on every request.
	AcceptLanguage string // default: "en-US,en;q=0.9"

	ViewportWidth  int // default: 1366
	ViewportHeight int // default: 900
}

// ExtractionConfig controls the extraction pipeline.
type ExtractionConfig struct {
	// URLTemplate is the vendor product URL; "{id}" is replaced by the
	// request identifier.
	URLTemplate string

	// FetchMode is "browser" (default) or "static".
	FetchMode string

	// NavigationTimeout bounds navigation plus the key element wait.
	NavigationTimeout time.Duration // default: 30s

	// KeySelector is the element waited for after navigation.
	KeySelector string // default: "body"

	// DisclosureSettle is the fixed wait after clicking the disclosure trigger.
	DisclosureSettle time.Duration // default: 1500ms

	// ImageSettle is the fixed wait after clicking an image trigger.
	ImageSettle time.Duration // default: 1000ms

	// DiagnosticsDir receives artifacts for extractions without specifications.
	DiagnosticsDir string // default: "diagnostics"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 3
}

// CacheConfig controls the extraction result cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached results.
	MaxEntries int // default: 500
}

// WebhookConfig points at the persistence layer that merges finished
// results into product records. Empty URL disables delivery.
type WebhookConfig struct {
	URL    string
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("SPECGRAB_HOST", "127.0.0.1"),
			Port: envIntOr("SPECGRAB_PORT", 8080),
			Mode: envOr("SPECGRAB_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:             envBoolOr("SPECGRAB_HEADLESS", true),
			NoSandbox:            envBoolOr("SPECGRAB_NO_SANDBOX", false),
			BrowserBin:           os.Getenv("SPECGRAB_BROWSER_BIN"),
			Proxy:                os.Getenv("SPECGRAB_PROXY"),
			Stealth:              envBoolOr("SPECGRAB_STEALTH", true),
			BlockAds:             envBoolOr("SPECGRAB_BLOCK_ADS", true),
			BlockedResourceTypes: envSliceOr("SPECGRAB_BLOCKED_RESOURCES", []string{"Font", "Media"}),
			UserAgent:            os.Getenv("SPECGRAB_USER_AGENT"),
			AcceptLanguage:       envOr("SPECGRAB_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			ViewportWidth:        envIntOr("SPECGRAB_VIEWPORT_WIDTH", 1366),
			ViewportHeight:       envIntOr("SPECGRAB_VIEWPORT_HEIGHT", 900),
		},
		Extraction: ExtractionConfig{
			URLTemplate:       envOr("SPECGRAB_URL_TEMPLATE", "https://shop.vendor.example/product/{id}"),
			FetchMode:         envOr("SPECGRAB_FETCH_MODE", "browser"),
			NavigationTimeout: envDurationOr("SPECGRAB_NAV_TIMEOUT", 30*time.Second),
			KeySelector:       envOr("SPECGRAB_KEY_SELECTOR", "body"),
			DisclosureSettle:  envDurationOr("SPECGRAB_DISCLOSURE_SETTLE", 1500*time.Millisecond),
			ImageSettle:       envDurationOr("SPECGRAB_IMAGE_SETTLE", 1000*time.Millisecond),
			DiagnosticsDir:    envOr("SPECGRAB_DIAGNOSTICS_DIR", "diagnostics"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SPECGRAB_AUTH_ENABLED", true),
			APIKeys: envSliceOr("SPECGRAB_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SPECGRAB_RATE_RPS", 1.0),
			Burst:             envIntOr("SPECGRAB_RATE_BURST", 3),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("SPECGRAB_CACHE_MAX_ENTRIES", 500),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("SPECGRAB_WEBHOOK_URL"),
			Secret: os.Getenv("SPECGRAB_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("SPECGRAB_LOG_LEVEL", "info"),
			Format: envOr("SPECGRAB_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

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
