package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Extraction modes.
const (
	// ModeBasic only reads the parameters captured by the render hook.
	ModeBasic = "basic"

	// ModeThorough additionally sniffs network responses, introspects the
	// widget, and falls back to data-sitekey and page-source scanning.
	ModeThorough = "thorough"
)

// Default dwell per mode, used when CFHARVEST_DWELL is unset.
const (
	DefaultBasicDwell    = 18 * time.Second
	DefaultThoroughDwell = 30 * time.Second
)

// Config holds all application configuration.
type Config struct {
	Browser   BrowserConfig
	Extractor ExtractorConfig
	Server    ServerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
	Webhook   WebhookConfig
	Probe     ProbeConfig
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL passed to Chromium.
	Proxy string

	// ViewportWidth and ViewportHeight fix the page viewport.
	ViewportWidth  int // default: 1440
	ViewportHeight int // default: 900

	// MaxSessions bounds how many extractions may run at once.
	MaxSessions int // default: 2
}

// ExtractorConfig controls a single extraction run.
type ExtractorConfig struct {
	// Mode is "basic" or "thorough"; default: "thorough".
	Mode string

	// Dwell is how long to wait after DOMContentLoaded before reading
	// anything back. Zero means "use the mode default".
	Dwell time.Duration

	// NavigationTimeout bounds navigation up to DOMContentLoaded.
	NavigationTimeout time.Duration // default: 60s

	// OutputPath is where the CLI writes the result.
	OutputPath string // default: "cf_extracted.json"

	// CookieMarkers are the substrings a cookie name must contain to be kept.
	CookieMarkers []string // default: ["cf", "__cf", "clearance"]
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
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

// CacheConfig controls the extraction response cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached responses.
	MaxEntries int // default: 500
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// WebhookConfig controls result delivery from the CLI.
type WebhookConfig struct {
	URL    string
	Secret string
}

// ProbeConfig controls the static HTTP probe.
type ProbeConfig struct {
	Timeout time.Duration // default: 15s
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:       envBoolOr("CFHARVEST_HEADLESS", true),
			NoSandbox:      envBoolOr("CFHARVEST_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("CFHARVEST_BROWSER_BIN"),
			Proxy:          os.Getenv("CFHARVEST_PROXY"),
			ViewportWidth:  envIntOr("CFHARVEST_VIEWPORT_WIDTH", 1440),
			ViewportHeight: envIntOr("CFHARVEST_VIEWPORT_HEIGHT", 900),
			MaxSessions:    envIntOr("CFHARVEST_MAX_SESSIONS", 2),
		},
		Extractor: ExtractorConfig{
			Mode:              NormalizeMode(os.Getenv("CFHARVEST_MODE")),
			Dwell:             envDurationOr("CFHARVEST_DWELL", 0),
			NavigationTimeout: envDurationOr("CFHARVEST_NAV_TIMEOUT", 60*time.Second),
			OutputPath:        envOr("CFHARVEST_OUTPUT", "cf_extracted.json"),
			CookieMarkers:     envSliceOr("CFHARVEST_COOKIE_MARKERS", []string{"cf", "__cf", "clearance"}),
		},
		Server: ServerConfig{
			Host: envOr("CFHARVEST_HOST", "0.0.0.0"),
			Port: envIntOr("CFHARVEST_PORT", 8080),
			Mode: envOr("CFHARVEST_SERVER_MODE", "release"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("CFHARVEST_AUTH_ENABLED", true),
			APIKeys: envSliceOr("CFHARVEST_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("CFHARVEST_RATE_RPS", 1.0),
			Burst:             envIntOr("CFHARVEST_RATE_BURST", 3),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("CFHARVEST_CACHE_MAX_ENTRIES", 500),
		},
		Log: LogConfig{
			Level:  envOr("CFHARVEST_LOG_LEVEL", "info"),
			Format: envOr("CFHARVEST_LOG_FORMAT", "text"),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("CFHARVEST_WEBHOOK_URL"),
			Secret: os.Getenv("CFHARVEST_WEBHOOK_SECRET"),
		},
		Probe: ProbeConfig{
			Timeout: envDurationOr("CFHARVEST_PROBE_TIMEOUT", 15*time.Second),
		},
	}
}

// NormalizeMode maps user input onto a known mode, defaulting to thorough.
func NormalizeMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModeBasic:
		return ModeBasic
	default:
		return ModeThorough
	}
}

// DwellFor returns the configured dwell, or the default for mode when unset.
func (c ExtractorConfig) DwellFor(mode string) time.Duration {
	if c.Dwell > 0 {
		return c.Dwell
	}
	if mode == ModeBasic {
		return DefaultBasicDwell
	}
	return DefaultThoroughDwell
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
