package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultTweetEndpoint is the public syndication endpoint that serves tweet JSON.
const DefaultTweetEndpoint = "https://cdn.syndication.twimg.com/tweet-result"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	LLM       LLMConfig
	Tweet     TweetConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the shared browser session.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is passed to the launched browser.
	Proxy string

	// CDPURL points at a remote browser. When set, launching a session
	// connects to it instead of starting a local Chromium.
	CDPURL string

	// LaunchRetries is the number of launch attempts before giving up.
	LaunchRetries int // default: 3

	// IdleTick is how often the idle timer fires.
	IdleTick time.Duration // default: 10s

	// KeepAlive is how long an unused session survives.
	KeepAlive time.Duration // default: 60s
}

// ScraperConfig controls page acquisition.
type ScraperConfig struct {
	// NavigationTimeout bounds page.Navigate + load wait.
	NavigationTimeout time.Duration // default: 15s

	// PageTimeout bounds the whole open/navigate/extract/close cycle.
	PageTimeout time.Duration // default: 30s

	// BlockedResourceTypes lists resource types the hijack router fails.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockAds fails requests to known ad and tracking domains.
	BlockAds bool // default: true

	// Stealth injects the stealth evasion script before navigation.
	Stealth bool // default: true

	// MaxTabs caps concurrently open pages within one batch.
	MaxTabs int // default: 10
}

// CacheConfig controls the markdown cache.
type CacheConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string // default: "memory"

	// Path is the sqlite database file.
	Path string // default: "markdowner-cache.db"

	// MaxEntries caps both backends. The sqlite backend enforces it on each
	// cleanup sweep, so it may briefly run over.
	MaxEntries int // default: 1000

	// TTL is the expiry of page entries. Tweet entries never expire.
	TTL time.Duration // default: 1h
}

// RateLimitConfig controls per-IP admission.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per caller IP.
	RequestsPerSecond float64 // default: 1.67

	// Burst is the bucket size per caller IP.
	Burst int // default: 100

	// TrustedToken bypasses the limiter when presented as a bearer token.
	TrustedToken string

	// IPHeader carries the originating caller IP.
	IPHeader string // default: "CF-Connecting-IP"
}

// LLMConfig controls the optional markdown filter.
type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string // default: "@cf/qwen/qwen1.5-14b-chat-awq"

	// Timeout bounds one inference call.
	Timeout time.Duration // default: 60s

	// Cost is the extra limiter units charged per filtered page.
	Cost int // default: 60

	// MaxInputTokens truncates oversized markdown before prompting. 0 disables.
	MaxInputTokens int // default: 6000
}

// TweetConfig controls the tweet resolver.
type TweetConfig struct {
	Endpoint string
	Timeout  time.Duration // default: 10s
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
			Host: envOr("MARKDOWNER_HOST", "0.0.0.0"),
			Port: envIntOr("MARKDOWNER_PORT", 8080),
			Mode: envOr("MARKDOWNER_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:      envBoolOr("MARKDOWNER_HEADLESS", true),
			NoSandbox:     envBoolOr("MARKDOWNER_NO_SANDBOX", false),
			BrowserBin:    os.Getenv("MARKDOWNER_BROWSER_BIN"),
			Proxy:         os.Getenv("MARKDOWNER_PROXY"),
			CDPURL:        os.Getenv("MARKDOWNER_CDP_URL"),
			LaunchRetries: envIntOr("MARKDOWNER_LAUNCH_RETRIES", 3),
			IdleTick:      envDurationOr("MARKDOWNER_IDLE_TICK", 10*time.Second),
			KeepAlive:     envDurationOr("MARKDOWNER_KEEP_ALIVE", 60*time.Second),
		},
		Scraper: ScraperConfig{
			NavigationTimeout: envDurationOr("MARKDOWNER_NAV_TIMEOUT", 15*time.Second),
			PageTimeout:       envDurationOr("MARKDOWNER_PAGE_TIMEOUT", 30*time.Second),
			BlockedResourceTypes: envSliceOr("MARKDOWNER_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
			BlockAds: envBoolOr("MARKDOWNER_BLOCK_ADS", true),
			Stealth:  envBoolOr("MARKDOWNER_STEALTH", true),
			MaxTabs:  envIntOr("MARKDOWNER_MAX_TABS", 10),
		},
		Cache: CacheConfig{
			Backend:    envOr("MARKDOWNER_CACHE_BACKEND", "memory"),
			Path:       envOr("MARKDOWNER_CACHE_PATH", "markdowner-cache.db"),
			MaxEntries: envIntOr("MARKDOWNER_CACHE_MAX_ENTRIES", 1000),
			TTL:        envDurationOr("MARKDOWNER_CACHE_TTL", time.Hour),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("MARKDOWNER_RATE_RPS", 1.67),
			Burst:             envIntOr("MARKDOWNER_RATE_BURST", 100),
			TrustedToken:      os.Getenv("MARKDOWNER_TRUSTED_TOKEN"),
			IPHeader:          envOr("MARKDOWNER_IP_HEADER", "CF-Connecting-IP"),
		},
		LLM: LLMConfig{
			BaseURL:        os.Getenv("MARKDOWNER_LLM_BASE_URL"),
			APIKey:         os.Getenv("MARKDOWNER_LLM_API_KEY"),
			Model:          envOr("MARKDOWNER_LLM_MODEL", "@cf/qwen/qwen1.5-14b-chat-awq"),
			Timeout:        envDurationOr("MARKDOWNER_LLM_TIMEOUT", 60*time.Second),
			Cost:           envIntOr("MARKDOWNER_LLM_COST", 60),
			MaxInputTokens: envIntOr("MARKDOWNER_LLM_MAX_INPUT_TOKENS", 6000),
		},
		Tweet: TweetConfig{
			Endpoint: envOr("MARKDOWNER_TWEET_ENDPOINT", DefaultTweetEndpoint),
			Timeout:  envDurationOr("MARKDOWNER_TWEET_TIMEOUT", 10*time.Second),
		},
		Log: LogConfig{
			Level:  envOr("MARKDOWNER_LOG_LEVEL", "info"),
			Format: envOr("MARKDOWNER_LOG_FORMAT", "json"),
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
