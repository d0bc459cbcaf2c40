package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all process configuration, read once from the environment.
type Config struct {
	Server   ServerConfig
	Browser  BrowserConfig
	LLM      LLMConfig
	Notify   NotifyConfig
	Scraping ScrapingConfig
}

type ServerConfig struct {
	Port        string   // PORT, default "8081"
	DatabaseURL string   // DATABASE_URL
	CORSOrigins []string // CORS_ORIGINS
}

// BrowserConfig controls the stealth browser sessions.
type BrowserConfig struct {
	Headless    bool          // HEADLESS, default true
	BrowserBin  string        // BROWSER_BIN, empty lets rod download/locate Chromium
	ProxyURL    string        // PROXY_URL
	UserAgent   string        // BROWSER_USER_AGENT
	PageTimeout time.Duration // PAGE_TIMEOUT, default 45s
}

// LLMConfig selects and tunes the field-extraction model.
type LLMConfig struct {
	Provider      string // LLM_PROVIDER: "openai" (default) or "ollama"
	OpenAIKey     string // OPENAI_API_KEY
	OpenAIBaseURL string // OPENAI_BASE_URL
	OpenAIModel   string // OPENAI_MODEL
	OllamaHost    string // OLLAMA_HOST
	OllamaModel   string // OLLAMA_MODEL
	EmbedModel    string // EMBED_MODEL, empty disables embeddings
	RPS           float64
	DailyQuota    int // LLM_DAILY_QUOTA, 0 means unlimited
	MaxInputRunes int // LLM_MAX_INPUT
	JitterMin     time.Duration
	JitterMax     time.Duration
}

type NotifyConfig struct {
	SlackWebhook  string // SLACK_WEBHOOK
	WebhookSecret string // WEBHOOK_SECRET
	BackendAPI    string // BACKEND_API, called after each completed sweep
}

// ScrapingConfig controls the sweep itself.
type ScrapingConfig struct {
	Schedule       string        // SCRAPE_SCHEDULE, cron spec; empty disables
	OnStartup      bool          // SCRAPE_ON_STARTUP
	SweepTimeout   time.Duration // SWEEP_TIMEOUT
	ShutdownGrace  time.Duration // SHUTDOWN_GRACE, how long shutdown waits for a stopped sweep
	StaleAfter     time.Duration // STALE_AFTER, 0 never re-extracts known URLs
	CaptchaTimeout time.Duration // CAPTCHA_TIMEOUT
	ClickTimeout   time.Duration // CLICK_TIMEOUT
	ReadyGrace     time.Duration // READY_GRACE
	PageDelay      time.Duration // PAGE_DELAY, pause between listing pages
}

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        envOr("PORT", "8081"),
			DatabaseURL: os.Getenv("DATABASE_URL"),
			CORSOrigins: envSliceOr("CORS_ORIGINS", []string{"http://localhost:4200"}),
		},
		Browser: BrowserConfig{
			Headless:    envBoolOr("HEADLESS", true),
			BrowserBin:  os.Getenv("BROWSER_BIN"),
			ProxyURL:    os.Getenv("PROXY_URL"),
			UserAgent:   envOr("BROWSER_USER_AGENT", DefaultUserAgent),
			PageTimeout: envDurationOr("PAGE_TIMEOUT", 45*time.Second),
		},
		LLM: LLMConfig{
			Provider:      strings.ToLower(envOr("LLM_PROVIDER", "openai")),
			OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
			OpenAIBaseURL: envOr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OpenAIModel:   envOr("OPENAI_MODEL", "gpt-4o-mini"),
			OllamaHost:    envOr("OLLAMA_HOST", "http://localhost:11434"),
			OllamaModel:   envOr("OLLAMA_MODEL", "qwen2.5:14b"),
			EmbedModel:    os.Getenv("EMBED_MODEL"),
			RPS:           envFloatOr("LLM_RPS", 1.0),
			DailyQuota:    envIntOr("LLM_DAILY_QUOTA", 0),
			MaxInputRunes: envIntOr("LLM_MAX_INPUT", 60000),
			JitterMin:     envDurationOr("LLM_JITTER_MIN", 0),
			JitterMax:     envDurationOr("LLM_JITTER_MAX", 0),
		},
		Notify: NotifyConfig{
			SlackWebhook:  os.Getenv("SLACK_WEBHOOK"),
			WebhookSecret: os.Getenv("WEBHOOK_SECRET"),
			BackendAPI:    os.Getenv("BACKEND_API"),
		},
		Scraping: ScrapingConfig{
			Schedule:       envOr("SCRAPE_SCHEDULE", "0 9 * * *"),
			OnStartup:      envBoolOr("SCRAPE_ON_STARTUP", false),
			SweepTimeout:   envDurationOr("SWEEP_TIMEOUT", 12*time.Hour),
			ShutdownGrace:  envDurationOr("SHUTDOWN_GRACE", 2*time.Minute),
			StaleAfter:     envDurationOr("STALE_AFTER", 30*24*time.Hour),
			CaptchaTimeout: envDurationOr("CAPTCHA_TIMEOUT", 60*time.Second),
			ClickTimeout:   envDurationOr("CLICK_TIMEOUT", 15*time.Second),
			ReadyGrace:     envDurationOr("READY_GRACE", 2*time.Second),
			PageDelay:      envDurationOr("PAGE_DELAY", 3*time.Second),
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
