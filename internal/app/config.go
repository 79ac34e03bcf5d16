package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Nicortesm/GamepassCopilot/internal/scraper"
)

type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	CatalogDBPath string
	CatalogURL    string

	ScraperHeadless        bool
	ScraperBrowserPath     string
	ScraperNavTimeout      time.Duration
	ScraperDetailTimeout   time.Duration
	ScraperLoadMoreTimeout time.Duration
	ScraperSettleDelay     time.Duration
	ScraperMaxLoadMore     int
	ScraperDetailAttempts  int
	ScraperPagesPerMinute  int

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	LLMTimeout    time.Duration

	RedisURL      string
	CacheDisabled bool
	CacheTTL      time.Duration

	NATSURL       string
	EventsSubject string
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:  getEnv("HTTP_ADDR", ":8095"),
		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		CatalogDBPath: getEnv("CATALOG_DB_PATH", "gamepass_catalog.db"),
		CatalogURL:    getEnv("CATALOG_URL", scraper.DefaultCatalogURL),

		ScraperHeadless:        getEnvBool("SCRAPER_HEADLESS", true),
		ScraperBrowserPath:     getEnv("PLAYWRIGHT_EXECUTABLE_PATH", ""),
		ScraperNavTimeout:      time.Duration(getEnvInt("SCRAPER_NAV_TIMEOUT_SECONDS", 45)) * time.Second,
		ScraperDetailTimeout:   time.Duration(getEnvInt("SCRAPER_DETAIL_TIMEOUT_SECONDS", 15)) * time.Second,
		ScraperLoadMoreTimeout: time.Duration(getEnvInt("SCRAPER_LOAD_MORE_TIMEOUT_SECONDS", 20)) * time.Second,
		ScraperSettleDelay:     time.Duration(getEnvInt("SCRAPER_SETTLE_MILLIS", 1500)) * time.Millisecond,
		ScraperMaxLoadMore:     getEnvInt("SCRAPER_MAX_LOAD_MORE", 500),
		ScraperDetailAttempts:  getEnvInt("SCRAPER_DETAIL_ATTEMPTS", 2),
		ScraperPagesPerMinute:  getEnvInt("SCRAPER_PAGES_PER_MINUTE", 60),

		OpenAIAPIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		LLMTimeout:    time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 60)) * time.Second,

		RedisURL:      getEnv("REDIS_URL", ""),
		CacheDisabled: getEnvBool("SEARCH_CACHE_DISABLED", false),
		CacheTTL:      time.Duration(getEnvInt("SEARCH_CACHE_TTL_HOURS", 0)) * time.Hour,

		NATSURL:       getEnv("NATS_URL", ""),
		EventsSubject: getEnv("CATALOG_EVENTS_SUBJECT", "catalog.rebuilt"),
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
