package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for the market data layer.
const (
	DefaultQuoteBaseURL     = "https://mis.twse.com.tw/stock/api/getStockInfo.jsp"
	DefaultDividendBaseURL  = "https://query1.finance.yahoo.com/v7/finance/download"
	DefaultDividendCrumbURL = "https://query1.finance.yahoo.com/v1/test/getcrumb"
	DefaultQuoteCacheTTL    = 60 * time.Second
	DefaultPollInterval     = 60 * time.Second
	DefaultFetchRetries     = 3
	DefaultFetchRetryDelay  = 1 * time.Second
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port         string
	DatabasePath string
	LogLevel     string

	// Market data sources
	QuoteBaseURL        string
	DividendBaseURL     string
	DividendCrumbURL    string   // empty disables the crumb handshake
	DividendSessionURLs []string // visited once for cookies before the first dividend request
	HTTPClientTimeout   time.Duration
	OutboundRatePerSec  float64

	// Market data cache and refresh
	QuoteCacheTTL   time.Duration
	PollInterval    time.Duration
	FetchMaxRetries int
	FetchRetryDelay time.Duration

	// Inbound API protection
	APIRateLimitBurst int
	AllowedOrigins    []string
}

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

// LoadConfig loads configuration from environment variables or a .env file.
func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}

	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found in current or parent directory. Relying on OS environment variables.")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")
	Cfg = FromEnv()

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%q, PollInterval=%s, CacheTTL=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.PollInterval, Cfg.QuoteCacheTTL)
}

// FromEnv builds an AppConfig from the current process environment only.
func FromEnv() *AppConfig {
	cfg := &AppConfig{
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./dinartools.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		QuoteBaseURL:        getEnv("QUOTE_BASE_URL", DefaultQuoteBaseURL),
		DividendBaseURL:     getEnv("DIVIDEND_BASE_URL", DefaultDividendBaseURL),
		DividendCrumbURL:    getEnv("DIVIDEND_CRUMB_URL", DefaultDividendCrumbURL),
		DividendSessionURLs: getEnvAsList("DIVIDEND_SESSION_URLS", []string{"https://fc.yahoo.com", "https://finance.yahoo.com"}),
		HTTPClientTimeout:   getEnvAsDuration("HTTP_CLIENT_TIMEOUT", 10*time.Second),
		OutboundRatePerSec:  getEnvAsFloat("OUTBOUND_RATE_PER_SEC", 5),

		QuoteCacheTTL:   getEnvAsDuration("QUOTE_CACHE_TTL", DefaultQuoteCacheTTL),
		PollInterval:    getEnvAsDuration("POLL_INTERVAL", DefaultPollInterval),
		FetchMaxRetries: getEnvAsInt("FETCH_MAX_RETRIES", DefaultFetchRetries),
		FetchRetryDelay: getEnvAsDuration("FETCH_RETRY_DELAY", DefaultFetchRetryDelay),

		APIRateLimitBurst: getEnvAsInt("API_RATE_LIMIT_BURST", 30),
		AllowedOrigins:    getEnvAsList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}

	if cfg.FetchMaxRetries < 0 {
		log.Printf("WARNING: FETCH_MAX_RETRIES cannot be negative (%d), using default: %d", cfg.FetchMaxRetries, DefaultFetchRetries)
		cfg.FetchMaxRetries = DefaultFetchRetries
	}
	if cfg.PollInterval <= 0 {
		log.Printf("WARNING: POLL_INTERVAL must be positive, using default: %s", DefaultPollInterval)
		cfg.PollInterval = DefaultPollInterval
	}
	return cfg
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvAsInt retrieves an environment variable as an integer or returns a fallback.
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

// getEnvAsFloat retrieves an environment variable as a float or returns a fallback.
func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil && value > 0 {
		return value
	}
	log.Printf("Invalid float value for %s ('%s'), using default: %g", key, valueStr, fallback)
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}

// getEnvAsList retrieves and parses a comma-separated list.
func getEnvAsList(key string, fallback []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
