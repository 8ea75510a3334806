package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	JWKSURL     string
	CORSOrigins string
	TablePrefix string
	// Model configuration
	GeminiAPIKey string
	GeminiModel  string
	// Safety gate
	SafetyRulesPath string // optional YAML override; embedded defaults otherwise
	// Brokerage
	BrokerBaseURL string
	// Market data
	MarketDataBaseURL string
	QuoteCacheTTLSecs int
	// Threshold enforcement: when a live price cannot be resolved, the
	// default waives the ceiling check (fail-open, matching the historical
	// behavior). Set TRADE_GUARD_FAIL_CLOSED=true to reject instead.
	TradeGuardFailClosed bool
	// Webhook delivery
	WebhookQueueSize   int
	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioWhatsAppFrom string
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		DatabaseURL: getEnv("DATABASE_URL", ""),
		JWKSURL:     getEnv("JWKS_URL", ""),
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix: getTablePrefix(env),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		SafetyRulesPath: getEnv("SAFETY_RULES_PATH", ""),

		BrokerBaseURL:     getEnv("BROKER_BASE_URL", "https://api.kite.trade"),
		MarketDataBaseURL: getEnv("MARKET_DATA_BASE_URL", "https://query1.finance.yahoo.com"),
		QuoteCacheTTLSecs: getIntEnv("QUOTE_CACHE_TTL_SECS", 30),

		TradeGuardFailClosed: getEnv("TRADE_GUARD_FAIL_CLOSED", "false") == "true",

		WebhookQueueSize:   getIntEnv("WEBHOOK_QUEUE_SIZE", 64),
		TwilioAccountSID:   getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:    getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWhatsAppFrom: getEnv("TWILIO_WHATSAPP_FROM", ""),
	}
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
