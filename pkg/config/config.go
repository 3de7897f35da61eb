package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel      string
	DashboardPort string
	BotName       string

	// Scan loop
	PollInterval    time.Duration
	MinProfitCents  float64
	RematchInterval time.Duration

	// Venue endpoints
	PolymarketGammaURL string
	PolymarketClobURL  string
	KalshiBaseURL      string
	SpotBaseURL        string

	// Kalshi request signing
	KalshiAPIKey     string
	KalshiPrivateKey string // PEM file path, or inline PEM starting with -----BEGIN

	// Per-tick fetch budgets
	MarketFetchLimit       int
	MaxPairsPerTick        int
	MaxMultiOutcomeMarkets int
	MaxSpotLagBookFetches  int
	MaxConstraintFetches   int

	// Rate caps, requests per second
	KalshiRateLimit float64
	ClobRateLimit   float64
	GammaRateLimit  float64
	SpotRateLimit   float64

	// Transport
	HTTPTimeout time.Duration

	// Matching
	MatchCacheFile string
	OpenAIAPIKey   string // empty disables the semantic cascade tier

	// Sinks
	LogFile     string // opportunity CSV path
	DatabaseURL string // Postgres DSN; empty selects the console sink
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel:      getEnvOrDefault("LOG_LEVEL", "info"),
		DashboardPort: getEnvOrDefault("DASHBOARD_PORT", "8000"),
		BotName:       getEnvOrDefault("BOT_NAME", "unified"),

		// Scan loop defaults
		PollInterval:    time.Duration(getIntOrDefault("POLL_INTERVAL_SECONDS", 10)) * time.Second,
		MinProfitCents:  getFloat64OrDefault("MIN_PROFIT_CENTS", 1.0),
		RematchInterval: time.Duration(getIntOrDefault("REMATCH_INTERVAL_SECONDS", 300)) * time.Second,

		// Venue endpoint defaults
		PolymarketGammaURL: getEnvOrDefault("POLYMARKET_GAMMA_API_URL", "https://gamma-api.polymarket.com"),
		PolymarketClobURL:  getEnvOrDefault("POLYMARKET_CLOB_API_URL", "https://clob.polymarket.com"),
		KalshiBaseURL:      getEnvOrDefault("KALSHI_API_URL", "https://api.elections.kalshi.com/trade-api/v2"),
		SpotBaseURL:        getEnvOrDefault("SPOT_API_URL", "https://api.coinbase.com/v2/prices"),

		// Kalshi signing credentials
		KalshiAPIKey:     os.Getenv("KALSHI_API_KEY"),
		KalshiPrivateKey: getEnvOrDefault("KALSHI_PRIVATE_KEY_PATH", "kalshi.pem"),

		// Per-tick budget defaults
		MarketFetchLimit:       getIntOrDefault("MARKET_FETCH_LIMIT", 200),
		MaxPairsPerTick:        getIntOrDefault("MAX_PAIRS_PER_TICK", 30),
		MaxMultiOutcomeMarkets: getIntOrDefault("MAX_MULTI_OUTCOME_MARKETS", 80),
		MaxSpotLagBookFetches:  getIntOrDefault("MAX_SPOT_LAG_BOOK_FETCHES", 50),
		MaxConstraintFetches:   getIntOrDefault("MAX_CONSTRAINT_FETCHES", 50),

		// Rate cap defaults: Kalshi documents ~25 req/s, the CLOB allows
		// 1500 req/10s on /price, Gamma 300 req/10s on /markets.
		KalshiRateLimit: getFloat64OrDefault("KALSHI_RATE_LIMIT", 25),
		ClobRateLimit:   getFloat64OrDefault("CLOB_RATE_LIMIT", 150),
		GammaRateLimit:  getFloat64OrDefault("GAMMA_RATE_LIMIT", 20),
		SpotRateLimit:   getFloat64OrDefault("SPOT_RATE_LIMIT", 10),

		// Transport defaults
		HTTPTimeout: getDurationOrDefault("HTTP_TIMEOUT", 10*time.Second),

		// Matching defaults
		MatchCacheFile: getEnvOrDefault("MATCH_CACHE_FILE", "match_cache.json"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),

		// Sink defaults
		LogFile:     getEnvOrDefault("LOG_FILE", "opps.csv"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.DashboardPort == "" {
		return fmt.Errorf("DASHBOARD_PORT cannot be empty")
	}

	if c.PollInterval < time.Second {
		return fmt.Errorf("POLL_INTERVAL_SECONDS must be at least 1, got %s", c.PollInterval)
	}

	if c.MinProfitCents < 0 {
		return fmt.Errorf("MIN_PROFIT_CENTS cannot be negative, got %f", c.MinProfitCents)
	}

	if c.PolymarketGammaURL == "" {
		return fmt.Errorf("POLYMARKET_GAMMA_API_URL cannot be empty")
	}

	if c.PolymarketClobURL == "" {
		return fmt.Errorf("POLYMARKET_CLOB_API_URL cannot be empty")
	}

	if c.KalshiBaseURL == "" {
		return fmt.Errorf("KALSHI_API_URL cannot be empty")
	}

	if c.LogFile == "" {
		return fmt.Errorf("LOG_FILE cannot be empty")
	}

	if c.MatchCacheFile == "" {
		return fmt.Errorf("MATCH_CACHE_FILE cannot be empty")
	}

	if c.MarketFetchLimit <= 0 {
		return fmt.Errorf("MARKET_FETCH_LIMIT must be positive, got %d", c.MarketFetchLimit)
	}

	if c.KalshiRateLimit <= 0 || c.ClobRateLimit <= 0 || c.GammaRateLimit <= 0 || c.SpotRateLimit <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
