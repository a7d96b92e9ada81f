package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Supported market data providers
const (
	ProviderEOD          = "eod"
	ProviderAlphaVantage = "alphavantage"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Cache    CacheConfig

	// Market data provider configuration
	MarketData   MarketDataConfig
	EOD          EODConfig
	AlphaVantage AlphaVantageConfig

	Batch    BatchConfig
	Realtime RealtimeConfig
	HTTP     HTTPConfig
	Log      LogConfig
}

// DatabaseConfig holds ranking store configuration.
// postgres:// selects Postgres, sqlite:// an embedded file, empty an in-memory store.
type DatabaseConfig struct {
	URL string
}

// CacheConfig holds time-series cache configuration
type CacheConfig struct {
	RedisURL   string // empty or unreachable selects the in-process backend
	TTLSeconds int
}

// MarketDataConfig holds provider-independent fetch settings
type MarketDataConfig struct {
	Provider        string // eod or alphavantage
	Exchange        string // suffix appended to symbols, e.g. NSE
	CallDelayMS     int    // mandatory wait before every cache-miss fetch
	TimeoutSeconds  int    // bound on a single provider call
	HistoryLimit    int    // keep only the most recent N points, 0 keeps all
	UniverseFile    string // optional YAML override of the tracked universe
	RecentPoints    int    // points returned by the per-symbol read API
	MaxRetries      int
	RetryBackoffMS  int
	RetryMaxBackoff int // milliseconds
}

// EODConfig holds EOD Historical Data configuration
type EODConfig struct {
	APIKey  string
	BaseURL string
}

// AlphaVantageConfig holds Alpha Vantage API configuration
type AlphaVantageConfig struct {
	APIKey  string
	BaseURL string
}

// BatchConfig holds daily ranking batch configuration
type BatchConfig struct {
	Cron string // robfig/cron spec with a seconds field
}

// RealtimeConfig holds broadcast scheduler configuration
type RealtimeConfig struct {
	TickSeconds  int
	TickTopN     int     // symbols perturbed per tick
	SnapshotTopN int     // size of the TOP_PICKS snapshot
	MaxSwing     float64 // max perturbation fraction at score 100
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port               int
	CORSAllowedOrigins string
	TimeoutSeconds     int
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level string
	JSON  bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Cache: CacheConfig{
			RedisURL:   os.Getenv("REDIS_URL"),
			TTLSeconds: getEnvInt("CACHE_TTL_SECONDS", 43200),
		},
		MarketData: MarketDataConfig{
			Provider:        strings.ToLower(getEnvString("MARKET_DATA_PROVIDER", ProviderEOD)),
			Exchange:        strings.ToUpper(getEnvString("MARKET_EXCHANGE", "NSE")),
			CallDelayMS:     getEnvIntMin("PROVIDER_CALL_DELAY_MS", 13000, 0),
			TimeoutSeconds:  getEnvInt("PROVIDER_TIMEOUT_SECONDS", 30),
			HistoryLimit:    getEnvIntMin("PROVIDER_HISTORY_LIMIT", 0, 0),
			UniverseFile:    os.Getenv("UNIVERSE_FILE"),
			RecentPoints:    getEnvInt("RECENT_POINTS", 100),
			MaxRetries:      getEnvIntMin("PROVIDER_MAX_RETRIES", 2, 0),
			RetryBackoffMS:  getEnvInt("PROVIDER_RETRY_BACKOFF_MS", 500),
			RetryMaxBackoff: getEnvInt("PROVIDER_RETRY_MAX_BACKOFF_MS", 5000),
		},
		EOD: EODConfig{
			APIKey:  os.Getenv("EOD_API_KEY"),
			BaseURL: getEnvString("EOD_BASE_URL", "https://eodhistoricaldata.com/api/eod"),
		},
		AlphaVantage: AlphaVantageConfig{
			APIKey:  os.Getenv("ALPHA_VANTAGE_API_KEY"),
			BaseURL: getEnvString("ALPHA_VANTAGE_BASE_URL", "https://www.alphavantage.co/query"),
		},
		Batch: BatchConfig{
			Cron: getEnvString("BATCH_CRON", "0 0 6 * * *"),
		},
		Realtime: RealtimeConfig{
			TickSeconds:  getEnvInt("REALTIME_TICK_SECONDS", 5),
			TickTopN:     getEnvInt("REALTIME_TICK_TOP_N", 5),
			SnapshotTopN: getEnvInt("REALTIME_SNAPSHOT_TOP_N", 10),
			MaxSwing:     getEnvFloatUnbounded("REALTIME_MAX_SWING", 0.005),
		},
		HTTP: HTTPConfig{
			Port:               getEnvInt("HTTP_PORT", 8080),
			CORSAllowedOrigins: getEnvString("CORS_ALLOWED_ORIGINS", "*"),
			TimeoutSeconds:     getEnvInt("HTTP_TIMEOUT_SECONDS", 30),
		},
		Log: LogConfig{
			Level: getEnvString("LOG_LEVEL", "info"),
			JSON:  strings.EqualFold(getEnvString("LOG_FORMAT", "text"), "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.MarketData.Provider {
	case ProviderEOD, ProviderAlphaVantage:
	default:
		return fmt.Errorf("MARKET_DATA_PROVIDER must be %q or %q, got %q",
			ProviderEOD, ProviderAlphaVantage, c.MarketData.Provider)
	}

	if c.MarketData.Exchange == "" {
		return fmt.Errorf("MARKET_EXCHANGE must not be empty")
	}
	if c.MarketData.CallDelayMS < 0 {
		return fmt.Errorf("PROVIDER_CALL_DELAY_MS must not be negative, got %d", c.MarketData.CallDelayMS)
	}
	if c.MarketData.TimeoutSeconds <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT_SECONDS must be positive, got %d", c.MarketData.TimeoutSeconds)
	}
	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("CACHE_TTL_SECONDS must be positive, got %d", c.Cache.TTLSeconds)
	}

	if c.Realtime.TickSeconds <= 0 {
		return fmt.Errorf("REALTIME_TICK_SECONDS must be positive, got %d", c.Realtime.TickSeconds)
	}
	if c.Realtime.TickTopN <= 0 || c.Realtime.SnapshotTopN <= 0 {
		return fmt.Errorf("REALTIME_TICK_TOP_N and REALTIME_SNAPSHOT_TOP_N must be positive, got %d and %d",
			c.Realtime.TickTopN, c.Realtime.SnapshotTopN)
	}
	if c.Realtime.MaxSwing <= 0 || c.Realtime.MaxSwing > 0.05 {
		return fmt.Errorf("REALTIME_MAX_SWING must be in (0, 0.05], got %g", c.Realtime.MaxSwing)
	}

	if _, err := ParseCron(c.Batch.Cron); err != nil {
		return fmt.Errorf("BATCH_CRON is invalid: %w", err)
	}

	return nil
}

// ParseCron parses a schedule in the seconds-first format used by BATCH_CRON
func ParseCron(spec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return parser.Parse(spec)
}

// HasDatabase returns true if a persistent ranking store is configured
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// HasRedis returns true if a networked cache is configured
func (c *Config) HasRedis() bool {
	return c.Cache.RedisURL != ""
}

// HasProviderKey returns true if the selected provider has an API key
func (c *Config) HasProviderKey() bool {
	if c.MarketData.Provider == ProviderAlphaVantage {
		return c.AlphaVantage.APIKey != ""
	}
	return c.EOD.APIKey != ""
}

// CacheTTL returns the time-series cache TTL
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// CallDelay returns the mandatory delay before a provider fetch
func (c *Config) CallDelay() time.Duration {
	return time.Duration(c.MarketData.CallDelayMS) * time.Millisecond
}

// ProviderTimeout returns the bound on a single provider call
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.MarketData.TimeoutSeconds) * time.Second
}

// TickInterval returns the realtime scheduler period
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Realtime.TickSeconds) * time.Second
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	return getEnvIntMin(key, defaultValue, 1)
}

func getEnvIntMin(key string, defaultValue, minVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed >= minVal {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloatUnbounded(key string, defaultValue float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// NewTestConfig creates a Config with default values and no provider delay
func NewTestConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			TTLSeconds: 43200,
		},
		MarketData: MarketDataConfig{
			Provider:        ProviderEOD,
			Exchange:        "NSE",
			CallDelayMS:     0,
			TimeoutSeconds:  5,
			RecentPoints:    100,
			MaxRetries:      0,
			RetryBackoffMS:  1,
			RetryMaxBackoff: 10,
		},
		EOD: EODConfig{
			BaseURL: "https://eodhistoricaldata.com/api/eod",
		},
		AlphaVantage: AlphaVantageConfig{
			BaseURL: "https://www.alphavantage.co/query",
		},
		Batch: BatchConfig{
			Cron: "0 0 6 * * *",
		},
		Realtime: RealtimeConfig{
			TickSeconds:  5,
			TickTopN:     5,
			SnapshotTopN: 10,
			MaxSwing:     0.005,
		},
		HTTP: HTTPConfig{
			Port:               8080,
			CORSAllowedOrigins: "*",
			TimeoutSeconds:     30,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
