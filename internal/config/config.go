package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the gateway.
type Config struct {
	HTTPPort       string
	Environment    string // "production" suppresses 5xx detail in responses
	AdminJWTSecret []byte
	UpstreamURL    string // downstream search API admitted requests are proxied to
	Database       DatabaseConfig
	Redis          RedisConfig
	KeyCache       KeyCacheConfig
	RateLimit      RateLimitConfig
	Scheduler      SchedulerConfig
	RequestLog     RequestLogConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	QueryTimeout    time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KeyCacheConfig holds settings for the Redis-backed API key record cache.
type KeyCacheConfig struct {
	TTL time.Duration
}

// RateLimitConfig holds settings for the short-window rate limiter.
type RateLimitConfig struct {
	Window          time.Duration // rolling window length
	PerAddressLimit int           // requests per window per caller address, 0 = unlimited
	// FailClosed rejects with 503 when the rate-limit store is unreachable.
	// The default (false) fails open behind a local token-bucket backstop.
	FailClosed bool
}

// SchedulerConfig holds settings for the hourly usage reset job.
type SchedulerConfig struct {
	CronSpec   string
	BatchSize  int           // timezones per batch
	BatchDelay time.Duration // pause between batches
}

// RequestLogConfig holds settings for the async request log writer.
type RequestLogConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	boolVal, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}
	return boolVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	upstream := os.Getenv("UPSTREAM_URL")
	if upstream == "" {
		return nil, fmt.Errorf("UPSTREAM_URL is required")
	}

	cfg := &Config{
		HTTPPort:       getEnvString("HTTP_PORT", "8080"),
		Environment:    getEnvString("ENVIRONMENT", "development"),
		AdminJWTSecret: []byte(getEnvString("ADMIN_JWT_SECRET", "supersecretkey")),
		UpstreamURL:    upstream,
		Database: DatabaseConfig{
			URL:             dbURL,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
			QueryTimeout:    getEnvDuration("DB_QUERY_TIMEOUT", 2*time.Second),
		},
		Redis: RedisConfig{
			Address:      getEnvString("REDIS_ADDRESS", "localhost:6379"),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 2*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 2*time.Second),
		},
		KeyCache: KeyCacheConfig{
			TTL: getEnvDuration("KEY_CACHE_TTL", 1*time.Hour),
		},
		RateLimit: RateLimitConfig{
			Window:          getEnvDuration("RATE_LIMIT_WINDOW", 60*time.Second),
			PerAddressLimit: getEnvInt("RATE_LIMIT_PER_ADDRESS", 0),
			FailClosed:      getEnvBool("RATE_LIMIT_FAIL_CLOSED", false),
		},
		Scheduler: SchedulerConfig{
			CronSpec:   getEnvString("RESET_CRON_SPEC", "0 * * * *"),
			BatchSize:  getEnvInt("RESET_BATCH_SIZE", 5),
			BatchDelay: getEnvDuration("RESET_BATCH_DELAY", 100*time.Millisecond),
		},
		RequestLog: RequestLogConfig{
			BufferSize:    getEnvInt("REQUEST_LOG_BUFFER_SIZE", 10000),
			BatchSize:     getEnvInt("REQUEST_LOG_BATCH_SIZE", 100),
			FlushInterval: getEnvDuration("REQUEST_LOG_FLUSH_INTERVAL", 5*time.Second),
		},
	}

	return cfg, nil
}

// IsProduction reports whether the gateway runs with production hardening.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
