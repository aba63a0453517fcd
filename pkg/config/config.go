package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (snapshot history, optional)
	Database DatabaseConfig

	// Redis (shared rate limit, optional)
	Redis RedisConfig

	// External APIs
	Yahoo YahooConfig

	// Money-flow pipeline
	Flow FlowConfig

	// Prometheus metrics (/metrics on the API server)
	MetricsEnabled bool

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether snapshot history has a database to write to
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// YahooConfig holds Yahoo Finance chart API configuration
type YahooConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RatePerSec int // 0 = 제한 없음
	Workers    int // 동시 요청 수
}

// FlowConfig holds sector money-flow settings
type FlowConfig struct {
	SectorsFile       string // 비어 있으면 내장 정의 사용
	TopSectors        int
	SnapshotSchedule  string        // cron (with seconds)
	HistoryRetention  time.Duration // 0 = 삭제 안 함
	RetentionSchedule string        // cron (with seconds)
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// External APIs
		Yahoo: YahooConfig{
			BaseURL:    getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
			Timeout:    getEnvAsDuration("YAHOO_TIMEOUT", "10s"),
			MaxRetries: getEnvAsInt("YAHOO_MAX_RETRIES", 2),
			RatePerSec: getEnvAsInt("YAHOO_RATE_PER_SEC", 5),
			Workers:    getEnvAsInt("YAHOO_WORKERS", 4),
		},

		// Pipeline
		Flow: FlowConfig{
			SectorsFile:       getEnv("FLOW_SECTORS_FILE", ""),
			TopSectors:        getEnvAsInt("FLOW_TOP_SECTORS", 3),
			SnapshotSchedule:  getEnv("FLOW_SNAPSHOT_SCHEDULE", "0 15 16 * * MON-FRI"),
			HistoryRetention:  getEnvAsDuration("FLOW_HISTORY_RETENTION", "2160h"),
			RetentionSchedule: getEnv("FLOW_RETENTION_SCHEDULE", "0 0 3 * * *"),
		},

		// Metrics
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if configuration values are usable
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Flow.TopSectors < 1 {
		return fmt.Errorf("FLOW_TOP_SECTORS must be at least 1, got %d", c.Flow.TopSectors)
	}

	if c.Yahoo.Workers < 1 {
		return fmt.Errorf("YAHOO_WORKERS must be at least 1, got %d", c.Yahoo.Workers)
	}

	if c.Flow.HistoryRetention < 0 {
		return fmt.Errorf("FLOW_HISTORY_RETENTION must not be negative")
	}

	if c.Yahoo.MaxRetries < 0 {
		return fmt.Errorf("YAHOO_MAX_RETRIES must not be negative")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env",         // Current directory
		"backend/.env", // From project root
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
