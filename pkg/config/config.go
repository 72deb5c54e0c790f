package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the workbench. Environment variables are
// read here and nowhere else.
type Config struct {
	Env string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis (optional clean-series cache)
	Redis RedisConfig

	// News calendar source
	Calendar CalendarConfig

	// Data-cleaning defaults; callers may override per run.
	Cleaning CleaningConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL string

	// Connection pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// CalendarConfig holds the excluded-dates calendar sources. File is tried
// first; URL is the HTML economic calendar used by the fetch command.
type CalendarConfig struct {
	File           string
	URL            string
	RequestsPerSec float64
}

// CleaningConfig holds default pipeline parameters.
type CleaningConfig struct {
	MADMultiplier       float64 // outlier threshold, median ± k*MAD
	IQRMultiplier       float64 // Tukey fence multiplier
	GapTolerancePercent float64 // warn when a field's missing% exceeds this
	ImputeMaxIterations int
	ImputeSeed          int64

	// MarketHolidays are local dates ("2006-01-02") excluded by the
	// market-hours filter, applied to every session-bound symbol.
	MarketHolidays []string
}

// Load reads configuration from environment variables. Only this function
// calls os.Getenv.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Calendar: CalendarConfig{
			File:           getEnv("NEWS_CALENDAR_FILE", "news_calendar.csv"),
			URL:            getEnv("NEWS_CALENDAR_URL", ""),
			RequestsPerSec: getEnvAsFloat("NEWS_CALENDAR_RPS", 1.0),
		},

		Cleaning: CleaningConfig{
			MADMultiplier:       getEnvAsFloat("OUTLIER_MAD_MULTIPLIER", 3.0),
			IQRMultiplier:       getEnvAsFloat("OUTLIER_IQR_MULTIPLIER", 1.5),
			GapTolerancePercent: getEnvAsFloat("GAP_TOLERANCE_PERCENT", 30.0),
			ImputeMaxIterations: getEnvAsInt("IMPUTE_MAX_ITERATIONS", 10),
			ImputeSeed:          int64(getEnvAsInt("IMPUTE_SEED", 42)),
			MarketHolidays:      getEnvAsSlice("MARKET_HOLIDAYS", nil),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks required configuration values.
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Cleaning.GapTolerancePercent < 0 || c.Cleaning.GapTolerancePercent > 100 {
		return fmt.Errorf("GAP_TOLERANCE_PERCENT must be within [0, 100]")
	}

	if c.Cleaning.ImputeMaxIterations <= 0 {
		return fmt.Errorf("IMPUTE_MAX_ITERATIONS must be positive")
	}

	for _, d := range c.Cleaning.MarketHolidays {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return fmt.Errorf("MARKET_HOLIDAYS entry %q is not a YYYY-MM-DD date", d)
		}
	}

	return nil
}

// loadEnvFile tries to load .env from common locations.
func loadEnvFile() {
	paths := []string{
		".env",
	}

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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
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

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			values = append(values, p)
		}
	}
	return values
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
