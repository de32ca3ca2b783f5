package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string `validate:"required,numeric"`
	Env  string `validate:"oneof=development staging production"`

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Angle oracle
	Oracle OracleConfig

	// Study inputs
	StudyConfigPath string // YAML file, empty = built-in defaults
	PriceCSV        string
	PriceTimezone   string `validate:"required"`

	// Logging
	LogLevel  string
	LogFormat string `validate:"omitempty,oneof=json console pretty"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int `validate:"gte=0"`
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int `validate:"gte=1"`
	MinConns        int `validate:"gte=0,ltefield=MaxConns"`
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// OracleConfig selects the elongation source
type OracleConfig struct {
	Source  string  `validate:"oneof=meeus remote"`
	URL     string  `validate:"required_if=Source remote"`
	RPS     float64 `validate:"gte=0"` // 0 = unlimited
	Timeout time.Duration
}

var validate = validator.New()

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
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

		Oracle: OracleConfig{
			Source:  getEnv("ORACLE_SOURCE", "meeus"),
			URL:     getEnv("ORACLE_URL", ""),
			RPS:     getEnvAsFloat("ORACLE_RPS", 0),
			Timeout: getEnvAsDuration("ORACLE_TIMEOUT", "10s"),
		},

		StudyConfigPath: getEnv("STUDY_CONFIG", ""),
		PriceCSV:        getEnv("PRICE_CSV", "data/financial_data/eur_usd_m1.csv"),
		PriceTimezone:   getEnv("PRICE_TZ", "UTC"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// HasDatabase reports whether persistence is configured
// DB는 선택 사항: DATABASE_URL 없으면 CSV/콘솔 출력만
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// validate checks configuration values
func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if c.Oracle.URL != "" {
		if _, err := url.ParseRequestURI(c.Oracle.URL); err != nil {
			return fmt.Errorf("ORACLE_URL: %w", err)
		}
	}

	if _, err := time.LoadLocation(c.PriceTimezone); err != nil {
		return fmt.Errorf("PRICE_TZ %q: %w", c.PriceTimezone, err)
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
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
