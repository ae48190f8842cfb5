package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds application configuration values.
type Config struct {
	ServiceName string
	Env         string
	HTTPPort    string
	LogLevel    string

	DB      DBConfig
	JWT     JWTConfig
	Redis   RedisConfig
	Metrics MetricsConfig
	Store   StoreConfig
	AI      AIConfig
	Admin   AdminConfig

	SeedProductsCSV string
}

type DBConfig struct {
	Driver       string
	DSN          string
	MaxOpenConns int
}

type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

// RedisConfig is optional; an empty Addr keeps the feed and cache in memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type MetricsConfig struct {
	Prefix string
}

// StoreConfig carries the business constants used by checkout.
type StoreConfig struct {
	DeliveryFee         decimal.Decimal
	RedemptionThreshold int
	RedemptionValue     decimal.Decimal
	BusinessPhone       string
}

// AIConfig selects the Gemini model. An empty BaseURL uses the public API.
type AIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// AdminConfig bootstraps the first ADMIN account when both fields are set.
type AdminConfig struct {
	Email    string
	Password string
}

// Load reads configuration from environment variables with reasonable defaults.
func Load() Config {
	driver := getEnv("DB_DRIVER", "sqlite")
	dsn := getEnv("DATABASE_DSN", "")
	if dsn == "" {
		if driver == "pgx" {
			dsn = "postgres://" + getEnv("DB_USER", "postgres") + ":" + getEnv("DB_PASSWORD", "") +
				"@" + getEnv("DB_HOST", "localhost") + ":" + getEnv("DB_PORT", "5432") +
				"/" + getEnv("DB_NAME", "pharmastore") + "?sslmode=disable"
		} else {
			dsn = "pharmastore.db"
		}
	}

	maxConns := getEnvAsInt("DB_MAX_OPEN_CONNS", 10)
	if driver == "sqlite" {
		maxConns = 1
	}

	port := getEnv("HTTP_PORT", "8080")
	if _, err := strconv.Atoi(port); err != nil {
		port = "8080"
	}

	name := getEnv("SERVICE_NAME", "pharmastore")

	return Config{
		ServiceName: name,
		Env:         getEnv("APP_ENV", "development"),
		HTTPPort:    port,
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DB: DBConfig{
			Driver:       driver,
			DSN:          dsn,
			MaxOpenConns: maxConns,
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", "dev_secret"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			CacheTTL: getEnvAsDuration("CACHE_TTL", 5*time.Minute),
		},
		Metrics: MetricsConfig{
			Prefix: getEnv("METRICS_PREFIX", name),
		},
		Store: StoreConfig{
			DeliveryFee:         getEnvAsDecimal("DELIVERY_FEE", decimal.NewFromInt(1)),
			RedemptionThreshold: getEnvAsInt("REDEMPTION_THRESHOLD", 100),
			RedemptionValue:     getEnvAsDecimal("REDEMPTION_VALUE", decimal.NewFromInt(5)),
			BusinessPhone:       getEnv("BUSINESS_PHONE", ""),
		},
		AI: AIConfig{
			BaseURL: getEnv("AI_BASE_URL", ""),
			APIKey:  getEnv("AI_API_KEY", ""),
			Model:   getEnv("AI_MODEL", "gemini-2.0-flash"),
			Timeout: getEnvAsDuration("AI_TIMEOUT", 20*time.Second),
		},
		Admin: AdminConfig{
			Email:    getEnv("ADMIN_EMAIL", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
		SeedProductsCSV: getEnv("SEED_PRODUCTS_CSV", ""),
	}
}

// IsProduction reports whether APP_ENV is production.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value, err := decimal.NewFromString(getEnv(key, "")); err == nil && !value.IsNegative() {
		return value
	}
	return defaultValue
}
