package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Gateway   GatewayConfig
	Billing   BillingConfig
	RateLimit RateLimitConfig
	SMTP      SMTPConfig
}

// GatewayConfig configures the external payment gateway client.
type GatewayConfig struct {
	BaseURL   string
	APISecret string
	StoreID   string
	Timeout   time.Duration
}

// BillingConfig tunes the reconciliation flow.
type BillingConfig struct {
	ScheduleDelay      time.Duration
	SettleDelay        time.Duration
	PollInterval       time.Duration
	PollTimeout        time.Duration
	InvoiceReuseWindow time.Duration
	AlertEmail         string
}

// RateLimitConfig configures redis-backed limits on public payment endpoints.
type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ConfirmRate   float64
	ConfirmBurst  int
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:      getenv("APP_SERVICE", "storefront"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "storefront"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		Gateway: GatewayConfig{
			BaseURL:   getenv("PG_BASE_URL", "https://api.portone.io"),
			APISecret: strings.TrimSpace(getenv("PG_API_SECRET", "")),
			StoreID:   strings.TrimSpace(getenv("PG_STORE_ID", "")),
			Timeout:   getenvDuration("PG_HTTP_TIMEOUT", 12*time.Second),
		},
		Billing: BillingConfig{
			ScheduleDelay:      getenvDuration("BILLING_SCHEDULE_DELAY", 2*time.Second),
			SettleDelay:        getenvDuration("BILLING_SETTLE_DELAY", 3*time.Second),
			PollInterval:       getenvDuration("BILLING_POLL_INTERVAL", time.Second),
			PollTimeout:        getenvDuration("BILLING_POLL_TIMEOUT", 75*time.Second),
			InvoiceReuseWindow: getenvDuration("BILLING_INVOICE_REUSE_WINDOW", 10*time.Minute),
			AlertEmail:         strings.TrimSpace(getenv("BILLING_ALERT_EMAIL", "")),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
			RedisPassword: strings.TrimSpace(getenv("RATE_LIMIT_REDIS_PASSWORD", "")),
			RedisDB:       getenvInt("RATE_LIMIT_REDIS_DB", 0),
			ConfirmRate:   getenvFloat("RATE_LIMIT_CONFIRM_RATE", 1),
			ConfirmBurst:  getenvInt("RATE_LIMIT_CONFIRM_BURST", 5),
		},
		SMTP: SMTPConfig{
			Host:     getenv("SMTP_HOST", ""),
			Port:     getenvInt("SMTP_PORT", 587),
			Username: getenv("SMTP_USERNAME", ""),
			Password: getenv("SMTP_PASSWORD", ""),
			From:     getenv("SMTP_FROM", "billing@storefront.local"),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
