// Package config provides configuration management for the application.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all configuration values for the application.
type Config struct {
	// AWS
	AWSRegion      string
	S3ImportBucket string
	S3ReportBucket string

	// Database
	DBURL      string
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBMaxConns int

	// SES
	SESSenderEmail string

	// Redis
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	ReportCacheTTL time.Duration

	// Auth
	JWTSecret string
	JWTIssuer string

	// HTTP
	Port        string
	CORSOrigins []string

	// Ledger
	LateInterestMonthlyRate decimal.Decimal
	ReportPeriodDays        int
	PresignExpiry           time.Duration

	// Application
	Stage    string
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	_ = godotenv.Load()

	cfg := &Config{
		// AWS
		AWSRegion:      getEnv("AWS_REGION", "sa-east-1"),
		S3ImportBucket: getEnv("S3_IMPORT_BUCKET", getEnv("S3_BUCKET", "finance-backoffice-imports-dev")),
		S3ReportBucket: getEnv("S3_REPORT_BUCKET", ""),

		// Database
		DBURL:      getEnv("DATABASE_URL", ""),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBName:     getEnv("DB_NAME", "finance"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBMaxConns: getEnvInt("DB_MAX_CONNS", defaultMaxConns()),

		// SES
		SESSenderEmail: getEnv("SES_SENDER_EMAIL", ""),

		// Redis
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		ReportCacheTTL: time.Duration(getEnvInt("REPORT_CACHE_TTL_SECONDS", 300)) * time.Second,

		// Auth
		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", ""),

		// HTTP
		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),

		// Ledger
		LateInterestMonthlyRate: getEnvDecimal("LATE_INTEREST_MONTHLY_RATE", decimal.RequireFromString("0.01")),
		ReportPeriodDays:        getEnvInt("REPORT_PERIOD_DAYS", 30),
		PresignExpiry:           time.Duration(getEnvInt("PRESIGN_EXPIRY_MINUTES", 15)) * time.Minute,

		// Application
		Stage:    getEnv("STAGE", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// DatabaseURL returns the PostgreSQL connection string. DATABASE_URL wins
// over the individual DB_* settings.
func (c *Config) DatabaseURL() string {
	if c.DBURL != "" {
		return c.DBURL
	}
	sslMode := "require" // Use SSL for RDS
	if c.DBHost == "localhost" || c.DBHost == "127.0.0.1" {
		sslMode = "disable" // Disable SSL for local development
	}
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + strconv.Itoa(c.DBPort) + "/" + c.DBName + "?sslmode=" + sslMode
}

// HasDatabase reports whether enough settings exist to attempt a connection.
func (c *Config) HasDatabase() bool {
	return c.DBURL != "" || c.DBPassword != ""
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as int or returns a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDecimal retrieves an environment variable as a decimal or returns a default value.
func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList retrieves a comma separated environment variable.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// defaultMaxConns keeps Lambda pools small; every concurrent invocation
// holds its own pool.
func defaultMaxConns() int {
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		return 2
	}
	return 10
}
