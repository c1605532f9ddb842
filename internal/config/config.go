package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"bar_backoffice/pkg/utils"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds every runtime setting of the server. Values come from the
// environment, optionally seeded from a .env file.
type Config struct {
	Port string

	DBHost       string
	DBPort       string
	DBUser       string
	DBPassword   string
	DBName       string
	DBSSLMode    string
	DBSchemaPath string

	CORSAllowedOrigins []string

	JWTSecret string
	JWTTTL    time.Duration

	// QueryTimeout bounds every persistence call made on behalf of a request.
	QueryTimeout time.Duration

	// DefaultServiceFeeRate applies when an establishment row carries no rate of its own.
	DefaultServiceFeeRate decimal.Decimal
	// DefaultKitchenLateAfter is used when an establishment has no late threshold.
	DefaultKitchenLateAfter time.Duration

	RedisAddr     string
	RedisPassword string
	ProductTTL    time.Duration

	RabbitMQURL      string
	RabbitMQExchange string

	LogFormat string
	LogLevel  string

	// Seed manager created on start when both are set and the username is free.
	SeedManagerUsername string
	SeedManagerPassword string
	SeedEstablishmentID int64
}

// Load reads the optional env file (missing files are fine) and builds a Config.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	rate, err := decimal.NewFromString(utils.Getenv("DEFAULT_SERVICE_FEE_RATE", "0.10"))
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_SERVICE_FEE_RATE: %w", err)
	}

	cfg := &Config{
		Port:                    utils.Getenv("PORT", "8080"),
		DBHost:                  utils.Getenv("DB_HOST", "localhost"),
		DBPort:                  utils.Getenv("DB_PORT", "5432"),
		DBUser:                  utils.Getenv("DB_USER", "backoffice_user"),
		DBPassword:              utils.Getenv("DB_PASSWORD", "backoffice_password"),
		DBName:                  utils.Getenv("DB_NAME", "backoffice_db"),
		DBSSLMode:               utils.Getenv("DB_SSLMODE", "disable"),
		DBSchemaPath:            utils.Getenv("DB_SCHEMA_PATH", ""),
		CORSAllowedOrigins:      splitList(utils.Getenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		JWTSecret:               utils.Getenv("JWT_SECRET", ""),
		JWTTTL:                  utils.GetenvDuration("JWT_TTL", 12*time.Hour),
		QueryTimeout:            utils.GetenvDuration("QUERY_TIMEOUT", 5*time.Second),
		DefaultServiceFeeRate:   rate,
		DefaultKitchenLateAfter: time.Duration(utils.GetenvInt("KITCHEN_LATE_AFTER_MINUTES", 20)) * time.Minute,
		RedisAddr:               utils.Getenv("REDIS_ADDR", ""),
		RedisPassword:           utils.Getenv("REDIS_PASSWORD", ""),
		ProductTTL:              utils.GetenvDuration("PRODUCT_CACHE_TTL", time.Minute),
		RabbitMQURL:             utils.Getenv("RABBITMQ_URL", ""),
		RabbitMQExchange:        utils.Getenv("RABBITMQ_EXCHANGE", "backoffice.events"),
		LogFormat:               utils.Getenv("LOG_FORMAT", "console"),
		LogLevel:                utils.Getenv("LOG_LEVEL", "info"),
		SeedManagerUsername:     utils.Getenv("SEED_MANAGER_USERNAME", ""),
		SeedManagerPassword:     utils.Getenv("SEED_MANAGER_PASSWORD", ""),
		SeedEstablishmentID:     int64(utils.GetenvInt("SEED_ESTABLISHMENT_ID", 1)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.QueryTimeout <= 0 {
		return errors.New("QUERY_TIMEOUT must be positive")
	}
	if c.DefaultServiceFeeRate.IsNegative() || c.DefaultServiceFeeRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("DEFAULT_SERVICE_FEE_RATE must be within [0, 1], got %s", c.DefaultServiceFeeRate)
	}
	if c.SeedManagerUsername != "" && len(c.SeedManagerPassword) < 8 {
		return errors.New("SEED_MANAGER_PASSWORD must be at least 8 characters")
	}
	return nil
}

// DatabaseDSN is the lib/pq key/value connection string.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
