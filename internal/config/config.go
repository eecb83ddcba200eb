// Package config reads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/chat-storefront/internal/payment"
)

var ErrWeakSecret = errors.New("JWT_SECRET must be at least 32 characters long")

type Config struct {
	AppEnv    string
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	VendorID    string
	DatabaseURL string
	// DynamoTable switches the catalog to DynamoDB when set.
	DynamoTable string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration
	CatalogTTL    time.Duration

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroup   string

	JWTSecret         string
	AdminEmail        string
	AdminPasswordHash string

	Bank              payment.BankDetails
	PaymentGatewayURL string

	ScoringFile string
	// PolicyFile replaces the built-in purchase quota policy.
	PolicyFile          string
	FuzzyThreshold      int
	MaxCandidates       int
	MaxQuantityPerOrder int
	MaxPendingOrders    int
	LowStockThreshold   int
	RecoverAfter        time.Duration

	SMTPHost    string
	SMTPPort    string
	SMTPFrom    string
	VendorEmail string
}

// Load reads the environment. With APP_ENV=local it first loads .env.local
// without overriding variables that are already set.
func Load() (Config, error) {
	appEnv := getEnv("APP_ENV", "development")
	if appEnv == "local" {
		_ = godotenv.Load(".env.local")
	}

	cfg := Config{
		AppEnv:    appEnv,
		HTTPAddr:  getEnv("HTTP_ADDR", ":8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		VendorID:    getEnv("VENDOR_ID", "default"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DynamoTable: os.Getenv("DYNAMODB_TABLE"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		KafkaTopic: getEnv("KAFKA_TOPIC", "storefront-events"),
		KafkaGroup: getEnv("KAFKA_GROUP", "vendor-notifier"),

		JWTSecret:         os.Getenv("JWT_SECRET"),
		AdminEmail:        os.Getenv("ADMIN_EMAIL"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),

		Bank: payment.BankDetails{
			BankName:      os.Getenv("VENDOR_BANK_NAME"),
			AccountNumber: os.Getenv("VENDOR_ACCOUNT_NUMBER"),
			AccountName:   os.Getenv("VENDOR_ACCOUNT_NAME"),
		},
		PaymentGatewayURL: getEnv("PAYMENT_GATEWAY_URL", "https://pay.example.com/checkout"),

		ScoringFile: os.Getenv("SCORING_FILE"),
		PolicyFile:  os.Getenv("POLICY_FILE"),

		SMTPHost:    getEnv("SMTP_HOST", "localhost"),
		SMTPPort:    getEnv("SMTP_PORT", "1025"),
		SMTPFrom:    getEnv("SMTP_FROM", "noreply@example.com"),
		VendorEmail: os.Getenv("VENDOR_EMAIL"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return cfg, err
	}
	if cfg.FuzzyThreshold, err = getEnvInt("FUZZY_THRESHOLD", 0); err != nil {
		return cfg, err
	}
	if cfg.MaxCandidates, err = getEnvInt("MAX_CANDIDATES", 5); err != nil {
		return cfg, err
	}
	if cfg.MaxQuantityPerOrder, err = getEnvInt("MAX_QUANTITY_PER_ORDER", 10); err != nil {
		return cfg, err
	}
	if cfg.MaxPendingOrders, err = getEnvInt("MAX_PENDING_ORDERS", 3); err != nil {
		return cfg, err
	}
	if cfg.LowStockThreshold, err = getEnvInt("LOW_STOCK_THRESHOLD", 5); err != nil {
		return cfg, err
	}
	if cfg.SessionTTL, err = getEnvDuration("SESSION_TTL", 24*time.Hour); err != nil {
		return cfg, err
	}
	if cfg.CatalogTTL, err = getEnvDuration("CATALOG_CACHE_TTL", 30*time.Second); err != nil {
		return cfg, err
	}
	if cfg.RecoverAfter, err = getEnvDuration("RECOVER_AFTER", 2*time.Minute); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// RequireJWT checks the admin token secret before the HTTP API starts.
func (c Config) RequireJWT() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	if len(c.JWTSecret) < 32 {
		return ErrWeakSecret
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
