package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var AppEnv Config

type Config struct {
	MongoURI        string
	DBName          string
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	StripeSecretKey     string
	StripeWebhookSecret string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string

	RedisAddr    string
	KafkaBrokers []string

	// Cents added as a flat shipping line on every checkout session.
	ShippingRate int64
	// Tax rate in basis points applied by the payment provider config;
	// kept here only for session creation display, never recomputed locally.
	TaxRateBps int64
}

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	AppEnv = Config{
		MongoURI:        getEnvOrDefault("MONGO_URI", ""),
		DBName:          getEnvOrDefault("DB_NAME", "ecommerce"),
		JWTSecret:       getEnvOrDefault("JWT_SECRET", ""),
		AccessTokenTTL:  getDurationEnv("ACCESS_TOKEN_TTL", 20, time.Minute),
		RefreshTokenTTL: getDurationEnv("REFRESH_TOKEN_TTL", 7, 24*time.Hour),

		StripeSecretKey:     getEnvOrDefault("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnvOrDefault("STRIPE_WEBHOOK_SECRET", ""),
		CheckoutSuccessURL:  getEnvOrDefault("CHECKOUT_SUCCESS_URL", "http://localhost:3000/checkout/success"),
		CheckoutCancelURL:   getEnvOrDefault("CHECKOUT_CANCEL_URL", "http://localhost:3000/cart"),

		RedisAddr:    getEnvOrDefault("REDIS_ADDR", ""),
		KafkaBrokers: getListEnv("KAFKA_BROKERS"),

		ShippingRate: getInt64Env("SHIPPING_RATE_CENTS", 1000),
		TaxRateBps:   getInt64Env("TAX_RATE_BPS", 0),
	}
}

// MustValidate fails startup when a required key is missing, so a
// misconfigured deployment dies immediately instead of per request.
func (c Config) MustValidate() {
	if c.MongoURI == "" {
		log.Fatal("MONGO_URI is required")
	}
	if c.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	if c.StripeSecretKey == "" {
		log.Fatal("STRIPE_SECRET_KEY is required")
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * unit
		}
	}
	return time.Duration(defaultValue) * unit
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
