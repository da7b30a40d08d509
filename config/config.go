package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Store backend: "pocketbase" or "memory"
	StoreBackend string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Purchase configuration
	MaxPurchaseQuantity int
	PaymentTimeout      time.Duration

	// Seat hold configuration
	SeatHoldTimeout time.Duration

	// Gate configuration
	GateCodeTTL     time.Duration
	GateSessionTTL  time.Duration
	ScanRateLimit   int
	ScanRateWindow  time.Duration

	// Cleanup configuration
	SweepInterval time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Store
		StoreBackend: getEnv("STORE_BACKEND", "pocketbase"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Purchase
		MaxPurchaseQuantity: getEnvAsInt("MAX_PURCHASE_QUANTITY", 10),
		PaymentTimeout:      getEnvAsDuration("PAYMENT_TIMEOUT", "10m"),

		// Seat holds outlive the payment window so a pending purchase keeps
		// its seats for as long as its payment may still arrive.
		SeatHoldTimeout: getEnvAsDuration("SEAT_HOLD_TIMEOUT", "10m"),

		// Gates
		GateCodeTTL:    getEnvAsDuration("GATE_CODE_TTL", "24h"),
		GateSessionTTL: getEnvAsDuration("GATE_SESSION_TTL", "12h"),
		ScanRateLimit:  getEnvAsInt("SCAN_RATE_LIMIT", 30),
		ScanRateWindow: getEnvAsDuration("SCAN_RATE_WINDOW", "1m"),

		// Cleanup
		SweepInterval: getEnvAsDuration("SWEEP_INTERVAL", "1m"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
