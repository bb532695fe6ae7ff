package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Tenant scoping for all stored records.
	BrandID     string
	SessionName string

	// Inbound webhook shared secret (x-webhook-secret). Empty disables the check.
	WebhookSecret string

	// When false (the default) the webhook stores inbound messages without
	// dispatching automated replies.
	AutomationEnabled bool

	// GoHighLevel-style CRM API.
	CRMAPIKey     string
	CRMLocationID string
	CRMBaseURL    string

	// WPPConnect delivery server.
	WPPBaseURL string
	WPPToken   string

	// Quote pricing.
	QuoteBasePrice float64

	// Conversation closure.
	ClosureThreshold     time.Duration
	ClosureSweepInterval time.Duration

	// Webhook rate limiting (sliding window per caller).
	RateLimitMaxCalls int
	RateLimitWindow   time.Duration

	// Admin dashboard auth. Empty leaves the read APIs open.
	AdminJWTSecret string

	// Optional S3 export of closed conversations.
	AWSRegion     string
	ArchiveBucket string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:                 getEnv("PORT", "8080"),
		Env:                  getEnv("ENV", "development"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		RedisAddr:            getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisTLS:             getEnvAsBool("REDIS_TLS", false),
		BrandID:              getEnv("BRAND_ID", ""),
		SessionName:          getEnv("SESSION_NAME", "wefixico"),
		WebhookSecret:        getEnv("WEBHOOK_SECRET", ""),
		AutomationEnabled:    getEnvAsBool("AUTOMATION_ENABLED", false),
		CRMAPIKey:            getEnv("CRM_API_KEY", ""),
		CRMLocationID:        getEnv("CRM_LOCATION_ID", ""),
		CRMBaseURL:           getEnv("CRM_BASE_URL", "https://services.leadconnectorhq.com"),
		WPPBaseURL:           getEnv("WPP_BASE_URL", "http://localhost:8080"),
		WPPToken:             getEnv("WPP_TOKEN", ""),
		QuoteBasePrice:       getEnvAsFloat("QUOTE_BASE_PRICE", 80),
		ClosureThreshold:     getEnvAsDuration("CLOSURE_THRESHOLD", 25*time.Minute),
		ClosureSweepInterval: getEnvAsDuration("CLOSURE_SWEEP_INTERVAL", 5*time.Minute),
		RateLimitMaxCalls:    getEnvAsInt("RATE_LIMIT_MAX_CALLS", 30),
		RateLimitWindow:      getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
		AdminJWTSecret:       getEnv("ADMIN_JWT_SECRET", ""),
		AWSRegion:            getEnv("AWS_REGION", "eu-west-2"),
		ArchiveBucket:        getEnv("ARCHIVE_BUCKET", ""),
	}
}

// CRMConfigured reports whether both CRM credentials are present.
func (c *Config) CRMConfigured() bool {
	return strings.TrimSpace(c.CRMAPIKey) != "" && strings.TrimSpace(c.CRMLocationID) != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
