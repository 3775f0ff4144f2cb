package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	LeadsTable     string
	RateLimitTable string

	// RateLimitMaxPerHour caps accepted submissions per client IP per
	// one-hour window. RateLimitFailOpen keeps lead capture available
	// when the counter store is unreachable.
	RateLimitMaxPerHour int
	RateLimitFailOpen   bool

	// MaxCustomFields bounds how many custom fields a submission may carry;
	// entries beyond the cap are dropped, not rejected.
	MaxCustomFields int

	// APIKey is the credential the retrieval API compares X-API-Key against.
	APIKey string

	// AdminJWTSecret signs/validates the bearer tokens for the admin
	// erasure and stats endpoints.
	AdminJWTSecret string

	// ArchiveBucket, when set, receives a JSON snapshot of every lead
	// erased through the admin endpoint before the delete runs.
	ArchiveBucket string

	// Email notification settings for accepted leads. Empty NotifyEmailTo
	// disables notifications entirely.
	EmailProvider   string
	NotifyEmailTo   string
	NotifyEmailFrom string
	NotifyFromName  string
	SendGridAPIKey  string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		LeadsTable:     getEnv("LEADS_TABLE", "leads"),
		RateLimitTable: getEnv("RATE_LIMIT_TABLE", "rate_limits"),

		RateLimitMaxPerHour: getEnvAsInt("RATE_LIMIT_MAX_PER_HOUR", 10),
		RateLimitFailOpen:   getEnvAsBool("RATE_LIMIT_FAIL_OPEN", true),

		MaxCustomFields: getEnvAsInt("MAX_CUSTOM_FIELDS", 20),

		APIKey:         getEnv("API_KEY", ""),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		ArchiveBucket: getEnv("ARCHIVE_BUCKET", ""),

		EmailProvider:   strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "auto"))),
		NotifyEmailTo:   getEnv("NOTIFY_EMAIL_TO", ""),
		NotifyEmailFrom: getEnv("NOTIFY_EMAIL_FROM", ""),
		NotifyFromName:  getEnv("NOTIFY_FROM_NAME", "Lead Capture"),
		SendGridAPIKey:  getEnv("SENDGRID_API_KEY", ""),
	}
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
