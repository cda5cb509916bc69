package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Twilio voice credentials. Dialing fails fast when these are absent.
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	// CampaignChainSecret authorizes internal chain-continuation calls.
	CampaignChainSecret string
	// APIJWTSecret signs bearer tokens presented by external callers.
	APIJWTSecret string

	// Bedrock model used by the turn processor.
	BedrockModelID string
	// TurnTimeout bounds a single LLM completion; must stay below the
	// telephony provider's webhook response deadline.
	TurnTimeout time.Duration

	// RecordingsBucket is the S3 bucket for archived call audio.
	// Empty disables archival.
	RecordingsBucket     string
	RecordingURLTTL      time.Duration
	SessionSweepInterval time.Duration
	SessionGracePeriod   time.Duration

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_PHONE_NUMBER", ""),

		CampaignChainSecret: getEnv("CAMPAIGN_CHAIN_SECRET", ""),
		APIJWTSecret:        getEnv("API_JWT_SECRET", ""),

		BedrockModelID: getEnv("BEDROCK_MODEL_ID", "anthropic.claude-3-haiku-20240307-v1:0"),
		TurnTimeout:    getEnvAsDuration("TURN_TIMEOUT", 8*time.Second),

		RecordingsBucket:     getEnv("RECORDINGS_BUCKET", ""),
		RecordingURLTTL:      getEnvAsDuration("RECORDING_URL_TTL", 7*24*time.Hour),
		SessionSweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", time.Minute),
		SessionGracePeriod:   getEnvAsDuration("SESSION_GRACE_PERIOD", 2*time.Minute),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
	}
}

// TwilioConfigured reports whether outbound dialing credentials are present.
func (c *Config) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
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
