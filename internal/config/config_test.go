package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 8*time.Second, cfg.TurnTimeout)
	assert.Equal(t, 7*24*time.Hour, cfg.RecordingURLTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("TURN_TIMEOUT", "5s")
	t.Setenv("REDIS_TLS", "true")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.TurnTimeout)
	assert.True(t, cfg.RedisTLS)
}

func TestTwilioConfigured(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.TwilioConfigured(), "empty credentials")

	cfg.TwilioAccountSID = "AC123"
	cfg.TwilioAuthToken = "token"
	assert.False(t, cfg.TwilioConfigured(), "missing from number")

	cfg.TwilioFromNumber = "+15550001111"
	assert.True(t, cfg.TwilioConfigured())
}

func TestGetEnvAsDurationInvalid(t *testing.T) {
	t.Setenv("TURN_TIMEOUT", "not-a-duration")
	cfg := Load()
	assert.Equal(t, 8*time.Second, cfg.TurnTimeout, "invalid duration falls back to default")
}
